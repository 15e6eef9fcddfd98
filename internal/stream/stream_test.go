// Copyright (c) 2018-2024, NVIDIA CORPORATION. All rights reserved.
package stream_test

import (
	"bytes"
	"compress/gzip"
	"crypto/md5"
	"crypto/sha1"
	"crypto/sha256"
	"encoding/hex"
	"io"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/packetary-go/pkgmirror/internal/stream"
)

func TestReaderReadLine(t *testing.T) {
	r := stream.NewReader(bytes.NewBufferString("one\ntwo\nthree"))

	line, err := r.ReadLine()
	require.NoError(t, err)
	require.Equal(t, "one\n", string(line))

	line, err = r.ReadLine()
	require.NoError(t, err)
	require.Equal(t, "two\n", string(line))

	line, err = r.ReadLine()
	require.ErrorIs(t, err, io.EOF)
	require.Equal(t, "three", string(line))
}

func TestReaderReadLines(t *testing.T) {
	r := stream.NewReader(bytes.NewBufferString("a\nb\nc\n"))
	lines, err := r.ReadLines()
	require.NoError(t, err)
	require.Len(t, lines, 3)
}

func TestReaderReadN(t *testing.T) {
	r := stream.NewReader(bytes.NewBufferString("0123456789"))
	chunk, err := r.ReadN(4)
	require.NoError(t, err)
	require.Equal(t, "0123", string(chunk))

	rest, err := r.ReadN(100)
	require.ErrorIs(t, err, io.EOF)
	require.Equal(t, "456789", string(rest))
}

func TestGzipReaderInflatesAndReadsInArbitraryChunks(t *testing.T) {
	var buf bytes.Buffer
	gw := gzip.NewWriter(&buf)
	_, err := gw.Write([]byte("package: foo\nversion: 1\n"))
	require.NoError(t, err)
	require.NoError(t, gw.Close())

	gr, err := stream.NewGzipReader(&buf)
	require.NoError(t, err)
	defer gr.Close()

	small := make([]byte, 3)
	var out bytes.Buffer
	for {
		n, err := gr.Read(small)
		out.Write(small[:n])
		if err == io.EOF {
			break
		}
		require.NoError(t, err)
	}
	require.Equal(t, "package: foo\nversion: 1\n", out.String())
}

func TestChecksumTeeMatchesStandardHashes(t *testing.T) {
	payload := []byte("the quick brown fox jumps over the lazy dog")

	tee := stream.NewChecksumTee(bytes.NewReader(payload))
	n, err := io.Copy(io.Discard, tee)
	require.NoError(t, err)
	require.Equal(t, int64(len(payload)), n)
	require.Equal(t, int64(len(payload)), tee.Size())

	digest := tee.Digest()
	require.Equal(t, hex.EncodeToString(md5Sum(payload)), digest.MD5)
	require.Equal(t, hex.EncodeToString(sha1Sum(payload)), digest.SHA1)
	require.Equal(t, hex.EncodeToString(sha256Sum(payload)), digest.SHA256)
}

func TestDecompressDetectsGzipMagic(t *testing.T) {
	var buf bytes.Buffer
	gw := gzip.NewWriter(&buf)
	_, err := gw.Write([]byte("<metadata/>"))
	require.NoError(t, err)
	require.NoError(t, gw.Close())

	r, err := stream.Decompress(&buf)
	require.NoError(t, err)
	out, err := io.ReadAll(r)
	require.NoError(t, err)
	require.Equal(t, "<metadata/>", string(out))
}

func TestDecompressPassesThroughUnrecognizedInput(t *testing.T) {
	r, err := stream.Decompress(bytes.NewBufferString("<metadata/>"))
	require.NoError(t, err)
	out, err := io.ReadAll(r)
	require.NoError(t, err)
	require.Equal(t, "<metadata/>", string(out))
}

func md5Sum(b []byte) []byte    { s := md5.Sum(b); return s[:] }
func sha1Sum(b []byte) []byte   { s := sha1.Sum(b); return s[:] }
func sha256Sum(b []byte) []byte { s := sha256.Sum256(b); return s[:] }

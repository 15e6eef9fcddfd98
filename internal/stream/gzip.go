// Copyright (c) 2018-2024, NVIDIA CORPORATION. All rights reserved.
package stream

import (
	"bufio"
	"compress/gzip"
	"io"

	"github.com/pierrec/lz4/v3"
)

// NewGzipReader wraps r with a transparent gzip inflate: it expects and
// validates the gzip member header (spec.md §4.2 "not raw deflate") and
// is readable in whatever chunk size the caller passes to Read.
func NewGzipReader(r io.Reader) (io.ReadCloser, error) {
	return gzip.NewReader(r)
}

// NewLZ4Reader wraps r with a transparent lz4 frame inflate. Some yum
// mirrors publish a `primary.xml.lz4` companion to `.gz`; the lz4 reader
// has no distinct Close step, so it is handed back as a plain io.Reader.
func NewLZ4Reader(r io.Reader) io.Reader {
	return lz4.NewReader(r)
}

// autodetect magic numbers for the two optional compressed member kinds.
var (
	gzipMagic = [2]byte{0x1f, 0x8b}
	lz4Magic  = [4]byte{0x04, 0x22, 0x4d, 0x18}
)

// Decompress wraps r in a buffered peeker, inspects its first bytes to
// pick a decompressor, and falls back to the (now-buffered) r itself
// when no known magic is present. Used by format drivers that don't
// know ahead of time whether a metadata member is compressed (spec.md
// §4.4.2 "follow the primary data entry").
func Decompress(r io.Reader) (io.Reader, error) {
	br := bufio.NewReader(r)
	head, err := br.Peek(4)
	if err != nil && err != io.EOF {
		return nil, err
	}
	switch {
	case len(head) >= 2 && head[0] == gzipMagic[0] && head[1] == gzipMagic[1]:
		return gzip.NewReader(br)
	case len(head) == 4 && head[0] == lz4Magic[0] && head[1] == lz4Magic[1] && head[2] == lz4Magic[2] && head[3] == lz4Magic[3]:
		return lz4.NewReader(br), nil
	default:
		return br, nil
	}
}

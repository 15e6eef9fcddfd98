// Package stream wraps a readable byte source with the line-buffering,
// transparent decompression, and checksum-tee primitives shared by every
// format driver's metadata parser (spec.md §4.2).
/*
 * Copyright (c) 2018-2024, NVIDIA CORPORATION. All rights reserved.
 */
package stream

import (
	"bufio"
	"io"
)

// Reader is a buffered line-reader over an arbitrary io.Reader, grounded
// on the teacher's archive.Writer family of thin io wrappers (cmn/archive)
// but specialized for reading rather than writing.
type Reader struct {
	br *bufio.Reader
}

const defaultBufSize = 64 * 1024

func NewReader(r io.Reader) *Reader {
	return &Reader{br: bufio.NewReaderSize(r, defaultBufSize)}
}

// Read fills p and satisfies io.Reader, so a *Reader can itself feed
// gzip.NewReader or a checksum tee.
func (r *Reader) Read(p []byte) (int, error) { return r.br.Read(p) }

// ReadN reads exactly n bytes, or fewer at EOF, mirroring read(n) of
// spec.md §4.2.
func (r *Reader) ReadN(n int) ([]byte, error) {
	buf := make([]byte, n)
	read, err := io.ReadFull(r.br, buf)
	if err == io.ErrUnexpectedEOF {
		err = io.EOF
	}
	return buf[:read], err
}

// ReadLine returns bytes up through and including the next '\n', or
// whatever remains at EOF with a trailing io.EOF.
func (r *Reader) ReadLine() ([]byte, error) {
	line, err := r.br.ReadBytes('\n')
	if err == io.EOF && len(line) > 0 {
		return line, io.EOF
	}
	return line, err
}

// ReadLines drains every remaining line.
func (r *Reader) ReadLines() ([][]byte, error) {
	var out [][]byte
	for {
		line, err := r.ReadLine()
		if len(line) > 0 {
			out = append(out, line)
		}
		if err != nil {
			if err == io.EOF {
				return out, nil
			}
			return out, err
		}
	}
}

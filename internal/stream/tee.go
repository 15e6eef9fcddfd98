// Copyright (c) 2018-2024, NVIDIA CORPORATION. All rights reserved.
package stream

import (
	"io"

	"github.com/packetary-go/pkgmirror/cmn/cos"
)

// ChecksumTee wraps a reader so that every byte read also updates a
// composite md5/sha1/sha256 hash (spec.md §4.2 "checksum tee"). Digest
// and Size are only meaningful once the underlying stream has been read
// to EOF.
type ChecksumTee struct {
	src  io.Reader
	hash *cos.CksumHash
}

func NewChecksumTee(src io.Reader) *ChecksumTee {
	return &ChecksumTee{src: src, hash: cos.NewCksumHash()}
}

func (t *ChecksumTee) Read(p []byte) (int, error) {
	n, err := t.src.Read(p)
	if n > 0 {
		if _, werr := t.hash.Write(p[:n]); werr != nil {
			return n, werr
		}
	}
	return n, err
}

// Digest returns the composite checksum accumulated so far.
func (t *ChecksumTee) Digest() cos.Cksum { return t.hash.Finalize() }

// Size returns the number of bytes written through the tee so far.
func (t *ChecksumTee) Size() int64 { return t.hash.Size() }

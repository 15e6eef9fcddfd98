// Package cos provides common low-level types and utilities shared by
// pkgmirror's resolver, transport, and driver packages.
/*
 * Copyright (c) 2018-2024, NVIDIA CORPORATION. All rights reserved.
 */
package cos

import (
	"crypto/md5"
	"crypto/sha1"
	"crypto/sha256"
	"encoding/hex"
	"hash"
	"io"

	jsoniter "github.com/json-iterator/go"
)

// Cksum is a Package's recorded checksum set (spec.md §3:
// `checksum = {md5, sha1, sha256}`). Any subset may be empty when the
// upstream index omitted it.
type Cksum struct {
	MD5    string `json:"md5,omitempty"`
	SHA1   string `json:"sha1,omitempty"`
	SHA256 string `json:"sha256,omitempty"`
}

func (c Cksum) Empty() bool { return c.MD5 == "" && c.SHA1 == "" && c.SHA256 == "" }

func (c Cksum) String() string {
	b, _ := jsoniter.Marshal(c)
	return string(b)
}

// Equal compares whichever digests are present on both sides; an empty
// digest on either side is not a mismatch by itself, but two present,
// differing digests of the same kind are.
func (c Cksum) Equal(o Cksum) bool {
	if c.MD5 != "" && o.MD5 != "" && c.MD5 != o.MD5 {
		return false
	}
	if c.SHA1 != "" && o.SHA1 != "" && c.SHA1 != o.SHA1 {
		return false
	}
	if c.SHA256 != "" && o.SHA256 != "" && c.SHA256 != o.SHA256 {
		return false
	}
	return true
}

// CksumHash is a composite tee-hasher: one Write updates md5, sha1, and
// sha256 concurrently. It backs the Stream Layer's checksum tee (spec.md
// §4.2) and the Byte Transport's post-copy verification (SPEC_FULL.md
// "Checksum verification on copy").
type CksumHash struct {
	md5    hash.Hash
	sha1   hash.Hash
	sha256 hash.Hash
	n      int64
}

func NewCksumHash() *CksumHash {
	return &CksumHash{md5: md5.New(), sha1: sha1.New(), sha256: sha256.New()}
}

// Write implements io.Writer so a CksumHash can be used as the tee
// destination of an io.TeeReader or io.MultiWriter.
func (h *CksumHash) Write(p []byte) (int, error) {
	h.md5.Write(p)
	h.sha1.Write(p)
	h.sha256.Write(p)
	h.n += int64(len(p))
	return len(p), nil
}

func (h *CksumHash) Size() int64 { return h.n }

func (h *CksumHash) Finalize() Cksum {
	return Cksum{
		MD5:    hex.EncodeToString(h.md5.Sum(nil)),
		SHA1:   hex.EncodeToString(h.sha1.Sum(nil)),
		SHA256: hex.EncodeToString(h.sha256.Sum(nil)),
	}
}

// TeeCopy copies src to dst while updating h, returning the bytes
// copied. Used by the transport layer to checksum a download in the
// same pass as writing it to disk.
func TeeCopy(dst io.Writer, src io.Reader, h *CksumHash) (int64, error) {
	return io.Copy(io.MultiWriter(dst, h), src)
}

// Package cos provides common low-level types and utilities shared by
// pkgmirror's resolver, transport, and driver packages.
/*
 * Copyright (c) 2018-2024, NVIDIA CORPORATION. All rights reserved.
 */
package cos

import (
	"sync"

	"github.com/OneOfOne/xxhash"
	"github.com/teris-io/shortid"
)

// uuidABC mirrors the alphabet aistore uses for its shortid-based IDs:
// URL- and log-line-safe, no padding characters to escape.
const uuidABC = "-5nZJDft6LuzsjGNpPwY7rQa39vehq4i1cV2FROo8yHSlC0BUEdWbIxMmTgKXAk_"

var (
	sidOnce sync.Once
	sid     *shortid.Shortid
)

func initShortID() {
	sid = shortid.MustNew(4, uuidABC, 1)
}

// GenRunID returns a short, unique, log-line-safe identifier. Nothing
// in the module calls it: log lines and CopyStatistics carry no run ID.
func GenRunID() string {
	sidOnce.Do(initShortID)
	return sid.MustGenerate()
}

// FastHash is a non-cryptographic 64-bit xxhash digest of s. Nothing in
// the module calls it: the Package Index and the resolver's visited set
// key their maps on *Package pointers and Relation.Key strings.
func FastHash(s string) uint64 {
	return xxhash.Checksum64([]byte(s))
}

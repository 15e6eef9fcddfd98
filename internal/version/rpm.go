// Copyright (c) 2018-2024, NVIDIA CORPORATION. All rights reserved.
package version

import (
	"strconv"
	"strings"
)

// RPM implements Comparand following rpm's epoch:version-release
// lexicographic ordering (spec.md §4.4.2): "(epoch:int, version-tuple,
// release-tuple)".
type RPM struct {
	Epoch   int
	Version string
	Release string
}

// ParseRPM splits "[epoch:]version[-release]" the way rpm does.
func ParseRPM(s string) RPM {
	r := RPM{}
	if idx := strings.IndexByte(s, ':'); idx >= 0 {
		if n, err := strconv.Atoi(s[:idx]); err == nil {
			r.Epoch = n
			s = s[idx+1:]
		}
	}
	if idx := strings.LastIndexByte(s, '-'); idx >= 0 {
		r.Version, r.Release = s[:idx], s[idx+1:]
	} else {
		r.Version = s
	}
	return r
}

func (r RPM) String() string {
	var b strings.Builder
	if r.Epoch != 0 {
		b.WriteString(strconv.Itoa(r.Epoch))
		b.WriteByte(':')
	}
	b.WriteString(r.Version)
	if r.Release != "" {
		b.WriteByte('-')
		b.WriteString(r.Release)
	}
	return b.String()
}

func (r RPM) Compare(other Comparand) int {
	o := other.(RPM)
	if r.Epoch != o.Epoch {
		return cmpInt(r.Epoch, o.Epoch)
	}
	if c := compareRPMTuple(r.Version, o.Version); c != 0 {
		return c
	}
	return compareRPMTuple(r.Release, o.Release)
}

// compareRPMTuple implements rpmvercmp: walk alternating alpha/digit
// runs (non-alphanumeric separators are skipped entirely on both
// sides), numeric runs compare numerically (leading zeros stripped),
// alpha runs compare lexically, a numeric run facing an alpha run makes
// the numeric side newer, and once one side runs out the side with runs
// left over is newer (so "1.0a" > "1.0").
func compareRPMTuple(a, b string) int {
	i, j := 0, 0
	for i < len(a) || j < len(b) {
		for i < len(a) && !isAlnum(a[i]) {
			i++
		}
		for j < len(b) && !isAlnum(b[j]) {
			j++
		}
		if i >= len(a) || j >= len(b) {
			break
		}

		if isDigit(a[i]) && isDigit(b[j]) {
			ai := i
			for i < len(a) && isDigit(a[i]) {
				i++
			}
			bj := j
			for j < len(b) && isDigit(b[j]) {
				j++
			}
			an, bn := trimLeadingZeros(a[ai:i]), trimLeadingZeros(b[bj:j])
			if len(an) != len(bn) {
				return cmpInt(len(an), len(bn))
			}
			if c := strings.Compare(an, bn); c != 0 {
				return c
			}
			continue
		}
		if isDigit(a[i]) != isDigit(b[j]) {
			// numeric segment is always newer than an alpha one
			if isDigit(a[i]) {
				return 1
			}
			return -1
		}

		ai := i
		for i < len(a) && isAlpha(a[i]) {
			i++
		}
		bj := j
		for j < len(b) && isAlpha(b[j]) {
			j++
		}
		if c := strings.Compare(a[ai:i], b[bj:j]); c != 0 {
			return c
		}
	}
	switch {
	case i < len(a):
		return 1
	case j < len(b):
		return -1
	default:
		return 0
	}
}

func isAlpha(c byte) bool { return c >= 'a' && c <= 'z' || c >= 'A' && c <= 'Z' }
func isAlnum(c byte) bool { return isAlpha(c) || isDigit(c) }

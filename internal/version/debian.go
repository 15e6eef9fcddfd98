// Copyright (c) 2018-2024, NVIDIA CORPORATION. All rights reserved.
package version

import (
	"strconv"
	"strings"
)

// Debian implements Comparand following Debian's epoch:upstream-revision
// ordering rules (spec.md §4.4.1). It is the deb driver's version type.
type Debian struct {
	Epoch    int
	Upstream string
	Revision string
}

// ParseDebian splits "[epoch:]upstream[-revision]" the way dpkg does:
// the last '-' separates the Debian revision, and an optional leading
// "N:" is the epoch.
func ParseDebian(s string) Debian {
	d := Debian{}
	if idx := strings.IndexByte(s, ':'); idx >= 0 {
		if n, err := strconv.Atoi(s[:idx]); err == nil {
			d.Epoch = n
			s = s[idx+1:]
		}
	}
	if idx := strings.LastIndexByte(s, '-'); idx >= 0 {
		d.Upstream, d.Revision = s[:idx], s[idx+1:]
	} else {
		d.Upstream = s
	}
	return d
}

func (d Debian) String() string {
	var b strings.Builder
	if d.Epoch != 0 {
		b.WriteString(strconv.Itoa(d.Epoch))
		b.WriteByte(':')
	}
	b.WriteString(d.Upstream)
	if d.Revision != "" {
		b.WriteByte('-')
		b.WriteString(d.Revision)
	}
	return b.String()
}

func (d Debian) Compare(other Comparand) int {
	o := other.(Debian)
	if d.Epoch != o.Epoch {
		return cmpInt(d.Epoch, o.Epoch)
	}
	if c := compareDebianPart(d.Upstream, o.Upstream); c != 0 {
		return c
	}
	return compareDebianPart(d.Revision, o.Revision)
}

func cmpInt(a, b int) int {
	switch {
	case a < b:
		return -1
	case a > b:
		return 1
	default:
		return 0
	}
}

// compareDebianPart implements dpkg's version-part comparison: the
// string is walked as alternating non-digit and digit runs; non-digit
// runs compare lexically with '~' sorting before everything (including
// the empty string), and digit runs compare numerically.
func compareDebianPart(a, b string) int {
	i, j := 0, 0
	for i < len(a) || j < len(b) {
		// non-digit run
		ai, bj := i, j
		for i < len(a) && !isDigit(a[i]) {
			i++
		}
		for j < len(b) && !isDigit(b[j]) {
			j++
		}
		if c := compareLexTilde(a[ai:i], b[bj:j]); c != 0 {
			return c
		}

		// digit run
		ai, bj = i, j
		for i < len(a) && isDigit(a[i]) {
			i++
		}
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
	}
	return 0
}

func isDigit(c byte) bool { return c >= '0' && c <= '9' }

func trimLeadingZeros(s string) string {
	i := 0
	for i < len(s)-1 && s[i] == '0' {
		i++
	}
	return s[i:]
}

// compareLexTilde orders '~' before everything, including end-of-string,
// then the empty string before letters, then letters before non-letters,
// matching dpkg's order-of-character semantics for non-digit runs.
func compareLexTilde(a, b string) int {
	i := 0
	for {
		var ca, cb byte
		if i < len(a) {
			ca = a[i]
		}
		if i < len(b) {
			cb = b[i]
		}
		if ca == 0 && cb == 0 {
			return 0
		}
		oa, ob := debianCharOrder(ca), debianCharOrder(cb)
		if oa != ob {
			return cmpInt(oa, ob)
		}
		i++
	}
}

func debianCharOrder(c byte) int {
	switch {
	case c == '~':
		return -1
	case c == 0:
		return 0
	case c >= 'a' && c <= 'z' || c >= 'A' && c <= 'Z':
		return 1000 + int(c)
	default:
		return 2000 + int(c)
	}
}

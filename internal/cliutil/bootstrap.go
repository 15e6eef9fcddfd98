// Package cliutil implements the bootstrap-relation grammar and
// newline-delimited file reading shared by the mirror CLI and the
// Repository Manager (spec.md §6 "Bootstrap syntax").
/*
 * Copyright (c) 2018-2024, NVIDIA CORPORATION. All rights reserved.
 */
package cliutil

import (
	"regexp"
	"strings"

	"github.com/packetary-go/pkgmirror/cmn/cos"
	"github.com/packetary-go/pkgmirror/internal/pkgidx"
	"github.com/packetary-go/pkgmirror/internal/version"
)

var bootstrapHeadRe = regexp.MustCompile(`^(\S+)(?:\s+(>>|<<|=|>=|<=)\s+(\S+))?$`)

// ParseBootstrap parses spec.md §6's grammar: `"name"` | `"name OP
// VER"` | `"A OP VER | B OP VER"` (alternatives), one line per root
// relation. parseVersion is the active driver's version comparand
// parser (Debian or RPM), since VER's syntax is format-specific.
func ParseBootstrap(lines []string, parseVersion func(string) version.Comparand) ([]*pkgidx.Relation, error) {
	var out []*pkgidx.Relation
	for _, line := range lines {
		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}
		rel, err := parseBootstrapLine(line, parseVersion)
		if err != nil {
			return nil, err
		}
		out = append(out, rel)
	}
	return out, nil
}

func parseBootstrapLine(line string, parseVersion func(string) version.Comparand) (*pkgidx.Relation, error) {
	var head, tail *pkgidx.Relation
	for _, alt := range strings.Split(line, "|") {
		alt = strings.TrimSpace(alt)
		if alt == "" {
			continue
		}
		m := bootstrapHeadRe.FindStringSubmatch(alt)
		if m == nil {
			return nil, &cos.ErrMalformedURL{Raw: line, Reason: `expected "name [op version]"`}
		}
		r := &pkgidx.Relation{Name: m[1], Range: version.Any()}
		if m[2] != "" {
			r.Range = version.Range{Op: opFromSymbol(m[2]), Value: parseVersion(m[3])}
		}
		if head == nil {
			head, tail = r, r
		} else {
			tail.Alternative = r
			tail = r
		}
	}
	if head == nil {
		return nil, &cos.ErrMalformedURL{Raw: line, Reason: "empty bootstrap relation"}
	}
	return head, nil
}

func opFromSymbol(sym string) version.Op {
	switch sym {
	case ">>":
		return version.OpGT
	case "<<":
		return version.OpLT
	case "=":
		return version.OpEQ
	case ">=":
		return version.OpGE
	case "<=":
		return version.OpLE
	default:
		return version.OpNone
	}
}

// Package pkgidx implements the Package Index and Packages Tree (spec.md
// §3, §4.5, §4.6): the in-memory structure that answers "which concrete
// package satisfies this relation?" and the dependency-walk algorithms
// built on top of it.
/*
 * Copyright (c) 2018-2024, NVIDIA CORPORATION. All rights reserved.
 */
package pkgidx

import (
	"strings"

	"github.com/packetary-go/pkgmirror/cmn/cos"
	"github.com/packetary-go/pkgmirror/internal/version"
)

// Arch enumerates the architectures a Repository can carry (spec.md §3).
type Arch int

const (
	ArchX86_64 Arch = iota
	ArchI386
	ArchSource
)

func (a Arch) String() string {
	switch a {
	case ArchX86_64:
		return "x86_64"
	case ArchI386:
		return "i386"
	case ArchSource:
		return "source"
	default:
		return "unknown"
	}
}

// Repository is a format-specific handle: deb keys on (suite,
// component), yum on (name,). Equality is by (Name, Architecture,
// Origin, URL) per spec.md §3.
type Repository struct {
	Name         [2]string // deb: (suite, component); yum: (name, "")
	Architecture Arch
	Origin       string
	URL          string
}

func (r *Repository) Equal(o *Repository) bool {
	if r == nil || o == nil {
		return r == o
	}
	return r.Name == o.Name && r.Architecture == o.Architecture && r.Origin == o.Origin && r.URL == o.URL
}

// Relation is a disjunction chain: a head (Name, Range) plus an
// optional Alternative link (spec.md §3, §9). Iteration walks the chain
// via Alternative until nil.
type Relation struct {
	Name        string
	Range       version.Range
	Alternative *Relation
}

// Links yields every link in the chain, head first.
func (r *Relation) Links() []*Relation {
	var out []*Relation
	for l := r; l != nil; l = l.Alternative {
		out = append(out, l)
	}
	return out
}

// Key is a string that depends on the full alternative chain, used as a
// map key so that Relation sets dedup structurally rather than by
// pointer identity (spec.md §9: "Equality and hash must depend on the
// full chain").
func (r *Relation) Key() string {
	if r == nil {
		return ""
	}
	var b strings.Builder
	for l := r; l != nil; l = l.Alternative {
		if l != r {
			b.WriteByte('|')
		}
		b.WriteString(l.Name)
		b.WriteByte(' ')
		b.WriteString(l.Range.String())
	}
	return b.String()
}

func (r *Relation) String() string { return r.Key() }

// Package is an immutable record (spec.md §3). Equality and hash use
// (Name, Version); ordering is lexicographic on (Name, Version).
type Package struct {
	Name      string
	Version   version.Comparand
	Filename  string
	Filesize  int64 // -1 if unknown
	Checksum  cos.Cksum
	Mandatory bool
	Requires  []*Relation
	Provides  []*Relation
	Obsoletes []*Relation
	Repo      *Repository
}

func (p *Package) Equal(o *Package) bool {
	if p == nil || o == nil {
		return p == o
	}
	return p.Name == o.Name && p.Version.Compare(o.Version) == 0
}

// Less implements the package ordering used to keep per-name
// collections sorted (spec.md §3).
func (p *Package) Less(o *Package) bool {
	if p.Name != o.Name {
		return p.Name < o.Name
	}
	return p.Version.Compare(o.Version) < 0
}

func (p *Package) String() string {
	return p.Name + " " + p.Version.String()
}

// Copyright (c) 2018-2024, NVIDIA CORPORATION. All rights reserved.
package pkgidx

import (
	"sort"
	"sync"

	"github.com/packetary-go/pkgmirror/internal/version"
)

// indirectEntry is one obsoletes/provides link in the Index's secondary
// maps: the package carrying the link plus the link's own version range,
// consulted by Find when a name has no direct match (spec.md §4.5).
type indirectEntry struct {
	pkg   *Package
	rng   version.Range // the range carried by the obsoletes/provides link
}

// Index is a name -> ordered-by-version collection of Package, plus
// name -> collection keyed by (target_name, target_version) for
// obsoletes and provides (spec.md §3). Entries are never removed:
// indexes are monotonic within a run (spec.md §8 "Insertion
// monotonicity").
//
// Shared-resource policy (spec.md §5): parse I/O is the bottleneck, not
// insertion, so mutation is serialized behind a single mutex rather than
// using reader/writer machinery; concurrent reads during RESOLVE happen
// from a single goroutine so no separate RLock discipline is needed.
type Index struct {
	mu        sync.Mutex
	byName    map[string][]*Package
	obsoletes map[string][]indirectEntry
	provides  map[string][]indirectEntry
}

func NewIndex() *Index {
	return &Index{
		byName:    make(map[string][]*Package),
		obsoletes: make(map[string][]indirectEntry),
		provides:  make(map[string][]indirectEntry),
	}
}

// Add inserts package p in O(log n) into its name's ordered collection,
// and registers its provides/obsoletes links (spec.md §4.5).
func (idx *Index) Add(p *Package) {
	idx.mu.Lock()
	defer idx.mu.Unlock()

	list := idx.byName[p.Name]
	i := sort.Search(len(list), func(i int) bool { return !list[i].Less(p) })
	list = append(list, nil)
	copy(list[i+1:], list[i:])
	list[i] = p
	idx.byName[p.Name] = list

	for _, rel := range p.Obsoletes {
		for _, l := range rel.Links() {
			idx.obsoletes[l.Name] = insertIndirect(idx.obsoletes[l.Name], indirectEntry{pkg: p, rng: l.Range})
		}
	}
	for _, rel := range p.Provides {
		for _, l := range rel.Links() {
			idx.provides[l.Name] = insertIndirect(idx.provides[l.Name], indirectEntry{pkg: p, rng: l.Range})
		}
	}
}

func insertIndirect(list []indirectEntry, e indirectEntry) []indirectEntry {
	i := sort.Search(len(list), func(i int) bool { return list[i].pkg.Version.Compare(e.pkg.Version) >= 0 })
	list = append(list, indirectEntry{})
	copy(list[i+1:], list[i:])
	list[i] = e
	return list
}

// Find implements the three-step lookup of spec.md §4.5.
func (idx *Index) Find(name string, rng version.Range) (*Package, bool) {
	idx.mu.Lock()
	defer idx.mu.Unlock()

	if list := idx.byName[name]; len(list) > 0 {
		if p, ok := chooseByOp(list, rng); ok {
			return p, true
		}
	}
	if e, ok := newestIntersecting(idx.obsoletes[name], rng); ok {
		return e, true
	}
	if e, ok := newestIntersecting(idx.provides[name], rng); ok {
		return e, true
	}
	return nil, false
}

// FindAll returns all direct matches for name under rng (spec.md §4.5);
// it does not consult the obsoletes/provides indirection.
func (idx *Index) FindAll(name string, rng version.Range) []*Package {
	idx.mu.Lock()
	defer idx.mu.Unlock()

	var out []*Package
	for _, p := range idx.byName[name] {
		if rng.Matches(p.Version) {
			out = append(out, p)
		}
	}
	return out
}

// All returns every package in the index, for whole-index scans
// (mandatory-root collection, unresolved_depends).
func (idx *Index) All() []*Package {
	idx.mu.Lock()
	defer idx.mu.Unlock()

	var out []*Package
	for _, list := range idx.byName {
		out = append(out, list...)
	}
	return out
}

// chooseByOp implements the choice rule of spec.md §4.5: the operator
// on rng decides direction and tie-break among the name's packages,
// which are kept sorted ascending by version.
func chooseByOp(list []*Package, rng version.Range) (*Package, bool) {
	switch rng.Op {
	case version.OpNone:
		return list[len(list)-1], true // newest
	case version.OpEQ:
		i := sort.Search(len(list), func(i int) bool { return list[i].Version.Compare(rng.Value) >= 0 })
		if i < len(list) && list[i].Version.Compare(rng.Value) == 0 {
			return list[i], true
		}
		return nil, false
	case version.OpLT, version.OpLE:
		// scan in reverse (versions descending); take the first match,
		// i.e. the greatest version that still satisfies the operator.
		for i := len(list) - 1; i >= 0; i-- {
			if rng.Matches(list[i].Version) {
				return list[i], true
			}
		}
		return nil, false
	case version.OpGT, version.OpGE:
		// scan forward (versions ascending); take the first match, i.e.
		// the smallest version that satisfies the operator.
		for i := range list {
			if rng.Matches(list[i].Version) {
				return list[i], true
			}
		}
		return nil, false
	default:
		return nil, false
	}
}

// newestIntersecting scans a (package, range) indirection list - sorted
// ascending by package version - for the newest package whose own
// obsoleted/provided range intersects query.
func newestIntersecting(list []indirectEntry, query version.Range) (*Package, bool) {
	for i := len(list) - 1; i >= 0; i-- {
		if version.HasIntersection(list[i].rng, query) {
			return list[i].pkg, true
		}
	}
	return nil, false
}

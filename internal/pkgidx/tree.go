// Copyright (c) 2018-2024, NVIDIA CORPORATION. All rights reserved.
package pkgidx

// PackagesTree is an Index enriched with the dependency-walk algorithms
// of spec.md §4.6.
type PackagesTree struct {
	*Index
}

func NewPackagesTree() *PackagesTree {
	return &PackagesTree{Index: NewIndex()}
}

// UnresolvedDepends returns, for every Package P in the index and every
// relation R in P.Requires, the relations for which no link is
// satisfied by any other package in the index (spec.md §4.6). seed is
// merged into (and returned as part of) the result.
func (t *PackagesTree) UnresolvedDepends(seed []*Relation) []*Relation {
	out := newRelationSet(seed)
	for _, p := range t.All() {
		for _, r := range p.Requires {
			if !t.satisfiedExcluding(r, p) {
				out.add(r)
			}
		}
	}
	return out.list()
}

// satisfiedExcluding reports whether some link of r is satisfied by a
// package other than excl present in the index.
func (t *PackagesTree) satisfiedExcluding(r *Relation, excl *Package) bool {
	for _, link := range r.Links() {
		for _, c := range t.FindAll(link.Name, link.Range) {
			if !c.Equal(excl) {
				return true
			}
		}
	}
	return false
}

// stackEntry is one frame of the resolver's LIFO walk: pkg is nil for
// the virtual root.
type stackEntry struct {
	pkg  *Package
	rels []*Relation
}

// MinimalSubset computes the transitive closure over Requires edges
// rooted at every mandatory package plus a virtual root owning roots
// (spec.md §4.6). When shield is non-nil, its packages satisfy
// relations but are never pulled into the result, and the shield's own
// unresolved relations (computed against shield alone) are offered a
// chance to resolve against this index in the same pass, keeping the
// shield self-consistent per step 1 of the algorithm.
func (t *PackagesTree) MinimalSubset(shield *Index, roots []*Relation) (resolved map[*Package]struct{}, unresolved []*Relation) {
	allRoots := roots
	if shield != nil {
		shieldTree := &PackagesTree{Index: shield}
		allRoots = append(append([]*Relation{}, roots...), shieldTree.UnresolvedDepends(nil)...)
	}

	resolved = make(map[*Package]struct{})
	visited := make(map[*Package]struct{})
	unresolvedSet := newRelationSet(nil)

	stack := []stackEntry{{pkg: nil, rels: allRoots}}
	for _, p := range t.All() {
		if p.Mandatory {
			if _, ok := visited[p]; !ok {
				visited[p] = struct{}{}
				stack = append(stack, stackEntry{pkg: p, rels: p.Requires})
			}
		}
	}

	for len(stack) > 0 {
		entry := stack[len(stack)-1]
		stack = stack[:len(stack)-1]
		if entry.pkg != nil {
			resolved[entry.pkg] = struct{}{}
		}

		for _, r := range entry.rels {
			satisfied := false
			for _, link := range r.Links() {
				if shield != nil {
					if _, ok := shield.Find(link.Name, link.Range); ok {
						satisfied = true
						break
					}
				}
				var fresh []*Package
				for _, c := range t.FindAll(link.Name, link.Range) {
					if entry.pkg != nil && c.Equal(entry.pkg) {
						continue
					}
					fresh = append(fresh, c)
				}
				if len(fresh) > 0 {
					for _, c := range fresh {
						if _, ok := visited[c]; !ok {
							visited[c] = struct{}{}
							stack = append(stack, stackEntry{pkg: c, rels: c.Requires})
						}
					}
					satisfied = true
					break
				}
			}
			if !satisfied {
				unresolvedSet.add(r)
			}
		}
	}

	return resolved, unresolvedSet.list()
}

// relationSet dedups Relations by their full alternative-chain key
// (spec.md §9).
type relationSet struct {
	m map[string]*Relation
}

func newRelationSet(seed []*Relation) *relationSet {
	s := &relationSet{m: make(map[string]*Relation)}
	for _, r := range seed {
		s.add(r)
	}
	return s
}

func (s *relationSet) add(r *Relation) {
	if r == nil {
		return
	}
	s.m[r.Key()] = r
}

func (s *relationSet) list() []*Relation {
	out := make([]*Relation, 0, len(s.m))
	for _, r := range s.m {
		out = append(out, r)
	}
	return out
}

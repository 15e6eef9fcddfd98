// Copyright (c) 2018-2024, NVIDIA CORPORATION. All rights reserved.
package pkgidx_test

import (
	. "github.com/onsi/ginkgo"
	. "github.com/onsi/gomega"

	"github.com/packetary-go/pkgmirror/internal/pkgidx"
	"github.com/packetary-go/pkgmirror/internal/version"
)

func req(name string) *pkgidx.Relation {
	return &pkgidx.Relation{Name: name, Range: version.Any()}
}

func names(pkgs map[*pkgidx.Package]struct{}) []string {
	var out []string
	for p := range pkgs {
		out = append(out, p.Name)
	}
	return out
}

var _ = Describe("PackagesTree.MinimalSubset", func() {
	It("resolves with a shield (scenario 1)", func() {
		tree := pkgidx.NewPackagesTree()
		p1 := pkg("p1", "1")
		p2 := pkg("p2", "1")
		p2.Requires = []*pkgidx.Relation{req("p1")}
		p4 := pkg("p4", "1")
		p3 := pkg("p3", "1")
		p3.Requires = []*pkgidx.Relation{req("p1"), req("p4")}
		tree.Add(p1)
		tree.Add(p2)
		tree.Add(p3)
		tree.Add(p4)

		shield := pkgidx.NewIndex()
		sp1 := pkg("p1", "1")
		shield.Add(sp1)
		sp5 := pkg("p5", "1")
		sp5.Requires = []*pkgidx.Relation{{Name: "p10", Range: version.Any(), Alternative: req("p4")}}
		shield.Add(sp5)

		resolved, unresolved := tree.MinimalSubset(shield, []*pkgidx.Relation{req("p3")})

		Expect(names(resolved)).To(ConsistOf("p3", "p4"))
		Expect(unresolved).To(BeEmpty())
	})

	It("reports an unresolved bootstrap relation (scenario 2)", func() {
		tree := pkgidx.NewPackagesTree()
		tree.Add(pkg("p1", "1"))

		resolved, unresolved := tree.MinimalSubset(nil, []*pkgidx.Relation{req("p10")})

		Expect(resolved).To(BeEmpty())
		Expect(unresolved).To(HaveLen(1))
		Expect(unresolved[0].Name).To(Equal("p10"))
	})

	It("always includes mandatory packages regardless of roots", func() {
		tree := pkgidx.NewPackagesTree()
		mand := pkg("always-on", "1")
		mand.Mandatory = true
		tree.Add(mand)
		tree.Add(pkg("unrelated", "1"))

		resolved, _ := tree.MinimalSubset(nil, nil)

		Expect(names(resolved)).To(ContainElement("always-on"))
		Expect(names(resolved)).NotTo(ContainElement("unrelated"))
	})

	It("leaves a relation unresolved when only provides entries name it", func() {
		tree := pkgidx.NewPackagesTree()
		implA := pkg("impl-a", "1")
		implA.Provides = []*pkgidx.Relation{{Name: "cap", Range: version.Any()}}
		implB := pkg("impl-b", "1")
		implB.Provides = []*pkgidx.Relation{{Name: "cap", Range: version.Any()}}
		root := pkg("root", "1")
		root.Requires = []*pkgidx.Relation{req("cap")}
		tree.Add(implA)
		tree.Add(implB)
		tree.Add(root)

		// direct FindAll("cap", ...) yields nothing (cap is only provided,
		// never a real package name) -- minimal_subset only resolves a
		// relation via direct FindAll matches or the shield, per spec.md
		// §4.6 step 4, so "cap" alone is expected to stay unresolved here.
		_, unresolved := tree.MinimalSubset(nil, []*pkgidx.Relation{req("root")})
		Expect(unresolved).To(HaveLen(1))
		Expect(unresolved[0].Name).To(Equal("cap"))
	})
})

var _ = Describe("PackagesTree.UnresolvedDepends", func() {
	It("flags relations nothing in the index can satisfy", func() {
		tree := pkgidx.NewPackagesTree()
		p := pkg("needs-x", "1")
		p.Requires = []*pkgidx.Relation{req("missing")}
		tree.Add(p)

		out := tree.UnresolvedDepends(nil)
		Expect(out).To(HaveLen(1))
		Expect(out[0].Name).To(Equal("missing"))
	})

	It("does not flag a relation satisfied by another package", func() {
		tree := pkgidx.NewPackagesTree()
		dep := pkg("dep", "1")
		p := pkg("needs-dep", "1")
		p.Requires = []*pkgidx.Relation{req("dep")}
		tree.Add(dep)
		tree.Add(p)

		Expect(tree.UnresolvedDepends(nil)).To(BeEmpty())
	})
})

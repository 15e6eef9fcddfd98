// Copyright (c) 2018-2024, NVIDIA CORPORATION. All rights reserved.
package pkgidx_test

import (
	. "github.com/onsi/ginkgo"
	. "github.com/onsi/gomega"

	"github.com/packetary-go/pkgmirror/internal/pkgidx"
	"github.com/packetary-go/pkgmirror/internal/version"
)

func pkg(name, ver string) *pkgidx.Package {
	return &pkgidx.Package{Name: name, Version: version.ParseDebian(ver), Filesize: -1}
}

var _ = Describe("Index", func() {
	var idx *pkgidx.Index

	BeforeEach(func() {
		idx = pkgidx.NewIndex()
	})

	It("returns the newest version by default (scenario 3)", func() {
		idx.Add(pkg("p", "1"))
		idx.Add(pkg("p", "2"))

		found, ok := idx.Find("p", version.Any())
		Expect(ok).To(BeTrue())
		Expect(found.Version.String()).To(Equal("2"))
	})

	It("never forgets a package added earlier (insertion monotonicity)", func() {
		idx.Add(pkg("p", "1"))
		_, ok := idx.Find("p", version.Eq(version.ParseDebian("1")))
		Expect(ok).To(BeTrue())

		idx.Add(pkg("p", "2"))
		_, ok = idx.Find("p", version.Eq(version.ParseDebian("1")))
		Expect(ok).To(BeTrue(), "adding p@2 must not make p@1 unreachable")
	})

	It("finds all direct matches under a range", func() {
		idx.Add(pkg("p", "1"))
		idx.Add(pkg("p", "2"))
		idx.Add(pkg("p", "3"))

		all := idx.FindAll("p", version.Range{Op: version.OpGE, Value: version.ParseDebian("2")})
		Expect(all).To(HaveLen(2))
		for _, p := range all {
			Expect(p.Name).To(Equal("p"))
			Expect(version.HasIntersection(
				version.Range{Op: version.OpGE, Value: version.ParseDebian("2")},
				version.Eq(p.Version),
			)).To(BeTrue())
		}
	})

	It("falls back to obsoletes when no direct package exists", func() {
		newer := pkg("old-name", "2")
		newer.Obsoletes = []*pkgidx.Relation{{Name: "legacy", Range: version.Range{Op: version.OpLE, Value: version.ParseDebian("1")}}}
		idx.Add(newer)

		found, ok := idx.Find("legacy", version.Eq(version.ParseDebian("1")))
		Expect(ok).To(BeTrue())
		Expect(found.Name).To(Equal("old-name"))
	})

	It("falls back to provides only after obsoletes misses", func() {
		p := pkg("impl", "1")
		p.Provides = []*pkgidx.Relation{{Name: "virtual", Range: version.Any()}}
		idx.Add(p)

		found, ok := idx.Find("virtual", version.Any())
		Expect(ok).To(BeTrue())
		Expect(found.Name).To(Equal("impl"))
	})
})

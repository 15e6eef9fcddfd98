// Package manager implements the Repository Manager state machine
// (spec.md §4.7): DISCOVER → PARSE → RESOLVE → CLONE → COPY → REBUILD,
// each transition fenced by a completed Async Section.
/*
 * Copyright (c) 2018-2024, NVIDIA CORPORATION. All rights reserved.
 */
package manager

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"

	pkgerrors "github.com/pkg/errors"

	"github.com/packetary-go/pkgmirror/cmn/nlog"
	"github.com/packetary-go/pkgmirror/internal/driver"
	"github.com/packetary-go/pkgmirror/internal/metrics"
	"github.com/packetary-go/pkgmirror/internal/pkgidx"
	"github.com/packetary-go/pkgmirror/internal/transport"
	"github.com/packetary-go/pkgmirror/internal/xsection"
)

// Request is one mirror or resolution operation's full input (spec.md
// §4.7 "get_packages(origin, shield?, bootstrap?)",
// "clone_repositories(origin, destination, shield?, bootstrap?,
// keep_existing)").
type Request struct {
	DriverName   string
	Origin       []string
	Arch         pkgidx.Arch
	Shield       []string
	Bootstrap    []*pkgidx.Relation
	Destination  string
	KeepExisting bool
	DryRun       bool
}

// Manager drives the state machine over a fixed thread/connection/error
// budget (spec.md §5).
type Manager struct {
	pool         *transport.Pool
	threadCount  int
	errorsBudget int
	metrics      *metrics.Collector
}

func New(pool *transport.Pool, threadCount, errorsBudget int) *Manager {
	return &Manager{pool: pool, threadCount: threadCount, errorsBudget: errorsBudget}
}

// WithMetrics attaches a Collector that CloneRepositories reports copy
// progress to; m is returned for chaining. A nil collector (the
// default) makes every report a no-op.
func (m *Manager) WithMetrics(c *metrics.Collector) *Manager {
	m.metrics = c
	return m
}

// discover+parse builds a Package Index from every (parsed_url, driver)
// pair, one repository per worker task inside a fail-fast Async Section
// (spec.md §4.7 "metadata parse failures are fatal to the operation").
func (m *Manager) discoverAndParse(ctx context.Context, drv driver.Driver, origin []string, arch pkgidx.Arch) (*pkgidx.Index, error) {
	pus, err := drv.ParseURLs(origin)
	if err != nil {
		return nil, pkgerrors.Wrap(err, "discover")
	}

	idx := pkgidx.NewIndex()
	sec := xsection.New(m.threadCount, 0)
	sec.Enter()

	for _, pu := range pus {
		if ctx.Err() != nil {
			sec.Drain()
			break
		}
		pu := pu
		sec.Execute(func() error {
			var repo *pkgidx.Repository
			if err := drv.GetRepository(ctx, pu, arch, func(r *pkgidx.Repository) error {
				repo = r
				return nil
			}); err != nil {
				return pkgerrors.Wrapf(err, "get_repository %s", pu.Base)
			}
			return drv.GetPackages(ctx, repo, func(p *pkgidx.Package) error {
				idx.Add(p)
				return nil
			})
		})
	}

	if err := sec.Exit(); err != nil {
		return nil, pkgerrors.Wrap(err, "parse")
	}
	return idx, nil
}

// loadShield is discoverAndParse against the --requires origin, used
// only as a reverse-depends source (spec.md GLOSSARY "Shield").
func (m *Manager) loadShield(ctx context.Context, drv driver.Driver, shieldURLs []string, arch pkgidx.Arch) (*pkgidx.Index, error) {
	if len(shieldURLs) == 0 {
		return nil, nil
	}
	return m.discoverAndParse(ctx, drv, shieldURLs, arch)
}

// GetPackages returns the effective package set for req: the full
// origin index, or the minimal subset closure when a shield or
// bootstrap was given (spec.md §4.7).
func (m *Manager) GetPackages(ctx context.Context, req Request) (packages []*pkgidx.Package, unresolved []*pkgidx.Relation, err error) {
	drv, err := driver.New(req.DriverName, m.pool)
	if err != nil {
		return nil, nil, err
	}

	idx, err := m.discoverAndParse(ctx, drv, req.Origin, req.Arch)
	if err != nil {
		return nil, nil, err
	}

	if len(req.Shield) == 0 && len(req.Bootstrap) == 0 {
		return idx.All(), nil, nil
	}

	shield, err := m.loadShield(ctx, drv, req.Shield, req.Arch)
	if err != nil {
		return nil, nil, err
	}

	tree := &pkgidx.PackagesTree{Index: idx}
	resolved, unresolvedRels := tree.MinimalSubset(shield, req.Bootstrap)
	packages = make([]*pkgidx.Package, 0, len(resolved))
	for p := range resolved {
		packages = append(packages, p)
	}
	if len(unresolvedRels) > 0 {
		nlog.Warningf("%d relation(s) could not be resolved", len(unresolvedRels))
	}
	return packages, unresolvedRels, nil
}

// GetUnresolvedDepends reports every Relation in the origin index that
// no package (in the index) satisfies (spec.md §4.7).
func (m *Manager) GetUnresolvedDepends(ctx context.Context, req Request) ([]*pkgidx.Relation, error) {
	drv, err := driver.New(req.DriverName, m.pool)
	if err != nil {
		return nil, err
	}
	idx, err := m.discoverAndParse(ctx, drv, req.Origin, req.Arch)
	if err != nil {
		return nil, err
	}
	tree := &pkgidx.PackagesTree{Index: idx}
	return tree.UnresolvedDepends(nil), nil
}

// CopyStatistics counts the selected packages (Total) and those copied
// and checksum-verified (Copied). CloneRepositories adds to Copied once
// per repository group, after that group's COPY section ends, not per
// file; it returns the statistics on its error paths too, so partial
// progress can still be printed.
type CopyStatistics struct {
	Total  int
	Copied int
}

func (s CopyStatistics) String() string {
	return fmt.Sprintf("Packages processed: %d/%d", s.Copied, s.Total)
}

// repoGroup is one Repository's share of the resolved package set,
// carried through CLONE/COPY/REBUILD together since those three
// transitions operate per-component (spec.md §4.4, §4.7).
type repoGroup struct {
	repo     *pkgidx.Repository
	packages []*pkgidx.Package
}

func groupByRepository(packages []*pkgidx.Package) []*repoGroup {
	order := make([]*pkgidx.Repository, 0)
	byRepo := make(map[*pkgidx.Repository]*repoGroup)
	for _, p := range packages {
		g, ok := byRepo[p.Repo]
		if !ok {
			g = &repoGroup{repo: p.Repo}
			byRepo[p.Repo] = g
			order = append(order, p.Repo)
		}
		g.packages = append(g.packages, p)
	}
	out := make([]*repoGroup, 0, len(order))
	for _, r := range order {
		out = append(out, byRepo[r])
	}
	return out
}

// CloneRepositories is the CLONE→COPY→REBUILD leg of spec.md §4.7's
// "clone_repositories(origin, destination, shield?, bootstrap?,
// keep_existing)": it resolves req exactly as GetPackages does, then
// for every touched (suite, component)/repository lays down the
// on-disk skeleton, copies every package file under a bounded,
// error-budgeted Async Section (individual copy failures count
// against the budget rather than aborting the run), reconciles
// against whatever AssignPackages finds already on disk, and finally
// asks the Driver to rewrite that component's index. Metadata parse
// failures (DISCOVER/PARSE/RESOLVE) remain fatal; only COPY tolerates
// partial failure.
func (m *Manager) CloneRepositories(ctx context.Context, req Request) (CopyStatistics, []*pkgidx.Relation, error) {
	var stats CopyStatistics

	drv, err := driver.New(req.DriverName, m.pool)
	if err != nil {
		return stats, nil, err
	}

	packages, unresolved, err := m.GetPackages(ctx, req)
	if err != nil {
		return stats, nil, err
	}
	stats.Total = len(packages)
	m.metrics.AddPackagesTotal(len(packages))

	for _, g := range groupByRepository(packages) {
		if g.repo == nil {
			continue
		}

		if req.DryRun {
			succeeded, _ := m.copyGroup(ctx, nil, g, true)
			stats.Copied += len(succeeded)
			continue
		}

		mr, err := drv.CloneRepository(ctx, g.repo, req.Destination, g.repo.Architecture == pkgidx.ArchSource, false)
		if err != nil {
			return stats, unresolved, pkgerrors.Wrapf(err, "clone_repository %v", g.repo.Name)
		}

		succeeded, copyErr := m.copyGroup(ctx, mr, g, false)
		stats.Copied += len(succeeded)
		if copyErr != nil {
			return stats, unresolved, copyErr
		}

		final, err := drv.AssignPackages(ctx, mr, succeeded, req.KeepExisting)
		if err != nil {
			return stats, unresolved, pkgerrors.Wrapf(err, "assign_packages %v", g.repo.Name)
		}
		if err := drv.RebuildRepository(ctx, mr, final); err != nil {
			return stats, unresolved, pkgerrors.Wrapf(err, "rebuild_repository %v", g.repo.Name)
		}
	}

	return stats, unresolved, nil
}

// copyGroup downloads every package in g under a fresh Async Section
// scoped to this component, so one component's failures don't starve
// another's worker slots (spec.md §4.7, §5), and returns only the
// packages that are actually present and checksum-verified on disk
// afterward - callers must feed this subset, not g.packages, to
// AssignPackages/RebuildRepository so a tolerated copy failure never
// causes the rebuilt index to advertise a file that never arrived.
func (m *Manager) copyGroup(ctx context.Context, mr *driver.MirrorRepository, g *repoGroup, dryRun bool) ([]*pkgidx.Package, error) {
	if dryRun {
		return g.packages, nil
	}

	sec := xsection.New(m.threadCount, m.errorsBudget)
	sec.Enter()

	var mu sync.Mutex
	succeeded := make([]*pkgidx.Package, 0, len(g.packages))
	for _, p := range g.packages {
		if ctx.Err() != nil {
			sec.Drain()
			break
		}
		p := p
		if p.Filename == "" {
			// no file named for this package (e.g. a virtual/metapackage
			// record): nothing to copy, so it trivially succeeds.
			mu.Lock()
			succeeded = append(succeeded, p)
			mu.Unlock()
			continue
		}
		sec.Execute(func() error {
			src := strings.TrimSuffix(g.repo.URL, "/") + "/" + p.Filename
			dst := filepath.Join(mr.Root, filepath.FromSlash(p.Filename))
			if err := os.MkdirAll(filepath.Dir(dst), 0o755); err != nil {
				return err
			}
			_, got, err := m.pool.Retrieve(ctx, src, dst, p.Filesize)
			if err != nil {
				return pkgerrors.Wrapf(err, "retrieve %s", p.Filename)
			}
			if !p.Checksum.Empty() && !got.Equal(p.Checksum) {
				return pkgerrors.Errorf("checksum mismatch for %s: got %s, want %s", p.Filename, got, p.Checksum)
			}
			mu.Lock()
			succeeded = append(succeeded, p)
			mu.Unlock()
			m.metrics.AddPackageCopied(p.Filesize)
			return nil
		})
	}

	err := sec.Exit()
	if err != nil {
		m.metrics.AddSectionError()
	}
	return succeeded, err
}

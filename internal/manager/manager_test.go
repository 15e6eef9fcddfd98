// Copyright (c) 2018-2024, NVIDIA CORPORATION. All rights reserved.
package manager_test

import (
	"bytes"
	"compress/gzip"
	"context"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	_ "github.com/packetary-go/pkgmirror/internal/driver/deb"
	"github.com/packetary-go/pkgmirror/internal/manager"
	"github.com/packetary-go/pkgmirror/internal/pkgidx"
	"github.com/packetary-go/pkgmirror/internal/transport"
)

func gzipBytes(t *testing.T, s string) []byte {
	t.Helper()
	var buf bytes.Buffer
	gw := gzip.NewWriter(&buf)
	_, err := gw.Write([]byte(s))
	require.NoError(t, err)
	require.NoError(t, gw.Close())
	return buf.Bytes()
}

// newMirrorServer serves a two-package deb822 repository plus the
// pool files foo and bar actually reference, so CloneRepositories can
// exercise the full DISCOVER..REBUILD pipeline against real HTTP.
func newMirrorServer(t *testing.T) *httptest.Server {
	t.Helper()
	const release = "Origin: Testorg\nSuite: stable\n"
	const packages = "Package: foo\n" +
		"Version: 1.2-1\n" +
		"Priority: required\n" +
		"Depends: libc6 (>= 2.0)\n" +
		"Filename: pool/main/f/foo/foo_1.2-1_amd64.deb\n" +
		"Size: 1024\n" +
		"\n" +
		"Package: bar\n" +
		"Version: 0.9\n" +
		"Depends: foo (>= 1.0)\n" +
		"Filename: pool/main/b/bar/bar_0.9_amd64.deb\n" +
		"Size: 512\n" +
		"\n"

	mux := http.NewServeMux()
	mux.HandleFunc("/dists/stable/Release", func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(release))
	})
	mux.HandleFunc("/dists/stable/main/binary-amd64/Packages.gz", func(w http.ResponseWriter, r *http.Request) {
		w.Write(gzipBytes(t, packages))
	})
	mux.HandleFunc("/pool/main/f/foo/foo_1.2-1_amd64.deb", func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("fake foo binary"))
	})
	mux.HandleFunc("/pool/main/b/bar/bar_0.9_amd64.deb", func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("fake bar binary"))
	})
	return httptest.NewServer(mux)
}

func newManager(t *testing.T) *manager.Manager {
	t.Helper()
	pool := transport.New(2, transport.Opts{Retries: 1})
	return manager.New(pool, 2, 0)
}

func originLine(srv *httptest.Server) []string {
	return []string{srv.URL + " stable main"}
}

func TestGetPackagesReturnsFullOriginWithoutShieldOrBootstrap(t *testing.T) {
	srv := newMirrorServer(t)
	defer srv.Close()

	m := newManager(t)
	req := manager.Request{DriverName: "deb", Origin: originLine(srv), Arch: pkgidx.ArchX86_64}

	packages, unresolved, err := m.GetPackages(context.Background(), req)
	require.NoError(t, err)
	require.Empty(t, unresolved)
	require.Len(t, packages, 2)
}

func TestGetPackagesWithBootstrapReturnsOnlyTransitiveClosure(t *testing.T) {
	srv := newMirrorServer(t)
	defer srv.Close()

	m := newManager(t)
	req := manager.Request{
		DriverName: "deb",
		Origin:     originLine(srv),
		Arch:       pkgidx.ArchX86_64,
		Bootstrap:  []*pkgidx.Relation{{Name: "bar"}},
	}

	packages, unresolved, err := m.GetPackages(context.Background(), req)
	require.NoError(t, err)
	require.Empty(t, unresolved)

	names := make(map[string]bool)
	for _, p := range packages {
		names[p.Name] = true
	}
	require.True(t, names["bar"])
	require.True(t, names["foo"]) // pulled in transitively by bar's Depends
}

func TestGetUnresolvedDependsReportsUnsatisfiedRelations(t *testing.T) {
	srv := newMirrorServer(t)
	defer srv.Close()

	m := newManager(t)
	req := manager.Request{DriverName: "deb", Origin: originLine(srv), Arch: pkgidx.ArchX86_64}

	unresolved, err := m.GetUnresolvedDepends(context.Background(), req)
	require.NoError(t, err)
	require.Len(t, unresolved, 1)
	require.Equal(t, "libc6", unresolved[0].Name)
}

func TestCloneRepositoriesCopiesFilesAndRebuildsIndex(t *testing.T) {
	srv := newMirrorServer(t)
	defer srv.Close()

	m := newManager(t)
	dest := t.TempDir()
	req := manager.Request{
		DriverName:  "deb",
		Origin:      originLine(srv),
		Arch:        pkgidx.ArchX86_64,
		Destination: dest,
	}

	stats, unresolved, err := m.CloneRepositories(context.Background(), req)
	require.NoError(t, err)
	require.Empty(t, unresolved)
	require.Equal(t, 2, stats.Total)
	require.Equal(t, 2, stats.Copied)

	require.FileExists(t, filepath.Join(dest, "pool/main/f/foo/foo_1.2-1_amd64.deb"))
	require.FileExists(t, filepath.Join(dest, "pool/main/b/bar/bar_0.9_amd64.deb"))

	index, err := os.ReadFile(filepath.Join(dest, "dists", "stable", "main", "binary-amd64", "Packages"))
	require.NoError(t, err)
	require.Contains(t, string(index), "Package: foo")
	require.Contains(t, string(index), "Package: bar")
}

func TestCloneRepositoriesDryRunSkipsNetworkAndFilesystemWrites(t *testing.T) {
	srv := newMirrorServer(t)
	defer srv.Close()

	m := newManager(t)
	dest := t.TempDir()
	req := manager.Request{
		DriverName:  "deb",
		Origin:      originLine(srv),
		Arch:        pkgidx.ArchX86_64,
		Destination: dest,
		DryRun:      true,
	}

	stats, _, err := m.CloneRepositories(context.Background(), req)
	require.NoError(t, err)
	require.Equal(t, 2, stats.Total)
	require.Equal(t, 2, stats.Copied)

	require.NoFileExists(t, filepath.Join(dest, "pool/main/f/foo/foo_1.2-1_amd64.deb"))
	require.NoDirExists(t, filepath.Join(dest, "dists"))
}

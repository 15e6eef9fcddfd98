// Copyright (c) 2018-2024, NVIDIA CORPORATION. All rights reserved.
package deb

import (
	"bytes"
	"compress/gzip"
	"context"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/packetary-go/pkgmirror/internal/driver"
	"github.com/packetary-go/pkgmirror/internal/pkgidx"
	"github.com/packetary-go/pkgmirror/internal/transport"
)

func TestArchRoundTrip(t *testing.T) {
	for _, a := range []pkgidx.Arch{pkgidx.ArchX86_64, pkgidx.ArchI386, pkgidx.ArchSource} {
		s, err := archToDeb(a)
		require.NoError(t, err)
		got, err := archFromDeb(s)
		require.NoError(t, err)
		require.Equal(t, a, got)
	}
}

func TestParseParagraphsFoldsContinuationLines(t *testing.T) {
	const text = "Package: foo\n" +
		"Description: first line\n" +
		" continued line\n" +
		"\n" +
		"Package: bar\n"
	paras, err := parseParagraphs(strings.NewReader(text))
	require.NoError(t, err)
	require.Len(t, paras, 2)
	require.Equal(t, "foo", paras[0]["Package"])
	require.Equal(t, "first line\ncontinued line", paras[0]["Description"])
	require.Equal(t, "bar", paras[1]["Package"])
}

func TestParseRelationFieldAlternativesAndQualifiers(t *testing.T) {
	rels := parseRelationField("foo (>= 1.0) | bar, baz [amd64]")
	require.Len(t, rels, 2)

	require.Equal(t, "foo", rels[0].Name)
	require.NotNil(t, rels[0].Alternative)
	require.Equal(t, "bar", rels[0].Alternative.Name)
	require.Nil(t, rels[0].Alternative.Alternative)

	require.Equal(t, "baz", rels[1].Name)
	require.Nil(t, rels[1].Alternative)
}

func TestDriverParseURLs(t *testing.T) {
	drv := &Driver{}
	pus, err := drv.ParseURLs([]string{
		"http://archive.example.com/debian/ stable main contrib",
		"http://mirror.example.com/ubuntu/dists/ jammy universe",
	})
	require.NoError(t, err)
	require.Equal(t, []driver.ParsedURL{
		{Base: "http://archive.example.com/debian", Suite: "stable", Component: "main"},
		{Base: "http://archive.example.com/debian", Suite: "stable", Component: "contrib"},
		{Base: "http://mirror.example.com/ubuntu", Suite: "jammy", Component: "universe"},
	}, pus)
}

func TestDriverParseURLsRejectsShortLines(t *testing.T) {
	drv := &Driver{}
	_, err := drv.ParseURLs([]string{"http://example.com/debian stable"})
	require.Error(t, err)
}

func gzipBytes(t *testing.T, s string) []byte {
	t.Helper()
	var buf bytes.Buffer
	gw := gzip.NewWriter(&buf)
	_, err := gw.Write([]byte(s))
	require.NoError(t, err)
	require.NoError(t, gw.Close())
	return buf.Bytes()
}

func newTestServer(t *testing.T) *httptest.Server {
	t.Helper()
	const release = "Origin: Testorg\nSuite: stable\n"
	const packages = "Package: foo\n" +
		"Version: 1.2-1\n" +
		"Priority: required\n" +
		"Depends: libc6 (>= 2.0)\n" +
		"Filename: pool/main/f/foo/foo_1.2-1_amd64.deb\n" +
		"Size: 1024\n" +
		"MD5sum: d41d8cd98f00b204e9800998ecf8427e\n" +
		"\n" +
		"Package: bar\n" +
		"Version: 0.9\n" +
		"Provides: foo-compat\n" +
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
	return httptest.NewServer(mux)
}

func TestDriverGetRepositoryAndGetPackages(t *testing.T) {
	srv := newTestServer(t)
	defer srv.Close()

	pool := transport.New(2, transport.Opts{Retries: 1})
	drv := &Driver{pool: pool}

	pu := driver.ParsedURL{Base: srv.URL, Suite: "stable", Component: "main"}

	var repo *pkgidx.Repository
	err := drv.GetRepository(context.Background(), pu, pkgidx.ArchX86_64, func(r *pkgidx.Repository) error {
		repo = r
		return nil
	})
	require.NoError(t, err)
	require.Equal(t, "Testorg", repo.Origin)
	require.Equal(t, [2]string{"stable", "main"}, repo.Name)

	var pkgs []*pkgidx.Package
	err = drv.GetPackages(context.Background(), repo, func(p *pkgidx.Package) error {
		pkgs = append(pkgs, p)
		return nil
	})
	require.NoError(t, err)
	require.Len(t, pkgs, 2)
	require.Equal(t, "foo", pkgs[0].Name)
	require.True(t, pkgs[0].Mandatory)
	require.Len(t, pkgs[0].Requires, 1)
	require.Equal(t, "libc6", pkgs[0].Requires[0].Name)
	require.Equal(t, "bar", pkgs[1].Name)
	require.False(t, pkgs[1].Mandatory)
	require.Len(t, pkgs[1].Provides, 1)
}

func TestDriverCloneRebuildAssignRoundTrip(t *testing.T) {
	srv := newTestServer(t)
	defer srv.Close()

	pool := transport.New(2, transport.Opts{Retries: 1})
	drv := &Driver{pool: pool}
	ctx := context.Background()

	pu := driver.ParsedURL{Base: srv.URL, Suite: "stable", Component: "main"}
	var repo *pkgidx.Repository
	require.NoError(t, drv.GetRepository(ctx, pu, pkgidx.ArchX86_64, func(r *pkgidx.Repository) error { repo = r; return nil }))

	var pkgs []*pkgidx.Package
	require.NoError(t, drv.GetPackages(ctx, repo, func(p *pkgidx.Package) error { pkgs = append(pkgs, p); return nil }))

	destRoot := t.TempDir()
	mr, err := drv.CloneRepository(ctx, repo, destRoot, false, false)
	require.NoError(t, err)

	assigned, err := drv.AssignPackages(ctx, mr, pkgs, false)
	require.NoError(t, err)
	require.Len(t, assigned, 2)

	require.NoError(t, drv.RebuildRepository(ctx, mr, assigned))

	compDir := filepath.Join(destRoot, "dists", "stable", "main", "binary-amd64")
	plain, err := os.ReadFile(filepath.Join(compDir, "Packages"))
	require.NoError(t, err)
	require.Contains(t, string(plain), "Package: bar")
	require.Contains(t, string(plain), "Package: foo")

	_, err = os.ReadFile(filepath.Join(compDir, "Packages.gz"))
	require.NoError(t, err)

	topRelease, err := os.ReadFile(filepath.Join(destRoot, "dists", "stable", "Release"))
	require.NoError(t, err)
	require.Contains(t, string(topRelease), "MD5Sum:")
	require.Contains(t, string(topRelease), "main/binary-amd64/Packages")
}

// Copyright (c) 2018-2024, NVIDIA CORPORATION. All rights reserved.
package deb

import (
	"bytes"
	"compress/gzip"
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"

	"github.com/packetary-go/pkgmirror/cmn/cos"
	"github.com/packetary-go/pkgmirror/cmn/nlog"
	"github.com/packetary-go/pkgmirror/internal/driver"
	"github.com/packetary-go/pkgmirror/internal/pkgidx"
	"github.com/packetary-go/pkgmirror/internal/stream"
	"github.com/packetary-go/pkgmirror/internal/transport"
	"github.com/packetary-go/pkgmirror/internal/version"
)

func init() {
	driver.Register("deb", func(pool *transport.Pool) driver.Driver { return &Driver{pool: pool} })
}

// Driver implements the deb822/APT Format Driver (spec.md §4.4.1).
type Driver struct {
	pool *transport.Pool
}

func (d *Driver) Name() string { return "deb" }

// ParseURLs splits "base suite comp1 comp2 ..." into one ParsedURL per
// component, stripping trailing "/", "/dists" or "/dists/" on base
// (spec.md §4.4).
func (d *Driver) ParseURLs(raw []string) ([]driver.ParsedURL, error) {
	var out []driver.ParsedURL
	for _, line := range raw {
		fields := strings.Fields(line)
		if len(fields) < 3 {
			return nil, &cos.ErrMalformedURL{Raw: line, Reason: `expected "base suite comp1 [comp2...]"`}
		}
		base := stripBaseSuffixes(fields[0])
		if base == "" {
			return nil, &cos.ErrMalformedURL{Raw: line, Reason: "empty base URL"}
		}
		suite := fields[1]
		for _, comp := range fields[2:] {
			out = append(out, driver.ParsedURL{Base: base, Suite: suite, Component: comp})
		}
	}
	return out, nil
}

func stripBaseSuffixes(base string) string {
	for {
		switch {
		case strings.HasSuffix(base, "/dists/"):
			base = strings.TrimSuffix(base, "/dists/")
		case strings.HasSuffix(base, "/dists"):
			base = strings.TrimSuffix(base, "/dists")
		case strings.HasSuffix(base, "/"):
			base = strings.TrimSuffix(base, "/")
		default:
			return base
		}
	}
}

func (d *Driver) releaseURL(pu driver.ParsedURL) string {
	return fmt.Sprintf("%s/dists/%s/Release", pu.Base, pu.Suite)
}

// GetRepository opens the suite's top-level Release and emits one
// Repository per (suite, component) (spec.md §4.4).
func (d *Driver) GetRepository(ctx context.Context, pu driver.ParsedURL, arch pkgidx.Arch, sink func(*pkgidx.Repository) error) error {
	rc, err := d.pool.OpenStream(ctx, d.releaseURL(pu), 0)
	if err != nil {
		return err
	}
	defer rc.Close()

	paras, err := parseParagraphs(rc)
	if err != nil {
		return err
	}
	origin := ""
	if len(paras) > 0 {
		origin = paras[0]["Origin"]
	}

	repo := &pkgidx.Repository{
		Name:         [2]string{pu.Suite, pu.Component},
		Architecture: arch,
		Origin:       origin,
		URL:          pu.Base,
	}
	return sink(repo)
}

func (d *Driver) indexBaseURL(repo *pkgidx.Repository) (string, error) {
	archName, err := archToDeb(repo.Architecture)
	if err != nil {
		return "", err
	}
	dir := "binary-" + archName
	name := "Packages"
	if repo.Architecture == pkgidx.ArchSource {
		dir = "source"
		name = "Sources"
	}
	return fmt.Sprintf("%s/dists/%s/%s/%s/%s", repo.URL, repo.Name[0], repo.Name[1], dir, name), nil
}

// GetPackages streams the component's Packages(.gz) index and emits one
// Package per deb822 stanza (spec.md §4.4).
func (d *Driver) GetPackages(ctx context.Context, repo *pkgidx.Repository, sink func(*pkgidx.Package) error) error {
	base, err := d.indexBaseURL(repo)
	if err != nil {
		return err
	}

	body, plain, err := d.openIndexPreferGz(ctx, base)
	if err != nil {
		return err
	}
	defer body.Close()

	var r io.Reader = body
	if !plain {
		gz, err := stream.NewGzipReader(body)
		if err != nil {
			return err
		}
		defer gz.Close()
		r = gz
	}

	tee := stream.NewChecksumTee(r)
	paras, err := parseParagraphs(tee)
	if err != nil {
		return err
	}
	nlog.Infof("parsed %s: %d bytes, sha256 %s", base, tee.Size(), tee.Digest().SHA256)
	for _, p := range paras {
		pkg, err := paragraphToPackage(p, repo)
		if err != nil {
			return err
		}
		if err := sink(pkg); err != nil {
			return err
		}
	}
	return nil
}

// openIndexPreferGz tries the .gz companion first and falls back to the
// plain index; the bool return reports whether the stream is already
// plain text.
func (d *Driver) openIndexPreferGz(ctx context.Context, base string) (io.ReadCloser, bool, error) {
	gz, err := d.pool.OpenStream(ctx, base+".gz", 0)
	if err == nil {
		return gz, false, nil
	}
	plain, err2 := d.pool.OpenStream(ctx, base, 0)
	if err2 == nil {
		return plain, true, nil
	}
	return nil, false, err
}

func paragraphToPackage(p paragraph, repo *pkgidx.Repository) (*pkgidx.Package, error) {
	name := p["Package"]
	if name == "" {
		return nil, &cos.ErrMalformedIndex{Repository: repo.URL, Reason: "missing Package field"}
	}
	size, _ := strconv.ParseInt(p["Size"], 10, 64)

	pkg := &pkgidx.Package{
		Name:     name,
		Version:  version.ParseDebian(p["Version"]),
		Filename: p["Filename"],
		Filesize: size,
		Checksum: cos.Cksum{MD5: p["MD5sum"], SHA1: p["SHA1"], SHA256: p["SHA256"]},
		Mandatory: mandatoryPriorities[strings.ToLower(p["Priority"])],
		Repo:      repo,
	}
	pkg.Requires = append(parseRelationField(p["Pre-Depends"]), parseRelationField(p["Depends"])...)
	pkg.Provides = parseRelationField(p["Provides"])
	pkg.Obsoletes = parseRelationField(p["Replaces"])
	return pkg, nil
}

// CloneRepository creates the on-disk skeleton for one component/arch:
// dists/<suite>/<component>/binary-<arch>/ (or source/), plus an empty
// index file and an empty Release sibling. Idempotent.
func (d *Driver) CloneRepository(_ context.Context, repo *pkgidx.Repository, destRoot string, source, _ bool) (*driver.MirrorRepository, error) {
	archName, err := archToDeb(repo.Architecture)
	if err != nil {
		return nil, err
	}
	dir := "binary-" + archName
	indexName := "Packages"
	if source || repo.Architecture == pkgidx.ArchSource {
		dir = "source"
		indexName = "Sources"
	}

	compDir := filepath.Join(destRoot, "dists", repo.Name[0], repo.Name[1], dir)
	if err := os.MkdirAll(compDir, 0o755); err != nil {
		return nil, err
	}
	for _, name := range []string{indexName, indexName + ".gz", "Release"} {
		p := filepath.Join(compDir, name)
		if _, err := os.Stat(p); os.IsNotExist(err) {
			if f, err := os.Create(p); err == nil {
				f.Close()
			} else {
				return nil, err
			}
		}
	}
	return &driver.MirrorRepository{Root: destRoot, Repo: repo}, nil
}

// RebuildRepository writes the component's index file(s) plus its
// Release sibling, then recomputes the suite's top-level Release under
// an exclusive file lock (spec.md §4.4).
func (d *Driver) RebuildRepository(_ context.Context, mr *driver.MirrorRepository, packages []*pkgidx.Package) error {
	repo := mr.Repo
	archName, err := archToDeb(repo.Architecture)
	if err != nil {
		return err
	}
	dir := "binary-" + archName
	indexName := "Packages"
	if repo.Architecture == pkgidx.ArchSource {
		dir = "source"
		indexName = "Sources"
	}
	compDir := filepath.Join(mr.Root, "dists", repo.Name[0], repo.Name[1], dir)
	if err := os.MkdirAll(compDir, 0o755); err != nil {
		return err
	}

	sort.Slice(packages, func(i, j int) bool { return packages[i].Less(packages[j]) })

	var plain bytes.Buffer
	if err := writePackagesIndex(&plain, packages); err != nil {
		return err
	}
	if err := os.WriteFile(filepath.Join(compDir, indexName), plain.Bytes(), 0o644); err != nil {
		return err
	}

	var gzd bytes.Buffer
	gw := gzip.NewWriter(&gzd)
	gw.Write(plain.Bytes())
	if err := gw.Close(); err != nil {
		return err
	}
	if err := os.WriteFile(filepath.Join(compDir, indexName+".gz"), gzd.Bytes(), 0o644); err != nil {
		return err
	}

	if err := os.WriteFile(filepath.Join(compDir, "Release"), componentReleaseContent(repo), 0o644); err != nil {
		return err
	}

	return d.rebuildTopLevelRelease(mr.Root, repo.Name[0], repo.Origin)
}

func componentReleaseContent(repo *pkgidx.Repository) []byte {
	var b strings.Builder
	fmt.Fprintf(&b, "Component: %s\n", repo.Name[1])
	fmt.Fprintf(&b, "Architecture: %s\n", repo.Architecture.String())
	return []byte(b.String())
}

// rebuildTopLevelRelease walks every already-written index file under
// dists/<suite>/ and recomputes the MD5Sum/SHA1/SHA256 sections,
// serialized by lockRelease so sibling (suite, component) rebuilds don't
// race on the same Release file (spec.md §5).
func (d *Driver) rebuildTopLevelRelease(destRoot, suite, origin string) error {
	suiteDir := filepath.Join(destRoot, "dists", suite)
	releasePath := filepath.Join(suiteDir, "Release")

	lock, err := lockRelease(releasePath)
	if err != nil {
		return err
	}
	defer lock.unlock()

	var entries []releaseEntry

	err = filepath.Walk(suiteDir, func(p string, info os.FileInfo, err error) error {
		if err != nil || info.IsDir() {
			return err
		}
		base := filepath.Base(p)
		if base != "Packages" && base != "Packages.gz" && base != "Sources" && base != "Sources.gz" {
			return nil
		}
		data, err := os.ReadFile(p)
		if err != nil {
			return err
		}
		h := cos.NewCksumHash()
		h.Write(data)
		rel, err := filepath.Rel(suiteDir, p)
		if err != nil {
			return err
		}
		entries = append(entries, releaseEntry{relPath: filepath.ToSlash(rel), size: int64(len(data)), cksum: h.Finalize()})
		return nil
	})
	if err != nil {
		return err
	}
	sort.Slice(entries, func(i, j int) bool { return entries[i].relPath < entries[j].relPath })

	var b strings.Builder
	fmt.Fprintf(&b, "Suite: %s\n", suite)
	if origin != "" {
		fmt.Fprintf(&b, "Origin: %s\n", origin)
	}
	writeHashSection(&b, "MD5Sum", entries, func(e releaseEntry) string { return e.cksum.MD5 })
	writeHashSection(&b, "SHA1", entries, func(e releaseEntry) string { return e.cksum.SHA1 })
	writeHashSection(&b, "SHA256", entries, func(e releaseEntry) string { return e.cksum.SHA256 })

	return os.WriteFile(releasePath, []byte(b.String()), 0o644)
}

// releaseEntry is one file's recorded line in a top-level Release's
// MD5Sum/SHA1/SHA256 sections.
type releaseEntry struct {
	relPath string
	size    int64
	cksum   cos.Cksum
}

func writeHashSection(b *strings.Builder, header string, entries []releaseEntry, digest func(releaseEntry) string) {
	fmt.Fprintf(b, "%s:\n", header)
	for _, e := range entries {
		fmt.Fprintf(b, " %s %d %s\n", digest(e), e.size, e.relPath)
	}
}

// AssignPackages implements spec.md §4.4 "union with on-disk packages
// when keep_existing, else remove anything not in packages".
func (d *Driver) AssignPackages(_ context.Context, mr *driver.MirrorRepository, packages []*pkgidx.Package, keepExisting bool) ([]*pkgidx.Package, error) {
	poolDir := filepath.Join(mr.Root, "pool")
	wanted := make(map[string]bool, len(packages))
	for _, p := range packages {
		wanted[p.Filename] = true
	}

	if !keepExisting {
		if err := removeUnwanted(poolDir, mr.Root, wanted); err != nil {
			return nil, err
		}
		return packages, nil
	}

	existing, err := existingFilenames(poolDir, mr.Root)
	if err != nil {
		return packages, nil //nolint:nilerr // best-effort union; absence of a pool dir is not fatal
	}
	union := append([]*pkgidx.Package{}, packages...)
	for fn := range existing {
		if !wanted[fn] {
			union = append(union, &pkgidx.Package{Filename: fn})
		}
	}
	return union, nil
}

func existingFilenames(poolDir, root string) (map[string]bool, error) {
	out := make(map[string]bool)
	err := filepath.Walk(poolDir, func(p string, info os.FileInfo, err error) error {
		if err != nil {
			return err
		}
		if info.IsDir() {
			return nil
		}
		rel, err := filepath.Rel(root, p)
		if err != nil {
			return err
		}
		out[filepath.ToSlash(rel)] = true
		return nil
	})
	return out, err
}

func removeUnwanted(poolDir, root string, wanted map[string]bool) error {
	existing, err := existingFilenames(poolDir, root)
	if err != nil {
		return nil //nolint:nilerr // nothing on disk yet is not an error
	}
	for fn := range existing {
		if !wanted[fn] {
			if err := os.Remove(filepath.Join(root, filepath.FromSlash(fn))); err != nil && !os.IsNotExist(err) {
				return err
			}
		}
	}
	return nil
}

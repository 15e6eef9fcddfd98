// Copyright (c) 2018-2024, NVIDIA CORPORATION. All rights reserved.
package yum

import (
	"context"
	"os"
	"path/filepath"
	"strings"

	"github.com/packetary-go/pkgmirror/cmn/cos"
	"github.com/packetary-go/pkgmirror/cmn/nlog"
	"github.com/packetary-go/pkgmirror/internal/driver"
	"github.com/packetary-go/pkgmirror/internal/pkgidx"
	"github.com/packetary-go/pkgmirror/internal/stream"
	"github.com/packetary-go/pkgmirror/internal/transport"
)

func init() {
	driver.Register("yum", func(pool *transport.Pool) driver.Driver { return &Driver{pool: pool} })
}

// Driver implements the yum/repomd Format Driver (spec.md §4.4.2).
type Driver struct {
	pool *transport.Pool
}

func (d *Driver) Name() string { return "yum" }

// ParseURLs turns each line, trimmed and with one trailing "/" removed,
// into one ParsedURL whose Base is the whole line; yum has no
// suite/component concept, so Suite and Component stay empty
// (spec.md §4.4: "for yum, Component is always empty").
func (d *Driver) ParseURLs(raw []string) ([]driver.ParsedURL, error) {
	var out []driver.ParsedURL
	for _, line := range raw {
		base := strings.TrimSpace(line)
		if base == "" {
			return nil, &cos.ErrMalformedURL{Raw: line, Reason: "empty repository URL"}
		}
		base = strings.TrimSuffix(base, "/")
		out = append(out, driver.ParsedURL{Base: base})
	}
	return out, nil
}

func (d *Driver) repomdURL(pu driver.ParsedURL) string {
	return pu.Base + "/repodata/repomd.xml"
}

// GetRepository fetches repodata/repomd.xml far enough to confirm it
// exists and resolve the primary data href, then emits a Repository
// handle (spec.md §4.4.2).
func (d *Driver) GetRepository(ctx context.Context, pu driver.ParsedURL, arch pkgidx.Arch, sink func(*pkgidx.Repository) error) error {
	rc, err := d.pool.OpenStream(ctx, d.repomdURL(pu), 0)
	if err != nil {
		return err
	}
	defer rc.Close()

	if _, err := parseRepomd(rc); err != nil {
		return err
	}

	repo := &pkgidx.Repository{
		Name:         [2]string{pu.Base, ""},
		Architecture: arch,
		URL:          pu.Base,
	}
	return sink(repo)
}

// GetPackages re-fetches repomd.xml to resolve the primary href (so
// GetRepository and GetPackages each hold only one stream open at a
// time), follows it, and emits one Package per <package> node with a
// matching architecture (spec.md §4.4.2, SPEC_FULL.md "architecture
// filtering at the Driver boundary").
func (d *Driver) GetPackages(ctx context.Context, repo *pkgidx.Repository, sink func(*pkgidx.Package) error) error {
	rmd, err := d.pool.OpenStream(ctx, repo.URL+"/repodata/repomd.xml", 0)
	if err != nil {
		return err
	}
	href, err := parseRepomd(rmd)
	rmd.Close()
	if err != nil {
		return err
	}

	body, err := d.pool.OpenStream(ctx, repo.URL+"/"+href, 0)
	if err != nil {
		return err
	}
	defer body.Close()

	// primary data entries are conventionally .gz (sometimes .lz4);
	// sniff the magic bytes rather than trust the href's extension.
	r, err := stream.Decompress(body)
	if err != nil {
		return &cos.ErrMalformedIndex{Repository: repo.URL, Reason: "primary metadata: " + err.Error()}
	}
	tee := stream.NewChecksumTee(r)
	pkgs, err := parsePrimary(tee)
	if err != nil {
		return err
	}
	nlog.Infof("parsed %s: %d bytes, sha256 %s", href, tee.Size(), tee.Digest().SHA256)

	wantArch, err := archToYum(repo.Architecture)
	if err != nil {
		return err
	}
	for _, x := range pkgs {
		if x.Arch != wantArch && x.Arch != "noarch" {
			continue
		}
		if err := sink(xmlToPackage(x, repo)); err != nil {
			return err
		}
	}
	return nil
}

// CloneRepository creates the single-directory skeleton yum mirrors use
// (spec.md §4.4.2 "repository skeleton is a single directory").
func (d *Driver) CloneRepository(_ context.Context, repo *pkgidx.Repository, destRoot string, _, _ bool) (*driver.MirrorRepository, error) {
	dir := filepath.Join(destRoot, sanitizeDirName(repo.URL))
	if err := os.MkdirAll(filepath.Join(dir, "repodata"), 0o755); err != nil {
		return nil, err
	}
	return &driver.MirrorRepository{Root: dir, Repo: repo}, nil
}

func sanitizeDirName(url string) string {
	s := strings.TrimPrefix(url, "https://")
	s = strings.TrimPrefix(s, "http://")
	return strings.NewReplacer("/", "_", ":", "_").Replace(s)
}

// RebuildRepository writes each package's RPM path as an empty
// placeholder (the actual bytes are fetched by the caller via
// transport.Retrieve during CLONE/COPY) under the mirror root, then
// invokes the external createrepo-equivalent tool once over the whole
// directory (spec.md §4.4.2).
func (d *Driver) RebuildRepository(ctx context.Context, mr *driver.MirrorRepository, packages []*pkgidx.Package) error {
	for _, p := range packages {
		dst := filepath.Join(mr.Root, filepath.FromSlash(p.Filename))
		if err := os.MkdirAll(filepath.Dir(dst), 0o755); err != nil {
			return err
		}
		if _, err := os.Stat(dst); os.IsNotExist(err) {
			if f, err := os.Create(dst); err == nil {
				f.Close()
			} else {
				return err
			}
		}
	}
	return runCreaterepo(ctx, mr.Root)
}

// AssignPackages implements spec.md §4.4 "union with on-disk packages
// when keep_existing, else remove anything not in packages" for the
// single-directory yum layout.
func (d *Driver) AssignPackages(_ context.Context, mr *driver.MirrorRepository, packages []*pkgidx.Package, keepExisting bool) ([]*pkgidx.Package, error) {
	wanted := make(map[string]bool, len(packages))
	for _, p := range packages {
		wanted[p.Filename] = true
	}

	existing, err := existingRPMs(mr.Root)
	if err != nil {
		return packages, nil //nolint:nilerr // best-effort; nothing on disk yet is not fatal
	}

	if !keepExisting {
		for fn := range existing {
			if !wanted[fn] {
				if err := os.Remove(filepath.Join(mr.Root, filepath.FromSlash(fn))); err != nil && !os.IsNotExist(err) {
					return nil, err
				}
			}
		}
		return packages, nil
	}

	union := append([]*pkgidx.Package{}, packages...)
	for fn := range existing {
		if !wanted[fn] {
			union = append(union, &pkgidx.Package{Filename: fn})
		}
	}
	return union, nil
}

func existingRPMs(root string) (map[string]bool, error) {
	out := make(map[string]bool)
	err := filepath.Walk(root, func(p string, info os.FileInfo, err error) error {
		if err != nil {
			return err
		}
		if info.IsDir() || !strings.HasSuffix(p, ".rpm") {
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

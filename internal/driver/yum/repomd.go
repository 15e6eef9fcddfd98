// Copyright (c) 2018-2024, NVIDIA CORPORATION. All rights reserved.
package yum

import (
	"encoding/xml"
	"io"

	"github.com/packetary-go/pkgmirror/cmn/cos"
	"github.com/packetary-go/pkgmirror/internal/pkgidx"
	"github.com/packetary-go/pkgmirror/internal/version"
)

// repomd mirrors the subset of repodata/repomd.xml this driver needs:
// the href of the "primary" data entry (spec.md §4.4.2).
type repomd struct {
	XMLName xml.Name    `xml:"repomd"`
	Data    []repomdRef `xml:"data"`
}

type repomdRef struct {
	Type     string `xml:"type,attr"`
	Location struct {
		Href string `xml:"href,attr"`
	} `xml:"location"`
}

// parseRepomd returns the href of the "primary" data entry.
func parseRepomd(r io.Reader) (string, error) {
	var doc repomd
	if err := xml.NewDecoder(r).Decode(&doc); err != nil {
		return "", &cos.ErrMalformedIndex{Reason: "repomd.xml decode: " + err.Error()}
	}
	for _, d := range doc.Data {
		if d.Type == "primary" {
			return d.Location.Href, nil
		}
	}
	return "", &cos.ErrMalformedIndex{Reason: "repomd.xml has no \"primary\" data entry"}
}

// primaryMetadata mirrors the subset of primary.xml this driver needs:
// one <package> node per RPM, with its version, checksum, size,
// location, and rpm:provides/requires/obsoletes entries.
type primaryMetadata struct {
	XMLName  xml.Name        `xml:"metadata"`
	Packages []primaryPkgXML `xml:"package"`
}

type primaryPkgXML struct {
	Name    string `xml:"name"`
	Arch    string `xml:"arch"`
	Version struct {
		Epoch string `xml:"epoch,attr"`
		Ver   string `xml:"ver,attr"`
		Rel   string `xml:"rel,attr"`
	} `xml:"version"`
	Checksum struct {
		Type  string `xml:"type,attr"`
		Value string `xml:",chardata"`
	} `xml:"checksum"`
	Size struct {
		Package int64 `xml:"package,attr"`
	} `xml:"size"`
	Location struct {
		Href string `xml:"href,attr"`
	} `xml:"location"`
	Format struct {
		Provides  entryList `xml:"provides"`
		Requires  entryList `xml:"requires"`
		Obsoletes entryList `xml:"obsoletes"`
	} `xml:"format"`
}

type entryList struct {
	Entries []rpmEntry `xml:"entry"`
}

type rpmEntry struct {
	Name  string `xml:"name,attr"`
	Flags string `xml:"flags,attr"`
	Ver   string `xml:"ver,attr"`
}

func parsePrimary(r io.Reader) ([]primaryPkgXML, error) {
	var doc primaryMetadata
	if err := xml.NewDecoder(r).Decode(&doc); err != nil {
		return nil, &cos.ErrMalformedIndex{Reason: "primary.xml decode: " + err.Error()}
	}
	return doc.Packages, nil
}

func rpmOpFromFlags(flags string) version.Op {
	switch flags {
	case "GT":
		return version.OpGT
	case "LT":
		return version.OpLT
	case "EQ":
		return version.OpEQ
	case "GE":
		return version.OpGE
	case "LE":
		return version.OpLE
	default:
		return version.OpNone
	}
}

func entriesToRelations(l entryList) []*pkgidx.Relation {
	var out []*pkgidx.Relation
	for _, e := range l.Entries {
		if e.Ver == "" || e.Flags == "" {
			out = append(out, &pkgidx.Relation{Name: e.Name, Range: version.Any()})
			continue
		}
		out = append(out, &pkgidx.Relation{
			Name:  e.Name,
			Range: version.Range{Op: rpmOpFromFlags(e.Flags), Value: version.ParseRPM(e.Ver)},
		})
	}
	return out
}

func xmlToPackage(x primaryPkgXML, repo *pkgidx.Repository) *pkgidx.Package {
	ver := version.RPM{Version: x.Version.Ver, Release: x.Version.Rel}
	if x.Version.Epoch != "" {
		ver = version.ParseRPM(x.Version.Epoch + ":" + x.Version.Ver + "-" + x.Version.Rel)
	}
	pkg := &pkgidx.Package{
		Name:      x.Name,
		Version:   ver,
		Filename:  x.Location.Href,
		Filesize:  x.Size.Package,
		Requires:  entriesToRelations(x.Format.Requires),
		Provides:  entriesToRelations(x.Format.Provides),
		Obsoletes: entriesToRelations(x.Format.Obsoletes),
		Repo:      repo,
	}
	switch x.Checksum.Type {
	case "sha256":
		pkg.Checksum.SHA256 = x.Checksum.Value
	case "sha1", "sha":
		pkg.Checksum.SHA1 = x.Checksum.Value
	case "md5":
		pkg.Checksum.MD5 = x.Checksum.Value
	}
	return pkg
}

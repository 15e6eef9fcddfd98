// Copyright (c) 2018-2024, NVIDIA CORPORATION. All rights reserved.
package deb

import (
	"bufio"
	"fmt"
	"io"
	"regexp"
	"strings"

	"github.com/packetary-go/pkgmirror/cmn/cos"
	"github.com/packetary-go/pkgmirror/internal/pkgidx"
	"github.com/packetary-go/pkgmirror/internal/version"
)

// paragraph is one deb822 stanza: field name -> value, continuation
// lines folded in with '\n'.
type paragraph map[string]string

// parseParagraphs reads deb822 stanzas (Release, Packages, Sources)
// separated by blank lines.
func parseParagraphs(r io.Reader) ([]paragraph, error) {
	sc := bufio.NewScanner(r)
	sc.Buffer(make([]byte, 0, 64*1024), 16*1024*1024)

	var paras []paragraph
	cur := paragraph{}
	lastKey := ""

	flush := func() {
		if len(cur) > 0 {
			paras = append(paras, cur)
			cur = paragraph{}
		}
		lastKey = ""
	}

	for sc.Scan() {
		line := sc.Text()
		if strings.TrimSpace(line) == "" {
			flush()
			continue
		}
		if (line[0] == ' ' || line[0] == '\t') && lastKey != "" {
			cur[lastKey] += "\n" + strings.TrimSpace(line)
			continue
		}
		i := strings.Index(line, ":")
		if i < 0 {
			return nil, &cos.ErrMalformedIndex{Reason: "field line missing ':'", Record: line}
		}
		key := strings.TrimSpace(line[:i])
		val := strings.TrimSpace(line[i+1:])
		cur[key] = val
		lastKey = key
	}
	flush()
	return paras, sc.Err()
}

// relationOpFromSymbol maps deb822's relation operators to the shared
// version.Op vocabulary (spec.md §4.4.1).
func relationOpFromSymbol(sym string) version.Op {
	switch sym {
	case ">>":
		return version.OpGT
	case "<<":
		return version.OpLT
	case "=":
		return version.OpEQ
	case ">=":
		return version.OpGE
	case "<=":
		return version.OpLE
	default:
		return version.OpNone
	}
}

var relHeadRe = regexp.MustCompile(`^([^\s(]+)(?:\s*\(([^)]+)\))?`)

// parseRelationField turns a Depends/Provides/Replaces-style field into
// the Relations it names; each comma-separated group becomes one
// Relation, its "|"-separated alternatives chained via Alternative.
func parseRelationField(raw string) []*pkgidx.Relation {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return nil
	}
	var out []*pkgidx.Relation
	for _, group := range strings.Split(raw, ",") {
		group = strings.TrimSpace(group)
		if group == "" {
			continue
		}
		var head, tail *pkgidx.Relation
		for _, alt := range strings.Split(group, "|") {
			r := parseOneRelation(alt)
			if r == nil {
				continue
			}
			if head == nil {
				head, tail = r, r
			} else {
				tail.Alternative = r
				tail = r
			}
		}
		if head != nil {
			out = append(out, head)
		}
	}
	return out
}

func parseOneRelation(alt string) *pkgidx.Relation {
	alt = strings.TrimSpace(alt)
	if i := strings.Index(alt, "["); i >= 0 {
		alt = strings.TrimSpace(alt[:i])
	}
	m := relHeadRe.FindStringSubmatch(alt)
	if m == nil || m[1] == "" {
		return nil
	}
	name := m[1]
	if m[2] == "" {
		return &pkgidx.Relation{Name: name, Range: version.Any()}
	}
	fields := strings.Fields(m[2])
	if len(fields) != 2 {
		return &pkgidx.Relation{Name: name, Range: version.Any()}
	}
	op := relationOpFromSymbol(fields[0])
	return &pkgidx.Relation{Name: name, Range: version.Range{Op: op, Value: version.ParseDebian(fields[1])}}
}

// writePackagesIndex serializes packages as deb822 stanzas, the inverse
// of parseParagraphs+paragraphToPackage, for RebuildRepository.
func writePackagesIndex(w io.Writer, packages []*pkgidx.Package) error {
	for _, p := range packages {
		fmt.Fprintf(w, "Package: %s\n", p.Name)
		fmt.Fprintf(w, "Version: %s\n", p.Version.String())
		if deps := relationsToField(p.Requires); deps != "" {
			fmt.Fprintf(w, "Depends: %s\n", deps)
		}
		if provides := relationsToField(p.Provides); provides != "" {
			fmt.Fprintf(w, "Provides: %s\n", provides)
		}
		if replaces := relationsToField(p.Obsoletes); replaces != "" {
			fmt.Fprintf(w, "Replaces: %s\n", replaces)
		}
		if p.Mandatory {
			fmt.Fprintf(w, "Priority: required\n")
		}
		if p.Filename != "" {
			fmt.Fprintf(w, "Filename: %s\n", p.Filename)
		}
		if p.Filesize > 0 {
			fmt.Fprintf(w, "Size: %d\n", p.Filesize)
		}
		if p.Checksum.MD5 != "" {
			fmt.Fprintf(w, "MD5sum: %s\n", p.Checksum.MD5)
		}
		if p.Checksum.SHA1 != "" {
			fmt.Fprintf(w, "SHA1: %s\n", p.Checksum.SHA1)
		}
		if p.Checksum.SHA256 != "" {
			fmt.Fprintf(w, "SHA256: %s\n", p.Checksum.SHA256)
		}
		fmt.Fprint(w, "\n")
	}
	return nil
}

func relationsToField(rels []*pkgidx.Relation) string {
	groups := make([]string, 0, len(rels))
	for _, r := range rels {
		links := r.Links()
		alts := make([]string, 0, len(links))
		for _, l := range links {
			if l.Range.Op == version.OpNone {
				alts = append(alts, l.Name)
			} else {
				alts = append(alts, fmt.Sprintf("%s (%s %s)", l.Name, l.Range.Op.String(), l.Range.Value.String()))
			}
		}
		groups = append(groups, strings.Join(alts, " | "))
	}
	return strings.Join(groups, ", ")
}

// mandatoryPriorities implements spec.md §4.4.1 "packages with
// priority in {required, important, standard} are mandatory".
var mandatoryPriorities = map[string]bool{
	"required":  true,
	"important": true,
	"standard":  true,
}

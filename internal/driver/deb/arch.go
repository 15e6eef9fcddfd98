// Package deb implements the Format Driver for Debian/APT repositories
// (spec.md §4.4.1), grounded on deb822 conventions shown by the pack's
// etnz-apt-repo-builder and aptutil/mirrorctl example files.
/*
 * Copyright (c) 2018-2024, NVIDIA CORPORATION. All rights reserved.
 */
package deb

import (
	"fmt"

	"github.com/packetary-go/pkgmirror/internal/pkgidx"
)

// archToDeb / archFromDeb implement spec.md §4.4.1's architecture
// mapping: x86_64<->amd64, i386<->i386, source<->Source.
func archToDeb(a pkgidx.Arch) (string, error) {
	switch a {
	case pkgidx.ArchX86_64:
		return "amd64", nil
	case pkgidx.ArchI386:
		return "i386", nil
	case pkgidx.ArchSource:
		return "Source", nil
	default:
		return "", fmt.Errorf("deb: unsupported architecture %v", a)
	}
}

func archFromDeb(s string) (pkgidx.Arch, error) {
	switch s {
	case "amd64":
		return pkgidx.ArchX86_64, nil
	case "i386":
		return pkgidx.ArchI386, nil
	case "Source", "source":
		return pkgidx.ArchSource, nil
	default:
		return 0, fmt.Errorf("deb: unrecognized architecture %q", s)
	}
}

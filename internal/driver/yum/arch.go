// Package yum implements the Format Driver for RPM/Yum repositories
// (spec.md §4.4.2), grounded on the teacher's static-driver-registry
// idiom and the pack's repomd/createrepo conventions.
/*
 * Copyright (c) 2018-2024, NVIDIA CORPORATION. All rights reserved.
 */
package yum

import (
	"fmt"

	"github.com/packetary-go/pkgmirror/internal/pkgidx"
)

// archToYum / archFromYum implement spec.md §4.4.2's architecture
// mapping: x86_64->x86_64, i386->i386, source->src.
func archToYum(a pkgidx.Arch) (string, error) {
	switch a {
	case pkgidx.ArchX86_64:
		return "x86_64", nil
	case pkgidx.ArchI386:
		return "i386", nil
	case pkgidx.ArchSource:
		return "src", nil
	default:
		return "", fmt.Errorf("yum: unsupported architecture %v", a)
	}
}

func archFromYum(s string) (pkgidx.Arch, error) {
	switch s {
	case "x86_64":
		return pkgidx.ArchX86_64, nil
	case "i386", "i586", "i686":
		return pkgidx.ArchI386, nil
	case "src", "nosrc":
		return pkgidx.ArchSource, nil
	default:
		return 0, fmt.Errorf("yum: unrecognized architecture %q", s)
	}
}

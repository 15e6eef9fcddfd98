// Copyright (c) 2018-2024, NVIDIA CORPORATION. All rights reserved.
package main

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/packetary-go/pkgmirror/cmn/cos"
	"github.com/packetary-go/pkgmirror/internal/pkgidx"
)

func TestParseArch(t *testing.T) {
	a, err := parseArch("x86_64")
	require.NoError(t, err)
	require.Equal(t, pkgidx.ArchX86_64, a)

	a, err = parseArch("i386")
	require.NoError(t, err)
	require.Equal(t, pkgidx.ArchI386, a)

	_, err = parseArch("sparc")
	require.Error(t, err)
}

func TestClassifyExit(t *testing.T) {
	require.Equal(t, 2, classifyExit(&cos.ErrMalformedURL{Raw: "x", Reason: "bad"}))
	require.Equal(t, 1, classifyExit(&cos.ErrSectionFailed{FailedCount: 3, Budget: 1}))
}

func TestFirstNonEmpty(t *testing.T) {
	require.Equal(t, "b", firstNonEmpty("", "b", "c"))
	require.Equal(t, "", firstNonEmpty("", ""))
}

func TestVersionParserForSelectsDriverSyntax(t *testing.T) {
	debVer := versionParserFor("deb")("1:2.0-1")
	require.Equal(t, "1:2.0-1", debVer.String())

	rpmVer := versionParserFor("yum")("2:1.0-3")
	require.Equal(t, "2:1.0-3", rpmVer.String())
}

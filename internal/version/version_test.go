// Copyright (c) 2018-2024, NVIDIA CORPORATION. All rights reserved.
package version

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDebianOrdering(t *testing.T) {
	cases := []struct{ lo, hi string }{
		{"1.0", "2.0"},
		{"1:1.0", "2:0.1"},
		{"1.0~rc1", "1.0"},
		{"1.0-1", "1.0-2"},
		{"0.9", "1.0~rc1"},
	}
	for _, c := range cases {
		lo, hi := ParseDebian(c.lo), ParseDebian(c.hi)
		assert.Negative(t, lo.Compare(hi), "%s should be < %s", c.lo, c.hi)
		assert.Positive(t, hi.Compare(lo), "%s should be > %s", c.hi, c.lo)
	}
}

func TestRPMOrdering(t *testing.T) {
	cases := []struct{ lo, hi string }{
		{"1.0", "1.1"},
		{"1:1.0", "2:0.1"},
		{"1.0", "1.0a"},
		{"1.0-1", "1.0-2"},
	}
	for _, c := range cases {
		lo, hi := ParseRPM(c.lo), ParseRPM(c.hi)
		assert.Negative(t, lo.Compare(hi), "%s should be < %s", c.lo, c.hi)
	}
}

func TestHasIntersectionSymmetry(t *testing.T) {
	v := func(s string) Comparand { return ParseDebian(s) }
	ranges := []Range{
		Any(),
		{Op: OpEQ, Value: v("1.0")},
		{Op: OpLT, Value: v("1.0")},
		{Op: OpLE, Value: v("1.0")},
		{Op: OpGE, Value: v("1.0")},
		{Op: OpGT, Value: v("1.0")},
		{Op: OpGE, Value: v("2.0")},
		{Op: OpLE, Value: v("0.5")},
	}
	for _, a := range ranges {
		for _, b := range ranges {
			require.Equal(t, HasIntersection(a, b), HasIntersection(b, a),
				"has_intersection(%v,%v) must be symmetric", a, b)
		}
	}
}

func TestHasIntersectionCases(t *testing.T) {
	v := func(s string) Comparand { return ParseDebian(s) }
	assert.True(t, HasIntersection(
		Range{Op: OpGE, Value: v("1.0")},
		Range{Op: OpLE, Value: v("2.0")},
	))
	assert.False(t, HasIntersection(
		Range{Op: OpGT, Value: v("2.0")},
		Range{Op: OpLE, Value: v("2.0")},
	))
	assert.True(t, HasIntersection(
		Range{Op: OpGE, Value: v("1.0")},
		Range{Op: OpGE, Value: v("5.0")},
	))
	assert.True(t, HasIntersection(Any(), Range{Op: OpEQ, Value: v("1.0")}))
}

// Package version implements the VersionRange primitive shared by every
// format driver (spec.md §3, §4.5): a tagged operator plus a
// format-specific, opaque, orderable comparand.
/*
 * Copyright (c) 2018-2024, NVIDIA CORPORATION. All rights reserved.
 */
package version

// Op is a VersionRange's comparison operator.
type Op int

const (
	OpNone Op = iota // "any" - the range always matches
	OpLT
	OpLE
	OpEQ
	OpGE
	OpGT
)

func (o Op) String() string {
	switch o {
	case OpLT:
		return "<<"
	case OpLE:
		return "<="
	case OpEQ:
		return "="
	case OpGE:
		return ">="
	case OpGT:
		return ">>"
	default:
		return ""
	}
}

// Comparand is any format-specific orderable version value (a Debian
// version tuple or an RPM epoch-version-release triple). Compare
// returns <0, 0, >0 the same way bytes.Compare does.
type Comparand interface {
	Compare(other Comparand) int
	String() string
}

// Range is a tagged value: Op == OpNone means "any", otherwise the
// range matches a Comparand v iff `v OP Value` holds.
type Range struct {
	Op    Op
	Value Comparand
}

func Any() Range { return Range{Op: OpNone} }

func Eq(v Comparand) Range { return Range{Op: OpEQ, Value: v} }

// Matches reports whether v satisfies the range.
func (r Range) Matches(v Comparand) bool {
	if r.Op == OpNone {
		return true
	}
	c := v.Compare(r.Value)
	switch r.Op {
	case OpLT:
		return c < 0
	case OpLE:
		return c <= 0
	case OpEQ:
		return c == 0
	case OpGE:
		return c >= 0
	case OpGT:
		return c > 0
	default:
		return true
	}
}

func (r Range) String() string {
	if r.Op == OpNone {
		return ""
	}
	return r.Op.String() + " " + r.Value.String()
}

// HasIntersection is total and symmetric (spec.md §4.5, §8 "VersionRange
// symmetry"): two ranges intersect when some Comparand could satisfy
// both. Because a Comparand's total order is all the two ranges share,
// intersection is decided purely from the two operators and the
// relative order of their two bounds:
//   - either side unbounded (OpNone) => always true
//   - both bounds point the same direction (both "low" or both "high")
//     => always true: one range is a subset of (or touches) the other
//   - opposite directions => true iff the low bound does not exceed the
//     high bound, with strictness from either side narrowing a shared
//     equal boundary out
func HasIntersection(a, b Range) bool {
	if a.Op == OpNone || b.Op == OpNone {
		return true
	}
	if a.Op == OpEQ && b.Op == OpEQ {
		return a.Value.Compare(b.Value) == 0
	}
	if a.Op == OpEQ {
		return b.Matches(a.Value)
	}
	if b.Op == OpEQ {
		return a.Matches(b.Value)
	}

	aLow, aStrict := directionOf(a.Op)
	bLow, bStrict := directionOf(b.Op)
	if aLow == bLow {
		return true // same direction: always overlap somewhere in that half-line
	}

	// opposite directions: normalize to (low bound, high bound)
	lowOp, lowVal, lowStrict := a.Op, a.Value, aStrict
	highOp, highVal, highStrict := b.Op, b.Value, bStrict
	if !aLow {
		lowOp, lowVal, lowStrict = b.Op, b.Value, bStrict
		highOp, highVal, highStrict = a.Op, a.Value, aStrict
	}
	_ = lowOp
	_ = highOp

	c := lowVal.Compare(highVal)
	if c < 0 {
		return true
	}
	if c > 0 {
		return false
	}
	// equal boundary: intersects unless either side strictly excludes it
	return !lowStrict && !highStrict
}

// directionOf reports whether op bounds a Comparand from below (">="/">>")
// and whether the bound is strict (">>"/"<<").
func directionOf(op Op) (low, strict bool) {
	switch op {
	case OpGE:
		return true, false
	case OpGT:
		return true, true
	case OpLE:
		return false, false
	case OpLT:
		return false, true
	default:
		return true, false
	}
}

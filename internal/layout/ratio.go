// Package layout implements the sizing solver spec §4.11 only sketches:
// AspectRatio arithmetic and a small Step state machine that composes
// scale/crop/pad/distort operations into a final canvas/image/source-crop
// layout, without ever touching pixel data.
//
// Ported from original_source/imageflow_riapi/src/sizing.rs, keeping the
// same operation names (ScaleToInner, FillCrop, VirtualCanvas,
// CropToIntersection, ...) since the original is the sole source of the
// exact composition rules a naive scale-then-crop would get wrong.
package layout

import (
	"math"

	"github.com/imageflow/imageflow/internal/ferror"
)

// AspectRatio is both a size and the fraction it was derived from — keeping
// them together avoids off-by-one rounding drift against a target or
// original dimension (sizing.rs's own rationale for the combined type).
type AspectRatio struct {
	W, H int
}

// NewAspectRatio validates and constructs a ratio; w and h must be >= 1.
func NewAspectRatio(w, h int) (AspectRatio, error) {
	if w < 1 || h < 1 {
		return AspectRatio{}, ferror.New(ferror.KindInvalidNodeParams, "layout: invalid dimensions %dx%d", w, h)
	}
	return AspectRatio{W: w, H: h}, nil
}

func (a AspectRatio) ratio() float64 { return float64(a.W) / float64(a.H) }

// AspectWiderThan reports whether other's aspect ratio is wider than a's.
func (a AspectRatio) AspectWiderThan(other AspectRatio) bool {
	return other.ratio() > a.ratio()
}

// Transpose swaps width and height.
func (a AspectRatio) Transpose() (AspectRatio, error) {
	return NewAspectRatio(a.H, a.W)
}

// HeightFor computes, using a's own ratio, the height for a given width,
// snapping to round's height when the result lands within one unit of it
// (so "half of 101" rounds to round.H rather than float-rounding away from
// a caller-supplied target).
func (a AspectRatio) HeightFor(w int, round *AspectRatio) (int, error) {
	snapB := a.H
	if round != nil {
		snapB = round.H
	}
	return proportional(a.ratio(), true, w, a.H, snapB)
}

// WidthFor computes, using a's own ratio, the width for a given height.
func (a AspectRatio) WidthFor(h int, round *AspectRatio) (int, error) {
	snapB := a.W
	if round != nil {
		snapB = round.W
	}
	return proportional(a.ratio(), false, h, a.W, snapB)
}

func proportional(ratio float64, inverse bool, basis, snapA, snapB int) (int, error) {
	var f float64
	if inverse {
		f = float64(basis) / ratio
	} else {
		f = ratio * float64(basis)
	}

	var v int
	switch {
	case math.Abs(f-float64(snapA)) < 1:
		v = snapA
	case math.Abs(f-float64(snapB)) < 1:
		v = snapB
	default:
		rounded := math.Round(f)
		if rounded <= math.MinInt32 || rounded >= math.MaxInt32 {
			return 0, ferror.New(ferror.KindInvalidNodeParams, "layout: value scaling failed for ratio %v basis %d", ratio, basis)
		}
		v = int(rounded)
	}
	if v < 0 {
		return 0, ferror.New(ferror.KindInvalidNodeParams, "layout: value scaling produced negative result for ratio %v basis %d", ratio, basis)
	}
	if v == 0 {
		return 1, nil
	}
	return v, nil
}

// BoxKind selects whether BoxOf computes an inner (fit-within) or outer
// (fit-around) box.
type BoxKind int

const (
	BoxInner BoxKind = iota
	BoxOuter
)

// BoxOf returns a box with a's aspect ratio that fits inside (Inner) or
// around (Outer) target; exactly one dimension always matches target.
func (a AspectRatio) BoxOf(target AspectRatio, kind BoxKind) (AspectRatio, error) {
	if target.AspectWiderThan(a) == (kind == BoxInner) {
		h, err := a.HeightFor(target.W, &target)
		if err != nil {
			return AspectRatio{}, err
		}
		return NewAspectRatio(target.W, h)
	}
	w, err := a.WidthFor(target.H, &target)
	if err != nil {
		return AspectRatio{}, err
	}
	return NewAspectRatio(w, target.H)
}

// ExceedsAny reports whether a exceeds other in either dimension.
func (a AspectRatio) ExceedsAny(other AspectRatio) bool {
	return a.W > other.W || a.H > other.H
}

// ExceedsBoth reports whether a exceeds other in both dimensions.
func (a AspectRatio) ExceedsBoth(other AspectRatio) bool {
	return a.W > other.W && a.H > other.H
}

// Intersection returns the smaller of each dimension.
func (a AspectRatio) Intersection(other AspectRatio) (AspectRatio, error) {
	return NewAspectRatio(minInt(a.W, other.W), minInt(a.H, other.H))
}

// DistortWith rescales a proportionally to how oldRatio changed into
// newRatio (used to keep the "image" box in sync when the canvas is
// stretched independently of it).
func (a AspectRatio) DistortWith(oldRatio, newRatio AspectRatio) (AspectRatio, error) {
	w, err := multFraction(a.W, newRatio.W, oldRatio.W)
	if err != nil {
		return AspectRatio{}, err
	}
	h, err := multFraction(a.H, newRatio.H, oldRatio.H)
	if err != nil {
		return AspectRatio{}, err
	}
	return NewAspectRatio(w, h)
}

func multFraction(value, num, denom int) (int, error) {
	if denom == 0 {
		return 0, ferror.New(ferror.KindInvalidNodeParams, "layout: division by zero in distort_with")
	}
	return int(int64(value) * int64(num) / int64(denom)), nil
}

func minInt(a, b int) int {
	if a < b {
		return a
	}
	return b
}

// Ordering mirrors Rust's three-way comparison result, used by Cond.
type Ordering int

const (
	OrderingLess Ordering = iota - 1
	OrderingEqual
	OrderingGreater
)

func compareInt(a, b int) Ordering {
	switch {
	case a < b:
		return OrderingLess
	case a > b:
		return OrderingGreater
	default:
		return OrderingEqual
	}
}

// CmpSize compares a and other dimension-by-dimension.
func (a AspectRatio) CmpSize(other AspectRatio) (Ordering, Ordering) {
	return compareInt(a.W, other.W), compareInt(a.H, other.H)
}

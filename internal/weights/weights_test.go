package weights

import (
	"math"
	"testing"
)

var allFilters = []Filter{
	FilterBox, FilterTriangle, FilterLinear, FilterRawLanczos2, FilterRawLanczos3,
	FilterRawLanczos2Sharp, FilterRawLanczos3Sharp, FilterLanczos2, FilterLanczos,
	FilterLanczos2Sharp, FilterLanczosSharp, FilterCubicFast, FilterGinseng,
	FilterGinsengSharp, FilterJinc, FilterCubicBSpline, FilterCubic, FilterCubicSharp,
	FilterCatmullRom, FilterCatmullRomFast, FilterCatmullRomFastSharp, FilterMitchell,
	FilterMitchellFast, FilterNCubic, FilterNCubicSharp, FilterRobidoux, FilterFastest,
	FilterRobidouxFast, FilterRobidouxSharp, FilterHermite,
}

func TestWeightsSumToUnity(t *testing.T) {
	sizes := [][2]int{{100, 50}, {50, 100}, {1, 1}, {8192, 1}, {1, 8192}, {400, 400}}
	for _, f := range allFilters {
		for _, sz := range sizes {
			tbl, err := Build(f, 0, sz[0], sz[1])
			if err != nil {
				t.Fatalf("filter %d size %v: %v", f, sz, err)
			}
			for i, row := range tbl.Row {
				var sum float64
				for _, w := range row.Weights {
					sum += float64(w)
				}
				if math.Abs(sum-1.0) >= 1e-6 {
					t.Fatalf("filter %d size %v pixel %d: weights sum to %v, want ~1", f, sz, i, sum)
				}
			}
		}
	}
}

func TestWindowWidthBound(t *testing.T) {
	f := FilterRobidoux
	out, in := 50, 400
	tbl, err := Build(f, 0, out, in)
	if err != nil {
		t.Fatal(err)
	}
	d := newDetails(f, 0)
	downscale := math.Min(1.0, float64(out)/float64(in))
	bound := 2*math.Ceil((d.window+0.5)/downscale) + 1
	for i, row := range tbl.Row {
		width := float64(len(row.Weights))
		if width > bound {
			t.Fatalf("pixel %d window width %v exceeds bound %v", i, width, bound)
		}
	}
}

func TestIdentityScaleIsNearNoOp(t *testing.T) {
	tbl, err := Build(FilterRobidoux, 0, 100, 100)
	if err != nil {
		t.Fatal(err)
	}
	for i, row := range tbl.Row {
		// At 1:1 scale the center source pixel dominates: its weight must
		// be the largest in the row and its index must fall inside the
		// window, even though Robidoux's nonzero weights at the
		// neighbouring pixels keep the window from collapsing to a single
		// tap.
		if i < row.Left || i > row.Right {
			t.Fatalf("pixel %d: center index outside window [%d,%d]", i, row.Left, row.Right)
		}
		center := row.Weights[i-row.Left]
		for j, w := range row.Weights {
			if j+row.Left == i {
				continue
			}
			if w > center {
				t.Fatalf("pixel %d: off-center weight %v exceeds center weight %v", i, w, center)
			}
		}
	}
}

// Package weights builds per-axis, per-output-pixel filter weight tables
// for the resampler (spec §4.2). The algorithm is ported from
// imageflow_core/src/imaging/weights.rs (populate_weights) verbatim,
// including the 2e-8 zero-snap required for cross-platform determinism.
package weights

import "math"

// Filter selects one of the supported resampling kernels.
type Filter int

const (
	FilterBox Filter = iota
	FilterTriangle
	FilterLinear
	FilterRawLanczos2
	FilterRawLanczos3
	FilterRawLanczos2Sharp
	FilterRawLanczos3Sharp
	FilterLanczos2
	FilterLanczos
	FilterLanczos2Sharp
	FilterLanczosSharp
	FilterCubicFast
	FilterGinseng
	FilterGinsengSharp
	FilterJinc
	FilterCubicBSpline
	FilterCubic
	FilterCubicSharp
	FilterCatmullRom
	FilterCatmullRomFast
	FilterCatmullRomFastSharp
	FilterMitchell
	FilterMitchellFast
	FilterNCubic
	FilterNCubicSharp
	FilterRobidoux
	FilterFastest
	FilterRobidouxFast
	FilterRobidouxSharp
	FilterHermite
)

// kernel is the evaluated filter function: kernel(details, x) -> weight.
type kernel func(d *details, x float64) float64

// details mirrors imageflow's InterpolationDetails: window + bicubic
// coefficients + blur factor + the evaluator function.
type details struct {
	window                float64
	p1, p2, p3            float64
	q1, q2, q3, q4        float64
	blur                  float64
	fn                    kernel
	sharpenPercentGoal    float64
}

func bicubic(window, blur, b, c float64) details {
	bx2 := b + b
	return details{
		window: window, blur: blur, fn: filterFlexCubic,
		p1: 1.0 - (1.0/3.0)*b,
		p2: -3.0 + bx2 + c,
		p3: 2.0 - 1.5*b - c,
		q1: (4.0/3.0)*b + 4.0*c,
		q2: -8.0*c - bx2,
		q3: b + 5.0*c,
		q4: (-1.0/6.0)*b - c,
	}
}

// newDetails constructs the InterpolationDetails for a named filter, as
// imageflow's InterpolationDetails::create does.
func newDetails(f Filter, sharpenPercent float64) details {
	var d details
	switch f {
	case FilterTriangle, FilterLinear:
		d = details{window: 1, blur: 1, fn: filterTriangle}
	case FilterRawLanczos2:
		d = details{window: 2, blur: 1, fn: filterSinc}
	case FilterRawLanczos3:
		d = details{window: 3, blur: 1, fn: filterSinc}
	case FilterRawLanczos2Sharp:
		d = details{window: 2, blur: 0.9549963639785485, fn: filterSinc}
	case FilterRawLanczos3Sharp:
		d = details{window: 3, blur: 0.9812505644269356, fn: filterSinc}
	case FilterLanczos2:
		d = details{window: 2, blur: 1, fn: filterSincWindowed}
	case FilterLanczos:
		d = details{window: 3, blur: 1, fn: filterSincWindowed}
	case FilterLanczos2Sharp:
		d = details{window: 2, blur: 0.9549963639785485, fn: filterSincWindowed}
	case FilterLanczosSharp:
		d = details{window: 3, blur: 0.9812505644269356, fn: filterSincWindowed}
	case FilterCubicFast:
		d = details{window: 2, blur: 1, fn: filterBicubicFast}
	case FilterBox:
		d = details{window: 0.5, blur: 1, fn: filterBox}
	case FilterGinseng:
		d = details{window: 3, blur: 1, fn: filterGinseng}
	case FilterGinsengSharp:
		d = details{window: 3, blur: 0.9812505644269356, fn: filterGinseng}
	case FilterJinc:
		d = details{window: 6, blur: 1, fn: filterJinc}
	case FilterCubicBSpline:
		d = bicubic(2, 1, 1, 0)
	case FilterCubic:
		d = bicubic(2, 1, 0, 1)
	case FilterCubicSharp:
		d = bicubic(2, 0.9549963639785485, 0, 1)
	case FilterCatmullRom:
		d = bicubic(2, 1, 0, 0.5)
	case FilterCatmullRomFast:
		d = bicubic(1, 1, 0, 0.5)
	case FilterCatmullRomFastSharp:
		d = bicubic(1, 13.0/16.0, 0, 0.5)
	case FilterMitchell:
		d = bicubic(2, 1, 1.0/3.0, 1.0/3.0)
	case FilterMitchellFast:
		d = bicubic(1, 1, 1.0/3.0, 1.0/3.0)
	case FilterNCubic:
		d = bicubic(2.5, 1.0/1.1685777620836933, 0.3782157550939987, 0.3108921224530007)
	case FilterNCubicSharp:
		d = bicubic(2.5, 1.0/1.105822933719019, 0.2620145123990142, 0.3689927438004929)
	case FilterRobidoux:
		d = bicubic(2, 1.0, 0.3782157550939987, 0.3108921224530007)
	case FilterFastest:
		d = bicubic(0.74, 0.74, 0.3782157550939987, 0.3108921224530007)
	case FilterRobidouxFast:
		d = bicubic(1.05, 1, 0.3782157550939987, 0.3108921224530007)
	case FilterRobidouxSharp:
		d = bicubic(2, 1, 0.2620145123990142, 0.3689927438004929)
	case FilterHermite:
		d = bicubic(1, 1, 0, 0)
	default:
		d = details{window: 0.5, blur: 1, fn: filterBox}
	}
	d.sharpenPercentGoal = sharpenPercent
	return d
}

// calculatePercentNegativeWeight numerically integrates the kernel's
// negative lobe ratio over 50 samples across the window, exactly as
// InterpolationDetails::calculate_percent_negative_weight does.
func (d *details) calculatePercentNegativeWeight() float64 {
	const samples = 50
	step := d.window / samples
	lastHeight := d.fn(d, -step)
	var positiveArea, negativeArea float64
	for i := 0; i < samples+3; i++ {
		height := d.fn(d, float64(i)*step)
		area := (height + lastHeight) / 2.0 * step
		lastHeight = height
		if area > 0 {
			positiveArea += area
		} else {
			negativeArea -= area
		}
	}
	if positiveArea == 0 {
		return 0
	}
	return negativeArea / positiveArea
}

func filterFlexCubic(d *details, x float64) float64 {
	t := math.Abs(x) / d.blur
	if t < 1.0 {
		return d.p1 + t*(t*(d.p2+t*d.p3))
	}
	if t < 2.0 {
		return d.q1 + t*(d.q2+t*(d.q3+t*d.q4))
	}
	return 0
}

func filterBicubicFast(d *details, t float64) float64 {
	absT := math.Abs(t) / d.blur
	sq := absT * absT
	switch {
	case absT < 1:
		return 1 - 2*sq + sq*absT
	case absT < 2:
		return 4 - 8*absT + 5*sq - sq*absT
	default:
		return 0
	}
}

func filterSinc(d *details, t float64) float64 {
	absT := math.Abs(t) / d.blur
	if absT == 0 {
		return 1
	}
	if absT > d.window {
		return 0
	}
	a := absT * math.Pi
	return math.Sin(a) / a
}

func filterBox(d *details, t float64) float64 {
	x := t / d.blur
	if x >= -d.window && x < d.window {
		return 1
	}
	return 0
}

func filterTriangle(d *details, t float64) float64 {
	x := math.Abs(t) / d.blur
	if x < 1.0 {
		return 1.0 - x
	}
	return 0
}

func filterSincWindowed(d *details, t float64) float64 {
	x := t / d.blur
	absT := math.Abs(x)
	if absT == 0 {
		return 1
	}
	if absT > d.window {
		return 0
	}
	return d.window * math.Sin(math.Pi*x/d.window) * math.Sin(x*math.Pi) /
		(math.Pi * math.Pi * x * x)
}

func filterJinc(d *details, t float64) float64 {
	x := math.Abs(t) / d.blur
	if x == 0 {
		return 0.5 * math.Pi
	}
	return bessj1(math.Pi*x) / x
}

func filterGinseng(d *details, t float64) float64 {
	absT := math.Abs(t) / d.blur
	tPi := absT * math.Pi
	if absT == 0 {
		return 1
	}
	if absT > 3 {
		return 0
	}
	jincInput := 1.2196698912665046 * tPi / d.window
	jincOutput := bessj1(jincInput) / (jincInput * 0.5)
	return jincOutput * math.Sin(tPi) / tPi
}

// bessj1 approximates the Bessel function J1, ported from Numerical
// Recipes (as imageflow's weights.rs does).
func bessj1(x float64) float64 {
	ax := math.Abs(x)
	var ans float64
	if ax < 8 {
		y := x * x
		ans1 := x * (72362614232.0 + y*(-7895059235.0+y*(242396853.1+y*(-2972611.439+y*(15704.48260+y*(-30.16036606))))))
		ans2 := 144725228442.0 + y*(2300535178.0+y*(18583304.74+y*(99447.43394+y*(376.9991397+y*1.0))))
		ans = ans1 / ans2
	} else {
		z := 8.0 / ax
		y := z * z
		xx := ax - 2.356194491
		ans1 := 1.0 + y*(0.183105e-2+y*(-0.3516396496e-4+y*(0.2457520174e-5+y*(-0.240337019e-6))))
		ans2 := 0.04687499995 + y*(-0.2002690873e-3+y*(0.8449199096e-5+y*(-0.88228987e-6+y*0.105787412e-6)))
		ans = math.Sqrt(0.636619772/ax) * (math.Cos(xx)*ans1 - z*math.Sin(xx)*ans2)
	}
	if x < 0 {
		return -ans
	}
	return ans
}

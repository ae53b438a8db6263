// Package colorspace implements the floatspace & LUT layer (spec §4.4):
// sRGB<->linear conversion tables, a parametric gamma space, and a fast
// power approximation, all lazily built once and never torn down — the
// same singleton-table idiom the teacher uses in sharpyuv/gamma.go for
// WebP's sharp-YUV gamma tables, applied here to the sRGB EOTF instead.
package colorspace

import (
	"math"
	"sync"
)

// LinearFixedBits is the fixed-point precision of the linear LUT domain
// (spec §4.4: "16-bit fixed-point (14-bit range)").
const LinearFixedBits = 14

// LinearFixedMax is the largest representable linear fixed-point value.
const LinearFixedMax = (1 << LinearFixedBits) - 1 // 16383

var (
	srgbToLinearTab [256]uint16
	linearToSRGBTab [LinearFixedMax + 1]uint8
	srgbTablesOnce  sync.Once
)

// srgbEOTF converts an sRGB-encoded value in [0,1] to linear light.
func srgbEOTF(s float64) float64 {
	if s <= 0.04045 {
		return s / 12.92
	}
	return math.Pow((s+0.055)/1.055, 2.4)
}

// srgbOETF converts a linear light value in [0,1] to sRGB-encoded.
func srgbOETF(l float64) float64 {
	if l <= 0.0031308 {
		return l * 12.92
	}
	return 1.055*math.Pow(l, 1.0/2.4) - 0.055
}

func clampInt(v, lo, hi int) int {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}

func initSRGBTables() {
	srgbTablesOnce.Do(func() {
		// Build the forward table (8-bit sRGB -> 14-bit linear fixed-point)
		// from the exact piecewise EOTF.
		for u := 0; u < 256; u++ {
			s := float64(u) / 255.0
			l := srgbEOTF(s)
			fixed := clampInt(int(math.Round(l*float64(LinearFixedMax))), 0, LinearFixedMax)
			srgbToLinearTab[u] = uint16(fixed)
		}

		// Build the inverse table (14-bit linear -> 8-bit sRGB) from the
		// exact inverse OETF everywhere...
		for v := 0; v <= LinearFixedMax; v++ {
			l := float64(v) / float64(LinearFixedMax)
			s := srgbOETF(l)
			out := clampInt(int(math.Round(s*255.0)), 0, 255)
			linearToSRGBTab[v] = uint8(out)
		}
		// ...then force every anchor point hit by the forward table to map
		// back to its exact source byte. srgbToLinearTab is monotonic
		// non-decreasing, so this is consistent and gives the roundtrip
		// invariant L2S(S2L(u)) == u for every u in [0,256) exactly,
		// independent of any rounding drift in the two independently
		// evaluated formulas above.
		for u := 0; u < 256; u++ {
			linearToSRGBTab[srgbToLinearTab[u]] = uint8(u)
		}
	})
}

// SRGBToLinear maps an 8-bit sRGB sample to its 14-bit fixed-point linear
// equivalent.
func SRGBToLinear(u uint8) uint16 {
	initSRGBTables()
	return srgbToLinearTab[u]
}

// LinearToSRGB maps a 14-bit fixed-point linear sample (must be in
// [0, LinearFixedMax]) to its 8-bit sRGB equivalent.
func LinearToSRGB(v uint16) uint8 {
	initSRGBTables()
	if int(v) > LinearFixedMax {
		v = LinearFixedMax
	}
	return linearToSRGBTab[v]
}

// SRGBToLinearFloat converts an 8-bit sRGB sample directly to a float32 in
// [0,1] linear light, for use in the float32 resampler pipeline (spec
// §4.3: "all filtering arithmetic in 32-bit float").
func SRGBToLinearFloat(u uint8) float32 {
	initSRGBTables()
	return float32(srgbToLinearTab[u]) / float32(LinearFixedMax)
}

// LinearFloatToSRGB converts a linear-light float32 sample in [0,1]
// (values outside clamp) back to an 8-bit sRGB sample.
func LinearFloatToSRGB(l float32) uint8 {
	initSRGBTables()
	if l < 0 {
		l = 0
	}
	if l > 1 {
		l = 1
	}
	v := uint16(math.Round(float64(l) * float64(LinearFixedMax)))
	return linearToSRGBTab[v]
}

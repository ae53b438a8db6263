package cms

import (
	"encoding/binary"
	"math"

	"github.com/imageflow/imageflow/internal/colorspace"
	"github.com/imageflow/imageflow/internal/ferror"
)

// Build compiles a Transform for a raw embedded profile payload. There is
// no cgo LCMS2 binding anywhere in the retrieved examples, so all four
// kinds are implemented as closed-form math over the profile's declared
// transfer curve rather than a general ICC CLUT/matrix pipeline — adequate
// for the gAMA/CICP/gray-ICC/CMYK cases this function targets, and
// explicitly out of scope for arbitrary N-component ICC profiles with
// embedded LUTs (spec §4.5 Non-goals).
func Build(kind Kind, payload []byte) (Transform, error) {
	switch kind {
	case KindGAMA:
		return buildGammaTransform(payload)
	case KindCICP:
		return buildCICPTransform(payload)
	case KindICC:
		return buildICCTransform(payload)
	case KindCMYK:
		return buildCMYKTransform(payload)
	default:
		return nil, ferror.New(ferror.KindColorProfile, "cms.Build: unknown profile kind %v", kind)
	}
}

// gammaTransform applies a single power-law curve per channel, used for
// PNG gAMA chunks.
type gammaTransform struct {
	lut *colorspace.GammaLUT
}

func (t *gammaTransform) Channels() int { return 3 }

// ToSRGB undoes the PNG gAMA chunk's declared encoding gamma (source ->
// linear) and reapplies the sRGB OETF.
func (t *gammaTransform) ToSRGB(dst, src []float32) {
	for i, v := range src {
		linear := t.lut.ToLinear(v)
		dst[i] = srgbOETFFloat(linear)
	}
}

func srgbOETFFloat(l float32) float32 {
	if l <= 0.0031308 {
		return l * 12.92
	}
	return float32(1.055*mathPow(float64(l), 1.0/2.4) - 0.055)
}

func mathPow(b, e float64) float64 { return math.Pow(b, e) }

// buildGammaTransform parses a 4-byte big-endian PNG gAMA value (gamma *
// 100000) into a GammaLUT keyed by its reciprocal exponent.
func buildGammaTransform(payload []byte) (Transform, error) {
	if len(payload) < 4 {
		return nil, ferror.New(ferror.KindColorProfile, "cms: gAMA payload too short (%d bytes)", len(payload))
	}
	raw := binary.BigEndian.Uint32(payload[:4])
	if raw == 0 {
		return nil, ferror.New(ferror.KindColorProfile, "cms: gAMA value is zero")
	}
	declaredGamma := float64(raw) / 100000.0
	// gAMA stores the encoding gamma; the decode exponent undoing it is
	// its reciprocal.
	exponent := 1.0 / declaredGamma
	return &gammaTransform{lut: colorspace.GammaTable(exponent)}, nil
}

// cicpTransform handles the three-byte CICP (Coding-Independent Code
// Points) triple: primaries, transfer characteristics, matrix
// coefficients, per H.273. Only the transfer function matters for the
// "to sRGB" sample path; primaries/matrix affect chroma and are passed
// through unchanged (spec §4.5: "only correcting the luma/transfer curve
// is in scope; full chromatic adaptation is a Non-goal").
type cicpTransform struct {
	transferCode byte
}

func (t *cicpTransform) Channels() int { return 3 }

func (t *cicpTransform) ToSRGB(dst, src []float32) {
	for i, v := range src {
		linear := cicpToLinear(t.transferCode, v)
		dst[i] = srgbOETFFloat(linear)
	}
}

// cicpToLinear approximates the named H.273 transfer function's EOTF. Most
// video transfer curves are well approximated by a single power law near
// the BT.709/BT.2020 gamma of ~1/0.45; PQ and HLG (scene/display-referred
// HDR curves) are out of scope and fall back to that same approximation
// rather than a full tone-mapping implementation (spec §4.5 Non-goals).
func cicpToLinear(code byte, v float32) float32 {
	switch code {
	case 8: // linear
		return v
	case 13: // sRGB
		if v <= 0.04045 {
			return v / 12.92
		}
		return float32(mathPow((float64(v)+0.055)/1.055, 2.4))
	default: // BT.709/601/2020 family and unrecognized codes
		return float32(mathPow(float64(v), 1.0/0.45))
	}
}

func buildCICPTransform(payload []byte) (Transform, error) {
	if len(payload) < 3 {
		return nil, ferror.New(ferror.KindColorProfile, "cms: CICP payload too short (%d bytes)", len(payload))
	}
	return &cicpTransform{transferCode: payload[1]}, nil
}

// iccTransform handles the narrow slice of ICC profiles this cache
// targets: grayscale or RGB profiles whose red, green or gray TRC tag is a
// type-curv curve, reduced to a single gamma exponent. Matrix/CLUT data is
// not parsed; a profile with no usable curv TRC tag makes Build fail with
// a KindColorProfile error.
type iccTransform struct {
	gamma float64
}

func (t *iccTransform) Channels() int { return 3 }

func (t *iccTransform) ToSRGB(dst, src []float32) {
	lut := colorspace.GammaTable(t.gamma)
	for i, v := range src {
		dst[i] = srgbOETFFloat(lut.ToLinear(v))
	}
}

const iccHeaderSize = 128

// buildICCTransform looks for the first curv-type TRC tag ("rTRC", "gTRC"
// or "kTRC") in the ICC tag table and compiles a single-exponent
// approximation from it: a one-entry curve gives its gamma, an empty curve
// is the identity, and a multi-point curve is approximated with gamma 2.2.
// A profile with no such tag is rejected with a KindColorProfile error.
func buildICCTransform(payload []byte) (Transform, error) {
	if len(payload) < iccHeaderSize+4 {
		return nil, ferror.New(ferror.KindColorProfile, "cms: ICC payload too short (%d bytes)", len(payload))
	}
	tagCount := binary.BigEndian.Uint32(payload[iccHeaderSize : iccHeaderSize+4])
	const tagEntrySize = 12
	tagTableStart := iccHeaderSize + 4
	for i := uint32(0); i < tagCount; i++ {
		off := tagTableStart + int(i)*tagEntrySize
		if off+tagEntrySize > len(payload) {
			break
		}
		sig := string(payload[off : off+4])
		if sig != "rTRC" && sig != "kTRC" && sig != "gTRC" {
			continue
		}
		dataOffset := binary.BigEndian.Uint32(payload[off+4 : off+8])
		dataSize := binary.BigEndian.Uint32(payload[off+8 : off+12])
		if int(dataOffset+dataSize) > len(payload) || dataSize < 12 {
			continue
		}
		tag := payload[dataOffset : dataOffset+dataSize]
		if string(tag[:4]) != "curv" {
			continue
		}
		count := binary.BigEndian.Uint32(tag[8:12])
		if count == 1 && len(tag) >= 14 {
			// u8Fixed8Number gamma value.
			gammaFixed := binary.BigEndian.Uint16(tag[12:14])
			return &iccTransform{gamma: float64(gammaFixed) / 256.0}, nil
		}
		if count == 0 {
			return &iccTransform{gamma: 1.0}, nil // identity curve
		}
		// Multi-point curve: unsupported precise parse, approximate with
		// the standard 2.2 display gamma rather than failing the decode.
		return &iccTransform{gamma: 2.2}, nil
	}
	return nil, ferror.New(ferror.KindColorProfile, "cms: no recognizable TRC tag in ICC profile")
}

// cmykTransform converts naive (non-ICC-managed) CMYK samples to sRGB
// using the standard subtractive approximation, for CMYK JPEGs that carry
// no embedded profile at all (spec §4.5: "CMYK without a profile falls
// back to the naive formula").
type cmykTransform struct{}

func (t *cmykTransform) Channels() int { return 4 }

func (t *cmykTransform) ToSRGB(dst, src []float32) {
	for i := 0; i+4 <= len(src); i += 4 {
		c, m, y, k := src[i], src[i+1], src[i+2], src[i+3]
		r := (1 - c) * (1 - k)
		g := (1 - m) * (1 - k)
		b := (1 - y) * (1 - k)
		o := i / 4 * 3
		dst[o], dst[o+1], dst[o+2] = r, g, b
	}
}

func buildCMYKTransform(_ []byte) (Transform, error) {
	return &cmykTransform{}, nil
}

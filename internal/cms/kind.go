// Package cms implements the color-management transform cache (spec §4.5):
// bounded per-kind LRUs of compiled "to sRGB" transforms, keyed by a hash
// of the profile bytes that skips volatile header fields so two profiles
// that differ only by embedded timestamp/vendor metadata share a cache
// entry.
//
// Grounded on original_source/imageflow_core/src/codecs/color_transform_cache.rs
// (per-kind capacities and the header-skipping hash) and on the teacher's
// internal/lossless/colorcache.go for the general shape of a small, fixed
// hash-addressed cache living next to a decode/encode path.
package cms

// Kind distinguishes the four embedded-profile shapes a decoder can hand
// the color-management layer.
type Kind int

const (
	KindICC Kind = iota
	KindCICP
	KindGAMA
	KindCMYK
)

// capacity returns the maximum number of compiled transforms kept resident
// per Kind, ported from color_transform_cache.rs's per-family bounds.
func (k Kind) capacity() int {
	switch k {
	case KindICC:
		return 9
	case KindCICP:
		return 4
	case KindGAMA:
		return 4
	case KindCMYK:
		return 2
	default:
		return 1
	}
}

func (k Kind) String() string {
	switch k {
	case KindICC:
		return "icc"
	case KindCICP:
		return "cicp"
	case KindGAMA:
		return "gama"
	case KindCMYK:
		return "cmyk"
	default:
		return "unknown"
	}
}

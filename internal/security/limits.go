// Package security implements the resource-limit checks of spec §4.7: caps
// on decode, frame, and encode size, each enforced before the corresponding
// allocation rather than after it, so an oversized input never reaches the
// arena's pool allocator (spec §4.7: "after estimation and before
// allocation").
//
// Grounded on the teacher's own MaxDimension guard in
// internal/codecs/webpcodec/encode.go, which rejects a too-large image
// before it is ever handed to the lossy/lossless encoder; SizeCaps
// generalizes that single hard-coded constant into the three configurable,
// optional caps spec §4.7 names.
package security

import "github.com/imageflow/imageflow/internal/ferror"

// SizeCap bounds a frame's width, height, and total megapixels. A zero
// field means "unbounded" on that axis (spec §4.7: "limits are parameters,
// not compile-time constants; None = unbounded").
type SizeCap struct {
	MaxWidth      int
	MaxHeight     int
	MaxMegapixels float64
}

// Caps bundles the three size caps a Job may configure (spec §4.7's
// `security` object: max_decode_size, max_frame_size, max_encode_size).
// A nil *SizeCap field means that check is skipped entirely.
type Caps struct {
	MaxDecodeSize *SizeCap
	MaxFrameSize  *SizeCap
	MaxEncodeSize *SizeCap
}

// CheckDecodeSize validates a decoder's frame-size estimate against
// MaxDecodeSize, identifying the offending codec in the error message
// (spec example: `ErrSizeLimit` referencing "GIF width 20000 exceeds
// max_decode_size.w 10000").
func (c Caps) CheckDecodeSize(codec string, w, h int) error {
	return checkCap(c.MaxDecodeSize, "max_decode_size", codec, w, h)
}

// CheckFrameSize validates a global bitmap allocation (e.g. a GIF's
// logical screen buffer) against MaxFrameSize before any pixel data is
// read into it.
func (c Caps) CheckFrameSize(codec string, w, h int) error {
	return checkCap(c.MaxFrameSize, "max_frame_size", codec, w, h)
}

// CheckEncodeSize validates an encoder's input bitmap against
// MaxEncodeSize before the encoder is invoked.
func (c Caps) CheckEncodeSize(codec string, w, h int) error {
	return checkCap(c.MaxEncodeSize, "max_encode_size", codec, w, h)
}

func checkCap(cap *SizeCap, field, codec string, w, h int) error {
	if cap == nil {
		return nil
	}
	if cap.MaxWidth > 0 && w > cap.MaxWidth {
		return ferror.New(ferror.KindSizeLimit, "%s width %d exceeds %s.w %d", codec, w, field, cap.MaxWidth)
	}
	if cap.MaxHeight > 0 && h > cap.MaxHeight {
		return ferror.New(ferror.KindSizeLimit, "%s height %d exceeds %s.h %d", codec, h, field, cap.MaxHeight)
	}
	if cap.MaxMegapixels > 0 {
		mp := float64(w) * float64(h) / 1e6
		if mp > cap.MaxMegapixels {
			return ferror.New(ferror.KindSizeLimit, "%s megapixels %.2f exceeds %s.megapixels %.2f", codec, mp, field, cap.MaxMegapixels)
		}
	}
	return nil
}

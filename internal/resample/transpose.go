// Package resample implements the pixel-level kernels of the resampling
// pipeline (spec §4.3): transpose and in-place flips (used by the Rotate
// and Flip graph nodes) and the weight-table driven 2-D scale used by the
// Scale graph node.
//
// The two-pass row/column split and the row-by-row accumulation style
// follow the teacher's internal/dsp rescaler (internal/dsp/rescale.go),
// generalized from its fixed box filter to the arbitrary weights.Table
// built by the weights package.
package resample

import (
	"github.com/imageflow/imageflow/internal/arena"
	"github.com/imageflow/imageflow/internal/ferror"
)

// Transpose returns a new bitmap with width and height swapped and every
// pixel (x,y) moved to (y,x). Used to implement 90/270 degree rotation as
// transpose+flip.
func Transpose(src arena.Window) (*arena.Bitmap, error) {
	bpp := src.Layout().BytesPerPixel()
	out, err := arena.NewStandaloneBitmap(src.Height(), src.Width(), src.Layout(), false, src.AlphaMeaningful(), src.ColorSpace(), src.Compositing())
	if err != nil {
		return nil, ferror.Wrap(err, ferror.KindAllocation, "resample.Transpose: allocate output")
	}
	w, h := src.Width(), src.Height()
	for y := 0; y < h; y++ {
		row := src.Row(y)
		for x := 0; x < w; x++ {
			dstRow := out.RowBytes(x)
			copy(dstRow[y*bpp:y*bpp+bpp], row[x*bpp:x*bpp+bpp])
		}
	}
	return out, nil
}

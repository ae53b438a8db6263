package resample

import (
	"github.com/imageflow/imageflow/internal/arena"
	"github.com/imageflow/imageflow/internal/colorspace"
	"github.com/imageflow/imageflow/internal/ferror"
	"github.com/imageflow/imageflow/internal/weights"
)

// Scale2DOptions configures a fused two-axis resample (spec §4.3, "Scale2D
// fused"): build one weight table per axis, convolve in linear-light
// float32, then re-encode into a new bitmap of the source's layout.
// Compositing and MatteColor are recorded on that bitmap; Scale2D itself
// does no compositing.
type Scale2DOptions struct {
	Filter         weights.Filter
	SharpenPercent float64
	OutWidth       int
	OutHeight      int
	Compositing    arena.Compositing
	MatteColor     [4]byte
}

// Scale2D resamples src into a freshly allocated standalone bitmap sized
// OutWidth x OutHeight. The caller adopts the result into an Arena (or
// releases it directly) once done.
func Scale2D(src arena.Window, opts Scale2DOptions) (*arena.Bitmap, error) {
	if opts.OutWidth <= 0 || opts.OutHeight <= 0 {
		return nil, ferror.New(ferror.KindInvalidNodeParams, "resample.Scale2D: invalid output size %dx%d", opts.OutWidth, opts.OutHeight)
	}
	bpp := src.Layout().BytesPerPixel()
	srcW, srcH := src.Width(), src.Height()

	alphaIdx := -1
	if src.AlphaMeaningful() && (src.Layout() == arena.LayoutBGRA32) {
		alphaIdx = 3
	}

	// Unpack to an interleaved float32 linear-light buffer (spec §4.3: "all
	// filtering arithmetic in 32-bit float"). Alpha is not gamma encoded,
	// so it is only scaled to [0,1].
	linear := make([]float32, srcW*srcH*bpp)
	for y := 0; y < srcH; y++ {
		row := src.Row(y)
		base := y * srcW * bpp
		for i := 0; i < srcW*bpp; i++ {
			if alphaIdx >= 0 && i%bpp == alphaIdx {
				linear[base+i] = float32(row[i]) / 255.0
				continue
			}
			linear[base+i] = colorspace.SRGBToLinearFloat(row[i])
		}
	}

	hTable, err := weights.Build(opts.Filter, opts.SharpenPercent, opts.OutWidth, srcW)
	if err != nil {
		return nil, ferror.Wrap(err, ferror.KindInternal, "resample.Scale2D: build horizontal weights")
	}
	vTable, err := weights.Build(opts.Filter, opts.SharpenPercent, opts.OutHeight, srcH)
	if err != nil {
		return nil, ferror.Wrap(err, ferror.KindInternal, "resample.Scale2D: build vertical weights")
	}

	stage1 := ConvolveRowsHorizontal(linear, srcW, srcH, bpp, hTable)
	stage2 := ConvolveRowsVertical(stage1, opts.OutWidth, srcH, bpp, vTable)

	out, err := arena.NewStandaloneBitmap(opts.OutWidth, opts.OutHeight, src.Layout(), false,
		src.AlphaMeaningful(), src.ColorSpace(), opts.Compositing)
	if err != nil {
		return nil, ferror.Wrap(err, ferror.KindAllocation, "resample.Scale2D: allocate output")
	}
	out.MatteColor = opts.MatteColor

	for y := 0; y < opts.OutHeight; y++ {
		dstRow := out.RowBytes(y)
		base := y * opts.OutWidth * bpp
		for i := 0; i < opts.OutWidth*bpp; i++ {
			if alphaIdx >= 0 && i%bpp == alphaIdx {
				// Alpha itself is linear already (it is not gamma encoded);
				// clamp and pass through without the sRGB OETF.
				v := stage2[base+i]
				dstRow[i] = clampFloatToByte(v)
				continue
			}
			dstRow[i] = colorspace.LinearFloatToSRGB(stage2[base+i])
		}
	}
	return out, nil
}

func clampFloatToByte(v float32) byte {
	if v <= 0 {
		return 0
	}
	if v >= 1 {
		return 255
	}
	return byte(v*255.0 + 0.5)
}

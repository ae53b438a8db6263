package resample

import "github.com/imageflow/imageflow/internal/weights"

// ConvolveRowsHorizontal applies a weight table across the width axis of a
// row-major float32 buffer (stride srcWidth*channels), producing a new
// buffer of stride table.LineLength*channels. Each output sample is the
// weighted sum of the contributing source samples for that channel —
// imageflow's convolve_1d (weights.rs) applied one axis at a time, the same
// row-by-row accumulation shape as the teacher's rescaler import loop
// (internal/dsp/rescale.go), generalized from a box filter to an arbitrary
// PixelWeights window.
func ConvolveRowsHorizontal(src []float32, srcWidth, height, channels int, table *weights.Table) []float32 {
	outWidth := table.LineLength
	dst := make([]float32, outWidth*height*channels)
	for y := 0; y < height; y++ {
		srcRow := src[y*srcWidth*channels : (y+1)*srcWidth*channels]
		dstRow := dst[y*outWidth*channels : (y+1)*outWidth*channels]
		for x := 0; x < outWidth; x++ {
			pw := table.Row[x]
			for c := 0; c < channels; c++ {
				dstRow[x*channels+c] = accumulateWeighted(srcRow, pw.Left*channels+c, channels, pw.Weights)
			}
		}
	}
	return dst
}

// ConvolveRowsVertical applies a weight table across the height axis of a
// row-major float32 buffer (stride width*channels), producing a new buffer
// with table.LineLength rows. Structurally the transpose of
// ConvolveRowsHorizontal, kept as its own loop (rather than
// transpose+horizontal+transpose) to avoid two extra full-image copies.
func ConvolveRowsVertical(src []float32, width, srcHeight, channels int, table *weights.Table) []float32 {
	outHeight := table.LineLength
	dst := make([]float32, width*outHeight*channels)
	rowStride := width * channels
	for y := 0; y < outHeight; y++ {
		pw := table.Row[y]
		dstRow := dst[y*rowStride : (y+1)*rowStride]
		for x := 0; x < width; x++ {
			for c := 0; c < channels; c++ {
				dstRow[x*channels+c] = accumulateWeighted(src, pw.Left*rowStride+x*channels+c, rowStride, pw.Weights)
			}
		}
	}
	return dst
}

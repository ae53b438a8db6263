package codecs

import (
	"image"
	"image/draw"
)

// toDecodedFrame normalizes any stdlib image.Image to a 32-bit BGRA
// DecodedFrame, matching the arena's LayoutBGRA32 byte order (spec §4.1:
// "canvas layout is always BGRA32 internally").
func toDecodedFrame(img image.Image) DecodedFrame {
	b := img.Bounds()
	w, h := b.Dx(), b.Dy()
	nrgba := image.NewNRGBA(image.Rect(0, 0, w, h))
	draw.Draw(nrgba, nrgba.Bounds(), img, b.Min, draw.Src)

	out := make([]byte, w*h*4)
	hasAlpha := false
	for y := 0; y < h; y++ {
		srcRow := nrgba.Pix[y*nrgba.Stride : y*nrgba.Stride+w*4]
		dstRow := out[y*w*4 : (y+1)*w*4]
		for x := 0; x < w; x++ {
			r, g, bch, a := srcRow[x*4], srcRow[x*4+1], srcRow[x*4+2], srcRow[x*4+3]
			dstRow[x*4+0] = bch
			dstRow[x*4+1] = g
			dstRow[x*4+2] = r
			dstRow[x*4+3] = a
			if a != 255 {
				hasAlpha = true
			}
		}
	}
	return DecodedFrame{Width: w, Height: h, Stride: w * 4, BGRA: out, HasAlpha: hasAlpha}
}

// fromDecodedFrameNRGBA converts a BGRA32 DecodedFrame back to an
// *image.NRGBA for handing to a stdlib encoder.
func fromDecodedFrameNRGBA(f DecodedFrame) *image.NRGBA {
	img := image.NewNRGBA(image.Rect(0, 0, f.Width, f.Height))
	for y := 0; y < f.Height; y++ {
		srcRow := f.BGRA[y*f.Stride : y*f.Stride+f.Width*4]
		dstRow := img.Pix[y*img.Stride : y*img.Stride+f.Width*4]
		for x := 0; x < f.Width; x++ {
			bch, g, r, a := srcRow[x*4], srcRow[x*4+1], srcRow[x*4+2], srcRow[x*4+3]
			dstRow[x*4+0] = r
			dstRow[x*4+1] = g
			dstRow[x*4+2] = bch
			dstRow[x*4+3] = a
		}
	}
	return img
}

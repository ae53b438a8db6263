package arena

import "github.com/imageflow/imageflow/internal/ferror"

// Window is a read-only rectangular view over a borrowed bitmap.
type Window struct {
	bmp  *Bitmap
	x, y int
	w, h int
}

// Width, Height return the window's dimensions (which may be smaller than
// the underlying bitmap after SubWindow).
func (w Window) Width() int  { return w.w }
func (w Window) Height() int { return w.h }

// Layout, ColorSpace, Compositing expose the parent bitmap's attributes.
func (w Window) Layout() PixelLayout     { return w.bmp.Layout }
func (w Window) ColorSpace() ColorSpace  { return w.bmp.ColorSpace }
func (w Window) Compositing() Compositing { return w.bmp.Compositing }
func (w Window) AlphaMeaningful() bool   { return w.bmp.AlphaMeaningful }
func (w Window) MatteColor() [4]byte     { return w.bmp.MatteColor }
func (w Window) Stride() int             { return w.bmp.Stride }

// Row returns row `y` (relative to the window origin) as a read-only byte
// slice spanning exactly the window's width.
func (w Window) Row(y int) []byte {
	bpp := w.bmp.Layout.BytesPerPixel()
	full := w.bmp.RowStrideBytes(w.y + y)
	off := w.x * bpp
	return full[off : off+w.w*bpp]
}

// Scanlines returns every row of the window in order, top to bottom. The
// slice is restartable: callers may call Scanlines again after iterating.
func (w Window) Scanlines() [][]byte {
	rows := make([][]byte, w.h)
	for i := 0; i < w.h; i++ {
		rows[i] = w.Row(i)
	}
	return rows
}

// SubWindow carves a rectangle out of an existing window. The returned
// window shares the parent's borrow (it is not a separate Arena borrow).
func (w Window) SubWindow(x, y, width, height int) (Window, error) {
	if x < 0 || y < 0 || width < 0 || height < 0 || x+width > w.w || y+height > w.h {
		return Window{}, ferror.New(ferror.KindInvalidNodeParams,
			"sub_window (%d,%d,%d,%d) out of bounds of (%d,%d)", x, y, width, height, w.w, w.h)
	}
	return Window{bmp: w.bmp, x: w.x + x, y: w.y + y, w: width, h: height}, nil
}

// WindowMut is a mutable rectangular view over an exclusively borrowed
// bitmap.
type WindowMut struct {
	Window
}

// RowMut returns row `y` (relative to the window origin) as a mutable byte
// slice spanning exactly the window's width.
func (w WindowMut) RowMut(y int) []byte {
	bpp := w.bmp.Layout.BytesPerPixel()
	full := w.bmp.RowStrideBytes(w.y + y)
	off := w.x * bpp
	return full[off : off+w.w*bpp]
}

// ScanlinesMut returns every row of the window, mutable, top to bottom.
func (w WindowMut) ScanlinesMut() [][]byte {
	rows := make([][]byte, w.h)
	for i := 0; i < w.h; i++ {
		rows[i] = w.RowMut(i)
	}
	return rows
}

// SubWindowMut carves a mutable rectangle out of an existing mutable window.
func (w WindowMut) SubWindowMut(x, y, width, height int) (WindowMut, error) {
	sw, err := w.Window.SubWindow(x, y, width, height)
	if err != nil {
		return WindowMut{}, err
	}
	return WindowMut{sw}, nil
}

// Fill sets every pixel in the window to the given raw pixel bytes (length
// must equal bytes-per-pixel of the bitmap's layout).
func (w WindowMut) Fill(pixel []byte) {
	bpp := w.bmp.Layout.BytesPerPixel()
	if len(pixel) != bpp {
		return
	}
	for y := 0; y < w.h; y++ {
		row := w.RowMut(y)
		for x := 0; x < w.w; x++ {
			copy(row[x*bpp:(x+1)*bpp], pixel)
		}
	}
}

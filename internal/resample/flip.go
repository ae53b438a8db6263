package resample

import "github.com/imageflow/imageflow/internal/arena"

// FlipHInplace mirrors every row of w left-to-right. Two applications are
// the identity (spec invariant: involution).
func FlipHInplace(w arena.WindowMut) {
	bpp := w.Layout().BytesPerPixel()
	width := w.Width()
	for y := 0; y < w.Height(); y++ {
		row := w.RowMut(y)
		for l, r := 0, width-1; l < r; l, r = l+1, r-1 {
			lOff, rOff := l*bpp, r*bpp
			for i := 0; i < bpp; i++ {
				row[lOff+i], row[rOff+i] = row[rOff+i], row[lOff+i]
			}
		}
	}
}

// FlipVInplace mirrors the rows of w top-to-bottom. Two applications are
// the identity.
func FlipVInplace(w arena.WindowMut) {
	bpp := w.Layout().BytesPerPixel()
	rowBytes := w.Width() * bpp
	tmp := make([]byte, rowBytes)
	rows := w.ScanlinesMut()
	for t, b := 0, len(rows)-1; t < b; t, b = t+1, b-1 {
		copy(tmp, rows[t])
		copy(rows[t], rows[b])
		copy(rows[b], tmp)
	}
}

package arena

import "testing"

func TestCreateCanvasTransparentIsAllZero(t *testing.T) {
	a := New()
	k, err := a.Create(8, 8, LayoutBGRA32, true, true, ColorSpaceSRGB, CompositingBlendWithSelf)
	if err != nil {
		t.Fatal(err)
	}
	win, release, err := a.Borrow(k)
	if err != nil {
		t.Fatal(err)
	}
	defer release()
	for _, row := range win.Scanlines() {
		for _, b := range row {
			if b != 0 {
				t.Fatalf("expected all-zero pixel, got byte %d", b)
			}
		}
	}
}

func TestBorrowConflict(t *testing.T) {
	a := New()
	k, err := a.Create(4, 4, LayoutBGR24, false, false, ColorSpaceSRGB, CompositingReplaceSelf)
	if err != nil {
		t.Fatal(err)
	}
	_, releaseW, err := a.BorrowMut(k)
	if err != nil {
		t.Fatal(err)
	}
	if _, _, err := a.Borrow(k); err == nil {
		t.Fatal("expected ErrBorrow while mutably borrowed")
	}
	releaseW()
	win, release, err := a.Borrow(k)
	if err != nil {
		t.Fatalf("expected borrow to succeed after release: %v", err)
	}
	release()
	_ = win
}

func TestUseAfterFree(t *testing.T) {
	a := New()
	k, _ := a.Create(2, 2, LayoutGray8, true, false, ColorSpaceSRGB, CompositingReplaceSelf)
	if err := a.Destroy(k); err != nil {
		t.Fatal(err)
	}
	if _, _, err := a.Borrow(k); err == nil {
		t.Fatal("expected ErrUseAfterFree")
	}
}

func TestSubWindowBounds(t *testing.T) {
	a := New()
	k, _ := a.Create(10, 10, LayoutBGRA32, true, true, ColorSpaceSRGB, CompositingReplaceSelf)
	w, release, err := a.BorrowMut(k)
	if err != nil {
		t.Fatal(err)
	}
	defer release()
	sub, err := w.SubWindowMut(2, 2, 4, 4)
	if err != nil {
		t.Fatal(err)
	}
	if sub.Width() != 4 || sub.Height() != 4 {
		t.Fatalf("unexpected sub window size")
	}
	if _, err := w.SubWindowMut(8, 8, 4, 4); err == nil {
		t.Fatal("expected out-of-bounds error")
	}
}

func TestDestroyWithOutstandingBorrowRefused(t *testing.T) {
	a := New()
	k, _ := a.Create(2, 2, LayoutGray8, true, false, ColorSpaceSRGB, CompositingReplaceSelf)
	_, release, err := a.Borrow(k)
	if err != nil {
		t.Fatal(err)
	}
	if err := a.Destroy(k); err == nil {
		t.Fatal("expected destroy to be refused while borrowed")
	}
	release()
	if err := a.Destroy(k); err != nil {
		t.Fatal(err)
	}
}

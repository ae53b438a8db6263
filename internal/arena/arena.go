package arena

import (
	"sync"

	"github.com/imageflow/imageflow/internal/ferror"
)

// Key is an opaque, stable identifier for a bitmap owned by an Arena.
// Keys are never reused after Destroy.
type Key uint64

type borrowState int32

const (
	stateFree borrowState = 0
	// stateWrite is a sentinel; positive values are the outstanding read count.
	stateWrite borrowState = -1
)

type entry struct {
	bmp       *Bitmap
	state     borrowState
	destroyed bool
}

// Arena owns every bitmap created for a single job. It is not safe for use
// across jobs (spec §5: "exclusive to one context; never shared").
type Arena struct {
	mu      sync.Mutex
	entries map[Key]*entry
	nextKey uint64
}

// New creates an empty Arena.
func New() *Arena {
	return &Arena{entries: make(map[Key]*entry)}
}

// Create allocates a new bitmap and returns its key.
func (a *Arena) Create(w, h int, layout PixelLayout, zero bool, alpha bool, cs ColorSpace, comp Compositing) (Key, error) {
	bmp, err := newBitmap(w, h, layout, zero, alpha, cs, comp)
	if err != nil {
		return 0, err
	}
	a.mu.Lock()
	defer a.mu.Unlock()
	a.nextKey++
	k := Key(a.nextKey)
	a.entries[k] = &entry{bmp: bmp}
	return k, nil
}

// Adopt brings a standalone bitmap (created with NewStandaloneBitmap) under
// this arena's tracking and returns its new key.
func (a *Arena) Adopt(bmp *Bitmap) Key {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.nextKey++
	k := Key(a.nextKey)
	a.entries[k] = &entry{bmp: bmp}
	return k
}

func (a *Arena) lookup(k Key) (*entry, error) {
	a.mu.Lock()
	defer a.mu.Unlock()
	e, ok := a.entries[k]
	if !ok {
		return nil, ferror.New(ferror.KindBitmapKeyNotFound, "bitmap key %d not found", k)
	}
	if e.destroyed {
		return nil, ferror.New(ferror.KindUseAfterFree, "bitmap key %d already destroyed", k)
	}
	return e, nil
}

// Info returns a read-only snapshot of a bitmap's attributes without
// borrowing it.
func (a *Arena) Info(k Key) (*Bitmap, error) {
	e, err := a.lookup(k)
	if err != nil {
		return nil, err
	}
	return e.bmp, nil
}

// Borrow takes a shared (read) window over the bitmap. Release must be
// called exactly once when done.
func (a *Arena) Borrow(k Key) (Window, func(), error) {
	a.mu.Lock()
	defer a.mu.Unlock()
	e, ok := a.entries[k]
	if !ok {
		return Window{}, nil, ferror.New(ferror.KindBitmapKeyNotFound, "bitmap key %d not found", k)
	}
	if e.destroyed {
		return Window{}, nil, ferror.New(ferror.KindUseAfterFree, "bitmap key %d already destroyed", k)
	}
	if e.state == stateWrite {
		return Window{}, nil, ferror.New(ferror.KindBorrow, "bitmap key %d already mutably borrowed", k)
	}
	e.state++
	w := Window{bmp: e.bmp, x: 0, y: 0, w: e.bmp.Width, h: e.bmp.Height}
	release := func() {
		a.mu.Lock()
		defer a.mu.Unlock()
		if e.state > 0 {
			e.state--
		}
	}
	return w, release, nil
}

// BorrowMut takes an exclusive (write) window over the bitmap.
func (a *Arena) BorrowMut(k Key) (WindowMut, func(), error) {
	a.mu.Lock()
	defer a.mu.Unlock()
	e, ok := a.entries[k]
	if !ok {
		return WindowMut{}, nil, ferror.New(ferror.KindBitmapKeyNotFound, "bitmap key %d not found", k)
	}
	if e.destroyed {
		return WindowMut{}, nil, ferror.New(ferror.KindUseAfterFree, "bitmap key %d already destroyed", k)
	}
	if e.state != stateFree {
		return WindowMut{}, nil, ferror.New(ferror.KindBorrow, "bitmap key %d already borrowed", k)
	}
	e.state = stateWrite
	w := WindowMut{Window{bmp: e.bmp, x: 0, y: 0, w: e.bmp.Width, h: e.bmp.Height}}
	release := func() {
		a.mu.Lock()
		defer a.mu.Unlock()
		e.state = stateFree
	}
	return w, release, nil
}

// Destroy frees a bitmap's backing buffer and marks its key unusable.
// Destroying a bitmap with an outstanding borrow is a caller bug; it is
// refused with ErrBorrow rather than silently freeing memory out from
// under a live window.
func (a *Arena) Destroy(k Key) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	e, ok := a.entries[k]
	if !ok || e.destroyed {
		return nil // already gone; teardown is idempotent
	}
	if e.state != stateFree {
		return ferror.New(ferror.KindBorrow, "cannot destroy bitmap key %d with outstanding borrow", k)
	}
	e.bmp.release()
	e.destroyed = true
	return nil
}

// TeardownAll destroys every remaining bitmap, reclaiming dangling sink
// bitmaps (spec §4.10) when the job ends.
func (a *Arena) TeardownAll() {
	a.mu.Lock()
	defer a.mu.Unlock()
	for k, e := range a.entries {
		if e.state == stateFree && !e.destroyed {
			e.bmp.release()
			e.destroyed = true
		}
		delete(a.entries, k)
	}
}

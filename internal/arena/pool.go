// Package arena owns pixel buffers for one job. Bitmaps are created once
// and handed out by opaque Key; callers borrow short-lived, runtime-checked
// windows over a bitmap rather than holding pointers into it, so there is
// no aliasing between an executing node and its siblings.
//
// The backing byte pool is bucketed by size class, the same idea the
// teacher's internal/pool uses for scratch buffers, generalized here to
// own the pixel buffer itself instead of lending it back after one use.
package arena

import "sync"

const (
	bucket4K   = 4096
	bucket64K  = 65536
	bucket1M   = 1048576
	bucket16M  = 16777216
	bucketHuge = -1 // not pooled; allocated directly
)

var byteSizes = [...]int{bucket4K, bucket64K, bucket1M, bucket16M}

var bytePools [len(byteSizes)]sync.Pool

func init() {
	for i := range bytePools {
		sz := byteSizes[i]
		bytePools[i] = sync.Pool{
			New: func() any {
				b := make([]byte, sz)
				return &b
			},
		}
	}
}

func bucketFor(size int) int {
	for i, sz := range byteSizes {
		if size <= sz {
			return i
		}
	}
	return bucketHuge
}

// getBuffer returns a zero-length-capped slice of exactly `size` bytes,
// reusing a pooled allocation when one of a matching size class is free.
func getBuffer(size int, zero bool) []byte {
	idx := bucketFor(size)
	if idx == bucketHuge {
		return make([]byte, size)
	}
	bp := bytePools[idx].Get().(*[]byte)
	b := *bp
	if cap(b) < size {
		b = make([]byte, byteSizes[idx])
	}
	b = b[:size]
	if zero {
		for i := range b {
			b[i] = 0
		}
	}
	return b
}

func putBuffer(b []byte) {
	idx := bucketFor(cap(b))
	if idx == bucketHuge {
		return
	}
	full := b[:cap(b)]
	bytePools[idx].Put(&full)
}

// Package pool keeps bucketed sync.Pool instances for canvas-sized pixel
// slices. Replay and dispose-previous snapshots allocate a full canvas per
// call; pooling them keeps random access from churning the heap.
package pool

import "sync"

// Size classes. A 256x256 RGBA canvas is 256K, a 1080p canvas just under 8M.
const (
	Size64K  = 1 << 16
	Size256K = 1 << 18
	Size1M   = 1 << 20
	Size4M   = 1 << 22
	Size16M  = 1 << 24
)

// MaxPooled is the largest capacity kept for reuse. Bigger requests are
// served by make and dropped on Put.
const MaxPooled = Size16M

var sizes = [5]int{Size64K, Size256K, Size1M, Size4M, Size16M}

var pools [len(sizes)]sync.Pool

func init() {
	for i := range pools {
		sz := sizes[i]
		pools[i] = sync.Pool{
			New: func() any {
				b := make([]byte, sz)
				return &b
			},
		}
	}
}

// bucketIndex returns the pool index for a given size, or -1 if the size is
// not pooled.
func bucketIndex(size int) int {
	for i, sz := range sizes {
		if size <= sz {
			return i
		}
	}
	return -1
}

// Get returns a byte slice of length size. Contents are unspecified; use
// GetZeroed when the caller relies on transparent pixels.
func Get(size int) []byte {
	idx := bucketIndex(size)
	if idx < 0 {
		return make([]byte, size)
	}
	bp := pools[idx].Get().(*[]byte)
	b := *bp
	if cap(b) < size {
		return make([]byte, size)
	}
	return b[:size]
}

// GetZeroed is Get followed by clearing the slice.
func GetZeroed(size int) []byte {
	b := Get(size)
	clear(b)
	return b
}

// Put returns b to the pool. Slices outside the pooled size classes are
// dropped. b must not be used after Put.
func Put(b []byte) {
	c := cap(b)
	if c < Size64K || c > MaxPooled {
		return
	}
	// Only file under a bucket whose every Get fits in c.
	idx := -1
	for i := len(sizes) - 1; i >= 0; i-- {
		if c >= sizes[i] {
			idx = i
			break
		}
	}
	b = b[:c]
	pools[idx].Put(&b)
}

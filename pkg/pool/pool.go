// Package pool provides reusable fixed-size byte buffers for streaming file
// content: copies into the replica, content digests and log compression.
package pool

import "sync"

// FixedBufferPool hands out buffers of exactly one size. Buffers of any other
// capacity are dropped on Put.
type FixedBufferPool struct {
	size int
	pool sync.Pool
}

// NewFixedBuffer creates a pool of size-byte buffers. size must be positive.
func NewFixedBuffer(size int) *FixedBufferPool {
	if size <= 0 {
		panic("pool: buffer size must be positive")
	}
	return &FixedBufferPool{
		size: size,
		pool: sync.Pool{
			New: func() any {
				b := make([]byte, size)
				return &b
			},
		},
	}
}

// Size returns the length of every buffer handed out by Get.
func (fp *FixedBufferPool) Size() int { return fp.size }

// Get returns a buffer of length Size.
func (fp *FixedBufferPool) Get() *[]byte {
	return fp.pool.Get().(*[]byte)
}

// Put returns b to the pool. The slice is reset to its full length.
func (fp *FixedBufferPool) Put(b *[]byte) {
	if b == nil || cap(*b) != fp.size {
		return
	}
	*b = (*b)[:fp.size]
	fp.pool.Put(b)
}

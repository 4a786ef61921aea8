// File: pool/bytepool.go
// Package pool provides reusable byte buffers for the read and write
// paths.
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0

package pool

import "sync"

// BytePool hands out fixed-size byte buffers backed by sync.Pool.
type BytePool struct {
	size int
	p    sync.Pool
}

// NewBytePool creates a pool of buffers of the given size.
func NewBytePool(size int) *BytePool {
	bp := &BytePool{size: size}
	bp.p.New = func() any {
		return make([]byte, size)
	}
	return bp
}

// Get returns a buffer of the pool's size.
func (b *BytePool) Get() []byte {
	return b.p.Get().([]byte)
}

// Put returns a buffer to the pool. Buffers of a different size are
// dropped for the GC.
func (b *BytePool) Put(buf []byte) {
	if cap(buf) != b.size {
		return
	}
	b.p.Put(buf[:b.size])
}

// Size returns the pooled buffer size.
func (b *BytePool) Size() int {
	return b.size
}

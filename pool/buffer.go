// File: pool/buffer.go
// License: Apache-2.0
//
// Owned, length-bounded packet buffer.

package pool

// Buffer is a length-bounded byte region carrying one packet.
type Buffer struct {
	data     []byte // backing array, len == cap of the pooled slab
	off, end int
	pool     *BufferPool
	released bool
}

// Bytes returns the live region. The slice is only valid while the caller owns b.
func (b *Buffer) Bytes() []byte {
	b.check()
	return b.data[b.off:b.end]
}

// Len returns the number of live bytes.
func (b *Buffer) Len() int {
	return b.end - b.off
}

// SetLen trims or extends the live region to n bytes from its start.
func (b *Buffer) SetLen(n int) {
	b.check()
	if n < 0 || b.off+n > len(b.data) {
		panic("pool: buffer length out of range")
	}
	b.end = b.off + n
}

// Pull drops n bytes from the front of the live region.
func (b *Buffer) Pull(n int) {
	b.check()
	if n < 0 || n > b.Len() {
		panic("pool: pull beyond buffer end")
	}
	b.off += n
}

// Clone returns a new buffer from the same pool holding a copy of the live region.
func (b *Buffer) Clone() *Buffer {
	b.check()
	c := b.pool.Get(b.Len())
	copy(c.data[c.off:c.end], b.data[b.off:b.end])
	return c
}

// Release hands the buffer back to its pool. Releasing twice panics.
func (b *Buffer) Release() {
	b.check()
	b.released = true
	b.pool.put(b)
}

// Released reports whether Release has been called.
func (b *Buffer) Released() bool {
	return b.released
}

func (b *Buffer) check() {
	if b.released {
		panic("pool: use of released buffer")
	}
}

// File: pool/bufferpool.go
// License: Apache-2.0
//
// Slab-recycling buffer pool with allocation accounting.

package pool

import (
	"sync"
	"sync/atomic"
)

// DefaultSlabSize fits a full Ethernet frame plus the outer packet header.
const DefaultSlabSize = 2048

// Stats aggregates buffer allocation/release counters.
type Stats struct {
	TotalAlloc int64
	TotalFree  int64
	InUse      int64
}

// BufferPool hands out *Buffer values backed by recycled slabs.
type BufferPool struct {
	slabSize int
	slabs    sync.Pool
	alloc    atomic.Int64
	free     atomic.Int64
}

// NewBufferPool creates a pool whose slabs are at least slabSize bytes.
func NewBufferPool(slabSize int) *BufferPool {
	if slabSize <= 0 {
		slabSize = DefaultSlabSize
	}
	p := &BufferPool{slabSize: slabSize}
	p.slabs.New = func() any {
		b := make([]byte, p.slabSize)
		return &b
	}
	return p
}

// Get returns a buffer with exactly size live bytes. The caller owns it.
func (p *BufferPool) Get(size int) *Buffer {
	var data []byte
	if size <= p.slabSize {
		data = *(p.slabs.Get().(*[]byte))
	} else {
		data = make([]byte, size)
	}
	p.alloc.Add(1)
	return &Buffer{data: data, end: size, pool: p}
}

// From returns a pooled buffer holding a copy of b.
func (p *BufferPool) From(b []byte) *Buffer {
	buf := p.Get(len(b))
	copy(buf.Bytes(), b)
	return buf
}

// Stats returns a snapshot of the pool counters.
func (p *BufferPool) Stats() Stats {
	a, f := p.alloc.Load(), p.free.Load()
	return Stats{TotalAlloc: a, TotalFree: f, InUse: a - f}
}

func (p *BufferPool) put(b *Buffer) {
	p.free.Add(1)
	if len(b.data) == p.slabSize {
		data := b.data
		p.slabs.Put(&data)
	}
	b.data = nil
}

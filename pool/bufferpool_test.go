package pool_test

import (
	"bytes"
	"testing"

	"github.com/Gibheer/fastd/pool"
)

func TestBufferPoolAccounting(t *testing.T) {
	p := pool.NewBufferPool(128)
	b1 := p.Get(64)
	b2 := p.Get(512) // larger than a slab
	if st := p.Stats(); st.InUse != 2 || st.TotalAlloc != 2 {
		t.Fatalf("unexpected stats after Get: %+v", st)
	}
	b1.Release()
	b2.Release()
	if st := p.Stats(); st.InUse != 0 || st.TotalFree != 2 {
		t.Fatalf("unexpected stats after Release: %+v", st)
	}
}

func TestBufferDoubleReleasePanics(t *testing.T) {
	p := pool.NewBufferPool(0)
	b := p.Get(10)
	b.Release()
	defer func() {
		if recover() == nil {
			t.Error("second Release did not panic")
		}
	}()
	b.Release()
}

func TestBufferPullAndClone(t *testing.T) {
	p := pool.NewBufferPool(0)
	b := p.From([]byte{1, 2, 3, 4, 5})
	b.Pull(2)
	if !bytes.Equal(b.Bytes(), []byte{3, 4, 5}) {
		t.Fatalf("Pull: got %v", b.Bytes())
	}
	c := b.Clone()
	b.Release()
	if !bytes.Equal(c.Bytes(), []byte{3, 4, 5}) {
		t.Fatalf("Clone: got %v", c.Bytes())
	}
	c.SetLen(1)
	if c.Len() != 1 {
		t.Fatalf("SetLen: got len %d", c.Len())
	}
	c.Release()
	if p.Stats().InUse != 0 {
		t.Error("buffers leaked")
	}
}

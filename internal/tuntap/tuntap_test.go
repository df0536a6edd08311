//go:build linux

package tuntap

import (
	"testing"

	"golang.org/x/sys/unix"

	"github.com/Gibheer/fastd/pool"
)

// pipeDevices returns a reading and a writing device over a non-blocking pipe.
func pipeDevices(t *testing.T, bp *pool.BufferPool) (r, w *Device) {
	t.Helper()
	var p [2]int
	if err := unix.Pipe2(p[:], unix.O_NONBLOCK|unix.O_CLOEXEC); err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() {
		unix.Close(p[0])
		unix.Close(p[1])
	})
	return &Device{name: "pipe-r", fd: p[0], mtu: 64, bufs: bp},
		&Device{name: "pipe-w", fd: p[1], mtu: 64, bufs: bp}
}

func TestReadWithoutFrameReturnsNil(t *testing.T) {
	bp := pool.NewBufferPool(pool.DefaultSlabSize)
	r, _ := pipeDevices(t, bp)

	buf, err := r.Read()
	if err != nil || buf != nil {
		t.Fatalf("Read = %v, %v", buf, err)
	}
	if bp.Stats().InUse != 0 {
		t.Fatal("buffer leaked")
	}
}

func TestWriteThenRead(t *testing.T) {
	bp := pool.NewBufferPool(pool.DefaultSlabSize)
	r, w := pipeDevices(t, bp)

	if err := w.Write(bp.From([]byte("frame"))); err != nil {
		t.Fatal(err)
	}
	buf, err := r.Read()
	if err != nil || buf == nil {
		t.Fatalf("Read = %v, %v", buf, err)
	}
	if string(buf.Bytes()) != "frame" {
		t.Fatalf("read %q", buf.Bytes())
	}
	buf.Release()
	if bp.Stats().InUse != 0 {
		t.Fatal("buffer leaked")
	}
}

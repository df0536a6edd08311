// File: fake/tunnel.go
// License: Apache-2.0
//
// Tunnel device double. Injected frames make the read end of a pipe readable
// so the device can be watched by a real multiplexer.

package fake

import (
	"errors"
	"fmt"

	"golang.org/x/sys/unix"

	"github.com/Gibheer/fastd/pool"
)

// Tunnel implements api.Tunnel.
type Tunnel struct {
	r, w    int
	bufs    *pool.BufferPool
	frames  [][]byte
	Written [][]byte
	// WriteErr, when set, is returned by Write.
	WriteErr error
}

// NewTunnel creates a tunnel allocating frames from bp.
func NewTunnel(bp *pool.BufferPool) (*Tunnel, error) {
	var p [2]int
	if err := unix.Pipe(p[:]); err != nil {
		return nil, fmt.Errorf("pipe: %w", err)
	}
	for _, fd := range p {
		if err := unix.SetNonblock(fd, true); err != nil {
			unix.Close(p[0])
			unix.Close(p[1])
			return nil, fmt.Errorf("set nonblock: %w", err)
		}
	}
	return &Tunnel{r: p[0], w: p[1], bufs: bp}, nil
}

// Inject queues a frame for Read and signals readiness.
func (t *Tunnel) Inject(frame []byte) {
	t.frames = append(t.frames, append([]byte(nil), frame...))
	unix.Write(t.w, []byte{0})
}

// FD returns the readable end of the pipe.
func (t *Tunnel) FD() int {
	return t.r
}

// Read returns the oldest injected frame, or nil.
func (t *Tunnel) Read() (*pool.Buffer, error) {
	if len(t.frames) == 0 {
		return nil, nil
	}
	var b [1]byte
	unix.Read(t.r, b[:])
	f := t.frames[0]
	t.frames = t.frames[1:]
	return t.bufs.From(f), nil
}

// Write records a copy of buf and releases it.
func (t *Tunnel) Write(buf *pool.Buffer) error {
	defer buf.Release()
	if t.WriteErr != nil {
		return t.WriteErr
	}
	t.Written = append(t.Written, append([]byte(nil), buf.Bytes()...))
	return nil
}

// Close closes the pipe.
func (t *Tunnel) Close() error {
	return errors.Join(unix.Close(t.r), unix.Close(t.w))
}

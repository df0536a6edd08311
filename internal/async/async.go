// File: internal/async/async.go
// License: Apache-2.0
//
// Cross-goroutine notification channel for the single-threaded dispatch loop.
// Other goroutines (signal handlers, config watchers) post small datagrams
// into one end of a unix socket pair; the loop watches the other end's
// descriptor and handles one message per readiness event.

package async

import (
	"errors"
	"fmt"
	"net"
	"syscall"

	"github.com/prep/socketpair"
	"golang.org/x/sys/unix"
)

// Kind is the type of an async message.
type Kind uint8

const (
	Wakeup Kind = iota + 1
	Reload
	Shutdown
	Dump // log a state dump
)

func (k Kind) String() string {
	switch k {
	case Wakeup:
		return "wakeup"
	case Reload:
		return "reload"
	case Shutdown:
		return "shutdown"
	case Dump:
		return "dump"
	default:
		return fmt.Sprintf("kind(%d)", uint8(k))
	}
}

// maxMessage bounds a message including its kind byte.
const maxMessage = 1024

// Message is one notification.
type Message struct {
	Kind    Kind
	Payload []byte
}

// Channel is the notification channel. Notify is safe for concurrent use;
// Receive must only be called by the loop.
type Channel struct {
	r, w net.Conn
	raw  syscall.RawConn
	fd   int
	buf  [maxMessage]byte
}

// New creates a channel backed by a datagram socket pair.
func New() (*Channel, error) {
	r, w, err := socketpair.New("unixgram")
	if err != nil {
		return nil, fmt.Errorf("async socketpair: %w", err)
	}
	sc, ok := r.(syscall.Conn)
	if !ok {
		r.Close()
		w.Close()
		return nil, errors.New("async socketpair: connection exposes no descriptor")
	}
	raw, err := sc.SyscallConn()
	if err != nil {
		r.Close()
		w.Close()
		return nil, fmt.Errorf("async socketpair: %w", err)
	}
	c := &Channel{r: r, w: w, raw: raw, fd: -1}
	if err := raw.Control(func(fd uintptr) { c.fd = int(fd) }); err != nil {
		c.Close()
		return nil, fmt.Errorf("async socketpair: %w", err)
	}
	return c, nil
}

// FD returns the descriptor to watch for read readiness.
func (c *Channel) FD() int {
	return c.fd
}

// Notify posts a message.
func (c *Channel) Notify(k Kind, payload []byte) error {
	if len(payload)+1 > maxMessage {
		return fmt.Errorf("async message of %d bytes exceeds %d", len(payload)+1, maxMessage)
	}
	msg := make([]byte, 0, len(payload)+1)
	msg = append(msg, byte(k))
	msg = append(msg, payload...)
	if _, err := c.w.Write(msg); err != nil {
		return fmt.Errorf("async notify: %w", err)
	}
	return nil
}

// Receive reads one pending message without blocking. ok is false when no
// message was pending. The payload is only valid until the next Receive.
func (c *Channel) Receive() (msg Message, ok bool, err error) {
	var n int
	var rerr error
	cerr := c.raw.Read(func(fd uintptr) bool {
		n, rerr = unix.Read(int(fd), c.buf[:])
		// never park on the runtime poller; the loop owns readiness
		return true
	})
	if cerr != nil {
		return Message{}, false, fmt.Errorf("async receive: %w", cerr)
	}
	if rerr != nil {
		if errors.Is(rerr, unix.EAGAIN) || errors.Is(rerr, unix.EINTR) {
			return Message{}, false, nil
		}
		return Message{}, false, fmt.Errorf("async receive: %w", rerr)
	}
	if n < 1 {
		return Message{}, false, nil
	}
	return Message{Kind: Kind(c.buf[0]), Payload: c.buf[1:n]}, true, nil
}

// Close closes both ends.
func (c *Channel) Close() error {
	return errors.Join(c.r.Close(), c.w.Close())
}

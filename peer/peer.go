// File: peer/peer.go
// License: Apache-2.0
//
// Remote tunnel endpoints and the sockets they send through.

package peer

import (
	"fmt"
	"net/netip"
	"time"

	"github.com/jpillora/backoff"
	"golang.org/x/sys/unix"
)

// Socket is a bound static socket or a dynamic per-peer socket.
type Socket struct {
	FD   int // -1 once closed
	Addr netip.AddrPort
	// Peer is set only for dynamic sockets; it owns the socket.
	Peer    *Peer
	Errored bool
}

// NewSocket wraps an already bound descriptor.
func NewSocket(fd int, addr netip.AddrPort) *Socket {
	return &Socket{FD: fd, Addr: addr}
}

// Dynamic reports whether s belongs to a single peer.
func (s *Socket) Dynamic() bool {
	return s.Peer != nil
}

// Close closes the descriptor. Closing twice is a no-op.
func (s *Socket) Close() error {
	if s.FD < 0 {
		return nil
	}
	fd := s.FD
	s.FD = -1
	if err := unix.Close(fd); err != nil {
		return fmt.Errorf("close socket fd %d: %w", fd, err)
	}
	return nil
}

// Peer is a remote tunnel endpoint.
type Peer struct {
	ID   uint32 // stable for the peer's lifetime, assigned by the registry
	Name string
	Addr netip.AddrPort
	Sock *Socket

	// Dynamic asks for a private socket whenever the peer needs one.
	Dynamic     bool
	Established bool

	retry backoff.Backoff
	freed bool
}

// New creates a peer whose handshake retries back off between min and max.
func New(name string, addr netip.AddrPort, min, max time.Duration) *Peer {
	return &Peer{
		Name: name,
		Addr: addr,
		retry: backoff.Backoff{
			Min:    min,
			Max:    max,
			Factor: 2,
			Jitter: true,
		},
	}
}

// IsSocketDynamic reports whether the peer currently owns a private socket.
func (p *Peer) IsSocketDynamic() bool {
	return p.Sock != nil && p.Sock.Peer == p
}

// SetDynamicSocket gives the peer a private socket.
func (p *Peer) SetDynamicSocket(s *Socket) {
	s.Peer = p
	p.Sock = s
}

// NextRetry returns the delay before the next handshake attempt and advances
// the retry timer.
func (p *Peer) NextRetry() time.Duration {
	return p.retry.Duration()
}

// RetryAttempts returns the number of retries since the last reset.
func (p *Peer) RetryAttempts() int {
	return int(p.retry.Attempt())
}

// SetEstablished records the handshake outcome; success resets the retry timer.
func (p *Peer) SetEstablished(ok bool) {
	p.Established = ok
	if ok {
		p.retry.Reset()
	}
}

// Freed reports whether the peer was destroyed.
func (p *Peer) Freed() bool {
	return p.freed
}

func (p *Peer) String() string {
	if p.Name != "" {
		return p.Name
	}
	return fmt.Sprintf("peer#%d", p.ID)
}

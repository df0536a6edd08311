// File: reactor/reactor.go
// License: Apache-2.0
//
// Platform-neutral readiness multiplexer contract. Two backends implement it:
// an epoll backend with a persistent interest list and a poll backend that
// re-submits a flat descriptor array on every wait. Both report the same
// events for the same descriptor states.

package reactor

import (
	"fmt"
	"time"

	"github.com/Gibheer/fastd/api"
)

// Kind identifies the logical source behind a descriptor.
type Kind uint8

const (
	KindTunnel Kind = iota + 1
	KindAsync
	KindSocket     // static socket, Tag.ID is its index
	KindPeerSocket // dynamic peer socket, Tag.ID is the peer ID
)

// Tag names a registered source.
type Tag struct {
	Kind Kind
	ID   uint32
}

// Flags describe readiness.
type Flags uint8

const (
	Readable Flags = 1 << iota
	Error          // error or hang-up
)

// Event is one ready source.
type Event struct {
	Tag   Tag
	Flags Flags
}

// Sources exposes the descriptors the multiplexer watches.
type Sources interface {
	TunnelFD() int
	AsyncFD() int
	NumSockets() int
	// SocketFD returns the descriptor of static socket i, or -1.
	SocketFD(i int) int
	NumPeers() int
	// PeerAt returns the ID of peer i and, when it owns a dynamic socket, its descriptor.
	PeerAt(i int) (id uint32, fd int, dynamic bool)
}

// Multiplexer waits for readiness on the registered sources.
type Multiplexer interface {
	RegisterTunnel() error
	RegisterSocket(i int) error
	// RegisterPeerSocket watches peer i's socket. Peers without a dynamic
	// socket are skipped without error.
	RegisterPeerSocket(i int) error
	// AddPeerSlot and RemovePeerSlot keep peer slots in step with the registry.
	AddPeerSlot()
	RemovePeerSlot(i int)
	// Wait blocks for at most timeout. The returned slice is reused by the
	// next call. An interrupted wait returns api.ErrInterrupted; any other
	// error is fatal.
	Wait(timeout time.Duration) ([]Event, error)
	Close() error
}

// Backend selects a Multiplexer implementation.
type Backend string

const (
	BackendEpoll Backend = "epoll"
	BackendPoll  Backend = "poll"
)

// New creates a multiplexer and registers the async channel of src.
func New(b Backend, src Sources) (Multiplexer, error) {
	switch b {
	case BackendEpoll:
		return newEpoll(src)
	case BackendPoll:
		return newPoll(src)
	default:
		return nil, fmt.Errorf("%w: backend %q", api.ErrInvalidArgument, b)
	}
}

// Timeout returns how long the loop may sleep: until the next maintenance or
// the head of the handshake schedule, whichever is earlier, never negative.
func Timeout(now, nextMaintenance, nextHandshake time.Time, handshakePending bool) time.Duration {
	d := nextMaintenance.Sub(now)
	if handshakePending {
		if h := nextHandshake.Sub(now); h < d {
			d = h
		}
	}
	if d < 0 {
		d = 0
	}
	return d
}

// timeoutMillis rounds up so a wait never ends before the deadline it serves.
func timeoutMillis(d time.Duration) int {
	if d <= 0 {
		return 0
	}
	ms := (d + time.Millisecond - 1) / time.Millisecond
	if ms > 1<<31-1 {
		ms = 1<<31 - 1
	}
	return int(ms)
}

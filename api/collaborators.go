// File: api/collaborators.go
// License: Apache-2.0
//
// Contracts of the collaborators the dispatch core calls into. Every method
// documented as consuming a *pool.Buffer takes ownership of it, on success
// and on failure alike.

package api

import (
	"net/netip"
	"time"

	"github.com/Gibheer/fastd/peer"
	"github.com/Gibheer/fastd/pool"
	"github.com/Gibheer/fastd/protocol"
)

// Tunnel is the local TUN/TAP device.
type Tunnel interface {
	// FD returns the descriptor watched for read readiness.
	FD() int
	// Read returns one frame, or nil when nothing could be read.
	Read() (*pool.Buffer, error)
	// Write delivers a decapsulated frame. It consumes buf.
	Write(buf *pool.Buffer) error
}

// Sender puts packets on the wire.
type Sender interface {
	// Send transmits typ followed by buf to addr through sock. It consumes buf.
	Send(sock *peer.Socket, addr netip.AddrPort, typ protocol.PacketType, buf *pool.Buffer) error
}

// Receiver reads datagrams from a ready socket.
type Receiver interface {
	// Receive returns one datagram, including its packet type byte, and its
	// source. A nil buffer with a nil error means the read would block.
	Receive(sock *peer.Socket) (*pool.Buffer, netip.AddrPort, error)
}

// Protocol is the session layer: handshake and payload transform.
type Protocol interface {
	// HandshakeInit starts a handshake with p.
	HandshakeInit(p *peer.Peer)
	// HandleHandshake processes a handshake packet. p is nil for unknown
	// senders. It consumes buf.
	HandleHandshake(sock *peer.Socket, from netip.AddrPort, p *peer.Peer, buf *pool.Buffer)
	// HandleRecv processes a data payload received from p. It consumes buf.
	HandleRecv(p *peer.Peer, buf *pool.Buffer)
	// Send encapsulates a tunnel frame for p. It consumes buf.
	Send(p *peer.Peer, buf *pool.Buffer)
}

// SocketFactory acquires a socket for a peer that has none.
type SocketFactory interface {
	Open(p *peer.Peer) (*peer.Socket, error)
}

// Housekeeper runs peer housekeeping on every maintenance tick.
type Housekeeper interface {
	Maintain(now time.Time)
}

// Core is the part of the dispatch loop a Protocol calls back into. Every
// method consuming a buffer takes ownership of it.
type Core interface {
	// PutSend queues a data packet for p.
	PutSend(p *peer.Peer, buf *pool.Buffer)
	// PutSendHandshake queues a handshake packet for p.
	PutSendHandshake(p *peer.Peer, buf *pool.Buffer)
	// Deliver writes a decapsulated frame received from p to the tunnel.
	Deliver(p *peer.Peer, buf *pool.Buffer)
	// Buffers returns the pool packets are allocated from.
	Buffers() *pool.BufferPool
	// Now returns the loop's time snapshot.
	Now() time.Time
}

// Binder is implemented by protocols that need the Core. Bind is called once
// before the loop starts.
type Binder interface {
	Bind(core Core)
}

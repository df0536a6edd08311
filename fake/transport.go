// File: fake/transport.go
// License: Apache-2.0
//
// In-memory socket transport. Sockets opened by it are real stream socket
// pairs so they can be watched and torn down like UDP sockets.

package fake

import (
	"fmt"
	"net/netip"

	"golang.org/x/sys/unix"

	"github.com/Gibheer/fastd/peer"
	"github.com/Gibheer/fastd/pool"
	"github.com/Gibheer/fastd/protocol"
)

// Datagram is one packet seen by the transport.
type Datagram struct {
	Sock *peer.Socket
	Addr netip.AddrPort
	Type protocol.PacketType
	Data []byte
}

// Transport implements api.Sender, api.Receiver and api.SocketFactory.
type Transport struct {
	bufs    *pool.BufferPool
	inbound map[*peer.Socket][]Datagram
	remote  map[*peer.Socket]int

	Sent []Datagram
	// SendErr, when set, is returned by Send.
	SendErr error
	// OpenErr, when set, is returned by Open.
	OpenErr error
	Opened  []*peer.Socket
}

// NewTransport creates a transport allocating receive buffers from bp.
func NewTransport(bp *pool.BufferPool) *Transport {
	return &Transport{
		bufs:    bp,
		inbound: make(map[*peer.Socket][]Datagram),
		remote:  make(map[*peer.Socket]int),
	}
}

// NewSocket creates a socket pair, returning the local end wrapped as a
// socket bound to addr. The remote end is kept for Deliver and Close.
func (t *Transport) NewSocket(addr netip.AddrPort) (*peer.Socket, error) {
	fds, err := unix.Socketpair(unix.AF_UNIX, unix.SOCK_STREAM, 0)
	if err != nil {
		return nil, fmt.Errorf("socketpair: %w", err)
	}
	unix.SetNonblock(fds[0], true)
	unix.SetNonblock(fds[1], true)
	s := peer.NewSocket(fds[0], addr)
	t.remote[s] = fds[1]
	return s, nil
}

// Deliver queues an inbound datagram for sock and makes sock readable.
// data must start with the packet type byte.
func (t *Transport) Deliver(sock *peer.Socket, from netip.AddrPort, data []byte) {
	t.inbound[sock] = append(t.inbound[sock], Datagram{Sock: sock, Addr: from, Data: append([]byte(nil), data...)})
	if fd, ok := t.remote[sock]; ok {
		unix.Write(fd, []byte{0})
	}
}

// HangUp closes the remote end of sock so it reports an error condition.
func (t *Transport) HangUp(sock *peer.Socket) {
	if fd, ok := t.remote[sock]; ok {
		unix.Close(fd)
		delete(t.remote, sock)
	}
}

// Open implements api.SocketFactory.
func (t *Transport) Open(p *peer.Peer) (*peer.Socket, error) {
	if t.OpenErr != nil {
		return nil, t.OpenErr
	}
	s, err := t.NewSocket(netip.AddrPortFrom(netip.IPv4Unspecified(), uint16(40000+len(t.Opened))))
	if err != nil {
		return nil, err
	}
	t.Opened = append(t.Opened, s)
	return s, nil
}

// Send records a copy of buf and releases it.
func (t *Transport) Send(sock *peer.Socket, addr netip.AddrPort, typ protocol.PacketType, buf *pool.Buffer) error {
	defer buf.Release()
	if t.SendErr != nil {
		return t.SendErr
	}
	t.Sent = append(t.Sent, Datagram{Sock: sock, Addr: addr, Type: typ, Data: append([]byte(nil), buf.Bytes()...)})
	return nil
}

// Receive returns the oldest datagram delivered to sock, or nil.
func (t *Transport) Receive(sock *peer.Socket) (*pool.Buffer, netip.AddrPort, error) {
	q := t.inbound[sock]
	if len(q) == 0 {
		return nil, netip.AddrPort{}, nil
	}
	d := q[0]
	t.inbound[sock] = q[1:]
	if fd := sock.FD; fd >= 0 {
		var b [1]byte
		unix.Read(fd, b[:])
	}
	return t.bufs.From(d.Data), d.Addr, nil
}

// SentTo returns the datagrams sent to addr.
func (t *Transport) SentTo(addr netip.AddrPort) []Datagram {
	var out []Datagram
	for _, d := range t.Sent {
		if d.Addr == addr {
			out = append(out, d)
		}
	}
	return out
}

// Close closes every remote end.
func (t *Transport) Close() {
	for s, fd := range t.remote {
		unix.Close(fd)
		delete(t.remote, s)
	}
}

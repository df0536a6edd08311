//go:build unix

// File: daemon/udp_unix.go
// License: Apache-2.0
//
// Default socket transport on raw non-blocking UDP descriptors. The
// descriptors are watched by the daemon's own multiplexer, so they never
// pass through the runtime network poller.

package daemon

import (
	"errors"
	"fmt"
	"net/netip"

	"golang.org/x/sys/unix"

	"github.com/Gibheer/fastd/api"
	"github.com/Gibheer/fastd/peer"
	"github.com/Gibheer/fastd/pool"
	"github.com/Gibheer/fastd/protocol"
)

// UDPTransport sends and receives datagrams whose first byte is the packet type.
type UDPTransport struct {
	bufs *pool.BufferPool
}

// NewUDPTransport creates a transport allocating receive buffers from bp.
func NewUDPTransport(bp *pool.BufferPool) *UDPTransport {
	return &UDPTransport{bufs: bp}
}

func defaultTransport(bp *pool.BufferPool) *UDPTransport {
	return NewUDPTransport(bp)
}

// ListenUDP binds a non-blocking UDP socket to addr. A zero port picks an
// ephemeral one; the returned socket carries the bound address.
func ListenUDP(addr netip.AddrPort) (*peer.Socket, error) {
	family := unix.AF_INET
	if is6(addr.Addr()) {
		family = unix.AF_INET6
	}
	fd, err := unix.Socket(family, unix.SOCK_DGRAM, unix.IPPROTO_UDP)
	if err != nil {
		return nil, fmt.Errorf("socket: %w", err)
	}
	unix.CloseOnExec(fd)
	if err := unix.SetNonblock(fd, true); err != nil {
		unix.Close(fd)
		return nil, fmt.Errorf("set nonblock: %w", err)
	}
	if family == unix.AF_INET6 && addr.Addr().IsUnspecified() {
		// dual-stack so one socket serves v4-mapped peers too
		unix.SetsockoptInt(fd, unix.IPPROTO_IPV6, unix.IPV6_V6ONLY, 0)
	}
	if err := unix.Bind(fd, sockaddr(family, addr)); err != nil {
		unix.Close(fd)
		return nil, fmt.Errorf("bind %s: %w", addr, err)
	}
	sa, err := unix.Getsockname(fd)
	if err != nil {
		unix.Close(fd)
		return nil, fmt.Errorf("getsockname: %w", err)
	}
	return peer.NewSocket(fd, addrPort(sa)), nil
}

// Open creates a private socket for p on an ephemeral port.
func (t *UDPTransport) Open(p *peer.Peer) (*peer.Socket, error) {
	local := netip.AddrPortFrom(netip.IPv4Unspecified(), 0)
	if is6(p.Addr.Addr()) {
		local = netip.AddrPortFrom(netip.IPv6Unspecified(), 0)
	}
	return ListenUDP(local)
}

// Send transmits typ followed by buf. It consumes buf.
func (t *UDPTransport) Send(sock *peer.Socket, addr netip.AddrPort, typ protocol.PacketType, buf *pool.Buffer) error {
	defer buf.Release()
	family := unix.AF_INET
	if is6(sock.Addr.Addr()) {
		family = unix.AF_INET6
	} else if is6(addr.Addr()) {
		return fmt.Errorf("%w: v6 destination %s on v4 socket", api.ErrInvalidArgument, addr)
	}
	hdr := [1]byte{byte(typ)}
	_, err := unix.SendmsgBuffers(sock.FD, [][]byte{hdr[:], buf.Bytes()}, nil, sockaddr(family, addr), 0)
	if err != nil {
		return fmt.Errorf("sendmsg to %s: %w", addr, err)
	}
	return nil
}

// Receive reads one datagram. It returns a nil buffer when the read would block.
func (t *UDPTransport) Receive(sock *peer.Socket) (*pool.Buffer, netip.AddrPort, error) {
	buf := t.bufs.Get(pool.DefaultSlabSize)
	n, from, err := unix.Recvfrom(sock.FD, buf.Bytes(), 0)
	if err != nil {
		buf.Release()
		if errors.Is(err, unix.EAGAIN) || errors.Is(err, unix.EINTR) {
			return nil, netip.AddrPort{}, nil
		}
		return nil, netip.AddrPort{}, fmt.Errorf("recvfrom: %w", err)
	}
	buf.SetLen(n)
	return buf, addrPort(from), nil
}

func is6(a netip.Addr) bool {
	return a.Is6() && !a.Is4In6()
}

func sockaddr(family int, ap netip.AddrPort) unix.Sockaddr {
	if family == unix.AF_INET6 {
		return &unix.SockaddrInet6{Port: int(ap.Port()), Addr: ap.Addr().As16()}
	}
	return &unix.SockaddrInet4{Port: int(ap.Port()), Addr: ap.Addr().Unmap().As4()}
}

func addrPort(sa unix.Sockaddr) netip.AddrPort {
	switch sa := sa.(type) {
	case *unix.SockaddrInet4:
		return netip.AddrPortFrom(netip.AddrFrom4(sa.Addr), uint16(sa.Port))
	case *unix.SockaddrInet6:
		return netip.AddrPortFrom(netip.AddrFrom16(sa.Addr).Unmap(), uint16(sa.Port))
	}
	return netip.AddrPort{}
}

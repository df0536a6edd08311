//go:build !unix

// File: daemon/udp_other.go
// License: Apache-2.0

package daemon

import (
	"net/netip"

	"github.com/Gibheer/fastd/peer"
	"github.com/Gibheer/fastd/pool"
	"github.com/Gibheer/fastd/protocol"
)

type noTransport struct{}

func (noTransport) Open(*peer.Peer) (*peer.Socket, error) { return nil, nil }
func (noTransport) Send(*peer.Socket, netip.AddrPort, protocol.PacketType, *pool.Buffer) error {
	return nil
}
func (noTransport) Receive(*peer.Socket) (*pool.Buffer, netip.AddrPort, error) {
	return nil, netip.AddrPort{}, nil
}

func defaultTransport(*pool.BufferPool) *noTransport { return nil }

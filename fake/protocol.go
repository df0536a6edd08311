// File: fake/protocol.go
// License: Apache-2.0
//
// Recording protocol double.

package fake

import (
	"net/netip"

	"github.com/Gibheer/fastd/api"
	"github.com/Gibheer/fastd/peer"
	"github.com/Gibheer/fastd/pool"
	"github.com/Gibheer/fastd/protocol"
)

// Call is one recorded protocol invocation.
type Call struct {
	Peer *peer.Peer
	From netip.AddrPort
	Data []byte
}

// Protocol implements api.Protocol and api.Binder. Sends and handshake
// requests are recorded and passed on to the bound Core.
type Protocol struct {
	Core api.Core

	Inits      []*peer.Peer
	Handshakes []Call
	Received   []Call
	Sent       []Call
	// EstablishOnInit marks peers established as soon as a handshake starts.
	EstablishOnInit bool
}

// Bind implements api.Binder.
func (f *Protocol) Bind(core api.Core) {
	f.Core = core
}

// HandshakeInit records p and queues a minimal request.
func (f *Protocol) HandshakeInit(p *peer.Peer) {
	f.Inits = append(f.Inits, p)
	if f.EstablishOnInit {
		p.SetEstablished(true)
	}
	if f.Core == nil {
		return
	}
	b, _ := protocol.AppendRequest(nil, protocol.Request{Method: []byte("fake")})
	f.Core.PutSendHandshake(p, f.Core.Buffers().From(b))
}

// HandleHandshake records the packet and releases it.
func (f *Protocol) HandleHandshake(_ *peer.Socket, from netip.AddrPort, p *peer.Peer, buf *pool.Buffer) {
	f.Handshakes = append(f.Handshakes, Call{Peer: p, From: from, Data: append([]byte(nil), buf.Bytes()...)})
	buf.Release()
}

// HandleRecv records the payload and delivers it through the Core.
func (f *Protocol) HandleRecv(p *peer.Peer, buf *pool.Buffer) {
	f.Received = append(f.Received, Call{Peer: p, Data: append([]byte(nil), buf.Bytes()...)})
	if f.Core == nil {
		buf.Release()
		return
	}
	f.Core.Deliver(p, buf)
}

// Send records the frame and queues it through the Core.
func (f *Protocol) Send(p *peer.Peer, buf *pool.Buffer) {
	f.Sent = append(f.Sent, Call{Peer: p, Data: append([]byte(nil), buf.Bytes()...)})
	if f.Core == nil {
		buf.Release()
		return
	}
	f.Core.PutSend(p, buf)
}

// SentTo returns the frames handed to Send for p.
func (f *Protocol) SentTo(p *peer.Peer) [][]byte {
	var out [][]byte
	for _, c := range f.Sent {
		if c.Peer == p {
			out = append(out, c.Data)
		}
	}
	return out
}

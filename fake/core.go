// File: fake/core.go
// License: Apache-2.0
//
// Recording Core for testing protocols without a dispatch loop.

package fake

import (
	"time"

	"github.com/Gibheer/fastd/peer"
	"github.com/Gibheer/fastd/pool"
	"github.com/Gibheer/fastd/protocol"
)

// Packet is one buffer handed to the Core.
type Packet struct {
	Peer *peer.Peer
	Type protocol.PacketType
	Data []byte
}

// Core implements api.Core. Every buffer is copied and released.
type Core struct {
	Pool      *pool.BufferPool
	Clock     time.Time
	Sent      []Packet
	Delivered []Packet
}

// NewCore creates a core with its own buffer pool.
func NewCore() *Core {
	return &Core{Pool: pool.NewBufferPool(pool.DefaultSlabSize), Clock: time.Unix(0, 0)}
}

func (c *Core) record(dst *[]Packet, p *peer.Peer, typ protocol.PacketType, buf *pool.Buffer) {
	*dst = append(*dst, Packet{Peer: p, Type: typ, Data: append([]byte(nil), buf.Bytes()...)})
	buf.Release()
}

func (c *Core) PutSend(p *peer.Peer, buf *pool.Buffer) {
	c.record(&c.Sent, p, protocol.PacketData, buf)
}

func (c *Core) PutSendHandshake(p *peer.Peer, buf *pool.Buffer) {
	c.record(&c.Sent, p, protocol.PacketHandshake, buf)
}

func (c *Core) Deliver(p *peer.Peer, buf *pool.Buffer) {
	c.record(&c.Delivered, p, protocol.PacketData, buf)
}

func (c *Core) Buffers() *pool.BufferPool { return c.Pool }
func (c *Core) Now() time.Time            { return c.Clock }

// Last returns the most recent sent packet.
func (c *Core) Last() Packet {
	if len(c.Sent) == 0 {
		return Packet{}
	}
	return c.Sent[len(c.Sent)-1]
}

// File: daemon/dispatch.go
// License: Apache-2.0
//
// Readiness handling: one wait per loop iteration, then tunnel frames,
// async events and socket input are routed to their handlers.

package daemon

import (
	"errors"

	"github.com/Gibheer/fastd/api"
	"github.com/Gibheer/fastd/control"
	"github.com/Gibheer/fastd/internal/async"
	"github.com/Gibheer/fastd/peer"
	"github.com/Gibheer/fastd/pool"
	"github.com/Gibheer/fastd/protocol"
	"github.com/Gibheer/fastd/reactor"
)

// WaitAndDispatch sleeps until a source is ready, maintenance is due or the
// earliest handshake retry is due, then dispatches every ready source. An
// interrupted wait returns nil without dispatching; any other wait failure
// is returned and fatal.
func (c *Context) WaitAndDispatch() error {
	next, pending := c.queue.NextHandshake()
	timeout := reactor.Timeout(c.now, c.nextMaintenance, next, pending)

	events, err := c.mux.Wait(timeout)
	if errors.Is(err, api.ErrInterrupted) {
		return nil
	}
	if err != nil {
		return err
	}

	c.now = c.clock()
	c.metrics.Add(control.MetricIterations, 1)
	reactor.Dispatch(events, c)
	return nil
}

// HandleTunnel reads one frame from the tunnel and forwards it.
func (c *Context) HandleTunnel() {
	buf, err := c.tunnel.Read()
	if err != nil {
		c.log.Warn().Err(err).Msg("tunnel read failed")
		return
	}
	if buf == nil {
		return
	}
	c.metrics.Add(control.MetricTunnelFrames, 1)

	if c.cfg.Mode == control.ModeTAP {
		if buf.Len() < peer.EthHeaderLen {
			c.log.Debug().Int("len", buf.Len()).Msg("truncated frame received from tunnel")
			c.metrics.Add(control.MetricTunnelTrunc, 1)
			buf.Release()
			return
		}
		dst, err := peer.DestAddress(buf.Bytes())
		if err == nil && dst.IsUnicast() {
			if p := c.reg.FindByLinkAddress(dst); p != nil {
				c.proto.Send(p, buf)
				return
			}
		}
	}
	c.SendAll(nil, buf)
}

// SendAll hands a copy of buf to every established peer except except, then
// releases buf. Each peer's send is independent of the others.
func (c *Context) SendAll(except *peer.Peer, buf *pool.Buffer) {
	for _, p := range c.reg.Peers() {
		if p == except || !p.Established {
			continue
		}
		c.proto.Send(p, buf.Clone())
	}
	buf.Release()
}

// HandleSocketError resets a peer's private socket, or marks a static socket
// errored. The errored static socket keeps its slot but is no longer watched.
func (c *Context) HandleSocketError(t reactor.Tag) {
	c.metrics.Add(control.MetricSocketErrors, 1)
	switch t.Kind {
	case reactor.KindPeerSocket:
		p := c.reg.ByID(t.ID)
		if p == nil {
			return
		}
		c.resetPeerSocket(p)
	case reactor.KindSocket:
		i := int(t.ID)
		if i >= c.reg.NumSockets() {
			return
		}
		s := c.reg.Socket(i)
		if s.Errored {
			return
		}
		s.Errored = true
		c.log.Error().Str("socket", s.Addr.String()).Msg("socket error, disabling socket")
		if err := s.Close(); err != nil {
			c.log.Warn().Err(err).Msg("closing errored socket")
		}
		for _, p := range c.reg.Peers() {
			if p.Sock == s {
				c.reg.ResetSocket(p)
			}
		}
	}
}

func (c *Context) resetPeerSocket(p *peer.Peer) {
	c.log.Debug().Stringer("peer", p).Msg("resetting peer socket")
	c.metrics.Add(control.MetricPeerResets, 1)
	if err := c.reg.ResetSocket(p); err != nil {
		c.log.Warn().Err(err).Stringer("peer", p).Msg("closing peer socket")
	}
	if i := c.reg.IndexOf(p); i >= 0 {
		if err := c.mux.RegisterPeerSocket(i); err != nil {
			c.log.Warn().Err(err).Stringer("peer", p).Msg("updating peer slot")
		}
	}
}

// HandleReceive reads one datagram from the socket behind t. Handshake
// packets go to the protocol after header validation; data packets from a
// known, established peer are queued for the protocol.
func (c *Context) HandleReceive(t reactor.Tag) {
	sock := c.socketFor(t)
	if sock == nil || sock.FD < 0 {
		return
	}
	buf, from, err := c.receiver.Receive(sock)
	if err != nil {
		c.log.Debug().Err(err).Str("socket", sock.Addr.String()).Msg("receive failed")
		return
	}
	if buf == nil {
		return
	}
	if buf.Len() < 1 {
		buf.Release()
		return
	}

	typ := protocol.PacketType(buf.Bytes()[0])
	buf.Pull(1)

	var p *peer.Peer
	if sock.Dynamic() {
		p = sock.Peer
	} else {
		p = c.reg.FindByAddr(from)
	}

	switch typ {
	case protocol.PacketHandshake:
		if _, err := protocol.DecodeHeader(buf.Bytes()); err != nil {
			c.log.Debug().Err(err).Str("from", from.String()).Msg("dropping handshake packet")
			c.metrics.Add(control.MetricMalformed, 1)
			buf.Release()
			return
		}
		c.proto.HandleHandshake(sock, from, p, buf)

	case protocol.PacketData:
		if p == nil || !p.Established {
			c.log.Debug().Str("from", from.String()).Msg("data packet from unknown or unestablished peer")
			buf.Release()
			return
		}
		c.PutHandleRecv(p, buf)

	default:
		c.log.Debug().Uint8("type", uint8(typ)).Str("from", from.String()).Msg("packet with unknown type")
		c.metrics.Add(control.MetricMalformed, 1)
		buf.Release()
	}
}

func (c *Context) socketFor(t reactor.Tag) *peer.Socket {
	switch t.Kind {
	case reactor.KindSocket:
		if int(t.ID) < c.reg.NumSockets() {
			return c.reg.Socket(int(t.ID))
		}
	case reactor.KindPeerSocket:
		if p := c.reg.ByID(t.ID); p != nil {
			return p.Sock
		}
	}
	return nil
}

// HandleAsync handles one message from the async channel.
func (c *Context) HandleAsync() {
	msg, ok, err := c.async.Receive()
	if err != nil {
		c.log.Warn().Err(err).Msg("async receive failed")
		return
	}
	if !ok {
		return
	}
	c.log.Debug().Stringer("event", msg.Kind).Msg("async event")
	switch msg.Kind {
	case async.Wakeup:
	case async.Reload:
		c.reload()
	case async.Shutdown:
		c.stopping = true
	case async.Dump:
		c.log.Info().Interface("state", c.hooks.DumpState()).Msg("state dump")
	default:
		c.log.Warn().Stringer("event", msg.Kind).Msg("unknown async event")
	}
}

// Deliver writes a decapsulated frame from p to the tunnel. In TAP mode the
// frame's source link address is learned for p first.
func (c *Context) Deliver(p *peer.Peer, buf *pool.Buffer) {
	if c.cfg.Mode == control.ModeTAP {
		if buf.Len() < peer.EthHeaderLen {
			c.log.Debug().Stringer("peer", p).Int("len", buf.Len()).Msg("truncated frame received from peer")
			c.metrics.Add(control.MetricTunnelTrunc, 1)
			buf.Release()
			return
		}
		if src, err := peer.SourceAddress(buf.Bytes()); err == nil {
			c.reg.LearnLinkAddress(src, p, c.now)
		}
	}
	n := buf.Len()
	if err := c.tunnel.Write(buf); err != nil {
		c.log.Warn().Err(err).Stringer("peer", p).Msg("tunnel write failed")
		return
	}
	c.metrics.Add(control.MetricBytesForwarded, int64(n))
}

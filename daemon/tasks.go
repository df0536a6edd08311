// File: daemon/tasks.go
// License: Apache-2.0
//
// Typed task helpers and task execution.

package daemon

import (
	"fmt"
	"time"

	"github.com/Gibheer/fastd/api"
	"github.com/Gibheer/fastd/control"
	"github.com/Gibheer/fastd/internal/task"
	"github.com/Gibheer/fastd/peer"
	"github.com/Gibheer/fastd/pool"
	"github.com/Gibheer/fastd/protocol"
)

// PutSend queues a data packet for p. It consumes buf.
func (c *Context) PutSend(p *peer.Peer, buf *pool.Buffer) {
	c.queue.Enqueue(task.NewSend(p, protocol.PacketData, buf), 0)
}

// PutSendHandshake queues a handshake packet for p. It consumes buf.
func (c *Context) PutSendHandshake(p *peer.Peer, buf *pool.Buffer) {
	c.queue.Enqueue(task.NewSend(p, protocol.PacketHandshake, buf), 0)
}

// PutHandleRecv queues a received payload for the protocol. It consumes buf.
func (c *Context) PutHandleRecv(p *peer.Peer, buf *pool.Buffer) {
	c.queue.Enqueue(task.NewHandleReceived(p, buf), 0)
}

// ScheduleHandshake schedules a handshake with p after delay, replacing any
// handshake already scheduled for p.
func (c *Context) ScheduleHandshake(p *peer.Peer, delay time.Duration) {
	c.queue.Enqueue(task.NewScheduleHandshake(p), delay)
}

// RunTasks executes every task whose deadline has passed and returns the
// number executed.
func (c *Context) RunTasks() int {
	n := 0
	for {
		t, ok := c.queue.Dequeue()
		if !ok {
			break
		}
		c.execute(t)
		n++
	}
	if n > 0 {
		c.metrics.Add(control.MetricTasksExecuted, int64(n))
	}
	return n
}

func (c *Context) execute(t task.Task) {
	switch t := t.(type) {
	case *task.Send:
		c.executeSend(t)
	case *task.HandleReceived:
		c.proto.HandleRecv(t.Peer(), t.Buf)
	case *task.ScheduleHandshake:
		c.executeHandshake(t.Peer())
	}
}

func (c *Context) executeSend(t *task.Send) {
	p := t.Peer()
	if p.Sock == nil || p.Sock.FD < 0 {
		c.log.Debug().Stringer("peer", p).Stringer("type", t.Type).Err(api.ErrNoSocket).Msg("dropping packet")
		t.Buf.Release()
		return
	}
	n := int64(t.Buf.Len())
	if err := c.sender.Send(p.Sock, p.Addr, t.Type, t.Buf); err != nil {
		c.log.Debug().Err(err).Stringer("peer", p).Msg("send failed")
		return
	}
	if t.Type == protocol.PacketData {
		c.metrics.Add(control.MetricBytesForwarded, n)
	}
}

// executeHandshake starts a handshake unless p is already established and
// schedules the next attempt with p's retry backoff.
func (c *Context) executeHandshake(p *peer.Peer) {
	if p.Established {
		return
	}
	if p.Sock == nil || p.Sock.FD < 0 {
		if err := c.acquireSocket(p); err != nil {
			c.log.Warn().Err(err).Stringer("peer", p).Msg("no socket for handshake")
			c.ScheduleHandshake(p, p.NextRetry())
			return
		}
	}
	c.log.Debug().Stringer("peer", p).Int("attempt", p.RetryAttempts()).Msg("sending handshake")
	c.proto.HandshakeInit(p)
	c.ScheduleHandshake(p, p.NextRetry())
}

// acquireSocket opens a private socket for a dynamic peer, or binds p to the
// first usable static socket of the matching address family.
func (c *Context) acquireSocket(p *peer.Peer) error {
	if p.Dynamic {
		s, err := c.sockets.Open(p)
		if err != nil {
			return err
		}
		p.SetDynamicSocket(s)
		if i := c.reg.IndexOf(p); i >= 0 {
			return c.mux.RegisterPeerSocket(i)
		}
		return nil
	}
	want6 := p.Addr.Addr().Is6() && !p.Addr.Addr().Is4In6()
	for i := 0; i < c.reg.NumSockets(); i++ {
		s := c.reg.Socket(i)
		if s.Errored || s.FD < 0 {
			continue
		}
		a := s.Addr.Addr()
		if a.Is6() && !a.Is4In6() {
			// a v6 socket reaches v4 peers through mapped addresses unless bound to a specific v6 address
			if want6 || a.IsUnspecified() {
				p.Sock = s
				return nil
			}
			continue
		}
		if !want6 {
			p.Sock = s
			return nil
		}
	}
	return fmt.Errorf("%w: peer %s", api.ErrNoSocket, p)
}

// File: internal/task/task.go
// License: Apache-2.0
//
// Deferred work items of the dispatch loop.

package task

import (
	"github.com/Gibheer/fastd/peer"
	"github.com/Gibheer/fastd/pool"
	"github.com/Gibheer/fastd/protocol"
)

// Task is one of *Send, *HandleReceived or *ScheduleHandshake.
type Task interface {
	// Peer returns the peer the task concerns.
	Peer() *peer.Peer
	// discard releases whatever the task owns.
	discard()
}

// Send transmits Buf to Peer. The task owns Buf until it is executed.
type Send struct {
	peer *peer.Peer
	Type protocol.PacketType
	Buf  *pool.Buffer
}

// NewSend creates a send task. It consumes buf.
func NewSend(p *peer.Peer, typ protocol.PacketType, buf *pool.Buffer) *Send {
	return &Send{peer: p, Type: typ, Buf: buf}
}

func (t *Send) Peer() *peer.Peer { return t.peer }
func (t *Send) discard()         { t.Buf.Release() }

// HandleReceived hands a received payload to the session layer.
type HandleReceived struct {
	peer *peer.Peer
	Buf  *pool.Buffer
}

// NewHandleReceived creates a receive task. It consumes buf.
func NewHandleReceived(p *peer.Peer, buf *pool.Buffer) *HandleReceived {
	return &HandleReceived{peer: p, Buf: buf}
}

func (t *HandleReceived) Peer() *peer.Peer { return t.peer }
func (t *HandleReceived) discard()         { t.Buf.Release() }

// ScheduleHandshake starts a handshake attempt with the peer.
type ScheduleHandshake struct {
	peer *peer.Peer
}

// NewScheduleHandshake creates a handshake task.
func NewScheduleHandshake(p *peer.Peer) *ScheduleHandshake {
	return &ScheduleHandshake{peer: p}
}

func (t *ScheduleHandshake) Peer() *peer.Peer { return t.peer }
func (t *ScheduleHandshake) discard()         {}

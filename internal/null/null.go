// File: internal/null/null.go
// License: Apache-2.0
//
// The "null" method: a one round-trip handshake carried in codec headers and
// payloads passed through without encryption. It is meant for testing and
// trusted links only.

package null

import (
	"net/netip"
	"time"

	"github.com/rs/zerolog"

	"github.com/Gibheer/fastd/api"
	"github.com/Gibheer/fastd/peer"
	"github.com/Gibheer/fastd/pool"
	"github.com/Gibheer/fastd/protocol"
)

// MethodName is announced in handshake requests.
const MethodName = "null"

// ProtoVersion is the handshake protocol id.
const ProtoVersion = 1

// ReplyMethodMismatch rejects a request naming another method.
const ReplyMethodMismatch protocol.ReplyCode = 2

// Method implements api.Protocol. It must only be used on the loop goroutine.
type Method struct {
	core    api.Core
	log     zerolog.Logger
	reqID   uint8
	pending map[*peer.Peer]uint8
	scratch []byte
}

// New creates the method. It must be bound to a Core before use.
func New(log zerolog.Logger) *Method {
	return &Method{
		log:     log.With().Str("method", MethodName).Logger(),
		pending: make(map[*peer.Peer]uint8),
		scratch: make([]byte, 0, protocol.RequestHeaderSize+len(MethodName)),
	}
}

// Bind implements api.Binder.
func (m *Method) Bind(core api.Core) {
	m.core = core
}

// HandshakeInit sends a request to p and remembers its id.
func (m *Method) HandshakeInit(p *peer.Peer) {
	m.reqID = (m.reqID + 1) & 0x3F
	req := protocol.Request{
		Header: protocol.Header{ReqID: m.reqID},
		Proto:  ProtoVersion,
		Method: []byte(MethodName),
	}
	b, err := protocol.AppendRequest(m.scratch[:0], req)
	if err != nil {
		m.log.Error().Err(err).Msg("encoding handshake request")
		return
	}
	m.pending[p] = m.reqID
	m.core.PutSendHandshake(p, m.core.Buffers().From(b))
}

// HandleHandshake answers requests from known peers and completes the
// handshake on a successful reply to the outstanding request.
func (m *Method) HandleHandshake(sock *peer.Socket, from netip.AddrPort, p *peer.Peer, buf *pool.Buffer) {
	defer buf.Release()

	h, err := protocol.DecodeHeader(buf.Bytes())
	if err != nil {
		m.log.Debug().Err(err).Str("from", from.String()).Msg("malformed handshake")
		return
	}
	if p == nil {
		m.log.Debug().Str("from", from.String()).Msg("handshake from unknown peer")
		return
	}
	if h.Reply {
		m.handleReply(p, buf.Bytes())
	} else {
		m.handleRequest(sock, p, buf.Bytes())
	}
}

func (m *Method) handleRequest(sock *peer.Socket, p *peer.Peer, b []byte) {
	req, err := protocol.DecodeRequest(b)
	if err != nil {
		m.log.Debug().Err(err).Stringer("peer", p).Msg("malformed handshake request")
		return
	}
	code := protocol.ReplySuccess
	if string(req.Method) != MethodName {
		m.log.Warn().Stringer("peer", p).Bytes("method", req.Method).Msg("peer requested unsupported method")
		code = ReplyMethodMismatch
	}
	if p.Sock == nil && (!sock.Dynamic() || sock.Peer == p) {
		p.Sock = sock
	}

	out, err := protocol.AppendReply(m.scratch[:0], protocol.Reply{
		Header: protocol.Header{ReqID: req.ReqID, Reply: true},
		Code:   code,
	})
	if err != nil {
		m.log.Error().Err(err).Msg("encoding handshake reply")
		return
	}
	m.core.PutSendHandshake(p, m.core.Buffers().From(out))

	if code == protocol.ReplySuccess && !p.Established {
		p.SetEstablished(true)
		m.log.Info().Stringer("peer", p).Msg("connection established")
	}
}

func (m *Method) handleReply(p *peer.Peer, b []byte) {
	rep, err := protocol.DecodeReply(b)
	if err != nil {
		m.log.Debug().Err(err).Stringer("peer", p).Msg("malformed handshake reply")
		return
	}
	id, ok := m.pending[p]
	if !ok || id != rep.ReqID {
		m.log.Debug().Stringer("peer", p).Uint8("req_id", rep.ReqID).Msg("unexpected handshake reply")
		return
	}
	delete(m.pending, p)
	if rep.Code != protocol.ReplySuccess {
		m.log.Warn().Stringer("peer", p).Uint8("code", uint8(rep.Code)).Msg("handshake rejected")
		return
	}
	if !p.Established {
		p.SetEstablished(true)
		m.log.Info().Stringer("peer", p).Msg("connection established")
	}
}

// HandleRecv delivers the payload as is.
func (m *Method) HandleRecv(p *peer.Peer, buf *pool.Buffer) {
	m.core.Deliver(p, buf)
}

// Send queues the frame as is.
func (m *Method) Send(p *peer.Peer, buf *pool.Buffer) {
	m.core.PutSend(p, buf)
}

// Maintain implements api.Housekeeper: outstanding requests of destroyed
// peers are forgotten.
func (m *Method) Maintain(time.Time) {
	for p := range m.pending {
		if p.Freed() {
			delete(m.pending, p)
		}
	}
}

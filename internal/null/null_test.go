package null

import (
	"net/netip"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"github.com/Gibheer/fastd/fake"
	"github.com/Gibheer/fastd/peer"
	"github.com/Gibheer/fastd/protocol"
)

type side struct {
	m    *Method
	core *fake.Core
	sock *peer.Socket
	peer *peer.Peer // the remote side as seen locally
}

func newSide(name, remote string) *side {
	s := &side{
		m:    New(zerolog.Nop()),
		core: fake.NewCore(),
		sock: peer.NewSocket(-1, netip.MustParseAddrPort("0.0.0.0:10000")),
		peer: peer.New(name, netip.MustParseAddrPort(remote), time.Second, time.Minute),
	}
	s.m.Bind(s.core)
	return s
}

// deliver hands the last packet sent by from to to.
func deliver(from, to *side, src string) {
	pkt := from.core.Last()
	to.m.HandleHandshake(to.sock, netip.MustParseAddrPort(src), to.peer, to.core.Pool.From(pkt.Data))
}

func TestHandshakeRoundTrip(t *testing.T) {
	a := newSide("b", "192.0.2.2:10000")
	b := newSide("a", "192.0.2.1:10000")

	a.m.HandshakeInit(a.peer)
	req := a.core.Last()
	if req.Type != protocol.PacketHandshake || req.Peer != a.peer {
		t.Fatalf("unexpected request %+v", req)
	}
	r, err := protocol.DecodeRequest(req.Data)
	if err != nil || string(r.Method) != MethodName || r.Proto != ProtoVersion {
		t.Fatalf("bad request %+v: %v", r, err)
	}

	deliver(a, b, "192.0.2.1:10000")
	if !b.peer.Established || b.peer.Sock != b.sock {
		t.Fatal("responder not established")
	}
	rep, err := protocol.DecodeReply(b.core.Last().Data)
	if err != nil || !rep.Reply || rep.Code != protocol.ReplySuccess || rep.ReqID != r.ReqID {
		t.Fatalf("bad reply %+v: %v", rep, err)
	}

	deliver(b, a, "192.0.2.2:10000")
	if !a.peer.Established {
		t.Fatal("initiator not established")
	}
	if st := a.core.Pool.Stats(); st.InUse != 0 {
		t.Fatalf("%d buffers leaked", st.InUse)
	}
}

func TestMethodMismatchRejected(t *testing.T) {
	b := newSide("a", "192.0.2.1:10000")
	req, _ := protocol.AppendRequest(nil, protocol.Request{Header: protocol.Header{ReqID: 7}, Method: []byte("salsa2012+umac")})
	b.m.HandleHandshake(b.sock, b.peer.Addr, b.peer, b.core.Pool.From(req))

	if b.peer.Established {
		t.Fatal("established with an unsupported method")
	}
	rep, err := protocol.DecodeReply(b.core.Last().Data)
	if err != nil || rep.Code != ReplyMethodMismatch || rep.ReqID != 7 {
		t.Fatalf("bad reply %+v: %v", rep, err)
	}
}

func TestUnexpectedReplyIgnored(t *testing.T) {
	a := newSide("b", "192.0.2.2:10000")
	a.m.HandshakeInit(a.peer)
	r, _ := protocol.DecodeRequest(a.core.Last().Data)

	stale, _ := protocol.AppendReply(nil, protocol.Reply{Header: protocol.Header{ReqID: (r.ReqID + 1) & 0x3F, Reply: true}})
	a.m.HandleHandshake(a.sock, a.peer.Addr, a.peer, a.core.Pool.From(stale))
	if a.peer.Established {
		t.Fatal("reply with a foreign request id accepted")
	}

	failed, _ := protocol.AppendReply(nil, protocol.Reply{Header: protocol.Header{ReqID: r.ReqID, Reply: true}, Code: 9})
	a.m.HandleHandshake(a.sock, a.peer.Addr, a.peer, a.core.Pool.From(failed))
	if a.peer.Established {
		t.Fatal("error reply accepted")
	}
}

func TestUnknownSenderIgnored(t *testing.T) {
	b := newSide("a", "192.0.2.1:10000")
	req, _ := protocol.AppendRequest(nil, protocol.Request{Method: []byte(MethodName)})
	b.m.HandleHandshake(b.sock, netip.MustParseAddrPort("198.51.100.1:1"), nil, b.core.Pool.From(req))
	if len(b.core.Sent) != 0 {
		t.Fatal("answered an unknown sender")
	}
	if b.core.Pool.Stats().InUse != 0 {
		t.Fatal("buffer leaked")
	}
}

func TestPayloadPassThrough(t *testing.T) {
	s := newSide("b", "192.0.2.2:10000")
	s.m.Send(s.peer, s.core.Pool.From([]byte("out")))
	s.m.HandleRecv(s.peer, s.core.Pool.From([]byte("in")))

	if len(s.core.Sent) != 1 || s.core.Sent[0].Type != protocol.PacketData || string(s.core.Sent[0].Data) != "out" {
		t.Fatalf("send = %+v", s.core.Sent)
	}
	if len(s.core.Delivered) != 1 || string(s.core.Delivered[0].Data) != "in" {
		t.Fatalf("delivered = %+v", s.core.Delivered)
	}
}

func TestMaintainForgetsFreedPeers(t *testing.T) {
	s := newSide("b", "192.0.2.2:10000")
	reg := peer.NewRegistry()
	reg.AddPeer(s.peer)
	s.m.HandshakeInit(s.peer)
	reg.Free(s.peer)

	s.m.Maintain(time.Now())
	if len(s.m.pending) != 0 {
		t.Fatal("pending request of freed peer kept")
	}
}

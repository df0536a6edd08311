//go:build linux

package daemon

import (
	"fmt"
	"net/netip"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"github.com/Gibheer/fastd/control"
	"github.com/Gibheer/fastd/fake"
	"github.com/Gibheer/fastd/internal/null"
	"github.com/Gibheer/fastd/peer"
	"github.com/Gibheer/fastd/pool"
)

type node struct {
	c    *Context
	tun  *fake.Tunnel
	sock *peer.Socket
}

func newNode(t *testing.T, backend string) *node {
	t.Helper()
	cfg := control.DefaultConfig()
	cfg.Backend = backend
	cfg.MaintenanceInterval = 20 * time.Millisecond

	bufs := pool.NewBufferPool(pool.DefaultSlabSize)
	tun, err := fake.NewTunnel(bufs)
	if err != nil {
		t.Fatal(err)
	}
	sock, err := ListenUDP(netip.MustParseAddrPort("127.0.0.1:0"))
	if err != nil {
		t.Fatal(err)
	}
	c, err := New(cfg,
		WithTunnel(tun),
		WithProtocol(null.New(zerolog.Nop())),
		WithSockets(sock),
		WithBufferPool(bufs),
	)
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() {
		c.Close()
		tun.Close()
	})
	return &node{c: c, tun: tun, sock: sock}
}

func step(t *testing.T, nodes ...*node) {
	t.Helper()
	for _, n := range nodes {
		if err := n.c.WaitAndDispatch(); err != nil {
			t.Fatal(err)
		}
		n.c.RunTasks()
		n.c.Maintain()
	}
}

func TestNullMethodOverUDP(t *testing.T) {
	for _, backend := range []string{"epoll", "poll"} {
		t.Run(backend, func(t *testing.T) {
			a, b := newNode(t, backend), newNode(t, backend)
			if err := a.c.SyncPeers([]control.PeerConfig{{Name: "b", Address: b.sock.Addr.String()}}); err != nil {
				t.Fatal(err)
			}
			if err := b.c.SyncPeers([]control.PeerConfig{{Name: "a", Address: a.sock.Addr.String()}}); err != nil {
				t.Fatal(err)
			}
			pa, pb := a.c.Registry().Peer(0), b.c.Registry().Peer(0)

			for i := 0; i < 200 && !(pa.Established && pb.Established); i++ {
				step(t, a, b)
			}
			if !pa.Established || !pb.Established {
				t.Fatal("handshake did not complete")
			}

			want := frame(peer.LinkAddr{0xff, 0xff, 0xff, 0xff, 0xff, 0xff}, macA, "over the wire")
			a.tun.Inject(want)
			for i := 0; i < 200 && len(b.tun.Written) == 0; i++ {
				step(t, a, b)
			}
			if len(b.tun.Written) != 1 || string(b.tun.Written[0]) != string(want) {
				t.Fatalf("b received %s", fmt.Sprint(b.tun.Written))
			}
			if b.c.Registry().FindByLinkAddress(macA) != pb {
				t.Fatal("b did not learn a's link address")
			}
		})
	}
}

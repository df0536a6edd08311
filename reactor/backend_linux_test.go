//go:build linux
// +build linux

package reactor_test

import (
	"errors"
	"testing"
	"time"

	"golang.org/x/sys/unix"

	"github.com/Gibheer/fastd/api"
	"github.com/Gibheer/fastd/reactor"
)

type testPeer struct {
	id      uint32
	fd      int
	dynamic bool
}

type sources struct {
	tun, async int
	socks      []int
	peers      []testPeer
}

func (s *sources) TunnelFD() int      { return s.tun }
func (s *sources) AsyncFD() int       { return s.async }
func (s *sources) NumSockets() int    { return len(s.socks) }
func (s *sources) SocketFD(i int) int { return s.socks[i] }
func (s *sources) NumPeers() int      { return len(s.peers) }
func (s *sources) PeerAt(i int) (uint32, int, bool) {
	p := s.peers[i]
	return p.id, p.fd, p.dynamic
}

func pipe(t *testing.T) (r, w int) {
	t.Helper()
	var p [2]int
	if err := unix.Pipe2(p[:], unix.O_NONBLOCK|unix.O_CLOEXEC); err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { unix.Close(p[0]); unix.Close(p[1]) })
	return p[0], p[1]
}

func socketpair(t *testing.T) (a, b int) {
	t.Helper()
	fds, err := unix.Socketpair(unix.AF_UNIX, unix.SOCK_STREAM|unix.SOCK_NONBLOCK|unix.SOCK_CLOEXEC, 0)
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { unix.Close(fds[0]); unix.Close(fds[1]) })
	return fds[0], fds[1]
}

// waitFor collects events until want is seen or the attempts run out.
func waitFor(t *testing.T, m reactor.Multiplexer, want reactor.Event) []reactor.Event {
	t.Helper()
	var all []reactor.Event
	for i := 0; i < 5; i++ {
		evs, err := m.Wait(100 * time.Millisecond)
		if err != nil && !errors.Is(err, api.ErrInterrupted) {
			t.Fatal(err)
		}
		all = append(all, evs...)
		for _, ev := range evs {
			if ev == want {
				return all
			}
		}
	}
	t.Fatalf("event %+v not reported, got %+v", want, all)
	return nil
}

func TestBackendsRouteIdentically(t *testing.T) {
	for _, backend := range []reactor.Backend{reactor.BackendEpoll, reactor.BackendPoll} {
		t.Run(string(backend), func(t *testing.T) {
			tunR, tunW := pipe(t)
			asyncR, asyncW := pipe(t)
			s0, s0Remote := socketpair(t)
			sd, _ := socketpair(t)
			shared, _ := socketpair(t)

			src := &sources{
				tun:   tunR,
				async: asyncR,
				socks: []int{s0},
				peers: []testPeer{
					{id: 11, fd: shared, dynamic: false},
					{id: 12, fd: sd, dynamic: true},
				},
			}
			m, err := reactor.New(backend, src)
			if err != nil {
				t.Fatal(err)
			}
			defer m.Close()

			if err := m.RegisterTunnel(); err != nil {
				t.Fatal(err)
			}
			if err := m.RegisterSocket(0); err != nil {
				t.Fatal(err)
			}
			for i := range src.peers {
				m.AddPeerSlot()
				if err := m.RegisterPeerSocket(i); err != nil {
					t.Fatal(err)
				}
			}

			// nothing ready: the wait times out empty
			evs, err := m.Wait(10 * time.Millisecond)
			if err != nil && !errors.Is(err, api.ErrInterrupted) {
				t.Fatal(err)
			}
			if len(evs) != 0 {
				t.Fatalf("unexpected events %+v", evs)
			}

			unix.Write(tunW, []byte{1})
			unix.Write(asyncW, []byte{1})
			waitFor(t, m, reactor.Event{Tag: reactor.Tag{Kind: reactor.KindTunnel}, Flags: reactor.Readable})
			waitFor(t, m, reactor.Event{Tag: reactor.Tag{Kind: reactor.KindAsync}, Flags: reactor.Readable})

			// the dynamic peer socket fails
			if err := unix.Shutdown(sd, unix.SHUT_RDWR); err != nil {
				t.Fatal(err)
			}
			evs = waitFor(t, m, reactor.Event{
				Tag:   reactor.Tag{Kind: reactor.KindPeerSocket, ID: 12},
				Flags: reactor.Readable | reactor.Error,
			})
			for _, ev := range evs {
				if ev.Tag.Kind == reactor.KindSocket && ev.Flags&reactor.Error != 0 {
					t.Errorf("static socket reported an error: %+v", ev)
				}
				if ev.Tag.Kind == reactor.KindPeerSocket && ev.Tag.ID == 11 {
					t.Error("non-dynamic peer socket was watched")
				}
			}

			// the static socket keeps working
			unix.Write(s0Remote, []byte("x"))
			waitFor(t, m, reactor.Event{Tag: reactor.Tag{Kind: reactor.KindSocket, ID: 0}, Flags: reactor.Readable})
		})
	}
}

func TestPollPeerSlots(t *testing.T) {
	tunR, _ := pipe(t)
	asyncR, _ := pipe(t)
	a, aRemote := socketpair(t)
	b, bRemote := socketpair(t)

	src := &sources{tun: tunR, async: asyncR, peers: []testPeer{{id: 1, fd: a, dynamic: true}, {id: 2, fd: b, dynamic: true}}}
	m, err := reactor.New(reactor.BackendPoll, src)
	if err != nil {
		t.Fatal(err)
	}
	for i := range src.peers {
		m.AddPeerSlot()
		m.RegisterPeerSocket(i)
	}

	// drop peer 0; its slot goes away and peer 2 shifts down
	m.RemovePeerSlot(0)
	src.peers = src.peers[1:]

	unix.Write(aRemote, []byte("a"))
	unix.Write(bRemote, []byte("b"))
	evs := waitFor(t, m, reactor.Event{Tag: reactor.Tag{Kind: reactor.KindPeerSocket, ID: 2}, Flags: reactor.Readable})
	for _, ev := range evs {
		if ev.Tag.ID == 1 {
			t.Error("removed peer still watched")
		}
	}
}

func TestNewUnknownBackend(t *testing.T) {
	if _, err := reactor.New("kqueue", &sources{}); !errors.Is(err, api.ErrInvalidArgument) {
		t.Errorf("got %v, want ErrInvalidArgument", err)
	}
}

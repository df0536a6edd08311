//go:build linux
// +build linux

// File: reactor/epoll_linux.go
// License: Apache-2.0
//
// Linux epoll(7) backend. Descriptors stay in the interest list until they
// are closed, so peer slot bookkeeping is a no-op here.

package reactor

import (
	"errors"
	"time"

	"golang.org/x/sys/unix"

	"github.com/Gibheer/fastd/api"
)

const maxEpollEvents = 16

type epollMux struct {
	epfd   int
	src    Sources
	raw    [maxEpollEvents]unix.EpollEvent
	events []Event
}

func newEpoll(src Sources) (Multiplexer, error) {
	epfd, err := unix.EpollCreate1(unix.EPOLL_CLOEXEC)
	if err != nil {
		return nil, api.Fatal("epoll_create1", err)
	}
	m := &epollMux{
		epfd:   epfd,
		src:    src,
		events: make([]Event, 0, maxEpollEvents),
	}
	if err := m.add(src.AsyncFD(), Tag{Kind: KindAsync}); err != nil {
		unix.Close(epfd)
		return nil, err
	}
	return m, nil
}

// add puts fd into the interest list; a descriptor already present is re-tagged.
func (m *epollMux) add(fd int, t Tag) error {
	ev := unix.EpollEvent{
		Events: unix.EPOLLIN,
		Fd:     int32(t.Kind),
		Pad:    int32(t.ID),
	}
	err := unix.EpollCtl(m.epfd, unix.EPOLL_CTL_ADD, fd, &ev)
	if errors.Is(err, unix.EEXIST) {
		err = unix.EpollCtl(m.epfd, unix.EPOLL_CTL_MOD, fd, &ev)
	}
	if err != nil {
		return api.Fatal("epoll_ctl", err).WithContext("fd", fd)
	}
	return nil
}

func (m *epollMux) RegisterTunnel() error {
	return m.add(m.src.TunnelFD(), Tag{Kind: KindTunnel})
}

func (m *epollMux) RegisterSocket(i int) error {
	fd := m.src.SocketFD(i)
	if fd < 0 {
		return nil
	}
	return m.add(fd, Tag{Kind: KindSocket, ID: uint32(i)})
}

func (m *epollMux) RegisterPeerSocket(i int) error {
	id, fd, dynamic := m.src.PeerAt(i)
	if !dynamic || fd < 0 {
		return nil
	}
	return m.add(fd, Tag{Kind: KindPeerSocket, ID: id})
}

func (m *epollMux) AddPeerSlot()         {}
func (m *epollMux) RemovePeerSlot(_ int) {}

func (m *epollMux) Wait(timeout time.Duration) ([]Event, error) {
	n, err := unix.EpollWait(m.epfd, m.raw[:], timeoutMillis(timeout))
	if err != nil {
		if errors.Is(err, unix.EINTR) {
			return nil, api.ErrInterrupted
		}
		return nil, api.Fatal("epoll_wait", err)
	}

	m.events = m.events[:0]
	for _, ev := range m.raw[:n] {
		var f Flags
		if ev.Events&unix.EPOLLIN != 0 {
			f |= Readable
		}
		if ev.Events&(unix.EPOLLERR|unix.EPOLLHUP) != 0 {
			f |= Error
		}
		m.events = append(m.events, Event{
			Tag:   Tag{Kind: Kind(ev.Fd), ID: uint32(ev.Pad)},
			Flags: f,
		})
	}
	return m.events, nil
}

func (m *epollMux) Close() error {
	return unix.Close(m.epfd)
}

//go:build linux || darwin || freebsd || netbsd || openbsd
// +build linux darwin freebsd netbsd openbsd

// File: reactor/poll_unix.go
// License: Apache-2.0
//
// poll(2) backend. The whole descriptor array is submitted on every wait:
//
//	[0]                  tunnel
//	[1]                  async channel
//	[2, 2+nsocks)        static sockets
//	[2+nsocks, ...)      one slot per peer, -1 unless it owns a dynamic socket

package reactor

import (
	"errors"
	"fmt"
	"time"

	"golang.org/x/sys/unix"

	"github.com/Gibheer/fastd/api"
)

const (
	pollTunnel = 0
	pollAsync  = 1
	pollFirst  = 2
	pollErrors = unix.POLLERR | unix.POLLHUP | unix.POLLNVAL
)

type pollMux struct {
	src    Sources
	nsocks int
	fds    []unix.PollFd
	events []Event
}

func newPoll(src Sources) (Multiplexer, error) {
	nsocks := src.NumSockets()
	fds := make([]unix.PollFd, pollFirst+nsocks, pollFirst+nsocks+src.NumPeers())
	for i := range fds {
		fds[i] = unix.PollFd{Fd: -1, Events: unix.POLLIN}
	}
	fds[pollAsync].Fd = int32(src.AsyncFD())
	return &pollMux{src: src, nsocks: nsocks, fds: fds}, nil
}

func (m *pollMux) RegisterTunnel() error {
	m.fds[pollTunnel].Fd = int32(m.src.TunnelFD())
	return nil
}

func (m *pollMux) RegisterSocket(i int) error {
	if i < 0 || i >= m.nsocks {
		return fmt.Errorf("%w: socket index %d", api.ErrInvalidArgument, i)
	}
	m.fds[pollFirst+i].Fd = int32(m.src.SocketFD(i))
	return nil
}

func (m *pollMux) RegisterPeerSocket(i int) error {
	slot := pollFirst + m.nsocks + i
	if i < 0 || slot >= len(m.fds) {
		return fmt.Errorf("%w: peer index %d", api.ErrInvalidArgument, i)
	}
	_, fd, dynamic := m.src.PeerAt(i)
	if !dynamic || fd < 0 {
		fd = -1
	}
	m.fds[slot].Fd = int32(fd)
	return nil
}

func (m *pollMux) AddPeerSlot() {
	m.fds = append(m.fds, unix.PollFd{Fd: -1, Events: unix.POLLIN})
}

func (m *pollMux) RemovePeerSlot(i int) {
	slot := pollFirst + m.nsocks + i
	if i < 0 || slot >= len(m.fds) {
		return
	}
	m.fds = append(m.fds[:slot], m.fds[slot+1:]...)
}

func (m *pollMux) Wait(timeout time.Duration) ([]Event, error) {
	if _, err := unix.Poll(m.fds, timeoutMillis(timeout)); err != nil {
		if errors.Is(err, unix.EINTR) {
			return nil, api.ErrInterrupted
		}
		return nil, api.Fatal("poll", err)
	}

	m.events = m.events[:0]
	if m.fds[pollTunnel].Revents&unix.POLLIN != 0 {
		m.events = append(m.events, Event{Tag: Tag{Kind: KindTunnel}, Flags: Readable})
	}
	if m.fds[pollAsync].Revents&unix.POLLIN != 0 {
		m.events = append(m.events, Event{Tag: Tag{Kind: KindAsync}, Flags: Readable})
	}

	for i := 0; i < m.nsocks; i++ {
		pfd := &m.fds[pollFirst+i]
		if f := flags(pfd.Revents); f != 0 {
			if f&Error != 0 {
				// an errored static socket is not watched again until re-registered
				pfd.Fd = -1
			}
			m.events = append(m.events, Event{Tag: Tag{Kind: KindSocket, ID: uint32(i)}, Flags: f})
		}
	}

	base := pollFirst + m.nsocks
	for i := 0; base+i < len(m.fds) && i < m.src.NumPeers(); i++ {
		if f := flags(m.fds[base+i].Revents); f != 0 {
			id, _, _ := m.src.PeerAt(i)
			m.events = append(m.events, Event{Tag: Tag{Kind: KindPeerSocket, ID: id}, Flags: f})
		}
	}
	return m.events, nil
}

func (m *pollMux) Close() error {
	m.fds = nil
	return nil
}

func flags(revents int16) Flags {
	var f Flags
	if revents&unix.POLLIN != 0 {
		f |= Readable
	}
	if revents&pollErrors != 0 {
		f |= Error
	}
	return f
}

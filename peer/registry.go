// File: peer/registry.go
// License: Apache-2.0
//
// Registry of live peers and sockets. Peer slots are index-addressable in
// insertion order; the order matches the multiplexer's peer slots.

package peer

import (
	"net/netip"
	"time"
)

type linkEntry struct {
	peer *Peer
	seen time.Time
}

// Registry holds the static sockets, the peers and the learned link addresses.
// It is owned by the dispatch loop and is not safe for concurrent use.
type Registry struct {
	socks  []*Socket
	peers  []*Peer
	byID   map[uint32]*Peer
	links  map[LinkAddr]linkEntry
	nextID uint32
}

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{
		byID:  make(map[uint32]*Peer),
		links: make(map[LinkAddr]linkEntry),
	}
}

// AddSocket appends a static socket and returns its index.
func (r *Registry) AddSocket(s *Socket) int {
	r.socks = append(r.socks, s)
	return len(r.socks) - 1
}

// Socket returns static socket i.
func (r *Registry) Socket(i int) *Socket {
	return r.socks[i]
}

// NumSockets returns the number of static sockets.
func (r *Registry) NumSockets() int {
	return len(r.socks)
}

// AddPeer assigns p an ID, appends it and returns its index.
func (r *Registry) AddPeer(p *Peer) int {
	r.nextID++
	p.ID = r.nextID
	r.peers = append(r.peers, p)
	r.byID[p.ID] = p
	return len(r.peers) - 1
}

// Peer returns peer i.
func (r *Registry) Peer(i int) *Peer {
	return r.peers[i]
}

// NumPeers returns the number of live peers.
func (r *Registry) NumPeers() int {
	return len(r.peers)
}

// Peers returns the live peers. The slice must not be modified.
func (r *Registry) Peers() []*Peer {
	return r.peers
}

// ByID returns the live peer with the given ID, or nil.
func (r *Registry) ByID(id uint32) *Peer {
	return r.byID[id]
}

// IndexOf returns the slot index of p, or -1.
func (r *Registry) IndexOf(p *Peer) int {
	for i, q := range r.peers {
		if q == p {
			return i
		}
	}
	return -1
}

// FindByAddr returns the peer with the given remote address, or nil.
func (r *Registry) FindByAddr(addr netip.AddrPort) *Peer {
	for _, p := range r.peers {
		if p.Addr == addr {
			return p
		}
	}
	return nil
}

// Free removes p from the registry and marks it destroyed. The caller must
// have purged every queued task referencing p beforehand.
func (r *Registry) Free(p *Peer) {
	i := r.IndexOf(p)
	if i < 0 {
		return
	}
	r.peers = append(r.peers[:i], r.peers[i+1:]...)
	delete(r.byID, p.ID)
	r.ForgetLinkAddresses(p)
	p.freed = true
}

// ResetSocket drops the peer's socket, closing it when it is private.
// The peer reacquires a socket on its next handshake.
func (r *Registry) ResetSocket(p *Peer) error {
	if p.Sock == nil {
		return nil
	}
	var err error
	if p.IsSocketDynamic() {
		err = p.Sock.Close()
	}
	p.Sock = nil
	p.Established = false
	return err
}

// LearnLinkAddress records that addr lives behind p.
func (r *Registry) LearnLinkAddress(addr LinkAddr, p *Peer, now time.Time) {
	if !addr.IsUnicast() {
		return
	}
	r.links[addr] = linkEntry{peer: p, seen: now}
}

// FindByLinkAddress returns the peer a unicast address was learned from, or nil.
func (r *Registry) FindByLinkAddress(addr LinkAddr) *Peer {
	return r.links[addr].peer
}

// ForgetLinkAddresses drops all addresses learned from p.
func (r *Registry) ForgetLinkAddresses(p *Peer) {
	for a, e := range r.links {
		if e.peer == p {
			delete(r.links, a)
		}
	}
}

// ExpireLinkAddresses drops addresses not seen within stale and returns how many went away.
func (r *Registry) ExpireLinkAddresses(now time.Time, stale time.Duration) int {
	n := 0
	for a, e := range r.links {
		if now.Sub(e.seen) > stale {
			delete(r.links, a)
			n++
		}
	}
	return n
}

// File: daemon/peers.go
// License: Apache-2.0
//
// Peer lifecycle. Destruction is two-step: detach, which purges every queued
// task and schedule entry and closes the private socket, then free.

package daemon

import (
	"errors"
	"fmt"
	"net/netip"

	"github.com/Gibheer/fastd/api"
	"github.com/Gibheer/fastd/control"
	"github.com/Gibheer/fastd/peer"
)

// AddPeer registers p, gives it a multiplexer slot and schedules an
// immediate handshake.
func (c *Context) AddPeer(p *peer.Peer) error {
	i := c.reg.AddPeer(p)
	c.mux.AddPeerSlot()
	if err := c.mux.RegisterPeerSocket(i); err != nil {
		c.detachPeer(p, i)
		c.reg.Free(p)
		return err
	}
	c.ScheduleHandshake(p, 0)
	c.log.Info().Stringer("peer", p).Str("addr", p.Addr.String()).Msg("peer added")
	return nil
}

// DeletePeer destroys p. No task referencing p survives, and every buffer
// such a task owned is released. Deleting an unregistered peer fails with
// api.ErrNotFound.
func (c *Context) DeletePeer(p *peer.Peer) error {
	i := c.reg.IndexOf(p)
	if i < 0 {
		return api.NewError(api.ErrCodeNotFound, "daemon.DeletePeer", nil).WithContext("peer", p.String())
	}
	c.detachPeer(p, i)
	c.reg.Free(p)
	c.log.Info().Stringer("peer", p).Msg("peer deleted")
	return nil
}

func (c *Context) detachPeer(p *peer.Peer, i int) {
	if n := c.queue.Purge(p); n > 0 {
		c.metrics.Add(control.MetricTasksPurged, int64(n))
	}
	c.mux.RemovePeerSlot(i)
	if err := c.reg.ResetSocket(p); err != nil {
		c.log.Warn().Err(err).Stringer("peer", p).Msg("closing peer socket")
	}
	c.reg.ForgetLinkAddresses(p)
}

// PeerFromConfig creates an unregistered peer from its configuration.
func (c *Context) PeerFromConfig(pc control.PeerConfig) (*peer.Peer, error) {
	addr, err := netip.ParseAddrPort(pc.Address)
	if err != nil {
		return nil, fmt.Errorf("%w: peer %s: %v", api.ErrInvalidArgument, pc.Name, err)
	}
	p := peer.New(pc.Name, netip.AddrPortFrom(addr.Addr().Unmap(), addr.Port()), c.cfg.HandshakeMinInterval, c.cfg.HandshakeMaxInterval)
	p.Dynamic = pc.Dynamic
	return p, nil
}

// SyncPeers makes the registered peers match cfgs. Peers are identified by
// name and address; changed peers are deleted and added again.
func (c *Context) SyncPeers(cfgs []control.PeerConfig) error {
	want := make(map[string]control.PeerConfig, len(cfgs))
	for _, pc := range cfgs {
		want[peerKey(pc.Name, pc.Address)] = pc
	}

	var stale []*peer.Peer
	have := make(map[string]bool, c.reg.NumPeers())
	for _, p := range c.reg.Peers() {
		k := peerKey(p.Name, p.Addr.String())
		if pc, ok := want[k]; ok && pc.Dynamic == p.Dynamic {
			have[k] = true
			continue
		}
		stale = append(stale, p)
	}
	var errs []error
	for _, p := range stale {
		if err := c.DeletePeer(p); err != nil {
			errs = append(errs, err)
		}
	}

	for _, pc := range cfgs {
		k := peerKey(pc.Name, pc.Address)
		if have[k] {
			continue
		}
		p, err := c.PeerFromConfig(pc)
		if err != nil {
			errs = append(errs, err)
			continue
		}
		if err := c.AddPeer(p); err != nil {
			errs = append(errs, err)
			continue
		}
		have[k] = true
	}
	return errors.Join(errs...)
}

func peerKey(name, addr string) string {
	if ap, err := netip.ParseAddrPort(addr); err == nil {
		addr = netip.AddrPortFrom(ap.Addr().Unmap(), ap.Port()).String()
	}
	return name + "|" + addr
}

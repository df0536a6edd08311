// File: daemon/run.go
// License: Apache-2.0
//
// Main loop, periodic maintenance and configuration reload.

package daemon

import (
	"context"
	"runtime"

	"github.com/Gibheer/fastd/affinity"
	"github.com/Gibheer/fastd/control"
	"github.com/Gibheer/fastd/internal/async"
)

// Run iterates wait, task execution and maintenance until a shutdown event
// arrives, ctx is done or the wait fails fatally. With a configured cpu the
// loop runs on a locked thread pinned to it.
func (c *Context) Run(ctx context.Context) error {
	if c.cfg.CPU >= 0 {
		runtime.LockOSThread()
		defer runtime.UnlockOSThread()
		if err := affinity.Pin(c.cfg.CPU); err != nil {
			c.log.Warn().Err(err).Int("cpu", c.cfg.CPU).Msg("cpu pinning failed, running unpinned")
		} else {
			c.log.Info().Int("cpu", c.cfg.CPU).Msg("loop pinned")
		}
	}
	stop := context.AfterFunc(ctx, func() {
		if err := c.async.Notify(async.Shutdown, nil); err != nil {
			c.log.Error().Err(err).Msg("posting shutdown")
		}
	})
	defer stop()

	c.log.Info().Msg("entering main loop")
	for !c.stopping {
		if err := c.WaitAndDispatch(); err != nil {
			c.log.Error().Err(err).Msg("wait failed")
			return err
		}
		c.RunTasks()
		c.Maintain()
	}
	c.log.Info().Msg("main loop stopped")
	return nil
}

// Maintain runs periodic housekeeping once the maintenance deadline has
// passed. It reports whether it ran.
func (c *Context) Maintain() bool {
	if c.now.Before(c.nextMaintenance) {
		return false
	}
	c.nextMaintenance = c.now.Add(c.cfg.MaintenanceInterval)

	if n := c.reg.ExpireLinkAddresses(c.now, c.cfg.EthAddrStaleTime); n > 0 {
		c.log.Debug().Int("count", n).Msg("expired link addresses")
	}
	for _, p := range c.reg.Peers() {
		if !p.Established && !c.queue.IsHandshakeScheduled(p) {
			c.ScheduleHandshake(p, 0)
		}
	}
	if c.keeper != nil {
		c.keeper.Maintain(c.now)
	}
	c.metrics.Set("queue.len", int64(c.queue.Len()))
	c.metrics.Set("peers", int64(c.reg.NumPeers()))
	c.metrics.Set("buffers.inuse", c.bufs.Stats().InUse)
	return true
}

func (c *Context) reload() {
	if c.configPath == "" {
		c.log.Debug().Msg("reload requested without config file")
		return
	}
	cfg, err := control.LoadConfig(c.configPath)
	if err != nil {
		c.log.Error().Err(err).Str("path", c.configPath).Msg("reload failed, keeping configuration")
		return
	}
	c.store.Set(cfg)
}

// applyConfig takes over the values that can change at runtime.
func (c *Context) applyConfig(old, cur *control.Config) {
	if lvl, err := control.ParseLevel(cur.LogLevel); err == nil {
		c.log = c.log.Level(lvl)
	}
	if cur.Mode != old.Mode || cur.Backend != old.Backend || cur.Interface != old.Interface {
		c.log.Warn().Msg("mode, backend and interface changes take effect after restart")
	}

	next := *c.cfg
	next.LogLevel = cur.LogLevel
	next.MaintenanceInterval = cur.MaintenanceInterval
	next.HandshakeMinInterval = cur.HandshakeMinInterval
	next.HandshakeMaxInterval = cur.HandshakeMaxInterval
	next.EthAddrStaleTime = cur.EthAddrStaleTime
	c.cfg = &next

	if due := c.now.Add(next.MaintenanceInterval); due.Before(c.nextMaintenance) {
		c.nextMaintenance = due
	}
	if err := c.SyncPeers(cur.Peers); err != nil {
		c.log.Error().Err(err).Msg("applying peer configuration")
	}
	c.log.Info().Int("peers", c.reg.NumPeers()).Msg("configuration reloaded")
}

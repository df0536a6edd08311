// File: daemon/options.go
// License: Apache-2.0
//
// Functional options for New.

package daemon

import (
	"time"

	"github.com/rs/zerolog"

	"github.com/Gibheer/fastd/api"
	"github.com/Gibheer/fastd/peer"
	"github.com/Gibheer/fastd/pool"
)

// Option customizes Context initialization.
type Option func(*Context)

// WithTunnel sets the tunnel device. Required.
func WithTunnel(t api.Tunnel) Option {
	return func(c *Context) { c.tunnel = t }
}

// WithProtocol sets the session layer. Required.
func WithProtocol(p api.Protocol) Option {
	return func(c *Context) { c.proto = p }
}

// WithSender overrides the default UDP sender.
func WithSender(s api.Sender) Option {
	return func(c *Context) { c.sender = s }
}

// WithReceiver overrides the default UDP receiver.
func WithReceiver(r api.Receiver) Option {
	return func(c *Context) { c.receiver = r }
}

// WithSocketFactory overrides how dynamic peer sockets are opened.
func WithSocketFactory(f api.SocketFactory) Option {
	return func(c *Context) { c.sockets = f }
}

// WithHousekeeper attaches peer housekeeping run on every maintenance tick.
func WithHousekeeper(h api.Housekeeper) Option {
	return func(c *Context) { c.keeper = h }
}

// WithSockets adds static sockets in index order.
func WithSockets(socks ...*peer.Socket) Option {
	return func(c *Context) {
		for _, s := range socks {
			c.reg.AddSocket(s)
		}
	}
}

// WithLogger sets the logger.
func WithLogger(l zerolog.Logger) Option {
	return func(c *Context) { c.log = l }
}

// WithClock replaces time.Now.
func WithClock(now func() time.Time) Option {
	return func(c *Context) { c.clock = now }
}

// WithBufferPool shares a buffer pool with the tunnel and transport.
func WithBufferPool(bp *pool.BufferPool) Option {
	return func(c *Context) { c.bufs = bp }
}

// WithConfigPath sets the file re-read on a reload event.
func WithConfigPath(path string) Option {
	return func(c *Context) { c.configPath = path }
}

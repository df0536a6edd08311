// File: daemon/context.go
// License: Apache-2.0
//
// Context is the dispatch loop's state: time snapshot, registry, task queue,
// multiplexer and the collaborators it drives. Everything here runs on the
// loop goroutine; only the async channel is touched from elsewhere.

package daemon

import (
	"errors"
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"github.com/Gibheer/fastd/api"
	"github.com/Gibheer/fastd/control"
	"github.com/Gibheer/fastd/internal/async"
	"github.com/Gibheer/fastd/internal/task"
	"github.com/Gibheer/fastd/peer"
	"github.com/Gibheer/fastd/pool"
	"github.com/Gibheer/fastd/reactor"
)

// Context drives one daemon instance.
type Context struct {
	cfg        *control.Config
	store      *control.Store
	configPath string
	log        zerolog.Logger

	clock           func() time.Time
	now             time.Time
	nextMaintenance time.Time

	reg   *peer.Registry
	queue *task.Queue
	mux   reactor.Multiplexer
	async *async.Channel
	bufs  *pool.BufferPool

	tunnel   api.Tunnel
	proto    api.Protocol
	sender   api.Sender
	receiver api.Receiver
	sockets  api.SocketFactory
	keeper   api.Housekeeper

	metrics *control.MetricsRegistry
	hooks   *control.DebugHooks

	stopping bool
}

// New builds a Context from cfg. Static sockets must be passed with
// WithSockets since the multiplexer layout is fixed at creation. Peers are
// added afterwards with AddPeer.
func New(cfg *control.Config, opts ...Option) (*Context, error) {
	if cfg == nil {
		cfg = control.DefaultConfig()
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	c := &Context{
		cfg:     cfg,
		log:     zerolog.Nop(),
		clock:   time.Now,
		reg:     peer.NewRegistry(),
		metrics: control.NewMetricsRegistry(),
		hooks:   control.NewDebugHooks(),
	}
	for _, o := range opts {
		o(c)
	}
	if c.bufs == nil {
		c.bufs = pool.NewBufferPool(pool.DefaultSlabSize)
	}
	if c.store == nil {
		c.store = control.NewStore(cfg)
	}
	if c.sender == nil || c.receiver == nil || c.sockets == nil {
		udp := defaultTransport(c.bufs)
		if udp == nil {
			return nil, api.NewError(api.ErrCodeNotSupported, "daemon.New", errors.New("no default socket transport on this platform"))
		}
		if c.sender == nil {
			c.sender = udp
		}
		if c.receiver == nil {
			c.receiver = udp
		}
		if c.sockets == nil {
			c.sockets = udp
		}
	}
	if c.tunnel == nil || c.proto == nil {
		return nil, fmt.Errorf("%w: tunnel and protocol are required", api.ErrInvalidArgument)
	}

	c.now = c.clock()
	c.nextMaintenance = c.now.Add(cfg.MaintenanceInterval)
	c.queue = task.NewQueue(c.Now)

	ch, err := async.New()
	if err != nil {
		return nil, api.Fatal("async channel", err)
	}
	c.async = ch

	mux, err := reactor.New(reactor.Backend(cfg.Backend), c)
	if err != nil {
		ch.Close()
		return nil, err
	}
	c.mux = mux
	if err := c.mux.RegisterTunnel(); err != nil {
		c.Close()
		return nil, err
	}
	for i := 0; i < c.reg.NumSockets(); i++ {
		if err := c.mux.RegisterSocket(i); err != nil {
			c.Close()
			return nil, err
		}
	}

	if b, ok := c.proto.(api.Binder); ok {
		b.Bind(c)
	}
	if c.keeper == nil {
		if h, ok := c.proto.(api.Housekeeper); ok {
			c.keeper = h
		}
	}
	c.store.OnReload(c.applyConfig)
	c.registerHooks()

	c.log.Info().
		Str("mode", string(cfg.Mode)).
		Str("backend", cfg.Backend).
		Int("sockets", c.reg.NumSockets()).
		Msg("dispatch core initialized")
	return c, nil
}

// Now returns the time snapshot taken after the last wait.
func (c *Context) Now() time.Time {
	return c.now
}

// Buffers returns the packet buffer pool.
func (c *Context) Buffers() *pool.BufferPool {
	return c.bufs
}

// Registry exposes the peer registry. It must only be used on the loop.
func (c *Context) Registry() *peer.Registry {
	return c.reg
}

// Queue exposes the task queue. It must only be used on the loop.
func (c *Context) Queue() *task.Queue {
	return c.queue
}

// Metrics returns the counters of this instance.
func (c *Context) Metrics() *control.MetricsRegistry {
	return c.metrics
}

// Hooks returns the debug hooks of this instance.
func (c *Context) Hooks() *control.DebugHooks {
	return c.hooks
}

// Store returns the configuration store.
func (c *Context) Store() *control.Store {
	return c.store
}

// Notify posts an async event to the loop. Safe for concurrent use.
func (c *Context) Notify(k async.Kind, payload []byte) error {
	return c.async.Notify(k, payload)
}

// Close releases the multiplexer, the async channel and every socket.
// Pending tasks are dropped with their buffers.
func (c *Context) Close() error {
	var errs []error
	for c.reg.NumPeers() > 0 {
		errs = append(errs, c.DeletePeer(c.reg.Peer(c.reg.NumPeers()-1)))
	}
	for i := 0; i < c.reg.NumSockets(); i++ {
		errs = append(errs, c.reg.Socket(i).Close())
	}
	if c.mux != nil {
		errs = append(errs, c.mux.Close())
	}
	errs = append(errs, c.async.Close())
	return errors.Join(errs...)
}

// reactor.Sources

func (c *Context) TunnelFD() int   { return c.tunnel.FD() }
func (c *Context) AsyncFD() int    { return c.async.FD() }
func (c *Context) NumSockets() int { return c.reg.NumSockets() }
func (c *Context) NumPeers() int   { return c.reg.NumPeers() }

func (c *Context) SocketFD(i int) int {
	s := c.reg.Socket(i)
	if s.Errored {
		return -1
	}
	return s.FD
}

func (c *Context) PeerAt(i int) (uint32, int, bool) {
	p := c.reg.Peer(i)
	if !p.IsSocketDynamic() || p.Sock.FD < 0 {
		return p.ID, -1, false
	}
	return p.ID, p.Sock.FD, true
}

func (c *Context) registerHooks() {
	c.hooks.RegisterMetrics(c.metrics)
	control.RegisterPlatformHooks(c.hooks)
	c.hooks.RegisterHook("queue.len", func() any { return c.queue.Len() })
	c.hooks.RegisterHook("peers", func() any {
		out := make([]string, 0, c.reg.NumPeers())
		for _, p := range c.reg.Peers() {
			state := "connecting"
			if p.Established {
				state = "established"
			}
			out = append(out, p.String()+" "+p.Addr.String()+" "+state)
		}
		return out
	})
	c.hooks.RegisterHook("sockets", func() any {
		out := make([]string, 0, c.reg.NumSockets())
		for i := 0; i < c.reg.NumSockets(); i++ {
			s := c.reg.Socket(i)
			if s.Errored {
				out = append(out, s.Addr.String()+" errored")
			} else {
				out = append(out, s.Addr.String())
			}
		}
		return out
	})
	c.hooks.RegisterHook("buffers.inuse", func() any { return c.bufs.Stats().InUse })
}

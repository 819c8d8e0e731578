// Package console is an embedded remote console: a TCP service a host
// application runs next to its own work so operators can attach, issue
// text commands and follow the host's log output.
//
// Every client connection owns two bounded channels.  Its reader
// goroutine decodes bytes through a telnet engine into the inbound
// channel; a shared dispatcher runs inbound lines through the
// Interpreter and posts responses to the outbound channel; the
// connection's writer encodes and sends them.  The Bridge, a logrus
// hook, posts host log records straight into the outbound channels of
// subscribed connections.  Nothing on these paths blocks the host: a full
// channel drops its oldest message.
package console

import (
	"context"
	"net"
	"sync"
	"time"

	ncerr "rconsole/internal/errors"
	"rconsole/internal/metrics"
	"rconsole/util"
)

// Defaults.
const (
	DefaultPort            = 3535
	DefaultAddress         = "127.0.0.1:3535"
	DefaultMaxConnections  = 16
	DefaultChannelCapacity = 32
	DefaultSweepInterval   = 250 * time.Millisecond
	DefaultCloseGrace      = 2 * time.Second
	DefaultWriteTimeout    = 5 * time.Second
	DefaultBanner          = "rconsole ready, type help for commands"
)

// Options configures a Console.  Zero values take the defaults above.
type Options struct {
	Address         string
	MaxConnections  int
	ChannelCapacity int
	SweepInterval   time.Duration
	CloseGrace      time.Duration // how long a requested close may stay pending
	WriteTimeout    time.Duration
	Banner          string // sent on connect; "-" disables

	// Interpreter receives lines that are not built-in commands.
	Interpreter Interpreter

	// Listener, when set, is served instead of listening on Address.
	// The console closes it on the last Release.
	Listener net.Listener

	// Logger is the host logger.  The bridge hooks into its logrus
	// instance.
	Logger  *util.Logger
	Metrics *metrics.Collector
}

func (o Options) withDefaults() Options {
	if o.Address == "" {
		o.Address = DefaultAddress
	}
	if o.MaxConnections == 0 {
		o.MaxConnections = DefaultMaxConnections
	}
	if o.ChannelCapacity <= 0 {
		o.ChannelCapacity = DefaultChannelCapacity
	}
	if o.SweepInterval <= 0 {
		o.SweepInterval = DefaultSweepInterval
	}
	if o.CloseGrace <= 0 {
		o.CloseGrace = DefaultCloseGrace
	}
	if o.WriteTimeout == 0 {
		o.WriteTimeout = DefaultWriteTimeout
	}
	switch o.Banner {
	case "":
		o.Banner = DefaultBanner
	case "-":
		o.Banner = ""
	}
	if o.Logger == nil {
		o.Logger = util.NewLogger(0)
	}
	if o.Metrics == nil {
		o.Metrics = metrics.New()
	}
	return o
}

// Console is the service object.  Host subsystems that need the console
// call Acquire; the first one starts the server.  The last Release stops
// it and force-closes every connection.
type Console struct {
	mu     sync.Mutex
	uses   int
	opts   Options
	reg    *Registry
	bridge *Bridge
	cmds   *Commands

	hooked bool // bridge is on the host logger; it stays there, paused when stopped
	addr    net.Addr
	cancel  context.CancelFunc
	stopped chan struct{} // closed when Serve returns
	err     error         // Serve's result, set before stopped closes
}

// New returns a stopped console.
func New(opts Options) *Console {
	opts = opts.withDefaults()
	reg := NewRegistry(opts.ChannelCapacity, opts.Metrics)
	return &Console{
		opts:   opts,
		reg:    reg,
		bridge: NewBridge(reg, opts.Metrics),
		cmds:   NewCommands(opts.Interpreter),
	}
}

// Acquire takes a reference on the console, starting it if this is the
// first one.
func (c *Console) Acquire() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.uses > 0 {
		c.uses++
		return nil
	}

	ln := c.opts.Listener
	if ln == nil {
		var err error
		ln, err = net.Listen("tcp", c.opts.Address)
		if err != nil {
			return ncerr.Wrap("listen", c.opts.Address, err)
		}
	}

	if !c.hooked {
		c.opts.Logger.Logrus().AddHook(c.bridge)
		c.hooked = true
	}
	c.bridge.paused.Store(false)

	ctx, cancel := context.WithCancel(context.Background())
	srv := NewServer(c.opts, c.reg, c.cmds)
	stopped := make(chan struct{})
	c.err = nil
	go func() {
		c.err = srv.Serve(ctx, ln)
		close(stopped)
	}()

	c.addr = ln.Addr()
	c.cancel = cancel
	c.stopped = stopped
	c.uses = 1
	return nil
}

// Release drops a reference.  The last one stops the server, closes all
// connections and pauses the bridge.  Releasing a stopped console
// returns ErrConsoleClosed.
func (c *Console) Release() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.uses == 0 {
		return ncerr.ErrConsoleClosed
	}
	c.uses--
	if c.uses > 0 {
		return nil
	}

	c.cancel()
	<-c.stopped
	c.bridge.paused.Store(true)
	c.addr = nil
	c.cancel = nil
	c.stopped = nil
	// A handed-in listener is closed by now.
	c.opts.Listener = nil
	return c.err
}

// Done returns a channel that is closed when the running server stops,
// either because of the last Release or because its listener failed.
// It returns nil when the console is stopped.
func (c *Console) Done() <-chan struct{} {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.stopped
}

// Err returns the error the server stopped with once Done is closed.
// A listener failure is reported here before Release is called.
func (c *Console) Err() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.stopped == nil {
		return nil
	}
	select {
	case <-c.stopped:
		return c.err
	default:
		return nil
	}
}

// Addr returns the listening address, or nil when stopped.
func (c *Console) Addr() net.Addr {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.addr
}

// Running reports whether the console holds at least one reference.
func (c *Console) Running() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.uses > 0
}

// Registry returns the connection registry.
func (c *Console) Registry() *Registry { return c.reg }

// Bridge returns the log bridge, e.g. to hook further logrus loggers.
func (c *Console) Bridge() *Bridge { return c.bridge }

// Commands returns the built-in interpreter for registering commands.
func (c *Console) Commands() *Commands { return c.cmds }

// Metrics returns the console's collector.
func (c *Console) Metrics() *metrics.Collector { return c.opts.Metrics }

// Publish sends text to log subscribers of sev.
func (c *Console) Publish(sev Severity, text string) int {
	return c.bridge.Publish(sev, text)
}

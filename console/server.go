package console

import (
	"context"
	"fmt"
	"net"
	"strings"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	ncerr "rconsole/internal/errors"
	"rconsole/internal/metrics"
	"rconsole/util"
)

// Server runs the accept loop, the per-connection reader and writer
// goroutines, the dispatcher and the sweeper for one listener.
type Server struct {
	opts    Options
	log     *util.Logger
	reg     *Registry
	metrics *metrics.Collector
	interp  Interpreter

	work  chan struct{} // inbound data is waiting
	conns sync.WaitGroup
}

// NewServer returns a server over reg.  opts should already have its
// defaults applied.
func NewServer(opts Options, reg *Registry, interp Interpreter) *Server {
	return &Server{
		opts:    opts,
		log:     opts.Logger.WithField("channel", Channel),
		reg:     reg,
		metrics: opts.Metrics,
		interp:  interp,
		work:    make(chan struct{}, 1),
	}
}

// Serve runs until ctx is cancelled or the listener fails, then closes
// every connection and waits for their goroutines.
func (s *Server) Serve(ctx context.Context, ln net.Listener) error {
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error { return s.acceptLoop(gctx, ln) })
	g.Go(func() error { return s.dispatch(gctx) })
	g.Go(func() error { return s.sweep(gctx) })

	err := g.Wait()
	if n := s.reg.CloseAll(); n > 0 {
		s.log.Verbose("closed %d connection(s)", n)
	}
	s.conns.Wait()
	return err
}

// ── Accept ───────────────────────────────────────────────────────────

func (s *Server) acceptLoop(ctx context.Context, ln net.Listener) error {
	defer ln.Close()

	// Shut the listener down when the context expires.
	go func() {
		<-ctx.Done()
		ln.Close()
	}()

	s.log.Info("console listening on %s", ln.Addr())

	for {
		conn, err := ln.Accept()
		if err != nil {
			select {
			case <-ctx.Done():
				return nil
			default:
				s.metrics.RecordError(err.Error())
				return ncerr.Wrap("accept", ln.Addr().String(), err)
			}
		}

		if s.opts.MaxConnections > 0 && s.reg.Len() >= s.opts.MaxConnections {
			s.refuse(conn)
			continue
		}

		id := s.reg.NextID()
		c, err := s.reg.Open(id, conn, conn.RemoteAddr().String())
		if err != nil {
			s.log.Error("%v", err)
			conn.Close()
			continue
		}
		s.log.Verbose("connection #%d from %s", id, c.remote)

		if s.opts.Banner != "" {
			c.outbound.Post(s.opts.Banner)
		}

		s.conns.Add(2)
		go s.readLoop(ctx, c, conn)
		go s.writeLoop(ctx, c, conn)
	}
}

func (s *Server) refuse(conn net.Conn) {
	s.metrics.ConnectionRefused()
	s.log.Warn("refusing %s: %d connections open", conn.RemoteAddr(), s.opts.MaxConnections)
	conn.SetWriteDeadline(time.Now().Add(time.Second)) //nolint:errcheck
	fmt.Fprintf(conn, "console: too many connections (max %d)\r\n", s.opts.MaxConnections)
	conn.Close()
}

// ── Per-connection I/O ───────────────────────────────────────────────

// readLoop decodes client bytes into inbound units.  A read error or an
// end-of-input request marks the connection for closing.
func (s *Server) readLoop(ctx context.Context, c *Connection, conn net.Conn) {
	defer s.conns.Done()

	buf := util.GetBuf()
	defer util.PutBuf(buf)

	for {
		n, err := conn.Read(*buf)
		if n > 0 {
			s.metrics.BytesReceived(int64(n))
			if !s.handleInput(c, (*buf)[:n]) {
				return
			}
		}
		if err != nil {
			if !util.IsClosed(err) && ctx.Err() == nil {
				s.log.Verbose("connection #%d: read: %v", c.id, err)
			}
			s.reg.RequestClose(c.id) //nolint:errcheck
			return
		}
	}
}

// handleInput decodes p and queues its lines.  It reports false once the
// connection takes no further input.
func (s *Server) handleInput(c *Connection, p []byte) bool {
	d := c.engine.Decode(p)

	for _, err := range d.Errors {
		s.log.Verbose("connection #%d: %v", c.id, err)
	}
	s.metrics.ProtocolErrors(len(d.Errors))

	c.queueReply(d.Reply)

	// Lines and the end-of-input mark go in together so the dispatcher
	// runs the lines before closing.
	open := false
	posted := 0
	s.reg.With(c.id, func(c *Connection) {
		if c.wantsClose {
			return
		}
		open = !d.Close
		for _, line := range d.Lines {
			if !c.inbound.Post(line) {
				s.metrics.MessageDropped()
			}
			posted++
		}
		if d.Close && posted > 0 {
			c.closeOnDrain = true
		}
	})

	if posted > 0 {
		s.metrics.LinesReceived(posted)
		select {
		case s.work <- struct{}{}:
		default:
		}
	}
	if d.Close && posted == 0 {
		s.reg.RequestClose(c.id) //nolint:errcheck
	}
	return open
}

// writeLoop sends protocol replies and outbound messages.  Once a close
// is requested it flushes what is queued and removes the connection.
func (s *Server) writeLoop(ctx context.Context, c *Connection, conn net.Conn) {
	defer s.conns.Done()

	for {
		select {
		case <-ctx.Done():
			return
		case <-c.done:
			return
		case <-c.outbound.Ready():
		case <-c.wake:
		}

		if err := s.flush(c, conn); err != nil {
			switch {
			case ncerr.Is(err, ncerr.ErrTimeout):
				s.log.Warn("connection #%d: client stopped reading, dropping it", c.id)
				s.metrics.RecordError(err.Error())
			case !util.IsClosed(err):
				s.log.Verbose("connection #%d: %v", c.id, err)
				s.metrics.RecordError(err.Error())
			}
			s.reg.Close(c.id) //nolint:errcheck
			return
		}

		if s.reg.WantsClose(c.id) {
			// Output posted before the request may have missed the flush
			// above.
			s.flush(c, conn) //nolint:errcheck
			if err := s.reg.Close(c.id); err == nil {
				s.log.Verbose("connection #%d closed", c.id)
			}
			return
		}
	}
}

// flush writes pending replies, then every queued message encoded for
// the connection's current protocol state.
func (s *Server) flush(c *Connection, conn net.Conn) error {
	out := c.takeReplies()
	sent := 0
	for {
		msg, ok := c.outbound.Fetch()
		if !ok {
			break
		}
		if !strings.HasSuffix(msg, "\n") {
			msg += "\n"
		}
		out = append(out, c.engine.Encode(msg)...)
		sent++
	}
	if len(out) == 0 {
		return nil
	}

	if s.opts.WriteTimeout > 0 {
		conn.SetWriteDeadline(time.Now().Add(s.opts.WriteTimeout)) //nolint:errcheck
	}
	n, err := conn.Write(out)
	s.metrics.BytesSent(int64(n))
	if err != nil {
		return ncerr.Wrap("write", c.remote, err)
	}
	for i := 0; i < sent; i++ {
		s.metrics.MessageSent()
	}
	return nil
}

// ── Dispatcher ───────────────────────────────────────────────────────

type batch struct {
	conn       *Connection
	units      []string
	closeAfter bool
}

// dispatch drains inbound channels and runs each line through the
// interpreter.  Units are collected under the registry lock and executed
// outside it.
func (s *Server) dispatch(ctx context.Context) error {
	for {
		select {
		case <-ctx.Done():
			return nil
		case <-s.work:
		}
		s.runPending(ctx)
	}
}

func (s *Server) runPending(ctx context.Context) {
	var pending []batch
	s.reg.ForEach(func(c *Connection) {
		units := c.inbound.Drain()
		if c.wantsClose {
			// Input after a close request is discarded.
			return
		}
		b := batch{conn: c, units: units, closeAfter: c.closeOnDrain}
		c.closeOnDrain = false
		if len(b.units) > 0 || b.closeAfter {
			pending = append(pending, b)
		}
	})

	for _, b := range pending {
		s.runBatch(ctx, b)
	}
}

func (s *Server) runBatch(ctx context.Context, b batch) {
	sess := newSession(b.conn, s.reg, s.metrics)
	sess.deferClose = true

	for _, unit := range b.units {
		for _, line := range splitLines(unit) {
			if resp := s.interp.Execute(ctx, sess, line); resp != "" {
				s.reg.With(b.conn.id, func(c *Connection) {
					if !c.outbound.Post(resp) {
						s.metrics.MessageDropped()
					}
				})
			}
			if sess.closePending {
				// Lines after a quit are not run.
				s.reg.RequestClose(b.conn.id) //nolint:errcheck
				return
			}
		}
	}
	if b.closeAfter {
		s.reg.RequestClose(b.conn.id) //nolint:errcheck
	}
}

// splitLines breaks a plain-mode unit into trimmed, non-empty lines.
// Line-mode units are already single lines.
func splitLines(unit string) []string {
	var lines []string
	for _, l := range strings.Split(unit, "\n") {
		l = strings.TrimSpace(l)
		if l != "" {
			lines = append(lines, l)
		}
	}
	return lines
}

// ── Sweeper ──────────────────────────────────────────────────────────

func (s *Server) sweep(ctx context.Context) error {
	ticker := time.NewTicker(s.opts.SweepInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
			for _, id := range s.reg.Sweep(s.opts.CloseGrace) {
				s.log.Verbose("connection #%d swept", id)
			}
		}
	}
}

package console

import (
	"context"

	ncerr "rconsole/internal/errors"
	"rconsole/internal/metrics"
	"rconsole/internal/telnet"
)

// Interpreter executes one command line for a connection and returns the
// response to send back.  An empty response sends nothing.
type Interpreter interface {
	Execute(ctx context.Context, s *Session, line string) string
}

// InterpreterFunc adapts a function to Interpreter.
type InterpreterFunc func(ctx context.Context, s *Session, line string) string

func (f InterpreterFunc) Execute(ctx context.Context, s *Session, line string) string {
	return f(ctx, s, line)
}

// Session is the view an interpreter gets of the connection that issued
// a command.
type Session struct {
	conn    *Connection
	reg     *Registry
	metrics *metrics.Collector

	// Set by the dispatcher: a close requested by a command takes effect
	// after that command's response is queued.
	deferClose   bool
	closePending bool
}

func newSession(c *Connection, reg *Registry, m *metrics.Collector) *Session {
	return &Session{conn: c, reg: reg, metrics: m}
}

// ID returns the connection ID.
func (s *Session) ID() ID { return s.conn.id }

// Remote returns the client address.
func (s *Session) Remote() string { return s.conn.remote }

// State returns the protocol state of the connection.
func (s *Session) State() telnet.State { return s.conn.engine.State() }

// SetLogSubscriber turns the log feed on or off, keeping the mask.
func (s *Session) SetLogSubscriber(on bool) error {
	return s.update("subscribe", func(c *Connection) { c.wantsLogSubscriber = on })
}

// SetLogLevelMask replaces the severity mask, keeping the flag.
func (s *Session) SetLogLevelMask(mask Severity) error {
	return s.update("subscribe", func(c *Connection) { c.logLevelMask = mask })
}

// LogSubscription returns the subscription flag and mask.
func (s *Session) LogSubscription() (on bool, mask Severity) {
	s.reg.With(s.conn.id, func(c *Connection) {
		on, mask = c.wantsLogSubscriber, c.logLevelMask
	})
	return on, mask
}

// RequestClose asks for the connection to be closed once its pending
// output is flushed.
func (s *Session) RequestClose() error {
	if s.deferClose {
		s.closePending = true
		return nil
	}
	return s.reg.RequestClose(s.conn.id)
}

// RequestLineMode invites the client into line mode.  It is a no-op
// when the connection is already in line mode.
func (s *Session) RequestLineMode() {
	s.conn.queueReply(s.conn.engine.RequestLineMode())
}

// Post queues an extra message for the client outside the normal
// response.  It reports false when the post evicted an older message.
func (s *Session) Post(msg string) bool {
	ok := s.conn.outbound.Post(msg)
	if !ok {
		s.metrics.MessageDropped()
	}
	return ok
}

// Registry returns the registry the connection belongs to.
func (s *Session) Registry() *Registry { return s.reg }

// Metrics returns the console's collector, possibly nil.
func (s *Session) Metrics() *metrics.Collector { return s.metrics }

func (s *Session) update(op string, fn func(*Connection)) error {
	if !s.reg.With(s.conn.id, fn) {
		return &ncerr.RegistryError{Op: op, Conn: uint64(s.conn.id), Err: ncerr.ErrUnknownID}
	}
	return nil
}

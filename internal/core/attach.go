package core

import (
	"context"
	"io"
	"net"
	"os"
	"strings"
	"sync"
	"time"

	ncerr "rconsole/internal/errors"
	"rconsole/internal/retry"
	"rconsole/internal/telnet"
	"rconsole/internal/transport"
	"rconsole/util"
)

// AttachMode dials a console and relays the terminal to it.  Server
// output is passed through a telnet filter, local input has IAC bytes
// escaped.  When input ends a quit is sent so the console flushes its
// pending responses before hanging up.
type AttachMode struct {
	Dialer   transport.Dialer
	Address  string
	Backoff  *retry.Backoff
	LineMode bool // advertise LINEMODE and the default SLC table
	Logger   *util.Logger

	// Stdin/Stdout default to os.Stdin/os.Stdout when nil.
	Stdin  io.Reader
	Stdout io.Writer
}

func (m *AttachMode) stdin() io.Reader {
	if m.Stdin != nil {
		return m.Stdin
	}
	return os.Stdin
}

func (m *AttachMode) stdout() io.Writer {
	if m.Stdout != nil {
		return m.Stdout
	}
	return os.Stdout
}

// Run dials with retries and relays until the console closes the
// connection or ctx ends.
func (m *AttachMode) Run(ctx context.Context) error {
	defer m.Dialer.Close()

	conn, err := m.dial(ctx)
	if err != nil {
		return ncerr.Wrapf(err, "attach %s", m.Address)
	}
	m.Logger.Verbose("attached to %s", conn.RemoteAddr())

	w := newWire(conn)
	if m.LineMode {
		if err := w.command(telnet.ClientLineModeRequest(telnet.DefaultSLC())); err != nil {
			conn.Close()
			return ncerr.Wrap("write", m.Address, err)
		}
	}

	out := telnet.NewFilter(m.stdout())
	out.OnDo = func(opt byte) { m.answerDo(w, opt) }

	in := io.MultiReader(m.stdin(), strings.NewReader("\nquit\n"))
	return util.Relay(ctx, w, in, out)
}

func (m *AttachMode) dial(ctx context.Context) (net.Conn, error) {
	bo := retry.Backoff{MaxAttempts: 1}
	if m.Backoff != nil {
		bo = *m.Backoff
	}
	if bo.OnRetry == nil {
		bo.OnRetry = func(attempt int, err error, wait time.Duration) {
			m.Logger.Warn("attempt %d: %v, retrying in %s", attempt, err, wait.Round(time.Millisecond))
		}
	}

	var conn net.Conn
	err := bo.Do(ctx, func(attempt int) error {
		c, err := m.Dialer.Dial(ctx, "tcp", m.Address)
		if err != nil {
			return err
		}
		conn = c
		return nil
	})
	return conn, err
}

// answerDo replies to a server's IAC DO.  LINEMODE is accepted only
// when this client offered it; everything else is refused.
func (m *AttachMode) answerDo(w *wire, opt byte) {
	if opt == telnet.OptLinemode && m.LineMode {
		return
	}
	if err := w.command([]byte{telnet.IAC, telnet.WONT, opt}); err != nil {
		m.Logger.Debug("refusing option %d: %v", opt, err)
	}
}

// ── wire ─────────────────────────────────────────────────────────────

// wire serialises writes from the input relay and negotiation replies.
// Write escapes data; command sends raw telnet bytes.
type wire struct {
	net.Conn
	mu  sync.Mutex
	esc *telnet.Escaper
}

func newWire(conn net.Conn) *wire {
	return &wire{Conn: conn, esc: telnet.NewEscaper(conn)}
}

func (w *wire) Write(p []byte) (int, error) {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.esc.Write(p)
}

func (w *wire) command(p []byte) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	_, err := w.Conn.Write(p)
	return err
}

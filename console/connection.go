package console

import (
	"io"
	"sync"
	"time"

	"rconsole/internal/channel"
	"rconsole/internal/telnet"
)

// ID identifies a live connection.  IDs are handed out by
// Registry.NextID and are not reused while the connection is registered.
type ID uint64

// Connection is the per-client state: two bounded channels, the
// protocol engine and the stream.  The subscription and close flags are
// guarded by the owning Registry's mutex; read them only from a ForEach
// or With callback.
type Connection struct {
	id       ID
	remote   string
	opened   time.Time
	stream   io.Closer
	engine   *telnet.Engine
	outbound *channel.Bounded[string]
	inbound  *channel.Bounded[string]

	wake     chan struct{} // replies queued or close requested
	done     chan struct{} // closed once the connection is destroyed
	doneOnce sync.Once

	rmu     sync.Mutex
	replies []byte

	// Guarded by Registry.mu.
	wantsLogSubscriber bool
	wantsClose         bool
	closeOnDrain       bool // end of input follows the queued lines
	closeRequested     time.Time
	logLevelMask       Severity
}

func newConnection(id ID, stream io.Closer, remote string, capacity int) *Connection {
	return &Connection{
		id:       id,
		remote:   remote,
		opened:   time.Now(),
		stream:   stream,
		engine:   telnet.NewEngine(),
		outbound: channel.New[string](capacity),
		inbound:  channel.New[string](capacity),
		wake:     make(chan struct{}, 1),
		done:     make(chan struct{}),
	}
}

func (c *Connection) ID() ID { return c.id }
func (c *Connection) Remote() string { return c.remote }
func (c *Connection) Opened() time.Time { return c.opened }
func (c *Connection) Engine() *telnet.Engine { return c.engine }
func (c *Connection) Outbound() *channel.Bounded[string] { return c.outbound }
func (c *Connection) Inbound() *channel.Bounded[string] { return c.inbound }

// Done is closed when the connection has been removed and its stream
// closed.
func (c *Connection) Done() <-chan struct{} { return c.done }

// LogSubscription reports the subscription flag and level mask.  Call it
// only from a registry callback.
func (c *Connection) LogSubscription() (bool, Severity) {
	return c.wantsLogSubscriber, c.logLevelMask
}

// WantsClose reports whether a close was requested.  Call it only from a
// registry callback.
func (c *Connection) WantsClose() bool { return c.wantsClose }

// queueReply stores protocol bytes for the writer, ahead of any queued
// messages.
func (c *Connection) queueReply(p []byte) {
	if len(p) == 0 {
		return
	}
	c.rmu.Lock()
	c.replies = append(c.replies, p...)
	c.rmu.Unlock()
	c.signal()
}

func (c *Connection) takeReplies() []byte {
	c.rmu.Lock()
	defer c.rmu.Unlock()
	p := c.replies
	c.replies = nil
	return p
}

func (c *Connection) signal() {
	select {
	case c.wake <- struct{}{}:
	default:
	}
}

// destroy closes the stream once.
func (c *Connection) destroy() error {
	var err error
	c.doneOnce.Do(func() {
		if c.stream != nil {
			err = c.stream.Close()
		}
		close(c.done)
	})
	return err
}

package console

import (
	"io"
	"sort"
	"sync"
	"sync/atomic"
	"time"

	ncerr "rconsole/internal/errors"
	"rconsole/internal/metrics"
)

// Registry is the set of live connections.  One mutex guards the map and
// every connection's flags.  Callbacks passed to ForEach and With run
// with that mutex held and must not log, block, or call back into the
// registry.
type Registry struct {
	mu    sync.Mutex
	conns map[ID]*Connection

	nextID   atomic.Uint64
	capacity int
	metrics  *metrics.Collector
	now      func() time.Time
}

// NewRegistry returns an empty registry whose connections get channels
// of the given capacity.  m may be nil.
func NewRegistry(capacity int, m *metrics.Collector) *Registry {
	return &Registry{
		conns:    make(map[ID]*Connection),
		capacity: capacity,
		metrics:  m,
		now:      time.Now,
	}
}

// NextID returns a fresh connection ID.
func (r *Registry) NextID() ID {
	return ID(r.nextID.Add(1))
}

// Open registers a new connection under id.  If id is already live the
// existing connection is left untouched and a RegistryError wrapping
// ErrDuplicateID is returned.
func (r *Registry) Open(id ID, stream io.Closer, remote string) (*Connection, error) {
	c := newConnection(id, stream, remote, r.capacity)

	r.mu.Lock()
	if _, dup := r.conns[id]; dup {
		r.mu.Unlock()
		return nil, &ncerr.RegistryError{Op: "open", Conn: uint64(id), Err: ncerr.ErrDuplicateID}
	}
	r.conns[id] = c
	r.mu.Unlock()

	r.metrics.ConnectionOpened()
	return c, nil
}

// Lookup returns the connection registered under id.  The returned
// pointer stays valid after removal; only its flags need the lock.
func (r *Registry) Lookup(id ID) (*Connection, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	c, ok := r.conns[id]
	return c, ok
}

// With runs fn on the connection under the registry lock.  It reports
// false, without calling fn, when id is not live.
func (r *Registry) With(id ID, fn func(*Connection)) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	c, ok := r.conns[id]
	if !ok {
		return false
	}
	fn(c)
	return true
}

// ForEach runs fn on every live connection under the registry lock.
func (r *Registry) ForEach(fn func(*Connection)) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, c := range r.conns {
		fn(c)
	}
}

// Close removes id and closes its stream.  The stream is closed after
// the lock is released.
func (r *Registry) Close(id ID) error {
	r.mu.Lock()
	c, ok := r.conns[id]
	if ok {
		delete(r.conns, id)
	}
	r.mu.Unlock()

	if !ok {
		return &ncerr.RegistryError{Op: "close", Conn: uint64(id), Err: ncerr.ErrUnknownID}
	}
	r.metrics.ConnectionClosed()
	return c.destroy()
}

// CloseAll removes and closes every connection, returning how many
// there were.
func (r *Registry) CloseAll() int {
	r.mu.Lock()
	victims := make([]*Connection, 0, len(r.conns))
	for id, c := range r.conns {
		victims = append(victims, c)
		delete(r.conns, id)
	}
	r.mu.Unlock()

	for _, c := range victims {
		r.metrics.ConnectionClosed()
		c.destroy() //nolint:errcheck
	}
	return len(victims)
}

// Sweep removes connections whose close was requested at least grace
// ago and returns their IDs.
func (r *Registry) Sweep(grace time.Duration) []ID {
	now := r.now()

	r.mu.Lock()
	var victims []*Connection
	for id, c := range r.conns {
		if c.wantsClose && now.Sub(c.closeRequested) >= grace {
			victims = append(victims, c)
			delete(r.conns, id)
		}
	}
	r.mu.Unlock()

	ids := make([]ID, 0, len(victims))
	for _, c := range victims {
		r.metrics.ConnectionClosed()
		c.destroy() //nolint:errcheck
		ids = append(ids, c.id)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	return ids
}

// RequestClose marks id for closing.  Its writer flushes pending output
// and then closes it; the sweeper closes it if the writer does not.
func (r *Registry) RequestClose(id ID) error {
	var c *Connection
	ok := r.With(id, func(conn *Connection) {
		if !conn.wantsClose {
			conn.wantsClose = true
			conn.closeRequested = r.now()
		}
		c = conn
	})
	if !ok {
		return &ncerr.RegistryError{Op: "request-close", Conn: uint64(id), Err: ncerr.ErrUnknownID}
	}
	c.signal()
	return nil
}

// WantsClose reports whether id has a pending close request.  Unknown
// IDs report true.
func (r *Registry) WantsClose(id ID) bool {
	wants := true
	r.With(id, func(c *Connection) { wants = c.wantsClose })
	return wants
}

// SetLogSubscription sets the log subscription flag and mask of id.
func (r *Registry) SetLogSubscription(id ID, on bool, mask Severity) error {
	ok := r.With(id, func(c *Connection) {
		c.wantsLogSubscriber = on
		c.logLevelMask = mask
	})
	if !ok {
		return &ncerr.RegistryError{Op: "subscribe", Conn: uint64(id), Err: ncerr.ErrUnknownID}
	}
	return nil
}

// Len returns the number of live connections.
func (r *Registry) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.conns)
}

// IDs returns the live connection IDs in ascending order.
func (r *Registry) IDs() []ID {
	r.mu.Lock()
	ids := make([]ID, 0, len(r.conns))
	for id := range r.conns {
		ids = append(ids, id)
	}
	r.mu.Unlock()

	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	return ids
}

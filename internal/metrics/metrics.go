// Package metrics provides lightweight, lock-free counters for console
// traffic.
//
// All methods are safe for concurrent use.  A nil *Collector is a
// valid no-op receiver, so callers never need to nil-check.
package metrics

import (
	"encoding/json"
	"sync"
	"sync/atomic"
	"time"
)

// Collector tracks runtime metrics for one console instance.
// A nil Collector is safe to use; all methods become no-ops.
type Collector struct {
	connectionsActive  atomic.Int64
	connectionsTotal   atomic.Int64
	connectionsRefused atomic.Int64
	bytesIn            atomic.Int64
	bytesOut           atomic.Int64
	linesIn            atomic.Int64
	messagesOut        atomic.Int64
	messagesDropped    atomic.Int64
	logLines           atomic.Int64
	protocolErrors     atomic.Int64

	mu           sync.RWMutex
	startTime    time.Time
	lastError    time.Time
	lastErrorMsg string
}

// New creates a metrics collector with the start time set to now.
func New() *Collector {
	return &Collector{startTime: time.Now()}
}

// ── Connection metrics ───────────────────────────────────────────────

// ConnectionOpened increments both the active and total counters.
func (c *Collector) ConnectionOpened() {
	if c == nil {
		return
	}
	c.connectionsActive.Add(1)
	c.connectionsTotal.Add(1)
}

// ConnectionClosed decrements the active connection counter.
func (c *Collector) ConnectionClosed() {
	if c == nil {
		return
	}
	c.connectionsActive.Add(-1)
}

// ConnectionRefused counts a client turned away at the connection cap.
func (c *Collector) ConnectionRefused() {
	if c == nil {
		return
	}
	c.connectionsRefused.Add(1)
}

// ActiveConnections returns the current number of open connections.
func (c *Collector) ActiveConnections() int64 {
	if c == nil {
		return 0
	}
	return c.connectionsActive.Load()
}

// TotalConnections returns the lifetime connection count.
func (c *Collector) TotalConnections() int64 {
	if c == nil {
		return 0
	}
	return c.connectionsTotal.Load()
}

// ── I/O metrics ──────────────────────────────────────────────────────

// BytesReceived records n bytes read from a client.
func (c *Collector) BytesReceived(n int64) {
	if c == nil {
		return
	}
	c.bytesIn.Add(n)
}

// BytesSent records n bytes written to a client.
func (c *Collector) BytesSent(n int64) {
	if c == nil {
		return
	}
	c.bytesOut.Add(n)
}

// TotalBytesIn returns total bytes received.
func (c *Collector) TotalBytesIn() int64 {
	if c == nil {
		return 0
	}
	return c.bytesIn.Load()
}

// TotalBytesOut returns total bytes sent.
func (c *Collector) TotalBytesOut() int64 {
	if c == nil {
		return 0
	}
	return c.bytesOut.Load()
}

// ── Channel metrics ──────────────────────────────────────────────────

// LinesReceived records n decoded command units posted to inbound channels.
func (c *Collector) LinesReceived(n int) {
	if c == nil {
		return
	}
	c.linesIn.Add(int64(n))
}

// MessageSent records one outbound message written to a client.
func (c *Collector) MessageSent() {
	if c == nil {
		return
	}
	c.messagesOut.Add(1)
}

// MessageDropped records a message evicted by a full channel.
func (c *Collector) MessageDropped() {
	if c == nil {
		return
	}
	c.messagesDropped.Add(1)
}

// DroppedMessages returns the number of evicted messages.
func (c *Collector) DroppedMessages() int64 {
	if c == nil {
		return 0
	}
	return c.messagesDropped.Load()
}

// LogLinesBroadcast records n deliveries made by the log bridge.
func (c *Collector) LogLinesBroadcast(n int) {
	if c == nil {
		return
	}
	c.logLines.Add(int64(n))
}

// LogLines returns the number of log deliveries.
func (c *Collector) LogLines() int64 {
	if c == nil {
		return 0
	}
	return c.logLines.Load()
}

// ── Error metrics ────────────────────────────────────────────────────

// ProtocolErrors adds n malformed telnet sequences.
func (c *Collector) ProtocolErrors(n int) {
	if c == nil || n == 0 {
		return
	}
	c.protocolErrors.Add(int64(n))
}

// RecordError stores the most recent error message.
func (c *Collector) RecordError(msg string) {
	if c == nil {
		return
	}
	c.mu.Lock()
	c.lastError = time.Now()
	c.lastErrorMsg = msg
	c.mu.Unlock()
}

// ── Snapshot ─────────────────────────────────────────────────────────

// Snapshot is a point-in-time view of all metrics.
type Snapshot struct {
	Uptime             string `json:"uptime"`
	ConnectionsActive  int64  `json:"connections_active"`
	ConnectionsTotal   int64  `json:"connections_total"`
	ConnectionsRefused int64  `json:"connections_refused"`
	BytesIn            int64  `json:"bytes_in"`
	BytesOut           int64  `json:"bytes_out"`
	LinesIn            int64  `json:"lines_in"`
	MessagesOut        int64  `json:"messages_out"`
	MessagesDropped    int64  `json:"messages_dropped"`
	LogLines           int64  `json:"log_lines"`
	ProtocolErrors     int64  `json:"protocol_errors"`
	LastError          string `json:"last_error,omitempty"`
	LastErrorMessage   string `json:"last_error_message,omitempty"`
}

// Snapshot returns a copy of all current metrics.
func (c *Collector) Snapshot() Snapshot {
	if c == nil {
		return Snapshot{}
	}
	c.mu.RLock()
	defer c.mu.RUnlock()

	s := Snapshot{
		Uptime:             time.Since(c.startTime).Truncate(time.Second).String(),
		ConnectionsActive:  c.connectionsActive.Load(),
		ConnectionsTotal:   c.connectionsTotal.Load(),
		ConnectionsRefused: c.connectionsRefused.Load(),
		BytesIn:            c.bytesIn.Load(),
		BytesOut:           c.bytesOut.Load(),
		LinesIn:            c.linesIn.Load(),
		MessagesOut:        c.messagesOut.Load(),
		MessagesDropped:    c.messagesDropped.Load(),
		LogLines:           c.logLines.Load(),
		ProtocolErrors:     c.protocolErrors.Load(),
	}
	if !c.lastError.IsZero() {
		s.LastError = c.lastError.Format(time.RFC3339)
		s.LastErrorMessage = c.lastErrorMsg
	}
	return s
}

// JSON returns the snapshot as an indented JSON string.
func (c *Collector) JSON() string {
	s := c.Snapshot()
	data, _ := json.MarshalIndent(s, "", "  ")
	return string(data)
}

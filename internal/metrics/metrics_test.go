package metrics

import (
	"encoding/json"
	"testing"
)

func TestCollector_Connections(t *testing.T) {
	c := New()

	c.ConnectionOpened()
	c.ConnectionOpened()
	c.ConnectionRefused()
	if c.ActiveConnections() != 2 {
		t.Errorf("active = %d, want 2", c.ActiveConnections())
	}
	if c.TotalConnections() != 2 {
		t.Errorf("total = %d, want 2", c.TotalConnections())
	}

	c.ConnectionClosed()
	if c.ActiveConnections() != 1 {
		t.Errorf("active = %d, want 1", c.ActiveConnections())
	}
	if got := c.Snapshot().ConnectionsRefused; got != 1 {
		t.Errorf("refused = %d, want 1", got)
	}
}

func TestCollector_Bytes(t *testing.T) {
	c := New()

	c.BytesReceived(1024)
	c.BytesSent(512)
	c.BytesReceived(100)

	if c.TotalBytesIn() != 1124 {
		t.Errorf("bytes in = %d, want 1124", c.TotalBytesIn())
	}
	if c.TotalBytesOut() != 512 {
		t.Errorf("bytes out = %d, want 512", c.TotalBytesOut())
	}
}

func TestCollector_Traffic(t *testing.T) {
	c := New()

	c.LinesReceived(3)
	c.MessageSent()
	c.MessageSent()
	c.MessageDropped()
	c.LogLinesBroadcast(4)
	c.ProtocolErrors(2)
	c.ProtocolErrors(0)

	snap := c.Snapshot()
	if snap.LinesIn != 3 || snap.MessagesOut != 2 || snap.MessagesDropped != 1 {
		t.Errorf("unexpected traffic counters: %+v", snap)
	}
	if c.LogLines() != 4 || snap.LogLines != 4 {
		t.Errorf("log lines = %d, want 4", c.LogLines())
	}
	if snap.ProtocolErrors != 2 {
		t.Errorf("protocol errors = %d, want 2", snap.ProtocolErrors)
	}
	if c.DroppedMessages() != 1 {
		t.Errorf("dropped = %d, want 1", c.DroppedMessages())
	}
}

func TestCollector_LastError(t *testing.T) {
	c := New()
	if c.Snapshot().LastError != "" {
		t.Error("no error recorded yet")
	}

	c.RecordError("first error")
	c.RecordError("second error")

	snap := c.Snapshot()
	if snap.LastError == "" {
		t.Error("expected error timestamp")
	}
	if snap.LastErrorMessage != "second error" {
		t.Errorf("last error = %q", snap.LastErrorMessage)
	}
}

func TestCollector_JSON(t *testing.T) {
	c := New()
	c.ConnectionOpened()
	c.BytesSent(42)

	raw := c.JSON()
	var snap Snapshot
	if err := json.Unmarshal([]byte(raw), &snap); err != nil {
		t.Fatalf("JSON parse error: %v", err)
	}
	if snap.ConnectionsActive != 1 {
		t.Errorf("JSON active = %d", snap.ConnectionsActive)
	}
	if snap.BytesOut != 42 {
		t.Errorf("JSON bytes out = %d", snap.BytesOut)
	}
}

func TestNilCollector_NoOps(t *testing.T) {
	var c *Collector

	// None of these should panic.
	c.ConnectionOpened()
	c.ConnectionClosed()
	c.ConnectionRefused()
	c.BytesReceived(100)
	c.BytesSent(100)
	c.LinesReceived(1)
	c.MessageSent()
	c.MessageDropped()
	c.LogLinesBroadcast(1)
	c.ProtocolErrors(1)
	c.RecordError("test")

	if c.ActiveConnections() != 0 || c.TotalConnections() != 0 {
		t.Error("nil collector should return 0")
	}
	if c.TotalBytesIn() != 0 || c.TotalBytesOut() != 0 {
		t.Error("nil collector should return 0")
	}
	if c.DroppedMessages() != 0 || c.LogLines() != 0 {
		t.Error("nil collector should return 0")
	}

	if snap := c.Snapshot(); snap.ConnectionsActive != 0 {
		t.Error("nil snapshot should be zero")
	}
	if c.JSON() == "" {
		t.Error("nil JSON should return valid JSON")
	}
}

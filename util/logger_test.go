package util

import (
	"bytes"
	"encoding/json"
	"strings"
	"testing"

	log "github.com/sirupsen/logrus"
)

func TestLogger_Levels(t *testing.T) {
	var buf bytes.Buffer
	l := NewLogger(3) // debug level
	l.SetOutput(&buf)
	l.SetTimestamps(false)

	l.Error("e")
	l.Warn("w")
	l.Info("i")
	l.Verbose("v")
	l.Debug("d")

	output := buf.String()
	lines := strings.Split(strings.TrimSpace(output), "\n")
	if len(lines) != 5 {
		t.Fatalf("expected 5 lines, got %d:\n%s", len(lines), output)
	}

	wantLevels := []string{"level=error", "level=warning", "level=info", "level=debug", "level=trace"}
	for i, lvl := range wantLevels {
		if !strings.Contains(lines[i], lvl) {
			t.Errorf("line %d %q missing %q", i, lines[i], lvl)
		}
	}
}

func TestLogger_QuietMode(t *testing.T) {
	var buf bytes.Buffer
	l := NewLogger(0) // quiet
	l.SetOutput(&buf)
	l.SetTimestamps(false)

	l.Info("should not appear")
	l.Verbose("should not appear")
	l.Debug("should not appear")
	l.Error("always appears")

	output := buf.String()
	lines := strings.Split(strings.TrimSpace(output), "\n")
	if len(lines) != 1 {
		t.Errorf("expected 1 line in quiet mode, got %d:\n%s", len(lines), output)
	}
}

func TestLogger_Timestamps(t *testing.T) {
	var buf bytes.Buffer
	l := NewLogger(1)
	l.SetOutput(&buf)
	l.SetTimestamps(true)

	l.Info("test")

	if !strings.Contains(buf.String(), "time=") {
		t.Errorf("expected timestamp field, got %q", buf.String())
	}

	buf.Reset()
	l.SetTimestamps(false)
	l.Info("test")
	if strings.Contains(buf.String(), "time=") {
		t.Errorf("timestamps disabled, got %q", buf.String())
	}
}

func TestLogger_WithField(t *testing.T) {
	var buf bytes.Buffer
	l := NewLogger(1)
	l.SetOutput(&buf)

	l.WithField("channel", "console").Info("accepted")

	if !strings.Contains(buf.String(), "channel=console") {
		t.Errorf("expected field in output, got %q", buf.String())
	}
}

func TestLogger_JSONFormat(t *testing.T) {
	var buf bytes.Buffer
	l := NewLogger(1)
	l.SetOutput(&buf)
	if err := l.SetFormat("json"); err != nil {
		t.Fatal(err)
	}

	l.Warn("disk %d%% full", 91)

	var rec map[string]interface{}
	if err := json.Unmarshal(buf.Bytes(), &rec); err != nil {
		t.Fatalf("output is not JSON: %v\n%s", err, buf.String())
	}
	if rec["msg"] != "disk 91% full" || rec["level"] != "warning" {
		t.Errorf("unexpected record %v", rec)
	}

	if err := l.SetFormat("xml"); err == nil {
		t.Error("expected error for unknown format")
	}
}

func TestLogger_HostLogger(t *testing.T) {
	host := log.New()
	l := NewLoggerFrom(host, 2)
	if l.Logrus() != host {
		t.Fatal("Logrus() should return the wrapped logger")
	}
	if host.GetLevel() != log.DebugLevel {
		t.Errorf("host level = %v, want debug", host.GetLevel())
	}
}

func TestBufPool_RoundTrip(t *testing.T) {
	buf := GetBuf()
	if buf == nil {
		t.Fatal("GetBuf returned nil")
	}
	if len(*buf) != DefaultBufSize {
		t.Errorf("buffer size = %d, want %d", len(*buf), DefaultBufSize)
	}

	(*buf)[0] = 0xFF
	PutBuf(buf)

	buf2 := GetBuf()
	if buf2 == nil {
		t.Fatal("second GetBuf returned nil")
	}
	PutBuf(buf2)
}

func TestPutBuf_Nil(t *testing.T) {
	// Should not panic.
	PutBuf(nil)
}

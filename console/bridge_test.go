package console

import (
	"io"
	"strings"
	"testing"

	log "github.com/sirupsen/logrus"

	"rconsole/internal/metrics"
)

func TestBridge_SubscriptionRules(t *testing.T) {
	tests := []struct {
		name string
		on   bool
		mask Severity
		sev  Severity
		want int
	}{
		{"subscribed matching", true, SeverityWarn | SeverityError, SeverityError, 1},
		{"subscribed other level", true, SeverityWarn, SeverityInfo, 0},
		{"subscribed all", true, AllSeverities, SeverityDebug, 1},
		{"subscribed empty mask", true, 0, SeverityError, 0},
		{"not subscribed", false, AllSeverities, SeverityError, 0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := NewRegistry(0, nil)
			c, _ := r.Open(1, nil, "x")
			r.SetLogSubscription(1, tt.on, tt.mask) //nolint:errcheck

			b := NewBridge(r, nil)
			if got := b.Publish(tt.sev, "msg"); got != tt.want {
				t.Errorf("Publish = %d, want %d", got, tt.want)
			}
			if c.Outbound().Len() != tt.want {
				t.Errorf("outbound len = %d", c.Outbound().Len())
			}
		})
	}
}

func TestBridge_FansOut(t *testing.T) {
	m := metrics.New()
	r := NewRegistry(0, m)
	b := NewBridge(r, m)

	var subs []*Connection
	for id := ID(1); id <= 4; id++ {
		c, _ := r.Open(id, nil, "x")
		if id%2 == 0 {
			r.SetLogSubscription(id, true, SeverityInfo) //nolint:errcheck
			subs = append(subs, c)
		}
	}

	if got := b.Publish(SeverityInfo, "hello"); got != 2 {
		t.Fatalf("delivered to %d, want 2", got)
	}
	for _, c := range subs {
		if msg, ok := c.Outbound().Fetch(); !ok || msg != "hello" {
			t.Errorf("#%d got %q %v", c.ID(), msg, ok)
		}
	}
	if m.LogLines() != 2 {
		t.Errorf("log lines = %d", m.LogLines())
	}
}

func TestBridge_FullChannelStillDelivers(t *testing.T) {
	m := metrics.New()
	r := NewRegistry(2, m)
	c, _ := r.Open(1, nil, "x")
	r.SetLogSubscription(1, true, AllSeverities) //nolint:errcheck
	b := NewBridge(r, m)

	for _, msg := range []string{"one", "two", "three"} {
		if b.Publish(SeverityInfo, msg) != 1 {
			t.Fatalf("%q not delivered", msg)
		}
	}
	if got := c.Outbound().Drain(); len(got) != 2 || got[0] != "two" || got[1] != "three" {
		t.Errorf("outbound = %q, want the two newest", got)
	}
	if m.DroppedMessages() != 1 {
		t.Errorf("dropped = %d", m.DroppedMessages())
	}
}

func TestBridge_Hook(t *testing.T) {
	r := NewRegistry(0, nil)
	warn, _ := r.Open(1, nil, "x")
	debug, _ := r.Open(2, nil, "y")
	r.SetLogSubscription(1, true, SeverityWarn)  //nolint:errcheck
	r.SetLogSubscription(2, true, SeverityDebug) //nolint:errcheck

	logger := log.New()
	logger.SetOutput(io.Discard)
	logger.SetLevel(log.TraceLevel)
	logger.AddHook(NewBridge(r, nil))

	logger.WithField("disk", "/var").Warn("disk low")
	logger.Trace("tick")

	msg, ok := warn.Outbound().Fetch()
	if !ok {
		t.Fatal("warn subscriber got nothing")
	}
	for _, want := range []string{"level=warning", `msg="disk low"`, "disk=/var", "channel=console"} {
		if !strings.Contains(msg, want) {
			t.Errorf("line %q missing %q", msg, want)
		}
	}
	if strings.HasSuffix(msg, "\n") {
		t.Error("line should not carry the formatter's newline")
	}
	if warn.Outbound().Len() != 0 {
		t.Error("warn subscriber should not see trace records")
	}

	msg, ok = debug.Outbound().Fetch()
	if !ok || !strings.Contains(msg, "msg=tick") {
		t.Errorf("debug subscriber got %q %v", msg, ok)
	}
}

func TestBridge_KeepsChannelField(t *testing.T) {
	r := NewRegistry(0, nil)
	c, _ := r.Open(1, nil, "x")
	r.SetLogSubscription(1, true, AllSeverities) //nolint:errcheck

	logger := log.New()
	logger.SetOutput(io.Discard)
	logger.AddHook(NewBridge(r, nil))
	logger.WithField("channel", "db").Info("slow query")

	msg, _ := c.Outbound().Fetch()
	if !strings.Contains(msg, "channel=db") || strings.Contains(msg, "channel=console") {
		t.Errorf("line %q", msg)
	}
}

func TestSeverityOf(t *testing.T) {
	tests := []struct {
		level log.Level
		want  Severity
	}{
		{log.TraceLevel, SeverityDebug},
		{log.DebugLevel, SeverityDebug},
		{log.InfoLevel, SeverityInfo},
		{log.WarnLevel, SeverityWarn},
		{log.ErrorLevel, SeverityError},
		{log.FatalLevel, SeverityError},
		{log.PanicLevel, SeverityError},
	}
	for _, tt := range tests {
		if got := severityOf(tt.level); got != tt.want {
			t.Errorf("severityOf(%s) = %v, want %v", tt.level, got, tt.want)
		}
	}
}

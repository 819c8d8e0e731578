package console

import (
	"strings"
	"sync/atomic"

	log "github.com/sirupsen/logrus"

	"rconsole/internal/metrics"
)

// Channel is the log channel tag attached to console records.
const Channel = "console"

// Bridge fans host log records out to subscribed connections.  It is a
// logrus.Hook, so adding it to a logger is enough to feed the console:
//
//	logger.AddHook(console.Bridge())
//
// Delivery never blocks the logging goroutine.  A subscriber whose
// outbound channel is full loses its oldest queued message, never this
// one.
type Bridge struct {
	reg       *Registry
	metrics   *metrics.Collector
	formatter log.Formatter
	paused    atomic.Bool
}

// NewBridge returns a bridge publishing into reg.  m may be nil.
func NewBridge(reg *Registry, m *metrics.Collector) *Bridge {
	return &Bridge{
		reg:     reg,
		metrics: m,
		formatter: &log.TextFormatter{
			DisableColors:   true,
			FullTimestamp:   true,
			TimestampFormat: "15:04:05.000",
		},
	}
}

// Publish posts text to every connection subscribed to sev and returns
// the number of connections it was delivered to.
func (b *Bridge) Publish(sev Severity, text string) int {
	delivered, dropped := 0, 0
	b.reg.ForEach(func(c *Connection) {
		if !c.wantsLogSubscriber || c.logLevelMask&sev == 0 {
			return
		}
		if !c.outbound.Post(text) {
			dropped++
		}
		delivered++
	})

	for i := 0; i < dropped; i++ {
		b.metrics.MessageDropped()
	}
	b.metrics.LogLinesBroadcast(delivered)
	return delivered
}

// ── logrus.Hook ──────────────────────────────────────────────────────

// Levels returns every logrus level; filtering happens per subscriber.
func (b *Bridge) Levels() []log.Level {
	return log.AllLevels
}

// Fire renders entry and publishes it.  A paused bridge ignores it.
func (b *Bridge) Fire(entry *log.Entry) error {
	if b.paused.Load() {
		return nil
	}
	data := make(log.Fields, len(entry.Data)+1)
	for k, v := range entry.Data {
		data[k] = v
	}
	if _, ok := data["channel"]; !ok {
		data["channel"] = Channel
	}
	tagged := &log.Entry{
		Logger:  entry.Logger,
		Data:    data,
		Time:    entry.Time,
		Level:   entry.Level,
		Message: entry.Message,
	}

	line, err := b.formatter.Format(tagged)
	if err != nil {
		return err
	}
	b.Publish(severityOf(entry.Level), strings.TrimRight(string(line), "\n"))
	return nil
}

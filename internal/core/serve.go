package core

import (
	"context"
	"time"

	"golang.org/x/sync/errgroup"

	"rconsole/console"
	"rconsole/util"
)

// ServeMode runs a standalone console until the context ends.  With
// DemoLogInterval set it also logs a heartbeat so attached clients have
// something to follow.
type ServeMode struct {
	Options         console.Options
	DemoLogInterval time.Duration
	Logger          *util.Logger

	// Ready, when set, is called once the console is listening.
	Ready func(*console.Console)
}

// Run starts the console, blocks until ctx is done or the console's
// listener fails and then releases it, closing every client connection.
func (m *ServeMode) Run(ctx context.Context) error {
	con := console.New(m.Options)
	if err := con.Acquire(); err != nil {
		return err
	}
	m.Logger.Info("console ready on %s", con.Addr())

	if m.Ready != nil {
		m.Ready(con)
	}

	runCtx, stop := context.WithCancel(ctx)
	defer stop()
	g, gctx := errgroup.WithContext(runCtx)
	if m.DemoLogInterval > 0 {
		g.Go(func() error {
			demoLog(gctx, m.Logger, m.DemoLogInterval)
			return nil
		})
	}
	// Release reports the listener error if the console died on its own.
	select {
	case <-gctx.Done():
	case <-con.Done():
	}
	stop()
	g.Wait() //nolint:errcheck

	m.Logger.Verbose("stopping console")
	return con.Release()
}

// demoLog logs one line per tick, cycling through severities.
func demoLog(ctx context.Context, logger *util.Logger, every time.Duration) {
	ticker := time.NewTicker(every)
	defer ticker.Stop()

	for n := 1; ; n++ {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}
		switch {
		case n%10 == 0:
			logger.Error("demo: tick %d, pretending something failed", n)
		case n%5 == 0:
			logger.Warn("demo: tick %d, running a little behind", n)
		case n%2 == 0:
			logger.Verbose("demo: tick %d", n)
		default:
			logger.Info("demo: tick %d", n)
		}
	}
}

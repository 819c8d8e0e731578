package core

import (
	"os"

	"golang.org/x/term"

	"rconsole/config"
	"rconsole/console"
	"rconsole/internal/metrics"
	"rconsole/internal/retry"
	"rconsole/internal/transport"
	"rconsole/util"
)

// Build constructs the Mode selected by cfg.  cfg should already be
// validated.
func Build(cfg *config.Config, logger *util.Logger) (Mode, error) {
	if cfg.Serve {
		return buildServe(cfg, logger), nil
	}
	return buildAttach(cfg, logger), nil
}

// ── mode builders ────────────────────────────────────────────────────

func buildServe(cfg *config.Config, logger *util.Logger) *ServeMode {
	return &ServeMode{
		Options: console.Options{
			Address:         cfg.ListenAddr(),
			MaxConnections:  cfg.MaxConnections,
			ChannelCapacity: cfg.ChannelCapacity,
			SweepInterval:   cfg.SweepInterval,
			CloseGrace:      cfg.CloseGrace,
			WriteTimeout:    cfg.WriteTimeout,
			Banner:          cfg.Banner,
			Logger:          logger,
			Metrics:         metrics.New(),
		},
		DemoLogInterval: cfg.DemoLogInterval,
		Logger:          logger,
	}
}

func buildAttach(cfg *config.Config, logger *util.Logger) *AttachMode {
	b := retry.New(cfg.Retries, config.DefaultMaxRetryBackoff)
	b.Classify = retry.Dial

	return &AttachMode{
		Dialer:   buildDialer(cfg, logger),
		Address:  cfg.DialAddr(),
		Backoff:  b,
		LineMode: wantLineMode(cfg.LineMode, stdinIsTerminal),
		Logger:   logger,
	}
}

// ── shared helpers ───────────────────────────────────────────────────

// buildDialer picks a direct or SSH-forwarded dialer.
func buildDialer(cfg *config.Config, logger *util.Logger) transport.Dialer {
	if cfg.TunnelEnabled {
		return transport.NewSSHDialer(&transport.SSHConfig{
			User:          cfg.TunnelUser,
			Host:          cfg.TunnelHost,
			Port:          cfg.TunnelPort,
			KeyPath:       cfg.SSHKeyPath,
			PromptPass:    cfg.SSHPassword,
			UseAgent:      cfg.UseSSHAgent,
			StrictHostKey: cfg.StrictHostKey,
			KnownHosts:    cfg.KnownHostsPath,
			Timeout:       cfg.Timeout,
		}, logger)
	}
	return &transport.TCPDialer{Timeout: cfg.Timeout}
}

// wantLineMode resolves the --linemode setting.  auto asks for line
// mode only when a person is typing.
func wantLineMode(setting string, isTerminal func() bool) bool {
	switch setting {
	case config.LineModeOn:
		return true
	case config.LineModeOff:
		return false
	default:
		return isTerminal()
	}
}

func stdinIsTerminal() bool {
	return term.IsTerminal(int(os.Stdin.Fd()))
}

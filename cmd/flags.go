package cmd

import "rconsole/config"

// flagFields copies a changed flag's value from the flag targets onto
// the effective configuration, so flags win over env and file values
// only when they were actually given.
var flagFields = map[string]func(dst, src *config.Config){ //nolint:gochecknoglobals
	"verbose":    func(d, s *config.Config) { d.Verbose = s.Verbose },
	"log-format": func(d, s *config.Config) { d.LogFormat = s.LogFormat },

	"address":          func(d, s *config.Config) { d.Address = s.Address },
	"port":             func(d, s *config.Config) { d.Port = s.Port },
	"max-connections":  func(d, s *config.Config) { d.MaxConnections = s.MaxConnections },
	"channel-capacity": func(d, s *config.Config) { d.ChannelCapacity = s.ChannelCapacity },
	"sweep-interval":   func(d, s *config.Config) { d.SweepInterval = s.SweepInterval },
	"close-grace":      func(d, s *config.Config) { d.CloseGrace = s.CloseGrace },
	"write-timeout":    func(d, s *config.Config) { d.WriteTimeout = s.WriteTimeout },
	"banner":           func(d, s *config.Config) { d.Banner = s.Banner },
	"demo-log":         func(d, s *config.Config) { d.DemoLogInterval = s.DemoLogInterval },

	"linemode": func(d, s *config.Config) { d.LineMode = s.LineMode },
	"retries":  func(d, s *config.Config) { d.Retries = s.Retries },
	"timeout":  func(d, s *config.Config) { d.Timeout = s.Timeout },

	"tunnel":         func(d, s *config.Config) { d.TunnelSpec = s.TunnelSpec },
	"ssh-key":        func(d, s *config.Config) { d.SSHKeyPath = s.SSHKeyPath },
	"ssh-password":   func(d, s *config.Config) { d.SSHPassword = s.SSHPassword },
	"ssh-agent":      func(d, s *config.Config) { d.UseSSHAgent = s.UseSSHAgent },
	"strict-hostkey": func(d, s *config.Config) { d.StrictHostKey = s.StrictHostKey },
	"known-hosts":    func(d, s *config.Config) { d.KnownHostsPath = s.KnownHostsPath },
}

// Package config defines the runtime configuration for rconsole and
// provides helpers for parsing tunnel specifications.
package config

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"time"

	ncerr "rconsole/internal/errors"
)

// Config holds every tuneable for one rconsole invocation.
type Config struct {
	// ── Console server ───────────────────────────────────────────────
	Serve           bool   // serve mode; attach otherwise
	Address         string // bind address for serve
	Port            int    // listen port (serve) or destination port (attach)
	MaxConnections  int
	ChannelCapacity int
	SweepInterval   time.Duration
	CloseGrace      time.Duration
	WriteTimeout    time.Duration
	Banner          string
	DemoLogInterval time.Duration // serve: emit a demo log line this often, 0 = off

	// ── Attach client ────────────────────────────────────────────────
	Host     string
	LineMode string // auto, on or off
	Retries  int
	Timeout  time.Duration

	// ── SSH tunnel ───────────────────────────────────────────────────
	TunnelSpec     string // raw user@host[:port] from --tunnel
	TunnelEnabled  bool
	TunnelUser     string
	TunnelHost     string
	TunnelPort     int
	SSHKeyPath     string
	SSHPassword    bool // true → prompt interactively
	UseSSHAgent    bool
	StrictHostKey  bool
	KnownHostsPath string

	// ── Output ───────────────────────────────────────────────────────
	Verbose   int
	LogFormat string // text or json
}

// Line-mode settings for the attach client.
const (
	LineModeAuto = "auto"
	LineModeOn   = "on"
	LineModeOff  = "off"
)

// Defaults returns a Config populated with the default values.
func Defaults() *Config {
	return &Config{
		Address:         DefaultAddress,
		Port:            DefaultPort,
		MaxConnections:  DefaultMaxConnections,
		ChannelCapacity: DefaultChannelCapacity,
		SweepInterval:   DefaultSweepInterval,
		CloseGrace:      DefaultCloseGrace,
		WriteTimeout:    DefaultWriteTimeout,
		Host:            DefaultAddress,
		LineMode:        LineModeAuto,
		Retries:         DefaultRetries,
		Timeout:         DefaultConnTimeout,
		LogFormat:       "text",
	}
}

// ListenAddr returns the serve address as host:port.
func (c *Config) ListenAddr() string {
	return fmt.Sprintf("%s:%d", bracketIPv6(c.Address), c.Port)
}

// DialAddr returns the attach destination as host:port.
func (c *Config) DialAddr() string {
	return fmt.Sprintf("%s:%d", bracketIPv6(c.Host), c.Port)
}

func bracketIPv6(host string) string {
	if strings.Contains(host, ":") && !strings.HasPrefix(host, "[") {
		return "[" + host + "]"
	}
	return host
}

// ── Tunnel-spec parser ───────────────────────────────────────────────

// tunnelRe matches [user@]host[:port].
var tunnelRe = regexp.MustCompile(`^(?:([^@]+)@)?([^:]+)(?::(\d+))?$`)

// ParseTunnelSpec extracts user, host, and port from a string such as
// "admin@bastion.example.com:2222".  Port defaults to 22.
func ParseTunnelSpec(spec string) (user, host string, port int, err error) {
	m := tunnelRe.FindStringSubmatch(spec)
	if m == nil {
		return "", "", 0, fmt.Errorf("invalid tunnel spec %q, expected [user@]host[:port]", spec)
	}
	user = m[1]
	host = m[2]
	port = DefaultSSHPort
	if m[3] != "" {
		port, err = strconv.Atoi(m[3])
		if err != nil || port < 1 || port > 65535 {
			return "", "", 0, fmt.Errorf("invalid tunnel port %q", m[3])
		}
	}
	if host == "" {
		return "", "", 0, fmt.Errorf("tunnel host is required")
	}
	return user, host, port, nil
}

// ApplyTunnelSpec parses TunnelSpec, when set, into the Tunnel* fields.
func (c *Config) ApplyTunnelSpec() error {
	if c.TunnelSpec == "" {
		return nil
	}
	user, host, port, err := ParseTunnelSpec(c.TunnelSpec)
	if err != nil {
		return &ncerr.ConfigError{
			Field:   "tunnel",
			Value:   c.TunnelSpec,
			Message: err.Error(),
			Hint:    "use --tunnel user@bastion[:port]",
		}
	}
	c.TunnelEnabled = true
	c.TunnelUser = user
	c.TunnelHost = host
	c.TunnelPort = port
	return nil
}

// ── Validation ───────────────────────────────────────────────────────

// Validate checks that the configuration is internally consistent.
func (c *Config) Validate() error {
	if c.Port < 1 || c.Port > 65535 {
		return &ncerr.ConfigError{
			Field:   "port",
			Value:   c.Port,
			Message: "out of range 1-65535",
			Hint:    fmt.Sprintf("the console listens on %d by default", DefaultPort),
		}
	}
	if c.ChannelCapacity < 1 {
		return &ncerr.ConfigError{
			Field:   "channel-capacity",
			Value:   c.ChannelCapacity,
			Message: "must be at least 1",
		}
	}
	if c.MaxConnections < 1 {
		return &ncerr.ConfigError{
			Field:   "max-connections",
			Value:   c.MaxConnections,
			Message: "must be at least 1",
		}
	}
	switch c.LogFormat {
	case "", "text", "json":
	default:
		return &ncerr.ConfigError{
			Field:   "log-format",
			Value:   c.LogFormat,
			Message: "unknown format",
			Hint:    "use text or json",
		}
	}

	if c.Serve {
		if c.Address == "" {
			return &ncerr.ConfigError{Field: "address", Message: "bind address is required"}
		}
		if c.TunnelEnabled {
			return &ncerr.ConfigError{
				Field:   "tunnel",
				Value:   c.TunnelSpec,
				Message: "only attach can go through an SSH tunnel",
			}
		}
		if c.CloseGrace < c.SweepInterval {
			return &ncerr.ConfigError{
				Field:   "close-grace",
				Value:   c.CloseGrace,
				Message: "shorter than the sweep interval",
				Hint:    fmt.Sprintf("raise it to at least %s", c.SweepInterval),
			}
		}
		return nil
	}

	if c.Host == "" {
		return &ncerr.ConfigError{
			Field:   "host",
			Message: "hostname is required",
			Hint:    "rconsole attach <host> [port]",
		}
	}
	switch c.LineMode {
	case LineModeAuto, LineModeOn, LineModeOff:
	default:
		return &ncerr.ConfigError{
			Field:   "linemode",
			Value:   c.LineMode,
			Message: "unknown setting",
			Hint:    "use auto, on or off",
		}
	}
	if c.Retries < 0 {
		return &ncerr.ConfigError{Field: "retries", Value: c.Retries, Message: "must not be negative"}
	}
	if c.TunnelEnabled && c.TunnelHost == "" {
		return &ncerr.ConfigError{Field: "tunnel", Message: "tunnel host is required"}
	}
	return nil
}

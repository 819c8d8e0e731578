package config

// loader.go - configuration loading from environment variables.
//
// Precedence order (highest wins):
//   1. CLI flags  (handled by cmd/root.go)
//   2. Environment variables  (this file)
//   3. Config file  (file.go)
//   4. Defaults   (defaults.go)

import (
	"os"
	"strconv"
	"strings"
	"time"
)

// ── Environment variable mapping ─────────────────────────────────────
//
// Every supported env var uses the RCONSOLE_ prefix.  Boolean values
// accept "1", "true", "yes" (case-insensitive).  Durations accept Go
// syntax ("250ms") or a bare number of seconds.

// LoadFromEnv overlays environment variables onto cfg.  Only non-empty
// env vars override the existing value.  This should be called BEFORE
// CLI flags are applied so that flags take precedence.
func LoadFromEnv(cfg *Config) {
	// Console server
	if v := os.Getenv("RCONSOLE_ADDRESS"); v != "" {
		cfg.Address = v
	}
	if v := envInt("RCONSOLE_PORT"); v > 0 {
		cfg.Port = v
	}
	if v := envInt("RCONSOLE_MAX_CONNECTIONS"); v > 0 {
		cfg.MaxConnections = v
	}
	if v := envInt("RCONSOLE_CHANNEL_CAPACITY"); v > 0 {
		cfg.ChannelCapacity = v
	}
	if v := envDuration("RCONSOLE_SWEEP_INTERVAL"); v > 0 {
		cfg.SweepInterval = v
	}
	if v := envDuration("RCONSOLE_CLOSE_GRACE"); v > 0 {
		cfg.CloseGrace = v
	}
	if v := envDuration("RCONSOLE_WRITE_TIMEOUT"); v > 0 {
		cfg.WriteTimeout = v
	}
	if v, ok := os.LookupEnv("RCONSOLE_BANNER"); ok && v != "" {
		cfg.Banner = v
	}
	if v := envDuration("RCONSOLE_DEMO_LOG_INTERVAL"); v > 0 {
		cfg.DemoLogInterval = v
	}

	// Attach client
	if v := os.Getenv("RCONSOLE_HOST"); v != "" {
		cfg.Host = v
	}
	if v := os.Getenv("RCONSOLE_LINEMODE"); v != "" {
		cfg.LineMode = strings.ToLower(v)
	}
	if v, ok := envIntSet("RCONSOLE_RETRIES"); ok {
		cfg.Retries = v
	}
	if v := envDuration("RCONSOLE_TIMEOUT"); v > 0 {
		cfg.Timeout = v
	}

	// SSH tunnel
	if v := os.Getenv("RCONSOLE_TUNNEL"); v != "" {
		cfg.TunnelSpec = v
	}
	if v := os.Getenv("RCONSOLE_SSH_KEY"); v != "" {
		cfg.SSHKeyPath = v
	}
	if envBool("RCONSOLE_SSH_PASSWORD") {
		cfg.SSHPassword = true
	}
	if envBool("RCONSOLE_SSH_AGENT") {
		cfg.UseSSHAgent = true
	}
	if envBool("RCONSOLE_STRICT_HOSTKEY") {
		cfg.StrictHostKey = true
	}
	if v := os.Getenv("RCONSOLE_KNOWN_HOSTS"); v != "" {
		cfg.KnownHostsPath = v
	}

	// Output
	if v := envInt("RCONSOLE_VERBOSE"); v > 0 {
		cfg.Verbose = v
	}
	if v := os.Getenv("RCONSOLE_LOG_FORMAT"); v != "" {
		cfg.LogFormat = strings.ToLower(v)
	}
}

// ── helpers ──────────────────────────────────────────────────────────

func envInt(key string) int {
	v, _ := envIntSet(key)
	return v
}

// envIntSet reports whether key holds a valid integer, so that an
// explicit 0 can be told apart from unset.
func envIntSet(key string) (int, bool) {
	v := os.Getenv(key)
	if v == "" {
		return 0, false
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return 0, false
	}
	return n, true
}

func envBool(key string) bool {
	v := strings.ToLower(os.Getenv(key))
	return v == "1" || v == "true" || v == "yes"
}

func envDuration(key string) time.Duration {
	v := os.Getenv(key)
	if v == "" {
		return 0
	}
	if n, err := strconv.Atoi(v); err == nil {
		return secondsDuration(n)
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return 0
	}
	return d
}

func secondsDuration(sec int) time.Duration {
	return time.Duration(sec) * time.Second
}

package config

import "time"

// ── Default values ───────────────────────────────────────────────────
//
// All tuneable defaults live here so they are easy to audit and reuse
// across CLI flags, config file parsing, and environment variable
// loading.

const (
	// DefaultPort is the console's TCP port.
	DefaultPort = 3535

	// DefaultAddress is the serve bind address and attach destination.
	// The console is a debug surface, so it stays on loopback unless told
	// otherwise.
	DefaultAddress = "127.0.0.1"

	// DefaultMaxConnections caps concurrent console clients.
	DefaultMaxConnections = 16

	// DefaultChannelCapacity is the per-connection queue depth in each
	// direction.
	DefaultChannelCapacity = 32

	// DefaultSweepInterval is how often abandoned connections are
	// checked.
	DefaultSweepInterval = 250 * time.Millisecond

	// DefaultCloseGrace is how long a requested close may stay pending
	// before the sweeper forces it.
	DefaultCloseGrace = 2 * time.Second

	// DefaultWriteTimeout bounds a single write to a slow client.
	DefaultWriteTimeout = 5 * time.Second

	// DefaultSSHPort is the standard SSH port.
	DefaultSSHPort = 22

	// DefaultConnTimeout is the TCP/SSH connection timeout for attach.
	DefaultConnTimeout = 10 * time.Second

	// DefaultRetries is how many extra dial attempts attach makes.
	DefaultRetries = 3

	// DefaultMaxRetryBackoff caps the exponential backoff between
	// attach dial attempts.
	DefaultMaxRetryBackoff = 5 * time.Second
)

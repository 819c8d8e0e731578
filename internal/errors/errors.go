// Package errors provides domain-specific error types for rconsole.
//
// These types carry structured context (operation, address, connection,
// retryability) so callers can decide how to handle a failure, and they
// give better diagnostics than plain string wrapping.
package errors

import (
	"errors"
	"fmt"
	"net"

	pkgerrors "github.com/pkg/errors"
)

// ── Sentinel errors ──────────────────────────────────────────────────

var (
	ErrDuplicateID   = errors.New("connection id already registered")
	ErrUnknownID     = errors.New("no such connection")
	ErrConsoleClosed = errors.New("console is closed")
	ErrTimeout       = errors.New("operation timed out")
	ErrAuthFailed    = errors.New("authentication failed")
)

// ── Structured error types ───────────────────────────────────────────

// NetworkError represents a failure in a network operation.
type NetworkError struct {
	Op        string // operation: "dial", "listen", "accept", "write", "read"
	Addr      string // network address involved
	Err       error  // underlying error
	Retryable bool   // whether the caller should retry
}

func (e *NetworkError) Error() string {
	s := fmt.Sprintf("%s %s: %v", e.Op, e.Addr, e.Err)
	if e.Retryable {
		s += " (retryable)"
	}
	return s
}

func (e *NetworkError) Unwrap() error { return e.Err }

// Is matches ErrTimeout when the underlying error is a timeout.
func (e *NetworkError) Is(target error) bool {
	if target != ErrTimeout {
		return false
	}
	var t interface{ Timeout() bool }
	return errors.As(e.Err, &t) && t.Timeout()
}

// RegistryError reports a failed registry operation on one connection.
type RegistryError struct {
	Op   string // "open", "close", "lookup"
	Conn uint64
	Err  error // ErrDuplicateID or ErrUnknownID
}

func (e *RegistryError) Error() string {
	return fmt.Sprintf("registry %s #%d: %v", e.Op, e.Conn, e.Err)
}

func (e *RegistryError) Unwrap() error { return e.Err }

// ProtocolError describes a malformed or truncated telnet sequence.  It
// is logged and counted, never returned across the registry boundary.
type ProtocolError struct {
	Seq    []byte // offending bytes, possibly truncated
	Reason string
}

func (e *ProtocolError) Error() string {
	if len(e.Seq) == 0 {
		return "telnet: " + e.Reason
	}
	return fmt.Sprintf("telnet: %s (% x)", e.Reason, e.Seq)
}

// SSHError represents an SSH-specific failure with host context.
type SSHError struct {
	Op   string // "handshake", "auth", "hostkey", "dial"
	Host string
	Port int
	Err  error
}

func (e *SSHError) Error() string {
	return fmt.Sprintf("ssh %s %s:%d: %v", e.Op, e.Host, e.Port, e.Err)
}

func (e *SSHError) Unwrap() error { return e.Err }

// ConfigError represents an invalid configuration value.
type ConfigError struct {
	Field   string      // config field name
	Value   interface{} // the invalid value (nil if missing)
	Message string      // human-readable explanation
	Hint    string      // suggestion for the user (optional)
}

func (e *ConfigError) Error() string {
	msg := fmt.Sprintf("config: --%s", e.Field)
	if e.Value != nil {
		msg += fmt.Sprintf("=%v", e.Value)
	}
	msg += ": " + e.Message
	if e.Hint != "" {
		msg += "\n  hint: " + e.Hint
	}
	return msg
}

// ── Constructors ─────────────────────────────────────────────────────

// Wrap creates a NetworkError, automatically detecting retryability
// from the underlying error.
func Wrap(op, addr string, err error) *NetworkError {
	return &NetworkError{
		Op:        op,
		Addr:      addr,
		Err:       err,
		Retryable: classifyRetryable(err),
	}
}

// WrapSSH creates an SSHError.
func WrapSSH(op, host string, port int, err error) *SSHError {
	return &SSHError{Op: op, Host: host, Port: port, Err: err}
}

// Wrapf annotates err with a formatted message and the caller's stack.
// It returns nil when err is nil.
func Wrapf(err error, format string, args ...interface{}) error {
	return pkgerrors.Wrapf(err, format, args...)
}

// ── Classification helpers ───────────────────────────────────────────

// IsRetryable reports whether err is worth retrying.
func IsRetryable(err error) bool {
	if err == nil {
		return false
	}
	var ne *NetworkError
	if errors.As(err, &ne) {
		return ne.Retryable
	}
	return classifyRetryable(err)
}

// classifyRetryable inspects standard library error types.  Refused
// and reset connections count as retryable: a console that is being
// restarted refuses for a moment and then comes back.
func classifyRetryable(err error) bool {
	if err == nil {
		return false
	}
	var opErr *net.OpError
	if errors.As(err, &opErr) {
		if opErr.Op == "dial" {
			return true
		}
		return opErr.Temporary() //nolint:staticcheck // Temporary is deprecated but still useful
	}
	var dnsErr *net.DNSError
	if errors.As(err, &dnsErr) {
		return dnsErr.Temporary() //nolint:staticcheck
	}
	return false
}

// ── Re-exports for convenience ───────────────────────────────────────

// As is [errors.As].
func As(err error, target interface{}) bool { return errors.As(err, target) }

// Is is [errors.Is].
func Is(err, target error) bool { return errors.Is(err, target) }

// New is [errors.New].
func New(text string) error { return errors.New(text) }

// Unwrap is [errors.Unwrap].
func Unwrap(err error) error { return errors.Unwrap(err) }

package util

import (
	"context"
	"errors"
	"io"
	"net"
)

// DefaultBufSize is the read buffer size for console streams (4 KiB).
// Console traffic is short text lines; a larger buffer only wastes the
// pool.
const DefaultBufSize = 4 * 1024

// Relay shuffles data between a network connection and a local
// reader/writer pair until the remote side closes, a copy fails, or the
// context is cancelled.  A clean EOF on r half-closes the write side,
// when conn supports it, and keeps draining the remote until it hangs
// up.  Relay does not wait for a read from r that is still blocked when
// the remote goes away.
func Relay(ctx context.Context, conn net.Conn, r io.Reader, w io.Writer) error {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	down := make(chan error, 1)
	up := make(chan error, 1)

	// network → writer
	go func() {
		_, err := io.Copy(w, conn)
		down <- err
		cancel()
	}()

	// reader → network
	go func() {
		_, err := io.Copy(conn, r)
		if cw, ok := conn.(closeWriter); ok {
			cw.CloseWrite() //nolint:errcheck
		}
		up <- err
		if err != nil {
			cancel()
		}
	}()

	<-ctx.Done()
	conn.Close() // unblock any pending reads/writes

	if err := <-down; !IsClosed(err) {
		return err
	}
	select {
	case err := <-up:
		if !IsClosed(err) {
			return err
		}
	default:
	}
	return nil
}

type closeWriter interface {
	CloseWrite() error
}

// IsClosed reports whether err is one of the errors expected when a
// peer hangs up or a stream is closed underneath a pending read/write.
func IsClosed(err error) bool {
	if err == nil {
		return true
	}
	if errors.Is(err, io.EOF) || errors.Is(err, net.ErrClosed) || errors.Is(err, io.ErrClosedPipe) {
		return true
	}
	var opErr *net.OpError
	if errors.As(err, &opErr) {
		return errors.Is(opErr.Err, net.ErrClosed)
	}
	return false
}

package util

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net"
	"testing"
	"time"
)

func TestRelay(t *testing.T) {
	// Set up a TCP server that echoes data.
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatal(err)
	}
	defer ln.Close()

	go func() {
		conn, err := ln.Accept()
		if err != nil {
			return
		}
		defer conn.Close()
		io.Copy(conn, conn) // echo
	}()

	conn, err := net.Dial("tcp", ln.Addr().String())
	if err != nil {
		t.Fatal(err)
	}

	input := bytes.NewBufferString("help\n")
	output := &bytes.Buffer{}

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	// input → conn → echo → output.  When input is exhausted the write
	// side half-closes; the echo server sees EOF and closes its side.
	if err := Relay(ctx, conn, input, output); err != nil {
		t.Fatalf("Relay: %v", err)
	}

	if got := output.String(); got != "help\n" {
		t.Errorf("output = %q, want %q", got, "help\n")
	}
}

func TestIsClosed(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want bool
	}{
		{"nil", nil, true},
		{"eof", io.EOF, true},
		{"net closed", net.ErrClosed, true},
		{"wrapped eof", fmt.Errorf("read: %w", io.EOF), true},
		{"op error closed", &net.OpError{Op: "read", Err: net.ErrClosed}, true},
		{"unexpected eof", io.ErrUnexpectedEOF, false},
		{"other", fmt.Errorf("boom"), false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := IsClosed(tt.err); got != tt.want {
				t.Errorf("IsClosed(%v) = %v, want %v", tt.err, got, tt.want)
			}
		})
	}
}

func TestRelay_RemoteCloseWithBlockedInput(t *testing.T) {
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatal(err)
	}
	defer ln.Close()

	go func() {
		conn, err := ln.Accept()
		if err != nil {
			return
		}
		conn.Write([]byte("bye\n")) //nolint:errcheck
		conn.Close()
	}()

	conn, err := net.Dial("tcp", ln.Addr().String())
	if err != nil {
		t.Fatal(err)
	}

	// The pipe is never written, so the input copy stays blocked.
	pr, pw := io.Pipe()
	defer pw.Close()
	output := &bytes.Buffer{}

	done := make(chan error, 1)
	go func() { done <- Relay(context.Background(), conn, pr, output) }()

	select {
	case err := <-done:
		if err != nil {
			t.Fatalf("Relay: %v", err)
		}
	case <-time.After(3 * time.Second):
		t.Fatal("Relay did not return after the remote closed")
	}
	if got := output.String(); got != "bye\n" {
		t.Errorf("output = %q", got)
	}
}

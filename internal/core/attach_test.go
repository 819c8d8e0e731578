package core

import (
	"bytes"
	"context"
	"net"
	"strings"
	"testing"
	"time"

	"rconsole/console"
	"rconsole/internal/retry"
	"rconsole/internal/telnet"
	"rconsole/internal/transport"
)

func startConsole(t *testing.T, addr string) *console.Console {
	t.Helper()
	c := console.New(console.Options{
		Address:       addr,
		Logger:        quietLogger(),
		SweepInterval: 20 * time.Millisecond,
	})
	if err := c.Acquire(); err != nil {
		t.Fatalf("Acquire: %v", err)
	}
	t.Cleanup(func() {
		if c.Running() {
			c.Release() //nolint:errcheck
		}
	})
	return c
}

func runAttach(t *testing.T, m *AttachMode) error {
	t.Helper()
	if m.Logger == nil {
		m.Logger = quietLogger()
	}
	if m.Dialer == nil {
		m.Dialer = &transport.TCPDialer{Timeout: 2 * time.Second}
	}
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	return m.Run(ctx)
}

func TestAttachMode_Plain(t *testing.T) {
	c := startConsole(t, freeAddr(t))
	out := &bytes.Buffer{}

	err := runAttach(t, &AttachMode{
		Address: c.Addr().String(),
		Stdin:   strings.NewReader("echo hello\n"),
		Stdout:  out,
	})
	if err != nil {
		t.Fatalf("Run: %v", err)
	}

	got := out.String()
	for _, want := range []string{console.DefaultBanner + "\n", "hello\n", "bye\n"} {
		if !strings.Contains(got, want) {
			t.Errorf("output %q missing %q", got, want)
		}
	}
}

func TestAttachMode_LineMode(t *testing.T) {
	c := startConsole(t, freeAddr(t))
	out := &bytes.Buffer{}

	err := runAttach(t, &AttachMode{
		Address:  c.Addr().String(),
		LineMode: true,
		Stdin:    strings.NewReader("echo hello\n"),
		Stdout:   out,
	})
	if err != nil {
		t.Fatalf("Run: %v", err)
	}

	got := out.String()
	if !strings.Contains(got, "hello\r\n") {
		t.Errorf("line-mode output %q should use CRLF", got)
	}
	if strings.IndexByte(got, telnet.IAC) >= 0 {
		t.Errorf("telnet commands leaked into output: %q", got)
	}
}

func TestAttachMode_InputWithoutNewline(t *testing.T) {
	c := startConsole(t, freeAddr(t))
	out := &bytes.Buffer{}

	err := runAttach(t, &AttachMode{
		Address: c.Addr().String(),
		Stdin:   strings.NewReader("echo last"),
		Stdout:  out,
	})
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if !strings.Contains(out.String(), "last\n") {
		t.Errorf("unterminated input line was not run: %q", out.String())
	}
}

func TestAttachMode_RefusesServerOptions(t *testing.T) {
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatal(err)
	}
	defer ln.Close()

	want := [][]byte{
		{telnet.IAC, telnet.WONT, 1},
		{telnet.IAC, telnet.WONT, telnet.OptLinemode},
	}
	received := make(chan []byte, 1)
	go func() {
		conn, err := ln.Accept()
		if err != nil {
			return
		}
		defer conn.Close()
		conn.Write([]byte{ //nolint:errcheck
			'h', 'i', '\n',
			telnet.IAC, telnet.DO, 1,
			telnet.IAC, telnet.DO, telnet.OptLinemode,
		})

		var got []byte
		buf := make([]byte, 256)
		conn.SetReadDeadline(time.Now().Add(3 * time.Second)) //nolint:errcheck
		// Drain up to the final quit as well so closing does not reset
		// the connection under unread input.
		for !bytes.Contains(got, want[0]) || !bytes.Contains(got, want[1]) || !bytes.Contains(got, []byte("quit\n")) {
			n, err := conn.Read(buf)
			got = append(got, buf[:n]...)
			if err != nil {
				break
			}
		}
		received <- got
	}()

	out := &bytes.Buffer{}
	err = runAttach(t, &AttachMode{
		Address: ln.Addr().String(),
		Stdin:   strings.NewReader(""),
		Stdout:  out,
	})
	if err != nil {
		t.Fatalf("Run: %v", err)
	}

	got := <-received
	for _, w := range want {
		if !bytes.Contains(got, w) {
			t.Errorf("client sent %v, missing %v", got, w)
		}
	}
	if out.String() != "hi\n" {
		t.Errorf("output = %q, want %q", out.String(), "hi\n")
	}
}

func TestAttachMode_EscapesIAC(t *testing.T) {
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatal(err)
	}
	defer ln.Close()

	received := make(chan []byte, 1)
	go func() {
		conn, err := ln.Accept()
		if err != nil {
			return
		}
		defer conn.Close()
		var got []byte
		buf := make([]byte, 256)
		conn.SetReadDeadline(time.Now().Add(3 * time.Second)) //nolint:errcheck
		for !bytes.Contains(got, []byte("quit\n")) {
			n, err := conn.Read(buf)
			got = append(got, buf[:n]...)
			if err != nil {
				break
			}
		}
		received <- got
	}()

	err = runAttach(t, &AttachMode{
		Address: ln.Addr().String(),
		Stdin:   bytes.NewReader([]byte{'a', telnet.IAC, 'b', '\n'}),
		Stdout:  &bytes.Buffer{},
	})
	if err != nil {
		t.Fatalf("Run: %v", err)
	}

	got := <-received
	if !bytes.HasPrefix(got, []byte{'a', telnet.IAC, telnet.IAC, 'b', '\n'}) {
		t.Errorf("client sent %v", got)
	}
}

func TestAttachMode_RetriesUntilConsoleIsUp(t *testing.T) {
	addr := freeAddr(t)
	started := make(chan *console.Console, 1)
	go func() {
		time.Sleep(150 * time.Millisecond)
		c := console.New(console.Options{Address: addr, Logger: quietLogger()})
		if err := c.Acquire(); err != nil {
			started <- nil
			return
		}
		started <- c
	}()

	out := &bytes.Buffer{}
	err := runAttach(t, &AttachMode{
		Address: addr,
		Backoff: &retry.Backoff{
			InitialDelay: 20 * time.Millisecond,
			MaxDelay:     50 * time.Millisecond,
			MaxAttempts:  50,
			Classify:     retry.Dial,
		},
		Stdin:  strings.NewReader("echo up\n"),
		Stdout: out,
	})

	c := <-started
	if c == nil {
		t.Fatal("console failed to start")
	}
	defer c.Release() //nolint:errcheck

	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if !strings.Contains(out.String(), "up\n") {
		t.Errorf("output = %q", out.String())
	}
}

func TestAttachMode_GivesUp(t *testing.T) {
	err := runAttach(t, &AttachMode{
		Address: freeAddr(t),
		Backoff: &retry.Backoff{
			InitialDelay: time.Millisecond,
			MaxAttempts:  2,
			Classify:     retry.Dial,
		},
		Stdin:  strings.NewReader(""),
		Stdout: &bytes.Buffer{},
	})
	if err == nil || !strings.Contains(err.Error(), "gave up after 2 attempt(s)") {
		t.Fatalf("expected give-up error, got %v", err)
	}
}

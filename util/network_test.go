package util

import (
	"testing"
)

func TestFormatAddr(t *testing.T) {
	tests := []struct {
		host string
		port int
		want string
	}{
		{"127.0.0.1", 3535, "127.0.0.1:3535"},
		{"::1", 3535, "[::1]:3535"},
		{"", 3535, ":3535"},
	}
	for _, tt := range tests {
		if got := FormatAddr(tt.host, tt.port); got != tt.want {
			t.Errorf("FormatAddr(%q, %d) = %q, want %q", tt.host, tt.port, got, tt.want)
		}
	}
}

func TestSplitAddr(t *testing.T) {
	host, port, err := SplitAddr("[::1]:3535")
	if err != nil {
		t.Fatal(err)
	}
	if host != "::1" || port != 3535 {
		t.Errorf("got %q %d", host, port)
	}

	for _, bad := range []string{"nohost", "host:port", ""} {
		if _, _, err := SplitAddr(bad); err == nil {
			t.Errorf("SplitAddr(%q): expected error", bad)
		}
	}
}

func TestFindFreePort(t *testing.T) {
	port, err := FindFreePort()
	if err != nil {
		t.Fatal(err)
	}
	if port < 1 || port > 65535 {
		t.Errorf("port %d out of range", port)
	}
}

// Package transport opens the attach client's connection to a console,
// either directly over TCP or forwarded through an SSH bastion.
package transport

import (
	"context"
	"net"
)

// Dialer opens outbound connections to a console.
type Dialer interface {
	// Dial connects to address.  network is "tcp" for every console.
	Dial(ctx context.Context, network, address string) (net.Conn, error)

	// Close releases long-lived resources such as an SSH client.
	// Stateless dialers return nil.
	Close() error
}

package transport

import (
	"context"
	"fmt"
	"net"
	"sync"
	"time"

	"golang.org/x/crypto/ssh"

	ncerr "rconsole/internal/errors"
	"rconsole/util"
)

// SSHConfig describes the bastion an attach session is forwarded
// through.
type SSHConfig struct {
	User          string
	Host          string
	Port          int // default 22
	KeyPath       string
	PromptPass    bool
	UseAgent      bool
	StrictHostKey bool
	KnownHosts    string        // default ~/.ssh/known_hosts
	Timeout       time.Duration // handshake timeout, default 30s

	// Prompt reads a secret (password or key passphrase).  nil reads
	// from the controlling terminal without echo.
	Prompt func(prompt string) ([]byte, error)
}

// SSHDialer forwards console connections through an SSH bastion with
// direct-tcpip channels.  The SSH client is opened on the first Dial
// and reused until Close or until the bastion drops it.
type SSHDialer struct {
	config *SSHConfig
	logger *util.Logger

	mu     sync.Mutex
	client *ssh.Client
}

// NewSSHDialer returns a dialer for cfg.  Nothing is dialed yet.
func NewSSHDialer(cfg *SSHConfig, logger *util.Logger) *SSHDialer {
	c := *cfg
	if c.Port == 0 {
		c.Port = 22
	}
	if c.Timeout == 0 {
		c.Timeout = 30 * time.Second
	}
	return &SSHDialer{config: &c, logger: logger}
}

// Dial opens a forwarded connection to address as seen from the bastion.
func (d *SSHDialer) Dial(ctx context.Context, network, address string) (net.Conn, error) {
	client, err := d.connect(ctx)
	if err != nil {
		return nil, err
	}

	d.logger.Debug("ssh: forwarding to %s", address)
	conn, err := client.Dial(network, address)
	if err != nil {
		return nil, ncerr.Wrap("dial", address, fmt.Errorf("via %s: %w", d.bastion(), err))
	}
	return conn, nil
}

// Close shuts the SSH client down.  Forwarded connections die with it.
func (d *SSHDialer) Close() error {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.client == nil {
		return nil
	}
	err := d.client.Close()
	d.client = nil
	return err
}

func (d *SSHDialer) bastion() string {
	return util.FormatAddr(d.config.Host, d.config.Port)
}

// connect returns the live client, dialing the bastion if needed.
func (d *SSHDialer) connect(ctx context.Context) (*ssh.Client, error) {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.client != nil {
		return d.client, nil
	}

	cfg := d.config
	auth, err := BuildAuthMethods(cfg)
	if err != nil {
		return nil, ncerr.WrapSSH("auth", cfg.Host, cfg.Port, err)
	}
	hk, err := hostKeyCallback(cfg)
	if err != nil {
		return nil, ncerr.WrapSSH("hostkey", cfg.Host, cfg.Port, err)
	}

	addr := d.bastion()
	d.logger.Verbose("ssh: connecting to %s as %s", addr, cfg.User)

	dialer := net.Dialer{Timeout: cfg.Timeout}
	tcp, err := dialer.DialContext(ctx, "tcp", addr)
	if err != nil {
		return nil, ncerr.Wrap("dial", addr, err)
	}

	sshConn, chans, reqs, err := ssh.NewClientConn(tcp, addr, &ssh.ClientConfig{
		User:            cfg.User,
		Auth:            auth,
		HostKeyCallback: hk,
		Timeout:         cfg.Timeout,
	})
	if err != nil {
		tcp.Close()
		return nil, ncerr.WrapSSH("handshake", cfg.Host, cfg.Port, err)
	}

	client := ssh.NewClient(sshConn, chans, reqs)
	d.client = client
	go d.watch(client)

	d.logger.Verbose("ssh: connected to %s", addr)
	return client, nil
}

// watch forgets client once the bastion connection ends so the next
// Dial reconnects.
func (d *SSHDialer) watch(client *ssh.Client) {
	err := client.Wait()

	d.mu.Lock()
	if d.client == client {
		d.client = nil
	}
	d.mu.Unlock()

	if err != nil {
		d.logger.Debug("ssh: connection to %s closed: %v", d.bastion(), err)
	}
}

// Package cmd wires the cobra command tree to the config layer and the
// core modes.
package cmd

import (
	"context"
	"fmt"
	"strconv"

	"github.com/spf13/cobra"
	flag "github.com/spf13/pflag"

	"rconsole/config"
	"rconsole/internal/core"
	"rconsole/util"
)

// version is overridable at link time:
//
//	go build -ldflags "-X rconsole/cmd.version=2.0.0"
var version = "0.1.0" //nolint:gochecknoglobals

// Execute parses args and runs the selected command.
func Execute(ctx context.Context, args []string) error {
	root := newRootCmd()
	root.SetArgs(args)
	return root.ExecuteContext(ctx)
}

// globals are the persistent flags shared by every subcommand.
type globals struct {
	configPath string
	dryRun     bool
	flags      *config.Config // flag targets; only changed flags are applied
}

func newRootCmd() *cobra.Command {
	g := &globals{flags: config.Defaults()}

	root := &cobra.Command{
		Use:   "rconsole",
		Short: "Embedded remote console server and client",
		Long: `rconsole runs a telnet-compatible remote console that streams the
host's log output to attached operators and accepts text commands, and
attaches to one from a terminal.`,
		Version:       version,
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	pf := root.PersistentFlags()
	pf.CountVarP(&g.flags.Verbose, "verbose", "v", "Increase verbosity (repeatable)")
	pf.StringVar(&g.flags.LogFormat, "log-format", g.flags.LogFormat, "Log format: text or json")
	pf.StringVar(&g.configPath, "config", "", "YAML config file")
	pf.BoolVar(&g.dryRun, "dry-run", false, "Validate the configuration and print it without running")

	root.AddCommand(newServeCmd(g), newAttachCmd(g), newVersionCmd())
	return root
}

// ── serve ────────────────────────────────────────────────────────────

func newServeCmd(g *globals) *cobra.Command {
	c := &cobra.Command{
		Use:   "serve",
		Short: "Run a standalone console",
		Example: `  rconsole serve
  rconsole serve -a 0.0.0.0 -p 4000 --demo-log 1s`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := g.load(cmd)
			if err != nil {
				return err
			}
			cfg.Serve = true
			return g.run(cmd, cfg)
		},
	}

	f := c.Flags()
	f.StringVarP(&g.flags.Address, "address", "a", g.flags.Address, "Bind address")
	f.IntVarP(&g.flags.Port, "port", "p", g.flags.Port, "Listen port")
	f.IntVar(&g.flags.MaxConnections, "max-connections", g.flags.MaxConnections, "Maximum concurrent clients")
	f.IntVar(&g.flags.ChannelCapacity, "channel-capacity", g.flags.ChannelCapacity, "Per-connection queue depth")
	f.DurationVar(&g.flags.SweepInterval, "sweep-interval", g.flags.SweepInterval, "How often closing connections are swept")
	f.DurationVar(&g.flags.CloseGrace, "close-grace", g.flags.CloseGrace, "How long a requested close may stay pending")
	f.DurationVar(&g.flags.WriteTimeout, "write-timeout", g.flags.WriteTimeout, "Timeout for one write to a client")
	f.StringVar(&g.flags.Banner, "banner", g.flags.Banner, `Greeting sent on connect ("-" for none)`)
	f.DurationVar(&g.flags.DemoLogInterval, "demo-log", 0, "Log a demo line this often (0 = off)")
	return c
}

// ── attach ───────────────────────────────────────────────────────────

func newAttachCmd(g *globals) *cobra.Command {
	c := &cobra.Command{
		Use:   "attach [host[:port]] [port]",
		Short: "Attach this terminal to a console",
		Example: `  rconsole attach
  rconsole attach build-42.internal 3535
  rconsole attach build-42.internal:3535
  rconsole attach -T ops@bastion:2222 10.0.0.7`,
		Args: cobra.MaximumNArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := g.load(cmd)
			if err != nil {
				return err
			}
			if err := parsePositional(cfg, args); err != nil {
				return err
			}
			return g.run(cmd, cfg)
		},
	}

	f := c.Flags()
	f.StringVar(&g.flags.LineMode, "linemode", g.flags.LineMode, "Negotiate line mode: auto, on or off")
	f.IntVar(&g.flags.Retries, "retries", g.flags.Retries, "Extra dial attempts while the console is down")
	f.DurationVarP(&g.flags.Timeout, "timeout", "w", g.flags.Timeout, "Connection timeout")

	f.StringVarP(&g.flags.TunnelSpec, "tunnel", "T", "", "Attach through an SSH bastion [user@]host[:port]")
	f.StringVar(&g.flags.SSHKeyPath, "ssh-key", "", "SSH private key file")
	f.BoolVar(&g.flags.SSHPassword, "ssh-password", false, "Prompt for the SSH password")
	f.BoolVar(&g.flags.UseSSHAgent, "ssh-agent", false, "Use the SSH agent")
	f.BoolVar(&g.flags.StrictHostKey, "strict-hostkey", false, "Verify the bastion host key")
	f.StringVar(&g.flags.KnownHostsPath, "known-hosts", "", "Custom known_hosts path")
	return c
}

func parsePositional(cfg *config.Config, args []string) error {
	if len(args) == 1 {
		if host, port, err := util.SplitAddr(args[0]); err == nil {
			cfg.Host, cfg.Port = host, port
			return nil
		}
	}
	if len(args) > 0 {
		cfg.Host = args[0]
	}
	if len(args) > 1 {
		port, err := strconv.Atoi(args[1])
		if err != nil {
			return fmt.Errorf("port %q: not a number", args[1])
		}
		cfg.Port = port
	}
	return nil
}

// ── version ──────────────────────────────────────────────────────────

func newVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print the rconsole version",
		Args:  cobra.NoArgs,
		Run: func(cmd *cobra.Command, _ []string) {
			fmt.Fprintf(cmd.OutOrStdout(), "rconsole %s\n", version)
		},
	}
}

// ── helpers ──────────────────────────────────────────────────────────

// load builds the effective configuration: defaults, then the config
// file, then RCONSOLE_* variables, then the flags given on this command
// line.
func (g *globals) load(cmd *cobra.Command) (*config.Config, error) {
	cfg := config.Defaults()
	if g.configPath != "" {
		if err := config.LoadFile(g.configPath, cfg); err != nil {
			return nil, err
		}
	}
	config.LoadFromEnv(cfg)

	cmd.Flags().Visit(func(f *flag.Flag) {
		if apply, ok := flagFields[f.Name]; ok {
			apply(cfg, g.flags)
		}
	})
	return cfg, nil
}

// run validates cfg and hands it to the core builder.
func (g *globals) run(cmd *cobra.Command, cfg *config.Config) error {
	if err := cfg.ApplyTunnelSpec(); err != nil {
		return err
	}
	if err := cfg.Validate(); err != nil {
		return err
	}

	if g.dryRun {
		printPlan(cmd, cfg)
		return nil
	}

	verbosity := cfg.Verbose
	if cfg.Serve {
		// The console only relays records the logger lets through.
		verbosity = max(verbosity, int(util.LogNormal))
	}
	logger := util.NewLogger(verbosity)
	logger.SetOutput(cmd.ErrOrStderr())
	if err := logger.SetFormat(cfg.LogFormat); err != nil {
		return err
	}

	mode, err := core.Build(cfg, logger)
	if err != nil {
		return err
	}
	return mode.Run(cmd.Context())
}

func printPlan(cmd *cobra.Command, cfg *config.Config) {
	out := cmd.OutOrStdout()
	if cfg.Serve {
		fmt.Fprintf(out, "serve %s (max %d connections, queue %d, grace %s)\n",
			cfg.ListenAddr(), cfg.MaxConnections, cfg.ChannelCapacity, cfg.CloseGrace)
		return
	}
	via := ""
	if cfg.TunnelEnabled {
		via = fmt.Sprintf(" via %s@%s", cfg.TunnelUser, util.FormatAddr(cfg.TunnelHost, cfg.TunnelPort))
	}
	fmt.Fprintf(out, "attach %s%s (linemode %s, %d retries)\n",
		cfg.DialAddr(), via, cfg.LineMode, cfg.Retries)
}

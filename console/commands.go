package console

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"
)

// Command is one named console command.
type Command struct {
	Name    string
	Aliases []string
	Usage   string // argument synopsis shown by help
	Help    string // one-line description
	Run     func(ctx context.Context, s *Session, args []string) string
}

// Commands is the built-in interpreter.  Lines whose first word is not a
// registered command go to Fallback when it is set.
type Commands struct {
	mu       sync.RWMutex
	cmds     map[string]*Command
	aliases  map[string]string
	Fallback Interpreter
}

// NewCommands returns an interpreter with the built-in commands
// registered.  fallback may be nil.
func NewCommands(fallback Interpreter) *Commands {
	c := &Commands{
		cmds:     make(map[string]*Command),
		aliases:  make(map[string]string),
		Fallback: fallback,
	}
	for _, cmd := range builtins(c) {
		c.Register(cmd)
	}
	return c
}

// Register adds cmd, replacing any command or alias with the same name.
func (c *Commands) Register(cmd Command) {
	name := strings.ToLower(cmd.Name)
	c.mu.Lock()
	defer c.mu.Unlock()
	c.cmds[name] = &cmd
	delete(c.aliases, name)
	for _, a := range cmd.Aliases {
		c.aliases[strings.ToLower(a)] = name
	}
}

func (c *Commands) lookup(name string) (*Command, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	if cmd, ok := c.cmds[name]; ok {
		return cmd, true
	}
	if target, ok := c.aliases[name]; ok {
		cmd, ok := c.cmds[target]
		return cmd, ok
	}
	return nil, false
}

// Execute implements Interpreter.
func (c *Commands) Execute(ctx context.Context, s *Session, line string) string {
	fields := strings.Fields(line)
	if len(fields) == 0 {
		return ""
	}
	if cmd, ok := c.lookup(strings.ToLower(fields[0])); ok {
		return cmd.Run(ctx, s, fields[1:])
	}
	if c.Fallback != nil {
		return c.Fallback.Execute(ctx, s, line)
	}
	return fmt.Sprintf("unknown command %q, try help", fields[0])
}

func (c *Commands) help() string {
	c.mu.RLock()
	names := make([]string, 0, len(c.cmds))
	for name := range c.cmds {
		names = append(names, name)
	}
	sort.Strings(names)

	var b strings.Builder
	b.WriteString("commands:")
	for _, name := range names {
		cmd := c.cmds[name]
		synopsis := name
		if cmd.Usage != "" {
			synopsis += " " + cmd.Usage
		}
		fmt.Fprintf(&b, "\n  %-24s %s", synopsis, cmd.Help)
	}
	c.mu.RUnlock()
	return b.String()
}

// ── Built-ins ────────────────────────────────────────────────────────

func builtins(c *Commands) []Command {
	return []Command{
		{
			Name: "help",
			Help: "list commands",
			Run: func(context.Context, *Session, []string) string {
				return c.help()
			},
		},
		{
			Name:  "log",
			Usage: "[on|off] [mask]",
			Help:  "subscribe to the host log feed",
			Run:   runLog,
		},
		{
			Name:  "log-level",
			Usage: "<mask|names>",
			Help:  "set which levels the log feed carries",
			Run:   runLogLevel,
		},
		{
			Name: "tty",
			Help: "switch to line mode",
			Run: func(_ context.Context, s *Session, _ []string) string {
				s.RequestLineMode()
				return "requesting line mode"
			},
		},
		{
			Name: "stats",
			Help: "show console metrics",
			Run: func(_ context.Context, s *Session, _ []string) string {
				return s.Metrics().JSON()
			},
		},
		{
			Name: "who",
			Help: "list connections",
			Run:  runWho,
		},
		{
			Name:  "echo",
			Usage: "<text>",
			Help:  "print text",
			Run: func(_ context.Context, _ *Session, args []string) string {
				return strings.Join(args, " ")
			},
		},
		{
			Name:    "quit",
			Aliases: []string{"exit", "bye"},
			Help:    "close this connection",
			Run: func(_ context.Context, s *Session, _ []string) string {
				s.RequestClose() //nolint:errcheck
				return "bye"
			},
		},
	}
}

func runLog(_ context.Context, s *Session, args []string) string {
	if len(args) == 0 {
		on, mask := s.LogSubscription()
		return fmt.Sprintf("log %s, levels %s", onOff(on), mask)
	}

	var on bool
	switch strings.ToLower(args[0]) {
	case "on":
		on = true
	case "off":
		on = false
	default:
		return "usage: log [on|off] [mask]"
	}

	_, mask := s.LogSubscription()
	if len(args) > 1 {
		m, err := ParseSeverity(strings.Join(args[1:], ","))
		if err != nil {
			return err.Error()
		}
		mask = m
	} else if on {
		mask = AllSeverities
	}

	if err := s.SetLogLevelMask(mask); err != nil {
		return err.Error()
	}
	if err := s.SetLogSubscriber(on); err != nil {
		return err.Error()
	}
	return fmt.Sprintf("log %s, levels %s", onOff(on), mask)
}

func runLogLevel(_ context.Context, s *Session, args []string) string {
	if len(args) == 0 {
		return "usage: log-level <mask|names>"
	}
	mask, err := ParseSeverity(strings.Join(args, ","))
	if err != nil {
		return err.Error()
	}
	if err := s.SetLogLevelMask(mask); err != nil {
		return err.Error()
	}
	return "levels " + mask.String()
}

type whoRow struct {
	id     ID
	remote string
	since  time.Time
	logs   bool
	conn   *Connection
}

func runWho(_ context.Context, s *Session, _ []string) string {
	var rows []whoRow
	s.Registry().ForEach(func(c *Connection) {
		rows = append(rows, whoRow{
			id:     c.id,
			remote: c.remote,
			since:  c.opened,
			logs:   c.wantsLogSubscriber,
			conn:   c,
		})
	})
	sort.Slice(rows, func(i, j int) bool { return rows[i].id < rows[j].id })

	var b strings.Builder
	fmt.Fprintf(&b, "%d connection(s)", len(rows))
	for _, r := range rows {
		self := ""
		if r.id == s.ID() {
			self = " *"
		}
		fmt.Fprintf(&b, "\n  #%-4d %-22s %-8s log=%-3s up %s%s",
			r.id, r.remote, r.conn.engine.State(), onOff(r.logs),
			time.Since(r.since).Truncate(time.Second), self)
	}
	return b.String()
}

func onOff(on bool) string {
	if on {
		return "on"
	}
	return "off"
}

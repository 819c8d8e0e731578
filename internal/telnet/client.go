package telnet

import (
	"io"
	"sort"
	"sync"
)

// DefaultSLC is the character table an attach client advertises, matching
// the usual termios defaults.
func DefaultSLC() map[Function]byte {
	return map[Function]byte{
		FnEC:    0x7f, // DEL
		FnEL:    0x15, // ^U
		FnEW:    0x17, // ^W
		FnLNext: 0x16, // ^V
		FnIP:    0x03, // ^C
		FnEOF:   0x04, // ^D
		FnRP:    0x12, // ^R
	}
}

// ClientLineModeRequest builds what a client sends to enter line mode:
// IAC WILL LINEMODE followed by an SLC subnegotiation for table.
func ClientLineModeRequest(table map[Function]byte) []byte {
	out := []byte{IAC, WILL, OptLinemode}
	if len(table) == 0 {
		return out
	}

	fns := make([]Function, 0, len(table))
	for f := range table {
		if f.Valid() {
			fns = append(fns, f)
		}
	}
	sort.Slice(fns, func(i, j int) bool { return fns[i] < fns[j] })

	out = append(out, IAC, SB, OptLinemode, LMSLC)
	for _, f := range fns {
		v := table[f]
		level := SLCValue
		if v == 0 {
			level = SLCNoSupport
		}
		out = append(out, byte(f), level, v)
		if v == IAC {
			out = append(out, IAC)
		}
	}
	return append(out, IAC, SE)
}

// ── Output filter ────────────────────────────────────────────────────

// Filter is an io.Writer that strips telnet commands from a server's
// output stream before passing the data on.  It is resumable across
// writes.
type Filter struct {
	w io.Writer

	// OnDo is called with the option of every IAC DO received.
	OnDo func(opt byte)

	mu    sync.Mutex
	state parseState
	verb  byte
}

// NewFilter returns a Filter writing data bytes to w.
func NewFilter(w io.Writer) *Filter {
	return &Filter{w: w}
}

// Write consumes p and reports len(p) on success.
func (f *Filter) Write(p []byte) (int, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	out := make([]byte, 0, len(p))
	for _, b := range p {
		switch f.state {
		case psData:
			if b == IAC {
				f.state = psIAC
				continue
			}
			out = append(out, b)
		case psIAC:
			switch b {
			case IAC:
				out = append(out, IAC)
				f.state = psData
			case WILL, WONT, DO, DONT:
				f.verb = b
				f.state = psOption
			case SB:
				f.state = psSB
			default:
				f.state = psData
			}
		case psOption:
			if f.verb == DO && f.OnDo != nil {
				f.OnDo(b)
			}
			f.state = psData
		case psSB:
			if b == IAC {
				f.state = psSBIAC
			}
		case psSBIAC:
			if b == SE {
				f.state = psData
			} else {
				f.state = psSB
			}
		}
	}

	if len(out) > 0 {
		if _, err := f.w.Write(out); err != nil {
			return 0, err
		}
	}
	return len(p), nil
}

// ── Input escaping ───────────────────────────────────────────────────

// Escaper is an io.Writer that doubles IAC bytes so user input cannot be
// mistaken for telnet commands.
type Escaper struct {
	w io.Writer
}

// NewEscaper returns an Escaper writing to w.
func NewEscaper(w io.Writer) *Escaper {
	return &Escaper{w: w}
}

func (e *Escaper) Write(p []byte) (int, error) {
	n := 0
	for _, b := range p {
		if b == IAC {
			n++
		}
	}
	if n == 0 {
		return e.w.Write(p)
	}

	out := make([]byte, 0, len(p)+n)
	for _, b := range p {
		out = append(out, b)
		if b == IAC {
			out = append(out, IAC)
		}
	}
	if _, err := e.w.Write(out); err != nil {
		return 0, err
	}
	return len(p), nil
}

package telnet

import (
	"fmt"
	"sync"

	ncerr "rconsole/internal/errors"
)

// maxSubneg bounds a single subnegotiation payload.  A full SLC table is
// 90 bytes; anything far beyond that is garbage.
const maxSubneg = 512

type parseState int

const (
	psData   parseState = iota
	psIAC               // saw IAC
	psOption            // saw IAC WILL/WONT/DO/DONT, option byte next
	psSB                // inside IAC SB ... payload
	psSBIAC             // saw IAC inside a subnegotiation
)

// Decoded is the outcome of feeding one chunk of bytes to an Engine.
type Decoded struct {
	// Lines are completed input units in arrival order.
	Lines []string
	// Reply holds protocol bytes to send back to the client verbatim.
	Reply []byte
	// Close is set when the client signalled end of input.  Decode
	// stops there and drops the rest of the chunk.
	Close bool
	// Errors lists malformed sequences that were discarded.
	Errors []error
}

// Engine holds the protocol state of one connection.  Decode and Encode
// may be called from different goroutines.
type Engine struct {
	mu    sync.Mutex
	state State

	values [NumFunctions]byte // byte per function, index f-1, 0 if unset
	byteFn [256]Function      // reverse of values

	ed     editor
	unit   []byte // plain-mode bytes of the current chunk
	lastCR bool

	ps         parseState
	verb       byte
	sb         []byte
	sbOverflow bool
	requested  bool // DO LINEMODE sent, answer pending
}

// NewEngine returns an engine in Plain state with an empty table.
func NewEngine() *Engine {
	return &Engine{}
}

// State returns the current protocol state.
func (e *Engine) State() State {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.state
}

// Function returns the byte mapped to f, or 0 when unset.
func (e *Engine) Function(f Function) byte {
	if !f.Valid() {
		return 0
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.values[f-1]
}

// SetFunction maps f to byte v; 0 or 0xFF clears the slot.
func (e *Engine) SetFunction(f Function, v byte) {
	if !f.Valid() {
		return
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	e.setSlot(f, v)
}

// Pending returns the partially typed line-mode input.
func (e *Engine) Pending() string {
	e.mu.Lock()
	defer e.mu.Unlock()
	return string(e.ed.buf)
}

// Reset returns the engine to Plain state and forgets all negotiated
// characters and partial input.
func (e *Engine) Reset() {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.state = Plain
	e.clearTable()
	e.ed.reset()
	e.unit = e.unit[:0]
	e.lastCR = false
	e.ps = psData
	e.sb = e.sb[:0]
	e.sbOverflow = false
	e.requested = false
}

// RequestLineMode returns the bytes that invite the client into line
// mode.  A willing client answers IAC WILL LINEMODE.
func (e *Engine) RequestLineMode() []byte {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.state == LineMode {
		return nil
	}
	e.requested = true
	return []byte{IAC, DO, OptLinemode}
}

// ── Decode ───────────────────────────────────────────────────────────

// Decode consumes one chunk of raw client bytes.  Parser state carries
// over to the next call, so sequences may be split anywhere.
func (e *Engine) Decode(p []byte) Decoded {
	e.mu.Lock()
	defer e.mu.Unlock()

	var d Decoded
	for i := 0; i < len(p); i++ {
		b := p[i]
		switch e.ps {
		case psData:
			if b == IAC {
				e.ps = psIAC
				continue
			}
			e.data(b, &d)

		case psIAC:
			e.ps = psData
			e.command(b, &d)

		case psOption:
			e.ps = psData
			e.negotiate(e.verb, b, &d)

		case psSB:
			if b == IAC {
				e.ps = psSBIAC
				continue
			}
			e.sbAppend(b)

		case psSBIAC:
			switch b {
			case SE:
				e.ps = psData
				e.endSubneg(&d)
			case IAC:
				e.ps = psSB
				e.sbAppend(IAC)
			default:
				// The SE never came.  Drop the payload and treat this
				// byte as the command following IAC.
				d.Errors = append(d.Errors, &ncerr.ProtocolError{
					Seq:    []byte{IAC, b},
					Reason: "unterminated subnegotiation",
				})
				e.sb = e.sb[:0]
				e.sbOverflow = false
				e.ps = psIAC
				i--
			}
		}
		if d.Close {
			break
		}
	}

	if e.state == Plain {
		e.flushUnit(&d)
	}
	return d
}

// data handles one data byte according to the protocol state.
func (e *Engine) data(b byte, d *Decoded) {
	if e.state == Plain {
		e.unit = append(e.unit, b)
		return
	}

	if e.ed.literal {
		e.ed.literal = false
		e.lastCR = false
		e.apply(dataToken(b), d)
		return
	}
	if f := e.byteFn[b]; f != 0 {
		e.lastCR = false
		e.apply(functionToken(f), d)
		return
	}

	switch b {
	case '\r':
		e.lastCR = true
		d.Lines = append(d.Lines, e.ed.take())
		return
	case '\n', 0:
		if e.lastCR {
			e.lastCR = false
			return
		}
		if b == '\n' {
			d.Lines = append(d.Lines, e.ed.take())
			return
		}
	}
	e.lastCR = false
	e.apply(dataToken(b), d)
}

func (e *Engine) apply(t token, d *Decoded) {
	switch e.ed.apply(t) {
	case effectSubmit:
		d.Lines = append(d.Lines, e.ed.take())
	case effectClose:
		d.Close = true
	case effectAYT:
		d.Reply = append(d.Reply, "\r\n[yes]\r\n"...)
	case effectReprint:
		d.Reply = append(d.Reply, '\r', '\n')
		d.Reply = e.encodeLocked(d.Reply, string(e.ed.buf))
	}
}

// flushUnit posts the plain-mode bytes gathered so far as one unit.
func (e *Engine) flushUnit(d *Decoded) {
	if len(e.unit) == 0 {
		return
	}
	d.Lines = append(d.Lines, string(e.unit))
	e.unit = e.unit[:0]
}

// command handles the byte following IAC.
func (e *Engine) command(b byte, d *Decoded) {
	switch b {
	case IAC:
		e.data(IAC, d)
		return
	case WILL, WONT, DO, DONT:
		e.verb = b
		e.ps = psOption
		return
	case SB:
		e.sb = e.sb[:0]
		e.sbOverflow = false
		e.ps = psSB
		return
	case SE:
		d.Errors = append(d.Errors, &ncerr.ProtocolError{
			Seq:    []byte{IAC, SE},
			Reason: "SE outside subnegotiation",
		})
		return
	case NOP, DM, GA:
		return
	}

	f, ok := commandFunction(b)
	if !ok {
		d.Errors = append(d.Errors, &ncerr.ProtocolError{
			Seq:    []byte{IAC, b},
			Reason: "unknown command",
		})
		return
	}
	if e.state == LineMode {
		e.lastCR = false
		e.apply(functionToken(f), d)
		return
	}
	if f == FnAYT {
		d.Reply = append(d.Reply, "\r\n[yes]\r\n"...)
	}
}

// ── Negotiation ──────────────────────────────────────────────────────

func (e *Engine) negotiate(verb, opt byte, d *Decoded) {
	switch verb {
	case WILL:
		if opt != OptLinemode {
			d.Reply = append(d.Reply, IAC, DONT, opt)
			return
		}
		if e.state == LineMode {
			return
		}
		e.flushUnit(d)
		e.state = LineMode
		e.clearTable()
		e.ed.reset()
		e.lastCR = false
		if !e.requested {
			d.Reply = append(d.Reply, IAC, DO, OptLinemode)
		}
		e.requested = false
		d.Reply = append(d.Reply,
			IAC, SB, OptLinemode, LMMode, ModeEdit|ModeTrapSig, IAC, SE)

	case WONT:
		if opt != OptLinemode {
			return
		}
		if e.state == LineMode || e.requested {
			d.Reply = append(d.Reply, IAC, DONT, OptLinemode)
		}
		e.state = Plain
		e.ed.reset()
		e.lastCR = false
		e.requested = false

	case DO:
		d.Reply = append(d.Reply, IAC, WONT, opt)

	case DONT:
		// Nothing is ever enabled on our side.
	}
}

// ── Subnegotiation ───────────────────────────────────────────────────

func (e *Engine) sbAppend(b byte) {
	if len(e.sb) >= maxSubneg {
		e.sbOverflow = true
		return
	}
	e.sb = append(e.sb, b)
}

func (e *Engine) endSubneg(d *Decoded) {
	payload := e.sb
	e.sb = e.sb[:0]
	if e.sbOverflow {
		e.sbOverflow = false
		d.Errors = append(d.Errors, &ncerr.ProtocolError{
			Seq:    []byte{IAC, SB, payload[0]},
			Reason: fmt.Sprintf("subnegotiation longer than %d bytes", maxSubneg),
		})
		return
	}
	if len(payload) < 2 || payload[0] != OptLinemode {
		return
	}
	// MODE acknowledgements and FORWARDMASK carry nothing the engine
	// acts on.
	if payload[1] == LMSLC {
		e.readSLC(payload[2:], d)
	}
}

// readSLC applies a sequence of (function, modifier, value) triplets.
func (e *Engine) readSLC(p []byte, d *Decoded) {
	for len(p) >= 3 {
		fn, mod, val := Function(p[0]), p[1], p[2]
		p = p[3:]

		if fn == 0 {
			continue
		}
		if !fn.Valid() {
			d.Errors = append(d.Errors, &ncerr.ProtocolError{
				Seq:    []byte{byte(fn), mod, val},
				Reason: "unknown SLC function",
			})
			continue
		}
		if mod&SLCLevelBits == SLCNoSupport {
			val = 0
		}
		e.setSlot(fn, val)
	}
	if len(p) > 0 {
		d.Errors = append(d.Errors, &ncerr.ProtocolError{
			Seq:    append([]byte(nil), p...),
			Reason: "truncated SLC triplet",
		})
	}
}

func (e *Engine) setSlot(f Function, v byte) {
	if v == slcDisabled {
		v = 0
	}
	e.values[f-1] = v
	e.rebuild()
}

func (e *Engine) clearTable() {
	e.values = [NumFunctions]byte{}
	e.byteFn = [256]Function{}
}

// rebuild recomputes the byte→function lookup.  When two functions share
// a byte the lower function code wins.
func (e *Engine) rebuild() {
	e.byteFn = [256]Function{}
	for i, v := range e.values {
		if v != 0 && e.byteFn[v] == 0 {
			e.byteFn[v] = Function(i + 1)
		}
	}
}

// ── Encode ───────────────────────────────────────────────────────────

// Encode renders an outbound message for the wire.  Plain connections
// receive the bytes unchanged.  In LineMode a bare LF becomes CRLF, IAC
// is doubled and any byte the client mapped to a function is shown
// escaped so it cannot trigger that function on echo.
func (e *Engine) Encode(msg string) []byte {
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.state != LineMode {
		return []byte(msg)
	}
	return e.encodeLocked(make([]byte, 0, len(msg)+len(msg)/8+2), msg)
}

// encodeLocked appends the LineMode rendering of msg to out.  The
// caller holds e.mu.
func (e *Engine) encodeLocked(out []byte, msg string) []byte {
	var prev byte
	for i := 0; i < len(msg); i++ {
		b := msg[i]
		switch {
		case b == '\n':
			if prev != '\r' {
				out = append(out, '\r')
			}
			out = append(out, '\n')
		case b == IAC:
			out = append(out, IAC, IAC)
		case b != 0 && e.byteFn[b] != 0:
			out = appendEscaped(out, b)
		default:
			out = append(out, b)
		}
		prev = b
	}
	return out
}

const hexDigits = "0123456789abcdef"

// appendEscaped writes b in caret notation for control characters and
// as \xNN otherwise.
func appendEscaped(out []byte, b byte) []byte {
	if b < 0x20 || b == 0x7f {
		return append(out, '^', b^0x40)
	}
	return append(out, '\\', 'x', hexDigits[b>>4], hexDigits[b&0x0f])
}

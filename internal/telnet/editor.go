package telnet

import (
	"unicode"
	"unicode/utf8"
)

// token is the decoded form of one line-mode input byte: either plain
// data or a special function the client mapped that byte to.
type token struct {
	fn   Function // zero for data
	data byte
}

func dataToken(b byte) token         { return token{data: b} }
func functionToken(f Function) token { return token{fn: f} }

func (t token) isData() bool { return t.fn == 0 }

// effect is what applying a token asks the caller to do beyond editing
// the buffer.
type effect int

const (
	effectNone   effect = iota
	effectSubmit        // emit the buffer as a completed line
	effectClose         // end of input on an empty line
	effectAYT           // answer "are you there"
	effectReprint       // echo the pending buffer back
)

// editor is the line-mode input buffer.
type editor struct {
	buf     []byte
	literal bool // the next byte bypasses function lookup
}

// apply runs one token against the buffer.
func (e *editor) apply(t token) effect {
	if t.isData() {
		e.buf = append(e.buf, t.data)
		return effectNone
	}

	switch t.fn {
	case FnEC:
		e.eraseChar()
	case FnEL, FnEBOL:
		e.buf = e.buf[:0]
	case FnEW:
		e.eraseWord()
	case FnLNext:
		e.literal = true
	case FnIP, FnAbort, FnBrk, FnSusp:
		e.buf = e.buf[:0]
	case FnEOF:
		if len(e.buf) == 0 {
			return effectClose
		}
		return effectSubmit
	case FnForw1, FnForw2, FnEOR:
		return effectSubmit
	case FnAYT:
		return effectAYT
	case FnRP:
		return effectReprint
	}
	// Cursor movement, flow control, insert/overstrike and the
	// right-hand erases have nothing to act on: the cursor is always at
	// the end of the buffer.
	return effectNone
}

// take returns the buffered line and clears the buffer.
func (e *editor) take() string {
	line := string(e.buf)
	e.buf = e.buf[:0]
	return line
}

func (e *editor) reset() {
	e.buf = e.buf[:0]
	e.literal = false
}

// eraseChar removes the last character, treating a trailing valid UTF-8
// sequence as one character.
func (e *editor) eraseChar() {
	if len(e.buf) == 0 {
		return
	}
	_, size := utf8.DecodeLastRune(e.buf)
	if size < 1 {
		size = 1
	}
	e.buf = e.buf[:len(e.buf)-size]
}

// eraseWord removes trailing whitespace and then the trailing
// whitespace-delimited token.
func (e *editor) eraseWord() {
	i := len(e.buf)
	for i > 0 && isSpace(e.buf[i-1]) {
		i--
	}
	for i > 0 && !isSpace(e.buf[i-1]) {
		i--
	}
	e.buf = e.buf[:i]
}

func isSpace(b byte) bool {
	return b < utf8.RuneSelf && unicode.IsSpace(rune(b))
}

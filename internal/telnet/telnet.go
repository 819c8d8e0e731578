// Package telnet implements the console's byte-level protocol engine: a
// small subset of Telnet (RFC 854) with the LINEMODE option (RFC 1184).
//
// A connection starts in Plain state, where bytes are passed through as
// opaque units.  A client that sends IAC WILL LINEMODE switches its
// connection to LineMode: input is assembled into lines locally, and
// bytes the client declared through SLC (Set Local Characters) trigger
// editing functions such as erase-character instead of being data.
//
// The engine is resumable across arbitrary chunk boundaries: a command
// or subnegotiation split between two reads is completed by the second.
package telnet

import "fmt"

// Telnet commands.
const (
	SE    byte = 240 // end of subnegotiation
	NOP   byte = 241
	DM    byte = 242 // data mark
	BRK   byte = 243 // break
	IP    byte = 244 // interrupt process
	AO    byte = 245 // abort output
	AYT   byte = 246 // are you there
	EC    byte = 247 // erase character
	EL    byte = 248 // erase line
	GA    byte = 249 // go ahead
	SB    byte = 250 // start of subnegotiation
	WILL  byte = 251
	WONT  byte = 252
	DO    byte = 253
	DONT  byte = 254
	IAC   byte = 255 // interpret as command
	xEOF  byte = 236 // RFC 1184 end of file
	SUSP  byte = 237 // RFC 1184 suspend
	ABORT byte = 238 // RFC 1184 abort
	EOR   byte = 239 // end of record
)

// Options and LINEMODE suboptions.
const (
	OptLinemode byte = 34

	LMMode        byte = 1
	LMForwardMask byte = 2
	LMSLC         byte = 3

	ModeEdit    byte = 0x01
	ModeTrapSig byte = 0x02
	ModeAck     byte = 0x04

	// SLC modifier levels (low two bits of the modifier byte).
	SLCNoSupport  byte = 0
	SLCCantChange byte = 1
	SLCValue      byte = 2
	SLCDefault    byte = 3
	SLCLevelBits  byte = 0x03

	// slcDisabled is _POSIX_VDISABLE as sent on the wire.
	slcDisabled byte = 0xFF
)

// Function is one of the special editing/control functions a client can
// remap with SLC.  Values are the SLC function codes from RFC 1184.
type Function uint8

const (
	FnSynch Function = iota + 1 // synch
	FnBrk                       // break
	FnIP                        // interrupt process
	FnAO                        // abort output
	FnAYT                       // are you there?
	FnEOR                       // end of record
	FnAbort                     // abort
	FnEOF                       // end of file
	FnSusp                      // suspend
	FnEC                        // erase character (to the left)
	FnEL                        // erase line
	FnEW                        // erase word
	FnRP                        // reprint line
	FnLNext                     // literal next: take the next byte as data
	FnXOn
	FnXOff
	FnForw1 // forwarding character 1
	FnForw2 // forwarding character 2
	FnMCL   // move cursor left
	FnMCR   // move cursor right
	FnMCWL  // move cursor one word left
	FnMCWR  // move cursor one word right
	FnMCBOL // move cursor to beginning of line
	FnMCEOL // move cursor to end of line
	FnInsrt // insert mode
	FnOver  // overstrike mode
	FnECR   // erase character to the right
	FnEWR   // erase word to the right
	FnEBOL  // erase to beginning of line
	FnEEOL  // erase to end of line
)

// NumFunctions is the number of SLC function slots.
const NumFunctions = int(FnEEOL)

var functionNames = [...]string{
	FnSynch: "synch", FnBrk: "brk", FnIP: "ip", FnAO: "ao", FnAYT: "ayt",
	FnEOR: "eor", FnAbort: "abort", FnEOF: "eof", FnSusp: "susp",
	FnEC: "ec", FnEL: "el", FnEW: "ew", FnRP: "rp", FnLNext: "lnext",
	FnXOn: "xon", FnXOff: "xoff", FnForw1: "forw1", FnForw2: "forw2",
	FnMCL: "mcl", FnMCR: "mcr", FnMCWL: "mcwl", FnMCWR: "mcwr",
	FnMCBOL: "mcbol", FnMCEOL: "mceol", FnInsrt: "insrt", FnOver: "over",
	FnECR: "ecr", FnEWR: "ewr", FnEBOL: "ebol", FnEEOL: "eeol",
}

// Valid reports whether f names one of the SLC slots.
func (f Function) Valid() bool { return f >= FnSynch && f <= FnEEOL }

func (f Function) String() string {
	if f.Valid() {
		return functionNames[f]
	}
	return fmt.Sprintf("fn(%d)", uint8(f))
}

// State is the protocol state of a connection.
type State int

const (
	Plain State = iota
	LineMode
)

func (s State) String() string {
	switch s {
	case Plain:
		return "plain"
	case LineMode:
		return "linemode"
	default:
		return fmt.Sprintf("state(%d)", int(s))
	}
}

// commandFunction maps in-band telnet commands onto the editing function
// they stand for.  Clients in LINEMODE with TRAPSIG send these instead of
// the raw control byte.
func commandFunction(cmd byte) (Function, bool) {
	switch cmd {
	case BRK:
		return FnBrk, true
	case IP:
		return FnIP, true
	case AO:
		return FnAO, true
	case AYT:
		return FnAYT, true
	case EC:
		return FnEC, true
	case EL:
		return FnEL, true
	case xEOF:
		return FnEOF, true
	case SUSP:
		return FnSusp, true
	case ABORT:
		return FnAbort, true
	case EOR:
		return FnEOR, true
	}
	return 0, false
}

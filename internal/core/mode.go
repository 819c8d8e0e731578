// Package core is the orchestration layer.  It turns a Config into one
// of rconsole's two operational modes:
//
//	serve   run a console and keep it up until the context ends
//	attach  dial a console and relay the terminal to it
//
// Build is the single dispatch point the CLI uses.
package core

import "context"

// Mode is a complete operational mode.  Each mode owns its lifecycle
// from startup to teardown.
type Mode interface {
	Run(ctx context.Context) error
}

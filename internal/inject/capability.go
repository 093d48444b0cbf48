// Package inject defines the keystroke/clipboard capability that delivery
// drives, plus the backends autosend ships with.
//
// Backends:
//   - Exec: shells out to host tools (xclip/xdotool, pbcopy/pbpaste/osascript)
//   - Recorder: in-memory; used by --dry-run and tests
package inject

import (
	"context"

	"github.com/cockroachdb/errors"
)

// ErrUnavailable marks a backend that cannot work at all on this host
// (missing tool, unsupported platform). Callers treat it as unrecoverable.
var ErrUnavailable = errors.New("injection backend unavailable")

// Key identifiers understood by every backend.
const (
	KeyEnter = "enter"
	KeyCtrl  = "ctrl"
	KeyCmd   = "cmd"
	KeyV     = "v"
)

// Capability injects input into whatever currently has focus.
//
// Every method may fail with a platform error. None of them are retried by
// the backend itself.
type Capability interface {
	SetClipboard(ctx context.Context, text string) error
	GetClipboard(ctx context.Context) (string, error)
	// EmitKeystrokes types text as individual key presses, as fast as the backend allows.
	EmitKeystrokes(ctx context.Context, text string) error
	// EmitHotkey presses keys together (e.g. "ctrl", "v").
	EmitHotkey(ctx context.Context, keys ...string) error
	PressKey(ctx context.Context, key string) error
}

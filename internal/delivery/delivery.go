// Package delivery sends one payload to the focused input.
//
// Preferred path: put the payload on the clipboard, read it back, and paste
// only when the read-back matches byte for byte. Anything else (mismatch,
// clipboard error, clipboard disabled or failed self-test) types the payload
// directly. Every attempt ends with exactly one confirm (enter) key press.
package delivery

import (
	"context"
	"fmt"
	"runtime"
	"sync/atomic"
	"unicode/utf8"

	"github.com/cockroachdb/errors"

	"autosend/internal/inject"
	logx "autosend/pkg/logx"
)

type Method int

const (
	Clipboard Method = iota
	DirectEmission
)

func (m Method) String() string {
	if m == Clipboard {
		return "clipboard"
	}
	return "typing"
}

// Outcome is the result of one delivery attempt.
type Outcome struct {
	Succeeded bool
	Method    Method
	Err       error
}

// ErrClipboardMismatch is the verification failure that demotes an attempt to typing.
var ErrClipboardMismatch = errors.New("clipboard verification failed")

type Options struct {
	// Platform selects the paste hotkey ("darwin" uses cmd+v). Default: runtime.GOOS.
	Platform string
	// Notify receives human-readable narration. Optional.
	Notify func(msg string)
	Logger logx.Logger
}

// Strategy delivers payloads through an injection capability.
//
// Not safe for concurrent Deliver calls; the dispatch loop runs one attempt at a time.
type Strategy struct {
	cap      inject.Capability
	platform string
	notify   func(string)
	log      logx.Logger

	clipboardOK atomic.Bool
}

func New(c inject.Capability, opt Options) *Strategy {
	if opt.Platform == "" {
		opt.Platform = runtime.GOOS
	}
	if opt.Notify == nil {
		opt.Notify = func(string) {}
	}
	return &Strategy{cap: c, platform: opt.Platform, notify: opt.Notify, log: opt.Logger}
}

// PasteKeys returns the paste hotkey for platform.
func PasteKeys(platform string) []string {
	if platform == "darwin" {
		return []string{inject.KeyCmd, inject.KeyV}
	}
	return []string{inject.KeyCtrl, inject.KeyV}
}

// SelfTest checks that the clipboard round-trips payload exactly. The result
// gates the clipboard path for the rest of the job.
func (s *Strategy) SelfTest(ctx context.Context, payload string) bool {
	s.notify("testing clipboard...")
	if err := s.cap.SetClipboard(ctx, payload); err != nil {
		s.notify(fmt.Sprintf("clipboard error: %v", err))
		s.log.Warn("clipboard self-test failed", logx.Err(err))
		s.clipboardOK.Store(false)
		return false
	}
	got, err := s.cap.GetClipboard(ctx)
	if err != nil {
		s.notify(fmt.Sprintf("clipboard error: %v", err))
		s.log.Warn("clipboard self-test failed", logx.Err(err))
		s.clipboardOK.Store(false)
		return false
	}
	s.notify(fmt.Sprintf("lengths: %d vs %d", utf8.RuneCountInString(payload), utf8.RuneCountInString(got)))
	if got == payload {
		s.notify("clipboard test PASSED")
		s.clipboardOK.Store(true)
		return true
	}
	s.notify("clipboard test FAILED - will use typing")
	s.notify("   " + DescribeMismatch(payload, got))
	s.clipboardOK.Store(false)
	return false
}

// ClipboardUsable reports the self-test result.
func (s *Strategy) ClipboardUsable() bool { return s.clipboardOK.Load() }

// Deliver makes one best-effort attempt. It never retries.
func (s *Strategy) Deliver(ctx context.Context, payload string, preferClipboard bool) Outcome {
	out := Outcome{Method: DirectEmission}

	if preferClipboard && s.clipboardOK.Load() {
		err := s.paste(ctx, payload)
		if err == nil {
			out.Method = Clipboard
		} else {
			s.notify(fmt.Sprintf("clipboard failed: %v", err))
			s.log.Debug("clipboard path failed; typing instead", logx.Err(err))
		}
	}

	if out.Method == DirectEmission {
		if err := s.cap.EmitKeystrokes(ctx, payload); err != nil {
			out.Err = errors.Wrap(err, "type payload")
			return out
		}
		s.notify("fast typing")
	}

	if err := s.cap.PressKey(ctx, inject.KeyEnter); err != nil {
		out.Err = errors.Wrap(err, "confirm")
		return out
	}
	out.Succeeded = true
	return out
}

func (s *Strategy) paste(ctx context.Context, payload string) error {
	if err := s.cap.SetClipboard(ctx, payload); err != nil {
		return errors.Wrap(err, "set clipboard")
	}
	got, err := s.cap.GetClipboard(ctx)
	if err != nil {
		return errors.Wrap(err, "read clipboard")
	}
	if got != payload {
		return errors.Wrapf(ErrClipboardMismatch, "%s", DescribeMismatch(payload, got))
	}
	s.notify("clipboard verified OK")
	if err := s.cap.EmitHotkey(ctx, PasteKeys(s.platform)...); err != nil {
		return errors.Wrap(err, "paste")
	}
	return nil
}

// DescribeMismatch explains where two strings first differ.
func DescribeMismatch(want, got string) string {
	w, g := []rune(want), []rune(got)
	if len(w) != len(g) {
		return fmt.Sprintf("length mismatch: expected %d, got %d", len(w), len(g))
	}
	for i := range w {
		if w[i] != g[i] {
			return fmt.Sprintf("diff at pos %d: expected %q, got %q", i, w[i], g[i])
		}
	}
	return "identical"
}

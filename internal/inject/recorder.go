package inject

import (
	"context"
	"strings"
	"sync"
)

// Operation names recorded by Recorder.
const (
	OpSetClipboard = "set_clipboard"
	OpGetClipboard = "get_clipboard"
	OpType         = "type"
	OpHotkey       = "hotkey"
	OpPress        = "press"
)

// Call is one recorded capability invocation.
type Call struct {
	Op  string
	Arg string
}

// Recorder is an in-memory Capability. Nothing reaches the desktop.
//
// The zero value is ready to use and behaves like a perfect clipboard.
type Recorder struct {
	mu        sync.Mutex
	clipboard string
	calls     []Call

	// ReadBack, when set, rewrites what GetClipboard returns.
	ReadBack func(stored string) string
	// Fail makes the named operation return the error.
	Fail map[string]error
	// Panic makes the named operation panic with the value.
	Panic map[string]any
}

// NewRecorder returns an empty Recorder.
func NewRecorder() *Recorder { return &Recorder{} }

func (r *Recorder) record(op, arg string) error {
	r.mu.Lock()
	r.calls = append(r.calls, Call{Op: op, Arg: arg})
	err := r.Fail[op]
	p, doPanic := r.Panic[op]
	r.mu.Unlock()
	if doPanic {
		panic(p)
	}
	return err
}

func (r *Recorder) SetClipboard(_ context.Context, text string) error {
	if err := r.record(OpSetClipboard, text); err != nil {
		return err
	}
	r.mu.Lock()
	r.clipboard = text
	r.mu.Unlock()
	return nil
}

func (r *Recorder) GetClipboard(_ context.Context) (string, error) {
	if err := r.record(OpGetClipboard, ""); err != nil {
		return "", err
	}
	r.mu.Lock()
	s := r.clipboard
	rb := r.ReadBack
	r.mu.Unlock()
	if rb != nil {
		s = rb(s)
	}
	return s, nil
}

func (r *Recorder) EmitKeystrokes(_ context.Context, text string) error {
	return r.record(OpType, text)
}

func (r *Recorder) EmitHotkey(_ context.Context, keys ...string) error {
	return r.record(OpHotkey, strings.Join(keys, "+"))
}

func (r *Recorder) PressKey(_ context.Context, key string) error {
	return r.record(OpPress, key)
}

// Calls returns a copy of every recorded call, in order.
func (r *Recorder) Calls() []Call {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]Call(nil), r.calls...)
}

// Count returns how many times op was invoked.
func (r *Recorder) Count(op string) int {
	r.mu.Lock()
	defer r.mu.Unlock()
	n := 0
	for _, c := range r.calls {
		if c.Op == op {
			n++
		}
	}
	return n
}

// Reset forgets recorded calls but keeps clipboard contents and hooks.
func (r *Recorder) Reset() {
	r.mu.Lock()
	r.calls = nil
	r.mu.Unlock()
}

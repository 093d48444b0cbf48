// Package report writes the event stream read by the parent process.
//
// Wire format: one JSON object per line on stdout, flushed after every line:
//
//	{"type":"progress","message":"...","current":3}
//	{"type":"complete","message":"..."}
//	{"type":"error","message":"..."}
//
// Narration (KindLog) and per-attempt results (KindProgress) share the
// "progress" wire type; only KindProgress counts as an attempt report.
package report

import (
	"bufio"
	"encoding/json"
	"fmt"
	"io"
	"strings"
	"sync"
	"time"

	"github.com/cockroachdb/errors"
)

type Kind int

const (
	KindLog Kind = iota
	KindProgress
	KindComplete
	KindError
)

func (k Kind) String() string {
	switch k {
	case KindLog:
		return "log"
	case KindProgress:
		return "progress"
	case KindComplete:
		return "complete"
	case KindError:
		return "error"
	default:
		return fmt.Sprintf("kind(%d)", int(k))
	}
}

// Wire types.
const (
	TypeProgress = "progress"
	TypeComplete = "complete"
	TypeError    = "error"
)

const stampFormat = "15:04:05.000"

// Event is one line on the reporting channel.
type Event struct {
	Kind    Kind
	Message string
	// Current is the attempt index; only encoded for progress-typed events.
	Current int
	Time    time.Time
}

// Type returns the wire type.
func (e Event) Type() string {
	switch e.Kind {
	case KindComplete:
		return TypeComplete
	case KindError:
		return TypeError
	default:
		return TypeProgress
	}
}

type progressLine struct {
	Type    string `json:"type"`
	Message string `json:"message"`
	Current int    `json:"current"`
}

type messageLine struct {
	Type    string `json:"type"`
	Message string `json:"message"`
}

func (e Event) MarshalJSON() ([]byte, error) {
	msg := e.Message
	if e.Kind == KindLog && !e.Time.IsZero() {
		msg = "[" + e.Time.Format(stampFormat) + "] " + msg
	}
	if e.Type() == TypeProgress {
		return json.Marshal(progressLine{Type: TypeProgress, Message: msg, Current: e.Current})
	}
	return json.Marshal(messageLine{Type: e.Type(), Message: msg})
}

// Sink receives events. Implementations must be safe for concurrent use;
// control narration arrives from other goroutines than the run loop.
type Sink interface {
	Emit(e Event) error
}

// Writer is the JSON Lines Sink used in production.
type Writer struct {
	mu  sync.Mutex
	bw  *bufio.Writer
	now func() time.Time
}

func NewWriter(w io.Writer) *Writer {
	return &Writer{bw: bufio.NewWriter(w), now: time.Now}
}

// Emit writes e as one line and flushes.
func (w *Writer) Emit(e Event) error {
	if e.Time.IsZero() {
		e.Time = w.now()
	}
	b, err := json.Marshal(e)
	if err != nil {
		return errors.Wrap(err, "encode event")
	}
	w.mu.Lock()
	defer w.mu.Unlock()
	if _, err := w.bw.Write(append(b, '\n')); err != nil {
		return errors.Wrap(err, "write event")
	}
	return errors.Wrap(w.bw.Flush(), "flush event")
}

// Logf emits a narration line.
func Logf(s Sink, current int, format string, args ...any) {
	_ = s.Emit(Event{Kind: KindLog, Current: current, Message: fmt.Sprintf(format, args...)})
}

// Progress emits a per-attempt result.
func Progress(s Sink, current int, msg string) error {
	return s.Emit(Event{Kind: KindProgress, Current: current, Message: msg})
}

func Complete(s Sink, msg string) error {
	return s.Emit(Event{Kind: KindComplete, Message: msg})
}

func Error(s Sink, msg string) error {
	return s.Emit(Event{Kind: KindError, Message: msg})
}

// TraceLines emits one error event per non-blank line of trace.
func TraceLines(s Sink, trace string) {
	for _, line := range strings.Split(trace, "\n") {
		if strings.TrimSpace(line) == "" {
			continue
		}
		_ = s.Emit(Event{Kind: KindError, Message: line})
	}
}

// Recorder is an in-memory Sink for tests and embedding.
type Recorder struct {
	mu     sync.Mutex
	events []Event
	// OnEmit runs after an event is stored, outside the lock.
	OnEmit func(e Event)
}

func (r *Recorder) Emit(e Event) error {
	if e.Time.IsZero() {
		e.Time = time.Now()
	}
	r.mu.Lock()
	r.events = append(r.events, e)
	hook := r.OnEmit
	r.mu.Unlock()
	if hook != nil {
		hook(e)
	}
	return nil
}

// Events returns a copy of everything emitted so far.
func (r *Recorder) Events() []Event {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]Event(nil), r.events...)
}

// OfKind filters Events by kind.
func (r *Recorder) OfKind(k Kind) []Event {
	var out []Event
	for _, e := range r.Events() {
		if e.Kind == k {
			out = append(out, e)
		}
	}
	return out
}

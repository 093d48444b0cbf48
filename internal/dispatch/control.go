package dispatch

import (
	"sync/atomic"
)

// Signal is an external control request.
type Signal int

const (
	SignalPause Signal = iota
	SignalResume
	SignalStop
)

func (s Signal) String() string {
	switch s {
	case SignalPause:
		return "pause"
	case SignalResume:
		return "resume"
	case SignalStop:
		return "stop"
	default:
		return "unknown"
	}
}

// Control holds the pause/stop flags shared between control sources and the
// run loop. Writers flip flags; the loop only observes them at poll points,
// so a signal never interrupts a delivery already in flight.
//
// All methods are safe for concurrent use and idempotent.
type Control struct {
	paused  atomic.Bool
	stopped atomic.Bool

	observer atomic.Value // stores func(Signal)
}

func NewControl() *Control { return &Control{} }

// Observe registers fn to run after each flag change. Repeated signals that
// change nothing do not call fn.
func (c *Control) Observe(fn func(Signal)) {
	if fn != nil {
		c.observer.Store(fn)
	}
}

func (c *Control) notify(sig Signal) {
	if fn, ok := c.observer.Load().(func(Signal)); ok {
		fn(sig)
	}
}

// Pause asks the loop to hold before the next attempt. Ignored once stopped.
func (c *Control) Pause() bool {
	if c.stopped.Load() || !c.paused.CompareAndSwap(false, true) {
		return false
	}
	c.notify(SignalPause)
	return true
}

func (c *Control) Resume() bool {
	if !c.paused.CompareAndSwap(true, false) {
		return false
	}
	c.notify(SignalResume)
	return true
}

// Stop prevents any further attempt. It also clears pause so a paused loop exits.
func (c *Control) Stop() bool {
	if !c.stopped.CompareAndSwap(false, true) {
		return false
	}
	c.paused.Store(false)
	c.notify(SignalStop)
	return true
}

// Apply dispatches sig to the matching method.
func (c *Control) Apply(sig Signal) bool {
	switch sig {
	case SignalPause:
		return c.Pause()
	case SignalResume:
		return c.Resume()
	case SignalStop:
		return c.Stop()
	default:
		return false
	}
}

func (c *Control) Paused() bool  { return c.paused.Load() }
func (c *Control) Stopped() bool { return c.stopped.Load() }

// Package dispatch runs one job: wait for the start time, then deliver the
// payload RepeatCount times with Interval between attempts, honoring
// pause/resume/stop at every poll point.
package dispatch

import (
	"context"
	"fmt"
	"strings"
	"sync/atomic"
	"time"

	"github.com/cockroachdb/errors"
	"golang.org/x/time/rate"

	"autosend/internal/config"
	"autosend/internal/delivery"
	"autosend/internal/inject"
	"autosend/internal/report"
	logx "autosend/pkg/logx"
)

var (
	ErrRunFailed      = errors.New("run failed")
	ErrAlreadyStarted = errors.New("scheduler already started")
)

// Deliverer performs one delivery attempt.
type Deliverer interface {
	Deliver(ctx context.Context, payload string, preferClipboard bool) delivery.Outcome
}

type Options struct {
	Pacing config.Pacing
	// Now and Sleep replace the wall clock; tests use them to run fast.
	Now    func() time.Time
	Sleep  func(ctx context.Context, d time.Duration)
	Logger logx.Logger
}

type Scheduler struct {
	job  config.JobSpec
	del  Deliverer
	sink report.Sink
	ctl  *Control
	log  logx.Logger

	pacing config.Pacing
	now    func() time.Time
	sleep  func(ctx context.Context, d time.Duration)

	phase   atomic.Int32
	current atomic.Int64
	success atomic.Int64
}

func New(job config.JobSpec, del Deliverer, sink report.Sink, ctl *Control, opt Options) *Scheduler {
	if ctl == nil {
		ctl = NewControl()
	}
	p := opt.Pacing
	if p.PollSlice <= 0 {
		p.PollSlice = 50 * time.Millisecond
	}
	if p.GatePoll <= 0 {
		p.GatePoll = 100 * time.Millisecond
	}
	if p.PausePoll <= 0 {
		p.PausePoll = 100 * time.Millisecond
	}
	if p.CountdownEvery <= 0 {
		p.CountdownEvery = time.Second
	}
	if opt.Now == nil {
		opt.Now = time.Now
	}
	if opt.Sleep == nil {
		opt.Sleep = sleepCtx
	}
	s := &Scheduler{
		job:    job,
		del:    del,
		sink:   sink,
		ctl:    ctl,
		log:    opt.Logger,
		pacing: p,
		now:    opt.Now,
		sleep:  opt.Sleep,
	}
	ctl.Observe(s.onSignal)
	return s
}

func (s *Scheduler) Control() *Control { return s.ctl }

func (s *Scheduler) State() State {
	return State{
		Phase:        Phase(s.phase.Load()),
		CurrentIndex: int(s.current.Load()),
		SuccessCount: int(s.success.Load()),
	}
}

// setPhase moves to p unless a terminal phase was already reached.
func (s *Scheduler) setPhase(p Phase) {
	for {
		cur := Phase(s.phase.Load())
		if cur.Terminal() || cur == p {
			return
		}
		if s.phase.CompareAndSwap(int32(cur), int32(p)) {
			s.log.Debug("phase changed", logx.String("from", cur.String()), logx.String("to", p.String()))
			return
		}
	}
}

func (s *Scheduler) narrate(format string, args ...any) {
	report.Logf(s.sink, int(s.current.Load()), format, args...)
}

func (s *Scheduler) onSignal(sig Signal) {
	switch sig {
	case SignalPause:
		s.narrate("=== automation paused ===")
	case SignalResume:
		s.narrate("=== automation resumed ===")
	case SignalStop:
		s.narrate("=== automation stopped ===")
	}
	s.log.Info("control signal", logx.String("signal", sig.String()))
}

func (s *Scheduler) stopping(ctx context.Context) bool {
	return s.ctl.Stopped() || ctx.Err() != nil
}

// Run executes the job to a terminal phase. It returns an error wrapping
// ErrRunFailed only when the run ends in Failed; delivery failures are counted,
// not returned. A panic inside the run is captured and reported, never re-raised.
func (s *Scheduler) Run(ctx context.Context) (st State, err error) {
	if !s.phase.CompareAndSwap(int32(Idle), int32(WaitingForStart)) {
		return s.State(), ErrAlreadyStarted
	}
	defer func() {
		if r := recover(); r != nil {
			err = s.fail(errors.Newf("panic: %v", r), fmt.Sprintf("%T", r), logx.StackTrace(3, 32))
			st = s.State()
		}
	}()

	// Cancellation is an external stop.
	release := context.AfterFunc(ctx, func() { s.ctl.Stop() })
	defer release()

	s.narrate("=== autosend start ===")
	ok, err := s.waitForStart(ctx)
	if err != nil {
		ferr := s.fail(err, errorKind(err), fmt.Sprintf("%+v", err))
		return s.State(), ferr
	}
	if !ok {
		s.setPhase(Stopped)
		return s.State(), nil
	}

	s.setPhase(Running)
	total := s.job.RepeatCount
	s.narrate("=== sending %d messages ===", total)
	s.narrate("make sure the target input has focus")

	for i := 1; i <= total; i++ {
		if s.stopping(ctx) {
			break
		}
		s.waitWhilePaused(ctx)
		if s.stopping(ctx) {
			break
		}

		s.current.Store(int64(i))
		s.narrate("=== message %d/%d ===", i, total)
		out := s.del.Deliver(ctx, s.job.Payload, s.job.PreferClipboard)
		if out.Succeeded {
			s.success.Add(1)
			s.narrate("message %d delivered via %s", i, out.Method)
		} else {
			s.narrate("message %d FAILED: %v", i, out.Err)
			s.log.Warn("delivery failed", logx.Int("index", i), logx.String("method", out.Method.String()), logx.Err(out.Err))
		}

		n := s.success.Load()
		if err := report.Progress(s.sink, i, fmt.Sprintf("%d/%d succeeded", n, i)); err != nil {
			s.log.Warn("progress event not written", logx.Err(err))
		}

		if out.Err != nil && errors.Is(out.Err, inject.ErrUnavailable) {
			ferr := s.fail(out.Err, errorKind(out.Err), fmt.Sprintf("%+v", out.Err))
			return s.State(), ferr
		}

		if i < total {
			s.pace(ctx)
		}
	}

	if s.stopping(ctx) {
		s.ctl.Stop()
		s.setPhase(Stopped)
		s.narrate("=== stopped after %d/%d ===", s.current.Load(), total)
		return s.State(), nil
	}

	s.setPhase(Completed)
	msg := fmt.Sprintf("result: %d/%d messages delivered", s.success.Load(), total)
	if err := report.Complete(s.sink, msg); err != nil {
		s.log.Warn("complete event not written", logx.Err(err))
	}
	s.log.Info("run completed", logx.Int64("success", s.success.Load()), logx.Int("total", total))
	return s.State(), nil
}

// waitForStart polls the clock until the gate opens. It returns false when
// stopped first.
func (s *Scheduler) waitForStart(ctx context.Context) (bool, error) {
	now := s.now()
	g, err := newGate(s.job, now)
	if err != nil {
		return false, errors.Wrap(err, "resolve start time")
	}
	if s.job.StartPolicy == config.StartNext {
		s.narrate("target time: %s", g.target.Format("2006-01-02 15:04:05"))
	} else {
		s.narrate("target time: %s", s.job.StartTime)
	}

	countdown := rate.NewLimiter(rate.Every(s.pacing.CountdownEvery), 1)
	for {
		if s.stopping(ctx) {
			s.narrate("stopped while waiting for start time")
			return false, nil
		}
		now = s.now()
		if g.reached(now) {
			s.narrate("start time reached: %s", now.Format("15:04:05"))
			return true, nil
		}
		if countdown.AllowN(now, 1) {
			left := g.remaining(now).Round(time.Second)
			s.narrate("waiting until %s (%ds left)", s.job.StartTime, int64(left/time.Second))
		}
		s.sleep(ctx, s.pacing.GatePoll)
	}
}

func (s *Scheduler) waitWhilePaused(ctx context.Context) {
	held := false
	for s.ctl.Paused() && !s.stopping(ctx) {
		if !held {
			s.setPhase(Paused)
			held = true
		}
		s.sleep(ctx, s.pacing.PausePoll)
	}
	if held {
		s.setPhase(Running)
	}
}

// pace waits out the interval in slices. Paused time does not count toward
// the interval; stop ends the wait at the next slice.
func (s *Scheduler) pace(ctx context.Context) {
	interval := s.job.Interval
	if interval <= 0 {
		return
	}
	s.narrate("sleeping %s...", interval)
	var waited time.Duration
	for waited < interval && !s.stopping(ctx) {
		if s.ctl.Paused() {
			s.setPhase(Paused)
			s.sleep(ctx, s.pacing.PollSlice)
			continue
		}
		s.setPhase(Running)
		d := min(s.pacing.PollSlice, interval-waited)
		s.sleep(ctx, d)
		waited += d
	}
}

// fail moves to Failed and reports the cause plus its trace, one line per event.
func (s *Scheduler) fail(cause error, kind, trace string) error {
	s.phase.Store(int32(Failed))
	msg := fmt.Sprintf("=== ERROR: %s: %v ===", kind, cause)
	_ = report.Error(s.sink, msg)
	report.TraceLines(s.sink, trace)
	s.log.Error("run failed", logx.String("kind", kind), logx.Err(cause), logx.Stack(trace))
	return errors.Mark(errors.Wrap(cause, "run failed"), ErrRunFailed)
}

func errorKind(err error) string {
	return strings.TrimPrefix(fmt.Sprintf("%T", errors.UnwrapAll(err)), "*")
}

func sleepCtx(ctx context.Context, d time.Duration) {
	if d <= 0 {
		return
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
	case <-t.C:
	}
}

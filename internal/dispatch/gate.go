package dispatch

import (
	"fmt"
	"time"

	"github.com/robfig/cron/v3"

	"autosend/internal/config"
)

var dailyParser = cron.NewParser(cron.Second | cron.Minute | cron.Hour | cron.Dom | cron.Month | cron.Dow)

// nextOccurrence returns the first instant at or after the start of now's
// second where the wall clock reads start. It may be tomorrow.
func nextOccurrence(start config.TimeOfDay, now time.Time) (time.Time, error) {
	sched, err := dailyParser.Parse(fmt.Sprintf("%d %d %d * * *", start.Second, start.Minute, start.Hour))
	if err != nil {
		return time.Time{}, err
	}
	// Next is strictly-after; step back below the current second so a start
	// equal to the current second still counts as today.
	return sched.Next(now.Truncate(time.Second).Add(-time.Nanosecond)), nil
}

// gate decides when the start time has been reached.
type gate struct {
	start  config.TimeOfDay
	policy config.StartPolicy
	target time.Time // set for StartNext
}

func newGate(job config.JobSpec, now time.Time) (*gate, error) {
	g := &gate{start: job.StartTime, policy: job.StartPolicy}
	if g.policy == config.StartNext {
		t, err := nextOccurrence(job.StartTime, now)
		if err != nil {
			return nil, err
		}
		g.target = t
	}
	return g, nil
}

// reached reports whether now satisfies the gate.
//
// StartToday compares time-of-day only, so a start time that already passed
// today opens immediately (it is never deferred to tomorrow).
func (g *gate) reached(now time.Time) bool {
	if g.policy == config.StartNext {
		return !now.Before(g.target)
	}
	return !config.TimeOfDayOf(now).Before(g.start)
}

func (g *gate) remaining(now time.Time) time.Duration {
	if g.policy == config.StartNext {
		return g.target.Sub(now)
	}
	return g.start.On(now).Sub(now)
}

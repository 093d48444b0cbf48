package dispatch

import (
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"autosend/internal/config"
)

func TestControlIdempotent(t *testing.T) {
	t.Parallel()
	c := NewControl()
	var seen []Signal
	c.Observe(func(s Signal) { seen = append(seen, s) })

	assert.True(t, c.Pause())
	assert.False(t, c.Pause())
	assert.True(t, c.Paused())
	assert.True(t, c.Resume())
	assert.False(t, c.Resume())
	assert.False(t, c.Paused())

	c.Pause()
	assert.True(t, c.Stop())
	assert.False(t, c.Stop())
	assert.False(t, c.Paused(), "stop clears pause")
	assert.False(t, c.Pause(), "pause ignored once stopped")

	assert.Equal(t, []Signal{SignalPause, SignalResume, SignalPause, SignalStop}, seen)
}

func TestControlApply(t *testing.T) {
	t.Parallel()
	c := NewControl()
	assert.True(t, c.Apply(SignalPause))
	assert.True(t, c.Apply(SignalResume))
	assert.True(t, c.Apply(SignalStop))
	assert.False(t, c.Apply(Signal(42)))
	assert.Equal(t, "unknown", Signal(42).String())
}

func TestControlConcurrentStopNotifiesOnce(t *testing.T) {
	t.Parallel()
	c := NewControl()
	var mu sync.Mutex
	stops := 0
	c.Observe(func(s Signal) {
		if s == SignalStop {
			mu.Lock()
			stops++
			mu.Unlock()
		}
	})
	var wg sync.WaitGroup
	for i := 0; i < 16; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			c.Pause()
			c.Stop()
		}()
	}
	wg.Wait()
	assert.Equal(t, 1, stops)
	assert.True(t, c.Stopped())
}

func TestPhaseTerminal(t *testing.T) {
	t.Parallel()
	for _, p := range []Phase{Stopped, Completed, Failed} {
		assert.True(t, p.Terminal(), p.String())
	}
	for _, p := range []Phase{Idle, WaitingForStart, Running, Paused} {
		assert.False(t, p.Terminal(), p.String())
	}
	assert.Equal(t, "waiting_for_start", WaitingForStart.String())
}

func TestNextOccurrence(t *testing.T) {
	t.Parallel()
	loc := time.FixedZone("X", 3*3600)
	now := time.Date(2026, 12, 31, 10, 0, 0, 500_000_000, loc)
	tests := []struct {
		name  string
		start config.TimeOfDay
		want  time.Time
	}{
		{name: "later today", start: config.TimeOfDay{Hour: 18, Minute: 30}, want: time.Date(2026, 12, 31, 18, 30, 0, 0, loc)},
		{name: "this second", start: config.TimeOfDay{Hour: 10}, want: time.Date(2026, 12, 31, 10, 0, 0, 0, loc)},
		{name: "passed rolls to tomorrow", start: config.TimeOfDay{Hour: 9, Minute: 59, Second: 59}, want: time.Date(2027, 1, 1, 9, 59, 59, 0, loc)},
	}
	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			got, err := nextOccurrence(tt.start, now)
			require.NoError(t, err)
			assert.True(t, tt.want.Equal(got), "got %s want %s", got, tt.want)
		})
	}
}

func TestGateTodayPolicy(t *testing.T) {
	t.Parallel()
	j := config.JobSpec{StartTime: config.TimeOfDay{Hour: 9}, StartPolicy: config.StartToday}
	now := time.Date(2026, 1, 1, 8, 59, 58, 0, time.UTC)
	g, err := newGate(j, now)
	require.NoError(t, err)

	assert.False(t, g.reached(now))
	assert.Equal(t, 2*time.Second, g.remaining(now))
	assert.True(t, g.reached(now.Add(2*time.Second)))
	// already passed: opens immediately, never tomorrow
	assert.True(t, g.reached(time.Date(2026, 1, 1, 23, 0, 0, 0, time.UTC)))
}

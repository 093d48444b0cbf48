package config

import (
	"fmt"
	"strings"
	"time"
)

// ParseDurationField parses a Go duration string found at path (for error
// messages). Empty means 0; negative values are rejected.
func ParseDurationField(path, raw string) (time.Duration, error) {
	s := strings.TrimSpace(raw)
	if s == "" {
		return 0, nil
	}
	d, err := time.ParseDuration(s)
	if err != nil {
		return 0, fmt.Errorf("%s: invalid duration %q: %w", path, raw, err)
	}
	if d < 0 {
		return 0, fmt.Errorf("%s: duration must be >= 0", path)
	}
	return d, nil
}

func ParseDurationOrDefault(path, raw string, def time.Duration) (time.Duration, error) {
	d, err := ParseDurationField(path, raw)
	if err != nil {
		return 0, err
	}
	if d <= 0 {
		return def, nil
	}
	return d, nil
}

// Pacing is PacingConfig with defaults applied.
type Pacing struct {
	PollSlice      time.Duration
	GatePoll       time.Duration
	PausePoll      time.Duration
	CountdownEvery time.Duration
}

// Resolve validates the pacing block and fills defaults.
func (p PacingConfig) Resolve() (Pacing, error) {
	var out Pacing
	var err error
	if out.PollSlice, err = ParseDurationOrDefault("pacing.poll_slice", p.PollSlice, 50*time.Millisecond); err != nil {
		return Pacing{}, err
	}
	if out.GatePoll, err = ParseDurationOrDefault("pacing.gate_poll", p.GatePoll, 100*time.Millisecond); err != nil {
		return Pacing{}, err
	}
	if out.PausePoll, err = ParseDurationOrDefault("pacing.pause_poll", p.PausePoll, 100*time.Millisecond); err != nil {
		return Pacing{}, err
	}
	if out.CountdownEvery, err = ParseDurationOrDefault("pacing.countdown_every", p.CountdownEvery, time.Second); err != nil {
		return Pacing{}, err
	}
	return out, nil
}

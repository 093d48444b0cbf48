package config

// Settings is the optional process settings file (--config).
//
// The job itself always comes from the command line argument or --job-file;
// this file only tunes how the process runs. JSON or YAML, unknown keys rejected.
//
// Example (YAML):
//
//	logging:
//	  level: debug
//	  console: true
//	pacing:
//	  poll_slice: 50ms
//	injection:
//	  backend: exec
type Settings struct {
	Logging   LoggingConfig   `json:"logging"`
	Pacing    PacingConfig    `json:"pacing"`
	Injection InjectionConfig `json:"injection"`
}

type LoggingConfig struct {
	Level   string      `json:"level"`
	Console bool        `json:"console"`
	File    LoggingFile `json:"file"`
}

type LoggingFile struct {
	Enabled bool   `json:"enabled"`
	Path    string `json:"path"`
}

// PacingConfig controls poll granularity of the dispatch loop.
//
// All durations are Go duration strings (e.g. "50ms", "1s").
// Empty or "0s" keeps the built-in default.
type PacingConfig struct {
	// PollSlice is the sleep slice used while pacing the interval.
	PollSlice string `json:"poll_slice,omitempty"`
	// GatePoll is how often the start-time gate re-checks the clock.
	GatePoll string `json:"gate_poll,omitempty"`
	// PausePoll is how often a paused loop re-checks the control flags.
	PausePoll string `json:"pause_poll,omitempty"`
	// CountdownEvery limits "waiting for start" narration.
	CountdownEvery string `json:"countdown_every,omitempty"`
}

// InjectionConfig selects the keystroke/clipboard backend.
//
// Backend values:
//   - "exec" (default): host tools (xdotool/xclip on Linux, pbcopy/osascript on macOS)
//   - "dry": in-memory recorder, nothing reaches the desktop
type InjectionConfig struct {
	Backend  string `json:"backend,omitempty"`
	Platform string `json:"platform,omitempty"` // default: runtime.GOOS
	// TypeDelay is passed to the typing tool as per-key delay. Default "0s" (fastest).
	TypeDelay string `json:"type_delay,omitempty"`
}

// DefaultSettings is used when no settings file is given.
func DefaultSettings() *Settings {
	return &Settings{
		Logging:   LoggingConfig{Level: "info", Console: true},
		Injection: InjectionConfig{Backend: "exec"},
	}
}

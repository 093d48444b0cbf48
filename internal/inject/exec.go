package inject

import (
	"bytes"
	"context"
	"os/exec"
	"strconv"
	"strings"
	"time"

	"github.com/cockroachdb/errors"
)

// Runner executes one host command, feeding stdin, and returns stdout.
type Runner func(ctx context.Context, stdin string, name string, args ...string) (string, error)

// Exec drives host input tools.
//
// Linux (X11): xclip for the clipboard, xdotool for keys.
// macOS: pbcopy/pbpaste for the clipboard, osascript (System Events) for keys.
type Exec struct {
	platform  string
	typeDelay time.Duration
	run       Runner
}

// Tools returns the host commands the platform backend needs.
func Tools(platform string) []string {
	switch platform {
	case "darwin":
		return []string{"pbcopy", "pbpaste", "osascript"}
	case "linux", "freebsd", "openbsd", "netbsd":
		return []string{"xclip", "xdotool"}
	default:
		return nil
	}
}

// NewExec checks that the platform tools exist and returns the backend.
// A missing tool or unsupported platform yields an error wrapping ErrUnavailable.
func NewExec(platform string, typeDelay time.Duration) (*Exec, error) {
	tools := Tools(platform)
	if len(tools) == 0 {
		return nil, errors.Wrapf(ErrUnavailable, "platform %q has no exec backend", platform)
	}
	for _, t := range tools {
		if _, err := exec.LookPath(t); err != nil {
			return nil, errors.Wrapf(ErrUnavailable, "%s not found in PATH", t)
		}
	}
	return NewExecWithRunner(platform, typeDelay, runCommand), nil
}

// NewExecWithRunner skips tool discovery; tests use it with a fake Runner.
func NewExecWithRunner(platform string, typeDelay time.Duration, run Runner) *Exec {
	return &Exec{platform: platform, typeDelay: typeDelay, run: run}
}

func (e *Exec) darwin() bool { return e.platform == "darwin" }

func (e *Exec) SetClipboard(ctx context.Context, text string) error {
	if e.darwin() {
		_, err := e.run(ctx, text, "pbcopy")
		return err
	}
	_, err := e.run(ctx, text, "xclip", "-selection", "clipboard", "-i")
	return err
}

func (e *Exec) GetClipboard(ctx context.Context) (string, error) {
	if e.darwin() {
		return e.run(ctx, "", "pbpaste")
	}
	return e.run(ctx, "", "xclip", "-selection", "clipboard", "-o")
}

func (e *Exec) EmitKeystrokes(ctx context.Context, text string) error {
	if e.darwin() {
		_, err := e.run(ctx, "", "osascript", "-e", `tell application "System Events" to keystroke `+appleScriptString(text))
		return err
	}
	ms := strconv.FormatInt(e.typeDelay.Milliseconds(), 10)
	_, err := e.run(ctx, "", "xdotool", "type", "--delay", ms, "--", text)
	return err
}

func (e *Exec) EmitHotkey(ctx context.Context, keys ...string) error {
	if len(keys) == 0 {
		return errors.New("hotkey needs at least one key")
	}
	if e.darwin() {
		last := keys[len(keys)-1]
		var mods []string
		for _, k := range keys[:len(keys)-1] {
			mods = append(mods, appleModifier(k))
		}
		script := `tell application "System Events" to keystroke ` + appleScriptString(last)
		if len(mods) > 0 {
			script += " using {" + strings.Join(mods, ", ") + "}"
		}
		_, err := e.run(ctx, "", "osascript", "-e", script)
		return err
	}
	xk := make([]string, len(keys))
	for i, k := range keys {
		xk[i] = xdotoolKey(k)
	}
	_, err := e.run(ctx, "", "xdotool", "key", "--clearmodifiers", strings.Join(xk, "+"))
	return err
}

func (e *Exec) PressKey(ctx context.Context, key string) error {
	if e.darwin() {
		if key == KeyEnter {
			_, err := e.run(ctx, "", "osascript", "-e", `tell application "System Events" to key code 36`)
			return err
		}
		_, err := e.run(ctx, "", "osascript", "-e", `tell application "System Events" to keystroke `+appleScriptString(key))
		return err
	}
	_, err := e.run(ctx, "", "xdotool", "key", xdotoolKey(key))
	return err
}

func xdotoolKey(k string) string {
	switch strings.ToLower(k) {
	case KeyEnter, "return":
		return "Return"
	case KeyCmd:
		return "super"
	default:
		return k
	}
}

func appleModifier(k string) string {
	switch strings.ToLower(k) {
	case KeyCmd:
		return "command down"
	case KeyCtrl:
		return "control down"
	case "alt", "option":
		return "option down"
	case "shift":
		return "shift down"
	default:
		return k + " down"
	}
}

func appleScriptString(s string) string {
	r := strings.NewReplacer(`\`, `\\`, `"`, `\"`)
	return `"` + r.Replace(s) + `"`
}

func runCommand(ctx context.Context, stdin string, name string, args ...string) (string, error) {
	cmd := exec.CommandContext(ctx, name, args...)
	if stdin != "" {
		cmd.Stdin = strings.NewReader(stdin)
	}
	var out, errb bytes.Buffer
	cmd.Stdout = &out
	cmd.Stderr = &errb
	if err := cmd.Run(); err != nil {
		if errors.Is(err, exec.ErrNotFound) {
			return "", errors.Wrapf(ErrUnavailable, "%s: %v", name, err)
		}
		msg := strings.TrimSpace(errb.String())
		if msg != "" {
			return "", errors.Wrapf(err, "%s: %s", name, msg)
		}
		return "", errors.Wrap(err, name)
	}
	return out.String(), nil
}

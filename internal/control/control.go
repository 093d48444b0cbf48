// Package control turns outside requests into dispatch control signals.
//
// Sources:
//   - OS signals: SIGINT/SIGTERM stop; SIGUSR1 pause and SIGUSR2 resume (Unix only)
//   - stdin lines: "pause", "resume", "stop" (case-insensitive)
//
// Sources only flip flags on dispatch.Control; they never touch the run loop.
package control

import (
	"bufio"
	"context"
	"io"
	"os"
	"os/signal"
	"strings"

	"autosend/internal/dispatch"
	logx "autosend/pkg/logx"
)

// Target receives parsed signals. *dispatch.Control implements it.
type Target interface {
	Apply(sig dispatch.Signal) bool
}

// ParseCommand maps a stdin line to a signal.
func ParseCommand(line string) (dispatch.Signal, bool) {
	switch strings.ToLower(strings.TrimSpace(line)) {
	case "pause":
		return dispatch.SignalPause, true
	case "resume":
		return dispatch.SignalResume, true
	case "stop", "quit", "exit":
		return dispatch.SignalStop, true
	default:
		return 0, false
	}
}

// ReadCommands applies commands read line by line from r until EOF or ctx is done.
// EOF is not a stop request: parents that never write stdin simply close it.
func ReadCommands(ctx context.Context, r io.Reader, t Target, log logx.Logger) error {
	lines := make(chan string)
	errc := make(chan error, 1)
	go func() {
		sc := bufio.NewScanner(r)
		for sc.Scan() {
			select {
			case lines <- sc.Text():
			case <-ctx.Done():
				return
			}
		}
		errc <- sc.Err()
	}()

	for {
		select {
		case <-ctx.Done():
			return nil
		case err := <-errc:
			if err != nil {
				log.Warn("stdin command reader stopped", logx.Err(err))
			}
			return err
		case line := <-lines:
			if strings.TrimSpace(line) == "" {
				continue
			}
			sig, ok := ParseCommand(line)
			if !ok {
				log.Warn("unknown control command", logx.String("line", line))
				continue
			}
			changed := t.Apply(sig)
			log.Debug("control command", logx.String("signal", sig.String()), logx.Bool("changed", changed))
		}
	}
}

// WatchSignals applies OS signals until ctx is done.
func WatchSignals(ctx context.Context, t Target, log logx.Logger) error {
	ch := make(chan os.Signal, 4)
	signal.Notify(ch, watched()...)
	defer signal.Stop(ch)

	for {
		select {
		case <-ctx.Done():
			return nil
		case s := <-ch:
			sig, ok := mapSignal(s)
			if !ok {
				continue
			}
			changed := t.Apply(sig)
			log.Debug("os signal", logx.String("os_signal", s.String()), logx.String("signal", sig.String()), logx.Bool("changed", changed))
		}
	}
}

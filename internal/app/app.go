package app

import (
	"context"
	"fmt"
	"io"
	"runtime"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/cockroachdb/errors"
	"github.com/google/uuid"

	"autosend/internal/config"
	"autosend/internal/control"
	"autosend/internal/delivery"
	"autosend/internal/dispatch"
	"autosend/internal/inject"
	"autosend/internal/report"
	rtsup "autosend/internal/runtime/supervisor"
	logx "autosend/pkg/logx"
)

// Process exit codes.
const (
	ExitOK      = 0
	ExitFailed  = 1
	ExitStartup = 2
)

const stopGrace = 2 * time.Second

// Options is everything the CLI collects.
type Options struct {
	// Args are the positional arguments; exactly one (the job JSON) unless JobFile is set.
	Args       []string
	JobFile    string
	ConfigPath string
	DryRun     bool
	LogLevel   string
	Platform   string

	Stdout io.Writer
	// Stdin, when non-nil, is read for pause/resume/stop commands.
	Stdin        io.Reader
	WatchSignals bool

	// Capability overrides the configured backend (tests, embedding).
	Capability inject.Capability
	// Now and Sleep override the scheduler clock (tests).
	Now   func() time.Time
	Sleep func(ctx context.Context, d time.Duration)
}

// Run executes one job and returns the process exit code. Every outcome,
// including startup errors, is reported on opt.Stdout as events.
func Run(ctx context.Context, opt Options) int {
	sink := report.NewWriter(opt.Stdout)

	cfgm := config.NewConfigManager(opt.ConfigPath)
	settings, err := cfgm.Load()
	if err != nil {
		_ = report.Error(sink, fmt.Sprintf("settings error: %v", err))
		return ExitStartup
	}

	logs, log := logx.New(mapLogging(settings, opt.LogLevel))
	defer logs.Close()
	runID := uuid.NewString()
	log = log.With(logx.String("run_id", runID))
	cfgm.SetLogger(log.With(logx.String("comp", "config")))

	raw, job, err := loadJob(opt)
	if err != nil {
		log.Warn("job rejected", logx.Err(err))
		_ = report.Error(sink, describeJobError(err))
		return ExitStartup
	}

	pacing, err := settings.Pacing.Resolve()
	if err != nil {
		_ = report.Error(sink, fmt.Sprintf("settings error: %v", err))
		return ExitStartup
	}

	platform := firstNonEmpty(opt.Platform, settings.Injection.Platform, runtime.GOOS)
	capab := opt.Capability
	if capab == nil {
		capab, err = openCapability(settings.Injection, platform, opt.DryRun)
		if err != nil {
			log.Error("injection backend unavailable", logx.Err(err))
			_ = report.Error(sink, fmt.Sprintf("startup error: %v", err))
			return ExitStartup
		}
	}

	report.Logf(sink, 0, "received config: %s", truncate(raw, 100))
	report.Logf(sink, 0, "config valid, starting sender...")
	report.Logf(sink, 0, "message: %s", truncate(job.Payload, 50))
	report.Logf(sink, 0, "start time: %s (%s)", job.StartTime, job.StartPolicy)
	report.Logf(sink, 0, "repeat count: %d", job.RepeatCount)
	report.Logf(sink, 0, "interval: %s", job.Interval)
	mode := "typing"
	if job.PreferClipboard {
		mode = "clipboard"
	}
	report.Logf(sink, 0, "send mode: %s", mode)
	log.Info("job accepted",
		logx.Int("repeat", job.RepeatCount),
		logx.Duration("interval", job.Interval),
		logx.String("start", job.StartTime.String()),
		logx.String("mode", mode),
		logx.String("platform", platform),
	)

	// A broken control source cancels the run: the parent can no longer steer it.
	sup := rtsup.NewSupervisor(ctx,
		rtsup.WithLogger(log.With(logx.String("comp", "supervisor"))),
		rtsup.WithCancelOnError(true),
	)
	defer func() {
		sctx, cancel := context.WithTimeout(context.Background(), stopGrace)
		defer cancel()
		if err := sup.Stop(sctx); err != nil {
			log.Debug("supervisor stop", logx.Err(err))
		}
	}()

	strategy := delivery.New(capab, delivery.Options{
		Platform: platform,
		Notify:   func(msg string) { report.Logf(sink, 0, "%s", msg) },
		Logger:   log.With(logx.String("comp", "delivery")),
	})
	if job.PreferClipboard {
		selfTest(sup.Context(), strategy, job.Payload, sink, log)
	} else {
		report.Logf(sink, 0, "typing mode selected")
	}

	ctl := dispatch.NewControl()
	sched := dispatch.New(job, strategy, sink, ctl, dispatch.Options{
		Pacing: pacing,
		Now:    opt.Now,
		Sleep:  opt.Sleep,
		Logger: log.With(logx.String("comp", "dispatch")),
	})

	ctlLog := log.With(logx.String("comp", "control"))
	if opt.WatchSignals {
		sup.Go("control.signals", func(ctx context.Context) error {
			return control.WatchSignals(ctx, ctl, ctlLog)
		})
	}
	if opt.Stdin != nil {
		sup.Go("control.stdin", func(ctx context.Context) error {
			return control.ReadCommands(ctx, opt.Stdin, ctl, ctlLog)
		})
	}
	if cfgm.Path() != "" {
		watchSettings(sup, cfgm, logs, opt.LogLevel, log.With(logx.String("comp", "config")))
	}

	st, err := sched.Run(sup.Context())
	log.Info("run finished",
		logx.String("phase", st.Phase.String()),
		logx.Int("current", st.CurrentIndex),
		logx.Int("success", st.SuccessCount),
	)
	if err != nil {
		return ExitFailed
	}
	if serr := sup.Err(); serr != nil && st.Phase == dispatch.Stopped {
		log.Error("run cancelled by failed control source", logx.Err(serr))
		_ = report.Error(sink, fmt.Sprintf("control error: %v", serr))
		return ExitFailed
	}
	return ExitOK
}

// selfTest runs the clipboard self-test. A panicking backend counts as a
// failed test; the job then types every payload.
func selfTest(ctx context.Context, strategy *delivery.Strategy, payload string, sink report.Sink, log logx.Logger) {
	defer func() {
		if r := recover(); r != nil {
			log.Warn("clipboard self-test panicked", logx.Any("panic", r))
			report.Logf(sink, 0, "clipboard error: %v", r)
			report.Logf(sink, 0, "clipboard test FAILED - will use typing")
		}
	}()
	strategy.SelfTest(ctx, payload)
}

// watchSettings hot-applies logging changes; injection changes are refused
// because the backend is already in use.
func watchSettings(sup *rtsup.Supervisor, cfgm *config.ConfigManager, logs *logx.Service, levelOverride string, log logx.Logger) {
	loaded := cfgm.Get().Injection
	cfgm.SetValidator(func(s *config.Settings) error {
		if s.Injection != loaded {
			return errors.New("injection settings cannot change during a run")
		}
		return nil
	})
	updates := cfgm.Subscribe(1)
	sup.Go0("settings.watch", func(ctx context.Context) {
		// without a watcher the run keeps its startup settings
		if err := cfgm.Watch(ctx); err != nil {
			log.Warn("settings hot reload disabled", logx.Err(err))
		}
	})
	sup.Go0("settings.apply", func(ctx context.Context) {
		defer cfgm.Unsubscribe(updates)
		for {
			select {
			case <-ctx.Done():
				return
			case s, ok := <-updates:
				if !ok {
					return
				}
				logs.Apply(mapLogging(s, levelOverride))
			}
		}
	})
}

func loadJob(opt Options) (string, config.JobSpec, error) {
	if strings.TrimSpace(opt.JobFile) != "" {
		job, err := config.ParseJobFile(opt.JobFile)
		return opt.JobFile, job, err
	}
	switch {
	case len(opt.Args) == 0:
		return "", config.JobSpec{}, errMissingArg
	case len(opt.Args) > 1:
		return "", config.JobSpec{}, errors.Mark(errors.Newf("expected exactly one argument, got %d: autosend <job-json>", len(opt.Args)), errTooManyArgs)
	}
	job, err := config.ParseJob([]byte(opt.Args[0]))
	return opt.Args[0], job, err
}

var (
	errMissingArg  = errors.New("missing argument: autosend <job-json>")
	errTooManyArgs = errors.New("too many arguments")
)

func describeJobError(err error) string {
	var missing *config.MissingFieldError
	switch {
	case errors.Is(err, errMissingArg), errors.Is(err, errTooManyArgs):
		return err.Error()
	case errors.As(err, &missing):
		return fmt.Sprintf("missing field %s in job config", missing.Field)
	case errors.Is(err, config.ErrMalformedInput):
		return fmt.Sprintf("invalid JSON: %v", err)
	default:
		return fmt.Sprintf("job error: %v", err)
	}
}

func openCapability(cfg config.InjectionConfig, platform string, dryRun bool) (inject.Capability, error) {
	backend := strings.ToLower(strings.TrimSpace(cfg.Backend))
	if dryRun {
		backend = "dry"
	}
	switch backend {
	case "dry":
		return inject.NewRecorder(), nil
	case "", "exec":
		delay, err := config.ParseDurationField("injection.type_delay", cfg.TypeDelay)
		if err != nil {
			return nil, err
		}
		return inject.NewExec(platform, delay)
	default:
		return nil, errors.Newf("unknown injection backend %q", cfg.Backend)
	}
}

func mapLogging(s *config.Settings, levelOverride string) logx.Config {
	lvl := s.Logging.Level
	if strings.TrimSpace(levelOverride) != "" {
		lvl = levelOverride
	}
	return logx.Config{
		Level:   lvl,
		Console: s.Logging.Console,
		File: logx.FileConfig{
			Enabled: s.Logging.File.Enabled,
			Path:    s.Logging.File.Path,
		},
	}
}

func truncate(s string, n int) string {
	if utf8.RuneCountInString(s) <= n {
		return s
	}
	return string([]rune(s)[:n]) + "..."
}

func firstNonEmpty(vals ...string) string {
	for _, v := range vals {
		if strings.TrimSpace(v) != "" {
			return strings.TrimSpace(v)
		}
	}
	return ""
}

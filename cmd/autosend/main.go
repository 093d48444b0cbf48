package main

import (
	"context"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"autosend/internal/app"
	"autosend/internal/report"
)

func main() {
	os.Exit(run(os.Args[1:]))
}

func run(args []string) int {
	code := app.ExitOK
	cmd := newRootCmd(&code)
	cmd.SetArgs(args)
	if err := cmd.ExecuteContext(context.Background()); err != nil {
		// Flag errors never reach app.Run; report them the same way.
		_ = report.Error(report.NewWriter(os.Stdout), fmt.Sprintf("usage error: %v", err))
		return app.ExitStartup
	}
	return code
}

func newRootCmd(code *int) *cobra.Command {
	var opt app.Options

	cmd := &cobra.Command{
		Use:   "autosend [flags] <job-json>",
		Short: "Deliver a message to the focused input at a scheduled time",
		Long: `autosend waits until startTime, then delivers the message repeatCount times
with interval seconds between attempts. Progress is written to stdout as
JSON Lines; diagnostics go to stderr.

Job JSON: {"message":"hi","startTime":"09:30:00","repeatCount":3,"interval":1.5,"useClipboard":true}

Control while running: send "pause", "resume" or "stop" lines on stdin,
or SIGUSR1 (pause), SIGUSR2 (resume), SIGINT/SIGTERM (stop).`,
		Args:          cobra.ArbitraryArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			opt.Args = args
			opt.Stdout = cmd.OutOrStdout()
			opt.Stdin = os.Stdin
			opt.WatchSignals = true
			*code = app.Run(cmd.Context(), opt)
			return nil
		},
	}

	f := cmd.Flags()
	f.StringVar(&opt.ConfigPath, "config", "", "settings file (JSON or YAML); reloaded on change")
	f.StringVar(&opt.JobFile, "job-file", "", "read the job from a JSON or YAML file instead of the argument")
	f.BoolVar(&opt.DryRun, "dry-run", false, "record deliveries in memory instead of injecting input")
	f.StringVar(&opt.LogLevel, "log-level", "", "diagnostic log level (trace|debug|info|warn|error|off)")
	f.StringVar(&opt.Platform, "platform", "", "override platform detection (e.g. darwin, linux)")
	return cmd
}

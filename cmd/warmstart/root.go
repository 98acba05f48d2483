package main

import (
	"context"
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"

	"warmstart/internal/client"
	"warmstart/internal/config"
	"warmstart/internal/locator"
	"warmstart/internal/logging"
	"warmstart/internal/transport"
)

// clientSentinel selects client mode when it is the literal first argument.
const clientSentinel = "daemon"

type app struct {
	argv0  string
	stdio  transport.Triple
	stderr io.Writer
	exec   func(path string, argv []string, envv []string) error

	status int
}

// invocationError carries what was resolved before a fatal error, for the
// diagnostic block.
type invocationError struct {
	err    error
	report client.Report
}

func (e *invocationError) Error() string { return e.err.Error() }

func (e *invocationError) Unwrap() error { return e.err }

func newRootCommand(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "warmstart [daemon] [args...]",
		Short: "Run a command through a resident warmstart daemon",
		Long: "warmstart daemon ARGS... forwards ARGS and the standard streams to a resident\n" +
			"warmstart-daemon and exits with its status. Any other invocation runs\n" +
			"warmstart-daemon directly with the same arguments.",
		SilenceUsage:       true,
		SilenceErrors:      true,
		DisableFlagParsing: true,
		Args:               cobra.ArbitraryArgs,
		CompletionOptions:  cobra.CompletionOptions{DisableDefaultCmd: true},
		RunE: func(cmd *cobra.Command, args []string) error {
			return a.dispatch(cmd.Context(), args)
		},
	}
}

func (a *app) dispatch(ctx context.Context, args []string) error {
	if len(args) > 0 && args[0] == clientSentinel {
		return a.runClient(ctx, args[1:])
	}
	return a.runExec(args)
}

// isCompletionRequest reports argv that cobra would answer with its hidden
// completion command even with flag parsing disabled.
func isCompletionRequest(args []string) bool {
	return len(args) > 0 && (args[0] == cobra.ShellCompRequestCmd || args[0] == cobra.ShellCompNoDescRequestCmd)
}

func (a *app) runClient(ctx context.Context, args []string) error {
	cfg, _, _, err := config.Load("")
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	logger, err := logging.NewFromConfig(cfg)
	if err != nil {
		return fmt.Errorf("init logger: %w", err)
	}

	status, report, err := client.Run(ctx, client.Options{
		Argv0:   a.argv0,
		Args:    args,
		Stdio:   a.stdio,
		Backlog: cfg.Spawn.ListenBacklog,
		Logger:  logger,
	})
	if err != nil {
		return &invocationError{err: err, report: report}
	}
	a.status = status
	return nil
}

// runExec replaces the process with the daemon binary. It only returns on
// failure.
func (a *app) runExec(args []string) error {
	paths, err := locator.Locate(a.argv0)
	if err != nil {
		return &invocationError{err: err}
	}
	argv := append([]string{locator.DaemonName}, args...)
	if err := a.exec(paths.Daemon, argv, os.Environ()); err != nil {
		return &invocationError{
			err:    fmt.Errorf("exec %s: %w", paths.Daemon, err),
			report: client.Report{Paths: paths},
		}
	}
	return nil
}

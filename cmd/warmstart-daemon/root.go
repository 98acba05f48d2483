package main

import (
	"context"
	"fmt"
	"io"
	"strconv"

	"github.com/spf13/cobra"

	"warmstart/internal/config"
	"warmstart/internal/daemonrun"
	"warmstart/internal/logging"
	"warmstart/internal/stub"
)

// daemonMode is the first argument a spawning client passes, followed by the
// inherited listener descriptor.
const daemonMode = "daemon"

// configInitMode writes a sample configuration file and exits.
const configInitMode = "config-init"

type daemonCommand struct {
	stdin  io.Reader
	stdout io.Writer
	stderr io.Writer

	status int
}

func newRootCommand(d *daemonCommand) *cobra.Command {
	return &cobra.Command{
		Use:   "warmstart-daemon [daemon FD | config-init [PATH] | command args...]",
		Short: "Reference warmstart daemon",
		Long: "warmstart-daemon daemon FD serves warmstart clients on the listening socket\n" +
			"inherited as FD. config-init writes a sample configuration file. Any other\n" +
			"invocation runs a single command in the foreground and exits with its status.",
		SilenceUsage:       true,
		SilenceErrors:      true,
		DisableFlagParsing: true,
		Args:               cobra.ArbitraryArgs,
		CompletionOptions:  cobra.CompletionOptions{DisableDefaultCmd: true},
		RunE: func(cmd *cobra.Command, args []string) error {
			return d.dispatch(cmd.Context(), args)
		},
	}
}

func (d *daemonCommand) dispatch(ctx context.Context, args []string) error {
	if len(args) > 0 {
		switch args[0] {
		case daemonMode:
			return d.serve(ctx, args[1:])
		case configInitMode:
			return d.configInit(args[1:])
		}
	}
	d.status = stub.Run(args, d.stdin, d.stdout, d.stderr)
	return nil
}

// isCompletionRequest reports argv that cobra would answer with its hidden
// completion command even with flag parsing disabled.
func isCompletionRequest(args []string) bool {
	return len(args) > 0 && (args[0] == cobra.ShellCompRequestCmd || args[0] == cobra.ShellCompNoDescRequestCmd)
}

func (d *daemonCommand) serve(ctx context.Context, args []string) error {
	fd, err := parseListenFD(args)
	if err != nil {
		d.status = stub.ExitUsage
		return err
	}

	cfg, _, _, err := config.Load("")
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	logger, err := logging.NewFromConfig(cfg)
	if err != nil {
		return fmt.Errorf("init logger: %w", err)
	}

	return daemonrun.Run(ctx, cfg, daemonrun.Options{
		ListenFD: fd,
		Handler:  stub.Handler(),
		Logger:   logger,
	})
}

func parseListenFD(args []string) (int, error) {
	if len(args) != 1 {
		return 0, fmt.Errorf("usage: warmstart-daemon %s FD", daemonMode)
	}
	fd, err := strconv.Atoi(args[0])
	if err != nil || fd < 0 {
		return 0, fmt.Errorf("invalid listener descriptor %q", args[0])
	}
	return fd, nil
}

// Package client runs one warmstart invocation: it finds the daemon, starting
// it if needed, forwards the arguments and standard streams, and returns the
// status the daemon replied with.
package client

import (
	"context"
	"log/slog"

	"warmstart/internal/daemonctl"
	"warmstart/internal/locator"
	"warmstart/internal/logging"
	"warmstart/internal/relay"
	"warmstart/internal/rendezvous"
	"warmstart/internal/transport"
	"warmstart/internal/wire"
)

// Options configures a single invocation.
type Options struct {
	// Argv0 is the client's own argv[0], used to find the sibling daemon.
	Argv0 string
	// Args are forwarded to the daemon verbatim.
	Args []string
	// Stdio is passed to the daemon; the zero value means the process streams.
	Stdio transport.Triple
	// TempDir overrides the rendezvous directory; empty uses $TMPDIR or /tmp.
	TempDir string
	// Backlog is the listen backlog used if this invocation spawns the daemon.
	Backlog int
	Logger  *slog.Logger
}

// Report records what an invocation resolved and how it reached the daemon.
// Fields are filled in as far as the invocation got.
type Report struct {
	Paths        locator.Paths
	SocketPath   string
	Identity     rendezvous.Identity
	InvocationID string
	Connect      daemonctl.Result
}

// Run performs one invocation. On success the returned status is the daemon's
// status byte. On failure it is relay.ExitFailure and err says why.
func Run(ctx context.Context, opts Options) (int, Report, error) {
	logger, id := logging.WithInvocation(logging.NewComponentLogger(opts.Logger, "client"))
	report := Report{InvocationID: id}

	paths, err := locator.Locate(opts.Argv0)
	if err != nil {
		return relay.ExitFailure, report, err
	}
	report.Paths = paths
	logger = logger.With(logging.String(logging.FieldDaemon, paths.Daemon))

	socketPath, identity, err := rendezvous.Resolve(paths.Daemon, opts.TempDir)
	if err != nil {
		return relay.ExitFailure, report, err
	}
	report.SocketPath = socketPath
	report.Identity = identity
	logger.Debug("socket resolved",
		logging.String(logging.FieldSocket, socketPath),
		logging.Uint64("device", identity.Device),
		logging.Uint64("inode", identity.Inode))

	// Encode before connecting so an oversized request never spawns a daemon.
	payload, err := wire.Encode(opts.Args)
	if err != nil {
		return relay.ExitFailure, report, err
	}

	connector := &daemonctl.Connector{
		SocketPath: socketPath,
		DaemonPath: paths.Daemon,
		Backlog:    opts.Backlog,
		Logger:     logger,
	}
	conn, result, err := connector.Connect(ctx)
	report.Connect = result
	if err != nil {
		return relay.ExitFailure, report, err
	}
	defer conn.Close()

	stdio := opts.Stdio
	if stdio == (transport.Triple{}) {
		stdio = transport.StdTriple()
	}
	if err := transport.Send(conn, payload, stdio); err != nil {
		return relay.ExitFailure, report, err
	}
	logger.Debug("request sent",
		logging.Int("argc", len(opts.Args)),
		logging.Int("bytes", len(payload)),
		logging.Bool("spawned", result.Spawned),
		logging.Bool("lost_race", result.LostRace))

	status, err := relay.Await(conn)
	if err != nil {
		logging.WarnWithContext(logger, "daemon closed the connection without a status", "status_missing",
			logging.Error(err),
			logging.String(logging.FieldImpact, "invocation exits with a generic failure"),
			logging.String(logging.FieldErrorHint, "check the daemon log"))
		return relay.ExitFailure, report, err
	}
	logger.Debug("status received", logging.Int("status", status))
	return status, report, nil
}

// Package daemonrun is the runtime of the reference warmstart daemon: it adopts
// the listener the client handed over, records its pid next to the socket, and
// serves requests until signalled or idle.
package daemonrun

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"warmstart/internal/config"
	"warmstart/internal/ipc"
	"warmstart/internal/logging"
	"warmstart/internal/rendezvous"
)

// DefaultIdleTimeout is how long the daemon stays up without a connection.
const DefaultIdleTimeout = 30 * time.Minute

// Options configures daemon process runtime behavior.
type Options struct {
	ListenFD    int
	Handler     ipc.Handler
	// IdleTimeout of zero means DefaultIdleTimeout; negative disables it.
	IdleTimeout time.Duration
	// Logger overrides the logger built from cfg.
	Logger *slog.Logger
}

// Run serves requests on the inherited listener until ctx is canceled, a
// termination signal arrives, or the idle timeout expires.
func Run(cmdCtx context.Context, cfg *config.Config, opts Options) error {
	if cfg == nil {
		return fmt.Errorf("config is required")
	}
	if opts.Handler == nil {
		return fmt.Errorf("handler is required")
	}

	signalCtx, cancel := signal.NotifyContext(cmdCtx, syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	logger := opts.Logger
	if logger == nil {
		var err error
		logger, err = logging.NewFromConfig(cfg)
		if err != nil {
			return fmt.Errorf("init logger: %w", err)
		}
	}
	sessionID := logging.NewID()
	logger = logging.NewComponentLogger(logger, "daemon").With(
		logging.String(logging.FieldSessionID, sessionID),
		logging.Int(logging.FieldPID, os.Getpid()),
	)

	listener, err := ipc.ListenerFromFD(opts.ListenFD)
	if err != nil {
		return fmt.Errorf("adopt listener: %w", err)
	}
	socketPath := listener.Addr().String()
	logger = logger.With(logging.String(logging.FieldSocket, socketPath))

	var pid *pidFile
	if socketPath != "" {
		pid, err = acquirePIDFile(rendezvous.PIDPath(socketPath))
		if err != nil {
			impact := "diagnostics will not show this daemon's pid"
			if errors.Is(err, ErrPIDLocked) {
				impact = "another daemon owns the pid file; diagnostics may show its pid"
			}
			logging.WarnWithContext(logger, "pid file unavailable", "pidfile_unavailable",
				logging.Error(err),
				logging.String(logging.FieldImpact, impact))
		}
	}
	defer func() {
		if err := pid.release(); err != nil {
			logger.Debug("pid file cleanup failed", logging.Error(err))
		}
	}()

	idle := opts.IdleTimeout
	if idle == 0 {
		idle = DefaultIdleTimeout
	}
	server, err := ipc.NewServer(signalCtx, listener, opts.Handler, logger, ipc.WithIdleTimeout(idle))
	if err != nil {
		listener.Close()
		return fmt.Errorf("start ipc server: %w", err)
	}
	defer server.Close()

	logger.Info("warmstart daemon started",
		logging.String(logging.FieldEventType, "daemon_started"),
		logging.Duration("idle_timeout", idle))
	server.Serve()

	select {
	case <-signalCtx.Done():
	case <-server.Done():
	}
	logger.Info("warmstart daemon shutting down",
		logging.String(logging.FieldEventType, "daemon_stopped"),
		logging.Int("requests_served", server.Served()))
	return nil
}

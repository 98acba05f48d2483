package testsupport

import (
	"context"
	"os"
	"path/filepath"
	"strconv"
	"syscall"
	"testing"
	"time"

	"warmstart/internal/config"
	"warmstart/internal/daemonctl"
	"warmstart/internal/daemonrun"
	"warmstart/internal/locator"
	"warmstart/internal/logging"
	"warmstart/internal/rendezvous"
	"warmstart/internal/stub"
)

// StubDaemonEnv makes a test binary behave as the reference daemon when it is
// spawned with the daemon argument convention.
const StubDaemonEnv = "WARMSTART_STUB_DAEMON"

const stubIdleTimeout = 15 * time.Second

// RunStubDaemonIfRequested turns the current test binary into a stub daemon
// when it was spawned by a client under test. Call it first in TestMain; it
// only returns when the process is a regular test run.
func RunStubDaemonIfRequested() {
	if os.Getenv(StubDaemonEnv) != "1" || len(os.Args) < 2 {
		return
	}
	if os.Args[1] != "daemon" {
		os.Exit(stub.Run(os.Args[1:], os.Stdin, os.Stdout, os.Stderr))
	}
	if len(os.Args) != 3 {
		os.Exit(2)
	}
	fd, err := strconv.Atoi(os.Args[2])
	if err != nil {
		os.Exit(2)
	}

	cfg := config.Default()
	logger := logging.NewNop()
	if path := os.Getenv("WARMSTART_LOG_FILE"); path != "" {
		cfg.Logging.File = path
		cfg.Logging.Level = "debug"
		if l, err := logging.NewFromConfig(&cfg); err == nil {
			logger = l
		}
	}
	err = daemonrun.Run(context.Background(), &cfg, daemonrun.Options{
		ListenFD:    fd,
		Handler:     stub.Handler(),
		IdleTimeout: stubIdleTimeout,
		Logger:      logger,
	})
	if err != nil {
		os.Exit(1)
	}
	os.Exit(0)
}

// Install is a client/daemon pair laid out the way a real installation is.
type Install struct {
	Dir    string
	Client string
	Daemon string
	// TempDir is where sockets are placed; pass it as the rendezvous tmpdir.
	TempDir string
}

// SocketPath is the rendezvous path clients of this install use.
func (in Install) SocketPath(t testing.TB) string {
	t.Helper()
	path, _, err := rendezvous.Resolve(in.Daemon, in.TempDir)
	if err != nil {
		t.Fatalf("resolve socket path: %v", err)
	}
	return path
}

// InstallStubDaemon lays out a client placeholder and a warmstart-daemon
// symlink to the running test binary in a short socket directory. The test
// binary must call RunStubDaemonIfRequested from TestMain. Daemons spawned
// during the test are terminated at cleanup.
func InstallStubDaemon(t testing.TB) Install {
	t.Helper()

	self, err := os.Executable()
	if err != nil {
		t.Fatalf("resolve test binary: %v", err)
	}
	dir := SocketDir(t)
	if resolved, err := filepath.EvalSymlinks(dir); err == nil {
		dir = resolved
	}

	client := filepath.Join(dir, "warmstart")
	if err := os.WriteFile(client, []byte("#!/bin/sh\nexit 1\n"), 0o755); err != nil {
		t.Fatalf("write client placeholder: %v", err)
	}
	daemon := filepath.Join(dir, locator.DaemonName)
	if err := os.Symlink(self, daemon); err != nil {
		t.Fatalf("link stub daemon: %v", err)
	}

	t.Setenv(StubDaemonEnv, "1")

	in := Install{Dir: dir, Client: client, Daemon: daemon, TempDir: dir}
	socket := in.SocketPath(t)
	t.Cleanup(func() {
		StopDaemon(socket)
	})
	return in
}

// WaitForPID polls for the daemon's pid file.
func WaitForPID(t testing.TB, socketPath string, timeout time.Duration) int {
	t.Helper()
	deadline := time.Now().Add(timeout)
	for {
		pid, err := daemonctl.ReadPID(socketPath)
		if err == nil {
			return pid
		}
		if time.Now().After(deadline) {
			t.Fatalf("daemon pid file for %s not written: %v", socketPath, err)
		}
		time.Sleep(10 * time.Millisecond)
	}
}

// StopDaemon terminates the daemon recorded for socketPath, if any.
func StopDaemon(socketPath string) {
	pid, err := daemonctl.ReadPID(socketPath)
	if err != nil || pid <= 0 {
		return
	}
	_ = syscall.Kill(pid, syscall.SIGTERM)
}

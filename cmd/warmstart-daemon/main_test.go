package main

import (
	"bytes"
	"context"
	"net"
	"path/filepath"
	"strconv"
	"strings"
	"testing"
	"time"

	"warmstart/internal/stub"
	"warmstart/internal/testsupport"
)

func isolateConfig(t *testing.T) {
	t.Helper()
	t.Setenv("HOME", t.TempDir())
	t.Setenv("WARMSTART_CONFIG", filepath.Join(t.TempDir(), "absent.toml"))
	t.Setenv("WARMSTART_LOG_LEVEL", "")
	t.Setenv("WARMSTART_LOG_FORMAT", "")
	t.Setenv("WARMSTART_LOG_FILE", filepath.Join(t.TempDir(), "daemon.log"))
}

func TestForegroundCommands(t *testing.T) {
	tests := []struct {
		name   string
		args   []string
		stdin  string
		status int
		stdout string
		stderr string
	}{
		{name: "version", args: []string{"-version"}, stdout: "warmstart-daemon " + stub.Version + "\n"},
		{name: "echo keeps flag-like words", args: []string{"-echo", "--help", "-v"}, stdout: "--help -v\n"},
		{name: "cat", args: []string{"-cat"}, stdin: "piped", stdout: "piped"},
		{name: "exit status", args: []string{"-exit", "42"}, status: 42},
		{name: "no command", status: stub.ExitUsage, stderr: "no command"},
		{name: "unknown", args: []string{"-query", "foo.ml"}, status: stub.ExitUsage, stderr: "unknown command"},
		{name: "completion request is a command", args: []string{"__complete", "x"}, status: stub.ExitUsage, stderr: "unknown command"},
		{name: "completion request without descriptions", args: []string{"__completeNoDesc"}, status: stub.ExitUsage, stderr: "unknown command"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var stdout, stderr bytes.Buffer
			status := execute(context.Background(), tt.args, strings.NewReader(tt.stdin), &stdout, &stderr)
			if status != tt.status {
				t.Fatalf("status = %d, want %d (stderr %q)", status, tt.status, stderr.String())
			}
			if stdout.String() != tt.stdout {
				t.Fatalf("stdout = %q, want %q", stdout.String(), tt.stdout)
			}
			if !strings.Contains(stderr.String(), tt.stderr) {
				t.Fatalf("stderr = %q, want it to contain %q", stderr.String(), tt.stderr)
			}
		})
	}
}

func TestDaemonModeRejectsBadDescriptor(t *testing.T) {
	for _, args := range [][]string{
		{"daemon"},
		{"daemon", "x"},
		{"daemon", "-1"},
		{"daemon", "3", "extra"},
	} {
		var stderr bytes.Buffer
		status := execute(context.Background(), args, strings.NewReader(""), &bytes.Buffer{}, &stderr)
		if status != stub.ExitUsage {
			t.Fatalf("%q: status = %d, want %d", args, status, stub.ExitUsage)
		}
		if !strings.HasPrefix(stderr.String(), "warmstart-daemon: ") {
			t.Fatalf("%q: stderr = %q", args, stderr.String())
		}
	}
}

func TestDaemonModeServesInheritedListener(t *testing.T) {
	isolateConfig(t)
	socket := filepath.Join(testsupport.SocketDir(t), "warmstart_1_1.socket")
	fd := testsupport.ListenFD(t, socket)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	done := make(chan int, 1)
	go func() {
		done <- execute(ctx, []string{"daemon", strconv.Itoa(fd)}, strings.NewReader(""), &bytes.Buffer{}, &bytes.Buffer{})
	}()

	conn, err := net.DialUnix("unix", nil, &net.UnixAddr{Name: socket, Net: "unix"})
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	defer conn.Close()
	status, stdout, _ := testsupport.Exchange(t, conn, "from client", "-cat")
	if status != 0 || stdout != "from client" {
		t.Fatalf("got status %d stdout %q", status, stdout)
	}

	cancel()
	select {
	case status := <-done:
		if status != 0 {
			t.Fatalf("daemon exit status = %d", status)
		}
	case <-time.After(5 * time.Second):
		t.Fatal("daemon did not stop")
	}
}

func TestDaemonModeInvalidListener(t *testing.T) {
	isolateConfig(t)
	r, _ := testsupport.Pipe(t)

	var stderr bytes.Buffer
	status := execute(context.Background(), []string{"daemon", strconv.Itoa(int(r.Fd()))}, strings.NewReader(""), &bytes.Buffer{}, &stderr)
	if status != 1 {
		t.Fatalf("status = %d, want 1", status)
	}
	if !strings.Contains(stderr.String(), "adopt listener") {
		t.Fatalf("stderr = %q", stderr.String())
	}
}

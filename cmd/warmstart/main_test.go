package main

import (
	"bytes"
	"errors"
	"io"
	"os"
	"path/filepath"
	"slices"
	"strings"
	"testing"

	"warmstart/internal/client"
	"warmstart/internal/locator"
	"warmstart/internal/rendezvous"
	"warmstart/internal/stub"
	"warmstart/internal/testsupport"
	"warmstart/internal/transport"
)

func TestMain(m *testing.M) {
	testsupport.RunStubDaemonIfRequested()
	os.Exit(m.Run())
}

type harness struct {
	app    *app
	stderr *bytes.Buffer
	stdout *os.File
	outW   *os.File
	execs  [][]string
}

func newHarness(t *testing.T, argv0 string) *harness {
	t.Helper()
	t.Setenv("HOME", t.TempDir())
	t.Setenv("WARMSTART_CONFIG", filepath.Join(t.TempDir(), "absent.toml"))
	for _, key := range []string{"WARMSTART_LOG_LEVEL", "WARMSTART_LOG_FORMAT", "WARMSTART_LOG_FILE"} {
		t.Setenv(key, "")
	}

	inR, inW := testsupport.Pipe(t)
	_ = inW.Close()
	outR, outW := testsupport.Pipe(t)
	_, errW := testsupport.Pipe(t)

	h := &harness{stderr: &bytes.Buffer{}, stdout: outR, outW: outW}
	h.app = &app{
		argv0:  argv0,
		stdio:  transport.Triple{Stdin: inR, Stdout: outW, Stderr: errW},
		stderr: h.stderr,
		exec: func(path string, argv []string, _ []string) error {
			h.execs = append(h.execs, append([]string{path}, argv...))
			return nil
		},
	}
	return h
}

func (h *harness) output(t *testing.T) string {
	t.Helper()
	_ = h.outW.Close()
	data, err := io.ReadAll(h.stdout)
	if err != nil {
		t.Fatalf("read stdout: %v", err)
	}
	return string(data)
}

func TestClientModeColdStart(t *testing.T) {
	in := testsupport.InstallStubDaemon(t)
	h := newHarness(t, in.Client)
	t.Setenv("TMPDIR", in.TempDir)

	if status := execute(h.app, []string{"daemon", "-version"}); status != 0 {
		t.Fatalf("status = %d, stderr %q", status, h.stderr.String())
	}
	if got := h.output(t); got != "warmstart-daemon "+stub.Version+"\n" {
		t.Fatalf("stdout = %q", got)
	}
	if len(h.execs) != 0 {
		t.Fatalf("client mode must not exec, got %q", h.execs)
	}
}

func TestClientModeWarmDaemon(t *testing.T) {
	in := testsupport.InstallStubDaemon(t)
	h := newHarness(t, in.Client)
	t.Setenv("TMPDIR", in.TempDir)
	testsupport.ServeInProcess(t, in.SocketPath(t), stub.Handler())

	if status := execute(h.app, []string{"daemon", "-query", "foo.ml"}); status != 2 {
		t.Fatalf("status = %d, want 2 (stderr %q)", status, h.stderr.String())
	}
	if h.stderr.Len() != 0 {
		t.Fatalf("client wrote to stderr on success: %q", h.stderr.String())
	}
}

func TestExecModeForwardsArgumentsVerbatim(t *testing.T) {
	in := testsupport.InstallStubDaemon(t)
	h := newHarness(t, in.Client)

	args := []string{"-query", "--help", "daemon", ""}
	if status := execute(h.app, args); status != 0 {
		t.Fatalf("status = %d, stderr %q", status, h.stderr.String())
	}
	if len(h.execs) != 1 {
		t.Fatalf("expected one exec, got %q", h.execs)
	}
	want := append([]string{in.Daemon, locator.DaemonName}, args...)
	if !slices.Equal(h.execs[0], want) {
		t.Fatalf("exec = %q, want %q", h.execs[0], want)
	}
}

func TestExecModeForwardsCompletionRequests(t *testing.T) {
	for _, args := range [][]string{
		{"__complete", "x"},
		{"__completeNoDesc"},
		{"__complete", "daemon", ""},
	} {
		in := testsupport.InstallStubDaemon(t)
		h := newHarness(t, in.Client)

		if status := execute(h.app, args); status != 0 {
			t.Fatalf("%q: status = %d, stderr %q", args, status, h.stderr.String())
		}
		want := append([]string{in.Daemon, locator.DaemonName}, args...)
		if len(h.execs) != 1 || !slices.Equal(h.execs[0], want) {
			t.Fatalf("%q: exec = %q, want %q", args, h.execs, want)
		}
	}
}

func TestExecModeWithoutArguments(t *testing.T) {
	in := testsupport.InstallStubDaemon(t)
	h := newHarness(t, in.Client)

	execute(h.app, nil)
	if len(h.execs) != 1 || !slices.Equal(h.execs[0], []string{in.Daemon, locator.DaemonName}) {
		t.Fatalf("exec = %q", h.execs)
	}
}

func TestExecFailureIsFatal(t *testing.T) {
	in := testsupport.InstallStubDaemon(t)
	h := newHarness(t, in.Client)
	h.app.exec = func(string, []string, []string) error { return os.ErrPermission }

	if status := execute(h.app, []string{"-version"}); status != 1 {
		t.Fatalf("status = %d, want 1", status)
	}
	out := h.stderr.String()
	if !strings.HasPrefix(out, "warmstart: exec "+in.Daemon) {
		t.Fatalf("stderr = %q", out)
	}
	if !strings.Contains(out, "daemon: "+in.Daemon+"\n") || !strings.Contains(out, "socket: (unresolved)\n") {
		t.Fatalf("missing diagnostics in %q", out)
	}
}

func TestClientModeMissingDaemonPrintsDiagnostics(t *testing.T) {
	dir, err := filepath.EvalSymlinks(testsupport.SocketDir(t))
	if err != nil {
		t.Fatalf("resolve dir: %v", err)
	}
	clientPath := filepath.Join(dir, "warmstart")
	if err := os.WriteFile(clientPath, nil, 0o755); err != nil {
		t.Fatalf("write client: %v", err)
	}
	h := newHarness(t, clientPath)
	t.Setenv("TMPDIR", dir)

	if status := execute(h.app, []string{"daemon", "-version"}); status != 1 {
		t.Fatalf("status = %d, want 1", status)
	}
	out := h.stderr.String()
	for _, want := range []string{
		"warmstart: stat " + filepath.Join(dir, "warmstart-daemon"),
		"client: " + clientPath + "\n",
		"daemon: " + filepath.Join(dir, "warmstart-daemon") + "\n",
		"socket: (unresolved)\n",
		"daemon pid: unknown\n",
	} {
		if !strings.Contains(out, want) {
			t.Fatalf("expected %q in %q", want, out)
		}
	}
}

func TestClientModeInvalidConfigIsFatal(t *testing.T) {
	in := testsupport.InstallStubDaemon(t)
	h := newHarness(t, in.Client)
	t.Setenv("WARMSTART_LOG_LEVEL", "loud")

	if status := execute(h.app, []string{"daemon", "-version"}); status != 1 {
		t.Fatalf("status = %d, want 1", status)
	}
	if !strings.Contains(h.stderr.String(), "logging.level") {
		t.Fatalf("stderr = %q", h.stderr.String())
	}
}

func TestCollectDiagnosticsReadsPID(t *testing.T) {
	socket := filepath.Join(t.TempDir(), "warmstart_1_2.socket")
	if err := os.WriteFile(rendezvous.PIDPath(socket), []byte("321\n"), 0o644); err != nil {
		t.Fatalf("write pid: %v", err)
	}
	d := collectDiagnostics(client.Report{SocketPath: socket})
	if d.PID != 321 {
		t.Fatalf("PID = %d, want 321", d.PID)
	}
	var buf bytes.Buffer
	writeDiagnostics(&buf, d)
	if !strings.Contains(buf.String(), "daemon pid: 321\n") {
		t.Fatalf("diagnostics = %q", buf.String())
	}
}

func TestRenderTableUsesRoundedStyle(t *testing.T) {
	out := renderTable([]string{"Item", "Value"}, diagnostics{Client: "/usr/bin/warmstart"}.rows())
	for _, want := range []string{"╭", "╯", "/usr/bin/warmstart", "(unresolved)"} {
		if !strings.Contains(out, want) {
			t.Fatalf("expected %q in table:\n%s", want, out)
		}
	}
	if renderTable(nil, nil) != "" {
		t.Fatal("expected empty output without headers")
	}
}

func TestInvocationErrorUnwraps(t *testing.T) {
	err := &invocationError{err: rendezvous.ErrDaemonMissing}
	if !errors.Is(err, rendezvous.ErrDaemonMissing) {
		t.Fatal("invocationError must unwrap to its cause")
	}
}

package locator

import (
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func writeExecutable(t *testing.T, path string) {
	t.Helper()
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		t.Fatalf("mkdir: %v", err)
	}
	if err := os.WriteFile(path, []byte("#!/bin/sh\nexit 0\n"), 0o755); err != nil {
		t.Fatalf("write %s: %v", path, err)
	}
}

func evalDir(t *testing.T, dir string) string {
	t.Helper()
	resolved, err := filepath.EvalSymlinks(dir)
	if err != nil {
		t.Fatalf("EvalSymlinks(%s): %v", dir, err)
	}
	return resolved
}

func noLookPath(string) (string, error) { return "", errors.New("not found") }

func noExecutable() (string, error) { return "", errors.New("no executable") }

func TestLocateResolvesSymlinkToRealDirectory(t *testing.T) {
	base := evalDir(t, t.TempDir())
	target := filepath.Join(base, "opt", "bin", "warmstart")
	writeExecutable(t, target)

	link := filepath.Join(base, "usr", "bin", "warmstart")
	if err := os.MkdirAll(filepath.Dir(link), 0o755); err != nil {
		t.Fatalf("mkdir: %v", err)
	}
	if err := os.Symlink(target, link); err != nil {
		t.Fatalf("symlink: %v", err)
	}

	paths, err := locate(link, noLookPath, noExecutable)
	if err != nil {
		t.Fatalf("locate: %v", err)
	}
	if paths.Client != target {
		t.Fatalf("expected client %q, got %q", target, paths.Client)
	}
	if want := filepath.Join(base, "opt", "bin", DaemonName); paths.Daemon != want {
		t.Fatalf("expected daemon %q, got %q", want, paths.Daemon)
	}
}

func TestLocateRelativePath(t *testing.T) {
	base := evalDir(t, t.TempDir())
	writeExecutable(t, filepath.Join(base, "bin", "warmstart"))
	t.Chdir(base)

	paths, err := locate("./bin/../bin/warmstart", noLookPath, noExecutable)
	if err != nil {
		t.Fatalf("locate: %v", err)
	}
	if want := filepath.Join(base, "bin", DaemonName); paths.Daemon != want {
		t.Fatalf("expected daemon %q, got %q", want, paths.Daemon)
	}
}

func TestLocateBareNameUsesPath(t *testing.T) {
	base := evalDir(t, t.TempDir())
	onPath := filepath.Join(base, "path", "warmstart")
	writeExecutable(t, onPath)

	lookPath := func(name string) (string, error) {
		if name != "warmstart" {
			t.Fatalf("unexpected lookup %q", name)
		}
		return onPath, nil
	}
	paths, err := locate("warmstart", lookPath, noExecutable)
	if err != nil {
		t.Fatalf("locate: %v", err)
	}
	if paths.Client != onPath {
		t.Fatalf("expected %q, got %q", onPath, paths.Client)
	}
}

func TestLocateFallsBackToRunningExecutable(t *testing.T) {
	base := evalDir(t, t.TempDir())
	self := filepath.Join(base, "self", "warmstart")
	writeExecutable(t, self)

	executable := func() (string, error) { return self, nil }
	paths, err := locate("warmstart", noLookPath, executable)
	if err != nil {
		t.Fatalf("locate: %v", err)
	}
	if paths.Client != self {
		t.Fatalf("expected %q, got %q", self, paths.Client)
	}

	paths, err = locate("", noLookPath, executable)
	if err != nil {
		t.Fatalf("locate with empty argv0: %v", err)
	}
	if paths.Client != self {
		t.Fatalf("expected %q for empty argv0, got %q", self, paths.Client)
	}
}

func TestLocateRemovedBinary(t *testing.T) {
	gone := filepath.Join(t.TempDir(), "warmstart")
	_, err := locate(gone, noLookPath, noExecutable)
	if !errors.Is(err, ErrUnresolvable) {
		t.Fatalf("expected ErrUnresolvable, got %v", err)
	}

	_, err = locate("warmstart", noLookPath, noExecutable)
	if !errors.Is(err, ErrUnresolvable) {
		t.Fatalf("expected ErrUnresolvable when nothing resolves, got %v", err)
	}
}

func TestSiblingRejectsOverlongPath(t *testing.T) {
	client := "/" + strings.Repeat("a", 5000) + "/warmstart"
	if _, err := Sibling(client); !errors.Is(err, ErrPathTooLong) {
		t.Fatalf("expected ErrPathTooLong, got %v", err)
	}
}

func TestLocateRealBinary(t *testing.T) {
	self, err := os.Executable()
	if err != nil {
		t.Skipf("os.Executable unavailable: %v", err)
	}
	paths, err := Locate(self)
	if err != nil {
		t.Fatalf("Locate: %v", err)
	}
	if filepath.Base(paths.Daemon) != DaemonName {
		t.Fatalf("unexpected daemon name %q", paths.Daemon)
	}
	if !filepath.IsAbs(paths.Client) {
		t.Fatalf("expected absolute client path, got %q", paths.Client)
	}
}

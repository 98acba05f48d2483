// Package locator finds the client binary on disk and the daemon binary that
// is installed next to it.
package locator

import (
	"errors"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strings"

	"golang.org/x/sys/unix"
)

// DaemonName is the fixed file name of the daemon executable, installed in
// the same directory as the client.
const DaemonName = "warmstart-daemon"

var (
	// ErrUnresolvable reports that the client's own path could not be resolved.
	ErrUnresolvable = errors.New("cannot resolve client executable path")
	// ErrPathTooLong reports a derived daemon path beyond the platform limit.
	ErrPathTooLong = errors.New("path is too long")
)

// Paths holds the resolved client and daemon executables.
type Paths struct {
	Client string
	Daemon string
}

// Locate resolves argv0 to an absolute, symlink-free client path and derives
// the sibling daemon path.
func Locate(argv0 string) (Paths, error) {
	return locate(argv0, exec.LookPath, os.Executable)
}

func locate(argv0 string, lookPath func(string) (string, error), executable func() (string, error)) (Paths, error) {
	client, err := resolveClient(argv0, lookPath, executable)
	if err != nil {
		return Paths{}, err
	}
	return Sibling(client)
}

// Sibling derives the daemon path from an already resolved client path.
func Sibling(client string) (Paths, error) {
	daemon := filepath.Join(filepath.Dir(client), DaemonName)
	if len(daemon) >= unix.PathMax {
		return Paths{}, fmt.Errorf("%w: %d bytes", ErrPathTooLong, len(daemon))
	}
	return Paths{Client: client, Daemon: daemon}, nil
}

func resolveClient(argv0 string, lookPath func(string) (string, error), executable func() (string, error)) (string, error) {
	candidate := strings.TrimSpace(argv0)
	if candidate != "" && !strings.ContainsRune(candidate, filepath.Separator) {
		if found, err := lookPath(candidate); err == nil {
			candidate = found
		} else {
			candidate = ""
		}
	}
	if candidate == "" {
		self, err := executable()
		if err != nil {
			return "", fmt.Errorf("%w: %w", ErrUnresolvable, err)
		}
		candidate = self
	}
	return realpath(candidate)
}

func realpath(path string) (string, error) {
	abs, err := filepath.Abs(path)
	if err != nil {
		return "", fmt.Errorf("%w: %s: %w", ErrUnresolvable, path, err)
	}
	resolved, err := filepath.EvalSymlinks(abs)
	if err != nil {
		return "", fmt.Errorf("%w: %s: %w", ErrUnresolvable, path, err)
	}
	return resolved, nil
}

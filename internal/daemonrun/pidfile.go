package daemonrun

import (
	"errors"
	"fmt"
	"os"
	"strconv"

	"github.com/gofrs/flock"
)

// ErrPIDLocked reports a pid file held by another live daemon.
var ErrPIDLocked = errors.New("pid file locked by another daemon")

type pidFile struct {
	path string
	lock *flock.Flock
}

// acquirePIDFile locks path and records the current pid in it.
func acquirePIDFile(path string) (*pidFile, error) {
	lock := flock.New(path)
	ok, err := lock.TryLock()
	if err != nil {
		return nil, fmt.Errorf("lock pid file: %w", err)
	}
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrPIDLocked, path)
	}

	value := strconv.Itoa(os.Getpid()) + "\n"
	if err := os.WriteFile(path, []byte(value), 0o644); err != nil {
		_ = lock.Unlock()
		return nil, fmt.Errorf("write pid file: %w", err)
	}
	return &pidFile{path: path, lock: lock}, nil
}

func (p *pidFile) release() error {
	if p == nil {
		return nil
	}
	removeErr := os.Remove(p.path)
	if errors.Is(removeErr, os.ErrNotExist) {
		removeErr = nil
	}
	return errors.Join(removeErr, p.lock.Unlock())
}

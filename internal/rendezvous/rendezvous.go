// Package rendezvous derives the Unix socket path that a client and its daemon
// agree on without talking to each other first.
//
// The path is keyed by the daemon binary's (device, inode) identity. Two
// installed daemons never share a socket, and reinstalling a daemon (which
// yields a new inode) moves every client onto a fresh socket so nobody keeps
// talking to a process running the old binary.
package rendezvous

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"golang.org/x/sys/unix"
)

const (
	// SocketPrefix is the fixed leading component of every socket file name.
	SocketPrefix = "warmstart"
	// DefaultTempDir is used when TMPDIR is unset.
	DefaultTempDir = "/tmp"
)

var (
	// ErrDaemonMissing reports a daemon binary that cannot be stat'ed.
	ErrDaemonMissing = errors.New("cannot find daemon binary")
	// ErrSocketPathTooLong reports a socket path that does not fit in sun_path.
	ErrSocketPathTooLong = errors.New("socket path too long")
)

// Identity is the filesystem identity of the daemon executable.
type Identity struct {
	Device uint64
	Inode  uint64
}

// Stat returns the identity of the file at path, following symlinks.
func Stat(path string) (Identity, error) {
	var st unix.Stat_t
	for {
		err := unix.Stat(path, &st)
		if err == unix.EINTR {
			continue
		}
		if err != nil {
			return Identity{}, fmt.Errorf("stat %s: %w: %w", path, ErrDaemonMissing, err)
		}
		break
	}
	return Identity{Device: uint64(st.Dev), Inode: uint64(st.Ino)}, nil
}

// TempDir returns $TMPDIR when set, otherwise DefaultTempDir.
func TempDir() string {
	if dir := strings.TrimSpace(os.Getenv("TMPDIR")); dir != "" {
		return dir
	}
	return DefaultTempDir
}

// SocketPath composes <tmpdir>/warmstart_<device>_<inode>.socket.
func SocketPath(id Identity, tmpdir string) string {
	name := fmt.Sprintf("%s_%d_%d.socket", SocketPrefix, id.Device, id.Inode)
	return filepath.Join(tmpdir, name)
}

// PIDPath is where a daemon serving socketPath records its process id.
func PIDPath(socketPath string) string {
	return socketPath + ".pid"
}

// Resolve stats the daemon and returns the socket path for it under tmpdir.
// An empty tmpdir means TempDir().
func Resolve(daemonPath, tmpdir string) (string, Identity, error) {
	id, err := Stat(daemonPath)
	if err != nil {
		return "", Identity{}, err
	}
	if tmpdir == "" {
		tmpdir = TempDir()
	}
	path := SocketPath(id, tmpdir)
	if len(path) >= maxSocketPath {
		return "", id, fmt.Errorf("%w: %q is %d bytes, limit is %d", ErrSocketPathTooLong, path, len(path), maxSocketPath-1)
	}
	return path, id, nil
}

// maxSocketPath is sizeof(sockaddr_un.sun_path); one byte is kept for the NUL.
var maxSocketPath = len(unix.RawSockaddrUnix{}.Path)

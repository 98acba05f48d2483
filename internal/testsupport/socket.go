package testsupport

import (
	"context"
	"io"
	"net"
	"os"
	"testing"

	"golang.org/x/sys/unix"

	"warmstart/internal/ipc"
	"warmstart/internal/logging"
	"warmstart/internal/relay"
	"warmstart/internal/transport"
	"warmstart/internal/wire"
)

// SocketDir creates a temporary directory suitable for Unix domain sockets.
// t.TempDir paths can exceed the sun_path limit, so the directory is created
// directly in /tmp and removed when the test completes.
func SocketDir(t testing.TB) string {
	t.Helper()
	dir, err := os.MkdirTemp("/tmp", "warmstart-test-*")
	if err != nil {
		t.Fatalf("creating socket directory: %v", err)
	}
	t.Cleanup(func() {
		_ = os.RemoveAll(dir)
	})
	return dir
}

// UnixPair returns both ends of a connected Unix stream socket pair.
func UnixPair(t testing.TB) (*net.UnixConn, *net.UnixConn) {
	t.Helper()
	fds, err := unix.Socketpair(unix.AF_UNIX, unix.SOCK_STREAM|unix.SOCK_CLOEXEC, 0)
	if err != nil {
		t.Fatalf("socketpair: %v", err)
	}
	left := fileConn(t, fds[0], "left")
	right := fileConn(t, fds[1], "right")
	return left, right
}

func fileConn(t testing.TB, fd int, name string) *net.UnixConn {
	t.Helper()
	file := os.NewFile(uintptr(fd), "socketpair-"+name)
	defer file.Close()
	conn, err := net.FileConn(file)
	if err != nil {
		t.Fatalf("socketpair %s: %v", name, err)
	}
	unixConn, ok := conn.(*net.UnixConn)
	if !ok {
		t.Fatalf("socketpair %s: unexpected conn type %T", name, conn)
	}
	t.Cleanup(func() {
		_ = unixConn.Close()
	})
	return unixConn
}

// Pipe returns an os.Pipe whose ends are closed at cleanup.
func Pipe(t testing.TB) (*os.File, *os.File) {
	t.Helper()
	r, w, err := os.Pipe()
	if err != nil {
		t.Fatalf("pipe: %v", err)
	}
	t.Cleanup(func() {
		_ = r.Close()
		_ = w.Close()
	})
	return r, w
}

// ServeInProcess listens on socketPath and serves handler from the test
// process, standing in for a daemon that is already running.
func ServeInProcess(t testing.TB, socketPath string, handler ipc.Handler) *ipc.Server {
	t.Helper()
	ln, err := net.ListenUnix("unix", &net.UnixAddr{Name: socketPath, Net: "unix"})
	if err != nil {
		t.Fatalf("listen %s: %v", socketPath, err)
	}
	ctx, cancel := context.WithCancel(context.Background())
	server, err := ipc.NewServer(ctx, ln, handler, logging.NewNop())
	if err != nil {
		cancel()
		ln.Close()
		t.Fatalf("ipc.NewServer: %v", err)
	}
	server.Serve()
	t.Cleanup(func() {
		cancel()
		server.Close()
	})
	return server
}

// Exchange sends one request on conn with pipe-backed standard streams and
// returns the status byte along with what the daemon wrote to stdout and
// stderr.
func Exchange(t testing.TB, conn *net.UnixConn, stdin string, args ...string) (int, string, string) {
	t.Helper()

	payload, err := wire.Encode(args)
	if err != nil {
		t.Fatalf("encode %q: %v", args, err)
	}
	inR, inW := Pipe(t)
	outR, outW := Pipe(t)
	errR, errW := Pipe(t)

	go func() {
		_, _ = io.WriteString(inW, stdin)
		_ = inW.Close()
	}()

	if err := transport.Send(conn, payload, transport.Triple{Stdin: inR, Stdout: outW, Stderr: errW}); err != nil {
		t.Fatalf("send %q: %v", args, err)
	}
	status, err := relay.Await(conn)
	if err != nil {
		t.Fatalf("await status for %q: %v", args, err)
	}

	_ = outW.Close()
	_ = errW.Close()
	stdout, err := io.ReadAll(outR)
	if err != nil {
		t.Fatalf("read stdout: %v", err)
	}
	stderr, err := io.ReadAll(errR)
	if err != nil {
		t.Fatalf("read stderr: %v", err)
	}
	return status, string(stdout), string(stderr)
}

// ListenFD binds and listens on socketPath with a raw descriptor, the way a
// client hands a listener to a daemon it spawns. Ownership of the descriptor
// passes to the caller; only the socket file is removed at cleanup.
func ListenFD(t testing.TB, socketPath string) int {
	t.Helper()
	fd, err := unix.Socket(unix.AF_UNIX, unix.SOCK_STREAM, 0)
	if err != nil {
		t.Fatalf("socket: %v", err)
	}
	if err := unix.Bind(fd, &unix.SockaddrUnix{Name: socketPath}); err != nil {
		_ = unix.Close(fd)
		t.Fatalf("bind %s: %v", socketPath, err)
	}
	if err := unix.Listen(fd, 5); err != nil {
		_ = unix.Close(fd)
		t.Fatalf("listen %s: %v", socketPath, err)
	}
	t.Cleanup(func() {
		_ = os.Remove(socketPath)
	})
	return fd
}

package daemonctl

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"os"
	"time"

	"golang.org/x/sys/unix"

	"warmstart/internal/logging"
)

// DefaultBacklog is the listen backlog used when the Connector has none set.
const DefaultBacklog = 5

const (
	dialBackoffMin = 2 * time.Millisecond
	dialBackoffMax = 100 * time.Millisecond
	// redialAttempts bounds the retries after a spawn or a lost race while
	// the winning client's socket is not yet listening, or was replaced.
	redialAttempts = 10
)

var (
	// ErrUnavailable reports that no daemon could be reached, even after a
	// spawn attempt or a lost spawn race.
	ErrUnavailable = errors.New("daemon unavailable")
	// ErrSpawn reports a failed socket, bind, listen, or process start.
	ErrSpawn = errors.New("spawn daemon")
)

// Result records how the connection was obtained.
type Result struct {
	// Spawned is set when this client started the daemon.
	Spawned bool
	// LostRace is set when another client bound the socket first.
	LostRace bool
	// RemovedStale is set when a socket file with no listener was removed.
	RemovedStale bool
}

// Connector connects to the daemon serving SocketPath, spawning DaemonPath
// when nothing is listening.
type Connector struct {
	SocketPath string
	DaemonPath string
	Backlog    int
	Logger     *slog.Logger
}

// Connect returns a connection to a daemon that will accept requests.
func (c *Connector) Connect(ctx context.Context) (*net.UnixConn, Result, error) {
	var res Result
	logger := c.logger()

	conn, err := c.dial(ctx)
	if err == nil {
		logger.Debug("connected to running daemon")
		return conn, res, nil
	}
	if ctx.Err() != nil {
		return nil, res, fmt.Errorf("%w: %w", ErrUnavailable, err)
	}
	logger.Debug("no daemon listening", logging.Error(err))

	if errors.Is(err, unix.ECONNREFUSED) {
		if rmErr := os.Remove(c.SocketPath); rmErr == nil {
			res.RemovedStale = true
			logger.Debug("removed stale socket")
		} else if !errors.Is(rmErr, os.ErrNotExist) {
			logger.Debug("stale socket removal failed", logging.Error(rmErr))
		}
	}

	fd, err := c.listen()
	if errors.Is(err, unix.EADDRINUSE) {
		res.LostRace = true
		logger.Debug("another client is starting the daemon")
		conn, err := c.redial(ctx)
		if err != nil {
			return nil, res, fmt.Errorf("%w: connect after losing spawn race: %w", ErrUnavailable, err)
		}
		return conn, res, nil
	}
	if err != nil {
		return nil, res, err
	}

	if err := c.spawn(fd); err != nil {
		_ = os.Remove(c.SocketPath)
		return nil, res, err
	}
	res.Spawned = true

	conn, err = c.redial(ctx)
	if err != nil {
		return nil, res, fmt.Errorf("%w: connect after spawn: %w", ErrUnavailable, err)
	}
	return conn, res, nil
}

// dial connects to SocketPath. A full listen backlog (EAGAIN from the
// non-blocking connect) means a daemon is alive but slow to accept, so dial
// waits for it until ctx is done rather than reporting it as absent.
func (c *Connector) dial(ctx context.Context) (*net.UnixConn, error) {
	delay := dialBackoffMin
	for {
		conn, err := c.dialOnce(ctx)
		if err == nil || !errors.Is(err, unix.EAGAIN) {
			return conn, err
		}
		if err := sleepContext(ctx, delay); err != nil {
			return nil, fmt.Errorf("dial %s: listen backlog full: %w", c.SocketPath, err)
		}
		delay = min(delay*2, dialBackoffMax)
	}
}

// redial is the connect that follows a spawn or a lost bind race. The socket
// may be bound but not yet listening (ECONNREFUSED), or have been unlinked and
// rebound by a third client (ENOENT); both settle quickly.
func (c *Connector) redial(ctx context.Context) (*net.UnixConn, error) {
	delay := dialBackoffMin
	for attempt := 1; ; attempt++ {
		conn, err := c.dial(ctx)
		if err == nil {
			return conn, nil
		}
		transient := errors.Is(err, unix.ECONNREFUSED) || errors.Is(err, unix.ENOENT)
		if !transient || attempt == redialAttempts {
			return nil, err
		}
		c.logger().Debug("daemon socket not ready, retrying", logging.Error(err), logging.Int("attempt", attempt))
		if err := sleepContext(ctx, delay); err != nil {
			return nil, err
		}
		delay = min(delay*2, dialBackoffMax)
	}
}

func (c *Connector) dialOnce(ctx context.Context) (*net.UnixConn, error) {
	var dialer net.Dialer
	conn, err := dialer.DialContext(ctx, "unix", c.SocketPath)
	if err != nil {
		return nil, err
	}
	unixConn, ok := conn.(*net.UnixConn)
	if !ok {
		conn.Close()
		return nil, fmt.Errorf("dial %s: unexpected connection type %T", c.SocketPath, conn)
	}
	return unixConn, nil
}

// listen binds and listens on SocketPath. A bind EADDRINUSE is returned
// unwrapped by ErrSpawn so the caller can treat it as a lost race.
func (c *Connector) listen() (int, error) {
	fd, err := unix.Socket(unix.AF_UNIX, unix.SOCK_STREAM|unix.SOCK_CLOEXEC, 0)
	if err != nil {
		return -1, fmt.Errorf("%w: socket: %w", ErrSpawn, err)
	}

	addr := &unix.SockaddrUnix{Name: c.SocketPath}
	if err := retryEINTR(func() error { return unix.Bind(fd, addr) }); err != nil {
		closeFD(fd)
		if errors.Is(err, unix.EADDRINUSE) {
			return -1, fmt.Errorf("bind %s: %w", c.SocketPath, err)
		}
		return -1, fmt.Errorf("%w: bind %s: %w", ErrSpawn, c.SocketPath, err)
	}

	if err := retryEINTR(func() error { return unix.Listen(fd, c.backlog()) }); err != nil {
		closeFD(fd)
		_ = os.Remove(c.SocketPath)
		return -1, fmt.Errorf("%w: listen %s: %w", ErrSpawn, c.SocketPath, err)
	}
	return fd, nil
}

func (c *Connector) backlog() int {
	if c.Backlog > 0 {
		return c.Backlog
	}
	return DefaultBacklog
}

func (c *Connector) logger() *slog.Logger {
	logger := logging.NewComponentLogger(c.Logger, "connector")
	return logger.With(logging.String(logging.FieldSocket, c.SocketPath))
}

func sleepContext(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

func retryEINTR(fn func() error) error {
	for {
		err := fn()
		if !errors.Is(err, unix.EINTR) {
			return err
		}
	}
}

// closeFD is not retried on EINTR: Linux releases the descriptor regardless.
func closeFD(fd int) {
	_ = unix.Close(fd)
}

package ipc

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net"
	"sync"
	"time"

	"warmstart/internal/logging"
	"warmstart/internal/relay"
	"warmstart/internal/transport"
	"warmstart/internal/wire"
)

// Option customizes a Server.
type Option func(*Server)

// WithIdleTimeout stops the server once no connection has been open for d.
// Zero disables the timeout.
func WithIdleTimeout(d time.Duration) Option {
	return func(s *Server) {
		s.idleTimeout = d
	}
}

// Server serves warmstart requests on an already-listening Unix socket.
type Server struct {
	listener    *net.UnixListener
	handler     Handler
	logger      *slog.Logger
	idleTimeout time.Duration

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup
	done   chan struct{}

	mu        sync.Mutex
	active    int
	idleTimer *time.Timer
	served    int
}

// NewServer wraps listener. The server owns the listener from here on and
// closes it when stopped.
func NewServer(ctx context.Context, listener *net.UnixListener, handler Handler, logger *slog.Logger, opts ...Option) (*Server, error) {
	if listener == nil {
		return nil, errors.New("ipc server requires a listener")
	}
	if handler == nil {
		return nil, errors.New("ipc server requires a handler")
	}
	if logger == nil {
		logger = logging.NewNop()
	}

	serverCtx, cancel := context.WithCancel(ctx)
	s := &Server{
		listener: listener,
		handler:  handler,
		logger:   logging.NewComponentLogger(logger, "ipc"),
		ctx:      serverCtx,
		cancel:   cancel,
		done:     make(chan struct{}),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s, nil
}

// Serve starts accepting connections in the background until the context is
// canceled, the idle timeout fires, or Close is called.
func (s *Server) Serve() {
	s.logger.Debug("ipc server listening",
		logging.String(logging.FieldSocket, s.listener.Addr().String()),
		logging.Duration("idle_timeout", s.idleTimeout))

	s.mu.Lock()
	s.armIdleLocked()
	s.mu.Unlock()

	stopAccept := context.AfterFunc(s.ctx, func() {
		_ = s.listener.Close()
	})

	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		defer stopAccept()
		var delay time.Duration
		for {
			conn, err := s.listener.AcceptUnix()
			if err != nil {
				if s.ctx.Err() != nil || errors.Is(err, net.ErrClosed) {
					s.cancel()
					return
				}
				delay = acceptBackoff(delay)
				logging.WarnWithContext(s.logger, "accept failed", "ipc_accept_failed",
					logging.Error(err),
					logging.Duration("retry_in", delay),
					logging.String(logging.FieldImpact, "a client may fail to connect"),
					logging.String(logging.FieldErrorHint, "check file descriptor limits"))
				select {
				case <-s.ctx.Done():
				case <-time.After(delay):
				}
				continue
			}
			delay = 0
			s.connOpened()
			s.wg.Add(1)
			go func(c *net.UnixConn) {
				defer s.wg.Done()
				defer s.connClosed()
				s.serveConn(c)
			}(conn)
		}
	}()

	go func() {
		s.wg.Wait()
		close(s.done)
	}()
}

// acceptBackoff doubles the pause after consecutive accept failures, from
// 5ms up to one second.
func acceptBackoff(prev time.Duration) time.Duration {
	if prev == 0 {
		return 5 * time.Millisecond
	}
	return min(prev*2, time.Second)
}

// Done is closed once the server has stopped and every connection finished.
func (s *Server) Done() <-chan struct{} {
	return s.done
}

// Served reports how many requests have completed.
func (s *Server) Served() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.served
}

// Close stops accepting, closes open connections, and waits for handlers to
// return.
func (s *Server) Close() {
	s.cancel()
	_ = s.listener.Close()
	s.mu.Lock()
	if s.idleTimer != nil {
		s.idleTimer.Stop()
	}
	s.mu.Unlock()
	s.wg.Wait()
}

func (s *Server) connOpened() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.active++
	if s.idleTimer != nil {
		s.idleTimer.Stop()
		s.idleTimer = nil
	}
}

func (s *Server) connClosed() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.active--
	s.armIdleLocked()
}

func (s *Server) armIdleLocked() {
	if s.idleTimeout <= 0 || s.active > 0 || s.ctx.Err() != nil {
		return
	}
	if s.idleTimer != nil {
		s.idleTimer.Stop()
	}
	s.idleTimer = time.AfterFunc(s.idleTimeout, s.idleExpired)
}

func (s *Server) idleExpired() {
	s.mu.Lock()
	idle := s.active == 0
	s.mu.Unlock()
	if !idle {
		return
	}
	s.logger.Info("idle timeout reached, stopping",
		logging.String(logging.FieldEventType, "ipc_idle_shutdown"),
		logging.Duration("idle_timeout", s.idleTimeout))
	s.cancel()
}

func (s *Server) serveConn(conn *net.UnixConn) {
	defer conn.Close()
	stop := context.AfterFunc(s.ctx, func() {
		_ = conn.Close()
	})
	defer stop()

	for {
		msg, err := transport.Receive(conn)
		if err != nil {
			if errors.Is(err, io.EOF) || errors.Is(err, net.ErrClosed) {
				return
			}
			logging.WarnWithContext(s.logger, "request receive failed", "ipc_receive_failed",
				logging.Error(err),
				logging.String(logging.FieldImpact, "client exits with a generic failure"))
			return
		}

		args, err := wire.Decode(msg.Frame)
		if err != nil {
			_ = msg.Files.Close()
			logging.WarnWithContext(s.logger, "request decode failed", "ipc_decode_failed",
				logging.Error(err),
				logging.String(logging.FieldImpact, "client exits with a generic failure"))
			return
		}

		req := &Request{
			Args:   args,
			Stdin:  msg.Files.Stdin,
			Stdout: msg.Files.Stdout,
			Stderr: msg.Files.Stderr,
		}
		status := s.dispatch(req)
		_ = msg.Files.Close()

		if err := relay.WriteStatus(conn, status); err != nil {
			s.logger.Debug("status reply failed", logging.Error(err), logging.Int("status", status))
			return
		}
		s.mu.Lock()
		s.served++
		s.mu.Unlock()
	}
}

func (s *Server) dispatch(req *Request) (status int) {
	defer func() {
		if r := recover(); r != nil {
			logging.ErrorWithContext(s.logger, "handler panicked", "ipc_handler_panic",
				logging.String("panic", fmt.Sprint(r)),
				logging.Any("args", req.Args),
				logging.String(logging.FieldErrorHint, "inspect the panic value and request arguments"))
			status = relay.ExitFailure
		}
	}()

	status = s.handler.Handle(s.ctx, req)
	if status < 0 || status > 255 {
		logging.WarnWithContext(s.logger, "handler status out of range", "ipc_status_range",
			logging.Int("status", status),
			logging.String(logging.FieldImpact, "client exits with a generic failure"))
		return relay.ExitFailure
	}
	s.logger.Debug("request served", logging.Any("args", req.Args), logging.Int("status", status))
	return status
}

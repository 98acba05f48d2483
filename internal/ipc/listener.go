package ipc

import (
	"errors"
	"fmt"
	"net"
	"os"

	"golang.org/x/sys/unix"
)

// ErrListener reports an inherited descriptor that is not a listening Unix
// stream socket.
var ErrListener = errors.New("inherited listener")

// ListenerFromFD adopts an inherited listening socket. The descriptor is
// marked close-on-exec and duplicated into the returned listener; fd itself is
// closed.
func ListenerFromFD(fd int) (*net.UnixListener, error) {
	if fd < 0 {
		return nil, fmt.Errorf("%w: invalid descriptor %d", ErrListener, fd)
	}
	unix.CloseOnExec(fd)

	domain, err := unix.GetsockoptInt(fd, unix.SOL_SOCKET, unix.SO_DOMAIN)
	if err != nil {
		return nil, fmt.Errorf("%w: descriptor %d: %w", ErrListener, fd, err)
	}
	if domain != unix.AF_UNIX {
		return nil, fmt.Errorf("%w: descriptor %d is not a unix socket", ErrListener, fd)
	}
	soType, err := unix.GetsockoptInt(fd, unix.SOL_SOCKET, unix.SO_TYPE)
	if err != nil {
		return nil, fmt.Errorf("%w: descriptor %d: %w", ErrListener, fd, err)
	}
	if soType != unix.SOCK_STREAM {
		return nil, fmt.Errorf("%w: descriptor %d is not a stream socket", ErrListener, fd)
	}
	accepting, err := unix.GetsockoptInt(fd, unix.SOL_SOCKET, unix.SO_ACCEPTCONN)
	if err != nil {
		return nil, fmt.Errorf("%w: descriptor %d: %w", ErrListener, fd, err)
	}
	if accepting == 0 {
		return nil, fmt.Errorf("%w: descriptor %d is not listening", ErrListener, fd)
	}

	file := os.NewFile(uintptr(fd), "warmstart-listener")
	defer file.Close()
	ln, err := net.FileListener(file)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrListener, err)
	}
	unixLn, ok := ln.(*net.UnixListener)
	if !ok {
		ln.Close()
		return nil, fmt.Errorf("%w: descriptor %d has unexpected type %T", ErrListener, fd, ln)
	}
	return unixLn, nil
}

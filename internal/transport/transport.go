// Package transport moves one framed request and the caller's standard
// descriptors across a connected Unix stream socket.
//
// The descriptors travel as a single SCM_RIGHTS control message attached to
// the first sendmsg of a request, so the daemon receives them exactly once and
// tied to the start of that request's bytes. Anything left over after the
// first send is written with plain writes.
package transport

import (
	"errors"
	"fmt"
	"io"
	"net"
	"os"

	"golang.org/x/sys/unix"

	"warmstart/internal/wire"
)

// TripleSize is the number of descriptors carried with every request.
const TripleSize = 3

// oob room for a few more rights than we expect, so an oversized control
// message shows up as MSG_CTRUNC rather than silently losing descriptors
var oobSize = unix.CmsgSpace(16 * 4)

var (
	// ErrSend reports a failed write of the request or its descriptors.
	ErrSend = errors.New("send request")
	// ErrDescriptors reports a request that arrived without a usable descriptor triple.
	ErrDescriptors = errors.New("request descriptors")
)

// Triple is the stdin, stdout, stderr set handed to the daemon, in that order.
type Triple struct {
	Stdin  *os.File
	Stdout *os.File
	Stderr *os.File
}

// StdTriple returns the current process's standard descriptors.
func StdTriple() Triple {
	return Triple{Stdin: os.Stdin, Stdout: os.Stdout, Stderr: os.Stderr}
}

func (t Triple) fds() ([]int, error) {
	files := []*os.File{t.Stdin, t.Stdout, t.Stderr}
	fds := make([]int, 0, len(files))
	for i, f := range files {
		if f == nil {
			return nil, fmt.Errorf("%w: descriptor %d is nil", ErrDescriptors, i)
		}
		fds = append(fds, int(f.Fd()))
	}
	return fds, nil
}

// Close closes every non-nil file in the triple.
func (t Triple) Close() error {
	var errs []error
	for _, f := range []*os.File{t.Stdin, t.Stdout, t.Stderr} {
		if f == nil {
			continue
		}
		if err := f.Close(); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// Send writes payload to conn with the triple attached to the first chunk.
func Send(conn *net.UnixConn, payload []byte, triple Triple) error {
	if len(payload) == 0 {
		return fmt.Errorf("%w: empty payload cannot carry descriptors", ErrSend)
	}
	fds, err := triple.fds()
	if err != nil {
		return fmt.Errorf("%w: %w", ErrSend, err)
	}

	oob := unix.UnixRights(fds...)
	n, oobn, err := conn.WriteMsgUnix(payload, oob, nil)
	if err != nil {
		return fmt.Errorf("%w: sendmsg: %w", ErrSend, err)
	}
	if oobn != len(oob) {
		return fmt.Errorf("%w: sendmsg wrote %d of %d control bytes", ErrSend, oobn, len(oob))
	}

	for n < len(payload) {
		m, err := conn.Write(payload[n:])
		if err != nil {
			return fmt.Errorf("%w: send: %w", ErrSend, err)
		}
		n += m
	}
	return nil
}

// Message is one request as received by the daemon.
type Message struct {
	Frame []byte
	Files Triple
}

// Receive reads one request frame and its descriptors from conn. It returns
// io.EOF when the peer closed the connection between requests.
func Receive(conn *net.UnixConn) (Message, error) {
	var prefix [wire.PrefixSize]byte
	oob := make([]byte, oobSize)

	n, oobn, flags, _, err := conn.ReadMsgUnix(prefix[:], oob)
	if err != nil {
		return Message{}, err
	}
	if n == 0 && oobn == 0 {
		return Message{}, io.EOF
	}

	files, err := parseRights(oob[:oobn])
	if err != nil {
		return Message{}, err
	}
	if flags&unix.MSG_CTRUNC != 0 {
		files.Close()
		return Message{}, fmt.Errorf("%w: control message truncated", ErrDescriptors)
	}

	if n < wire.PrefixSize {
		if _, err := io.ReadFull(conn, prefix[n:]); err != nil {
			files.Close()
			return Message{}, fmt.Errorf("read request prefix: %w", err)
		}
	}
	frame, err := wire.ReadRest(conn, prefix[:])
	if err != nil {
		files.Close()
		return Message{}, err
	}
	if files.Stdin == nil {
		return Message{}, fmt.Errorf("%w: none attached", ErrDescriptors)
	}
	return Message{Frame: frame, Files: files}, nil
}

func parseRights(oob []byte) (triple Triple, err error) {
	var fds []int
	defer func() {
		if err != nil {
			for _, fd := range fds {
				unix.Close(fd)
			}
		}
	}()

	msgs, err := unix.ParseSocketControlMessage(oob)
	if err != nil {
		return Triple{}, fmt.Errorf("%w: %w", ErrDescriptors, err)
	}
	for i := range msgs {
		if msgs[i].Header.Level != unix.SOL_SOCKET || msgs[i].Header.Type != unix.SCM_RIGHTS {
			continue
		}
		got, err := unix.ParseUnixRights(&msgs[i])
		if err != nil {
			return Triple{}, fmt.Errorf("%w: %w", ErrDescriptors, err)
		}
		fds = append(fds, got...)
	}

	if len(fds) == 0 {
		return Triple{}, nil
	}
	if len(fds) != TripleSize {
		return Triple{}, fmt.Errorf("%w: got %d descriptors, want %d", ErrDescriptors, len(fds), TripleSize)
	}
	return Triple{
		Stdin:  os.NewFile(uintptr(fds[0]), "request-stdin"),
		Stdout: os.NewFile(uintptr(fds[1]), "request-stdout"),
		Stderr: os.NewFile(uintptr(fds[2]), "request-stderr"),
	}, nil
}

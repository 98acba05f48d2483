// Package relay carries the daemon's single status byte back to the client's
// exit code.
package relay

import (
	"errors"
	"fmt"
	"io"
)

// ExitFailure is the client's exit status when no status byte arrived.
const ExitFailure = 1

var (
	// ErrNoStatus reports a connection that ended before a status byte arrived.
	ErrNoStatus = errors.New("connection closed before a status byte arrived")
	// ErrStatusRange reports a status that does not fit in one byte.
	ErrStatusRange = errors.New("status outside 0-255")
)

// Await blocks until exactly one byte can be read from r and returns it as an
// exit status. There is no timeout; the call returns when the daemon replies
// or the peer closes the connection.
func Await(r io.Reader) (int, error) {
	var b [1]byte
	if _, err := io.ReadFull(r, b[:]); err != nil {
		return ExitFailure, fmt.Errorf("%w: %w", ErrNoStatus, err)
	}
	return int(b[0]), nil
}

// WriteStatus sends status as the one-byte reply to a request.
func WriteStatus(w io.Writer, status int) error {
	if status < 0 || status > 255 {
		return fmt.Errorf("%w: %d", ErrStatusRange, status)
	}
	if _, err := w.Write([]byte{byte(status)}); err != nil {
		return fmt.Errorf("write status: %w", err)
	}
	return nil
}

package wire

import (
	"encoding/binary"
	"errors"
	"fmt"
	"strings"
)

const (
	// PrefixSize is the width of the length field at the start of a frame.
	PrefixSize = 4
	// MaxRequestSize is the hard capacity of one frame, prefix included.
	MaxRequestSize = 64 << 10
)

var (
	// ErrTooLarge reports an invocation that does not fit in one frame.
	ErrTooLarge = errors.New("maximum number of arguments exceeded")
	// ErrEmbeddedNUL reports an argument that cannot be NUL-terminated unambiguously.
	ErrEmbeddedNUL = errors.New("argument contains a NUL byte")
)

// Encode frames args into a new buffer no larger than MaxRequestSize.
func Encode(args []string) ([]byte, error) {
	size := PrefixSize
	for _, arg := range args {
		size += len(arg) + 1
		if size > MaxRequestSize {
			return nil, fmt.Errorf("encode request: %w (limit %d bytes)", ErrTooLarge, MaxRequestSize)
		}
	}
	buf := make([]byte, size)
	n, err := EncodeInto(buf, args)
	if err != nil {
		return nil, err
	}
	return buf[:n], nil
}

// EncodeInto writes the frame for args into buf and returns the frame length.
// The capacity is len(buf); buf is left unspecified on error.
func EncodeInto(buf []byte, args []string) (int, error) {
	if len(buf) < PrefixSize {
		return 0, fmt.Errorf("encode request: %w (buffer of %d bytes)", ErrTooLarge, len(buf))
	}
	if len(buf) > MaxRequestSize {
		buf = buf[:MaxRequestSize]
	}

	j := PrefixSize
	for i, arg := range args {
		if strings.IndexByte(arg, 0) >= 0 {
			return 0, fmt.Errorf("encode request: argument %d: %w", i, ErrEmbeddedNUL)
		}
		if len(arg)+1 > len(buf)-j {
			return 0, fmt.Errorf("encode request: argument %d: %w (limit %d bytes)", i, ErrTooLarge, len(buf))
		}
		j += copy(buf[j:], arg)
		buf[j] = 0
		j++
	}

	binary.LittleEndian.PutUint32(buf[:PrefixSize], uint32(j))
	return j, nil
}

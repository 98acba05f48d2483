package wire

import (
	"bytes"
	"encoding/binary"
	"errors"
	"fmt"
	"io"
)

// ErrMalformed reports a frame whose length or terminators are inconsistent.
var ErrMalformed = errors.New("malformed request frame")

// FrameLength returns the total frame length announced by prefix.
func FrameLength(prefix []byte) (int, error) {
	if len(prefix) < PrefixSize {
		return 0, fmt.Errorf("%w: short prefix (%d bytes)", ErrMalformed, len(prefix))
	}
	n := int(binary.LittleEndian.Uint32(prefix[:PrefixSize]))
	if n < PrefixSize || n > MaxRequestSize {
		return 0, fmt.Errorf("%w: length %d outside [%d, %d]", ErrMalformed, n, PrefixSize, MaxRequestSize)
	}
	return n, nil
}

// ReadFrame reads one complete frame from r.
func ReadFrame(r io.Reader) ([]byte, error) {
	var prefix [PrefixSize]byte
	if _, err := io.ReadFull(r, prefix[:]); err != nil {
		return nil, err
	}
	return ReadRest(r, prefix[:])
}

// ReadRest completes a frame whose prefix has already been consumed.
func ReadRest(r io.Reader, prefix []byte) ([]byte, error) {
	n, err := FrameLength(prefix)
	if err != nil {
		return nil, err
	}
	frame := make([]byte, n)
	copy(frame, prefix[:PrefixSize])
	if _, err := io.ReadFull(r, frame[PrefixSize:]); err != nil {
		if errors.Is(err, io.EOF) {
			err = io.ErrUnexpectedEOF
		}
		return nil, fmt.Errorf("read request body: %w", err)
	}
	return frame, nil
}

// Decode splits a complete frame back into its arguments.
func Decode(frame []byte) ([]string, error) {
	n, err := FrameLength(frame)
	if err != nil {
		return nil, err
	}
	if n != len(frame) {
		return nil, fmt.Errorf("%w: prefix announces %d bytes, frame has %d", ErrMalformed, n, len(frame))
	}

	body := frame[PrefixSize:]
	if len(body) == 0 {
		return []string{}, nil
	}
	if body[len(body)-1] != 0 {
		return nil, fmt.Errorf("%w: last argument is not NUL-terminated", ErrMalformed)
	}

	parts := bytes.Split(body[:len(body)-1], []byte{0})
	args := make([]string, len(parts))
	for i, part := range parts {
		args[i] = string(part)
	}
	return args, nil
}

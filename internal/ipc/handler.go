package ipc

import (
	"context"
	"os"
)

// Request is one decoded client invocation. The files are owned by the server
// and closed once the handler returns.
type Request struct {
	Args   []string
	Stdin  *os.File
	Stdout *os.File
	Stderr *os.File
}

// Handler executes a request and returns its exit status (0-255).
type Handler interface {
	Handle(ctx context.Context, req *Request) int
}

// HandlerFunc adapts a function to the Handler interface.
type HandlerFunc func(ctx context.Context, req *Request) int

func (f HandlerFunc) Handle(ctx context.Context, req *Request) int {
	return f(ctx, req)
}

package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"

	"golang.org/x/sys/unix"

	"warmstart/internal/relay"
	"warmstart/internal/transport"
)

func main() {
	a := &app{
		argv0:  os.Args[0],
		stdio:  transport.StdTriple(),
		stderr: os.Stderr,
		exec:   unix.Exec,
	}
	os.Exit(execute(a, os.Args[1:]))
}

func execute(a *app, args []string) int {
	var err error
	if isCompletionRequest(args) {
		err = a.dispatch(context.Background(), args)
	} else {
		cmd := newRootCommand(a)
		// cobra reads os.Args when given nil.
		if args == nil {
			args = []string{}
		}
		cmd.SetArgs(args)
		cmd.SetOut(a.stderr)
		cmd.SetErr(a.stderr)
		err = cmd.Execute()
	}
	if err != nil {
		if !errors.Is(err, context.Canceled) {
			reportFatal(a.stderr, err)
		}
		return relay.ExitFailure
	}
	return a.status
}

func reportFatal(w io.Writer, err error) {
	fmt.Fprintf(w, "warmstart: %v\n", err)
	var invErr *invocationError
	if errors.As(err, &invErr) {
		writeDiagnostics(w, collectDiagnostics(invErr.report))
	}
}

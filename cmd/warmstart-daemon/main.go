package main

import (
	"context"
	"fmt"
	"io"
	"os"

	"warmstart/internal/relay"
)

func main() {
	os.Exit(execute(context.Background(), os.Args[1:], os.Stdin, os.Stdout, os.Stderr))
}

func execute(ctx context.Context, args []string, stdin io.Reader, stdout, stderr io.Writer) int {
	d := &daemonCommand{stdin: stdin, stdout: stdout, stderr: stderr}
	var err error
	if isCompletionRequest(args) {
		err = d.dispatch(ctx, args)
	} else {
		cmd := newRootCommand(d)
		// cobra reads os.Args when given nil.
		if args == nil {
			args = []string{}
		}
		cmd.SetArgs(args)
		cmd.SetOut(stderr)
		cmd.SetErr(stderr)
		err = cmd.ExecuteContext(ctx)
	}
	if err != nil {
		fmt.Fprintf(stderr, "warmstart-daemon: %v\n", err)
		if d.status != 0 {
			return d.status
		}
		return relay.ExitFailure
	}
	return d.status
}

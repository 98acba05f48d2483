// Package stub is the command set of the reference warmstart daemon. It does
// no real work; it exists so the protocol can be exercised end to end.
//
// Commands:
//
//	-version        print the daemon version, exit 0
//	-echo ARGS...   print ARGS separated by spaces, exit 0
//	-cat            copy stdin to stdout, exit 0
//	-exit N         exit with status N
//
// Anything else is reported on stderr and exits 2.
package stub

import (
	"context"
	"fmt"
	"io"
	"strconv"
	"strings"

	"warmstart/internal/ipc"
)

// Version is reported by -version. Release builds override it with -ldflags.
var Version = "dev"

// ExitUsage is returned for unknown or malformed commands.
const ExitUsage = 2

// Run executes one command against the given streams and returns its status.
func Run(args []string, stdin io.Reader, stdout, stderr io.Writer) int {
	if len(args) == 0 {
		fmt.Fprintln(stderr, "warmstart-daemon: no command given")
		return ExitUsage
	}

	switch args[0] {
	case "-version":
		fmt.Fprintf(stdout, "warmstart-daemon %s\n", Version)
		return 0
	case "-echo":
		fmt.Fprintln(stdout, strings.Join(args[1:], " "))
		return 0
	case "-cat":
		if _, err := io.Copy(stdout, stdin); err != nil {
			fmt.Fprintf(stderr, "warmstart-daemon: cat: %v\n", err)
			return 1
		}
		return 0
	case "-exit":
		if len(args) != 2 {
			fmt.Fprintln(stderr, "warmstart-daemon: -exit takes one status")
			return ExitUsage
		}
		status, err := strconv.Atoi(args[1])
		if err != nil || status < 0 || status > 255 {
			fmt.Fprintf(stderr, "warmstart-daemon: invalid status %q\n", args[1])
			return ExitUsage
		}
		return status
	default:
		fmt.Fprintf(stderr, "warmstart-daemon: unknown command %q\n", args[0])
		return ExitUsage
	}
}

// Handler serves daemon requests with Run, using the descriptors the client
// passed.
func Handler() ipc.Handler {
	return ipc.HandlerFunc(func(_ context.Context, req *ipc.Request) int {
		return Run(req.Args, req.Stdin, req.Stdout, req.Stderr)
	})
}

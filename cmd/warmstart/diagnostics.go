package main

import (
	"fmt"
	"io"
	"os"
	"strconv"

	"github.com/mattn/go-isatty"

	"warmstart/internal/client"
	"warmstart/internal/daemonctl"
)

const unresolved = "(unresolved)"

// diagnostics is the context printed after a fatal error.
type diagnostics struct {
	Client string
	Daemon string
	Socket string
	PID    int
}

func collectDiagnostics(report client.Report) diagnostics {
	d := diagnostics{
		Client: report.Paths.Client,
		Daemon: report.Paths.Daemon,
		Socket: report.SocketPath,
	}
	if d.Socket != "" {
		if pid, err := daemonctl.ReadPID(d.Socket); err == nil {
			d.PID = pid
		}
	}
	return d
}

func (d diagnostics) rows() [][]string {
	pid := "unknown"
	if d.PID > 0 {
		pid = strconv.Itoa(d.PID)
	}
	return [][]string{
		{"client", orUnresolved(d.Client)},
		{"daemon", orUnresolved(d.Daemon)},
		{"socket", orUnresolved(d.Socket)},
		{"daemon pid", pid},
	}
}

func orUnresolved(value string) string {
	if value == "" {
		return unresolved
	}
	return value
}

func writeDiagnostics(w io.Writer, d diagnostics) {
	rows := d.rows()
	if isTerminal(w) {
		fmt.Fprintln(w, renderTable([]string{"Item", "Value"}, rows))
		return
	}
	for _, row := range rows {
		fmt.Fprintf(w, "%s: %s\n", row[0], row[1])
	}
}

func isTerminal(w io.Writer) bool {
	file, ok := w.(*os.File)
	if !ok {
		return false
	}
	fd := file.Fd()
	return isatty.IsTerminal(fd) || isatty.IsCygwinTerminal(fd)
}

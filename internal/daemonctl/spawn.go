package daemonctl

import (
	"fmt"
	"os"
	"strconv"
	"syscall"

	"warmstart/internal/logging"
)

// ListenFD is the descriptor number under which a spawned daemon finds its
// listening socket.
const ListenFD = 3

// SpawnArgs is the argv a spawned daemon receives.
func SpawnArgs(daemonPath string) []string {
	return []string{daemonPath, "daemon", strconv.Itoa(ListenFD)}
}

// spawn starts the daemon with the listening socket fd as descriptor 3 and
// /dev/null as its standard streams, in its own session. fd is closed in this
// process whether or not the start succeeds.
func (c *Connector) spawn(fd int) error {
	listener := os.NewFile(uintptr(fd), "warmstart-listener")
	defer listener.Close()

	devNull, err := os.OpenFile(os.DevNull, os.O_RDWR, 0)
	if err != nil {
		return fmt.Errorf("%w: open %s: %w", ErrSpawn, os.DevNull, err)
	}
	defer devNull.Close()

	proc, err := os.StartProcess(c.DaemonPath, SpawnArgs(c.DaemonPath), &os.ProcAttr{
		Files: []*os.File{devNull, devNull, devNull, listener},
		Sys:   &syscall.SysProcAttr{Setsid: true},
	})
	if err != nil {
		return fmt.Errorf("%w: start %s: %w", ErrSpawn, c.DaemonPath, err)
	}

	pid := proc.Pid
	if err := proc.Release(); err != nil {
		c.logger().Debug("release daemon process", logging.Error(err))
	}
	c.logger().Info("daemon spawned",
		logging.String(logging.FieldEventType, "daemon_spawned"),
		logging.String(logging.FieldDaemon, c.DaemonPath),
		logging.Int(logging.FieldPID, pid))
	return nil
}

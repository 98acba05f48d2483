package daemonctl

import (
	"fmt"
	"os"
	"strconv"
	"strings"

	"warmstart/internal/rendezvous"
)

// ReadPID returns the pid a daemon recorded next to socketPath. Daemons are
// not required to write one; a missing file yields an os.ErrNotExist error.
func ReadPID(socketPath string) (int, error) {
	data, err := os.ReadFile(rendezvous.PIDPath(socketPath))
	if err != nil {
		return 0, err
	}
	pidStr := strings.TrimSpace(string(data))
	pid, err := strconv.Atoi(pidStr)
	if err != nil || pid <= 0 {
		return 0, fmt.Errorf("invalid pid %q in %s", pidStr, rendezvous.PIDPath(socketPath))
	}
	return pid, nil
}

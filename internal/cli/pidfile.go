package cli

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"syscall"

	"github.com/neoclaw-ai/remindclaw/internal/config"
)

// errServerRunning is returned when a live `start` process already polls
// triggers for this home directory.
var errServerRunning = errors.New("server is already running")

// ensureNoRunningServer fails when the pid file names a live process other
// than this one. The file store's trigger claim only excludes pollers in the
// same process, so a second poller must not run beside `start`.
func ensureNoRunningServer(cfg *config.Config) error {
	path := cfg.PIDPath()
	pid, ok := livePID(path)
	if !ok {
		return nil
	}
	return fmt.Errorf("%w (pid %d from %s); stop it first", errServerRunning, pid, path)
}

// livePID reads a pid file and reports whether it names a running process
// other than the caller. Missing, unreadable or stale files report false.
func livePID(path string) (int, bool) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return 0, false
	}
	pid, err := strconv.Atoi(strings.TrimSpace(string(raw)))
	if err != nil || pid <= 0 || pid == os.Getpid() {
		return 0, false
	}
	proc, err := os.FindProcess(pid)
	if err != nil {
		return 0, false
	}
	// Signal 0 probes for existence. EPERM means the process exists under
	// another user.
	if err := proc.Signal(syscall.Signal(0)); err != nil && !errors.Is(err, syscall.EPERM) {
		return 0, false
	}
	return pid, true
}

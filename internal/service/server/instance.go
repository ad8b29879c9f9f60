package server

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/mitchellh/go-ps"

	"github.com/oshokin/alarm-coordinator/internal/config"
)

// ErrAlreadyRunning indicates another coordinator owns the state file.
var ErrAlreadyRunning = errors.New("another alarm coordinator is running for this state file")

// instanceGuard is a pid file that keeps one coordinator per state file.
type instanceGuard struct {
	// path is the pid file location.
	path string
	// executable is the process name a live owner must have.
	executable string
}

// newInstanceGuard returns a guard for the pid file next to stateFile.
func newInstanceGuard(stateFile string) *instanceGuard {
	executable, err := os.Executable()
	if err != nil {
		executable = os.Args[0]
	}

	return &instanceGuard{
		path:       filepath.Clean(stateFile) + ".pid",
		executable: filepath.Base(executable),
	}
}

// acquire records the current pid, unless the recorded pid belongs to a
// live process running the same executable.
func (g *instanceGuard) acquire() error {
	if pid, ok := g.recordedPID(); ok && pid != os.Getpid() {
		running, err := g.isCoordinator(pid)
		if err != nil {
			return fmt.Errorf("inspect process %d: %w", pid, err)
		}

		if running {
			return fmt.Errorf("%w (pid %d, %s)", ErrAlreadyRunning, pid, g.path)
		}
	}

	if err := os.MkdirAll(filepath.Dir(g.path), 0o700); err != nil {
		return fmt.Errorf("create pid dir: %w", err)
	}

	pid := strconv.Itoa(os.Getpid())
	if err := os.WriteFile(g.path, []byte(pid), config.DefaultFilePermissions); err != nil {
		return fmt.Errorf("write pid file: %w", err)
	}

	return nil
}

// release removes the pid file if it is still ours.
func (g *instanceGuard) release() error {
	if pid, ok := g.recordedPID(); !ok || pid != os.Getpid() {
		return nil
	}

	if err := os.Remove(g.path); err != nil && !errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("remove pid file: %w", err)
	}

	return nil
}

func (g *instanceGuard) recordedPID() (int, bool) {
	data, err := os.ReadFile(g.path)
	if err != nil {
		return 0, false
	}

	pid, err := strconv.Atoi(strings.TrimSpace(string(data)))
	if err != nil || pid <= 0 {
		return 0, false
	}

	return pid, true
}

// isCoordinator reports whether pid is alive and runs our executable. Linux
// truncates process names, so a prefix match is enough.
func (g *instanceGuard) isCoordinator(pid int) (bool, error) {
	process, err := ps.FindProcess(pid)
	if err != nil {
		return false, err
	}

	if process == nil {
		return false, nil
	}

	name := process.Executable()

	return name != "" && strings.HasPrefix(g.executable, name), nil
}

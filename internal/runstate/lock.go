package runstate

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"syscall"
)

// Lock is an advisory PID-marker lock owning one state file.
type Lock struct {
	path string
}

// AcquireLock takes the lock guarding the given state file, failing fast
// with StateLockedError when a live process already holds it. A lock left
// behind by a dead process is replaced.
func AcquireLock(statePath string) (*Lock, error) {
	lockPath := statePath + ".lock"

	for attempt := 0; attempt < 2; attempt++ {
		f, err := os.OpenFile(lockPath, os.O_CREATE|os.O_EXCL|os.O_WRONLY, 0o644)
		if err == nil {
			if _, werr := fmt.Fprintf(f, "%d\n", os.Getpid()); werr != nil {
				f.Close()
				os.Remove(lockPath)
				return nil, fmt.Errorf("writing lock file: %w", werr)
			}
			if cerr := f.Close(); cerr != nil {
				os.Remove(lockPath)
				return nil, fmt.Errorf("closing lock file: %w", cerr)
			}
			return &Lock{path: lockPath}, nil
		}
		if !os.IsExist(err) {
			return nil, fmt.Errorf("creating lock file: %w", err)
		}

		pid, perr := readLockPID(lockPath)
		if perr == nil && pidAlive(pid) {
			return nil, &StateLockedError{Path: statePath, PID: pid}
		}

		// Stale or unreadable lock: remove and retry once.
		if rerr := os.Remove(lockPath); rerr != nil && !os.IsNotExist(rerr) {
			return nil, fmt.Errorf("removing stale lock file: %w", rerr)
		}
	}

	return nil, fmt.Errorf("could not acquire lock %s", lockPath)
}

// Release drops the lock.
func (l *Lock) Release() error {
	return os.Remove(l.path)
}

func readLockPID(path string) (int, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return 0, err
	}
	return strconv.Atoi(strings.TrimSpace(string(data)))
}

// pidAlive probes the process with signal 0.
func pidAlive(pid int) bool {
	if pid <= 0 {
		return false
	}
	proc, err := os.FindProcess(pid)
	if err != nil {
		return false
	}
	return proc.Signal(syscall.Signal(0)) == nil
}

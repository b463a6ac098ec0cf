// Package instance keeps a single nudge process running per user.
package instance

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/shirou/gopsutil/v3/process"
)

// ErrAlreadyRunning is wrapped by Acquire when another live process holds
// the lock.
var ErrAlreadyRunning = errors.New("another instance is already running")

// alive reports whether pid names a running process.
var alive = func(pid int) bool {
	ok, err := process.PidExists(int32(pid))
	return err == nil && ok
}

// Lock is a held pid file.
type Lock struct {
	path string
	pid  int
}

// DefaultPath returns the pid file location in the user cache directory.
func DefaultPath() (string, error) {
	dir, err := os.UserCacheDir()
	if err != nil {
		return "", fmt.Errorf("locate cache dir: %w", err)
	}
	return filepath.Join(dir, "nudge", "nudge.pid"), nil
}

// Acquire creates the pid file at path. A file left behind by a process
// that no longer exists is reclaimed.
func Acquire(path string) (*Lock, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("create lock dir: %w", err)
	}

	pid := os.Getpid()
	for attempt := 0; attempt < 2; attempt++ {
		f, err := os.OpenFile(path, os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0o644)
		if err == nil {
			_, werr := f.WriteString(strconv.Itoa(pid))
			cerr := f.Close()
			if werr = errors.Join(werr, cerr); werr != nil {
				_ = os.Remove(path)
				return nil, fmt.Errorf("write pid file: %w", werr)
			}
			return &Lock{path: path, pid: pid}, nil
		}
		if !errors.Is(err, os.ErrExist) {
			return nil, fmt.Errorf("create pid file: %w", err)
		}

		owner, rerr := readPID(path)
		if rerr == nil && alive(owner) {
			return nil, fmt.Errorf("%w (pid %d)", ErrAlreadyRunning, owner)
		}
		if err := os.Remove(path); err != nil && !errors.Is(err, os.ErrNotExist) {
			return nil, fmt.Errorf("remove stale pid file: %w", err)
		}
	}
	return nil, fmt.Errorf("%w: pid file %s keeps reappearing", ErrAlreadyRunning, path)
}

// Path returns the pid file path.
func (l *Lock) Path() string {
	return l.path
}

// Release removes the pid file if it still belongs to this process.
func (l *Lock) Release() error {
	owner, err := readPID(l.path)
	if errors.Is(err, os.ErrNotExist) {
		return nil
	}
	if err == nil && owner != l.pid {
		return nil
	}
	if err := os.Remove(l.path); err != nil && !errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("remove pid file: %w", err)
	}
	return nil
}

func readPID(path string) (int, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return 0, err
	}
	pid, err := strconv.Atoi(strings.TrimSpace(string(data)))
	if err != nil {
		return 0, fmt.Errorf("parse pid file: %w", err)
	}
	return pid, nil
}

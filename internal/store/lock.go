package store

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"syscall"
)

// LockFile is the name of the lock held by the process that owns a hive
// directory.
const LockFile = "hive.lock"

// ErrLocked is returned by Acquire when a live process holds the lock.
var ErrLocked = errors.New("hive directory is in use")

// Lock guards a hive directory so only one coordinator writes its store.
type Lock struct {
	path string
}

// NewLock returns the lock for hiveDir.
func NewLock(hiveDir string) *Lock {
	return &Lock{path: filepath.Join(hiveDir, LockFile)}
}

// Path returns the lock file path.
func (l *Lock) Path() string { return l.path }

// Acquire takes the lock. Locks left by dead processes are cleared.
func (l *Lock) Acquire() error {
	if err := os.MkdirAll(filepath.Dir(l.path), 0o755); err != nil {
		return fmt.Errorf("create hive directory: %w", err)
	}
	err := l.create()
	if err == nil || !os.IsExist(err) {
		return err
	}

	pid, ok := l.holder()
	if ok && processExists(pid) {
		return fmt.Errorf("%w by pid %d (%s)", ErrLocked, pid, l.path)
	}
	if err := os.Remove(l.path); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("remove stale lock: %w", err)
	}
	if err := l.create(); err != nil {
		if os.IsExist(err) {
			return fmt.Errorf("%w: lock taken by another process during retry", ErrLocked)
		}
		return err
	}
	return nil
}

// Release removes the lock file. Releasing twice is not an error.
func (l *Lock) Release() error {
	err := os.Remove(l.path)
	if err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("remove lock file: %w", err)
	}
	return nil
}

// Holder reports the pid of the live process holding the lock, if any.
func (l *Lock) Holder() (int, bool) {
	pid, ok := l.holder()
	if !ok || !processExists(pid) {
		return 0, false
	}
	return pid, true
}

func (l *Lock) create() error {
	f, err := os.OpenFile(l.path, os.O_CREATE|os.O_EXCL|os.O_WRONLY, 0o644)
	if err != nil {
		return err
	}
	_, werr := fmt.Fprintf(f, "%d", os.Getpid())
	cerr := f.Close()
	if werr == nil {
		werr = cerr
	}
	if werr != nil {
		_ = os.Remove(l.path)
		return fmt.Errorf("write lock file: %w", werr)
	}
	return nil
}

func (l *Lock) holder() (int, bool) {
	data, err := os.ReadFile(l.path)
	if err != nil {
		return 0, false
	}
	pid, err := strconv.Atoi(strings.TrimSpace(string(data)))
	if err != nil || pid <= 0 {
		return 0, false
	}
	return pid, true
}

// processExists uses signal 0, which checks for the process without
// signalling it.
func processExists(pid int) bool {
	if pid == os.Getpid() {
		return true
	}
	process, err := os.FindProcess(pid)
	if err != nil {
		return false
	}
	return process.Signal(syscall.Signal(0)) == nil
}

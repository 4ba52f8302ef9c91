// Package lock provides a single-instance guard so two gateways never serve
// the same configuration at once.
package lock

import (
	"fmt"
	"os"
	"path/filepath"
	"syscall"
)

// Lock is a PID-file lock held via flock(2). The lock lives as long as the
// file descriptor stays open.
type Lock struct {
	path string
	f    *os.File
}

// Acquire takes an exclusive non-blocking lock at path and records the
// current PID in it. Fails immediately if another process holds the lock.
func Acquire(path string) (*Lock, error) {
	if path == "" {
		return nil, fmt.Errorf("lock path is empty")
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("create lock directory: %w", err)
	}

	f, err := os.OpenFile(path, os.O_CREATE|os.O_RDWR, 0o644)
	if err != nil {
		return nil, fmt.Errorf("open lock file: %w", err)
	}

	abort := func(step string, err error) (*Lock, error) {
		_ = syscall.Flock(int(f.Fd()), syscall.LOCK_UN)
		_ = f.Close()
		return nil, fmt.Errorf("%s: %w", step, err)
	}

	if err := syscall.Flock(int(f.Fd()), syscall.LOCK_EX|syscall.LOCK_NB); err != nil {
		_ = f.Close()
		return nil, fmt.Errorf("acquire lock (is another countersign running?): %w", err)
	}

	if err := f.Truncate(0); err != nil {
		return abort("truncate lock file", err)
	}
	if _, err := f.Seek(0, 0); err != nil {
		return abort("seek lock file", err)
	}
	if _, err := fmt.Fprintf(f, "%d\n", os.Getpid()); err != nil {
		return abort("write pid", err)
	}
	if err := f.Sync(); err != nil {
		return abort("sync lock file", err)
	}

	return &Lock{path: path, f: f}, nil
}

// Path returns the lock file location.
func (l *Lock) Path() string { return l.path }

// Release drops the lock. Safe to call on a nil or already-released lock.
func (l *Lock) Release() error {
	if l == nil || l.f == nil {
		return nil
	}
	_ = syscall.Flock(int(l.f.Fd()), syscall.LOCK_UN)
	err := l.f.Close()
	l.f = nil
	return err
}

package lock

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestAcquireRelease(t *testing.T) {
	path := filepath.Join(t.TempDir(), "countersign.lock")

	l, err := Acquire(path)
	if err != nil {
		t.Fatalf("Acquire() error = %v", err)
	}
	defer l.Release()

	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("read lock file: %v", err)
	}
	want := fmt.Sprintf("%d\n", os.Getpid())
	if string(data) != want {
		t.Errorf("lock file = %q, want %q", data, want)
	}

	if err := l.Release(); err != nil {
		t.Errorf("Release() error = %v", err)
	}
	// Releasing twice is a no-op.
	if err := l.Release(); err != nil {
		t.Errorf("second Release() error = %v", err)
	}
}

func TestAcquire_HeldLock(t *testing.T) {
	path := filepath.Join(t.TempDir(), "countersign.lock")

	l1, err := Acquire(path)
	if err != nil {
		t.Fatalf("first Acquire() error = %v", err)
	}
	defer l1.Release()

	// flock locks are per-fd, so a second acquire from this process on a
	// fresh descriptor still conflicts.
	if _, err := Acquire(path); err == nil {
		t.Fatal("second Acquire() succeeded while lock held")
	} else if !strings.Contains(err.Error(), "acquire lock") {
		t.Errorf("unexpected error: %v", err)
	}
}

func TestAcquire_ReacquireAfterRelease(t *testing.T) {
	path := filepath.Join(t.TempDir(), "countersign.lock")

	l1, err := Acquire(path)
	if err != nil {
		t.Fatalf("Acquire() error = %v", err)
	}
	if err := l1.Release(); err != nil {
		t.Fatalf("Release() error = %v", err)
	}

	l2, err := Acquire(path)
	if err != nil {
		t.Fatalf("re-Acquire() error = %v", err)
	}
	l2.Release()
}

func TestAcquire_EmptyPath(t *testing.T) {
	if _, err := Acquire(""); err == nil {
		t.Fatal("Acquire(\"\") should fail")
	}
}

func TestAcquire_CreatesDirectory(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "dir", "countersign.lock")

	l, err := Acquire(path)
	if err != nil {
		t.Fatalf("Acquire() error = %v", err)
	}
	defer l.Release()

	if _, err := os.Stat(path); err != nil {
		t.Errorf("lock file not created: %v", err)
	}
}

package store

import (
	"errors"
	"os"
	"path/filepath"
	"strconv"
	"testing"
)

func TestLock_AcquireRelease(t *testing.T) {
	dir := filepath.Join(t.TempDir(), ".hive")
	l := NewLock(dir)

	if err := l.Acquire(); err != nil {
		t.Fatalf("Acquire() error = %v", err)
	}
	if pid, ok := l.Holder(); !ok || pid != os.Getpid() {
		t.Errorf("Holder() = %d, %v", pid, ok)
	}
	if err := NewLock(dir).Acquire(); !errors.Is(err, ErrLocked) {
		t.Errorf("second Acquire() error = %v, want ErrLocked", err)
	}
	if err := l.Release(); err != nil {
		t.Fatalf("Release() error = %v", err)
	}
	if err := l.Release(); err != nil {
		t.Errorf("second Release() error = %v", err)
	}
	if _, ok := l.Holder(); ok {
		t.Error("Holder() reports a holder after release")
	}
}

func TestLock_StaleLockIsCleared(t *testing.T) {
	tests := []struct {
		name    string
		content string
	}{
		{"garbage", "not-a-pid"},
		// Pid far above any default pid_max.
		{"dead process", strconv.Itoa(1 << 30)},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			dir := t.TempDir()
			if err := os.WriteFile(filepath.Join(dir, LockFile), []byte(tt.content), 0o644); err != nil {
				t.Fatal(err)
			}
			l := NewLock(dir)
			if err := l.Acquire(); err != nil {
				t.Fatalf("Acquire() error = %v", err)
			}
			data, _ := os.ReadFile(l.Path())
			if string(data) != strconv.Itoa(os.Getpid()) {
				t.Errorf("lock content = %q", data)
			}
		})
	}
}

package lockfile

import (
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func TestAcquireWritesOwner(t *testing.T) {
	dir := t.TempDir()
	lock, err := Acquire(dir)
	if err != nil {
		t.Fatalf("Failed to acquire lock: %v", err)
	}
	defer lock.Release()

	if lock.Path() != filepath.Join(dir, FileName) {
		t.Errorf("unexpected lock path %s", lock.Path())
	}
	owner := ReadOwner(lock.Path())
	if owner.PID != os.Getpid() {
		t.Errorf("owner PID = %d, want %d", owner.PID, os.Getpid())
	}
	if !owner.Running {
		t.Error("own process should be reported as running")
	}
	if time.Since(owner.Started) > time.Minute {
		t.Errorf("unexpected start time %v", owner.Started)
	}
}

func TestAcquireConflict(t *testing.T) {
	dir := t.TempDir()
	first, err := Acquire(dir)
	if err != nil {
		t.Fatalf("Failed to acquire first lock: %v", err)
	}
	defer first.Release()

	second, err := Acquire(dir)
	if err == nil {
		second.Release()
		t.Fatal("second acquisition should fail")
	}
	var held *HeldError
	if !errors.As(err, &held) {
		t.Fatalf("expected *HeldError, got %T", err)
	}
	if held.Owner.PID != os.Getpid() {
		t.Errorf("failed attempt must keep the owner record, got PID %d", held.Owner.PID)
	}
	if !strings.Contains(err.Error(), dir) {
		t.Errorf("error should name the lock path: %s", err)
	}
}

func TestReleaseRemovesFileAndAllowsReacquire(t *testing.T) {
	dir := t.TempDir()
	lock, err := Acquire(dir)
	if err != nil {
		t.Fatalf("Failed to acquire lock: %v", err)
	}
	if err := lock.Release(); err != nil {
		t.Fatalf("Release: %v", err)
	}
	if _, err := os.Stat(lock.Path()); !os.IsNotExist(err) {
		t.Errorf("lock file should be removed, stat err = %v", err)
	}
	if err := lock.Release(); err != nil {
		t.Errorf("second Release should be a no-op: %v", err)
	}

	again, err := Acquire(dir)
	if err != nil {
		t.Fatalf("reacquire after release: %v", err)
	}
	again.Release()
}

func TestAcquireCreatesDirectory(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "state", "nested")
	lock, err := Acquire(dir)
	if err != nil {
		t.Fatalf("Acquire: %v", err)
	}
	defer lock.Release()
	if _, err := os.Stat(dir); err != nil {
		t.Errorf("directory should exist: %v", err)
	}
}

func TestReadOwner(t *testing.T) {
	tests := []struct {
		name    string
		content string
		wantPID int
	}{
		{"pid and start", "pid=12345\nstarted=2024-01-02T03:04:05Z\n", 12345},
		{"pid only", "pid=67890", 67890},
		{"no pid", "other=info", 0},
		{"empty", "", 0},
		{"invalid pid", "pid=abc", 0},
		{"no separator", "pid12345", 0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			path := filepath.Join(t.TempDir(), FileName)
			if err := os.WriteFile(path, []byte(tt.content), 0o644); err != nil {
				t.Fatal(err)
			}
			if got := ReadOwner(path).PID; got != tt.wantPID {
				t.Errorf("ReadOwner(%q).PID = %d, want %d", tt.content, got, tt.wantPID)
			}
		})
	}

	if owner := ReadOwner(filepath.Join(t.TempDir(), "missing")); owner.PID != 0 {
		t.Errorf("missing file should yield zero owner, got %+v", owner)
	}
}

func TestOwnerString(t *testing.T) {
	if got := (Owner{}).String(); got != "unknown process" {
		t.Errorf("zero owner = %q", got)
	}
	got := Owner{PID: 42}.String()
	if !strings.Contains(got, "PID 42") || !strings.Contains(got, "stale") {
		t.Errorf("dead owner = %q", got)
	}
}

package watcher

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"
)

// waitOrTimeout runs WaitForChange with a deadline and reports whether
// it returned before the deadline expired.
func waitOrTimeout(t *testing.T, fw *FSWatcher, timeout time.Duration) (bool, error) {
	t.Helper()

	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()

	err := fw.WaitForChange(ctx)
	if errors.Is(err, context.DeadlineExceeded) {
		return false, nil
	}
	return true, err
}

func TestNewMissingTarget(t *testing.T) {
	missing := filepath.Join(t.TempDir(), "gone")

	_, err := New(missing, true, "")
	if !errors.Is(err, ErrWatchUnavailable) {
		t.Errorf("New() error = %v, want ErrWatchUnavailable", err)
	}
}

func TestDirectoryWrite(t *testing.T) {
	dir := t.TempDir()

	fw, err := New(dir, true, filepath.Join(dir, ".git"))
	if err != nil {
		t.Fatalf("New() failed: %v", err)
	}
	defer fw.Close()

	go func() {
		time.Sleep(50 * time.Millisecond)
		os.WriteFile(filepath.Join(dir, "notes.txt"), []byte("hello"), 0644)
	}()

	woke, err := waitOrTimeout(t, fw, 2*time.Second)
	if err != nil {
		t.Fatalf("WaitForChange() failed: %v", err)
	}
	if !woke {
		t.Error("WaitForChange() did not return after a write")
	}
}

func TestDirectoryRecursive(t *testing.T) {
	dir := t.TempDir()
	sub := filepath.Join(dir, "sub")
	if err := os.Mkdir(sub, 0755); err != nil {
		t.Fatalf("failed to create subdir: %v", err)
	}

	fw, err := New(dir, true, filepath.Join(dir, ".git"))
	if err != nil {
		t.Fatalf("New() failed: %v", err)
	}
	defer fw.Close()

	go func() {
		time.Sleep(50 * time.Millisecond)
		os.WriteFile(filepath.Join(sub, "deep.txt"), []byte("hello"), 0644)
	}()

	woke, err := waitOrTimeout(t, fw, 2*time.Second)
	if err != nil {
		t.Fatalf("WaitForChange() failed: %v", err)
	}
	if !woke {
		t.Error("WaitForChange() did not return for a write in a subdirectory")
	}
}

func TestNewSubdirectoryIsArmed(t *testing.T) {
	dir := t.TempDir()

	fw, err := New(dir, true, filepath.Join(dir, ".git"))
	if err != nil {
		t.Fatalf("New() failed: %v", err)
	}
	defer fw.Close()

	// Creating the directory itself is a qualifying event.
	sub := filepath.Join(dir, "later")
	if err := os.Mkdir(sub, 0755); err != nil {
		t.Fatalf("failed to create subdir: %v", err)
	}
	woke, err := waitOrTimeout(t, fw, 2*time.Second)
	if err != nil {
		t.Fatalf("WaitForChange() failed: %v", err)
	}
	if !woke {
		t.Fatal("WaitForChange() did not return for directory creation")
	}

	// And the new directory is now part of the watch set.
	go func() {
		time.Sleep(50 * time.Millisecond)
		os.WriteFile(filepath.Join(sub, "inside.txt"), []byte("hello"), 0644)
	}()

	woke, err = waitOrTimeout(t, fw, 2*time.Second)
	if err != nil {
		t.Fatalf("WaitForChange() failed: %v", err)
	}
	if !woke {
		t.Error("WaitForChange() did not return for a write in a new subdirectory")
	}
}

func TestMetadataDirExcluded(t *testing.T) {
	dir := t.TempDir()
	gitDir := filepath.Join(dir, ".git")
	if err := os.Mkdir(gitDir, 0755); err != nil {
		t.Fatalf("failed to create .git: %v", err)
	}

	fw, err := New(dir, true, gitDir)
	if err != nil {
		t.Fatalf("New() failed: %v", err)
	}
	defer fw.Close()

	// Activity inside the metadata directory must not wake the loop.
	if err := os.WriteFile(filepath.Join(gitDir, "index.lock"), nil, 0644); err != nil {
		t.Fatalf("failed to write in .git: %v", err)
	}

	woke, err := waitOrTimeout(t, fw, 500*time.Millisecond)
	if err != nil {
		t.Fatalf("WaitForChange() failed: %v", err)
	}
	if woke {
		t.Error("WaitForChange() returned for activity inside the metadata directory")
	}
}

func TestFileTarget(t *testing.T) {
	dir := t.TempDir()
	target := filepath.Join(dir, "notes.txt")
	sibling := filepath.Join(dir, "other.txt")
	for _, f := range []string{target, sibling} {
		if err := os.WriteFile(f, nil, 0644); err != nil {
			t.Fatalf("failed to write %s: %v", f, err)
		}
	}

	fw, err := New(target, false, filepath.Join(dir, ".git"))
	if err != nil {
		t.Fatalf("New() failed: %v", err)
	}
	defer fw.Close()

	// Sibling activity does not qualify in single-file mode.
	if err := os.WriteFile(sibling, []byte("noise"), 0644); err != nil {
		t.Fatalf("failed to write sibling: %v", err)
	}
	woke, err := waitOrTimeout(t, fw, 500*time.Millisecond)
	if err != nil {
		t.Fatalf("WaitForChange() failed: %v", err)
	}
	if woke {
		t.Error("WaitForChange() returned for a sibling file event")
	}

	// The target itself does.
	go func() {
		time.Sleep(50 * time.Millisecond)
		os.WriteFile(target, []byte("hello"), 0644)
	}()

	woke, err = waitOrTimeout(t, fw, 2*time.Second)
	if err != nil {
		t.Fatalf("WaitForChange() failed: %v", err)
	}
	if !woke {
		t.Error("WaitForChange() did not return for a target write")
	}
}

func TestCloseFailsWait(t *testing.T) {
	dir := t.TempDir()

	fw, err := New(dir, true, "")
	if err != nil {
		t.Fatalf("New() failed: %v", err)
	}

	go func() {
		time.Sleep(50 * time.Millisecond)
		fw.Close()
	}()

	err = fw.WaitForChange(context.Background())
	if !errors.Is(err, ErrWatchUnavailable) {
		t.Errorf("WaitForChange() after Close = %v, want ErrWatchUnavailable", err)
	}
}

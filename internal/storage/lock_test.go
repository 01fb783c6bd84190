package storage

import (
	"path/filepath"
	"testing"
	"time"
)

func TestFileLock_LockUnlock(t *testing.T) {
	path := filepath.Join(t.TempDir(), "a")
	l := NewFileLock(path)

	if err := l.Lock(); err != nil {
		t.Fatalf("Lock failed: %v", err)
	}
	if err := l.Unlock(); err != nil {
		t.Fatalf("Unlock failed: %v", err)
	}
}

func TestFileLock_TryLockFailsWhileHeld(t *testing.T) {
	path := filepath.Join(t.TempDir(), "b")
	holder := NewFileLock(path)
	if err := holder.Lock(); err != nil {
		t.Fatalf("Lock failed: %v", err)
	}
	defer holder.Unlock()

	contender := NewFileLock(path)
	if contender.TryLock() {
		t.Error("expected TryLock to fail while another FileLock holds the lock")
	}
}

func TestFileLock_SerializesConcurrentWriters(t *testing.T) {
	path := filepath.Join(t.TempDir(), "c")

	done := make(chan struct{})
	go func() {
		l := NewFileLock(path)
		if err := l.Lock(); err != nil {
			t.Errorf("Lock failed: %v", err)
			close(done)
			return
		}
		time.Sleep(50 * time.Millisecond)
		l.Unlock()
		close(done)
	}()

	time.Sleep(10 * time.Millisecond)
	l2 := NewFileLock(path)
	start := time.Now()
	if err := l2.Lock(); err != nil {
		t.Fatalf("Lock failed: %v", err)
	}
	elapsed := time.Since(start)
	l2.Unlock()
	<-done

	if elapsed < 30*time.Millisecond {
		t.Errorf("expected second Lock to block until the first released, elapsed=%v", elapsed)
	}
}

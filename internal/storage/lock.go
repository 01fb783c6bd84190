package storage

import (
	"sync"

	"github.com/gofrs/flock"
)

// FileLock serializes access to one storage path across goroutines (via
// mu) and across processes (via a sibling ".lock" file advisory-locked
// with gofrs/flock). Background sessions and storage Puts share this
// same lock type, so a background tool writing session metadata and a
// concurrent inspector reading it never race on the sidecar file.
type FileLock struct {
	path string
	fl   *flock.Flock
	mu   sync.Mutex
}

// NewFileLock creates a new file lock.
func NewFileLock(path string) *FileLock {
	return &FileLock{path: path, fl: flock.New(path + ".lock")}
}

// Lock acquires an exclusive lock on the file, blocking until available.
func (l *FileLock) Lock() error {
	l.mu.Lock()
	if err := l.fl.Lock(); err != nil {
		l.mu.Unlock()
		return err
	}
	return nil
}

// TryLock attempts to acquire the lock without blocking.
func (l *FileLock) TryLock() bool {
	if !l.mu.TryLock() {
		return false
	}
	ok, err := l.fl.TryLock()
	if err != nil || !ok {
		l.mu.Unlock()
		return false
	}
	return true
}

// Unlock releases the lock.
func (l *FileLock) Unlock() error {
	err := l.fl.Unlock()
	l.mu.Unlock()
	return err
}

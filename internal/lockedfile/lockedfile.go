// Package lockedfile serializes processes working on the same directory
// through an exclusive lock on a file.
package lockedfile

import (
	"os"
	"path/filepath"
)

// Mutex is an exclusive lock held on the file at a path.
type Mutex struct {
	path string
}

// MutexAt returns a Mutex on the file at path. The file is created on first
// Lock and never removed.
func MutexAt(path string) *Mutex {
	return &Mutex{path: path}
}

// Lock blocks until the lock is held and returns the function releasing it.
func (mu *Mutex) Lock() (unlock func(), err error) {
	if err := os.MkdirAll(filepath.Dir(mu.path), 0o755); err != nil {
		return nil, err
	}
	f, err := os.OpenFile(mu.path, os.O_RDWR|os.O_CREATE, 0o644)
	if err != nil {
		return nil, err
	}
	if err := lockFile(f); err != nil {
		f.Close()
		return nil, &os.PathError{Op: "lock", Path: mu.path, Err: err}
	}
	return func() {
		unlockFile(f)
		f.Close()
	}, nil
}

//go:build !windows

package daemon

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/gofrs/flock"
)

// FileLock is an advisory lock on a file in the runtime directory. The
// kernel drops it when the process exits.
type FileLock struct {
	Path string
	fl   *flock.Flock
}

// DefaultLock returns the well-known singleton lock file.
func DefaultLock() Lock {
	return &FileLock{Path: GetLockFilePath()}
}

func (l *FileLock) TryAcquire() (bool, error) {
	if l.fl != nil && l.fl.Locked() {
		return true, nil
	}

	if err := os.MkdirAll(filepath.Dir(l.Path), 0700); err != nil {
		return false, err
	}

	fl := flock.New(l.Path)
	ok, err := fl.TryLock()
	if err != nil {
		return false, fmt.Errorf("lock %s: %w", l.Path, err)
	}
	if !ok {
		return false, nil
	}
	l.fl = fl
	return true, nil
}

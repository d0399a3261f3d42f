package publish

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/gofrs/flock"
)

// lockRetryDelay is how often a contended lock is retried.
const lockRetryDelay = 20 * time.Millisecond

// fileLock serializes writers of one published file across processes.
// The lock file lives at <dir>/<filename>.lock, outside the public directory.
type fileLock struct {
	path   string
	flock  *flock.Flock
	locked bool
}

func newFileLock(dir, filename string) *fileLock {
	lockPath := filepath.Join(dir, filename+".lock")
	return &fileLock{
		path:  lockPath,
		flock: flock.New(lockPath),
	}
}

// lock blocks until the lock is held or ctx is done.
func (l *fileLock) lock(ctx context.Context) error {
	if err := os.MkdirAll(filepath.Dir(l.path), 0755); err != nil {
		return fmt.Errorf("failed to create lock directory: %w", err)
	}

	acquired, err := l.flock.TryLockContext(ctx, lockRetryDelay)
	if err != nil {
		return fmt.Errorf("failed to acquire lock %s: %w", l.path, err)
	}
	if !acquired {
		return fmt.Errorf("lock %s not acquired", l.path)
	}

	l.locked = true
	return nil
}

// unlock is safe to call on an unlocked fileLock.
func (l *fileLock) unlock() error {
	if !l.locked {
		return nil
	}
	l.locked = false
	if err := l.flock.Unlock(); err != nil {
		return fmt.Errorf("failed to release lock: %w", err)
	}
	return nil
}

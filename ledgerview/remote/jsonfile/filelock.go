package jsonfile

import (
	"context"
	"time"

	"github.com/gofrs/flock"
)

// FileLock defines the interface for file locking operations
type FileLock interface {
	// TryLockContext attempts to acquire an exclusive lock with retries
	TryLockContext(ctx context.Context, retryInterval time.Duration) (bool, error)

	// Unlock releases the lock
	Unlock() error
}

// FileLockFactory creates FileLock instances
type FileLockFactory interface {
	// New creates a new FileLock for the given path
	New(path string) FileLock
}

// flockLock wraps github.com/gofrs/flock for our interface
type flockLock struct {
	flock *flock.Flock
}

func (f *flockLock) TryLockContext(ctx context.Context, retryInterval time.Duration) (bool, error) {
	return f.flock.TryLockContext(ctx, retryInterval)
}

func (f *flockLock) Unlock() error {
	return f.flock.Unlock()
}

// FlockFactory is the default factory, backed by advisory flock(2) locks
type FlockFactory struct{}

// New implements FileLockFactory.New
func (f *FlockFactory) New(path string) FileLock {
	return &flockLock{flock: flock.New(path)}
}

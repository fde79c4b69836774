package lock

import "context"

type DistributedLockManager interface {
	// Acquire blocks until the lock is held.
	Acquire(ctx context.Context, lockID int) error
	// TryAcquire reports whether the lock was taken without waiting.
	TryAcquire(ctx context.Context, lockID int) (bool, error)
	Release(ctx context.Context, lockID int) error
}

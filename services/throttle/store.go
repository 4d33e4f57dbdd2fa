package throttle

import (
	"context"
	"time"
)

// Store holds per-key failure windows and lock expiries. Implementations
// must not lose failures recorded concurrently for the same key.
type Store interface {
	// AddFailure records a failure at `at`, discards failures at or before
	// at-window and returns how many remain.
	AddFailure(ctx context.Context, key string, at time.Time, window time.Duration) (int, error)
	// Failures counts failures after at-window.
	Failures(ctx context.Context, key string, at time.Time, window time.Duration) (int, error)
	Lock(ctx context.Context, key string, until time.Time) error
	// LockedUntil reports the stored lock expiry, whether or not it has passed.
	LockedUntil(ctx context.Context, key string) (time.Time, bool, error)
	// Clear removes the failure window and any lock for key.
	Clear(ctx context.Context, key string) error
}

// Sweeper is implemented by stores that need periodic removal of stale state.
type Sweeper interface {
	Sweep(ctx context.Context, now time.Time) error
}

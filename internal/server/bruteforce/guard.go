// Package bruteforce throttles failed logins per source key (client IP).
//
// The in-memory guard is process local: several server instances do not
// share counters. RedisGuard is the opt-in shared variant.
package bruteforce

import (
	"context"
	"time"
)

type Config struct {
	MaxAttempts int
	Window      time.Duration
}

// Guard counts failures per key within a fixed window that starts at the
// first failure.
type Guard interface {
	// IsBlocked reports whether key has reached MaxAttempts within its
	// current window.
	IsBlocked(ctx context.Context, key string) (bool, error)
	// RecordFailure counts one confirmed invalid-credentials attempt.
	RecordFailure(ctx context.Context, key string) error
}

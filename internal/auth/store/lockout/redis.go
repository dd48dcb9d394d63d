// Package lockout throttles failed logins per identifier. Counters live in
// Redis with the failure window as TTL; a lock key blocks further attempts
// until it expires.
package lockout

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"onboardingportal/internal/platform/config"
)

const (
	failPrefix = "lockout:fail:"
	lockPrefix = "lockout:lock:"
)

type RedisStore struct {
	client redis.Cmdable
	cfg    config.Lockout
}

func NewRedis(client redis.Cmdable, cfg config.Lockout) *RedisStore {
	return &RedisStore{client: client, cfg: cfg}
}

// IsLocked reports whether the identifier is currently locked and for how
// much longer.
func (s *RedisStore) IsLocked(ctx context.Context, identifier string) (bool, time.Duration, error) {
	ttl, err := s.client.TTL(ctx, lockPrefix+identifier).Result()
	if err != nil {
		return false, 0, fmt.Errorf("check lockout: %w", err)
	}
	// TTL returns negative durations for missing keys.
	if ttl <= 0 {
		return false, 0, nil
	}
	return true, ttl, nil
}

// RecordFailure increments the failure counter and locks the identifier
// once the threshold is crossed. Returns true if the lock was applied.
func (s *RedisStore) RecordFailure(ctx context.Context, identifier string) (bool, error) {
	key := failPrefix + identifier
	count, err := s.client.Incr(ctx, key).Result()
	if err != nil {
		return false, fmt.Errorf("record login failure: %w", err)
	}
	if count == 1 {
		// First failure starts the window.
		if err := s.client.Expire(ctx, key, s.cfg.Window).Err(); err != nil {
			return false, fmt.Errorf("set failure window: %w", err)
		}
	}
	if count < int64(s.cfg.MaxFailures) {
		return false, nil
	}
	if err := s.client.Set(ctx, lockPrefix+identifier, 1, s.cfg.LockFor).Err(); err != nil {
		return false, fmt.Errorf("apply lockout: %w", err)
	}
	return true, nil
}

// Clear resets counters after a successful login.
func (s *RedisStore) Clear(ctx context.Context, identifier string) error {
	if err := s.client.Del(ctx, failPrefix+identifier, lockPrefix+identifier).Err(); err != nil && !errors.Is(err, redis.Nil) {
		return fmt.Errorf("clear lockout: %w", err)
	}
	return nil
}

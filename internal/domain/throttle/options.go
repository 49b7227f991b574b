package throttle

import "time"

// Option applies a configuration option to the in-memory throttle.
type Option func(*inMemoryThrottle)

// WithCooldown sets the per-key cooldown. Non-positive values are ignored.
func WithCooldown(d time.Duration) Option {
	return func(t *inMemoryThrottle) {
		if d > 0 {
			t.cooldown = d
		}
	}
}

// WithSessionID stamps admitted records with the session identifier.
func WithSessionID(id string) Option {
	return func(t *inMemoryThrottle) {
		t.sessionID = id
	}
}

// WithIDGenerator replaces the UUID generator, mainly for tests.
func WithIDGenerator(fn func() string) Option {
	return func(t *inMemoryThrottle) {
		if fn != nil {
			t.newID = fn
		}
	}
}

// WithMaxKeys bounds the table size. If maxKeys <= 0 the table is unbounded.
func WithMaxKeys(maxKeys int) Option {
	return func(t *inMemoryThrottle) {
		t.maxKeys = maxKeys
	}
}

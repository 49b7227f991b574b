// Package throttle bounds event volume with a per-key cooldown.
package throttle

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"

	"github.com/okian/proctor/internal/domain/model"
	"github.com/okian/proctor/pkg/logger"
	"github.com/okian/proctor/pkg/metrics"
)

// DefaultCooldown is the minimum gap between two admitted events with the same key.
const DefaultCooldown = 4000 * time.Millisecond

// Throttle admits a candidate at most once per key per cooldown window.
type Throttle interface {
	// Admit stamps and returns the record when the key is outside its cooldown,
	// updating the key's clock. Otherwise it returns false and changes nothing.
	Admit(ctx context.Context, c model.EventCandidate, now time.Time) (model.EventRecord, bool)

	// Reset forgets every key.
	Reset(ctx context.Context)

	Size() int64
}

// inMemoryThrottle keeps the last admission time per key. Keys form a small
// known set, so the table is a plain map; maxKeys guards against unbounded
// growth from malformed keys by evicting the stalest entry.
type inMemoryThrottle struct {
	mu        sync.Mutex
	last      map[string]time.Time
	cooldown  time.Duration
	maxKeys   int
	sessionID string
	newID     func() string
	size      atomic.Int64
}

// NewInMemoryThrottle creates a throttle with configuration options.
func NewInMemoryThrottle(opts ...Option) Throttle {
	t := &inMemoryThrottle{
		cooldown: DefaultCooldown,
		maxKeys:  1024,
		newID:    uuid.NewString,
	}
	for _, opt := range opts {
		opt(t)
	}
	t.last = make(map[string]time.Time)
	return t
}

func (t *inMemoryThrottle) Admit(ctx context.Context, c model.EventCandidate, now time.Time) (model.EventRecord, bool) {
	t.mu.Lock()
	prev, seen := t.last[c.Key]
	if seen && now.Sub(prev) < t.cooldown {
		t.mu.Unlock()
		metrics.RecordEventSuppressed(c.Key)
		return model.EventRecord{}, false
	}
	if !seen && t.maxKeys > 0 && len(t.last) >= t.maxKeys {
		t.evictStalest()
	}
	t.last[c.Key] = now
	t.size.Store(int64(len(t.last)))
	t.mu.Unlock()

	rec := model.EventRecord{
		ID:        t.newID(),
		SessionID: t.sessionID,
		Key:       c.Key,
		Category:  c.Category,
		Kind:      c.Kind,
		Severity:  c.Severity,
		Message:   c.Message,
		TS:        now,
	}
	metrics.RecordEventAdmitted(c.Key, string(c.Severity))
	logger.Get().Debug(ctx, "event admitted",
		logger.String("key", c.Key),
		logger.String("id", rec.ID),
		logger.String("severity", string(c.Severity)),
	)
	return rec, true
}

// evictStalest drops the key admitted longest ago. Must be called with t.mu held.
func (t *inMemoryThrottle) evictStalest() {
	var (
		oldestKey string
		oldest    time.Time
		found     bool
	)
	for k, ts := range t.last {
		if !found || ts.Before(oldest) {
			oldestKey, oldest, found = k, ts, true
		}
	}
	if found {
		delete(t.last, oldestKey)
	}
}

func (t *inMemoryThrottle) Reset(ctx context.Context) {
	t.mu.Lock()
	clear(t.last)
	t.size.Store(0)
	t.mu.Unlock()
}

// Size returns the number of keys currently tracked.
func (t *inMemoryThrottle) Size() int64 {
	return t.size.Load()
}

// Package service provides the collector service that implements
// the dependencies required by the HTTP API.
package service

import (
	"context"
	"fmt"
	"runtime"
	"sync"
	"time"

	"github.com/okian/proctor/internal/adapters/http/stream"
	"github.com/okian/proctor/internal/adapters/repository"
	"github.com/okian/proctor/internal/domain/model"
	"github.com/okian/proctor/internal/domain/types"
	"github.com/okian/proctor/pkg/logger"
	"github.com/okian/proctor/pkg/metrics"
)

// DefaultListLimit is used when GET /events carries no limit.
const DefaultListLimit = 50

// Service implements the API dependencies for the event collector.
type Service struct {
	mu sync.RWMutex

	store repository.Store
	hub   *stream.Hub

	capacity     int
	streamBuffer int
	clock        func() time.Time

	started   bool
	startedAt time.Time
	cancel    context.CancelFunc
	hubDone   chan struct{}

	logger logger.Logger
}

// Option applies a configuration option to the Service.
type Option func(*Service)

// WithCapacity sets how many events are retained.
func WithCapacity(n int) Option {
	return func(s *Service) {
		if n > 0 {
			s.capacity = n
		}
	}
}

// WithStreamBuffer sets the websocket backlog per subscriber.
func WithStreamBuffer(n int) Option {
	return func(s *Service) {
		if n > 0 {
			s.streamBuffer = n
		}
	}
}

// WithClock overrides the time source used for defaulted timestamps.
func WithClock(now func() time.Time) Option {
	return func(s *Service) {
		if now != nil {
			s.clock = now
		}
	}
}

// WithLogger sets a custom logger for the service.
func WithLogger(l logger.Logger) Option {
	return func(s *Service) {
		if l != nil {
			s.logger = l
		}
	}
}

// New constructs a Service. The store and hub exist from construction so
// handlers can be wired before Start.
func New(opts ...Option) *Service {
	s := &Service{
		capacity:     repository.DefaultCapacity,
		streamBuffer: stream.DefaultBuffer,
		clock:        time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.logger == nil {
		s.logger = logger.Named("service")
	}
	s.store = repository.NewRingStore(repository.WithCapacity(s.capacity))
	s.hub = stream.NewHub(stream.WithBuffer(s.streamBuffer), stream.WithLogger(s.logger.Named("stream")))
	return s
}

// Start runs the stream hub. It is a no-op when already started.
func (s *Service) Start(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.started {
		return nil
	}
	s.logger.Info(ctx, "starting collector service...")

	hubCtx, cancel := context.WithCancel(context.WithoutCancel(ctx))
	s.cancel = cancel
	s.hubDone = make(chan struct{})
	go func(done chan struct{}) {
		defer close(done)
		s.hub.Run(hubCtx)
	}(s.hubDone)

	s.started = true
	s.startedAt = s.clock()
	s.logger.Info(ctx, "collector service started", logger.Int("capacity", s.capacity))
	return nil
}

// Stop disconnects stream subscribers. Stored events are kept.
func (s *Service) Stop() {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.started {
		return
	}
	s.logger.Info(context.Background(), "stopping collector service...")
	s.cancel()
	<-s.hubDone
	s.started = false
	s.logger.Info(context.Background(), "collector service stopped")
}

// Hub exposes the stream hub for the websocket handler.
func (s *Service) Hub() *stream.Hub {
	return s.hub
}

// Record stores an event and pushes it to stream subscribers.
func (s *Service) Record(ctx context.Context, in types.EventInput) (types.StoredEvent, error) {
	if !in.Kind.Valid() {
		return types.StoredEvent{}, ErrInvalidEvent
	}
	if in.Severity == "" {
		in.Severity = model.SeverityInfo
	}
	if !in.Severity.Valid() {
		return types.StoredEvent{}, ErrInvalidEvent
	}
	if in.TS.IsZero() {
		in.TS = s.clock().UTC()
	}

	rec, err := s.store.Append(ctx, in)
	if err != nil {
		return types.StoredEvent{}, fmt.Errorf("append event: %w", err)
	}
	metrics.RecordEventRecorded(string(rec.Kind), string(rec.Severity))
	if err := s.hub.Publish(ctx, rec); err != nil {
		s.logger.Warn(ctx, "publish event failed", logger.Int64("id", rec.ID), logger.Error(err))
	}
	s.logger.Debug(ctx, "event recorded",
		logger.Int64("id", rec.ID),
		logger.String("session_id", rec.SessionID),
		logger.String("kind", string(rec.Kind)),
		logger.String("severity", string(rec.Severity)),
	)
	return rec, nil
}

// List returns the newest events, oldest first. The limit is clamped to
// [1, stored].
func (s *Service) List(ctx context.Context, limit int) ([]types.StoredEvent, error) {
	count := s.store.Count(ctx)
	limit = max(1, min(limit, count))
	return s.store.Latest(ctx, limit)
}

// Status aggregates stored events.
func (s *Service) Status(ctx context.Context) types.Status {
	return s.store.Status(ctx)
}

// GetStats returns service statistics for monitoring.
func (s *Service) GetStats() map[string]interface{} {
	s.mu.RLock()
	defer s.mu.RUnlock()

	ctx := context.Background()
	stored := s.store.Count(ctx)
	clients := s.hub.ClientCount()
	stats := map[string]interface{}{
		"started":       s.started,
		"capacity":      s.capacity,
		"storedEvents":  stored,
		"streamClients": clients,
		"goroutines":    runtime.NumGoroutine(),
	}
	if s.started {
		stats["uptimeSeconds"] = s.clock().Sub(s.startedAt).Seconds()
	}

	metrics.UpdateEventsStored(stored)
	metrics.UpdateStreamClients(clients)
	metrics.UpdateSystemGoroutineCount(runtime.NumGoroutine())
	return stats
}

package repository

import (
	"context"
	"sync"

	"github.com/okian/proctor/internal/domain/model"
	"github.com/okian/proctor/internal/domain/types"
	"github.com/okian/proctor/pkg/metrics"
)

// RingStore is a fixed-size circular buffer of events guarded by one mutex.
type RingStore struct {
	mu       sync.RWMutex
	buf      []types.StoredEvent
	head     int // index of the oldest event
	size     int
	capacity int
	nextID   int64
}

// NewRingStore creates an empty store.
func NewRingStore(opts ...Option) *RingStore {
	s := &RingStore{capacity: DefaultCapacity}
	for _, opt := range opts {
		opt(s)
	}
	s.buf = make([]types.StoredEvent, s.capacity)
	metrics.UpdateEventsStored(0)
	return s
}

func (s *RingStore) Append(ctx context.Context, in types.EventInput) (types.StoredEvent, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.nextID++
	e := types.StoredEvent{
		ID:        s.nextID,
		SessionID: in.SessionID,
		Kind:      in.Kind,
		Severity:  in.Severity,
		Message:   in.Message,
		TS:        in.TS,
	}
	if s.size < s.capacity {
		s.buf[(s.head+s.size)%s.capacity] = e
		s.size++
	} else {
		s.buf[s.head] = e
		s.head = (s.head + 1) % s.capacity
	}
	metrics.UpdateEventsStored(s.size)
	return e, nil
}

func (s *RingStore) Latest(ctx context.Context, n int) ([]types.StoredEvent, error) {
	if n < 0 {
		return nil, ErrInvalidLimit
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	if n > s.size {
		n = s.size
	}
	out := make([]types.StoredEvent, n)
	start := s.size - n
	for i := 0; i < n; i++ {
		out[i] = s.buf[(s.head+start+i)%s.capacity]
	}
	return out, nil
}

func (s *RingStore) Status(ctx context.Context) types.Status {
	s.mu.RLock()
	defer s.mu.RUnlock()

	st := types.Status{
		Total:      s.size,
		BySeverity: map[string]int{},
		ByKind:     map[string]int{},
	}
	if s.size == 0 {
		return st
	}
	for _, sev := range model.Severities {
		st.BySeverity[string(sev)] = 0
	}
	for _, k := range model.Kinds {
		st.ByKind[string(k)] = 0
	}
	for i := 0; i < s.size; i++ {
		e := s.buf[(s.head+i)%s.capacity]
		st.BySeverity[string(e.Severity)]++
		st.ByKind[string(e.Kind)]++
	}
	latest := s.buf[(s.head+s.size-1)%s.capacity].TS
	st.Latest = &latest
	return st
}

func (s *RingStore) Count(ctx context.Context) int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.size
}

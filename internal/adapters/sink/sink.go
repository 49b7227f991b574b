// Package sink delivers admitted event records off the tick loop.
package sink

import (
	"context"
	"sync"

	"github.com/okian/proctor/internal/domain/model"
	"github.com/okian/proctor/pkg/logger"
)

// Sink accepts admitted records. Emit must not block on delivery and never
// reports failure to the caller.
type Sink interface {
	Emit(ctx context.Context, rec model.EventRecord)
}

// Func adapts a function to Sink.
type Func func(ctx context.Context, rec model.EventRecord)

func (f Func) Emit(ctx context.Context, rec model.EventRecord) { f(ctx, rec) }

// Multi fans a record out to several sinks in order.
type Multi []Sink

func (m Multi) Emit(ctx context.Context, rec model.EventRecord) {
	for _, s := range m {
		if s != nil {
			s.Emit(ctx, rec)
		}
	}
}

// Recorder keeps every record in memory, for local display and tests.
type Recorder struct {
	mu      sync.Mutex
	records []model.EventRecord
}

// NewRecorder creates an empty recorder.
func NewRecorder() *Recorder {
	return &Recorder{}
}

func (r *Recorder) Emit(_ context.Context, rec model.EventRecord) {
	r.mu.Lock()
	r.records = append(r.records, rec)
	r.mu.Unlock()
}

// Records returns a copy of everything recorded so far.
func (r *Recorder) Records() []model.EventRecord {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]model.EventRecord(nil), r.records...)
}

// Keys returns the key of every recorded event in order.
func (r *Recorder) Keys() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]string, len(r.records))
	for i, rec := range r.records {
		out[i] = rec.Key
	}
	return out
}

// Log writes each record to a logger.
type Log struct {
	logger logger.Logger
}

// NewLog creates a sink logging under the given logger.
func NewLog(l logger.Logger) *Log {
	return &Log{logger: l}
}

func (l *Log) Emit(ctx context.Context, rec model.EventRecord) {
	fields := []logger.Field{
		logger.String("id", rec.ID),
		logger.String("key", rec.Key),
		logger.String("kind", string(rec.Kind)),
		logger.String("message", rec.Message),
	}
	switch rec.Severity {
	case model.SeverityError:
		l.logger.Error(ctx, "event", fields...)
	case model.SeverityWarn:
		l.logger.Warn(ctx, "event", fields...)
	default:
		l.logger.Info(ctx, "event", fields...)
	}
}

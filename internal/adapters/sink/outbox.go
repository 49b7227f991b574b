package sink

import (
	"context"
	"errors"
	"fmt"

	"github.com/okian/proctor/internal/adapters/mq/queue"
	"github.com/okian/proctor/internal/adapters/mq/worker"
	"github.com/okian/proctor/internal/domain/model"
	"github.com/okian/proctor/pkg/logger"
	"github.com/okian/proctor/pkg/metrics"
)

// Outbox is a fire-and-forget Sink: Emit enqueues into a bounded queue and a
// worker pool delivers in the background. A full queue drops the record.
// Delivery is at most once.
type Outbox struct {
	queue  *queue.InMemoryQueue
	pool   *worker.Pool
	logger logger.Logger
}

// OutboxOption configures an Outbox.
type OutboxOption func(*outboxConfig)

type outboxConfig struct {
	capacity   int
	workers    int
	workerOpts []worker.Option
}

// WithQueueSize bounds the number of pending records.
func WithQueueSize(n int) OutboxOption {
	return func(c *outboxConfig) { c.capacity = n }
}

// WithWorkers sets the delivery concurrency.
func WithWorkers(n int) OutboxOption {
	return func(c *outboxConfig) { c.workers = n }
}

// WithWorkerOptions passes options to every worker.
func WithWorkerOptions(opts ...worker.Option) OutboxOption {
	return func(c *outboxConfig) { c.workerOpts = append(c.workerOpts, opts...) }
}

// NewOutbox creates an outbox delivering through d. Call Start before Emit.
func NewOutbox(d worker.Deliverer, opts ...OutboxOption) *Outbox {
	cfg := outboxConfig{capacity: 256, workers: 2}
	for _, opt := range opts {
		opt(&cfg)
	}
	q := queue.NewInMemoryQueue(queue.WithCapacity(cfg.capacity))
	return &Outbox{
		queue:  q,
		pool:   worker.NewPool(cfg.workers, q, d, cfg.workerOpts...),
		logger: logger.Get().Named("outbox"),
	}
}

// Start launches the delivery workers. They outlive ctx and stop only once
// Close has drained the queue.
func (o *Outbox) Start(ctx context.Context) {
	o.pool.Start(context.WithoutCancel(ctx))
}

func (o *Outbox) Emit(ctx context.Context, rec model.EventRecord) {
	if err := o.queue.Enqueue(ctx, rec); err != nil {
		metrics.RecordSinkDropped()
		o.logger.Warn(ctx, "record dropped",
			logger.String("id", rec.ID),
			logger.String("key", rec.Key),
			logger.Error(err),
		)
	}
}

// Pending returns the number of queued records.
func (o *Outbox) Pending(ctx context.Context) int {
	return o.queue.Len(ctx)
}

// Close stops accepting records and waits for pending ones to be attempted.
// It returns ErrUndelivered when records are still queued afterwards.
func (o *Outbox) Close(ctx context.Context) error {
	err := o.pool.Shutdown(ctx)
	if n := o.queue.Len(ctx); n > 0 {
		return errors.Join(err, fmt.Errorf("%w: %d pending", ErrUndelivered, n))
	}
	return err
}

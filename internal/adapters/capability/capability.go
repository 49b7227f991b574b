// Package capability models detectors that load in the background and may
// never become available.
package capability

import (
	"context"
	"errors"
	"sync"
)

// State of a capability.
type State int32

// States.
const (
	Unloaded State = iota
	Loading
	Ready
	Failed
)

func (s State) String() string {
	switch s {
	case Loading:
		return "loading"
	case Ready:
		return "ready"
	case Failed:
		return "failed"
	default:
		return "unloaded"
	}
}

var ErrAlreadyLoading = errors.New("capability already loading or loaded")

// Loader produces the underlying instance.
type Loader[T any] func(ctx context.Context) (T, error)

// Capability wraps an instance of T that becomes usable once loaded.
// Callers consult Get each time and treat "not ready" as a no-op.
type Capability[T any] struct {
	name  string
	mu    sync.RWMutex
	state State
	value T
	err   error
	ready chan struct{}
}

// New creates an unloaded capability.
func New[T any](name string) *Capability[T] {
	return &Capability[T]{name: name, ready: make(chan struct{})}
}

// Name returns the capability name used in logs and metrics.
func (c *Capability[T]) Name() string { return c.name }

// Load runs loader in the background. Done is closed once it settles.
func (c *Capability[T]) Load(ctx context.Context, loader Loader[T]) error {
	c.mu.Lock()
	if c.state != Unloaded {
		c.mu.Unlock()
		return ErrAlreadyLoading
	}
	c.state = Loading
	c.mu.Unlock()

	go func() {
		v, err := loader(ctx)
		c.settle(v, err)
	}()
	return nil
}

// Set installs an already-constructed instance.
func (c *Capability[T]) Set(v T) {
	c.settle(v, nil)
}

func (c *Capability[T]) settle(v T, err error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.state == Ready || c.state == Failed {
		return
	}
	if err != nil {
		c.state = Failed
		c.err = err
	} else {
		c.state = Ready
		c.value = v
	}
	close(c.ready)
}

// Get returns the instance when ready.
func (c *Capability[T]) Get() (T, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	if c.state != Ready {
		var zero T
		return zero, false
	}
	return c.value, true
}

// State returns the current state.
func (c *Capability[T]) State() State {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.state
}

// Err returns the load failure, if any.
func (c *Capability[T]) Err() error {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.err
}

// Done is closed when the capability becomes ready or fails.
func (c *Capability[T]) Done() <-chan struct{} {
	return c.ready
}

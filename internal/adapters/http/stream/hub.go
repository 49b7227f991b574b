// Package stream pushes stored collector events to websocket subscribers.
package stream

import (
	"context"
	"encoding/json"
	"sync"

	"github.com/okian/proctor/pkg/logger"
	"github.com/okian/proctor/pkg/metrics"
)

// DefaultBuffer is the per-hub broadcast backlog and per-client send buffer.
const DefaultBuffer = 256

// Hub maintains the set of active clients and broadcasts messages to them.
type Hub struct {
	clients    map[*Client]struct{}
	broadcast  chan []byte
	register   chan *Client
	unregister chan *Client
	buffer     int
	logger     logger.Logger

	mu      sync.RWMutex
	running bool
	done    chan struct{}
}

// Option configures a Hub.
type Option func(*Hub)

// WithBuffer sets the broadcast backlog and the per-client send buffer.
func WithBuffer(n int) Option {
	return func(h *Hub) {
		if n > 0 {
			h.buffer = n
		}
	}
}

// WithLogger sets the hub logger.
func WithLogger(l logger.Logger) Option {
	return func(h *Hub) {
		if l != nil {
			h.logger = l
		}
	}
}

// NewHub creates a hub. Run must be called before clients connect.
func NewHub(opts ...Option) *Hub {
	h := &Hub{
		clients:    make(map[*Client]struct{}),
		register:   make(chan *Client),
		unregister: make(chan *Client),
		buffer:     DefaultBuffer,
		logger:     logger.Named("stream"),
		done:       make(chan struct{}),
	}
	for _, opt := range opts {
		opt(h)
	}
	h.broadcast = make(chan []byte, h.buffer)
	return h
}

// Run serves register, unregister and broadcast requests until ctx ends,
// then disconnects every client. A hub whose Run returned may be run again.
func (h *Hub) Run(ctx context.Context) {
	h.mu.Lock()
	select {
	case <-h.done:
		h.done = make(chan struct{})
	default:
	}
	done := h.done
	h.running = true
	h.mu.Unlock()
	defer close(done)

	for {
		select {
		case <-ctx.Done():
			h.mu.Lock()
			for c := range h.clients {
				delete(h.clients, c)
				close(c.send)
			}
			h.running = false
			h.mu.Unlock()
			metrics.UpdateStreamClients(0)
			return

		case c := <-h.register:
			h.mu.Lock()
			h.clients[c] = struct{}{}
			count := len(h.clients)
			h.mu.Unlock()
			metrics.UpdateStreamClients(count)
			h.logger.Debug(ctx, "stream client connected", logger.Int("clients", count))

		case c := <-h.unregister:
			h.mu.Lock()
			if _, ok := h.clients[c]; ok {
				delete(h.clients, c)
				close(c.send)
			}
			count := len(h.clients)
			h.mu.Unlock()
			metrics.UpdateStreamClients(count)
			h.logger.Debug(ctx, "stream client disconnected", logger.Int("clients", count))

		case msg := <-h.broadcast:
			h.mu.Lock()
			for c := range h.clients {
				select {
				case c.send <- msg:
				default:
					delete(h.clients, c)
					close(c.send)
					h.logger.Warn(ctx, "dropped slow stream client")
				}
			}
			count := len(h.clients)
			h.mu.Unlock()
			metrics.UpdateStreamClients(count)
		}
	}
}

// Publish encodes v as JSON and queues it for every client. Messages are
// dropped when the broadcast backlog is full or the hub is not running.
func (h *Hub) Publish(ctx context.Context, v any) error {
	data, err := json.Marshal(v)
	if err != nil {
		return err
	}
	if !h.Running() {
		return nil
	}
	select {
	case h.broadcast <- data:
	default:
		h.logger.Warn(ctx, "stream backlog full, dropping message")
	}
	return nil
}

// ClientCount returns the number of connected clients.
func (h *Hub) ClientCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}

// Running reports whether Run is serving.
func (h *Hub) Running() bool {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return h.running
}

// Done is closed when the current or most recent Run returns.
func (h *Hub) Done() <-chan struct{} {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return h.done
}

func (h *Hub) join(c *Client) bool {
	select {
	case h.register <- c:
		return true
	case <-h.Done():
		return false
	}
}

func (h *Hub) leave(c *Client) {
	select {
	case h.unregister <- c:
	case <-h.Done():
	}
}

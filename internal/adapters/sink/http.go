package sink

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/okian/proctor/internal/domain/model"
)

// Payload is the wire shape accepted by the collector's POST /events.
type Payload struct {
	SessionID string    `json:"session_id"`
	Kind      string    `json:"kind"`
	Severity  string    `json:"severity"`
	Message   string    `json:"message"`
	TS        time.Time `json:"ts"`
}

// PayloadFrom converts a record to its wire form.
func PayloadFrom(rec model.EventRecord) Payload {
	return Payload{
		SessionID: rec.SessionID,
		Kind:      string(rec.Kind),
		Severity:  string(rec.Severity),
		Message:   rec.Message,
		TS:        rec.TS.UTC(),
	}
}

// HTTPClient posts records to a collector.
type HTTPClient struct {
	client *http.Client
	url    string
}

// HTTPOption configures an HTTPClient.
type HTTPOption func(*HTTPClient)

// WithHTTPClient replaces the underlying client.
func WithHTTPClient(c *http.Client) HTTPOption {
	return func(h *HTTPClient) {
		if c != nil {
			h.client = c
		}
	}
}

// WithTimeout sets the client timeout.
func WithTimeout(d time.Duration) HTTPOption {
	return func(h *HTTPClient) {
		if d > 0 {
			h.client.Timeout = d
		}
	}
}

// NewHTTPClient creates a client for the collector at baseURL.
func NewHTTPClient(baseURL string, opts ...HTTPOption) (*HTTPClient, error) {
	baseURL = strings.TrimRight(strings.TrimSpace(baseURL), "/")
	if baseURL == "" {
		return nil, ErrNoCollectorURL
	}
	h := &HTTPClient{
		client: &http.Client{Timeout: 5 * time.Second},
		url:    baseURL + "/events",
	}
	for _, opt := range opts {
		opt(h)
	}
	return h, nil
}

// Deliver performs one POST. Any non-2xx response is an error.
func (h *HTTPClient) Deliver(ctx context.Context, rec model.EventRecord) error {
	body, err := json.Marshal(PayloadFrom(rec))
	if err != nil {
		return fmt.Errorf("failed to marshal record: %w", err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, h.url, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := h.client.Do(req)
	if err != nil {
		return fmt.Errorf("post %s: %w", h.url, err)
	}
	defer resp.Body.Close()
	_, _ = io.Copy(io.Discard, resp.Body)

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return fmt.Errorf("%w: %d", ErrUnexpectedStatus, resp.StatusCode)
	}
	return nil
}

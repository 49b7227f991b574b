// Package types contains the wire shapes shared by the collector service
// and its HTTP layer.
package types

import (
	"time"

	"github.com/okian/proctor/internal/domain/model"
)

// EventInput is a validated POST /events body.
type EventInput struct {
	SessionID string
	Kind      model.Kind
	Severity  model.Severity
	Message   string
	TS        time.Time
}

// StoredEvent is an event as kept by the collector. IDs increase monotonically
// for the life of the process.
type StoredEvent struct {
	ID        int64          `json:"id"`
	SessionID string         `json:"session_id"`
	Kind      model.Kind     `json:"kind"`
	Severity  model.Severity `json:"severity"`
	Message   string         `json:"message"`
	TS        time.Time      `json:"ts"`
}

// Status aggregates the stored events. Latest is the timestamp of the newest
// event and is omitted when nothing is stored.
type Status struct {
	Total      int            `json:"total"`
	BySeverity map[string]int `json:"by_severity"`
	ByKind     map[string]int `json:"by_kind"`
	Latest     *time.Time     `json:"latest,omitempty"`
}

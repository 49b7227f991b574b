// Package repository keeps the collector's recent events.
package repository

import (
	"context"

	"github.com/okian/proctor/internal/domain/types"
)

// Store holds a bounded window of recent events.
type Store interface {
	// Append assigns the next ID, stores the event and returns it. The oldest
	// event is evicted when the store is full.
	Append(ctx context.Context, in types.EventInput) (types.StoredEvent, error)

	// Latest returns up to n of the newest events, oldest first.
	Latest(ctx context.Context, n int) ([]types.StoredEvent, error)

	// Status aggregates everything currently stored.
	Status(ctx context.Context) types.Status

	// Count returns the number of stored events.
	Count(ctx context.Context) int
}

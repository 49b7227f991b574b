// Package model contains domain models passed between layers.
package model

import (
	"fmt"
	"time"
)

// Category groups event rules; each category has its own enable flag.
type Category string

// Event categories.
const (
	CategoryAudio    Category = "audio"
	CategoryGaze     Category = "gaze"
	CategoryFaces    Category = "faces"
	CategoryGadgets  Category = "gadgets"
	CategoryCapacity Category = "capacity"
	CategoryPresence Category = "presence"
	CategorySystem   Category = "system"
)

// Categories lists every category in a stable order.
var Categories = []Category{
	CategoryAudio, CategoryGaze, CategoryFaces, CategoryGadgets,
	CategoryCapacity, CategoryPresence, CategorySystem,
}

// ParseCategory validates a category name.
func ParseCategory(s string) (Category, error) {
	for _, c := range Categories {
		if string(c) == s {
			return c, nil
		}
	}
	return "", fmt.Errorf("unknown category %q", s)
}

// Kind is the coarse source of an event as seen by the collector.
type Kind string

// Event kinds.
const (
	KindVideo  Kind = "video"
	KindAudio  Kind = "audio"
	KindSystem Kind = "system"
)

// Kinds lists every kind.
var Kinds = []Kind{KindVideo, KindAudio, KindSystem}

// Valid reports whether k is a known kind.
func (k Kind) Valid() bool {
	switch k {
	case KindVideo, KindAudio, KindSystem:
		return true
	}
	return false
}

// KindOf maps a category to the kind reported to the collector.
func KindOf(c Category) Kind {
	switch c {
	case CategoryAudio:
		return KindAudio
	case CategorySystem:
		return KindSystem
	default:
		return KindVideo
	}
}

// Severity of an event.
type Severity string

// Severities.
const (
	SeverityInfo  Severity = "info"
	SeverityWarn  Severity = "warn"
	SeverityError Severity = "error"
)

// Severities lists every severity.
var Severities = []Severity{SeverityInfo, SeverityWarn, SeverityError}

// Valid reports whether s is a known severity.
func (s Severity) Valid() bool {
	switch s {
	case SeverityInfo, SeverityWarn, SeverityError:
		return true
	}
	return false
}

// EventCandidate is produced fresh each tick and never persisted.
// Key identifies the logical source and drives the cooldown.
type EventCandidate struct {
	Key      string
	Category Category
	Kind     Kind
	Severity Severity
	Message  string
}

// NewCandidate builds a candidate whose kind follows its category.
func NewCandidate(key string, c Category, sev Severity, msg string) EventCandidate {
	return EventCandidate{Key: key, Category: c, Kind: KindOf(c), Severity: sev, Message: msg}
}

// EventRecord is an admitted, timestamped candidate. Immutable once created.
type EventRecord struct {
	ID        string
	SessionID string
	Key       string
	Category  Category
	Kind      Kind
	Severity  Severity
	Message   string
	TS        time.Time
}

// Package policy holds the per-mode rule set consumed by the event deriver.
package policy

import (
	"fmt"
	"maps"
	"sync/atomic"
	"time"

	"github.com/okian/proctor/internal/domain/model"
)

// Mode selects the operating profile.
type Mode string

// Modes.
const (
	ModeIndividual Mode = "individual"
	ModeTeam       Mode = "team"
)

// ParseMode validates a mode name.
func ParseMode(s string) (Mode, error) {
	switch Mode(s) {
	case ModeIndividual, ModeTeam:
		return Mode(s), nil
	}
	return "", fmt.Errorf("%w: %q", ErrUnknownMode, s)
}

// Defaults.
const (
	IndividualGazeThresholdDeg = 35.0
	TeamGazeThresholdDeg       = 40.0
	DefaultNoFaceGrace         = 5 * time.Second
	DefaultTeamLimit           = 3
	MinTeamLimit               = 1
	MaxTeamLimit               = 10
)

var modeCategories = map[Mode]map[model.Category]bool{
	ModeIndividual: {
		model.CategoryFaces:   true,
		model.CategoryGaze:    true,
		model.CategoryAudio:   true,
		model.CategoryGadgets: true,
		model.CategorySystem:  true,
	},
	ModeTeam: {
		model.CategoryFaces:    true,
		model.CategoryGaze:     true,
		model.CategoryCapacity: true,
		model.CategoryPresence: true,
		model.CategorySystem:   true,
	},
}

// Flags maps a category to its enable switch. A missing entry means enabled.
type Flags map[model.Category]bool

// Policy is an immutable snapshot. Build with Individual or Team.
type Policy struct {
	mode             Mode
	flags            Flags
	teamLimit        int
	gazeThresholdDeg float64
	noFaceGrace      time.Duration
}

// Option adjusts a Policy under construction.
type Option func(*Policy)

// WithFlags sets the per-category enable flags.
func WithFlags(f Flags) Option {
	return func(p *Policy) {
		p.flags = maps.Clone(f)
	}
}

// WithGazeThreshold overrides the mode's gaze threshold.
func WithGazeThreshold(deg float64) Option {
	return func(p *Policy) {
		if deg > 0 {
			p.gazeThresholdDeg = deg
		}
	}
}

// WithNoFaceGrace overrides the team presence grace window.
func WithNoFaceGrace(d time.Duration) Option {
	return func(p *Policy) {
		if d > 0 {
			p.noFaceGrace = d
		}
	}
}

// Individual returns the single-candidate policy.
func Individual(opts ...Option) Policy {
	p := Policy{
		mode:             ModeIndividual,
		gazeThresholdDeg: IndividualGazeThresholdDeg,
		noFaceGrace:      DefaultNoFaceGrace,
	}
	for _, opt := range opts {
		opt(&p)
	}
	return p
}

// Team returns the shared-room policy. The limit must be in [1,10].
func Team(limit int, opts ...Option) (Policy, error) {
	if limit < MinTeamLimit || limit > MaxTeamLimit {
		return Policy{}, fmt.Errorf("%w: got %d", ErrInvalidTeamLimit, limit)
	}
	p := Policy{
		mode:             ModeTeam,
		teamLimit:        limit,
		gazeThresholdDeg: TeamGazeThresholdDeg,
		noFaceGrace:      DefaultNoFaceGrace,
	}
	for _, opt := range opts {
		opt(&p)
	}
	return p, nil
}

// New builds a policy for the named mode.
func New(mode Mode, teamLimit int, opts ...Option) (Policy, error) {
	switch mode {
	case ModeIndividual:
		return Individual(opts...), nil
	case ModeTeam:
		return Team(teamLimit, opts...)
	}
	return Policy{}, fmt.Errorf("%w: %q", ErrUnknownMode, mode)
}

func (p Policy) Mode() Mode                 { return p.mode }
func (p Policy) TeamLimit() int             { return p.teamLimit }
func (p Policy) GazeThresholdDeg() float64  { return p.gazeThresholdDeg }
func (p Policy) NoFaceGrace() time.Duration { return p.noFaceGrace }

// Has reports whether the category exists in this mode at all.
func (p Policy) Has(c model.Category) bool {
	return modeCategories[p.mode][c]
}

// Enabled reports whether rules for c should run.
func (p Policy) Enabled(c model.Category) bool {
	if !p.Has(c) {
		return false
	}
	on, ok := p.flags[c]
	return !ok || on
}

// RunsAudio reports whether audio classification runs. Never in team mode.
func (p Policy) RunsAudio() bool {
	return p.mode == ModeIndividual && p.Enabled(model.CategoryAudio)
}

// RunsObjectDetection reports whether object sampling runs. Never in team mode.
func (p Policy) RunsObjectDetection() bool {
	return p.mode == ModeIndividual && p.Enabled(model.CategoryGadgets)
}

// WithFlag returns a copy with one flag changed.
func (p Policy) WithFlag(c model.Category, on bool) Policy {
	f := maps.Clone(p.flags)
	if f == nil {
		f = Flags{}
	}
	f[c] = on
	p.flags = f
	return p
}

// Store holds the current policy and swaps it atomically. Readers take a
// snapshot once per tick.
type Store struct {
	current atomic.Pointer[Policy]
}

// NewStore creates a store holding p.
func NewStore(p Policy) *Store {
	s := &Store{}
	s.Replace(p)
	return s
}

// Load returns the current snapshot.
func (s *Store) Load() Policy {
	return *s.current.Load()
}

// Replace installs a new snapshot.
func (s *Store) Replace(p Policy) {
	s.current.Store(&p)
}

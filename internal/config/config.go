// Package config defines process configuration for the collector and the
// agent, and the hooks that load it.
package config

import (
	"fmt"
	"time"

	"github.com/okian/proctor/internal/domain/model"
	"github.com/okian/proctor/internal/domain/policy"
)

// Config contains process configuration shared by both binaries.
type Config struct {
	// LogLevel controls verbosity: debug, info, warn, error.
	LogLevel string `koanf:"log_level"`

	// LogFormat selects the log handler: text or json.
	LogFormat string `koanf:"log_format"`

	// Addr configures the collector's HTTP listen address, e.g. ":9080".
	Addr string `koanf:"addr"`

	// MaxEvents bounds the collector's in-memory window.
	MaxEvents int `koanf:"max_events"`

	// DefaultListLimit is used by GET /events when no limit is given.
	DefaultListLimit int `koanf:"default_list_limit"`

	// AllowedOrigins lists browser origins allowed by CORS and the stream.
	AllowedOrigins []string `koanf:"allowed_origins"`

	// StreamBuffer sizes the websocket backlog per subscriber.
	StreamBuffer int `koanf:"stream_buffer"`

	// CollectorURL is where the agent posts admitted events.
	CollectorURL string `koanf:"collector_url"`

	// SessionID tags agent events; empty generates one per run.
	SessionID string `koanf:"session_id"`

	// Mode is individual or team.
	Mode string `koanf:"mode"`

	// TeamLimit caps the face count in team mode.
	TeamLimit int `koanf:"team_limit"`

	// Flags switches categories on or off; missing entries are on.
	Flags map[string]bool `koanf:"flags"`

	// GazeThresholdDeg overrides the mode's yaw threshold when positive.
	GazeThresholdDeg float64 `koanf:"gaze_threshold_deg"`

	CooldownMS       int `koanf:"cooldown_ms"`
	NoFaceGraceMS    int `koanf:"no_face_grace_ms"`
	FrameIntervalMS  int `koanf:"frame_interval_ms"`
	ObjectIntervalMS int `koanf:"object_interval_ms"`

	// ObjectWidth is the max frame width handed to object detection.
	ObjectWidth int `koanf:"object_width"`

	SinkQueueSize int `koanf:"sink_queue_size"`
	SinkWorkers   int `koanf:"sink_workers"`
	SinkTimeoutMS int `koanf:"sink_timeout_ms"`

	// TracePath points the agent at a replay trace.
	TracePath string `koanf:"trace_path"`
}

// New creates a Config holding the defaults.
func New() *Config {
	return &Config{
		LogLevel:         "info",
		LogFormat:        "text",
		Addr:             ":9080",
		MaxEvents:        500,
		DefaultListLimit: 50,
		AllowedOrigins:   []string{"http://localhost:5173"},
		StreamBuffer:     256,
		CollectorURL:     "http://localhost:9080",
		Mode:             string(policy.ModeIndividual),
		TeamLimit:        policy.DefaultTeamLimit,
		Flags:            map[string]bool{},
		CooldownMS:       4000,
		NoFaceGraceMS:    int(policy.DefaultNoFaceGrace / time.Millisecond),
		FrameIntervalMS:  16,
		ObjectIntervalMS: 1800,
		ObjectWidth:      320,
		SinkQueueSize:    256,
		SinkWorkers:      1,
		SinkTimeoutMS:    5000,
	}
}

// Validate checks ranges and enum values.
func (c *Config) Validate() error {
	switch {
	case c.Addr == "":
		return fmt.Errorf("%w: addr must not be empty", ErrInvalidConfig)
	case c.MaxEvents <= 0:
		return fmt.Errorf("%w: max_events must be positive", ErrInvalidConfig)
	case c.CooldownMS <= 0:
		return fmt.Errorf("%w: cooldown_ms must be positive", ErrInvalidConfig)
	case c.FrameIntervalMS <= 0 || c.ObjectIntervalMS <= 0:
		return fmt.Errorf("%w: frame and object intervals must be positive", ErrInvalidConfig)
	case c.SinkTimeoutMS <= 0:
		return fmt.Errorf("%w: sink_timeout_ms must be positive", ErrInvalidConfig)
	}
	for name := range c.Flags {
		if _, err := model.ParseCategory(name); err != nil {
			return fmt.Errorf("%w: flags: %w", ErrInvalidConfig, err)
		}
	}
	if _, err := c.Policy(); err != nil {
		return fmt.Errorf("%w: %w", ErrInvalidConfig, err)
	}
	return nil
}

// Policy builds the detection policy described by the config.
func (c *Config) Policy() (policy.Policy, error) {
	mode, err := policy.ParseMode(c.Mode)
	if err != nil {
		return policy.Policy{}, err
	}
	flags := make(policy.Flags, len(c.Flags))
	for name, on := range c.Flags {
		flags[model.Category(name)] = on
	}
	return policy.New(mode, c.TeamLimit,
		policy.WithFlags(flags),
		policy.WithGazeThreshold(c.GazeThresholdDeg),
		policy.WithNoFaceGrace(ms(c.NoFaceGraceMS)),
	)
}

func (c *Config) Cooldown() time.Duration       { return ms(c.CooldownMS) }
func (c *Config) FrameInterval() time.Duration  { return ms(c.FrameIntervalMS) }
func (c *Config) ObjectInterval() time.Duration { return ms(c.ObjectIntervalMS) }
func (c *Config) SinkTimeout() time.Duration    { return ms(c.SinkTimeoutMS) }

func ms(n int) time.Duration {
	return time.Duration(n) * time.Millisecond
}

package session

import (
	"time"

	"github.com/okian/proctor/internal/adapters/capability"
	"github.com/okian/proctor/internal/adapters/capture"
	"github.com/okian/proctor/internal/adapters/sink"
	"github.com/okian/proctor/internal/domain/vad"
	"github.com/okian/proctor/pkg/logger"
)

// Option applies a configuration option to a Session.
type Option func(*Session)

// WithFaceDetector sets the loader for the face-landmark capability.
func WithFaceDetector(l capability.Loader[capture.FaceDetector]) Option {
	return func(s *Session) { s.faceLoader = l }
}

// WithObjectDetector sets the loader for the object capability.
func WithObjectDetector(l capability.Loader[capture.ObjectDetector]) Option {
	return func(s *Session) { s.objectLoader = l }
}

// WithSink sets where admitted records go.
func WithSink(sk sink.Sink) Option {
	return func(s *Session) {
		if sk != nil {
			s.sink = sk
		}
	}
}

// WithClock replaces time.Now, mainly for tests.
func WithClock(now func() time.Time) Option {
	return func(s *Session) {
		if now != nil {
			s.now = now
		}
	}
}

// WithFrameInterval sets the tick cadence.
func WithFrameInterval(d time.Duration) Option {
	return func(s *Session) {
		if d > 0 {
			s.frameInterval = d
		}
	}
}

// WithObjectInterval sets the object-detection sampling period.
func WithObjectInterval(d time.Duration) Option {
	return func(s *Session) {
		if d > 0 {
			s.objectInterval = d
		}
	}
}

// WithCooldown sets the per-key throttle cooldown.
func WithCooldown(d time.Duration) Option {
	return func(s *Session) {
		if d > 0 {
			s.cooldown = d
		}
	}
}

// WithSessionID stamps records with a fixed session id.
func WithSessionID(id string) Option {
	return func(s *Session) {
		if id != "" {
			s.id = id
		}
	}
}

// WithVADOptions configures the audio detector created at each start.
func WithVADOptions(opts ...vad.Option) Option {
	return func(s *Session) { s.vadOpts = append(s.vadOpts, opts...) }
}

// WithObjectWidth sets the width frames are downsampled to for object detection.
func WithObjectWidth(w int) Option {
	return func(s *Session) {
		if w > 0 {
			s.objectWidth = w
		}
	}
}

// WithTickObserver receives a report after every tick, on the tick goroutine.
func WithTickObserver(fn func(TickReport)) Option {
	return func(s *Session) { s.observer = fn }
}

// WithLogger sets a custom logger.
func WithLogger(l logger.Logger) Option {
	return func(s *Session) {
		if l != nil {
			s.logger = l
		}
	}
}

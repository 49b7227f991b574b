// Package session runs the capture-to-event tick loop for one proctoring
// session.
package session

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"

	"github.com/okian/proctor/internal/adapters/capability"
	"github.com/okian/proctor/internal/adapters/capture"
	"github.com/okian/proctor/internal/adapters/sink"
	"github.com/okian/proctor/internal/domain/derive"
	"github.com/okian/proctor/internal/domain/model"
	"github.com/okian/proctor/internal/domain/policy"
	"github.com/okian/proctor/internal/domain/throttle"
	"github.com/okian/proctor/internal/domain/vad"
	"github.com/okian/proctor/pkg/logger"
	"github.com/okian/proctor/pkg/metrics"
)

const (
	defaultFrameInterval  = 16 * time.Millisecond
	defaultObjectInterval = 1800 * time.Millisecond
	stopTimeout           = 5 * time.Second
)

// Session owns one capture stream, its detectors and the per-session state
// (audio detector, presence clock, throttle table). All of that state is
// touched only by the tick goroutine and discarded on Stop.
type Session struct {
	capture      capture.Capture
	policies     *policy.Store
	faceLoader   capability.Loader[capture.FaceDetector]
	objectLoader capability.Loader[capture.ObjectDetector]
	sink         sink.Sink
	now          func() time.Time
	id           string

	frameInterval  time.Duration
	objectInterval time.Duration
	cooldown       time.Duration
	objectWidth    int
	vadOpts        []vad.Option
	observer       func(TickReport)
	logger         logger.Logger

	state    atomic.Int32
	degraded atomic.Bool

	mu        sync.Mutex // serializes Start and Stop
	cancel    context.CancelFunc
	done      chan struct{}
	stream    capture.Stream
	capturing bool

	// Teardown gate. Emission holds the read lock; Stop closes the gate
	// under the write lock so nothing is emitted once teardown begins.
	emitMu   sync.RWMutex
	emitting bool

	// Per-attempt state, created by Start and owned by the loop.
	faces     *capability.Capability[capture.FaceDetector]
	objects   *capability.Capability[capture.ObjectDetector]
	vad       *vad.Detector
	deriver   *derive.Deriver
	throttle  throttle.Throttle
	startedAt time.Time
	lastMode  policy.Mode
	audioOn   bool
	seq       int
}

// New creates an idle session. Policies are read once per tick, so the
// store may be updated while the session runs.
func New(c capture.Capture, policies *policy.Store, opts ...Option) *Session {
	s := &Session{
		capture:        c,
		policies:       policies,
		sink:           sink.Multi{},
		now:            time.Now,
		frameInterval:  defaultFrameInterval,
		objectInterval: defaultObjectInterval,
		cooldown:       throttle.DefaultCooldown,
		objectWidth:    capture.DefaultObjectWidth,
		logger:         logger.Get().Named("session"),
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.id == "" {
		s.id = uuid.NewString()
	}
	s.logger = s.logger.With(logger.String("session_id", s.id))
	return s
}

// ID returns the session identifier stamped on every record.
func (s *Session) ID() string { return s.id }

// State returns the current state.
func (s *Session) State() State { return State(s.state.Load()) }

// Degraded reports whether a detector failed to load for this attempt.
func (s *Session) Degraded() bool { return s.degraded.Load() }

// Done is closed when the tick loop of the current attempt exits, either
// because the stream ended or Stop was called. Nil before the first Start.
func (s *Session) Done() <-chan struct{} {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.done
}

func (s *Session) setState(st State) {
	s.state.Store(int32(st))
	metrics.UpdateSessionState(int(st))
}

// Start acquires the capture stream and launches the tick loop. Detectors
// load in the background; the session becomes active once the face detector
// settles. A capture failure moves the session to Error, emits one system
// event and returns an error wrapping ErrCapture.
func (s *Session) Start(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if st := s.State(); st == Starting || st == Active {
		return ErrAlreadyRunning
	}
	if s.capture == nil {
		return ErrNoCapture
	}
	s.release(ctx)

	s.setState(Starting)
	s.prepare()

	s.logger.Info(ctx, "starting session", logger.String("mode", string(s.lastMode)))

	stream, err := s.capture.Start(ctx)
	if err != nil {
		s.setState(Error)
		s.emitSystem(ctx, derive.KeyCaptureError, model.SeverityError, fmt.Sprintf("Capture failed: %v", err))
		s.closeGate()
		s.logger.Error(ctx, "capture failed", logger.Error(err))
		return fmt.Errorf("%w: %w", ErrCapture, err)
	}
	s.stream = stream
	s.capturing = true
	s.emitSystem(ctx, derive.KeyCaptureGranted, model.SeverityInfo, "Camera and microphone access granted")

	loopCtx, cancel := context.WithCancel(context.WithoutCancel(ctx))
	s.cancel = cancel
	s.done = make(chan struct{})

	s.loadCapability(loopCtx, s.faces, s.faceLoader)
	s.loadObjects(loopCtx)

	go s.run(loopCtx, stream, s.done)
	return nil
}

// prepare creates the per-attempt state and opens the emission gate.
func (s *Session) prepare() {
	s.degraded.Store(false)
	s.startedAt = s.now()
	s.seq = 0
	s.throttle = throttle.NewInMemoryThrottle(
		throttle.WithCooldown(s.cooldown),
		throttle.WithSessionID(s.id),
	)
	s.vad = vad.NewDetector(s.vadOpts...)
	s.deriver = derive.New()
	s.lastMode = s.policies.Load().Mode()
	s.audioOn = false
	s.faces = capability.New[capture.FaceDetector]("faces")
	s.objects = capability.New[capture.ObjectDetector]("objects")

	s.emitMu.Lock()
	s.emitting = true
	s.emitMu.Unlock()
}

func (s *Session) loadCapability(ctx context.Context, c *capability.Capability[capture.FaceDetector], l capability.Loader[capture.FaceDetector]) {
	if l == nil {
		l = func(context.Context) (capture.FaceDetector, error) { return nil, fmt.Errorf("no face detector configured") }
	}
	metrics.UpdateCapabilityState(c.Name(), int(capability.Loading))
	if err := c.Load(ctx, l); err != nil {
		s.logger.Warn(ctx, "face detector load rejected", logger.Error(err))
	}
}

func (s *Session) loadObjects(ctx context.Context) {
	if s.objectLoader == nil {
		return
	}
	metrics.UpdateCapabilityState(s.objects.Name(), int(capability.Loading))
	if err := s.objects.Load(ctx, s.objectLoader); err != nil {
		s.logger.Warn(ctx, "object detector load rejected", logger.Error(err))
	}
}

// Stop cancels the loop and timers, releases the capture stream and discards
// per-session state. Safe to call in any state.
func (s *Session) Stop() {
	s.mu.Lock()
	defer s.mu.Unlock()

	ctx, cancel := context.WithTimeout(context.Background(), stopTimeout)
	defer cancel()
	s.release(ctx)
	s.setState(Idle)
}

// release tears down the previous attempt. Must be called with s.mu held.
func (s *Session) release(ctx context.Context) {
	s.closeGate()
	if s.cancel != nil {
		s.cancel()
		<-s.done
		s.cancel = nil
	}
	if s.stream != nil {
		if err := s.stream.Close(); err != nil {
			s.logger.Warn(ctx, "closing stream", logger.Error(err))
		}
		s.stream = nil
	}
	if s.capturing {
		if err := s.capture.Stop(ctx); err != nil {
			s.logger.Warn(ctx, "stopping capture", logger.Error(err))
		}
		s.capturing = false
		s.logger.Info(ctx, "session stopped")
	}
	if s.throttle != nil {
		s.throttle.Reset(ctx)
	}
	s.throttle = nil
	s.vad = nil
	s.deriver = nil
}

func (s *Session) closeGate() {
	s.emitMu.Lock()
	s.emitting = false
	s.emitMu.Unlock()
}

// emit forwards a record unless teardown has begun.
func (s *Session) emit(ctx context.Context, rec model.EventRecord) bool {
	s.emitMu.RLock()
	defer s.emitMu.RUnlock()
	if !s.emitting {
		return false
	}
	s.sink.Emit(ctx, rec)
	return true
}

// emitSystem admits a system-category event through the session throttle.
func (s *Session) emitSystem(ctx context.Context, key string, sev model.Severity, msg string) (model.EventRecord, bool) {
	c := model.NewCandidate(key, model.CategorySystem, sev, msg)
	if !s.policies.Load().Enabled(model.CategorySystem) {
		return model.EventRecord{}, false
	}
	rec, ok := s.throttle.Admit(ctx, c, s.now())
	if !ok {
		return model.EventRecord{}, false
	}
	if !s.emit(ctx, rec) {
		return model.EventRecord{}, false
	}
	return rec, true
}

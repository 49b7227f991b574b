package replay

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/okian/proctor/internal/adapters/capture"
	"github.com/okian/proctor/internal/domain/model"
	"github.com/okian/proctor/pkg/logger"
)

var errObjectFailure = errors.New("scripted object detector failure")

// Replay implements capture.Capture, capture.FaceDetector and
// capture.ObjectDetector from a Trace.
type Replay struct {
	trace      *Trace
	interval   time.Duration
	windowSize int
	loop       bool

	mu     sync.Mutex
	stream *stream
}

// Option configures a Replay.
type Option func(*Replay)

// WithFrameInterval sets the pace at which frames are produced.
func WithFrameInterval(d time.Duration) Option {
	return func(r *Replay) {
		if d > 0 {
			r.interval = d
		}
	}
}

// WithLoop restarts the trace when it ends instead of closing the stream.
func WithLoop(loop bool) Option {
	return func(r *Replay) { r.loop = loop }
}

// WithWindowSize sets the number of audio samples per frame.
func WithWindowSize(n int) Option {
	return func(r *Replay) {
		if n > 0 {
			r.windowSize = n
		}
	}
}

// New creates a replay over t.
func New(t *Trace, opts ...Option) *Replay {
	r := &Replay{trace: t, interval: 16 * time.Millisecond, windowSize: 256}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Start begins producing frames.
func (r *Replay) Start(ctx context.Context) (capture.Stream, error) {
	switch {
	case r.trace.Deny:
		return nil, capture.ErrPermissionDenied
	case r.trace.Unavailable:
		return nil, capture.ErrDeviceUnavailable
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.stream != nil {
		r.stream.Close()
	}
	s := newStream()
	r.stream = s
	go r.produce(s)
	logger.Get().Debug(ctx, "replay capture started",
		logger.Int("frames", r.trace.Len()),
		logger.Duration("interval", r.interval),
	)
	return s, nil
}

// Stop releases the active stream.
func (r *Replay) Stop(ctx context.Context) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.stream == nil {
		return nil
	}
	err := r.stream.Close()
	r.stream = nil
	return err
}

func (r *Replay) produce(s *stream) {
	defer close(s.frames)
	ticker := time.NewTicker(r.interval)
	defer ticker.Stop()

	total := r.trace.Len()
	for seq := 0; r.loop || seq < total; seq++ {
		select {
		case <-s.done:
			return
		case now := <-ticker.C:
			f, ok := r.Frame(seq)
			if !ok {
				return
			}
			f.TS = now
			select {
			case s.frames <- f:
			case <-s.done:
				return
			}
		}
	}
}

// Frame synthesizes frame seq without timing.
func (r *Replay) Frame(seq int) (model.Frame, bool) {
	seg, ok := r.trace.At(seq)
	if !ok {
		return model.Frame{}, false
	}
	return model.Frame{
		Seq:    seq,
		Width:  r.trace.Width,
		Height: r.trace.Height,
		Audio:  squareWave(seg.AudioRMS, r.windowSize),
	}, true
}

// DetectFaces returns the scripted faces for the frame.
func (r *Replay) DetectFaces(frame model.Frame, _ time.Duration) ([]model.LandmarkSet, error) {
	seg, ok := r.trace.At(frame.Seq)
	if !ok {
		return nil, nil
	}
	out := make([]model.LandmarkSet, 0, len(seg.Faces))
	for _, f := range seg.Faces {
		out = append(out, f.Landmarks())
	}
	return out, nil
}

// DetectObjects returns the scripted objects for the frame.
func (r *Replay) DetectObjects(ctx context.Context, frame model.Frame) ([]model.ObjectDetection, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	seg, ok := r.trace.At(frame.Seq)
	if !ok {
		return nil, nil
	}
	if seg.ObjectError {
		return nil, errObjectFailure
	}
	return append([]model.ObjectDetection(nil), seg.Objects...), nil
}

// squareWave returns n samples alternating between +rms and -rms, whose RMS
// is exactly rms.
func squareWave(rms float64, n int) model.AudioWindow {
	w := make(model.AudioWindow, n)
	for i := range w {
		if i%2 == 0 {
			w[i] = float32(rms)
		} else {
			w[i] = float32(-rms)
		}
	}
	return w
}

type stream struct {
	frames chan model.Frame
	done   chan struct{}
	once   sync.Once
}

func newStream() *stream {
	return &stream{frames: make(chan model.Frame), done: make(chan struct{})}
}

func (s *stream) Frames() <-chan model.Frame { return s.frames }

func (s *stream) Close() error {
	s.once.Do(func() { close(s.done) })
	return nil
}

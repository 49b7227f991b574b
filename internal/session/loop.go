package session

import (
	"context"
	"time"

	"github.com/okian/proctor/internal/adapters/capture"
	"github.com/okian/proctor/internal/domain/derive"
	"github.com/okian/proctor/internal/domain/geometry"
	"github.com/okian/proctor/internal/domain/model"
	"github.com/okian/proctor/internal/domain/vad"
	"github.com/okian/proctor/pkg/logger"
	"github.com/okian/proctor/pkg/metrics"
)

// TickReport summarizes one tick for local display.
type TickReport struct {
	Seq       int
	At        time.Time
	Mode      string
	FaceCount int
	Metrics   *model.FaceMetrics
	Audio     vad.Result
	Sampled   bool
	Admitted  []model.EventRecord
	Degraded  bool
}

type objectResult struct {
	objects []model.ObjectDetection
	err     error
}

// run is the single tick goroutine. Two periodic sources feed it: the frame
// ticker, which consumes only the newest pending frame, and the object
// ticker, which launches at most one detection at a time. Detection results
// come back over a channel and ride on the next frame tick.
func (s *Session) run(ctx context.Context, stream capture.Stream, done chan struct{}) {
	defer close(done)

	frameTicker := time.NewTicker(s.frameInterval)
	defer frameTicker.Stop()
	objectTicker := time.NewTicker(s.objectInterval)
	defer objectTicker.Stop()

	var (
		frames      = stream.Frames()
		facesDone   = s.faces.Done()
		objectsDone <-chan struct{}
		results     = make(chan objectResult, 1)
		pending     *model.Frame
		last        model.Frame
		haveFrame   bool
		inFlight    bool
		sample      *[]model.ObjectDetection
	)
	if s.objectLoader != nil {
		objectsDone = s.objects.Done()
	}

	for {
		select {
		case <-ctx.Done():
			return

		case <-facesDone:
			facesDone = nil
			s.settleFaces(ctx)

		case <-objectsDone:
			objectsDone = nil
			s.settleObjects(ctx)

		case f, ok := <-frames:
			if !ok {
				s.logger.Info(ctx, "capture stream ended")
				if pending != nil && s.State() == Active {
					s.tick(ctx, *pending, sample)
				}
				s.closeGate()
				s.setState(Idle)
				return
			}
			pending = &f
			last, haveFrame = f, true

		case <-frameTicker.C:
			if pending == nil || s.State() != Active {
				continue
			}
			f := *pending
			pending = nil
			s.tick(ctx, f, sample)
			sample = nil

		case <-objectTicker.C:
			if inFlight || !haveFrame || s.State() != Active || !s.policies.Load().RunsObjectDetection() {
				continue
			}
			det, ok := s.objects.Get()
			if !ok {
				continue
			}
			inFlight = true
			metrics.RecordObjectSample()
			go detectObjects(ctx, det, capture.Downsample(last, s.objectWidth), results)

		case r := <-results:
			inFlight = false
			if r.err != nil {
				metrics.RecordDetectorFailure("objects")
				s.logger.Warn(ctx, "object detection failed, sample skipped", logger.Error(r.err))
				continue
			}
			objs := r.objects
			sample = &objs
		}
	}
}

func detectObjects(ctx context.Context, det capture.ObjectDetector, frame model.Frame, out chan<- objectResult) {
	objs, err := det.DetectObjects(ctx, frame)
	select {
	case out <- objectResult{objects: objs, err: err}:
	case <-ctx.Done():
	}
}

// settleFaces moves the session to active once the face capability is ready
// or has failed; failure leaves face-driven categories silent.
func (s *Session) settleFaces(ctx context.Context) {
	metrics.UpdateCapabilityState(s.faces.Name(), int(s.faces.State()))
	if err := s.faces.Err(); err != nil {
		s.degraded.Store(true)
		s.logger.Warn(ctx, "face detector unavailable, running degraded", logger.Error(err))
		s.emitSystem(ctx, derive.KeyDetectorUnavailable+"-faces", model.SeverityWarn, "Face detector unavailable")
	}
	if s.State() == Starting {
		s.setState(Active)
		s.logger.Info(ctx, "session active", logger.Bool("degraded", s.Degraded()))
	}
}

func (s *Session) settleObjects(ctx context.Context) {
	metrics.UpdateCapabilityState(s.objects.Name(), int(s.objects.State()))
	if err := s.objects.Err(); err != nil {
		s.degraded.Store(true)
		s.logger.Warn(ctx, "object detector unavailable", logger.Error(err))
		s.emitSystem(ctx, derive.KeyDetectorUnavailable+"-objects", model.SeverityWarn, "Object detector unavailable")
	}
}

// tick runs the pipeline for one frame: metrics, audio, derivation,
// throttling, emission, in that order.
func (s *Session) tick(ctx context.Context, f model.Frame, sample *[]model.ObjectDetection) TickReport {
	started := time.Now()
	now := s.now()
	p := s.policies.Load()
	s.seq++

	if p.Mode() != s.lastMode {
		s.logger.Info(ctx, "mode switched",
			logger.String("from", string(s.lastMode)),
			logger.String("to", string(p.Mode())),
		)
		s.vad.Reset()
		s.deriver.Reset()
		s.lastMode = p.Mode()
	}

	in := derive.Input{Now: now, Policy: p}
	if det, ok := s.faces.Get(); ok {
		faces, err := det.DetectFaces(f, now.Sub(s.startedAt))
		if err != nil {
			metrics.RecordDetectorFailure("faces")
			s.logger.Debug(ctx, "face detection failed", logger.Error(err))
		} else {
			in.FacesReady = true
			in.Faces = faces
		}
	}
	if len(in.Faces) > 0 {
		if m, ok := geometry.ComputeFaceMetrics(in.Faces[0], f.Width); ok {
			in.Metrics = &m
			metrics.UpdateFaceMetrics(m.YawDeg, m.DistanceCm)
		}
	}

	// Audio that was switched off resumes from silence.
	runsAudio := p.RunsAudio()
	if runsAudio && !s.audioOn {
		s.vad.Reset()
	}
	s.audioOn = runsAudio

	var audio vad.Result
	if runsAudio {
		audio = s.vad.Classify(f.Audio)
		in.Speech = audio.Transition
		metrics.UpdateAudio(audio.Level, audio.Active)
	}

	if sample != nil && p.RunsObjectDetection() {
		in.Sampled = true
		in.Objects = *sample
	}

	report := TickReport{
		Seq:       s.seq,
		At:        now,
		Mode:      string(p.Mode()),
		FaceCount: len(in.Faces),
		Metrics:   in.Metrics,
		Audio:     audio,
		Sampled:   in.Sampled,
		Degraded:  s.Degraded(),
	}
	for _, c := range s.deriver.Derive(in) {
		metrics.RecordCandidate(c.Key)
		rec, ok := s.throttle.Admit(ctx, c, now)
		if !ok {
			continue
		}
		if s.emit(ctx, rec) {
			report.Admitted = append(report.Admitted, rec)
		}
	}

	metrics.UpdateFaceCount(len(in.Faces))
	metrics.RecordTick(float64(time.Since(started).Microseconds()) / 1000)
	if s.observer != nil {
		s.observer(report)
	}
	return report
}

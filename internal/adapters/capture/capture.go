// Package capture defines the boundary to camera/microphone acquisition and
// the detector models that run on captured frames.
package capture

import (
	"context"
	"time"

	"github.com/okian/proctor/internal/domain/model"
)

// Capture acquires devices. Start fails with ErrPermissionDenied or
// ErrDeviceUnavailable; Stop releases everything Start acquired.
type Capture interface {
	Start(ctx context.Context) (Stream, error)
	Stop(ctx context.Context) error
}

// Stream yields frames until closed. Frames is closed when the stream ends.
type Stream interface {
	Frames() <-chan model.Frame
	Close() error
}

// FaceDetector returns zero or more landmark sets for a frame. ts is monotonic.
type FaceDetector interface {
	DetectFaces(frame model.Frame, ts time.Duration) ([]model.LandmarkSet, error)
}

// ObjectDetector labels objects in a downsampled frame. Calls may fail
// transiently.
type ObjectDetector interface {
	DetectObjects(ctx context.Context, frame model.Frame) ([]model.ObjectDetection, error)
}

// FaceDetectorFunc adapts a function to FaceDetector.
type FaceDetectorFunc func(frame model.Frame, ts time.Duration) ([]model.LandmarkSet, error)

func (f FaceDetectorFunc) DetectFaces(frame model.Frame, ts time.Duration) ([]model.LandmarkSet, error) {
	return f(frame, ts)
}

// ObjectDetectorFunc adapts a function to ObjectDetector.
type ObjectDetectorFunc func(ctx context.Context, frame model.Frame) ([]model.ObjectDetection, error)

func (f ObjectDetectorFunc) DetectObjects(ctx context.Context, frame model.Frame) ([]model.ObjectDetection, error) {
	return f(ctx, frame)
}

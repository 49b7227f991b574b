// Package vad classifies audio windows as speech or silence.
package vad

import (
	"math"

	"github.com/okian/proctor/internal/domain/model"
)

// Default thresholds and display gain.
const (
	DefaultOnThreshold  = 0.05
	DefaultOffThreshold = 0.025
	DefaultGain         = 4.0
)

// Transition describes a state change caused by one window.
type Transition int

// Transitions.
const (
	None Transition = iota
	SpeechStarted
	SpeechEnded
)

func (t Transition) String() string {
	switch t {
	case SpeechStarted:
		return "speech-started"
	case SpeechEnded:
		return "speech-ended"
	default:
		return "none"
	}
}

// Result is the outcome of classifying one window.
type Result struct {
	Active     bool
	Level      float64 // display-only, RMS times gain clamped to [0,1]
	RMS        float64
	Transition Transition
}

// Detector is an RMS energy classifier with hysteresis. It flips to speech
// above the on threshold and back to silence only below the off threshold.
// A Detector is owned by one tick loop and is not safe for concurrent use.
type Detector struct {
	onThreshold  float64
	offThreshold float64
	gain         float64
	active       bool
}

// NewDetector creates a detector in the silence state.
func NewDetector(opts ...Option) *Detector {
	d := &Detector{
		onThreshold:  DefaultOnThreshold,
		offThreshold: DefaultOffThreshold,
		gain:         DefaultGain,
	}
	for _, opt := range opts {
		opt(d)
	}
	return d
}

// Classify computes the window RMS and advances the state machine.
func (d *Detector) Classify(window model.AudioWindow) Result {
	return d.ClassifyRMS(RMS(window))
}

// ClassifyRMS advances the state machine with a precomputed RMS value.
func (d *Detector) ClassifyRMS(rms float64) Result {
	if math.IsNaN(rms) || rms < 0 {
		rms = 0
	}
	tr := None
	switch {
	case !d.active && rms > d.onThreshold:
		d.active = true
		tr = SpeechStarted
	case d.active && rms < d.offThreshold:
		d.active = false
		tr = SpeechEnded
	}
	return Result{
		Active:     d.active,
		Level:      math.Min(1, math.Max(0, rms*d.gain)),
		RMS:        rms,
		Transition: tr,
	}
}

// Active reports the current state.
func (d *Detector) Active() bool {
	return d.active
}

// Reset returns to silence without producing a transition.
func (d *Detector) Reset() {
	d.active = false
}

// RMS returns the root mean square of the window with samples clamped to [-1,1].
func RMS(window model.AudioWindow) float64 {
	if len(window) == 0 {
		return 0
	}
	var sum float64
	for _, s := range window {
		v := float64(s)
		if math.IsNaN(v) {
			continue
		}
		v = math.Max(-1, math.Min(1, v))
		sum += v * v
	}
	return math.Sqrt(sum / float64(len(window)))
}

package model

import "time"

// AudioWindow is a fixed-length run of time-domain samples, nominally in [-1,1].
type AudioWindow []float32

// Frame is one captured video frame with the audio window that accompanied it.
// Pixels are opaque to the pipeline; detectors interpret them.
type Frame struct {
	Seq    int
	Width  int
	Height int
	Pixels []byte
	Audio  AudioWindow
	TS     time.Time
}

package vad

// Option configures a Detector.
type Option func(*Detector)

// WithThresholds sets the on/off hysteresis thresholds. Ignored unless
// 0 < off <= on.
func WithThresholds(on, off float64) Option {
	return func(d *Detector) {
		if off > 0 && off <= on {
			d.onThreshold = on
			d.offThreshold = off
		}
	}
}

// WithGain sets the display level gain.
func WithGain(g float64) Option {
	return func(d *Detector) {
		if g > 0 {
			d.gain = g
		}
	}
}

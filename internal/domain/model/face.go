package model

import "math"

// Well-known landmark indices (face-mesh numbering).
const (
	NoseTip       = 1
	LeftEyeOuter  = 33
	RightEyeOuter = 263
)

// LandmarkPoint is a normalized 2-D coordinate, x and y in [0,1] relative to the frame.
type LandmarkPoint struct {
	X float64 `yaml:"x" json:"x"`
	Y float64 `yaml:"y" json:"y"`
}

// Finite reports whether both coordinates are finite numbers.
func (p LandmarkPoint) Finite() bool {
	return !math.IsNaN(p.X) && !math.IsInf(p.X, 0) && !math.IsNaN(p.Y) && !math.IsInf(p.Y, 0)
}

// LandmarkSet is the ordered landmark sequence for one detected face.
type LandmarkSet []LandmarkPoint

// Point returns the landmark at index i, or false when absent or non-finite.
func (s LandmarkSet) Point(i int) (LandmarkPoint, bool) {
	if i < 0 || i >= len(s) {
		return LandmarkPoint{}, false
	}
	p := s[i]
	return p, p.Finite()
}

// FaceMetrics is derived every tick from the primary face.
// DistanceCm is clamped to [10,150] and YawDeg to [-90,90].
type FaceMetrics struct {
	DistanceCm float64
	YawDeg     float64
}

// Box is an axis-aligned rectangle in normalized coordinates.
type Box struct {
	X float64 `yaml:"x" json:"x"`
	Y float64 `yaml:"y" json:"y"`
	W float64 `yaml:"w" json:"w"`
	H float64 `yaml:"h" json:"h"`
}

// Area returns W*H.
func (b Box) Area() float64 {
	return b.W * b.H
}

// ObjectDetection is one labelled box from the object detector.
type ObjectDetection struct {
	Label string  `yaml:"label" json:"label"`
	Score float64 `yaml:"score" json:"score"`
	Box   Box     `yaml:"box" json:"box"`
}

// Package geometry derives head pose and distance estimates from face landmarks.
package geometry

import (
	"math"

	"github.com/okian/proctor/internal/domain/model"
)

// Pinhole model constants. The focal length was calibrated at ReferenceWidthPx
// and scales linearly with the actual frame width.
const (
	ReferenceIPDCm   = 6.3
	BaselineFocalPx  = 950.0
	ReferenceWidthPx = 1280.0
	YawNormalizer    = 0.55

	MinDistanceCm = 10.0
	MaxDistanceCm = 150.0
	MaxYawDeg     = 90.0

	// SmallFaceArea is the normalized bounding-box area below which a face is
	// too small to trust the yaw/distance estimate.
	SmallFaceArea = 0.015
)

// ComputeFaceMetrics estimates distance to camera and head yaw for one face.
// It returns false when the frame width is not positive, a required landmark
// is missing or non-finite, or the eyes coincide.
func ComputeFaceMetrics(landmarks model.LandmarkSet, frameWidthPx int) (model.FaceMetrics, bool) {
	if frameWidthPx <= 0 {
		return model.FaceMetrics{}, false
	}
	left, ok := landmarks.Point(model.LeftEyeOuter)
	if !ok {
		return model.FaceMetrics{}, false
	}
	right, ok := landmarks.Point(model.RightEyeOuter)
	if !ok {
		return model.FaceMetrics{}, false
	}
	nose, ok := landmarks.Point(model.NoseTip)
	if !ok {
		return model.FaceMetrics{}, false
	}

	ipdNorm := math.Hypot(right.X-left.X, right.Y-left.Y)
	if ipdNorm == 0 || math.IsNaN(ipdNorm) || math.IsInf(ipdNorm, 0) {
		return model.FaceMetrics{}, false
	}

	width := float64(frameWidthPx)
	ipdPx := ipdNorm * width
	focalPx := BaselineFocalPx * (width / ReferenceWidthPx)
	distance := clamp((ReferenceIPDCm*focalPx)/ipdPx, MinDistanceCm, MaxDistanceCm)

	midX := (left.X + right.X) / 2
	ratio := clamp((nose.X-midX)/(ipdNorm*YawNormalizer), -1, 1)
	yaw := clamp(-math.Asin(ratio)*180/math.Pi, -MaxYawDeg, MaxYawDeg)

	return model.FaceMetrics{DistanceCm: distance, YawDeg: yaw}, true
}

// FaceArea returns the area of the axis-aligned bounding box around all
// finite landmarks, in normalized units. Empty sets have zero area.
func FaceArea(landmarks model.LandmarkSet) float64 {
	minX, minY := math.Inf(1), math.Inf(1)
	maxX, maxY := math.Inf(-1), math.Inf(-1)
	n := 0
	for _, p := range landmarks {
		if !p.Finite() {
			continue
		}
		minX = math.Min(minX, p.X)
		minY = math.Min(minY, p.Y)
		maxX = math.Max(maxX, p.X)
		maxY = math.Max(maxY, p.Y)
		n++
	}
	if n == 0 {
		return 0
	}
	return (maxX - minX) * (maxY - minY)
}

// IsSmall reports whether a face's area is below SmallFaceArea.
func IsSmall(landmarks model.LandmarkSet) bool {
	return FaceArea(landmarks) < SmallFaceArea
}

func clamp(v, lo, hi float64) float64 {
	if math.IsNaN(v) {
		return lo
	}
	return math.Max(lo, math.Min(hi, v))
}

// Package replay plays back a scripted capture session described in YAML.
// The same trace drives the stream and both detectors, so a session can be
// exercised end to end without camera hardware or models.
package replay

import (
	"errors"
	"fmt"
	"os"

	"go.yaml.in/yaml/v3"

	"github.com/okian/proctor/internal/domain/model"
)

var (
	ErrEmptyTrace   = errors.New("trace has no frames")
	ErrInvalidTrace = errors.New("invalid trace")
)

// Trace is the YAML document.
type Trace struct {
	Width       int       `yaml:"width"`
	Height      int       `yaml:"height"`
	Deny        bool      `yaml:"deny"`
	Unavailable bool      `yaml:"unavailable"`
	Segments    []Segment `yaml:"segments"`
}

// Segment describes Repeat identical frames.
type Segment struct {
	Repeat      int                     `yaml:"repeat"`
	Faces       []Face                  `yaml:"faces"`
	AudioRMS    float64                 `yaml:"audio_rms"`
	Objects     []model.ObjectDetection `yaml:"objects"`
	ObjectError bool                    `yaml:"object_error"`
}

// Face is the minimal geometry used to synthesize a landmark set.
type Face struct {
	LeftEye  model.LandmarkPoint `yaml:"left_eye"`
	RightEye model.LandmarkPoint `yaml:"right_eye"`
	Nose     model.LandmarkPoint `yaml:"nose"`
	Box      model.Box           `yaml:"box"`
}

// Landmarks expands the face into a landmark set indexed like a face mesh.
// Unused indices hold the nose point; indices 0 and 2 carry the box corners
// when a box is given.
func (f Face) Landmarks() model.LandmarkSet {
	set := make(model.LandmarkSet, model.RightEyeOuter+1)
	for i := range set {
		set[i] = f.Nose
	}
	if f.Box.W > 0 && f.Box.H > 0 {
		set[0] = model.LandmarkPoint{X: f.Box.X, Y: f.Box.Y}
		set[2] = model.LandmarkPoint{X: f.Box.X + f.Box.W, Y: f.Box.Y + f.Box.H}
	}
	set[model.LeftEyeOuter] = f.LeftEye
	set[model.RightEyeOuter] = f.RightEye
	set[model.NoseTip] = f.Nose
	return set
}

// Parse decodes and validates a trace.
func Parse(data []byte) (*Trace, error) {
	var t Trace
	if err := yaml.Unmarshal(data, &t); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidTrace, err)
	}
	if t.Width == 0 {
		t.Width = 1280
	}
	if t.Height == 0 {
		t.Height = 720
	}
	if t.Width < 0 || t.Height < 0 {
		return nil, fmt.Errorf("%w: negative frame size", ErrInvalidTrace)
	}
	for i := range t.Segments {
		if t.Segments[i].Repeat == 0 {
			t.Segments[i].Repeat = 1
		}
		if t.Segments[i].Repeat < 0 {
			return nil, fmt.Errorf("%w: segment %d has negative repeat", ErrInvalidTrace, i)
		}
	}
	if t.Len() == 0 && !t.Deny && !t.Unavailable {
		return nil, ErrEmptyTrace
	}
	return &t, nil
}

// Load reads a trace file.
func Load(path string) (*Trace, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read trace %s: %w", path, err)
	}
	return Parse(data)
}

// Len returns the total number of frames.
func (t *Trace) Len() int {
	n := 0
	for _, s := range t.Segments {
		n += s.Repeat
	}
	return n
}

// At returns the segment covering frame seq. Sequences wrap around.
func (t *Trace) At(seq int) (Segment, bool) {
	n := t.Len()
	if n == 0 || seq < 0 {
		return Segment{}, false
	}
	seq %= n
	for _, s := range t.Segments {
		if seq < s.Repeat {
			return s, true
		}
		seq -= s.Repeat
	}
	return Segment{}, false
}

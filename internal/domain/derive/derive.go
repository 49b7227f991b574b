// Package derive turns one tick of detector output into event candidates.
package derive

import (
	"fmt"
	"math"
	"time"

	"github.com/okian/proctor/internal/domain/geometry"
	"github.com/okian/proctor/internal/domain/model"
	"github.com/okian/proctor/internal/domain/policy"
	"github.com/okian/proctor/internal/domain/vad"
)

// Input is everything the deriver sees for one tick.
type Input struct {
	Now    time.Time
	Policy policy.Policy

	// FacesReady is false while the face capability is loading or failed;
	// face-driven categories then produce nothing.
	FacesReady bool
	Faces      []model.LandmarkSet
	// Metrics for Faces[0], nil when they could not be computed.
	Metrics *model.FaceMetrics

	Speech vad.Transition

	// Sampled is true only on ticks carrying a fresh object-detector result.
	Sampled bool
	Objects []model.ObjectDetection
}

// Deriver applies the per-category rules. It owns the presence clock and is
// driven from a single tick loop.
type Deriver struct {
	presenceStarted bool
	lastFaceAt      time.Time
}

// New creates a deriver with empty presence tracking.
func New() *Deriver {
	return &Deriver{}
}

// Reset clears presence tracking. Called at session start and on mode switch.
func (d *Deriver) Reset() {
	d.presenceStarted = false
	d.lastFaceAt = time.Time{}
}

// Derive evaluates every enabled category for this tick. Disabled categories
// are skipped entirely.
func (d *Deriver) Derive(in Input) []model.EventCandidate {
	var out []model.EventCandidate
	p := in.Policy
	team := p.Mode() == policy.ModeTeam
	count := len(in.Faces)

	if in.FacesReady {
		if p.Enabled(model.CategoryFaces) {
			out = append(out, faceRules(in, team)...)
		}
		if p.Enabled(model.CategoryGaze) {
			if c, ok := gazeRule(in, team); ok {
				out = append(out, c)
			}
		}
		if team && p.Enabled(model.CategoryCapacity) && count > p.TeamLimit() {
			out = append(out, model.NewCandidate(KeyTeamOverflow, model.CategoryCapacity, model.SeverityWarn,
				fmt.Sprintf("Team capacity exceeded: %d faces, limit %d", count, p.TeamLimit())))
		}
		if team && p.Enabled(model.CategoryPresence) {
			if c, ok := d.presenceRule(in.Now, count, p.NoFaceGrace()); ok {
				out = append(out, c)
			}
		}
	}

	if !team && p.Enabled(model.CategoryAudio) {
		switch in.Speech {
		case vad.SpeechStarted:
			out = append(out, model.NewCandidate(KeySpeechOn, model.CategoryAudio, model.SeverityInfo, "Speech detected"))
		case vad.SpeechEnded:
			out = append(out, model.NewCandidate(KeySpeechOff, model.CategoryAudio, model.SeverityInfo, "Speech ended"))
		}
	}

	if !team && in.Sampled && p.Enabled(model.CategoryGadgets) {
		out = append(out, objectRules(in.Objects)...)
	}
	return out
}

func faceRules(in Input, team bool) []model.EventCandidate {
	var out []model.EventCandidate
	count := len(in.Faces)
	if !team {
		switch {
		case count == 0:
			out = append(out, model.NewCandidate(KeyNoFace, model.CategoryFaces, model.SeverityWarn, "No face detected"))
		case count > 1:
			out = append(out, model.NewCandidate(KeyMultiFace, model.CategoryFaces, model.SeverityWarn,
				fmt.Sprintf("Multiple faces detected: %d", count)))
		}
	}
	if count > 0 && geometry.IsSmall(in.Faces[0]) {
		out = append(out, model.NewCandidate(KeyFaceSmall, model.CategoryFaces, model.SeverityWarn,
			"Face too small or unclear"))
	}
	return out
}

// gazeRule fires when the primary face is turned past the mode threshold.
// Small faces are skipped: their yaw estimate is not trusted.
func gazeRule(in Input, team bool) (model.EventCandidate, bool) {
	if len(in.Faces) == 0 || in.Metrics == nil || geometry.IsSmall(in.Faces[0]) {
		return model.EventCandidate{}, false
	}
	yaw := in.Metrics.YawDeg
	if math.Abs(yaw) <= in.Policy.GazeThresholdDeg() {
		return model.EventCandidate{}, false
	}
	key, msg := KeyYaw, "Looking away from screen"
	if team {
		key, msg = KeyTeamYaw, "Team member looking away"
	}
	return model.NewCandidate(key, model.CategoryGaze, model.SeverityWarn,
		fmt.Sprintf("%s (yaw %.0f°)", msg, yaw)), true
}

// presenceRule tracks the last tick with a face. The grace clock starts at the
// first tick observed after a reset.
func (d *Deriver) presenceRule(now time.Time, count int, grace time.Duration) (model.EventCandidate, bool) {
	if !d.presenceStarted {
		d.presenceStarted = true
		d.lastFaceAt = now
	}
	if count > 0 {
		d.lastFaceAt = now
		return model.EventCandidate{}, false
	}
	if now.Sub(d.lastFaceAt) <= grace {
		return model.EventCandidate{}, false
	}
	return model.NewCandidate(KeyTeamEmpty, model.CategoryPresence, model.SeverityWarn,
		fmt.Sprintf("No one in frame for %.0fs", now.Sub(d.lastFaceAt).Seconds())), true
}

func objectRules(objects []model.ObjectDetection) []model.EventCandidate {
	var (
		out     []model.EventCandidate
		best    model.ObjectDetection
		found   bool
		persons int
	)
	for _, o := range objects {
		if IsGadget(o.Label) && o.Score >= GadgetMinScore && (!found || o.Score > best.Score) {
			best, found = o, true
		}
		if o.Label == PersonLabel && o.Score >= PersonMinScore {
			persons++
		}
	}
	if found {
		out = append(out, model.NewCandidate(KeyGadget, model.CategoryGadgets, model.SeverityWarn,
			fmt.Sprintf("Gadget detected: %s (%.2f)", best.Label, best.Score)))
	}
	if persons > 1 {
		out = append(out, model.NewCandidate(KeyPersons, model.CategoryGadgets, model.SeverityWarn,
			fmt.Sprintf("Multiple persons detected: %d", persons)))
	}
	return out
}

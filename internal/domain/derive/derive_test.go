package derive_test

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/okian/proctor/internal/domain/derive"
	"github.com/okian/proctor/internal/domain/geometry"
	"github.com/okian/proctor/internal/domain/model"
	"github.com/okian/proctor/internal/domain/policy"
	"github.com/okian/proctor/internal/domain/throttle"
	"github.com/okian/proctor/internal/domain/vad"
	. "github.com/smartystreets/goconvey/convey"
)

var t0 = time.Date(2025, 3, 1, 9, 0, 0, 0, time.UTC)

func at(ms int) time.Time { return t0.Add(time.Duration(ms) * time.Millisecond) }

// face returns a landmark set centred on (cx,cy) with the given box size and
// nose offset from the eye midpoint.
func face(cx, cy, size, noseDX float64) model.LandmarkSet {
	set := make(model.LandmarkSet, model.RightEyeOuter+1)
	for i := range set {
		set[i] = model.LandmarkPoint{X: cx, Y: cy}
	}
	set[0] = model.LandmarkPoint{X: cx - size/2, Y: cy - size/2}
	set[2] = model.LandmarkPoint{X: cx + size/2, Y: cy + size/2}
	set[model.LeftEyeOuter] = model.LandmarkPoint{X: cx - size/4, Y: cy}
	set[model.RightEyeOuter] = model.LandmarkPoint{X: cx + size/4, Y: cy}
	set[model.NoseTip] = model.LandmarkPoint{X: cx + noseDX, Y: cy}
	return set
}

func input(p policy.Policy, now time.Time, faces ...model.LandmarkSet) derive.Input {
	in := derive.Input{Now: now, Policy: p, FacesReady: true, Faces: faces}
	if len(faces) > 0 {
		if m, ok := geometry.ComputeFaceMetrics(faces[0], 1280); ok {
			in.Metrics = &m
		}
	}
	return in
}

func keys(cs []model.EventCandidate) []string {
	out := make([]string, 0, len(cs))
	for _, c := range cs {
		out = append(out, c.Key)
	}
	return out
}

func TestDeriveIndividual(t *testing.T) {
	Convey("Given an individual policy", t, func() {
		p := policy.Individual()
		d := derive.New()

		Convey("When no face is present", func() {
			out := d.Derive(input(p, at(0)))
			Convey("Then no-face is produced", func() {
				So(keys(out), ShouldResemble, []string{derive.KeyNoFace})
				So(out[0].Kind, ShouldEqual, model.KindVideo)
				So(out[0].Severity, ShouldEqual, model.SeverityWarn)
			})
		})

		Convey("When two faces are present", func() {
			out := d.Derive(input(p, at(0), face(0.3, 0.5, 0.3, 0), face(0.7, 0.5, 0.3, 0)))
			Convey("Then multi-face is produced", func() {
				So(keys(out), ShouldResemble, []string{derive.KeyMultiFace})
				So(out[0].Message, ShouldContainSubstring, "2")
			})
		})

		Convey("When the primary face is tiny", func() {
			out := d.Derive(input(p, at(0), face(0.5, 0.5, 0.05, 0.05)))
			Convey("Then face-small is produced and gaze is not trusted", func() {
				So(keys(out), ShouldResemble, []string{derive.KeyFaceSmall})
			})
		})

		Convey("When the head is turned past 35 degrees", func() {
			out := d.Derive(input(p, at(0), face(0.5, 0.5, 0.4, 0.07)))
			Convey("Then yaw is produced", func() {
				So(keys(out), ShouldResemble, []string{derive.KeyYaw})
				So(out[0].Category, ShouldEqual, model.CategoryGaze)
			})
		})

		Convey("When the head is frontal", func() {
			out := d.Derive(input(p, at(0), face(0.5, 0.5, 0.4, 0)))
			Convey("Then nothing is produced", func() {
				So(out, ShouldBeEmpty)
			})
		})

		Convey("When speech transitions arrive", func() {
			in := input(p, at(0), face(0.5, 0.5, 0.4, 0))
			in.Speech = vad.SpeechStarted
			on := d.Derive(in)
			in.Speech = vad.SpeechEnded
			off := d.Derive(in)

			Convey("Then speech-on and speech-off are info audio events", func() {
				So(keys(on), ShouldResemble, []string{derive.KeySpeechOn})
				So(on[0].Kind, ShouldEqual, model.KindAudio)
				So(on[0].Severity, ShouldEqual, model.SeverityInfo)
				So(keys(off), ShouldResemble, []string{derive.KeySpeechOff})
			})
		})

		Convey("When an object sample arrives", func() {
			in := input(p, at(0), face(0.5, 0.5, 0.4, 0))
			in.Sampled = true
			in.Objects = []model.ObjectDetection{
				{Label: "cell phone", Score: 0.40},
				{Label: "laptop", Score: 0.80},
				{Label: "book", Score: 0.99},
				{Label: "person", Score: 0.9},
				{Label: "person", Score: 0.5},
				{Label: "person", Score: 0.3},
			}
			out := d.Derive(in)

			Convey("Then the strongest gadget and the person count are reported", func() {
				So(keys(out), ShouldResemble, []string{derive.KeyGadget, derive.KeyPersons})
				So(out[0].Message, ShouldContainSubstring, "laptop")
				So(out[0].Message, ShouldContainSubstring, "0.80")
				So(out[1].Message, ShouldContainSubstring, "2")
			})
		})

		Convey("When objects are below confidence or the tick is not sampled", func() {
			in := input(p, at(0), face(0.5, 0.5, 0.4, 0))
			in.Objects = []model.ObjectDetection{{Label: "cell phone", Score: 0.9}}
			notSampled := d.Derive(in)
			in.Sampled = true
			in.Objects = []model.ObjectDetection{{Label: "cell phone", Score: 0.34}, {Label: "person", Score: 0.44}, {Label: "person", Score: 0.44}}
			weak := d.Derive(in)

			Convey("Then nothing is produced", func() {
				So(notSampled, ShouldBeEmpty)
				So(weak, ShouldBeEmpty)
			})
		})

		Convey("When categories are disabled", func() {
			q := p.WithFlag(model.CategoryFaces, false).WithFlag(model.CategoryAudio, false)
			in := input(q, at(0))
			in.Speech = vad.SpeechStarted
			Convey("Then their rules are skipped", func() {
				So(d.Derive(in), ShouldBeEmpty)
			})
		})

		Convey("When the face detector is not ready", func() {
			in := input(p, at(0))
			in.FacesReady = false
			in.Speech = vad.SpeechStarted
			Convey("Then only non-face categories run", func() {
				So(keys(d.Derive(in)), ShouldResemble, []string{derive.KeySpeechOn})
			})
		})
	})
}

func TestDeriveTeam(t *testing.T) {
	Convey("Given a team policy with limit 3", t, func() {
		p, err := policy.Team(3)
		So(err, ShouldBeNil)
		d := derive.New()

		Convey("When five faces are present", func() {
			faces := []model.LandmarkSet{}
			for i := 0; i < 5; i++ {
				faces = append(faces, face(0.1+float64(i)*0.2, 0.5, 0.2, 0))
			}
			out := d.Derive(input(p, at(0), faces...))

			Convey("Then team-overflow references count and limit", func() {
				So(keys(out), ShouldResemble, []string{derive.KeyTeamOverflow})
				So(out[0].Message, ShouldContainSubstring, "5")
				So(out[0].Message, ShouldContainSubstring, "limit 3")
				So(out[0].Category, ShouldEqual, model.CategoryCapacity)
			})
		})

		Convey("When the head turns past 35 but not 40 degrees", func() {
			// nose offset 0.07 on an eye distance of 0.2 is about 39.5 degrees
			out := d.Derive(input(p, at(0), face(0.5, 0.5, 0.4, 0.07)))
			Convey("Then the team threshold holds", func() {
				So(out, ShouldBeEmpty)
			})
		})

		Convey("When the head turns well past 40 degrees", func() {
			out := d.Derive(input(p, at(0), face(0.5, 0.5, 0.4, 0.09)))
			Convey("Then team-yaw is produced", func() {
				So(keys(out), ShouldResemble, []string{derive.KeyTeamYaw})
			})
		})

		Convey("When speech and objects arrive", func() {
			in := input(p, at(0), face(0.5, 0.5, 0.4, 0))
			in.Speech = vad.SpeechStarted
			in.Sampled = true
			in.Objects = []model.ObjectDetection{{Label: "cell phone", Score: 0.9}}
			Convey("Then team mode ignores them", func() {
				So(d.Derive(in), ShouldBeEmpty)
			})
		})

		Convey("When the room empties", func() {
			So(d.Derive(input(p, at(0), face(0.5, 0.5, 0.4, 0))), ShouldBeEmpty)
			within := d.Derive(input(p, at(5000)))
			after := d.Derive(input(p, at(5001)))

			Convey("Then team-empty fires only after the grace window", func() {
				So(within, ShouldBeEmpty)
				So(keys(after), ShouldResemble, []string{derive.KeyTeamEmpty})
				So(after[0].Kind, ShouldEqual, model.KindVideo)
			})
		})

		Convey("When the first tick after reset is already empty", func() {
			d.Reset()
			first := d.Derive(input(p, at(100000)))
			later := d.Derive(input(p, at(106000)))

			Convey("Then the grace clock starts at that tick", func() {
				So(first, ShouldBeEmpty)
				So(keys(later), ShouldResemble, []string{derive.KeyTeamEmpty})
			})
		})
	})
}

func TestDeriveWithThrottle(t *testing.T) {
	ctx := context.Background()

	Convey("Given individual mode with faces enabled", t, func() {
		p := policy.Individual()
		d := derive.New()
		th := throttle.NewInMemoryThrottle()

		Convey("When three consecutive ticks have no face", func() {
			var admitted []model.EventRecord
			for i := 0; i < 3; i++ {
				now := at(i * 16)
				for _, c := range d.Derive(input(p, now)) {
					if rec, ok := th.Admit(ctx, c, now); ok {
						admitted = append(admitted, rec)
					}
				}
			}

			Convey("Then exactly one no-face event is admitted", func() {
				So(len(admitted), ShouldEqual, 1)
				So(admitted[0].Key, ShouldEqual, derive.KeyNoFace)
				So(admitted[0].TS, ShouldEqual, at(0))
			})
		})
	})

	Convey("Given team mode with limit 3", t, func() {
		p, _ := policy.Team(3)
		d := derive.New()
		th := throttle.NewInMemoryThrottle()
		crowd := func(n int) []model.LandmarkSet {
			var out []model.LandmarkSet
			for i := 0; i < n; i++ {
				out = append(out, face(0.1+float64(i)*0.2, 0.5, 0.2, 0))
			}
			return out
		}
		admit := func(now time.Time, n int) []model.EventRecord {
			var recs []model.EventRecord
			for _, c := range d.Derive(input(p, now, crowd(n)...)) {
				if rec, ok := th.Admit(ctx, c, now); ok {
					recs = append(recs, rec)
				}
			}
			return recs
		}

		Convey("When headcount jumps from 2 to 5", func() {
			before := admit(at(0), 2)
			jump := admit(at(100), 5)
			soon := admit(at(600), 5)
			later := admit(at(4100), 5)

			Convey("Then overflow is admitted, suppressed, then admitted again", func() {
				So(before, ShouldBeEmpty)
				So(len(jump), ShouldEqual, 1)
				So(jump[0].Key, ShouldEqual, derive.KeyTeamOverflow)
				So(strings.Contains(jump[0].Message, "5 faces, limit 3"), ShouldBeTrue)
				So(soon, ShouldBeEmpty)
				So(len(later), ShouldEqual, 1)
			})
		})
	})
}

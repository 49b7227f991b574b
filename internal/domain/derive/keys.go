package derive

// Candidate keys. Each key has its own cooldown clock in the throttle.
const (
	KeyNoFace              = "no-face"
	KeyMultiFace           = "multi-face"
	KeyFaceSmall           = "face-small"
	KeyYaw                 = "yaw"
	KeyTeamYaw             = "team-yaw"
	KeySpeechOn            = "speech-on"
	KeySpeechOff           = "speech-off"
	KeyGadget              = "yolo-gadget"
	KeyPersons             = "yolo-persons"
	KeyTeamOverflow        = "team-overflow"
	KeyTeamEmpty           = "team-empty"
	KeyCaptureGranted      = "capture-granted"
	KeyCaptureError        = "capture-error"
	KeyDetectorUnavailable = "detector-unavailable"
)

// Object detector thresholds.
const (
	GadgetMinScore = 0.35
	PersonMinScore = 0.45
	PersonLabel    = "person"
)

var gadgetLabels = map[string]bool{
	"cell phone": true,
	"laptop":     true,
	"tv":         true,
	"remote":     true,
	"keyboard":   true,
	"mouse":      true,
	"tablet":     true,
	"monitor":    true,
}

// IsGadget reports whether label belongs to the gadget set.
func IsGadget(label string) bool {
	return gadgetLabels[label]
}

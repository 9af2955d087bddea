// Package gesture classifies feature vectors into the closed set of recognized hand gestures.
package gesture

// Label names a recognized gesture. The string values match the labels used
// in recorded training data.
type Label string

// The closed gesture set.
const (
	OpenHand     Label = "Open Hand"
	Fist         Label = "Fist"
	PeaceSign    Label = "Peace Sign"
	OneFinger    Label = "One Finger"
	ThumbsUp     Label = "Thumbs Up"
	ThreeFingers Label = "Three Fingers"
	HipHop       Label = "Hip Hop"

	// NoGesture is returned when nothing in the set was recognized.
	NoGesture Label = ""
)

// Labels returns the closed set in canonical order (G1 through G7).
func Labels() []Label {
	return []Label{OpenHand, Fist, PeaceSign, OneFinger, ThumbsUp, ThreeFingers, HipHop}
}

// Known reports whether l is a member of the closed set.
func (l Label) Known() bool {
	switch l {
	case OpenHand, Fist, PeaceSign, OneFinger, ThumbsUp, ThreeFingers, HipHop:
		return true
	}
	return false
}

// String returns the label name, or "none" for NoGesture.
func (l Label) String() string {
	if l == NoGesture {
		return "none"
	}
	return string(l)
}

// ParseLabel returns the closed-set label with the given name.
func ParseLabel(name string) (Label, bool) {
	l := Label(name)
	if !l.Known() {
		return NoGesture, false
	}
	return l, true
}

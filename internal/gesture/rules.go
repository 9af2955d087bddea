package gesture

import (
	"github.com/ayusman/mudra/internal/features"
	"github.com/ayusman/mudra/internal/hand"
)

// RuleClassifier recognizes gestures from the vertical order of the fingertips
// and the wrist. Smaller Y is higher in the frame; every comparison is strict,
// so ties never match.
type RuleClassifier struct{}

// NewRuleClassifier creates a new RuleClassifier instance.
func NewRuleClassifier() *RuleClassifier {
	return &RuleClassifier{}
}

// tips holds the six heights the rule table compares.
type tips struct {
	wrist, thumb, index, middle, ring, pinky float64
}

func tipsOf(v features.Vector) tips {
	return tips{
		wrist:  v.Y(hand.Wrist),
		thumb:  v.Y(hand.ThumbTip),
		index:  v.Y(hand.IndexTip),
		middle: v.Y(hand.MiddleTip),
		ring:   v.Y(hand.RingTip),
		pinky:  v.Y(hand.PinkyTip),
	}
}

// rule is one row of the decision table.
type rule struct {
	label Label
	match func(t tips) bool
}

// rules is evaluated top to bottom; the first match wins.
var rules = []rule{
	{OpenHand, func(t tips) bool {
		return t.thumb < t.wrist && t.index > t.middle && t.middle > t.ring && t.ring > t.pinky
	}},
	{Fist, func(t tips) bool {
		return t.index < t.middle && t.middle < t.ring && t.ring < t.pinky && t.thumb > t.wrist
	}},
	{PeaceSign, func(t tips) bool {
		return t.index < t.middle && t.middle < t.ring && t.ring > t.pinky && t.thumb > t.wrist
	}},
	{OneFinger, func(t tips) bool {
		return t.pinky < t.ring && t.ring < t.middle && t.middle < t.index && t.thumb > t.wrist
	}},
	{ThumbsUp, func(t tips) bool {
		return t.thumb < t.wrist && t.index < t.middle && t.middle > t.ring && t.ring > t.pinky
	}},
	{ThreeFingers, func(t tips) bool {
		return t.index < t.middle && t.middle < t.ring && t.ring < t.pinky && t.thumb < t.index
	}},
	{HipHop, func(t tips) bool {
		return t.middle > t.index && t.middle > t.ring && t.thumb < t.wrist
	}},
}

// Classify evaluates the rule table. Vectors that are not a full observation
// yield NoGesture.
func (c *RuleClassifier) Classify(v features.Vector) Label {
	if v.Validate() != nil {
		return NoGesture
	}

	t := tipsOf(v)
	for _, r := range rules {
		if r.match(t) {
			return r.label
		}
	}
	return NoGesture
}

package gesture

import (
	"errors"
	"io"
	"testing"

	"github.com/sirupsen/logrus"

	"github.com/ayusman/mudra/internal/features"
	"github.com/ayusman/mudra/internal/hand"
)

type fakeModel struct {
	label Label
	err   error
	calls int
}

func (m *fakeModel) Predict(v features.Vector) (Label, error) {
	m.calls++
	return m.label, m.err
}

func quietLogger() logrus.FieldLogger {
	l := logrus.New()
	l.SetOutput(io.Discard)
	return l
}

func TestLearnedClassifier(t *testing.T) {
	v, err := features.Extract(hand.OpenHandLandmarks().Points)
	if err != nil {
		t.Fatalf("extract: %v", err)
	}

	t.Run("returns known label verbatim", func(t *testing.T) {
		m := &fakeModel{label: HipHop}
		c := NewLearnedClassifier(m, quietLogger())

		if got := c.Classify(v); got != HipHop {
			t.Errorf("Classify() = %q, want %q", got, HipHop)
		}
		if m.calls != 1 {
			t.Errorf("expected exactly one inference call, got %d", m.calls)
		}
	})

	t.Run("unknown label is no gesture", func(t *testing.T) {
		c := NewLearnedClassifier(&fakeModel{label: "Wave"}, quietLogger())
		if got := c.Classify(v); got != NoGesture {
			t.Errorf("Classify() = %q, want NoGesture", got)
		}
	})

	t.Run("inference error is no gesture", func(t *testing.T) {
		c := NewLearnedClassifier(&fakeModel{err: errors.New("boom")}, quietLogger())
		if got := c.Classify(v); got != NoGesture {
			t.Errorf("Classify() = %q, want NoGesture", got)
		}
	})

	t.Run("implements Classifier", func(t *testing.T) {
		var _ Classifier = (*LearnedClassifier)(nil)
		var _ Classifier = (*RuleClassifier)(nil)
	})
}

func TestParseLabel(t *testing.T) {
	for _, l := range Labels() {
		got, ok := ParseLabel(string(l))
		if !ok || got != l {
			t.Errorf("ParseLabel(%q) = %q, %v", l, got, ok)
		}
	}

	for _, name := range []string{"", "open hand", "Wave", "G1"} {
		if _, ok := ParseLabel(name); ok {
			t.Errorf("ParseLabel(%q) should fail", name)
		}
	}

	if NoGesture.String() != "none" {
		t.Errorf("NoGesture.String() = %q", NoGesture.String())
	}
}

package gesture

import (
	"github.com/sirupsen/logrus"

	"github.com/ayusman/mudra/internal/features"
)

// Strategy selects a classifier implementation.
type Strategy string

const (
	// StrategyLearned uses an externally trained model.
	StrategyLearned Strategy = "learned"
	// StrategyRules uses the fingertip ordering table.
	StrategyRules Strategy = "rules"
)

// Classifier maps a feature vector to a gesture label.
// Implementations are deterministic and keep no per-call state.
type Classifier interface {
	Classify(v features.Vector) Label
}

// Model is a loaded classification model.
type Model interface {
	Predict(v features.Vector) (Label, error)
}

// LearnedClassifier runs one inference per call against a loaded model.
type LearnedClassifier struct {
	model Model
	log   logrus.FieldLogger
}

// NewLearnedClassifier wraps model. Inference errors and labels outside the
// closed set are logged to log and reported as NoGesture.
func NewLearnedClassifier(model Model, log logrus.FieldLogger) *LearnedClassifier {
	return &LearnedClassifier{model: model, log: log}
}

// Classify returns the model's prediction verbatim when it is a known label.
func (c *LearnedClassifier) Classify(v features.Vector) Label {
	label, err := c.model.Predict(v)
	if err != nil {
		c.log.WithError(err).Warn("model inference failed")
		return NoGesture
	}

	if label == NoGesture {
		return NoGesture
	}

	if !label.Known() {
		c.log.WithField("label", string(label)).Warn("model predicted a label outside the gesture set")
		return NoGesture
	}

	return label
}

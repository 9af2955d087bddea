// Package detector turns camera frames into hand landmarks.
package detector

import (
	"time"

	"gocv.io/x/gocv"

	"github.com/ayusman/mudra/internal/hand"
)

// Detector defines the interface for hand detection implementations.
type Detector interface {
	// Detect analyzes a video frame and returns detected hands, most
	// confident first. Returns an empty slice if no hands are detected.
	Detect(frame *gocv.Mat) ([]hand.Landmarks, error)

	// Close releases any resources held by the detector.
	Close() error
}

// Config holds configuration options for hand detection.
type Config struct {
	// MaxHands is the maximum number of hands to detect.
	MaxHands int

	// MinConfidence is the minimum detection confidence threshold (0.0-1.0).
	MinConfidence float64

	// MinTrackingConf is the minimum tracking confidence threshold (0.0-1.0).
	MinTrackingConf float64

	// Script is the path of the landmark service. Empty searches the
	// usual install locations.
	Script string

	// Command overrides the full service command line.
	Command []string

	// Env is appended to the service environment.
	Env []string

	// ResponseTimeout bounds one frame exchange with the service.
	// Zero uses DefaultResponseTimeout.
	ResponseTimeout time.Duration
}

// DefaultConfig returns the single-hand configuration the gesture rules
// are tuned for.
func DefaultConfig() Config {
	return Config{
		MaxHands:        1,
		MinConfidence:   0.7,
		MinTrackingConf: 0.5,
		ResponseTimeout: DefaultResponseTimeout,
	}
}

// Package hand defines the hand-pose observation produced by the landmark detector.
package hand

import (
	"errors"
	"fmt"
)

// Hand landmark indices following MediaPipe convention.
// See: https://developers.google.com/mediapipe/solutions/vision/hand_landmarker
const (
	Wrist        = 0
	ThumbCMC     = 1
	ThumbMCP     = 2
	ThumbIP      = 3
	ThumbTip     = 4
	IndexMCP     = 5
	IndexPIP     = 6
	IndexDIP     = 7
	IndexTip     = 8
	MiddleMCP    = 9
	MiddlePIP    = 10
	MiddleDIP    = 11
	MiddleTip    = 12
	RingMCP      = 13
	RingPIP      = 14
	RingDIP      = 15
	RingTip      = 16
	PinkyMCP     = 17
	PinkyPIP     = 18
	PinkyDIP     = 19
	PinkyTip     = 20
	NumLandmarks = 21
)

// ErrInvalidObservation is returned when an observation does not carry exactly
// NumLandmarks points.
var ErrInvalidObservation = errors.New("invalid observation")

// Point3D represents a 3D point in space with x, y, z coordinates.
// x and y are normalized to the image, z is depth relative to the wrist.
type Point3D struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
	Z float64 `json:"z"`
}

// Landmarks is one detected hand pose.
type Landmarks struct {
	Points     []Point3D `json:"points"`
	Handedness string    `json:"handedness"` // "Left" or "Right"
	Score      float64   `json:"score"`
}

// Validate reports ErrInvalidObservation unless the pose has exactly
// NumLandmarks points.
func (l *Landmarks) Validate() error {
	if l == nil {
		return fmt.Errorf("%w: nil landmarks", ErrInvalidObservation)
	}
	return ValidatePoints(l.Points)
}

// ValidatePoints checks the landmark count of a raw point sequence.
func ValidatePoints(points []Point3D) error {
	if len(points) != NumLandmarks {
		return fmt.Errorf("%w: got %d landmarks, want %d", ErrInvalidObservation, len(points), NumLandmarks)
	}
	return nil
}

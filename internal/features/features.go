// Package features flattens hand observations into classifier input vectors.
package features

import (
	"fmt"

	"github.com/ayusman/mudra/internal/hand"
)

// Dimensions is the length of a vector extracted from a valid observation.
const Dimensions = hand.NumLandmarks * 3

// Vector is a flattened observation: x, y, z for each landmark in landmark order.
type Vector []float64

// Extract concatenates the coordinates of each landmark.
// Any landmark count other than hand.NumLandmarks fails with hand.ErrInvalidObservation.
func Extract(points []hand.Point3D) (Vector, error) {
	if err := hand.ValidatePoints(points); err != nil {
		return nil, err
	}

	v := make(Vector, 0, len(points)*3)
	for _, p := range points {
		v = append(v, p.X, p.Y, p.Z)
	}
	return v, nil
}

// Point returns the coordinates of landmark i.
func (v Vector) Point(i int) hand.Point3D {
	return hand.Point3D{X: v[3*i], Y: v[3*i+1], Z: v[3*i+2]}
}

// Y returns the vertical coordinate of landmark i.
func (v Vector) Y(i int) float64 {
	return v[3*i+1]
}

// Validate checks the vector has Dimensions entries.
func (v Vector) Validate() error {
	if len(v) != Dimensions {
		return fmt.Errorf("%w: vector has %d values, want %d", hand.ErrInvalidObservation, len(v), Dimensions)
	}
	return nil
}

// Float32 converts the vector for runtimes that take single-precision input.
func (v Vector) Float32() []float32 {
	out := make([]float32, len(v))
	for i, x := range v {
		out[i] = float32(x)
	}
	return out
}

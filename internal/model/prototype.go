package model

import (
	"encoding/json"
	"fmt"
	"math"
	"os"
	"sort"

	"github.com/ayusman/mudra/internal/dataset"
	"github.com/ayusman/mudra/internal/features"
	"github.com/ayusman/mudra/internal/gesture"
	"github.com/ayusman/mudra/internal/hand"
)

// Prototype is one labeled reference vector.
type Prototype struct {
	Label    gesture.Label   `json:"label"`
	Features features.Vector `json:"features"`
}

// prototypeFile is the JSON artifact layout.
type prototypeFile struct {
	Prototypes  []Prototype `json:"prototypes"`
	K           int         `json:"k"`
	MaxDistance float64     `json:"max_distance"`
}

// NearestModel predicts the majority label among the k prototypes closest to
// the input. Distance is the sum of per-landmark Euclidean distances.
type NearestModel struct {
	prototypes  []Prototype
	k           int
	maxDistance float64
}

// NewNearestModel validates prototypes and builds a model. k below 1 is
// treated as 1. A positive maxDistance rejects inputs whose nearest prototype
// is farther away.
func NewNearestModel(prototypes []Prototype, k int, maxDistance float64) (*NearestModel, error) {
	if len(prototypes) == 0 {
		return nil, fmt.Errorf("model has no prototypes")
	}

	for i, p := range prototypes {
		if !p.Label.Known() {
			return nil, fmt.Errorf("prototype %d: unknown gesture label %q", i, p.Label)
		}
		if err := p.Features.Validate(); err != nil {
			return nil, fmt.Errorf("prototype %d: %w", i, err)
		}
	}

	if k < 1 {
		k = 1
	}
	if k > len(prototypes) {
		k = len(prototypes)
	}

	return &NearestModel{
		prototypes:  prototypes,
		k:           k,
		maxDistance: maxDistance,
	}, nil
}

// LoadPrototypes reads a JSON prototype artifact.
func LoadPrototypes(path string) (*NearestModel, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read prototypes: %w", err)
	}

	var f prototypeFile
	if err := json.Unmarshal(data, &f); err != nil {
		return nil, fmt.Errorf("parse prototypes %s: %w", path, err)
	}

	return NewNearestModel(f.Prototypes, f.K, f.MaxDistance)
}

// LoadDataset uses every row of a landmark dump as a prototype.
func LoadDataset(path string) (*NearestModel, error) {
	samples, err := dataset.Load(path)
	if err != nil {
		return nil, fmt.Errorf("load dataset %s: %w", path, err)
	}

	prototypes := make([]Prototype, len(samples))
	for i, s := range samples {
		prototypes[i] = Prototype{Label: s.Label, Features: s.Features}
	}
	return NewNearestModel(prototypes, 1, 0)
}

type neighbour struct {
	label    gesture.Label
	distance float64
}

// Predict returns the majority label of the k nearest prototypes. Vote ties go
// to the label with the closest member.
func (m *NearestModel) Predict(v features.Vector) (gesture.Label, error) {
	if err := v.Validate(); err != nil {
		return gesture.NoGesture, err
	}

	neighbours := make([]neighbour, len(m.prototypes))
	for i, p := range m.prototypes {
		neighbours[i] = neighbour{label: p.Label, distance: landmarkDistance(v, p.Features)}
	}

	sort.SliceStable(neighbours, func(i, j int) bool {
		return neighbours[i].distance < neighbours[j].distance
	})

	if m.maxDistance > 0 && neighbours[0].distance > m.maxDistance {
		return gesture.NoGesture, nil
	}

	votes := make(map[gesture.Label]int)
	first := make(map[gesture.Label]int)
	for i, n := range neighbours[:m.k] {
		votes[n.label]++
		if _, seen := first[n.label]; !seen {
			first[n.label] = i
		}
	}

	best := neighbours[0].label
	for label, count := range votes {
		if count > votes[best] || (count == votes[best] && first[label] < first[best]) {
			best = label
		}
	}

	return best, nil
}

// landmarkDistance sums the Euclidean distances between corresponding landmarks.
func landmarkDistance(a, b features.Vector) float64 {
	var total float64
	for i := 0; i < hand.NumLandmarks; i++ {
		pa, pb := a.Point(i), b.Point(i)
		dx := pa.X - pb.X
		dy := pa.Y - pb.Y
		dz := pa.Z - pb.Z
		total += math.Sqrt(dx*dx + dy*dy + dz*dz)
	}
	return total
}

package hand

// Preset poses for tests and the mock detector. Each preset starts from the same
// right-hand skeleton and moves the fingertips and wrist so the pose falls into
// exactly one fingertip ordering. Smaller Y is higher in the frame.

// baseSkeleton returns a right hand, palm facing the camera, fingers extended.
func baseSkeleton() [NumLandmarks]Point3D {
	var p [NumLandmarks]Point3D

	p[Wrist] = Point3D{X: 0.5, Y: 0.8, Z: 0.0}

	p[ThumbCMC] = Point3D{X: 0.55, Y: 0.75, Z: 0.02}
	p[ThumbMCP] = Point3D{X: 0.62, Y: 0.70, Z: 0.03}
	p[ThumbIP] = Point3D{X: 0.68, Y: 0.65, Z: 0.03}
	p[ThumbTip] = Point3D{X: 0.73, Y: 0.60, Z: 0.03}

	p[IndexMCP] = Point3D{X: 0.55, Y: 0.68, Z: 0.0}
	p[IndexPIP] = Point3D{X: 0.57, Y: 0.55, Z: 0.0}
	p[IndexDIP] = Point3D{X: 0.58, Y: 0.45, Z: 0.0}
	p[IndexTip] = Point3D{X: 0.58, Y: 0.35, Z: 0.0}

	p[MiddleMCP] = Point3D{X: 0.50, Y: 0.66, Z: 0.0}
	p[MiddlePIP] = Point3D{X: 0.50, Y: 0.52, Z: 0.0}
	p[MiddleDIP] = Point3D{X: 0.50, Y: 0.40, Z: 0.0}
	p[MiddleTip] = Point3D{X: 0.50, Y: 0.28, Z: 0.0}

	p[RingMCP] = Point3D{X: 0.45, Y: 0.68, Z: 0.0}
	p[RingPIP] = Point3D{X: 0.43, Y: 0.55, Z: 0.0}
	p[RingDIP] = Point3D{X: 0.42, Y: 0.45, Z: 0.0}
	p[RingTip] = Point3D{X: 0.42, Y: 0.35, Z: 0.0}

	p[PinkyMCP] = Point3D{X: 0.40, Y: 0.70, Z: 0.0}
	p[PinkyPIP] = Point3D{X: 0.37, Y: 0.60, Z: 0.0}
	p[PinkyDIP] = Point3D{X: 0.35, Y: 0.50, Z: 0.0}
	p[PinkyTip] = Point3D{X: 0.34, Y: 0.42, Z: 0.0}

	return p
}

// WithTips builds a pose from the base skeleton with the given wrist and
// fingertip heights.
func WithTips(wrist, thumb, index, middle, ring, pinky float64) Landmarks {
	p := baseSkeleton()
	p[Wrist].Y = wrist
	p[ThumbTip].Y = thumb
	p[IndexTip].Y = index
	p[MiddleTip].Y = middle
	p[RingTip].Y = ring
	p[PinkyTip].Y = pinky

	points := make([]Point3D, NumLandmarks)
	copy(points, p[:])

	return Landmarks{
		Points:     points,
		Handedness: "Right",
		Score:      0.95,
	}
}

// OpenHandLandmarks returns a pose whose fingertips descend from index to pinky
// with the thumb above the wrist.
func OpenHandLandmarks() Landmarks {
	return WithTips(0.80, 0.60, 0.45, 0.40, 0.35, 0.30)
}

// FistLandmarks returns a pose with fingertips rising from index to pinky and
// the thumb tucked below the wrist.
func FistLandmarks() Landmarks {
	return WithTips(0.80, 0.85, 0.55, 0.58, 0.61, 0.64)
}

// PeaceSignLandmarks returns a pose with index and middle raised, ring and pinky
// folded and the thumb below the wrist.
func PeaceSignLandmarks() Landmarks {
	return WithTips(0.80, 0.85, 0.30, 0.32, 0.65, 0.62)
}

// OneFingerLandmarks returns a pose with fingertips descending from pinky to
// index and the thumb below the wrist.
func OneFingerLandmarks() Landmarks {
	return WithTips(0.80, 0.85, 0.70, 0.60, 0.50, 0.40)
}

// ThumbsUpLandmarks returns a pose with the thumb raised above the wrist and the
// other fingertips clustered low.
func ThumbsUpLandmarks() Landmarks {
	return WithTips(0.80, 0.35, 0.70, 0.72, 0.71, 0.69)
}

// ThreeFingersLandmarks returns a pose with index, middle and ring raised and the
// thumb above the index tip.
func ThreeFingersLandmarks() Landmarks {
	return WithTips(0.80, 0.20, 0.30, 0.32, 0.34, 0.60)
}

// HipHopLandmarks returns a horns pose: middle tip folded below index and ring,
// thumb above the wrist.
func HipHopLandmarks() Landmarks {
	return WithTips(0.80, 0.50, 0.30, 0.65, 0.40, 0.45)
}

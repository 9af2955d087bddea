// Package command maps gestures to microcontroller command codes and rate-limits
// their dispatch.
package command

import (
	"fmt"

	"github.com/ayusman/mudra/internal/gesture"
)

// Code is a command token understood by the microcontroller.
type Code string

// Command codes, one per gesture.
const (
	G1 Code = "G1"
	G2 Code = "G2"
	G3 Code = "G3"
	G4 Code = "G4"
	G5 Code = "G5"
	G6 Code = "G6"
	G7 Code = "G7"
)

var byLabel = map[gesture.Label]Code{
	gesture.OpenHand:     G1,
	gesture.Fist:         G2,
	gesture.PeaceSign:    G3,
	gesture.OneFinger:    G4,
	gesture.ThumbsUp:     G5,
	gesture.ThreeFingers: G6,
	gesture.HipHop:       G7,
}

var byCode = func() map[Code]gesture.Label {
	m := make(map[Code]gesture.Label, len(byLabel))
	for l, c := range byLabel {
		m[c] = l
	}
	return m
}()

// FromLabel returns the code for a gesture. NoGesture and labels outside the
// closed set have no code.
func FromLabel(l gesture.Label) (Code, bool) {
	c, ok := byLabel[l]
	return c, ok
}

// Codes returns all command codes in order.
func Codes() []Code {
	return []Code{G1, G2, G3, G4, G5, G6, G7}
}

// ParseCode validates a wire token.
func ParseCode(s string) (Code, error) {
	c := Code(s)
	if _, ok := byCode[c]; !ok {
		return "", fmt.Errorf("unknown command code %q", s)
	}
	return c, nil
}

// Label returns the gesture that maps to c, or NoGesture for an unknown code.
func (c Code) Label() gesture.Label {
	return byCode[c]
}

// Wire returns the bytes written to the serial link for c.
func (c Code) Wire() []byte {
	return []byte(string(c) + "\n")
}

// Package pipeline drives the per-frame decision loop: observation, features,
// classification, command mapping, debounce and dispatch.
package pipeline

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/ayusman/mudra/internal/command"
	"github.com/ayusman/mudra/internal/features"
	"github.com/ayusman/mudra/internal/gesture"
	"github.com/ayusman/mudra/internal/hand"
	"github.com/ayusman/mudra/internal/link"
)

// ErrSourceClosed is returned by a Source that has no more frames.
var ErrSourceClosed = errors.New("source closed")

// Source yields one observation per frame. A nil observation with a nil error
// means no hand was detected. Other errors skip the frame, except
// ErrSourceClosed and context errors, which end the run.
type Source interface {
	Next(ctx context.Context) (*hand.Landmarks, error)
}

// Sender writes accepted commands to the outbound link.
type Sender interface {
	Send(code command.Code) (link.Outcome, error)
}

// Dispatch describes one accepted command.
type Dispatch struct {
	Code    command.Code  `json:"code"`
	Gesture gesture.Label `json:"gesture"`
	Outcome link.Outcome  `json:"-"`
	Status  string        `json:"outcome"`
	Err     error         `json:"-"`
	At      time.Time     `json:"at"`
}

// Result is the outcome of one frame.
type Result struct {
	Gesture    gesture.Label
	Candidate  command.Code
	HasCommand bool
	Dispatched *Dispatch
}

// Config holds the collaborators of a Driver.
type Config struct {
	Classifier gesture.Classifier
	Debouncer  *command.Debouncer
	Sender     Sender
	Logger     logrus.FieldLogger
	// Clock returns the current time. Nil uses time.Now.
	Clock func() time.Time
}

// Driver runs the decision pipeline one frame at a time. Step and Run must be
// called from a single goroutine.
type Driver struct {
	classifier gesture.Classifier
	debouncer  *command.Debouncer
	sender     Sender
	log        logrus.FieldLogger
	clock      func() time.Time

	mu        sync.RWMutex
	enabled   bool
	observers []func(Dispatch)
	frames    uint64
	last      gesture.Label
}

// New creates an enabled Driver.
func New(cfg Config) *Driver {
	clock := cfg.Clock
	if clock == nil {
		clock = time.Now
	}
	return &Driver{
		classifier: cfg.Classifier,
		debouncer:  cfg.Debouncer,
		sender:     cfg.Sender,
		log:        cfg.Logger,
		clock:      clock,
		enabled:    true,
	}
}

// OnDispatch registers fn to be called after every accepted command, on the
// driving goroutine.
func (d *Driver) OnDispatch(fn func(Dispatch)) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.observers = append(d.observers, fn)
}

// SetEnabled enables or disables recognition. A disabled Driver treats every
// frame as having no observation.
func (d *Driver) SetEnabled(enabled bool) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.enabled = enabled
}

// IsEnabled returns whether recognition is enabled.
func (d *Driver) IsEnabled() bool {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return d.enabled
}

// Frames returns the number of frames processed.
func (d *Driver) Frames() uint64 {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return d.frames
}

// LastGesture returns the label classified in the most recent frame.
func (d *Driver) LastGesture() gesture.Label {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return d.last
}

// Run pulls frames from src until ctx is cancelled or the source closes.
// Cancellation is checked between frames; a frame in progress always
// completes. Returns nil on cancellation.
func (d *Driver) Run(ctx context.Context, src Source) error {
	for {
		select {
		case <-ctx.Done():
			return nil
		default:
		}

		obs, err := src.Next(ctx)
		if err != nil {
			if errors.Is(err, ErrSourceClosed) {
				return err
			}
			if ctx.Err() != nil {
				return nil
			}
			d.log.WithError(err).Debug("frame skipped")
			obs = nil
		}

		d.Step(obs, d.clock())
	}
}

// Step processes one frame observed at now.
func (d *Driver) Step(obs *hand.Landmarks, now time.Time) Result {
	label := d.classify(obs)

	d.mu.Lock()
	d.frames++
	d.last = label
	d.mu.Unlock()

	res := Result{Gesture: label}
	res.Candidate, res.HasCommand = command.FromLabel(label)

	code, ok := d.debouncer.TryAccept(res.Candidate, res.HasCommand, now)
	if !ok {
		return res
	}

	outcome, err := d.sender.Send(code)
	dispatch := Dispatch{
		Code:    code,
		Gesture: label,
		Outcome: outcome,
		Status:  outcome.String(),
		Err:     err,
		At:      now,
	}
	res.Dispatched = &dispatch

	d.mu.RLock()
	observers := d.observers
	d.mu.RUnlock()
	for _, fn := range observers {
		fn(dispatch)
	}

	return res
}

// classify maps an observation to a label. Absent or malformed observations
// and a disabled Driver yield NoGesture.
func (d *Driver) classify(obs *hand.Landmarks) gesture.Label {
	if obs == nil || !d.IsEnabled() {
		return gesture.NoGesture
	}

	v, err := features.Extract(obs.Points)
	if err != nil {
		d.log.WithError(err).Debug("observation rejected")
		return gesture.NoGesture
	}

	return d.classifier.Classify(v)
}

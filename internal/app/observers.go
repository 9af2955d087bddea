package app

import (
	"time"

	"github.com/ayusman/mudra/internal/pipeline"
	"github.com/ayusman/mudra/internal/store"
)

// Event is the published form of an accepted command.
type Event struct {
	Code    string    `json:"code"`
	Gesture string    `json:"gesture"`
	Outcome string    `json:"outcome"`
	Error   string    `json:"error,omitempty"`
	Port    string    `json:"port"`
	At      time.Time `json:"at"`
}

func (a *App) event(d pipeline.Dispatch) Event {
	ev := Event{
		Code:    string(d.Code),
		Gesture: string(d.Gesture),
		Outcome: d.Status,
		Port:    a.link.Name(),
		At:      d.At,
	}
	if d.Err != nil {
		ev.Error = d.Err.Error()
	}
	return ev
}

func (a *App) remember(d pipeline.Dispatch) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.last = &d
}

func (a *App) recordDispatch(d pipeline.Dispatch) {
	ev := a.event(d)
	rec := &store.Dispatch{
		RunID:   a.runID,
		Code:    ev.Code,
		Gesture: ev.Gesture,
		Outcome: ev.Outcome,
		Error:   ev.Error,
		SentAt:  ev.At,
	}
	if err := a.store.Dispatches().Create(rec); err != nil {
		a.log.WithError(err).Warn("could not record dispatch")
	}
}

func (a *App) publishDispatch(d pipeline.Dispatch) {
	if _, err := a.publisher.Publish(a.event(d)); err != nil {
		a.log.WithError(err).Warn("could not publish dispatch")
	}
}

func (a *App) broadcastDispatch(d pipeline.Dispatch) {
	if err := a.events.Broadcast(a.event(d)); err != nil {
		a.log.WithError(err).Warn("could not broadcast dispatch")
	}
}

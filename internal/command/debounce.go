package command

import (
	"sync"
	"time"
)

// DefaultCooldown is the minimum time between two accepted commands.
const DefaultCooldown = 2 * time.Second

// State is a snapshot of the debounce gate.
type State struct {
	LastSent   Code      `json:"last_sent,omitempty"`
	HasSent    bool      `json:"has_sent"`
	LastSentAt time.Time `json:"last_sent_at"`
}

// Debouncer decides whether a freshly computed command may be dispatched.
//
// A candidate is accepted only if it differs from the last accepted command and
// more than the cooldown has elapsed since that acceptance. The timer is
// shared across codes: a different command arriving inside the window is
// suppressed as well.
type Debouncer struct {
	cooldown time.Duration

	mu       sync.Mutex
	lastSent Code
	hasSent  bool
	lastAt   time.Time
}

// NewDebouncer creates a gate whose timer starts at start, normally the
// process start time. A cooldown of zero or less uses DefaultCooldown.
func NewDebouncer(cooldown time.Duration, start time.Time) *Debouncer {
	if cooldown <= 0 {
		cooldown = DefaultCooldown
	}
	return &Debouncer{
		cooldown: cooldown,
		lastAt:   start,
	}
}

// TryAccept gates candidate at time now. ok reports whether a candidate is
// present. It returns the accepted code and true, or false when nothing may
// be sent. State changes only on acceptance.
func (d *Debouncer) TryAccept(candidate Code, ok bool, now time.Time) (Code, bool) {
	if !ok {
		return "", false
	}

	d.mu.Lock()
	defer d.mu.Unlock()

	if d.hasSent && candidate == d.lastSent {
		return "", false
	}
	if now.Sub(d.lastAt) <= d.cooldown {
		return "", false
	}

	d.lastSent = candidate
	d.hasSent = true
	d.lastAt = now
	return candidate, true
}

// State returns the current gate state.
func (d *Debouncer) State() State {
	d.mu.Lock()
	defer d.mu.Unlock()
	return State{
		LastSent:   d.lastSent,
		HasSent:    d.hasSent,
		LastSentAt: d.lastAt,
	}
}

// Cooldown returns the configured cooldown.
func (d *Debouncer) Cooldown() time.Duration {
	return d.cooldown
}

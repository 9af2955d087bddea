package api

import (
	"encoding/json"
	"net/http"
	"time"
)

// LinkStatus describes the outbound serial link.
type LinkStatus struct {
	Port      string `json:"port"`
	Available bool   `json:"available"`
}

// DebounceStatus mirrors the debounce controller state.
type DebounceStatus struct {
	LastSent   string        `json:"last_sent,omitempty"`
	LastSentAt time.Time     `json:"last_sent_at"`
	Cooldown   time.Duration `json:"cooldown_ns"`
}

// Status is a snapshot of the running pipeline.
type Status struct {
	Link        LinkStatus     `json:"link"`
	Strategy    string         `json:"strategy"`
	Enabled     bool           `json:"enabled"`
	Frames      uint64         `json:"frames"`
	LastGesture string         `json:"last_gesture"`
	Debounce    DebounceStatus `json:"debounce"`
}

// StatusProvider is implemented by the running application.
type StatusProvider interface {
	Status() Status
	SetEnabled(enabled bool)
}

// StatusHandler serves GET /api/status and accepts
// PUT /api/status {"enabled": bool} to pause or resume recognition.
type StatusHandler struct {
	provider StatusProvider
}

// NewStatusHandler creates a new StatusHandler.
func NewStatusHandler(p StatusProvider) *StatusHandler {
	return &StatusHandler{provider: p}
}

type updateStatusRequest struct {
	Enabled *bool `json:"enabled"`
}

// ServeHTTP implements the http.Handler interface.
func (h *StatusHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodGet:
		writeJSON(w, http.StatusOK, h.provider.Status())
	case http.MethodPut:
		var req updateStatusRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeError(w, http.StatusBadRequest, "Invalid JSON")
			return
		}
		if req.Enabled == nil {
			writeError(w, http.StatusBadRequest, "enabled is required")
			return
		}
		h.provider.SetEnabled(*req.Enabled)
		writeJSON(w, http.StatusOK, h.provider.Status())
	default:
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
	}
}

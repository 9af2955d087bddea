package api

import (
	"errors"
	"net/http"
	"strconv"
	"strings"

	"github.com/ayusman/mudra/internal/store"
)

// MaxDispatchLimit caps the limit query parameter.
const MaxDispatchLimit = 500

// DispatchHandler serves the dispatch history.
//
//	GET /api/dispatches?limit=N   newest first
//	GET /api/dispatches/stats     count per command code
//	GET /api/dispatches/{id}
type DispatchHandler struct {
	store *store.Store
}

// NewDispatchHandler creates a new DispatchHandler with the given store.
func NewDispatchHandler(s *store.Store) *DispatchHandler {
	return &DispatchHandler{store: s}
}

type listDispatchesResponse struct {
	Dispatches []*store.Dispatch `json:"dispatches"`
}

type statsResponse struct {
	Counts map[string]int `json:"counts"`
	Total  int            `json:"total"`
}

// ServeHTTP implements the http.Handler interface.
func (h *DispatchHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	path := strings.TrimPrefix(r.URL.Path, "/api/dispatches")
	path = strings.TrimPrefix(path, "/")

	switch path {
	case "":
		h.list(w, r)
	case "stats":
		h.stats(w)
	default:
		h.get(w, path)
	}
}

func (h *DispatchHandler) list(w http.ResponseWriter, r *http.Request) {
	limit := store.DefaultRecentLimit
	if raw := r.URL.Query().Get("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n <= 0 {
			writeError(w, http.StatusBadRequest, "limit must be a positive integer")
			return
		}
		limit = min(n, MaxDispatchLimit)
	}

	dispatches, err := h.store.Dispatches().Recent(limit)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to list dispatches")
		return
	}
	if dispatches == nil {
		dispatches = []*store.Dispatch{}
	}

	writeJSON(w, http.StatusOK, listDispatchesResponse{Dispatches: dispatches})
}

func (h *DispatchHandler) stats(w http.ResponseWriter) {
	counts, err := h.store.Dispatches().CountByCode()
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to count dispatches")
		return
	}

	total := 0
	for _, n := range counts {
		total += n
	}
	writeJSON(w, http.StatusOK, statsResponse{Counts: counts, Total: total})
}

func (h *DispatchHandler) get(w http.ResponseWriter, id string) {
	d, err := h.store.Dispatches().GetByID(id)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			writeError(w, http.StatusNotFound, "Dispatch not found")
			return
		}
		writeError(w, http.StatusInternalServerError, "Failed to get dispatch")
		return
	}

	writeJSON(w, http.StatusOK, d)
}

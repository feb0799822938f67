package handler

import (
	"net/http"
	"sync/atomic"
	"time"

	"blink/internal/store"
)

type HealthHandler struct {
	store    store.RecordStore
	launched *atomic.Bool
}

// NewHealthHandler reports ready once launched is set and the store holds
// routes.
func NewHealthHandler(s store.RecordStore, launched *atomic.Bool) *HealthHandler {
	return &HealthHandler{
		store:    s,
		launched: launched,
	}
}

func (h *HealthHandler) Healthz(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "text/plain")
	w.WriteHeader(http.StatusOK)
	w.Write([]byte("ok"))
}

type ReadyResponse struct {
	Ready      bool      `json:"ready"`
	RouteCount int       `json:"routeCount"`
	BusCount   int       `json:"busCount"`
	ServerTime time.Time `json:"serverTime"`
}

func (h *HealthHandler) Readyz(w http.ResponseWriter, r *http.Request) {
	routes, err := h.store.CountRoutes(r.Context())
	if err != nil {
		routes = 0
	}
	buses, err := h.store.CountBuses(r.Context())
	if err != nil {
		buses = 0
	}

	ready := h.launched.Load() && routes > 0
	status := http.StatusOK
	if !ready {
		status = http.StatusServiceUnavailable
	}

	respondJSON(w, status, ReadyResponse{
		Ready:      ready,
		RouteCount: routes,
		BusCount:   buses,
		ServerTime: time.Now(),
	})
}

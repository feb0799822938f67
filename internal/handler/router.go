package handler

import (
	"log/slog"
	"net/http"
	"sync/atomic"

	"blink/internal/app"
	"blink/internal/hub"
	"blink/internal/middleware"
	"blink/internal/scanner"
	"blink/internal/store"
)

type Deps struct {
	App      *app.App
	Store    store.RecordStore
	Hub      *hub.Hub
	Sessions *scanner.Registry
	Limiter  *middleware.RateLimiter
	Launched *atomic.Bool
	Version  string
	Logger   *slog.Logger
}

// NewRouter wires every route. Scan and resolve routes are rate limited when
// a limiter is set.
func NewRouter(d Deps) http.Handler {
	httpHandler := NewHTTPHandler(d.App, d.Store)
	scanHandler := NewScanHandler(d.App, d.Sessions)
	journeyHandler := NewJourneyHandler(d.App)
	liveHandler := NewLiveHandler(d.Hub, d.Logger)
	healthHandler := NewHealthHandler(d.Store, d.Launched)
	statsHandler := NewStatsHandler(d.Store, d.Hub, d.Sessions, d.Limiter, d.Version)

	limited := func(h http.HandlerFunc) http.Handler {
		if d.Limiter == nil {
			return h
		}
		return d.Limiter.Middleware(h)
	}

	mux := http.NewServeMux()

	mux.HandleFunc("GET /v1/routes", httpHandler.ListRoutes)
	mux.HandleFunc("GET /v1/routes/{code}", httpHandler.GetRoute)
	mux.HandleFunc("GET /v1/buses", httpHandler.ListBuses)
	mux.Handle("POST /v1/plates/resolve", limited(httpHandler.ResolvePlate))

	mux.HandleFunc("POST /v1/scan/sessions", scanHandler.OpenSession)
	mux.Handle("POST /v1/scan/sessions/{id}/frames", limited(scanHandler.PostFrame))
	mux.Handle("POST /v1/scan/sessions/{id}/capture", limited(scanHandler.Capture))
	mux.HandleFunc("DELETE /v1/scan/sessions/{id}", scanHandler.CloseSession)

	mux.HandleFunc("POST /v1/journeys", journeyHandler.Start)
	mux.HandleFunc("GET /v1/journeys/active", journeyHandler.Active)
	mux.HandleFunc("DELETE /v1/journeys/active", journeyHandler.Stop)
	mux.HandleFunc("POST /v1/journeys/active/ack", journeyHandler.Acknowledge)
	mux.HandleFunc("GET /v1/deeplink", journeyHandler.DeepLink)

	mux.HandleFunc("GET /healthz", healthHandler.Healthz)
	mux.HandleFunc("GET /readyz", healthHandler.Readyz)
	mux.HandleFunc("GET /v1/stats", statsHandler.GetStats)

	var api http.Handler = mux
	api = GzipMiddleware(api)
	api = CORSMiddleware(api)
	api = LoggingMiddleware(d.Logger)(api)

	// The websocket upgrade needs the raw ResponseWriter.
	root := http.NewServeMux()
	root.HandleFunc("/v1/live", liveHandler.ServeWS)
	root.Handle("/", api)
	return root
}

package handler

import (
	"net/http"
	"runtime"
	"sync/atomic"
	"time"

	"blink/internal/hub"
	"blink/internal/middleware"
	"blink/internal/scanner"
	"blink/internal/store"
)

// Stats tracks server-wide counters.
type Stats struct {
	startTime     time.Time
	requestCount  atomic.Int64
	wsConnections atomic.Int64
	wsMessagesIn  atomic.Int64
	wsMessagesOut atomic.Int64
}

var ServerStats = &Stats{
	startTime: time.Now(),
}

func (s *Stats) IncRequests()      { s.requestCount.Add(1) }
func (s *Stats) IncWSConnections() { s.wsConnections.Add(1) }
func (s *Stats) DecWSConnections() { s.wsConnections.Add(-1) }
func (s *Stats) IncWSMessagesIn()  { s.wsMessagesIn.Add(1) }
func (s *Stats) IncWSMessagesOut() { s.wsMessagesOut.Add(1) }

type StatsHandler struct {
	store    store.RecordStore
	hub      *hub.Hub
	sessions *scanner.Registry
	limiter  *middleware.RateLimiter
	version  string
}

func NewStatsHandler(s store.RecordStore, h *hub.Hub, sessions *scanner.Registry, limiter *middleware.RateLimiter, version string) *StatsHandler {
	return &StatsHandler{
		store:    s,
		hub:      h,
		sessions: sessions,
		limiter:  limiter,
		version:  version,
	}
}

type StatsResponse struct {
	Server    ServerStatsResponse    `json:"server"`
	Records   RecordStatsResponse    `json:"records"`
	Live      LiveStatsResponse      `json:"live"`
	WebSocket WebSocketStatsResponse `json:"websocket"`
	Go        GoStatsResponse        `json:"go"`
}

type ServerStatsResponse struct {
	Uptime        string    `json:"uptime"`
	UptimeSeconds float64   `json:"uptime_seconds"`
	StartTime     time.Time `json:"start_time"`
	RequestCount  int64     `json:"request_count"`
	RateLimited   int64     `json:"rate_limited"`
	Version       string    `json:"version"`
}

type RecordStatsResponse struct {
	Routes int `json:"routes"`
	Buses  int `json:"buses"`
}

type LiveStatsResponse struct {
	Activities   int `json:"activities"`
	ScanSessions int `json:"scan_sessions"`
}

type WebSocketStatsResponse struct {
	Clients     int   `json:"clients"`
	Connections int64 `json:"connections"`
	MessagesIn  int64 `json:"messages_in"`
	MessagesOut int64 `json:"messages_out"`
}

type GoStatsResponse struct {
	Goroutines  int     `json:"goroutines"`
	HeapAlloc   uint64  `json:"heap_alloc_bytes"`
	HeapAllocMB float64 `json:"heap_alloc_mb"`
	NumGC       uint32  `json:"num_gc"`
	GoVersion   string  `json:"go_version"`
}

func (h *StatsHandler) GetStats(w http.ResponseWriter, r *http.Request) {
	uptime := time.Since(ServerStats.startTime)

	routes, _ := h.store.CountRoutes(r.Context())
	buses, _ := h.store.CountBuses(r.Context())

	var mem runtime.MemStats
	runtime.ReadMemStats(&mem)

	var blocked int64
	if h.limiter != nil {
		blocked = h.limiter.Blocked()
	}

	response := StatsResponse{
		Server: ServerStatsResponse{
			Uptime:        uptime.Round(time.Second).String(),
			UptimeSeconds: uptime.Seconds(),
			StartTime:     ServerStats.startTime,
			RequestCount:  ServerStats.requestCount.Load(),
			RateLimited:   blocked,
			Version:       h.version,
		},
		Records: RecordStatsResponse{
			Routes: routes,
			Buses:  buses,
		},
		Live: LiveStatsResponse{
			Activities:   h.hub.ActivityCount(),
			ScanSessions: h.sessions.Count(),
		},
		WebSocket: WebSocketStatsResponse{
			Clients:     h.hub.ClientCount(),
			Connections: ServerStats.wsConnections.Load(),
			MessagesIn:  ServerStats.wsMessagesIn.Load(),
			MessagesOut: ServerStats.wsMessagesOut.Load(),
		},
		Go: GoStatsResponse{
			Goroutines:  runtime.NumGoroutine(),
			HeapAlloc:   mem.HeapAlloc,
			HeapAllocMB: float64(mem.HeapAlloc) / 1024 / 1024,
			NumGC:       mem.NumGC,
			GoVersion:   runtime.Version(),
		},
	}

	w.Header().Set("Cache-Control", "no-cache")
	respondJSON(w, http.StatusOK, response)
}

package handler

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/coder/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"blink/internal/app"
	"blink/internal/cache"
	"blink/internal/hub"
	"blink/internal/journey"
	"blink/internal/livestatus"
	"blink/internal/scanner"
	"blink/internal/seed"
	"blink/internal/store"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

type server struct {
	*httptest.Server
	hub *hub.Hub
}

func newServer(t *testing.T) *server {
	t.Helper()
	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)

	logger := testLogger()
	s := store.NewMemory()
	h := hub.NewHub(logger)
	go h.Run(ctx)

	pub := livestatus.NewPublisher(h, cache.NewMemorySnapshotStore(), logger)
	a := app.New(s, seed.Default(), pub, app.Options{
		Journey: journey.Options{TickInterval: time.Hour},
	}, logger)
	require.NoError(t, a.Launch(ctx))
	t.Cleanup(a.Shutdown)

	launched := &atomic.Bool{}
	launched.Store(true)

	srv := httptest.NewServer(NewRouter(Deps{
		App:      a,
		Store:    s,
		Hub:      h,
		Sessions: scanner.NewRegistry(scanner.Options{Threshold: 2}, time.Minute, logger),
		Launched: launched,
		Version:  "test",
		Logger:   logger,
	}))
	t.Cleanup(srv.Close)
	return &server{Server: srv, hub: h}
}

func (s *server) do(t *testing.T, method, path string, body any) (*http.Response, []byte) {
	t.Helper()
	var r io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		require.NoError(t, err)
		r = bytes.NewReader(data)
	}
	req, err := http.NewRequest(method, s.URL+path, r)
	require.NoError(t, err)
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()
	out, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	return resp, out
}

func TestRoutes(t *testing.T) {
	s := newServer(t)

	resp, body := s.do(t, http.MethodGet, "/v1/routes", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	var list RoutesResponse
	require.NoError(t, json.Unmarshal(body, &list))
	assert.Equal(t, 8, list.Count)

	resp, body = s.do(t, http.MethodGet, "/v1/routes?destination=cbd%20selatan", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	require.NoError(t, json.Unmarshal(body, &list))
	assert.NotZero(t, list.Count)

	resp, body = s.do(t, http.MethodGet, "/v1/routes/gs", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	var route struct {
		RouteCode string `json:"routeCode"`
		Stations  []struct {
			IsCurrentStation bool `json:"isCurrentStation"`
		} `json:"stations"`
	}
	require.NoError(t, json.Unmarshal(body, &route))
	assert.Equal(t, "GS", route.RouteCode)
	current := 0
	for _, st := range route.Stations {
		if st.IsCurrentStation {
			current++
		}
	}
	assert.Equal(t, 1, current)

	resp, _ = s.do(t, http.MethodGet, "/v1/routes/XX", nil)
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
}

func TestBuses(t *testing.T) {
	s := newServer(t)

	resp, body := s.do(t, http.MethodGet, "/v1/buses?plate=B%207866%20PAA", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	var list BusesResponse
	require.NoError(t, json.Unmarshal(body, &list))
	assert.Equal(t, 2, list.Count)
}

func TestResolvePlate(t *testing.T) {
	s := newServer(t)

	resp, body := s.do(t, http.MethodPost, "/v1/plates/resolve", map[string]string{"plate": "b 7566 paa"})
	require.Equal(t, http.StatusOK, resp.StatusCode)
	var res struct {
		Outcome      string `json:"outcome"`
		DisplayPlate string `json:"displayPlate"`
		Route        struct {
			RouteCode string `json:"routeCode"`
		} `json:"route"`
	}
	require.NoError(t, json.Unmarshal(body, &res))
	assert.Equal(t, "matched", res.Outcome)
	assert.Equal(t, "B 7566 PAA", res.DisplayPlate)
	assert.Equal(t, "GS", res.Route.RouteCode)

	resp, body = s.do(t, http.MethodPost, "/v1/plates/resolve", map[string]string{"plate": "Z 1 Q"})
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
	assert.JSONEq(t, `{"error":"plate not recognized"}`, string(body))

	resp, body = s.do(t, http.MethodPost, "/v1/plates/resolve", map[string]string{})
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
	assert.Contains(t, string(body), "plate is required")
}

func TestScanSession(t *testing.T) {
	s := newServer(t)

	resp, body := s.do(t, http.MethodPost, "/v1/scan/sessions", nil)
	require.Equal(t, http.StatusCreated, resp.StatusCode)
	var sess SessionResponse
	require.NoError(t, json.Unmarshal(body, &sess))
	assert.Equal(t, 2, sess.Threshold)

	base := time.Date(2026, 4, 1, 7, 0, 0, 0, time.UTC)
	var frame FrameResponse
	for i := 0; i < 2; i++ {
		at := base.Add(time.Duration(i) * time.Second)
		resp, body = s.do(t, http.MethodPost, "/v1/scan/sessions/"+sess.SessionID+"/frames", FrameRequest{
			RawOCRStrings: []string{"BSDCITY B 7566 PAA EXPRESS"},
			At:            &at,
		})
		require.Equal(t, http.StatusOK, resp.StatusCode)
		require.NoError(t, json.Unmarshal(body, &frame))
		assert.True(t, frame.Accepted)
	}
	assert.True(t, frame.Update.Status.Stable)
	assert.Equal(t, "B 7566 PAA", frame.DisplayPlate)

	resp, body = s.do(t, http.MethodPost, "/v1/scan/sessions/"+sess.SessionID+"/capture", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	var capture CaptureResponse
	require.NoError(t, json.Unmarshal(body, &capture))
	assert.Equal(t, "B7566PAA", capture.Candidate.Text)
	assert.Equal(t, "GS", capture.Match.Bus.RouteCode)

	resp, _ = s.do(t, http.MethodDelete, "/v1/scan/sessions/"+sess.SessionID, nil)
	assert.Equal(t, http.StatusNoContent, resp.StatusCode)
	resp, _ = s.do(t, http.MethodPost, "/v1/scan/sessions/"+sess.SessionID+"/frames", FrameRequest{})
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
}

func TestJourneyLifecycle(t *testing.T) {
	s := newServer(t)

	resp, _ := s.do(t, http.MethodGet, "/v1/journeys/active", nil)
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)

	resp, body := s.do(t, http.MethodPost, "/v1/journeys", StartJourneyRequest{Plate: "B7566PAA"})
	require.Equal(t, http.StatusCreated, resp.StatusCode)
	var started JourneyResponse
	require.NoError(t, json.Unmarshal(body, &started))
	assert.Equal(t, "1h 5m", started.Remaining)
	assert.Equal(t, "6.9 km", started.Distance)
	assert.Equal(t, 1, s.hub.ActivityCount())

	resp, _ = s.do(t, http.MethodPost, "/v1/journeys/active/ack", nil)
	assert.Equal(t, http.StatusConflict, resp.StatusCode)

	resp, body = s.do(t, http.MethodGet, "/v1/deeplink?url="+"blink://journey/B7566PAA", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Contains(t, string(body), `"state":"ongoing"`)

	resp, body = s.do(t, http.MethodDelete, "/v1/journeys/active", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Contains(t, string(body), `"state":"completed"`)
	assert.Zero(t, s.hub.ActivityCount())

	resp, _ = s.do(t, http.MethodPost, "/v1/journeys/active/ack", nil)
	assert.Equal(t, http.StatusNoContent, resp.StatusCode)

	resp, _ = s.do(t, http.MethodPost, "/v1/journeys", StartJourneyRequest{Plate: "B7566PAA", DestinationStation: "Airport"})
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)

	resp, _ = s.do(t, http.MethodGet, "/v1/deeplink?url=https://example.com", nil)
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestHealthAndStats(t *testing.T) {
	s := newServer(t)

	resp, body := s.do(t, http.MethodGet, "/healthz", nil)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "ok", string(body))

	resp, body = s.do(t, http.MethodGet, "/readyz", nil)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	var ready ReadyResponse
	require.NoError(t, json.Unmarshal(body, &ready))
	assert.True(t, ready.Ready)
	assert.Equal(t, 8, ready.RouteCount)
	assert.Equal(t, 12, ready.BusCount)

	resp, body = s.do(t, http.MethodGet, "/v1/stats", nil)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	var stats StatsResponse
	require.NoError(t, json.Unmarshal(body, &stats))
	assert.Equal(t, "test", stats.Server.Version)
	assert.Equal(t, 8, stats.Records.Routes)
}

func TestLiveFeed(t *testing.T) {
	s := newServer(t)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	wsURL := "ws" + strings.TrimPrefix(s.URL, "http") + "/v1/live"
	conn, _, err := websocket.Dial(ctx, wsURL, nil)
	require.NoError(t, err)
	defer conn.Close(websocket.StatusNormalClosure, "")

	read := func() hub.Message {
		_, data, err := conn.Read(ctx)
		require.NoError(t, err)
		var msg hub.Message
		require.NoError(t, json.Unmarshal(data, &msg))
		return msg
	}

	assert.Equal(t, hub.MessageSnapshot, read().Type)

	resp, _ := s.do(t, http.MethodPost, "/v1/journeys", StartJourneyRequest{Plate: "B7566PAA"})
	require.Equal(t, http.StatusCreated, resp.StatusCode)

	msg := read()
	assert.Equal(t, hub.MessageStarted, msg.Type)
	var view hub.ActivityView
	require.NoError(t, json.Unmarshal(msg.Payload, &view))
	assert.Equal(t, "B 7566 PAA", view.DisplayPlate)

	resp, _ = s.do(t, http.MethodDelete, "/v1/journeys/active", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, hub.MessageEnded, read().Type)
}

// Package hub is an in-process live-activity surface. Activities are held in
// memory and every change is fanned out to websocket subscribers.
package hub

import (
	"context"
	"encoding/json"
	"log/slog"
	"sort"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"

	"blink/internal/domain"
	"blink/internal/journey"
	"blink/internal/livestatus"
	"blink/internal/plate"
)

var ErrActivityNotFound = livestatus.ErrActivityNotFound

type Client struct {
	ID     string
	Send   chan []byte
	plates map[string]struct{}
	mu     sync.RWMutex
}

func NewClient(id string, bufferSize int) *Client {
	return &Client{
		ID:     id,
		Send:   make(chan []byte, bufferSize),
		plates: make(map[string]struct{}),
	}
}

// Watches reports whether the client wants updates for plateNumber. A client
// with no subscriptions watches every plate.
func (c *Client) Watches(plateNumber string) bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	if len(c.plates) == 0 {
		return true
	}
	_, ok := c.plates[plate.Normalize(plateNumber)]
	return ok
}

func (c *Client) AddPlates(plates []string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	for _, p := range plates {
		if key := plate.Normalize(p); key != "" {
			c.plates[key] = struct{}{}
		}
	}
}

func (c *Client) RemovePlates(plates []string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	for _, p := range plates {
		delete(c.plates, plate.Normalize(p))
	}
}

func (c *Client) Plates() []string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	out := make([]string, 0, len(c.plates))
	for p := range c.plates {
		out = append(out, p)
	}
	sort.Strings(out)
	return out
}

// Message is the envelope written to subscribers.
type Message struct {
	Type    string          `json:"type"`
	Payload json.RawMessage `json:"payload,omitempty"`
}

const (
	MessageSnapshot = "snapshot"
	MessageStarted  = "activity.started"
	MessageUpdated  = "activity.updated"
	MessageEnded    = "activity.ended"
)

// ActivityView is an activity plus the derived display fields clients render.
type ActivityView struct {
	livestatus.Activity
	Progress     float64 `json:"progress"`
	Remaining    string  `json:"remaining"`
	Distance     string  `json:"distance"`
	DisplayPlate string  `json:"displayPlate"`
	Dismiss      string  `json:"dismiss,omitempty"`
}

type SnapshotPayload struct {
	Activities []ActivityView `json:"activities"`
}

type event struct {
	kind string
	view ActivityView
}

type Hub struct {
	mu         sync.RWMutex
	clients    map[*Client]struct{}
	activities map[string]*livestatus.Activity
	authorized atomic.Bool

	register   chan *Client
	unregister chan *Client
	broadcast  chan event

	now    func() time.Time
	logger *slog.Logger
}

func NewHub(logger *slog.Logger) *Hub {
	h := &Hub{
		clients:    make(map[*Client]struct{}),
		activities: make(map[string]*livestatus.Activity),
		register:   make(chan *Client, 16),
		unregister: make(chan *Client, 16),
		broadcast:  make(chan event, 256),
		now:        time.Now,
		logger:     logger.With("component", "hub"),
	}
	h.authorized.Store(true)
	return h
}

func (h *Hub) Run(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			h.closeAllClients()
			return

		case client := <-h.register:
			h.mu.Lock()
			h.clients[client] = struct{}{}
			total := len(h.clients)
			h.mu.Unlock()
			h.logger.Debug("client registered", "client_id", client.ID, "total", total)
			h.SendSnapshot(client)

		case client := <-h.unregister:
			h.removeClient(client)

		case ev := <-h.broadcast:
			h.fanout(ev)
		}
	}
}

func (h *Hub) Register(client *Client) {
	h.register <- client
}

func (h *Hub) Unregister(client *Client) {
	h.unregister <- client
}

func (h *Hub) ClientCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}

// SetAuthorized toggles whether the surface accepts new activities.
func (h *Hub) SetAuthorized(ok bool) {
	h.authorized.Store(ok)
}

func (h *Hub) Authorized(ctx context.Context) bool {
	return h.authorized.Load()
}

func (h *Hub) Create(ctx context.Context, attrs domain.LiveAttributes, state domain.LiveState) (string, error) {
	a := &livestatus.Activity{
		ID:         uuid.New().String(),
		Kind:       livestatus.ActivityKind,
		Attributes: attrs,
		State:      state,
		StartedAt:  h.now(),
	}

	h.mu.Lock()
	h.activities[a.ID] = a
	view := newView(*a)
	h.mu.Unlock()

	h.publish(MessageStarted, view)
	return a.ID, nil
}

func (h *Hub) Update(ctx context.Context, id string, state domain.LiveState) error {
	h.mu.Lock()
	a, ok := h.activities[id]
	if !ok {
		h.mu.Unlock()
		return ErrActivityNotFound
	}
	a.State = state
	view := newView(*a)
	h.mu.Unlock()

	h.publish(MessageUpdated, view)
	return nil
}

func (h *Hub) End(ctx context.Context, id string, final domain.LiveState, policy livestatus.DismissPolicy) error {
	h.mu.Lock()
	a, ok := h.activities[id]
	if !ok {
		h.mu.Unlock()
		return ErrActivityNotFound
	}
	delete(h.activities, id)
	a.State = final
	view := newView(*a)
	h.mu.Unlock()

	view.Dismiss = "default"
	if policy == livestatus.DismissImmediate {
		view.Dismiss = "immediate"
	}
	h.publish(MessageEnded, view)
	return nil
}

// Active lists activities oldest first.
func (h *Hub) Active(ctx context.Context) ([]livestatus.Activity, error) {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return h.activeLocked(), nil
}

func (h *Hub) ActivityCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.activities)
}

func (h *Hub) activeLocked() []livestatus.Activity {
	out := make([]livestatus.Activity, 0, len(h.activities))
	for _, a := range h.activities {
		out = append(out, *a)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].StartedAt.Equal(out[j].StartedAt) {
			return out[i].ID < out[j].ID
		}
		return out[i].StartedAt.Before(out[j].StartedAt)
	})
	return out
}

// SendSnapshot queues every activity the client watches.
func (h *Hub) SendSnapshot(client *Client) {
	h.mu.RLock()
	active := h.activeLocked()
	h.mu.RUnlock()

	views := make([]ActivityView, 0, len(active))
	for _, a := range active {
		if client.Watches(a.Attributes.BusPlateNumber) {
			views = append(views, newView(a))
		}
	}

	data, err := encode(MessageSnapshot, SnapshotPayload{Activities: views})
	if err != nil {
		return
	}
	select {
	case client.Send <- data:
	default:
		h.logger.Debug("failed to send snapshot, buffer full", "client_id", client.ID)
	}
}

func (h *Hub) publish(kind string, view ActivityView) {
	select {
	case h.broadcast <- event{kind: kind, view: view}:
	default:
		h.logger.Warn("broadcast channel full, dropping event", "type", kind, "activity_id", view.ID)
	}
}

func (h *Hub) fanout(ev event) {
	data, err := encode(ev.kind, ev.view)
	if err != nil {
		h.logger.Error("failed to encode event", "type", ev.kind, "error", err)
		return
	}

	h.mu.RLock()
	defer h.mu.RUnlock()

	for client := range h.clients {
		if !client.Watches(ev.view.Attributes.BusPlateNumber) {
			continue
		}
		select {
		case client.Send <- data:
		default:
			h.logger.Debug("client send buffer full", "client_id", client.ID)
		}
	}
}

func (h *Hub) removeClient(client *Client) {
	h.mu.Lock()
	defer h.mu.Unlock()

	if _, ok := h.clients[client]; !ok {
		return
	}
	delete(h.clients, client)
	close(client.Send)
	h.logger.Debug("client unregistered", "client_id", client.ID, "total", len(h.clients))
}

func (h *Hub) closeAllClients() {
	h.mu.Lock()
	defer h.mu.Unlock()

	for client := range h.clients {
		close(client.Send)
	}
	h.clients = make(map[*Client]struct{})
}

func newView(a livestatus.Activity) ActivityView {
	return ActivityView{
		Activity:     a,
		Progress:     a.State.Progress(a.Attributes.TotalDistanceKm),
		Remaining:    journey.FormatMinutes(a.State.EstimatedTimeRemaining),
		Distance:     journey.FormatDistance(a.State.DistanceRemainingKm),
		DisplayPlate: plate.FormatForDisplay(a.Attributes.BusPlateNumber),
	}
}

func encode(kind string, payload any) ([]byte, error) {
	raw, err := json.Marshal(payload)
	if err != nil {
		return nil, err
	}
	return json.Marshal(Message{Type: kind, Payload: raw})
}

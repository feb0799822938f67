package handler

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"time"

	"github.com/coder/websocket"
	"github.com/google/uuid"

	"blink/internal/hub"
)

// LiveHandler streams live-activity changes to websocket clients. A client
// receives a snapshot on connect and may narrow the feed to plates.
type LiveHandler struct {
	hub    *hub.Hub
	logger *slog.Logger
}

func NewLiveHandler(h *hub.Hub, logger *slog.Logger) *LiveHandler {
	return &LiveHandler{hub: h, logger: logger.With("component", "live_ws")}
}

type WSMessage struct {
	Type    string          `json:"type"`
	Payload json.RawMessage `json:"payload,omitempty"`
}

type PlatesPayload struct {
	Plates []string `json:"plates"`
}

type PongMessage struct {
	Type string `json:"type"`
}

func (h *LiveHandler) ServeWS(w http.ResponseWriter, r *http.Request) {
	conn, err := websocket.Accept(w, r, &websocket.AcceptOptions{
		OriginPatterns: []string{"*"},
	})
	if err != nil {
		h.logger.Error("websocket accept failed", "error", err)
		return
	}

	client := hub.NewClient(uuid.New().String(), 64)
	if p := r.URL.Query().Get("plate"); p != "" {
		client.AddPlates([]string{p})
	}

	ServerStats.IncWSConnections()
	defer ServerStats.DecWSConnections()

	h.hub.Register(client)

	ctx, cancel := context.WithCancel(r.Context())
	defer cancel()

	go h.writeLoop(ctx, conn, client)

	h.readLoop(ctx, conn, client)
}

func (h *LiveHandler) readLoop(ctx context.Context, conn *websocket.Conn, client *hub.Client) {
	defer func() {
		h.hub.Unregister(client)
		conn.Close(websocket.StatusNormalClosure, "")
	}()

	for {
		msgType, data, err := conn.Read(ctx)
		if err != nil {
			if websocket.CloseStatus(err) != websocket.StatusNormalClosure {
				h.logger.Debug("websocket read error", "client_id", client.ID, "error", err)
			}
			return
		}
		ServerStats.IncWSMessagesIn()

		if msgType != websocket.MessageText {
			continue
		}

		var msg WSMessage
		if err := json.Unmarshal(data, &msg); err != nil {
			h.logger.Debug("invalid message format", "client_id", client.ID, "error", err)
			continue
		}

		switch msg.Type {
		case "subscribe", "unsubscribe":
			var payload PlatesPayload
			if err := json.Unmarshal(msg.Payload, &payload); err != nil || len(payload.Plates) == 0 {
				continue
			}
			if msg.Type == "subscribe" {
				client.AddPlates(payload.Plates)
			} else {
				client.RemovePlates(payload.Plates)
			}
			h.hub.SendSnapshot(client)

		case hub.MessageSnapshot:
			h.hub.SendSnapshot(client)

		case "ping":
			h.sendPong(client)
		}
	}
}

func (h *LiveHandler) writeLoop(ctx context.Context, conn *websocket.Conn, client *hub.Client) {
	ticker := time.NewTicker(30 * time.Second)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return

		case msg, ok := <-client.Send:
			if !ok {
				return
			}
			writeCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
			err := conn.Write(writeCtx, websocket.MessageText, msg)
			cancel()
			if err != nil {
				return
			}
			ServerStats.IncWSMessagesOut()

		case <-ticker.C:
			pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
			err := conn.Ping(pingCtx)
			cancel()
			if err != nil {
				return
			}
		}
	}
}

func (h *LiveHandler) sendPong(client *hub.Client) {
	data, err := json.Marshal(PongMessage{Type: "pong"})
	if err != nil {
		return
	}
	select {
	case client.Send <- data:
	default:
	}
}

package handlers

import (
	"context"
	"encoding/json"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/partyquiz/server/internal/models"
	"github.com/partyquiz/server/internal/observability"
	"github.com/partyquiz/server/internal/services"
)

const (
	writeWait      = 10 * time.Second
	pongWait       = 60 * time.Second
	pingPeriod     = 30 * time.Second
	maxMessageSize = 8 * 1024 * 1024 // team photos ride the join message
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin: func(r *http.Request) bool {
		// Player phones connect from arbitrary LAN origins.
		return true
	},
}

// wsConn adapts a gorilla connection to the registry's Sender. Writes are
// serialized under a mutex so keepalive pings and relay sends share one
// ordered stream.
type wsConn struct {
	mu   sync.Mutex
	conn *websocket.Conn
}

func (c *wsConn) Send(data []byte) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.conn.SetWriteDeadline(time.Now().Add(writeWait))
	return c.conn.WriteMessage(websocket.TextMessage, data)
}

func (c *wsConn) ping() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.conn.SetWriteDeadline(time.Now().Add(writeWait))
	return c.conn.WriteMessage(websocket.PingMessage, nil)
}

// WebSocketHandler owns the player-facing transport endpoint
type WebSocketHandler struct {
	registry  *services.ConnectionRegistry
	lifecycle *services.LifecycleService
	answers   *services.AnswerBuffer
	metrics   *observability.RelayMetrics // nil in tests
	logger    *observability.Logger
}

// NewWebSocketHandler creates a new WebSocketHandler. metrics may be nil.
func NewWebSocketHandler(registry *services.ConnectionRegistry, lifecycle *services.LifecycleService, answers *services.AnswerBuffer, metrics *observability.RelayMetrics) *WebSocketHandler {
	return &WebSocketHandler{
		registry:  registry,
		lifecycle: lifecycle,
		answers:   answers,
		metrics:   metrics,
		logger:    observability.WithField("component", "ws_handler"),
	}
}

// HandleConnection upgrades HTTP to WebSocket and runs the read loop until
// the device goes away. The connection is admitted anonymously; the first
// PLAYER_JOIN binds it to a device identity.
func (h *WebSocketHandler) HandleConnection(w http.ResponseWriter, r *http.Request) {
	raw, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.logger.Warnf("websocket upgrade failed: %v", err)
		return
	}

	sender := &wsConn{conn: raw}
	conn := h.registry.Register(sender)
	if h.metrics != nil {
		h.metrics.ConnectionOpened(r.Context())
	}

	done := make(chan struct{})
	go h.keepalive(sender, done)

	defer func() {
		close(done)
		h.registry.Unregister(conn.ID)
		raw.Close()
		if h.metrics != nil {
			h.metrics.ConnectionClosed(context.Background())
		}
	}()

	raw.SetReadLimit(maxMessageSize)
	raw.SetReadDeadline(time.Now().Add(pongWait))
	raw.SetPongHandler(func(string) error {
		raw.SetReadDeadline(time.Now().Add(pongWait))
		return nil
	})

	for {
		messageType, data, err := raw.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure, websocket.CloseNormalClosure) {
				h.logger.WithField("connection_id", conn.ID).Warnf("websocket read error: %v", err)
			}
			return
		}
		if messageType != websocket.TextMessage {
			continue
		}
		h.handleMessage(conn.ID, data)
	}
}

func (h *WebSocketHandler) keepalive(sender *wsConn, done <-chan struct{}) {
	ticker := time.NewTicker(pingPeriod)
	defer ticker.Stop()
	for {
		select {
		case <-done:
			return
		case <-ticker.C:
			if err := sender.ping(); err != nil {
				return
			}
		}
	}
}

// handleMessage dispatches one inbound envelope. A malformed message is
// dropped and logged; the connection stays open.
func (h *WebSocketHandler) handleMessage(connectionID string, data []byte) {
	var msg models.InboundMessage
	if err := json.Unmarshal(data, &msg); err != nil {
		h.logger.WithField("connection_id", connectionID).Warnf("malformed message dropped: %v", err)
		return
	}

	switch msg.Type {
	case models.EventPlayerJoin:
		if msg.DeviceID == "" || msg.TeamName == "" {
			h.logger.WithField("connection_id", connectionID).Warn("join missing deviceId or teamName, dropped")
			return
		}
		h.lifecycle.OnJoin(connectionID, msg)

	case models.EventPlayerAnswer:
		deviceID := h.boundDevice(connectionID, msg.DeviceID)
		if deviceID == "" {
			h.logger.WithField("connection_id", connectionID).Warn("answer from unjoined connection, dropped")
			return
		}
		h.answers.Record(deviceID, msg.TeamName, msg.Answer)
		if h.metrics != nil {
			h.metrics.RecordAnswer(context.Background())
		}

	case models.EventTeamPhotoUpdate:
		if msg.PhotoData == "" {
			h.logger.WithField("connection_id", connectionID).Warn("photo update without photoData, dropped")
			return
		}
		h.lifecycle.OnPhotoUpdate(connectionID, msg)

	default:
		h.logger.WithField("connection_id", connectionID).Warnf("unknown message type %q dropped", msg.Type)
	}
}

// boundDevice trusts the registry binding over the client-supplied id
func (h *WebSocketHandler) boundDevice(connectionID, claimed string) models.DeviceID {
	if conn := h.registry.Get(connectionID); conn != nil && conn.DeviceID != "" {
		return conn.DeviceID
	}
	return models.DeviceID(claimed)
}

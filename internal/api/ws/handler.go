package ws

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"github.com/charlie-sans/netprop/internal/infrastructure/logging"
)

// EchoPrefix precedes every echoed message.
const EchoPrefix = "Server received: "

const (
	writeWait      = 10 * time.Second
	pongWait       = 60 * time.Second
	pingPeriod     = (pongWait * 9) / 10
	maxMessageSize = 64 * 1024
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin: func(r *http.Request) bool {
		return true // Origin policy is enforced by the CORS middleware
	},
}

// Handler manages WebSocket connections
type Handler struct {
	hub    *Hub
	logger *logging.Logger
}

// NewHandler creates a new WebSocket handler
func NewHandler(hub *Hub, logger *logging.Logger) *Handler {
	if logger == nil {
		logger = logging.NewNop()
	}
	return &Handler{
		hub:    hub,
		logger: logger.Named("ws"),
	}
}

// HandleConnection upgrades the request and serves the peer until it
// disconnects or the hub stops.
func (h *Handler) HandleConnection(c *gin.Context) {
	conn, err := upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		h.logger.Warn("WebSocket upgrade failed", zap.Error(err))
		return
	}

	peer := newPeer()
	if !h.hub.join(peer) {
		_ = conn.WriteControl(websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseGoingAway, "server shutting down"),
			time.Now().Add(writeWait))
		conn.Close()
		return
	}

	go h.writePump(conn, peer)
	h.readPump(conn, peer)
}

// readPump echoes every text message back to its sender.
func (h *Handler) readPump(conn *websocket.Conn, peer *Peer) {
	defer func() {
		h.hub.leave(peer)
		conn.Close()
	}()

	conn.SetReadLimit(maxMessageSize)
	_ = conn.SetReadDeadline(time.Now().Add(pongWait))
	conn.SetPongHandler(func(string) error {
		return conn.SetReadDeadline(time.Now().Add(pongWait))
	})

	for {
		msgType, data, err := conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure, websocket.CloseAbnormalClosure) {
				h.logger.Warn("WebSocket read error", zap.String("peer", peer.ID), zap.Error(err))
			}
			return
		}
		if msgType != websocket.TextMessage {
			continue
		}

		if m := h.hub.metrics; m != nil {
			m.RecordWSMessage("in")
		}
		h.logger.Debug("Message received", zap.String("peer", peer.ID), zap.Int("bytes", len(data)))

		if !peer.enqueue([]byte(EchoPrefix + string(data))) {
			h.logger.Warn("Echo dropped", zap.String("peer", peer.ID))
			continue
		}
		if m := h.hub.metrics; m != nil {
			m.RecordWSMessage("out")
		}
	}
}

// writePump is the connection's only writer.
func (h *Handler) writePump(conn *websocket.Conn, peer *Peer) {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		conn.Close()
	}()

	for {
		select {
		case message, ok := <-peer.send:
			_ = conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				_ = conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := conn.WriteMessage(websocket.TextMessage, message); err != nil {
				return
			}

		case <-ticker.C:
			_ = conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

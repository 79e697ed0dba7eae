package stream

import (
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/gorilla/websocket"

	"github.com/angeloszaimis/webguard/internal/broadcast"
)

const (
	writeWait      = 5 * time.Second
	pongWait       = 60 * time.Second
	pingPeriod     = (pongWait * 9) / 10
	maxMessageSize = 512
)

// WebSocketHandler upgrades viewers to a WebSocket and pushes one JSON text
// frame per observation.
type WebSocketHandler struct {
	broadcaster *broadcast.Broadcaster
	queueSize   int
	logger      *slog.Logger
	upgrader    websocket.Upgrader
}

func NewWebSocketHandler(b *broadcast.Broadcaster, queueSize int, logger *slog.Logger) *WebSocketHandler {
	return &WebSocketHandler{
		broadcaster: b,
		queueSize:   queueSize,
		logger:      logger,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin:     sameOrigin,
		},
	}
}

func (h *WebSocketHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.logger.Debug("WebSocket upgrade failed",
			slog.String("from", r.RemoteAddr),
			slog.Any("err", err))
		return
	}

	observer := broadcast.NewQueueObserver(h.queueSize)
	h.broadcaster.Register(observer)

	h.logger.Info("Viewer connected",
		slog.String("transport", "websocket"),
		slog.String("observer", observer.ID()),
		slog.String("from", r.RemoteAddr))

	defer func() {
		h.broadcaster.Deregister(observer)
		_ = observer.Close()
		_ = conn.Close()

		h.logger.Info("Viewer disconnected",
			slog.String("transport", "websocket"),
			slog.String("observer", observer.ID()))
	}()

	go h.readPump(conn, observer)
	h.writePump(conn, observer)
}

// readPump discards client frames and detects disconnects.
func (h *WebSocketHandler) readPump(conn *websocket.Conn, observer *broadcast.QueueObserver) {
	defer func() {
		h.broadcaster.Deregister(observer)
		_ = observer.Close()
	}()

	conn.SetReadLimit(maxMessageSize)
	_ = conn.SetReadDeadline(time.Now().Add(pongWait))
	conn.SetPongHandler(func(string) error {
		return conn.SetReadDeadline(time.Now().Add(pongWait))
	})

	for {
		if _, _, err := conn.ReadMessage(); err != nil {
			return
		}
	}
}

func (h *WebSocketHandler) writePump(conn *websocket.Conn, observer *broadcast.QueueObserver) {
	ticker := time.NewTicker(pingPeriod)
	defer ticker.Stop()

	for {
		select {
		case obs := <-observer.Updates():
			_ = conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := conn.WriteJSON(obs); err != nil {
				h.logger.Debug("WebSocket write failed",
					slog.String("observer", observer.ID()),
					slog.Any("err", err))
				return
			}

		case <-ticker.C:
			_ = conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}

		case <-observer.Done():
			_ = conn.WriteControl(websocket.CloseMessage,
				websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""),
				time.Now().Add(writeWait))
			return
		}
	}
}

func sameOrigin(r *http.Request) bool {
	origin := r.Header.Get("Origin")
	if origin == "" {
		return true
	}
	u, err := url.Parse(origin)
	if err != nil {
		return false
	}
	host := strings.ToLower(strings.TrimSpace(r.Host))
	originHost := strings.ToLower(strings.TrimSpace(u.Host))
	return host == originHost
}

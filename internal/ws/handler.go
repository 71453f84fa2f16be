package ws

import (
	"net/http"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"
)

var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool { return true },
}

// Handler upgrades connections and subscribes them to the feed. The feed is
// one-way: client messages are drained and discarded.
type Handler struct {
	feed   *Feed
	logger *zap.Logger
}

func NewHandler(feed *Feed, logger *zap.Logger) *Handler {
	return &Handler{feed: feed, logger: logger}
}

func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.logger.Warn("WebSocket upgrade error", zap.Error(err))
		return
	}

	sub := h.feed.subscribe()
	go writeFrames(conn, sub)
	h.drain(conn, sub)
}

// writeFrames copies feed frames to the socket until the subscription closes
// or a write fails.
func writeFrames(conn *websocket.Conn, sub *subscriber) {
	defer conn.Close()
	for msg := range sub.send {
		if err := conn.WriteMessage(websocket.TextMessage, msg); err != nil {
			return
		}
	}
}

func (h *Handler) drain(conn *websocket.Conn, sub *subscriber) {
	defer func() {
		h.feed.unsubscribe(sub)
		conn.Close()
	}()
	for {
		if _, _, err := conn.ReadMessage(); err != nil {
			return
		}
	}
}

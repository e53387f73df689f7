package httpapi

import (
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/custodia-labs/ragline/internal/core/domain"
	"github.com/custodia-labs/ragline/internal/core/ports/driven"
	"github.com/custodia-labs/ragline/internal/logger"
)

// Ensure Hub implements the interface.
var _ driven.StatusPublisher = (*Hub)(nil)

const (
	// clientBuffer is the number of events queued per client before
	// further events for that client are dropped.
	clientBuffer = 64

	writeTimeout = 5 * time.Second
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin: func(_ *http.Request) bool {
		return true
	},
}

// statusMessage is the websocket frame for a status event.
type statusMessage struct {
	Type    string             `json:"type"`
	Payload domain.StatusEvent `json:"payload"`
}

// Hub fans status events out to websocket clients.
// Publish never blocks: slow clients lose events.
type Hub struct {
	mu      sync.RWMutex
	clients map[*websocket.Conn]chan domain.StatusEvent
}

// NewHub creates an empty hub.
func NewHub() *Hub {
	return &Hub{clients: make(map[*websocket.Conn]chan domain.StatusEvent)}
}

// Publish queues the event for every connected client.
func (h *Hub) Publish(event domain.StatusEvent) {
	h.mu.RLock()
	defer h.mu.RUnlock()
	for conn, ch := range h.clients {
		select {
		case ch <- event:
		default:
			logger.Get().Warn().Str("remote", conn.RemoteAddr().String()).
				Str("document", event.DocumentID).Msg("status event dropped for slow client")
		}
	}
}

// Clients returns the number of connected clients.
func (h *Hub) Clients() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}

// ServeHTTP upgrades the request and streams events until the client leaves.
func (h *Hub) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		logger.Get().Error().Err(err).Msg("websocket upgrade failed")
		return
	}

	events := make(chan domain.StatusEvent, clientBuffer)
	h.mu.Lock()
	h.clients[conn] = events
	count := len(h.clients)
	h.mu.Unlock()
	logger.Debug("websocket client connected (total: %d)", count)

	done := make(chan struct{})
	go h.write(conn, events, done)

	// Reads only detect disconnects.
	for {
		if _, _, err := conn.ReadMessage(); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				logger.Warn("websocket error: %v", err)
			}
			break
		}
	}

	h.mu.Lock()
	delete(h.clients, conn)
	count = len(h.clients)
	h.mu.Unlock()
	close(done)
	conn.Close()
	logger.Debug("websocket client disconnected (remaining: %d)", count)
}

func (h *Hub) write(conn *websocket.Conn, events <-chan domain.StatusEvent, done <-chan struct{}) {
	for {
		select {
		case <-done:
			return
		case event := <-events:
			conn.SetWriteDeadline(time.Now().Add(writeTimeout)) //nolint:errcheck
			if err := conn.WriteJSON(statusMessage{Type: "status", Payload: event}); err != nil {
				logger.Warn("websocket write: %v", err)
				return
			}
		}
	}
}

// Close disconnects every client.
func (h *Hub) Close() {
	h.mu.Lock()
	defer h.mu.Unlock()
	for conn := range h.clients {
		conn.WriteControl(websocket.CloseMessage, //nolint:errcheck
			websocket.FormatCloseMessage(websocket.CloseGoingAway, "server shutting down"),
			time.Now().Add(time.Second))
		conn.Close()
	}
}

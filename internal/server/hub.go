package server

import (
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/norgolith/lith/internal/logfields"
	"github.com/norgolith/lith/internal/metrics"
)

// Message is one server→client live-reload notification.
type Message struct {
	Type    string `json:"type"`
	Message string `json:"message,omitempty"`
}

// ReloadMessage is broadcast after every snapshot swap.
var ReloadMessage = Message{Type: "reload"}

// Hub manages live-reload WebSocket clients. Clients that disconnect are
// dropped without bookkeeping; slow clients are dropped rather than letting
// their buffers block a broadcast.
type Hub struct {
	mu      sync.Mutex
	nextID  int
	clients map[int]*hubClient
	closed  bool
	metrics *metrics.Recorder
}

type hubClient struct {
	id   int
	ch   chan Message
	done chan struct{}
}

var upgrader = websocket.Upgrader{
	// The dev server is same-machine tooling; any origin may connect.
	CheckOrigin: func(*http.Request) bool { return true },
}

func NewHub(rec *metrics.Recorder) *Hub {
	return &Hub{clients: map[int]*hubClient{}, metrics: rec}
}

// ServeHTTP implements the WebSocket endpoint at /__livereload.
func (h *Hub) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	h.mu.Lock()
	if h.closed {
		h.mu.Unlock()
		http.Error(w, "shutting down", http.StatusServiceUnavailable)
		return
	}
	h.mu.Unlock()

	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		slog.Debug("WebSocket upgrade failed", logfields.Error(err))
		return
	}

	client := &hubClient{ch: make(chan Message, 8), done: make(chan struct{})}
	h.mu.Lock()
	client.id = h.nextID
	h.nextID++
	h.clients[client.id] = client
	count := len(h.clients)
	h.mu.Unlock()
	h.metrics.SetLiveReloadClients(count)
	slog.Debug("Live-reload client connected", slog.Int("client", client.id))

	// Reader goroutine: we ignore client messages but need the read loop
	// for close detection.
	go func() {
		defer h.removeClient(client.id)
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}()

	for {
		select {
		case <-client.done:
			deadline := time.Now().Add(time.Second)
			_ = conn.WriteControl(websocket.CloseMessage,
				websocket.FormatCloseMessage(websocket.CloseGoingAway, "server shutting down"), deadline)
			_ = conn.Close()
			return
		case msg := <-client.ch:
			if err := conn.WriteJSON(msg); err != nil {
				slog.Debug("Live-reload write failed", logfields.Error(err))
				h.removeClient(client.id)
				_ = conn.Close()
				return
			}
		}
	}
}

func (h *Hub) removeClient(id int) {
	h.mu.Lock()
	c, ok := h.clients[id]
	if ok {
		delete(h.clients, id)
	}
	count := len(h.clients)
	h.mu.Unlock()
	if ok {
		close(c.done)
		h.metrics.SetLiveReloadClients(count)
	}
}

// Broadcast queues a message for every connected client; clients whose
// buffers are full are dropped.
func (h *Hub) Broadcast(msg Message) {
	h.mu.Lock()
	if h.closed {
		h.mu.Unlock()
		return
	}
	snapshot := make([]*hubClient, 0, len(h.clients))
	for _, c := range h.clients {
		snapshot = append(snapshot, c)
	}
	h.mu.Unlock()

	dropped := 0
	for _, c := range snapshot {
		select {
		case c.ch <- msg:
		default:
			dropped++
			h.removeClient(c.id)
		}
	}
	slog.Debug("Live-reload broadcast",
		slog.String("type", msg.Type), slog.Int("clients", len(snapshot)), slog.Int("dropped", dropped))
}

// Shutdown closes every connection with code 1001 and refuses new ones.
func (h *Hub) Shutdown() {
	h.mu.Lock()
	if h.closed {
		h.mu.Unlock()
		return
	}
	h.closed = true
	clients := h.clients
	h.clients = map[int]*hubClient{}
	h.mu.Unlock()
	for _, c := range clients {
		close(c.done)
	}
	h.metrics.SetLiveReloadClients(0)
}

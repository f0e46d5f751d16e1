// Package push streams leaderboard snapshots to websocket subscribers.
// Each leaderboard window is a topic; a subscriber receives the latest
// snapshot on connect and every snapshot published afterwards.
package push

import (
	"context"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/goccy/go-json"
	"github.com/gorilla/websocket"

	"github.com/okian/turf/internal/domain/model"
	"github.com/okian/turf/internal/domain/types"
	"github.com/okian/turf/pkg/logger"
	"github.com/okian/turf/pkg/metrics"
)

// NotifierName labels this notifier in metrics and logs.
const NotifierName = "websocket"

// MessageTypeLeaderboard tags leaderboard snapshots on the wire.
const MessageTypeLeaderboard = "leaderboard"

// Message is the envelope written to subscribers.
type Message struct {
	Type string            `json:"type"`
	Data types.Leaderboard `json:"data"`
}

// Hub tracks subscribers per window and fans snapshots out to them.
type Hub struct {
	mu       sync.RWMutex
	clients  map[model.Window]map[*Client]struct{}
	latest   map[model.Window][]byte
	closed   bool
	upgrader websocket.Upgrader
	now      func() time.Time
	log      logger.Logger
	sendBuf  int
}

// NewHub creates an empty hub.
func NewHub(opts ...Option) *Hub {
	h := &Hub{
		clients: make(map[model.Window]map[*Client]struct{}),
		latest:  make(map[model.Window][]byte),
		upgrader: websocket.Upgrader{
			ReadBufferSize:   1024,
			WriteBufferSize:  4096,
			HandshakeTimeout: 10 * time.Second,
		},
		now:     time.Now,
		log:     logger.Nop(),
		sendBuf: 16,
	}
	for _, opt := range opts {
		opt(h)
	}
	return h
}

// Name identifies the hub as a leaderboard notifier.
func (h *Hub) Name() string { return NotifierName }

// ServeWS upgrades the request and subscribes the connection to window.
func (h *Hub) ServeWS(w http.ResponseWriter, r *http.Request, window model.Window) error {
	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		return fmt.Errorf("upgrade websocket: %w", err)
	}
	c := newClient(h, conn, window, h.sendBuf)
	if !h.register(c) {
		_ = conn.WriteMessage(websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseGoingAway, "shutting down"))
		_ = conn.Close()
		return nil
	}
	c.start()
	return nil
}

func (h *Hub) register(c *Client) bool {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.closed {
		return false
	}
	if h.clients[c.window] == nil {
		h.clients[c.window] = make(map[*Client]struct{})
	}
	h.clients[c.window][c] = struct{}{}
	if snap, ok := h.latest[c.window]; ok {
		c.send <- snap
	}
	n := len(h.clients[c.window])
	metrics.UpdateConnectedClients(string(c.window), n)
	h.log.Debug(context.Background(), "subscriber connected",
		logger.String("window", string(c.window)), logger.Int("clients", n))
	return true
}

func (h *Hub) unregister(c *Client) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.removeLocked(c)
}

// removeLocked drops c and closes its send channel. Callers hold h.mu.
func (h *Hub) removeLocked(c *Client) {
	subs, ok := h.clients[c.window]
	if !ok {
		return
	}
	if _, ok := subs[c]; !ok {
		return
	}
	delete(subs, c)
	close(c.send)
	if len(subs) == 0 {
		delete(h.clients, c.window)
	}
	metrics.UpdateConnectedClients(string(c.window), len(subs))
}

// Publish sends a snapshot of entries to every subscriber of window and
// keeps it for later subscribers.
func (h *Hub) Publish(ctx context.Context, window model.Window, entries []model.LeaderboardEntry) error {
	return h.Broadcast(ctx, types.Leaderboard{
		Window:      string(window),
		GeneratedAt: h.now().UTC(),
		Entries:     types.FromEntries(entries),
	})
}

// Broadcast fans an already built snapshot out to its window's
// subscribers. Subscribers whose buffer is full are disconnected.
func (h *Hub) Broadcast(ctx context.Context, snap types.Leaderboard) error {
	window := model.Window(snap.Window)
	payload, err := json.Marshal(Message{Type: MessageTypeLeaderboard, Data: snap})
	if err != nil {
		return fmt.Errorf("encode leaderboard: %w", err)
	}

	h.mu.Lock()
	defer h.mu.Unlock()
	if h.closed {
		return nil
	}
	h.latest[window] = payload

	var dropped int
	for c := range h.clients[window] {
		select {
		case c.send <- payload:
		default:
			h.removeLocked(c)
			dropped++
		}
	}
	if dropped > 0 {
		h.log.Warn(ctx, "dropped slow subscribers",
			logger.String("window", string(window)), logger.Int("dropped", dropped))
	}
	return nil
}

// Clients returns the number of subscribers to window.
func (h *Hub) Clients(window model.Window) int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients[window])
}

// Close disconnects every subscriber and rejects new ones.
func (h *Hub) Close() {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.closed {
		return
	}
	h.closed = true
	for _, subs := range h.clients {
		for c := range subs {
			h.removeLocked(c)
		}
	}
	h.log.Info(context.Background(), "websocket hub closed")
}

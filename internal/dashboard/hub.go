package dashboard

import (
	"encoding/json"
	"log"
	"net/http"
	"sort"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/jaakkos/titandash/internal/session"
	"github.com/jaakkos/titandash/internal/view"
)

const (
	defaultFlushInterval = 100 * time.Millisecond
	hubWriteWait         = 5 * time.Second
)

var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool { return true },
}

// Snapshotter returns the whole view model.
type Snapshotter interface {
	Snapshot() (session.Snapshot, error)
}

// Message is what the hub writes to a browser. Type is "state" for a full
// snapshot or "changes" for text updates since the last flush.
type Message struct {
	Type    string            `json:"type"`
	State   *session.Snapshot `json:"state,omitempty"`
	Changes []view.Change     `json:"changes,omitempty"`
}

type wsClient struct {
	conn *websocket.Conn
	mu   sync.Mutex
}

func (c *wsClient) write(data []byte) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	_ = c.conn.SetWriteDeadline(time.Now().Add(hubWriteWait))
	return c.conn.WriteMessage(websocket.TextMessage, data)
}

// Hub streams view model changes to connected browsers. Text changes are
// coalesced per target and flushed on an interval; a structural change (a
// table, the logs or the toasts) sends a fresh snapshot instead.
type Hub struct {
	src      Snapshotter
	logger   *log.Logger
	interval time.Duration

	mu      sync.Mutex
	pending map[string]string
	stale   bool

	clientsMu sync.RWMutex
	clients   map[*websocket.Conn]*wsClient

	done     chan struct{}
	stopOnce sync.Once
	wg       sync.WaitGroup
}

// NewHub creates a hub reading snapshots from src. Call Start to begin
// flushing.
func NewHub(src Snapshotter, logger *log.Logger, interval time.Duration) *Hub {
	if interval <= 0 {
		interval = defaultFlushInterval
	}
	return &Hub{
		src:      src,
		logger:   logger,
		interval: interval,
		pending:  make(map[string]string),
		clients:  make(map[*websocket.Conn]*wsClient),
		done:     make(chan struct{}),
	}
}

// Publish queues a text change. Only the latest text per target is sent.
func (h *Hub) Publish(c view.Change) {
	h.mu.Lock()
	h.pending[c.Target] = c.Text
	h.mu.Unlock()
}

// Invalidate marks the snapshot stale so the next flush sends all of it.
func (h *Hub) Invalidate(string) {
	h.mu.Lock()
	h.stale = true
	h.mu.Unlock()
}

// Start runs the flush loop.
func (h *Hub) Start() {
	h.wg.Add(1)
	go func() {
		defer h.wg.Done()
		ticker := time.NewTicker(h.interval)
		defer ticker.Stop()
		for {
			select {
			case <-h.done:
				return
			case <-ticker.C:
				h.Flush()
			}
		}
	}()
}

// Close stops flushing and disconnects every client.
func (h *Hub) Close() {
	h.stopOnce.Do(func() { close(h.done) })
	h.wg.Wait()

	h.clientsMu.Lock()
	for conn := range h.clients {
		conn.Close()
	}
	h.clients = make(map[*websocket.Conn]*wsClient)
	h.clientsMu.Unlock()
}

// ClientCount returns the number of connected browsers.
func (h *Hub) ClientCount() int {
	h.clientsMu.RLock()
	defer h.clientsMu.RUnlock()
	return len(h.clients)
}

// Flush sends whatever accumulated since the last flush.
func (h *Hub) Flush() {
	h.mu.Lock()
	pending, stale := h.pending, h.stale
	h.pending = make(map[string]string)
	h.stale = false
	h.mu.Unlock()

	if h.ClientCount() == 0 {
		return
	}
	if stale {
		if data, ok := h.stateMessage(); ok {
			h.broadcast(data)
		}
		return
	}
	if len(pending) == 0 {
		return
	}
	changes := make([]view.Change, 0, len(pending))
	for target, text := range pending {
		changes = append(changes, view.Change{Target: target, Text: text})
	}
	sort.Slice(changes, func(i, j int) bool { return changes[i].Target < changes[j].Target })
	data, err := json.Marshal(Message{Type: "changes", Changes: changes})
	if err != nil {
		h.logger.Printf("dashboard: encode changes: %v", err)
		return
	}
	h.broadcast(data)
}

func (h *Hub) stateMessage() ([]byte, bool) {
	snap, err := h.src.Snapshot()
	if err != nil {
		h.logger.Printf("dashboard: snapshot: %v", err)
		return nil, false
	}
	data, err := json.Marshal(Message{Type: "state", State: &snap})
	if err != nil {
		h.logger.Printf("dashboard: encode state: %v", err)
		return nil, false
	}
	return data, true
}

func (h *Hub) broadcast(data []byte) {
	h.clientsMu.RLock()
	clients := make([]*wsClient, 0, len(h.clients))
	for _, c := range h.clients {
		clients = append(clients, c)
	}
	h.clientsMu.RUnlock()

	for _, c := range clients {
		if err := c.write(data); err != nil {
			h.remove(c.conn)
		}
	}
}

func (h *Hub) remove(conn *websocket.Conn) {
	h.clientsMu.Lock()
	delete(h.clients, conn)
	h.clientsMu.Unlock()
	conn.Close()
}

// ServeHTTP upgrades the connection, sends the current state and keeps the
// client registered until it disconnects.
func (h *Hub) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.logger.Printf("dashboard: websocket upgrade failed: %v", err)
		return
	}
	c := &wsClient{conn: conn}

	h.clientsMu.Lock()
	h.clients[conn] = c
	h.clientsMu.Unlock()

	if data, ok := h.stateMessage(); ok {
		if err := c.write(data); err != nil {
			h.remove(conn)
			return
		}
	}

	for {
		if _, _, err := conn.ReadMessage(); err != nil {
			break
		}
	}
	h.remove(conn)
}

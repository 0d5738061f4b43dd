package serve

import (
	"bufio"
	"log/slog"
	"net/http"
	"sync"
	"time"
)

// Reload messages pushed to connected browsers after a rebuild cycle.
const (
	MsgReload     = "reload"
	MsgRefreshCSS = "refresh-css"
)

// LiveReloadHub manages SSE clients for rebuild notifications. Clients get
// no backlog: only events after connect are delivered, and a client that
// stops reading is dropped rather than buffered.
type LiveReloadHub struct {
	mu      sync.RWMutex
	nextID  int
	clients map[int]*lrClient
	closed  bool
}

type lrClient struct {
	id   int
	ch   chan string
	done chan struct{}
}

func NewLiveReloadHub() *LiveReloadHub {
	return &LiveReloadHub{clients: map[int]*lrClient{}}
}

// ServeHTTP implements the SSE endpoint at /novos/live.
func (h *LiveReloadHub) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	h.mu.RLock()
	closed := h.closed
	h.mu.RUnlock()
	if closed {
		http.Error(w, "live reload shutting down", http.StatusServiceUnavailable)
		return
	}

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	flusher, ok := w.(http.Flusher)
	if !ok {
		http.Error(w, "stream unsupported", http.StatusInternalServerError)
		return
	}

	client := &lrClient{ch: make(chan string, 8), done: make(chan struct{})}
	h.mu.Lock()
	client.id = h.nextID
	h.nextID++
	h.clients[client.id] = client
	h.mu.Unlock()

	bw := bufio.NewWriter(w)
	if _, err := bw.WriteString(": connected\n\n"); err != nil {
		slog.Debug("live reload write", "error", err)
		return
	}
	if err := bw.Flush(); err == nil {
		flusher.Flush()
	}

	hb := time.NewTicker(30 * time.Second)
	defer hb.Stop()

	ctx := r.Context()
	for {
		select {
		case <-ctx.Done():
			h.removeClient(client.id)
			return
		case <-client.done:
			h.removeClient(client.id)
			return
		case <-hb.C:
			if _, err := bw.WriteString(": ping\n\n"); err == nil {
				bw.Flush()
				flusher.Flush()
			} else {
				slog.Debug("live reload ping write", "error", err)
			}
		case msg := <-client.ch:
			if _, err := bw.WriteString("data: " + msg + "\n\n"); err == nil {
				bw.Flush()
				flusher.Flush()
			} else {
				slog.Debug("live reload broadcast write", "error", err)
			}
		}
	}
}

func (h *LiveReloadHub) removeClient(id int) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if c, ok := h.clients[id]; ok {
		delete(h.clients, id)
		close(c.done)
	}
}

// Broadcast pushes msg to all connected clients, dropping clients whose
// channel is full.
func (h *LiveReloadHub) Broadcast(msg string) {
	h.mu.Lock()
	if h.closed {
		h.mu.Unlock()
		return
	}
	snapshot := make([]*lrClient, 0, len(h.clients))
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
	slog.Debug("live reload broadcast", "message", msg, "clients", len(snapshot), "dropped", dropped)
}

// ClientCount reports the number of connected clients.
func (h *LiveReloadHub) ClientCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}

// Shutdown closes all clients and rejects future connections.
func (h *LiveReloadHub) Shutdown() {
	h.mu.Lock()
	if h.closed {
		h.mu.Unlock()
		return
	}
	h.closed = true
	clients := h.clients
	h.clients = map[int]*lrClient{}
	h.mu.Unlock()
	for _, c := range clients {
		close(c.done)
	}
}

package server

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"trustreg/internal/registry"

	"nhooyr.io/websocket"
)

const (
	writeWait    = 10 * time.Second
	pingInterval = 30 * time.Second
	sendBufSize  = 16
)

// WatchEvent is pushed to /watch subscribers when a name is committed.
type WatchEvent struct {
	Name    string                 `json:"name"`
	Message registry.UpdateMessage `json:"message"`
}

type nameReader interface {
	GetName(name string) (*registry.UpdateMessage, error)
}

type watcher struct {
	name string
	send chan []byte
}

// Hub fans committed updates out to websocket watchers of the same name.
// Publish only marks a name as changed; Run reads the stored value back, so
// watchers always end on what the registry holds.
type Hub struct {
	reader   nameReader
	watchers map[*watcher]struct{}

	register   chan *watcher
	unregister chan *watcher
	notify     chan struct{}
	done       chan struct{}

	mu    sync.Mutex
	dirty map[string]struct{}

	logger *slog.Logger
}

func NewHub(reader nameReader, logger *slog.Logger) *Hub {
	if logger == nil {
		logger = slog.Default()
	}
	return &Hub{
		reader:     reader,
		watchers:   make(map[*watcher]struct{}),
		register:   make(chan *watcher),
		unregister: make(chan *watcher),
		notify:     make(chan struct{}, 1),
		done:       make(chan struct{}),
		dirty:      make(map[string]struct{}),
		logger:     logger,
	}
}

// Run owns the watcher set until ctx is cancelled. Call this in a goroutine.
func (h *Hub) Run(ctx context.Context) {
	defer func() {
		for w := range h.watchers {
			h.remove(w)
		}
		close(h.done)
	}()

	for {
		select {
		case <-ctx.Done():
			return
		case w := <-h.register:
			h.add(w)
		case w := <-h.unregister:
			h.remove(w)
		case <-h.notify:
			h.flush()
		}
	}
}

// Publish never blocks the caller. Changes to the same name coalesce until
// the next flush.
func (h *Hub) Publish(name string) {
	h.mu.Lock()
	h.dirty[name] = struct{}{}
	h.mu.Unlock()

	select {
	case h.notify <- struct{}{}:
	default:
	}
}

func (h *Hub) add(w *watcher) {
	h.watchers[w] = struct{}{}
	h.logger.Debug("watch: subscribed", "name", w.name, "total", len(h.watchers))
	if data, ok := h.current(w.name); ok {
		h.deliver(w, data)
	}
}

func (h *Hub) remove(w *watcher) {
	if _, ok := h.watchers[w]; !ok {
		return
	}
	delete(h.watchers, w)
	close(w.send)
	h.logger.Debug("watch: unsubscribed", "name", w.name, "total", len(h.watchers))
}

func (h *Hub) flush() {
	h.mu.Lock()
	names := h.dirty
	h.dirty = make(map[string]struct{})
	h.mu.Unlock()

	for name := range names {
		var data []byte
		for w := range h.watchers {
			if w.name != name {
				continue
			}
			if data == nil {
				var ok bool
				if data, ok = h.current(name); !ok {
					break
				}
			}
			h.deliver(w, data)
		}
	}
}

// current returns the encoded stored value of name, if there is one.
func (h *Hub) current(name string) ([]byte, bool) {
	msg, err := h.reader.GetName(name)
	if err != nil {
		h.logger.Error("watch: get name", "name", name, "error", err)
		return nil, false
	}
	if msg == nil {
		return nil, false
	}
	data, err := json.Marshal(WatchEvent{Name: name, Message: *msg})
	if err != nil {
		h.logger.Error("watch: marshal", "error", err)
		return nil, false
	}
	return data, true
}

func (h *Hub) deliver(w *watcher, data []byte) {
	select {
	case w.send <- data:
	default:
		// slow watcher
		h.remove(w)
		h.logger.Warn("watch: dropped slow watcher", "name", w.name)
	}
}

func (h *Hub) subscribe(ctx context.Context, w *watcher) bool {
	select {
	case h.register <- w:
		return true
	case <-h.done:
		return false
	case <-ctx.Done():
		return false
	}
}

func (h *Hub) unsubscribe(w *watcher) {
	select {
	case h.unregister <- w:
	case <-h.done:
	}
}

// Watch streams WatchEvents for one name. The hub sends the current value,
// if any, first.
func (a *API) Watch(w http.ResponseWriter, r *http.Request) {
	name := r.PathValue("name")

	conn, err := websocket.Accept(w, r, &websocket.AcceptOptions{
		InsecureSkipVerify: true,
	})
	if err != nil {
		a.logger().Warn("watch: accept", "error", err)
		return
	}
	defer conn.Close(websocket.StatusInternalError, "")

	wt := &watcher{name: name, send: make(chan []byte, sendBufSize)}
	if !a.Hub.subscribe(r.Context(), wt) {
		conn.Close(websocket.StatusGoingAway, "server shutting down")
		return
	}
	defer a.Hub.unsubscribe(wt)

	// Incoming frames are discarded; ctx ends when the peer goes away.
	ctx := conn.CloseRead(r.Context())

	ticker := time.NewTicker(pingInterval)
	defer ticker.Stop()

	for {
		select {
		case data, ok := <-wt.send:
			if !ok {
				conn.Close(websocket.StatusGoingAway, "")
				return
			}
			if err := writeFrame(ctx, conn, data); err != nil {
				a.logger().Debug("watch: write", "name", name, "error", err)
				return
			}

		case <-ticker.C:
			pctx, cancel := context.WithTimeout(ctx, writeWait)
			err := conn.Ping(pctx)
			cancel()
			if err != nil {
				return
			}

		case <-ctx.Done():
			conn.Close(websocket.StatusNormalClosure, "")
			return
		}
	}
}

func writeFrame(ctx context.Context, conn *websocket.Conn, data []byte) error {
	wctx, cancel := context.WithTimeout(ctx, writeWait)
	defer cancel()
	return conn.Write(wctx, websocket.MessageText, data)
}

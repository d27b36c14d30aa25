package lifecycle

import (
	"context"
	"encoding/json"
	"sync"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"github.com/troikatech/collections-agent/internal/session"
)

const subscriberBuffer = 64

// Socket is the dashboard side of a websocket
type Socket interface {
	ReadMessage() (int, []byte, error)
	WriteMessage(messageType int, data []byte) error
	Close() error
}

type message struct {
	Type       string          `json:"type"`
	Calls      []session.Entry `json:"calls,omitempty"`
	Transition *Transition     `json:"transition,omitempty"`
}

// Hub broadcasts transitions to connected dashboards. Slow subscribers
// lose messages rather than hold up the others.
type Hub struct {
	registry *session.Registry
	logger   *zap.Logger

	mu   sync.RWMutex
	subs map[chan []byte]struct{}
}

func NewHub(registry *session.Registry, logger *zap.Logger) *Hub {
	return &Hub{registry: registry, logger: logger, subs: make(map[chan []byte]struct{})}
}

func (h *Hub) Name() string { return "dashboard" }

// Observe queues t for every subscriber
func (h *Hub) Observe(_ context.Context, t Transition) error {
	b, err := json.Marshal(message{Type: "transition", Transition: &t})
	if err != nil {
		return err
	}
	h.mu.RLock()
	defer h.mu.RUnlock()
	for ch := range h.subs {
		select {
		case ch <- b:
		default:
			h.logger.Debug("Dashboard subscriber lagging, dropping transition", zap.String("call_sid", t.CallID))
		}
	}
	return nil
}

// Subscribers returns the number of connected dashboards
func (h *Hub) Subscribers() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.subs)
}

func (h *Hub) subscribe() chan []byte {
	ch := make(chan []byte, subscriberBuffer)
	h.mu.Lock()
	h.subs[ch] = struct{}{}
	h.mu.Unlock()
	return ch
}

func (h *Hub) unsubscribe(ch chan []byte) {
	h.mu.Lock()
	delete(h.subs, ch)
	h.mu.Unlock()
}

// Serve sends the current call list, then every transition, until the
// dashboard disconnects or ctx ends.
func (h *Hub) Serve(ctx context.Context, ws Socket) {
	ch := h.subscribe()
	defer h.unsubscribe(ch)
	defer ws.Close()

	closed := make(chan struct{})
	go func() {
		defer close(closed)
		for {
			if _, _, err := ws.ReadMessage(); err != nil {
				return
			}
		}
	}()

	snapshot, err := json.Marshal(message{Type: "snapshot", Calls: h.registry.Snapshot()})
	if err == nil {
		if err := ws.WriteMessage(websocket.TextMessage, snapshot); err != nil {
			return
		}
	}

	for {
		select {
		case <-ctx.Done():
			return
		case <-closed:
			return
		case b := <-ch:
			if err := ws.WriteMessage(websocket.TextMessage, b); err != nil {
				h.logger.Debug("Dashboard write failed", zap.Error(err))
				return
			}
		}
	}
}

// Package ws pushes rank change events to WebSocket subscribers.
//
// Clients subscribe to board keys; the hub fans each event out to the
// subscribers of that key. Delivery is best effort: a client whose send
// buffer is full misses the event rather than stalling the hub.
package ws

import (
	"context"
	"encoding/json"
	"sync"
	"time"

	"github.com/podium-gg/podium/internal/domain/model"
	"github.com/podium-gg/podium/pkg/logger"
	"github.com/podium-gg/podium/pkg/metrics"
)

// Message types exchanged with clients.
const (
	MessageTypeRankChange  = "rank_change"
	MessageTypeSubscribe   = "subscribe"
	MessageTypeUnsubscribe = "unsubscribe"
	MessageTypePing        = "ping"
	MessageTypePong        = "pong"
	MessageTypeError       = "error"
)

// Message is the envelope for every frame sent to clients.
type Message struct {
	Type      string    `json:"type"`
	BoardKey  string    `json:"board_key,omitempty"`
	Data      any       `json:"data,omitempty"`
	Timestamp time.Time `json:"timestamp"`
}

type subscriptionRequest struct {
	client   *Client
	boardKey string
}

// Hub tracks connected clients and their board subscriptions.
type Hub struct {
	byBoard map[string]map[*Client]bool
	clients map[*Client]bool

	register    chan *Client
	unregister  chan *Client
	subscribe   chan subscriptionRequest
	unsubscribe chan subscriptionRequest
	broadcast   chan Message

	mu     sync.RWMutex
	log    logger.Logger
	ctx    context.Context
	cancel context.CancelFunc
}

// NewHub creates a hub. Run must be called before serving connections.
func NewHub() *Hub {
	ctx, cancel := context.WithCancel(context.Background())
	return &Hub{
		byBoard:     make(map[string]map[*Client]bool),
		clients:     make(map[*Client]bool),
		register:    make(chan *Client),
		unregister:  make(chan *Client),
		subscribe:   make(chan subscriptionRequest, 64),
		unsubscribe: make(chan subscriptionRequest, 64),
		broadcast:   make(chan Message, 256),
		log:         logger.Get().Named("ws-hub"),
		ctx:         ctx,
		cancel:      cancel,
	}
}

// Run is the hub's main loop. It exits when Stop is called.
func (h *Hub) Run() {
	for {
		select {
		case <-h.ctx.Done():
			return

		case c := <-h.register:
			h.mu.Lock()
			h.clients[c] = true
			n := len(h.clients)
			h.mu.Unlock()
			metrics.UpdateWSConnections(n)

		case c := <-h.unregister:
			h.mu.Lock()
			if _, ok := h.clients[c]; ok {
				delete(h.clients, c)
				for key, subs := range h.byBoard {
					delete(subs, c)
					if len(subs) == 0 {
						delete(h.byBoard, key)
					}
				}
				close(c.send)
			}
			n := len(h.clients)
			h.mu.Unlock()
			metrics.UpdateWSConnections(n)

		case req := <-h.subscribe:
			h.mu.Lock()
			if h.byBoard[req.boardKey] == nil {
				h.byBoard[req.boardKey] = make(map[*Client]bool)
			}
			h.byBoard[req.boardKey][req.client] = true
			h.mu.Unlock()

		case req := <-h.unsubscribe:
			h.mu.Lock()
			if subs, ok := h.byBoard[req.boardKey]; ok {
				delete(subs, req.client)
				if len(subs) == 0 {
					delete(h.byBoard, req.boardKey)
				}
			}
			h.mu.Unlock()

		case msg := <-h.broadcast:
			h.deliver(msg)
		}
	}
}

// Stop terminates the hub loop.
func (h *Hub) Stop() {
	h.cancel()
}

// Notify queues a rank change event for fan-out to subscribers of the
// event's board.
func (h *Hub) Notify(ctx context.Context, ev model.RankChangeEvent) error {
	msg := Message{
		Type:      MessageTypeRankChange,
		BoardKey:  ev.BoardKey,
		Data:      ev,
		Timestamp: ev.At,
	}
	select {
	case h.broadcast <- msg:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	default:
		metrics.RecordWSDropped()
		h.log.Warn(ctx, "broadcast channel full, dropping event",
			logger.String("board", ev.BoardKey),
		)
		return nil
	}
}

func (h *Hub) deliver(msg Message) {
	data, err := json.Marshal(msg)
	if err != nil {
		h.log.Error(h.ctx, "marshaling frame", logger.Error(err))
		return
	}

	h.mu.RLock()
	defer h.mu.RUnlock()

	subs := h.byBoard[msg.BoardKey]
	for c := range subs {
		select {
		case c.send <- data:
		default:
			metrics.RecordWSDropped()
		}
	}
}

// SubscriberCount returns the number of subscribers for a board key.
func (h *Hub) SubscriberCount(boardKey string) int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.byBoard[boardKey])
}

// ConnectionCount returns the total number of connected clients.
func (h *Hub) ConnectionCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}

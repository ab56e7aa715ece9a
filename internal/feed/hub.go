// Package feed pushes completed turns to websocket subscribers of a conversation.
package feed

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/coder/websocket"
	"github.com/coder/websocket/wsjson"
	"github.com/go-chi/chi/v5"

	"github.com/ashureev/skydesk/internal/agent"
)

const (
	subscriberBuffer = 32
	writeTimeout     = 5 * time.Second
)

// Frame is one message on the feed.
type Frame struct {
	Type           string            `json:"type"`
	ConversationID string            `json:"conversation_id,omitempty"`
	Turn           *agent.TurnResult `json:"turn,omitempty"`
}

type subscriber struct {
	frames chan Frame
	done   chan struct{}
	once   sync.Once
}

func (s *subscriber) close() {
	s.once.Do(func() { close(s.done) })
}

// Hub fans completed turns out to websocket subscribers keyed by conversation id.
type Hub struct {
	allowedOrigins []string
	isDev          bool
	logger         *slog.Logger

	mu   sync.RWMutex
	subs map[string]map[*subscriber]struct{}
}

// NewHub creates a hub. Origins follow websocket.AcceptOptions.OriginPatterns.
func NewHub(allowedOrigins []string, isDev bool, logger *slog.Logger) *Hub {
	if logger == nil {
		logger = slog.Default()
	}
	return &Hub{
		allowedOrigins: allowedOrigins,
		isDev:          isDev,
		logger:         logger,
		subs:           make(map[string]map[*subscriber]struct{}),
	}
}

// TurnCompleted implements agent.TurnObserver. Slow subscribers miss frames
// rather than blocking the turn.
func (h *Hub) TurnCompleted(conversationID string, result *agent.TurnResult) {
	frame := Frame{Type: "turn", ConversationID: conversationID, Turn: result}

	h.mu.RLock()
	defer h.mu.RUnlock()
	for s := range h.subs[conversationID] {
		select {
		case s.frames <- frame:
		default:
			h.logger.Warn("Feed subscriber lagging, dropping turn", "conversation_id", conversationID)
		}
	}
}

// Subscribers returns the number of subscribers for a conversation.
func (h *Hub) Subscribers(conversationID string) int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.subs[conversationID])
}

// Close disconnects every subscriber.
func (h *Hub) Close() {
	h.mu.Lock()
	defer h.mu.Unlock()
	for id, set := range h.subs {
		for s := range set {
			s.close()
		}
		delete(h.subs, id)
	}
}

func (h *Hub) register(conversationID string) *subscriber {
	s := &subscriber{frames: make(chan Frame, subscriberBuffer), done: make(chan struct{})}
	h.mu.Lock()
	defer h.mu.Unlock()
	set, ok := h.subs[conversationID]
	if !ok {
		set = make(map[*subscriber]struct{})
		h.subs[conversationID] = set
	}
	set[s] = struct{}{}
	return s
}

func (h *Hub) unregister(conversationID string, s *subscriber) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if set, ok := h.subs[conversationID]; ok {
		delete(set, s)
		if len(set) == 0 {
			delete(h.subs, conversationID)
		}
	}
	s.close()
}

type clientMessage struct {
	Type string `json:"type"`
}

// ServeHTTP upgrades to a websocket subscribed to {conversationID}.
func (h *Hub) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	conversationID := chi.URLParam(r, "conversationID")
	if conversationID == "" {
		http.Error(w, `{"error": "conversation id is required"}`, http.StatusBadRequest)
		return
	}

	opts := &websocket.AcceptOptions{OriginPatterns: h.allowedOrigins}
	if h.isDev {
		opts.InsecureSkipVerify = true
	}
	ws, err := websocket.Accept(w, r, opts)
	if err != nil {
		h.logger.Warn("Failed to accept feed websocket", "conversation_id", conversationID, "error", err)
		return
	}
	defer func() {
		if closeErr := ws.Close(websocket.StatusNormalClosure, "feed closed"); closeErr != nil {
			h.logger.Debug("Failed to close feed websocket", "error", closeErr)
		}
	}()

	s := h.register(conversationID)
	defer h.unregister(conversationID, s)
	h.logger.Info("Feed subscriber connected", "conversation_id", conversationID)

	ctx, cancel := context.WithCancel(r.Context())
	defer cancel()

	control := make(chan Frame, 1)
	go func() {
		defer cancel()
		h.readLoop(ctx, ws, control)
	}()

	if err := h.write(ctx, ws, Frame{Type: "subscribed", ConversationID: conversationID}); err != nil {
		return
	}
	for {
		select {
		case <-ctx.Done():
			return
		case <-s.done:
			return
		case f := <-control:
			if err := h.write(ctx, ws, f); err != nil {
				return
			}
		case f := <-s.frames:
			if err := h.write(ctx, ws, f); err != nil {
				return
			}
		}
	}
}

func (h *Hub) readLoop(ctx context.Context, ws *websocket.Conn, control chan<- Frame) {
	for {
		_, data, err := ws.Read(ctx)
		if err != nil {
			if websocket.CloseStatus(err) == -1 && ctx.Err() == nil {
				h.logger.Debug("Feed read error", "error", err)
			}
			return
		}
		var msg clientMessage
		if err := json.Unmarshal(data, &msg); err != nil {
			continue
		}
		if msg.Type == "ping" {
			select {
			case control <- Frame{Type: "pong"}:
			default:
			}
		}
	}
}

func (h *Hub) write(ctx context.Context, ws *websocket.Conn, f Frame) error {
	ctx, cancel := context.WithTimeout(ctx, writeTimeout)
	defer cancel()
	if err := wsjson.Write(ctx, ws, f); err != nil {
		h.logger.Debug("Feed write failed", "type", f.Type, "error", err)
		return err
	}
	return nil
}

var _ agent.TurnObserver = (*Hub)(nil)

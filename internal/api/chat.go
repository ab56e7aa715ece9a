package api

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/ashureev/skydesk/internal/agent"
	"github.com/ashureev/skydesk/internal/identity"
	"github.com/ashureev/skydesk/internal/specialist"
	"github.com/ashureev/skydesk/internal/store"
)

const defaultMaxRequestBodySize = 64 * 1024

// TurnRunner executes conversation turns.
type TurnRunner interface {
	HandleTurn(ctx context.Context, req agent.TurnRequest) (*agent.TurnResult, error)
}

// ReadinessCheck reports whether a dependency can serve traffic.
type ReadinessCheck func(ctx context.Context) error

// ChatRequest is the body of POST /chat. registration_id is accepted as an
// alias of identity_token.
type ChatRequest struct {
	ConversationID string `json:"conversation_id,omitempty"`
	Message        string `json:"message"`
	IdentityToken  string `json:"identity_token,omitempty"`
	RegistrationID string `json:"registration_id,omitempty"`
}

// ChatHandler serves the conversation endpoints.
type ChatHandler struct {
	turns       TurnRunner
	registry    *specialist.Registry
	lookups     store.LookupRepository
	limiter     *RateLimiter
	maxBodySize int64
	readiness   map[string]ReadinessCheck
	logger      *slog.Logger
}

// ChatHandlerConfig configures a ChatHandler.
type ChatHandlerConfig struct {
	MaxBodySize int64
	Limiter     *RateLimiter
	Readiness   map[string]ReadinessCheck
	Logger      *slog.Logger
}

// NewChatHandler creates the conversation handler.
func NewChatHandler(turns TurnRunner, registry *specialist.Registry, lookups store.LookupRepository, cfg ChatHandlerConfig) *ChatHandler {
	if cfg.MaxBodySize <= 0 {
		cfg.MaxBodySize = defaultMaxRequestBodySize
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	return &ChatHandler{
		turns:       turns,
		registry:    registry,
		lookups:     lookups,
		limiter:     cfg.Limiter,
		maxBodySize: cfg.MaxBodySize,
		readiness:   cfg.Readiness,
		logger:      cfg.Logger,
	}
}

// RegisterRoutes registers conversation routes.
func (h *ChatHandler) RegisterRoutes(r chi.Router) {
	r.Post("/chat", h.HandleChat)
	r.Get("/specialists", h.ListSpecialists)
	r.Get("/user/{registrationID}", h.GetUser)
	r.Get("/health/ready", h.Ready)
}

// HandleChat handles POST /chat.
func (h *ChatHandler) HandleChat(w http.ResponseWriter, r *http.Request) {
	// Rate-limit by client IP so rotating conversation ids does not bypass throttling.
	if h.limiter != nil && !h.limiter.Allow(identity.IPFromRequest(r)) {
		Error(w, http.StatusTooManyRequests, "rate limit exceeded")
		return
	}

	r.Body = http.MaxBytesReader(w, r.Body, h.maxBodySize)
	var req ChatRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			Error(w, http.StatusRequestEntityTooLarge, "request body too large")
			return
		}
		Error(w, http.StatusBadRequest, "invalid request body")
		return
	}

	token := req.IdentityToken
	if token == "" {
		token = req.RegistrationID
	}

	result, err := h.turns.HandleTurn(r.Context(), agent.TurnRequest{
		ConversationID: req.ConversationID,
		Message:        req.Message,
		IdentityToken:  token,
	})
	switch {
	case err == nil:
		JSON(w, http.StatusOK, result)
	case errors.Is(err, agent.ErrEmptyMessage):
		Error(w, http.StatusBadRequest, "message is required")
	case errors.Is(err, agent.ErrTurnInProgress):
		Error(w, http.StatusConflict, "a turn is already in progress for this conversation")
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		h.logger.Debug("Client went away before the turn started", "conversation_id", req.ConversationID)
		Error(w, http.StatusRequestTimeout, "request cancelled")
	default:
		// Orchestrator already logged the cause.
		Error(w, http.StatusInternalServerError, agent.GenericErrorMessage)
	}
}

// ListSpecialists handles GET /specialists.
func (h *ChatHandler) ListSpecialists(w http.ResponseWriter, _ *http.Request) {
	JSON(w, http.StatusOK, map[string]any{"specialists": h.registry.Summaries()})
}

// GetUser handles GET /user/{registrationID}.
func (h *ChatHandler) GetUser(w http.ResponseWriter, r *http.Request) {
	id, err := identity.NormalizeToken(chi.URLParam(r, "registrationID"))
	if err != nil {
		Error(w, http.StatusBadRequest, "invalid registration id")
		return
	}

	profile, err := h.lookups.GetUserProfile(r.Context(), id)
	if err != nil {
		h.logger.Error("Failed to load user profile", "registration_id", id, "error", err)
		Error(w, http.StatusInternalServerError, "failed to load user")
		return
	}
	if profile == nil {
		Error(w, http.StatusNotFound, "user not found")
		return
	}
	JSON(w, http.StatusOK, profile)
}

// Ready handles GET /health/ready.
func (h *ChatHandler) Ready(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
	defer cancel()

	status := map[string]string{}
	ready := true
	for name, check := range h.readiness {
		if err := check(ctx); err != nil {
			h.logger.Warn("Readiness check failed", "check", name, "error", err)
			status[name] = "unavailable"
			ready = false
			continue
		}
		status[name] = "ok"
	}

	if !ready {
		JSON(w, http.StatusServiceUnavailable, map[string]any{"status": "unavailable", "checks": status})
		return
	}
	JSON(w, http.StatusOK, map[string]any{"status": "ok", "checks": status})
}

package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/google/uuid"

	"github.com/MikeSquared-Agency/resonance/internal/extractor"
	"github.com/MikeSquared-Agency/resonance/internal/fetch"
	"github.com/MikeSquared-Agency/resonance/internal/processor"
	"github.com/MikeSquared-Agency/resonance/internal/store"
)

const (
	defaultTopicLimit = 20
	maxTopicLimit     = 200
	maxRequestBytes   = 32 << 20
)

// ConversationReader loads stored conversations.
type ConversationReader interface {
	GetConversation(ctx context.Context, id uuid.UUID) (*store.ConversationRecord, error)
	ConversationsByTopic(ctx context.Context, topic string, limit int) ([]uuid.UUID, error)
}

// Pinger is implemented by stores that can report reachability.
type Pinger interface {
	Ping(ctx context.Context) error
}

type Server struct {
	router *chi.Mux
	port   int
	proc   *processor.Processor
	db     ConversationReader
	bus    interface{ Connected() bool }
	logger *slog.Logger
}

// NewServer wires the HTTP routes. db may be nil when persistence is
// disabled; the conversation routes then answer 503.
func NewServer(port int, apiToken string, proc *processor.Processor, db ConversationReader, logger *slog.Logger) *Server {
	router := chi.NewRouter()
	router.Use(middleware.Logger)
	router.Use(middleware.Recoverer)

	s := &Server{
		router: router,
		port:   port,
		proc:   proc,
		db:     db,
		logger: logger,
	}

	router.Get("/health", s.health)
	router.Get("/api/v1/resonance/status", s.status)

	router.Group(func(r chi.Router) {
		r.Use(BearerAuthMiddleware(apiToken))
		r.Post("/api/v1/extract", s.extract)
		r.Get("/api/v1/conversations", s.listConversations)
		r.Get("/api/v1/conversations/{id}", s.getConversation)
	})

	return s
}

func (s *Server) Start() error {
	addr := fmt.Sprintf(":%d", s.port)
	s.logger.Info("API server starting", "addr", addr)
	return http.ListenAndServe(addr, s.router)
}

// SetEventBus makes the status route report the bus connection.
func (s *Server) SetEventBus(bus interface{ Connected() bool }) {
	s.bus = bus
}

// Handler exposes the router, mainly for tests and embedding.
func (s *Server) Handler() http.Handler {
	return s.router
}

func (s *Server) health(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) status(w http.ResponseWriter, r *http.Request) {
	body := map[string]any{
		"agent":       "resonance",
		"status":      "ok",
		"persistence": s.db != nil,
		"stats":       s.proc.Stats(),
	}
	if p, ok := s.db.(Pinger); ok {
		if err := p.Ping(r.Context()); err != nil {
			s.logger.Warn("database ping failed", "error", err)
			body["status"] = "degraded"
			body["database"] = "unreachable"
		} else {
			body["database"] = "ok"
		}
	}
	if s.bus != nil {
		body["event_bus"] = s.bus.Connected()
		if !s.bus.Connected() {
			body["status"] = "degraded"
		}
	}
	writeJSON(w, http.StatusOK, body)
}

// extractRequest is the POST /api/v1/extract body. Format "transcript"
// additionally renders the recovered turns as labeled text.
type extractRequest struct {
	processor.Request
	Format string `json:"format,omitempty"`
}

type extractResponse struct {
	*processor.Outcome
	Transcript string `json:"transcript,omitempty"`
}

func (s *Server) extract(w http.ResponseWriter, r *http.Request) {
	var req extractRequest
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxRequestBytes)).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, fmt.Sprintf("invalid JSON: %v", err))
		return
	}

	out, err := s.proc.Process(r.Context(), req.Request)
	if err != nil {
		writeError(w, statusFor(err), err.Error())
		return
	}

	resp := extractResponse{Outcome: out}
	if req.Format == "transcript" {
		resp.Transcript = extractor.FormatTranscript(out.Result.Conversation.Messages)
	}
	writeJSON(w, http.StatusOK, resp)
}

func (s *Server) getConversation(w http.ResponseWriter, r *http.Request) {
	if s.db == nil {
		writeError(w, http.StatusServiceUnavailable, "persistence disabled")
		return
	}
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid conversation id")
		return
	}

	rec, err := s.db.GetConversation(r.Context(), id)
	if errors.Is(err, store.ErrNotFound) {
		writeError(w, http.StatusNotFound, "conversation not found")
		return
	}
	if err != nil {
		s.logger.Error("failed to load conversation", "id", id, "error", err)
		writeError(w, http.StatusInternalServerError, "failed to load conversation")
		return
	}
	writeJSON(w, http.StatusOK, rec)
}

func (s *Server) listConversations(w http.ResponseWriter, r *http.Request) {
	if s.db == nil {
		writeError(w, http.StatusServiceUnavailable, "persistence disabled")
		return
	}
	topic := r.URL.Query().Get("topic")
	if topic == "" {
		writeError(w, http.StatusBadRequest, "topic is required")
		return
	}
	limit := defaultTopicLimit
	if v := r.URL.Query().Get("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n <= 0 {
			writeError(w, http.StatusBadRequest, "invalid limit")
			return
		}
		limit = min(n, maxTopicLimit)
	}

	ids, err := s.db.ConversationsByTopic(r.Context(), topic, limit)
	if err != nil {
		s.logger.Error("failed to list conversations", "topic", topic, "error", err)
		writeError(w, http.StatusInternalServerError, "failed to list conversations")
		return
	}
	if ids == nil {
		ids = []uuid.UUID{}
	}
	writeJSON(w, http.StatusOK, map[string]any{"topic": topic, "conversation_ids": ids})
}

// statusFor maps pipeline errors onto HTTP status codes.
func statusFor(err error) int {
	switch {
	case errors.Is(err, processor.ErrBadRequest),
		errors.Is(err, extractor.ErrUnsupportedKind),
		errors.Is(err, fetch.ErrInvalidShareURL):
		return http.StatusBadRequest
	case errors.Is(err, processor.ErrFetch):
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}

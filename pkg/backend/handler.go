package backend

import (
	"encoding/json"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/killallgit/canvaschat/pkg/chat"
	"github.com/killallgit/canvaschat/pkg/diff"
	"github.com/killallgit/canvaschat/pkg/logger"
)

// Fixed error details; the underlying error only goes to the log
const (
	ChatErrorDetail = "An error occurred during the chat process."
	DiffErrorDetail = "An error occurred during the diff process."
)

// Handler serves the chat backend API
type Handler struct {
	svc *Service
	log *logger.ComponentLogger
}

// NewHandler creates a handler for svc
func NewHandler(svc *Service) *Handler {
	return &Handler{
		svc: svc,
		log: logger.WithComponent("backend_handler"),
	}
}

// NewRouter wires the backend routes with the standard middleware
func NewRouter(svc *Service, corsOrigins []string) http.Handler {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)
	r.Use(CORS(corsOrigins))

	NewHandler(svc).RegisterRoutes(r)
	return r
}

// RegisterRoutes registers the backend routes on r
func (h *Handler) RegisterRoutes(r chi.Router) {
	r.Get(chat.HealthPath, h.handleHealth)
	r.Post(chat.ChatPath, h.handleChat)
	r.Post(chat.ChatDiffPath, h.handleChatDiff)
}

func (h *Handler) handleHealth(w http.ResponseWriter, r *http.Request) {
	respondJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (h *Handler) handleChat(w http.ResponseWriter, r *http.Request) {
	var req chat.ChatRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusUnprocessableEntity, "invalid request body")
		return
	}
	h.chat(w, r, req)
}

func (h *Handler) chat(w http.ResponseWriter, r *http.Request, req chat.ChatRequest) {
	reply, err := h.svc.Chat(r.Context(), req)
	if err != nil {
		h.log.Error("Chat failed", "request_id", middleware.GetReqID(r.Context()), "error", err)
		respondError(w, http.StatusInternalServerError, ChatErrorDetail)
		return
	}

	respondJSON(w, http.StatusOK, chat.ChatResponse{
		Role:    chat.RoleAssistant,
		Content: reply.Content,
		Context: reply.Context,
	})
}

// handleChatDiff streams the canvas diff section followed by the answer.
// Without edit permission it answers like /chat.
func (h *Handler) handleChatDiff(w http.ResponseWriter, r *http.Request) {
	var req chat.ChatRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusUnprocessableEntity, "invalid request body")
		return
	}

	if !req.AICanEditCanvas {
		h.chat(w, r, req)
		return
	}

	reply, err := h.svc.ChatDiff(r.Context(), req)
	if err != nil {
		h.log.Error("Diff generation failed", "request_id", middleware.GetReqID(r.Context()), "error", err)
		respondError(w, http.StatusInternalServerError, DiffErrorDetail)
		return
	}

	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	w.WriteHeader(http.StatusOK)
	flusher, _ := w.(http.Flusher)

	if reply.Diff != "" {
		if _, err := w.Write([]byte(diff.Wrap(reply.Diff))); err != nil {
			h.log.Warn("Failed to write diff section", "error", err)
			return
		}
		if flusher != nil {
			flusher.Flush()
		}
	}
	if _, err := w.Write([]byte(reply.Content)); err != nil {
		h.log.Warn("Failed to write reply", "error", err)
	}
}

// respondJSON writes payload as JSON
func respondJSON(w http.ResponseWriter, status int, payload interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(payload); err != nil {
		logger.Warn("failed to encode response: %v", err)
	}
}

// respondError writes an error body in the {"detail": ...} shape clients expect
func respondError(w http.ResponseWriter, status int, detail string) {
	respondJSON(w, status, map[string]string{"detail": detail})
}

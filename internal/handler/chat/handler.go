package chat

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/ismail-jr/studymate-backend/internal/middleware"
	"github.com/ismail-jr/studymate-backend/internal/service/ai"
	chatservice "github.com/ismail-jr/studymate-backend/internal/service/chat"
	"github.com/ismail-jr/studymate-backend/internal/store"
	"github.com/ismail-jr/studymate-backend/pkg/utils"
)

// Handler exposes the conversation session over HTTP. Every route requires
// an authenticated identity; the manager creates the session on first use.
type Handler struct {
	sessions *chatservice.Manager
}

// New creates the chat handler.
func New(sessions *chatservice.Manager) *Handler {
	return &Handler{sessions: sessions}
}

// RegisterRoutes mounts the chat endpoints.
func (h *Handler) RegisterRoutes(r chi.Router) {
	r.Get("/chat/state", h.handleState)
	r.Post("/chat/messages", h.handleSendMessage)
	r.Post("/chat/new", h.handleNewChat)
	r.Delete("/chat/queries/{id}", h.handleDeleteQuery)
	r.Put("/chat/active", h.handleSetActive)
}

func (h *Handler) session(r *http.Request) (*chatservice.Session, bool) {
	u, ok := middleware.UserFrom(r.Context())
	if !ok {
		return nil, false
	}
	return h.sessions.Attach(u.ID), true
}

func (h *Handler) handleState(w http.ResponseWriter, r *http.Request) {
	sess, ok := h.session(r)
	if !ok {
		utils.RespondError(w, http.StatusUnauthorized, "identity required")
		return
	}

	utils.RespondJSON(w, http.StatusOK, sess.State())
}

type sendResponse struct {
	Reply    string `json:"reply"`
	Degraded bool   `json:"degraded,omitempty"`
}

func (h *Handler) handleSendMessage(w http.ResponseWriter, r *http.Request) {
	sess, ok := h.session(r)
	if !ok {
		utils.RespondError(w, http.StatusUnauthorized, "identity required")
		return
	}

	var payload struct {
		Content string `json:"content"`
	}
	if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
		utils.RespondError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	reply, err := sess.SendMessage(r.Context(), payload.Content)
	switch {
	case err == nil:
		utils.RespondJSON(w, http.StatusOK, sendResponse{Reply: reply})
	case errors.Is(err, chatservice.ErrEmptyMessage):
		utils.RespondError(w, http.StatusBadRequest, "message must not be empty")
	case errors.Is(err, chatservice.ErrBusy):
		utils.RespondError(w, http.StatusConflict, "a reply is still pending")
	case errors.Is(err, chatservice.ErrSessionClosed):
		utils.RespondError(w, http.StatusUnauthorized, "session closed")
	case isCompletionError(err):
		// The user turn is persisted; the fallback reply is shown but
		// never written to the transcript.
		utils.RespondJSON(w, http.StatusOK, sendResponse{Reply: reply, Degraded: true})
	default:
		utils.RespondError(w, storeStatus(err), "failed to send message")
	}
}

func (h *Handler) handleNewChat(w http.ResponseWriter, r *http.Request) {
	sess, ok := h.session(r)
	if !ok {
		utils.RespondError(w, http.StatusUnauthorized, "identity required")
		return
	}

	if err := sess.StartNewChat(r.Context()); err != nil {
		utils.RespondError(w, storeStatus(err), "failed to clear conversation")
		return
	}

	utils.RespondJSON(w, http.StatusOK, map[string]string{"status": "cleared"})
}

func (h *Handler) handleDeleteQuery(w http.ResponseWriter, r *http.Request) {
	sess, ok := h.session(r)
	if !ok {
		utils.RespondError(w, http.StatusUnauthorized, "identity required")
		return
	}

	id := chi.URLParam(r, "id")
	if err := sess.DeleteQuery(r.Context(), id); err != nil {
		utils.RespondError(w, storeStatus(err), "failed to delete query")
		return
	}

	utils.RespondJSON(w, http.StatusOK, map[string]string{"status": "deleted"})
}

func (h *Handler) handleSetActive(w http.ResponseWriter, r *http.Request) {
	sess, ok := h.session(r)
	if !ok {
		utils.RespondError(w, http.StatusUnauthorized, "identity required")
		return
	}

	var payload struct {
		ID string `json:"id"`
	}
	if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
		utils.RespondError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	sess.SetActiveChat(payload.ID)
	utils.RespondJSON(w, http.StatusOK, sess.State())
}

func isCompletionError(err error) bool {
	var completionErr *ai.CompletionError
	return errors.As(err, &completionErr)
}

func storeStatus(err error) int {
	var storeErr *store.StoreError
	if errors.As(err, &storeErr) {
		return http.StatusBadGateway
	}
	return http.StatusInternalServerError
}

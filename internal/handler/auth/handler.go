package auth

import (
	"encoding/json"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/ismail-jr/studymate-backend/internal/middleware"
	"github.com/ismail-jr/studymate-backend/internal/model/user"
	authservice "github.com/ismail-jr/studymate-backend/internal/service/auth"
	chatservice "github.com/ismail-jr/studymate-backend/internal/service/chat"
	"github.com/ismail-jr/studymate-backend/pkg/utils"
)

// Handler exposes register/login/logout over HTTP.
type Handler struct {
	authSvc  *authservice.Service
	sessions *chatservice.Manager
}

// New creates the auth handler.
func New(authSvc *authservice.Service, sessions *chatservice.Manager) *Handler {
	return &Handler{authSvc: authSvc, sessions: sessions}
}

// RegisterRoutes mounts the auth endpoints.
func (h *Handler) RegisterRoutes(r chi.Router) {
	r.Post("/auth/register", h.handleRegister)
	r.Post("/auth/login", h.handleLogin)
	r.Post("/auth/logout", h.handleLogout)
}

type credentialsResponse struct {
	Token string    `json:"token"`
	User  user.User `json:"user"`
}

func (h *Handler) handleRegister(w http.ResponseWriter, r *http.Request) {
	var payload struct {
		Name     string `json:"name"`
		Email    string `json:"email"`
		Password string `json:"password"`
	}
	if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
		utils.RespondError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	u, token, err := h.authSvc.Register(r.Context(), payload.Name, payload.Email, payload.Password)
	if err != nil {
		utils.RespondError(w, middleware.AuthStatus(err), err.Error())
		return
	}

	utils.RespondJSON(w, http.StatusCreated, credentialsResponse{Token: token, User: u})
}

func (h *Handler) handleLogin(w http.ResponseWriter, r *http.Request) {
	var payload struct {
		Email    string `json:"email"`
		Password string `json:"password"`
	}
	if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
		utils.RespondError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	u, token, err := h.authSvc.Login(r.Context(), payload.Email, payload.Password)
	if err != nil {
		utils.RespondError(w, middleware.AuthStatus(err), err.Error())
		return
	}

	utils.RespondJSON(w, http.StatusOK, credentialsResponse{Token: token, User: u})
}

// handleLogout revokes the token and tears down the chat session behind it,
// so the next login starts from a fresh subscription.
func (h *Handler) handleLogout(w http.ResponseWriter, r *http.Request) {
	token := middleware.BearerToken(r)
	if token == "" {
		utils.RespondError(w, http.StatusUnauthorized, "missing bearer token")
		return
	}

	if userID, ok := h.authSvc.Logout(token); ok {
		h.sessions.Detach(userID)
	}

	utils.RespondJSON(w, http.StatusOK, map[string]string{"status": "signed out"})
}

package handler

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"

	authHandler "github.com/ismail-jr/studymate-backend/internal/handler/auth"
	chatHandler "github.com/ismail-jr/studymate-backend/internal/handler/chat"
	"github.com/ismail-jr/studymate-backend/internal/middleware"
	authService "github.com/ismail-jr/studymate-backend/internal/service/auth"
	chatService "github.com/ismail-jr/studymate-backend/internal/service/chat"
	"github.com/ismail-jr/studymate-backend/pkg/utils"
)

// NewRouter wires HTTP routes to core services.
func NewRouter(authSvc *authService.Service, sessions *chatService.Manager) http.Handler {
	r := chi.NewRouter()

	r.Use(chimiddleware.RequestID)
	r.Use(chimiddleware.RealIP)
	r.Use(chimiddleware.Logger)
	r.Use(chimiddleware.Recoverer)
	r.Use(middleware.CORS)

	r.Get("/health", func(w http.ResponseWriter, _ *http.Request) {
		utils.RespondJSON(w, http.StatusOK, map[string]string{"status": "healthy"})
	})

	r.Route("/api", func(api chi.Router) {
		authHandler.New(authSvc, sessions).RegisterRoutes(api)

		api.Group(func(protected chi.Router) {
			protected.Use(middleware.RequireAuth(authSvc))
			chatHandler.New(sessions).RegisterRoutes(protected)
			chatHandler.NewStream(sessions).RegisterRoutes(protected)
		})
	})

	return r
}

package chat

import (
	"log"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/gorilla/websocket"

	"github.com/ismail-jr/studymate-backend/internal/middleware"
	chatservice "github.com/ismail-jr/studymate-backend/internal/service/chat"
	"github.com/ismail-jr/studymate-backend/pkg/utils"
)

// StreamHandler pushes live session snapshots to the browser, over WebSocket
// for the main client and over SSE as a fallback transport. Each connection
// gets its own watcher; snapshots are whole states, never diffs.
type StreamHandler struct {
	sessions *chatservice.Manager
	upgrader websocket.Upgrader
}

// NewStream creates the push handler.
func NewStream(sessions *chatservice.Manager) *StreamHandler {
	return &StreamHandler{
		sessions: sessions,
		upgrader: websocket.Upgrader{
			CheckOrigin: func(r *http.Request) bool {
				return true
			},
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
		},
	}
}

// RegisterRoutes mounts the push endpoints.
func (h *StreamHandler) RegisterRoutes(r chi.Router) {
	r.Get("/chat/ws", h.handleWebSocket)
	r.Get("/chat/stream", h.handleSSE)
}

func (h *StreamHandler) handleWebSocket(w http.ResponseWriter, r *http.Request) {
	u, ok := middleware.UserFrom(r.Context())
	if !ok {
		utils.RespondError(w, http.StatusUnauthorized, "identity required")
		return
	}

	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Printf("[ws] upgrade failed user=%s: %v", u.ID, err)
		return
	}
	defer conn.Close()

	sess := h.sessions.Attach(u.ID)
	updates, cancel := sess.Watch()
	defer cancel()

	// Reads are only consumed to observe the close handshake.
	done := make(chan struct{})
	go func() {
		defer close(done)
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}()

	log.Printf("[ws] stream open user=%s", u.ID)
	for {
		select {
		case state, open := <-updates:
			if !open {
				return
			}
			if err := conn.WriteJSON(state); err != nil {
				log.Printf("[ws] write failed user=%s: %v", u.ID, err)
				return
			}
		case <-done:
			return
		case <-r.Context().Done():
			return
		}
	}
}

func (h *StreamHandler) handleSSE(w http.ResponseWriter, r *http.Request) {
	u, ok := middleware.UserFrom(r.Context())
	if !ok {
		utils.RespondError(w, http.StatusUnauthorized, "identity required")
		return
	}

	flusher, ok := w.(http.Flusher)
	if !ok {
		utils.RespondError(w, http.StatusInternalServerError, "streaming unsupported")
		return
	}

	utils.SetupSSEHeaders(w)

	sess := h.sessions.Attach(u.ID)
	updates, cancel := sess.Watch()
	defer cancel()

	log.Printf("[sse] stream open user=%s", u.ID)
	for {
		select {
		case state, open := <-updates:
			if !open {
				return
			}
			utils.SendSSEEvent(w, flusher, "state", state)
		case <-r.Context().Done():
			log.Printf("[sse] stream closed user=%s", u.ID)
			return
		}
	}
}

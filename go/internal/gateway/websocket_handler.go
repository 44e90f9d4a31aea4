package gateway

import (
	"fmt"
	"net/http"

	"github.com/rs/zerolog/log"
)

// WebSocketHandler handles WebSocket upgrade requests for duel connections.
type WebSocketHandler struct {
	service *Service
	path    string
}

// NewWebSocketHandler creates a WebSocket handler serving the given path.
func NewWebSocketHandler(service *Service, path string) *WebSocketHandler {
	if path == "" {
		path = "/ws"
	}
	return &WebSocketHandler{
		service: service,
		path:    path,
	}
}

// HandleConnection upgrades the request and greets the new participant. The
// display name comes from an optional query parameter; identity is a fresh
// connection-scoped id either way.
func (h *WebSocketHandler) HandleConnection(w http.ResponseWriter, r *http.Request) {
	name := r.URL.Query().Get("name")
	if name == "" {
		name = "Player"
	}

	conn, err := h.service.Manager().UpgradeConnection(w, r, name)
	if err != nil {
		http.Error(w, "failed to upgrade connection", http.StatusInternalServerError)
		return
	}
	h.service.Greet(conn)
}

// HandleStats reports live connection counts.
func (h *WebSocketHandler) HandleStats(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	fmt.Fprintf(w, `{"connections":%d}`, h.service.Manager().ConnectionCount())
}

// RegisterRoutes registers WebSocket routes with an HTTP mux.
func (h *WebSocketHandler) RegisterRoutes(mux *http.ServeMux) {
	mux.HandleFunc(h.path, h.HandleConnection)
	mux.HandleFunc("/ws/stats", h.HandleStats)
	log.Info().Str("path", h.path).Msg("gateway routes registered")
}

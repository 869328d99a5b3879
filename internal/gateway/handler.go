package gateway

import (
	"fmt"
	"net/http"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog/log"
)

// Handler upgrades HTTP requests to WebSocket connections and wires them to
// the coordinator.
type Handler struct {
	upgrader websocket.Upgrader
	coord    Coordinator
	registry *Registry
	cfg      Config
}

// NewHandler creates a WebSocket handler backed by the given coordinator.
func NewHandler(coord Coordinator, cfg Config) *Handler {
	return &Handler{
		upgrader: websocket.Upgrader{
			ReadBufferSize:  cfg.ReadBufferSize,
			WriteBufferSize: cfg.WriteBufferSize,
			CheckOrigin:     cfg.CheckOrigin,
		},
		coord:    coord,
		registry: NewRegistry(),
		cfg:      cfg,
	}
}

// Registry exposes the live-connection registry for stats and shutdown.
func (h *Handler) Registry() *Registry {
	return h.registry
}

// HandleSession upgrades the request and starts the connection pumps. The
// connection declares its role afterwards through attach commands; nothing
// is trusted or verified at upgrade time.
func (h *Handler) HandleSession(w http.ResponseWriter, r *http.Request) {
	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Error().Err(err).Msg("failed to upgrade WebSocket connection")
		return
	}

	c := newConnection(conn, h.coord, h.registry, h.cfg)
	h.registry.add(c)
	go c.writePump()
	go c.readPump()

	log.Info().Str("connection_id", c.id).Str("remote", r.RemoteAddr).Msg("WebSocket connection established")
}

// HandleStats reports live connection counts.
func (h *Handler) HandleStats(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	fmt.Fprintf(w, `{"connections":%d}`, h.registry.Count())
}

// RegisterRoutes registers the WebSocket routes with an HTTP mux.
func (h *Handler) RegisterRoutes(mux *http.ServeMux) {
	mux.HandleFunc("/ws", h.HandleSession)
	mux.HandleFunc("/ws/stats", h.HandleStats)
}

package gateway

import (
	"sync"

	"github.com/rs/zerolog/log"
)

// Registry tracks live connections for stats and shutdown. Group membership
// (teachers/students) is session state and lives with the coordinator; the
// registry only knows which sockets exist.
type Registry struct {
	mu    sync.RWMutex
	conns map[*Connection]struct{}
}

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{conns: make(map[*Connection]struct{})}
}

func (r *Registry) add(c *Connection) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.conns[c] = struct{}{}
	log.Debug().Str("connection_id", c.id).Int("total", len(r.conns)).Msg("connection registered")
}

func (r *Registry) remove(c *Connection) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.conns[c]; !ok {
		return
	}
	delete(r.conns, c)
	log.Debug().Str("connection_id", c.id).Int("total", len(r.conns)).Msg("connection unregistered")
}

// Count returns the number of live connections.
func (r *Registry) Count() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.conns)
}

// CloseAll force-closes every live connection. Used on shutdown.
func (r *Registry) CloseAll() {
	r.mu.Lock()
	defer r.mu.Unlock()
	for c := range r.conns {
		c.conn.Close()
	}
	r.conns = make(map[*Connection]struct{})
}

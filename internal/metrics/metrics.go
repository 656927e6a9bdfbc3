package metrics

import (
	"encoding/json"
	"maps"
	"net/http"
	"slices"
	"sync"
	"time"
)

// Source returns a JSON-encodable statistics value.
type Source func() any

// Registry holds named stats sources.
type Registry struct {
	mu      sync.RWMutex
	sources map[string]Source
	started time.Time
}

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{
		sources: make(map[string]Source),
		started: time.Now(),
	}
}

// Register adds or replaces the source for name.
func (r *Registry) Register(name string, src Source) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.sources[name] = src
}

// Names returns registered source names in order.
func (r *Registry) Names() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return slices.Sorted(maps.Keys(r.sources))
}

// Snapshot evaluates every source.
func (r *Registry) Snapshot() map[string]any {
	r.mu.RLock()
	sources := maps.Clone(r.sources)
	r.mu.RUnlock()

	out := make(map[string]any, len(sources)+1)
	for name, src := range sources {
		out[name] = src()
	}
	out["uptime_seconds"] = int64(time.Since(r.started).Seconds())
	return out
}

// Handler serves the snapshot as JSON.
func (r *Registry) Handler() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, req *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(r.Snapshot())
	})
}

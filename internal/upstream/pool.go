package upstream

import (
	"sort"
	"sync"
)

// Pool maps container_id -> Transport and maintains an enabled set separate
// from the registered set so enable/disable at runtime is O(1) (spec §4.2).
type Pool struct {
	mu      sync.RWMutex
	clients map[string]Transport
	enabled map[string]bool
}

// NewPool returns an empty Pool.
func NewPool() *Pool {
	return &Pool{
		clients: make(map[string]Transport),
		enabled: make(map[string]bool),
	}
}

// Register adds (or replaces) a container's transport, enabled by default.
func (p *Pool) Register(containerID string, t Transport) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.clients[containerID] = t
	p.enabled[containerID] = true
}

// Enable marks a registered container as available for selection.
func (p *Pool) Enable(containerID string) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if _, ok := p.clients[containerID]; ok {
		p.enabled[containerID] = true
	}
}

// Disable marks a registered container as unavailable for selection.
func (p *Pool) Disable(containerID string) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.enabled[containerID] = false
}

// Get returns the transport for containerID and whether it is registered.
func (p *Pool) Get(containerID string) (Transport, bool) {
	p.mu.RLock()
	defer p.mu.RUnlock()
	t, ok := p.clients[containerID]
	return t, ok
}

// IsEnabled reports whether containerID is registered and currently enabled.
func (p *Pool) IsEnabled(containerID string) bool {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.enabled[containerID]
}

// ListEnabled returns the currently enabled container ids, sorted alphabetically.
func (p *Pool) ListEnabled() []string {
	p.mu.RLock()
	defer p.mu.RUnlock()
	var ids []string
	for id, on := range p.enabled {
		if on {
			ids = append(ids, id)
		}
	}
	sort.Strings(ids)
	return ids
}

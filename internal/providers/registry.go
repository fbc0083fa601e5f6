package providers

import (
	"fmt"
	"sort"
	"sync"
)

// Registry maps carrier codes to Provider instances. It is built once at
// process startup and passed by reference into the aggregator; no factories
// or reflection involved.
type Registry struct {
	providers map[string]Provider
	mu        sync.RWMutex
}

// NewRegistry creates an empty provider registry.
func NewRegistry() *Registry {
	return &Registry{
		providers: make(map[string]Provider),
	}
}

// Register adds a provider under its own carrier code. Registering the same
// code twice replaces the earlier instance.
func (r *Registry) Register(p Provider) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.providers[p.Code()] = p
}

// Get returns the provider for a carrier code.
func (r *Registry) Get(code string) (Provider, error) {
	r.mu.RLock()
	p, exists := r.providers[code]
	r.mu.RUnlock()

	if !exists {
		return nil, fmt.Errorf("carrier %s not registered", code)
	}
	return p, nil
}

// IsRegistered reports whether a carrier code has a provider.
func (r *Registry) IsRegistered(code string) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	_, exists := r.providers[code]
	return exists
}

// Codes returns all registered carrier codes in sorted order so probing
// sequences are stable across calls.
func (r *Registry) Codes() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	codes := make([]string, 0, len(r.providers))
	for code := range r.providers {
		codes = append(codes, code)
	}
	sort.Strings(codes)
	return codes
}

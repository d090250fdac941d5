// Package llm — provider router.
// Router selects a Provider at request time from the registered set.
// Today selection is static (the configured default); keeping the indirection
// means fallback chains can be added without touching call sites.
package llm

import (
	"context"
	"fmt"
)

// Router selects a Provider for each request.
type Router struct {
	providers       map[string]Provider
	defaultProvider string
}

// NewRouter creates a Router with an initial set of providers and a default key.
func NewRouter(providers map[string]Provider, defaultProvider string) *Router {
	// defensive copy so the caller cannot mutate the internal map.
	ps := make(map[string]Provider, len(providers))
	for k, v := range providers {
		ps[k] = v
	}
	return &Router{providers: ps, defaultProvider: defaultProvider}
}

// Register adds (or replaces) a provider under the given key.
// Useful for dynamic reconfiguration or tests.
func (r *Router) Register(key string, p Provider) {
	r.providers[key] = p
}

// Route returns the provider for the current request.
// Returns an error if the default provider is not registered.
func (r *Router) Route(_ context.Context) (Provider, error) {
	p, ok := r.providers[r.defaultProvider]
	if !ok {
		return nil, fmt.Errorf("llm router: provider %q not registered (available: %v)", r.defaultProvider, r.keys())
	}
	return p, nil
}

// keys returns the registered provider names (for error messages).
func (r *Router) keys() []string {
	out := make([]string, 0, len(r.providers))
	for k := range r.providers {
		out = append(out, k)
	}
	return out
}

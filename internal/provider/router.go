package provider

import (
	"context"
	"fmt"
	"sync"

	"go.uber.org/zap"
)

// Router holds the registered generation providers and dispatches requests
// to the configured default. Failures are terminal per call; the router
// never retries against another provider, so a denied or failed request
// costs exactly one attempt.
type Router struct {
	providers map[string]Provider
	defaults  string
	mu        sync.RWMutex
	logger    *zap.Logger
}

// NewRouter creates a new provider router.
func NewRouter(logger *zap.Logger) *Router {
	return &Router{
		providers: make(map[string]Provider),
		logger:    logger,
	}
}

// Register adds a provider. The first registered provider becomes the
// default until SetDefault is called.
func (r *Router) Register(p Provider) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.providers[p.ID()] = p
	if r.defaults == "" {
		r.defaults = p.ID()
	}
	r.logger.Info("registered provider", zap.String("id", p.ID()), zap.String("name", p.Name()))
}

// SetDefault sets the default provider.
func (r *Router) SetDefault(providerID string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.defaults = providerID
}

// DefaultID returns the current default provider ID.
func (r *Router) DefaultID() string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.defaults
}

// Route sends a chat request through the default provider.
func (r *Router) Route(ctx context.Context, req *ChatRequest) (*ChatResponse, error) {
	p, err := r.defaultProvider()
	if err != nil {
		return nil, err
	}
	return p.Chat(ctx, req)
}

// RouteStream sends a streaming chat request through the default provider.
func (r *Router) RouteStream(ctx context.Context, req *ChatRequest) (<-chan *StreamChunk, error) {
	p, err := r.defaultProvider()
	if err != nil {
		return nil, err
	}
	return p.ChatStream(ctx, req)
}

func (r *Router) defaultProvider() (Provider, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	p, ok := r.providers[r.defaults]
	if !ok {
		return nil, fmt.Errorf("no provider configured")
	}
	return p, nil
}

// GetProvider returns a provider by ID.
func (r *Router) GetProvider(id string) (Provider, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	p, ok := r.providers[id]
	return p, ok
}

// ListProviders returns all registered providers.
func (r *Router) ListProviders() []Provider {
	r.mu.RLock()
	defer r.mu.RUnlock()
	result := make([]Provider, 0, len(r.providers))
	for _, p := range r.providers {
		result = append(result, p)
	}
	return result
}

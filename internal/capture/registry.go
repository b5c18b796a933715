package capture

import "sync"

// Registry holds the encoder factories available on this platform, keyed by
// format identifier. It doubles as the Support implementation used during
// negotiation: a format is supported exactly when a factory is registered
// for it.
type Registry struct {
	factories map[string]EncoderFactory
	mu        sync.RWMutex
}

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{factories: make(map[string]EncoderFactory)}
}

// Register adds a factory for a format, replacing any previous one.
func (r *Registry) Register(format string, factory EncoderFactory) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.factories[format] = factory
}

// IsSupported implements Support.
func (r *Registry) IsSupported(format string) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	_, ok := r.factories[format]
	return ok
}

// Factory returns the factory for a format, or nil when none is registered.
func (r *Registry) Factory(format string) EncoderFactory {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.factories[format]
}

package strategies

import (
	"errors"
	"fmt"
	"sort"
	"sync"
)

// ErrUnknownStrategy is returned when a name has no registered factory.
var ErrUnknownStrategy = errors.New("unknown strategy")

// Factory builds a strategy from a config.
type Factory func(cfg *Config) Strategy

// Registry maps strategy names to factories and caches default-config
// instances.
type Registry struct {
	mu        sync.Mutex
	factories map[string]Factory
	instances map[string]Strategy
}

func NewRegistry() *Registry {
	return &Registry{
		factories: make(map[string]Factory),
		instances: make(map[string]Strategy),
	}
}

// NewDefaultRegistry returns a registry with the three built-in strategies.
func NewDefaultRegistry() *Registry {
	r := NewRegistry()
	r.Register("momentum", func(cfg *Config) Strategy { return NewMomentum(cfg) })
	r.Register("breakout", func(cfg *Config) Strategy { return NewBreakout(cfg) })
	r.Register("mean_reversion", func(cfg *Config) Strategy { return NewMeanReversion(cfg) })
	return r
}

// Register installs a factory, replacing any previous one of the same name.
func (r *Registry) Register(name string, f Factory) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.factories[name] = f
	delete(r.instances, name)
}

// Get returns the cached default-config instance for name, building it on
// first use.
func (r *Registry) Get(name string) (Strategy, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if s, ok := r.instances[name]; ok {
		return s, nil
	}
	f, ok := r.factories[name]
	if !ok {
		return nil, fmt.Errorf("%q: %w", name, ErrUnknownStrategy)
	}
	s := f(DefaultConfig())
	r.instances[name] = s
	return s, nil
}

// New builds a fresh instance with the given config, bypassing the cache.
func (r *Registry) New(name string, cfg *Config) (Strategy, error) {
	r.mu.Lock()
	f, ok := r.factories[name]
	r.mu.Unlock()

	if !ok {
		return nil, fmt.Errorf("%q: %w", name, ErrUnknownStrategy)
	}
	if cfg == nil {
		cfg = DefaultConfig()
	}
	return f(cfg), nil
}

// List returns the registered names, sorted.
func (r *Registry) List() []string {
	r.mu.Lock()
	defer r.mu.Unlock()

	names := make([]string, 0, len(r.factories))
	for name := range r.factories {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

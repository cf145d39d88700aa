// Package extension holds the registry of data-source provider factories a
// built agent binary links in. A PackageReference names a provider by this
// registry's key; the dispatcher's SourceFactory for a session resolves it
// here.
package extension

import (
	"sort"
	"sync"

	"github.com/apollo3zehn/nexus-remote-agent/internal/datasource"
)

// Factory constructs a new, unconfigured data-source instance. SetContext
// is called separately once the session has decoded the host's context.
type Factory func() (datasource.DataSource, error)

// Registry maps a provider type name (as stored in a PackageReference) to
// the factory that builds it.
type Registry struct {
	factories map[string]Factory
	mu        sync.RWMutex
}

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{factories: make(map[string]Factory)}
}

// Register adds a factory under providerType. Returns a *RegistrationError
// if the factory is nil, the name is empty, or the name is already taken.
func (r *Registry) Register(providerType string, factory Factory) error {
	if factory == nil {
		return NewRegistrationError(providerType, "factory cannot be nil")
	}
	if providerType == "" {
		return NewRegistrationError("", "provider type cannot be empty")
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.factories[providerType]; exists {
		return NewRegistrationError(providerType, "provider type already registered")
	}
	r.factories[providerType] = factory
	return nil
}

// MustRegister is Register, panicking on error. Intended for init().
func (r *Registry) MustRegister(providerType string, factory Factory) {
	if err := r.Register(providerType, factory); err != nil {
		panic(err)
	}
}

// Get retrieves the factory for a provider type.
func (r *Registry) Get(providerType string) (Factory, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	f, ok := r.factories[providerType]
	return f, ok
}

// List returns the registered provider type names, sorted.
func (r *Registry) List() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	names := make([]string, 0, len(r.factories))
	for name := range r.factories {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Unregister removes a provider type, reporting whether it was present.
func (r *Registry) Unregister(providerType string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, exists := r.factories[providerType]; !exists {
		return false
	}
	delete(r.factories, providerType)
	return true
}

// Count returns the number of registered provider types.
func (r *Registry) Count() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.factories)
}

// DefaultRegistry is the process-wide registry built binaries register
// their provider factories against in an init() function.
var DefaultRegistry = NewRegistry()

func Register(providerType string, factory Factory) error {
	return DefaultRegistry.Register(providerType, factory)
}

func MustRegister(providerType string, factory Factory) {
	DefaultRegistry.MustRegister(providerType, factory)
}

func Get(providerType string) (Factory, bool) {
	return DefaultRegistry.Get(providerType)
}

func List() []string {
	return DefaultRegistry.List()
}

package dns

import (
	"fmt"
	"slices"
	"sync"

	"github.com/go-logr/logr"
)

// Factory is a constructor function that providers register to create themselves.
type Factory func(log logr.Logger, settings map[string]string) (Provider, error)

var (
	mu        sync.Mutex
	factories = make(map[string]Factory)
)

// Register is called by provider packages in their init() to self-register.
func Register(name string, f Factory) {
	mu.Lock()
	defer mu.Unlock()
	if _, exists := factories[name]; exists {
		panic(fmt.Sprintf("dns: provider %q already registered", name))
	}
	factories[name] = f
}

// Registered returns the sorted names of all registered providers.
func Registered() []string {
	mu.Lock()
	defer mu.Unlock()
	names := make([]string, 0, len(factories))
	for n := range factories {
		names = append(names, n)
	}
	slices.Sort(names)
	return names
}

// NewProvider looks up the named provider in the registry and creates it.
func NewProvider(name string, log logr.Logger, settings map[string]string) (Provider, error) {
	mu.Lock()
	f, ok := factories[name]
	mu.Unlock()
	if !ok {
		return nil, &UnknownProviderError{Provider: name, Registered: Registered()}
	}
	p, err := f(log, settings)
	if err != nil {
		return nil, fmt.Errorf("creating DNS provider %q: %w", name, err)
	}
	return p, nil
}

// SettingsFunc returns the settings of one provider id. It is called the
// first time the id is requested, so a broken settings table only affects
// the entries that use it.
type SettingsFunc func(id string) (map[string]string, error)

// StaticSettings serves settings from a fixed map.
func StaticSettings(settings map[string]map[string]string) SettingsFunc {
	return func(id string) (map[string]string, error) {
		return settings[id], nil
	}
}

// Registry hands out one provider instance per provider id for the life
// of a run. Instances are built lazily from the matching settings table.
type Registry struct {
	log       logr.Logger
	settings  SettingsFunc
	mu        sync.Mutex
	instances map[string]Provider
}

// NewRegistry creates a Registry that resolves provider settings through
// settings on first use.
func NewRegistry(log logr.Logger, settings SettingsFunc) *Registry {
	if settings == nil {
		settings = StaticSettings(nil)
	}
	return &Registry{
		log:       log,
		settings:  settings,
		instances: make(map[string]Provider),
	}
}

// Get returns the cached provider for id, constructing it on first use.
// Failed settings resolution and failed constructions are not cached.
func (r *Registry) Get(id string) (Provider, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if p, ok := r.instances[id]; ok {
		return p, nil
	}
	settings, err := r.settings(id)
	if err != nil {
		return nil, fmt.Errorf("resolving settings for DNS provider %q: %w", id, err)
	}
	p, err := NewProvider(id, r.log.WithName("dns-"+id), settings)
	if err != nil {
		return nil, err
	}
	r.instances[id] = p
	r.log.V(1).Info("created DNS provider", "provider", id)
	return p, nil
}

package adapter

import (
	"fmt"
	"sort"
	"sync"
)

// Preference is the order in which bundles are picked when none is configured.
var Preference = []string{"duckdb", "sqlite"}

var (
	registryMu sync.RWMutex
	registry   = make(map[string]Factory)
)

// Register adds a bundle factory to the registry.
// Called by bundle implementations in their init() functions.
func Register(name string, factory Factory) {
	registryMu.Lock()
	defer registryMu.Unlock()
	registry[name] = factory
}

// Get retrieves a bundle factory by name.
func Get(name string) (Factory, bool) {
	registryMu.RLock()
	defer registryMu.RUnlock()
	f, ok := registry[name]
	return f, ok
}

// Resolve picks the bundle for cfg. An explicit cfg.Type must be registered;
// otherwise the first registered bundle in Preference order wins.
func Resolve(cfg Config) (Bundle, error) {
	name := cfg.Type
	if name == "" {
		for _, candidate := range Preference {
			if IsRegistered(candidate) {
				name = candidate
				break
			}
		}
		if name == "" {
			return Bundle{}, fmt.Errorf("no engine bundle compiled into this binary")
		}
	}

	factory, ok := Get(name)
	if !ok {
		return Bundle{}, &UnknownBundleError{
			Type:      name,
			Available: ListBundles(),
		}
	}

	b, err := factory(cfg)
	if err != nil {
		return Bundle{}, fmt.Errorf("failed to prepare %s bundle: %w", name, err)
	}
	if b.Name == "" {
		b.Name = name
	}
	return b, nil
}

// ListBundles returns all registered bundle names (sorted).
func ListBundles() []string {
	registryMu.RLock()
	defer registryMu.RUnlock()
	names := make([]string, 0, len(registry))
	for name := range registry {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// IsRegistered checks if a bundle is registered.
func IsRegistered(name string) bool {
	registryMu.RLock()
	defer registryMu.RUnlock()
	_, ok := registry[name]
	return ok
}

// UnknownBundleError is returned when an unknown bundle is requested.
type UnknownBundleError struct {
	Type      string
	Available []string
}

func (e *UnknownBundleError) Error() string {
	return fmt.Sprintf("unknown engine bundle %q\nAvailable bundles: %v\nHint: Check engine.bundle in sqlsandbox.yaml (duckdb requires a cgo build)", e.Type, e.Available)
}

package services

import (
	"fmt"
	"sort"
	"sync"

	"github.com/geih-labs/firewatch/internal/core/domain"
	"github.com/geih-labs/firewatch/internal/core/ports/driven"
)

// ConnectorRegistry maps source names to connector constructors. It is an
// explicit object handed to the orchestrator at startup, not a module-level
// singleton, so independent registries can coexist (e.g., in tests).
//
// The constructor table is effectively read-only after startup registration;
// Create is safe for concurrent use and always returns a fresh connector
// instance. The registry holds no connector state of its own.
type ConnectorRegistry struct {
	mu           sync.RWMutex
	constructors map[string]driven.ConnectorConstructor
}

// NewConnectorRegistry creates an empty registry.
func NewConnectorRegistry() *ConnectorRegistry {
	return &ConnectorRegistry{
		constructors: make(map[string]driven.ConnectorConstructor),
	}
}

// Register adds a named constructor. Registering the same name twice fails
// with domain.ErrDuplicateRegistration; the first registration wins.
func (r *ConnectorRegistry) Register(name string, ctor driven.ConnectorConstructor) error {
	if name == "" || ctor == nil {
		return fmt.Errorf("register %q: name and constructor are required", name)
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.constructors[name]; exists {
		return fmt.Errorf("register %q: %w", name, domain.ErrDuplicateRegistration)
	}
	r.constructors[name] = ctor
	return nil
}

// Create builds a fresh connector for the named source. Fails with
// domain.ErrUnknownSource if the name was never registered.
func (r *ConnectorRegistry) Create(name string, cfg domain.SourceConfig) (driven.SourceConnector, error) {
	r.mu.RLock()
	ctor, ok := r.constructors[name]
	r.mu.RUnlock()

	if !ok {
		return nil, fmt.Errorf("create %q: %w", name, domain.ErrUnknownSource)
	}
	return ctor(cfg)
}

// ListRegistered returns the registered source names, sorted.
func (r *ConnectorRegistry) ListRegistered() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	names := make([]string, 0, len(r.constructors))
	for name := range r.constructors {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

package node

import (
	"fmt"
	"maps"
	"sync"

	"github.com/c360/flowkit/errors"
)

// Registration holds the definition and optional context-pin provider for a
// node kind.
type Registration struct {
	Definition  Definition
	ContextPins ContextPinProvider // nil when the kind has no dynamic pins
}

// Registry manages node kind registrations. It provides thread-safe
// registration and lookup of definitions (the static pin source) and
// context-pin providers (the dynamic pin source).
type Registry struct {
	kinds map[string]*Registration
	mu    sync.RWMutex
}

// NewRegistry creates a new empty node kind registry.
func NewRegistry() *Registry {
	return &Registry{
		kinds: make(map[string]*Registration),
	}
}

// Register adds a node kind registration.
// Returns an error if the kind name is empty or already registered.
func (r *Registry) Register(reg Registration) error {
	if reg.Definition.Kind == "" {
		return errors.WrapInvalid(errors.ErrInvalidConfig, "Registry", "Register", "kind name validation")
	}
	if reg.Definition.SupportsContextPins && reg.ContextPins == nil {
		return errors.WrapInvalid(
			fmt.Errorf("kind '%s' declares context pins but has no provider", reg.Definition.Kind),
			"Registry", "Register", "context provider validation")
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.kinds[reg.Definition.Kind]; exists {
		msg := fmt.Errorf("%w: '%s'", errors.ErrDuplicateKind, reg.Definition.Kind)
		return errors.WrapInvalid(msg, "Registry", "Register", "duplicate kind check")
	}

	r.kinds[reg.Definition.Kind] = &reg
	return nil
}

// Definition returns the definition for a kind.
func (r *Registry) Definition(kind string) (Definition, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	reg, exists := r.kinds[kind]
	if !exists {
		msg := fmt.Errorf("%w: '%s'", errors.ErrKindNotFound, kind)
		return Definition{}, errors.WrapInvalid(msg, "Registry", "Definition", "kind lookup")
	}
	return reg.Definition, nil
}

// ContextProvider returns the context-pin provider for a kind, or nil when
// the kind has no dynamic pins.
func (r *Registry) ContextProvider(kind string) ContextPinProvider {
	r.mu.RLock()
	defer r.mu.RUnlock()

	reg, exists := r.kinds[kind]
	if !exists {
		return nil
	}
	return reg.ContextPins
}

// ListKinds returns all registered kind definitions keyed by kind name.
func (r *Registry) ListKinds() map[string]Definition {
	r.mu.RLock()
	defer r.mu.RUnlock()

	result := make(map[string]Definition, len(r.kinds))
	for kind, reg := range r.kinds {
		result[kind] = reg.Definition
	}
	return result
}

// Snapshot returns a copy of the raw registration map for diagnostics.
func (r *Registry) Snapshot() map[string]*Registration {
	r.mu.RLock()
	defer r.mu.RUnlock()

	result := make(map[string]*Registration, len(r.kinds))
	maps.Copy(result, r.kinds)
	return result
}

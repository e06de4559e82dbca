// Package registry provides the default environment: a name-keyed set of
// helpers and component definitions.
package registry

import (
	"errors"
	"fmt"
	"sort"
	"strings"
	"sync"

	"github.com/chazu/tessera/vm"
)

// ErrNoComponent is returned for a path with no registered component.
var ErrNoComponent = errors.New("no component registered")

// ---------------------------------------------------------------------------
// Registry
// ---------------------------------------------------------------------------

// Registry implements vm.Environment. Names are dotted paths ("ui.card").
// Registration is safe alongside compilation in other goroutines; a
// program only sees the entries present when it was compiled.
type Registry struct {
	helpers   map[string]vm.Helper
	helpersMu sync.RWMutex

	components   map[string]vm.ComponentDefinition
	componentsMu sync.RWMutex
}

// New creates an empty registry.
func New() *Registry {
	return &Registry{
		helpers:    make(map[string]vm.Helper),
		components: make(map[string]vm.ComponentDefinition),
	}
}

func key(path []string) string {
	return strings.Join(path, ".")
}

// ---------------------------------------------------------------------------
// Helpers
// ---------------------------------------------------------------------------

// RegisterHelper adds or replaces a helper.
func (r *Registry) RegisterHelper(name string, h vm.Helper) {
	r.helpersMu.Lock()
	r.helpers[name] = h
	r.helpersMu.Unlock()
}

// HasHelper reports whether a helper is registered at path.
func (r *Registry) HasHelper(path []string) bool {
	r.helpersMu.RLock()
	defer r.helpersMu.RUnlock()
	_, ok := r.helpers[key(path)]
	return ok
}

// LookupHelper returns the helper at path, or nil.
func (r *Registry) LookupHelper(path []string) vm.Helper {
	r.helpersMu.RLock()
	defer r.helpersMu.RUnlock()
	return r.helpers[key(path)]
}

// HelperNames returns the registered helper names, sorted.
func (r *Registry) HelperNames() []string {
	r.helpersMu.RLock()
	defer r.helpersMu.RUnlock()
	names := make([]string, 0, len(r.helpers))
	for name := range r.helpers {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// ---------------------------------------------------------------------------
// Components
// ---------------------------------------------------------------------------

// RegisterComponent adds or replaces a component definition. An empty
// definition name is filled in from name.
func (r *Registry) RegisterComponent(name string, def vm.ComponentDefinition) {
	if def.Name == "" {
		def.Name = name
	}
	r.componentsMu.Lock()
	r.components[name] = def
	r.componentsMu.Unlock()
}

// HasComponentDefinition reports whether a component is registered at
// path.
func (r *Registry) HasComponentDefinition(path []string, callSite any) bool {
	r.componentsMu.RLock()
	defer r.componentsMu.RUnlock()
	_, ok := r.components[key(path)]
	return ok
}

// GetComponentDefinition returns the component registered at path.
func (r *Registry) GetComponentDefinition(path []string, callSite any) (vm.ComponentDefinition, error) {
	r.componentsMu.RLock()
	defer r.componentsMu.RUnlock()
	def, ok := r.components[key(path)]
	if !ok {
		return vm.ComponentDefinition{}, fmt.Errorf("%s: %w", key(path), ErrNoComponent)
	}
	return def, nil
}

// ComponentNames returns the registered component names, sorted.
func (r *Registry) ComponentNames() []string {
	r.componentsMu.RLock()
	defer r.componentsMu.RUnlock()
	names := make([]string, 0, len(r.components))
	for name := range r.components {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

var _ vm.Environment = (*Registry)(nil)

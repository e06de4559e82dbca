package vm

import (
	"github.com/chazu/tessera/dom"
	"github.com/chazu/tessera/reference"
)

// ---------------------------------------------------------------------------
// Host contracts
// ---------------------------------------------------------------------------

// Helper is a host function callable from templates. It receives the
// current values of its arguments on every evaluation.
type Helper func(positional []any, named map[string]any) any

// Environment resolves helpers and components. The compiler queries it
// once per call site; at runtime it is only handed to component managers.
type Environment interface {
	HasHelper(path []string) bool
	LookupHelper(path []string) Helper
	HasComponentDefinition(path []string, callSite any) bool
	GetComponentDefinition(path []string, callSite any) (ComponentDefinition, error)
}

// ComponentDefinition names a component and the manager that drives it.
// State is opaque to the VM.
type ComponentDefinition struct {
	Name    string
	Manager ComponentManager
	State   any
}

// Destructor tears down a component instance.
type Destructor interface {
	Destroy()
}

// ComponentManager drives the lifecycle of one kind of component. The VM
// calls Create before the layout runs, Update only when GetTag reports a
// change, and DidCreate/DidUpdate once the whole render pass has finished.
// GetDestructor is only consulted when the component is torn down.
type ComponentManager interface {
	PrepareArgs(def ComponentDefinition, args *EvaluatedArgs) (*EvaluatedArgs, error)
	Create(def ComponentDefinition, args *EvaluatedArgs, hasDefaultBlock bool) (any, error)
	LayoutFor(def ComponentDefinition, component any, env Environment) (*Program, error)
	GetSelf(component any) reference.PathReference
	GetTag(component any) reference.Tag

	DidCreateElement(component any, element dom.Node)
	DidRenderLayout(component any, bounds Bounds)
	DidCreate(component any)

	Update(component any, args *EvaluatedArgs) error
	DidUpdateLayout(component any, bounds Bounds)
	DidUpdate(component any)

	GetDestructor(component any) Destructor
}

// Package component provides a manager for template-only components: a
// component is its layout plus the arguments it was invoked with.
package component

import (
	"errors"
	"fmt"
	"strings"
	"sync"

	"github.com/tliron/commonlog"

	"github.com/chazu/tessera/dom"
	"github.com/chazu/tessera/reference"
	"github.com/chazu/tessera/vm"
)

var log = commonlog.GetLogger("tessera.component")

// ErrNoLayout is returned when a definition carries no compiled layout.
var ErrNoLayout = errors.New("component has no layout")

// ---------------------------------------------------------------------------
// Hooks
// ---------------------------------------------------------------------------

// Hooks records lifecycle calls as "<hook> <component>" strings, in call
// order. The zero value is ready to use.
type Hooks struct {
	mu    sync.Mutex
	calls []string
}

func (h *Hooks) record(hook, name string) {
	if h == nil {
		return
	}
	h.mu.Lock()
	h.calls = append(h.calls, hook+" "+name)
	h.mu.Unlock()
}

// Calls returns the recorded calls.
func (h *Hooks) Calls() []string {
	h.mu.Lock()
	defer h.mu.Unlock()
	return append([]string(nil), h.calls...)
}

// Reset forgets the recorded calls.
func (h *Hooks) Reset() {
	h.mu.Lock()
	h.calls = nil
	h.mu.Unlock()
}

// ---------------------------------------------------------------------------
// Component
// ---------------------------------------------------------------------------

// Component is the state of one template-only component instance.
type Component struct {
	Name      string
	Args      *vm.EvaluatedArgs
	HasBlock  bool
	Element   dom.Node
	Bounds    vm.Bounds
	Destroyed bool

	hooks *Hooks
}

// Destroy marks the instance destroyed.
func (c *Component) Destroy() {
	c.Destroyed = true
	c.hooks.record("destroy", c.Name)
}

// self exposes the named arguments without their "@" prefix.
type self struct {
	c *Component
}

func (s self) Value() any {
	out := make(map[string]any, len(s.c.Args.Keys))
	for _, k := range s.c.Args.Keys {
		out[strings.TrimPrefix(k, "@")] = s.c.Args.Named[k].Value()
	}
	return out
}

func (s self) Tag() reference.Tag {
	return s.c.Args.Tag()
}

func (s self) Get(key string) (reference.PathReference, error) {
	if ref, ok := s.c.Args.Named["@"+key]; ok {
		return ref, nil
	}
	return reference.UndefinedReference, nil
}

// ---------------------------------------------------------------------------
// Manager
// ---------------------------------------------------------------------------

// Manager implements vm.ComponentManager for template-only components.
type Manager struct {
	hooks *Hooks
}

// NewManager creates a manager. hooks may be nil.
func NewManager(hooks *Hooks) *Manager {
	return &Manager{hooks: hooks}
}

// Definition returns a definition rendering layout.
func (m *Manager) Definition(name string, layout *vm.Program) vm.ComponentDefinition {
	return vm.ComponentDefinition{Name: name, Manager: m, State: layout}
}

func (m *Manager) PrepareArgs(def vm.ComponentDefinition, args *vm.EvaluatedArgs) (*vm.EvaluatedArgs, error) {
	return args, nil
}

func (m *Manager) Create(def vm.ComponentDefinition, args *vm.EvaluatedArgs, hasDefaultBlock bool) (any, error) {
	m.hooks.record("create", def.Name)
	log.Debugf("create %s (%d args)", def.Name, len(args.Keys))
	return &Component{Name: def.Name, Args: args, HasBlock: hasDefaultBlock, hooks: m.hooks}, nil
}

func (m *Manager) LayoutFor(def vm.ComponentDefinition, component any, env vm.Environment) (*vm.Program, error) {
	p, ok := def.State.(*vm.Program)
	if !ok || p == nil {
		return nil, fmt.Errorf("%s: %w", def.Name, ErrNoLayout)
	}
	return p, nil
}

func (m *Manager) GetSelf(component any) reference.PathReference {
	return self{c: component.(*Component)}
}

func (m *Manager) GetTag(component any) reference.Tag {
	return component.(*Component).Args.Tag()
}

func (m *Manager) DidCreateElement(component any, element dom.Node) {
	c := component.(*Component)
	c.Element = element
	m.hooks.record("didCreateElement", c.Name)
}

func (m *Manager) DidRenderLayout(component any, bounds vm.Bounds) {
	c := component.(*Component)
	c.Bounds = bounds
	m.hooks.record("didRenderLayout", c.Name)
}

func (m *Manager) DidCreate(component any) {
	m.hooks.record("didCreate", component.(*Component).Name)
}

func (m *Manager) Update(component any, args *vm.EvaluatedArgs) error {
	c := component.(*Component)
	c.Args = args
	m.hooks.record("update", c.Name)
	return nil
}

func (m *Manager) DidUpdateLayout(component any, bounds vm.Bounds) {
	c := component.(*Component)
	c.Bounds = bounds
	m.hooks.record("didUpdateLayout", c.Name)
}

func (m *Manager) DidUpdate(component any) {
	m.hooks.record("didUpdate", component.(*Component).Name)
}

func (m *Manager) GetDestructor(component any) vm.Destructor {
	return component.(*Component)
}

var _ vm.ComponentManager = (*Manager)(nil)

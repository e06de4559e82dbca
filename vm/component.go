package vm

import (
	"fmt"
	"strings"

	"github.com/chazu/tessera/reference"
)

// ---------------------------------------------------------------------------
// Component invocation
// ---------------------------------------------------------------------------

// Templates are the blocks passed to a component: Default is what the
// layout's {{yield}} renders, Inverse its {{yield to="inverse"}}.
type Templates struct {
	Default *Block
	Inverse *Block
}

type componentInstance struct {
	manager   ComponentManager
	component any
}

// destroy looks the destructor up only now, at teardown.
func (c *componentInstance) destroy() {
	if d := c.manager.GetDestructor(c.component); d != nil {
		d.Destroy()
	}
}

// OpenComponent pops the invocation arguments, creates the component and
// renders its layout. Shadow names the caller's plain attributes that are
// copied onto the layout's root element.
type OpenComponent struct {
	Definition ComponentDefinition
	Shadow     []string
	Templates  Templates
}

func (OpenComponent) Kind() OpKind { return OpOpenComponent }

func (o OpenComponent) Evaluate(vm *VM) error {
	args, err := vm.popArgs()
	if err != nil {
		return err
	}
	def := o.Definition
	m := def.Manager

	shadow := make([]shadowAttr, len(o.Shadow))
	for i, name := range o.Shadow {
		shadow[i] = shadowAttr{name: name, ref: args.Get("@" + name)}
	}

	prepared, err := m.PrepareArgs(def, args)
	if err != nil {
		return fmt.Errorf("%s: prepare args: %w", def.Name, err)
	}
	component, err := m.Create(def, prepared, o.Templates.Default != nil)
	if err != nil {
		return fmt.Errorf("%s: create: %w", def.Name, err)
	}
	layout, err := m.LayoutFor(def, component, vm.env)
	if err != nil {
		return fmt.Errorf("%s: layout: %w", def.Name, err)
	}

	inst := &componentInstance{manager: m, component: component}
	t := vm.elements.pushBlock()
	t.component = inst
	tag := m.GetTag(component)
	uc := &updatingComponent{
		UpdatingBlock: UpdatingBlock{tracker: t},
		instance:      inst,
		args:          prepared,
		componentTag:  tag,
		componentSnap: reference.Current(),
	}
	vm.updateWith(uc)
	vm.updating = append(vm.updating, &uc.UpdatingBlock)

	scope := NewScope(layout.SymbolCount, m.GetSelf(component))
	for name, slot := range layout.Named {
		scope.Bind(slot, prepared.Get(name))
	}
	caller := vm.scope()
	if slot, ok := layout.Yields["default"]; ok && o.Templates.Default != nil {
		scope.Bind(slot, &Closure{Block: o.Templates.Default, Scope: caller})
	}
	if slot, ok := layout.Yields["inverse"]; ok && o.Templates.Inverse != nil {
		scope.Bind(slot, &Closure{Block: o.Templates.Inverse, Scope: caller})
	}

	prevRoot := vm.elements.root
	vm.elements.root = &componentRoot{instance: inst, shadow: shadow, depth: len(vm.elements.elements)}
	err = vm.invoke(layout.Ops, 0, len(layout.Ops), scope)
	vm.elements.root = prevRoot
	return err
}

func (o OpenComponent) operands() string {
	s := o.Definition.Name
	if len(o.Shadow) > 0 {
		s += " shadow=[" + strings.Join(o.Shadow, " ") + "]"
	}
	if o.Templates.Default != nil {
		s += " default=" + o.Templates.Default.Name
	}
	if o.Templates.Inverse != nil {
		s += " inverse=" + o.Templates.Inverse.Name
	}
	return s
}

// CloseComponent closes the component region and schedules DidCreate.
type CloseComponent struct{}

func (CloseComponent) Kind() OpKind { return OpCloseComponent }

func (CloseComponent) Evaluate(vm *VM) error {
	if len(vm.updating) < 2 {
		return ErrUnbalanced
	}
	b := vm.updating[len(vm.updating)-1]
	vm.updating = vm.updating[:len(vm.updating)-1]
	t := vm.elements.popBlock()
	if t.component == nil || t != b.tracker {
		return fmt.Errorf("close component: %w", ErrUnbalanced)
	}

	inst := t.component
	inst.manager.DidRenderLayout(inst.component, t)
	vm.tx.didCreate(inst)
	b.snapshot = reference.Current()
	return nil
}

// ---------------------------------------------------------------------------
// updatingComponent
// ---------------------------------------------------------------------------

// updatingComponent is the boundary of a component's layout. The manager
// is told to update only when the component's own tag changed.
type updatingComponent struct {
	UpdatingBlock
	instance      *componentInstance
	args          *EvaluatedArgs
	componentTag  reference.Tag
	componentSnap reference.Revision
}

func (c *updatingComponent) Tag() reference.Tag {
	return reference.Combine(c.UpdatingBlock.Tag(), c.componentTag)
}

func (c *updatingComponent) evaluate(u *updater) error {
	if c.Tag().Validate(c.snapshot) {
		u.stats.Skipped++
		return nil
	}
	u.stats.Evaluated++

	m := c.instance.manager
	if !c.componentTag.Validate(c.componentSnap) {
		if err := m.Update(c.instance.component, c.args); err != nil {
			return fmt.Errorf("update component: %w", err)
		}
		c.componentSnap = reference.Current()
	}
	if err := c.evaluateChildren(u); err != nil {
		return err
	}
	m.DidUpdateLayout(c.instance.component, c.tracker)
	u.vm.tx.didUpdate(c.instance)
	c.snapshot = reference.Current()
	return nil
}

// ---------------------------------------------------------------------------
// Render transaction
// ---------------------------------------------------------------------------

// transaction defers DidCreate/DidUpdate to the end of a pass.
type transaction struct {
	created []*componentInstance
	updated []*componentInstance
}

func (tx *transaction) didCreate(c *componentInstance) {
	tx.created = append(tx.created, c)
}

func (tx *transaction) didUpdate(c *componentInstance) {
	tx.updated = append(tx.updated, c)
}

func (tx *transaction) commit() {
	for _, c := range tx.created {
		c.manager.DidCreate(c.component)
	}
	for _, c := range tx.updated {
		c.manager.DidUpdate(c.component)
	}
}

package vm

import (
	"errors"
	"fmt"
	"strings"

	"github.com/chazu/tessera/reference"
)

// Runtime errors raised by individual ops.
var (
	ErrStackUnderflow = errors.New("evaluation stack underflow")
	ErrStackType      = errors.New("unexpected value on evaluation stack")
	ErrNoElement      = errors.New("attribute outside an open element")
	ErrUnbalanced     = errors.New("unbalanced element or region")
)

// ---------------------------------------------------------------------------
// Content
// ---------------------------------------------------------------------------

// Text appends a static text node.
type Text struct {
	Text string
}

func (Text) Kind() OpKind { return OpText }

func (o Text) Evaluate(vm *VM) error {
	vm.elements.appendText(o.Text)
	return nil
}

func (o Text) operands() string { return fmt.Sprintf("%q", o.Text) }

// Comment appends a static comment node.
type Comment struct {
	Text string
}

func (Comment) Kind() OpKind { return OpComment }

func (o Comment) Evaluate(vm *VM) error {
	vm.elements.appendComment(o.Text)
	return nil
}

func (o Comment) operands() string { return fmt.Sprintf("%q", o.Text) }

// Append pops a reference and appends its value. Trusting appends insert
// the value as markup.
type Append struct {
	Trusting bool
}

func (Append) Kind() OpKind { return OpAppend }

func (o Append) Evaluate(vm *VM) error {
	ref, err := vm.popRef()
	if err != nil {
		return err
	}
	value := reference.ToString(ref.Value())
	dynamic := !reference.IsConst(ref.Tag())

	if o.Trusting {
		if !dynamic {
			vm.elements.insertHTML(value)
			return nil
		}
		t := vm.elements.pushBlock()
		vm.elements.insertHTML(value)
		vm.elements.popBlock()
		vm.updateWith(&updateHTML{tree: vm.tree, tracker: t, ref: ref, last: value, snapshot: reference.Current()})
		return nil
	}

	node := vm.elements.appendText(value)
	if dynamic {
		vm.updateWith(&updateText{tree: vm.tree, node: node, ref: ref, last: value, snapshot: reference.Current()})
	}
	return nil
}

func (o Append) operands() string {
	if o.Trusting {
		return "trusting"
	}
	return ""
}

// ---------------------------------------------------------------------------
// Stack
// ---------------------------------------------------------------------------

// PutValue pushes the reference an expression evaluates to.
type PutValue struct {
	Expression CompiledExpression
}

func (PutValue) Kind() OpKind { return OpPutValue }

func (o PutValue) Evaluate(vm *VM) error {
	ref, err := o.Expression.Evaluate(vm)
	if err != nil {
		return err
	}
	vm.push(ref)
	return nil
}

func (o PutValue) operands() string { return fmt.Sprint(o.Expression) }

// PutArgs pushes evaluated arguments.
type PutArgs struct {
	Args CompiledArgs
}

func (PutArgs) Kind() OpKind { return OpPutArgs }

func (o PutArgs) Evaluate(vm *VM) error {
	args, err := o.Args.Evaluate(vm)
	if err != nil {
		return err
	}
	vm.push(args)
	return nil
}

func (o PutArgs) operands() string { return o.Args.String() }

// Dup duplicates the top of the stack.
type Dup struct{}

func (Dup) Kind() OpKind { return OpDup }

func (Dup) Evaluate(vm *VM) error {
	v, err := vm.pop()
	if err != nil {
		return err
	}
	vm.push(v)
	vm.push(v)
	return nil
}

// Pop discards the top of the stack.
type Pop struct{}

func (Pop) Kind() OpKind { return OpPop }

func (Pop) Evaluate(vm *VM) error {
	_, err := vm.pop()
	return err
}

// Test replaces the top reference with a reference to its truthiness.
type Test struct{}

func (Test) Kind() OpKind { return OpTest }

func (Test) Evaluate(vm *VM) error {
	ref, err := vm.popRef()
	if err != nil {
		return err
	}
	vm.push(reference.Truthy(ref))
	return nil
}

// ---------------------------------------------------------------------------
// Control flow
// ---------------------------------------------------------------------------

// Jump continues at Target.
type Jump struct {
	Target int
}

func (Jump) Kind() OpKind { return OpJump }

func (o Jump) Evaluate(vm *VM) error {
	vm.frame().pc = o.Target
	return nil
}

func (o Jump) operands() string { return fmt.Sprintf("-> %d", o.Target) }

// JumpIf pops a reference and jumps when it is truthy.
type JumpIf struct {
	Target int
}

func (JumpIf) Kind() OpKind { return OpJumpIf }

func (o JumpIf) Evaluate(vm *VM) error {
	v, err := vm.branchValue()
	if err != nil {
		return err
	}
	if v {
		vm.frame().pc = o.Target
	}
	return nil
}

func (o JumpIf) operands() string { return fmt.Sprintf("-> %d", o.Target) }

// JumpUnless pops a reference and jumps when it is falsy.
type JumpUnless struct {
	Target int
}

func (JumpUnless) Kind() OpKind { return OpJumpUnless }

func (o JumpUnless) Evaluate(vm *VM) error {
	v, err := vm.branchValue()
	if err != nil {
		return err
	}
	if !v {
		vm.frame().pc = o.Target
	}
	return nil
}

func (o JumpUnless) operands() string { return fmt.Sprintf("-> %d", o.Target) }

// branchValue pops the condition and, unless it is constant, records a
// guard so a change of truthiness re-runs the enclosing region.
func (vm *VM) branchValue() (bool, error) {
	ref, err := vm.popRef()
	if err != nil {
		return false, err
	}
	v := reference.ToBool(ref.Value())
	if !reference.IsConst(ref.Tag()) {
		vm.updateWith(&assertGuard{ref: ref, last: v, snapshot: reference.Current()})
	}
	return v, nil
}

// Enter opens a re-executable region over ops [Begin, End) of the current
// frame.
type Enter struct {
	Begin, End int
}

func (Enter) Kind() OpKind { return OpEnter }

func (o Enter) Evaluate(vm *VM) error {
	f := vm.frame()
	t := vm.elements.pushBlock()
	b := &UpdatingBlock{
		tracker:     t,
		placeholder: true,
		resume:      &resumeState{ops: f.ops, begin: o.Begin, end: o.End, scope: f.scope},
	}
	vm.updateWith(b)
	vm.updating = append(vm.updating, b)
	return nil
}

func (o Enter) operands() string { return fmt.Sprintf("[%d, %d)", o.Begin, o.End) }

// Exit closes the innermost region.
type Exit struct{}

func (Exit) Kind() OpKind { return OpExit }

func (Exit) Evaluate(vm *VM) error {
	if len(vm.updating) < 2 {
		return ErrUnbalanced
	}
	b := vm.updating[len(vm.updating)-1]
	vm.updating = vm.updating[:len(vm.updating)-1]
	vm.finishRegion(b)
	vm.elements.popBlock()
	return nil
}

// finishRegion keeps an empty re-executable region addressable.
func (vm *VM) finishRegion(b *UpdatingBlock) {
	if b.placeholder && b.tracker.First() == nil {
		vm.elements.appendComment("")
	}
	b.snapshot = reference.Current()
}

// ---------------------------------------------------------------------------
// Blocks
// ---------------------------------------------------------------------------

// InvokeBlock pops Args references and runs Block with them bound to its
// parameters. A nil block renders nothing.
type InvokeBlock struct {
	Block *Block
	Args  int
}

func (InvokeBlock) Kind() OpKind { return OpInvokeBlock }

func (o InvokeBlock) Evaluate(vm *VM) error {
	args, err := vm.popRefs(o.Args)
	if err != nil {
		return err
	}
	if o.Block == nil {
		return nil
	}
	return vm.invokeBlock(o.Block, vm.scope(), args)
}

func (o InvokeBlock) operands() string {
	return fmt.Sprintf("%s args=%d", blockName(o.Block), o.Args)
}

// Yield pops Args references and runs the closure bound to Symbol. An
// unbound symbol renders nothing.
type Yield struct {
	Symbol int
	Args   int
}

func (Yield) Kind() OpKind { return OpYield }

func (o Yield) Evaluate(vm *VM) error {
	args, err := vm.popRefs(o.Args)
	if err != nil {
		return err
	}
	c := vm.scope().Block(o.Symbol)
	if c == nil || c.Block == nil {
		return nil
	}
	return vm.invokeBlock(c.Block, c.Scope, args)
}

func (o Yield) operands() string { return fmt.Sprintf("$%d args=%d", o.Symbol, o.Args) }

// Each pops a list reference and runs Default once per item with the item
// and its index bound; Inverse runs when the list is empty. Any change to
// the list re-runs the enclosing region.
type Each struct {
	Default *Block
	Inverse *Block
}

func (Each) Kind() OpKind { return OpEach }

func (o Each) Evaluate(vm *VM) error {
	list, err := vm.popRef()
	if err != nil {
		return err
	}
	if !reference.IsConst(list.Tag()) {
		vm.updateWith(&listGuard{tag: list.Tag(), snapshot: reference.Current()})
	}

	n, _ := reference.Len(list.Value())
	if n == 0 {
		if o.Inverse == nil {
			return nil
		}
		return vm.invokeBlock(o.Inverse, vm.scope(), nil)
	}
	if o.Default == nil {
		return nil
	}

	for i := 0; i < n; i++ {
		idx := i
		item := reference.NewComputed(list.Tag(), func() any {
			return reference.Index(list.Value(), idx)
		})
		args := []reference.PathReference{item, reference.Const(idx)}
		if err := vm.invokeBlock(o.Default, vm.scope(), args); err != nil {
			return err
		}
	}
	return nil
}

func (o Each) operands() string {
	return fmt.Sprintf("%s else %s", blockName(o.Default), blockName(o.Inverse))
}

func blockName(b *Block) string {
	if b == nil {
		return "<none>"
	}
	return b.Name
}

// ---------------------------------------------------------------------------
// Elements
// ---------------------------------------------------------------------------

// OpenElement opens an element; attribute ops follow until FlushElement.
type OpenElement struct {
	Tag string
}

func (OpenElement) Kind() OpKind { return OpOpenElement }

func (o OpenElement) Evaluate(vm *VM) error {
	if vm.elements.constructing != nil {
		return fmt.Errorf("<%s> inside unflushed element: %w", o.Tag, ErrUnbalanced)
	}
	vm.elements.openElement(o.Tag)
	return nil
}

func (o OpenElement) operands() string { return o.Tag }

// StaticAttr sets a literal attribute.
type StaticAttr struct {
	Name      string
	Value     string
	Namespace string
}

func (StaticAttr) Kind() OpKind { return OpStaticAttr }

func (o StaticAttr) Evaluate(vm *VM) error {
	pe := vm.elements.constructing
	if pe == nil {
		return ErrNoElement
	}
	pe.addAttr(o.Name, o.Namespace, reference.Const(o.Value))
	return nil
}

func (o StaticAttr) operands() string { return fmt.Sprintf("%s=%q", qualify(o.Namespace, o.Name), o.Value) }

// DynamicAttr pops a reference and sets an attribute from it.
type DynamicAttr struct {
	Name      string
	Namespace string
}

func (DynamicAttr) Kind() OpKind { return OpDynamicAttr }

func (o DynamicAttr) Evaluate(vm *VM) error {
	pe := vm.elements.constructing
	if pe == nil {
		return ErrNoElement
	}
	ref, err := vm.popRef()
	if err != nil {
		return err
	}
	pe.addAttr(o.Name, o.Namespace, ref)
	return nil
}

func (o DynamicAttr) operands() string { return qualify(o.Namespace, o.Name) }

// DynamicProp pops a reference and assigns it to an element property.
type DynamicProp struct {
	Name string
}

func (DynamicProp) Kind() OpKind { return OpDynamicProp }

func (o DynamicProp) Evaluate(vm *VM) error {
	pe := vm.elements.constructing
	if pe == nil {
		return ErrNoElement
	}
	ref, err := vm.popRef()
	if err != nil {
		return err
	}
	vm.tree.SetProperty(pe.node, o.Name, ref.Value())
	if !reference.IsConst(ref.Tag()) {
		vm.updateWith(&updateProp{tree: vm.tree, element: pe.node, name: o.Name, ref: ref, snapshot: reference.Current()})
	}
	return nil
}

func (o DynamicProp) operands() string { return o.Name }

// AddClass pops a reference and appends it to the class attribute.
type AddClass struct{}

func (AddClass) Kind() OpKind { return OpAddClass }

func (AddClass) Evaluate(vm *VM) error {
	pe := vm.elements.constructing
	if pe == nil {
		return ErrNoElement
	}
	ref, err := vm.popRef()
	if err != nil {
		return err
	}
	pe.addAttr("class", "", ref)
	return nil
}

// FlushElement commits the buffered attributes. On a component's root
// element the caller's attributes are applied last, after
// DidCreateElement.
type FlushElement struct{}

func (FlushElement) Kind() OpKind { return OpFlushElement }

func (FlushElement) Evaluate(vm *VM) error {
	pe := vm.elements.constructing
	if pe == nil {
		return ErrNoElement
	}
	vm.elements.constructing = nil

	if pe.root != nil {
		inst := pe.root.instance
		inst.manager.DidCreateElement(inst.component, pe.node)
		for _, s := range pe.root.shadow {
			pe.addAttr(s.name, "", s.ref)
		}
	}

	for _, a := range pe.attrs {
		v, present := attrValue(a)
		if present {
			vm.tree.SetAttribute(pe.node, a.name, v, a.namespace)
		}

		tags := make([]reference.Tag, len(a.refs))
		for i, r := range a.refs {
			tags[i] = r.Tag()
		}
		tag := reference.Combine(tags...)
		if reference.IsConst(tag) {
			continue
		}
		vm.updateWith(&updateAttr{
			tree:     vm.tree,
			element:  pe.node,
			attr:     a,
			tag:      tag,
			last:     v,
			present:  present,
			snapshot: reference.Current(),
		})
	}
	return nil
}

// CloseElement closes the innermost element.
type CloseElement struct{}

func (CloseElement) Kind() OpKind { return OpCloseElement }

func (CloseElement) Evaluate(vm *VM) error {
	if vm.elements.constructing != nil {
		return fmt.Errorf("close before flush: %w", ErrUnbalanced)
	}
	if !vm.elements.closeElement() {
		return ErrUnbalanced
	}
	return nil
}

func qualify(ns, name string) string {
	if ns == "" {
		return name
	}
	return strings.Join([]string{ns, name}, ":")
}

package vm

import (
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/tliron/commonlog"

	"github.com/chazu/tessera/dom"
	"github.com/chazu/tessera/reference"
)

var log = commonlog.GetLogger("tessera.vm")

// DefaultMaxFrameDepth bounds block nesting during a render.
const DefaultMaxFrameDepth = 1024

// ErrFrameDepth is returned when blocks nest deeper than the configured
// maximum, usually because a component renders itself.
var ErrFrameDepth = errors.New("maximum frame depth exceeded")

// RuntimeError is a failed op, with its position in the running block.
type RuntimeError struct {
	Op  string
	PC  int
	Err error
}

func (e *RuntimeError) Error() string {
	return fmt.Sprintf("%s at %d: %v", e.Op, e.PC, e.Err)
}

func (e *RuntimeError) Unwrap() error {
	return e.Err
}

// ---------------------------------------------------------------------------
// Options
// ---------------------------------------------------------------------------

type options struct {
	maxFrameDepth int
	trace         bool
}

// Option configures a VM.
type Option func(*options)

// WithMaxFrameDepth sets the maximum block nesting depth.
func WithMaxFrameDepth(n int) Option {
	return func(o *options) {
		if n > 0 {
			o.maxFrameDepth = n
		}
	}
}

// WithTrace logs every executed op at debug level.
func WithTrace(on bool) Option {
	return func(o *options) {
		o.trace = on
	}
}

// ---------------------------------------------------------------------------
// VM
// ---------------------------------------------------------------------------

type frame struct {
	ops     []Opcode
	pc, end int
	scope   *Scope
}

// VM renders one program into an output tree and keeps what it needs to
// update that output later. A VM is single-threaded; run one per render.
type VM struct {
	env  Environment
	tree dom.Tree
	opts options

	stack    []any
	frames   []*frame
	elements *elementBuilder
	updating []*UpdatingBlock
	tx       *transaction
}

// New creates a VM that writes through tree.
func New(env Environment, tree dom.Tree, opts ...Option) *VM {
	o := options{maxFrameDepth: DefaultMaxFrameDepth}
	for _, opt := range opts {
		opt(&o)
	}
	return &VM{
		env:   env,
		tree:  tree,
		opts:  o,
		stack: make([]any, 0, 16),
	}
}

// Render runs p with self as the root scope, appending into parent.
func (vm *VM) Render(p *Program, self reference.PathReference, parent dom.Node) (*RenderResult, error) {
	if self == nil {
		self = reference.UndefinedReference
	}
	scope := NewScope(p.SymbolCount, self)
	tracker := &blockTracker{parent: parent}
	root := &UpdatingBlock{
		tracker: tracker,
		resume:  &resumeState{ops: p.Ops, begin: 0, end: len(p.Ops), scope: scope},
	}

	vm.elements = newElementBuilder(vm.tree, parent, nil, tracker)
	vm.updating = []*UpdatingBlock{root}
	vm.stack = vm.stack[:0]
	vm.tx = &transaction{}

	if err := vm.invoke(p.Ops, 0, len(p.Ops), scope); err != nil {
		return nil, err
	}
	if len(vm.updating) != 1 || len(vm.elements.elements) != 0 {
		return nil, fmt.Errorf("render %s: %w", p.Name, ErrUnbalanced)
	}
	root.snapshot = reference.Current()
	vm.tx.commit()
	vm.tx = nil

	r := &RenderResult{ID: uuid.NewString(), vm: vm, root: root}
	log.Debugf("render %s: program %q, %d ops, %d updating ops", r.ID, p.Name, len(p.Ops), len(root.children))
	return r, nil
}

func (vm *VM) frame() *frame {
	return vm.frames[len(vm.frames)-1]
}

func (vm *VM) scope() *Scope {
	return vm.frame().scope
}

// invoke runs ops[begin:end] in a new frame.
func (vm *VM) invoke(ops []Opcode, begin, end int, scope *Scope) error {
	if len(vm.frames) >= vm.opts.maxFrameDepth {
		return ErrFrameDepth
	}
	vm.frames = append(vm.frames, &frame{ops: ops, pc: begin, end: end, scope: scope})
	err := vm.runFrame()
	vm.frames = vm.frames[:len(vm.frames)-1]
	return err
}

func (vm *VM) invokeBlock(b *Block, scope *Scope, args []reference.PathReference) error {
	if len(b.Locals) > 0 {
		scope = scope.Child()
		for i, slot := range b.Locals {
			if i < len(args) {
				scope.Bind(slot, args[i])
			} else {
				scope.Bind(slot, reference.UndefinedReference)
			}
		}
	}
	return vm.invoke(b.Ops, 0, len(b.Ops), scope)
}

// runFrame executes the current frame until its pc leaves the range.
func (vm *VM) runFrame() error {
	f := vm.frame()
	for f.pc < f.end {
		pc := f.pc
		op := f.ops[pc]
		f.pc++

		if vm.opts.trace {
			log.Debugf("%4d %s", pc, describe(op))
		}
		if err := op.Evaluate(vm); err != nil {
			var re *RuntimeError
			if errors.As(err, &re) {
				return err
			}
			return &RuntimeError{Op: op.Kind().Name(), PC: pc, Err: err}
		}
	}
	return nil
}

// reexecute throws b's region away and runs its ops again in place.
func (vm *VM) reexecute(b *UpdatingBlock, u *updater) error {
	u.stats.Reexecuted++
	next := b.tracker.clear(vm.tree)
	b.children = nil

	savedElements, savedUpdating, savedStack := vm.elements, vm.updating, vm.stack
	vm.elements = newElementBuilder(vm.tree, b.tracker.parent, next, b.tracker)
	vm.updating = []*UpdatingBlock{b}
	vm.stack = make([]any, 0, 16)
	defer func() {
		vm.elements, vm.updating, vm.stack = savedElements, savedUpdating, savedStack
	}()

	r := b.resume
	if err := vm.invoke(r.ops, r.begin, r.end, r.scope); err != nil {
		return err
	}
	vm.finishRegion(b)
	return nil
}

// ---------------------------------------------------------------------------
// Evaluation stack
// ---------------------------------------------------------------------------

func (vm *VM) push(v any) {
	vm.stack = append(vm.stack, v)
}

func (vm *VM) pop() (any, error) {
	if len(vm.stack) == 0 {
		return nil, ErrStackUnderflow
	}
	v := vm.stack[len(vm.stack)-1]
	vm.stack = vm.stack[:len(vm.stack)-1]
	return v, nil
}

func (vm *VM) popRef() (reference.PathReference, error) {
	v, err := vm.pop()
	if err != nil {
		return nil, err
	}
	ref, ok := v.(reference.PathReference)
	if !ok {
		return nil, fmt.Errorf("%w: want reference, got %T", ErrStackType, v)
	}
	return ref, nil
}

// popRefs pops n references, returned in push order.
func (vm *VM) popRefs(n int) ([]reference.PathReference, error) {
	if n == 0 {
		return nil, nil
	}
	out := make([]reference.PathReference, n)
	for i := n - 1; i >= 0; i-- {
		ref, err := vm.popRef()
		if err != nil {
			return nil, err
		}
		out[i] = ref
	}
	return out, nil
}

func (vm *VM) popArgs() (*EvaluatedArgs, error) {
	v, err := vm.pop()
	if err != nil {
		return nil, err
	}
	args, ok := v.(*EvaluatedArgs)
	if !ok {
		return nil, fmt.Errorf("%w: want arguments, got %T", ErrStackType, v)
	}
	return args, nil
}

func (vm *VM) updateWith(op updatingOp) {
	vm.updating[len(vm.updating)-1].append(op)
}

// ---------------------------------------------------------------------------
// RenderResult
// ---------------------------------------------------------------------------

// RenderResult is a rendered program that can be brought up to date.
type RenderResult struct {
	ID   string
	vm   *VM
	root *UpdatingBlock
}

// Bounds returns the rendered region.
func (r *RenderResult) Bounds() Bounds {
	return r.root.tracker
}

// Rerender brings the output up to date with the current reference
// values, touching only regions whose tags changed.
func (r *RenderResult) Rerender() (UpdateStats, error) {
	u := &updater{vm: r.vm}
	r.vm.tx = &transaction{}
	defer func() { r.vm.tx = nil }()

	if err := r.root.evaluate(u); err != nil {
		return u.stats, err
	}
	r.vm.tx.commit()
	log.Debugf("rerender %s: evaluated %d, skipped %d, re-executed %d",
		r.ID, u.stats.Evaluated, u.stats.Skipped, u.stats.Reexecuted)
	return u.stats, nil
}

// Destroy removes the rendered output and runs component destructors.
func (r *RenderResult) Destroy() {
	r.root.tracker.clear(r.vm.tree)
	r.root.children = nil
}

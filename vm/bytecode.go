package vm

import (
	"errors"
	"fmt"
)

// ---------------------------------------------------------------------------
// Opcode definitions
// ---------------------------------------------------------------------------

// OpKind identifies an opcode type.
type OpKind byte

// Content
const (
	OpText    OpKind = 0x00 // append a static text node
	OpComment OpKind = 0x01 // append a static comment node
	OpAppend  OpKind = 0x02 // pop reference, append its value as content
)

// Stack Operations
const (
	OpPutValue OpKind = 0x10 // push reference for an expression
	OpPutArgs  OpKind = 0x11 // push evaluated arguments
	OpDup      OpKind = 0x12 // duplicate top of stack
	OpPop      OpKind = 0x13 // discard top of stack
	OpTest     OpKind = 0x14 // replace top reference with its truthiness
)

// Control Flow
const (
	OpJump       OpKind = 0x20 // unconditional jump (absolute target)
	OpJumpIf     OpKind = 0x21 // pop, jump if truthy
	OpJumpUnless OpKind = 0x22 // pop, jump if falsy
	OpEnter      OpKind = 0x23 // open a re-executable region
	OpExit       OpKind = 0x24 // close the innermost region
)

// Blocks
const (
	OpInvokeBlock OpKind = 0x30 // run an inline block (pops N args)
	OpYield       OpKind = 0x31 // run the block bound to a slot (pops N args)
	OpEach        OpKind = 0x32 // pop list, run the block once per item
)

// Elements
const (
	OpOpenElement  OpKind = 0x40 // open element
	OpStaticAttr   OpKind = 0x41 // static attribute
	OpDynamicAttr  OpKind = 0x42 // pop reference, dynamic attribute
	OpDynamicProp  OpKind = 0x43 // pop reference, element property
	OpAddClass     OpKind = 0x44 // pop reference, append class
	OpFlushElement OpKind = 0x45 // commit attributes
	OpCloseElement OpKind = 0x46 // close element
)

// Components
const (
	OpOpenComponent  OpKind = 0x50 // pop args, create component, render layout
	OpCloseComponent OpKind = 0x51 // close component region
)

// ---------------------------------------------------------------------------
// Opcode metadata
// ---------------------------------------------------------------------------

// OpcodeInfo holds metadata about an opcode.
type OpcodeInfo struct {
	Name        string // human-readable name
	StackEffect int    // net effect on stack (-1 = variable)
}

// opcodeTable maps opcodes to their metadata.
var opcodeTable = map[OpKind]OpcodeInfo{
	// Content
	OpText:    {"TEXT", 0},
	OpComment: {"COMMENT", 0},
	OpAppend:  {"APPEND", -1},

	// Stack
	OpPutValue: {"PUT_VALUE", 1},
	OpPutArgs:  {"PUT_ARGS", 1},
	OpDup:      {"DUP", 1},
	OpPop:      {"POP", -1},
	OpTest:     {"TEST", 0},

	// Control flow
	OpJump:       {"JUMP", 0},
	OpJumpIf:     {"JUMP_IF", -1},
	OpJumpUnless: {"JUMP_UNLESS", -1},
	OpEnter:      {"ENTER", 0},
	OpExit:       {"EXIT", 0},

	// Blocks
	OpInvokeBlock: {"INVOKE_BLOCK", -1}, // variable: pops N args
	OpYield:       {"YIELD", -1},        // variable: pops N args
	OpEach:        {"EACH", -1},

	// Elements
	OpOpenElement:  {"OPEN_ELEMENT", 0},
	OpStaticAttr:   {"STATIC_ATTR", 0},
	OpDynamicAttr:  {"DYNAMIC_ATTR", -1},
	OpDynamicProp:  {"DYNAMIC_PROP", -1},
	OpAddClass:     {"ADD_CLASS", -1},
	OpFlushElement: {"FLUSH_ELEMENT", 0},
	OpCloseElement: {"CLOSE_ELEMENT", 0},

	// Components
	OpOpenComponent:  {"OPEN_COMPONENT", -1},
	OpCloseComponent: {"CLOSE_COMPONENT", 0},
}

// Info returns the metadata for an opcode.
func (k OpKind) Info() OpcodeInfo {
	if info, ok := opcodeTable[k]; ok {
		return info
	}
	return OpcodeInfo{Name: fmt.Sprintf("UNKNOWN_%02X", byte(k))}
}

// Name returns the human-readable name for an opcode.
func (k OpKind) Name() string {
	return k.Info().Name
}

// String implements the Stringer interface.
func (k OpKind) String() string {
	return k.Name()
}

// Opcode is one immutable instruction. Evaluate runs it against the VM's
// current frame.
type Opcode interface {
	Kind() OpKind
	Evaluate(vm *VM) error
}

// ---------------------------------------------------------------------------
// Builder: helper for constructing opcode sequences
// ---------------------------------------------------------------------------

// ErrUnresolvedLabel is returned by Build when a jump target was never
// marked.
var ErrUnresolvedLabel = errors.New("unresolved label")

// Label represents a jump target. It resolves to an absolute op index.
type Label struct {
	resolved bool
	position int
}

// Builder accumulates opcodes for one block. Jumps may reference labels
// that are marked later; Build patches every reference.
type Builder struct {
	ops []Opcode
}

// NewBuilder creates a new opcode builder.
func NewBuilder() *Builder {
	return &Builder{ops: make([]Opcode, 0, 32)}
}

// Len returns the current number of ops.
func (b *Builder) Len() int {
	return len(b.ops)
}

// Emit appends an opcode.
func (b *Builder) Emit(op Opcode) {
	b.ops = append(b.ops, op)
}

// NewLabel creates an unresolved label.
func (b *Builder) NewLabel() *Label {
	return &Label{}
}

// Mark resolves a label to the current position.
func (b *Builder) Mark(label *Label) {
	if label.resolved {
		panic("label already resolved")
	}
	label.resolved = true
	label.position = len(b.ops)
}

// Jump emits an unconditional jump to label.
func (b *Builder) Jump(label *Label) {
	b.ops = append(b.ops, &pendingJump{kind: OpJump, target: label})
}

// JumpIf emits a jump taken when the popped reference is truthy.
func (b *Builder) JumpIf(label *Label) {
	b.ops = append(b.ops, &pendingJump{kind: OpJumpIf, target: label})
}

// JumpUnless emits a jump taken when the popped reference is falsy.
func (b *Builder) JumpUnless(label *Label) {
	b.ops = append(b.ops, &pendingJump{kind: OpJumpUnless, target: label})
}

// Enter opens a re-executable region covering [begin, end).
func (b *Builder) Enter(begin, end *Label) {
	b.ops = append(b.ops, &pendingEnter{begin: begin, end: end})
}

// Build resolves every label reference and returns the frozen ops. The
// builder must not be used afterwards.
func (b *Builder) Build() ([]Opcode, error) {
	out := make([]Opcode, len(b.ops))
	for i, op := range b.ops {
		switch p := op.(type) {
		case *pendingJump:
			if !p.target.resolved {
				return nil, fmt.Errorf("%s at %d: %w", p.kind, i, ErrUnresolvedLabel)
			}
			switch p.kind {
			case OpJump:
				out[i] = Jump{Target: p.target.position}
			case OpJumpIf:
				out[i] = JumpIf{Target: p.target.position}
			default:
				out[i] = JumpUnless{Target: p.target.position}
			}
		case *pendingEnter:
			if !p.begin.resolved || !p.end.resolved {
				return nil, fmt.Errorf("ENTER at %d: %w", i, ErrUnresolvedLabel)
			}
			out[i] = Enter{Begin: p.begin.position, End: p.end.position}
		default:
			out[i] = op
		}
	}
	return out, nil
}

// pendingJump and pendingEnter are placeholders replaced by Build.
type pendingJump struct {
	kind   OpKind
	target *Label
}

func (p *pendingJump) Kind() OpKind { return p.kind }

func (p *pendingJump) Evaluate(vm *VM) error {
	return ErrUnresolvedLabel
}

type pendingEnter struct {
	begin, end *Label
}

func (p *pendingEnter) Kind() OpKind { return OpEnter }

func (p *pendingEnter) Evaluate(vm *VM) error {
	return ErrUnresolvedLabel
}

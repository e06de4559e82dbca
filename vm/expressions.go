package vm

import (
	"fmt"
	"strings"

	"github.com/chazu/tessera/reference"
)

// ---------------------------------------------------------------------------
// Compiled expressions
// ---------------------------------------------------------------------------

// CompiledExpression produces a reference in the current scope.
type CompiledExpression interface {
	Evaluate(vm *VM) (reference.PathReference, error)
}

// Value is a literal.
type Value struct {
	V any
}

func (e Value) Evaluate(vm *VM) (reference.PathReference, error) {
	return reference.Const(e.V), nil
}

func (e Value) String() string {
	if reference.IsUndefined(e.V) {
		return "undefined"
	}
	if s, ok := e.V.(string); ok {
		return fmt.Sprintf("%q", s)
	}
	return fmt.Sprintf("%v", e.V)
}

// Undefined is the compiled form of a missing value.
var Undefined CompiledExpression = Value{V: reference.Undefined}

// SelfRef is a path rooted at self.
type SelfRef struct {
	Parts []string
}

func (e SelfRef) Evaluate(vm *VM) (reference.PathReference, error) {
	return reference.GetPath(vm.scope().Self(), e.Parts)
}

func (e SelfRef) String() string {
	if len(e.Parts) == 0 {
		return "self"
	}
	return "self." + strings.Join(e.Parts, ".")
}

// LocalRef is a path rooted at a symbol slot: a block parameter or a
// named argument.
type LocalRef struct {
	Symbol int
	Lookup []string
}

func (e LocalRef) Evaluate(vm *VM) (reference.PathReference, error) {
	return reference.GetPath(vm.scope().Ref(e.Symbol), e.Lookup)
}

func (e LocalRef) String() string {
	s := fmt.Sprintf("$%d", e.Symbol)
	if len(e.Lookup) > 0 {
		s += "." + strings.Join(e.Lookup, ".")
	}
	return s
}

// HelperCall invokes a host helper.
type HelperCall struct {
	Name   string
	Helper Helper
	Args   CompiledArgs
}

func (e HelperCall) Evaluate(vm *VM) (reference.PathReference, error) {
	args, err := e.Args.Evaluate(vm)
	if err != nil {
		return nil, err
	}
	return NewHelperReference(e.Helper, args), nil
}

func (e HelperCall) String() string {
	return fmt.Sprintf("(%s %s)", e.Name, e.Args)
}

// Concat joins the string values of its parts.
type Concat struct {
	Parts []CompiledExpression
}

func (e Concat) Evaluate(vm *VM) (reference.PathReference, error) {
	refs := make([]reference.PathReference, len(e.Parts))
	tags := make([]reference.Tag, len(e.Parts))
	for i, p := range e.Parts {
		ref, err := p.Evaluate(vm)
		if err != nil {
			return nil, err
		}
		refs[i] = ref
		tags[i] = ref.Tag()
	}
	join := func() any {
		var b strings.Builder
		for _, r := range refs {
			b.WriteString(reference.ToString(r.Value()))
		}
		return b.String()
	}

	tag := reference.Combine(tags...)
	if reference.IsConst(tag) {
		return reference.Const(join()), nil
	}
	return reference.NewComputed(tag, join), nil
}

func (e Concat) String() string {
	parts := make([]string, len(e.Parts))
	for i, p := range e.Parts {
		parts[i] = fmt.Sprint(p)
	}
	return "concat(" + strings.Join(parts, ", ") + ")"
}

// ---------------------------------------------------------------------------
// Arguments
// ---------------------------------------------------------------------------

// CompiledArgs are positional and named argument expressions. Named
// arguments keep their source order.
type CompiledArgs struct {
	Positional  []CompiledExpression
	NamedKeys   []string
	NamedValues []CompiledExpression
}

// Evaluate produces the argument references in the current scope.
func (a CompiledArgs) Evaluate(vm *VM) (*EvaluatedArgs, error) {
	pos := make([]reference.PathReference, len(a.Positional))
	for i, e := range a.Positional {
		ref, err := e.Evaluate(vm)
		if err != nil {
			return nil, err
		}
		pos[i] = ref
	}
	values := make([]reference.PathReference, len(a.NamedValues))
	for i, e := range a.NamedValues {
		ref, err := e.Evaluate(vm)
		if err != nil {
			return nil, err
		}
		values[i] = ref
	}
	return NewEvaluatedArgs(pos, a.NamedKeys, values), nil
}

func (a CompiledArgs) String() string {
	var parts []string
	for _, p := range a.Positional {
		parts = append(parts, fmt.Sprint(p))
	}
	for i, k := range a.NamedKeys {
		parts = append(parts, fmt.Sprintf("%s=%v", k, a.NamedValues[i]))
	}
	return "[" + strings.Join(parts, " ") + "]"
}

// EvaluatedArgs are argument references ready to be read.
type EvaluatedArgs struct {
	Positional []reference.PathReference
	Keys       []string
	Named      map[string]reference.PathReference
	tag        reference.Tag
}

// EmptyArgs has no positional or named arguments.
var EmptyArgs = NewEvaluatedArgs(nil, nil, nil)

// NewEvaluatedArgs builds evaluated arguments; values[i] belongs to
// keys[i].
func NewEvaluatedArgs(positional []reference.PathReference, keys []string, values []reference.PathReference) *EvaluatedArgs {
	a := &EvaluatedArgs{
		Positional: positional,
		Named:      make(map[string]reference.PathReference, len(keys)),
	}
	tags := make([]reference.Tag, 0, len(positional)+len(values))
	for _, ref := range positional {
		tags = append(tags, ref.Tag())
	}
	for i, k := range keys {
		if _, dup := a.Named[k]; !dup {
			a.Keys = append(a.Keys, k)
		}
		a.Named[k] = values[i]
		tags = append(tags, values[i].Tag())
	}
	a.tag = reference.Combine(tags...)
	return a
}

// Tag invalidates when any argument does.
func (a *EvaluatedArgs) Tag() reference.Tag {
	return a.tag
}

// Get returns the named argument, or the undefined reference.
func (a *EvaluatedArgs) Get(name string) reference.PathReference {
	if ref, ok := a.Named[name]; ok {
		return ref
	}
	return reference.UndefinedReference
}

// PositionalValues pulls the current positional values.
func (a *EvaluatedArgs) PositionalValues() []any {
	out := make([]any, len(a.Positional))
	for i, ref := range a.Positional {
		out[i] = ref.Value()
	}
	return out
}

// NamedValues pulls the current named values.
func (a *EvaluatedArgs) NamedValues() map[string]any {
	out := make(map[string]any, len(a.Named))
	for k, ref := range a.Named {
		out[k] = ref.Value()
	}
	return out
}

// ---------------------------------------------------------------------------
// HelperReference
// ---------------------------------------------------------------------------

// HelperReference is the result of a helper invocation. The helper runs on
// every Value pull; nothing is cached.
type HelperReference struct {
	helper Helper
	args   *EvaluatedArgs
}

// NewHelperReference binds helper to args.
func NewHelperReference(helper Helper, args *EvaluatedArgs) *HelperReference {
	return &HelperReference{helper: helper, args: args}
}

func (r *HelperReference) Value() any {
	return r.helper(r.args.PositionalValues(), r.args.NamedValues())
}

func (r *HelperReference) Tag() reference.Tag {
	return r.args.Tag()
}

// Get always fails: properties of helper results are not tracked.
func (r *HelperReference) Get(key string) (reference.PathReference, error) {
	return nil, reference.ErrHelperPath
}

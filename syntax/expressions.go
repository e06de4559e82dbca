package syntax

import (
	"fmt"
	"strings"

	"github.com/chazu/tessera/vm"
)

// ---------------------------------------------------------------------------
// Expressions
// ---------------------------------------------------------------------------

// Expression is a decoded expression.
type Expression interface {
	Compile(sink Sink, env vm.Environment) (vm.CompiledExpression, error)
	expression() // marker method
}

// Value is a literal: string, number, boolean or nil.
type Value struct {
	V any
}

func (*Value) expression() {}

func (e *Value) Compile(sink Sink, env vm.Environment) (vm.CompiledExpression, error) {
	return vm.Value{V: e.V}, nil
}

// Undefined is the undefined literal.
type Undefined struct{}

func (*Undefined) expression() {}

func (*Undefined) Compile(sink Sink, env vm.Environment) (vm.CompiledExpression, error) {
	return vm.Undefined, nil
}

// Get is a path whose head may be a block parameter. Unresolved heads
// read from self.
type Get struct {
	Path []string
}

func (*Get) expression() {}

func (e *Get) Compile(sink Sink, env vm.Environment) (vm.CompiledExpression, error) {
	return compileRef(sink, e.Path), nil
}

func compileRef(sink Sink, path []string) vm.CompiledExpression {
	if len(path) == 0 {
		return vm.SelfRef{}
	}
	head, rest := path[0], path[1:]
	if head == "this" {
		return vm.SelfRef{Parts: rest}
	}
	if slot, ok := sink.Symbols().Local(head); ok {
		return vm.LocalRef{Symbol: slot, Lookup: rest}
	}
	return vm.SelfRef{Parts: path}
}

// GetNamedParameter reads a named argument (@name.path). An undeclared
// name compiles to undefined.
type GetNamedParameter struct {
	Path []string
}

func (*GetNamedParameter) expression() {}

func (e *GetNamedParameter) Compile(sink Sink, env vm.Environment) (vm.CompiledExpression, error) {
	if len(e.Path) == 0 {
		return vm.Undefined, nil
	}
	slot, ok := sink.Symbols().Named(lookupName(e.Path[0]))
	if !ok {
		return vm.Undefined, nil
	}
	return vm.LocalRef{Symbol: slot, Lookup: e.Path[1:]}, nil
}

// Unknown is a bare path that is a helper call when the environment has a
// helper by that name, and a reference otherwise.
type Unknown struct {
	Path []string
}

func (*Unknown) expression() {}

func (e *Unknown) Compile(sink Sink, env vm.Environment) (vm.CompiledExpression, error) {
	if env.HasHelper(e.Path) {
		return vm.HelperCall{
			Name:   strings.Join(e.Path, "."),
			Helper: env.LookupHelper(e.Path),
		}, nil
	}
	return compileRef(sink, e.Path), nil
}

// Helper is an explicit helper invocation.
type Helper struct {
	Path []string
	Args Args
}

func (*Helper) expression() {}

func (e *Helper) Compile(sink Sink, env vm.Environment) (vm.CompiledExpression, error) {
	name := strings.Join(e.Path, ".")
	if !env.HasHelper(e.Path) {
		return nil, fmt.Errorf("%s: %w", name, ErrNotAHelper)
	}
	args, err := e.Args.Compile(sink, env)
	if err != nil {
		return nil, err
	}
	return vm.HelperCall{Name: name, Helper: env.LookupHelper(e.Path), Args: args}, nil
}

// Concat joins the string values of its parts.
type Concat struct {
	Parts []Expression
}

func (*Concat) expression() {}

func (e *Concat) Compile(sink Sink, env vm.Environment) (vm.CompiledExpression, error) {
	parts := make([]vm.CompiledExpression, len(e.Parts))
	for i, p := range e.Parts {
		c, err := p.Compile(sink, env)
		if err != nil {
			return nil, err
		}
		parts[i] = c
	}
	return vm.Concat{Parts: parts}, nil
}

// ---------------------------------------------------------------------------
// Argument containers
// ---------------------------------------------------------------------------

// PositionalArgs is an ordered list of expressions. The zero value is
// empty.
type PositionalArgs struct {
	exprs []Expression
}

// NewPositionalArgs builds a positional list.
func NewPositionalArgs(exprs ...Expression) PositionalArgs {
	if len(exprs) == 0 {
		return PositionalArgs{}
	}
	return PositionalArgs{exprs: append([]Expression(nil), exprs...)}
}

// Len returns the number of arguments.
func (p PositionalArgs) Len() int { return len(p.exprs) }

// At returns argument i.
func (p PositionalArgs) At(i int) Expression { return p.exprs[i] }

// Compile compiles every argument.
func (p PositionalArgs) Compile(sink Sink, env vm.Environment) ([]vm.CompiledExpression, error) {
	if len(p.exprs) == 0 {
		return nil, nil
	}
	out := make([]vm.CompiledExpression, len(p.exprs))
	for i, e := range p.exprs {
		c, err := e.Compile(sink, env)
		if err != nil {
			return nil, err
		}
		out[i] = c
	}
	return out, nil
}

// NamedArgs maps names to expressions in first-seen order. A repeated key
// keeps its first position and its last value. The zero value is empty.
type NamedArgs struct {
	keys   []string
	values []Expression
}

// NewNamedArgs builds named arguments; values[i] belongs to keys[i].
func NewNamedArgs(keys []string, values []Expression) NamedArgs {
	var n NamedArgs
	for i, k := range keys {
		if j := n.index(k); j >= 0 {
			n.values[j] = values[i]
			continue
		}
		n.keys = append(n.keys, k)
		n.values = append(n.values, values[i])
	}
	return n
}

func (n NamedArgs) index(key string) int {
	for i, k := range n.keys {
		if k == key {
			return i
		}
	}
	return -1
}

// Len returns the number of distinct keys.
func (n NamedArgs) Len() int { return len(n.keys) }

// Keys returns the keys in order.
func (n NamedArgs) Keys() []string { return append([]string(nil), n.keys...) }

// Get returns the expression for key.
func (n NamedArgs) Get(key string) (Expression, bool) {
	if i := n.index(key); i >= 0 {
		return n.values[i], true
	}
	return nil, false
}

// Compile compiles every value, keeping key order.
func (n NamedArgs) Compile(sink Sink, env vm.Environment) ([]string, []vm.CompiledExpression, error) {
	if len(n.keys) == 0 {
		return nil, nil, nil
	}
	values := make([]vm.CompiledExpression, len(n.values))
	for i, e := range n.values {
		c, err := e.Compile(sink, env)
		if err != nil {
			return nil, nil, err
		}
		values[i] = c
	}
	return n.Keys(), values, nil
}

// Args is a positional and named argument pair. The zero value is empty.
type Args struct {
	Positional PositionalArgs
	Named      NamedArgs
}

// Compile compiles both halves.
func (a Args) Compile(sink Sink, env vm.Environment) (vm.CompiledArgs, error) {
	pos, err := a.Positional.Compile(sink, env)
	if err != nil {
		return vm.CompiledArgs{}, err
	}
	keys, values, err := a.Named.Compile(sink, env)
	if err != nil {
		return vm.CompiledArgs{}, err
	}
	return vm.CompiledArgs{Positional: pos, NamedKeys: keys, NamedValues: values}, nil
}

package syntax

import (
	"fmt"
	"strings"

	"github.com/chazu/tessera/vm"
)

// ---------------------------------------------------------------------------
// Lowering: scanned statements to opcodes
// ---------------------------------------------------------------------------

// Lower compiles the statements of one scanned block into sink. The first
// failure is returned located in the named block.
func Lower(block string, stmts []Lowered, sink Sink, env vm.Environment) error {
	for i, st := range stmts {
		if err := st.Compile(sink, env); err != nil {
			return locate(err, loweredKind(st), block, i)
		}
	}
	return nil
}

func loweredKind(l Lowered) string {
	switch st := l.(type) {
	case Statement:
		return st.Kind()
	case *OpenPrimitiveElement:
		return "open-element"
	case *Component:
		return "component"
	case *CurlyComponent, *If, *Unless, *With, *Each:
		return "block"
	}
	return fmt.Sprintf("%T", l)
}

func (st *Text) Compile(sink Sink, env vm.Environment) error {
	sink.Builder().Emit(vm.Text{Text: st.Content})
	return nil
}

func (st *Comment) Compile(sink Sink, env vm.Environment) error {
	sink.Builder().Emit(vm.Comment{Text: st.Value})
	return nil
}

func (st *Append) Compile(sink Sink, env vm.Environment) error {
	if err := putValue(sink, env, st.Value); err != nil {
		return err
	}
	sink.Builder().Emit(vm.Append{Trusting: st.Trusting})
	return nil
}

// Compile resolves the target block at compile time. An undeclared target
// compiles to slot 0, which never holds a block.
func (st *Yield) Compile(sink Sink, env vm.Environment) error {
	for i := 0; i < st.Params.Len(); i++ {
		if err := putValue(sink, env, st.Params.At(i)); err != nil {
			return err
		}
	}
	to := st.To
	if to == "" {
		to = "default"
	}
	slot, ok := sink.Symbols().Yield(to)
	if !ok {
		slot = 0
	}
	sink.Builder().Emit(vm.Yield{Symbol: slot, Args: st.Params.Len()})
	return nil
}

func (st *CloseElement) Compile(sink Sink, env vm.Environment) error {
	sink.Builder().Emit(vm.CloseElement{})
	return nil
}

func (st *OpenPrimitiveElement) Compile(sink Sink, env vm.Environment) error {
	b := sink.Builder()
	b.Emit(vm.OpenElement{Tag: st.Tag})
	for _, a := range st.Attributes {
		if err := a.compileAttr(sink, env); err != nil {
			return err
		}
	}
	b.Emit(vm.FlushElement{})
	return nil
}

func (a *StaticAttr) compileAttr(sink Sink, env vm.Environment) error {
	sink.Builder().Emit(vm.StaticAttr{Name: a.Name, Value: a.Value, Namespace: a.Namespace})
	return nil
}

func (a *DynamicAttr) compileAttr(sink Sink, env vm.Environment) error {
	if err := putValue(sink, env, a.Value); err != nil {
		return err
	}
	sink.Builder().Emit(vm.DynamicAttr{Name: a.Name, Namespace: a.Namespace})
	return nil
}

func (a *DynamicProp) compileAttr(sink Sink, env vm.Environment) error {
	if err := putValue(sink, env, a.Value); err != nil {
		return err
	}
	sink.Builder().Emit(vm.DynamicProp{Name: a.Name})
	return nil
}

func (a *AddClass) compileAttr(sink Sink, env vm.Environment) error {
	if err := putValue(sink, env, a.Value); err != nil {
		return err
	}
	sink.Builder().Emit(vm.AddClass{})
	return nil
}

// Compile turns the attributes into named arguments and the body into the
// default block, then invokes the component.
func (st *Component) Compile(sink Sink, env vm.Environment) error {
	def, err := env.GetComponentDefinition([]string{st.Tag}, st)
	if err != nil {
		return fmt.Errorf("<%s>: %w: %w", st.Tag, ErrUnknownComponent, err)
	}

	var keys []string
	var values []Expression
	var shadow []string
	for _, a := range st.Attributes {
		key, value := a.LookupName(), a.argValue()
		if i := indexOf(keys, key); i >= 0 && key == "@class" {
			values[i] = &Concat{Parts: []Expression{values[i], &Value{V: " "}, value}}
		} else {
			keys = append(keys, key)
			values = append(values, value)
		}
		if name, ok := a.shadowName(); ok && indexOf(shadow, name) < 0 {
			shadow = append(shadow, name)
		}
	}

	args, err := Args{Named: NewNamedArgs(keys, values)}.Compile(sink, env)
	if err != nil {
		return err
	}
	body, err := compileBlock(sink, st.Body)
	if err != nil {
		return err
	}

	b := sink.Builder()
	b.Emit(vm.PutArgs{Args: args})
	b.Emit(vm.OpenComponent{Definition: def, Shadow: shadow, Templates: vm.Templates{Default: body}})
	b.Emit(vm.CloseComponent{})
	return nil
}

// Compile passes the hash as @-named arguments and the blocks as the
// default and inverse templates.
func (st *CurlyComponent) Compile(sink Sink, env vm.Environment) error {
	def, err := env.GetComponentDefinition(st.Path, st)
	if err != nil {
		return fmt.Errorf("{{#%s}}: %w: %w", strings.Join(st.Path, "."), ErrUnknownComponent, err)
	}

	keys := st.Args.Named.Keys()
	values := make([]Expression, len(keys))
	for i, k := range keys {
		values[i], _ = st.Args.Named.Get(k)
		keys[i] = lookupName(k)
	}
	args, err := Args{Positional: st.Args.Positional, Named: NewNamedArgs(keys, values)}.Compile(sink, env)
	if err != nil {
		return err
	}

	def2, err := compileBlock(sink, st.Default)
	if err != nil {
		return err
	}
	inv, err := compileBlock(sink, st.Inverse)
	if err != nil {
		return err
	}

	b := sink.Builder()
	b.Emit(vm.PutArgs{Args: args})
	b.Emit(vm.OpenComponent{Definition: def, Templates: vm.Templates{Default: def2, Inverse: inv}})
	b.Emit(vm.CloseComponent{})
	return nil
}

// ---------------------------------------------------------------------------
// Macros
// ---------------------------------------------------------------------------

func (st *If) Compile(sink Sink, env vm.Environment) error {
	return compileConditional(sink, env, st.Condition, st.Default, st.Inverse, false)
}

func (st *Unless) Compile(sink Sink, env vm.Environment) error {
	return compileConditional(sink, env, st.Condition, st.Default, st.Inverse, true)
}

// compileConditional emits
//
//	ENTER(BEGIN, END)
//	BEGIN: PUT_VALUE cond; TEST; JUMP_UNLESS ELSE
//	       INVOKE_BLOCK default; JUMP END
//	ELSE:  INVOKE_BLOCK inverse
//	END:   EXIT
//
// with JUMP_IF in place of JUMP_UNLESS when negated.
func compileConditional(sink Sink, env vm.Environment, cond Expression, def, inv *ScannedBlock, negate bool) error {
	defBlock, err := compileBlock(sink, def)
	if err != nil {
		return err
	}
	invBlock, err := compileBlock(sink, inv)
	if err != nil {
		return err
	}

	b := sink.Builder()
	begin, elseL, end := b.NewLabel(), b.NewLabel(), b.NewLabel()
	b.Enter(begin, end)
	b.Mark(begin)
	if err := putValue(sink, env, cond); err != nil {
		return err
	}
	b.Emit(vm.Test{})
	if negate {
		b.JumpIf(elseL)
	} else {
		b.JumpUnless(elseL)
	}
	if defBlock != nil {
		b.Emit(vm.InvokeBlock{Block: defBlock})
	}
	b.Jump(end)
	b.Mark(elseL)
	if invBlock != nil {
		b.Emit(vm.InvokeBlock{Block: invBlock})
	}
	b.Mark(end)
	b.Emit(vm.Exit{})
	return nil
}

// Compile binds the value to the default block's parameter.
func (st *With) Compile(sink Sink, env vm.Environment) error {
	defBlock, err := compileBlock(sink, st.Default)
	if err != nil {
		return err
	}
	invBlock, err := compileBlock(sink, st.Inverse)
	if err != nil {
		return err
	}

	b := sink.Builder()
	begin, elseL, end := b.NewLabel(), b.NewLabel(), b.NewLabel()
	b.Enter(begin, end)
	b.Mark(begin)
	if err := putValue(sink, env, st.Value); err != nil {
		return err
	}
	b.Emit(vm.Dup{})
	b.Emit(vm.Test{})
	b.JumpUnless(elseL)
	b.Emit(vm.InvokeBlock{Block: defBlock, Args: 1})
	b.Jump(end)
	b.Mark(elseL)
	b.Emit(vm.Pop{})
	if invBlock != nil {
		b.Emit(vm.InvokeBlock{Block: invBlock})
	}
	b.Mark(end)
	b.Emit(vm.Exit{})
	return nil
}

func (st *Each) Compile(sink Sink, env vm.Environment) error {
	defBlock, err := compileBlock(sink, st.Default)
	if err != nil {
		return err
	}
	invBlock, err := compileBlock(sink, st.Inverse)
	if err != nil {
		return err
	}

	b := sink.Builder()
	begin, end := b.NewLabel(), b.NewLabel()
	b.Enter(begin, end)
	b.Mark(begin)
	if err := putValue(sink, env, st.List); err != nil {
		return err
	}
	b.Emit(vm.Each{Default: defBlock, Inverse: invBlock})
	b.Mark(end)
	b.Emit(vm.Exit{})
	return nil
}

// ---------------------------------------------------------------------------
// Helpers
// ---------------------------------------------------------------------------

func putValue(sink Sink, env vm.Environment, e Expression) error {
	c, err := e.Compile(sink, env)
	if err != nil {
		return err
	}
	sink.Builder().Emit(vm.PutValue{Expression: c})
	return nil
}

func compileBlock(sink Sink, b *ScannedBlock) (*vm.Block, error) {
	if b == nil {
		return nil, nil
	}
	return sink.CompileBlock(b)
}

func indexOf(list []string, s string) int {
	for i, v := range list {
		if v == s {
			return i
		}
	}
	return -1
}

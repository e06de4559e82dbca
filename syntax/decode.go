package syntax

import (
	"fmt"
	"sort"
	"strings"

	"github.com/chazu/tessera/wire"
)

// ---------------------------------------------------------------------------
// Decoder: wire template to syntax graph
// ---------------------------------------------------------------------------

const (
	blockPending = iota
	blockDecoding
	blockDone
)

type decoder struct {
	wire   *wire.Template
	name   string
	blocks []*InlineBlock
	state  []int
}

// Decode builds the syntax graph of a wire template. Side-table blocks
// are decoded as they are referenced; a block that references itself is
// malformed.
func Decode(t *wire.Template, name string) (*Template, error) {
	if t == nil {
		return nil, &DecodeError{Block: name, Index: -1, Reason: "nil template"}
	}
	d := &decoder{
		wire:   t,
		name:   name,
		blocks: make([]*InlineBlock, len(t.Blocks)),
		state:  make([]int, len(t.Blocks)),
	}
	stmts, err := d.statements(name, t.Statements)
	if err != nil {
		return nil, err
	}
	for i := range t.Blocks {
		if _, err := d.block(name, -1, i); err != nil {
			return nil, err
		}
	}
	return &Template{
		Name:       name,
		Statements: stmts,
		Locals:     t.Locals,
		Named:      t.Named,
		Yields:     t.Yields,
		Blocks:     d.blocks,
	}, nil
}

func (d *decoder) block(from string, index, i int) (*InlineBlock, error) {
	if i < 0 || i >= len(d.blocks) {
		return nil, &DecodeError{Block: from, Index: index, Reason: fmt.Sprintf("block index %d out of range", i)}
	}
	switch d.state[i] {
	case blockDone:
		return d.blocks[i], nil
	case blockDecoding:
		return nil, &DecodeError{Block: from, Index: index, Reason: fmt.Sprintf("block %d references itself", i)}
	}
	d.state[i] = blockDecoding
	name := fmt.Sprintf("%s/block[%d]", d.name, i)
	stmts, err := d.statements(name, d.wire.Blocks[i].Statements)
	if err != nil {
		return nil, err
	}
	d.blocks[i] = &InlineBlock{Name: name, Statements: stmts, Locals: d.wire.Blocks[i].Locals}
	d.state[i] = blockDone
	return d.blocks[i], nil
}

// blockRef decodes an optional block index; null means no block.
func (d *decoder) blockRef(from string, index int, v any) (*InlineBlock, error) {
	if v == nil {
		return nil, nil
	}
	i, ok := wire.AsInt(v)
	if !ok {
		return nil, &DecodeError{Block: from, Index: index, Reason: fmt.Sprintf("block index %v is not an integer", v)}
	}
	return d.block(from, index, i)
}

func (d *decoder) statements(block string, raw []any) ([]Statement, error) {
	out := make([]Statement, 0, len(raw))
	for i, r := range raw {
		st, err := d.statement(block, i, r)
		if err != nil {
			return nil, err
		}
		out = append(out, st)
	}
	return out, nil
}

func (d *decoder) statement(block string, index int, raw any) (Statement, error) {
	op, ok := wire.Op(raw)
	if !ok {
		return nil, &DecodeError{Block: block, Index: index, Reason: fmt.Sprintf("not a statement: %v", raw)}
	}
	t := raw.([]any)
	bad := func(format string, args ...any) error {
		return &DecodeError{Block: block, Index: index, Reason: op + ": " + fmt.Sprintf(format, args...)}
	}
	field := func(i int) any {
		if i < len(t) {
			return t[i]
		}
		return nil
	}

	switch op {
	case wire.OpText:
		s, ok := field(1).(string)
		if !ok {
			return nil, bad("content must be a string")
		}
		return &Text{Content: s}, nil

	case wire.OpComment:
		s, ok := field(1).(string)
		if !ok {
			return nil, bad("value must be a string")
		}
		return &Comment{Value: s}, nil

	case wire.OpAppend:
		e, err := d.expression(block, index, field(1))
		if err != nil {
			return nil, err
		}
		trusting, _ := field(2).(bool)
		return &Append{Value: e, Trusting: trusting}, nil

	case wire.OpBlock:
		path, err := d.path(block, index, field(1))
		if err != nil {
			return nil, err
		}
		args, err := d.args(block, index, field(2), field(3))
		if err != nil {
			return nil, err
		}
		def, err := d.blockRef(block, index, field(4))
		if err != nil {
			return nil, err
		}
		inv, err := d.blockRef(block, index, field(5))
		if err != nil {
			return nil, err
		}
		return &Block{Path: path, Args: args, Templates: Templates{Default: def, Inverse: inv}}, nil

	case wire.OpOpenElement:
		tag, ok := field(1).(string)
		if !ok || tag == "" {
			return nil, bad("tag must be a non-empty string")
		}
		params, err := stringList(field(2))
		if err != nil {
			return nil, bad("block params: %v", err)
		}
		return &OpenElement{Tag: tag, BlockParams: params}, nil

	case wire.OpCloseElement:
		return &CloseElement{}, nil

	case wire.OpStaticAttr:
		name, ok := field(1).(string)
		if !ok {
			return nil, bad("name must be a string")
		}
		value, ok := field(2).(string)
		if !ok {
			return nil, bad("value must be a string")
		}
		ns, _ := field(3).(string)
		return &StaticAttr{Name: name, Value: value, Namespace: ns}, nil

	case wire.OpDynamicAttr:
		name, ok := field(1).(string)
		if !ok {
			return nil, bad("name must be a string")
		}
		e, err := d.expression(block, index, field(2))
		if err != nil {
			return nil, err
		}
		ns, _ := field(3).(string)
		return &DynamicAttr{Name: name, Value: e, Namespace: ns}, nil

	case wire.OpDynamicProp:
		name, ok := field(1).(string)
		if !ok {
			return nil, bad("name must be a string")
		}
		e, err := d.expression(block, index, field(2))
		if err != nil {
			return nil, err
		}
		return &DynamicProp{Name: name, Value: e}, nil

	case wire.OpAddClass:
		e, err := d.expression(block, index, field(1))
		if err != nil {
			return nil, err
		}
		return &AddClass{Value: e}, nil

	case wire.OpYield:
		to := "default"
		if v := field(1); v != nil {
			s, ok := v.(string)
			if !ok {
				return nil, bad("target must be a string")
			}
			to = s
		}
		params, err := d.positional(block, index, field(2))
		if err != nil {
			return nil, err
		}
		return &Yield{To: to, Params: params}, nil
	}
	return nil, bad("not a statement")
}

func (d *decoder) expression(block string, index int, raw any) (Expression, error) {
	switch v := raw.(type) {
	case nil, string, bool, float64, int, int64, uint64:
		return &Value{V: v}, nil
	case []any:
	default:
		return nil, &DecodeError{Block: block, Index: index, Reason: fmt.Sprintf("not an expression: %v", raw)}
	}

	op, ok := wire.Op(raw)
	if !ok {
		return nil, &DecodeError{Block: block, Index: index, Reason: fmt.Sprintf("not an expression: %v", raw)}
	}
	t := raw.([]any)
	field := func(i int) any {
		if i < len(t) {
			return t[i]
		}
		return nil
	}

	switch op {
	case wire.OpUndefined:
		return &Undefined{}, nil

	case wire.OpGet, wire.OpUnknown, wire.OpAttr:
		path, err := d.path(block, index, field(1))
		if err != nil {
			return nil, err
		}
		switch op {
		case wire.OpGet:
			return &Get{Path: path}, nil
		case wire.OpUnknown:
			return &Unknown{Path: path}, nil
		}
		path[0] = lookupName(path[0])
		return &GetNamedParameter{Path: path}, nil

	case wire.OpHelper:
		path, err := d.path(block, index, field(1))
		if err != nil {
			return nil, err
		}
		args, err := d.args(block, index, field(2), field(3))
		if err != nil {
			return nil, err
		}
		return &Helper{Path: path, Args: args}, nil

	case wire.OpConcat:
		parts, ok := field(1).([]any)
		if !ok {
			return nil, &DecodeError{Block: block, Index: index, Reason: "concat: parts must be a list"}
		}
		c := &Concat{Parts: make([]Expression, len(parts))}
		for i, p := range parts {
			e, err := d.expression(block, index, p)
			if err != nil {
				return nil, err
			}
			c.Parts[i] = e
		}
		return c, nil
	}
	return nil, &DecodeError{Block: block, Index: index, Reason: op + ": not an expression"}
}

// path accepts a list of segments or a dotted string.
func (d *decoder) path(block string, index int, raw any) ([]string, error) {
	var parts []string
	switch v := raw.(type) {
	case string:
		parts = strings.Split(v, ".")
	case []any:
		var err error
		if parts, err = stringList(v); err != nil {
			return nil, &DecodeError{Block: block, Index: index, Reason: "path: " + err.Error()}
		}
	}
	if len(parts) == 0 || parts[0] == "" {
		return nil, &DecodeError{Block: block, Index: index, Reason: fmt.Sprintf("empty path %v", raw)}
	}
	return parts, nil
}

func (d *decoder) positional(block string, index int, raw any) (PositionalArgs, error) {
	if raw == nil {
		return PositionalArgs{}, nil
	}
	list, ok := raw.([]any)
	if !ok {
		return PositionalArgs{}, &DecodeError{Block: block, Index: index, Reason: "params must be a list"}
	}
	exprs := make([]Expression, len(list))
	for i, r := range list {
		e, err := d.expression(block, index, r)
		if err != nil {
			return PositionalArgs{}, err
		}
		exprs[i] = e
	}
	return NewPositionalArgs(exprs...), nil
}

// named decodes a hash given either as an object, in sorted key order, or
// as a [[keys], [values]] pair.
func (d *decoder) named(block string, index int, raw any) (NamedArgs, error) {
	bad := func(reason string) error {
		return &DecodeError{Block: block, Index: index, Reason: "hash: " + reason}
	}
	var keys []string
	var rawValues []any
	switch v := raw.(type) {
	case nil:
		return NamedArgs{}, nil
	case map[string]any:
		for k := range v {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		for _, k := range keys {
			rawValues = append(rawValues, v[k])
		}
	case []any:
		if len(v) != 2 {
			return NamedArgs{}, bad("expected [keys, values]")
		}
		var err error
		if keys, err = stringList(v[0]); err != nil {
			return NamedArgs{}, bad(err.Error())
		}
		vals, ok := v[1].([]any)
		if !ok && v[1] != nil {
			return NamedArgs{}, bad("values must be a list")
		}
		if len(vals) != len(keys) {
			return NamedArgs{}, bad(fmt.Sprintf("%d keys but %d values", len(keys), len(vals)))
		}
		rawValues = vals
	default:
		return NamedArgs{}, bad("expected an object or [keys, values]")
	}

	values := make([]Expression, len(rawValues))
	for i, r := range rawValues {
		e, err := d.expression(block, index, r)
		if err != nil {
			return NamedArgs{}, err
		}
		values[i] = e
	}
	return NewNamedArgs(keys, values), nil
}

func (d *decoder) args(block string, index int, params, hash any) (Args, error) {
	pos, err := d.positional(block, index, params)
	if err != nil {
		return Args{}, err
	}
	named, err := d.named(block, index, hash)
	if err != nil {
		return Args{}, err
	}
	return Args{Positional: pos, Named: named}, nil
}

// stringList converts a decoded list of strings. nil converts to nil.
func stringList(raw any) ([]string, error) {
	if raw == nil {
		return nil, nil
	}
	list, ok := raw.([]any)
	if !ok {
		return nil, fmt.Errorf("expected a list of strings, got %T", raw)
	}
	out := make([]string, len(list))
	for i, v := range list {
		s, ok := v.(string)
		if !ok {
			return nil, fmt.Errorf("element %d is %T, not a string", i, v)
		}
		out[i] = s
	}
	return out, nil
}

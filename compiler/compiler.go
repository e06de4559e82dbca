// Package compiler lowers wire templates into VM programs.
package compiler

import (
	"fmt"

	"github.com/tliron/commonlog"

	"github.com/chazu/tessera/syntax"
	"github.com/chazu/tessera/vm"
	"github.com/chazu/tessera/wire"
)

var log = commonlog.GetLogger("tessera.compiler")

// ---------------------------------------------------------------------------
// Compiler
// ---------------------------------------------------------------------------

// Compiler compiles templates against one environment. Helper and
// component call sites are resolved while compiling, so a program is only
// valid for the environment it was compiled with.
type Compiler struct {
	env vm.Environment
}

// New creates a compiler for env.
func New(env vm.Environment) *Compiler {
	return &Compiler{env: env}
}

// Env returns the environment the compiler resolves against.
func (c *Compiler) Env() vm.Environment {
	return c.env
}

// Compile decodes and compiles a wire template.
func (c *Compiler) Compile(t *wire.Template, name string) (*vm.Program, error) {
	tpl, err := syntax.Decode(t, name)
	if err != nil {
		return nil, err
	}
	return c.CompileTemplate(tpl)
}

// CompileTemplate compiles a decoded template.
func (c *Compiler) CompileTemplate(tpl *syntax.Template) (*vm.Program, error) {
	symbols := NewSymbolTable(tpl.Locals, tpl.Named, tpl.Yields)

	stmts, err := syntax.NewScanner(tpl.Name, tpl.Statements, c.env).ScanAll()
	if err != nil {
		return nil, err
	}
	block, err := c.lower(tpl.Name, stmts, symbols)
	if err != nil {
		return nil, err
	}

	p := &vm.Program{
		Block:       *block,
		SymbolCount: symbols.Size(),
		Named:       symbols.NamedSlots(),
		Yields:      symbols.YieldSlots(),
	}
	log.Debugf("compiled %s: %d ops, %d symbols", p.Name, p.Size(), p.SymbolCount)
	return p, nil
}

func (c *Compiler) lower(name string, stmts []syntax.Lowered, symbols *SymbolTable) (*vm.Block, error) {
	sink := &blockSink{compiler: c, builder: vm.NewBuilder(), symbols: symbols}
	if err := syntax.Lower(name, stmts, sink, c.env); err != nil {
		return nil, err
	}
	ops, err := sink.builder.Build()
	if err != nil {
		return nil, fmt.Errorf("%s: %w", name, err)
	}
	return &vm.Block{Name: name, Ops: ops}, nil
}

// ---------------------------------------------------------------------------
// blockSink
// ---------------------------------------------------------------------------

// blockSink receives the opcodes of one block and compiles the blocks
// nested in it with child symbol tables.
type blockSink struct {
	compiler *Compiler
	builder  *vm.Builder
	symbols  *SymbolTable
}

func (s *blockSink) Builder() *vm.Builder {
	return s.builder
}

func (s *blockSink) Symbols() syntax.Symbols {
	return s.symbols
}

func (s *blockSink) CompileBlock(b *syntax.ScannedBlock) (*vm.Block, error) {
	child, slots := s.symbols.Child(b.Locals)
	block, err := s.compiler.lower(b.Name, b.Statements, child)
	if err != nil {
		return nil, err
	}
	block.Locals = slots
	return block, nil
}

// ---------------------------------------------------------------------------
// Convenience
// ---------------------------------------------------------------------------

// Compile compiles t against env.
func Compile(t *wire.Template, name string, env vm.Environment) (*vm.Program, error) {
	return New(env).Compile(t, name)
}

// CompileJSON decodes a JSON template and compiles it against env.
func CompileJSON(data []byte, name string, env vm.Environment) (*vm.Program, error) {
	t, err := wire.DecodeJSON(data)
	if err != nil {
		return nil, err
	}
	return Compile(t, name, env)
}

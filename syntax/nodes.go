// Package syntax turns a serialized template into a statement and
// expression graph, scans it into its lowered form, and lowers that form
// into VM opcodes.
package syntax

import (
	"strings"

	"github.com/chazu/tessera/vm"
)

// ---------------------------------------------------------------------------
// Templates and blocks
// ---------------------------------------------------------------------------

// Template is a decoded template.
type Template struct {
	Name       string
	Statements []Statement
	Locals     []string
	Named      []string
	Yields     []string
	Blocks     []*InlineBlock
}

// InlineBlock is a nested block before scanning. Locals are its block
// parameters.
type InlineBlock struct {
	Name       string
	Statements []Statement
	Locals     []string
}

// ScannedBlock is an inline block after scanning.
type ScannedBlock struct {
	Name       string
	Statements []Lowered
	Locals     []string
}

// Templates pairs the default and inverse blocks of a block statement.
// Either may be nil.
type Templates struct {
	Default *InlineBlock
	Inverse *InlineBlock
}

// ---------------------------------------------------------------------------
// Statement interfaces
// ---------------------------------------------------------------------------

// Statement is a decoded statement. Scan consumes any statements that
// belong to it from the scanner and returns its lowered form.
type Statement interface {
	Kind() string
	Scan(s *Scanner) (Lowered, error)
	statement() // marker method
}

// Lowered is a scanned statement, ready to emit opcodes.
type Lowered interface {
	Compile(sink Sink, env vm.Environment) error
	lowered() // marker method
}

// Attribute is a statement that only appears directly after an open
// element.
type Attribute interface {
	Statement
	// LookupName is the named-argument key the attribute becomes when the
	// element is a component.
	LookupName() string
	compileAttr(sink Sink, env vm.Environment) error
	argValue() Expression
	shadowName() (string, bool)
}

// Symbols resolves names to slots at compile time.
type Symbols interface {
	Local(name string) (int, bool)
	Named(name string) (int, bool)
	Yield(name string) (int, bool)
}

// Sink receives the opcodes of one block.
type Sink interface {
	Builder() *vm.Builder
	Symbols() Symbols
	CompileBlock(b *ScannedBlock) (*vm.Block, error)
}

// ---------------------------------------------------------------------------
// Content statements
// ---------------------------------------------------------------------------

// Text is static text.
type Text struct {
	Content string
}

func (*Text) Kind() string { return "text" }
func (*Text) statement()   {}
func (*Text) lowered()     {}

// Append outputs an expression. Trusting appends insert raw markup.
type Append struct {
	Value    Expression
	Trusting bool
}

func (*Append) Kind() string { return "append" }
func (*Append) statement()   {}
func (*Append) lowered()     {}

// Comment is a static comment.
type Comment struct {
	Value string
}

func (*Comment) Kind() string { return "comment" }
func (*Comment) statement()   {}
func (*Comment) lowered()     {}

// Block is a block statement ({{#path ...}}...{{/path}}). It must be
// rewritten by Scan; it has no lowered form of its own.
type Block struct {
	Path      []string
	Args      Args
	Templates Templates
}

func (*Block) Kind() string { return "block" }
func (*Block) statement()   {}

// Yield renders the block bound to To with Params as block arguments.
type Yield struct {
	To     string
	Params PositionalArgs
}

func (*Yield) Kind() string { return "yield" }
func (*Yield) statement()   {}
func (*Yield) lowered()     {}

// ---------------------------------------------------------------------------
// Element statements
// ---------------------------------------------------------------------------

// OpenElement opens an element or, when the tag names a component, a
// component invocation.
type OpenElement struct {
	Tag         string
	BlockParams []string
}

func (*OpenElement) Kind() string { return "open-element" }
func (*OpenElement) statement()   {}

// CloseElement closes the innermost open element.
type CloseElement struct{}

func (*CloseElement) Kind() string { return "close-element" }
func (*CloseElement) statement()   {}
func (*CloseElement) lowered()     {}

// StaticAttr is a literal attribute.
type StaticAttr struct {
	Name      string
	Value     string
	Namespace string
}

func (*StaticAttr) Kind() string { return "static-attr" }
func (*StaticAttr) statement()   {}

func (a *StaticAttr) LookupName() string { return lookupName(a.Name) }
func (a *StaticAttr) argValue() Expression {
	return &Value{V: a.Value}
}

func (a *StaticAttr) shadowName() (string, bool) { return plainName(a.Name) }

// DynamicAttr is an attribute bound to an expression.
type DynamicAttr struct {
	Name      string
	Value     Expression
	Namespace string
}

func (*DynamicAttr) Kind() string { return "dynamic-attr" }
func (*DynamicAttr) statement()   {}

func (a *DynamicAttr) LookupName() string         { return lookupName(a.Name) }
func (a *DynamicAttr) argValue() Expression       { return a.Value }
func (a *DynamicAttr) shadowName() (string, bool) { return plainName(a.Name) }

// DynamicProp sets an element property.
type DynamicProp struct {
	Name  string
	Value Expression
}

func (*DynamicProp) Kind() string { return "dynamic-prop" }
func (*DynamicProp) statement()   {}

func (a *DynamicProp) LookupName() string         { return lookupName(a.Name) }
func (a *DynamicProp) argValue() Expression       { return a.Value }
func (a *DynamicProp) shadowName() (string, bool) { return "", false }

// AddClass appends to the class attribute.
type AddClass struct {
	Value Expression
}

func (*AddClass) Kind() string { return "add-class" }
func (*AddClass) statement()   {}

func (a *AddClass) LookupName() string         { return "@class" }
func (a *AddClass) argValue() Expression       { return a.Value }
func (a *AddClass) shadowName() (string, bool) { return "class", true }

func lookupName(name string) string {
	if strings.HasPrefix(name, "@") {
		return name
	}
	return "@" + name
}

func plainName(name string) (string, bool) {
	if strings.HasPrefix(name, "@") {
		return "", false
	}
	return name, true
}

// ---------------------------------------------------------------------------
// Lowered-only statements
// ---------------------------------------------------------------------------

// OpenPrimitiveElement is a plain element together with its attributes.
// Its body and CloseElement stay in the enclosing statement list.
type OpenPrimitiveElement struct {
	Tag        string
	Attributes []Attribute
}

func (*OpenPrimitiveElement) lowered() {}

// Component is an element-form component invocation. Body is nil when the
// element had no content.
type Component struct {
	Tag        string
	Attributes []Attribute
	Body       *ScannedBlock
}

func (*Component) lowered() {}

// CurlyComponent is a block-form component invocation.
type CurlyComponent struct {
	Path    []string
	Args    Args
	Default *ScannedBlock
	Inverse *ScannedBlock
}

func (*CurlyComponent) lowered() {}

// If renders Default when Condition is truthy, otherwise Inverse.
type If struct {
	Condition Expression
	Default   *ScannedBlock
	Inverse   *ScannedBlock
}

func (*If) lowered() {}

// Unless renders Default when Condition is falsy, otherwise Inverse.
type Unless struct {
	Condition Expression
	Default   *ScannedBlock
	Inverse   *ScannedBlock
}

func (*Unless) lowered() {}

// With renders Default with Value bound to its block parameter when Value
// is truthy, otherwise Inverse.
type With struct {
	Value   Expression
	Default *ScannedBlock
	Inverse *ScannedBlock
}

func (*With) lowered() {}

// Each renders Default once per item of List, binding the item and its
// index; Inverse renders when the list is empty.
type Each struct {
	List    Expression
	Default *ScannedBlock
	Inverse *ScannedBlock
}

func (*Each) lowered() {}

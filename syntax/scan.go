package syntax

import (
	"fmt"
	"strings"

	"github.com/chazu/tessera/vm"
)

// ---------------------------------------------------------------------------
// Scanner
// ---------------------------------------------------------------------------

// Scanner walks the statements of one block. Statements that own the
// statements after them (open elements) pull those from the scanner.
type Scanner struct {
	env   vm.Environment
	block string
	stmts []Statement
	pos   int
	opens []int // indices of open primitive elements
}

// NewScanner creates a scanner over the statements of the named block.
func NewScanner(block string, stmts []Statement, env vm.Environment) *Scanner {
	return &Scanner{env: env, block: block, stmts: stmts}
}

// Env returns the environment used to classify call sites.
func (s *Scanner) Env() vm.Environment {
	return s.env
}

// Next returns the next statement.
func (s *Scanner) Next() (Statement, bool) {
	if s.pos >= len(s.stmts) {
		return nil, false
	}
	st := s.stmts[s.pos]
	s.pos++
	return st, true
}

// Unput pushes the last statement back.
func (s *Scanner) Unput() {
	if s.pos > 0 {
		s.pos--
	}
}

// ScanAll scans the remaining statements.
func (s *Scanner) ScanAll() ([]Lowered, error) {
	var out []Lowered
	for s.pos < len(s.stmts) {
		index := s.pos
		st, _ := s.Next()
		l, err := st.Scan(s)
		if err != nil {
			return nil, locate(err, st.Kind(), s.block, index)
		}
		out = append(out, l)
	}
	if n := len(s.opens); n > 0 {
		return nil, &Error{Kind: "open-element", Block: s.block, Index: s.opens[n-1], Err: ErrUnclosedElement}
	}
	return out, nil
}

// ScanBlock scans a nested block with a scanner of its own. A nil block
// scans to nil.
func (s *Scanner) ScanBlock(b *InlineBlock) (*ScannedBlock, error) {
	if b == nil {
		return nil, nil
	}
	stmts, err := NewScanner(b.Name, b.Statements, s.env).ScanAll()
	if err != nil {
		return nil, err
	}
	return &ScannedBlock{Name: b.Name, Statements: stmts, Locals: b.Locals}, nil
}

// takeAttributes consumes the attributes directly following an open
// element.
func (s *Scanner) takeAttributes() []Attribute {
	var attrs []Attribute
	for {
		st, ok := s.Next()
		if !ok {
			return attrs
		}
		a, isAttr := st.(Attribute)
		if !isAttr {
			s.Unput()
			return attrs
		}
		attrs = append(attrs, a)
	}
}

// takeBody consumes statements up to the close-element matching an open
// element already consumed, and returns them without that close.
func (s *Scanner) takeBody() ([]Statement, error) {
	var body []Statement
	depth := 1
	for {
		st, ok := s.Next()
		if !ok {
			return nil, ErrUnclosedElement
		}
		switch st.(type) {
		case *OpenElement:
			depth++
		case *CloseElement:
			depth--
			if depth == 0 {
				return body, nil
			}
		}
		body = append(body, st)
	}
}

// ---------------------------------------------------------------------------
// Scan methods
// ---------------------------------------------------------------------------

func (st *Text) Scan(s *Scanner) (Lowered, error)    { return st, nil }
func (st *Append) Scan(s *Scanner) (Lowered, error)  { return st, nil }
func (st *Comment) Scan(s *Scanner) (Lowered, error) { return st, nil }
func (st *Yield) Scan(s *Scanner) (Lowered, error)   { return st, nil }

func (st *CloseElement) Scan(s *Scanner) (Lowered, error) {
	if len(s.opens) == 0 {
		return nil, ErrUnmatchedClose
	}
	s.opens = s.opens[:len(s.opens)-1]
	return st, nil
}

func (st *StaticAttr) Scan(s *Scanner) (Lowered, error)  { return nil, ErrStrayAttribute }
func (st *DynamicAttr) Scan(s *Scanner) (Lowered, error) { return nil, ErrStrayAttribute }
func (st *DynamicProp) Scan(s *Scanner) (Lowered, error) { return nil, ErrStrayAttribute }
func (st *AddClass) Scan(s *Scanner) (Lowered, error)    { return nil, ErrStrayAttribute }

// Scan turns the element into a component invocation when the tag names a
// component, pulling its attributes and body; otherwise into a primitive
// element carrying its attributes.
func (st *OpenElement) Scan(s *Scanner) (Lowered, error) {
	index := s.pos - 1
	attrs := s.takeAttributes()

	if s.env.HasComponentDefinition([]string{st.Tag}, st) {
		body, err := s.takeBody()
		if err != nil {
			return nil, err
		}
		var scanned *ScannedBlock
		if len(body) > 0 {
			scanned, err = s.ScanBlock(&InlineBlock{
				Name:       fmt.Sprintf("%s/<%s>", s.block, st.Tag),
				Statements: body,
			})
			if err != nil {
				return nil, err
			}
		}
		return &Component{Tag: st.Tag, Attributes: attrs, Body: scanned}, nil
	}

	s.opens = append(s.opens, index)
	return &OpenPrimitiveElement{Tag: st.Tag, Attributes: attrs}, nil
}

// Scan rewrites the block into a macro or a block-form component.
func (st *Block) Scan(s *Scanner) (Lowered, error) {
	def, err := s.ScanBlock(st.Templates.Default)
	if err != nil {
		return nil, err
	}
	inv, err := s.ScanBlock(st.Templates.Inverse)
	if err != nil {
		return nil, err
	}

	name := strings.Join(st.Path, ".")
	if len(st.Path) == 1 {
		switch name {
		case "if", "unless", "with", "each":
			if st.Args.Positional.Len() != 1 {
				return nil, fmt.Errorf("#%s takes exactly one argument, got %d: %w",
					name, st.Args.Positional.Len(), ErrMalformed)
			}
			arg := st.Args.Positional.At(0)
			switch name {
			case "if":
				return &If{Condition: arg, Default: def, Inverse: inv}, nil
			case "unless":
				return &Unless{Condition: arg, Default: def, Inverse: inv}, nil
			case "with":
				return &With{Value: arg, Default: def, Inverse: inv}, nil
			default:
				return &Each{List: arg, Default: def, Inverse: inv}, nil
			}
		}
	}

	if s.env.HasComponentDefinition(st.Path, st) {
		return &CurlyComponent{Path: st.Path, Args: st.Args, Default: def, Inverse: inv}, nil
	}
	return nil, fmt.Errorf("#%s: %w", name, ErrUnknownBlock)
}

package vm

import "github.com/chazu/tessera/reference"

// Closure is a block together with the scope it was captured in.
type Closure struct {
	Block *Block
	Scope *Scope
}

// Scope holds the slot values of one template invocation. Slot 0 is self;
// the rest hold references (locals, named arguments) or closures (yield
// blocks). A scope is never mutated once ops start reading it: binding a
// block parameter always happens on a fresh child.
type Scope struct {
	slots []any
}

// NewScope creates a scope with size slots after self.
func NewScope(size int, self reference.PathReference) *Scope {
	s := &Scope{slots: make([]any, size+1)}
	s.slots[0] = self
	return s
}

// Self returns the self reference.
func (s *Scope) Self() reference.PathReference {
	if ref, ok := s.slots[0].(reference.PathReference); ok {
		return ref
	}
	return reference.UndefinedReference
}

// Ref returns the reference bound to symbol, or the undefined reference.
func (s *Scope) Ref(symbol int) reference.PathReference {
	if symbol < 0 || symbol >= len(s.slots) {
		return reference.UndefinedReference
	}
	if ref, ok := s.slots[symbol].(reference.PathReference); ok {
		return ref
	}
	return reference.UndefinedReference
}

// Block returns the closure bound to symbol, or nil.
func (s *Scope) Block(symbol int) *Closure {
	if symbol <= 0 || symbol >= len(s.slots) {
		return nil
	}
	c, _ := s.slots[symbol].(*Closure)
	return c
}

// Bind stores v in symbol.
func (s *Scope) Bind(symbol int, v any) {
	if symbol >= len(s.slots) {
		grown := make([]any, symbol+1)
		copy(grown, s.slots)
		s.slots = grown
	}
	s.slots[symbol] = v
}

// Child returns a copy of the scope for binding block parameters.
func (s *Scope) Child() *Scope {
	c := &Scope{slots: make([]any, len(s.slots))}
	copy(c.slots, s.slots)
	return c
}

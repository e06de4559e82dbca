package compiler

import "strings"

// ---------------------------------------------------------------------------
// SymbolTable: compile-time slot assignment
// ---------------------------------------------------------------------------

// SymbolTable maps the names visible in one block to scope slots. All
// tables of a template share one slot space; slot 0 is self. Named
// arguments and yield blocks live on the template's root table and are
// allocated the first time they are referenced. Block parameters are
// allocated when a block is compiled and shadow those of enclosing blocks.
type SymbolTable struct {
	parent *SymbolTable
	root   *SymbolTable
	locals map[string]int

	// root only
	size   int
	named  map[string]int
	yields map[string]int
}

// NewSymbolTable creates a root table. The declared names get the first
// slots, in order.
func NewSymbolTable(locals, named, yields []string) *SymbolTable {
	t := &SymbolTable{
		locals: make(map[string]int),
		named:  make(map[string]int),
		yields: make(map[string]int),
	}
	t.root = t
	for _, name := range locals {
		t.locals[name] = t.allocate()
	}
	for _, name := range named {
		t.Named(name)
	}
	for _, name := range yields {
		t.Yield(name)
	}
	return t
}

func (t *SymbolTable) allocate() int {
	t.root.size++
	return t.root.size
}

// Child creates the table of a nested block with the given parameters and
// returns the slots they were assigned.
func (t *SymbolTable) Child(params []string) (*SymbolTable, []int) {
	c := &SymbolTable{parent: t, root: t.root, locals: make(map[string]int, len(params))}
	var slots []int
	if len(params) > 0 {
		slots = make([]int, len(params))
	}
	for i, name := range params {
		if slot, ok := c.locals[name]; ok {
			slots[i] = slot
			continue
		}
		slots[i] = c.allocate()
		c.locals[name] = slots[i]
	}
	return c, slots
}

// Local resolves a block parameter, innermost block first.
func (t *SymbolTable) Local(name string) (int, bool) {
	for s := t; s != nil; s = s.parent {
		if slot, ok := s.locals[name]; ok {
			return slot, true
		}
	}
	return 0, false
}

// Named resolves a named argument, allocating its slot on first use.
func (t *SymbolTable) Named(name string) (int, bool) {
	if !strings.HasPrefix(name, "@") {
		name = "@" + name
	}
	r := t.root
	if slot, ok := r.named[name]; ok {
		return slot, true
	}
	slot := t.allocate()
	r.named[name] = slot
	return slot, true
}

// Yield resolves a yield target, allocating its slot on first use.
func (t *SymbolTable) Yield(name string) (int, bool) {
	r := t.root
	if slot, ok := r.yields[name]; ok {
		return slot, true
	}
	slot := t.allocate()
	r.yields[name] = slot
	return slot, true
}

// Size returns the number of slots allocated so far, excluding self.
func (t *SymbolTable) Size() int {
	return t.root.size
}

// NamedSlots returns a copy of the named-argument slots.
func (t *SymbolTable) NamedSlots() map[string]int {
	return copySlots(t.root.named)
}

// YieldSlots returns a copy of the yield slots.
func (t *SymbolTable) YieldSlots() map[string]int {
	return copySlots(t.root.yields)
}

func copySlots(m map[string]int) map[string]int {
	if len(m) == 0 {
		return nil
	}
	out := make(map[string]int, len(m))
	for k, v := range m {
		out[k] = v
	}
	return out
}

package vm

// ---------------------------------------------------------------------------
// Compiled programs
// ---------------------------------------------------------------------------

// Block is a compiled inline block. Locals are the slots its positional
// parameters bind to, in declaration order.
type Block struct {
	Name   string
	Ops    []Opcode
	Locals []int
}

// Program is a compiled template: its top-level block plus the slot
// layout of its symbol table. A Program is immutable once built and may
// be rendered by any number of VMs at once.
type Program struct {
	Block

	// SymbolCount is the number of slots, excluding slot 0 (self).
	SymbolCount int

	// Named maps "@name" argument names to slots.
	Named map[string]int

	// Yields maps yield block names ("default", "inverse") to slots.
	Yields map[string]int
}

// Size returns the total number of ops in the program, excluding nested
// blocks.
func (p *Program) Size() int {
	return len(p.Ops)
}

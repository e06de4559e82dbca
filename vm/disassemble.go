package vm

import (
	"fmt"
	"strings"
)

// operandDescriber is implemented by ops that carry operands.
type operandDescriber interface {
	operands() string
}

func describe(op Opcode) string {
	name := op.Kind().Name()
	if d, ok := op.(operandDescriber); ok {
		if s := d.operands(); s != "" {
			return name + " " + s
		}
	}
	return name
}

// Disassemble renders a program and every block it references as text.
func Disassemble(p *Program) string {
	var b strings.Builder
	fmt.Fprintf(&b, "program %s (symbols=%d)\n", p.Name, p.SymbolCount)
	seen := map[*Block]bool{}
	var pending []*Block

	writeOps := func(ops []Opcode) {
		for i, op := range ops {
			fmt.Fprintf(&b, "  %04d %s\n", i, describe(op))
			for _, nb := range referencedBlocks(op) {
				if nb != nil && !seen[nb] {
					seen[nb] = true
					pending = append(pending, nb)
				}
			}
		}
	}

	writeOps(p.Ops)
	for len(pending) > 0 {
		nb := pending[0]
		pending = pending[1:]
		fmt.Fprintf(&b, "block %s (locals=%v)\n", nb.Name, nb.Locals)
		writeOps(nb.Ops)
	}
	return b.String()
}

func referencedBlocks(op Opcode) []*Block {
	switch o := op.(type) {
	case InvokeBlock:
		return []*Block{o.Block}
	case Each:
		return []*Block{o.Default, o.Inverse}
	case OpenComponent:
		return []*Block{o.Templates.Default, o.Templates.Inverse}
	}
	return nil
}

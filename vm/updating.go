package vm

import (
	"errors"

	"github.com/chazu/tessera/dom"
	"github.com/chazu/tessera/reference"
)

// ---------------------------------------------------------------------------
// Updating tree
//
// The initial render records an updating op for everything that may
// change. A re-render walks that tree instead of the opcodes: boundaries
// whose tags are still valid are skipped wholesale, leaves patch the nodes
// they own, and a guard whose condition flipped makes the nearest
// re-executable boundary throw its region away and run its ops again.
// ---------------------------------------------------------------------------

// errRestart asks the nearest re-executable boundary to re-run its ops.
var errRestart = errors.New("restart region")

// UpdateStats counts what a re-render did with each boundary.
type UpdateStats struct {
	Evaluated  int // boundaries whose tags had changed
	Skipped    int // boundaries left untouched
	Reexecuted int // boundaries whose ops ran again
}

type updatingOp interface {
	Tag() reference.Tag
	evaluate(u *updater) error
}

type updater struct {
	vm    *VM
	stats UpdateStats
}

// resumeState is what a re-executable boundary needs to run its ops
// again: the op range and the scope it first ran in.
type resumeState struct {
	ops        []Opcode
	begin, end int
	scope      *Scope
}

// UpdatingBlock is a structural boundary in the updating tree. It owns
// the bounds of its region and the updating ops recorded inside it.
type UpdatingBlock struct {
	children    []updatingOp
	tracker     *blockTracker
	snapshot    reference.Revision
	resume      *resumeState
	placeholder bool
}

// Bounds returns the region owned by the block.
func (b *UpdatingBlock) Bounds() Bounds {
	return b.tracker
}

// Tag invalidates when any op recorded inside the block does.
func (b *UpdatingBlock) Tag() reference.Tag {
	return childrenTag{b: b}
}

func (b *UpdatingBlock) append(op updatingOp) {
	b.children = append(b.children, op)
}

func (b *UpdatingBlock) evaluate(u *updater) error {
	if b.Tag().Validate(b.snapshot) {
		u.stats.Skipped++
		return nil
	}
	u.stats.Evaluated++
	if err := b.evaluateChildren(u); err != nil {
		if errors.Is(err, errRestart) && b.resume != nil {
			return u.vm.reexecute(b, u)
		}
		return err
	}
	b.snapshot = reference.Current()
	return nil
}

func (b *UpdatingBlock) evaluateChildren(u *updater) error {
	for _, c := range b.children {
		if err := c.evaluate(u); err != nil {
			return err
		}
	}
	return nil
}

// childrenTag is computed on every call because the child list changes
// when a block re-executes.
type childrenTag struct {
	b *UpdatingBlock
}

func (t childrenTag) Value() reference.Revision {
	var max reference.Revision
	for _, c := range t.b.children {
		if v := c.Tag().Value(); v > max {
			max = v
		}
	}
	return max
}

func (t childrenTag) Validate(snapshot reference.Revision) bool {
	return t.Value() <= snapshot
}

// ---------------------------------------------------------------------------
// Leaf updaters
// ---------------------------------------------------------------------------

// updateText keeps a dynamic text node in sync with its reference.
type updateText struct {
	tree     dom.Tree
	node     dom.Node
	ref      reference.Reference
	last     string
	snapshot reference.Revision
}

func (o *updateText) Tag() reference.Tag { return o.ref.Tag() }

func (o *updateText) evaluate(u *updater) error {
	if o.ref.Tag().Validate(o.snapshot) {
		return nil
	}
	if v := reference.ToString(o.ref.Value()); v != o.last {
		o.tree.SetText(o.node, v)
		o.last = v
	}
	o.snapshot = reference.Current()
	return nil
}

// updateHTML re-inserts trusted markup when its value changes.
type updateHTML struct {
	tree     dom.Tree
	tracker  *blockTracker
	ref      reference.Reference
	last     string
	snapshot reference.Revision
}

func (o *updateHTML) Tag() reference.Tag { return o.ref.Tag() }

func (o *updateHTML) evaluate(u *updater) error {
	if o.ref.Tag().Validate(o.snapshot) {
		return nil
	}
	if v := reference.ToString(o.ref.Value()); v != o.last {
		next := o.tracker.clear(o.tree)
		first, last := o.tree.InsertHTMLBefore(o.tracker.parent, next, v)
		o.tracker.append(nodeRange{first: first, last: last})
		o.last = v
	}
	o.snapshot = reference.Current()
	return nil
}

// updateAttr keeps one attribute in sync with its references.
type updateAttr struct {
	tree     dom.Tree
	element  dom.Node
	attr     *pendingAttr
	tag      reference.Tag
	last     string
	present  bool
	snapshot reference.Revision
}

func (o *updateAttr) Tag() reference.Tag { return o.tag }

func (o *updateAttr) evaluate(u *updater) error {
	if o.tag.Validate(o.snapshot) {
		return nil
	}
	v, present := attrValue(o.attr)
	switch {
	case !present && o.present:
		o.tree.RemoveAttribute(o.element, o.attr.name, o.attr.namespace)
	case present && (!o.present || v != o.last):
		o.tree.SetAttribute(o.element, o.attr.name, v, o.attr.namespace)
	}
	o.last, o.present = v, present
	o.snapshot = reference.Current()
	return nil
}

// updateProp re-assigns an element property whenever its reference
// invalidates.
type updateProp struct {
	tree     dom.Tree
	element  dom.Node
	name     string
	ref      reference.Reference
	snapshot reference.Revision
}

func (o *updateProp) Tag() reference.Tag { return o.ref.Tag() }

func (o *updateProp) evaluate(u *updater) error {
	if o.ref.Tag().Validate(o.snapshot) {
		return nil
	}
	o.tree.SetProperty(o.element, o.name, o.ref.Value())
	o.snapshot = reference.Current()
	return nil
}

// ---------------------------------------------------------------------------
// Guards
// ---------------------------------------------------------------------------

// assertGuard records the truthiness a branch was taken on.
type assertGuard struct {
	ref      reference.Reference
	last     bool
	snapshot reference.Revision
}

func (o *assertGuard) Tag() reference.Tag { return o.ref.Tag() }

func (o *assertGuard) evaluate(u *updater) error {
	if o.ref.Tag().Validate(o.snapshot) {
		return nil
	}
	if reference.ToBool(o.ref.Value()) != o.last {
		return errRestart
	}
	o.snapshot = reference.Current()
	return nil
}

// listGuard restarts its region whenever the list it iterated changes.
type listGuard struct {
	tag      reference.Tag
	snapshot reference.Revision
}

func (o *listGuard) Tag() reference.Tag { return o.tag }

func (o *listGuard) evaluate(u *updater) error {
	if o.tag.Validate(o.snapshot) {
		return nil
	}
	return errRestart
}

// attrValue computes an attribute's current string value. nil, undefined
// and false remove the attribute; class parts are joined with spaces.
func attrValue(a *pendingAttr) (string, bool) {
	if a.name == "class" {
		var out string
		for _, r := range a.refs {
			v := r.Value()
			if reference.IsNullish(v) || v == false {
				continue
			}
			s := reference.ToString(v)
			if s == "" {
				continue
			}
			if out != "" {
				out += " "
			}
			out += s
		}
		return out, out != ""
	}

	v := a.refs[len(a.refs)-1].Value()
	if reference.IsNullish(v) || v == false {
		return "", false
	}
	return reference.ToString(v), true
}

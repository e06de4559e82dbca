package vm

import (
	"github.com/chazu/tessera/dom"
	"github.com/chazu/tessera/reference"
)

// ---------------------------------------------------------------------------
// Bounds
// ---------------------------------------------------------------------------

// Bounds is a contiguous run of sibling nodes under one parent. First and
// Last are nil for an empty region.
type Bounds interface {
	Parent() dom.Node
	First() dom.Node
	Last() dom.Node
}

// boundsItem is one entry of a tracker: a node, a node range, an element
// with its own content, or a nested tracker.
type boundsItem interface {
	firstNode() dom.Node
	lastNode() dom.Node
	destroy()
}

type singleNode struct {
	node dom.Node
}

func (s singleNode) firstNode() dom.Node { return s.node }
func (s singleNode) lastNode() dom.Node  { return s.node }
func (s singleNode) destroy()            {}

type nodeRange struct {
	first, last dom.Node
}

func (r nodeRange) firstNode() dom.Node { return r.first }
func (r nodeRange) lastNode() dom.Node  { return r.last }
func (r nodeRange) destroy()            {}

// elementItem is an element in its parent's tracker; content tracks the
// element's children.
type elementItem struct {
	node    dom.Node
	content *blockTracker
}

func (e elementItem) firstNode() dom.Node { return e.node }
func (e elementItem) lastNode() dom.Node  { return e.node }
func (e elementItem) destroy()            { e.content.destroy() }

// blockTracker records what a structural region appended. Nested regions
// are kept as items, so first/last are resolved lazily and stay correct
// after a nested region is re-executed.
type blockTracker struct {
	parent    dom.Node
	items     []boundsItem
	component *componentInstance
}

func (t *blockTracker) Parent() dom.Node { return t.parent }

func (t *blockTracker) First() dom.Node {
	for _, it := range t.items {
		if n := it.firstNode(); n != nil {
			return n
		}
	}
	return nil
}

func (t *blockTracker) Last() dom.Node {
	for i := len(t.items) - 1; i >= 0; i-- {
		if n := t.items[i].lastNode(); n != nil {
			return n
		}
	}
	return nil
}

func (t *blockTracker) firstNode() dom.Node { return t.First() }
func (t *blockTracker) lastNode() dom.Node  { return t.Last() }

func (t *blockTracker) append(it boundsItem) {
	t.items = append(t.items, it)
}

// destroy runs destructors for every component inside the region,
// innermost first. Nodes are left in place.
func (t *blockTracker) destroy() {
	for i := len(t.items) - 1; i >= 0; i-- {
		t.items[i].destroy()
	}
	if t.component != nil {
		t.component.destroy()
	}
}

// clear removes the region's nodes, destroys its components and empties
// the tracker. It returns the node that followed the region.
func (t *blockTracker) clear(tree dom.Tree) dom.Node {
	first, last := t.First(), t.Last()
	var next dom.Node
	if last != nil {
		next = last.NextSibling()
	}
	for n := first; n != nil; {
		following := n.NextSibling()
		tree.RemoveChild(t.parent, n)
		if n == last {
			break
		}
		n = following
	}
	t.destroy()
	t.items = nil
	t.component = nil
	return next
}

// ---------------------------------------------------------------------------
// Element builder: the output cursor
// ---------------------------------------------------------------------------

type cursor struct {
	parent, next dom.Node
}

// pendingAttr is an attribute buffered between OpenElement and
// FlushElement. Class attributes collect several references.
type pendingAttr struct {
	name      string
	namespace string
	refs      []reference.Reference
}

type pendingElement struct {
	node  dom.Node
	attrs []*pendingAttr
	root  *componentRoot
}

func (pe *pendingElement) addAttr(name, namespace string, ref reference.Reference) {
	for _, a := range pe.attrs {
		if a.name != name || a.namespace != namespace {
			continue
		}
		if name == "class" {
			a.refs = append(a.refs, ref)
		} else {
			a.refs = []reference.Reference{ref}
		}
		return
	}
	pe.attrs = append(pe.attrs, &pendingAttr{name: name, namespace: namespace, refs: []reference.Reference{ref}})
}

// componentRoot marks the next element opened at depth as the root of a
// component layout.
type componentRoot struct {
	instance *componentInstance
	shadow   []shadowAttr
	depth    int
}

type shadowAttr struct {
	name string
	ref  reference.Reference
}

type elementBuilder struct {
	tree   dom.Tree
	parent dom.Node
	next   dom.Node

	elements []cursor
	blocks   []*blockTracker

	constructing *pendingElement
	root         *componentRoot
}

func newElementBuilder(tree dom.Tree, parent, next dom.Node, tracker *blockTracker) *elementBuilder {
	return &elementBuilder{
		tree:   tree,
		parent: parent,
		next:   next,
		blocks: []*blockTracker{tracker},
	}
}

func (eb *elementBuilder) block() *blockTracker {
	return eb.blocks[len(eb.blocks)-1]
}

func (eb *elementBuilder) appendNode(n dom.Node) {
	eb.tree.InsertBefore(eb.parent, n, eb.next)
	eb.block().append(singleNode{node: n})
}

func (eb *elementBuilder) appendText(text string) dom.Node {
	n := eb.tree.CreateText(text)
	eb.appendNode(n)
	return n
}

func (eb *elementBuilder) appendComment(text string) dom.Node {
	n := eb.tree.CreateComment(text)
	eb.appendNode(n)
	return n
}

func (eb *elementBuilder) insertHTML(html string) (dom.Node, dom.Node) {
	first, last := eb.tree.InsertHTMLBefore(eb.parent, eb.next, html)
	eb.block().append(nodeRange{first: first, last: last})
	return first, last
}

func (eb *elementBuilder) openElement(tag string) *pendingElement {
	el := eb.tree.CreateElement(tag, eb.parent)
	eb.tree.InsertBefore(eb.parent, el, eb.next)
	content := &blockTracker{parent: el}
	eb.block().append(elementItem{node: el, content: content})

	pe := &pendingElement{node: el}
	if eb.root != nil && eb.root.depth == len(eb.elements) {
		pe.root = eb.root
		eb.root = nil
	}

	eb.elements = append(eb.elements, cursor{parent: eb.parent, next: eb.next})
	eb.parent, eb.next = el, nil
	eb.blocks = append(eb.blocks, content)
	eb.constructing = pe
	return pe
}

func (eb *elementBuilder) closeElement() bool {
	if len(eb.elements) == 0 {
		return false
	}
	c := eb.elements[len(eb.elements)-1]
	eb.elements = eb.elements[:len(eb.elements)-1]
	eb.blocks = eb.blocks[:len(eb.blocks)-1]
	eb.parent, eb.next = c.parent, c.next
	return true
}

func (eb *elementBuilder) pushBlock() *blockTracker {
	t := &blockTracker{parent: eb.parent}
	eb.block().append(t)
	eb.blocks = append(eb.blocks, t)
	return t
}

func (eb *elementBuilder) popBlock() *blockTracker {
	t := eb.block()
	eb.blocks = eb.blocks[:len(eb.blocks)-1]
	return t
}

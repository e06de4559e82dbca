package dom

import (
	"html"
	"strings"
)

// ---------------------------------------------------------------------------
// Document: in-memory Tree implementation
// ---------------------------------------------------------------------------

// NodeType identifies the kind of a SimpleNode.
type NodeType int

const (
	ElementNode NodeType = iota
	TextNode
	CommentNode
	RawNode // pre-rendered markup from a trusting append
)

// Attr is one element attribute.
type Attr struct {
	Name      string
	Value     string
	Namespace string
}

// SimpleNode is a node of an in-memory Document.
type SimpleNode struct {
	Type  NodeType
	Tag   string
	Text  string
	Attrs []Attr
	Props map[string]any

	parent      *SimpleNode
	firstChild  *SimpleNode
	lastChild   *SimpleNode
	prevSibling *SimpleNode
	nextSibling *SimpleNode
}

// ParentNode returns the parent, or nil for a detached node.
func (n *SimpleNode) ParentNode() Node {
	if n.parent == nil {
		return nil
	}
	return n.parent
}

// NextSibling returns the next sibling, or nil.
func (n *SimpleNode) NextSibling() Node {
	if n.nextSibling == nil {
		return nil
	}
	return n.nextSibling
}

// FirstChild returns the first child, or nil.
func (n *SimpleNode) FirstChild() *SimpleNode { return n.firstChild }

// Next returns the next sibling as a concrete node.
func (n *SimpleNode) Next() *SimpleNode { return n.nextSibling }

// Children returns a snapshot of the node's children.
func (n *SimpleNode) Children() []*SimpleNode {
	var out []*SimpleNode
	for c := n.firstChild; c != nil; c = c.nextSibling {
		out = append(out, c)
	}
	return out
}

// Attribute returns the value of the named attribute.
func (n *SimpleNode) Attribute(name string) (string, bool) {
	for _, a := range n.Attrs {
		if a.Name == name {
			return a.Value, true
		}
	}
	return "", false
}

// Document is an in-memory output tree with HTML serialization. It is not
// safe for concurrent use; give each VM its own document.
type Document struct{}

// NewDocument creates an empty document.
func NewDocument() *Document {
	return &Document{}
}

// NewElement creates a detached element, usually the render target.
func (d *Document) NewElement(tag string) *SimpleNode {
	return &SimpleNode{Type: ElementNode, Tag: tag}
}

func simple(n Node) *SimpleNode {
	if n == nil {
		return nil
	}
	return n.(*SimpleNode)
}

func (d *Document) CreateElement(tag string, parent Node) Node {
	return &SimpleNode{Type: ElementNode, Tag: tag}
}

func (d *Document) CreateText(text string) Node {
	return &SimpleNode{Type: TextNode, Text: text}
}

func (d *Document) CreateComment(text string) Node {
	return &SimpleNode{Type: CommentNode, Text: text}
}

func (d *Document) InsertBefore(parent, node, reference Node) {
	p, c, ref := simple(parent), simple(node), simple(reference)
	if c.parent != nil {
		d.RemoveChild(c.parent, c)
	}

	c.parent = p
	if ref == nil {
		c.prevSibling = p.lastChild
		if p.lastChild != nil {
			p.lastChild.nextSibling = c
		} else {
			p.firstChild = c
		}
		p.lastChild = c
		return
	}

	c.nextSibling = ref
	c.prevSibling = ref.prevSibling
	if ref.prevSibling != nil {
		ref.prevSibling.nextSibling = c
	} else {
		p.firstChild = c
	}
	ref.prevSibling = c
}

func (d *Document) RemoveChild(parent, node Node) {
	p, c := simple(parent), simple(node)
	if c.prevSibling != nil {
		c.prevSibling.nextSibling = c.nextSibling
	} else {
		p.firstChild = c.nextSibling
	}
	if c.nextSibling != nil {
		c.nextSibling.prevSibling = c.prevSibling
	} else {
		p.lastChild = c.prevSibling
	}
	c.parent, c.prevSibling, c.nextSibling = nil, nil, nil
}

// InsertHTMLBefore stores the markup verbatim in a single raw node; empty
// markup becomes an empty text node so the region stays addressable.
func (d *Document) InsertHTMLBefore(parent, reference Node, markup string) (Node, Node) {
	var n *SimpleNode
	if markup == "" {
		n = &SimpleNode{Type: TextNode}
	} else {
		n = &SimpleNode{Type: RawNode, Text: markup}
	}
	d.InsertBefore(parent, n, reference)
	return n, n
}

func (d *Document) SetText(node Node, text string) {
	simple(node).Text = text
}

func (d *Document) SetAttribute(element Node, name, value, namespace string) {
	el := simple(element)
	for i := range el.Attrs {
		if el.Attrs[i].Name == name && el.Attrs[i].Namespace == namespace {
			el.Attrs[i].Value = value
			return
		}
	}
	el.Attrs = append(el.Attrs, Attr{Name: name, Value: value, Namespace: namespace})
}

func (d *Document) RemoveAttribute(element Node, name, namespace string) {
	el := simple(element)
	for i := range el.Attrs {
		if el.Attrs[i].Name == name && el.Attrs[i].Namespace == namespace {
			el.Attrs = append(el.Attrs[:i], el.Attrs[i+1:]...)
			return
		}
	}
}

func (d *Document) SetProperty(element Node, name string, value any) {
	el := simple(element)
	if el.Props == nil {
		el.Props = make(map[string]any)
	}
	el.Props[name] = value
}

// ---------------------------------------------------------------------------
// Serialization
// ---------------------------------------------------------------------------

// InnerHTML serializes the children of n.
func InnerHTML(n *SimpleNode) string {
	var b strings.Builder
	for c := n.firstChild; c != nil; c = c.nextSibling {
		writeNode(&b, c)
	}
	return b.String()
}

// OuterHTML serializes n itself.
func OuterHTML(n *SimpleNode) string {
	var b strings.Builder
	writeNode(&b, n)
	return b.String()
}

func writeNode(b *strings.Builder, n *SimpleNode) {
	switch n.Type {
	case TextNode:
		b.WriteString(html.EscapeString(n.Text))
	case RawNode:
		b.WriteString(n.Text)
	case CommentNode:
		b.WriteString("<!--")
		b.WriteString(n.Text)
		b.WriteString("-->")
	case ElementNode:
		b.WriteByte('<')
		b.WriteString(n.Tag)
		for _, a := range n.Attrs {
			b.WriteByte(' ')
			if a.Namespace != "" {
				b.WriteString(a.Namespace)
				b.WriteByte(':')
			}
			b.WriteString(a.Name)
			b.WriteString(`="`)
			b.WriteString(html.EscapeString(a.Value))
			b.WriteByte('"')
		}
		b.WriteByte('>')
		for c := n.firstChild; c != nil; c = c.nextSibling {
			writeNode(b, c)
		}
		b.WriteString("</")
		b.WriteString(n.Tag)
		b.WriteByte('>')
	}
}

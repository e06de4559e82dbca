// Package dom defines the output-tree adapter driven by the VM, and an
// in-memory implementation of it.
//
// The VM never inspects nodes beyond parent/sibling navigation; every
// mutation goes through a Tree.
package dom

// Node is an opaque output-tree node.
type Node interface {
	ParentNode() Node
	NextSibling() Node
}

// Tree creates and mutates nodes on behalf of the VM.
type Tree interface {
	CreateElement(tag string, parent Node) Node
	CreateText(text string) Node
	CreateComment(text string) Node

	// InsertBefore inserts node into parent before reference; a nil
	// reference appends.
	InsertBefore(parent, node, reference Node)
	RemoveChild(parent, node Node)

	// InsertHTMLBefore parses markup into parent and returns the first and
	// last inserted nodes. It always inserts at least one node.
	InsertHTMLBefore(parent, reference Node, html string) (first, last Node)

	SetText(node Node, text string)
	SetAttribute(element Node, name, value, namespace string)
	RemoveAttribute(element Node, name, namespace string)
	SetProperty(element Node, name string, value any)
}

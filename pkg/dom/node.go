// Package dom holds the read-only document tree that filters run against.
//
// A tree is rooted at one synthetic document node. Element nodes carry a tag name,
// attributes in authored order and children in document order. Text nodes are leaves.
// Nothing in this package mutates a node after construction, so a tree may be
// filtered and extracted from many goroutines at once.
package dom

import "strings"

// NodeType identifies the variant of a Node
type NodeType uint8

const (
	DocumentNode NodeType = iota
	ElementNode
	TextNode
)

// String returns a lowercase name for the node type
func (t NodeType) String() string {
	switch t {
	case DocumentNode:
		return "document"
	case ElementNode:
		return "element"
	case TextNode:
		return "text"
	default:
		return "unknown"
	}
}

// Attribute is a single name/value pair on an element
type Attribute struct {
	Name  string
	Value string
}

// Node is one vertex of the tree. Each child is owned by exactly one parent and
// there are no back-edges.
type Node struct {
	typ      NodeType
	tag      string
	attrs    []Attribute
	children []*Node
	text     string
}

// NewDocument creates the synthetic root holding top-level nodes
func NewDocument(children ...*Node) *Node {
	return &Node{typ: DocumentNode, children: compact(children)}
}

// NewElement creates an element node. Tag and attribute names are lower-cased;
// when an attribute name repeats after that, the first occurrence wins.
func NewElement(tag string, attrs []Attribute, children ...*Node) *Node {
	var unique []Attribute
	if len(attrs) > 0 {
		unique = make([]Attribute, 0, len(attrs))
		seen := make(map[string]struct{}, len(attrs))
		for _, a := range attrs {
			a.Name = strings.ToLower(a.Name)
			if _, dup := seen[a.Name]; dup {
				continue
			}
			seen[a.Name] = struct{}{}
			unique = append(unique, a)
		}
	}

	return &Node{
		typ:      ElementNode,
		tag:      strings.ToLower(tag),
		attrs:    unique,
		children: compact(children),
	}
}

// NewText creates a text leaf
func NewText(text string) *Node {
	return &Node{typ: TextNode, text: text}
}

// compact drops nil children so traversal never has to check for them
func compact(children []*Node) []*Node {
	if len(children) == 0 {
		return nil
	}
	out := make([]*Node, 0, len(children))
	for _, c := range children {
		if c != nil {
			out = append(out, c)
		}
	}
	return out
}

// Type returns the node variant
func (n *Node) Type() NodeType {
	return n.typ
}

// IsElement reports whether n is an element node
func (n *Node) IsElement() bool {
	return n != nil && n.typ == ElementNode
}

// TagName returns the element tag name, or "" for document and text nodes
func (n *Node) TagName() string {
	return n.tag
}

// Attributes returns a copy of the attributes in stored order
func (n *Node) Attributes() []Attribute {
	if len(n.attrs) == 0 {
		return nil
	}
	out := make([]Attribute, len(n.attrs))
	copy(out, n.attrs)
	return out
}

// Attr returns the value of the named attribute and whether it is present
func (n *Node) Attr(name string) (string, bool) {
	for _, a := range n.attrs {
		if a.Name == name {
			return a.Value, true
		}
	}
	return "", false
}

// HasAttrValue reports whether any attribute, regardless of name, has the given value
func (n *Node) HasAttrValue(value string) bool {
	for _, a := range n.attrs {
		if a.Value == value {
			return true
		}
	}
	return false
}

// Children returns a copy of the child list in document order
func (n *Node) Children() []*Node {
	if len(n.children) == 0 {
		return nil
	}
	out := make([]*Node, len(n.children))
	copy(out, n.children)
	return out
}

// TextContent returns the literal text of a text node and "" for anything else.
// Use Text to collect the text of a whole subtree.
func (n *Node) TextContent() string {
	if n.typ != TextNode {
		return ""
	}
	return n.text
}

// Walk visits n and its descendants in document (depth-first pre-order) order
func (n *Node) Walk(visit func(*Node)) {
	if n == nil {
		return
	}
	visit(n)
	for _, c := range n.children {
		c.Walk(visit)
	}
}

// Nodes lets a single node be used wherever a Selection is expected
func (n *Node) Nodes() []*Node {
	if n == nil {
		return nil
	}
	return []*Node{n}
}

package dom

import "strings"

// Selection is anything that resolves to an ordered list of nodes: a single node or
// the result of a filter. Extraction over a selection concatenates the output of
// every node in order with no separator.
type Selection interface {
	Nodes() []*Node
}

// voidElements never have children or a closing tag in HTML
var voidElements = map[string]bool{
	"area":   true,
	"base":   true,
	"br":     true,
	"col":    true,
	"embed":  true,
	"hr":     true,
	"img":    true,
	"input":  true,
	"link":   true,
	"meta":   true,
	"param":  true,
	"source": true,
	"track":  true,
	"wbr":    true,
}

var attrValueEscaper = strings.NewReplacer(`&`, "&amp;", `"`, "&quot;")

// InnerHTML serializes the children of every selected node.
// Text is written verbatim; only attribute values are escaped.
func InnerHTML(sel Selection) string {
	if sel == nil {
		return ""
	}
	var sb strings.Builder
	for _, n := range sel.Nodes() {
		for _, c := range n.children {
			writeNode(&sb, c)
		}
	}
	return sb.String()
}

// OuterHTML serializes every selected node including its own tags
func OuterHTML(sel Selection) string {
	if sel == nil {
		return ""
	}
	var sb strings.Builder
	for _, n := range sel.Nodes() {
		writeNode(&sb, n)
	}
	return sb.String()
}

// Text concatenates all text found under every selected node, skipping markup.
// Whitespace is kept exactly as the text nodes hold it.
func Text(sel Selection) string {
	if sel == nil {
		return ""
	}
	var sb strings.Builder
	for _, n := range sel.Nodes() {
		n.Walk(func(d *Node) {
			if d.typ == TextNode {
				sb.WriteString(d.text)
			}
		})
	}
	return sb.String()
}

func writeNode(sb *strings.Builder, n *Node) {
	switch n.typ {
	case TextNode:
		sb.WriteString(n.text)
	case DocumentNode:
		for _, c := range n.children {
			writeNode(sb, c)
		}
	case ElementNode:
		sb.WriteByte('<')
		sb.WriteString(n.tag)
		for _, a := range n.attrs {
			sb.WriteByte(' ')
			sb.WriteString(a.Name)
			sb.WriteString(`="`)
			sb.WriteString(attrValueEscaper.Replace(a.Value))
			sb.WriteByte('"')
		}
		sb.WriteByte('>')

		if voidElements[n.tag] {
			return
		}

		for _, c := range n.children {
			writeNode(sb, c)
		}
		sb.WriteString("</")
		sb.WriteString(n.tag)
		sb.WriteByte('>')
	}
}

package filter

import (
	"errors"
	"fmt"

	"github.com/edgecomet/domfilter/pkg/dom"
)

// ErrIndexOutOfRange is returned by Result.At for an index outside [0, Len)
var ErrIndexOutOfRange = errors.New("index out of range")

// Filter walks scope and its descendants in document order and returns every element
// matching p. A non-matching element is still descended into, and a matching element's
// descendants may match too. A nil scope yields an empty result.
func Filter(scope *dom.Node, p Pattern) *Result {
	r := &Result{}
	scope.Walk(func(n *dom.Node) {
		if p.Matches(n) {
			r.nodes = append(r.nodes, n)
		}
	})
	return r
}

// Result is the ordered, read-only set of elements one filter call matched.
// It shares nodes with the tree it was taken from.
type Result struct {
	nodes []*dom.Node
}

// Len returns the number of matched elements
func (r *Result) Len() int {
	if r == nil {
		return 0
	}
	return len(r.nodes)
}

// IsEmpty reports whether nothing matched
func (r *Result) IsEmpty() bool {
	return r.Len() == 0
}

// At returns the i-th match in document order
func (r *Result) At(i int) (*dom.Node, error) {
	if i < 0 || i >= r.Len() {
		return nil, fmt.Errorf("%w: index %d, %d matches", ErrIndexOutOfRange, i, r.Len())
	}
	return r.nodes[i], nil
}

// Nodes returns a copy of the matches in document order
func (r *Result) Nodes() []*dom.Node {
	if r.Len() == 0 {
		return nil
	}
	out := make([]*dom.Node, len(r.nodes))
	copy(out, r.nodes)
	return out
}

// Filter runs p under every match and merges the results. When matches are nested the
// inner subtree is walked more than once, so a node already collected is skipped.
func (r *Result) Filter(p Pattern) *Result {
	out := &Result{}
	if r.Len() == 0 {
		return out
	}

	seen := make(map[*dom.Node]struct{})
	for _, scope := range r.nodes {
		scope.Walk(func(n *dom.Node) {
			if !p.Matches(n) {
				return
			}
			if _, dup := seen[n]; dup {
				return
			}
			seen[n] = struct{}{}
			out.nodes = append(out.nodes, n)
		})
	}
	return out
}

// InnerHTML concatenates the inner markup of every match
func (r *Result) InnerHTML() string {
	return dom.InnerHTML(r)
}

// Text concatenates the text under every match
func (r *Result) Text() string {
	return dom.Text(r)
}

// OuterHTML concatenates the full markup of every match
func (r *Result) OuterHTML() string {
	return dom.OuterHTML(r)
}

// AttrValues returns the value of the named attribute for each match that has it,
// in document order. name is lower-cased like pattern attribute names.
func (r *Result) AttrValues(name string) []string {
	return AttrValues(r, name)
}

// AttrValues lists the named attribute across sel, skipping nodes without it
func AttrValues(sel dom.Selection, name string) []string {
	if sel == nil {
		return nil
	}
	name = nameMatcher(name).Value
	var values []string
	for _, n := range sel.Nodes() {
		if v, ok := n.Attr(name); ok {
			values = append(values, v)
		}
	}
	return values
}

// Package filter finds elements in a dom tree by tag, attribute name and attribute value.
//
// Pattern shapes:
//
//   - Tag("div"): every <div>
//   - TagAttr("div", "id"): every <div> carrying an id attribute, any value
//   - TagAttrValue("div", "id", "x"): every <div> whose id is exactly "x"
//
// Any field given as "" or "*" is a wildcard. A concrete value with a wildcard
// attribute name matches elements where any attribute has that value:
// TagAttrValue("", "", "x") finds every element with some attribute equal to "x".
//
// Tag and attribute names are lower-cased before matching (the parser lower-cases
// them too). Attribute values are compared exactly.
package filter

import (
	"fmt"
	"strings"

	"github.com/edgecomet/domfilter/pkg/dom"
)

// Wildcard matches any value, including absence
const Wildcard = "*"

// MatchKind describes how a single pattern field matches
type MatchKind uint8

const (
	// Absent means the field was not supplied; it matches like Any
	Absent MatchKind = iota
	// Any is an explicit wildcard ("" or "*")
	Any
	// Exact requires string equality
	Exact
)

// Matcher is one normalized field of a Pattern
type Matcher struct {
	Kind  MatchKind
	Value string
}

// IsExact reports whether the matcher constrains its field
func (m Matcher) IsExact() bool {
	return m.Kind == Exact
}

func (m Matcher) String() string {
	switch m.Kind {
	case Exact:
		return m.Value
	case Any:
		return Wildcard
	default:
		return ""
	}
}

// Pattern is the canonical predicate produced from any filter input shape.
// Every combination of fields is valid.
type Pattern struct {
	Tag       Matcher
	AttrName  Matcher
	AttrValue Matcher
}

// All matches every element
func All() Pattern {
	return Pattern{Tag: Matcher{Kind: Any}}
}

// Tag matches elements by tag name only
func Tag(tag string) Pattern {
	return Pattern{Tag: nameMatcher(tag)}
}

// TagAttr matches elements with the given tag that carry the named attribute
func TagAttr(tag, attrName string) Pattern {
	return Pattern{
		Tag:      nameMatcher(tag),
		AttrName: nameMatcher(attrName),
	}
}

// TagAttrValue matches elements with the given tag whose attribute equals value.
// With a wildcard attrName any attribute holding value qualifies.
func TagAttrValue(tag, attrName, attrValue string) Pattern {
	return Pattern{
		Tag:       nameMatcher(tag),
		AttrName:  nameMatcher(attrName),
		AttrValue: valueMatcher(attrValue),
	}
}

// ParseSpec parses the comma form "tag[,attr[,value]]" used by the CLI and HTTP API.
// Fields are trimmed; empty fields are wildcards.
func ParseSpec(spec string) (Pattern, error) {
	parts := strings.Split(spec, ",")
	for i := range parts {
		parts[i] = strings.TrimSpace(parts[i])
	}

	switch len(parts) {
	case 1:
		return Tag(parts[0]), nil
	case 2:
		return TagAttr(parts[0], parts[1]), nil
	case 3:
		return TagAttrValue(parts[0], parts[1], parts[2]), nil
	default:
		return Pattern{}, fmt.Errorf("filter spec %q: expected 1 to 3 comma-separated fields, got %d", spec, len(parts))
	}
}

// FromFields builds a pattern from a positional slice, as decoded from JSON
func FromFields(fields []string) (Pattern, error) {
	switch len(fields) {
	case 1:
		return Tag(fields[0]), nil
	case 2:
		return TagAttr(fields[0], fields[1]), nil
	case 3:
		return TagAttrValue(fields[0], fields[1], fields[2]), nil
	default:
		return Pattern{}, fmt.Errorf("filter expects 1 to 3 fields, got %d", len(fields))
	}
}

func nameMatcher(s string) Matcher {
	if s == "" || s == Wildcard {
		return Matcher{Kind: Any}
	}
	return Matcher{Kind: Exact, Value: strings.ToLower(s)}
}

func valueMatcher(s string) Matcher {
	if s == "" || s == Wildcard {
		return Matcher{Kind: Any}
	}
	return Matcher{Kind: Exact, Value: s}
}

// Matches applies the pattern to a single node. Only element nodes can match.
func (p Pattern) Matches(n *dom.Node) bool {
	if !n.IsElement() {
		return false
	}

	if p.Tag.IsExact() && n.TagName() != p.Tag.Value {
		return false
	}

	if p.AttrName.IsExact() {
		value, ok := n.Attr(p.AttrName.Value)
		if !ok {
			return false
		}
		return !p.AttrValue.IsExact() || value == p.AttrValue.Value
	}

	// Name-agnostic scan across all attributes
	if p.AttrValue.IsExact() {
		return n.HasAttrValue(p.AttrValue.Value)
	}

	return true
}

// String renders the pattern in the comma form accepted by ParseSpec
func (p Pattern) String() string {
	fields := []string{p.Tag.String()}
	if p.AttrName.Kind != Absent || p.AttrValue.Kind != Absent {
		fields = append(fields, p.AttrName.String())
	}
	if p.AttrValue.Kind != Absent {
		fields = append(fields, p.AttrValue.String())
	}
	return strings.Join(fields, ",")
}

// Package pattern matches host names against configured allow and deny lists.
//
// Entry forms:
//
//   - "example.com": case-insensitive exact match
//   - "*.example.com": case-insensitive, * matches any run of characters
//   - "~^api[0-9]+\.example\.com$": case-sensitive regular expression
//   - "~*^API\.": case-insensitive regular expression
package pattern

import (
	"fmt"
	"regexp"
	"strings"
)

// Kind is the matching strategy of a compiled pattern
type Kind int

const (
	KindExact Kind = iota
	KindWildcard
	KindRegexp
)

// Pattern is a compiled list entry
type Pattern struct {
	Original string
	Kind     Kind
	expr     string
	re       *regexp.Regexp
}

// Compile parses one entry; regexps are compiled here so Match never fails
func Compile(s string) (*Pattern, error) {
	if s == "" {
		return nil, fmt.Errorf("pattern cannot be empty")
	}

	p := &Pattern{Original: s}

	switch {
	case strings.HasPrefix(s, "~*"):
		p.Kind = KindRegexp
		p.expr = "(?i)" + s[2:]
	case strings.HasPrefix(s, "~"):
		p.Kind = KindRegexp
		p.expr = s[1:]
	case strings.Contains(s, "*"):
		p.Kind = KindWildcard
		p.expr = strings.ToLower(s)
	default:
		p.Kind = KindExact
		p.expr = s
	}

	if p.Kind == KindRegexp {
		re, err := regexp.Compile(p.expr)
		if err != nil {
			return nil, fmt.Errorf("invalid regexp pattern '%s': %w", s, err)
		}
		p.re = re
	}

	return p, nil
}

// Match reports whether input satisfies the pattern. A nil pattern matches nothing.
func (p *Pattern) Match(input string) bool {
	if p == nil {
		return false
	}

	switch p.Kind {
	case KindRegexp:
		return p.re.MatchString(input)
	case KindWildcard:
		return MatchWildcard(strings.ToLower(input), p.expr)
	default:
		return strings.EqualFold(input, p.expr)
	}
}

// List is an ordered set of compiled patterns
type List []*Pattern

// CompileList compiles every entry, failing on the first invalid one
func CompileList(entries []string) (List, error) {
	if len(entries) == 0 {
		return nil, nil
	}
	list := make(List, 0, len(entries))
	for _, e := range entries {
		p, err := Compile(e)
		if err != nil {
			return nil, err
		}
		list = append(list, p)
	}
	return list, nil
}

// MatchAny reports whether any pattern in the list matches input
func (l List) MatchAny(input string) bool {
	for _, p := range l {
		if p.Match(input) {
			return true
		}
	}
	return false
}

// MatchWildcard matches text against a pattern where * stands for any run of
// characters, including none. The comparison is case-sensitive.
func MatchWildcard(text, pattern string) bool {
	if !strings.Contains(pattern, "*") {
		return text == pattern
	}

	parts := strings.Split(pattern, "*")
	first, last := parts[0], parts[len(parts)-1]

	if len(text) < len(first)+len(last) ||
		!strings.HasPrefix(text, first) || !strings.HasSuffix(text, last) {
		return false
	}
	text = text[len(first) : len(text)-len(last)]

	for _, part := range parts[1 : len(parts)-1] {
		if part == "" {
			continue
		}
		idx := strings.Index(text, part)
		if idx < 0 {
			return false
		}
		text = text[idx+len(part):]
	}
	return true
}

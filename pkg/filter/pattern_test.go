package filter

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/edgecomet/domfilter/pkg/dom"
)

func TestConstructors_Normalize(t *testing.T) {
	tests := []struct {
		name string
		got  Pattern
		want Pattern
	}{
		{
			name: "bare tag",
			got:  Tag("div"),
			want: Pattern{Tag: Matcher{Kind: Exact, Value: "div"}},
		},
		{
			name: "tag is lower-cased",
			got:  Tag("DIV"),
			want: Pattern{Tag: Matcher{Kind: Exact, Value: "div"}},
		},
		{
			name: "star tag",
			got:  Tag("*"),
			want: Pattern{Tag: Matcher{Kind: Any}},
		},
		{
			name: "empty tag",
			got:  Tag(""),
			want: Pattern{Tag: Matcher{Kind: Any}},
		},
		{
			name: "tag and attribute",
			got:  TagAttr("a", "HREF"),
			want: Pattern{
				Tag:      Matcher{Kind: Exact, Value: "a"},
				AttrName: Matcher{Kind: Exact, Value: "href"},
			},
		},
		{
			name: "value keeps case",
			got:  TagAttrValue("div", "id", "Hello"),
			want: Pattern{
				Tag:       Matcher{Kind: Exact, Value: "div"},
				AttrName:  Matcher{Kind: Exact, Value: "id"},
				AttrValue: Matcher{Kind: Exact, Value: "Hello"},
			},
		},
		{
			name: "wildcards in every field",
			got:  TagAttrValue("", "*", ""),
			want: Pattern{
				Tag:       Matcher{Kind: Any},
				AttrName:  Matcher{Kind: Any},
				AttrValue: Matcher{Kind: Any},
			},
		},
		{
			name: "all",
			got:  All(),
			want: Pattern{Tag: Matcher{Kind: Any}},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, tt.got)
		})
	}
}

func TestParseSpec(t *testing.T) {
	tests := []struct {
		spec    string
		want    Pattern
		wantErr bool
	}{
		{spec: "body", want: Tag("body")},
		{spec: " div , id ", want: TagAttr("div", "id")},
		{spec: "div,id,hello", want: TagAttrValue("div", "id", "hello")},
		{spec: ",,hello", want: TagAttrValue("", "", "hello")},
		{spec: "*,id,hello", want: TagAttrValue("*", "id", "hello")},
		{spec: "", want: All()},
		{spec: "a,b,c,d", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.spec, func(t *testing.T) {
			got, err := ParseSpec(tt.spec)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestFromFields(t *testing.T) {
	p, err := FromFields([]string{"div"})
	require.NoError(t, err)
	assert.Equal(t, Tag("div"), p)

	p, err = FromFields([]string{"div", "class"})
	require.NoError(t, err)
	assert.Equal(t, TagAttr("div", "class"), p)

	p, err = FromFields([]string{"", "", "x"})
	require.NoError(t, err)
	assert.Equal(t, TagAttrValue("", "", "x"), p)

	_, err = FromFields(nil)
	assert.Error(t, err)
	_, err = FromFields([]string{"a", "b", "c", "d"})
	assert.Error(t, err)
}

func TestPattern_String(t *testing.T) {
	assert.Equal(t, "div", Tag("DIV").String())
	assert.Equal(t, "*", All().String())
	assert.Equal(t, "a,href", TagAttr("a", "href").String())
	assert.Equal(t, "*,*,hello", TagAttrValue("", "", "hello").String())
	assert.Equal(t, "div,id,Hello", TagAttrValue("div", "id", "Hello").String())

	for _, spec := range []string{"div", "a,href", "*,*,x", "div,id,hello"} {
		p, err := ParseSpec(spec)
		require.NoError(t, err)
		again, err := ParseSpec(p.String())
		require.NoError(t, err)
		assert.Equal(t, p, again, spec)
	}
}

func TestPattern_Matches(t *testing.T) {
	div := dom.NewElement("div", []dom.Attribute{
		{Name: "id", Value: "hello"},
		{Name: "class", Value: "box"},
	})
	bare := dom.NewElement("div", nil)
	span := dom.NewElement("span", []dom.Attribute{{Name: "title", Value: "hello"}})
	text := dom.NewText("hello")
	doc := dom.NewDocument(div)

	tests := []struct {
		name    string
		pattern Pattern
		node    *dom.Node
		want    bool
	}{
		{"tag match", Tag("div"), div, true},
		{"tag mismatch", Tag("span"), div, false},
		{"upper-case pattern tag", Tag("DIV"), div, true},
		{"wildcard tag matches element", All(), span, true},
		{"text never matches", All(), text, false},
		{"document never matches", All(), doc, false},
		{"nil never matches", All(), nil, false},
		{"attr present", TagAttr("div", "class"), div, true},
		{"attr missing", TagAttr("div", "class"), bare, false},
		{"attr wildcard matches without attributes", TagAttr("div", "*"), bare, true},
		{"attr name case folded", TagAttr("div", "CLASS"), div, true},
		{"attr with value", TagAttrValue("div", "id", "hello"), div, true},
		{"attr with wrong value", TagAttrValue("div", "id", "bye"), div, false},
		{"value is case sensitive", TagAttrValue("div", "id", "HELLO"), div, false},
		{"value wildcard", TagAttrValue("div", "id", "*"), div, true},
		{"value wildcard needs attribute", TagAttrValue("div", "id", "*"), bare, false},
		{"agnostic scan hits id", TagAttrValue("", "", "hello"), div, true},
		{"agnostic scan hits title", TagAttrValue("*", "*", "hello"), span, true},
		{"agnostic scan hits second attribute", TagAttrValue("div", "", "box"), div, true},
		{"agnostic scan misses", TagAttrValue("", "", "nope"), div, false},
		{"agnostic scan respects tag", TagAttrValue("span", "", "box"), div, false},
		{"agnostic scan on bare element", TagAttrValue("", "", "hello"), bare, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, tt.pattern.Matches(tt.node))
		})
	}
}

func TestPattern_AbsentAndAnyMatchAlike(t *testing.T) {
	nodes := []*dom.Node{
		dom.NewElement("div", nil),
		dom.NewElement("div", []dom.Attribute{{Name: "id", Value: "x"}}),
		dom.NewElement("p", []dom.Attribute{{Name: "class", Value: "x"}}),
	}
	pairs := [][2]Pattern{
		{Tag("div"), TagAttrValue("div", "*", "*")},
		{TagAttr("div", "id"), TagAttrValue("div", "id", "")},
		{All(), TagAttrValue("", "", "")},
	}
	for _, pair := range pairs {
		for _, n := range nodes {
			assert.Equal(t, pair[0].Matches(n), pair[1].Matches(n), "%s vs %s on <%s>", pair[0], pair[1], n.TagName())
		}
	}
}

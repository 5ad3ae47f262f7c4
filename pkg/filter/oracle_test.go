package filter_test

import (
	"strings"
	"testing"

	"github.com/PuerkitoBio/goquery"
	"github.com/antchfx/htmlquery"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/edgecomet/domfilter/internal/common/configtypes"
	"github.com/edgecomet/domfilter/internal/parser"
	"github.com/edgecomet/domfilter/pkg/dom"
	"github.com/edgecomet/domfilter/pkg/filter"
)

const catalogPage = `<!DOCTYPE html>
<html lang="en">
<head><title>Catalog</title><meta charset="utf-8"></head>
<body>
  <!-- navigation -->
  <nav><a href="/" class="home">Home</a> <a href="/about">About</a></nav>
  <main id="content">
    <section class="products">
      <div class="product" data-sku="A1"><h2>Lamp</h2><span class="price">10</span></div>
      <div class="product featured" data-sku="B2"><h2>Desk</h2><span class="price">120</span></div>
      <div class="product" data-sku="C3"><h2>Chair</h2><span class="price">45</span>
        <div class="note" title="A1">pairs with Lamp</div>
      </div>
    </section>
    <img src="/banner.png" alt="banner">
  </main>
  <footer><p>&copy; shop</p></footer>
</body>
</html>`

func parseCatalog(t *testing.T) (*dom.Node, *goquery.Document) {
	t.Helper()
	p := parser.New(configtypes.ParserConfig{}, zap.NewNop())
	root, err := p.Parse([]byte(catalogPage))
	require.NoError(t, err)

	gq, err := goquery.NewDocumentFromReader(strings.NewReader(catalogPage))
	require.NoError(t, err)
	return root, gq
}

// Match counts agree with equivalent CSS selectors (goquery) and XPath queries (htmlquery)
func TestFilter_AgreesWithSelectorEngine(t *testing.T) {
	root, gq := parseCatalog(t)

	xdoc, err := htmlquery.Parse(strings.NewReader(catalogPage))
	require.NoError(t, err)

	tests := []struct {
		spec     string
		selector string
		xpath    string
	}{
		{"div", "div", "//div"},
		{"a", "a", "//a"},
		{"div,class", "div[class]", "//div[@class]"},
		{"div,class,product", `div[class="product"]`, `//div[@class="product"]`},
		{"*,data-sku", "[data-sku]", "//*[@data-sku]"},
		{"*,id,content", `[id="content"]`, `//*[@id="content"]`},
		{"span,class,price", `span[class="price"]`, `//span[@class="price"]`},
		{"img,alt", "img[alt]", "//img[@alt]"},
		{"section", "section", "//section"},
		{"*", "*", "//*"},
		{"table", "table", "//table"},
		{",,A1", `[data-sku="A1"], [title="A1"]`, `//*[@*="A1"]`},
	}

	for _, tt := range tests {
		t.Run(tt.spec, func(t *testing.T) {
			p, err := filter.ParseSpec(tt.spec)
			require.NoError(t, err)

			got := filter.Filter(root, p)
			want := gq.Find(tt.selector)
			assert.Equal(t, want.Length(), got.Len())

			nodes, err := htmlquery.QueryAll(xdoc, tt.xpath)
			require.NoError(t, err)
			assert.Len(t, nodes, got.Len())

			wantText := make([]string, 0, want.Length())
			want.Each(func(_ int, s *goquery.Selection) {
				wantText = append(wantText, s.Text())
			})
			assert.Equal(t, strings.Join(wantText, ""), got.Text())
		})
	}
}

func TestFilter_ValueScanOnParsedDocument(t *testing.T) {
	root, _ := parseCatalog(t)

	// data-sku on the first product, title on the note
	r := filter.Filter(root, filter.TagAttrValue("", "", "A1"))
	require.Equal(t, 2, r.Len())
	assert.Equal(t, []string{"A1"}, r.AttrValues("data-sku"))
	assert.Equal(t, []string{"A1"}, r.AttrValues("title"))
}

func TestFilter_ChainOnParsedDocument(t *testing.T) {
	root, _ := parseCatalog(t)

	prices := filter.Filter(root, filter.TagAttrValue("section", "class", "products")).
		Filter(filter.TagAttrValue("span", "class", "price"))
	assert.Equal(t, "1012045", prices.Text())

	featured := filter.Filter(root, filter.TagAttrValue("div", "class", "product featured"))
	require.Equal(t, 1, featured.Len())
	assert.Equal(t, `<h2>Desk</h2><span class="price">120</span>`, featured.InnerHTML())
}

func TestFilter_ParsedDocumentDropsComments(t *testing.T) {
	root, _ := parseCatalog(t)

	nav := filter.Filter(root, filter.Tag("NAV"))
	require.Equal(t, 1, nav.Len())
	assert.Equal(t, `<a href="/" class="home">Home</a> <a href="/about">About</a>`, nav.InnerHTML())
	assert.NotContains(t, filter.Filter(root, filter.Tag("body")).InnerHTML(), "navigation")
}

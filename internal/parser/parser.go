// Package parser converts raw HTML bytes into dom trees.
package parser

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"strings"
	"unicode/utf8"

	"github.com/microcosm-cc/bluemonday"
	"github.com/saintfish/chardet"
	"go.uber.org/zap"
	"golang.org/x/net/html"
	"golang.org/x/net/html/charset"

	"github.com/edgecomet/domfilter/internal/common/configtypes"
	"github.com/edgecomet/domfilter/pkg/dom"
)

// DefaultMaxSize is the input cap applied when the config leaves max_size unset
const DefaultMaxSize = 10 * 1024 * 1024

var (
	// ErrNoMarkup is returned for input that contains no '<' or no '>'
	ErrNoMarkup = errors.New("input contains no markup")
	// ErrTooLarge is returned when the input exceeds the configured size cap
	ErrTooLarge = errors.New("input exceeds maximum size")
)

// ParseError wraps every failure to turn raw bytes into a tree
type ParseError struct {
	Size int
	Err  error
}

func (e *ParseError) Error() string {
	return fmt.Sprintf("parse html (%d bytes): %v", e.Size, e.Err)
}

func (e *ParseError) Unwrap() error {
	return e.Err
}

// Parser turns raw markup into a dom tree
type Parser interface {
	Parse(raw []byte) (*dom.Node, error)
}

// HTMLParser builds dom trees with the HTML5 tree builder from x/net/html.
// Safe for concurrent use.
type HTMLParser struct {
	maxSize       int
	detectCharset bool
	sanitizer     *bluemonday.Policy
	logger        *zap.Logger
}

// New creates an HTMLParser from parser configuration
func New(cfg configtypes.ParserConfig, logger *zap.Logger) *HTMLParser {
	p := &HTMLParser{
		maxSize:       cfg.MaxSize,
		detectCharset: cfg.DetectCharset == nil || *cfg.DetectCharset,
		logger:        logger,
	}
	if p.maxSize == 0 {
		p.maxSize = DefaultMaxSize
	}
	if cfg.Sanitize {
		p.sanitizer = bluemonday.UGCPolicy()
	}
	return p
}

// Parse builds a tree rooted at a document node.
// Comments and doctype declarations are dropped; tag and attribute names are lower-cased.
func (p *HTMLParser) Parse(raw []byte) (*dom.Node, error) {
	if p.maxSize > 0 && len(raw) > p.maxSize {
		return nil, &ParseError{Size: len(raw), Err: fmt.Errorf("%w (%d bytes)", ErrTooLarge, p.maxSize)}
	}
	if bytes.IndexByte(raw, '<') < 0 || bytes.IndexByte(raw, '>') < 0 {
		return nil, &ParseError{Size: len(raw), Err: ErrNoMarkup}
	}

	var r io.Reader = bytes.NewReader(raw)
	if p.detectCharset && !utf8.Valid(raw) {
		r = p.toUTF8(raw)
	}

	if p.sanitizer != nil {
		r = p.sanitizer.SanitizeReader(r)
	}

	root, err := html.Parse(r)
	if err != nil {
		return nil, &ParseError{Size: len(raw), Err: err}
	}

	return convert(root), nil
}

// toUTF8 transcodes raw using the charset chardet considers most likely.
// Falls back to the raw bytes when the charset is unknown to x/net/html/charset.
func (p *HTMLParser) toUTF8(raw []byte) io.Reader {
	label := DetectCharset(raw)
	reader, err := charset.NewReaderLabel(label, bytes.NewReader(raw))
	if err != nil {
		p.logger.Debug("Charset not supported, parsing raw bytes",
			zap.String("charset", label),
			zap.Error(err))
		return bytes.NewReader(raw)
	}

	p.logger.Debug("Transcoding input to UTF-8", zap.String("charset", label))
	return reader
}

// DetectCharset returns the lower-cased name of the most likely charset of data,
// or "utf-8" when detection fails.
func DetectCharset(data []byte) string {
	result, err := chardet.NewHtmlDetector().DetectBest(data)
	if err != nil || result == nil {
		return "utf-8"
	}
	return strings.ToLower(result.Charset)
}

func convert(n *html.Node) *dom.Node {
	switch n.Type {
	case html.DocumentNode:
		return dom.NewDocument(convertChildren(n)...)
	case html.ElementNode:
		return dom.NewElement(n.Data, convertAttrs(n.Attr), convertChildren(n)...)
	case html.TextNode:
		return dom.NewText(n.Data)
	default:
		return nil
	}
}

func convertChildren(n *html.Node) []*dom.Node {
	var children []*dom.Node
	for c := n.FirstChild; c != nil; c = c.NextSibling {
		if child := convert(c); child != nil {
			children = append(children, child)
		}
	}
	return children
}

func convertAttrs(attrs []html.Attribute) []dom.Attribute {
	if len(attrs) == 0 {
		return nil
	}
	out := make([]dom.Attribute, 0, len(attrs))
	for _, a := range attrs {
		name := a.Key
		if a.Namespace != "" {
			name = a.Namespace + ":" + name
		}
		out = append(out, dom.Attribute{Name: name, Value: a.Val})
	}
	return out
}

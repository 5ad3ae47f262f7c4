// Package pipeline runs one filter request end to end: load markup, parse, filter, extract.
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/edgecomet/domfilter/internal/fetch"
	"github.com/edgecomet/domfilter/internal/metrics"
	"github.com/edgecomet/domfilter/internal/parser"
	"github.com/edgecomet/domfilter/pkg/dom"
	"github.com/edgecomet/domfilter/pkg/filter"
)

// Mode selects what is extracted from the matches
type Mode string

const (
	ModeInner Mode = "inner"
	ModeText  Mode = "text"
	ModeOuter Mode = "outer"
	ModeCount Mode = "count"
	ModeAttr  Mode = "attr"
)

// ErrInvalidRequest marks requests rejected before any work is done
var ErrInvalidRequest = errors.New("invalid request")

// ParseMode maps a mode name to a Mode. The empty string selects ModeInner.
func ParseMode(s string) (Mode, error) {
	switch m := Mode(s); m {
	case "":
		return ModeInner, nil
	case ModeInner, ModeText, ModeOuter, ModeCount, ModeAttr:
		return m, nil
	default:
		return "", fmt.Errorf("%w: unknown mode %q (want inner, text, outer, count or attr)", ErrInvalidRequest, s)
	}
}

// Request is a single filter run. Exactly one of HTML and URL must be set.
// A non-nil empty HTML counts as set and fails in the parser.
// Patterns are applied as a chain: each one filters under the previous matches.
type Request struct {
	HTML     []byte
	URL      string
	Patterns []filter.Pattern
	Mode     Mode
	Index    *int
	Attr     string
}

// Output is what a run produced. Matches counts the final result before indexing.
type Output struct {
	Matches int
	Content string
	Values  []string
}

// Pipeline wires a parser and an optional fetcher to the filter engine
type Pipeline struct {
	parser  parser.Parser
	fetcher fetch.Fetcher
	metrics metrics.Recorder
	logger  *zap.Logger
}

// New creates a Pipeline. fetcher may be nil, in which case URL requests are rejected.
func New(p parser.Parser, fetcher fetch.Fetcher, recorder metrics.Recorder, logger *zap.Logger) *Pipeline {
	if recorder == nil {
		recorder = metrics.Nop{}
	}
	return &Pipeline{
		parser:  p,
		fetcher: fetcher,
		metrics: recorder,
		logger:  logger,
	}
}

// Run executes req. Parse and fetch failures come back as *parser.ParseError and
// *fetch.FetchError; an out-of-range Index wraps filter.ErrIndexOutOfRange.
func (p *Pipeline) Run(ctx context.Context, req Request) (*Output, error) {
	if err := p.validate(&req); err != nil {
		return nil, err
	}

	raw := req.HTML
	if req.URL != "" {
		body, err := p.fetcher.Fetch(ctx, req.URL)
		if err != nil {
			return nil, err
		}
		raw = body
	}

	start := time.Now()
	root, err := p.parser.Parse(raw)
	p.metrics.RecordParse(err == nil, len(raw), time.Since(start))
	if err != nil {
		return nil, err
	}

	result := filter.Filter(root, req.Patterns[0])
	for _, pattern := range req.Patterns[1:] {
		result = result.Filter(pattern)
	}
	p.metrics.RecordMatches(result.Len())

	p.logger.Debug("Filter applied",
		zap.Int("patterns", len(req.Patterns)),
		zap.Int("matches", result.Len()),
		zap.String("mode", string(req.Mode)))

	out := &Output{Matches: result.Len()}

	var sel dom.Selection = result
	if req.Index != nil {
		n, err := result.At(*req.Index)
		if err != nil {
			return nil, err
		}
		sel = n
	}

	switch req.Mode {
	case ModeInner:
		out.Content = dom.InnerHTML(sel)
	case ModeText:
		out.Content = dom.Text(sel)
	case ModeOuter:
		out.Content = dom.OuterHTML(sel)
	case ModeAttr:
		out.Values = filter.AttrValues(sel, req.Attr)
	case ModeCount:
	}
	return out, nil
}

func (p *Pipeline) validate(req *Request) error {
	switch {
	case req.HTML == nil && req.URL == "":
		return fmt.Errorf("%w: html or url is required", ErrInvalidRequest)
	case req.HTML != nil && req.URL != "":
		return fmt.Errorf("%w: html and url are mutually exclusive", ErrInvalidRequest)
	case req.URL != "" && p.fetcher == nil:
		return fmt.Errorf("%w: fetching is not available", ErrInvalidRequest)
	case len(req.Patterns) == 0:
		return fmt.Errorf("%w: at least one filter is required", ErrInvalidRequest)
	}

	mode, err := ParseMode(string(req.Mode))
	if err != nil {
		return err
	}
	req.Mode = mode

	if req.Mode == ModeAttr && req.Attr == "" {
		return fmt.Errorf("%w: attr mode needs an attribute name", ErrInvalidRequest)
	}
	return nil
}

package server

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/valyala/fasthttp"
	"go.uber.org/zap"

	"github.com/edgecomet/domfilter/internal/common/httputil"
	"github.com/edgecomet/domfilter/internal/fetch"
	"github.com/edgecomet/domfilter/internal/parser"
	"github.com/edgecomet/domfilter/internal/pipeline"
	"github.com/edgecomet/domfilter/pkg/filter"
)

// FilterRequest is the body of POST /api/v1/filter.
// Each entry of Filters is a 1 to 3 element [tag, attr, value] pattern; entries are chained.
type FilterRequest struct {
	HTML    string     `json:"html,omitempty"`
	URL     string     `json:"url,omitempty"`
	Filters [][]string `json:"filters"`
	Mode    string     `json:"mode,omitempty"`
	Index   *int       `json:"index,omitempty"`
	Attr    string     `json:"attr,omitempty"`
}

// FilterResponse is the data of a successful filter call
type FilterResponse struct {
	Matches int      `json:"matches"`
	Content string   `json:"content"`
	Values  []string `json:"values,omitempty"`
}

func (s *Server) handleFilter(ctx *fasthttp.RequestCtx, logger *zap.Logger) {
	var req FilterRequest
	if err := json.Unmarshal(ctx.Request.Body(), &req); err != nil {
		httputil.JSONError(ctx, "invalid_request", "invalid json: "+err.Error(), fasthttp.StatusBadRequest)
		return
	}

	patterns := make([]filter.Pattern, 0, len(req.Filters))
	for _, fields := range req.Filters {
		p, err := filter.FromFields(fields)
		if err != nil {
			httputil.JSONError(ctx, "invalid_request", err.Error(), fasthttp.StatusBadRequest)
			return
		}
		patterns = append(patterns, p)
	}

	var html []byte
	if req.HTML != "" {
		html = []byte(req.HTML)
	}

	runCtx, cancel := s.requestContext()
	defer cancel()

	start := time.Now()
	out, err := s.pipeline.Run(runCtx, pipeline.Request{
		HTML:     html,
		URL:      req.URL,
		Patterns: patterns,
		Mode:     pipeline.Mode(req.Mode),
		Index:    req.Index,
		Attr:     req.Attr,
	})
	if err != nil {
		status, code := classifyError(err)
		logger.Warn("Filter request failed",
			zap.String("url", req.URL),
			zap.Int("status_code", status),
			zap.Error(err))
		httputil.JSONError(ctx, code, err.Error(), status)
		return
	}

	logger.Info("Filter request completed",
		zap.String("url", req.URL),
		zap.Int("filters", len(patterns)),
		zap.Int("matches", out.Matches),
		zap.Duration("duration", time.Since(start)))

	httputil.JSONData(ctx, FilterResponse{
		Matches: out.Matches,
		Content: out.Content,
		Values:  out.Values,
	}, fasthttp.StatusOK)
}

// requestContext bounds pipeline work by server.timeout
func (s *Server) requestContext() (context.Context, context.CancelFunc) {
	if timeout := s.cfg.Timeout.ToDuration(); timeout > 0 {
		return context.WithTimeout(context.Background(), timeout)
	}
	return context.WithCancel(context.Background())
}

// classifyError maps pipeline errors to an HTTP status and error code
func classifyError(err error) (int, string) {
	var parseErr *parser.ParseError
	var fetchErr *fetch.FetchError

	switch {
	case errors.Is(err, pipeline.ErrInvalidRequest):
		return fasthttp.StatusBadRequest, "invalid_request"
	case errors.Is(err, filter.ErrIndexOutOfRange):
		return fasthttp.StatusNotFound, "index_out_of_range"
	case errors.Is(err, fetch.ErrBlockedHost), errors.Is(err, fetch.ErrUnsupportedScheme):
		return fasthttp.StatusForbidden, "blocked"
	case errors.Is(err, context.DeadlineExceeded):
		return fasthttp.StatusGatewayTimeout, "timeout"
	case errors.As(err, &fetchErr):
		return fasthttp.StatusBadGateway, "fetch_error"
	case errors.As(err, &parseErr):
		return fasthttp.StatusUnprocessableEntity, "parse_error"
	default:
		return fasthttp.StatusInternalServerError, "internal"
	}
}

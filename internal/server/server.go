// Package server exposes the filter pipeline as a JSON API over fasthttp.
package server

import (
	"context"
	"crypto/subtle"
	"fmt"
	"net"
	"time"

	"github.com/valyala/fasthttp"
	"go.uber.org/zap"

	"github.com/edgecomet/domfilter/internal/common/configtypes"
	"github.com/edgecomet/domfilter/internal/common/httputil"
	"github.com/edgecomet/domfilter/internal/common/requestid"
	"github.com/edgecomet/domfilter/internal/metrics"
	"github.com/edgecomet/domfilter/internal/pipeline"
)

// API paths
const (
	PathHealth = "/health"
	PathStatus = "/status"
	PathFilter = "/api/v1/filter"
)

// AuthHeader carries the API key when server.auth_key is set
const AuthHeader = "X-API-Key"

type Server struct {
	cfg      configtypes.ServerConfig
	pipeline *pipeline.Pipeline
	metrics  metrics.Recorder
	logger   *zap.Logger

	srv     *fasthttp.Server
	ln      net.Listener
	started time.Time
}

func New(cfg configtypes.ServerConfig, p *pipeline.Pipeline, recorder metrics.Recorder, logger *zap.Logger) *Server {
	if recorder == nil {
		recorder = metrics.Nop{}
	}
	s := &Server{
		cfg:      cfg,
		pipeline: p,
		metrics:  recorder,
		logger:   logger,
		started:  time.Now(),
	}
	s.srv = &fasthttp.Server{
		Handler:            s.HandleRequest,
		Name:               "domfilter",
		ReadTimeout:        cfg.Timeout.ToDuration(),
		WriteTimeout:       cfg.Timeout.ToDuration(),
		MaxRequestBodySize: cfg.MaxRequestBodySize,
		TCPKeepalive:       true,
		TCPKeepalivePeriod: 30 * time.Second,
	}
	return s
}

// Start binds the listener and serves in the background
func (s *Server) Start() error {
	ln, err := net.Listen("tcp", s.cfg.Listen)
	if err != nil {
		return fmt.Errorf("failed to bind %s: %w", s.cfg.Listen, err)
	}
	s.ln = ln

	go func() {
		s.logger.Info("API server listening", zap.String("listen", ln.Addr().String()))
		if err := s.srv.Serve(ln); err != nil {
			s.logger.Error("API server stopped", zap.Error(err))
		}
	}()
	return nil
}

// Addr returns the bound address, useful when listening on port 0
func (s *Server) Addr() string {
	if s.ln == nil {
		return ""
	}
	return s.ln.Addr().String()
}

// Shutdown stops accepting connections and waits for in-flight requests
func (s *Server) Shutdown(ctx context.Context) error {
	return s.srv.ShutdownWithContext(ctx)
}

func (s *Server) HandleRequest(ctx *fasthttp.RequestCtx) {
	start := time.Now()
	path := string(ctx.Path())

	requestID := requestid.Resolve(string(ctx.Request.Header.Peek(requestid.Header)))
	ctx.Response.Header.Set(requestid.Header, requestID)
	logger := s.logger.With(zap.String("request_id", requestID))

	s.metrics.IncActiveRequests()
	defer func() {
		s.metrics.DecActiveRequests()
		s.metrics.RecordRequest(endpointLabel(path), ctx.Response.StatusCode(), time.Since(start))
	}()

	switch path {
	case PathHealth:
		if !ctx.IsGet() && !ctx.IsHead() {
			httputil.JSONError(ctx, "method_not_allowed", "method not allowed", fasthttp.StatusMethodNotAllowed)
			return
		}
		httputil.JSONSuccess(ctx, "", fasthttp.StatusOK)
	case PathStatus:
		if !s.authorized(ctx) {
			httputil.JSONError(ctx, "unauthorized", "missing or invalid API key", fasthttp.StatusUnauthorized)
			return
		}
		if !ctx.IsGet() && !ctx.IsHead() {
			httputil.JSONError(ctx, "method_not_allowed", "method not allowed", fasthttp.StatusMethodNotAllowed)
			return
		}
		s.handleStatus(ctx, logger)
	case PathFilter:
		if !s.authorized(ctx) {
			logger.Warn("Unauthorized API request",
				zap.String("path", path),
				zap.String("remote_addr", ctx.RemoteAddr().String()))
			httputil.JSONError(ctx, "unauthorized", "missing or invalid API key", fasthttp.StatusUnauthorized)
			return
		}
		if !ctx.IsPost() {
			httputil.JSONError(ctx, "method_not_allowed", "method not allowed", fasthttp.StatusMethodNotAllowed)
			return
		}
		s.handleFilter(ctx, logger)
	default:
		httputil.JSONError(ctx, "not_found", "endpoint not found", fasthttp.StatusNotFound)
	}
}

func (s *Server) authorized(ctx *fasthttp.RequestCtx) bool {
	if s.cfg.AuthKey == "" {
		return true
	}
	key := ctx.Request.Header.Peek(AuthHeader)
	return subtle.ConstantTimeCompare(key, []byte(s.cfg.AuthKey)) == 1
}

func endpointLabel(path string) string {
	switch path {
	case PathHealth, PathStatus, PathFilter:
		return path
	default:
		return "other"
	}
}

// Package fetch retrieves remote markup over HTTP(S) for filtering.
package fetch

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/url"
	"strings"
	"time"

	"github.com/valyala/fasthttp"
	"go.uber.org/zap"

	"github.com/edgecomet/domfilter/internal/common/configtypes"
	"github.com/edgecomet/domfilter/internal/common/urlutil"
	"github.com/edgecomet/domfilter/internal/metrics"
	"github.com/edgecomet/domfilter/pkg/pattern"
)

var (
	// ErrBlockedHost is returned when the host is denied by policy or resolves to a private address
	ErrBlockedHost = errors.New("host is blocked")
	// ErrUnsupportedScheme is returned for anything but http and https
	ErrUnsupportedScheme = errors.New("unsupported URL scheme")
	// ErrContentType is returned when the origin answers with something other than HTML
	ErrContentType = errors.New("response is not HTML")
	// ErrTooManyRedirects is returned when the redirect chain exceeds max_redirects
	ErrTooManyRedirects = errors.New("too many redirects")
	// ErrStatus is returned for non-200 final responses
	ErrStatus = errors.New("unexpected status")
)

// FetchError describes a failed retrieval. StatusCode is 0 when no response was received.
type FetchError struct {
	URL        string
	StatusCode int
	Err        error
}

func (e *FetchError) Error() string {
	if e.StatusCode > 0 {
		return fmt.Sprintf("fetch %s: status %d: %v", e.URL, e.StatusCode, e.Err)
	}
	return fmt.Sprintf("fetch %s: %v", e.URL, e.Err)
}

func (e *FetchError) Unwrap() error {
	return e.Err
}

// Fetcher returns the body of the document at a URL
type Fetcher interface {
	Fetch(ctx context.Context, rawURL string) ([]byte, error)
}

// Client fetches documents with fasthttp. Safe for concurrent use.
type Client struct {
	cfg     configtypes.FetchConfig
	client  *fasthttp.Client
	allow   pattern.List
	deny    pattern.List
	metrics metrics.Recorder
	logger  *zap.Logger
}

var _ Fetcher = (*Client)(nil)

// NewClient creates a Client. Host lists are compiled here so a bad entry fails fast.
func NewClient(cfg configtypes.FetchConfig, recorder metrics.Recorder, logger *zap.Logger) (*Client, error) {
	allow, err := pattern.CompileList(cfg.AllowHosts)
	if err != nil {
		return nil, fmt.Errorf("fetch.allow_hosts: %w", err)
	}
	deny, err := pattern.CompileList(cfg.DenyHosts)
	if err != nil {
		return nil, fmt.Errorf("fetch.deny_hosts: %w", err)
	}
	if recorder == nil {
		recorder = metrics.Nop{}
	}
	if cfg.MaxAttempts < 1 {
		cfg.MaxAttempts = 1
	}

	timeout := cfg.Timeout.ToDuration()
	client := &fasthttp.Client{
		Name:                     cfg.UserAgent,
		ReadTimeout:              timeout,
		WriteTimeout:             timeout,
		MaxResponseBodySize:      cfg.MaxBodySize,
		NoDefaultUserAgentHeader: cfg.UserAgent == "",
	}

	// Enable SSRF protection by default (blocks DNS rebinding to private IPs)
	if cfg.SSRFEnabled() {
		client.Dial = ssrfSafeDial
	}

	return &Client{
		cfg:     cfg,
		client:  client,
		allow:   allow,
		deny:    deny,
		metrics: recorder,
		logger:  logger,
	}, nil
}

// Fetch GETs rawURL, following redirects, and returns the HTML body.
// Every hop is checked against the host policy.
func (c *Client) Fetch(ctx context.Context, rawURL string) ([]byte, error) {
	start := time.Now()
	host := hostLabel(rawURL)

	body, err := c.fetch(ctx, rawURL)

	result := metrics.FetchOK
	switch {
	case errors.Is(err, ErrBlockedHost):
		result = metrics.FetchBlocked
	case err != nil:
		result = metrics.FetchError
	}
	c.metrics.RecordFetch(host, result, time.Since(start))

	if err != nil {
		c.logger.Warn("Fetch failed",
			zap.String("url", rawURL),
			zap.String("result", result),
			zap.Error(err))
		return nil, err
	}

	c.logger.Debug("Fetch completed",
		zap.String("url", rawURL),
		zap.Int("size", len(body)),
		zap.Duration("duration", time.Since(start)))
	return body, nil
}

type response struct {
	status      int
	location    string
	contentType string
	body        []byte
}

func (c *Client) fetch(ctx context.Context, rawURL string) ([]byte, error) {
	target := rawURL
	for hops := 0; ; hops++ {
		u, err := c.checkURL(target)
		if err != nil {
			return nil, &FetchError{URL: target, Err: err}
		}
		target = u.String()

		resp, err := c.doWithRetry(ctx, target)
		if err != nil {
			return nil, &FetchError{URL: target, Err: err}
		}

		if fasthttp.StatusCodeIsRedirect(resp.status) {
			if resp.location == "" {
				return nil, &FetchError{URL: target, StatusCode: resp.status, Err: errors.New("redirect without Location header")}
			}
			if hops >= c.cfg.MaxRedirects {
				return nil, &FetchError{URL: target, StatusCode: resp.status, Err: ErrTooManyRedirects}
			}
			next, err := u.Parse(resp.location)
			if err != nil {
				return nil, &FetchError{URL: target, StatusCode: resp.status, Err: fmt.Errorf("invalid redirect location %q: %w", resp.location, err)}
			}
			c.logger.Debug("Following redirect",
				zap.String("from", target),
				zap.String("to", next.String()),
				zap.Int("status_code", resp.status))
			target = next.String()
			continue
		}

		if resp.status != fasthttp.StatusOK {
			return nil, &FetchError{URL: target, StatusCode: resp.status, Err: ErrStatus}
		}
		if !isHTML(resp.contentType) {
			return nil, &FetchError{URL: target, StatusCode: resp.status, Err: fmt.Errorf("%w: %s", ErrContentType, resp.contentType)}
		}
		return resp.body, nil
	}
}

// checkURL validates scheme and host policy before any connection is made
func (c *Client) checkURL(rawURL string) (*url.URL, error) {
	u, err := url.Parse(rawURL)
	if err != nil {
		return nil, fmt.Errorf("invalid URL: %w", err)
	}

	scheme := strings.ToLower(u.Scheme)
	if scheme != "http" && scheme != "https" {
		return nil, fmt.Errorf("%w: %q", ErrUnsupportedScheme, u.Scheme)
	}

	host := strings.ToLower(u.Hostname())
	if host == "" {
		return nil, errors.New("URL has no host")
	}

	if c.deny.MatchAny(host) {
		return nil, fmt.Errorf("%w: %s is in deny_hosts", ErrBlockedHost, host)
	}
	if len(c.allow) > 0 && !c.allow.MatchAny(host) {
		return nil, fmt.Errorf("%w: %s is not in allow_hosts", ErrBlockedHost, host)
	}
	if c.cfg.SSRFEnabled() {
		if err := urlutil.ValidateHostNotPrivateIP(host); err != nil {
			return nil, fmt.Errorf("%w: %v", ErrBlockedHost, err)
		}
	}
	return u, nil
}

// doWithRetry retries network errors and 5xx responses up to max_attempts
func (c *Client) doWithRetry(ctx context.Context, target string) (*response, error) {
	for attempt := 1; ; attempt++ {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		resp, err := c.do(ctx, target)
		if err == nil && resp.status < 500 {
			return resp, nil
		}
		if err != nil && !retryable(err) {
			return nil, err
		}
		if attempt >= c.cfg.MaxAttempts {
			if err != nil {
				return nil, err
			}
			return resp, nil
		}

		fields := []zap.Field{zap.String("url", target), zap.Int("attempt", attempt)}
		if err != nil {
			fields = append(fields, zap.Error(err))
		} else {
			fields = append(fields, zap.Int("status_code", resp.status))
		}
		c.logger.Debug("Retrying fetch", fields...)

		timer := time.NewTimer(c.cfg.RetryDelay.ToDuration())
		select {
		case <-ctx.Done():
			timer.Stop()
			return nil, ctx.Err()
		case <-timer.C:
		}
	}
}

func retryable(err error) bool {
	return !errors.Is(err, ErrBlockedHost) && !errors.Is(err, fasthttp.ErrBodyTooLarge)
}

func (c *Client) do(ctx context.Context, target string) (*response, error) {
	req := fasthttp.AcquireRequest()
	resp := fasthttp.AcquireResponse()
	defer fasthttp.ReleaseRequest(req)
	defer fasthttp.ReleaseResponse(resp)

	req.SetRequestURI(target)
	req.Header.SetMethod(fasthttp.MethodGet)
	req.Header.Set("Accept", "text/html,application/xhtml+xml;q=0.9,*/*;q=0.5")

	deadline := time.Now().Add(c.cfg.Timeout.ToDuration())
	if d, ok := ctx.Deadline(); ok && d.Before(deadline) {
		deadline = d
	}

	if err := c.client.DoDeadline(req, resp, deadline); err != nil {
		return nil, err
	}

	return &response{
		status:      resp.StatusCode(),
		location:    string(resp.Header.Peek(fasthttp.HeaderLocation)),
		contentType: string(resp.Header.ContentType()),
		body:        append([]byte(nil), resp.Body()...),
	}, nil
}

// isHTML accepts text/html, application/xhtml+xml and a missing content type
func isHTML(contentType string) bool {
	mediaType := strings.ToLower(strings.TrimSpace(strings.SplitN(contentType, ";", 2)[0]))
	switch mediaType {
	case "", "text/html", "application/xhtml+xml":
		return true
	default:
		return false
	}
}

func hostLabel(rawURL string) string {
	u, err := url.Parse(rawURL)
	if err != nil || u.Hostname() == "" {
		return "invalid"
	}
	return strings.ToLower(u.Hostname())
}

// ssrfSafeDial resolves the hostname, validates all IPs are public, then connects.
// Prevents DNS rebinding attacks where an attacker's domain resolves to a private IP.
func ssrfSafeDial(addr string) (net.Conn, error) {
	host, port, err := net.SplitHostPort(addr)
	if err != nil {
		return nil, fmt.Errorf("invalid address %q: %w", addr, err)
	}

	ips, err := net.LookupIP(host)
	if err != nil {
		return nil, fmt.Errorf("DNS resolution failed for %q: %w", host, err)
	}
	if len(ips) == 0 {
		return nil, fmt.Errorf("no IP addresses found for %q", host)
	}

	for _, ip := range ips {
		if err := urlutil.ValidateResolvedIP(ip); err != nil {
			return nil, fmt.Errorf("%w: %q: %v", ErrBlockedHost, host, err)
		}
	}

	return fasthttp.DialTimeout(net.JoinHostPort(ips[0].String(), port), 10*time.Second)
}

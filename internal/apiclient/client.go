// Package apiclient talks to the concert ticketing REST API. Every request
// goes through one code path that attaches the bearer token and turns any
// 401 on an authenticated call into a session invalidation.
package apiclient

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/concerttix/console/internal/config"
	"github.com/concerttix/console/internal/observability"
	"github.com/concerttix/console/internal/tokenstore"
	apperrors "github.com/concerttix/console/pkg/util/errorutil"
)

const maxBodyBytes = 16 << 20

// TokenSource yields the bearer token for the next request, "" for none.
type TokenSource interface {
	CurrentToken(ctx context.Context) string
}

// UnauthorizedHandler is called once for every 401 received on a request
// that carried sentToken.
type UnauthorizedHandler func(ctx context.Context, sentToken string)

// Options configures a Client.
type Options struct {
	BaseURL      string
	Timeout      time.Duration
	MaxRetries   int
	RetryBackoff time.Duration
	RateLimit    rate.Limit
	RateBurst    int
	HTTPClient   *http.Client
	Logger       *zap.Logger
	Metrics      observability.MetricsRecorder
}

// OptionsFromConfig maps the API section of the config.
func OptionsFromConfig(cfg config.APIConfig) Options {
	opts := Options{
		BaseURL:      cfg.BaseURL,
		Timeout:      cfg.Timeout(),
		MaxRetries:   cfg.MaxRetries,
		RetryBackoff: cfg.RetryBackoff(),
		RateBurst:    cfg.RateLimitBurst,
	}
	if cfg.RateLimitRPS > 0 {
		opts.RateLimit = rate.Limit(cfg.RateLimitRPS)
	}
	return opts
}

// Client is the single HTTP surface of the application.
type Client struct {
	baseURL    string
	httpClient *http.Client
	limiter    *rate.Limiter
	maxRetries int
	backoff    time.Duration
	logger     *zap.Logger
	metrics    observability.MetricsRecorder

	mu             sync.RWMutex
	tokens         TokenSource
	onUnauthorized UnauthorizedHandler
}

// New builds a client. The timeout bounds every attempt, including body reads.
func New(opts Options) *Client {
	httpClient := opts.HTTPClient
	if httpClient == nil {
		httpClient = &http.Client{}
	}
	timeout := opts.Timeout
	if timeout <= 0 {
		timeout = 15 * time.Second
	}
	clone := *httpClient
	clone.Timeout = timeout

	var limiter *rate.Limiter
	if opts.RateLimit > 0 {
		burst := opts.RateBurst
		if burst <= 0 {
			burst = 1
		}
		limiter = rate.NewLimiter(opts.RateLimit, burst)
	}

	maxRetries := opts.MaxRetries
	if maxRetries < 1 {
		maxRetries = 1
	}

	metrics := opts.Metrics
	if metrics == nil {
		metrics = observability.NopMetrics{}
	}

	return &Client{
		baseURL:    strings.TrimRight(opts.BaseURL, "/"),
		httpClient: &clone,
		limiter:    limiter,
		maxRetries: maxRetries,
		backoff:    opts.RetryBackoff,
		logger:     observability.OrNop(opts.Logger),
		metrics:    metrics,
	}
}

// SetTokenSource installs the bearer token provider.
func (c *Client) SetTokenSource(ts TokenSource) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.tokens = ts
}

// OnUnauthorized installs the 401 handler.
func (c *Client) OnUnauthorized(h UnauthorizedHandler) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.onUnauthorized = h
}

// BaseURL returns the API root.
func (c *Client) BaseURL() string {
	return c.baseURL
}

type request struct {
	method string
	path   string
	query  url.Values
	body   any
	accept string
}

type response struct {
	status int
	header http.Header
	body   []byte
}

type envelope struct {
	Success bool            `json:"success"`
	Message string          `json:"message"`
	Data    json.RawMessage `json:"data"`
}

// getJSON performs an idempotent read and decodes the envelope's data.
func (c *Client) getJSON(ctx context.Context, path string, query url.Values, out any) error {
	return c.doJSON(ctx, request{method: http.MethodGet, path: path, query: query}, out)
}

func (c *Client) sendJSON(ctx context.Context, method, path string, body, out any) error {
	return c.doJSON(ctx, request{method: method, path: path, body: body}, out)
}

func (c *Client) doJSON(ctx context.Context, req request, out any) error {
	resp, err := c.do(ctx, req)
	if err != nil {
		return err
	}
	if out == nil {
		return nil
	}
	var env envelope
	if err := json.Unmarshal(resp.body, &env); err != nil {
		return apperrors.NewInvalidResponse("malformed response from server", err)
	}
	if len(env.Data) == 0 || string(env.Data) == "null" {
		return apperrors.NewInvalidResponse("response carries no data", nil)
	}
	if err := json.Unmarshal(env.Data, out); err != nil {
		return apperrors.NewInvalidResponse("unexpected response shape", err)
	}
	return nil
}

// do sends req, retrying idempotent reads on network and server errors.
// Mutations are sent exactly once.
func (c *Client) do(ctx context.Context, req request) (*response, error) {
	attempts := 1
	if req.method == http.MethodGet {
		attempts = c.maxRetries
	}

	var lastErr error
	for attempt := 1; attempt <= attempts; attempt++ {
		resp, err := c.send(ctx, req)
		if err == nil {
			return resp, nil
		}
		lastErr = err
		if attempt == attempts || !retryable(err) {
			break
		}
		c.metrics.RecordAPIRetry(req.method)
		c.logger.Debug("retrying request",
			zap.String("method", req.method), zap.String("path", req.path),
			zap.Int("attempt", attempt), zap.Error(err))
		select {
		case <-ctx.Done():
			return nil, apperrors.NewNetworkError(ctx.Err())
		case <-time.After(c.backoff * time.Duration(attempt)):
		}
	}
	return nil, lastErr
}

func retryable(err error) bool {
	return errors.Is(err, apperrors.ErrNetwork) || errors.Is(err, apperrors.ErrServer)
}

func (c *Client) send(ctx context.Context, req request) (*response, error) {
	if c.limiter != nil {
		if err := c.limiter.Wait(ctx); err != nil {
			return nil, apperrors.NewNetworkError(err)
		}
	}

	httpReq, err := c.newRequest(ctx, req)
	if err != nil {
		return nil, err
	}

	sentToken := c.attachToken(ctx, httpReq)

	start := time.Now()
	httpResp, err := c.httpClient.Do(httpReq)
	if err != nil {
		c.metrics.RecordAPIRequest(req.method, 0, time.Since(start))
		c.logger.Warn("api request failed",
			zap.String("method", req.method), zap.String("path", req.path), zap.Error(err))
		return nil, apperrors.NewNetworkError(err)
	}
	defer httpResp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(httpResp.Body, maxBodyBytes))
	c.metrics.RecordAPIRequest(req.method, httpResp.StatusCode, time.Since(start))
	if err != nil {
		return nil, apperrors.NewNetworkError(err)
	}

	c.logger.Debug("api response",
		zap.String("method", req.method),
		zap.String("path", req.path),
		zap.Int("status", httpResp.StatusCode),
		zap.String("request_id", httpReq.Header.Get("X-Request-ID")),
		zap.Duration("duration", time.Since(start)))

	if httpResp.StatusCode >= 200 && httpResp.StatusCode < 300 {
		return &response{status: httpResp.StatusCode, header: httpResp.Header, body: body}, nil
	}
	return nil, c.statusError(ctx, httpResp.StatusCode, body, sentToken)
}

func (c *Client) newRequest(ctx context.Context, req request) (*http.Request, error) {
	target := c.baseURL + req.path
	if len(req.query) > 0 {
		target += "?" + req.query.Encode()
	}

	var body io.Reader
	if req.body != nil {
		data, err := json.Marshal(req.body)
		if err != nil {
			return nil, fmt.Errorf("encode request body: %w", err)
		}
		body = bytes.NewReader(data)
	}

	httpReq, err := http.NewRequestWithContext(ctx, req.method, target, body)
	if err != nil {
		return nil, fmt.Errorf("build request: %w", err)
	}
	if req.body != nil {
		httpReq.Header.Set("Content-Type", "application/json")
	}
	accept := req.accept
	if accept == "" {
		accept = "application/json"
	}
	httpReq.Header.Set("Accept", accept)
	httpReq.Header.Set("X-Request-ID", uuid.NewString())
	return httpReq, nil
}

// attachToken sets the Authorization header and returns the token sent.
func (c *Client) attachToken(ctx context.Context, httpReq *http.Request) string {
	c.mu.RLock()
	ts := c.tokens
	c.mu.RUnlock()
	if ts == nil {
		return ""
	}
	token := ts.CurrentToken(ctx)
	if token == "" {
		return ""
	}
	if err := tokenstore.ValidateTokenShape(token); err != nil {
		c.logger.Warn("not attaching malformed token", zap.Error(err))
		return ""
	}
	httpReq.Header.Set("Authorization", "Bearer "+token)
	return token
}

func (c *Client) statusError(ctx context.Context, status int, body []byte, sentToken string) error {
	var env envelope
	_ = json.Unmarshal(body, &env)
	message := env.Message

	switch {
	case status == http.StatusUnauthorized:
		if sentToken == "" {
			return apperrors.NewInvalidCredentials(message)
		}
		c.mu.RLock()
		handler := c.onUnauthorized
		c.mu.RUnlock()
		c.logger.Info("authenticated request rejected; invalidating session",
			observability.TokenField(sentToken), zap.String("reason", message))
		if handler != nil {
			handler(ctx, sentToken)
		}
		return apperrors.NewSessionExpired("")
	case status >= 500:
		return apperrors.NewServerError(status, message)
	case status == http.StatusForbidden:
		return apperrors.NewForbidden(orDefault(message, "access denied"))
	case status == http.StatusNotFound:
		return apperrors.NewDomainError(apperrors.CodeNotFound, orDefault(message, "not found"), status, nil)
	case status == http.StatusConflict:
		return apperrors.NewConflict(orDefault(message, "conflict"), nil)
	default:
		return apperrors.NewDomainError(apperrors.CodeValidation, orDefault(message, "request rejected"), status, nil)
	}
}

func orDefault(s, fallback string) string {
	if strings.TrimSpace(s) == "" {
		return fallback
	}
	return s
}

// Package firebase is the record store adapter for the Firebase Realtime
// Database REST API. Each collection is a top-level node keyed by record id;
// reads go through the circuit breaker with retry, writes through a bulkhead
// and the breaker without retry.
package firebase

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

	"github.com/boddenberg/client-portal-go/internal/domain"
	"github.com/boddenberg/client-portal-go/internal/infra/resilience"

	"github.com/sony/gobreaker"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.uber.org/zap"
)

var tracer = otel.Tracer("firebase")

// Client wraps HTTP calls to the Realtime Database REST API.
type Client struct {
	httpClient *http.Client
	baseURL    string
	authToken  string
	cb         *gobreaker.CircuitBreaker
	cfg        resilience.Config
	writes     *resilience.Bulkhead
	logger     *zap.Logger
}

// NewClient creates a Firebase client. baseURL is the database URL
// (https://<db>.firebaseio.com); authToken is a database secret or ID token
// sent as the auth query parameter, and may be empty for open rules.
func NewClient(httpClient *http.Client, baseURL, authToken string, cb *gobreaker.CircuitBreaker, cfg resilience.Config, logger *zap.Logger) *Client {
	return &Client{
		httpClient: httpClient,
		baseURL:    strings.TrimRight(baseURL, "/"),
		authToken:  authToken,
		cb:         cb,
		cfg:        cfg,
		writes:     resilience.NewBulkhead(cfg.MaxConcurrency),
		logger:     logger,
	}
}

// IsExpectedFailure reports errors that say nothing about store health;
// pass it to resilience.NewCircuitBreaker.
func IsExpectedFailure(err error) bool {
	if err == nil {
		return true
	}
	var notFound *domain.ErrNotFound
	if errors.As(err, &notFound) || resilience.IsPermanent(err) {
		return true
	}
	var se *statusError
	return errors.As(err, &se) && se.Status >= 400 && se.Status < 500 && se.Status != http.StatusTooManyRequests
}

// statusError is a non-2xx answer from the database.
type statusError struct {
	Method string
	Path   string
	Status int
	Body   string
}

func (e *statusError) Error() string {
	return fmt.Sprintf("firebase %s %s returned %d: %s", e.Method, e.Path, e.Status, e.Body)
}

// nodePath builds the REST path for a node: segments are escaped and joined,
// then suffixed with .json.
func nodePath(segments ...string) string {
	escaped := make([]string, len(segments))
	for i, s := range segments {
		escaped[i] = url.PathEscape(s)
	}
	return strings.Join(escaped, "/") + ".json"
}

// doRequest executes one authenticated REST call and returns the raw body.
// 4xx answers are wrapped as permanent so they are never retried.
func (c *Client) doRequest(ctx context.Context, method, path string, query url.Values, payload any) ([]byte, error) {
	body, _, err := c.doRequestHeaders(ctx, method, path, query, payload, nil)
	return body, err
}

// doRequestHeaders is doRequest with extra request headers, returning the
// response headers as well (ETag for conditional writes).
func (c *Client) doRequestHeaders(ctx context.Context, method, path string, query url.Values, payload any, header http.Header) ([]byte, http.Header, error) {
	if query == nil {
		query = url.Values{}
	}
	if c.authToken != "" {
		query.Set("auth", c.authToken)
	}
	u := fmt.Sprintf("%s/%s", c.baseURL, path)
	if enc := query.Encode(); enc != "" {
		u += "?" + enc
	}

	var body io.Reader
	if payload != nil {
		raw, err := json.Marshal(payload)
		if err != nil {
			return nil, nil, resilience.Permanent(fmt.Errorf("encode %s payload: %w", path, err))
		}
		body = bytes.NewReader(raw)
	}

	req, err := http.NewRequestWithContext(ctx, method, u, body)
	if err != nil {
		c.logger.Error("firebase: failed to create request",
			zap.String("method", method),
			zap.String("path", path),
			zap.Error(err),
		)
		return nil, nil, resilience.Permanent(err)
	}
	req.Header.Set("Content-Type", "application/json")
	for k, vs := range header {
		for _, v := range vs {
			req.Header.Add(k, v)
		}
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		c.logger.Error("firebase: request failed",
			zap.String("method", method),
			zap.String("path", path),
			zap.Error(err),
		)
		return nil, nil, err
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		c.logger.Error("firebase: failed to read response body",
			zap.String("method", method),
			zap.String("path", path),
			zap.Error(err),
		)
		return nil, nil, err
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		c.logger.Warn("firebase: non-2xx response",
			zap.String("method", method),
			zap.String("path", path),
			zap.Int("status", resp.StatusCode),
			zap.String("body", string(respBody)),
		)
		serr := &statusError{Method: method, Path: path, Status: resp.StatusCode, Body: string(respBody)}
		if resp.StatusCode >= 400 && resp.StatusCode < 500 && resp.StatusCode != http.StatusTooManyRequests {
			return nil, resp.Header, resilience.Permanent(serr)
		}
		return nil, resp.Header, serr
	}

	c.logger.Debug("firebase: request OK",
		zap.String("method", method),
		zap.String("path", path),
		zap.Int("status", resp.StatusCode),
	)
	return respBody, resp.Header, nil
}

// read performs a GET through the breaker with retry. A JSON null body means
// the node is absent and yields (nil, nil).
func (c *Client) read(ctx context.Context, service, path string, query url.Values) ([]byte, error) {
	var body []byte
	_, err := c.cb.Execute(func() (any, error) {
		return nil, resilience.RetryWithBackoff(ctx, c.cfg, func() error {
			b, err := c.doRequest(ctx, http.MethodGet, path, cloneQuery(query), nil)
			if err != nil {
				return err
			}
			body = b
			return nil
		})
	})
	if err != nil {
		return nil, c.wrapError(service, err)
	}
	if isNull(body) {
		return nil, nil
	}
	return body, nil
}

// write performs a mutating call through the bulkhead and breaker. Writes
// are not retried: a failed write is reported, never assumed.
func (c *Client) write(ctx context.Context, service, method, path string, payload any) error {
	return c.writeIf(ctx, service, method, path, payload, "")
}

// writeIf is write guarded by an if-match ETag when etag is non-empty. A
// node changed since the ETag was read answers 412 (see isPreconditionFailed).
func (c *Client) writeIf(ctx context.Context, service, method, path string, payload any, etag string) error {
	if err := c.writes.Acquire(ctx); err != nil {
		return &domain.ErrTimeout{Operation: service}
	}
	defer c.writes.Release()

	query := url.Values{}
	query.Set("print", "silent")
	var header http.Header
	if etag != "" {
		header = http.Header{"If-Match": []string{etag}}
	}
	_, err := c.cb.Execute(func() (any, error) {
		b, _, err := c.doRequestHeaders(ctx, method, path, query, payload, header)
		return b, err
	})
	if err != nil {
		return c.wrapError(service, err)
	}
	return nil
}

// readETag GETs a node together with its ETag. The body is nil when the
// node is absent.
func (c *Client) readETag(ctx context.Context, service, path string) ([]byte, string, error) {
	var (
		body []byte
		etag string
	)
	_, err := c.cb.Execute(func() (any, error) {
		return nil, resilience.RetryWithBackoff(ctx, c.cfg, func() error {
			b, h, err := c.doRequestHeaders(ctx, http.MethodGet, path, nil, nil, http.Header{"X-Firebase-ETag": []string{"true"}})
			if err != nil {
				return err
			}
			body, etag = b, h.Get("ETag")
			return nil
		})
	})
	if err != nil {
		return nil, "", c.wrapError(service, err)
	}
	if isNull(body) {
		body = nil
	}
	return body, etag, nil
}

// isPreconditionFailed reports a conditional write that lost its race.
func isPreconditionFailed(err error) bool {
	var se *statusError
	return errors.As(err, &se) && se.Status == http.StatusPreconditionFailed
}

func (c *Client) wrapError(service string, err error) error {
	switch {
	case resilience.IsBreakerOpen(err):
		return &domain.ErrCircuitOpen{Service: service}
	case errors.Is(err, context.DeadlineExceeded):
		return &domain.ErrTimeout{Operation: service}
	}
	return &domain.ErrExternalService{Service: service, Err: err}
}

// exists checks for a node without downloading it.
func (c *Client) exists(ctx context.Context, service string, segments ...string) (bool, error) {
	query := url.Values{}
	query.Set("shallow", "true")
	body, err := c.read(ctx, service, nodePath(segments...), query)
	if err != nil {
		return false, err
	}
	return body != nil, nil
}

// Ping checks the database answers a shallow root read.
func (c *Client) Ping(ctx context.Context) error {
	ctx, span := tracer.Start(ctx, "Firebase.Ping")
	defer span.End()

	query := url.Values{}
	query.Set("shallow", "true")
	_, err := c.doRequest(ctx, http.MethodGet, ".json", query, nil)
	if err != nil {
		return c.wrapError("firebase", err)
	}
	return nil
}

func isNull(body []byte) bool {
	trimmed := bytes.TrimSpace(body)
	return len(trimmed) == 0 || string(trimmed) == "null"
}

func cloneQuery(q url.Values) url.Values {
	out := make(url.Values, len(q))
	for k, v := range q {
		out[k] = append([]string(nil), v...)
	}
	return out
}

func spanCollection(collection, id string) []attribute.KeyValue {
	attrs := []attribute.KeyValue{attribute.String("db.collection", collection)}
	if id != "" {
		attrs = append(attrs, attribute.String("db.record_id", id))
	}
	return attrs
}

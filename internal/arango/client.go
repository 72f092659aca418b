// Package arango implements graph.Database over the ArangoDB HTTP API:
// cursor creation, continuation and deletion, collection counts and document
// insertion.
package arango

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/dusk-indust/docgraph/internal/compile"
	"github.com/dusk-indust/docgraph/internal/dberr"
	"github.com/dusk-indust/docgraph/internal/graph"
)

// Compile-time interface checks.
var (
	_ graph.Database = (*Client)(nil)
	_ graph.Writer   = (*Client)(nil)
)

// Client talks to one ArangoDB database. It is safe for concurrent use.
type Client struct {
	http     *http.Client
	baseURL  string
	database string
	user     string
	password string
	token    string
	logger   *slog.Logger
}

// Option configures a Client.
type Option func(*Client)

// WithTimeout sets the HTTP client timeout.
func WithTimeout(d time.Duration) Option {
	return func(c *Client) {
		c.http.Timeout = d
	}
}

// WithHTTPClient replaces the underlying *http.Client entirely.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) {
		c.http = hc
	}
}

// WithBasicAuth authenticates every request with user and password.
func WithBasicAuth(user, password string) Option {
	return func(c *Client) {
		c.user, c.password = user, password
	}
}

// WithBearerToken authenticates every request with a pre-issued JWT. It
// takes precedence over basic credentials.
func WithBearerToken(token string) Option {
	return func(c *Client) {
		c.token = token
	}
}

// WithLogger sets the logger for request tracing.
func WithLogger(l *slog.Logger) Option {
	return func(c *Client) {
		c.logger = l
	}
}

// New creates a client for database at baseURL (e.g. http://localhost:8529).
func New(baseURL, database string, opts ...Option) *Client {
	c := &Client{
		http: &http.Client{
			Timeout: 30 * time.Second,
		},
		baseURL:  strings.TrimRight(baseURL, "/"),
		database: database,
		logger:   slog.Default(),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Dialect returns the AQL compiler.
func (c *Client) Dialect() compile.Dialect { return compile.AQL{} }

// Cursor creates a cursor and returns its first batch.
func (c *Client) Cursor(ctx context.Context, req graph.CursorRequest) (*graph.CursorResponse, error) {
	var resp graph.CursorResponse
	if err := c.call(ctx, "create cursor", http.MethodPost, "/_api/cursor", req, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// ReadCursor fetches the next batch of cursor id.
func (c *Client) ReadCursor(ctx context.Context, id string) (*graph.CursorResponse, error) {
	var resp graph.CursorResponse
	if err := c.call(ctx, "read cursor", http.MethodPut, "/_api/cursor/"+url.PathEscape(id), nil, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// DeleteCursor releases cursor id on the server.
func (c *Client) DeleteCursor(ctx context.Context, id string) error {
	return c.call(ctx, "delete cursor", http.MethodDelete, "/_api/cursor/"+url.PathEscape(id), nil, nil)
}

// Collection resolves a collection and its document count.
func (c *Client) Collection(ctx context.Context, name string) (*graph.CollectionInfo, error) {
	var info graph.CollectionInfo
	if err := c.call(ctx, "collection", http.MethodGet, "/_api/collection/"+url.PathEscape(name)+"/count", nil, &info); err != nil {
		return nil, err
	}
	return &info, nil
}

// InsertDocument creates doc in collection and returns its system attributes.
func (c *Client) InsertDocument(ctx context.Context, collection string, doc any) (*graph.DocumentMeta, error) {
	var meta graph.DocumentMeta
	if err := c.call(ctx, "insert document", http.MethodPost, "/_api/document/"+url.PathEscape(collection), doc, &meta); err != nil {
		return nil, err
	}
	return &meta, nil
}

// Close releases idle connections.
func (c *Client) Close() error {
	c.http.CloseIdleConnections()
	return nil
}

// call performs one request against the database API. Network failures
// become TransportError; error envelopes and non-2xx statuses become
// ServerError.
func (c *Client) call(ctx context.Context, op, method, path string, body, result any) error {
	var reader io.Reader
	if body != nil {
		b, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("arango: %s: marshal request: %w", op, err)
		}
		reader = bytes.NewReader(b)
	}

	endpoint := c.baseURL + "/_db/" + url.PathEscape(c.database) + path
	httpReq, err := http.NewRequestWithContext(ctx, method, endpoint, reader)
	if err != nil {
		return fmt.Errorf("arango: %s: create request: %w", op, err)
	}
	if body != nil {
		httpReq.Header.Set("Content-Type", "application/json")
	}
	httpReq.Header.Set("Accept", "application/json")
	switch {
	case c.token != "":
		httpReq.Header.Set("Authorization", "bearer "+c.token)
	case c.user != "":
		httpReq.SetBasicAuth(c.user, c.password)
	}

	start := time.Now()
	resp, err := c.http.Do(httpReq)
	if err != nil {
		return &dberr.TransportError{Op: op, Err: err}
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return &dberr.TransportError{Op: op, Err: fmt.Errorf("read response: %w", err)}
	}
	c.logger.Debug("arango request",
		"op", op, "method", method, "path", path,
		"status", resp.StatusCode, "duration", time.Since(start))

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return serverError(op, resp.StatusCode, respBody)
	}

	var envelope graph.ErrorResponse
	if json.Unmarshal(respBody, &envelope) == nil && envelope.Error {
		return serverError(op, resp.StatusCode, respBody)
	}

	if result != nil && len(respBody) > 0 {
		if err := json.Unmarshal(respBody, result); err != nil {
			return &dberr.TransportError{Op: op, Err: fmt.Errorf("decode response: %w", err)}
		}
	}
	return nil
}

// serverError builds a ServerError from an error envelope, falling back to
// the raw body when the server did not send one.
func serverError(op string, status int, body []byte) error {
	se := &dberr.ServerError{Op: op, Code: status}
	var envelope graph.ErrorResponse
	if err := json.Unmarshal(body, &envelope); err == nil && envelope.ErrorMessage != "" {
		se.ErrorNum = envelope.ErrorNum
		se.Message = envelope.ErrorMessage
		if envelope.Code != 0 {
			se.Code = envelope.Code
		}
		return se
	}
	se.Message = strings.TrimSpace(string(body))
	if se.Message == "" {
		se.Message = http.StatusText(status)
	}
	return se
}

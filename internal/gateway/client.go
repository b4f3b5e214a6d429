// Package gateway implements the AppDB document persistence client used for
// user-generated entities, plus a degraded-mode fallback that keeps writes
// local when the vendor API is unreachable.
package gateway

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
)

const documentsPath = "/domo/datastores/v1/collections/%s/documents"

// envelope is the AppDB document wrapper: user payloads always travel under
// the content key.
type envelope struct {
	ID      string `json:"id,omitempty"`
	Content any    `json:"content"`
}

// Client talks to the vendor AppDB collection API.
type Client struct {
	baseURL string
	httpc   *http.Client
	logger  *slog.Logger
}

// ClientOption configures a Client.
type ClientOption func(*Client)

// WithHTTPClient replaces the underlying HTTP client.
func WithHTTPClient(c *http.Client) ClientOption {
	return func(g *Client) {
		if c != nil {
			g.httpc = c
		}
	}
}

// WithLogger wires structured logging.
func WithLogger(l *slog.Logger) ClientOption {
	return func(g *Client) {
		if l != nil {
			g.logger = l
		}
	}
}

// NewClient builds an AppDB client rooted at baseURL.
func NewClient(baseURL string, opts ...ClientOption) *Client {
	c := &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		httpc:   &http.Client{Timeout: 10 * time.Second},
		logger:  slog.Default(),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// CreateDocument posts a new document and returns the id the service
// assigned. The degraded flag is always false on the direct client.
func (c *Client) CreateDocument(ctx context.Context, collection string, doc any) (string, bool, error) {
	body, err := json.Marshal(envelope{Content: doc})
	if err != nil {
		return "", false, fmt.Errorf("encode document: %w", err)
	}
	respBody, err := c.do(ctx, http.MethodPost, c.collectionURL(collection), body)
	if err != nil {
		return "", false, err
	}
	var created envelope
	if err := json.Unmarshal(respBody, &created); err != nil {
		return "", false, fmt.Errorf("decode create response: %w", err)
	}
	return created.ID, false, nil
}

// UpdateDocument replaces a document's content.
func (c *Client) UpdateDocument(ctx context.Context, collection, id string, doc any) (bool, error) {
	body, err := json.Marshal(envelope{ID: id, Content: doc})
	if err != nil {
		return false, fmt.Errorf("encode document: %w", err)
	}
	_, err = c.do(ctx, http.MethodPut, c.documentURL(collection, id), body)
	return false, err
}

// DeleteDocument removes a document.
func (c *Client) DeleteDocument(ctx context.Context, collection, id string) (bool, error) {
	_, err := c.do(ctx, http.MethodDelete, c.documentURL(collection, id), nil)
	return false, err
}

func (c *Client) collectionURL(collection string) string {
	return c.baseURL + fmt.Sprintf(documentsPath, url.PathEscape(collection))
}

func (c *Client) documentURL(collection, id string) string {
	return c.collectionURL(collection) + "/" + url.PathEscape(id)
}

func (c *Client) do(ctx context.Context, method, target string, body []byte) ([]byte, error) {
	var reader io.Reader
	if body != nil {
		reader = bytes.NewReader(body)
	}
	req, err := http.NewRequestWithContext(ctx, method, target, reader)
	if err != nil {
		return nil, err
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.httpc.Do(req)
	if err != nil {
		return nil, err
	}
	defer func() { _ = resp.Body.Close() }()
	respBody, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return nil, err
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		c.logger.Warn("appdb request failed", "method", method, "url", target, "status", resp.StatusCode)
		return nil, fmt.Errorf("appdb %s %s: status %d", method, target, resp.StatusCode)
	}
	return respBody, nil
}

package library

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
)

// Fetcher is the subset of the server API the pollers and UI depend on.
// It is implemented by *Client and can be faked in tests.
type Fetcher interface {
	FetchDownloads(ctx context.Context) ([]Download, error)
	FetchNotifications(ctx context.Context, unreadOnly bool) ([]Notification, error)
	RetryDownload(ctx context.Context, id int64) error
	CancelDownload(ctx context.Context, id int64) error
	MarkNotificationsRead(ctx context.Context, ids ...int64) error
}

// Ensure Client implements Fetcher at compile time.
var _ Fetcher = (*Client)(nil)

// Version is reported in the User-Agent header.
var Version = "0.1"

// APIError is returned when the server answers with a 4xx or 5xx status.
type APIError struct {
	Method string
	Path   string
	Status int
}

func (e *APIError) Error() string {
	return fmt.Sprintf("api %s %s returned status %d", e.Method, e.Path, e.Status)
}

// Client talks to the manga server HTTP API.
type Client struct {
	baseURL   *url.URL
	http      *http.Client
	token     string
	userAgent string
}

const (
	defaultServerURL = "127.0.0.1:4567"
	requestTimeout   = 15 * time.Second
	maxErrorBody     = 4 << 10
)

// Option customises a Client.
type Option func(*Client)

// WithToken sends the token as a bearer credential.
func WithToken(token string) Option {
	return func(c *Client) { c.token = strings.TrimSpace(token) }
}

// WithHTTPClient replaces the underlying http.Client.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) {
		if hc != nil {
			c.http = hc
		}
	}
}

// NewClient builds a Client for the server at serverURL (host:port or URL).
func NewClient(serverURL string, opts ...Option) (*Client, error) {
	base, err := parseBaseURL(serverURL)
	if err != nil {
		return nil, err
	}
	c := &Client{
		baseURL: base,
		http: &http.Client{
			Timeout: requestTimeout,
		},
		userAgent: "tankobon/" + Version,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c, nil
}

// BaseURL returns the normalized server URL.
func (c *Client) BaseURL() string {
	return c.baseURL.String()
}

// Ping checks the server health endpoint.
func (c *Client) Ping(ctx context.Context) (HealthResponse, error) {
	if c == nil {
		return HealthResponse{}, fmt.Errorf("client is nil")
	}
	var payload HealthResponse
	if err := c.do(ctx, http.MethodGet, &url.URL{Path: "/api/v1/health"}, nil, &payload); err != nil {
		return HealthResponse{}, err
	}
	return payload, nil
}

// FetchDownloads retrieves the download queue.
func (c *Client) FetchDownloads(ctx context.Context) ([]Download, error) {
	if c == nil {
		return nil, fmt.Errorf("client is nil")
	}
	var payload DownloadListResponse
	if err := c.do(ctx, http.MethodGet, &url.URL{Path: "/api/v1/downloads"}, nil, &payload); err != nil {
		return nil, err
	}
	return payload.Items, nil
}

// FetchNotifications retrieves notifications, optionally only unread ones.
func (c *Client) FetchNotifications(ctx context.Context, unreadOnly bool) ([]Notification, error) {
	if c == nil {
		return nil, fmt.Errorf("client is nil")
	}
	rel := &url.URL{Path: "/api/v1/notifications"}
	if unreadOnly {
		rel.RawQuery = url.Values{"unread": {"1"}}.Encode()
	}
	var payload NotificationListResponse
	if err := c.do(ctx, http.MethodGet, rel, nil, &payload); err != nil {
		return nil, err
	}
	return payload.Items, nil
}

// RetryDownload re-queues a failed download.
func (c *Client) RetryDownload(ctx context.Context, id int64) error {
	return c.downloadAction(ctx, id, "retry")
}

// CancelDownload cancels a queued or running download.
func (c *Client) CancelDownload(ctx context.Context, id int64) error {
	return c.downloadAction(ctx, id, "cancel")
}

func (c *Client) downloadAction(ctx context.Context, id int64, action string) error {
	if c == nil {
		return fmt.Errorf("client is nil")
	}
	if id <= 0 {
		return fmt.Errorf("download id required")
	}
	rel := &url.URL{Path: "/api/v1/downloads/" + strconv.FormatInt(id, 10) + "/" + action}
	return c.do(ctx, http.MethodPost, rel, nil, nil)
}

// MarkNotificationsRead marks the given notifications read. With no ids,
// every notification is marked.
func (c *Client) MarkNotificationsRead(ctx context.Context, ids ...int64) error {
	if c == nil {
		return fmt.Errorf("client is nil")
	}
	body := struct {
		IDs []int64 `json:"ids,omitempty"`
		All bool    `json:"all,omitempty"`
	}{IDs: ids, All: len(ids) == 0}
	return c.do(ctx, http.MethodPost, &url.URL{Path: "/api/v1/notifications/read"}, body, nil)
}

func (c *Client) do(ctx context.Context, method string, rel *url.URL, in, dest any) error {
	var reader io.Reader
	if in != nil {
		buf, err := json.Marshal(in)
		if err != nil {
			return fmt.Errorf("encode request: %w", err)
		}
		reader = bytes.NewReader(buf)
	}

	reqURL := c.baseURL.ResolveReference(rel)
	req, err := http.NewRequestWithContext(ctx, method, reqURL.String(), reader)
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	req.Header.Set("User-Agent", c.userAgent)
	req.Header.Set("X-Request-ID", uuid.NewString())
	if in != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		// Keep cancellation recognisable for the poller.
		if ctxErr := ctx.Err(); ctxErr != nil && !errors.Is(err, ctxErr) {
			return fmt.Errorf("execute request: %w", ctxErr)
		}
		return fmt.Errorf("execute request: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode >= 400 {
		_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, maxErrorBody))
		return &APIError{Method: method, Path: rel.Path, Status: resp.StatusCode}
	}
	if dest == nil {
		return nil
	}
	decoder := json.NewDecoder(resp.Body)
	if err := decoder.Decode(dest); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}
	return nil
}

func parseBaseURL(serverURL string) (*url.URL, error) {
	trimmed := strings.TrimSpace(serverURL)
	if trimmed == "" {
		trimmed = defaultServerURL
	}
	if !strings.Contains(trimmed, "://") {
		trimmed = "http://" + trimmed
	}
	u, err := url.Parse(trimmed)
	if err != nil {
		return nil, fmt.Errorf("parse server url %q: %w", serverURL, err)
	}
	u.Path = ""
	u.RawQuery = ""
	u.Fragment = ""
	return u, nil
}

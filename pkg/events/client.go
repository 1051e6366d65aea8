// Package events is a typed client for the events backend.
//
// The backend speaks JSON:
//
//	GET    /events       -> {"events": [...]}
//	GET    /events/{id}  -> {"event": {...}}
//	POST   /events       -> 201 {"message", "event"} or 422 {"message", "errors"}
//	PATCH  /events/{id}  -> 200 {"message", "event"} or 422 {"message", "errors"}
//	DELETE /events/{id}  -> 200 {"message"}
//
// A 422 is returned as *ValidationError and any other non-2xx status as
// *APIError.
package events

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

// DefaultTimeout bounds each request when no http.Client is supplied.
const DefaultTimeout = 10 * time.Second

// ErrInvalidBaseURL is returned by NewClient for unusable base URLs.
var ErrInvalidBaseURL = errors.New("events: invalid base URL")

// Event is a single event record.
type Event struct {
	ID          string `json:"id,omitempty"`
	Title       string `json:"title"`
	Description string `json:"description"`
	Image       string `json:"image"`
	Date        string `json:"date"`
}

// ValidationError is the backend's 422 response.
type ValidationError struct {
	Message string            `json:"message"`
	Errors  map[string]string `json:"errors"`
}

func (e *ValidationError) Error() string {
	if e.Message == "" {
		return "events: validation failed"
	}
	return "events: " + e.Message
}

// APIError is any other non-2xx response.
type APIError struct {
	Method string
	Path   string
	Status int
	Body   []byte
}

func (e *APIError) Error() string {
	return fmt.Sprintf("events: %s %s: status %d", e.Method, e.Path, e.Status)
}

// IsNotFound reports whether err is a 404 from the backend.
func IsNotFound(err error) bool {
	var apiErr *APIError
	return errors.As(err, &apiErr) && apiErr.Status == http.StatusNotFound
}

// Option configures a Client.
type Option func(*Client)

// WithHTTPClient replaces the underlying http.Client.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) {
		if hc != nil {
			c.http = hc
		}
	}
}

// WithTimeout sets the per-request timeout of the default http.Client.
func WithTimeout(d time.Duration) Option {
	return func(c *Client) {
		if d > 0 {
			c.http = &http.Client{Timeout: d}
		}
	}
}

// WithLogger sets the logger.
func WithLogger(l *slog.Logger) Option {
	return func(c *Client) {
		if l != nil {
			c.logger = l
		}
	}
}

// WithTracerProvider sets the tracer provider. Defaults to the global one.
func WithTracerProvider(p trace.TracerProvider) Option {
	return func(c *Client) {
		if p != nil {
			c.tracer = p.Tracer(tracerName)
		}
	}
}

const tracerName = "routedata/events"

// Client talks to one backend.
type Client struct {
	base   *url.URL
	http   *http.Client
	logger *slog.Logger
	tracer trace.Tracer
}

// NewClient returns a client for the backend at baseURL.
func NewClient(baseURL string, opts ...Option) (*Client, error) {
	u, err := url.Parse(strings.TrimRight(baseURL, "/"))
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidBaseURL, err)
	}
	if (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return nil, fmt.Errorf("%w: %q", ErrInvalidBaseURL, baseURL)
	}
	c := &Client{
		base:   u,
		http:   &http.Client{Timeout: DefaultTimeout},
		logger: slog.Default().With("component", "events-client"),
		tracer: otel.Tracer(tracerName),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c, nil
}

// BaseURL returns the backend base URL.
func (c *Client) BaseURL() string { return c.base.String() }

// List returns every event.
func (c *Client) List(ctx context.Context) ([]Event, error) {
	var out struct {
		Events []Event `json:"events"`
	}
	if err := c.do(ctx, http.MethodGet, "/events", nil, &out); err != nil {
		return nil, err
	}
	if out.Events == nil {
		out.Events = []Event{}
	}
	return out.Events, nil
}

// Get returns the event with id.
func (c *Client) Get(ctx context.Context, id string) (Event, error) {
	var out struct {
		Event Event `json:"event"`
	}
	err := c.do(ctx, http.MethodGet, "/events/"+url.PathEscape(id), nil, &out)
	return out.Event, err
}

// Create stores a new event and returns it with its id.
func (c *Client) Create(ctx context.Context, ev Event) (Event, error) {
	ev.ID = ""
	var out struct {
		Event Event `json:"event"`
	}
	err := c.do(ctx, http.MethodPost, "/events", ev, &out)
	return out.Event, err
}

// Update replaces the fields of event id.
func (c *Client) Update(ctx context.Context, id string, ev Event) (Event, error) {
	ev.ID = ""
	var out struct {
		Event Event `json:"event"`
	}
	err := c.do(ctx, http.MethodPatch, "/events/"+url.PathEscape(id), ev, &out)
	return out.Event, err
}

// Delete removes event id.
func (c *Client) Delete(ctx context.Context, id string) error {
	return c.do(ctx, http.MethodDelete, "/events/"+url.PathEscape(id), nil, nil)
}

func (c *Client) do(ctx context.Context, method, path string, body, out any) (err error) {
	target := c.base.JoinPath(path)
	ctx, span := c.tracer.Start(ctx, "events "+method,
		trace.WithSpanKind(trace.SpanKindClient),
		trace.WithAttributes(
			attribute.String("http.method", method),
			attribute.String("http.url", target.String()),
		),
	)
	defer func() {
		if err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())
		}
		span.End()
	}()

	var reader io.Reader
	if body != nil {
		b, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("events: encode body: %w", err)
		}
		reader = bytes.NewReader(b)
	}
	req, err := http.NewRequestWithContext(ctx, method, target.String(), reader)
	if err != nil {
		return fmt.Errorf("events: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	start := time.Now()
	resp, err := c.http.Do(req)
	if err != nil {
		c.logger.Warn("request failed", "method", method, "path", path, "error", err)
		return fmt.Errorf("events: %s %s: %w", method, path, err)
	}
	defer resp.Body.Close()

	span.SetAttributes(attribute.Int("http.status_code", resp.StatusCode))
	c.logger.Debug("request", "method", method, "path", path,
		"status", resp.StatusCode, "duration", time.Since(start))

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("events: read body: %w", err)
	}

	switch {
	case resp.StatusCode == http.StatusUnprocessableEntity:
		verr := &ValidationError{}
		if err := json.Unmarshal(raw, verr); err != nil {
			return &APIError{Method: method, Path: path, Status: resp.StatusCode, Body: raw}
		}
		return verr
	case resp.StatusCode < 200 || resp.StatusCode > 299:
		return &APIError{Method: method, Path: path, Status: resp.StatusCode, Body: raw}
	}

	if out == nil || len(bytes.TrimSpace(raw)) == 0 {
		return nil
	}
	if err := json.Unmarshal(raw, out); err != nil {
		return fmt.Errorf("events: decode %s %s: %w", method, path, err)
	}
	return nil
}

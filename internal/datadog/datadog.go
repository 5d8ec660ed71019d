// Package datadog forwards decoded email records to the Datadog HTTP log
// intake, one request per record.
package datadog

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/passwordkeyorg/smtp2datadog/internal/logevent"
	"github.com/passwordkeyorg/smtp2datadog/internal/message"
)

// ErrMissingAPIKey is returned by New when no API key is configured.
var ErrMissingAPIKey = errors.New("datadog: api key is required")

const (
	// DefaultSite is the Datadog site used when Config.Site is empty.
	DefaultSite = "datadoghq.com"

	apiKeyHeader = "DD-API-KEY"

	// maxErrorBody bounds how much of a failed response ends up in the error.
	maxErrorBody = 512
)

// Config holds the settings for a Client.
type Config struct {
	APIKey string
	Site   string

	// URL overrides the intake URL derived from Site.
	URL string

	Service  string
	Env      string
	Hostname string
	Tags     []string

	// Timeout bounds a single request. Zero leaves it to the transport.
	Timeout time.Duration
}

// Client posts log events to the intake. It is safe for concurrent use.
type Client struct {
	url        string
	apiKey     string
	meta       logevent.Meta
	httpClient *http.Client
	now        func() time.Time
}

// New creates a Client. It fails only when the API key is missing.
func New(cfg Config) (*Client, error) {
	if cfg.APIKey == "" {
		return nil, ErrMissingAPIKey
	}
	site := cfg.Site
	if site == "" {
		site = DefaultSite
	}
	url := cfg.URL
	if url == "" {
		url = IntakeURL(site)
	}
	return &Client{
		url:    url,
		apiKey: cfg.APIKey,
		meta: logevent.Meta{
			Service:  cfg.Service,
			Env:      cfg.Env,
			Hostname: cfg.Hostname,
			Tags:     cfg.Tags,
		},
		httpClient: &http.Client{Timeout: cfg.Timeout},
		now:        time.Now,
	}, nil
}

// IntakeURL returns the v2 logs intake endpoint for a Datadog site.
func IntakeURL(site string) string {
	return fmt.Sprintf("https://http-intake.logs.%s/api/v2/logs", site)
}

// Name returns the sink name used in logs and metrics.
func (c *Client) Name() string { return "datadog" }

// URL returns the endpoint the client posts to.
func (c *Client) URL() string { return c.url }

// Forward sends rec as one log event. It makes exactly one request and never
// retries; any transport failure or non-2xx status is a *ForwardError.
func (c *Client) Forward(ctx context.Context, rec message.Record) error {
	body, err := logevent.New(rec, c.meta, c.now()).Marshal()
	if err != nil {
		return &ForwardError{Err: fmt.Errorf("marshal event: %w", err)}
	}
	return c.Send(ctx, body)
}

// Send posts an already encoded log event with the same single-attempt
// semantics as Forward.
func (c *Client) Send(ctx context.Context, body []byte) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.url, bytes.NewReader(body))
	if err != nil {
		return &ForwardError{Err: fmt.Errorf("create request: %w", err)}
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set(apiKeyHeader, c.apiKey)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return &ForwardError{Err: err}
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 200 && resp.StatusCode < 300 {
		_, _ = io.Copy(io.Discard, resp.Body)
		return nil
	}

	msg, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
	return &ForwardError{StatusCode: resp.StatusCode, Body: string(msg)}
}

// ForwardError describes a failed intake request. StatusCode is zero when the
// request never got a response.
type ForwardError struct {
	StatusCode int
	Body       string
	Err        error
}

func (e *ForwardError) Error() string {
	if e.Err != nil {
		return "datadog: " + e.Err.Error()
	}
	return fmt.Sprintf("datadog: intake returned HTTP %d: %s", e.StatusCode, e.Body)
}

func (e *ForwardError) Unwrap() error { return e.Err }

// HTTPStatus returns the intake response status, or zero when there was none.
func (e *ForwardError) HTTPStatus() int { return e.StatusCode }

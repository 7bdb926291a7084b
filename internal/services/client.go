package services

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/charmbracelet/log"
	"github.com/desertthunder/multiverse/internal/shared"
	"golang.org/x/time/rate"
)

const (
	DefaultBaseURL  = "https://multiverse.for-better.biz"
	DefaultRollPath = "/api/roll"
	TestRollPath    = "/api/roll/test"
)

// ClientOpts configures a [Client]. Zero values take the defaults noted per field.
type ClientOpts struct {
	BaseURL    string       // defaults to [DefaultBaseURL]
	HTTPClient *http.Client // defaults to a client with Timeout
	Timeout    time.Duration
	RollPath   string  // defaults to [DefaultRollPath]
	RateLimit  float64 // requests per second; <= 0 disables limiting
	Burst      int
	AppName    string
	Logger     *log.Logger
}

// Client talks to the multiverse backend. It is safe for concurrent use by slot workers.
type Client struct {
	baseURL    string
	rollPath   string
	appName    string
	httpClient *http.Client
	limiter    *rate.Limiter
	logger     *log.Logger
}

// NewClient creates a new backend client.
func NewClient(opts ClientOpts) *Client {
	if opts.BaseURL == "" {
		opts.BaseURL = DefaultBaseURL
	}
	if opts.RollPath == "" {
		opts.RollPath = DefaultRollPath
	}
	if opts.HTTPClient == nil {
		timeout := opts.Timeout
		if timeout <= 0 {
			timeout = 30 * time.Second
		}
		opts.HTTPClient = &http.Client{Timeout: timeout}
	}
	if opts.Logger == nil {
		opts.Logger = shared.NewLogger(io.Discard)
	}

	limiter := rate.NewLimiter(rate.Inf, 0)
	if opts.RateLimit > 0 {
		burst := opts.Burst
		if burst <= 0 {
			burst = 1
		}
		limiter = rate.NewLimiter(rate.Limit(opts.RateLimit), burst)
	}

	return &Client{
		baseURL:    strings.TrimRight(opts.BaseURL, "/"),
		rollPath:   opts.RollPath,
		appName:    opts.AppName,
		httpClient: opts.HTTPClient,
		limiter:    limiter,
		logger:     opts.Logger,
	}
}

// NewClientFromConfig builds a [Client] from the [api] config section.
func NewClientFromConfig(conf shared.APIConfig, logger *log.Logger) *Client {
	return NewClient(ClientOpts{
		BaseURL:   conf.BaseURL,
		Timeout:   conf.Timeout.Duration,
		RollPath:  conf.RollPath,
		RateLimit: conf.RateLimit,
		Burst:     conf.Burst,
		AppName:   conf.AppName,
		Logger:    logger,
	})
}

// BaseURL returns the backend root without a trailing slash.
func (c *Client) BaseURL() string { return c.baseURL }

// RollPath returns the endpoint used for re-rolls.
func (c *Client) RollPath() string { return c.rollPath }

// send waits on the rate limiter, performs req and returns the full body.
//
// Non-2xx responses become a [*ServerError].
func (c *Client) send(req *http.Request) (*http.Response, []byte, error) {
	if err := c.limiter.Wait(req.Context()); err != nil {
		return nil, nil, fmt.Errorf("request failed: %w", err)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, nil, fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to read response: %w", err)
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		c.logger.Debug("server returned error", "method", req.Method, "path", req.URL.Path, "status", resp.StatusCode)
		return resp, body, &ServerError{Status: resp.StatusCode, Body: string(body)}
	}
	return resp, body, nil
}

// doJSON sends an optional JSON payload and decodes a JSON result into out when non-nil.
func (c *Client) doJSON(ctx context.Context, method, path string, payload, out any) error {
	var body io.Reader
	if payload != nil {
		data, err := json.Marshal(payload)
		if err != nil {
			return fmt.Errorf("failed to encode request: %w", err)
		}
		body = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, body)
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	if payload != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	req.Header.Set("Accept", "application/json")

	_, data, err := c.send(req)
	if err != nil {
		return err
	}

	if out != nil {
		if err := json.Unmarshal(data, out); err != nil {
			return fmt.Errorf("%w: %s %s: %v", shared.ErrMalformedResponse, method, path, err)
		}
	}
	return nil
}

// fireAndForget runs fn on a detached goroutine and logs any failure.
//
// The request is bound to a fresh context so a finished caller does not abort it.
func (c *Client) fireAndForget(name string, timeout time.Duration, fn func(ctx context.Context) error) {
	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), timeout)
		defer cancel()
		if err := fn(ctx); err != nil {
			c.logger.Warn("background request failed", "request", name, "error", err)
		}
	}()
}

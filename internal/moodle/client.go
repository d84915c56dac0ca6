package moodle

import (
	"bytes"
	"context"
	"crypto/tls"
	"io"
	"log/slog"
	"net"
	"net/http"
	"net/url"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/terra-clan/moodle-analytics/internal/config"
)

const (
	restPath        = "/webservice/rest/server.php"
	maxLoggedBody   = 1000
	maxResponseSize = 64 << 20
)

// Caller issues web-service calls. Client implements it; tests substitute fakes.
type Caller interface {
	Call(ctx context.Context, function string, params Params) Result
}

// Client talks to the Moodle REST web-service endpoint
type Client struct {
	endpoint   string
	token      string
	userAgent  string
	httpClient *http.Client
	logger     *slog.Logger
}

// Option configures the client
type Option func(*Client)

// WithHTTPClient sets a custom HTTP client
func WithHTTPClient(client *http.Client) Option {
	return func(c *Client) {
		c.httpClient = client
	}
}

// WithLogger sets the logger used for request diagnostics
func WithLogger(logger *slog.Logger) Option {
	return func(c *Client) {
		c.logger = logger
	}
}

// NewClient creates a client for the configured Moodle site.
// The URL may point at the site root or directly at server.php.
func NewClient(cfg config.MoodleConfig, opts ...Option) *Client {
	transport := http.DefaultTransport.(*http.Transport).Clone()
	transport.DialContext = (&net.Dialer{
		Timeout:   cfg.ConnectTimeout,
		KeepAlive: 30 * time.Second,
	}).DialContext
	transport.TLSHandshakeTimeout = cfg.ConnectTimeout
	if cfg.InsecureSkipVerify {
		transport.TLSClientConfig = &tls.Config{InsecureSkipVerify: true}
	}

	c := &Client{
		endpoint:  restEndpoint(cfg.URL),
		token:     cfg.Token,
		userAgent: cfg.UserAgent,
		httpClient: &http.Client{
			Timeout:   cfg.Timeout,
			Transport: transport,
		},
		logger: slog.Default(),
	}

	for _, opt := range opts {
		opt(c)
	}

	return c
}

func restEndpoint(base string) string {
	base = strings.TrimRight(base, "/")
	if strings.HasSuffix(base, ".php") {
		return base
	}
	return base + restPath
}

// Call invokes one web-service function. It never returns a Go error:
// every failure is reported through the Result.
func (c *Client) Call(ctx context.Context, function string, params Params) Result {
	start := time.Now()
	logger := c.logger.With("function", function)

	query := url.Values{}
	query.Set("wstoken", c.token)
	query.Set("wsfunction", function)
	query.Set("moodlewsrestformat", "json")
	endpoint := c.endpoint + "?" + query.Encode()

	form := params.Encode().Encode()
	logger.Debug("moodle request", "url", c.redact(endpoint), "params", form)

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, strings.NewReader(form))
	if err != nil {
		return c.fail(logger, &TransportError{Message: "failed to create request: " + c.redact(err.Error()), Err: err})
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	req.Header.Set("Accept", "application/json")
	if c.userAgent != "" {
		req.Header.Set("User-Agent", c.userAgent)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return c.fail(logger, &TransportError{Message: "request failed: " + c.redact(err.Error()), Err: err})
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseSize))
	if err != nil {
		return c.fail(logger, &TransportError{
			Message:    "failed to read response: " + c.redact(err.Error()),
			StatusCode: resp.StatusCode,
			Err:        err,
		})
	}

	logger.Debug("moodle response",
		"status", resp.StatusCode,
		"duration_ms", time.Since(start).Milliseconds(),
		"content_type", resp.Header.Get("Content-Type"),
		"body", truncate(body, maxLoggedBody),
	)

	if len(bytes.TrimSpace(body)) == 0 {
		return c.fail(logger, &TransportError{Message: "empty response from Moodle", StatusCode: resp.StatusCode})
	}

	payload, err := decodeJSON(body)
	if err != nil {
		return c.fail(logger, &TransportError{
			Message:    "invalid JSON response: " + err.Error(),
			StatusCode: resp.StatusCode,
			Protocol:   true,
			Err:        err,
		})
	}

	result := Classify(resp.StatusCode, payload)
	if merr, ok := result.(*MoodleError); ok {
		logger.Warn("moodle returned an error",
			"exception", merr.Exception,
			"errorcode", merr.ErrorCode,
			"message", merr.Message,
			"status", merr.StatusCode,
		)
	}

	return result
}

func (c *Client) fail(logger *slog.Logger, err *TransportError) Result {
	logger.Warn("moodle call failed", "error", err.Message, "status", err.StatusCode, "protocol", err.Protocol)
	return err
}

// redact hides the token in URLs and error messages before they are logged
func (c *Client) redact(s string) string {
	if c.token == "" {
		return s
	}
	s = strings.ReplaceAll(s, c.token, "***")
	return strings.ReplaceAll(s, url.QueryEscape(c.token), "***")
}

func truncate(body []byte, limit int) string {
	if len(body) <= limit {
		return string(body)
	}
	cut := limit
	for cut > 0 && !utf8.RuneStart(body[cut]) {
		cut--
	}
	return string(body[:cut]) + "... [truncated]"
}

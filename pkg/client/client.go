package client

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/terra-clan/moodle-analytics/internal/models"
)

// Client is a Go SDK for the moodle-analytics API
type Client struct {
	baseURL    string
	httpClient *http.Client
}

// Option configures the client
type Option func(*Client)

// WithHTTPClient sets a custom HTTP client
func WithHTTPClient(client *http.Client) Option {
	return func(c *Client) {
		c.httpClient = client
	}
}

// WithTimeout sets the client timeout
func WithTimeout(timeout time.Duration) Option {
	return func(c *Client) {
		c.httpClient.Timeout = timeout
	}
}

// NewClient creates a new moodle-analytics client
func NewClient(baseURL string, opts ...Option) *Client {
	c := &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		httpClient: &http.Client{
			Timeout: 2 * time.Minute,
		},
	}

	for _, opt := range opts {
		opt(c)
	}

	return c
}

// APIError is a failure reported by the API
type APIError struct {
	StatusCode int
	Code       string
	Message    string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("API error (HTTP %d): %s - %s", e.StatusCode, e.Code, e.Message)
}

// ListOptions contains options for listing courses
type ListOptions struct {
	Search     string
	CategoryID int
	ShortName  string
	Page       int
	PerPage    int
}

func (o ListOptions) query() url.Values {
	q := url.Values{}
	if o.Search != "" {
		q.Set("search", o.Search)
	}
	if o.CategoryID != 0 {
		q.Set("category", strconv.Itoa(o.CategoryID))
	}
	if o.ShortName != "" {
		q.Set("shortname", o.ShortName)
	}
	if o.Page > 0 {
		q.Set("page", strconv.Itoa(o.Page))
	}
	if o.PerPage > 0 {
		q.Set("per_page", strconv.Itoa(o.PerPage))
	}
	return q
}

// Categories retrieves the flattened category hierarchy
func (c *Client) Categories(ctx context.Context) ([]models.CategoryEntry, error) {
	var data struct {
		Categories []models.CategoryEntry `json:"categories"`
		Total      int                    `json:"total"`
	}
	if err := c.get(ctx, "/api/v1/categories", nil, &data); err != nil {
		return nil, err
	}
	return data.Categories, nil
}

// ListCourses retrieves one page of courses
func (c *Client) ListCourses(ctx context.Context, opts ListOptions) (*models.Page, error) {
	var page models.Page
	if err := c.get(ctx, "/api/v1/courses", opts.query(), &page); err != nil {
		return nil, err
	}
	return &page, nil
}

// TopCourses retrieves the courses with the most enrolled students
func (c *Client) TopCourses(ctx context.Context, limit int) ([]models.RankedCourse, error) {
	q := url.Values{}
	if limit > 0 {
		q.Set("limit", strconv.Itoa(limit))
	}

	var data struct {
		Courses []models.RankedCourse `json:"courses"`
	}
	if err := c.get(ctx, "/api/v1/courses/top", q, &data); err != nil {
		return nil, err
	}
	return data.Courses, nil
}

// Statistics retrieves the dashboard statistics overview
func (c *Client) Statistics(ctx context.Context) (*models.Overview, error) {
	var overview models.Overview
	if err := c.get(ctx, "/api/v1/stats", nil, &overview); err != nil {
		return nil, err
	}
	return &overview, nil
}

// DatabaseStatistics retrieves the counts read from the reporting database
func (c *Client) DatabaseStatistics(ctx context.Context) (*models.SiteStatistics, error) {
	var stats models.SiteStatistics
	if err := c.get(ctx, "/api/v1/stats/database", nil, &stats); err != nil {
		return nil, err
	}
	return &stats, nil
}

// History retrieves recorded statistics snapshots, newest first
func (c *Client) History(ctx context.Context, limit int) ([]*models.Snapshot, error) {
	q := url.Values{}
	if limit > 0 {
		q.Set("limit", strconv.Itoa(limit))
	}

	var data struct {
		Snapshots []*models.Snapshot `json:"snapshots"`
		Enabled   bool               `json:"enabled"`
	}
	if err := c.get(ctx, "/api/v1/stats/history", q, &data); err != nil {
		return nil, err
	}
	return data.Snapshots, nil
}

// Health checks if the service is healthy
func (c *Client) Health(ctx context.Context) error {
	return c.get(ctx, "/health", nil, nil)
}

// get performs a GET request and decodes the data member of the envelope into out
func (c *Client) get(ctx context.Context, path string, query url.Values, out interface{}) error {
	endpoint := c.baseURL + path
	if len(query) > 0 {
		endpoint += "?" + query.Encode()
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("failed to read response: %w", err)
	}

	var result struct {
		Success bool            `json:"success"`
		Data    json.RawMessage `json:"data"`
		Message string          `json:"message"`
		Error   *struct {
			Code    string `json:"code"`
			Message string `json:"message"`
		} `json:"error"`
	}

	if err := json.Unmarshal(respBody, &result); err != nil {
		if resp.StatusCode >= 400 {
			return &APIError{StatusCode: resp.StatusCode, Code: "http_error", Message: strings.TrimSpace(string(respBody))}
		}
		return fmt.Errorf("failed to unmarshal response: %w", err)
	}

	if !result.Success || resp.StatusCode >= 400 {
		apiErr := &APIError{StatusCode: resp.StatusCode, Code: "unknown", Message: result.Message}
		if result.Error != nil {
			apiErr.Code = result.Error.Code
			apiErr.Message = result.Error.Message
		}
		return apiErr
	}

	if out == nil || len(result.Data) == 0 {
		return nil
	}
	if err := json.Unmarshal(result.Data, out); err != nil {
		return fmt.Errorf("failed to unmarshal data: %w", err)
	}
	return nil
}

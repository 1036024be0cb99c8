// Package client is a Go client for the issue tracker HTTP API.
package client

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/joescharf/issuetracker/internal/api"
	"github.com/joescharf/issuetracker/internal/models"
)

// APIError is a failure reported in the payload's error field.
type APIError struct {
	Message string
	ID      string
}

func (e *APIError) Error() string {
	if e.ID == "" {
		return e.Message
	}
	return fmt.Sprintf("%s (_id %s)", e.Message, e.ID)
}

// Client talks to a running issuetracker server.
type Client struct {
	BaseURL string
	HTTP    *http.Client
}

// New creates a Client for the server at baseURL.
func New(baseURL string) *Client {
	return &Client{
		BaseURL: strings.TrimRight(baseURL, "/"),
		HTTP:    &http.Client{Timeout: 10 * time.Second},
	}
}

func (c *Client) issuesURL(project string) string {
	return c.BaseURL + "/api/issues/" + url.PathEscape(project)
}

// List returns the project's issues matching filters (field name → value).
func (c *Client) List(ctx context.Context, project string, filters map[string]string) ([]models.Issue, error) {
	q := url.Values{}
	for k, v := range filters {
		q.Set(k, v)
	}
	u := c.issuesURL(project)
	if len(q) > 0 {
		u += "?" + q.Encode()
	}

	var issues []models.Issue
	if err := c.do(ctx, http.MethodGet, u, nil, &issues); err != nil {
		return nil, err
	}
	return issues, nil
}

// Create creates an issue from fields and returns the stored record.
func (c *Client) Create(ctx context.Context, project string, fields map[string]string) (*models.Issue, error) {
	body, err := c.send(ctx, http.MethodPost, project, fields)
	if err != nil {
		return nil, err
	}
	if err := payloadError(body); err != nil {
		return nil, err
	}
	var issue models.Issue
	if err := json.Unmarshal(body, &issue); err != nil {
		return nil, fmt.Errorf("decode issue: %w", err)
	}
	return &issue, nil
}

// Update sends fields (which must include _id) as a partial update.
func (c *Client) Update(ctx context.Context, project string, fields map[string]string) (*api.Result, error) {
	return c.result(ctx, http.MethodPut, project, fields)
}

// Delete removes the issue with the given id.
func (c *Client) Delete(ctx context.Context, project, id string) (*api.Result, error) {
	return c.result(ctx, http.MethodDelete, project, map[string]string{models.FieldID: id})
}

// Projects returns the names of all projects on the server.
func (c *Client) Projects(ctx context.Context) ([]string, error) {
	var names []string
	if err := c.do(ctx, http.MethodGet, c.BaseURL+"/api/projects", nil, &names); err != nil {
		return nil, err
	}
	return names, nil
}

func (c *Client) result(ctx context.Context, method, project string, fields map[string]string) (*api.Result, error) {
	body, err := c.send(ctx, method, project, fields)
	if err != nil {
		return nil, err
	}
	var res api.Result
	if err := json.Unmarshal(body, &res); err != nil {
		return nil, fmt.Errorf("decode result: %w", err)
	}
	if res.Error != "" {
		return nil, &APIError{Message: res.Error, ID: res.ID}
	}
	return &res, nil
}

func (c *Client) send(ctx context.Context, method, project string, fields map[string]string) ([]byte, error) {
	data, err := json.Marshal(fields)
	if err != nil {
		return nil, fmt.Errorf("encode request: %w", err)
	}
	var body []byte
	if err := c.do(ctx, method, c.issuesURL(project), data, &body); err != nil {
		return nil, err
	}
	return body, nil
}

// do performs the request. out is either *[]byte for the raw body or a
// value to decode the JSON response into.
func (c *Client) do(ctx context.Context, method, u string, data []byte, out any) error {
	var reqBody io.Reader
	if data != nil {
		reqBody = bytes.NewReader(data)
	}
	req, err := http.NewRequestWithContext(ctx, method, u, reqBody)
	if err != nil {
		return fmt.Errorf("build request: %w", err)
	}
	if data != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.HTTP.Do(req)
	if err != nil {
		return fmt.Errorf("%s %s: %w", method, u, err)
	}
	defer func() { _ = resp.Body.Close() }()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("read response: %w", err)
	}

	// Strict-status servers answer validation failures with 4xx and the
	// usual payload, so surface that payload before the status code.
	if resp.StatusCode != http.StatusOK {
		if err := payloadError(body); err != nil {
			return err
		}
		return fmt.Errorf("%s %s: unexpected status %s", method, u, resp.Status)
	}

	if raw, ok := out.(*[]byte); ok {
		*raw = body
		return nil
	}
	if err := json.Unmarshal(body, out); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}
	return nil
}

// payloadError returns an *APIError when body is an object with an error
// field.
func payloadError(body []byte) error {
	var res api.Result
	if err := json.Unmarshal(body, &res); err != nil || res.Error == "" {
		return nil
	}
	return &APIError{Message: res.Error, ID: res.ID}
}

package github

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"
	"unicode/utf8"
)

const (
	defaultBaseURL    = "https://api.github.com"
	defaultAPIVersion = "2022-11-28"
	defaultTimeout    = 30 * time.Second

	mediaTypeJSON = "application/vnd.github+json"
	mediaTypeRaw  = "application/vnd.github.raw"

	// maxErrorBody limits how much of a failed response is kept in the error message
	maxErrorBody = 512

	// defaultMaxBodySize caps a single response body
	defaultMaxBodySize = 32 << 20
)

// Config defines client configuration
type Config struct {
	BaseURL     string
	Token       string
	APIVersion  string
	Timeout     time.Duration
	MaxBodySize int64
	HTTPClient  *http.Client
}

// Client makes authenticated requests to the GitHub REST API
type Client struct {
	baseURL    string
	token      string
	apiVersion string
	timeout    time.Duration
	maxBody    int64
	http       *http.Client
}

// RemoteRequestError is returned for any non-2xx response or transport failure.
// Status is zero when no response was received.
type RemoteRequestError struct {
	Status  int
	Method  string
	URL     string
	Message string
}

func (e *RemoteRequestError) Error() string {
	if e.Status == 0 {
		return fmt.Sprintf("%s %s: %s", e.Method, e.URL, e.Message)
	}
	if e.Message == "" {
		return fmt.Sprintf("%s %s: status %d", e.Method, e.URL, e.Status)
	}
	return fmt.Sprintf("%s %s: status %d: %s", e.Method, e.URL, e.Status, e.Message)
}

// IsNotFound reports whether err is a RemoteRequestError with status 404
func IsNotFound(err error) bool {
	var reqErr *RemoteRequestError
	return errors.As(err, &reqErr) && reqErr.Status == http.StatusNotFound
}

// IsUnauthorized reports whether err is a RemoteRequestError with status 401
func IsUnauthorized(err error) bool {
	var reqErr *RemoteRequestError
	return errors.As(err, &reqErr) && reqErr.Status == http.StatusUnauthorized
}

// NewClient creates a new GitHub API client, filling defaults for empty fields
func NewClient(cfg Config) *Client {
	c := &Client{
		baseURL:    strings.TrimRight(cfg.BaseURL, "/"),
		token:      cfg.Token,
		apiVersion: cfg.APIVersion,
		timeout:    cfg.Timeout,
		maxBody:    cfg.MaxBodySize,
		http:       cfg.HTTPClient,
	}
	if c.baseURL == "" {
		c.baseURL = defaultBaseURL
	}
	if c.apiVersion == "" {
		c.apiVersion = defaultAPIVersion
	}
	if c.timeout <= 0 {
		c.timeout = defaultTimeout
	}
	if c.maxBody <= 0 {
		c.maxBody = defaultMaxBodySize
	}
	if c.http == nil {
		c.http = &http.Client{}
	}
	return c
}

// GetJSON requests an API path and decodes the JSON response into out
func (c *Client) GetJSON(ctx context.Context, path string, query url.Values, out any) error {
	body, err := c.do(ctx, c.resolve(path, query), mediaTypeJSON)
	if err != nil {
		return err
	}
	if err := json.Unmarshal(body, out); err != nil {
		return fmt.Errorf("failed to decode response from %s: %w", path, err)
	}
	return nil
}

// GetRaw requests raw file content. target is either an absolute download URL
// or an API path relative to the base URL.
func (c *Client) GetRaw(ctx context.Context, target string) (string, error) {
	if !strings.HasPrefix(target, "http://") && !strings.HasPrefix(target, "https://") {
		target = c.resolve(target, nil)
	}
	body, err := c.do(ctx, target, mediaTypeRaw)
	if err != nil {
		return "", err
	}
	return string(body), nil
}

func (c *Client) resolve(path string, query url.Values) string {
	u := c.baseURL + "/" + strings.TrimLeft(path, "/")
	if len(query) > 0 {
		u += "?" + query.Encode()
	}
	return u
}

// do performs a single GET bounded by the client timeout
func (c *Client) do(ctx context.Context, target, accept string) ([]byte, error) {
	if c.token == "" {
		return nil, &RemoteRequestError{Status: http.StatusUnauthorized, Method: http.MethodGet, URL: target,
			Message: "github token is not configured"}
	}

	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, target, http.NoBody)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Accept", accept)
	req.Header.Set("Authorization", "Bearer "+c.token)
	req.Header.Set("X-GitHub-Api-Version", c.apiVersion)

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, &RemoteRequestError{Method: http.MethodGet, URL: target, Message: err.Error()}
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, c.maxBody+1))
	if err != nil {
		return nil, &RemoteRequestError{Status: resp.StatusCode, Method: http.MethodGet, URL: target,
			Message: fmt.Sprintf("failed to read body: %v", err)}
	}
	if int64(len(body)) > c.maxBody {
		return nil, &RemoteRequestError{Status: resp.StatusCode, Method: http.MethodGet, URL: target,
			Message: fmt.Sprintf("response body exceeds %d bytes", c.maxBody)}
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, &RemoteRequestError{Status: resp.StatusCode, Method: http.MethodGet, URL: target,
			Message: errorMessage(body)}
	}
	return body, nil
}

// errorMessage extracts the "message" field GitHub sets on error bodies,
// falling back to a truncated raw body
func errorMessage(body []byte) string {
	var apiErr struct {
		Message string `json:"message"`
	}
	if err := json.Unmarshal(body, &apiErr); err == nil && apiErr.Message != "" {
		return apiErr.Message
	}
	msg := strings.TrimSpace(string(body))
	return truncateUTF8(msg, maxErrorBody)
}

// truncateUTF8 cuts s to at most n bytes without splitting a rune
func truncateUTF8(s string, n int) string {
	if len(s) <= n {
		return s
	}
	for n > 0 && !utf8.RuneStart(s[n]) {
		n--
	}
	return s[:n]
}

// Package gitlabapi provides a GitLab REST API v4 client scoped to a single
// project: current-user lookup, user search, merge request listing, and raw
// diff download.
package gitlabapi

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"os"
	"strings"
	"sync"

	"github.com/go-faster/errors"
	"github.com/go-faster/jx"
)

// DefaultBaseURL is the gitlab.com REST endpoint. Override with
// GITLAB_BASE_URL for self-hosted instances.
const DefaultBaseURL = "https://gitlab.com/api/v4"

// HTTPClient is the subset of http.Client the client needs (allows a fake in
// tests).
type HTTPClient interface {
	Do(req *http.Request) (*http.Response, error)
}

// =============================================================================
// Errors
// =============================================================================

// ErrorKind classifies an APIError.
type ErrorKind string

const (
	ErrNetwork  ErrorKind = "network"
	ErrAuth     ErrorKind = "auth"
	ErrNotFound ErrorKind = "not_found"
	ErrHTTP     ErrorKind = "http"
)

// APIError is the single error category for transport and HTTP failures.
type APIError struct {
	Kind    ErrorKind
	Status  int // HTTP status code, 0 for network failures
	Message string
}

func (e *APIError) Error() string { return e.Message }

// ConfigError reports a missing required environment value.
type ConfigError struct {
	Variable string
}

func (e *ConfigError) Error() string {
	return fmt.Sprintf("%s environment variable not set", e.Variable)
}

// =============================================================================
// Types
// =============================================================================

// User is a GitLab user record.
type User struct {
	ID       int64  `json:"id"`
	Username string `json:"username"`
	Name     string `json:"name"`
	Email    string `json:"email"`
}

// MergeRequest is a GitLab merge request as returned by the listing endpoint.
// Timestamps stay as ISO-8601 strings; callers only ever truncate them.
type MergeRequest struct {
	IID          int64    `json:"iid"`
	Title        string   `json:"title"`
	State        string   `json:"state"`
	Author       User     `json:"author"`
	SourceBranch string   `json:"source_branch"`
	TargetBranch string   `json:"target_branch"`
	CreatedAt    string   `json:"created_at"`
	UpdatedAt    string   `json:"updated_at"`
	WebURL       string   `json:"web_url"`
	Description  string   `json:"description"`
	Assignees    []User   `json:"assignees"`
	Labels       []string `json:"labels"`
	Upvotes      int      `json:"upvotes"`
	Downvotes    int      `json:"downvotes"`
}

// MergeRequestFilter selects which merge requests a listing call returns.
// Zero AuthorID/AssigneeID means "not filtered by that field".
type MergeRequestFilter struct {
	State      string
	Scope      string
	AuthorID   int64
	AssigneeID int64
}

// =============================================================================
// Client
// =============================================================================

// Client talks to the GitLab API for one project. The authenticated user is
// fetched at most once and memoized for the client's lifetime.
type Client struct {
	baseURL    string
	token      string
	projectID  string
	httpClient HTTPClient

	mu          sync.Mutex
	currentUser *User
}

// NewClient creates a client for the given project. The token is read from
// GITLAB_TOKEN at construction time.
func NewClient(projectID string) (*Client, error) {
	if projectID == "" {
		return nil, &ConfigError{Variable: "PROJECT_ID"}
	}
	token := os.Getenv("GITLAB_TOKEN")
	if token == "" {
		return nil, &ConfigError{Variable: "GITLAB_TOKEN"}
	}
	baseURL := os.Getenv("GITLAB_BASE_URL")
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}
	return &Client{
		baseURL:    strings.TrimRight(baseURL, "/"),
		token:      token,
		projectID:  projectID,
		httpClient: http.DefaultClient,
	}, nil
}

// CurrentUser returns the authenticated user, fetching it on the first call
// and serving the memoized record afterwards.
func (c *Client) CurrentUser(ctx context.Context) (*User, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.currentUser != nil {
		return c.currentUser, nil
	}

	var user User
	if err := c.getJSON(ctx, "/user", &user); err != nil {
		return nil, err
	}
	c.currentUser = &user
	return c.currentUser, nil
}

// UserByEmail searches users by email and returns the exact (case-sensitive)
// match, or nil if there is none. Best-effort by contract: lookup failures of
// any kind are reported as not-found, never as an error.
func (c *Client) UserByEmail(ctx context.Context, email string) *User {
	var users []User
	if err := c.getJSON(ctx, "/users?search="+url.QueryEscape(email), &users); err != nil {
		return nil
	}
	for i := range users {
		if users[i].Email == email {
			return &users[i]
		}
	}
	return nil
}

// MergeRequests lists the project's merge requests matching the filter.
// Only the first page the API returns is used.
func (c *Client) MergeRequests(ctx context.Context, filter MergeRequestFilter) ([]MergeRequest, error) {
	endpoint := fmt.Sprintf("/projects/%s/merge_requests?state=%s&scope=%s",
		c.projectID, filter.State, filter.Scope)
	if filter.AuthorID != 0 {
		endpoint += fmt.Sprintf("&author_id=%d", filter.AuthorID)
	}
	if filter.AssigneeID != 0 {
		endpoint += fmt.Sprintf("&assignee_id=%d", filter.AssigneeID)
	}

	var mrs []MergeRequest
	if err := c.getJSON(ctx, endpoint, &mrs); err != nil {
		return nil, err
	}
	return mrs, nil
}

// RawDiff fetches the raw diff text for a merge request. The body is plain
// text, returned un-decoded.
func (c *Client) RawDiff(ctx context.Context, mrIID string) (string, error) {
	endpoint := fmt.Sprintf("/projects/%s/merge_requests/%s/raw_diffs", c.projectID, mrIID)
	body, err := c.get(ctx, endpoint)
	if err != nil {
		return "", err
	}
	return string(body), nil
}

// =============================================================================
// Request plumbing
// =============================================================================

func (c *Client) getJSON(ctx context.Context, endpoint string, v any) error {
	body, err := c.get(ctx, endpoint)
	if err != nil {
		return err
	}
	if err := json.Unmarshal(body, v); err != nil {
		return errors.Wrap(err, "decode response")
	}
	return nil
}

// get issues one authenticated GET and maps transport/HTTP failures to
// APIError per the client's error taxonomy.
func (c *Client) get(ctx context.Context, endpoint string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+endpoint, nil)
	if err != nil {
		return nil, errors.Wrap(err, "create request")
	}
	req.Header.Set("PRIVATE-TOKEN", c.token)
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, &APIError{Kind: ErrNetwork, Message: fmt.Sprintf("Network error: %v", err)}
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, c.statusError(resp, endpoint)
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, &APIError{Kind: ErrNetwork, Message: fmt.Sprintf("Network error: %v", err)}
	}
	return body, nil
}

func (c *Client) statusError(resp *http.Response, endpoint string) *APIError {
	switch resp.StatusCode {
	case http.StatusUnauthorized:
		return &APIError{
			Kind:    ErrAuth,
			Status:  resp.StatusCode,
			Message: "Authentication failed. Check your GITLAB_TOKEN",
		}
	case http.StatusNotFound:
		return &APIError{
			Kind:    ErrNotFound,
			Status:  resp.StatusCode,
			Message: fmt.Sprintf("Resource not found: %s", endpoint),
		}
	default:
		return &APIError{
			Kind:    ErrHTTP,
			Status:  resp.StatusCode,
			Message: fmt.Sprintf("API request failed with status %d: %s", resp.StatusCode, errorBody(resp.Body)),
		}
	}
}

// errorBody extracts a readable message from an error response. GitLab error
// bodies are usually {"message": ...}; fall back to the raw text, then to a
// placeholder if the body is unreadable or empty.
func errorBody(r io.Reader) string {
	raw, err := io.ReadAll(io.LimitReader(r, 4096))
	if err != nil || len(raw) == 0 {
		return "unknown error"
	}
	if msg := jsonMessage(raw); msg != "" {
		return msg
	}
	return string(raw)
}

func jsonMessage(raw []byte) string {
	d := jx.DecodeBytes(raw)
	var msg string
	err := d.Obj(func(d *jx.Decoder, key string) error {
		if key != "message" {
			return d.Skip()
		}
		s, err := d.Str()
		if err != nil {
			return err
		}
		msg = s
		return nil
	})
	if err != nil {
		return ""
	}
	return msg
}

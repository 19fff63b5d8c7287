package github

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"math"
	"net/http"
	"net/url"
	"regexp"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/sirupsen/logrus"
	"golang.org/x/oauth2"
)

const defaultAPIBaseURL = "https://api.github.com"

// RateLimitInfo holds information about GitHub API rate limits
type RateLimitInfo struct {
	Limit     int
	Remaining int
	ResetTime time.Time
	// Secondary rate limit, announced through Retry-After
	SecondaryLimitReset time.Time
}

// GitHubClient represents a client for interacting with the GitHub API on
// behalf of a single credential.
type GitHubClient struct {
	client  *http.Client
	baseURL string
	logger  *logrus.Logger

	mu            sync.Mutex
	rateLimitInfo RateLimitInfo

	maxRetries     int
	initialBackoff time.Duration
	maxBackoff     time.Duration
}

// ClientOption allows configuring the GitHub client
type ClientOption func(*GitHubClient)

// WithRetryConfig configures retry behavior
func WithRetryConfig(maxRetries int, initialBackoff, maxBackoff time.Duration) ClientOption {
	return func(c *GitHubClient) {
		if maxRetries > 0 {
			c.maxRetries = maxRetries
		}
		c.initialBackoff = initialBackoff
		c.maxBackoff = maxBackoff
	}
}

// WithBaseURL points the client at a GitHub Enterprise or test server
func WithBaseURL(baseURL string) ClientOption {
	return func(c *GitHubClient) {
		if baseURL != "" {
			c.baseURL = strings.TrimRight(baseURL, "/")
		}
	}
}

// WithTimeout bounds every HTTP round trip
func WithTimeout(timeout time.Duration) ClientOption {
	return func(c *GitHubClient) {
		if timeout > 0 {
			c.client.Timeout = timeout
		}
	}
}

// NewGitHubClient creates a new GitHub client with the given token and options
func NewGitHubClient(token string, logger *logrus.Logger, opts ...ClientOption) *GitHubClient {
	ts := oauth2.StaticTokenSource(
		&oauth2.Token{AccessToken: token},
	)
	httpClient := oauth2.NewClient(context.Background(), ts)
	httpClient.Timeout = 120 * time.Second

	client := &GitHubClient{
		client:         httpClient,
		baseURL:        defaultAPIBaseURL,
		logger:         logger,
		maxRetries:     3,
		initialBackoff: time.Second,
		maxBackoff:     time.Minute,
	}

	for _, opt := range opts {
		opt(client)
	}

	return client
}

// updateRateLimitInfo updates the rate limit information from response headers
func (c *GitHubClient) updateRateLimitInfo(resp *http.Response) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if limit := resp.Header.Get("X-RateLimit-Limit"); limit != "" {
		c.rateLimitInfo.Limit, _ = strconv.Atoi(limit)
	}
	if remaining := resp.Header.Get("X-RateLimit-Remaining"); remaining != "" {
		c.rateLimitInfo.Remaining, _ = strconv.Atoi(remaining)
	}
	if reset := resp.Header.Get("X-RateLimit-Reset"); reset != "" {
		if resetTime, err := strconv.ParseInt(reset, 10, 64); err == nil {
			c.rateLimitInfo.ResetTime = time.Unix(resetTime, 0)
		}
	}
	if retryAfter := resp.Header.Get("Retry-After"); retryAfter != "" {
		if retrySeconds, err := strconv.ParseInt(retryAfter, 10, 64); err == nil {
			c.rateLimitInfo.SecondaryLimitReset = time.Now().Add(time.Duration(retrySeconds) * time.Second)
		}
	}
}

// RateLimit returns a copy of the last seen rate limit headers
func (c *GitHubClient) RateLimit() RateLimitInfo {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.rateLimitInfo
}

// rateLimitWait returns how long to wait before the next request. Waits are
// capped at maxBackoff so a long reset window surfaces as an error instead of
// parking the caller.
func (c *GitHubClient) rateLimitWait() (time.Duration, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	var wait time.Duration
	if c.rateLimitInfo.Limit > 0 && c.rateLimitInfo.Remaining <= 5 {
		wait = time.Until(c.rateLimitInfo.ResetTime)
	}
	if secondary := time.Until(c.rateLimitInfo.SecondaryLimitReset); secondary > wait {
		wait = secondary
	}
	if wait <= 0 {
		return 0, true
	}
	return wait, wait <= c.maxBackoff
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return nil
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}

// doRequestWithBackoff performs an API call with exponential backoff on
// transport failures and 5xx responses. The request is rebuilt on every
// attempt so bodies can be replayed.
func (c *GitHubClient) doRequestWithBackoff(ctx context.Context, method, path string, payload, result interface{}) (http.Header, error) {
	var body []byte
	if payload != nil {
		var err error
		body, err = json.Marshal(payload)
		if err != nil {
			return nil, fmt.Errorf("failed to encode request: %w", err)
		}
	}

	var lastErr error
	backoff := c.initialBackoff
	logger := c.logger.WithFields(logrus.Fields{"method": method, "path": path})

	for attempt := 0; attempt < c.maxRetries; attempt++ {
		if wait, ok := c.rateLimitWait(); !ok {
			info := c.RateLimit()
			return nil, NewRateLimitError(info.ResetTime, info.Limit, info.Remaining)
		} else if wait > 0 {
			logger.Warnf("Rate limit nearly exceeded. Waiting %v before next request", wait)
			if err := sleepCtx(ctx, wait); err != nil {
				return nil, err
			}
		}

		req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, bytes.NewReader(body))
		if err != nil {
			return nil, fmt.Errorf("failed to create request: %w", err)
		}
		req.Header.Set("Accept", "application/vnd.github+json")
		req.Header.Set("X-GitHub-Api-Version", "2022-11-28")
		if payload != nil {
			req.Header.Set("Content-Type", "application/json")
		}

		resp, err := c.client.Do(req)
		if err != nil {
			if ctx.Err() != nil {
				return nil, NewGitHubError(0, "request cancelled", ctx.Err())
			}
			lastErr = NewGitHubError(0, "request failed", err)
			logger.Warnf("Request attempt %d failed: %v", attempt+1, err)
			if err := sleepCtx(ctx, backoff); err != nil {
				return nil, err
			}
			backoff = time.Duration(math.Min(float64(backoff*2), float64(c.maxBackoff)))
			continue
		}

		c.updateRateLimitInfo(resp)

		respBody, err := io.ReadAll(resp.Body)
		resp.Body.Close()
		if err != nil {
			lastErr = NewGitHubError(resp.StatusCode, "failed to read response body", err)
			continue
		}

		if resp.StatusCode == http.StatusTooManyRequests ||
			(resp.StatusCode == http.StatusForbidden && resp.Header.Get("X-RateLimit-Remaining") == "0") {
			info := c.RateLimit()
			lastErr = NewRateLimitError(info.ResetTime, info.Limit, info.Remaining)
			logger.Warn("Rate limit exceeded")
			continue
		}

		if resp.StatusCode < 200 || resp.StatusCode >= 300 {
			lastErr = NewGitHubError(resp.StatusCode, apiMessage(respBody), nil)
			if resp.StatusCode >= 500 {
				if err := sleepCtx(ctx, backoff); err != nil {
					return nil, err
				}
				backoff = time.Duration(math.Min(float64(backoff*2), float64(c.maxBackoff)))
				continue
			}
			return resp.Header, lastErr
		}

		if result != nil && len(respBody) > 0 {
			if err := json.Unmarshal(respBody, result); err != nil {
				return resp.Header, NewGitHubError(resp.StatusCode, "failed to decode response", err)
			}
		}

		return resp.Header, nil
	}

	if IsRateLimitError(lastErr) {
		return nil, lastErr
	}
	return nil, fmt.Errorf("max retries exceeded: %w", lastErr)
}

func apiMessage(body []byte) string {
	var apiErr struct {
		Message string `json:"message"`
	}
	if err := json.Unmarshal(body, &apiErr); err == nil && apiErr.Message != "" {
		return apiErr.Message
	}
	return string(body)
}

// GetAuthenticatedUser returns the account the token belongs to
func (c *GitHubClient) GetAuthenticatedUser(ctx context.Context) (*User, error) {
	var user User
	if _, err := c.doRequestWithBackoff(ctx, http.MethodGet, "/user", nil, &user); err != nil {
		return nil, err
	}
	return &user, nil
}

// GetRepository gets repository information from GitHub
func (c *GitHubClient) GetRepository(ctx context.Context, owner, name string) (*Repository, error) {
	if owner == "" {
		return nil, NewValidationError("owner", "cannot be empty")
	}
	if name == "" {
		return nil, NewValidationError("name", "cannot be empty")
	}

	var repo Repository
	_, err := c.doRequestWithBackoff(ctx, http.MethodGet, repoPath(owner, name), nil, &repo)
	if err != nil {
		if StatusCode(err) == http.StatusNotFound {
			return nil, NewRepositoryNotFoundError(owner, name)
		}
		return nil, err
	}
	return &repo, nil
}

// CreateRepository creates a repository owned by the authenticated user
func (c *GitHubClient) CreateRepository(ctx context.Context, req CreateRepositoryRequest) (*Repository, error) {
	if req.Name == "" {
		return nil, NewValidationError("name", "cannot be empty")
	}

	var repo Repository
	if _, err := c.doRequestWithBackoff(ctx, http.MethodPost, "/user/repos", req, &repo); err != nil {
		return nil, err
	}
	c.logger.WithFields(logrus.Fields{
		"repo":    repo.FullName,
		"private": repo.Private,
	}).Info("Created GitHub repository")
	return &repo, nil
}

// DeleteRepository deletes a repository. Missing repositories are reported
// as RepositoryNotFoundError.
func (c *GitHubClient) DeleteRepository(ctx context.Context, owner, name string) error {
	_, err := c.doRequestWithBackoff(ctx, http.MethodDelete, repoPath(owner, name), nil, nil)
	if err != nil && StatusCode(err) == http.StatusNotFound {
		return NewRepositoryNotFoundError(owner, name)
	}
	return err
}

// UpdateVisibility switches a repository between private and public
func (c *GitHubClient) UpdateVisibility(ctx context.Context, owner, name string, private bool) (*Repository, error) {
	var repo Repository
	_, err := c.doRequestWithBackoff(ctx, http.MethodPatch, repoPath(owner, name), updateRepositoryRequest{Private: private}, &repo)
	if err != nil {
		if StatusCode(err) == http.StatusNotFound {
			return nil, NewRepositoryNotFoundError(owner, name)
		}
		return nil, err
	}
	return &repo, nil
}

var lastPageRe = regexp.MustCompile(`[?&]page=(\d+)[^>]*>;\s*rel="last"`)

// CommitCount returns the number of commits on the default branch. An empty
// repository answers 409 and counts as zero.
func (c *GitHubClient) CommitCount(ctx context.Context, owner, name string) (int, error) {
	query := url.Values{}
	query.Set("per_page", "1")

	var commits []struct {
		SHA string `json:"sha"`
	}
	header, err := c.doRequestWithBackoff(ctx, http.MethodGet, repoPath(owner, name)+"/commits?"+query.Encode(), nil, &commits)
	if err != nil {
		if StatusCode(err) == http.StatusConflict {
			return 0, nil
		}
		if StatusCode(err) == http.StatusNotFound {
			return 0, NewRepositoryNotFoundError(owner, name)
		}
		return 0, err
	}

	if m := lastPageRe.FindStringSubmatch(header.Get("Link")); m != nil {
		if n, err := strconv.Atoi(m[1]); err == nil {
			return n, nil
		}
	}
	return len(commits), nil
}

func repoPath(owner, name string) string {
	return fmt.Sprintf("/repos/%s/%s", url.PathEscape(owner), url.PathEscape(name))
}

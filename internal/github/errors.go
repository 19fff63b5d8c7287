package github

import (
	"errors"
	"fmt"
	"net/http"
	"time"
)

// GitHubError is a non-success API response, or a transport failure when
// StatusCode is 0.
type GitHubError struct {
	StatusCode int
	Message    string
	Err        error
}

func (e *GitHubError) Error() string {
	if e.StatusCode == 0 {
		return fmt.Sprintf("GitHub API unreachable: %s: %v", e.Message, e.Err)
	}
	if e.Err != nil {
		return fmt.Sprintf("GitHub API error (status %d): %s: %v", e.StatusCode, e.Message, e.Err)
	}
	return fmt.Sprintf("GitHub API error (status %d): %s", e.StatusCode, e.Message)
}

func (e *GitHubError) Unwrap() error {
	return e.Err
}

// RateLimitError is returned once retries are exhausted on a limited account
type RateLimitError struct {
	ResetTime time.Time
	Limit     int
	Remaining int
}

func (e *RateLimitError) Error() string {
	return fmt.Sprintf("GitHub API rate limit exceeded. Reset at %v. Limit: %d, Remaining: %d",
		e.ResetTime, e.Limit, e.Remaining)
}

// ValidationError rejects an argument before any request is sent
type ValidationError struct {
	Field string
	Value string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("validation error: invalid %s: %s", e.Field, e.Value)
}

// RepositoryNotFoundError is a 404 on a repository endpoint
type RepositoryNotFoundError struct {
	Owner string
	Name  string
}

func (e *RepositoryNotFoundError) Error() string {
	return fmt.Sprintf("repository not found: %s/%s", e.Owner, e.Name)
}

func NewGitHubError(statusCode int, message string, err error) error {
	return &GitHubError{StatusCode: statusCode, Message: message, Err: err}
}

func NewRateLimitError(resetTime time.Time, limit, remaining int) error {
	return &RateLimitError{ResetTime: resetTime, Limit: limit, Remaining: remaining}
}

func NewValidationError(field, value string) error {
	return &ValidationError{Field: field, Value: value}
}

func NewRepositoryNotFoundError(owner, name string) error {
	return &RepositoryNotFoundError{Owner: owner, Name: name}
}

// StatusCode returns the HTTP status carried by err, or 0 for transport
// failures and non-API errors.
func StatusCode(err error) int {
	var ghErr *GitHubError
	if errors.As(err, &ghErr) {
		return ghErr.StatusCode
	}
	return 0
}

// IsUnauthorized reports whether GitHub rejected the credential
func IsUnauthorized(err error) bool {
	code := StatusCode(err)
	return code == http.StatusUnauthorized || code == http.StatusForbidden
}

// IsNotFound reports a missing resource
func IsNotFound(err error) bool {
	var nf *RepositoryNotFoundError
	return errors.As(err, &nf) || StatusCode(err) == http.StatusNotFound
}

// IsNameTaken reports a create rejected because the name already exists
// under the account, usually after a concurrent create.
func IsNameTaken(err error) bool {
	return StatusCode(err) == http.StatusUnprocessableEntity
}

func IsRateLimitError(err error) bool {
	var rl *RateLimitError
	return errors.As(err, &rl)
}

// IsTransportError reports failures where no usable response was received
func IsTransportError(err error) bool {
	var ghErr *GitHubError
	if errors.As(err, &ghErr) {
		return ghErr.StatusCode == 0 || ghErr.StatusCode >= 500
	}
	return false
}

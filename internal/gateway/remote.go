package gateway

import (
	"context"
	"encoding/base64"
	stderrors "errors"
	"fmt"
	"strings"
	"time"

	git "github.com/go-git/go-git/v5"
	gitconfig "github.com/go-git/go-git/v5/config"
	"github.com/go-git/go-git/v5/plumbing/object"
	"github.com/go-git/go-git/v5/plumbing/transport"
	githttp "github.com/go-git/go-git/v5/plumbing/transport/http"
	"github.com/sirupsen/logrus"

	"github.com/Kamar-Folarin/repo-autosync/internal/config"
	"github.com/Kamar-Folarin/repo-autosync/internal/errors"
	"github.com/Kamar-Folarin/repo-autosync/internal/github"
	"github.com/Kamar-Folarin/repo-autosync/internal/utils"
)

// Hosting is the subset of the hosting provider API used by the gateway
type Hosting interface {
	GetAuthenticatedUser(ctx context.Context) (*github.User, error)
	GetRepository(ctx context.Context, owner, name string) (*github.Repository, error)
	CreateRepository(ctx context.Context, req github.CreateRepositoryRequest) (*github.Repository, error)
	DeleteRepository(ctx context.Context, owner, name string) error
	UpdateVisibility(ctx context.Context, owner, name string, private bool) (*github.Repository, error)
	CommitCount(ctx context.Context, owner, name string) (int, error)
}

// HostingFactory builds a client authenticated with the given credential
type HostingFactory func(credential string) Hosting

// NewGitHubHosting returns a factory for GitHub API clients
func NewGitHubHosting(cfg *config.GitHubConfig, logger *logrus.Logger) HostingFactory {
	if cfg == nil {
		cfg = config.DefaultGitHubConfig()
	}
	return func(credential string) Hosting {
		return github.NewGitHubClient(credential, logger,
			github.WithBaseURL(cfg.APIBaseURL),
			github.WithTimeout(cfg.Timeout),
			github.WithRetryConfig(cfg.RateLimit.MaxRetries, cfg.RateLimit.InitialBackoff, cfg.RateLimit.MaxBackoff),
		)
	}
}

// RemoteRepoRequest describes the hosted repository a project should use
type RemoteRepoRequest struct {
	Owner       string
	Name        string
	Description string
	Private     bool
}

// RemoteRepo is the outcome of EnsureRemoteRepo
type RemoteRepo struct {
	URL         string
	CommitCount int
	Created     bool
	Private     bool
}

// ConnectRemote validates the credential and returns the account login
func (g *Gateway) ConnectRemote(ctx context.Context, credential string) (string, error) {
	if credential == "" {
		return "", errors.NewCredentialMissingError("a hosting credential is required").WithOp("connect_remote")
	}
	user, err := g.hosting(credential).GetAuthenticatedUser(ctx)
	if err != nil {
		return "", classifyHostingError("connect_remote", err)
	}
	return user.Login, nil
}

// EnsureRemoteRepo returns the hosted repository, creating it empty with the
// requested visibility when it does not exist. An existing repository is
// never modified.
func (g *Gateway) EnsureRemoteRepo(ctx context.Context, credential string, req RemoteRepoRequest) (*RemoteRepo, error) {
	if credential == "" {
		return nil, errors.NewCredentialMissingError("a hosting credential is required").WithOp("ensure_remote_repo")
	}
	if req.Owner == "" || req.Name == "" {
		return nil, errors.NewValidationError("remote owner and name are required", nil).WithOp("ensure_remote_repo")
	}
	client := g.hosting(credential)

	existing, err := client.GetRepository(ctx, req.Owner, req.Name)
	if err == nil {
		count, err := client.CommitCount(ctx, req.Owner, req.Name)
		if err != nil {
			return nil, classifyHostingError("ensure_remote_repo", err)
		}
		return &RemoteRepo{
			URL:         existing.CloneURL,
			CommitCount: count,
			Private:     existing.Private,
		}, nil
	}
	if !github.IsNotFound(err) {
		return nil, classifyHostingError("ensure_remote_repo", err)
	}

	created, err := client.CreateRepository(ctx, github.CreateRepositoryRequest{
		Name:        req.Name,
		Description: req.Description,
		Private:     req.Private,
		AutoInit:    false,
	})
	if github.IsNameTaken(err) {
		// created elsewhere since the lookup
		if existing, getErr := client.GetRepository(ctx, req.Owner, req.Name); getErr == nil {
			return &RemoteRepo{URL: existing.CloneURL, Private: existing.Private}, nil
		}
	}
	if err != nil {
		return nil, classifyHostingError("ensure_remote_repo", err)
	}

	g.logger.WithFields(logrus.Fields{
		"repo":    created.FullName,
		"private": created.Private,
	}).Info("Created remote repository")

	return &RemoteRepo{URL: created.CloneURL, Created: true, Private: created.Private}, nil
}

// DeleteRemoteRepo deletes the hosted repository behind url. A repository
// that is already gone counts as deleted.
func (g *Gateway) DeleteRemoteRepo(ctx context.Context, credential, url string) error {
	owner, name, err := g.remoteCoordinates(credential, url, "delete_remote_repo")
	if err != nil {
		return err
	}
	if err := g.hosting(credential).DeleteRepository(ctx, owner, name); err != nil && !github.IsNotFound(err) {
		return classifyHostingError("delete_remote_repo", err)
	}
	return nil
}

// SetVisibility changes the hosted repository's visibility
func (g *Gateway) SetVisibility(ctx context.Context, credential, url string, private bool) error {
	owner, name, err := g.remoteCoordinates(credential, url, "set_visibility")
	if err != nil {
		return err
	}
	if _, err := g.hosting(credential).UpdateVisibility(ctx, owner, name, private); err != nil {
		return classifyHostingError("set_visibility", err)
	}
	return nil
}

// Visibility reports whether the hosted repository is private
func (g *Gateway) Visibility(ctx context.Context, credential, url string) (bool, error) {
	owner, name, err := g.remoteCoordinates(credential, url, "visibility")
	if err != nil {
		return false, err
	}
	repo, err := g.hosting(credential).GetRepository(ctx, owner, name)
	if err != nil {
		return false, classifyHostingError("visibility", err)
	}
	return repo.Private, nil
}

func (g *Gateway) remoteCoordinates(credential, url, op string) (string, string, error) {
	if credential == "" {
		return "", "", errors.NewCredentialMissingError("a hosting credential is required").WithOp(op)
	}
	owner, name, err := utils.ParseRepoURL(url)
	if err != nil {
		return "", "", errors.NewValidationError("remote URL is not a hosted repository", err).WithOp(op)
	}
	return owner, name, nil
}

func classifyHostingError(op string, err error) *errors.AppError {
	var rl *github.RateLimitError
	var ve *github.ValidationError
	switch {
	case stderrors.As(err, &rl):
		appErr := errors.NewRateLimitError(rl.ResetTime, rl.Limit, rl.Remaining)
		appErr.Cause = err
		return appErr.WithOp(op)
	case stderrors.As(err, &ve):
		return errors.NewValidationError(ve.Error(), err).WithOp(op)
	case github.IsUnauthorized(err):
		return errors.NewCredentialInvalidError("credential rejected by hosting provider", err).WithOp(op)
	case github.IsNotFound(err):
		return errors.NewRemoteRejectedError("remote repository not found", err).WithOp(op)
	case github.IsTransportError(err):
		return errors.NewRemoteUnreachableError("hosting provider unreachable", err).WithOp(op)
	default:
		return errors.NewRemoteRejectedError("hosting provider rejected the request", err).WithOp(op)
	}
}

func classifyGitError(op string, err error) *errors.AppError {
	switch {
	case stderrors.Is(err, transport.ErrAuthenticationRequired),
		stderrors.Is(err, transport.ErrAuthorizationFailed),
		stderrors.Is(err, transport.ErrInvalidAuthMethod):
		return errors.NewCredentialInvalidError("credential rejected by remote", err).WithOp(op)
	case stderrors.Is(err, transport.ErrRepositoryNotFound):
		return errors.NewRemoteRejectedError("remote repository not found", err).WithOp(op)
	case isNonFastForward(err):
		return errors.NewPushConflictError("remote branch has diverged", err).WithOp(op)
	default:
		return errors.NewRemoteUnreachableError("remote unreachable", err).WithOp(op)
	}
}

func isNonFastForward(err error) bool {
	if err == nil {
		return false
	}
	if stderrors.Is(err, git.ErrForceNeeded) {
		return true
	}
	msg := strings.ToLower(err.Error())
	return strings.Contains(msg, "non-fast-forward") || strings.Contains(msg, "fetch first")
}

// authFor returns token auth for HTTP remotes; other transports use their
// own credential mechanisms.
func authFor(url, credential string) transport.AuthMethod {
	if credential == "" {
		return nil
	}
	if !strings.HasPrefix(url, "https://") && !strings.HasPrefix(url, "http://") {
		return nil
	}
	return &githttp.BasicAuth{Username: "x-access-token", Password: credential}
}

// authHeader is the git CLI equivalent of authFor
func authHeader(url, credential string) string {
	if authFor(url, credential) == nil {
		return ""
	}
	token := base64.StdEncoding.EncodeToString([]byte("x-access-token:" + credential))
	return "Authorization: Basic " + token
}

func remoteConfig(name, url string) *gitconfig.RemoteConfig {
	return &gitconfig.RemoteConfig{
		Name:  name,
		URLs:  []string{url},
		Fetch: []gitconfig.RefSpec{gitconfig.RefSpec(fmt.Sprintf("+refs/heads/*:refs/remotes/%s/*", name))},
	}
}

func (g *Gateway) signature() *object.Signature {
	return &object.Signature{
		Name:  g.authorName,
		Email: g.authorEmail,
		When:  time.Now(),
	}
}

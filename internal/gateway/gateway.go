// Package gateway wraps local Git operations and the hosting provider API
// behind the calls the orchestrator needs to initialize and sync a project.
package gateway

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"time"

	git "github.com/go-git/go-git/v5"
	"github.com/go-git/go-git/v5/plumbing"
	"github.com/sirupsen/logrus"

	"github.com/Kamar-Folarin/repo-autosync/internal/config"
	"github.com/Kamar-Folarin/repo-autosync/internal/errors"
	"github.com/Kamar-Folarin/repo-autosync/internal/ignore"
	"github.com/Kamar-Folarin/repo-autosync/internal/models"
)

// Reporter receives the step-by-step outcome of multi-step operations such
// as Push. A nil Reporter discards events.
type Reporter func(level models.LogLevel, code models.EventCode, message string, fields map[string]interface{})

func (r Reporter) emit(level models.LogLevel, code models.EventCode, message string, fields map[string]interface{}) {
	if r != nil {
		r(level, code, message, fields)
	}
}

// Gateway performs repository operations for all projects. It holds no
// per-project state; credentials are passed on every hosting call.
type Gateway struct {
	logger        *logrus.Logger
	hosting       HostingFactory
	remoteName    string
	defaultBranch string
	authorName    string
	authorEmail   string
	mergeTimeout  time.Duration
	gitBinary     string
}

// Option configures a Gateway
type Option func(*Gateway)

// WithGitBinary overrides the git executable used for merges
func WithGitBinary(path string) Option {
	return func(g *Gateway) {
		g.gitBinary = path
	}
}

// New creates a Gateway
func New(logger *logrus.Logger, hosting HostingFactory, cfg *config.SyncConfig, opts ...Option) *Gateway {
	if cfg == nil {
		cfg = config.DefaultSyncConfig()
	}
	g := &Gateway{
		logger:        logger,
		hosting:       hosting,
		remoteName:    cfg.RemoteName,
		defaultBranch: cfg.DefaultBranch,
		authorName:    cfg.CommitAuthorName,
		authorEmail:   cfg.CommitAuthorEmail,
		mergeTimeout:  cfg.MergeTimeout,
		gitBinary:     "git",
	}
	for _, opt := range opts {
		opt(g)
	}
	return g
}

// DefaultBranch returns the branch every project is normalized to
func (g *Gateway) DefaultBranch() string {
	return g.defaultBranch
}

// RepoInfo describes an existing local repository
type RepoInfo struct {
	IsRepo    bool
	Branch    string
	RemoteURL string
	Head      string
}

// CommitOptions controls staging for CommitAll
type CommitOptions struct {
	IgnoreHidden bool
}

// CommitResult is the outcome of CommitAll
type CommitResult struct {
	Committed bool
	Files     int
	Hash      string
}

// EnsureLocalRepo creates a repository at path if none exists and reports
// whether it was newly created.
func (g *Gateway) EnsureLocalRepo(ctx context.Context, path string) (bool, error) {
	info, err := os.Stat(path)
	if err != nil || !info.IsDir() {
		return false, errors.NewPathUnusableError(path, err).WithOp("ensure_local_repo")
	}

	if _, err := git.PlainOpen(path); err == nil {
		return false, nil
	} else if err != git.ErrRepositoryNotExists {
		return false, errors.NewInternalError("failed to open repository", err).WithOp("ensure_local_repo")
	}

	_, err = git.PlainInitWithOptions(path, &git.PlainInitOptions{
		InitOptions: git.InitOptions{
			DefaultBranch: plumbing.NewBranchReferenceName(g.defaultBranch),
		},
	})
	if err != nil {
		return false, errors.NewPathUnusableError(path, err).WithOp("ensure_local_repo")
	}

	g.logger.WithFields(logrus.Fields{
		"path":   path,
		"branch": g.defaultBranch,
	}).Info("Initialized repository")
	return true, nil
}

// EnsureIgnoreFile writes the project's ignore file if absent. An empty
// content selects the default template.
func (g *Gateway) EnsureIgnoreFile(path, content string, overwrite bool) (bool, error) {
	written, err := ignore.Ensure(path, content, overwrite)
	if err != nil {
		return false, errors.NewPathUnusableError(path, err).WithOp("ensure_ignore_file")
	}
	return written, nil
}

// LinkRemote points origin at url, replacing any previous value
func (g *Gateway) LinkRemote(path, url string) error {
	repo, err := g.open(path)
	if err != nil {
		return err
	}

	if remote, err := repo.Remote(g.remoteName); err == nil {
		if urls := remote.Config().URLs; len(urls) == 1 && urls[0] == url {
			return nil
		}
		if err := repo.DeleteRemote(g.remoteName); err != nil {
			return errors.NewInternalError("failed to remove remote", err).WithOp("link_remote")
		}
	} else if err != git.ErrRemoteNotFound {
		return errors.NewInternalError("failed to read remote", err).WithOp("link_remote")
	}

	if _, err := repo.CreateRemote(remoteConfig(g.remoteName, url)); err != nil {
		return errors.NewInternalError("failed to create remote", err).WithOp("link_remote")
	}
	return nil
}

// CommitAll stages every tracked and untracked file not covered by the
// ignore rules and commits them. Hidden paths are left out of the commit when
// IgnoreHidden is set. A clean tree is a no-op.
func (g *Gateway) CommitAll(path, message string, opts CommitOptions) (*CommitResult, error) {
	repo, err := g.open(path)
	if err != nil {
		return nil, err
	}

	w, err := repo.Worktree()
	if err != nil {
		return nil, errors.NewInternalError("failed to open worktree", err).WithOp("commit")
	}

	// status already leaves out paths matched by .gitignore
	status, err := w.Status()
	if err != nil {
		return nil, errors.NewInternalError("failed to read status", err).WithOp("commit")
	}
	for p, fs := range status {
		if fs.Worktree == git.Unmodified {
			continue
		}
		if opts.IgnoreHidden && ignore.IsHidden(filepath.ToSlash(p)) {
			continue
		}
		if fs.Worktree == git.Deleted {
			_, err = w.Remove(p)
		} else {
			err = w.AddWithOptions(&git.AddOptions{Path: p, SkipStatus: true})
		}
		if err != nil {
			return nil, errors.NewInternalError("failed to stage "+p, err).WithOp("commit")
		}
	}

	status, err = w.Status()
	if err != nil {
		return nil, errors.NewInternalError("failed to read status", err).WithOp("commit")
	}

	staged := 0
	for _, fs := range status {
		if fs.Staging != git.Unmodified && fs.Staging != git.Untracked {
			staged++
		}
	}
	if staged == 0 {
		return &CommitResult{}, nil
	}

	hash, err := w.Commit(message, &git.CommitOptions{Author: g.signature()})
	if err != nil {
		return nil, errors.NewInternalError("failed to commit", err).WithOp("commit")
	}

	g.logger.WithFields(logrus.Fields{
		"path":  path,
		"files": staged,
		"hash":  hash.String(),
	}).Info("Created commit")

	return &CommitResult{Committed: true, Files: staged, Hash: hash.String()}, nil
}

// PendingChanges lists paths the worktree reports as modified, added,
// deleted or untracked, relative to the project root.
func (g *Gateway) PendingChanges(path string) ([]string, error) {
	repo, err := g.open(path)
	if err != nil {
		return nil, err
	}
	w, err := repo.Worktree()
	if err != nil {
		return nil, errors.NewInternalError("failed to open worktree", err).WithOp("pending_changes")
	}
	status, err := w.Status()
	if err != nil {
		return nil, errors.NewInternalError("failed to read status", err).WithOp("pending_changes")
	}

	var paths []string
	for p, fs := range status {
		if fs.Staging == git.Unmodified && fs.Worktree == git.Unmodified {
			continue
		}
		paths = append(paths, filepath.ToSlash(p))
	}
	return paths, nil
}

// Inspect reports on an existing repository without modifying it
func (g *Gateway) Inspect(path string) (*RepoInfo, error) {
	repo, err := git.PlainOpen(path)
	if err == git.ErrRepositoryNotExists {
		return &RepoInfo{}, nil
	}
	if err != nil {
		return nil, errors.NewPathUnusableError(path, err).WithOp("inspect")
	}

	info := &RepoInfo{IsRepo: true}
	if head, err := repo.Reference(plumbing.HEAD, false); err == nil {
		if head.Type() == plumbing.SymbolicReference {
			info.Branch = head.Target().Short()
		}
	}
	if resolved, err := repo.Head(); err == nil {
		info.Head = resolved.Hash().String()
		if resolved.Name().IsBranch() {
			info.Branch = resolved.Name().Short()
		}
	}
	if remote, err := repo.Remote(g.remoteName); err == nil && len(remote.Config().URLs) > 0 {
		info.RemoteURL = remote.Config().URLs[0]
	}
	return info, nil
}

func (g *Gateway) open(path string) (*git.Repository, error) {
	repo, err := git.PlainOpen(path)
	if err != nil {
		return nil, errors.NewPathUnusableError(path, fmt.Errorf("not a git repository: %w", err))
	}
	return repo, nil
}

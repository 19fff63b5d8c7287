package gateway

import (
	"context"
	stderrors "errors"
	"fmt"

	git "github.com/go-git/go-git/v5"
	gitconfig "github.com/go-git/go-git/v5/config"
	"github.com/go-git/go-git/v5/plumbing"
	"github.com/go-git/go-git/v5/plumbing/object"
	"github.com/go-git/go-git/v5/plumbing/transport"
	"github.com/sirupsen/logrus"

	"github.com/Kamar-Folarin/repo-autosync/internal/errors"
	"github.com/Kamar-Folarin/repo-autosync/internal/models"
)

// PushOutcome describes what Push did to the remote branch
type PushOutcome string

const (
	OutcomePushed      PushOutcome = "pushed"
	OutcomeForcePushed PushOutcome = "force_pushed"
	OutcomeUpToDate    PushOutcome = "up_to_date"
)

// PushOptions configures a single Push call
type PushOptions struct {
	Credential string
	AllowForce bool
	Report     Reporter
}

// PushResult is the outcome of Push
type PushResult struct {
	Outcome PushOutcome
	Branch  string
	Head    string
}

var errRemoteEmpty = stderrors.New("remote has no history for branch")

// Push publishes the local default branch to origin.
//
// The branch is normalized to the default name first. The remote branch is
// then fetched and integrated: a local branch that contains the remote is
// pushed normally, a remote that contains the local branch is fast-forwarded,
// and diverged histories are merged with the git CLI. When integration fails
// or the remote cannot be fetched, the local branch is force pushed if
// AllowForce is set; otherwise a normal push is attempted and its failure is
// returned unchanged.
func (g *Gateway) Push(ctx context.Context, path string, opts PushOptions) (*PushResult, error) {
	repo, err := g.open(path)
	if err != nil {
		return nil, err
	}

	branch := plumbing.NewBranchReferenceName(g.defaultBranch)
	previous, err := g.ensureBranch(repo, branch)
	if err != nil {
		return nil, errors.NewInternalError("failed to normalize branch", err).WithOp("push")
	}
	if previous != "" {
		opts.Report.emit(models.LevelInfo, models.EventBranchRenamed,
			fmt.Sprintf("Renamed branch %s to %s", previous, g.defaultBranch),
			map[string]interface{}{"from": previous, "to": g.defaultBranch})
	}

	local, err := repo.Reference(branch, true)
	if err == plumbing.ErrReferenceNotFound {
		opts.Report.emit(models.LevelInfo, models.EventUpToDate, "No commits to push", nil)
		return &PushResult{Outcome: OutcomeUpToDate, Branch: g.defaultBranch}, nil
	}
	if err != nil {
		return nil, errors.NewInternalError("failed to resolve branch", err).WithOp("push")
	}

	remoteURL := g.originURL(repo)
	auth := authFor(remoteURL, opts.Credential)

	remoteHash, err := g.fetch(ctx, repo, auth)
	if stderrors.Is(err, plumbing.ErrObjectNotFound) {
		// the server could not negotiate against local history it has never seen
		fetched, hash, cliErr := g.fetchWithGit(ctx, path, remoteURL, opts.Credential)
		if cliErr == nil {
			repo, remoteHash, err = fetched, hash, nil
		} else {
			g.logger.WithError(cliErr).WithField("path", path).Debug("git fetch fallback failed")
		}
	}
	switch {
	case err == errRemoteEmpty:
		opts.Report.emit(models.LevelInfo, models.EventRemoteEmpty, "Remote has no history, pushing local branch", nil)
		return g.normalPush(ctx, repo, auth, local.Hash(), opts)
	case err != nil:
		classified := classifyGitError("fetch", err)
		if errors.IsCredentialError(classified) || errors.TypeOf(classified) == errors.ErrRemoteRejected {
			opts.Report.emit(models.LevelError, models.EventFetchFailed, "Fetch failed: "+classified.Message,
				map[string]interface{}{"cause": err.Error()})
			return nil, classified
		}
		opts.Report.emit(models.LevelWarning, models.EventFetchFailed, "Could not fetch remote",
			map[string]interface{}{"cause": err.Error()})
		return g.overwriteOrSurface(ctx, repo, auth, local.Hash(), opts)
	}

	if remoteHash == local.Hash() {
		opts.Report.emit(models.LevelInfo, models.EventUpToDate, "Remote is up to date", nil)
		return &PushResult{Outcome: OutcomeUpToDate, Branch: g.defaultBranch, Head: local.Hash().String()}, nil
	}

	localCommit, err := repo.CommitObject(local.Hash())
	if err != nil {
		return nil, errors.NewInternalError("failed to read local commit", err).WithOp("push")
	}
	remoteCommit, err := repo.CommitObject(remoteHash)
	if err != nil {
		return nil, errors.NewInternalError("failed to read remote commit", err).WithOp("push")
	}

	if ok, _ := remoteCommit.IsAncestor(localCommit); ok {
		return g.normalPush(ctx, repo, auth, local.Hash(), opts)
	}

	if ok, _ := localCommit.IsAncestor(remoteCommit); ok {
		if err := g.fastForward(repo, localCommit, remoteCommit); err != nil {
			if err == git.ErrUnstagedChanges {
				opts.Report.emit(models.LevelError, models.EventNormalPushFailed,
					"Remote is ahead and local files have uncommitted changes", nil)
				return nil, errors.NewPushConflictError("uncommitted changes block fast-forward to remote", err).WithOp("push")
			}
			return nil, errors.NewInternalError("failed to fast-forward", err).WithOp("push")
		}
		opts.Report.emit(models.LevelInfo, models.EventFastForward, "Fast-forwarded to remote",
			map[string]interface{}{"head": remoteHash.String()})
		return &PushResult{Outcome: OutcomeUpToDate, Branch: g.defaultBranch, Head: remoteHash.String()}, nil
	}

	remoteBranch := fmt.Sprintf("%s/%s", g.remoteName, g.defaultBranch)
	if err := g.mergeRemote(ctx, path, remoteBranch); err != nil {
		opts.Report.emit(models.LevelWarning, models.EventCannotMerge, "Cannot merge remote history",
			map[string]interface{}{"cause": err.Error()})
		return g.overwriteOrSurface(ctx, repo, auth, local.Hash(), opts)
	}
	opts.Report.emit(models.LevelInfo, models.EventMergeSuccess, "Merged remote history", nil)

	merged, err := repo.Reference(branch, true)
	if err != nil {
		return nil, errors.NewInternalError("failed to resolve merged branch", err).WithOp("push")
	}
	return g.normalPush(ctx, repo, auth, merged.Hash(), opts)
}

func (g *Gateway) overwriteOrSurface(ctx context.Context, repo *git.Repository, auth transport.AuthMethod, head plumbing.Hash, opts PushOptions) (*PushResult, error) {
	if !opts.AllowForce {
		return g.normalPush(ctx, repo, auth, head, opts)
	}
	opts.Report.emit(models.LevelWarning, models.EventRemoteWillOverwrite, "Remote history will be overwritten by local", nil)
	return g.forcePush(ctx, repo, auth, head, opts, models.EventForcePushSuccess)
}

func (g *Gateway) normalPush(ctx context.Context, repo *git.Repository, auth transport.AuthMethod, head plumbing.Hash, opts PushOptions) (*PushResult, error) {
	spec := gitconfig.RefSpec(fmt.Sprintf("refs/heads/%[1]s:refs/heads/%[1]s", g.defaultBranch))
	err := repo.PushContext(ctx, &git.PushOptions{
		RemoteName: g.remoteName,
		RefSpecs:   []gitconfig.RefSpec{spec},
		Auth:       auth,
	})

	switch {
	case err == nil:
		opts.Report.emit(models.LevelSuccess, models.EventPushSuccess, "Pushed to remote",
			map[string]interface{}{"head": head.String()})
		return &PushResult{Outcome: OutcomePushed, Branch: g.defaultBranch, Head: head.String()}, nil
	case err == git.NoErrAlreadyUpToDate:
		opts.Report.emit(models.LevelInfo, models.EventUpToDate, "Remote is up to date", nil)
		return &PushResult{Outcome: OutcomeUpToDate, Branch: g.defaultBranch, Head: head.String()}, nil
	case isNonFastForward(err):
		if !opts.AllowForce {
			opts.Report.emit(models.LevelError, models.EventNormalPushFailed, "Push rejected by remote",
				map[string]interface{}{"cause": err.Error()})
			return nil, errors.NewPushConflictError("remote branch has diverged", err).WithOp("push")
		}
		opts.Report.emit(models.LevelWarning, models.EventNormalPushFailed, "Normal push rejected, overwriting remote",
			map[string]interface{}{"cause": err.Error()})
		return g.forcePush(ctx, repo, auth, head, opts, models.EventForcePushOverwrite)
	default:
		classified := classifyGitError("push", err)
		opts.Report.emit(models.LevelError, models.EventNormalPushFailed, "Push failed: "+classified.Message,
			map[string]interface{}{"cause": err.Error()})
		return nil, classified
	}
}

func (g *Gateway) forcePush(ctx context.Context, repo *git.Repository, auth transport.AuthMethod, head plumbing.Hash, opts PushOptions, code models.EventCode) (*PushResult, error) {
	spec := gitconfig.RefSpec(fmt.Sprintf("+refs/heads/%[1]s:refs/heads/%[1]s", g.defaultBranch))
	err := repo.PushContext(ctx, &git.PushOptions{
		RemoteName: g.remoteName,
		RefSpecs:   []gitconfig.RefSpec{spec},
		Auth:       auth,
		Force:      true,
	})
	if err != nil && err != git.NoErrAlreadyUpToDate {
		classified := classifyGitError("force_push", err)
		if classified.Type == errors.ErrPushConflict {
			classified.Message = "force push rejected"
		}
		return nil, classified
	}

	g.logger.WithFields(logrus.Fields{
		"branch": g.defaultBranch,
		"head":   head.String(),
	}).Warn("Force pushed local history over remote")

	opts.Report.emit(models.LevelWarning, code, "Remote overwritten with local history",
		map[string]interface{}{"head": head.String()})
	return &PushResult{Outcome: OutcomeForcePushed, Branch: g.defaultBranch, Head: head.String()}, nil
}

// fetch updates the remote tracking ref for the default branch and returns
// its hash.
func (g *Gateway) fetch(ctx context.Context, repo *git.Repository, auth transport.AuthMethod) (plumbing.Hash, error) {
	spec := gitconfig.RefSpec(fmt.Sprintf("+refs/heads/%[1]s:refs/remotes/%[2]s/%[1]s", g.defaultBranch, g.remoteName))
	err := repo.FetchContext(ctx, &git.FetchOptions{
		RemoteName: g.remoteName,
		RefSpecs:   []gitconfig.RefSpec{spec},
		Auth:       auth,
		Tags:       git.NoTags,
		Force:      true,
	})
	if err != nil && err != git.NoErrAlreadyUpToDate {
		if stderrors.Is(err, transport.ErrEmptyRemoteRepository) || stderrors.Is(err, git.NoMatchingRefSpecError{}) {
			return plumbing.ZeroHash, errRemoteEmpty
		}
		return plumbing.ZeroHash, err
	}

	ref, err := repo.Reference(plumbing.NewRemoteReferenceName(g.remoteName, g.defaultBranch), true)
	if err == plumbing.ErrReferenceNotFound {
		return plumbing.ZeroHash, errRemoteEmpty
	}
	if err != nil {
		return plumbing.ZeroHash, err
	}
	return ref.Hash(), nil
}

// fastForward moves the current branch from head to target, rewriting only
// the files that differ between them. Uncommitted or untracked files in the
// way make it fail with git.ErrUnstagedChanges before anything is moved.
func (g *Gateway) fastForward(repo *git.Repository, head, target *object.Commit) error {
	from, err := head.Tree()
	if err != nil {
		return err
	}
	to, err := target.Tree()
	if err != nil {
		return err
	}
	changes, err := object.DiffTree(from, to)
	if err != nil {
		return err
	}

	w, err := repo.Worktree()
	if err != nil {
		return err
	}
	status, err := w.Status()
	if err != nil {
		return err
	}

	files := make([]string, 0, len(changes))
	for _, ch := range changes {
		name := ch.To.Name
		if name == "" {
			name = ch.From.Name
		}
		if fs, ok := status[name]; ok && (fs.Worktree != git.Unmodified || fs.Staging != git.Unmodified) {
			return git.ErrUnstagedChanges
		}
		files = append(files, name)
	}

	if len(files) == 0 {
		return w.Reset(&git.ResetOptions{Commit: target.Hash, Mode: git.SoftReset})
	}
	return w.Reset(&git.ResetOptions{Commit: target.Hash, Mode: git.HardReset, Files: files})
}

// ensureBranch points HEAD at branch, renaming the current branch when it has
// another name. It returns the previous branch name when a rename happened.
func (g *Gateway) ensureBranch(repo *git.Repository, branch plumbing.ReferenceName) (string, error) {
	head, err := repo.Reference(plumbing.HEAD, false)
	if err != nil {
		return "", err
	}

	if head.Type() == plumbing.HashReference {
		if err := repo.Storer.SetReference(plumbing.NewHashReference(branch, head.Hash())); err != nil {
			return "", err
		}
		return plumbing.HEAD.String(), repo.Storer.SetReference(plumbing.NewSymbolicReference(plumbing.HEAD, branch))
	}

	current := head.Target()
	if current == branch {
		return "", nil
	}

	ref, err := repo.Reference(current, false)
	switch {
	case err == plumbing.ErrReferenceNotFound:
		// unborn branch
	case err != nil:
		return "", err
	default:
		if err := repo.Storer.SetReference(plumbing.NewHashReference(branch, ref.Hash())); err != nil {
			return "", err
		}
	}

	if err := repo.Storer.SetReference(plumbing.NewSymbolicReference(plumbing.HEAD, branch)); err != nil {
		return "", err
	}
	if ref != nil {
		if err := repo.Storer.RemoveReference(current); err != nil {
			return "", err
		}
	}
	return current.Short(), nil
}

func (g *Gateway) originURL(repo *git.Repository) string {
	remote, err := repo.Remote(g.remoteName)
	if err != nil || len(remote.Config().URLs) == 0 {
		return ""
	}
	return remote.Config().URLs[0]
}

package gateway

import (
	"context"
	"fmt"
	"os"
	"os/exec"
	"strings"
	"time"

	git "github.com/go-git/go-git/v5"
	"github.com/go-git/go-git/v5/plumbing"
	"github.com/sirupsen/logrus"
)

// mergeRemote merges the fetched remote branch into the current branch with
// the git CLI, which go-git cannot do for non fast-forward histories. A
// failed merge is aborted so the worktree is left as it was.
func (g *Gateway) mergeRemote(ctx context.Context, path, remoteBranch string) error {
	mergeCtx, cancel := context.WithTimeout(ctx, g.mergeTimeout)
	defer cancel()

	out, err := g.runGit(mergeCtx, path,
		"-c", "user.name="+g.authorName,
		"-c", "user.email="+g.authorEmail,
		"merge", "--allow-unrelated-histories", "--no-edit", remoteBranch)
	if err == nil {
		return nil
	}

	abortCtx, abortCancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer abortCancel()
	if abortOut, abortErr := g.runGit(abortCtx, path, "merge", "--abort"); abortErr != nil {
		g.logger.WithFields(logrus.Fields{
			"path":   path,
			"output": abortOut,
		}).WithError(abortErr).Debug("merge --abort failed")
	}

	if out != "" {
		return fmt.Errorf("%w: %s", err, out)
	}
	return err
}

// fetchWithGit fetches the default branch with the git CLI and reopens the
// repository so objects written by git are visible.
func (g *Gateway) fetchWithGit(ctx context.Context, path, url, credential string) (*git.Repository, plumbing.Hash, error) {
	fetchCtx, cancel := context.WithTimeout(ctx, g.mergeTimeout)
	defer cancel()

	var args []string
	if header := authHeader(url, credential); header != "" {
		args = append(args, "-c", "http.extraHeader="+header)
	}
	spec := fmt.Sprintf("+refs/heads/%[1]s:refs/remotes/%[2]s/%[1]s", g.defaultBranch, g.remoteName)
	args = append(args, "fetch", "--no-tags", g.remoteName, spec)
	if out, err := g.runGit(fetchCtx, path, args...); err != nil {
		if out != "" {
			return nil, plumbing.ZeroHash, fmt.Errorf("%w: %s", err, out)
		}
		return nil, plumbing.ZeroHash, err
	}

	repo, err := g.open(path)
	if err != nil {
		return nil, plumbing.ZeroHash, err
	}
	ref, err := repo.Reference(plumbing.NewRemoteReferenceName(g.remoteName, g.defaultBranch), true)
	if err != nil {
		return nil, plumbing.ZeroHash, err
	}
	return repo, ref.Hash(), nil
}

func (g *Gateway) runGit(ctx context.Context, dir string, args ...string) (string, error) {
	cmd := exec.CommandContext(ctx, g.gitBinary, args...)
	cmd.Dir = dir
	cmd.Env = append(os.Environ(), "GIT_TERMINAL_PROMPT=0", "GIT_MERGE_AUTOEDIT=no")
	out, err := cmd.CombinedOutput()
	return strings.TrimSpace(string(out)), err
}

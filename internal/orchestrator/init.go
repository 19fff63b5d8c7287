package orchestrator

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/sirupsen/logrus"

	"github.com/Kamar-Folarin/repo-autosync/internal/commitmsg"
	"github.com/Kamar-Folarin/repo-autosync/internal/errors"
	"github.com/Kamar-Folarin/repo-autosync/internal/gateway"
	"github.com/Kamar-Folarin/repo-autosync/internal/models"
	"github.com/Kamar-Folarin/repo-autosync/internal/utils"
)

// InitRequest asks for a folder to become a synchronized repository
type InitRequest struct {
	Path          string
	Name          string
	Description   string
	Credential    string
	Private       bool
	IgnoreContent string
}

// RegisterRequest adds an existing repository for monitoring only
type RegisterRequest struct {
	Path       string
	Name       string
	Credential string
}

// AutoInit creates the local repository and its remote, pushes the first
// commit and starts watching. A credential passed with the request stays
// with the project for later pushes.
//
// Failures before the remote is linked abort without creating a project.
// Once the remote is linked the project is persisted even when the first
// push fails, in error status, so it can be retried or deleted.
func (o *Orchestrator) AutoInit(ctx context.Context, req InitRequest) (*models.Project, error) {
	logger := o.logger.WithFields(logrus.Fields{
		"action": "auto_init",
		"path":   req.Path,
	})
	o.emit(0, models.LevelInfo, models.EventInitStart, fmt.Sprintf("Initializing %s", req.Path), map[string]interface{}{
		"path": req.Path,
		"name": req.Name,
	})

	fail := func(err error) (*models.Project, error) {
		o.emitError(0, models.EventInitFailed, "Initialization failed", err, map[string]interface{}{"path": req.Path})
		logger.WithError(err).Error("Initialization failed")
		return nil, err
	}

	credential, err := o.requireCredential(ctx, req.Credential, "create the remote repository")
	if err != nil {
		return fail(err)
	}

	path, err := preparePath(req.Path)
	if err != nil {
		return fail(err)
	}

	release, err := o.registry.reserve(path)
	if err != nil {
		return fail(err)
	}
	defer release()

	report := o.reporter(0, path)

	created, err := o.repos.EnsureLocalRepo(ctx, path)
	if err != nil {
		return fail(err)
	}
	if created {
		report(models.LevelSuccess, models.EventRepoCreated, "Initialized local repository", nil)
	} else {
		report(models.LevelInfo, models.EventRepoExists, "Using existing local repository", nil)
	}

	wrote, err := o.repos.EnsureIgnoreFile(path, req.IgnoreContent, false)
	if err != nil {
		return fail(err)
	}
	if wrote {
		report(models.LevelSuccess, models.EventGitignoreCreated, "Created .gitignore", nil)
	}

	login, err := o.repos.ConnectRemote(ctx, credential)
	if err != nil {
		return fail(err)
	}
	report(models.LevelSuccess, models.EventCredentialVerified, fmt.Sprintf("Authenticated as %s", login), map[string]interface{}{"login": login})

	name := strings.TrimSpace(req.Name)
	if name == "" {
		name = filepath.Base(path)
	}
	remote, err := o.repos.EnsureRemoteRepo(ctx, credential, gateway.RemoteRepoRequest{
		Owner:       login,
		Name:        utils.RepoName(name, path),
		Description: req.Description,
		Private:     req.Private,
	})
	if err != nil {
		return fail(err)
	}
	if remote.Created {
		report(models.LevelSuccess, models.EventRemoteCreated, fmt.Sprintf("Created remote repository %s", remote.URL), map[string]interface{}{"url": remote.URL})
	} else {
		report(models.LevelInfo, models.EventRemoteExists, fmt.Sprintf("Remote repository %s already exists", remote.URL), map[string]interface{}{
			"url":     remote.URL,
			"commits": remote.CommitCount,
		})
	}

	if err := o.repos.LinkRemote(path, remote.URL); err != nil {
		return fail(err)
	}
	report(models.LevelSuccess, models.EventRemoteLinked, "Linked remote origin", map[string]interface{}{"url": remote.URL})

	cfg := models.DefaultSyncConfig()
	cfg.IsPrivate = remote.Private
	project := &models.Project{
		Name:        name,
		Description: req.Description,
		LocalPath:   path,
		RemoteURL:   remote.URL,
		Branch:      o.repos.DefaultBranch(),
		Status:      models.StatusIdle,
		Config:      cfg,
		Credential:  strings.TrimSpace(req.Credential),
	}

	setupErr := o.initialPush(ctx, path, credential, cfg, report)
	if setupErr != nil {
		project.LastError = setupErr.Error()
	} else {
		now := o.clock.Now()
		project.LastSyncTime = &now
	}

	if err := o.store.CreateProject(ctx, project); err != nil {
		return fail(err)
	}

	rt := newRuntime(project)
	o.registry.add(rt)
	o.emit(rt.id, models.LevelSuccess, models.EventProjectCreated, fmt.Sprintf("Project %s created", project.Name), map[string]interface{}{
		"path":       path,
		"remote_url": remote.URL,
	})

	if setupErr != nil {
		rt.setUnpushed(true)
		o.transition(ctx, rt, models.StatusError)
		if err := o.startRuntime(rt); err != nil {
			logger.WithError(err).Warn("Watcher did not start")
		}
		o.emitError(rt.id, models.EventInitFailed, "Initial push failed", setupErr, map[string]interface{}{"path": path})
		return rt.snapshot(), setupErr
	}

	o.activate(ctx, rt)
	logger.WithField("project_id", rt.id).Info("Project initialized")
	return rt.snapshot(), nil
}

// initialPush commits whatever the folder holds and publishes it
func (o *Orchestrator) initialPush(ctx context.Context, path, credential string, cfg models.SyncConfig, report gateway.Reporter) error {
	commit, err := o.repos.CommitAll(path, commitmsg.Initial, gateway.CommitOptions{IgnoreHidden: cfg.IgnoreHidden})
	if err != nil {
		return err
	}
	if commit.Committed {
		report(models.LevelSuccess, models.EventInitialCommit, fmt.Sprintf("Committed %d files", commit.Files), map[string]interface{}{
			"files": commit.Files,
			"hash":  commit.Hash,
		})
	} else {
		report(models.LevelInfo, models.EventNothingToCommit, "Nothing to commit", nil)
	}

	_, err = o.repos.Push(ctx, path, gateway.PushOptions{
		Credential: credential,
		AllowForce: cfg.AllowForcePush,
		Report:     report,
	})
	return err
}

// Register starts monitoring a repository that already has a remote. A path
// that is already tracked returns the existing project. A credential given
// here is kept with the project and used for its pushes.
func (o *Orchestrator) Register(ctx context.Context, req RegisterRequest) (*models.Project, error) {
	path, err := filepath.Abs(strings.TrimSpace(req.Path))
	if err != nil || req.Path == "" {
		return nil, errors.NewValidationError("path is required", err)
	}
	path = filepath.Clean(path)

	if rt, ok := o.registry.lookupPath(path); ok {
		return rt.snapshot(), nil
	}

	info, err := os.Stat(path)
	if err != nil || !info.IsDir() {
		return nil, errors.NewPathUnusableError(path, err).WithOp("register")
	}

	repo, err := o.repos.Inspect(path)
	if err != nil {
		return nil, err
	}
	if !repo.IsRepo {
		return nil, errors.NewValidationError("this directory is not a Git repository; use auto-init to create one", nil)
	}
	if repo.RemoteURL == "" {
		return nil, errors.NewValidationError("this repository has no origin remote; configure one or use auto-init", nil)
	}

	release, err := o.registry.reserve(path)
	if err != nil {
		return nil, err
	}
	defer release()

	name := strings.TrimSpace(req.Name)
	if name == "" {
		name = filepath.Base(path)
	}
	branch := repo.Branch
	if branch == "" {
		branch = o.repos.DefaultBranch()
	}
	project := &models.Project{
		Name:       name,
		LocalPath:  path,
		RemoteURL:  repo.RemoteURL,
		Branch:     branch,
		Status:     models.StatusIdle,
		Config:     models.DefaultSyncConfig(),
		Credential: strings.TrimSpace(req.Credential),
	}
	if err := o.store.CreateProject(ctx, project); err != nil {
		return nil, err
	}

	rt := newRuntime(project)
	o.registry.add(rt)
	o.emit(rt.id, models.LevelSuccess, models.EventProjectRegistered, fmt.Sprintf("Registered %s for monitoring", path), map[string]interface{}{
		"path":       path,
		"remote_url": repo.RemoteURL,
		"branch":     branch,
	})

	o.seedPending(rt)
	o.activate(ctx, rt)
	return rt.snapshot(), nil
}

// activate moves a project to watching and starts its watcher and scheduler
func (o *Orchestrator) activate(ctx context.Context, rt *projectRuntime) {
	o.transition(ctx, rt, models.StatusWatching)
	if err := o.startRuntime(rt); err != nil {
		rt.update(func(p *models.Project) { p.LastError = err.Error() })
		o.transition(ctx, rt, models.StatusError)
		return
	}
	if rt.hasPending() {
		rt.currentScheduler().Notify()
	}
}

// seedPending records uncommitted worktree changes so the first cycle picks
// up edits made while the project was not watched.
func (o *Orchestrator) seedPending(rt *projectRuntime) {
	dirty, err := o.repos.PendingChanges(rt.path)
	if err != nil {
		o.logger.WithField("project_id", rt.id).WithError(err).Warn("Failed to read worktree status")
		return
	}
	if len(dirty) == 0 {
		return
	}
	batch := models.NewChangeBatch(rt.id)
	now := o.clock.Now()
	for _, p := range dirty {
		batch.Add(p, models.ChangeWrite, now)
	}
	rt.addPending(batch)
}

// preparePath resolves the project folder, creating it when missing
func preparePath(raw string) (string, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return "", errors.NewValidationError("path is required", nil)
	}
	path, err := filepath.Abs(raw)
	if err != nil {
		return "", errors.NewPathUnusableError(raw, err).WithOp("prepare_path")
	}
	path = filepath.Clean(path)

	info, err := os.Stat(path)
	switch {
	case os.IsNotExist(err):
		if err := os.MkdirAll(path, 0o755); err != nil {
			return "", errors.NewPathUnusableError(path, err).WithOp("prepare_path")
		}
	case err != nil:
		return "", errors.NewPathUnusableError(path, err).WithOp("prepare_path")
	case !info.IsDir():
		return "", errors.NewPathUnusableError(path, fmt.Errorf("not a directory")).WithOp("prepare_path")
	}
	return path, nil
}

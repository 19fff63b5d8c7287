package orchestrator

import (
	"context"
	"fmt"
	"strings"

	"github.com/sirupsen/logrus"

	"github.com/Kamar-Folarin/repo-autosync/internal/errors"
	"github.com/Kamar-Folarin/repo-autosync/internal/ignore"
	"github.com/Kamar-Folarin/repo-autosync/internal/models"
	"github.com/Kamar-Folarin/repo-autosync/internal/scanner"
	"github.com/Kamar-Folarin/repo-autosync/internal/utils"
)

// ListProjects returns every live project ordered by id
func (o *Orchestrator) ListProjects(ctx context.Context) ([]*models.Project, error) {
	runtimes := o.registry.list()
	projects := make([]*models.Project, 0, len(runtimes))
	for _, rt := range runtimes {
		projects = append(projects, rt.snapshot())
	}
	return projects, nil
}

// GetProject returns one project
func (o *Orchestrator) GetProject(ctx context.Context, id int64) (*models.Project, error) {
	rt, err := o.registry.get(id)
	if err != nil {
		return nil, err
	}
	return rt.snapshot(), nil
}

// GetConfig returns the resolved sync config of a project
func (o *Orchestrator) GetConfig(ctx context.Context, id int64) (*models.SyncConfig, error) {
	rt, err := o.registry.get(id)
	if err != nil {
		return nil, err
	}
	cfg := rt.snapshot().Config
	return &cfg, nil
}

// UpdateConfig replaces a project's config. Policy changes apply from the
// next cycle; schedule changes re-arm the scheduler immediately. Changing
// visibility updates the hosted repository first.
func (o *Orchestrator) UpdateConfig(ctx context.Context, id int64, cfg models.SyncConfig) (*models.Project, error) {
	rt, err := o.registry.get(id)
	if err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	prev := rt.snapshot()
	if cfg.IsPrivate != prev.Config.IsPrivate && prev.Linked() && utils.IsGitHubURL(prev.RemoteURL) {
		credential, err := o.requireCredential(ctx, prev.Credential, "change repository visibility")
		if err != nil {
			return nil, err
		}
		if err := o.repos.SetVisibility(ctx, credential, prev.RemoteURL, cfg.IsPrivate); err != nil {
			o.emitError(id, models.EventConfigUpdated, "Failed to update repository visibility", err, nil)
			return nil, err
		}
		o.emit(id, models.LevelSuccess, models.EventVisibilityUpdated, fmt.Sprintf("Repository is now %s", visibilityName(cfg.IsPrivate)), map[string]interface{}{
			"private": cfg.IsPrivate,
		})
	}

	rt.update(func(p *models.Project) { p.Config = cfg.Clone() })
	if err := o.persist(ctx, rt); err != nil {
		return nil, fmt.Errorf("failed to save config: %w", err)
	}

	if prev.Config.ScheduleChanged(cfg) {
		if sched := rt.currentScheduler(); sched != nil {
			sched.Reconfigure(cfg.Clone())
		}
	}

	o.emit(id, models.LevelInfo, models.EventConfigUpdated, "Configuration updated", map[string]interface{}{
		"sync_mode": string(cfg.SyncMode),
		"auto_push": cfg.AutoPush,
	})
	return rt.snapshot(), nil
}

// Scan screens everything the next cycle would commit
func (o *Orchestrator) Scan(ctx context.Context, id int64) (*models.RiskReport, error) {
	rt, err := o.registry.get(id)
	if err != nil {
		return nil, err
	}
	project := rt.snapshot()

	dirty, err := o.repos.PendingChanges(rt.path)
	if err != nil {
		return nil, err
	}
	report, err := o.scanner.Scan(rt.path, union(rt.pendingPaths(), dirty), scanner.PolicyFrom(project.Config))
	if err != nil {
		return nil, err
	}
	report.ProjectID = id
	rt.setReport(report)

	if len(report.Items) > 0 {
		o.emit(id, models.LevelWarning, models.EventRiskDetected, fmt.Sprintf("%d risky files found", len(report.Items)), map[string]interface{}{
			"items":    report.Items,
			"excluded": report.Excluded,
		})
	}
	return report, nil
}

// Ignore appends patterns to the project's ignore file
func (o *Orchestrator) Ignore(ctx context.Context, id int64, patterns []string) ([]string, error) {
	rt, err := o.registry.get(id)
	if err != nil {
		return nil, err
	}

	var cleaned []string
	for _, p := range patterns {
		if p = strings.TrimSpace(p); p != "" {
			cleaned = append(cleaned, p)
		}
	}
	if len(cleaned) == 0 {
		return nil, errors.NewValidationError("at least one file or pattern is required", nil)
	}

	added, err := o.scanner.Ignore(rt.path, cleaned)
	if err != nil {
		return nil, err
	}
	if len(added) > 0 {
		o.emit(id, models.LevelSuccess, models.EventFilesIgnored, fmt.Sprintf("Added %d entries to .gitignore", len(added)), map[string]interface{}{
			"patterns": added,
		})
	}
	return added, nil
}

// GetIgnoreFile returns the raw ignore file
func (o *Orchestrator) GetIgnoreFile(ctx context.Context, id int64) (string, error) {
	rt, err := o.registry.get(id)
	if err != nil {
		return "", err
	}
	content, err := ignore.Read(rt.path)
	if err != nil {
		return "", errors.NewInternalError("failed to read .gitignore", err).WithOp("get_ignore_file")
	}
	return content, nil
}

// PutIgnoreFile replaces the raw ignore file
func (o *Orchestrator) PutIgnoreFile(ctx context.Context, id int64, content string) error {
	rt, err := o.registry.get(id)
	if err != nil {
		return err
	}
	if err := ignore.Write(rt.path, content); err != nil {
		return errors.NewInternalError("failed to write .gitignore", err).WithOp("put_ignore_file")
	}
	o.emit(id, models.LevelInfo, models.EventFilesIgnored, ".gitignore updated", nil)
	return nil
}

// Push runs a sync cycle now, under the same lock as scheduled cycles. The
// cycle is not aborted when the caller goes away.
func (o *Orchestrator) Push(ctx context.Context, id int64) (*SyncResult, error) {
	rt, err := o.registry.get(id)
	if err != nil {
		return nil, err
	}
	sched := rt.currentScheduler()
	if sched == nil {
		return nil, errors.NewInternalError("project is not running", nil).WithOp("push")
	}

	var result *SyncResult
	err = sched.Do(ctx, func(ctx context.Context) error {
		var cycleErr error
		result, cycleErr = o.syncCycle(context.WithoutCancel(ctx), rt, true)
		return cycleErr
	})
	if err != nil {
		return nil, err
	}
	return result, nil
}

// Retry leaves the error state and resumes automatic syncing
func (o *Orchestrator) Retry(ctx context.Context, id int64) (*models.Project, error) {
	rt, err := o.registry.get(id)
	if err != nil {
		return nil, err
	}
	if rt.snapshot().Status != models.StatusError {
		return nil, errors.NewValidationError("project is not in error state", nil)
	}

	rt.update(func(p *models.Project) { p.LastError = "" })
	o.transition(ctx, rt, models.StatusWatching)

	if sched := rt.currentScheduler(); sched != nil && rt.hasPending() {
		sched.Trigger()
	}
	return rt.snapshot(), nil
}

// SyncVisibility reads the hosted repository's visibility into the config
func (o *Orchestrator) SyncVisibility(ctx context.Context, id int64) (*models.Project, error) {
	rt, err := o.registry.get(id)
	if err != nil {
		return nil, err
	}
	project := rt.snapshot()
	if !project.Linked() || !utils.IsGitHubURL(project.RemoteURL) {
		return nil, errors.NewValidationError("project is not linked to a GitHub repository", nil)
	}

	credential, err := o.requireCredential(ctx, project.Credential, "read repository visibility")
	if err != nil {
		return nil, err
	}
	private, err := o.repos.Visibility(ctx, credential, project.RemoteURL)
	if err != nil {
		return nil, err
	}

	rt.update(func(p *models.Project) { p.Config.IsPrivate = private })
	if err := o.persist(ctx, rt); err != nil {
		return nil, fmt.Errorf("failed to save config: %w", err)
	}
	o.emit(id, models.LevelSuccess, models.EventVisibilitySynced, fmt.Sprintf("Repository is %s", visibilityName(private)), map[string]interface{}{
		"private": private,
	})
	return rt.snapshot(), nil
}

// Delete stops a project, optionally deletes its hosted repository and
// removes the record. A cycle in flight finishes first.
func (o *Orchestrator) Delete(ctx context.Context, id int64, deleteRemote bool, credential string) error {
	rt, err := o.registry.get(id)
	if err != nil {
		return err
	}
	project := rt.snapshot()
	logger := o.logger.WithFields(logrus.Fields{
		"project_id": id,
		"action":     "delete_project",
	})

	removeRemote := deleteRemote && project.Linked() && utils.IsGitHubURL(project.RemoteURL)
	if removeRemote {
		// the credential must come with the request
		if strings.TrimSpace(credential) == "" {
			return errors.NewCredentialMissingError("a GitHub token is required to delete the remote repository")
		}
	}

	o.stopRuntime(rt)

	if removeRemote {
		if err := o.repos.DeleteRemoteRepo(ctx, credential, project.RemoteURL); err != nil {
			o.emitError(id, models.EventRemoteDeleted, "Failed to delete remote repository", err, nil)
			if startErr := o.startRuntime(rt); startErr != nil {
				logger.WithError(startErr).Warn("Failed to resume project after remote deletion error")
			}
			return err
		}
		o.emit(id, models.LevelSuccess, models.EventRemoteDeleted, "Deleted remote repository", map[string]interface{}{
			"remote_url": project.RemoteURL,
		})
	}

	if err := o.store.DeleteProject(ctx, id); err != nil && !errors.IsNotFound(err) {
		if startErr := o.startRuntime(rt); startErr != nil {
			logger.WithError(startErr).Warn("Failed to resume project after delete error")
		}
		return fmt.Errorf("failed to delete project: %w", err)
	}
	o.registry.remove(id)

	o.emit(id, models.LevelInfo, models.EventProjectDeleted, fmt.Sprintf("Project %s deleted", project.Name), map[string]interface{}{
		"path":           project.LocalPath,
		"remote_deleted": removeRemote,
	})
	logger.Info("Project deleted")
	return nil
}

func visibilityName(private bool) string {
	if private {
		return "private"
	}
	return "public"
}

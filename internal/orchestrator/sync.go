package orchestrator

import (
	"context"
	"fmt"
	"sort"

	"github.com/sirupsen/logrus"

	"github.com/Kamar-Folarin/repo-autosync/internal/commitmsg"
	"github.com/Kamar-Folarin/repo-autosync/internal/errors"
	"github.com/Kamar-Folarin/repo-autosync/internal/gateway"
	"github.com/Kamar-Folarin/repo-autosync/internal/models"
	"github.com/Kamar-Folarin/repo-autosync/internal/scanner"
)

// SyncOutcome summarizes what a sync cycle did
type SyncOutcome string

const (
	SyncNoChanges  SyncOutcome = "no_changes"
	SyncRiskHalted SyncOutcome = "risk_detected"
	SyncCommitted  SyncOutcome = "committed"
	SyncPushed     SyncOutcome = "pushed"
	SyncSkipped    SyncOutcome = "skipped"
)

const noChangesMessage = "No changes to push"

// SyncResult is the outcome of one sync cycle
type SyncResult struct {
	Outcome SyncOutcome         `json:"outcome"`
	Message string              `json:"message"`
	Files   int                 `json:"files"`
	Commit  string              `json:"commit,omitempty"`
	Push    gateway.PushOutcome `json:"push,omitempty"`
	Report  *models.RiskReport  `json:"report,omitempty"`
}

// syncCycle runs scan, commit and push for one project. Callers hold the
// project's scheduler lock. Automatic cycles are skipped while the project
// is in error; manual ones are allowed and clear it on success.
func (o *Orchestrator) syncCycle(ctx context.Context, rt *projectRuntime, manual bool) (*SyncResult, error) {
	project := rt.snapshot()
	cfg := project.Config
	logger := o.logger.WithFields(logrus.Fields{
		"project_id": rt.id,
		"action":     "sync_cycle",
		"manual":     manual,
	})

	if !manual && project.Status == models.StatusError {
		logger.Debug("Skipping automatic sync while project is in error")
		return &SyncResult{Outcome: SyncSkipped, Message: "project is in error"}, nil
	}

	o.transition(ctx, rt, models.StatusSyncing)
	o.emit(rt.id, models.LevelInfo, models.EventSyncStart, "Sync started", map[string]interface{}{"manual": manual})

	batch := rt.takePending()
	dirty, err := o.repos.PendingChanges(rt.path)
	if err != nil {
		return nil, o.failCycle(ctx, rt, batch, err)
	}
	paths := union(batch.Paths(), dirty)

	if len(paths) == 0 && !rt.isUnpushed() {
		return o.finishWithoutChanges(ctx, rt, &SyncResult{}), nil
	}

	result := &SyncResult{}
	if len(paths) > 0 {
		report, err := o.scanner.Scan(rt.path, paths, scanner.PolicyFrom(cfg))
		if err != nil {
			return nil, o.failCycle(ctx, rt, batch, err)
		}
		report.ProjectID = rt.id
		rt.setReport(report)
		result.Report = report

		if len(report.Items) > 0 {
			rt.requeue(batch)
			o.emit(rt.id, models.LevelWarning, models.EventRiskDetected,
				fmt.Sprintf("Sync halted: %d risky files", len(report.Items)),
				map[string]interface{}{
					"items":    report.Items,
					"excluded": report.Excluded,
				})
			o.transition(ctx, rt, models.StatusWatching)
			result.Outcome = SyncRiskHalted
			result.Message = fmt.Sprintf("%d risky files must be ignored or removed before syncing", len(report.Items))
			return result, nil
		}

		message := o.messages.Message(ctx, commitmsg.Request{
			Prefix: cfg.DefaultCommitPrefix,
			Manual: manual,
			UseAI:  cfg.AICommitMessage,
			Files:  paths,
		})
		commit, err := o.repos.CommitAll(rt.path, message, gateway.CommitOptions{IgnoreHidden: cfg.IgnoreHidden})
		if err != nil {
			return nil, o.failCycle(ctx, rt, batch, err)
		}
		if commit.Committed {
			rt.setUnpushed(true)
			result.Files = commit.Files
			result.Commit = commit.Hash
			o.emit(rt.id, models.LevelSuccess, models.EventCommitCreated, message, map[string]interface{}{
				"files": commit.Files,
				"hash":  commit.Hash,
			})
		}
	}

	// only ignored, hidden or reverted files changed
	if !rt.isUnpushed() {
		return o.finishWithoutChanges(ctx, rt, result), nil
	}

	if !cfg.AutoPush && !manual {
		o.emit(rt.id, models.LevelInfo, models.EventPushSkipped, "Auto push disabled, commit kept locally", nil)
		o.transition(ctx, rt, models.StatusWatching)
		result.Outcome = SyncCommitted
		result.Message = "Committed locally"
		return result, nil
	}

	credential, err := o.credential(ctx, rt.snapshot().Credential)
	if err != nil {
		return nil, o.failCycle(ctx, rt, batch, err)
	}
	push, err := o.repos.Push(ctx, rt.path, gateway.PushOptions{
		Credential: credential,
		AllowForce: cfg.AllowForcePush,
		Report:     o.reporter(rt.id, rt.path),
	})
	if err != nil {
		return nil, o.failCycle(ctx, rt, batch, err)
	}

	rt.setUnpushed(false)
	now := o.clock.Now()
	rt.update(func(p *models.Project) {
		p.LastSyncTime = &now
		p.LastError = ""
		if push.Branch != "" {
			p.Branch = push.Branch
		}
	})
	o.transition(ctx, rt, models.StatusWatching)

	o.emit(rt.id, models.LevelSuccess, models.EventSyncComplete, "Sync complete", map[string]interface{}{
		"files":   result.Files,
		"outcome": string(push.Outcome),
	})
	logger.WithFields(logrus.Fields{
		"files":   result.Files,
		"outcome": push.Outcome,
	}).Info("Sync cycle complete")

	result.Outcome = SyncPushed
	result.Push = push.Outcome
	result.Message = "Pushed to remote"
	return result, nil
}

func (o *Orchestrator) finishWithoutChanges(ctx context.Context, rt *projectRuntime, result *SyncResult) *SyncResult {
	o.emit(rt.id, models.LevelInfo, models.EventNoChanges, noChangesMessage, nil)
	rt.update(func(p *models.Project) { p.LastError = "" })
	o.transition(ctx, rt, models.StatusWatching)
	result.Outcome = SyncNoChanges
	result.Message = noChangesMessage
	return result
}

// failCycle re-queues the batch and moves the project to watching or error
// depending on whether the failure can clear up by itself.
func (o *Orchestrator) failCycle(ctx context.Context, rt *projectRuntime, batch *models.ChangeBatch, err error) error {
	rt.requeue(batch)
	rt.update(func(p *models.Project) { p.LastError = err.Error() })

	recoverable := errors.IsRecoverable(err)
	o.emitError(rt.id, models.EventSyncFailed, "Sync failed", err, map[string]interface{}{
		"recoverable": recoverable,
	})

	if recoverable {
		o.transition(ctx, rt, models.StatusWatching)
	} else {
		o.transition(ctx, rt, models.StatusError)
	}
	return err
}

// union merges two path lists into a sorted set
func union(a, b []string) []string {
	seen := make(map[string]bool, len(a)+len(b))
	out := make([]string, 0, len(a)+len(b))
	for _, list := range [][]string{a, b} {
		for _, p := range list {
			if !seen[p] {
				seen[p] = true
				out = append(out, p)
			}
		}
	}
	sort.Strings(out)
	return out
}

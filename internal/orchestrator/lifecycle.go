package orchestrator

import (
	"context"
	"fmt"
	"sync"

	"github.com/sirupsen/logrus"

	"github.com/Kamar-Folarin/repo-autosync/internal/models"
)

// Restore loads persisted projects and resumes watching them. A project
// that was mid-sync when the process stopped resumes in watching; one in
// error stays in error until it is retried.
func (o *Orchestrator) Restore(ctx context.Context) error {
	projects, err := o.store.ListProjects(ctx)
	if err != nil {
		return fmt.Errorf("failed to load projects: %w", err)
	}

	for _, project := range projects {
		logger := o.logger.WithFields(logrus.Fields{
			"project_id": project.ID,
			"action":     "restore_project",
			"path":       project.LocalPath,
		})

		if _, ok := o.registry.lookupPath(project.LocalPath); ok {
			logger.Warn("Skipping project with a path that is already tracked")
			continue
		}

		rt := newRuntime(project)
		o.registry.add(rt)
		// syncing cannot outlive the process
		if project.Status == models.StatusSyncing {
			o.transition(ctx, rt, models.StatusWatching)
		}
		o.seedPending(rt)

		if project.Status == models.StatusError {
			if err := o.startRuntime(rt); err != nil {
				logger.WithError(err).Warn("Watcher did not start")
			}
			continue
		}
		o.activate(ctx, rt)
		logger.Info("Project restored")
	}

	o.logger.WithFields(logrus.Fields{
		"action":   "restore_projects",
		"projects": len(projects),
	}).Info("Projects restored")
	return nil
}

// Shutdown stops every project. Cycles in flight are allowed to finish
// unless ctx expires first.
func (o *Orchestrator) Shutdown(ctx context.Context) error {
	runtimes := o.registry.list()

	done := make(chan struct{})
	go func() {
		var wg sync.WaitGroup
		for _, rt := range runtimes {
			wg.Add(1)
			go func(rt *projectRuntime) {
				defer wg.Done()
				o.stopRuntime(rt)
			}(rt)
		}
		wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		o.logger.WithField("action", "shutdown").Info("All projects stopped")
		return nil
	case <-ctx.Done():
		return fmt.Errorf("projects did not stop in time: %w", ctx.Err())
	}
}

// Status reports the number of live projects per lifecycle status
func (o *Orchestrator) Status() map[models.LifecycleStatus]int {
	counts := make(map[models.LifecycleStatus]int)
	for _, rt := range o.registry.list() {
		counts[rt.snapshot().Status]++
	}
	return counts
}

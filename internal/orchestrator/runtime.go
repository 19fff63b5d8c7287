package orchestrator

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/Kamar-Folarin/repo-autosync/internal/models"
	"github.com/Kamar-Folarin/repo-autosync/internal/scheduler"
	"github.com/Kamar-Folarin/repo-autosync/internal/watcher"
)

// projectRuntime is the live state of one project. The project record is
// only mutated under mu; persistMu orders writes to the store.
type projectRuntime struct {
	id   int64
	path string

	mu         sync.Mutex
	project    *models.Project
	pending    *models.ChangeBatch
	unpushed   bool
	lastReport *models.RiskReport

	persistMu sync.Mutex

	watcher *watcher.Watcher
	sched   *scheduler.Scheduler
	done    chan struct{}
	wg      sync.WaitGroup
	stopped bool
}

func newRuntime(project *models.Project) *projectRuntime {
	return &projectRuntime{
		id:      project.ID,
		path:    project.LocalPath,
		project: project.Clone(),
		pending: models.NewChangeBatch(project.ID),
	}
}

// snapshot returns a copy of the project record
func (rt *projectRuntime) snapshot() *models.Project {
	rt.mu.Lock()
	defer rt.mu.Unlock()
	return rt.project.Clone()
}

func (rt *projectRuntime) update(fn func(p *models.Project)) {
	rt.mu.Lock()
	defer rt.mu.Unlock()
	fn(rt.project)
}

func (rt *projectRuntime) addPending(batch *models.ChangeBatch) {
	rt.mu.Lock()
	defer rt.mu.Unlock()
	rt.pending.Merge(batch)
}

// takePending hands the pending batch to a cycle and starts a new one
func (rt *projectRuntime) takePending() *models.ChangeBatch {
	rt.mu.Lock()
	defer rt.mu.Unlock()
	batch := rt.pending
	rt.pending = models.NewChangeBatch(rt.id)
	return batch
}

// requeue returns a batch a cycle could not finish. Changes recorded since
// the batch was taken win.
func (rt *projectRuntime) requeue(batch *models.ChangeBatch) {
	if batch.Empty() {
		return
	}
	rt.mu.Lock()
	defer rt.mu.Unlock()
	batch.Merge(rt.pending)
	rt.pending = batch
}

func (rt *projectRuntime) pendingPaths() []string {
	rt.mu.Lock()
	defer rt.mu.Unlock()
	return rt.pending.Paths()
}

// hasPending reports whether a timer-driven cycle has anything to do
func (rt *projectRuntime) hasPending() bool {
	rt.mu.Lock()
	defer rt.mu.Unlock()
	return !rt.pending.Empty() || rt.unpushed
}

func (rt *projectRuntime) setUnpushed(v bool) {
	rt.mu.Lock()
	defer rt.mu.Unlock()
	rt.unpushed = v
}

func (rt *projectRuntime) isUnpushed() bool {
	rt.mu.Lock()
	defer rt.mu.Unlock()
	return rt.unpushed
}

func (rt *projectRuntime) setReport(report *models.RiskReport) {
	rt.mu.Lock()
	defer rt.mu.Unlock()
	rt.lastReport = report
}

// persist writes the current record. Writes happen in snapshot order.
func (o *Orchestrator) persist(ctx context.Context, rt *projectRuntime) error {
	rt.persistMu.Lock()
	defer rt.persistMu.Unlock()
	if err := o.store.UpdateProject(ctx, rt.snapshot()); err != nil {
		o.logger.WithFields(logrus.Fields{
			"project_id": rt.id,
			"action":     "persist_project",
		}).WithError(err).Error("Failed to persist project")
		return err
	}
	return nil
}

// transition moves a project to next, persists it and publishes the change.
// Transitions the state machine does not allow are logged and ignored.
func (o *Orchestrator) transition(ctx context.Context, rt *projectRuntime, next models.LifecycleStatus) {
	rt.mu.Lock()
	prev := rt.project.Status
	if prev == next {
		rt.mu.Unlock()
		return
	}
	if !prev.CanTransition(next) {
		rt.mu.Unlock()
		o.logger.WithFields(logrus.Fields{
			"project_id": rt.id,
			"from":       prev,
			"to":         next,
		}).Warn("Ignoring invalid status transition")
		return
	}
	rt.project.Status = next
	lastError := rt.project.LastError
	rt.mu.Unlock()

	_ = o.persist(ctx, rt)

	level := models.LevelInfo
	fields := map[string]interface{}{
		"from": string(prev),
		"to":   string(next),
	}
	if next == models.StatusError {
		level = models.LevelError
		fields["last_error"] = lastError
	}
	o.emit(rt.id, level, models.EventStatusChanged, fmt.Sprintf("Status changed from %s to %s", prev, next), fields)
}

// startRuntime begins watching and scheduling for a project. The scheduler
// runs even when the folder cannot be watched so manual pushes still work.
func (o *Orchestrator) startRuntime(rt *projectRuntime) error {
	project := rt.snapshot()

	w := watcher.New(rt.id, rt.path, o.logger,
		watcher.WithClock(o.clock),
		watcher.WithDebounce(o.debounce),
	)
	sched := scheduler.New(rt.id, project.Config, func(ctx context.Context) error {
		_, err := o.syncCycle(ctx, rt, false)
		return err
	}, o.logger,
		scheduler.WithClock(o.clock),
		scheduler.WithLocation(o.location),
		scheduler.WithPendingCheck(rt.hasPending),
		scheduler.WithArmedHook(func(mode models.SyncMode, next time.Time) {
			o.emit(rt.id, models.LevelInfo, models.EventScheduleArmed, fmt.Sprintf("Next %s sync at %s", mode, next.Format(time.RFC3339)), map[string]interface{}{
				"mode": string(mode),
				"next": next,
			})
		}),
	)
	done := make(chan struct{})

	rt.mu.Lock()
	rt.watcher = w
	rt.sched = sched
	rt.done = done
	rt.stopped = false
	rt.mu.Unlock()

	sched.Start()
	if err := w.Start(); err != nil {
		o.emitError(rt.id, models.EventWatcherError, "Failed to watch project folder", err, map[string]interface{}{"path": rt.path})
		return err
	}
	rt.wg.Add(1)
	go o.forward(rt, w, sched, done)
	return nil
}

// currentScheduler returns the project's scheduler, nil before startRuntime
func (rt *projectRuntime) currentScheduler() *scheduler.Scheduler {
	rt.mu.Lock()
	defer rt.mu.Unlock()
	return rt.sched
}

// forward feeds debounced batches into the pending set and the scheduler
func (o *Orchestrator) forward(rt *projectRuntime, w *watcher.Watcher, sched *scheduler.Scheduler, done <-chan struct{}) {
	defer rt.wg.Done()
	for {
		select {
		case <-done:
			return
		case batch := <-w.Batches():
			rt.addPending(batch)
			o.emit(rt.id, models.LevelDebug, models.EventChangesDetected, fmt.Sprintf("%d changed files", batch.Len()), map[string]interface{}{
				"files": batch.Paths(),
			})
			sched.Notify()
		case err := <-w.Errors():
			o.emitError(rt.id, models.EventWatcherError, "File watcher error", err, nil)
		}
	}
}

// stopRuntime cancels the watcher and timers and waits for any cycle or
// manual operation in flight to finish.
func (o *Orchestrator) stopRuntime(rt *projectRuntime) {
	rt.mu.Lock()
	if rt.stopped || rt.sched == nil {
		rt.mu.Unlock()
		return
	}
	rt.stopped = true
	w, sched, done := rt.watcher, rt.sched, rt.done
	rt.mu.Unlock()

	close(done)
	if err := w.Stop(); err != nil {
		o.logger.WithField("project_id", rt.id).WithError(err).Warn("Failed to stop watcher")
	}
	sched.Stop()
	rt.wg.Wait()
	sched.Wait()
	_ = sched.Do(context.Background(), func(context.Context) error { return nil })
}

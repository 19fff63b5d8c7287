// Package scheduler decides when a project's sync cycle runs and guarantees
// that at most one cycle per project is in flight.
package scheduler

import (
	"context"
	"sync"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/sirupsen/logrus"

	"github.com/Kamar-Folarin/repo-autosync/internal/models"
)

// CycleFunc runs one sync cycle
type CycleFunc func(ctx context.Context) error

// PendingFunc reports whether there is anything to sync
type PendingFunc func() bool

// ArmedFunc is told when a timer is armed and when it will next fire
type ArmedFunc func(mode models.SyncMode, next time.Time)

// Scheduler drives sync cycles for one project.
//
// Trigger never blocks. While a cycle is running, further triggers collapse
// into a single trailing cycle. Do runs a manual operation under the same
// exclusion.
type Scheduler struct {
	projectID  int64
	cycle      CycleFunc
	hasPending PendingFunc
	onArmed    ArmedFunc
	clock      clockwork.Clock
	location   *time.Location
	logger     *logrus.Logger

	// sem is held while a cycle or manual operation runs
	sem chan struct{}

	mu      sync.Mutex
	cfg     models.SyncConfig
	running bool
	rerun   bool
	stopped bool
	// gen identifies the armed timer; a tick from an older one is dropped
	gen       uint64
	stopTimer chan struct{}
	stopClock func()
	loops     sync.WaitGroup
	timers    sync.WaitGroup
}

// Option configures a Scheduler
type Option func(*Scheduler)

// WithClock sets the clock timers are created from
func WithClock(clock clockwork.Clock) Option {
	return func(s *Scheduler) {
		s.clock = clock
	}
}

// WithLocation sets the time zone fixed-time schedules are evaluated in
func WithLocation(loc *time.Location) Option {
	return func(s *Scheduler) {
		if loc != nil {
			s.location = loc
		}
	}
}

// WithPendingCheck sets the check timer-driven modes run before a cycle
func WithPendingCheck(fn PendingFunc) Option {
	return func(s *Scheduler) {
		s.hasPending = fn
	}
}

// WithArmedHook registers a callback for timer arming
func WithArmedHook(fn ArmedFunc) Option {
	return func(s *Scheduler) {
		s.onArmed = fn
	}
}

// New creates a scheduler. Start arms the timer for the configured mode.
func New(projectID int64, cfg models.SyncConfig, cycle CycleFunc, logger *logrus.Logger, opts ...Option) *Scheduler {
	s := &Scheduler{
		projectID: projectID,
		cycle:     cycle,
		clock:     clockwork.NewRealClock(),
		location:  time.Local,
		logger:    logger,
		sem:       make(chan struct{}, 1),
		cfg:       cfg,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Start arms the timer for the current mode
func (s *Scheduler) Start() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.stopped {
		s.arm()
	}
}

// Config returns the schedule currently in effect
func (s *Scheduler) Config() models.SyncConfig {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.cfg
}

// Reconfigure replaces the schedule and re-arms immediately
func (s *Scheduler) Reconfigure(cfg models.SyncConfig) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.cfg = cfg
	if !s.stopped {
		s.arm()
	}
}

// Notify reports a debounced change batch. It triggers a cycle only in auto
// mode; the timer-driven modes pick the changes up on their next tick.
func (s *Scheduler) Notify() {
	s.mu.Lock()
	mode := s.cfg.SyncMode
	s.mu.Unlock()
	if mode == models.SyncModeAuto {
		s.Trigger()
	}
}

// Trigger requests a cycle without blocking
func (s *Scheduler) Trigger() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.triggerLocked()
}

func (s *Scheduler) triggerLocked() {
	if s.stopped {
		return
	}
	if s.running {
		s.rerun = true
		return
	}
	s.running = true
	s.loops.Add(1)
	go s.runLoop()
}

// Running reports whether a cycle or manual operation is in flight or a
// cycle is queued
func (s *Scheduler) Running() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.running
}

// Do runs fn while holding the project's cycle lock. Triggers that arrive
// meanwhile collapse into one cycle after fn returns.
func (s *Scheduler) Do(ctx context.Context, fn func(ctx context.Context) error) error {
	select {
	case s.sem <- struct{}{}:
	case <-ctx.Done():
		return ctx.Err()
	}

	s.mu.Lock()
	// with a loop already queued, its next cycle covers the triggers
	owner := !s.running
	s.running = true
	s.rerun = false
	s.mu.Unlock()

	err := fn(ctx)
	<-s.sem

	if owner {
		s.mu.Lock()
		if s.rerun && !s.stopped {
			s.loops.Add(1)
			go s.runLoop()
		} else {
			s.running = false
		}
		s.rerun = false
		s.mu.Unlock()
	}
	return err
}

// Stop cancels timers and rejects further triggers. A cycle already running
// is not interrupted; use Wait to block until it finishes.
func (s *Scheduler) Stop() {
	s.mu.Lock()
	if s.stopped {
		s.mu.Unlock()
		return
	}
	s.stopped = true
	s.disarm()
	s.mu.Unlock()
	s.timers.Wait()
}

// Wait blocks until no triggered cycle is running
func (s *Scheduler) Wait() {
	s.loops.Wait()
}

func (s *Scheduler) runLoop() {
	defer s.loops.Done()
	for {
		s.runCycle()

		s.mu.Lock()
		if !s.rerun || s.stopped {
			s.running = false
			s.rerun = false
			s.mu.Unlock()
			return
		}
		s.rerun = false
		s.mu.Unlock()
	}
}

func (s *Scheduler) runCycle() {
	s.sem <- struct{}{}
	defer func() { <-s.sem }()

	// this cycle covers every trigger seen so far
	s.mu.Lock()
	s.rerun = false
	s.mu.Unlock()

	// cycles are never cancelled mid-push
	if err := s.cycle(context.Background()); err != nil {
		s.logger.WithFields(logrus.Fields{
			"project_id": s.projectID,
			"action":     "sync_cycle",
		}).WithError(err).Debug("Sync cycle ended with error")
	}
}

// fire runs on timer expiry. Ticks from a timer that has since been
// disarmed are dropped.
func (s *Scheduler) fire(mode models.SyncMode, gen uint64) {
	if !s.armedAs(gen) {
		return
	}
	if s.hasPending != nil && !s.hasPending() {
		s.logger.WithFields(logrus.Fields{
			"project_id": s.projectID,
			"mode":       mode,
		}).Debug("Timer fired with nothing pending")
		return
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.gen == gen {
		s.triggerLocked()
	}
}

func (s *Scheduler) armedAs(gen uint64) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.gen == gen && !s.stopped
}

// arm starts the timer goroutine for the configured mode. Auto mode has no
// timer. Callers hold s.mu.
func (s *Scheduler) arm() {
	s.disarm()

	switch s.cfg.SyncMode {
	case models.SyncModeInterval:
		interval := s.cfg.IntervalDuration()
		if interval <= 0 {
			return
		}
		stop := make(chan struct{})
		gen := s.gen
		ticker := s.clock.NewTicker(interval)
		s.stopTimer = stop
		s.stopClock = ticker.Stop
		s.timers.Add(1)
		go func() {
			defer s.timers.Done()
			for {
				select {
				case <-stop:
					return
				case <-ticker.Chan():
					s.fire(models.SyncModeInterval, gen)
				}
			}
		}()
		s.armed(models.SyncModeInterval, s.clock.Now().Add(interval))

	case models.SyncModeFixed:
		hour, minute, err := models.ParseClock(s.cfg.SyncFixedTime)
		if err != nil {
			s.logger.WithField("project_id", s.projectID).WithError(err).Error("Invalid fixed sync time")
			return
		}
		stop := make(chan struct{})
		gen := s.gen
		next := NextOccurrence(s.clock.Now().In(s.location), hour, minute)
		timer := s.clock.NewTimer(next.Sub(s.clock.Now()))
		s.stopTimer = stop
		s.stopClock = func() { timer.Stop() }
		s.timers.Add(1)
		go func() {
			defer s.timers.Done()
			for {
				select {
				case <-stop:
					return
				case <-timer.Chan():
					s.fire(models.SyncModeFixed, gen)
					if !s.rearm(gen, timer, hour, minute) {
						return
					}
				}
			}
		}()
		s.armed(models.SyncModeFixed, next)
	}
}

// rearm schedules the next fixed-time tick unless the timer was disarmed
// while the last one was handled.
func (s *Scheduler) rearm(gen uint64, timer clockwork.Timer, hour, minute int) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.gen != gen || s.stopped {
		return false
	}
	next := NextOccurrence(s.clock.Now().In(s.location), hour, minute)
	timer.Reset(next.Sub(s.clock.Now()))
	s.armed(models.SyncModeFixed, next)
	return true
}

// disarm stops the active timer before returning so it cannot fire again.
// Callers hold s.mu.
func (s *Scheduler) disarm() {
	s.gen++
	if s.stopClock != nil {
		s.stopClock()
		s.stopClock = nil
	}
	if s.stopTimer != nil {
		close(s.stopTimer)
		s.stopTimer = nil
	}
}

func (s *Scheduler) armed(mode models.SyncMode, next time.Time) {
	s.logger.WithFields(logrus.Fields{
		"project_id": s.projectID,
		"mode":       mode,
		"next":       next.Format(time.RFC3339),
	}).Info("Sync timer armed")
	if s.onArmed != nil {
		s.onArmed(mode, next)
	}
}

// NextOccurrence returns the next wall clock time at hour:minute strictly
// after now, in now's location.
func NextOccurrence(now time.Time, hour, minute int) time.Time {
	next := time.Date(now.Year(), now.Month(), now.Day(), hour, minute, 0, 0, now.Location())
	if !next.After(now) {
		next = time.Date(now.Year(), now.Month(), now.Day()+1, hour, minute, 0, 0, now.Location())
	}
	return next
}

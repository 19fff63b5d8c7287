// Package watcher observes a project tree and emits debounced change batches.
package watcher

import (
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/jonboulle/clockwork"
	"github.com/sirupsen/logrus"

	"github.com/Kamar-Folarin/repo-autosync/internal/models"
)

// DefaultDebounce is the quiet period before a batch is emitted
const DefaultDebounce = 10 * time.Second

var ignoredNames = map[string]bool{
	".git":         true,
	"node_modules": true,
	"__pycache__":  true,
	".DS_Store":    true,
	"Thumbs.db":    true,
}

var ignoredSuffixes = []string{".log", ".tmp", ".swp", ".swx", "~", ".db-journal", ".db-wal", ".db-shm"}

// Ignored reports whether a root-relative path is never worth watching
func Ignored(rel string) bool {
	parts := strings.Split(filepath.ToSlash(rel), "/")
	for _, part := range parts {
		if ignoredNames[part] {
			return true
		}
	}
	base := parts[len(parts)-1]
	for _, suffix := range ignoredSuffixes {
		if strings.HasSuffix(base, suffix) {
			return true
		}
	}
	return false
}

// Watcher watches one project root recursively
type Watcher struct {
	projectID int64
	root      string
	window    time.Duration
	clock     clockwork.Clock
	logger    *logrus.Logger

	fsw     *fsnotify.Watcher
	batches chan *models.ChangeBatch
	errors  chan error
	done    chan struct{}
	wg      sync.WaitGroup

	mu      sync.Mutex
	pending *models.ChangeBatch
	timer   clockwork.Timer
	stopped bool
}

// Option configures a Watcher
type Option func(*Watcher)

// WithClock sets the clock driving the debounce timer
func WithClock(clock clockwork.Clock) Option {
	return func(w *Watcher) {
		w.clock = clock
	}
}

// WithDebounce sets the quiet period
func WithDebounce(window time.Duration) Option {
	return func(w *Watcher) {
		if window > 0 {
			w.window = window
		}
	}
}

// New creates a watcher for a project root. Call Start to begin watching.
func New(projectID int64, root string, logger *logrus.Logger, opts ...Option) *Watcher {
	w := &Watcher{
		projectID: projectID,
		root:      filepath.Clean(root),
		window:    DefaultDebounce,
		clock:     clockwork.NewRealClock(),
		logger:    logger,
		batches:   make(chan *models.ChangeBatch, 1),
		errors:    make(chan error, 8),
		done:      make(chan struct{}),
		pending:   models.NewChangeBatch(projectID),
	}
	for _, opt := range opts {
		opt(w)
	}
	return w
}

// Batches delivers one batch per quiet period
func (w *Watcher) Batches() <-chan *models.ChangeBatch {
	return w.batches
}

// Errors delivers watch failures. Errors are dropped when nobody reads them.
func (w *Watcher) Errors() <-chan error {
	return w.errors
}

// Start registers the tree with the OS and begins processing events
func (w *Watcher) Start() error {
	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("failed to create watcher: %w", err)
	}
	w.fsw = fsw

	if err := w.addTree(w.root); err != nil {
		fsw.Close()
		return err
	}

	w.wg.Add(1)
	go w.loop()

	w.logger.WithFields(logrus.Fields{
		"project_id": w.projectID,
		"root":       w.root,
		"debounce":   w.window.String(),
	}).Info("Started watching project")
	return nil
}

// Stop releases the OS watch and cancels the debounce timer. Changes that
// were not yet emitted are dropped; the worktree status still carries them.
func (w *Watcher) Stop() error {
	w.mu.Lock()
	if w.stopped {
		w.mu.Unlock()
		return nil
	}
	w.stopped = true
	if w.timer != nil {
		w.timer.Stop()
	}
	w.mu.Unlock()

	close(w.done)
	var err error
	if w.fsw != nil {
		err = w.fsw.Close()
	}
	w.wg.Wait()
	return err
}

func (w *Watcher) loop() {
	defer w.wg.Done()
	for {
		select {
		case <-w.done:
			return
		case ev, ok := <-w.fsw.Events:
			if !ok {
				return
			}
			w.handle(ev)
		case err, ok := <-w.fsw.Errors:
			if !ok {
				return
			}
			w.reportError(err)
		}
	}
}

func (w *Watcher) handle(ev fsnotify.Event) {
	rel, err := filepath.Rel(w.root, ev.Name)
	if err != nil || rel == "." || strings.HasPrefix(rel, "..") {
		return
	}
	rel = filepath.ToSlash(rel)
	if Ignored(rel) {
		return
	}

	switch {
	case ev.Has(fsnotify.Create):
		if info, err := os.Stat(ev.Name); err == nil && info.IsDir() {
			if err := w.addTree(ev.Name); err != nil {
				w.reportError(err)
			}
			return
		}
		w.record(rel, models.ChangeCreate)
	case ev.Has(fsnotify.Write):
		w.record(rel, models.ChangeWrite)
	case ev.Has(fsnotify.Remove):
		w.record(rel, models.ChangeRemove)
	case ev.Has(fsnotify.Rename):
		w.record(rel, models.ChangeRename)
	}
}

// addTree watches dir and every non-ignored directory below it. Files
// already present in a newly created directory are recorded as created.
func (w *Watcher) addTree(dir string) error {
	initial := dir == w.root
	return filepath.WalkDir(dir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			if path == dir {
				return fmt.Errorf("failed to watch %s: %w", path, err)
			}
			return nil
		}
		rel, _ := filepath.Rel(w.root, path)
		if rel != "." && Ignored(rel) {
			if d.IsDir() {
				return filepath.SkipDir
			}
			return nil
		}
		if !d.IsDir() {
			if !initial {
				w.record(filepath.ToSlash(rel), models.ChangeCreate)
			}
			return nil
		}
		if err := w.fsw.Add(path); err != nil {
			return fmt.Errorf("failed to watch %s: %w", path, err)
		}
		return nil
	})
}

// record adds a change to the pending batch and restarts the quiet period
func (w *Watcher) record(rel string, op models.ChangeOp) {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.stopped {
		return
	}
	w.pending.Add(rel, op, w.clock.Now())
	if w.timer != nil {
		w.timer.Stop()
	}
	w.timer = w.clock.AfterFunc(w.window, w.flush)
}

func (w *Watcher) flush() {
	w.mu.Lock()
	if w.stopped || w.pending.Empty() {
		w.mu.Unlock()
		return
	}
	batch := w.pending
	w.pending = models.NewChangeBatch(w.projectID)
	w.mu.Unlock()

	w.logger.WithFields(logrus.Fields{
		"project_id": w.projectID,
		"changes":    batch.Len(),
	}).Debug("Emitting change batch")

	select {
	case w.batches <- batch:
	case <-w.done:
	}
}

func (w *Watcher) reportError(err error) {
	w.logger.WithFields(logrus.Fields{
		"project_id": w.projectID,
		"root":       w.root,
	}).WithError(err).Warn("Watcher error")
	select {
	case w.errors <- err:
	default:
	}
}

func (w *Watcher) pendingPaths() []string {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.pending.Paths()
}

// Package orchestrator owns the lifecycle of every project: initialization,
// the steady-state sync loop and the manual operations exposed over the API.
package orchestrator

import (
	"context"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/sirupsen/logrus"

	"github.com/Kamar-Folarin/repo-autosync/internal/commitmsg"
	"github.com/Kamar-Folarin/repo-autosync/internal/db"
	"github.com/Kamar-Folarin/repo-autosync/internal/errors"
	"github.com/Kamar-Folarin/repo-autosync/internal/eventbus"
	"github.com/Kamar-Folarin/repo-autosync/internal/gateway"
	"github.com/Kamar-Folarin/repo-autosync/internal/models"
	"github.com/Kamar-Folarin/repo-autosync/internal/scanner"
	"github.com/Kamar-Folarin/repo-autosync/internal/watcher"
)

// Service is the request surface consumed by the API layer
type Service interface {
	AutoInit(ctx context.Context, req InitRequest) (*models.Project, error)
	Register(ctx context.Context, req RegisterRequest) (*models.Project, error)
	ListProjects(ctx context.Context) ([]*models.Project, error)
	GetProject(ctx context.Context, id int64) (*models.Project, error)
	GetConfig(ctx context.Context, id int64) (*models.SyncConfig, error)
	UpdateConfig(ctx context.Context, id int64, cfg models.SyncConfig) (*models.Project, error)
	Scan(ctx context.Context, id int64) (*models.RiskReport, error)
	Ignore(ctx context.Context, id int64, patterns []string) ([]string, error)
	GetIgnoreFile(ctx context.Context, id int64) (string, error)
	PutIgnoreFile(ctx context.Context, id int64, content string) error
	Push(ctx context.Context, id int64) (*SyncResult, error)
	Retry(ctx context.Context, id int64) (*models.Project, error)
	SyncVisibility(ctx context.Context, id int64) (*models.Project, error)
	Delete(ctx context.Context, id int64, deleteRemote bool, credential string) error
	Settings(ctx context.Context) (*models.SettingsView, error)
	SetGlobalToken(ctx context.Context, token string) (*models.SettingsView, error)
	ClearGlobalToken(ctx context.Context) error
}

// Repositories is the subset of the repository gateway the orchestrator uses
type Repositories interface {
	DefaultBranch() string
	EnsureLocalRepo(ctx context.Context, path string) (bool, error)
	EnsureIgnoreFile(path, content string, overwrite bool) (bool, error)
	ConnectRemote(ctx context.Context, credential string) (string, error)
	EnsureRemoteRepo(ctx context.Context, credential string, req gateway.RemoteRepoRequest) (*gateway.RemoteRepo, error)
	LinkRemote(path, url string) error
	CommitAll(path, message string, opts gateway.CommitOptions) (*gateway.CommitResult, error)
	Push(ctx context.Context, path string, opts gateway.PushOptions) (*gateway.PushResult, error)
	PendingChanges(path string) ([]string, error)
	Inspect(path string) (*gateway.RepoInfo, error)
	DeleteRemoteRepo(ctx context.Context, credential, url string) error
	SetVisibility(ctx context.Context, credential, url string, private bool) error
	Visibility(ctx context.Context, credential, url string) (bool, error)
}

// Scanner screens files before they leave the machine
type Scanner interface {
	Scan(root string, paths []string, policy scanner.Policy) (*models.RiskReport, error)
	Ignore(root string, patterns []string) ([]string, error)
}

// Orchestrator implements Service
type Orchestrator struct {
	store    db.Store
	repos    Repositories
	scanner  Scanner
	bus      *eventbus.Bus
	messages commitmsg.Generator
	logger   *logrus.Logger

	clock          clockwork.Clock
	location       *time.Location
	debounce       time.Duration
	bootstrapToken string

	registry *registry
}

// Option configures an Orchestrator
type Option func(*Orchestrator)

// WithClock sets the clock used by watchers and schedulers
func WithClock(clock clockwork.Clock) Option {
	return func(o *Orchestrator) {
		o.clock = clock
	}
}

// WithLocation sets the time zone for fixed-time schedules
func WithLocation(loc *time.Location) Option {
	return func(o *Orchestrator) {
		if loc != nil {
			o.location = loc
		}
	}
}

// WithDebounce sets the watcher quiet period
func WithDebounce(window time.Duration) Option {
	return func(o *Orchestrator) {
		if window > 0 {
			o.debounce = window
		}
	}
}

// WithCommitMessages sets the commit message generator
func WithCommitMessages(gen commitmsg.Generator) Option {
	return func(o *Orchestrator) {
		if gen != nil {
			o.messages = gen
		}
	}
}

// WithBootstrapToken sets a credential used when none has been saved
func WithBootstrapToken(token string) Option {
	return func(o *Orchestrator) {
		o.bootstrapToken = token
	}
}

// New creates an orchestrator. Call Restore to resume persisted projects.
func New(store db.Store, repos Repositories, scan Scanner, bus *eventbus.Bus, logger *logrus.Logger, opts ...Option) *Orchestrator {
	o := &Orchestrator{
		store:    store,
		repos:    repos,
		scanner:  scan,
		bus:      bus,
		messages: commitmsg.PrefixGenerator{},
		logger:   logger,
		clock:    clockwork.NewRealClock(),
		location: time.Local,
		debounce: watcher.DefaultDebounce,
		registry: newRegistry(),
	}
	for _, opt := range opts {
		opt(o)
	}
	return o
}

// emit publishes an event on the bus
func (o *Orchestrator) emit(projectID int64, level models.LogLevel, code models.EventCode, message string, fields map[string]interface{}) {
	o.bus.Emit(projectID, level, code, message, fields)
}

// emitError publishes a failure with enough context to diagnose it
func (o *Orchestrator) emitError(projectID int64, code models.EventCode, message string, err error, fields map[string]interface{}) {
	if fields == nil {
		fields = make(map[string]interface{})
	}
	fields["cause"] = err.Error()
	fields["error_type"] = string(errors.TypeOf(err))
	if op := errors.OpOf(err); op != "" {
		fields["op"] = op
	}
	o.bus.Emit(projectID, models.LevelError, code, message, fields)
}

// reporter forwards gateway step events to the bus
func (o *Orchestrator) reporter(projectID int64, path string) gateway.Reporter {
	return func(level models.LogLevel, code models.EventCode, message string, fields map[string]interface{}) {
		if projectID == 0 {
			if fields == nil {
				fields = make(map[string]interface{})
			}
			fields["path"] = path
		}
		o.bus.Emit(projectID, level, code, message, fields)
	}
}

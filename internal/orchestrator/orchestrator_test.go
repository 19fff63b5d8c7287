package orchestrator

import (
	"context"
	"os"
	"path/filepath"
	"sort"
	"sync"
	"testing"
	"time"

	git "github.com/go-git/go-git/v5"
	"github.com/go-git/go-git/v5/plumbing"
	"github.com/go-git/go-git/v5/plumbing/transport/client"
	"github.com/go-git/go-git/v5/plumbing/transport/server"
	"github.com/jonboulle/clockwork"
	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/Kamar-Folarin/repo-autosync/internal/config"
	apperrors "github.com/Kamar-Folarin/repo-autosync/internal/errors"
	"github.com/Kamar-Folarin/repo-autosync/internal/eventbus"
	"github.com/Kamar-Folarin/repo-autosync/internal/gateway"
	"github.com/Kamar-Folarin/repo-autosync/internal/github"
	"github.com/Kamar-Folarin/repo-autosync/internal/models"
	"github.com/Kamar-Folarin/repo-autosync/internal/scanner"
	"github.com/Kamar-Folarin/repo-autosync/internal/watcher"
)

// Test constants
const (
	testCredential = "ghp_abcdefghijklmnop"
	testOwner      = "octocat"
	testGitHubURL  = "https://github.com/octocat/notes.git"
	testTimeout    = 5 * time.Second
	testTick       = 10 * time.Millisecond
)

func TestMain(m *testing.M) {
	client.InstallProtocol("file", server.NewClient(server.DefaultLoader))
	os.Exit(m.Run())
}

// memStore is an in-memory db.Store
type memStore struct {
	mu       sync.Mutex
	nextID   int64
	projects map[int64]*models.Project
	settings models.Settings
}

func newMemStore() *memStore {
	return &memStore{projects: make(map[int64]*models.Project)}
}

func (s *memStore) CreateProject(ctx context.Context, project *models.Project) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, p := range s.projects {
		if p.LocalPath == project.LocalPath {
			return apperrors.NewDuplicateProjectError(project.LocalPath)
		}
	}
	s.nextID++
	project.ID = s.nextID
	project.CreatedAt = time.Now()
	project.UpdatedAt = project.CreatedAt
	s.projects[project.ID] = project.Clone()
	return nil
}

func (s *memStore) GetProject(ctx context.Context, id int64) (*models.Project, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	p, ok := s.projects[id]
	if !ok {
		return nil, apperrors.NewResourceNotFoundError("project", "")
	}
	return p.Clone(), nil
}

func (s *memStore) GetProjectByPath(ctx context.Context, path string) (*models.Project, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, p := range s.projects {
		if p.LocalPath == path {
			return p.Clone(), nil
		}
	}
	return nil, apperrors.NewResourceNotFoundError("project", path)
}

func (s *memStore) ListProjects(ctx context.Context) ([]*models.Project, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]*models.Project, 0, len(s.projects))
	for _, p := range s.projects {
		out = append(out, p.Clone())
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (s *memStore) UpdateProject(ctx context.Context, project *models.Project) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.projects[project.ID]; !ok {
		return apperrors.NewResourceNotFoundError("project", "")
	}
	project.UpdatedAt = time.Now()
	s.projects[project.ID] = project.Clone()
	return nil
}

func (s *memStore) DeleteProject(ctx context.Context, id int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.projects[id]; !ok {
		return apperrors.NewResourceNotFoundError("project", "")
	}
	delete(s.projects, id)
	return nil
}

func (s *memStore) GetSettings(ctx context.Context) (*models.Settings, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	cp := s.settings
	return &cp, nil
}

func (s *memStore) SaveSettings(ctx context.Context, settings *models.Settings) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	settings.UpdatedAt = time.Now()
	s.settings = *settings
	return nil
}

func (s *memStore) Ping(ctx context.Context) error { return nil }
func (s *memStore) Close() error                   { return nil }

func (s *memStore) stored(t *testing.T, id int64) *models.Project {
	t.Helper()
	p, err := s.GetProject(context.Background(), id)
	require.NoError(t, err)
	return p
}

type mockHosting struct {
	mock.Mock
}

func (m *mockHosting) GetAuthenticatedUser(ctx context.Context) (*github.User, error) {
	args := m.Called(ctx)
	user, _ := args.Get(0).(*github.User)
	return user, args.Error(1)
}

func (m *mockHosting) GetRepository(ctx context.Context, owner, name string) (*github.Repository, error) {
	args := m.Called(ctx, owner, name)
	repo, _ := args.Get(0).(*github.Repository)
	return repo, args.Error(1)
}

func (m *mockHosting) CreateRepository(ctx context.Context, req github.CreateRepositoryRequest) (*github.Repository, error) {
	args := m.Called(ctx, req)
	repo, _ := args.Get(0).(*github.Repository)
	return repo, args.Error(1)
}

func (m *mockHosting) DeleteRepository(ctx context.Context, owner, name string) error {
	return m.Called(ctx, owner, name).Error(0)
}

func (m *mockHosting) UpdateVisibility(ctx context.Context, owner, name string, private bool) (*github.Repository, error) {
	args := m.Called(ctx, owner, name, private)
	repo, _ := args.Get(0).(*github.Repository)
	return repo, args.Error(1)
}

func (m *mockHosting) CommitCount(ctx context.Context, owner, name string) (int, error) {
	args := m.Called(ctx, owner, name)
	return args.Int(0), args.Error(1)
}

// credentialRecorder remembers the credential of every hosting client and
// push the orchestrator asks for.
type credentialRecorder struct {
	*gateway.Gateway
	mu      sync.Mutex
	hosting []string
	pushes  []string
}

func (r *credentialRecorder) Push(ctx context.Context, path string, opts gateway.PushOptions) (*gateway.PushResult, error) {
	r.mu.Lock()
	r.pushes = append(r.pushes, opts.Credential)
	r.mu.Unlock()
	return r.Gateway.Push(ctx, path, opts)
}

func (r *credentialRecorder) recordHosting(credential string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.hosting = append(r.hosting, credential)
}

func (r *credentialRecorder) Pushes() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]string(nil), r.pushes...)
}

func (r *credentialRecorder) LastHosting() string {
	r.mu.Lock()
	defer r.mu.Unlock()
	if len(r.hosting) == 0 {
		return ""
	}
	return r.hosting[len(r.hosting)-1]
}

type fixture struct {
	orch        *Orchestrator
	store       *memStore
	hosting     *mockHosting
	repos       *gateway.Gateway
	credentials *credentialRecorder
	bus         *eventbus.Bus
	clock       *clockwork.FakeClock
}

func newFixture(t *testing.T, opts ...Option) *fixture {
	t.Helper()
	logger := logrus.New()
	logger.SetLevel(logrus.DebugLevel)

	f := &fixture{
		store:   newMemStore(),
		hosting: &mockHosting{},
		bus:     eventbus.New(logger, eventbus.DefaultCapacity),
		clock:   clockwork.NewFakeClock(),
	}
	f.credentials = &credentialRecorder{}
	f.repos = gateway.New(logger, func(credential string) gateway.Hosting {
		f.credentials.recordHosting(credential)
		return f.hosting
	}, config.DefaultSyncConfig())
	f.credentials.Gateway = f.repos

	opts = append([]Option{WithClock(f.clock), WithLocation(time.UTC)}, opts...)
	f.orch = New(f.store, f.credentials, scanner.New(logger), f.bus, logger, opts...)
	t.Cleanup(func() {
		ctx, cancel := context.WithTimeout(context.Background(), testTimeout)
		defer cancel()
		_ = f.orch.Shutdown(ctx)
	})
	return f
}

// expectInit stubs the hosting calls AutoInit makes for a repository that
// does not exist yet, served from bare.
func (f *fixture) expectInit(bare string) {
	f.hosting.On("GetAuthenticatedUser", mock.Anything).Return(&github.User{Login: testOwner}, nil)
	f.hosting.On("GetRepository", mock.Anything, testOwner, mock.Anything).
		Return(nil, github.NewRepositoryNotFoundError(testOwner, "notes"))
	f.hosting.On("CreateRepository", mock.Anything, mock.Anything).
		Return(&github.Repository{FullName: "octocat/notes", CloneURL: bare, Private: true}, nil)
}

func (f *fixture) codes(projectID int64) []models.EventCode {
	var filter eventbus.Filter
	if projectID != 0 {
		filter = eventbus.ProjectFilter(projectID)
	}
	var out []models.EventCode
	for _, ev := range f.bus.Backlog(filter) {
		out = append(out, ev.Code)
	}
	return out
}

func (f *fixture) waitForEvent(t *testing.T, projectID int64, code models.EventCode) {
	t.Helper()
	require.Eventually(t, func() bool {
		for _, c := range f.codes(projectID) {
			if c == code {
				return true
			}
		}
		return false
	}, testTimeout, testTick, "waiting for %s", code)
}

func (f *fixture) initProject(t *testing.T) (*models.Project, string) {
	t.Helper()
	bare := initBareRemote(t, filepath.Join(t.TempDir(), "remote.git"))
	f.expectInit(bare)

	path := t.TempDir()
	writeFile(t, path, "notes.txt", "first note")

	project, err := f.orch.AutoInit(context.Background(), InitRequest{
		Path:       path,
		Name:       "notes",
		Credential: testCredential,
		Private:    true,
	})
	require.NoError(t, err)
	return project, bare
}

// registerLinked creates a repository with origin pointing at url and
// registers it.
func (f *fixture) registerLinked(t *testing.T, url string, files map[string]string) *models.Project {
	t.Helper()
	path := t.TempDir()
	_, err := f.repos.EnsureLocalRepo(context.Background(), path)
	require.NoError(t, err)
	require.NoError(t, f.repos.LinkRemote(path, url))
	for rel, content := range files {
		writeFile(t, path, rel, content)
	}

	project, err := f.orch.Register(context.Background(), RegisterRequest{Path: path})
	require.NoError(t, err)
	return project
}

func (f *fixture) status(t *testing.T, id int64) models.LifecycleStatus {
	t.Helper()
	p, err := f.orch.GetProject(context.Background(), id)
	require.NoError(t, err)
	return p.Status
}

func writeFile(t *testing.T, root, rel, content string) {
	t.Helper()
	full := filepath.Join(root, filepath.FromSlash(rel))
	require.NoError(t, os.MkdirAll(filepath.Dir(full), 0o755))
	require.NoError(t, os.WriteFile(full, []byte(content), 0o644))
}

func initBareRemote(t *testing.T, dir string) string {
	t.Helper()
	_, err := git.PlainInitWithOptions(dir, &git.PlainInitOptions{
		InitOptions: git.InitOptions{DefaultBranch: plumbing.NewBranchReferenceName("main")},
		Bare:        true,
	})
	require.NoError(t, err)
	return dir
}

func branchHead(t *testing.T, path string) (plumbing.Hash, bool) {
	t.Helper()
	repo, err := git.PlainOpen(path)
	require.NoError(t, err)
	ref, err := repo.Reference(plumbing.NewBranchReferenceName("main"), true)
	if err != nil {
		return plumbing.ZeroHash, false
	}
	return ref.Hash(), true
}

func headMessage(t *testing.T, path string) string {
	t.Helper()
	repo, err := git.PlainOpen(path)
	require.NoError(t, err)
	ref, err := repo.Head()
	require.NoError(t, err)
	commit, err := repo.CommitObject(ref.Hash())
	require.NoError(t, err)
	return commit.Message
}

func TestAutoInit_PushesInitialCommit(t *testing.T) {
	f := newFixture(t)
	project, bare := f.initProject(t)

	assert.Equal(t, models.StatusWatching, project.Status)
	assert.Equal(t, "notes", project.Name)
	assert.Equal(t, bare, project.RemoteURL)
	assert.Equal(t, "main", project.Branch)
	assert.True(t, project.Config.IsPrivate)
	assert.NotNil(t, project.LastSyncTime)
	assert.Empty(t, project.LastError)

	local, ok := branchHead(t, project.LocalPath)
	require.True(t, ok)
	remote, ok := branchHead(t, bare)
	require.True(t, ok)
	assert.Equal(t, local, remote)
	assert.Equal(t, "Initial commit", headMessage(t, project.LocalPath))
	assert.FileExists(t, filepath.Join(project.LocalPath, ".gitignore"))

	codes := f.codes(0)
	for _, code := range []models.EventCode{
		models.EventInitStart,
		models.EventRepoCreated,
		models.EventGitignoreCreated,
		models.EventCredentialVerified,
		models.EventRemoteCreated,
		models.EventRemoteLinked,
		models.EventInitialCommit,
	} {
		assert.Contains(t, codes, code)
	}
	assert.Contains(t, f.codes(project.ID), models.EventProjectCreated)

	stored := f.store.stored(t, project.ID)
	assert.Equal(t, models.StatusWatching, stored.Status)
}

func TestAutoInit_RejectsTrackedPath(t *testing.T) {
	f := newFixture(t)
	project, _ := f.initProject(t)

	_, err := f.orch.AutoInit(context.Background(), InitRequest{
		Path:       project.LocalPath,
		Credential: testCredential,
	})
	assert.True(t, apperrors.IsDuplicateProject(err))

	projects, err := f.orch.ListProjects(context.Background())
	require.NoError(t, err)
	assert.Len(t, projects, 1)
}

func TestAutoInit_RequiresCredential(t *testing.T) {
	f := newFixture(t)

	_, err := f.orch.AutoInit(context.Background(), InitRequest{Path: t.TempDir()})
	assert.Equal(t, apperrors.ErrCredentialMissing, apperrors.TypeOf(err))
	assert.Contains(t, f.codes(0), models.EventInitFailed)

	stored, err := f.store.ListProjects(context.Background())
	require.NoError(t, err)
	assert.Empty(t, stored)
}

func TestAutoInit_UsesBootstrapToken(t *testing.T) {
	f := newFixture(t, WithBootstrapToken(testCredential))
	bare := initBareRemote(t, filepath.Join(t.TempDir(), "remote.git"))
	f.expectInit(bare)

	project, err := f.orch.AutoInit(context.Background(), InitRequest{Path: t.TempDir(), Name: "notes"})
	require.NoError(t, err)
	assert.Equal(t, models.StatusWatching, project.Status)
}

func TestSync_AutoModeCommitsAndPushes(t *testing.T) {
	f := newFixture(t)
	project, bare := f.initProject(t)

	writeFile(t, project.LocalPath, "todo.txt", "ship it")

	ctx, cancel := context.WithTimeout(context.Background(), testTimeout)
	defer cancel()
	require.NoError(t, f.clock.BlockUntilContext(ctx, 1))
	f.clock.Advance(watcher.DefaultDebounce)

	f.waitForEvent(t, project.ID, models.EventSyncComplete)

	local, _ := branchHead(t, project.LocalPath)
	remote, _ := branchHead(t, bare)
	assert.Equal(t, local, remote)
	assert.Equal(t, "backup: Auto backup", headMessage(t, project.LocalPath))

	codes := f.codes(project.ID)
	assert.Contains(t, codes, models.EventChangesDetected)
	assert.Contains(t, codes, models.EventSyncStart)
	assert.Contains(t, codes, models.EventCommitCreated)
	assert.Equal(t, models.StatusWatching, f.status(t, project.ID))
}

func TestPush_NoChanges(t *testing.T) {
	f := newFixture(t)
	project, _ := f.initProject(t)

	result, err := f.orch.Push(context.Background(), project.ID)
	require.NoError(t, err)
	assert.Equal(t, SyncNoChanges, result.Outcome)
	assert.Equal(t, "No changes to push", result.Message)
	assert.Equal(t, models.StatusWatching, f.status(t, project.ID))
}

func TestPush_OversizeFileHaltsCycle(t *testing.T) {
	f := newFixture(t)
	project, bare := f.initProject(t)
	before, _ := branchHead(t, bare)

	cfg, err := f.orch.GetConfig(context.Background(), project.ID)
	require.NoError(t, err)
	cfg.MaxFileSizeMB = 1
	_, err = f.orch.UpdateConfig(context.Background(), project.ID, *cfg)
	require.NoError(t, err)

	writeFile(t, project.LocalPath, "video.bin", string(make([]byte, 2*1024*1024)))
	writeFile(t, project.LocalPath, "notes.txt", "second note")

	result, err := f.orch.Push(context.Background(), project.ID)
	require.NoError(t, err)
	assert.Equal(t, SyncRiskHalted, result.Outcome)
	require.Len(t, result.Report.Items, 1)
	assert.Equal(t, "video.bin", result.Report.Items[0].Path)
	assert.Equal(t, models.RiskOversize, result.Report.Items[0].Reason)

	after, _ := branchHead(t, bare)
	assert.Equal(t, before, after, "nothing may be pushed while a risky file is pending")
	assert.Contains(t, f.codes(project.ID), models.EventRiskDetected)
	assert.Equal(t, models.StatusWatching, f.status(t, project.ID))

	added, err := f.orch.Ignore(context.Background(), project.ID, []string{"video.bin", " "})
	require.NoError(t, err)
	assert.Equal(t, []string{"video.bin"}, added)

	result, err = f.orch.Push(context.Background(), project.ID)
	require.NoError(t, err)
	assert.Equal(t, SyncPushed, result.Outcome)
	assert.Equal(t, "Manual backup", headMessage(t, project.LocalPath))

	after, _ = branchHead(t, bare)
	assert.NotEqual(t, before, after)

	repo, err := git.PlainOpen(bare)
	require.NoError(t, err)
	commit, err := repo.CommitObject(after)
	require.NoError(t, err)
	_, err = commit.File("video.bin")
	assert.Error(t, err)
}

func TestScan_ReportsWithoutSyncing(t *testing.T) {
	f := newFixture(t)
	project, _ := f.initProject(t)
	writeFile(t, project.LocalPath, "setup.exe", "MZ")
	writeFile(t, project.LocalPath, ".secrets", "hidden")

	report, err := f.orch.Scan(context.Background(), project.ID)
	require.NoError(t, err)
	assert.Equal(t, project.ID, report.ProjectID)
	require.Len(t, report.Items, 1)
	assert.Equal(t, models.RiskBlockedExtension, report.Items[0].Reason)
	require.Len(t, report.Excluded, 1)
	assert.Equal(t, ".secrets", report.Excluded[0].Path)
}

func TestIgnore_RequiresPatterns(t *testing.T) {
	f := newFixture(t)
	project, _ := f.initProject(t)

	_, err := f.orch.Ignore(context.Background(), project.ID, []string{"", "  "})
	assert.True(t, apperrors.IsValidationError(err))
}

func TestIgnoreFile_RoundTrip(t *testing.T) {
	f := newFixture(t)
	project, _ := f.initProject(t)

	require.NoError(t, f.orch.PutIgnoreFile(context.Background(), project.ID, "*.bak\n"))
	content, err := f.orch.GetIgnoreFile(context.Background(), project.ID)
	require.NoError(t, err)
	assert.Equal(t, "*.bak\n", content)
}

func TestSync_RecoverableFailureKeepsWatching(t *testing.T) {
	f := newFixture(t)
	project := f.registerLinked(t, "http://127.0.0.1:1/octocat/notes.git", map[string]string{"a.txt": "a"})

	require.Eventually(t, func() bool {
		p, err := f.orch.GetProject(context.Background(), project.ID)
		return err == nil && p.Status == models.StatusWatching && p.LastError != ""
	}, testTimeout, testTick)

	assert.Contains(t, f.codes(project.ID), models.EventSyncFailed)
	require.Eventually(t, func() bool {
		return f.store.stored(t, project.ID).Status == models.StatusWatching
	}, testTimeout, testTick)
}

func TestSync_FatalFailureMovesToError(t *testing.T) {
	f := newFixture(t)
	remoteDir := filepath.Join(t.TempDir(), "gone.git")
	project := f.registerLinked(t, remoteDir, map[string]string{"a.txt": "a"})

	require.Eventually(t, func() bool {
		return f.status(t, project.ID) == models.StatusError
	}, testTimeout, testTick)
	p, err := f.orch.GetProject(context.Background(), project.ID)
	require.NoError(t, err)
	assert.NotEmpty(t, p.LastError)
	require.Eventually(t, func() bool {
		return f.store.stored(t, project.ID).Status == models.StatusError
	}, testTimeout, testTick)

	// automatic cycles stay off until the project is retried
	result, err := f.orch.syncCycle(context.Background(), f.mustRuntime(t, project.ID), false)
	require.NoError(t, err)
	assert.Equal(t, SyncSkipped, result.Outcome)

	initBareRemote(t, remoteDir)
	p, err = f.orch.Retry(context.Background(), project.ID)
	require.NoError(t, err)
	assert.Empty(t, p.LastError)

	require.Eventually(t, func() bool {
		_, ok := branchHead(t, remoteDir)
		return ok
	}, testTimeout, testTick)
	f.waitForEvent(t, project.ID, models.EventSyncComplete)
	assert.Equal(t, models.StatusWatching, f.status(t, project.ID))

	_, err = f.orch.Retry(context.Background(), project.ID)
	assert.True(t, apperrors.IsValidationError(err))
}

func (f *fixture) mustRuntime(t *testing.T, id int64) *projectRuntime {
	t.Helper()
	rt, err := f.orch.registry.get(id)
	require.NoError(t, err)
	return rt
}

func TestRegister(t *testing.T) {
	f := newFixture(t)

	t.Run("existing repository", func(t *testing.T) {
		project := f.registerLinked(t, testGitHubURL, nil)
		assert.Equal(t, models.StatusWatching, project.Status)
		assert.Equal(t, testGitHubURL, project.RemoteURL)
		assert.Equal(t, "main", project.Branch)
		assert.Contains(t, f.codes(project.ID), models.EventProjectRegistered)

		again, err := f.orch.Register(context.Background(), RegisterRequest{Path: project.LocalPath})
		require.NoError(t, err)
		assert.Equal(t, project.ID, again.ID)
	})

	t.Run("not a repository", func(t *testing.T) {
		_, err := f.orch.Register(context.Background(), RegisterRequest{Path: t.TempDir()})
		assert.True(t, apperrors.IsValidationError(err))
	})

	t.Run("no remote", func(t *testing.T) {
		path := t.TempDir()
		_, err := f.repos.EnsureLocalRepo(context.Background(), path)
		require.NoError(t, err)
		_, err = f.orch.Register(context.Background(), RegisterRequest{Path: path})
		assert.True(t, apperrors.IsValidationError(err))
	})

	t.Run("missing folder", func(t *testing.T) {
		_, err := f.orch.Register(context.Background(), RegisterRequest{Path: filepath.Join(t.TempDir(), "missing")})
		assert.Equal(t, apperrors.ErrPathUnusable, apperrors.TypeOf(err))
	})
}

func TestUpdateConfig(t *testing.T) {
	f := newFixture(t)
	project := f.registerLinked(t, testGitHubURL, nil)

	t.Run("re-arms the scheduler", func(t *testing.T) {
		cfg := project.Config
		cfg.SyncMode = models.SyncModeInterval
		cfg.SyncInterval = 15

		updated, err := f.orch.UpdateConfig(context.Background(), project.ID, cfg)
		require.NoError(t, err)
		assert.Equal(t, models.SyncModeInterval, updated.Config.SyncMode)
		assert.Equal(t, models.SyncModeInterval, f.store.stored(t, project.ID).Config.SyncMode)
		assert.Equal(t, models.SyncModeInterval, f.mustRuntime(t, project.ID).currentScheduler().Config().SyncMode)

		codes := f.codes(project.ID)
		assert.Contains(t, codes, models.EventScheduleArmed)
		assert.Contains(t, codes, models.EventConfigUpdated)
	})

	t.Run("rejects invalid config", func(t *testing.T) {
		cfg := project.Config
		cfg.SyncMode = models.SyncModeFixed
		cfg.SyncFixedTime = "25:00"

		_, err := f.orch.UpdateConfig(context.Background(), project.ID, cfg)
		assert.True(t, apperrors.IsValidationError(err))
	})

	t.Run("visibility change needs a credential", func(t *testing.T) {
		cfg := project.Config
		cfg.IsPrivate = !cfg.IsPrivate

		_, err := f.orch.UpdateConfig(context.Background(), project.ID, cfg)
		assert.Equal(t, apperrors.ErrCredentialMissing, apperrors.TypeOf(err))
	})

	t.Run("visibility change updates the remote", func(t *testing.T) {
		_, err := f.orch.SetGlobalToken(context.Background(), testCredential)
		require.NoError(t, err)
		f.hosting.On("UpdateVisibility", mock.Anything, testOwner, "notes", false).
			Return(&github.Repository{Private: false}, nil).Once()

		cfg := project.Config
		cfg.IsPrivate = false
		updated, err := f.orch.UpdateConfig(context.Background(), project.ID, cfg)
		require.NoError(t, err)
		assert.False(t, updated.Config.IsPrivate)
		assert.Contains(t, f.codes(project.ID), models.EventVisibilityUpdated)
		f.hosting.AssertExpectations(t)
	})
}

func TestSyncVisibility(t *testing.T) {
	f := newFixture(t, WithBootstrapToken(testCredential))
	project := f.registerLinked(t, testGitHubURL, nil)
	require.True(t, project.Config.IsPrivate)

	f.hosting.On("GetRepository", mock.Anything, testOwner, "notes").
		Return(&github.Repository{Private: false}, nil)

	updated, err := f.orch.SyncVisibility(context.Background(), project.ID)
	require.NoError(t, err)
	assert.False(t, updated.Config.IsPrivate)
	assert.False(t, f.store.stored(t, project.ID).Config.IsPrivate)
}

func TestProjectCredential(t *testing.T) {
	t.Run("auto-init credential is kept for later pushes", func(t *testing.T) {
		f := newFixture(t)
		project, _ := f.initProject(t)
		assert.Equal(t, models.MaskToken(testCredential), project.CredentialPreview)
		assert.Equal(t, testCredential, f.store.stored(t, project.ID).Credential)

		writeFile(t, project.LocalPath, "notes.txt", "second note")
		result, err := f.orch.Push(context.Background(), project.ID)
		require.NoError(t, err)
		assert.Equal(t, SyncPushed, result.Outcome)
		assert.Equal(t, []string{testCredential, testCredential}, f.credentials.Pushes())
	})

	t.Run("project credential wins over the global token", func(t *testing.T) {
		f := newFixture(t)
		_, err := f.orch.SetGlobalToken(context.Background(), "ghp_global_token_5678")
		require.NoError(t, err)

		path := t.TempDir()
		_, err = f.repos.EnsureLocalRepo(context.Background(), path)
		require.NoError(t, err)
		require.NoError(t, f.repos.LinkRemote(path, testGitHubURL))
		project, err := f.orch.Register(context.Background(), RegisterRequest{Path: path, Credential: testCredential})
		require.NoError(t, err)

		f.hosting.On("GetRepository", mock.Anything, testOwner, "notes").
			Return(&github.Repository{Private: true}, nil)
		_, err = f.orch.SyncVisibility(context.Background(), project.ID)
		require.NoError(t, err)
		assert.Equal(t, testCredential, f.credentials.LastHosting())

		other := f.registerLinked(t, testGitHubURL, nil)
		assert.Empty(t, other.CredentialPreview)
		_, err = f.orch.SyncVisibility(context.Background(), other.ID)
		require.NoError(t, err)
		assert.Equal(t, "ghp_global_token_5678", f.credentials.LastHosting())
	})
}

func TestDelete(t *testing.T) {
	t.Run("deleting the remote needs a credential", func(t *testing.T) {
		f := newFixture(t)
		project := f.registerLinked(t, testGitHubURL, nil)

		err := f.orch.Delete(context.Background(), project.ID, true, "")
		assert.Equal(t, apperrors.ErrCredentialMissing, apperrors.TypeOf(err))

		_, err = f.orch.GetProject(context.Background(), project.ID)
		assert.NoError(t, err)
	})

	t.Run("removes project and remote", func(t *testing.T) {
		f := newFixture(t)
		project := f.registerLinked(t, testGitHubURL, nil)
		f.hosting.On("DeleteRepository", mock.Anything, testOwner, "notes").Return(nil)

		require.NoError(t, f.orch.Delete(context.Background(), project.ID, true, testCredential))

		_, err := f.orch.GetProject(context.Background(), project.ID)
		assert.True(t, apperrors.IsNotFound(err))
		_, err = f.store.GetProject(context.Background(), project.ID)
		assert.True(t, apperrors.IsNotFound(err))
		assert.DirExists(t, project.LocalPath)

		codes := f.codes(project.ID)
		assert.Contains(t, codes, models.EventRemoteDeleted)
		assert.Contains(t, codes, models.EventProjectDeleted)
		f.hosting.AssertExpectations(t)

		// the path can be registered again
		again, err := f.orch.Register(context.Background(), RegisterRequest{Path: project.LocalPath})
		require.NoError(t, err)
		assert.NotEqual(t, project.ID, again.ID)
	})

	t.Run("remote failure keeps the project", func(t *testing.T) {
		f := newFixture(t)
		project := f.registerLinked(t, testGitHubURL, nil)
		f.hosting.On("DeleteRepository", mock.Anything, testOwner, "notes").
			Return(github.NewGitHubError(403, "Must have admin rights", nil))

		err := f.orch.Delete(context.Background(), project.ID, true, testCredential)
		require.Error(t, err)

		_, err = f.orch.GetProject(context.Background(), project.ID)
		require.NoError(t, err)
		assert.NotNil(t, f.mustRuntime(t, project.ID).currentScheduler())
	})

	t.Run("unknown project", func(t *testing.T) {
		f := newFixture(t)
		err := f.orch.Delete(context.Background(), 42, false, "")
		assert.True(t, apperrors.IsNotFound(err))
	})
}

func TestSettings(t *testing.T) {
	f := newFixture(t)

	view, err := f.orch.Settings(context.Background())
	require.NoError(t, err)
	assert.False(t, view.HasGitHubToken)

	_, err = f.orch.SetGlobalToken(context.Background(), "  ")
	assert.True(t, apperrors.IsValidationError(err))

	view, err = f.orch.SetGlobalToken(context.Background(), testCredential)
	require.NoError(t, err)
	assert.True(t, view.HasGitHubToken)
	assert.Equal(t, "ghp_...mnop", view.GitHubTokenPreview)

	view, err = f.orch.Settings(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "ghp_...mnop", view.GitHubTokenPreview)

	require.NoError(t, f.orch.ClearGlobalToken(context.Background()))
	view, err = f.orch.Settings(context.Background())
	require.NoError(t, err)
	assert.False(t, view.HasGitHubToken)
}

func TestRestore(t *testing.T) {
	f := newFixture(t)

	linked := func(status models.LifecycleStatus) *models.Project {
		path := t.TempDir()
		_, err := f.repos.EnsureLocalRepo(context.Background(), path)
		require.NoError(t, err)
		require.NoError(t, f.repos.LinkRemote(path, testGitHubURL))
		p := &models.Project{
			Name:      filepath.Base(path),
			LocalPath: path,
			RemoteURL: testGitHubURL,
			Branch:    "main",
			Status:    status,
			Config:    models.DefaultSyncConfig(),
		}
		require.NoError(t, f.store.CreateProject(context.Background(), p))
		return p
	}
	interrupted := linked(models.StatusSyncing)
	failed := linked(models.StatusError)

	require.NoError(t, f.orch.Restore(context.Background()))

	projects, err := f.orch.ListProjects(context.Background())
	require.NoError(t, err)
	require.Len(t, projects, 2)
	assert.Equal(t, models.StatusWatching, f.status(t, interrupted.ID))
	assert.Equal(t, models.StatusError, f.status(t, failed.ID))
	assert.Equal(t, models.StatusWatching, f.store.stored(t, interrupted.ID).Status)

	counts := f.orch.Status()
	assert.Equal(t, 1, counts[models.StatusWatching])
	assert.Equal(t, 1, counts[models.StatusError])

	ctx, cancel := context.WithTimeout(context.Background(), testTimeout)
	defer cancel()
	assert.NoError(t, f.orch.Shutdown(ctx))
}

func TestRegistry_ReserveBlocksConcurrentInit(t *testing.T) {
	r := newRegistry()

	release, err := r.reserve("/srv/notes")
	require.NoError(t, err)

	_, err = r.reserve("/srv/notes")
	assert.True(t, apperrors.IsDuplicateProject(err))

	release()
	release2, err := r.reserve("/srv/notes")
	require.NoError(t, err)
	release2()
}

func TestUnion(t *testing.T) {
	assert.Equal(t, []string{"a", "b", "c"}, union([]string{"c", "a"}, []string{"b", "a"}))
	assert.Empty(t, union(nil, nil))
}

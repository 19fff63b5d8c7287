package api

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	apperrors "github.com/Kamar-Folarin/repo-autosync/internal/errors"
	"github.com/Kamar-Folarin/repo-autosync/internal/eventbus"
	"github.com/Kamar-Folarin/repo-autosync/internal/gateway"
	"github.com/Kamar-Folarin/repo-autosync/internal/models"
	"github.com/Kamar-Folarin/repo-autosync/internal/orchestrator"
)

// Test constants
const (
	testToken     = "ghp_abcdefghijklmnop"
	testPath      = "/home/me/notes"
	testRemoteURL = "https://github.com/octocat/notes.git"
)

// MockService is a mock implementation of orchestrator.Service
type MockService struct {
	mock.Mock
}

func (m *MockService) AutoInit(ctx context.Context, req orchestrator.InitRequest) (*models.Project, error) {
	args := m.Called(ctx, req)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.Project), args.Error(1)
}

func (m *MockService) Register(ctx context.Context, req orchestrator.RegisterRequest) (*models.Project, error) {
	args := m.Called(ctx, req)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.Project), args.Error(1)
}

func (m *MockService) ListProjects(ctx context.Context) ([]*models.Project, error) {
	args := m.Called(ctx)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*models.Project), args.Error(1)
}

func (m *MockService) GetProject(ctx context.Context, id int64) (*models.Project, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.Project), args.Error(1)
}

func (m *MockService) GetConfig(ctx context.Context, id int64) (*models.SyncConfig, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.SyncConfig), args.Error(1)
}

func (m *MockService) UpdateConfig(ctx context.Context, id int64, cfg models.SyncConfig) (*models.Project, error) {
	args := m.Called(ctx, id, cfg)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.Project), args.Error(1)
}

func (m *MockService) Scan(ctx context.Context, id int64) (*models.RiskReport, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.RiskReport), args.Error(1)
}

func (m *MockService) Ignore(ctx context.Context, id int64, patterns []string) ([]string, error) {
	args := m.Called(ctx, id, patterns)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]string), args.Error(1)
}

func (m *MockService) GetIgnoreFile(ctx context.Context, id int64) (string, error) {
	args := m.Called(ctx, id)
	return args.String(0), args.Error(1)
}

func (m *MockService) PutIgnoreFile(ctx context.Context, id int64, content string) error {
	args := m.Called(ctx, id, content)
	return args.Error(0)
}

func (m *MockService) Push(ctx context.Context, id int64) (*orchestrator.SyncResult, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*orchestrator.SyncResult), args.Error(1)
}

func (m *MockService) Retry(ctx context.Context, id int64) (*models.Project, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.Project), args.Error(1)
}

func (m *MockService) SyncVisibility(ctx context.Context, id int64) (*models.Project, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.Project), args.Error(1)
}

func (m *MockService) Delete(ctx context.Context, id int64, deleteRemote bool, credential string) error {
	args := m.Called(ctx, id, deleteRemote, credential)
	return args.Error(0)
}

func (m *MockService) Settings(ctx context.Context) (*models.SettingsView, error) {
	args := m.Called(ctx)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.SettingsView), args.Error(1)
}

func (m *MockService) SetGlobalToken(ctx context.Context, token string) (*models.SettingsView, error) {
	args := m.Called(ctx, token)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.SettingsView), args.Error(1)
}

func (m *MockService) ClearGlobalToken(ctx context.Context) error {
	args := m.Called(ctx)
	return args.Error(0)
}

func testLogger() *logrus.Logger {
	logger := logrus.New()
	logger.SetOutput(io.Discard)
	return logger
}

func setupTestHandler(t *testing.T, opts ...HandlerOption) (*Handler, *MockService, *eventbus.Bus) {
	t.Helper()
	gin.SetMode(gin.TestMode)
	service := new(MockService)
	logger := testLogger()
	bus := eventbus.New(logger, eventbus.DefaultCapacity)
	t.Cleanup(bus.Close)
	return NewHandler(service, bus, logger, opts...), service, bus
}

func testProject(id int64) *models.Project {
	return &models.Project{
		BaseModel: models.BaseModel{ID: id},
		Name:      "notes",
		LocalPath: testPath,
		RemoteURL: testRemoteURL,
		Branch:    "main",
		Status:    models.StatusWatching,
		Config:    models.DefaultSyncConfig(),
	}
}

func doRequest(router http.Handler, method, path string, body interface{}, headers ...string) *httptest.ResponseRecorder {
	var reader io.Reader
	if body != nil {
		data, _ := json.Marshal(body)
		reader = bytes.NewReader(data)
	}
	req, _ := http.NewRequest(method, path, reader)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	for i := 0; i+1 < len(headers); i += 2 {
		req.Header.Set(headers[i], headers[i+1])
	}
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	return w
}

func decodeError(t *testing.T, w *httptest.ResponseRecorder) ErrorResponse {
	t.Helper()
	var resp ErrorResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	return resp
}

func TestListProjects(t *testing.T) {
	handler, service, _ := setupTestHandler(t)
	router := SetupRouter(handler)

	expected := []*models.Project{testProject(1), testProject(2)}
	service.On("ListProjects", mock.Anything).Return(expected, nil)

	w := doRequest(router, http.MethodGet, "/api/v1/projects", nil)

	assert.Equal(t, http.StatusOK, w.Code)
	var response []*models.Project
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &response))
	require.Len(t, response, 2)
	assert.Equal(t, int64(2), response[1].ID)
	assert.Equal(t, testPath, response[0].LocalPath)
	service.AssertExpectations(t)
}

func TestGetProject(t *testing.T) {
	tests := []struct {
		name           string
		path           string
		mockError      error
		expectedStatus int
		expectedCode   string
	}{
		{
			name:           "existing project",
			path:           "/api/v1/projects/7",
			expectedStatus: http.StatusOK,
		},
		{
			name:           "unknown project",
			path:           "/api/v1/projects/7",
			mockError:      apperrors.NewResourceNotFoundError("project", "7"),
			expectedStatus: http.StatusNotFound,
			expectedCode:   "NOT_FOUND",
		},
		{
			name:           "invalid id",
			path:           "/api/v1/projects/abc",
			expectedStatus: http.StatusBadRequest,
			expectedCode:   "INVALID_INPUT",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			handler, service, _ := setupTestHandler(t)
			router := SetupRouter(handler)
			if tt.mockError != nil {
				service.On("GetProject", mock.Anything, int64(7)).Return(nil, tt.mockError)
			} else {
				service.On("GetProject", mock.Anything, int64(7)).Return(testProject(7), nil)
			}

			w := doRequest(router, http.MethodGet, tt.path, nil)

			assert.Equal(t, tt.expectedStatus, w.Code)
			if tt.expectedCode != "" {
				assert.Equal(t, tt.expectedCode, decodeError(t, w).Code)
			}
		})
	}
}

func TestRegisterProject(t *testing.T) {
	t.Run("registers repository", func(t *testing.T) {
		handler, service, _ := setupTestHandler(t)
		router := SetupRouter(handler)
		service.On("Register", mock.Anything, orchestrator.RegisterRequest{Path: testPath, Name: "notes"}).
			Return(testProject(1), nil)

		w := doRequest(router, http.MethodPost, "/api/v1/projects/register", RegisterRequest{Path: testPath, Name: "notes"})

		assert.Equal(t, http.StatusCreated, w.Code)
		service.AssertExpectations(t)
	})

	t.Run("keeps the header token with the project", func(t *testing.T) {
		handler, service, _ := setupTestHandler(t)
		router := SetupRouter(handler)
		project := testProject(1)
		project.Credential = testToken
		service.On("Register", mock.Anything, orchestrator.RegisterRequest{Path: testPath, Credential: testToken}).
			Return(project.Clone(), nil)

		w := doRequest(router, http.MethodPost, "/api/v1/projects/register", RegisterRequest{Path: testPath}, tokenHeader, testToken)

		assert.Equal(t, http.StatusCreated, w.Code)
		assert.NotContains(t, w.Body.String(), testToken)
		assert.Contains(t, w.Body.String(), `"credential_preview":"ghp_...mnop"`)
		service.AssertExpectations(t)
	})

	t.Run("missing path", func(t *testing.T) {
		handler, service, _ := setupTestHandler(t)
		router := SetupRouter(handler)

		w := doRequest(router, http.MethodPost, "/api/v1/projects/register", RegisterRequest{Name: "notes"})

		assert.Equal(t, http.StatusBadRequest, w.Code)
		assert.Equal(t, ErrorResponse{Error: "invalid request body", Code: "INVALID_INPUT"}, decodeError(t, w))
		service.AssertNotCalled(t, "Register", mock.Anything, mock.Anything)
	})

	t.Run("path without origin", func(t *testing.T) {
		handler, service, _ := setupTestHandler(t)
		router := SetupRouter(handler)
		service.On("Register", mock.Anything, mock.Anything).
			Return(nil, apperrors.NewPathUnusableError(testPath, fmt.Errorf("no origin remote")))

		w := doRequest(router, http.MethodPost, "/api/v1/projects/register", RegisterRequest{Path: testPath})

		assert.Equal(t, http.StatusUnprocessableEntity, w.Code)
		assert.Equal(t, "PATH_UNUSABLE", decodeError(t, w).Code)
	})
}

func TestAutoInitProject(t *testing.T) {
	t.Run("defaults to private and reads header token", func(t *testing.T) {
		handler, service, _ := setupTestHandler(t)
		router := SetupRouter(handler)
		expected := orchestrator.InitRequest{
			Path:       testPath,
			Name:       "notes",
			Credential: testToken,
			Private:    true,
		}
		service.On("AutoInit", mock.Anything, expected).Return(testProject(1), nil)

		w := doRequest(router, http.MethodPost, "/api/v1/projects/auto-init",
			AutoInitRequest{Path: testPath, Name: "notes"}, tokenHeader, testToken)

		assert.Equal(t, http.StatusCreated, w.Code)
		service.AssertExpectations(t)
	})

	t.Run("body token and public visibility", func(t *testing.T) {
		handler, service, _ := setupTestHandler(t)
		router := SetupRouter(handler)
		public := false
		service.On("AutoInit", mock.Anything, mock.MatchedBy(func(req orchestrator.InitRequest) bool {
			return req.Credential == "body-token" && !req.Private && req.IgnoreContent == "*.log\n"
		})).Return(testProject(1), nil)

		w := doRequest(router, http.MethodPost, "/api/v1/projects/auto-init", AutoInitRequest{
			Path:        testPath,
			GitHubToken: "body-token",
			Private:     &public,
			Gitignore:   "*.log\n",
		}, tokenHeader, testToken)

		assert.Equal(t, http.StatusCreated, w.Code)
		service.AssertExpectations(t)
	})

	t.Run("error mapping", func(t *testing.T) {
		tests := []struct {
			err    error
			status int
			code   string
		}{
			{apperrors.NewCredentialMissingError("a GitHub token is required"), http.StatusBadRequest, "CREDENTIAL_MISSING"},
			{apperrors.NewCredentialInvalidError("token rejected", nil), http.StatusUnauthorized, "CREDENTIAL_INVALID"},
			{apperrors.NewDuplicateProjectError(testPath), http.StatusConflict, "DUPLICATE_PROJECT"},
			{apperrors.NewRemoteUnreachableError("dial failed", nil), http.StatusBadGateway, "REMOTE_UNREACHABLE"},
			{apperrors.NewRemoteRejectedError("permission denied", nil), http.StatusBadGateway, "REMOTE_REJECTED"},
			{apperrors.NewPushConflictError("remote has diverged", nil), http.StatusConflict, "PUSH_CONFLICT"},
			{fmt.Errorf("disk full"), http.StatusInternalServerError, "INTERNAL"},
		}
		for _, tt := range tests {
			t.Run(tt.code, func(t *testing.T) {
				handler, service, _ := setupTestHandler(t)
				router := SetupRouter(handler)
				service.On("AutoInit", mock.Anything, mock.Anything).Return(nil, tt.err)

				w := doRequest(router, http.MethodPost, "/api/v1/projects/auto-init", AutoInitRequest{Path: testPath})

				assert.Equal(t, tt.status, w.Code)
				assert.Equal(t, tt.code, decodeError(t, w).Code)
			})
		}
	})

	t.Run("rate limit", func(t *testing.T) {
		handler, service, _ := setupTestHandler(t)
		router := SetupRouter(handler)
		service.On("AutoInit", mock.Anything, mock.Anything).
			Return(nil, fmt.Errorf("create repository: %w", apperrors.New(apperrors.ErrRateLimit, "rate limited", nil)))

		w := doRequest(router, http.MethodPost, "/api/v1/projects/auto-init", AutoInitRequest{Path: testPath})

		assert.Equal(t, http.StatusTooManyRequests, w.Code)
		assert.Equal(t, ErrorResponse{Error: "rate limited", Code: "RATE_LIMIT"}, decodeError(t, w))
	})
}

func TestConfig(t *testing.T) {
	t.Run("get", func(t *testing.T) {
		handler, service, _ := setupTestHandler(t)
		router := SetupRouter(handler)
		cfg := models.DefaultSyncConfig()
		service.On("GetConfig", mock.Anything, int64(3)).Return(&cfg, nil)

		w := doRequest(router, http.MethodGet, "/api/v1/projects/3/config", nil)

		assert.Equal(t, http.StatusOK, w.Code)
		var response models.SyncConfig
		require.NoError(t, json.Unmarshal(w.Body.Bytes(), &response))
		assert.Equal(t, cfg.DefaultCommitPrefix, response.DefaultCommitPrefix)
		assert.Equal(t, cfg.SyncMode, response.SyncMode)
	})

	t.Run("update", func(t *testing.T) {
		handler, service, _ := setupTestHandler(t)
		router := SetupRouter(handler)
		cfg := models.DefaultSyncConfig()
		cfg.SyncMode = models.SyncModeInterval
		cfg.SyncInterval = 15
		service.On("UpdateConfig", mock.Anything, int64(3), mock.MatchedBy(func(c models.SyncConfig) bool {
			return c.SyncMode == models.SyncModeInterval && c.SyncInterval == 15
		})).Return(testProject(3), nil)

		w := doRequest(router, http.MethodPut, "/api/v1/projects/3/config", cfg)

		assert.Equal(t, http.StatusOK, w.Code)
		service.AssertExpectations(t)
	})

	t.Run("invalid config", func(t *testing.T) {
		handler, service, _ := setupTestHandler(t)
		router := SetupRouter(handler)
		service.On("UpdateConfig", mock.Anything, int64(3), mock.Anything).
			Return(nil, apperrors.NewValidationError("sync_time must be HH:MM", nil))

		w := doRequest(router, http.MethodPut, "/api/v1/projects/3/config", models.DefaultSyncConfig())

		assert.Equal(t, http.StatusBadRequest, w.Code)
		assert.Equal(t, "sync_time must be HH:MM", decodeError(t, w).Error)
	})
}

func TestScanAndIgnore(t *testing.T) {
	handler, service, _ := setupTestHandler(t)
	router := SetupRouter(handler)

	report := &models.RiskReport{
		ProjectID:    4,
		ScannedFiles: 2,
		Items: []models.RiskItem{
			{Path: "video.mp4", Reason: models.RiskBlockedExtension, Size: 2048, SizeDisplay: "2.00 KB"},
		},
	}
	service.On("Scan", mock.Anything, int64(4)).Return(report, nil)
	service.On("Ignore", mock.Anything, int64(4), []string{"video.mp4"}).Return([]string{"video.mp4"}, nil)
	service.On("Ignore", mock.Anything, int64(4), []string{"again.mp4"}).Return(nil, nil)

	w := doRequest(router, http.MethodPost, "/api/v1/projects/4/scan", nil)
	assert.Equal(t, http.StatusOK, w.Code)
	var scanned models.RiskReport
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &scanned))
	assert.Equal(t, []string{"video.mp4"}, scanned.Paths())

	w = doRequest(router, http.MethodPost, "/api/v1/projects/4/ignore", IgnoreRequest{Files: []string{"video.mp4"}})
	assert.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"added":["video.mp4"]}`, w.Body.String())

	w = doRequest(router, http.MethodPost, "/api/v1/projects/4/ignore", IgnoreRequest{Files: []string{"again.mp4"}})
	assert.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"added":[]}`, w.Body.String())

	w = doRequest(router, http.MethodPost, "/api/v1/projects/4/ignore", map[string]string{})
	assert.Equal(t, http.StatusBadRequest, w.Code)

	service.AssertExpectations(t)
}

func TestGitignore(t *testing.T) {
	handler, service, _ := setupTestHandler(t)
	router := SetupRouter(handler)
	service.On("GetIgnoreFile", mock.Anything, int64(5)).Return("node_modules/\n", nil)
	service.On("PutIgnoreFile", mock.Anything, int64(5), "*.log\n").Return(nil)

	w := doRequest(router, http.MethodGet, "/api/v1/projects/5/gitignore", nil)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"content":"node_modules/\n"}`, w.Body.String())

	w = doRequest(router, http.MethodPut, "/api/v1/projects/5/gitignore", GitignoreContent{Content: "*.log\n"})
	assert.Equal(t, http.StatusOK, w.Code)
	service.AssertExpectations(t)
}

func TestPushProject(t *testing.T) {
	t.Run("pushed", func(t *testing.T) {
		handler, service, _ := setupTestHandler(t)
		router := SetupRouter(handler)
		service.On("Push", mock.Anything, int64(6)).Return(&orchestrator.SyncResult{
			Outcome: orchestrator.SyncPushed,
			Message: "backup: Manual backup",
			Files:   1,
			Commit:  "abc123",
			Push:    gateway.OutcomePushed,
		}, nil)

		w := doRequest(router, http.MethodPost, "/api/v1/projects/6/push", nil)

		assert.Equal(t, http.StatusOK, w.Code)
		var result orchestrator.SyncResult
		require.NoError(t, json.Unmarshal(w.Body.Bytes(), &result))
		assert.Equal(t, orchestrator.SyncPushed, result.Outcome)
		assert.Equal(t, "abc123", result.Commit)
	})

	t.Run("remote rejected", func(t *testing.T) {
		handler, service, _ := setupTestHandler(t)
		router := SetupRouter(handler)
		service.On("Push", mock.Anything, int64(6)).
			Return(nil, apperrors.NewRemoteRejectedError("repository not found", nil).WithOp("push"))

		w := doRequest(router, http.MethodPost, "/api/v1/projects/6/push", nil)

		assert.Equal(t, http.StatusBadGateway, w.Code)
		assert.Equal(t, ErrorResponse{Error: "repository not found", Code: "REMOTE_REJECTED"}, decodeError(t, w))
	})
}

func TestRetryAndVisibility(t *testing.T) {
	handler, service, _ := setupTestHandler(t)
	router := SetupRouter(handler)
	service.On("Retry", mock.Anything, int64(8)).
		Return(nil, apperrors.NewValidationError("project is not in error state", nil))
	service.On("SyncVisibility", mock.Anything, int64(8)).Return(testProject(8), nil)

	w := doRequest(router, http.MethodPost, "/api/v1/projects/8/retry", nil)
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, "project is not in error state", decodeError(t, w).Error)

	w = doRequest(router, http.MethodPost, "/api/v1/projects/8/sync-visibility", nil)
	assert.Equal(t, http.StatusOK, w.Code)
	service.AssertExpectations(t)
}

func TestDeleteProject(t *testing.T) {
	tests := []struct {
		name           string
		path           string
		headers        []string
		body           interface{}
		deleteRemote   bool
		credential     string
		expectCall     bool
		expectedStatus int
	}{
		{
			name:           "local only",
			path:           "/api/v1/projects/9",
			expectCall:     true,
			expectedStatus: http.StatusNoContent,
		},
		{
			name:           "remote with header token",
			path:           "/api/v1/projects/9?delete_remote=true",
			headers:        []string{tokenHeader, testToken},
			deleteRemote:   true,
			credential:     testToken,
			expectCall:     true,
			expectedStatus: http.StatusNoContent,
		},
		{
			name:           "remote with body token",
			path:           "/api/v1/projects/9?delete_remote=1",
			body:           DeleteRequest{GitHubToken: "body-token"},
			deleteRemote:   true,
			credential:     "body-token",
			expectCall:     true,
			expectedStatus: http.StatusNoContent,
		},
		{
			name:           "invalid flag",
			path:           "/api/v1/projects/9?delete_remote=maybe",
			expectedStatus: http.StatusBadRequest,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			handler, service, _ := setupTestHandler(t)
			router := SetupRouter(handler)
			if tt.expectCall {
				service.On("Delete", mock.Anything, int64(9), tt.deleteRemote, tt.credential).Return(nil)
			}

			w := doRequest(router, http.MethodDelete, tt.path, tt.body, tt.headers...)

			assert.Equal(t, tt.expectedStatus, w.Code)
			service.AssertExpectations(t)
			if !tt.expectCall {
				service.AssertNotCalled(t, "Delete", mock.Anything, mock.Anything, mock.Anything, mock.Anything)
			}
		})
	}

	t.Run("missing credential", func(t *testing.T) {
		handler, service, _ := setupTestHandler(t)
		router := SetupRouter(handler)
		service.On("Delete", mock.Anything, int64(9), true, "").
			Return(apperrors.NewCredentialMissingError("a GitHub token is required to delete the remote repository"))

		w := doRequest(router, http.MethodDelete, "/api/v1/projects/9?delete_remote=true", nil)

		assert.Equal(t, http.StatusBadRequest, w.Code)
		assert.Equal(t, "CREDENTIAL_MISSING", decodeError(t, w).Code)
	})
}

func TestSettings(t *testing.T) {
	handler, service, _ := setupTestHandler(t)
	router := SetupRouter(handler)
	masked := &models.SettingsView{HasGitHubToken: true, GitHubTokenPreview: models.MaskToken(testToken)}
	service.On("Settings", mock.Anything).Return(&models.SettingsView{}, nil)
	service.On("SetGlobalToken", mock.Anything, testToken).Return(masked, nil)
	service.On("ClearGlobalToken", mock.Anything).Return(nil)

	w := doRequest(router, http.MethodGet, "/api/v1/settings", nil)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `"has_github_token":false`)

	w = doRequest(router, http.MethodPut, "/api/v1/settings/github-token", TokenRequest{Token: testToken})
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "ghp_...mnop")
	assert.NotContains(t, w.Body.String(), testToken)

	w = doRequest(router, http.MethodPut, "/api/v1/settings/github-token", map[string]string{})
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = doRequest(router, http.MethodDelete, "/api/v1/settings/github-token", nil)
	assert.Equal(t, http.StatusNoContent, w.Code)
	service.AssertExpectations(t)
}

func TestGetLogs(t *testing.T) {
	handler, _, bus := setupTestHandler(t)
	router := SetupRouter(handler)
	bus.Emit(1, models.LevelInfo, models.EventSyncStart, "Sync started", nil)
	bus.Emit(2, models.LevelInfo, models.EventSyncStart, "Sync started", nil)
	bus.Emit(0, models.LevelInfo, models.EventConfigUpdated, "Settings updated", nil)

	w := doRequest(router, http.MethodGet, "/api/v1/logs", nil)
	require.Equal(t, http.StatusOK, w.Code)
	var all LogListResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &all))
	assert.Len(t, all.Data, 3)

	w = doRequest(router, http.MethodGet, "/api/v1/logs?project_id=2", nil)
	require.Equal(t, http.StatusOK, w.Code)
	var filtered LogListResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &filtered))
	require.Len(t, filtered.Data, 1)
	assert.True(t, filtered.Data[0].ForProject(2))

	w = doRequest(router, http.MethodGet, "/api/v1/logs?project_id=x", nil)
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestHealth(t *testing.T) {
	t.Run("healthy", func(t *testing.T) {
		handler, _, _ := setupTestHandler(t, WithHealthCheck(func(ctx context.Context) (map[models.LifecycleStatus]int, error) {
			return map[models.LifecycleStatus]int{models.StatusWatching: 2}, nil
		}))
		router := SetupRouter(handler)

		w := doRequest(router, http.MethodGet, "/api/v1/health", nil)

		assert.Equal(t, http.StatusOK, w.Code)
		var resp HealthResponse
		require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
		assert.Equal(t, "ok", resp.Status)
		assert.Equal(t, 2, resp.Projects["watching"])
	})

	t.Run("store down", func(t *testing.T) {
		handler, _, _ := setupTestHandler(t, WithHealthCheck(func(ctx context.Context) (map[models.LifecycleStatus]int, error) {
			return nil, fmt.Errorf("connection refused")
		}))
		router := SetupRouter(handler)

		w := doRequest(router, http.MethodGet, "/api/v1/health", nil)

		assert.Equal(t, http.StatusServiceUnavailable, w.Code)
	})
}

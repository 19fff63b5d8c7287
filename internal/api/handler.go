package api

import (
	"context"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"

	"github.com/Kamar-Folarin/repo-autosync/internal/errors"
	"github.com/Kamar-Folarin/repo-autosync/internal/eventbus"
	"github.com/Kamar-Folarin/repo-autosync/internal/models"
	"github.com/Kamar-Folarin/repo-autosync/internal/orchestrator"
)

// tokenHeader carries a per-request GitHub token
const tokenHeader = "X-GitHub-Token"

// HealthFunc reports per-status project counts and backing store health
type HealthFunc func(ctx context.Context) (map[models.LifecycleStatus]int, error)

// Handler serves the REST and websocket API over an orchestrator.Service
type Handler struct {
	service orchestrator.Service
	bus     *eventbus.Bus
	health  HealthFunc
	logger  *logrus.Logger
}

// HandlerOption configures a Handler
type HandlerOption func(*Handler)

// WithHealthCheck sets the check behind the health endpoint
func WithHealthCheck(fn HealthFunc) HandlerOption {
	return func(h *Handler) {
		h.health = fn
	}
}

// NewHandler creates a Handler; streams read from bus
func NewHandler(service orchestrator.Service, bus *eventbus.Bus, logger *logrus.Logger, opts ...HandlerOption) *Handler {
	h := &Handler{
		service: service,
		bus:     bus,
		logger:  logger,
	}
	for _, opt := range opts {
		opt(h)
	}
	return h
}

// ListProjects godoc
// @Summary List projects
// @Description Get every managed project with its status and config
// @Tags projects
// @Produce json
// @Success 200 {array} models.Project
// @Failure 500 {object} ErrorResponse
// @Router /projects [get]
func (h *Handler) ListProjects(c *gin.Context) {
	projects, err := h.service.ListProjects(c.Request.Context())
	if err != nil {
		h.handleError(c, "list_projects", err)
		return
	}
	c.JSON(http.StatusOK, projects)
}

// GetProject godoc
// @Summary Get project
// @Tags projects
// @Produce json
// @Param id path int true "Project ID"
// @Success 200 {object} models.Project
// @Failure 404 {object} ErrorResponse
// @Router /projects/{id} [get]
func (h *Handler) GetProject(c *gin.Context) {
	id, ok := h.projectID(c)
	if !ok {
		return
	}
	project, err := h.service.GetProject(c.Request.Context(), id)
	if err != nil {
		h.handleError(c, "get_project", err)
		return
	}
	c.JSON(http.StatusOK, project)
}

// RegisterProject godoc
// @Summary Register an existing repository
// @Description Start monitoring a repository that already has an origin remote
// @Tags projects
// @Accept json
// @Produce json
// @Param X-GitHub-Token header string false "GitHub token this project pushes with"
// @Param request body RegisterRequest true "Repository to register"
// @Success 201 {object} models.Project
// @Failure 400 {object} ErrorResponse
// @Failure 422 {object} ErrorResponse
// @Router /projects/register [post]
func (h *Handler) RegisterProject(c *gin.Context) {
	var req RegisterRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondError(c, http.StatusBadRequest, "invalid request body", errors.ErrInvalidInput)
		return
	}
	credential := req.GitHubToken
	if credential == "" {
		credential = c.GetHeader(tokenHeader)
	}
	project, err := h.service.Register(c.Request.Context(), orchestrator.RegisterRequest{
		Path:       req.Path,
		Name:       req.Name,
		Credential: credential,
	})
	if err != nil {
		h.handleError(c, "register_project", err)
		return
	}
	c.JSON(http.StatusCreated, project)
}

// AutoInitProject godoc
// @Summary Auto-initialize a folder
// @Description Create the local repository and the hosted remote, push the first commit and start watching
// @Tags projects
// @Accept json
// @Produce json
// @Param X-GitHub-Token header string false "GitHub token overriding the saved one"
// @Param request body AutoInitRequest true "Folder to initialize"
// @Success 201 {object} models.Project
// @Failure 400 {object} ErrorResponse
// @Failure 401 {object} ErrorResponse
// @Failure 409 {object} ErrorResponse
// @Failure 502 {object} ErrorResponse
// @Router /projects/auto-init [post]
func (h *Handler) AutoInitProject(c *gin.Context) {
	var req AutoInitRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondError(c, http.StatusBadRequest, "invalid request body", errors.ErrInvalidInput)
		return
	}
	private := true
	if req.Private != nil {
		private = *req.Private
	}
	credential := req.GitHubToken
	if credential == "" {
		credential = c.GetHeader(tokenHeader)
	}

	project, err := h.service.AutoInit(c.Request.Context(), orchestrator.InitRequest{
		Path:          req.Path,
		Name:          req.Name,
		Description:   req.Description,
		Credential:    credential,
		Private:       private,
		IgnoreContent: req.Gitignore,
	})
	if err != nil {
		h.handleError(c, "auto_init", err)
		return
	}
	c.JSON(http.StatusCreated, project)
}

// GetConfig godoc
// @Summary Get project config
// @Tags config
// @Produce json
// @Param id path int true "Project ID"
// @Success 200 {object} models.SyncConfig
// @Failure 404 {object} ErrorResponse
// @Router /projects/{id}/config [get]
func (h *Handler) GetConfig(c *gin.Context) {
	id, ok := h.projectID(c)
	if !ok {
		return
	}
	cfg, err := h.service.GetConfig(c.Request.Context(), id)
	if err != nil {
		h.handleError(c, "get_config", err)
		return
	}
	c.JSON(http.StatusOK, cfg)
}

// UpdateConfig godoc
// @Summary Replace project config
// @Description Replace the whole sync config. Schedule changes take effect immediately.
// @Tags config
// @Accept json
// @Produce json
// @Param id path int true "Project ID"
// @Param config body models.SyncConfig true "Sync configuration"
// @Success 200 {object} models.Project
// @Failure 400 {object} ErrorResponse
// @Failure 404 {object} ErrorResponse
// @Router /projects/{id}/config [put]
func (h *Handler) UpdateConfig(c *gin.Context) {
	id, ok := h.projectID(c)
	if !ok {
		return
	}
	var cfg models.SyncConfig
	if err := c.ShouldBindJSON(&cfg); err != nil {
		respondError(c, http.StatusBadRequest, "invalid config body", errors.ErrInvalidInput)
		return
	}
	project, err := h.service.UpdateConfig(c.Request.Context(), id, cfg)
	if err != nil {
		h.handleError(c, "update_config", err)
		return
	}
	c.JSON(http.StatusOK, project)
}

// ScanProject godoc
// @Summary Scan pending changes
// @Description Screen everything the next sync would commit without syncing
// @Tags sync
// @Produce json
// @Param id path int true "Project ID"
// @Success 200 {object} models.RiskReport
// @Failure 404 {object} ErrorResponse
// @Router /projects/{id}/scan [post]
func (h *Handler) ScanProject(c *gin.Context) {
	id, ok := h.projectID(c)
	if !ok {
		return
	}
	report, err := h.service.Scan(c.Request.Context(), id)
	if err != nil {
		h.handleError(c, "scan", err)
		return
	}
	c.JSON(http.StatusOK, report)
}

// IgnoreFiles godoc
// @Summary Ignore files permanently
// @Tags sync
// @Accept json
// @Produce json
// @Param id path int true "Project ID"
// @Param request body IgnoreRequest true "Files or patterns"
// @Success 200 {object} IgnoreResponse
// @Failure 400 {object} ErrorResponse
// @Router /projects/{id}/ignore [post]
func (h *Handler) IgnoreFiles(c *gin.Context) {
	id, ok := h.projectID(c)
	if !ok {
		return
	}
	var req IgnoreRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondError(c, http.StatusBadRequest, "invalid request body", errors.ErrInvalidInput)
		return
	}
	added, err := h.service.Ignore(c.Request.Context(), id, req.Files)
	if err != nil {
		h.handleError(c, "ignore", err)
		return
	}
	if added == nil {
		added = []string{}
	}
	c.JSON(http.StatusOK, IgnoreResponse{Added: added})
}

// GetGitignore godoc
// @Summary Read the ignore file
// @Tags sync
// @Produce json
// @Param id path int true "Project ID"
// @Success 200 {object} GitignoreContent
// @Router /projects/{id}/gitignore [get]
func (h *Handler) GetGitignore(c *gin.Context) {
	id, ok := h.projectID(c)
	if !ok {
		return
	}
	content, err := h.service.GetIgnoreFile(c.Request.Context(), id)
	if err != nil {
		h.handleError(c, "get_gitignore", err)
		return
	}
	c.JSON(http.StatusOK, GitignoreContent{Content: content})
}

// PutGitignore godoc
// @Summary Replace the ignore file
// @Tags sync
// @Accept json
// @Produce json
// @Param id path int true "Project ID"
// @Param request body GitignoreContent true "New content"
// @Success 200 {object} GitignoreContent
// @Router /projects/{id}/gitignore [put]
func (h *Handler) PutGitignore(c *gin.Context) {
	id, ok := h.projectID(c)
	if !ok {
		return
	}
	var req GitignoreContent
	if err := c.ShouldBindJSON(&req); err != nil {
		respondError(c, http.StatusBadRequest, "invalid request body", errors.ErrInvalidInput)
		return
	}
	if err := h.service.PutIgnoreFile(c.Request.Context(), id, req.Content); err != nil {
		h.handleError(c, "put_gitignore", err)
		return
	}
	c.JSON(http.StatusOK, req)
}

// PushProject godoc
// @Summary Sync now
// @Description Scan, commit and push pending changes. Risky files halt the push and are returned in the report.
// @Tags sync
// @Produce json
// @Param id path int true "Project ID"
// @Success 200 {object} orchestrator.SyncResult
// @Failure 404 {object} ErrorResponse
// @Failure 502 {object} ErrorResponse
// @Router /projects/{id}/push [post]
func (h *Handler) PushProject(c *gin.Context) {
	id, ok := h.projectID(c)
	if !ok {
		return
	}
	result, err := h.service.Push(c.Request.Context(), id)
	if err != nil {
		h.handleError(c, "push", err)
		return
	}
	c.JSON(http.StatusOK, result)
}

// RetryProject godoc
// @Summary Leave the error state
// @Tags sync
// @Produce json
// @Param id path int true "Project ID"
// @Success 200 {object} models.Project
// @Failure 400 {object} ErrorResponse
// @Router /projects/{id}/retry [post]
func (h *Handler) RetryProject(c *gin.Context) {
	id, ok := h.projectID(c)
	if !ok {
		return
	}
	project, err := h.service.Retry(c.Request.Context(), id)
	if err != nil {
		h.handleError(c, "retry", err)
		return
	}
	c.JSON(http.StatusOK, project)
}

// SyncVisibility godoc
// @Summary Read visibility from GitHub
// @Tags config
// @Produce json
// @Param id path int true "Project ID"
// @Success 200 {object} models.Project
// @Failure 400 {object} ErrorResponse
// @Router /projects/{id}/sync-visibility [post]
func (h *Handler) SyncVisibility(c *gin.Context) {
	id, ok := h.projectID(c)
	if !ok {
		return
	}
	project, err := h.service.SyncVisibility(c.Request.Context(), id)
	if err != nil {
		h.handleError(c, "sync_visibility", err)
		return
	}
	c.JSON(http.StatusOK, project)
}

// DeleteProject godoc
// @Summary Delete project
// @Description Stop watching and remove the project. The local folder is kept.
// @Tags projects
// @Accept json
// @Param id path int true "Project ID"
// @Param delete_remote query bool false "Also delete the hosted repository"
// @Param X-GitHub-Token header string false "Token for deleting the hosted repository"
// @Param request body DeleteRequest false "Token for deleting the hosted repository"
// @Success 204 "No Content"
// @Failure 400 {object} ErrorResponse
// @Failure 404 {object} ErrorResponse
// @Router /projects/{id} [delete]
func (h *Handler) DeleteProject(c *gin.Context) {
	id, ok := h.projectID(c)
	if !ok {
		return
	}
	deleteRemote := false
	if raw := c.Query("delete_remote"); raw != "" {
		v, err := strconv.ParseBool(raw)
		if err != nil {
			respondError(c, http.StatusBadRequest, "invalid delete_remote parameter", errors.ErrInvalidInput)
			return
		}
		deleteRemote = v
	}

	credential := c.GetHeader(tokenHeader)
	if credential == "" && c.Request.ContentLength > 0 {
		var req DeleteRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			respondError(c, http.StatusBadRequest, "invalid request body", errors.ErrInvalidInput)
			return
		}
		credential = req.GitHubToken
	}

	if err := h.service.Delete(c.Request.Context(), id, deleteRemote, credential); err != nil {
		h.handleError(c, "delete_project", err)
		return
	}
	c.Status(http.StatusNoContent)
}

// GetSettings godoc
// @Summary Get settings
// @Description The saved token is returned masked
// @Tags settings
// @Produce json
// @Success 200 {object} models.SettingsView
// @Router /settings [get]
func (h *Handler) GetSettings(c *gin.Context) {
	view, err := h.service.Settings(c.Request.Context())
	if err != nil {
		h.handleError(c, "get_settings", err)
		return
	}
	c.JSON(http.StatusOK, view)
}

// SetGitHubToken godoc
// @Summary Save the global GitHub token
// @Tags settings
// @Accept json
// @Produce json
// @Param request body TokenRequest true "Token"
// @Success 200 {object} models.SettingsView
// @Failure 400 {object} ErrorResponse
// @Router /settings/github-token [put]
func (h *Handler) SetGitHubToken(c *gin.Context) {
	var req TokenRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondError(c, http.StatusBadRequest, "invalid request body", errors.ErrInvalidInput)
		return
	}
	view, err := h.service.SetGlobalToken(c.Request.Context(), req.Token)
	if err != nil {
		h.handleError(c, "set_github_token", err)
		return
	}
	c.JSON(http.StatusOK, view)
}

// ClearGitHubToken godoc
// @Summary Remove the global GitHub token
// @Tags settings
// @Success 204 "No Content"
// @Router /settings/github-token [delete]
func (h *Handler) ClearGitHubToken(c *gin.Context) {
	if err := h.service.ClearGlobalToken(c.Request.Context()); err != nil {
		h.handleError(c, "clear_github_token", err)
		return
	}
	c.Status(http.StatusNoContent)
}

// GetLogs godoc
// @Summary Event backlog
// @Description Retained events, oldest first, optionally for one project
// @Tags logs
// @Produce json
// @Param project_id query int false "Project ID"
// @Success 200 {object} LogListResponse
// @Failure 400 {object} ErrorResponse
// @Router /logs [get]
func (h *Handler) GetLogs(c *gin.Context) {
	var filter eventbus.Filter
	if raw := c.Query("project_id"); raw != "" {
		id, err := strconv.ParseInt(raw, 10, 64)
		if err != nil || id <= 0 {
			respondError(c, http.StatusBadRequest, "invalid project_id parameter", errors.ErrInvalidInput)
			return
		}
		filter = eventbus.ProjectFilter(id)
	}
	c.JSON(http.StatusOK, LogListResponse{
		Data:    h.bus.Backlog(filter),
		Dropped: h.bus.Dropped(),
	})
}

// Health godoc
// @Summary Liveness
// @Tags health
// @Produce json
// @Success 200 {object} HealthResponse
// @Failure 503 {object} HealthResponse
// @Router /health [get]
func (h *Handler) Health(c *gin.Context) {
	resp := HealthResponse{Status: "ok", Time: time.Now().UTC()}
	if h.health != nil {
		counts, err := h.health(c.Request.Context())
		if err != nil {
			h.logger.WithError(err).WithField("action", "health").Warn("Health check failed")
			resp.Status = "unavailable"
			c.JSON(http.StatusServiceUnavailable, resp)
			return
		}
		resp.Projects = make(map[string]int, len(counts))
		for status, n := range counts {
			resp.Projects[string(status)] = n
		}
	}
	c.JSON(http.StatusOK, resp)
}

func (h *Handler) projectID(c *gin.Context) (int64, bool) {
	id, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil || id <= 0 {
		respondError(c, http.StatusBadRequest, "invalid project ID", errors.ErrInvalidInput)
		return 0, false
	}
	return id, true
}

// handleError maps an error to its HTTP status and logs server-side failures
func (h *Handler) handleError(c *gin.Context, action string, err error) {
	status := statusFor(err)
	if status >= http.StatusInternalServerError {
		h.logger.WithFields(logrus.Fields{
			"action": action,
			"path":   c.FullPath(),
			"op":     errors.OpOf(err),
		}).WithError(err).Error("Request failed")
	}
	respondError(c, status, errors.MessageOf(err), errors.TypeOf(err))
}

func statusFor(err error) int {
	switch errors.TypeOf(err) {
	case errors.ErrInvalidInput, errors.ErrCredentialMissing:
		return http.StatusBadRequest
	case errors.ErrCredentialInvalid:
		return http.StatusUnauthorized
	case errors.ErrNotFound:
		return http.StatusNotFound
	case errors.ErrDuplicateProject, errors.ErrPushConflict:
		return http.StatusConflict
	case errors.ErrPathUnusable:
		return http.StatusUnprocessableEntity
	case errors.ErrRateLimit:
		return http.StatusTooManyRequests
	case errors.ErrRemoteUnreachable, errors.ErrRemoteRejected:
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}

func respondError(c *gin.Context, status int, message string, code errors.ErrorType) {
	c.AbortWithStatusJSON(status, ErrorResponse{Error: message, Code: string(code)})
}

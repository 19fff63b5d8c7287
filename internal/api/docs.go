package api

import (
	"time"

	_ "github.com/Kamar-Folarin/repo-autosync/docs"
	"github.com/Kamar-Folarin/repo-autosync/internal/models"
)

// AutoInitRequest asks for a folder to become a synchronized repository
// @Description Folder to initialize, push and watch
// @swagger:model AutoInitRequest
type AutoInitRequest struct {
	// Absolute path of the folder; created when missing
	// @example /home/me/notes
	Path string `json:"path" binding:"required" example:"/home/me/notes"`
	// Project and repository name; defaults to the folder name
	Name string `json:"name" example:"notes"`
	// Description of the hosted repository
	Description string `json:"description" example:"Personal notes"`
	// Token used instead of the saved global token
	GitHubToken string `json:"github_token,omitempty"`
	// Visibility of a newly created repository
	Private *bool `json:"private,omitempty" example:"true"`
	// Content of the ignore file; the default template when empty
	Gitignore string `json:"gitignore,omitempty"`
}

// RegisterRequest adds an existing repository for monitoring
// @Description Existing repository with an origin remote
// @swagger:model RegisterRequest
type RegisterRequest struct {
	// Absolute path of the repository
	Path string `json:"path" binding:"required" example:"/home/me/project"`
	// Display name; defaults to the folder name
	Name string `json:"name" example:"project"`
	// Token this project pushes with; the saved token is used when empty
	GitHubToken string `json:"github_token,omitempty"`
}

// IgnoreRequest lists files or patterns to ignore permanently
// @swagger:model IgnoreRequest
type IgnoreRequest struct {
	Files []string `json:"files" binding:"required" example:"video.mp4,build/"`
}

// IgnoreResponse lists the entries added to the ignore file
type IgnoreResponse struct {
	Added []string `json:"added"`
}

// GitignoreContent is the raw ignore file
// @swagger:model GitignoreContent
type GitignoreContent struct {
	Content string `json:"content"`
}

// TokenRequest sets the global GitHub token
// @swagger:model TokenRequest
type TokenRequest struct {
	Token string `json:"token" binding:"required"`
}

// DeleteRequest carries the credential for deleting a hosted repository
// @swagger:model DeleteRequest
type DeleteRequest struct {
	GitHubToken string `json:"github_token,omitempty"`
}

// LogListResponse is a snapshot of the event backlog
// @Description Retained events, oldest first
// @swagger:model LogListResponse
type LogListResponse struct {
	Data    []models.LogEvent `json:"data"`
	Dropped uint64            `json:"dropped"`
}

// HealthResponse reports liveness
// @swagger:model HealthResponse
type HealthResponse struct {
	Status   string         `json:"status" example:"ok"`
	Time     time.Time      `json:"time"`
	Projects map[string]int `json:"projects,omitempty"`
}

// ErrorResponse represents an API error
// @Description Error response from the API
// @swagger:model ErrorResponse
type ErrorResponse struct {
	// Error message
	// @example project not found
	Error string `json:"error" example:"project not found"`
	// Error type
	// @example NOT_FOUND
	Code string `json:"code,omitempty" example:"NOT_FOUND"`
}

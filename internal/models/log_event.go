package models

import (
	"time"

	"github.com/google/uuid"
)

// LogLevel is the severity of a LogEvent
type LogLevel string

const (
	LevelDebug   LogLevel = "debug"
	LevelInfo    LogLevel = "info"
	LevelSuccess LogLevel = "success"
	LevelWarning LogLevel = "warning"
	LevelError   LogLevel = "error"
)

// EventCode identifies what happened; presentation layers map codes to text.
type EventCode string

const (
	EventInitStart           EventCode = "init_start"
	EventInitFailed          EventCode = "init_failed"
	EventRepoCreated         EventCode = "repo_created"
	EventRepoExists          EventCode = "repo_exists"
	EventGitignoreCreated    EventCode = "gitignore_created"
	EventCredentialVerified  EventCode = "credential_verified"
	EventRemoteExists        EventCode = "remote_exists"
	EventRemoteCreated       EventCode = "remote_created"
	EventRemoteLinked        EventCode = "remote_linked"
	EventInitialCommit       EventCode = "initial_commit"
	EventNothingToCommit     EventCode = "nothing_to_commit"
	EventBranchRenamed       EventCode = "branch_renamed"
	EventFetchFailed         EventCode = "fetch_failed"
	EventRemoteEmpty         EventCode = "remote_empty"
	EventFastForward         EventCode = "fast_forward"
	EventMergeSuccess        EventCode = "merge_success"
	EventCannotMerge         EventCode = "cannot_merge"
	EventRemoteWillOverwrite EventCode = "remote_will_overwrite"
	EventForcePushSuccess    EventCode = "force_push_success"
	EventNormalPushFailed    EventCode = "normal_push_failed"
	EventForcePushOverwrite  EventCode = "force_push_overwrite"
	EventPushSuccess         EventCode = "push_success"
	EventUpToDate            EventCode = "up_to_date"
	EventProjectCreated      EventCode = "project_created"
	EventProjectRegistered   EventCode = "project_registered"
	EventSyncStart           EventCode = "sync_start"
	EventNoChanges           EventCode = "no_changes"
	EventRiskDetected        EventCode = "risk_detected"
	EventCommitCreated       EventCode = "commit_created"
	EventPushSkipped         EventCode = "push_skipped"
	EventSyncComplete        EventCode = "sync_complete"
	EventSyncFailed          EventCode = "sync_failed"
	EventStatusChanged       EventCode = "status_changed"
	EventConfigUpdated       EventCode = "config_updated"
	EventScheduleArmed       EventCode = "schedule_armed"
	EventFilesIgnored        EventCode = "files_ignored"
	EventVisibilityUpdated   EventCode = "visibility_updated"
	EventVisibilitySynced    EventCode = "visibility_synced"
	EventProjectDeleted      EventCode = "project_deleted"
	EventRemoteDeleted       EventCode = "remote_deleted"
	EventWatcherError        EventCode = "watcher_error"
	EventChangesDetected     EventCode = "changes_detected"
)

// LogEvent is an immutable record published on the event bus
type LogEvent struct {
	ID        string                 `json:"id"`
	Timestamp time.Time              `json:"timestamp"`
	ProjectID *int64                 `json:"project_id,omitempty"`
	Level     LogLevel               `json:"level"`
	Code      EventCode              `json:"code"`
	Message   string                 `json:"message"`
	Fields    map[string]interface{} `json:"fields,omitempty"`
}

// NewLogEvent builds an event with a fresh id. A projectID of 0 marks a
// system-wide event.
func NewLogEvent(projectID int64, level LogLevel, code EventCode, message string, fields map[string]interface{}) LogEvent {
	ev := LogEvent{
		ID:        uuid.NewString(),
		Timestamp: time.Now(),
		Level:     level,
		Code:      code,
		Message:   message,
		Fields:    fields,
	}
	if projectID != 0 {
		id := projectID
		ev.ProjectID = &id
	}
	return ev
}

// ForProject reports whether the event belongs to the given project
func (e LogEvent) ForProject(projectID int64) bool {
	return e.ProjectID != nil && *e.ProjectID == projectID
}

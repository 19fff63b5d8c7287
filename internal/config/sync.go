package config

import "time"

// SyncConfig holds service-wide synchronization settings. Per-project policy
// lives in models.SyncConfig.
type SyncConfig struct {
	DebounceWindow    time.Duration
	EventBacklog      int
	DefaultBranch     string
	RemoteName        string
	MergeTimeout      time.Duration
	CommitAuthorName  string
	CommitAuthorEmail string
	AnthropicAPIKey   string
	AIModel           string
}

// DefaultSyncConfig returns the default sync configuration
func DefaultSyncConfig() *SyncConfig {
	return &SyncConfig{
		DebounceWindow:    10 * time.Second,
		EventBacklog:      100,
		DefaultBranch:     "main",
		RemoteName:        "origin",
		MergeTimeout:      2 * time.Minute,
		CommitAuthorName:  "Repo Autosync",
		CommitAuthorEmail: "autosync@localhost",
		AIModel:           "claude-haiku-4-5",
	}
}

package models

import (
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/Kamar-Folarin/repo-autosync/internal/errors"
)

// SyncMode selects what drives sync cycles for a project
type SyncMode string

const (
	// SyncModeAuto syncs as soon as the watcher reports quiescence
	SyncModeAuto SyncMode = "auto"
	// SyncModeInterval syncs pending changes every SyncInterval minutes
	SyncModeInterval SyncMode = "interval"
	// SyncModeFixed syncs pending changes once a day at SyncFixedTime
	SyncModeFixed SyncMode = "fixed"
)

// Valid reports whether m is a known sync mode
func (m SyncMode) Valid() bool {
	switch m {
	case SyncModeAuto, SyncModeInterval, SyncModeFixed:
		return true
	}
	return false
}

// SyncConfig is the per-project automation policy
type SyncConfig struct {
	AutoPush            bool     `json:"auto_push"`
	SyncMode            SyncMode `json:"sync_mode"`
	SyncInterval        int      `json:"sync_interval"`
	SyncFixedTime       string   `json:"sync_fixed_time"`
	MaxFileSizeMB       int      `json:"max_file_size_mb"`
	BlockedExtensions   []string `json:"blocked_extensions"`
	IgnoreHidden        bool     `json:"ignore_hidden"`
	AICommitMessage     bool     `json:"ai_commit_message"`
	DefaultCommitPrefix string   `json:"default_commit_prefix"`
	IsPrivate           bool     `json:"is_private"`
	AllowForcePush      bool     `json:"allow_force_push"`
}

// DefaultSyncConfig returns the policy applied to new projects
func DefaultSyncConfig() SyncConfig {
	return SyncConfig{
		AutoPush:            true,
		SyncMode:            SyncModeAuto,
		SyncInterval:        5,
		SyncFixedTime:       "00:00",
		MaxFileSizeMB:       50,
		BlockedExtensions:   []string{".exe", ".dll", ".zip", ".mp4"},
		IgnoreHidden:        true,
		AICommitMessage:     false,
		DefaultCommitPrefix: "backup: ",
		IsPrivate:           true,
		AllowForcePush:      true,
	}
}

// Validate checks the config invariants and normalizes extensions in place.
func (c *SyncConfig) Validate() error {
	if !c.SyncMode.Valid() {
		return errors.NewValidationError(fmt.Sprintf("unknown sync mode %q", c.SyncMode), nil)
	}
	if c.SyncMode == SyncModeInterval && c.SyncInterval <= 0 {
		return errors.NewValidationError(fmt.Sprintf("sync interval must be a positive number of minutes, got %d", c.SyncInterval), nil)
	}
	if c.SyncMode == SyncModeFixed || c.SyncFixedTime != "" {
		if _, _, err := ParseClock(c.SyncFixedTime); err != nil {
			return err
		}
	}
	if c.MaxFileSizeMB < 0 {
		return errors.NewValidationError("max file size cannot be negative", nil)
	}
	c.BlockedExtensions = NormalizeExtensions(c.BlockedExtensions)
	return nil
}

// IntervalDuration returns the interval as a time.Duration
func (c SyncConfig) IntervalDuration() time.Duration {
	return time.Duration(c.SyncInterval) * time.Minute
}

// ScheduleChanged reports whether switching from c to other requires the
// scheduler to be re-armed.
func (c SyncConfig) ScheduleChanged(other SyncConfig) bool {
	return c.SyncMode != other.SyncMode ||
		c.SyncInterval != other.SyncInterval ||
		c.SyncFixedTime != other.SyncFixedTime
}

// Clone returns a copy that does not share the extensions slice
func (c SyncConfig) Clone() SyncConfig {
	cp := c
	cp.BlockedExtensions = append([]string(nil), c.BlockedExtensions...)
	return cp
}

// ParseClock parses an HH:MM wall clock time.
func ParseClock(s string) (hour, minute int, err error) {
	parts := strings.Split(s, ":")
	if len(parts) != 2 || len(parts[0]) != 2 || len(parts[1]) != 2 {
		return 0, 0, errors.NewValidationError(fmt.Sprintf("fixed time must be HH:MM, got %q", s), nil)
	}
	if _, err := fmt.Sscanf(s, "%02d:%02d", &hour, &minute); err != nil {
		return 0, 0, errors.NewValidationError(fmt.Sprintf("fixed time must be HH:MM, got %q", s), err)
	}
	if hour < 0 || hour > 23 || minute < 0 || minute > 59 {
		return 0, 0, errors.NewValidationError(fmt.Sprintf("fixed time out of range: %q", s), nil)
	}
	return hour, minute, nil
}

// NormalizeExtensions lower-cases extensions, adds the leading dot and
// removes duplicates.
func NormalizeExtensions(exts []string) []string {
	seen := make(map[string]bool, len(exts))
	out := make([]string, 0, len(exts))
	for _, ext := range exts {
		ext = strings.ToLower(strings.TrimSpace(ext))
		if ext == "" {
			continue
		}
		if !strings.HasPrefix(ext, ".") {
			ext = "." + ext
		}
		if seen[ext] {
			continue
		}
		seen[ext] = true
		out = append(out, ext)
	}
	sort.Strings(out)
	return out
}

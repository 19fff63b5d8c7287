package models

import (
	"sort"
	"time"
)

// ChangeOp is the kind of filesystem change recorded for a path
type ChangeOp string

const (
	ChangeCreate ChangeOp = "create"
	ChangeWrite  ChangeOp = "write"
	ChangeRemove ChangeOp = "remove"
	ChangeRename ChangeOp = "rename"
)

// ChangeBatch is a coalesced set of changes for one project. Paths are
// relative to the project root using forward slashes.
type ChangeBatch struct {
	ProjectID  int64               `json:"project_id"`
	Changes    map[string]ChangeOp `json:"changes"`
	FirstEvent time.Time           `json:"first_event"`
	LastEvent  time.Time           `json:"last_event"`
}

// NewChangeBatch creates an empty batch for a project
func NewChangeBatch(projectID int64) *ChangeBatch {
	return &ChangeBatch{
		ProjectID: projectID,
		Changes:   make(map[string]ChangeOp),
	}
}

// Add records a change; repeated changes to the same path coalesce into a
// single entry holding the latest operation.
func (b *ChangeBatch) Add(path string, op ChangeOp, at time.Time) {
	if b.Changes == nil {
		b.Changes = make(map[string]ChangeOp)
	}
	b.Changes[path] = op
	if b.FirstEvent.IsZero() || at.Before(b.FirstEvent) {
		b.FirstEvent = at
	}
	if at.After(b.LastEvent) {
		b.LastEvent = at
	}
}

// Merge folds other into b. Entries already in b are overwritten only when
// other is newer.
func (b *ChangeBatch) Merge(other *ChangeBatch) {
	if other == nil {
		return
	}
	if b.Changes == nil {
		b.Changes = make(map[string]ChangeOp, len(other.Changes))
	}
	newer := !other.LastEvent.Before(b.LastEvent)
	for path, op := range other.Changes {
		if _, exists := b.Changes[path]; !exists || newer {
			b.Changes[path] = op
		}
	}
	if !other.FirstEvent.IsZero() && (b.FirstEvent.IsZero() || other.FirstEvent.Before(b.FirstEvent)) {
		b.FirstEvent = other.FirstEvent
	}
	if other.LastEvent.After(b.LastEvent) {
		b.LastEvent = other.LastEvent
	}
}

// Remove drops the given paths from the batch
func (b *ChangeBatch) Remove(paths ...string) {
	for _, p := range paths {
		delete(b.Changes, p)
	}
}

// Len returns the number of distinct paths
func (b *ChangeBatch) Len() int {
	if b == nil {
		return 0
	}
	return len(b.Changes)
}

// Empty reports whether there is nothing to sync
func (b *ChangeBatch) Empty() bool {
	return b.Len() == 0
}

// Paths returns the changed paths in sorted order
func (b *ChangeBatch) Paths() []string {
	if b == nil {
		return nil
	}
	paths := make([]string, 0, len(b.Changes))
	for p := range b.Changes {
		paths = append(paths, p)
	}
	sort.Strings(paths)
	return paths
}

// Clone returns an independent copy
func (b *ChangeBatch) Clone() *ChangeBatch {
	if b == nil {
		return nil
	}
	cp := *b
	cp.Changes = make(map[string]ChangeOp, len(b.Changes))
	for k, v := range b.Changes {
		cp.Changes[k] = v
	}
	return &cp
}

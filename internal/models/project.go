package models

import (
	"encoding/json"
	"fmt"
)

// Project is a local folder managed as a Git repository with a hosted remote.
type Project struct {
	BaseModel
	SyncTracking
	Name        string          `json:"name"`
	Description string          `json:"description,omitempty"`
	LocalPath   string          `json:"path"`
	RemoteURL   string          `json:"remote_url,omitempty"`
	Branch      string          `json:"branch"`
	Status      LifecycleStatus `json:"status"`
	Config      SyncConfig      `json:"config"`
	// Credential is the hosting token this project pushes with. It is
	// never serialized; API views carry CredentialPreview instead.
	Credential        string `json:"-"`
	CredentialPreview string `json:"credential_preview,omitempty"`
}

// Linked reports whether the project has a remote attached.
func (p *Project) Linked() bool {
	return p.RemoteURL != ""
}

// Clone returns a deep copy so callers never share mutable state with the
// orchestrator's registry.
func (p *Project) Clone() *Project {
	if p == nil {
		return nil
	}
	cp := *p
	cp.Config = p.Config.Clone()
	cp.CredentialPreview = ""
	if p.Credential != "" {
		cp.CredentialPreview = MaskToken(p.Credential)
	}
	if p.LastSyncTime != nil {
		t := *p.LastSyncTime
		cp.LastSyncTime = &t
	}
	return &cp
}

// String returns the JSON string representation of the project
func (p *Project) String() string {
	data, err := json.Marshal(p)
	if err != nil {
		return fmt.Sprintf(`{"error":"failed to marshal project: %v"}`, err)
	}
	return string(data)
}

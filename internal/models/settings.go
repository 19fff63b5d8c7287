package models

import "time"

// Settings holds service-wide values persisted alongside projects
type Settings struct {
	GitHubToken string    `json:"-"`
	UpdatedAt   time.Time `json:"updated_at"`
}

// SettingsView is the masked representation returned to clients
type SettingsView struct {
	HasGitHubToken     bool      `json:"has_github_token"`
	GitHubTokenPreview string    `json:"github_token_preview,omitempty"`
	UpdatedAt          time.Time `json:"updated_at,omitempty"`
}

// View masks the credential
func (s *Settings) View() SettingsView {
	if s == nil || s.GitHubToken == "" {
		return SettingsView{}
	}
	return SettingsView{
		HasGitHubToken:     true,
		GitHubTokenPreview: MaskToken(s.GitHubToken),
		UpdatedAt:          s.UpdatedAt,
	}
}

// MaskToken keeps the first and last four characters of long tokens
func MaskToken(token string) string {
	if len(token) > 10 {
		return token[:4] + "..." + token[len(token)-4:]
	}
	return "***"
}

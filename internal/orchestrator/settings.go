package orchestrator

import (
	"context"
	"fmt"
	"strings"

	"github.com/sirupsen/logrus"

	"github.com/Kamar-Folarin/repo-autosync/internal/errors"
	"github.com/Kamar-Folarin/repo-autosync/internal/models"
)

// credential resolves the credential for a hosting call: the explicit one
// (a request's or the project's own), else the saved global token, else the
// bootstrap token. An empty result
// is not an error; callers that need one return CredentialMissing.
func (o *Orchestrator) credential(ctx context.Context, explicit string) (string, error) {
	if token := strings.TrimSpace(explicit); token != "" {
		return token, nil
	}
	settings, err := o.store.GetSettings(ctx)
	if err != nil {
		return "", errors.NewInternalError("failed to load settings", err).WithOp("resolve_credential")
	}
	if settings != nil && settings.GitHubToken != "" {
		return settings.GitHubToken, nil
	}
	return o.bootstrapToken, nil
}

func (o *Orchestrator) requireCredential(ctx context.Context, explicit, purpose string) (string, error) {
	token, err := o.credential(ctx, explicit)
	if err != nil {
		return "", err
	}
	if token == "" {
		return "", errors.NewCredentialMissingError(fmt.Sprintf("a GitHub token is required to %s; save one in settings or pass it with the request", purpose))
	}
	return token, nil
}

// Settings returns the masked global settings
func (o *Orchestrator) Settings(ctx context.Context) (*models.SettingsView, error) {
	settings, err := o.store.GetSettings(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to get settings: %w", err)
	}
	if settings.GitHubToken == "" && o.bootstrapToken != "" {
		settings = &models.Settings{GitHubToken: o.bootstrapToken}
	}
	view := settings.View()
	return &view, nil
}

// SetGlobalToken saves the credential used when a request carries none
func (o *Orchestrator) SetGlobalToken(ctx context.Context, token string) (*models.SettingsView, error) {
	token = strings.TrimSpace(token)
	if token == "" {
		return nil, errors.NewValidationError("token cannot be empty", nil)
	}

	settings := &models.Settings{GitHubToken: token}
	if err := o.store.SaveSettings(ctx, settings); err != nil {
		return nil, fmt.Errorf("failed to save settings: %w", err)
	}

	o.logger.WithFields(logrus.Fields{
		"action":  "set_global_token",
		"preview": models.MaskToken(token),
	}).Info("Saved global GitHub token")

	view := settings.View()
	return &view, nil
}

// ClearGlobalToken removes the saved credential
func (o *Orchestrator) ClearGlobalToken(ctx context.Context) error {
	if err := o.store.SaveSettings(ctx, &models.Settings{}); err != nil {
		return fmt.Errorf("failed to clear settings: %w", err)
	}
	o.logger.WithField("action", "clear_global_token").Info("Cleared global GitHub token")
	return nil
}

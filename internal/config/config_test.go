package config

import (
	"testing"
	"time"

	"github.com/spf13/pflag"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoad_Defaults(t *testing.T) {
	t.Setenv("PORT", "")
	t.Setenv("DEBOUNCE_SECONDS", "")
	t.Setenv("EVENT_BACKLOG", "")
	t.Setenv("GITHUB_API_BASE_URL", "")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "8080", cfg.Port)
	assert.Equal(t, 10*time.Second, cfg.Sync.DebounceWindow)
	assert.Equal(t, 100, cfg.Sync.EventBacklog)
	assert.Equal(t, "main", cfg.Sync.DefaultBranch)
	assert.Equal(t, "https://api.github.com", cfg.GitHub.APIBaseURL)
	assert.Equal(t, 30*time.Second, cfg.GitHub.Timeout)
}

func TestLoad_Environment(t *testing.T) {
	t.Setenv("PORT", "9090")
	t.Setenv("DEBOUNCE_SECONDS", "3")
	t.Setenv("GITHUB_TOKEN", "ghp_env")
	t.Setenv("GITHUB_API_BASE_URL", "http://localhost:3000/api/v3/")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "9090", cfg.Port)
	assert.Equal(t, 3*time.Second, cfg.Sync.DebounceWindow)
	assert.Equal(t, "ghp_env", cfg.GitHubToken)
	assert.Equal(t, "http://localhost:3000/api/v3", cfg.GitHub.APIBaseURL)
}

func TestLoad_FlagsOverrideEnvironment(t *testing.T) {
	t.Setenv("PORT", "9090")

	flags := pflag.NewFlagSet("test", pflag.ContinueOnError)
	flags.String("PORT", "8080", "")
	require.NoError(t, flags.Parse([]string{"--PORT=7070"}))

	cfg, err := LoadWithFlags(flags)
	require.NoError(t, err)
	assert.Equal(t, "7070", cfg.Port)
}

func TestLoad_RejectsInvalidDebounce(t *testing.T) {
	t.Setenv("DEBOUNCE_SECONDS", "0")

	_, err := Load()
	assert.Error(t, err)
}

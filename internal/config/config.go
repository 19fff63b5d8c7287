package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/spf13/pflag"
	"github.com/spf13/viper"
)

type Config struct {
	Port               string
	DBConnectionString string
	GitHubToken        string
	LogLevel           string
	LogFile            string
	MigrationRetries   int
	GitHub             *GitHubConfig
	Sync               *SyncConfig
}

// Load reads configuration from the environment. Values from flags, when
// given, take precedence over the environment.
func Load() (*Config, error) {
	return LoadWithFlags(nil)
}

// LoadWithFlags binds the given flag set on top of environment variables.
func LoadWithFlags(flags *pflag.FlagSet) (*Config, error) {
	v := viper.New()
	v.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	v.AutomaticEnv()
	setDefaults(v)

	if flags != nil {
		var bindErr error
		flags.VisitAll(func(f *pflag.Flag) {
			key := strings.ToUpper(strings.ReplaceAll(f.Name, "-", "_"))
			if err := v.BindPFlag(key, f); err != nil && bindErr == nil {
				bindErr = err
			}
		})
		if bindErr != nil {
			return nil, fmt.Errorf("failed to bind flags: %w", bindErr)
		}
	}

	if file := getEnv("CONFIG_FILE", ""); file != "" {
		v.SetConfigFile(file)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("failed to read config file %s: %w", file, err)
		}
	}

	debounce := v.GetInt("DEBOUNCE_SECONDS")
	if debounce <= 0 {
		return nil, fmt.Errorf("DEBOUNCE_SECONDS must be positive, got %d", debounce)
	}
	backlog := v.GetInt("EVENT_BACKLOG")
	if backlog <= 0 {
		return nil, fmt.Errorf("EVENT_BACKLOG must be positive, got %d", backlog)
	}

	githubCfg := DefaultGitHubConfig()
	githubCfg.APIBaseURL = strings.TrimRight(v.GetString("GITHUB_API_BASE_URL"), "/")
	githubCfg.RateLimit.MaxRetries = v.GetInt("GITHUB_MAX_RETRIES")
	githubCfg.Timeout = time.Duration(v.GetInt("GITHUB_TIMEOUT_SECONDS")) * time.Second

	syncCfg := DefaultSyncConfig()
	syncCfg.DebounceWindow = time.Duration(debounce) * time.Second
	syncCfg.EventBacklog = backlog
	syncCfg.DefaultBranch = v.GetString("DEFAULT_BRANCH")
	syncCfg.CommitAuthorName = v.GetString("COMMIT_AUTHOR_NAME")
	syncCfg.CommitAuthorEmail = v.GetString("COMMIT_AUTHOR_EMAIL")
	syncCfg.AnthropicAPIKey = v.GetString("ANTHROPIC_API_KEY")
	syncCfg.AIModel = v.GetString("AI_MODEL")

	return &Config{
		Port:               v.GetString("PORT"),
		DBConnectionString: v.GetString("DB_CONNECTION_STRING"),
		GitHubToken:        v.GetString("GITHUB_TOKEN"),
		LogLevel:           v.GetString("LOG_LEVEL"),
		LogFile:            v.GetString("LOG_FILE"),
		MigrationRetries:   v.GetInt("MIGRATION_RETRIES"),
		GitHub:             githubCfg,
		Sync:               syncCfg,
	}, nil
}

func setDefaults(v *viper.Viper) {
	gh := DefaultGitHubConfig()
	sync := DefaultSyncConfig()

	v.SetDefault("PORT", "8080")
	v.SetDefault("DB_CONNECTION_STRING", "")
	v.SetDefault("GITHUB_TOKEN", "")
	v.SetDefault("LOG_LEVEL", "info")
	v.SetDefault("LOG_FILE", "")
	v.SetDefault("MIGRATION_RETRIES", 3)
	v.SetDefault("GITHUB_API_BASE_URL", gh.APIBaseURL)
	v.SetDefault("GITHUB_MAX_RETRIES", gh.RateLimit.MaxRetries)
	v.SetDefault("GITHUB_TIMEOUT_SECONDS", int(gh.Timeout/time.Second))
	v.SetDefault("DEBOUNCE_SECONDS", int(sync.DebounceWindow/time.Second))
	v.SetDefault("EVENT_BACKLOG", sync.EventBacklog)
	v.SetDefault("DEFAULT_BRANCH", sync.DefaultBranch)
	v.SetDefault("COMMIT_AUTHOR_NAME", sync.CommitAuthorName)
	v.SetDefault("COMMIT_AUTHOR_EMAIL", sync.CommitAuthorEmail)
	v.SetDefault("ANTHROPIC_API_KEY", "")
	v.SetDefault("AI_MODEL", sync.AIModel)
}

func getEnv(key, defaultValue string) string {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	return value
}

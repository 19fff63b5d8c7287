package config

import "time"

// GitHubConfig configures the hosting client used for repository
// management. Git transport itself does not go through it.
type GitHubConfig struct {
	APIBaseURL string
	Timeout    time.Duration
	RateLimit  RateLimitConfig
}

// RateLimitConfig bounds retries on rate-limited and transient responses
type RateLimitConfig struct {
	MaxRetries     int
	InitialBackoff time.Duration
	MaxBackoff     time.Duration
}

func DefaultGitHubConfig() *GitHubConfig {
	return &GitHubConfig{
		APIBaseURL: "https://api.github.com",
		Timeout:    30 * time.Second,
		RateLimit: RateLimitConfig{
			MaxRetries:     3,
			InitialBackoff: time.Second,
			MaxBackoff:     time.Minute,
		},
	}
}

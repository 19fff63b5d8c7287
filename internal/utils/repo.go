package utils

import (
	"fmt"
	"net/url"
	"path/filepath"
	"regexp"
	"strings"
)

var scpLikeURL = regexp.MustCompile(`^(?:[\w.-]+@)?([\w.-]+):([^/].*)$`)

// ParseRepoURL parses a hosted repository URL into owner and name components.
// HTTPS, SSH and scp-like forms are accepted and a trailing .git is dropped.
func ParseRepoURL(repoURL string) (owner, name string, err error) {
	repoURL = strings.TrimSpace(repoURL)
	var path string

	if m := scpLikeURL.FindStringSubmatch(repoURL); m != nil && !strings.Contains(repoURL, "://") {
		path = m[2]
	} else {
		u, err := url.Parse(repoURL)
		if err != nil {
			return "", "", err
		}
		path = u.Path
	}

	parts := strings.Split(strings.Trim(path, "/"), "/")
	if len(parts) < 2 || parts[0] == "" || parts[1] == "" {
		return "", "", fmt.Errorf("invalid repository URL: %s", repoURL)
	}

	return parts[0], strings.TrimSuffix(parts[1], ".git"), nil
}

// IsGitHubURL reports whether the remote is hosted on github.com
func IsGitHubURL(repoURL string) bool {
	return strings.Contains(repoURL, "github.com")
}

var unsafeRepoChars = regexp.MustCompile(`[^A-Za-z0-9._-]+`)

// RepoName derives a hosting-safe repository name from a project name,
// falling back to the base name of the path.
func RepoName(name, path string) string {
	if strings.TrimSpace(name) == "" {
		name = filepath.Base(filepath.Clean(path))
	}
	name = unsafeRepoChars.ReplaceAllString(strings.TrimSpace(name), "-")
	return strings.Trim(name, "-.")
}

// Package ignore reads, writes and evaluates a project's .gitignore file.
package ignore

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/go-git/go-billy/v5/osfs"
	"github.com/go-git/go-git/v5/plumbing/format/gitignore"
)

// FileName is the ignore file maintained at the project root
const FileName = ".gitignore"

// DefaultContent is written when a project is initialized without a custom
// ignore file.
const DefaultContent = `# Dependencies
node_modules/
vendor/
__pycache__/
*.pyc

# Build output
dist/
build/
*.o
*.so

# Logs and temp files
*.log
*.tmp
*.swp
*~
.cache/

# OS files
.DS_Store
Thumbs.db

# Environment
.env
.env.*
`

// IsHidden reports whether any component of a slash separated path is a dot
// file or directory. The ignore file itself is never hidden.
func IsHidden(rel string) bool {
	for _, part := range strings.Split(rel, "/") {
		if strings.HasPrefix(part, ".") && part != "." && part != ".." && part != FileName {
			return true
		}
	}
	return false
}

// Path returns the ignore file location for a project root
func Path(root string) string {
	return filepath.Join(root, FileName)
}

// Read returns the ignore file content, or an empty string when absent
func Read(root string) (string, error) {
	data, err := os.ReadFile(Path(root))
	if os.IsNotExist(err) {
		return "", nil
	}
	if err != nil {
		return "", fmt.Errorf("failed to read %s: %w", FileName, err)
	}
	return string(data), nil
}

// Write replaces the ignore file content
func Write(root, content string) error {
	if content != "" && !strings.HasSuffix(content, "\n") {
		content += "\n"
	}
	if err := os.WriteFile(Path(root), []byte(content), 0o644); err != nil {
		return fmt.Errorf("failed to write %s: %w", FileName, err)
	}
	return nil
}

// Ensure writes content (DefaultContent when empty) unless the file already
// exists. With overwrite the file is always replaced. It reports whether the
// file was written.
func Ensure(root, content string, overwrite bool) (bool, error) {
	if !overwrite {
		if _, err := os.Stat(Path(root)); err == nil {
			return false, nil
		} else if !os.IsNotExist(err) {
			return false, fmt.Errorf("failed to stat %s: %w", FileName, err)
		}
	}
	if strings.TrimSpace(content) == "" {
		content = DefaultContent
	}
	if err := Write(root, content); err != nil {
		return false, err
	}
	return true, nil
}

// Append adds patterns that are not already listed and returns the ones
// actually added. A missing trailing newline in the existing file is fixed
// before appending.
func Append(root string, patterns []string) ([]string, error) {
	existing, err := Read(root)
	if err != nil {
		return nil, err
	}

	present := make(map[string]bool)
	for _, line := range strings.Split(existing, "\n") {
		present[strings.TrimSpace(line)] = true
	}

	var added []string
	for _, p := range patterns {
		p = strings.TrimSpace(filepath.ToSlash(p))
		if p == "" || present[p] {
			continue
		}
		present[p] = true
		added = append(added, p)
	}
	if len(added) == 0 {
		return nil, nil
	}

	var b strings.Builder
	b.WriteString(existing)
	if existing != "" && !strings.HasSuffix(existing, "\n") {
		b.WriteString("\n")
	}
	for _, p := range added {
		b.WriteString(p)
		b.WriteString("\n")
	}

	if err := os.WriteFile(Path(root), []byte(b.String()), 0o644); err != nil {
		return nil, fmt.Errorf("failed to append to %s: %w", FileName, err)
	}
	return added, nil
}

// Matcher evaluates every .gitignore under a project root plus any extra
// patterns.
type Matcher struct {
	m gitignore.Matcher
}

// LoadMatcher reads ignore patterns from the working tree rooted at root.
func LoadMatcher(root string, extra ...string) (*Matcher, error) {
	patterns, err := gitignore.ReadPatterns(osfs.New(root), nil)
	if err != nil {
		return nil, fmt.Errorf("failed to load ignore patterns: %w", err)
	}
	for _, p := range extra {
		patterns = append(patterns, gitignore.ParsePattern(p, nil))
	}
	return &Matcher{m: gitignore.NewMatcher(patterns)}, nil
}

// Match reports whether a slash separated path relative to the root is ignored
func (m *Matcher) Match(rel string, isDir bool) bool {
	if m == nil || m.m == nil {
		return false
	}
	rel = filepath.ToSlash(rel)
	return m.m.Match(strings.Split(rel, "/"), isDir)
}

// Package scanner screens pending changes against a project's file policy
// before they are committed.
package scanner

import (
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/sirupsen/logrus"

	"github.com/Kamar-Folarin/repo-autosync/internal/errors"
	"github.com/Kamar-Folarin/repo-autosync/internal/ignore"
	"github.com/Kamar-Folarin/repo-autosync/internal/models"
)

const bytesPerMB = 1024 * 1024

// Policy is the part of a project's SyncConfig the scanner enforces
type Policy struct {
	MaxFileSizeMB     int
	BlockedExtensions []string
	IgnoreHidden      bool
}

// PolicyFrom extracts the scan policy from a project config
func PolicyFrom(cfg models.SyncConfig) Policy {
	return Policy{
		MaxFileSizeMB:     cfg.MaxFileSizeMB,
		BlockedExtensions: cfg.BlockedExtensions,
		IgnoreHidden:      cfg.IgnoreHidden,
	}
}

// Scanner evaluates files under a project root
type Scanner struct {
	logger *logrus.Logger
}

// New creates a Scanner
func New(logger *logrus.Logger) *Scanner {
	return &Scanner{logger: logger}
}

// Scan classifies the given root-relative paths. Rules are applied in order
// and the first match wins:
//
//   - paths matched by the ignore file, missing paths and directories are skipped
//   - hidden paths are excluded when the policy ignores hidden files
//   - a blocked extension is reported as blocked_extension
//   - a file larger than the size limit is reported as oversize
//
// The report is sorted by path, so a fixed policy and file set always yield
// the same report. A MaxFileSizeMB of zero disables the size rule.
func (s *Scanner) Scan(root string, paths []string, policy Policy) (*models.RiskReport, error) {
	matcher, err := ignore.LoadMatcher(root)
	if err != nil {
		return nil, errors.NewInternalError("failed to load ignore rules", err).WithOp("scan")
	}

	blocked := make(map[string]bool, len(policy.BlockedExtensions))
	for _, ext := range models.NormalizeExtensions(policy.BlockedExtensions) {
		blocked[ext] = true
	}
	limit := int64(policy.MaxFileSizeMB) * bytesPerMB

	report := &models.RiskReport{Items: []models.RiskItem{}}
	for _, rel := range normalize(paths) {
		if isGitPath(rel) || matcher.Match(rel, false) {
			continue
		}

		info, err := os.Lstat(filepath.Join(root, filepath.FromSlash(rel)))
		if err != nil || info.IsDir() {
			continue
		}
		report.ScannedFiles++

		item := models.RiskItem{Path: rel, Size: info.Size(), SizeDisplay: models.FormatSize(info.Size())}
		switch {
		case policy.IgnoreHidden && ignore.IsHidden(rel):
			item.Reason = models.RiskHidden
			report.Excluded = append(report.Excluded, item)
		case blocked[strings.ToLower(filepath.Ext(rel))]:
			item.Reason = models.RiskBlockedExtension
			report.Items = append(report.Items, item)
		case limit > 0 && info.Size() > limit:
			item.Reason = models.RiskOversize
			report.Items = append(report.Items, item)
		}
	}

	if len(report.Items) > 0 {
		s.logger.WithFields(logrus.Fields{
			"root":  root,
			"risky": len(report.Items),
		}).Warn("Scan found risky files")
	}
	return report, nil
}

// ScanTree scans every file under root that is not ignored
func (s *Scanner) ScanTree(root string, policy Policy) (*models.RiskReport, error) {
	matcher, err := ignore.LoadMatcher(root)
	if err != nil {
		return nil, errors.NewInternalError("failed to load ignore rules", err).WithOp("scan")
	}

	var paths []string
	err = filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return nil
		}
		rel, relErr := filepath.Rel(root, path)
		if relErr != nil || rel == "." {
			return nil
		}
		rel = filepath.ToSlash(rel)
		if d.IsDir() {
			if d.Name() == ".git" || matcher.Match(rel, true) {
				return filepath.SkipDir
			}
			return nil
		}
		paths = append(paths, rel)
		return nil
	})
	if err != nil {
		return nil, errors.NewPathUnusableError(root, err).WithOp("scan")
	}
	return s.Scan(root, paths, policy)
}

// Ignore permanently excludes the given paths or patterns by appending them
// to the project's ignore file. It returns the entries actually added.
func (s *Scanner) Ignore(root string, patterns []string) ([]string, error) {
	added, err := ignore.Append(root, patterns)
	if err != nil {
		return nil, errors.NewInternalError(fmt.Sprintf("failed to update %s", ignore.FileName), err).WithOp("ignore")
	}
	if len(added) > 0 {
		s.logger.WithFields(logrus.Fields{
			"root":     root,
			"patterns": added,
		}).Info("Added ignore patterns")
	}
	return added, nil
}

func isGitPath(rel string) bool {
	return rel == ".git" || strings.HasPrefix(rel, ".git/")
}

func normalize(paths []string) []string {
	seen := make(map[string]bool, len(paths))
	out := make([]string, 0, len(paths))
	for _, p := range paths {
		p = strings.TrimPrefix(filepath.ToSlash(filepath.Clean(p)), "./")
		if p == "" || p == "." || seen[p] {
			continue
		}
		seen[p] = true
		out = append(out, p)
	}
	sort.Strings(out)
	return out
}

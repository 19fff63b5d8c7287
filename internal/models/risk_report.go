package models

import "fmt"

// RiskReason is why a file was held back from a sync
type RiskReason string

const (
	RiskOversize         RiskReason = "oversize"
	RiskBlockedExtension RiskReason = "blocked_extension"
	RiskHidden           RiskReason = "hidden"
)

// RiskItem is a single risky file
type RiskItem struct {
	Path        string     `json:"path"`
	Reason      RiskReason `json:"reason"`
	Size        int64      `json:"size"`
	SizeDisplay string     `json:"size_display"`
}

// RiskReport is the result of screening a change set
type RiskReport struct {
	ProjectID    int64      `json:"project_id"`
	Items        []RiskItem `json:"items"`
	Excluded     []RiskItem `json:"excluded,omitempty"`
	ScannedFiles int        `json:"scanned_files"`
}

// Clear reports whether the batch may be synced
func (r *RiskReport) Clear() bool {
	return r == nil || len(r.Items) == 0
}

// Paths returns the risky paths in report order
func (r *RiskReport) Paths() []string {
	if r == nil {
		return nil
	}
	paths := make([]string, len(r.Items))
	for i, item := range r.Items {
		paths[i] = item.Path
	}
	return paths
}

// FormatSize renders a byte count the way the dashboard shows it
func FormatSize(size int64) string {
	const unit = 1024
	if size < unit {
		return fmt.Sprintf("%d B", size)
	}
	div, exp := int64(unit), 0
	for n := size / unit; n >= unit; n /= unit {
		div *= unit
		exp++
	}
	return fmt.Sprintf("%.2f %cB", float64(size)/float64(div), "KMGTPE"[exp])
}

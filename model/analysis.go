// Package model - Analysis groups the findings of one run over a project
package model

import "time"

// Summary holds the counts of an analysis run
type Summary struct {
	Total      int            `json:"total"`
	Direct     int            `json:"direct"`
	Transitive int            `json:"transitive"`
	NotFound   int            `json:"not_found"`
	Skipped    []string       `json:"skipped,omitempty"` // audit entries without via
	BySeverity map[string]int `json:"by_severity"`
}

// Analysis is one classification run over a dependency tree and audit report
type Analysis struct {
	Key       string    `json:"_key,omitempty"`
	ObjType   string    `json:"objtype,omitempty"`
	Project   string    `json:"project"`
	Version   string    `json:"version"`
	CreatedAt time.Time `json:"created_at"`
	Findings  []Finding `json:"findings"`
	Summary   Summary   `json:"summary"`
}

// NewAnalysis creates a new Analysis instance with default values
func NewAnalysis() *Analysis {
	return &Analysis{
		ObjType:   "Analysis",
		CreatedAt: time.Now().UTC(),
		Summary:   Summary{BySeverity: make(map[string]int)},
	}
}

// Summarize recomputes the summary counts from the findings
func (a *Analysis) Summarize(skipped []string) {
	summary := Summary{
		Total:      len(a.Findings),
		Skipped:    skipped,
		BySeverity: make(map[string]int),
	}
	for _, f := range a.Findings {
		switch f.DependencyType {
		case DependencyDirect:
			summary.Direct++
		case DependencyTransitive:
			summary.Transitive++
		default:
			summary.NotFound++
		}
		summary.BySeverity[f.Severity]++
	}
	a.Summary = summary
}

// Package model - API types for analysis requests/responses
package model

import "time"

// AnalysisRequest carries the inputs of an analysis posted to the API
type AnalysisRequest struct {
	Project string          `json:"project"`
	Version string          `json:"version"`
	Tree    *DependencyNode `json:"tree"`
	Audit   *AuditReport    `json:"audit"`
}

// AnalysisResponse returns the result of POST operations
type AnalysisResponse struct {
	Success     bool      `json:"success"`
	Message     string    `json:"message"`
	AnalysisKey string    `json:"analysis_key,omitempty"`
	Analysis    *Analysis `json:"analysis,omitempty"`
}

// AnalysisListItem represents a simplified analysis for list view
type AnalysisListItem struct {
	Key       string    `json:"_key"`
	Project   string    `json:"project"`
	Version   string    `json:"version"`
	CreatedAt time.Time `json:"created_at"`
	Total     int       `json:"total"`
}

// AffectedAnalysis represents an analysis in which a package was reported vulnerable
type AffectedAnalysis struct {
	AnalysisKey    string         `json:"analysis_key"`
	Project        string         `json:"project"`
	Version        string         `json:"version"`
	Package        string         `json:"package"`
	Severity       string         `json:"severity"`
	DependencyType DependencyType `json:"type"`
	Strategy       Strategy       `json:"strategy"`
}

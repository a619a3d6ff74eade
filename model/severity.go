// Package model - severity vocabulary reported by npm audit
package model

import "strings"

// Severity levels used by npm audit. The vocabulary is open ended and any
// string is carried through unchanged.
const (
	SeverityUnknown  = "unknown"
	SeverityInfo     = "info"
	SeverityLow      = "low"
	SeverityModerate = "moderate"
	SeverityHigh     = "high"
	SeverityCritical = "critical"
)

// SeverityRank returns an integer rank for comparison (info=0 ... critical=4, unknown=-1)
func SeverityRank(severity string) int {
	switch strings.ToLower(severity) {
	case SeverityInfo:
		return 0
	case SeverityLow:
		return 1
	case SeverityModerate, "medium":
		return 2
	case SeverityHigh:
		return 3
	case SeverityCritical:
		return 4
	default:
		return -1
	}
}

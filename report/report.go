// Package report renders analysis results for the console or as JSON.
package report

import (
	"bufio"
	"encoding/json"
	"fmt"
	"io"
	"sort"
	"strings"

	"github.com/ortelius/depchain/model"
)

// DefaultMaxPaths is the number of dependency chains printed per transitive finding
const DefaultMaxPaths = 3

var rule = strings.Repeat("=", 70)

// Options controls the console layout
type Options struct {
	MaxPaths int
}

// Group splits findings into direct, transitive and not found buckets, each
// sorted by severity string in descending order. Equal severities keep their
// input order.
func Group(findings []model.Finding) (direct, transitive, notFound []model.Finding) {
	for _, f := range findings {
		switch f.DependencyType {
		case model.DependencyDirect:
			direct = append(direct, f)
		case model.DependencyTransitive:
			transitive = append(transitive, f)
		default:
			notFound = append(notFound, f)
		}
	}
	bySeverity(direct)
	bySeverity(transitive)
	bySeverity(notFound)
	return direct, transitive, notFound
}

func bySeverity(findings []model.Finding) {
	sort.SliceStable(findings, func(i, j int) bool {
		return findings[i].Severity > findings[j].Severity
	})
}

// Render writes the console report for an analysis
func Render(out io.Writer, analysis *model.Analysis, opts Options) error {
	if opts.MaxPaths <= 0 {
		opts.MaxPaths = DefaultMaxPaths
	}

	w := bufio.NewWriter(out)
	direct, transitive, notFound := Group(analysis.Findings)

	fmt.Fprintln(w, rule)
	fmt.Fprintln(w, "Dependency Chain Analyzer for Vulnerability Remediation")
	fmt.Fprintln(w, rule)
	fmt.Fprintln(w)
	if analysis.Project != "" {
		fmt.Fprintf(w, "Project: %s %s\n", analysis.Project, analysis.Version)
	}
	fmt.Fprintf(w, "Total vulnerabilities found: %d\n", analysis.Summary.Total+len(analysis.Summary.Skipped))
	fmt.Fprintln(w)

	fmt.Fprintln(w, rule)
	fmt.Fprintf(w, "DIRECT DEPENDENCIES (%d vulnerabilities)\n", len(direct))
	fmt.Fprintln(w, rule)
	for _, f := range direct {
		writeHeader(w, f)
		fmt.Fprintf(w, "   Action: %s\n", f.Explanation)
	}

	fmt.Fprintln(w)
	fmt.Fprintln(w, rule)
	fmt.Fprintf(w, "TRANSITIVE DEPENDENCIES (%d vulnerabilities)\n", len(transitive))
	fmt.Fprintln(w, rule)
	for _, f := range transitive {
		writeHeader(w, f)
		fmt.Fprintln(w, "   Dependency chains:")
		shown := f.Paths
		if len(shown) > opts.MaxPaths {
			shown = shown[:opts.MaxPaths]
		}
		for i, path := range shown {
			fmt.Fprintf(w, "      %d. %s\n", i+1, strings.Join(path, " → "))
		}
		if rest := len(f.Paths) - len(shown); rest > 0 {
			fmt.Fprintf(w, "      ... and %d more paths\n", rest)
		}
		fmt.Fprintf(w, "   Action: %s\n", f.Explanation)
	}

	if len(notFound) > 0 {
		fmt.Fprintln(w)
		fmt.Fprintln(w, rule)
		fmt.Fprintf(w, "NOT FOUND IN TREE (%d vulnerabilities)\n", len(notFound))
		fmt.Fprintln(w, rule)
		for _, f := range notFound {
			writeHeader(w, f)
			fmt.Fprintf(w, "   Action: %s\n", f.Explanation)
		}
	}

	fmt.Fprintln(w)
	fmt.Fprintln(w, rule)
	fmt.Fprintln(w, "REMEDIATION SUMMARY")
	fmt.Fprintln(w, rule)
	fmt.Fprintf(w, "Direct dependencies to upgrade: %d\n", len(direct))
	fmt.Fprintf(w, "Transitive dependencies requiring analysis: %d\n", len(transitive))
	if n := len(analysis.Summary.Skipped); n > 0 {
		fmt.Fprintf(w, "Audit entries skipped (no via information): %d\n", n)
	}
	fmt.Fprintln(w)
	fmt.Fprintln(w, "Next steps:")
	fmt.Fprintln(w, "1. For direct dependencies: Update version in package.json")
	fmt.Fprintln(w, "2. For transitive dependencies:")
	fmt.Fprintln(w, "   a. Check if upgrading the direct dependency fixes it")
	fmt.Fprintln(w, "   b. If not, add npm override for the vulnerable package")
	fmt.Fprintln(w, "3. Run 'npm install' to apply changes")
	fmt.Fprintln(w, "4. Verify with 'npm audit'")
	fmt.Fprintln(w)

	return w.Flush()
}

func writeHeader(w io.Writer, f model.Finding) {
	fmt.Fprintf(w, "\n📦 %s\n", f.Package)
	fmt.Fprintf(w, "   Severity: %s\n", strings.ToUpper(f.Severity))
	fmt.Fprintf(w, "   Strategy: %s\n", f.Strategy)
}

// WriteJSON writes the analysis as indented JSON
func WriteJSON(out io.Writer, analysis *model.Analysis) error {
	enc := json.NewEncoder(out)
	enc.SetIndent("", "  ")
	if err := enc.Encode(analysis); err != nil {
		return fmt.Errorf("failed to encode analysis: %w", err)
	}
	return nil
}

// Exceeds reports whether any finding is at or above the threshold severity.
// An empty or unrecognised threshold never fails.
func Exceeds(analysis *model.Analysis, threshold string) bool {
	limit := model.SeverityRank(threshold)
	if limit < 0 {
		return false
	}
	for _, f := range analysis.Findings {
		if model.SeverityRank(f.Severity) >= limit {
			return true
		}
	}
	return false
}

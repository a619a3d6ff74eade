package classify

import (
	"context"
	"sort"

	"github.com/ortelius/depchain/model"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

// DefaultWorkers is the number of records classified concurrently when none is configured
const DefaultWorkers = 4

// Result holds the findings of one audit report in vulnerability-name order
type Result struct {
	Findings []model.Finding
	Skipped  []string // audit entries without via entries
}

// AnalyzeAudit classifies every audit record against tree. Records are
// processed concurrently; the tree is only read. Records without via entries
// are reported in Skipped rather than failing the run.
func (c *Classifier) AnalyzeAudit(ctx context.Context, report *model.AuditReport, tree *model.DependencyNode, workers int) (Result, error) {
	if report == nil || len(report.Vulnerabilities) == 0 {
		return Result{}, nil
	}
	if workers <= 0 {
		workers = DefaultWorkers
	}

	names := make([]string, 0, len(report.Vulnerabilities))
	for name := range report.Vulnerabilities {
		names = append(names, name)
	}
	sort.Strings(names)

	findings := make([]model.Finding, len(names))
	found := make([]bool, len(names))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(workers)

	for i, name := range names {
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			findings[i], found[i] = c.Classify(report.Vulnerabilities[name], tree)
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return Result{}, err
	}

	var result Result
	for i, name := range names {
		if !found[i] {
			c.logger.Debug("skipping audit entry without via", zap.String("name", name))
			result.Skipped = append(result.Skipped, name)
			continue
		}
		result.Findings = append(result.Findings, findings[i])
	}

	c.logger.Info("audit analyzed",
		zap.Int("vulnerabilities", len(names)),
		zap.Int("findings", len(result.Findings)),
		zap.Int("skipped", len(result.Skipped)))

	return result, nil
}

// AnalyzeAudit classifies an audit report with the default classifier
func AnalyzeAudit(ctx context.Context, report *model.AuditReport, tree *model.DependencyNode, workers int) (Result, error) {
	return defaultClassifier.AnalyzeAudit(ctx, report, tree, workers)
}

// Analysis wraps the result into a summarized analysis of project at version
func (r Result) Analysis(project, version string) *model.Analysis {
	analysis := model.NewAnalysis()
	analysis.Project = project
	analysis.Version = version
	analysis.Findings = r.Findings
	if analysis.Findings == nil {
		analysis.Findings = []model.Finding{}
	}
	analysis.Summarize(r.Skipped)
	return analysis
}

// Package classify turns npm audit entries into findings: it locates the
// vulnerable package in the dependency tree, decides whether it is a direct or
// transitive dependency and picks a remediation strategy.
package classify

import (
	"fmt"

	"github.com/ortelius/depchain/config"
	"github.com/ortelius/depchain/model"
	"github.com/ortelius/depchain/pathfinder"
	"github.com/ortelius/depchain/util"
	"go.uber.org/zap"
)

// Classifier classifies audit records against a dependency tree
type Classifier struct {
	finder *pathfinder.Finder
	logger *zap.Logger
}

// New creates a Classifier. A nil finder uses substring matching, a nil logger discards output.
func New(finder *pathfinder.Finder, logger *zap.Logger) *Classifier {
	if finder == nil {
		finder = pathfinder.New()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Classifier{finder: finder, logger: logger}
}

// NewFromConfig creates a Classifier using the configured match policy and depth limit
func NewFromConfig(cfg config.AnalysisConfig, logger *zap.Logger) *Classifier {
	var match pathfinder.Matcher = pathfinder.SubstringMatch
	if cfg.Match == config.MatchExact {
		match = pathfinder.ExactMatch
	}
	finder := pathfinder.New(pathfinder.WithMatcher(match), pathfinder.WithMaxDepth(cfg.MaxDepth))
	return New(finder, logger)
}

var defaultClassifier = New(nil, nil)

// Classify classifies record against tree with the default classifier
func Classify(record model.VulnerabilityRecord, tree *model.DependencyNode) (model.Finding, bool) {
	return defaultClassifier.Classify(record, tree)
}

// Classify builds the finding for one audit record. The boolean is false when
// the record has no via entries and there is nothing to analyze.
func (c *Classifier) Classify(record model.VulnerabilityRecord, tree *model.DependencyNode) (model.Finding, bool) {
	if len(record.Via) == 0 {
		return model.Finding{}, false
	}

	via := record.Via[0]
	pkg, versionRange := via.Package()
	paths := c.finder.FindAllPaths(tree, pkg)
	depType := Categorize(paths)
	strategy, explanation := Remediate(depType, pkg, paths)

	c.logger.Debug("classified vulnerability",
		zap.String("package", pkg),
		zap.String("type", string(depType)),
		zap.Int("paths", len(paths)))

	return model.Finding{
		ObjType:        "Finding",
		Package:        pkg,
		VersionRange:   versionRange,
		DependencyType: depType,
		Paths:          paths,
		Strategy:       strategy,
		Explanation:    explanation,
		Severity:       record.Severity,
		Purl:           util.NpmPURL(pkg, ""),
		Advisory:       via.AdvisoryID(),
		AdvisoryURL:    via.URL,
		Installed:      installations(paths, versionRange),
	}, true
}

// Categorize derives the dependency type from the paths to a package.
// Only the shortest path matters: two segments (root plus one hop) is direct.
func Categorize(paths []model.DependencyPath) model.DependencyType {
	if len(paths) == 0 {
		return model.DependencyNotFound
	}

	if model.ShortestPathLength(paths) == 2 {
		return model.DependencyDirect
	}
	return model.DependencyTransitive
}

// Remediate maps a dependency type to a strategy and the action text shown to the user
func Remediate(depType model.DependencyType, pkg string, paths []model.DependencyPath) (model.Strategy, string) {
	switch depType {
	case model.DependencyDirect:
		return model.StrategyDirectUpgrade,
			fmt.Sprintf("Upgrade %s directly in package.json", pkg)
	case model.DependencyTransitive:
		return model.StrategyCheckDirectThenOverride,
			fmt.Sprintf("Check if upgrading %s resolves the issue. "+
				"If not, use npm overrides to force a safe version of %s", DirectDependency(paths), pkg)
	default:
		return model.StrategyUnknown, "Package not found in dependency tree"
	}
}

// DirectDependency returns the name of the direct dependency on the first
// path, or "unknown" when that path holds only the root.
func DirectDependency(paths []model.DependencyPath) string {
	if len(paths) == 0 || len(paths[0]) < 2 {
		return model.UnknownVersion
	}
	return util.StripVersion(paths[0][1])
}

// installations lists the distinct versions installed at the match sites and
// whether each falls in the advisory range
func installations(paths []model.DependencyPath, versionRange string) []model.Installation {
	var installed []model.Installation
	seen := make(map[string]bool)

	for _, path := range paths {
		if len(path) < 2 {
			continue
		}
		last := path[len(path)-1]
		name := util.StripVersion(last)
		if len(name) >= len(last) {
			continue
		}
		version := last[len(name)+1:]
		if seen[version] {
			continue
		}
		seen[version] = true

		inst := model.Installation{Version: version}
		if inRange, ok := util.IsVersionInRange(version, versionRange); ok {
			inst.InRange = &inRange
		}
		installed = append(installed, inst)
	}
	return installed
}

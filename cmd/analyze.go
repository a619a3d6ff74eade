package cmd

import (
	"context"
	"fmt"
	"io"

	"github.com/ortelius/depchain/classify"
	"github.com/ortelius/depchain/config"
	"github.com/ortelius/depchain/database"
	"github.com/ortelius/depchain/loader"
	"github.com/ortelius/depchain/model"
	"github.com/ortelius/depchain/npm"
	"github.com/ortelius/depchain/report"
	"github.com/ortelius/depchain/util"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

// Output formats of the analyze command
const (
	FormatText = "text"
	FormatJSON = "json"
)

// analyzeOptions holds the analyze flags
type analyzeOptions struct {
	TreeFile       string
	AuditFile      string
	NpmDir         string
	Format         string
	Exact          bool
	MaxDepth       int
	MaxPaths       int
	Workers        int
	Store          bool
	Project        string
	ProjectVersion string
	FailOn         string

	Stdin io.Reader // source for an input given as "-"
}

var analyzeOpts analyzeOptions

// analyzeCmd represents the analyze command
var analyzeCmd = &cobra.Command{
	Use:   "analyze",
	Short: "Classify npm audit findings against the dependency tree",
	Long: `Reads the output of 'npm ls --all --json' and 'npm audit --json' (or runs
npm in --npm-dir), locates every vulnerable package in the tree and prints
a remediation report.`,
	Args: cobra.NoArgs,
	RunE: runAnalyze,
}

func init() {
	rootCmd.AddCommand(analyzeCmd)

	analyzeCmd.Flags().StringVarP(&analyzeOpts.TreeFile, "tree", "t", "test-outputs/dependency-tree.json", "Path to npm ls --all --json output, - for stdin")
	analyzeCmd.Flags().StringVarP(&analyzeOpts.AuditFile, "audit", "a", "test-outputs/npm-audit.json", "Path to npm audit --json output, - for stdin")
	analyzeCmd.Flags().StringVar(&analyzeOpts.NpmDir, "npm-dir", "", "Run npm in this project directory instead of reading files")
	analyzeCmd.Flags().StringVarP(&analyzeOpts.Format, "format", "f", FormatText, "Output format (text, json)")
	analyzeCmd.Flags().BoolVar(&analyzeOpts.Exact, "exact", false, "Match package names exactly instead of by substring")
	analyzeCmd.Flags().IntVar(&analyzeOpts.MaxDepth, "max-depth", 0, "Maximum tree depth to search (0 for no limit)")
	analyzeCmd.Flags().IntVar(&analyzeOpts.MaxPaths, "max-paths", report.DefaultMaxPaths, "Dependency chains shown per transitive finding")
	analyzeCmd.Flags().IntVar(&analyzeOpts.Workers, "workers", classify.DefaultWorkers, "Audit entries classified concurrently")
	analyzeCmd.Flags().BoolVar(&analyzeOpts.Store, "store", false, "Persist the analysis in ArangoDB")
	analyzeCmd.Flags().StringVar(&analyzeOpts.Project, "project", "", "Project name recorded with the analysis (defaults to the tree root)")
	analyzeCmd.Flags().StringVar(&analyzeOpts.ProjectVersion, "project-version", "", "Project version recorded with the analysis")
	analyzeCmd.Flags().StringVar(&analyzeOpts.FailOn, "fail-on", "", "Exit with code 2 when a finding reaches this severity (low, moderate, high, critical)")
}

func runAnalyze(cmd *cobra.Command, args []string) error {
	cfg, logger, err := setup()
	if err != nil {
		return err
	}
	defer logger.Sync()

	analyzeOpts.apply(cmd, cfg)
	analyzeOpts.Stdin = cmd.InOrStdin()

	var store database.Store
	if analyzeOpts.Store || cfg.Database.Enabled {
		db, err := database.InitializeDatabase(cmd.Context(), cfg.Database, logger)
		if err != nil {
			return err
		}
		store = db
	}

	return analyzeOpts.run(cmd.Context(), cfg, store, logger, cmd.OutOrStdout())
}

// apply copies the flags the user set over the configuration
func (o *analyzeOptions) apply(cmd *cobra.Command, cfg *config.Config) {
	flags := cmd.Flags()
	if flags.Changed("exact") {
		if o.Exact {
			cfg.Analysis.Match = config.MatchExact
		} else {
			cfg.Analysis.Match = config.MatchSubstring
		}
	}
	if flags.Changed("max-depth") {
		cfg.Analysis.MaxDepth = o.MaxDepth
	}
	if flags.Changed("max-paths") {
		cfg.Analysis.MaxPaths = o.MaxPaths
	}
	if flags.Changed("workers") {
		cfg.Analysis.Workers = o.Workers
	}
}

// run loads the inputs, classifies the audit, optionally stores the result and writes the report
func (o *analyzeOptions) run(ctx context.Context, cfg *config.Config, store database.Store, logger *zap.Logger, out io.Writer) error {
	if o.Format != FormatText && o.Format != FormatJSON {
		return fmt.Errorf("unsupported format %q (expected %s or %s)", o.Format, FormatText, FormatJSON)
	}

	tree, audit, err := o.load(ctx, cfg, logger)
	if err != nil {
		return err
	}

	classifier := classify.NewFromConfig(cfg.Analysis, logger)
	result, err := classifier.AnalyzeAudit(ctx, audit, tree, cfg.Analysis.Workers)
	if err != nil {
		return fmt.Errorf("analysis failed: %w", err)
	}

	analysis := result.Analysis(
		util.GetStringOrDefault(o.Project, tree.DisplayName()),
		util.GetStringOrDefault(o.ProjectVersion, tree.Version))

	if store != nil {
		key, err := store.SaveAnalysis(ctx, analysis)
		if err != nil {
			return fmt.Errorf("failed to store analysis: %w", err)
		}
		analysis.Key = key
		logger.Info("analysis stored", zap.String("key", key))
	}

	switch o.Format {
	case FormatJSON:
		err = report.WriteJSON(out, analysis)
	default:
		err = report.Render(out, analysis, report.Options{MaxPaths: cfg.Analysis.MaxPaths})
	}
	if err != nil {
		return fmt.Errorf("failed to write report: %w", err)
	}

	if report.Exceeds(analysis, o.FailOn) {
		return &ThresholdError{Severity: o.FailOn}
	}
	return nil
}

// load reads the tree and audit from files, or from npm when a project directory is set
func (o *analyzeOptions) load(ctx context.Context, cfg *config.Config, logger *zap.Logger) (*model.DependencyNode, *model.AuditReport, error) {
	if o.NpmDir == "" {
		if o.TreeFile == "-" || o.AuditFile == "-" {
			return o.loadStdin(o.Stdin)
		}
		if !util.FileExists(o.TreeFile) {
			return nil, nil, fmt.Errorf("dependency tree not found: %s (generate it with 'npm ls --all --json')", o.TreeFile)
		}
		if !util.FileExists(o.AuditFile) {
			return nil, nil, fmt.Errorf("audit report not found: %s (generate it with 'npm audit --json')", o.AuditFile)
		}
		tree, err := loader.LoadTree(o.TreeFile)
		if err != nil {
			return nil, nil, err
		}
		audit, err := loader.LoadAudit(o.AuditFile)
		if err != nil {
			return nil, nil, err
		}
		return tree, audit, nil
	}

	if cfg.Npm.TimeoutSeconds > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, cfg.NpmTimeout())
		defer cancel()
	}

	runner := npm.NewRunner(o.NpmDir, logger)
	runner.Binary = cfg.Npm.Binary

	logger.Info("running npm", zap.String("dir", o.NpmDir))
	tree, err := runner.Tree(ctx)
	if err != nil {
		return nil, nil, err
	}
	audit, err := runner.Audit(ctx)
	if err != nil {
		return nil, nil, err
	}
	return tree, audit, nil
}

// loadStdin reads the one input given as "-" from r and the other from its file
func (o *analyzeOptions) loadStdin(r io.Reader) (*model.DependencyNode, *model.AuditReport, error) {
	if r == nil {
		return nil, nil, fmt.Errorf("no stdin available")
	}
	if o.TreeFile == "-" && o.AuditFile == "-" {
		return nil, nil, fmt.Errorf("only one of --tree and --audit can be read from stdin")
	}
	if o.TreeFile == "-" {
		tree, err := loader.ReadTree(r)
		if err != nil {
			return nil, nil, err
		}
		audit, err := loader.LoadAudit(o.AuditFile)
		if err != nil {
			return nil, nil, err
		}
		return tree, audit, nil
	}
	audit, err := loader.ReadAudit(r)
	if err != nil {
		return nil, nil, err
	}
	tree, err := loader.LoadTree(o.TreeFile)
	if err != nil {
		return nil, nil, err
	}
	return tree, audit, nil
}

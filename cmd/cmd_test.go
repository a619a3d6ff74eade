package cmd

import (
	"bytes"
	"context"
	"encoding/json"
	"net"
	"path/filepath"
	"testing"

	"github.com/ortelius/depchain/config"
	"github.com/ortelius/depchain/database"
	"github.com/ortelius/depchain/model"
	"github.com/ortelius/depchain/server"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

var (
	treeFixture  = filepath.Join("..", "loader", "testdata", "dependency-tree.json")
	auditFixture = filepath.Join("..", "loader", "testdata", "npm-audit.json")
)

func fixtureOptions(format string) analyzeOptions {
	return analyzeOptions{
		TreeFile:  treeFixture,
		AuditFile: auditFixture,
		Format:    format,
	}
}

func TestAnalyzeText(t *testing.T) {
	var out bytes.Buffer
	opts := fixtureOptions(FormatText)

	err := opts.run(context.Background(), config.Default(), nil, zap.NewNop(), &out)
	require.NoError(t, err)

	text := out.String()
	assert.Contains(t, text, "Project: vulnerable-app")
	assert.Contains(t, text, "Total vulnerabilities found: 6")
	assert.Contains(t, text, "DIRECT DEPENDENCIES (1 vulnerabilities)")
	assert.Contains(t, text, "TRANSITIVE DEPENDENCIES (3 vulnerabilities)")
	assert.Contains(t, text, "NOT FOUND IN TREE (1 vulnerabilities)")
	assert.Contains(t, text, "vulnerable-app → webpack@4.46.0 → mkdirp@0.5.5 → minimist@1.2.5")
	assert.Contains(t, text, "Audit entries skipped (no via information): 1")
}

func TestAnalyzeJSON(t *testing.T) {
	var out bytes.Buffer
	opts := fixtureOptions(FormatJSON)
	opts.Project = "web"
	opts.ProjectVersion = "9.9.9"

	err := opts.run(context.Background(), config.Default(), nil, zap.NewNop(), &out)
	require.NoError(t, err)

	var analysis model.Analysis
	require.NoError(t, json.Unmarshal(out.Bytes(), &analysis))
	assert.Equal(t, "web", analysis.Project)
	assert.Equal(t, "9.9.9", analysis.Version)
	assert.Equal(t, 5, analysis.Summary.Total)
	assert.Equal(t, 1, analysis.Summary.Direct)
	assert.Equal(t, 3, analysis.Summary.Transitive)
	assert.Equal(t, 1, analysis.Summary.NotFound)
	assert.Equal(t, []string{"orphan"}, analysis.Summary.Skipped)

	// body-parser's advisory comes through qs
	byName := make(map[string]int)
	for _, f := range analysis.Findings {
		byName[f.Package]++
	}
	assert.Equal(t, 2, byName["qs"])
}

func TestAnalyzeStoresResult(t *testing.T) {
	store := database.NewMemoryStore()
	var out bytes.Buffer
	opts := fixtureOptions(FormatJSON)

	require.NoError(t, opts.run(context.Background(), config.Default(), store, zap.NewNop(), &out))

	var analysis model.Analysis
	require.NoError(t, json.Unmarshal(out.Bytes(), &analysis))
	require.NotEmpty(t, analysis.Key)

	stored, err := store.GetAnalysis(context.Background(), analysis.Key)
	require.NoError(t, err)
	require.NotNil(t, stored)
	assert.Len(t, stored.Findings, 5)
}

func TestAnalyzeFailOn(t *testing.T) {
	var out bytes.Buffer
	opts := fixtureOptions(FormatText)
	opts.FailOn = "critical"

	err := opts.run(context.Background(), config.Default(), nil, zap.NewNop(), &out)
	var threshold *ThresholdError
	require.ErrorAs(t, err, &threshold)
	assert.Equal(t, "critical", threshold.Severity)
	assert.NotEmpty(t, out.String())
}

func TestAnalyzeExactMatching(t *testing.T) {
	var out bytes.Buffer
	cfg := config.Default()
	cfg.Analysis.Match = config.MatchExact
	opts := fixtureOptions(FormatJSON)

	require.NoError(t, opts.run(context.Background(), cfg, nil, zap.NewNop(), &out))

	var analysis model.Analysis
	require.NoError(t, json.Unmarshal(out.Bytes(), &analysis))
	assert.Equal(t, 1, analysis.Summary.Direct)
	assert.Equal(t, 3, analysis.Summary.Transitive)
}

func TestAnalyzeErrors(t *testing.T) {
	var out bytes.Buffer

	opts := fixtureOptions("yaml")
	assert.Error(t, opts.run(context.Background(), config.Default(), nil, zap.NewNop(), &out))

	opts = fixtureOptions(FormatText)
	opts.TreeFile = filepath.Join("testdata", "missing.json")
	assert.Error(t, opts.run(context.Background(), config.Default(), nil, zap.NewNop(), &out))

	opts = fixtureOptions(FormatText)
	opts.AuditFile = filepath.Join("testdata", "missing.json")
	assert.Error(t, opts.run(context.Background(), config.Default(), nil, zap.NewNop(), &out))
}

func TestAnalyzeFlagsOverrideConfig(t *testing.T) {
	cfg := config.Default()
	flags := analyzeCmd.Flags()
	require.NoError(t, flags.Set("exact", "true"))
	require.NoError(t, flags.Set("max-depth", "2"))
	t.Cleanup(func() {
		_ = flags.Set("exact", "false")
		_ = flags.Set("max-depth", "0")
		flags.Lookup("exact").Changed = false
		flags.Lookup("max-depth").Changed = false
	})

	analyzeOpts.apply(analyzeCmd, cfg)

	assert.Equal(t, config.MatchExact, cfg.Analysis.Match)
	assert.Equal(t, 2, cfg.Analysis.MaxDepth)
	assert.Equal(t, 3, cfg.Analysis.MaxPaths)
}

// startServer serves an in-memory depchain API on a random local port
func startServer(t *testing.T) string {
	t.Helper()

	app, err := server.New(config.Default(), database.NewMemoryStore(), nil, nil).App()
	require.NoError(t, err)

	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)

	go func() { _ = app.Listener(ln) }()
	t.Cleanup(func() { _ = app.Shutdown() })

	return "http://" + ln.Addr().String()
}

func TestUploadListGet(t *testing.T) {
	url := startServer(t)

	var out bytes.Buffer
	rootCmd.SetOut(&out)
	t.Cleanup(func() { rootCmd.SetOut(nil) })

	rootCmd.SetArgs([]string{"upload", "--server", url, "--tree", treeFixture, "--audit", auditFixture, "--project-version", "1.0.0"})
	require.NoError(t, rootCmd.ExecuteContext(context.Background()))
	assert.Contains(t, out.String(), "✓ Stored analysis 1")
	assert.Contains(t, out.String(), "5 findings: 1 direct, 3 transitive, 1 not found")

	out.Reset()
	rootCmd.SetArgs([]string{"list", "--server", url})
	require.NoError(t, rootCmd.ExecuteContext(context.Background()))
	assert.Contains(t, out.String(), "Found 1 analysis(es)")
	assert.Contains(t, out.String(), "vulnerable-app")

	out.Reset()
	rootCmd.SetArgs([]string{"get", "1", "--server", url})
	require.NoError(t, rootCmd.ExecuteContext(context.Background()))
	assert.Contains(t, out.String(), "Analysis: 1")
	assert.Contains(t, out.String(), "REMEDIATION SUMMARY")

	out.Reset()
	rootCmd.SetArgs([]string{"get", "42", "--server", url})
	assert.Error(t, rootCmd.ExecuteContext(context.Background()))
}

func TestThresholdError(t *testing.T) {
	err := &ThresholdError{Severity: "high"}
	assert.Equal(t, "found vulnerabilities of severity high or higher", err.Error())
}

func TestAnalyzeTreeFromStdin(t *testing.T) {
	var out bytes.Buffer
	opts := fixtureOptions(FormatJSON)
	opts.TreeFile = "-"
	opts.Stdin = bytes.NewBufferString(`{"name": "piped", "dependencies": {"axios": {"version": "0.21.1"}}}`)

	require.NoError(t, opts.run(context.Background(), config.Default(), nil, zap.NewNop(), &out))

	var analysis model.Analysis
	require.NoError(t, json.Unmarshal(out.Bytes(), &analysis))
	assert.Equal(t, "piped", analysis.Project)
	assert.Equal(t, 1, analysis.Summary.Direct)

	opts.AuditFile = "-"
	assert.Error(t, opts.run(context.Background(), config.Default(), nil, zap.NewNop(), &out))
}

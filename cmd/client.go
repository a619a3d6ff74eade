package cmd

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"os"

	"github.com/ortelius/depchain/loader"
	"github.com/ortelius/depchain/model"
	"github.com/ortelius/depchain/report"
	"github.com/spf13/cobra"
)

var (
	uploadTree    string
	uploadAudit   string
	uploadProject string
	uploadVersion string
	listLimit     int
	getFormat     string
	getMaxPaths   int
	getOutputFile string
)

// uploadCmd represents the upload command
var uploadCmd = &cobra.Command{
	Use:   "upload",
	Short: "Send a dependency tree and audit report to a depchain server",
	Long: `Posts the npm ls and npm audit output to a running depchain server, which
analyzes and stores it.`,
	Args: cobra.NoArgs,
	RunE: runUpload,
}

// listCmd represents the list command
var listCmd = &cobra.Command{
	Use:   "list",
	Short: "List stored analyses",
	Long:  `Retrieves and displays the stored analyses with their key, project, version and finding count.`,
	Args:  cobra.NoArgs,
	RunE:  runList,
}

// getCmd represents the get command
var getCmd = &cobra.Command{
	Use:   "get [key]",
	Short: "Get a stored analysis by key",
	Long:  `Retrieves a stored analysis and prints its remediation report.`,
	Args:  cobra.ExactArgs(1),
	RunE:  runGet,
}

func init() {
	rootCmd.AddCommand(uploadCmd)
	rootCmd.AddCommand(listCmd)
	rootCmd.AddCommand(getCmd)

	uploadCmd.Flags().StringVarP(&uploadTree, "tree", "t", "test-outputs/dependency-tree.json", "Path to npm ls --all --json output")
	uploadCmd.Flags().StringVarP(&uploadAudit, "audit", "a", "test-outputs/npm-audit.json", "Path to npm audit --json output")
	uploadCmd.Flags().StringVar(&uploadProject, "project", "", "Project name (defaults to the tree root)")
	uploadCmd.Flags().StringVar(&uploadVersion, "project-version", "", "Project version")

	listCmd.Flags().IntVarP(&listLimit, "limit", "l", 100, "Maximum number of analyses to list")

	getCmd.Flags().StringVarP(&getFormat, "format", "f", FormatText, "Output format (text, json)")
	getCmd.Flags().IntVar(&getMaxPaths, "max-paths", report.DefaultMaxPaths, "Dependency chains shown per transitive finding")
	getCmd.Flags().StringVarP(&getOutputFile, "output", "o", "", "Write the analysis JSON to file (optional)")
}

func runUpload(cmd *cobra.Command, args []string) error {
	tree, err := loader.LoadTree(uploadTree)
	if err != nil {
		return err
	}
	audit, err := loader.LoadAudit(uploadAudit)
	if err != nil {
		return err
	}

	request := model.AnalysisRequest{
		Project: uploadProject,
		Version: uploadVersion,
		Tree:    tree,
		Audit:   audit,
	}

	if verbose {
		fmt.Fprintf(cmd.ErrOrStderr(), "Uploading %d audit entries for %s\n", len(audit.Vulnerabilities), tree.DisplayName())
	}

	resp, err := postAnalysis(serverURL, request)
	if err != nil {
		return fmt.Errorf("failed to upload analysis: %w", err)
	}

	out := cmd.OutOrStdout()
	if resp.AnalysisKey != "" {
		fmt.Fprintf(out, "✓ Stored analysis %s\n", resp.AnalysisKey)
	} else {
		fmt.Fprintf(out, "✓ %s\n", resp.Message)
	}
	if resp.Analysis != nil {
		s := resp.Analysis.Summary
		fmt.Fprintf(out, "  %d findings: %d direct, %d transitive, %d not found\n", s.Total, s.Direct, s.Transitive, s.NotFound)
	}
	return nil
}

func postAnalysis(serverURL string, payload model.AnalysisRequest) (*model.AnalysisResponse, error) {
	jsonData, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal JSON: %w", err)
	}

	resp, err := http.Post(serverURL+"/api/v1/analyses", "application/json", bytes.NewBuffer(jsonData))
	if err != nil {
		return nil, fmt.Errorf("HTTP request failed: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read response: %w", err)
	}

	if resp.StatusCode != http.StatusCreated && resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("server returned status %d: %s", resp.StatusCode, string(body))
	}

	var result model.AnalysisResponse
	if err := json.Unmarshal(body, &result); err != nil {
		return nil, fmt.Errorf("failed to parse response: %w", err)
	}
	if !result.Success {
		return nil, fmt.Errorf("API returned success=false: %s", result.Message)
	}
	return &result, nil
}

func runList(cmd *cobra.Command, args []string) error {
	body, err := getJSON(fmt.Sprintf("%s/api/v1/analyses?limit=%d", serverURL, listLimit))
	if err != nil {
		return err
	}

	var items []model.AnalysisListItem
	if err := json.Unmarshal(body, &items); err != nil {
		return fmt.Errorf("failed to parse response: %w", err)
	}

	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "Found %d analysis(es):\n\n", len(items))
	fmt.Fprintf(out, "%-20s %-30s %-15s %-8s %s\n", "KEY", "PROJECT", "VERSION", "FINDINGS", "CREATED")
	fmt.Fprintln(out, "─────────────────────────────────────────────────────────────────────────────────────────")

	for _, item := range items {
		fmt.Fprintf(out, "%-20s %-30s %-15s %-8d %s\n",
			item.Key, item.Project, item.Version, item.Total, item.CreatedAt.Format("2006-01-02 15:04:05"))
	}
	return nil
}

func runGet(cmd *cobra.Command, args []string) error {
	key := args[0]

	body, err := getJSON(serverURL + "/api/v1/analyses/" + url.PathEscape(key))
	if err != nil {
		return err
	}

	var analysis model.Analysis
	if err := json.Unmarshal(body, &analysis); err != nil {
		return fmt.Errorf("failed to parse response: %w", err)
	}

	if getOutputFile != "" {
		var buf bytes.Buffer
		if err := report.WriteJSON(&buf, &analysis); err != nil {
			return err
		}
		if err := os.WriteFile(getOutputFile, buf.Bytes(), 0644); err != nil {
			return fmt.Errorf("failed to write analysis to file: %w", err)
		}
		fmt.Fprintf(cmd.OutOrStdout(), "Analysis written to: %s\n", getOutputFile)
		return nil
	}

	out := cmd.OutOrStdout()
	switch getFormat {
	case FormatJSON:
		return report.WriteJSON(out, &analysis)
	case FormatText:
		fmt.Fprintf(out, "Analysis: %s\n", analysis.Key)
		fmt.Fprintf(out, "Project: %s %s\n", analysis.Project, analysis.Version)
		fmt.Fprintf(out, "Created: %s\n\n", analysis.CreatedAt.Format("2006-01-02 15:04:05"))
		return report.Render(out, &analysis, report.Options{MaxPaths: getMaxPaths})
	default:
		return fmt.Errorf("unsupported format %q (expected %s or %s)", getFormat, FormatText, FormatJSON)
	}
}

// getJSON fetches target and returns the body of a 200 response
func getJSON(target string) ([]byte, error) {
	resp, err := http.Get(target)
	if err != nil {
		return nil, fmt.Errorf("HTTP request failed: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read response: %w", err)
	}

	if resp.StatusCode == http.StatusNotFound {
		return nil, fmt.Errorf("not found: %s", target)
	}
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("server returned status %d: %s", resp.StatusCode, string(body))
	}
	return body, nil
}

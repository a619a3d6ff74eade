// Package cmd implements the depchain command line interface.
package cmd

import (
	"context"
	"errors"
	"fmt"
	"os"

	"github.com/ortelius/depchain/config"
	"github.com/ortelius/depchain/util"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

var (
	configFile string
	serverURL  string
	verbose    bool
)

// rootCmd represents the base command
var rootCmd = &cobra.Command{
	Use:   "depchain",
	Short: "Dependency chain analyzer for npm vulnerability remediation",
	Long: `Maps every vulnerable package reported by npm audit to the dependency
chains that bring it into a project, classifies it as a direct or
transitive dependency and recommends how to remediate it.`,
	SilenceUsage:  true,
	SilenceErrors: true,
}

func init() {
	// Persistent flags available to all commands
	rootCmd.PersistentFlags().StringVar(&configFile, "config", "", "Path to a YAML or TOML config file")
	rootCmd.PersistentFlags().StringVar(&serverURL, "server", "http://localhost:3000", "depchain API server URL")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "Enable verbose output")
}

// ThresholdError is returned when findings reach the --fail-on severity
type ThresholdError struct {
	Severity string
}

func (e *ThresholdError) Error() string {
	return fmt.Sprintf("found vulnerabilities of severity %s or higher", e.Severity)
}

// Execute runs the root command. Threshold failures exit with 2, other errors with 1.
func Execute() {
	if err := rootCmd.ExecuteContext(context.Background()); err != nil {
		fmt.Fprintln(os.Stderr, err)
		var threshold *ThresholdError
		if errors.As(err, &threshold) {
			os.Exit(2)
		}
		os.Exit(1)
	}
}

// setup loads the configuration and builds the logger shared by the commands
func setup() (*config.Config, *zap.Logger, error) {
	cfg, err := config.Load(configFile)
	if err != nil {
		return nil, nil, err
	}
	return cfg, util.InitLogger(verbose), nil
}

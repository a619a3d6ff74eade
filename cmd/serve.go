package cmd

import (
	"github.com/ortelius/depchain/classify"
	"github.com/ortelius/depchain/database"
	"github.com/ortelius/depchain/server"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

var (
	servePort   string
	serveMemory bool
)

// serveCmd represents the serve command
var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the depchain HTTP API",
	Long: `Serves the analysis pipeline over HTTP. Analyses are persisted in ArangoDB
when the database is enabled, or in process memory with --memory.`,
	Args: cobra.NoArgs,
	RunE: runServe,
}

func init() {
	rootCmd.AddCommand(serveCmd)
	serveCmd.Flags().StringVarP(&servePort, "port", "p", "", "Listen port (overrides config and MS_PORT)")
	serveCmd.Flags().BoolVar(&serveMemory, "memory", false, "Keep analyses in memory instead of ArangoDB")
}

func runServe(cmd *cobra.Command, args []string) error {
	cfg, logger, err := setup()
	if err != nil {
		return err
	}
	defer logger.Sync()

	if servePort != "" {
		cfg.Server.Port = servePort
	}

	var store database.Store
	switch {
	case serveMemory:
		store = database.NewMemoryStore()
	case cfg.Database.Enabled:
		db, err := database.InitializeDatabase(cmd.Context(), cfg.Database, logger)
		if err != nil {
			return err
		}
		store = db
	default:
		logger.Warn("persistence disabled, analyses will not be stored")
	}

	srv := server.New(cfg, store, classify.NewFromConfig(cfg.Analysis, logger), logger)
	if err := srv.Listen(); err != nil {
		logger.Error("server stopped", zap.Error(err))
		return err
	}
	return nil
}

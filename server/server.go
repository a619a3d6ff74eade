// Package server exposes the analysis pipeline and stored analyses over HTTP,
// including the GraphQL API.
package server

import (
	"fmt"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/cors"
	"github.com/gofiber/fiber/v2/middleware/logger"
	fiberrecover "github.com/gofiber/fiber/v2/middleware/recover"
	"github.com/graphql-go/graphql"
	"github.com/ortelius/depchain/classify"
	"github.com/ortelius/depchain/config"
	"github.com/ortelius/depchain/database"
	gqlschema "github.com/ortelius/depchain/graphql"
	"github.com/ortelius/depchain/model"
	"github.com/ortelius/depchain/util"
	"go.uber.org/zap"
)

// DefaultListLimit is the number of analyses returned by the list endpoint when no limit is given
const DefaultListLimit = 100

// Server holds the dependencies of the HTTP handlers
type Server struct {
	cfg        *config.Config
	store      database.Store // nil when persistence is disabled
	classifier *classify.Classifier
	logger     *zap.Logger
}

// New creates a Server. store may be nil, in which case analyses are not persisted.
func New(cfg *config.Config, store database.Store, classifier *classify.Classifier, logger *zap.Logger) *Server {
	if cfg == nil {
		cfg = config.Default()
	}
	if classifier == nil {
		classifier = classify.NewFromConfig(cfg.Analysis, logger)
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Server{cfg: cfg, store: store, classifier: classifier, logger: logger}
}

// App builds the fiber application with middleware and routes
func (s *Server) App() (*fiber.App, error) {
	app := fiber.New(fiber.Config{
		AppName:     "depchain API v1.0",
		BodyLimit:   s.cfg.Server.BodyLimit,
		ReadTimeout: time.Second * 60,
	})

	// Middleware
	app.Use(fiberrecover.New())
	app.Use(logger.New())
	app.Use(cors.New())

	// Health check endpoint
	app.Get("/", func(c *fiber.Ctx) error {
		return c.JSON(fiber.Map{
			"status":      "healthy",
			"persistence": s.store != nil,
		})
	})

	api := app.Group("/api/v1")

	api.Post("/analyses", s.PostAnalysis)
	api.Get("/analyses", s.requireStore, s.ListAnalyses)
	api.Get("/analyses/:key", s.requireStore, s.GetAnalysis)

	if s.store != nil {
		schema, err := gqlschema.CreateSchema(s.store)
		if err != nil {
			return nil, fmt.Errorf("failed to create GraphQL schema: %w", err)
		}
		api.Post("/graphql", GraphQLHandler(schema, s.logger))
	} else {
		api.Post("/graphql", s.requireStore)
	}

	return app, nil
}

// Listen builds the app and serves it on the configured port until it fails
func (s *Server) Listen() error {
	app, err := s.App()
	if err != nil {
		return err
	}

	s.logger.Info("starting server",
		zap.String("port", s.cfg.Server.Port),
		zap.Bool("persistence", s.store != nil))
	s.logger.Info("GraphQL endpoint available at /api/v1/graphql")

	return app.Listen(":" + s.cfg.Server.Port)
}

func (s *Server) requireStore(c *fiber.Ctx) error {
	if s.store == nil {
		return c.Status(fiber.StatusServiceUnavailable).JSON(model.AnalysisResponse{
			Success: false,
			Message: "Persistence is not configured",
		})
	}
	return c.Next()
}

// GraphQLHandler handles GraphQL requests
func GraphQLHandler(schema graphql.Schema, log *zap.Logger) fiber.Handler {
	return func(c *fiber.Ctx) error {
		var params struct {
			Query         string                 `json:"query"`
			OperationName string                 `json:"operationName"`
			Variables     map[string]interface{} `json:"variables"`
		}

		if err := c.BodyParser(&params); err != nil {
			return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
				"errors": []map[string]interface{}{
					{
						"message": "Invalid request body",
					},
				},
			})
		}

		result := graphql.Do(graphql.Params{
			Schema:         schema,
			RequestString:  params.Query,
			VariableValues: params.Variables,
			OperationName:  params.OperationName,
			Context:        c.UserContext(),
		})

		if len(result.Errors) > 0 {
			log.Warn("GraphQL errors", zap.Any("errors", result.Errors))
		}

		return c.JSON(result)
	}
}

// PostAnalysis classifies the posted audit against the posted tree and stores
// the result when persistence is configured
func (s *Server) PostAnalysis(c *fiber.Ctx) error {
	var req model.AnalysisRequest

	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(model.AnalysisResponse{
			Success: false,
			Message: "Invalid request body: " + err.Error(),
		})
	}

	if req.Tree == nil {
		return c.Status(fiber.StatusBadRequest).JSON(model.AnalysisResponse{
			Success: false,
			Message: "Dependency tree is required",
		})
	}
	if req.Audit == nil {
		return c.Status(fiber.StatusBadRequest).JSON(model.AnalysisResponse{
			Success: false,
			Message: "Audit report is required",
		})
	}

	req.Project = util.GetStringOrDefault(req.Project, req.Tree.DisplayName())
	req.Version = util.GetStringOrDefault(req.Version, req.Tree.Version)

	ctx := c.UserContext()

	result, err := s.classifier.AnalyzeAudit(ctx, req.Audit, req.Tree, s.cfg.Analysis.Workers)
	if err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(model.AnalysisResponse{
			Success: false,
			Message: "Failed to analyze audit: " + err.Error(),
		})
	}
	analysis := result.Analysis(req.Project, req.Version)

	if s.store == nil {
		return c.Status(fiber.StatusOK).JSON(model.AnalysisResponse{
			Success:  true,
			Message:  fmt.Sprintf("Analyzed %d vulnerabilities (not stored)", analysis.Summary.Total),
			Analysis: analysis,
		})
	}

	key, err := s.store.SaveAnalysis(ctx, analysis)
	if err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(model.AnalysisResponse{
			Success: false,
			Message: "Failed to save analysis: " + err.Error(),
		})
	}
	analysis.Key = key

	return c.Status(fiber.StatusCreated).JSON(model.AnalysisResponse{
		Success:     true,
		Message:     fmt.Sprintf("Analyzed and stored %d vulnerabilities", analysis.Summary.Total),
		AnalysisKey: key,
		Analysis:    analysis,
	})
}

// ListAnalyses returns the stored analyses, newest first
func (s *Server) ListAnalyses(c *fiber.Ctx) error {
	limit := c.QueryInt("limit", DefaultListLimit)
	if limit <= 0 {
		limit = DefaultListLimit
	}

	items, err := s.store.ListAnalyses(c.UserContext(), limit)
	if err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(model.AnalysisResponse{
			Success: false,
			Message: "Failed to list analyses: " + err.Error(),
		})
	}
	return c.JSON(items)
}

// GetAnalysis returns one stored analysis with its findings
func (s *Server) GetAnalysis(c *fiber.Ctx) error {
	key := c.Params("key")

	analysis, err := s.store.GetAnalysis(c.UserContext(), key)
	if err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(model.AnalysisResponse{
			Success: false,
			Message: "Failed to get analysis: " + err.Error(),
		})
	}
	if analysis == nil {
		return c.Status(fiber.StatusNotFound).JSON(model.AnalysisResponse{
			Success: false,
			Message: "Analysis not found: " + key,
		})
	}
	return c.JSON(analysis)
}

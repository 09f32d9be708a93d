// Package server exposes the processing pipeline over HTTP.
package server

import (
	"log/slog"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/qmlabs-dsdi/coa-processor/internal/common"
	"github.com/qmlabs-dsdi/coa-processor/internal/pipeline"
	"github.com/qmlabs-dsdi/coa-processor/internal/repository"
	"github.com/qmlabs-dsdi/coa-processor/internal/source"
)

// vaultSource is a document source that holds a remote session.
type vaultSource interface {
	source.Adapter
	Close()
}

// Server holds the wired collaborators behind the HTTP handlers.
type Server struct {
	cfg       *common.Config
	pool      *pgxpool.Pool
	orch      *pipeline.Orchestrator
	docs      repository.DocumentRepository
	fields    repository.FieldRepository
	compounds repository.CompoundRepository
	templates repository.TemplateRepository
	logger    *slog.Logger

	// Source factories, swappable in tests.
	newLocal func() source.Adapter
	newVault func(docNumbers []string) vaultSource
}

func New(
	cfg *common.Config,
	pool *pgxpool.Pool,
	orch *pipeline.Orchestrator,
	docs repository.DocumentRepository,
	fields repository.FieldRepository,
	compounds repository.CompoundRepository,
	templates repository.TemplateRepository,
	logger *slog.Logger,
) *Server {
	s := &Server{
		cfg:       cfg,
		pool:      pool,
		orch:      orch,
		docs:      docs,
		fields:    fields,
		compounds: compounds,
		templates: templates,
		logger:    logger,
	}
	s.newLocal = func() source.Adapter {
		return source.NewLocalAdapter(cfg.Processing.PDFDirectory, logger)
	}
	s.newVault = func(docNumbers []string) vaultSource {
		return source.NewVaultAdapter(cfg.Vault, docNumbers, logger)
	}
	return s
}

// Router builds the gin engine with all routes mounted.
func (s *Server) Router() *gin.Engine {
	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(requestLogger(s.logger))
	router.Use(cors.New(cors.Config{
		AllowOrigins:     s.cfg.Server.AllowedOrigins,
		AllowMethods:     []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowHeaders:     []string{"Authorization", "Content-Type", "X-Requested-With"},
		AllowCredentials: true,
	}))

	router.GET("/health", s.health)
	router.GET("/health/ready", s.ready)

	api := router.Group("/api/v1")
	api.Use(requireAuth(s.cfg.Auth))
	{
		docs := api.Group("/documents")
		docs.POST("/upload", s.uploadDocument)
		docs.GET("/:id", s.getDocument)
		docs.POST("/process-directory", s.processDirectory)
		docs.POST("/process-from-vault", s.processFromVault)
		docs.POST("/process-hybrid", s.processHybrid)
		docs.GET("/check-cache", s.checkCache)
		docs.DELETE("/clear-cache", s.clearCache)
		docs.GET("/cache-status", s.cacheStatus)
		docs.GET("/batch-analysis/:compound_id", s.batchAnalysis)
		docs.GET("/batch-table", s.batchTable)

		compounds := api.Group("/compounds")
		compounds.GET("", s.listCompounds)
		compounds.POST("", s.createCompound)
		compounds.GET("/:id", s.getCompound)
		compounds.PUT("/:id", s.updateCompound)
		compounds.DELETE("/:id", s.deleteCompound)

		templates := api.Group("/templates")
		templates.GET("", s.listTemplates)
		templates.POST("", s.createTemplate)
		templates.GET("/:id", s.getTemplate)
		templates.PUT("/:id", s.updateTemplate)
		templates.DELETE("/:id", s.deleteTemplate)
	}

	return router
}

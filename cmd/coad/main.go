package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"

	"github.com/qmlabs-dsdi/coa-processor/internal/common"
	"github.com/qmlabs-dsdi/coa-processor/internal/llm/openai"
	"github.com/qmlabs-dsdi/coa-processor/internal/pdftext"
	"github.com/qmlabs-dsdi/coa-processor/internal/pipeline"
	"github.com/qmlabs-dsdi/coa-processor/internal/repository"
	"github.com/qmlabs-dsdi/coa-processor/internal/server"
)

func main() {
	// .env is optional; real deployments set the environment directly.
	_ = godotenv.Load()

	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelInfo}))
	slog.SetDefault(logger)

	cfg := common.LoadConfig()
	if err := cfg.Validate(); err != nil {
		logger.Error("invalid configuration", "error", err)
		os.Exit(1)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	pool, err := repository.Open(ctx, cfg.Database, logger)
	if err != nil {
		logger.Error("failed to open database pool", "error", err)
		os.Exit(1)
	}
	defer repository.Close(pool, logger)

	if err := repository.HealthCheck(ctx, pool, cfg.Database.DialTimeout, logger); err != nil {
		logger.Error("database health check failed", "error", err)
		os.Exit(1)
	}
	if err := repository.Migrate(ctx, pool, logger); err != nil {
		logger.Error("database migration failed", "error", err)
		os.Exit(1)
	}

	docs := repository.NewDocumentRepository(logger)
	fields := repository.NewFieldRepository(logger)
	cache := repository.NewCacheRepository(logger)
	compounds := repository.NewCompoundRepository(logger)
	templates := repository.NewTemplateRepository(logger)
	tx := repository.NewTxRunner(pool, logger)

	extractor := pdftext.NewExtractor(cfg.Processing.PageLimit, logger)
	llmCfg := openai.ConfigFromLLM(cfg.LLM)
	llmCfg.MaxTextChars = cfg.Processing.MaxTextChars
	fieldExtractor := openai.NewClient(llmCfg, logger)

	orch := pipeline.NewOrchestrator(
		extractor, fieldExtractor, tx, pool,
		docs, fields, cache, cfg.Processing, logger)

	srv := server.New(cfg, pool, orch, docs, fields, compounds, templates, logger)
	httpServer := &http.Server{
		Addr:    cfg.Server.Addr,
		Handler: srv.Router(),
	}

	go func() {
		logger.Info("http server listening", "addr", cfg.Server.Addr)
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("http server failed", "error", err)
			stop()
		}
	}()

	<-ctx.Done()
	logger.Info("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer cancel()
	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		logger.Error("http shutdown failed", "error", err)
	}
	logger.Info("stopped")
}

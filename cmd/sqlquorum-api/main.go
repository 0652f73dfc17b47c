package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/sqlquorum/sqlquorum/internal/api"
	"github.com/sqlquorum/sqlquorum/internal/config"
	"github.com/sqlquorum/sqlquorum/internal/database"
	"github.com/sqlquorum/sqlquorum/internal/describe"
	"github.com/sqlquorum/sqlquorum/internal/llm"
	"github.com/sqlquorum/sqlquorum/internal/nl2sql"
	"github.com/sqlquorum/sqlquorum/internal/observability"
	"github.com/sqlquorum/sqlquorum/internal/schema"
	s3store "github.com/sqlquorum/sqlquorum/internal/storage/s3"
)

func main() {
	cfg, err := config.LoadFromEnvFile("sqlquorum-api")
	if err != nil {
		slog.Error("failed to load config", slog.Any("error", err))
		os.Exit(1)
	}

	logger := observability.NewLogger(cfg, os.Stdout)
	opener, err := database.NewOpener(database.Config{
		Driver:          cfg.Database.Driver,
		DataDir:         cfg.Database.DataDir,
		DSNTemplate:     cfg.Database.DSNTemplate,
		MaxOpenConns:    cfg.Database.MaxOpenConns,
		MaxIdleConns:    cfg.Database.MaxIdleConns,
		ConnMaxIdleTime: cfg.Database.ConnMaxIdleTime,
		ConnMaxLifetime: cfg.Database.ConnMaxLifetime,
	})
	if err != nil {
		logger.Error("failed to configure database opener", slog.Any("error", err))
		os.Exit(1)
	}

	var source schema.Source = schema.NewResolver(opener, logger)
	if cfg.Database.SchemaCacheTTL > 0 {
		source = schema.NewCache(source, cfg.Database.SchemaCacheTTL)
	}

	readiness := []api.ReadinessCheck{api.CheckDatabaseConfig(cfg), api.CheckObjectStoreConfig(cfg)}
	var descriptions describe.Store
	switch cfg.Describe.Source {
	case "s3":
		objectStore, err := s3store.New(s3store.Config{
			Endpoint:        cfg.ObjectStore.Endpoint,
			Region:          cfg.ObjectStore.Region,
			Bucket:          cfg.ObjectStore.Bucket,
			AccessKeyID:     cfg.ObjectStore.AccessKeyID,
			SecretAccessKey: cfg.ObjectStore.SecretAccessKey,
			UseSSL:          cfg.ObjectStore.UseSSL,
			Prefix:          cfg.ObjectStore.Prefix,
		})
		if err != nil {
			logger.Error("failed to initialize object store", slog.Any("error", err))
			os.Exit(1)
		}
		descriptions = describe.ObjectStore{Store: objectStore}
		readiness = append(readiness, objectStore.Check)
	case "none":
		descriptions = describe.NoopStore{}
	default:
		root := cfg.Describe.Dir
		if root == "" {
			root = cfg.Database.DataDir
		}
		descriptions = describe.DirStore{Root: root}
	}

	model, err := llm.NewOpenAIClient(llm.OpenAIConfig{
		BaseURL: cfg.AI.BaseURL,
		APIKey:  cfg.AI.APIKey,
		Model:   cfg.AI.Model,
		Timeout: cfg.AI.Timeout,
	})
	if err != nil {
		logger.Error("failed to initialize language model client", slog.Any("error", err))
		os.Exit(1)
	}

	executor := nl2sql.NewPipeline(nl2sql.Deps{
		Schema:       source,
		Opener:       opener,
		Model:        model,
		Descriptions: descriptions,
		Logger:       logger,
	}, cfg)
	logger.Info("pipeline configured",
		slog.Any("stages", executor.StageNames()),
		slog.String("driver", opener.Driver()),
		slog.String("model", model.Model()),
	)

	handler := api.NewHandler(cfg, api.Dependencies{
		Logger:            logger,
		Readiness:         api.CombineReadinessChecks(readiness...),
		DependencyTimeout: 2 * time.Second,
		Generator:         nl2sql.NewService(executor, logger),
		Schema:            source,
	})
	server := &http.Server{
		Addr:         cfg.HTTP.Address,
		Handler:      handler,
		ReadTimeout:  cfg.HTTP.ReadTimeout,
		WriteTimeout: cfg.HTTP.WriteTimeout,
		IdleTimeout:  cfg.HTTP.IdleTimeout,
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	go func() {
		logger.Info("starting api server", slog.String("addr", cfg.HTTP.Address))
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("api server failed", slog.Any("error", err))
			stop()
		}
	}()

	<-ctx.Done()
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	logger.Info("shutting down api server")
	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error("graceful shutdown failed", slog.Any("error", err))
		_ = server.Close()
		os.Exit(1)
	}
}

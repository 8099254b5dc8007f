// Package main is the entry point of the local omikuji HTTP server.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"go.uber.org/zap"

	"github.com/vyrodovalexey/omikuji-api/internal/auth"
	"github.com/vyrodovalexey/omikuji-api/internal/config"
	"github.com/vyrodovalexey/omikuji-api/internal/handler"
	"github.com/vyrodovalexey/omikuji-api/internal/logger"
	"github.com/vyrodovalexey/omikuji-api/internal/model"
	"github.com/vyrodovalexey/omikuji-api/internal/server"
	"github.com/vyrodovalexey/omikuji-api/internal/store"
)

// Table names used by the memory backend when none are configured.
const (
	defaultCategoryTable = "category"
	defaultItemTable     = "item"
)

func main() {
	os.Exit(run())
}

func run() int {
	if err := config.LoadEnvFile(os.Getenv(config.EnvEnvFile)); err != nil {
		basicLogger, _ := zap.NewProduction()
		basicLogger.Fatal("failed to load env file", zap.Error(err))
	}

	cfg, err := config.Load()
	if err != nil {
		basicLogger, _ := zap.NewProduction()
		basicLogger.Fatal("failed to load configuration", zap.Error(err))
	}

	log, err := logger.New(cfg.LogLevel)
	if err != nil {
		basicLogger, _ := zap.NewProduction()
		basicLogger.Fatal("failed to initialize logger", zap.Error(err))
	}
	defer func() {
		_ = log.Sync()
	}()

	log.Info("configuration loaded",
		zap.Int("server_port", cfg.ServerPort),
		zap.String("log_level", cfg.LogLevel),
		zap.Duration("shutdown_timeout", cfg.ShutdownTimeout),
		zap.Bool("metrics_enabled", cfg.MetricsEnabled),
		zap.String("store_backend", cfg.StoreBackend),
		zap.String("auth_mode", cfg.AuthMode),
	)

	authenticator, err := auth.New(cfg)
	if err != nil {
		log.Error("failed to create authenticator", zap.Error(err))
		return 1
	}

	h, err := newHandler(context.Background(), cfg, log)
	if err != nil {
		log.Error("failed to create store", zap.Error(err))
		return 1
	}

	srv := server.New(cfg, log, h, authenticator)

	serverErrors := make(chan error, 1)
	go func() {
		serverErrors <- srv.Start()
	}()

	shutdown := make(chan os.Signal, 1)
	signal.Notify(shutdown, syscall.SIGINT, syscall.SIGTERM)

	select {
	case err := <-serverErrors:
		log.Error("server error", zap.Error(err))
		return 1
	case sig := <-shutdown:
		log.Info("shutdown signal received", zap.String("signal", sig.String()))

		ctx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
		defer cancel()

		if err := srv.Shutdown(ctx); err != nil {
			log.Error("graceful shutdown failed", zap.Error(err))
			return 1
		}
	}

	log.Info("server stopped")
	return 0
}

// newHandler wires the handler to the configured store backend.
func newHandler(ctx context.Context, cfg *config.Config, log *zap.Logger) (*handler.Handler, error) {
	switch cfg.StoreBackend {
	case config.BackendDynamoDB:
		client, err := store.NewDynamoDBClient(ctx, cfg.DynamoDBEndpoint)
		if err != nil {
			return nil, err
		}
		return handler.New(store.NewDynamoStore(client), log), nil

	case config.BackendMemory:
		tables := memoryTables()
		s := store.NewMemoryStore()
		s.CreateTable(tables.Category, model.AttrCategory, "")
		s.CreateTable(tables.Item, model.AttrCategory, model.AttrItemID)
		log.Info("using in-memory store",
			zap.String("category_table", tables.Category),
			zap.String("item_table", tables.Item),
		)
		return handler.New(s, log, handler.WithTablesLoader(func(bool) (config.Tables, error) {
			return tables, nil
		})), nil

	default:
		return nil, fmt.Errorf("%w: %s", config.ErrInvalidStoreBackend, cfg.StoreBackend)
	}
}

// memoryTables resolves table names from the environment with local
// defaults.
func memoryTables() config.Tables {
	tables := config.Tables{
		Category: os.Getenv(config.EnvCategoryTableName),
		Item:     os.Getenv(config.EnvItemTableName),
	}
	if tables.Category == "" {
		tables.Category = defaultCategoryTable
	}
	if tables.Item == "" {
		tables.Item = defaultItemTable
	}
	return tables
}

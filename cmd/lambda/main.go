// Package main is the AWS Lambda entry point of the omikuji backend.
package main

import (
	"context"
	"fmt"
	"os"

	"github.com/aws/aws-lambda-go/lambda"
	"go.uber.org/zap"

	"github.com/vyrodovalexey/omikuji-api/internal/config"
	"github.com/vyrodovalexey/omikuji-api/internal/handler"
	"github.com/vyrodovalexey/omikuji-api/internal/logger"
	"github.com/vyrodovalexey/omikuji-api/internal/store"
)

func main() {
	fn, cleanup, err := setup(context.Background())
	if err != nil {
		fmt.Fprintf(os.Stderr, "omikuji lambda: %v\n", err)
		os.Exit(1)
	}
	defer cleanup()

	lambda.Start(fn)
}

// setup builds the process-wide logger and DynamoDB client once per
// execution environment and selects the handler to serve.
func setup(ctx context.Context) (handler.Func, func(), error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, nil, err
	}

	log, err := logger.New(cfg.LogLevel)
	if err != nil {
		return nil, nil, fmt.Errorf("initialize logger: %w", err)
	}
	cleanup := func() { _ = log.Sync() }

	client, err := store.NewDynamoDBClient(ctx, cfg.DynamoDBEndpoint)
	if err != nil {
		cleanup()
		return nil, nil, err
	}

	h := handler.New(store.NewDynamoStore(client), log)
	fn, err := selectHandler(h, cfg.Handler)
	if err != nil {
		cleanup()
		return nil, nil, err
	}

	log.Info("lambda initialized",
		zap.String("handler", cfg.Handler),
		zap.String("log_level", cfg.LogLevel),
		zap.Bool("custom_endpoint", cfg.DynamoDBEndpoint != ""),
	)

	return fn, cleanup, nil
}

// selectHandler returns the function named by APP_HANDLER, or the router
// when it is empty.
func selectHandler(h *handler.Handler, name string) (handler.Func, error) {
	if name == "" {
		return h.Route, nil
	}

	fn, ok := h.Lookup(name)
	if !ok {
		return nil, fmt.Errorf("unknown handler %q", name)
	}
	return fn, nil
}

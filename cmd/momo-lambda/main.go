package main

import (
	"context"
	"os"

	"github.com/aws/aws-lambda-go/lambda"

	"momo-intent-backend/internal/app"
	"momo-intent-backend/internal/config"
	"momo-intent-backend/internal/handler"
	"momo-intent-backend/internal/logger"
)

func main() {
	ctx := context.Background()

	cfg := config.Load()
	logger.Init(cfg.LogLevel, "json")
	cfg.LogWarnings()

	// The checkpoint is loaded once per execution environment.
	a, err := app.New(ctx, cfg)
	if err != nil {
		logger.Errorf("failed to load inference service: %v", err)
		os.Exit(1)
	}

	h, err := handler.NewHandler(a.Service, a.Health)
	if err != nil {
		logger.Errorf("failed to create handler: %v", err)
		os.Exit(1)
	}

	lambda.Start(h.Handle)
}

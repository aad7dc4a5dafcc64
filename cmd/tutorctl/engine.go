package main

import (
	"context"
	"fmt"

	"ai-tutoring-engine/internal/bootstrap"
	"ai-tutoring-engine/internal/config"
	"ai-tutoring-engine/internal/pkg/logger"
	"ai-tutoring-engine/internal/service"
)

// openEngine builds the engine with file-only logging so the terminal stays
// readable.
func openEngine(ctx context.Context, notifier service.IStateNotifier) (*bootstrap.Engine, error) {
	cfg := config.Load()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	sysLogger := logger.NewIsolatedLogger(cfg.App.LogFilePath)
	engine := bootstrap.NewEngine(ctx, cfg, sysLogger, notifier)

	if err := engine.Service.RefreshCatalog(ctx); err != nil {
		engine.Close()
		return nil, fmt.Errorf("could not reach the tutor API at %s: %w", cfg.Tutor.APIBaseURL, err)
	}
	return engine, nil
}

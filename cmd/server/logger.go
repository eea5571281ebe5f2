package main

import (
	"context"

	"go.uber.org/fx"
	"go.uber.org/zap"

	"github.com/czentrix/screenrecording-report/internal/config"
	"github.com/czentrix/screenrecording-report/internal/logging"
)

func newLogger(lc fx.Lifecycle, cfg *config.Config) (*zap.Logger, error) {
	logger, err := logging.NewLogger(loggingOptions(cfg))
	if err != nil {
		return nil, err
	}

	lc.Append(fx.Hook{
		OnStop: func(ctx context.Context) error {
			return logger.Close()
		},
	})

	return logger.Logger, nil
}

func loggingOptions(cfg *config.Config) logging.Options {
	return logging.Options{
		ServiceName: cfg.ServiceName,
		Dir:         cfg.Logging.Dir,
		Filename:    cfg.Logging.Filename,
		Level:       cfg.Logging.Level,
		Backups:     cfg.Logging.Backups,
		Console:     cfg.Logging.Console,
	}
}

// startupLogger writes to the console only, before configuration is known
func startupLogger() *zap.Logger {
	logger, err := zap.NewProduction()
	if err != nil {
		return zap.NewNop()
	}
	return logger
}

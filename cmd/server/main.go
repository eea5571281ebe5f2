package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/fx"
	"go.uber.org/fx/fxevent"
	"go.uber.org/zap"

	"github.com/czentrix/screenrecording-report/internal/config"
)

const lifecycleTimeout = 30 * time.Second

func appOptions() fx.Option {
	return fx.Options(
		fx.Provide(
			config.Load,
			newLogger,
			ProvideMongoClient,
			ProvideDatabase,
			ProvideRepository,
			ProvideStore,
			ProvidePublisher,
			ProvideReportService,
			ProvideValidator,
			ProvideHandler,
			ProvideRouter,
		),
		fx.Invoke(startServer),
	)
}

func main() {
	if path := config.LoadDotEnv(config.DotEnvPaths()); path != "" {
		fmt.Printf("Loaded environment from: %s\n", path)
	} else {
		fmt.Println("No .env file found, using system environment variables")
	}

	app := fx.New(
		appOptions(),
		fx.WithLogger(func(logger *zap.Logger) fxevent.Logger {
			return &fxevent.ZapLogger{Logger: logger.Named("fx")}
		}),
	)

	// Setup signal handling for graceful shutdown
	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	tempLogger := startupLogger()
	defer tempLogger.Sync() //nolint:errcheck
	tempLogger.Info("starting application...", zap.Duration("timeout", lifecycleTimeout))

	startCtx, startCancel := context.WithTimeout(context.Background(), lifecycleTimeout)
	defer startCancel()

	if err := app.Start(startCtx); err != nil {
		if startCtx.Err() == context.DeadlineExceeded {
			tempLogger.Error("APPLICATION START TIMEOUT: failed to start within 30 seconds. This usually means MongoDB or RabbitMQ is not reachable. Check the error messages above for specific connection failures.")
		}
		tempLogger.Fatal("application failed to start", zap.Error(err))
	}

	<-ctx.Done()

	stopCtx, stopCancel := context.WithTimeout(context.Background(), lifecycleTimeout)
	defer stopCancel()
	if err := app.Stop(stopCtx); err != nil {
		fmt.Println("error stopping app:", err)
	}
}

package main

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"

	"go.mongodb.org/mongo-driver/mongo"
	"go.uber.org/fx"
	"go.uber.org/zap"

	"github.com/czentrix/screenrecording-report/internal/api"
	"github.com/czentrix/screenrecording-report/internal/config"
	"github.com/czentrix/screenrecording-report/internal/db"
	"github.com/czentrix/screenrecording-report/internal/mq"
	"github.com/czentrix/screenrecording-report/internal/repository"
	"github.com/czentrix/screenrecording-report/internal/service"
	"github.com/czentrix/screenrecording-report/internal/validator"
)

func startServer(
	lc fx.Lifecycle,
	cfg *config.Config,
	logger *zap.Logger,
	router http.Handler,
) *http.Server {
	srv := &http.Server{
		Addr:         cfg.Addr(),
		Handler:      router,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		ErrorLog:     zap.NewStdLog(logger),
	}

	lc.Append(fx.Hook{
		OnStart: func(ctx context.Context) error {
			ln, err := net.Listen("tcp", srv.Addr)
			if err != nil {
				return fmt.Errorf("failed to listen on %s: %w", srv.Addr, err)
			}
			logger.Info("starting report API", zap.String("addr", srv.Addr))
			go func() {
				if err := srv.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
					logger.Error("report API stopped unexpectedly", zap.Error(err))
				}
			}()
			return nil
		},
		OnStop: func(ctx context.Context) error {
			if err := srv.Shutdown(ctx); err != nil {
				logger.Error("failed to shut down report API", zap.Error(err))
				return err
			}
			logger.Info("report API stopped gracefully")
			return nil
		},
	})

	return srv
}

// ProvideMongoClient creates the document store client
func ProvideMongoClient(lc fx.Lifecycle, logger *zap.Logger, cfg *config.Config) (*mongo.Client, error) {
	return db.NewClient(lc, logger, cfg.Mongo)
}

// ProvideDatabase selects the configured database
func ProvideDatabase(client *mongo.Client, cfg *config.Config) *mongo.Database {
	return client.Database(cfg.Mongo.Database)
}

// ProvideRepository creates a new repository instance
func ProvideRepository(database *mongo.Database, cfg *config.Config) *repository.Repository {
	return repository.NewRepository(database, cfg.Mongo.UserCollection, cfg.Mongo.ClientCollection, cfg.Mongo.Timeout)
}

// ProvideStore exposes the repository as the report service's store
func ProvideStore(repo *repository.Repository) service.Store {
	return repo
}

// ProvidePublisher creates the report event publisher. Without a broker URL
// events are dropped.
func ProvidePublisher(lc fx.Lifecycle, logger *zap.Logger, cfg *config.Config) (service.EventPublisher, error) {
	if cfg.RabbitMQ.URL == "" {
		logger.Info("RABBITMQ_URL not set, report events disabled")
		return mq.NopPublisher{}, nil
	}

	publisher, err := mq.DialPublisher(cfg.RabbitMQ.URL, cfg.RabbitMQ.ReportExchange, logger)
	if err != nil {
		return nil, err
	}
	publisher.RegisterLifecycle(lc)

	return publisher, nil
}

// ProvideReportService creates a new report service instance
func ProvideReportService(store service.Store, publisher service.EventPublisher, logger *zap.Logger) *service.ReportService {
	return service.NewReportService(store, publisher, logger)
}

// ProvideValidator creates a new validator instance
func ProvideValidator() *validator.Validator {
	return validator.NewValidator()
}

// ProvideHandler creates the HTTP handler set
func ProvideHandler(reports *service.ReportService, v *validator.Validator) *api.Handler {
	return api.NewHandler(reports, v)
}

// ProvideRouter builds the routed HTTP handler
func ProvideRouter(h *api.Handler, logger *zap.Logger) http.Handler {
	return api.NewRouter(h, logger)
}

package db

import (
	"context"
	"fmt"
	"strings"

	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
	"go.mongodb.org/mongo-driver/mongo/readpref"
	"go.uber.org/fx"
	"go.uber.org/zap"

	"github.com/czentrix/screenrecording-report/internal/config"
)

// NewClient creates a MongoDB client whose connection is verified on start and closed on stop
func NewClient(lc fx.Lifecycle, logger *zap.Logger, cfg config.MongoConfig) (*mongo.Client, error) {
	logger.Info("initializing document store client",
		zap.String("uri", MaskPassword(cfg.URI)),
		zap.String("database", cfg.Database))

	client, err := mongo.Connect(context.Background(), ClientOptions(cfg))
	if err != nil {
		return nil, fmt.Errorf("[DATABASE] failed to create mongo client: %w", err)
	}

	lc.Append(fx.Hook{
		OnStart: func(ctx context.Context) error {
			logger.Info("attempting to connect to document store...")
			if err := client.Ping(ctx, readpref.Primary()); err != nil {
				logger.Error("document store ping failed", zap.Error(err), zap.String("uri", MaskPassword(cfg.URI)))
				return fmt.Errorf("[DATABASE CONNECTION FAILED] cannot reach MongoDB. Please check: 1) MongoDB is running, 2) MONGO_URI is correct, 3) Network/firewall allows connection. Error: %w", err)
			}
			logger.Info("document store connection established successfully")
			return nil
		},
		OnStop: func(ctx context.Context) error {
			if err := client.Disconnect(ctx); err != nil {
				logger.Error("failed to disconnect document store", zap.Error(err))
				return err
			}
			logger.Info("document store connection closed")
			return nil
		},
	})

	return client, nil
}

// ClientOptions builds the driver options for cfg. Nested documents decode as bson.M so
// they serialize back to JSON objects.
func ClientOptions(cfg config.MongoConfig) *options.ClientOptions {
	return options.Client().
		ApplyURI(cfg.URI).
		SetServerSelectionTimeout(cfg.Timeout).
		SetBSONOptions(&options.BSONOptions{DefaultDocumentM: true})
}

// MaskPassword masks the password in a connection URI for logging
func MaskPassword(uri string) string {
	if len(uri) == 0 {
		return "<empty>"
	}
	scheme := strings.Index(uri, "://")
	at := strings.LastIndex(uri, "@")
	if scheme < 0 || at < scheme {
		return uri
	}
	userinfo := uri[scheme+3 : at]
	colon := strings.Index(userinfo, ":")
	if colon < 0 {
		return uri
	}
	return uri[:scheme+3] + userinfo[:colon+1] + "***" + uri[at:]
}

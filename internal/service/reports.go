package service

import (
	"context"
	"errors"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.uber.org/zap"

	"github.com/czentrix/screenrecording-report/internal/db"
	"github.com/czentrix/screenrecording-report/internal/metrics"
	"github.com/czentrix/screenrecording-report/internal/mq"
	"github.com/czentrix/screenrecording-report/internal/repository"
)

// Collection labels returned by the existence check
const (
	UserCollectionLabel   = "user_collection"
	ClientCollectionLabel = "client_collection"
)

// Store is the document store contract the service depends on
type Store interface {
	CollectionName(c repository.Collection) string
	Insert(ctx context.Context, c repository.Collection, doc db.Document) (string, error)
	FindAll(ctx context.Context, c repository.Collection) ([]db.Document, error)
	FindOne(ctx context.Context, c repository.Collection, key db.ReportKey) (db.Document, error)
	UpdateOne(ctx context.Context, c repository.Collection, key db.ReportKey, fields bson.M) (db.UpdateResult, error)
	DeleteOne(ctx context.Context, c repository.Collection, key db.ReportKey) (db.DeleteResult, error)
	Ping(ctx context.Context) error
}

// EventPublisher publishes report change events
type EventPublisher interface {
	PublishReportEvent(ctx context.Context, event mq.ReportEvent) error
}

// ExistsResult is the outcome of an existence check
type ExistsResult struct {
	Exists     bool   `json:"exists"`
	Collection string `json:"collection,omitempty"`
	IsValid    *bool  `json:"isValid,omitempty"`
}

// ReportService implements the report operations shared by the HTTP handlers
type ReportService struct {
	store     Store
	publisher EventPublisher
	logger    *zap.Logger
	now       func() time.Time
}

// NewReportService creates a new report service
func NewReportService(store Store, publisher EventPublisher, logger *zap.Logger) *ReportService {
	return &ReportService{
		store:     store,
		publisher: publisher,
		logger:    logger,
		now:       time.Now,
	}
}

// InsertReport stores doc in collection c and returns the generated identifier
func (s *ReportService) InsertReport(ctx context.Context, c repository.Collection, doc db.Document) (string, error) {
	id, err := s.store.Insert(ctx, c, doc)
	if err != nil {
		s.recordStoreError("insert", c, err)
		return "", err
	}

	s.logger.Info("report inserted",
		zap.String("collection", s.store.CollectionName(c)),
		zap.String("inserted_id", id))

	s.publish(ctx, mq.ReportEvent{
		Event:      mq.EventInserted,
		Collection: s.store.CollectionName(c),
		ReportID:   id,
		Count:      1,
	})

	return id, nil
}

// ListReports returns every report in collection c
func (s *ReportService) ListReports(ctx context.Context, c repository.Collection) ([]db.Document, error) {
	docs, err := s.store.FindAll(ctx, c)
	if err != nil {
		s.recordStoreError("find_all", c, err)
		return nil, err
	}

	s.logger.Info("fetched reports",
		zap.String("collection", s.store.CollectionName(c)),
		zap.Int("count", len(docs)))

	return docs, nil
}

// CheckExists looks key up in the user collection first and only then in the client collection
func (s *ReportService) CheckExists(ctx context.Context, key db.ReportKey) (ExistsResult, error) {
	lookups := []struct {
		collection repository.Collection
		label      string
	}{
		{repository.UserCollection, UserCollectionLabel},
		{repository.ClientCollection, ClientCollectionLabel},
	}

	for _, lookup := range lookups {
		doc, err := s.store.FindOne(ctx, lookup.collection, key)
		if err != nil {
			s.recordStoreError("find_one", lookup.collection, err)
			return ExistsResult{}, err
		}
		if doc == nil {
			continue
		}

		isValid := validityOf(doc)
		s.logger.Info("record found",
			zap.String("collection", lookup.label),
			zap.Int64("client_id", key.ClientID))
		return ExistsResult{Exists: true, Collection: lookup.label, IsValid: &isValid}, nil
	}

	s.logger.Info("no record found",
		zap.Int64("client_id", key.ClientID),
		zap.String("mac_address", key.MacAddress))
	return ExistsResult{Exists: false}, nil
}

// UpdateValidity sets isValid on the first client report matching key.
// Matched == 0 means there was nothing to update.
func (s *ReportService) UpdateValidity(ctx context.Context, key db.ReportKey, isValid bool) (db.UpdateResult, error) {
	result, err := s.store.UpdateOne(ctx, repository.ClientCollection, key, bson.M{db.FieldIsValid: isValid})
	if err != nil {
		s.recordStoreError("update_one", repository.ClientCollection, err)
		return db.UpdateResult{}, err
	}

	if result.Matched == 0 {
		s.logger.Warn("no client report found to update",
			zap.Int64("client_id", key.ClientID),
			zap.String("mac_address", key.MacAddress))
		return result, nil
	}

	s.logger.Info("client report updated",
		zap.Int64("client_id", key.ClientID),
		zap.String("mac_address", key.MacAddress),
		zap.Int64("modified", result.Modified))

	clientID := key.ClientID
	s.publish(ctx, mq.ReportEvent{
		Event:      mq.EventValidityUpdated,
		Collection: s.store.CollectionName(repository.ClientCollection),
		ClientID:   &clientID,
		MacAddress: key.MacAddress,
		IsValid:    &isValid,
		Count:      result.Modified,
	})

	return result, nil
}

// DeleteClientReport removes the first client report matching key.
// Deleted == 0 means there was nothing to delete.
func (s *ReportService) DeleteClientReport(ctx context.Context, key db.ReportKey) (db.DeleteResult, error) {
	result, err := s.store.DeleteOne(ctx, repository.ClientCollection, key)
	if err != nil {
		s.recordStoreError("delete_one", repository.ClientCollection, err)
		return db.DeleteResult{}, err
	}

	if result.Deleted == 0 {
		s.logger.Warn("no client report found to delete",
			zap.Int64("client_id", key.ClientID),
			zap.String("mac_address", key.MacAddress))
		return result, nil
	}

	s.logger.Info("client report deleted",
		zap.Int64("client_id", key.ClientID),
		zap.String("mac_address", key.MacAddress))

	clientID := key.ClientID
	s.publish(ctx, mq.ReportEvent{
		Event:      mq.EventDeleted,
		Collection: s.store.CollectionName(repository.ClientCollection),
		ClientID:   &clientID,
		MacAddress: key.MacAddress,
		Count:      result.Deleted,
	})

	return result, nil
}

// Ping reports whether the document store is reachable
func (s *ReportService) Ping(ctx context.Context) error {
	return s.store.Ping(ctx)
}

func (s *ReportService) publish(ctx context.Context, event mq.ReportEvent) {
	event.OccurredAt = s.now().UTC()
	if err := s.publisher.PublishReportEvent(ctx, event); err != nil {
		// Events are best effort; the write already succeeded.
		metrics.RecordEventFailure(event.Event)
		s.logger.Error("failed to publish report event",
			zap.Error(err),
			zap.String("event", event.Event),
			zap.String("collection", event.Collection))
	}
}

func (s *ReportService) recordStoreError(operation string, c repository.Collection, err error) {
	if errors.Is(err, repository.ErrStore) {
		metrics.RecordStoreError(operation, s.store.CollectionName(c))
	}
}

// validityOf returns the document's isValid flag, false when absent or not a boolean.
func validityOf(doc db.Document) bool {
	v, ok := doc[db.FieldIsValid].(bool)
	return ok && v
}

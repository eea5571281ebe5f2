package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/czentrix/screenrecording-report/internal/db"
)

// ErrStore marks failures reported by the document store
var ErrStore = errors.New("document store error")

// Collection identifies one of the two report collections
type Collection string

const (
	UserCollection   Collection = "user"
	ClientCollection Collection = "client"
)

// Repository handles document store operations
type Repository struct {
	database    *mongo.Database
	collections map[Collection]string
	timeout     time.Duration
}

// NewRepository creates a new repository over database using the given collection names
func NewRepository(database *mongo.Database, userCollection, clientCollection string, timeout time.Duration) *Repository {
	return &Repository{
		database: database,
		collections: map[Collection]string{
			UserCollection:   userCollection,
			ClientCollection: clientCollection,
		},
		timeout: timeout,
	}
}

// CollectionName returns the configured store name of c
func (r *Repository) CollectionName(c Collection) string {
	return r.collections[c]
}

// Insert stores doc and returns its generated identifier
func (r *Repository) Insert(ctx context.Context, c Collection, doc db.Document) (string, error) {
	coll, err := r.collection(c)
	if err != nil {
		return "", err
	}
	ctx, cancel := r.withTimeout(ctx)
	defer cancel()

	result, err := coll.InsertOne(ctx, doc)
	if err != nil {
		return "", storeError("failed to insert report", err)
	}

	return idString(result.InsertedID), nil
}

// FindAll returns every document in c without the internal identifier
func (r *Repository) FindAll(ctx context.Context, c Collection) ([]db.Document, error) {
	coll, err := r.collection(c)
	if err != nil {
		return nil, err
	}
	ctx, cancel := r.withTimeout(ctx)
	defer cancel()

	opts := options.Find().SetProjection(bson.D{{Key: db.FieldID, Value: 0}})
	cursor, err := coll.Find(ctx, bson.D{}, opts)
	if err != nil {
		return nil, storeError("failed to query reports", err)
	}
	defer cursor.Close(ctx)

	docs := []db.Document{}
	if err := cursor.All(ctx, &docs); err != nil {
		return nil, storeError("failed to read reports", err)
	}

	return docs, nil
}

// FindOne returns the first document in c matching key, or nil when none does
func (r *Repository) FindOne(ctx context.Context, c Collection, key db.ReportKey) (db.Document, error) {
	coll, err := r.collection(c)
	if err != nil {
		return nil, err
	}
	ctx, cancel := r.withTimeout(ctx)
	defer cancel()

	var doc db.Document
	err = coll.FindOne(ctx, key.Filter()).Decode(&doc)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return nil, nil
	}
	if err != nil {
		return nil, storeError("failed to query report", err)
	}

	return doc, nil
}

// UpdateOne sets fields on the first document in c matching key
func (r *Repository) UpdateOne(ctx context.Context, c Collection, key db.ReportKey, fields bson.M) (db.UpdateResult, error) {
	coll, err := r.collection(c)
	if err != nil {
		return db.UpdateResult{}, err
	}
	ctx, cancel := r.withTimeout(ctx)
	defer cancel()

	result, err := coll.UpdateOne(ctx, key.Filter(), bson.D{{Key: "$set", Value: fields}})
	if err != nil {
		return db.UpdateResult{}, storeError("failed to update report", err)
	}

	return db.UpdateResult{Matched: result.MatchedCount, Modified: result.ModifiedCount}, nil
}

// DeleteOne removes the first document in c matching key
func (r *Repository) DeleteOne(ctx context.Context, c Collection, key db.ReportKey) (db.DeleteResult, error) {
	coll, err := r.collection(c)
	if err != nil {
		return db.DeleteResult{}, err
	}
	ctx, cancel := r.withTimeout(ctx)
	defer cancel()

	result, err := coll.DeleteOne(ctx, key.Filter())
	if err != nil {
		return db.DeleteResult{}, storeError("failed to delete report", err)
	}

	return db.DeleteResult{Deleted: result.DeletedCount}, nil
}

// Ping checks that the store is reachable
func (r *Repository) Ping(ctx context.Context) error {
	ctx, cancel := r.withTimeout(ctx)
	defer cancel()

	if err := r.database.Client().Ping(ctx, nil); err != nil {
		return storeError("failed to ping store", err)
	}
	return nil
}

func (r *Repository) collection(c Collection) (*mongo.Collection, error) {
	name, ok := r.collections[c]
	if !ok {
		return nil, fmt.Errorf("unknown report collection %q", c)
	}
	return r.database.Collection(name), nil
}

func (r *Repository) withTimeout(ctx context.Context) (context.Context, context.CancelFunc) {
	if r.timeout <= 0 {
		return context.WithCancel(ctx)
	}
	return context.WithTimeout(ctx, r.timeout)
}

func storeError(msg string, err error) error {
	return fmt.Errorf("%s: %w: %w", msg, ErrStore, err)
}

func idString(id interface{}) string {
	if oid, ok := id.(primitive.ObjectID); ok {
		return oid.Hex()
	}
	return fmt.Sprint(id)
}

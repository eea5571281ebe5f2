// Package servicetest provides an in-memory report store for tests.
package servicetest

import (
	"context"
	"fmt"
	"reflect"
	"sync"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"

	"github.com/czentrix/screenrecording-report/internal/db"
	"github.com/czentrix/screenrecording-report/internal/mq"
	"github.com/czentrix/screenrecording-report/internal/repository"
)

// MemStore is an in-memory implementation of the report store with
// first-match update/delete semantics. Set Err to make every call fail.
type MemStore struct {
	mu    sync.Mutex
	docs  map[repository.Collection][]db.Document
	names map[repository.Collection]string

	Err   error
	Calls []string
}

// NewMemStore creates an empty store using the default collection names
func NewMemStore() *MemStore {
	return &MemStore{
		docs: map[repository.Collection][]db.Document{},
		names: map[repository.Collection]string{
			repository.UserCollection:   "user_report",
			repository.ClientCollection: "client_report",
		},
	}
}

func (m *MemStore) CollectionName(c repository.Collection) string {
	return m.names[c]
}

func (m *MemStore) Insert(_ context.Context, c repository.Collection, doc db.Document) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.Calls = append(m.Calls, "insert:"+string(c))
	if m.Err != nil {
		return "", m.Err
	}

	id := primitive.NewObjectID()
	stored := copyDoc(doc)
	stored[db.FieldID] = id
	m.docs[c] = append(m.docs[c], stored)
	return id.Hex(), nil
}

func (m *MemStore) FindAll(_ context.Context, c repository.Collection) ([]db.Document, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.Calls = append(m.Calls, "find_all:"+string(c))
	if m.Err != nil {
		return nil, m.Err
	}

	out := []db.Document{}
	for _, doc := range m.docs[c] {
		projected := copyDoc(doc)
		delete(projected, db.FieldID)
		out = append(out, projected)
	}
	return out, nil
}

func (m *MemStore) FindOne(_ context.Context, c repository.Collection, key db.ReportKey) (db.Document, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.Calls = append(m.Calls, "find_one:"+string(c))
	if m.Err != nil {
		return nil, m.Err
	}

	if i := m.index(c, key); i >= 0 {
		return copyDoc(m.docs[c][i]), nil
	}
	return nil, nil
}

func (m *MemStore) UpdateOne(_ context.Context, c repository.Collection, key db.ReportKey, fields bson.M) (db.UpdateResult, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.Calls = append(m.Calls, "update_one:"+string(c))
	if m.Err != nil {
		return db.UpdateResult{}, m.Err
	}

	i := m.index(c, key)
	if i < 0 {
		return db.UpdateResult{}, nil
	}
	doc := m.docs[c][i]
	modified := int64(0)
	for k, v := range fields {
		if !reflect.DeepEqual(doc[k], v) {
			modified = 1
		}
		doc[k] = v
	}
	return db.UpdateResult{Matched: 1, Modified: modified}, nil
}

func (m *MemStore) DeleteOne(_ context.Context, c repository.Collection, key db.ReportKey) (db.DeleteResult, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.Calls = append(m.Calls, "delete_one:"+string(c))
	if m.Err != nil {
		return db.DeleteResult{}, m.Err
	}

	i := m.index(c, key)
	if i < 0 {
		return db.DeleteResult{}, nil
	}
	m.docs[c] = append(m.docs[c][:i], m.docs[c][i+1:]...)
	return db.DeleteResult{Deleted: 1}, nil
}

func (m *MemStore) Ping(context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.Err
}

// Raw returns the stored documents of c including their identifiers
func (m *MemStore) Raw(c repository.Collection) []db.Document {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]db.Document, 0, len(m.docs[c]))
	for _, doc := range m.docs[c] {
		out = append(out, copyDoc(doc))
	}
	return out
}

func (m *MemStore) index(c repository.Collection, key db.ReportKey) int {
	for i, doc := range m.docs[c] {
		id, ok := asInt64(doc[db.FieldClientID])
		if ok && id == key.ClientID && doc[db.FieldMacAddress] == key.MacAddress {
			return i
		}
	}
	return -1
}

func asInt64(v interface{}) (int64, bool) {
	switch n := v.(type) {
	case int64:
		return n, true
	case int32:
		return int64(n), true
	case int:
		return int64(n), true
	case float64:
		if n == float64(int64(n)) {
			return int64(n), true
		}
	}
	return 0, false
}

func copyDoc(doc db.Document) db.Document {
	out := make(db.Document, len(doc))
	for k, v := range doc {
		out[k] = v
	}
	return out
}

// Publisher records published events. Set Err to make publishing fail.
type Publisher struct {
	mu     sync.Mutex
	Events []mq.ReportEvent
	Err    error
}

func (p *Publisher) PublishReportEvent(_ context.Context, event mq.ReportEvent) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.Err != nil {
		return p.Err
	}
	p.Events = append(p.Events, event)
	return nil
}

// StoreFailure returns an error shaped like a repository failure
func StoreFailure(msg string) error {
	return fmt.Errorf("%s: %w: connection refused", msg, repository.ErrStore)
}

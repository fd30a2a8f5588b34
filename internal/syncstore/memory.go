package syncstore

import (
	"context"
	"encoding/json"
	"sync"
	"time"

	"auditflow/pkg/platform/sentinel"
)

// MemoryStore is the in-process authoritative document store used in demo
// mode and in tests. It implements the same last-write-wins revisioning as
// the postgres store: Set replaces unconditionally and bumps the revision.
type MemoryStore struct {
	mu   sync.RWMutex
	docs map[string]map[string]Document // collection -> id -> doc
	hub  *hub
	now  func() time.Time
}

// MemoryOption configures a MemoryStore.
type MemoryOption func(*MemoryStore)

// WithClock sets the clock function for testability.
func WithClock(now func() time.Time) MemoryOption {
	return func(s *MemoryStore) {
		if now != nil {
			s.now = now
		}
	}
}

// NewMemoryStore creates an empty in-process store.
func NewMemoryStore(opts ...MemoryOption) *MemoryStore {
	s := &MemoryStore{
		docs: make(map[string]map[string]Document),
		hub:  newHub(),
		now:  time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

func (s *MemoryStore) Get(ctx context.Context, collection, id string) (Document, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	doc, ok := s.docs[collection][id]
	if !ok {
		return Document{}, sentinel.ErrNotFound
	}
	return doc, nil
}

func (s *MemoryStore) Set(ctx context.Context, collection, id string, data []byte) (Document, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.docs[collection] == nil {
		s.docs[collection] = make(map[string]Document)
	}
	prev := s.docs[collection][id]
	doc := Document{
		Collection: collection,
		ID:         id,
		Revision:   prev.Revision + 1,
		UpdatedAt:  s.now().UTC(),
		Data:       append([]byte(nil), data...),
	}
	s.docs[collection][id] = doc
	s.hub.publish(Change{Kind: ChangePut, Doc: doc})
	return doc, nil
}

func (s *MemoryStore) Delete(ctx context.Context, collection, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.docs[collection][id]; !ok {
		return sentinel.ErrNotFound
	}
	delete(s.docs[collection], id)
	s.hub.publish(Change{
		Kind: ChangeDelete,
		Doc:  Document{Collection: collection, ID: id},
	})
	return nil
}

func (s *MemoryStore) Query(ctx context.Context, collection, field, value string) ([]Document, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var out []Document
	for _, doc := range s.docs[collection] {
		if topLevelField(doc.Data, field) == value {
			out = append(out, doc)
		}
	}
	return out, nil
}

// Subscribe captures the snapshot and attaches the subscriber under the
// write lock, so no change published after the snapshot is ever missed.
func (s *MemoryStore) Subscribe(collection string) (*Subscription, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	snapshot := make([]Document, 0, len(s.docs[collection]))
	for _, doc := range s.docs[collection] {
		snapshot = append(snapshot, doc)
	}
	return s.hub.attach(collection, snapshot), nil
}

// topLevelField extracts a top-level string field from a JSON body.
// Non-string and missing fields compare as empty.
func topLevelField(data []byte, field string) string {
	var body map[string]json.RawMessage
	if err := json.Unmarshal(data, &body); err != nil {
		return ""
	}
	raw, ok := body[field]
	if !ok {
		return ""
	}
	var str string
	if err := json.Unmarshal(raw, &str); err != nil {
		return ""
	}
	return str
}

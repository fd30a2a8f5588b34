package syncstore

import (
	"context"
	"sync"

	"auditflow/pkg/platform/sentinel"
)

// Mirror is the engine's local read model: one map per collection kept fresh
// by the store's own subscription stream, never by ad hoc refetching.
// Managers read "current state" here and write through the Store.
type Mirror struct {
	store Store

	mu    sync.RWMutex
	docs  map[string]map[string]Document
	ready map[string]bool

	readyCh chan struct{} // closed once every collection has its snapshot
	subs    []*Subscription
}

// NewMirror creates a mirror over the given store. Call Start before reading.
func NewMirror(store Store) *Mirror {
	return &Mirror{
		store:   store,
		docs:    make(map[string]map[string]Document),
		ready:   make(map[string]bool),
		readyCh: make(chan struct{}),
	}
}

// Start subscribes to every collection and begins applying changes. It
// returns once the subscriptions are attached; use WaitReady to block until
// the initial snapshots have been applied.
func (m *Mirror) Start(ctx context.Context) error {
	for _, collection := range Collections {
		sub, err := m.store.Subscribe(collection)
		if err != nil {
			m.Stop()
			return err
		}
		m.subs = append(m.subs, sub)
		go m.apply(ctx, sub)
	}
	return nil
}

// Stop releases every subscription.
func (m *Mirror) Stop() {
	for _, sub := range m.subs {
		sub.Unsubscribe()
	}
	m.subs = nil
}

// WaitReady blocks until every collection's initial snapshot is applied.
func (m *Mirror) WaitReady(ctx context.Context) error {
	select {
	case <-m.readyCh:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (m *Mirror) apply(ctx context.Context, sub *Subscription) {
	for {
		select {
		case <-ctx.Done():
			sub.Unsubscribe()
			return
		case change, ok := <-sub.C:
			if !ok {
				return
			}
			m.applyChange(change)
		}
	}
}

func (m *Mirror) applyChange(change Change) {
	m.mu.Lock()
	defer m.mu.Unlock()

	collection := change.Doc.Collection
	switch change.Kind {
	case ChangePut:
		if m.docs[collection] == nil {
			m.docs[collection] = make(map[string]Document)
		}
		// Stale pushes can arrive out of order relative to this process's
		// own optimistic writes; revisions reconcile them.
		if prev, ok := m.docs[collection][change.Doc.ID]; ok && prev.Revision > change.Doc.Revision {
			return
		}
		m.docs[collection][change.Doc.ID] = change.Doc
	case ChangeDelete:
		delete(m.docs[collection], change.Doc.ID)
	case ChangeSnapshotComplete:
		m.ready[collection] = true
		if len(m.ready) == len(Collections) {
			select {
			case <-m.readyCh:
			default:
				close(m.readyCh)
			}
		}
	}
}

// Stage applies an optimistic local write ahead of the remote push. The
// merge policy is the same as for pushed changes: highest revision wins, so
// a staged write is reconciled (or confirmed) when the subscription catches
// up. Callers pass the Document returned by Store.Set.
func (m *Mirror) Stage(doc Document) {
	m.applyChange(Change{Kind: ChangePut, Doc: doc})
}

// Unstage removes a locally deleted document ahead of the remote push.
func (m *Mirror) Unstage(collection, id string) {
	m.applyChange(Change{Kind: ChangeDelete, Doc: Document{Collection: collection, ID: id}})
}

// Get returns the mirrored document, or sentinel.ErrNotFound.
func (m *Mirror) Get(collection, id string) (Document, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	doc, ok := m.docs[collection][id]
	if !ok {
		return Document{}, sentinel.ErrNotFound
	}
	return doc, nil
}

// List returns every mirrored document in a collection.
func (m *Mirror) List(collection string) []Document {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]Document, 0, len(m.docs[collection]))
	for _, doc := range m.docs[collection] {
		out = append(out, doc)
	}
	return out
}

package syncstore

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/suite"

	"auditflow/pkg/platform/sentinel"
)

// =============================================================================
// Sync Store Test Suite
// =============================================================================
// Covers the subscription contract (snapshot, then marker, then changes, in
// order), the last-write-wins revisioning, and the mirror's reconciliation
// of staged local writes against the pushed stream.

type SyncStoreSuite struct {
	suite.Suite
	ctx   context.Context
	store *MemoryStore
}

func TestSyncStoreSuite(t *testing.T) {
	suite.Run(t, new(SyncStoreSuite))
}

func (s *SyncStoreSuite) SetupTest() {
	s.ctx = context.Background()
	s.store = NewMemoryStore()
}

// collect drains n changes with a timeout so a broken feed fails fast
// instead of hanging the suite.
func (s *SyncStoreSuite) collect(sub *Subscription, n int) []Change {
	out := make([]Change, 0, n)
	timeout := time.After(2 * time.Second)
	for len(out) < n {
		select {
		case change, ok := <-sub.C:
			s.Require().True(ok, "subscription closed early")
			out = append(out, change)
		case <-timeout:
			s.Require().FailNowf("timeout", "collected %d of %d changes", len(out), n)
		}
	}
	return out
}

// =============================================================================
// Store Semantics
// =============================================================================

func (s *SyncStoreSuite) TestSetBumpsRevision() {
	doc1, err := s.store.Set(s.ctx, CollectionAudits, "a", []byte(`{"v":1}`))
	s.Require().NoError(err)
	doc2, err := s.store.Set(s.ctx, CollectionAudits, "a", []byte(`{"v":2}`))
	s.Require().NoError(err)

	s.Equal(int64(1), doc1.Revision)
	s.Equal(int64(2), doc2.Revision)

	got, err := s.store.Get(s.ctx, CollectionAudits, "a")
	s.Require().NoError(err)
	s.JSONEq(`{"v":2}`, string(got.Data))
}

func (s *SyncStoreSuite) TestLastWriteWins() {
	// Two racing writers both commit; the later write durably wins and no
	// write errors out.
	_, err := s.store.Set(s.ctx, CollectionAudits, "a", []byte(`{"writer":"first"}`))
	s.Require().NoError(err)
	_, err = s.store.Set(s.ctx, CollectionAudits, "a", []byte(`{"writer":"second"}`))
	s.Require().NoError(err)

	got, err := s.store.Get(s.ctx, CollectionAudits, "a")
	s.Require().NoError(err)
	s.JSONEq(`{"writer":"second"}`, string(got.Data))
	s.Equal(int64(2), got.Revision)
}

func (s *SyncStoreSuite) TestDeleteMissing() {
	err := s.store.Delete(s.ctx, CollectionAudits, "ghost")
	s.ErrorIs(err, sentinel.ErrNotFound)
}

func (s *SyncStoreSuite) TestQueryByTopLevelField() {
	_, err := s.store.Set(s.ctx, CollectionNotifications, "n1", []byte(`{"recipient_id":"u1"}`))
	s.Require().NoError(err)
	_, err = s.store.Set(s.ctx, CollectionNotifications, "n2", []byte(`{"recipient_id":"u2"}`))
	s.Require().NoError(err)

	docs, err := s.store.Query(s.ctx, CollectionNotifications, "recipient_id", "u1")
	s.Require().NoError(err)
	s.Require().Len(docs, 1)
	s.Equal("n1", docs[0].ID)
}

// =============================================================================
// Subscription Contract
// =============================================================================

func (s *SyncStoreSuite) TestSubscribeSnapshotThenChanges() {
	_, err := s.store.Set(s.ctx, CollectionAudits, "a", []byte(`{"v":1}`))
	s.Require().NoError(err)
	_, err = s.store.Set(s.ctx, CollectionAudits, "b", []byte(`{"v":1}`))
	s.Require().NoError(err)

	sub, err := s.store.Subscribe(CollectionAudits)
	s.Require().NoError(err)
	defer sub.Unsubscribe()

	// Snapshot: two puts then the marker.
	seed := s.collect(sub, 3)
	s.Equal(ChangePut, seed[0].Kind)
	s.Equal(ChangePut, seed[1].Kind)
	s.Equal(ChangeSnapshotComplete, seed[2].Kind)

	// A write after subscribing arrives as a change, strictly after the
	// marker.
	_, err = s.store.Set(s.ctx, CollectionAudits, "c", []byte(`{"v":1}`))
	s.Require().NoError(err)
	live := s.collect(sub, 1)
	s.Equal(ChangePut, live[0].Kind)
	s.Equal("c", live[0].Doc.ID)
}

func (s *SyncStoreSuite) TestSlowSubscriberNeverBlocksWriters() {
	sub, err := s.store.Subscribe(CollectionAudits)
	s.Require().NoError(err)
	defer sub.Unsubscribe()

	// Publish far more than any channel buffer without consuming; every
	// write must return promptly.
	done := make(chan struct{})
	go func() {
		defer close(done)
		for i := 0; i < 500; i++ {
			_, err := s.store.Set(s.ctx, CollectionAudits, "hot", []byte(`{}`))
			if err != nil {
				return
			}
		}
	}()
	select {
	case <-done:
	case <-time.After(2 * time.Second):
		s.FailNow("writers blocked on a slow subscriber")
	}

	// All 500 changes are still delivered, in order, once consumed.
	changes := s.collect(sub, 501) // snapshot marker + 500 puts
	s.Equal(ChangeSnapshotComplete, changes[0].Kind)
	s.Equal(int64(500), changes[len(changes)-1].Doc.Revision)
}

func (s *SyncStoreSuite) TestUnsubscribeClosesFeed() {
	sub, err := s.store.Subscribe(CollectionAudits)
	s.Require().NoError(err)
	s.collect(sub, 1) // marker

	sub.Unsubscribe()
	sub.Unsubscribe() // safe to call twice

	_, err = s.store.Set(s.ctx, CollectionAudits, "a", []byte(`{}`))
	s.Require().NoError(err)

	// The channel closes; no further change is delivered.
	timeout := time.After(2 * time.Second)
	for {
		select {
		case _, ok := <-sub.C:
			if !ok {
				return
			}
		case <-timeout:
			s.FailNow("feed not closed after unsubscribe")
		}
	}
}

// =============================================================================
// Mirror
// =============================================================================

func (s *SyncStoreSuite) TestMirrorSnapshotAndLiveChanges() {
	_, err := s.store.Set(s.ctx, CollectionUsers, "u1", []byte(`{"name":"a"}`))
	s.Require().NoError(err)

	mirror := NewMirror(s.store)
	ctx, cancel := context.WithCancel(s.ctx)
	defer cancel()
	s.Require().NoError(mirror.Start(ctx))
	s.Require().NoError(mirror.WaitReady(s.ctx))

	doc, err := mirror.Get(CollectionUsers, "u1")
	s.Require().NoError(err)
	s.JSONEq(`{"name":"a"}`, string(doc.Data))

	_, err = s.store.Set(s.ctx, CollectionUsers, "u2", []byte(`{"name":"b"}`))
	s.Require().NoError(err)
	s.Eventually(func() bool {
		_, err := mirror.Get(CollectionUsers, "u2")
		return err == nil
	}, 2*time.Second, 5*time.Millisecond)
}

func (s *SyncStoreSuite) TestMirrorStagingReconcilesByRevision() {
	mirror := NewMirror(s.store)

	// A staged local write at revision 2 must not be clobbered by a stale
	// push of revision 1.
	mirror.Stage(Document{Collection: CollectionAudits, ID: "a", Revision: 2, Data: []byte(`{"v":2}`)})
	mirror.applyChange(Change{Kind: ChangePut, Doc: Document{Collection: CollectionAudits, ID: "a", Revision: 1, Data: []byte(`{"v":1}`)}})

	doc, err := mirror.Get(CollectionAudits, "a")
	s.Require().NoError(err)
	s.Equal(int64(2), doc.Revision)

	// The confirming push at the same revision is a no-op; a later one wins.
	mirror.applyChange(Change{Kind: ChangePut, Doc: Document{Collection: CollectionAudits, ID: "a", Revision: 3, Data: []byte(`{"v":3}`)}})
	doc, err = mirror.Get(CollectionAudits, "a")
	s.Require().NoError(err)
	s.Equal(int64(3), doc.Revision)
}

// =============================================================================
// Layer
// =============================================================================

type layerEntity struct {
	Name string `json:"name"`
}

func (s *SyncStoreSuite) TestLayerReadAfterWrite() {
	mirror := NewMirror(s.store)
	ctx, cancel := context.WithCancel(s.ctx)
	defer cancel()
	s.Require().NoError(mirror.Start(ctx))
	s.Require().NoError(mirror.WaitReady(s.ctx))

	layer := NewLayer(s.store, mirror, nil)

	// The staged write is visible immediately, without waiting for the
	// subscription push.
	_, err := layer.Put(s.ctx, CollectionUsers, "u1", layerEntity{Name: "first"})
	s.Require().NoError(err)
	doc, err := layer.Load(s.ctx, CollectionUsers, "u1")
	s.Require().NoError(err)

	entity, err := Decode[layerEntity](doc)
	s.Require().NoError(err)
	s.Equal("first", entity.Name)
}

func (s *SyncStoreSuite) TestLayerDeleteThenLoad() {
	mirror := NewMirror(s.store)
	ctx, cancel := context.WithCancel(s.ctx)
	defer cancel()
	s.Require().NoError(mirror.Start(ctx))
	s.Require().NoError(mirror.WaitReady(s.ctx))

	layer := NewLayer(s.store, mirror, nil)
	_, err := layer.Put(s.ctx, CollectionUsers, "u1", layerEntity{Name: "gone soon"})
	s.Require().NoError(err)
	s.Require().NoError(layer.Delete(s.ctx, CollectionUsers, "u1"))

	_, err = layer.Load(s.ctx, CollectionUsers, "u1")
	s.Error(err)
}

// Package syncstore is the persistence boundary of the engine: a remote
// document store interface, an authoritative in-process implementation, a
// postgres-backed implementation, a subscription hub delivering snapshot +
// change stream, a local mirror kept fresh by subscription, and a
// non-authoritative redis fallback cache.
//
// Write policy is explicit last-write-wins: every successful Set bumps the
// document revision and unconditionally replaces the previous body. Two
// writers racing on the same entity each commit atomically; the later write
// durably wins. Nothing below this package retries or merges.
package syncstore

import (
	"context"
	"encoding/json"
	"time"
)

// Collection names for every entity kind the engine persists.
const (
	CollectionAudits        = "audits"
	CollectionUsers         = "users"
	CollectionDepartments   = "departments"
	CollectionNotifications = "notifications"
	CollectionSessions      = "sessions"
)

// Collections lists every collection, in mirror-attach order.
var Collections = []string{
	CollectionAudits,
	CollectionUsers,
	CollectionDepartments,
	CollectionNotifications,
	CollectionSessions,
}

// Document is one versioned entity body as stored remotely.
type Document struct {
	Collection string          `json:"collection"`
	ID         string          `json:"id"`
	Revision   int64           `json:"revision"`
	UpdatedAt  time.Time       `json:"updated_at"`
	Data       json.RawMessage `json:"data"`
}

// ChangeKind discriminates subscription events.
type ChangeKind string

const (
	ChangePut    ChangeKind = "put"
	ChangeDelete ChangeKind = "delete"
	// ChangeSnapshotComplete marks the end of the initial snapshot; every
	// change after it happened strictly later than the snapshot state.
	ChangeSnapshotComplete ChangeKind = "snapshot_complete"
)

// Change is one subscription event. Delete changes carry a Document with
// only Collection and ID populated.
type Change struct {
	Kind ChangeKind
	Doc  Document
}

// Store is the remote document store: point reads and writes per entity id,
// query-by-field, and a subscribe primitive with an explicit unsubscribe
// handle. The engine treats it as the sole source of truth.
type Store interface {
	Get(ctx context.Context, collection, id string) (Document, error)
	// Set upserts the document body, bumping its revision (last write wins).
	Set(ctx context.Context, collection, id string, data []byte) (Document, error)
	Delete(ctx context.Context, collection, id string) error
	// Query returns documents whose top-level JSON field equals value.
	Query(ctx context.Context, collection, field, value string) ([]Document, error)
	// Subscribe delivers the current collection state as put changes,
	// then every subsequent change, until Unsubscribe is called.
	Subscribe(collection string) (*Subscription, error)
}

// Encode marshals an entity into a document body.
func Encode(v any) ([]byte, error) {
	return json.Marshal(v)
}

// Decode unmarshals a document body into an entity value.
func Decode[T any](doc Document) (T, error) {
	var v T
	err := json.Unmarshal(doc.Data, &v)
	return v, err
}

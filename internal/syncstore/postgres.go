package syncstore

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"sync"
	"time"

	_ "github.com/lib/pq"

	"auditflow/pkg/platform/sentinel"
)

// PostgresStore persists documents in a single JSONB table. It implements
// the same contract as MemoryStore: last-write-wins upserts with a revision
// bump per write, and subscriptions fed from this process's own write path
// (the engine is single-process; see the package comment).
type PostgresStore struct {
	db  *sql.DB
	hub *hub

	// writeMu serializes write+publish and snapshot+attach so a subscriber
	// can never miss a change committed after its snapshot.
	writeMu sync.Mutex
}

// OpenPostgres connects and ensures the documents table exists.
func OpenPostgres(url string) (*PostgresStore, error) {
	db, err := sql.Open("postgres", url)
	if err != nil {
		return nil, fmt.Errorf("open postgres: %w", err)
	}
	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("postgres ping failed: %w", err)
	}
	store := &PostgresStore{db: db, hub: newHub()}
	if err := store.migrate(); err != nil {
		db.Close()
		return nil, err
	}
	return store, nil
}

func (s *PostgresStore) migrate() error {
	_, err := s.db.Exec(`
		CREATE TABLE IF NOT EXISTS documents (
			collection TEXT        NOT NULL,
			id         TEXT        NOT NULL,
			revision   BIGINT      NOT NULL DEFAULT 1,
			updated_at TIMESTAMPTZ NOT NULL,
			data       JSONB       NOT NULL,
			PRIMARY KEY (collection, id)
		)
	`)
	if err != nil {
		return fmt.Errorf("migrate documents table: %w", err)
	}
	return nil
}

// Close closes the database handle.
func (s *PostgresStore) Close() error { return s.db.Close() }

func (s *PostgresStore) Get(ctx context.Context, collection, id string) (Document, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT revision, updated_at, data
		FROM documents
		WHERE collection = $1 AND id = $2
	`, collection, id)

	doc := Document{Collection: collection, ID: id}
	err := row.Scan(&doc.Revision, &doc.UpdatedAt, &doc.Data)
	if errors.Is(err, sql.ErrNoRows) {
		return Document{}, sentinel.ErrNotFound
	}
	if err != nil {
		return Document{}, fmt.Errorf("get document: %w", err)
	}
	return doc, nil
}

func (s *PostgresStore) Set(ctx context.Context, collection, id string, data []byte) (Document, error) {
	s.writeMu.Lock()
	defer s.writeMu.Unlock()

	now := time.Now().UTC()
	row := s.db.QueryRowContext(ctx, `
		INSERT INTO documents (collection, id, revision, updated_at, data)
		VALUES ($1, $2, 1, $3, $4)
		ON CONFLICT (collection, id) DO UPDATE SET
			revision   = documents.revision + 1,
			updated_at = EXCLUDED.updated_at,
			data       = EXCLUDED.data
		RETURNING revision
	`, collection, id, now, data)

	doc := Document{Collection: collection, ID: id, UpdatedAt: now, Data: append([]byte(nil), data...)}
	if err := row.Scan(&doc.Revision); err != nil {
		return Document{}, fmt.Errorf("set document: %w", err)
	}
	s.hub.publish(Change{Kind: ChangePut, Doc: doc})
	return doc, nil
}

func (s *PostgresStore) Delete(ctx context.Context, collection, id string) error {
	s.writeMu.Lock()
	defer s.writeMu.Unlock()

	res, err := s.db.ExecContext(ctx, `
		DELETE FROM documents WHERE collection = $1 AND id = $2
	`, collection, id)
	if err != nil {
		return fmt.Errorf("delete document: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("delete document: %w", err)
	}
	if affected == 0 {
		return sentinel.ErrNotFound
	}
	s.hub.publish(Change{
		Kind: ChangeDelete,
		Doc:  Document{Collection: collection, ID: id},
	})
	return nil
}

func (s *PostgresStore) Query(ctx context.Context, collection, field, value string) ([]Document, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, revision, updated_at, data
		FROM documents
		WHERE collection = $1 AND data->>$2 = $3
	`, collection, field, value)
	if err != nil {
		return nil, fmt.Errorf("query documents: %w", err)
	}
	defer rows.Close()

	var out []Document
	for rows.Next() {
		doc := Document{Collection: collection}
		if err := rows.Scan(&doc.ID, &doc.Revision, &doc.UpdatedAt, &doc.Data); err != nil {
			return nil, fmt.Errorf("scan document: %w", err)
		}
		out = append(out, doc)
	}
	return out, rows.Err()
}

func (s *PostgresStore) Subscribe(collection string) (*Subscription, error) {
	s.writeMu.Lock()
	defer s.writeMu.Unlock()

	snapshot, err := s.snapshot(collection)
	if err != nil {
		return nil, err
	}
	return s.hub.attach(collection, snapshot), nil
}

func (s *PostgresStore) snapshot(collection string) ([]Document, error) {
	rows, err := s.db.Query(`
		SELECT id, revision, updated_at, data
		FROM documents
		WHERE collection = $1
	`, collection)
	if err != nil {
		return nil, fmt.Errorf("snapshot documents: %w", err)
	}
	defer rows.Close()

	var out []Document
	for rows.Next() {
		doc := Document{Collection: collection}
		if err := rows.Scan(&doc.ID, &doc.Revision, &doc.UpdatedAt, &doc.Data); err != nil {
			return nil, fmt.Errorf("scan document: %w", err)
		}
		out = append(out, doc)
	}
	return out, rows.Err()
}

package syncstore

import (
	"context"
	"encoding/json"
	"log/slog"

	"github.com/redis/go-redis/v9"

	"auditflow/pkg/platform/sentinel"
)

const cacheKeyPrefix = "fallback:"

// FallbackCache is the secondary, non-authoritative cache: the same entity
// shapes persisted into redis hashes, written from the subscription stream
// and read only when the remote store is unavailable. It is never consulted
// for permission or transition decisions.
type FallbackCache struct {
	client *redis.Client
	logger *slog.Logger
}

// NewFallbackCache wraps a redis client as a fallback cache.
func NewFallbackCache(client *redis.Client, logger *slog.Logger) *FallbackCache {
	return &FallbackCache{client: client, logger: logger}
}

// Run mirrors every collection of the store into redis until ctx ends.
// Cache write failures are logged and dropped; the cache is best effort.
func (c *FallbackCache) Run(ctx context.Context, store Store) error {
	for _, collection := range Collections {
		sub, err := store.Subscribe(collection)
		if err != nil {
			return err
		}
		go c.pump(ctx, sub)
	}
	return nil
}

func (c *FallbackCache) pump(ctx context.Context, sub *Subscription) {
	defer sub.Unsubscribe()
	for {
		select {
		case <-ctx.Done():
			return
		case change, ok := <-sub.C:
			if !ok {
				return
			}
			c.applyChange(ctx, change)
		}
	}
}

func (c *FallbackCache) applyChange(ctx context.Context, change Change) {
	key := cacheKeyPrefix + change.Doc.Collection
	switch change.Kind {
	case ChangePut:
		body, err := json.Marshal(change.Doc)
		if err != nil {
			return
		}
		if err := c.client.HSet(ctx, key, change.Doc.ID, body).Err(); err != nil {
			c.logger.WarnContext(ctx, "fallback cache write failed",
				"collection", change.Doc.Collection, "id", change.Doc.ID, "error", err)
		}
	case ChangeDelete:
		if err := c.client.HDel(ctx, key, change.Doc.ID).Err(); err != nil {
			c.logger.WarnContext(ctx, "fallback cache delete failed",
				"collection", change.Doc.Collection, "id", change.Doc.ID, "error", err)
		}
	}
}

// Get reads one cached document.
func (c *FallbackCache) Get(ctx context.Context, collection, id string) (Document, error) {
	body, err := c.client.HGet(ctx, cacheKeyPrefix+collection, id).Bytes()
	if err == redis.Nil {
		return Document{}, sentinel.ErrNotFound
	}
	if err != nil {
		return Document{}, err
	}
	var doc Document
	if err := json.Unmarshal(body, &doc); err != nil {
		return Document{}, err
	}
	return doc, nil
}

// List reads every cached document in a collection.
func (c *FallbackCache) List(ctx context.Context, collection string) ([]Document, error) {
	entries, err := c.client.HGetAll(ctx, cacheKeyPrefix+collection).Result()
	if err != nil {
		return nil, err
	}
	out := make([]Document, 0, len(entries))
	for _, body := range entries {
		var doc Document
		if err := json.Unmarshal([]byte(body), &doc); err != nil {
			continue
		}
		out = append(out, doc)
	}
	return out, nil
}

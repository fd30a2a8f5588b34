package syncstore

import (
	"context"
	"errors"

	dErrors "auditflow/pkg/domain-errors"
	"auditflow/pkg/platform/circuit"
	"auditflow/pkg/platform/sentinel"
)

// Layer ties the authoritative store, the local mirror, and the optional
// fallback cache into the single persistence surface the managers use:
// one write call per entity mutation, current-state reads from the mirror.
//
// A circuit breaker tracks remote health. It never reroutes writes —
// transitions always need the authoritative store — but read-only surfaces
// divert to the fallback cache while the breaker is open instead of paying
// for a doomed remote round trip first.
type Layer struct {
	remote  Store
	mirror  *Mirror
	cache   *FallbackCache // nil when redis is not configured
	breaker *circuit.Breaker
}

// NewLayer assembles the sync layer. cache may be nil.
func NewLayer(remote Store, mirror *Mirror, cache *FallbackCache) *Layer {
	return &Layer{
		remote: remote,
		mirror: mirror,
		cache:  cache,
		breaker: circuit.New("remote-store",
			circuit.WithFailureThreshold(3),
			circuit.WithSuccessThreshold(2),
		),
	}
}

// Remote exposes the authoritative store for subscription consumers.
func (l *Layer) Remote() Store { return l.remote }

// Breaker exposes remote-store health for readiness reporting.
func (l *Layer) Breaker() *circuit.Breaker { return l.breaker }

// Put encodes and writes one entity as a single remote write, then stages
// the result locally so subsequent reads observe this process's own write
// without waiting for the push. Remote failures surface as CodePersistence
// with no retry; the caller may safely re-issue the operation.
func (l *Layer) Put(ctx context.Context, collection, id string, v any) (Document, error) {
	data, err := Encode(v)
	if err != nil {
		return Document{}, dErrors.Wrap(err, dErrors.CodeInternal, "encode "+collection+" document")
	}
	doc, err := l.remote.Set(ctx, collection, id, data)
	if err != nil {
		l.breaker.RecordFailure()
		return Document{}, dErrors.Wrap(err, dErrors.CodePersistence, "write "+collection+" document")
	}
	l.breaker.RecordSuccess()
	l.mirror.Stage(doc)
	return doc, nil
}

// Delete removes one entity as a single remote write.
func (l *Layer) Delete(ctx context.Context, collection, id string) error {
	if err := l.remote.Delete(ctx, collection, id); err != nil {
		if errors.Is(err, sentinel.ErrNotFound) {
			return dErrors.New(dErrors.CodeNotFound, collection+" document not found")
		}
		l.breaker.RecordFailure()
		return dErrors.Wrap(err, dErrors.CodePersistence, "delete "+collection+" document")
	}
	l.breaker.RecordSuccess()
	l.mirror.Unstage(collection, id)
	return nil
}

// Load reads current state from the mirror, falling through to a remote
// point read only when the mirror has not yet seen the document at all.
func (l *Layer) Load(ctx context.Context, collection, id string) (Document, error) {
	doc, err := l.mirror.Get(collection, id)
	if err == nil {
		return doc, nil
	}
	doc, err = l.remote.Get(ctx, collection, id)
	if errors.Is(err, sentinel.ErrNotFound) {
		return Document{}, dErrors.New(dErrors.CodeNotFound, collection+" document not found")
	}
	if err != nil {
		l.breaker.RecordFailure()
		return Document{}, dErrors.Wrap(err, dErrors.CodePersistence, "read "+collection+" document")
	}
	l.breaker.RecordSuccess()
	l.mirror.Stage(doc)
	return doc, nil
}

// List returns the mirror's view of a collection.
func (l *Layer) List(collection string) []Document {
	return l.mirror.List(collection)
}

// LoadWithFallback serves read-only surfaces: mirror first, then the
// non-authoritative cache while the breaker is open or after a remote
// failure. Never used on a transition path — the cache has no authority
// there.
func (l *Layer) LoadWithFallback(ctx context.Context, collection, id string) (Document, error) {
	if doc, err := l.mirror.Get(collection, id); err == nil {
		return doc, nil
	}
	if l.cache != nil && l.breaker.IsOpen() {
		if cached, err := l.cache.Get(ctx, collection, id); err == nil {
			return cached, nil
		}
	}
	doc, err := l.Load(ctx, collection, id)
	if err == nil || l.cache == nil || !dErrors.HasCode(err, dErrors.CodePersistence) {
		return doc, err
	}
	cached, cacheErr := l.cache.Get(ctx, collection, id)
	if cacheErr != nil {
		return Document{}, err
	}
	return cached, nil
}

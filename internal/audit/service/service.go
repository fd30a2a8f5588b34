// Package service hosts the two audit engines: the workflow engine for
// audit-level state and approval history, and the finding manager for the
// per-finding lifecycle. Both follow the same shape per operation: resolve
// the actor, load the aggregate, gate through the permission chokepoint,
// validate and apply through the models, persist the whole aggregate as one
// write, then fan out notifications off the critical path.
package service

import (
	"context"

	"auditflow/internal/audit/models"
	dirmodels "auditflow/internal/directory/models"
	"auditflow/internal/notification"
	"auditflow/internal/syncstore"
	dErrors "auditflow/pkg/domain-errors"
	id "auditflow/pkg/domain"
	"auditflow/pkg/requestcontext"
)

// Directory resolves the acting user. Implemented by internal/directory.Service.
type Directory interface {
	User(ctx context.Context, userID id.UserID) (dirmodels.User, error)
}

// Notifier fans out a committed transition. Implemented by
// internal/notification.Dispatcher; it never fails the caller.
type Notifier interface {
	Dispatch(ctx context.Context, event notification.Event)
}

// actor resolves the authenticated user from the request context.
func actor(ctx context.Context, directory Directory) (dirmodels.User, error) {
	userID := requestcontext.UserID(ctx)
	if userID.IsNil() {
		return dirmodels.User{}, dErrors.New(dErrors.CodeUnauthorized, "no authenticated user in request context")
	}
	return directory.User(ctx, userID)
}

// loadAudit reads one audit aggregate through the sync layer.
func loadAudit(ctx context.Context, sync *syncstore.Layer, auditID id.AuditID) (*models.Audit, error) {
	doc, err := sync.Load(ctx, syncstore.CollectionAudits, auditID.String())
	if err != nil {
		return nil, err
	}
	audit, err := syncstore.Decode[models.Audit](doc)
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "decode audit document")
	}
	return &audit, nil
}

// saveAudit persists the whole aggregate as a single write.
func saveAudit(ctx context.Context, sync *syncstore.Layer, audit *models.Audit) error {
	_, err := sync.Put(ctx, syncstore.CollectionAudits, audit.ID.String(), audit)
	return err
}

// outcome buckets an operation result for the transition counter.
func outcome(err error) string {
	switch {
	case err == nil:
		return "ok"
	case dErrors.HasCode(err, dErrors.CodeForbidden):
		return "denied"
	case dErrors.HasCode(err, dErrors.CodeValidation), dErrors.HasCode(err, dErrors.CodeInvalidInput):
		return "invalid"
	default:
		return "error"
	}
}

package testutil

import (
	"context"
	"time"

	id "auditflow/pkg/domain"
	"auditflow/pkg/requestcontext"
)

// ContextAs builds a context authenticated as the given user, with time
// pinned so timestamp assertions are deterministic.
func ContextAs(userID id.UserID, at time.Time) context.Context {
	ctx := requestcontext.WithUserID(context.Background(), userID)
	return requestcontext.WithTime(ctx, at)
}

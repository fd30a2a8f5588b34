package directory

import (
	"context"
	"log/slog"
	"time"

	"auditflow/internal/syncstore"
)

// PresenceSweeper marks sessions offline once their heartbeat goes stale.
// It runs on a fixed cron schedule, fully decoupled from workflow activity.
type PresenceSweeper struct {
	directory *Service
	sync      *syncstore.Layer
	ttl       time.Duration
	logger    *slog.Logger
}

// NewPresenceSweeper creates a sweeper with the given staleness TTL.
func NewPresenceSweeper(directory *Service, sync *syncstore.Layer, ttl time.Duration, logger *slog.Logger) *PresenceSweeper {
	return &PresenceSweeper{directory: directory, sync: sync, ttl: ttl, logger: logger}
}

// Sweep flips stale sessions to offline. Errors are logged per session; a
// bad session record never aborts the sweep.
func (p *PresenceSweeper) Sweep(ctx context.Context, now time.Time) {
	sessions, err := p.directory.Sessions(ctx)
	if err != nil {
		p.logger.WarnContext(ctx, "presence sweep could not list sessions", "error", err)
		return
	}
	for _, session := range sessions {
		if !session.Online || !session.Stale(now, p.ttl) {
			continue
		}
		session.Online = false
		if _, err := p.sync.Put(ctx, syncstore.CollectionSessions, session.ID.String(), session); err != nil {
			p.logger.WarnContext(ctx, "presence sweep could not mark session offline",
				"session_id", session.ID.String(), "error", err)
		}
	}
}

// Run returns the closure the cron scheduler invokes.
func (p *PresenceSweeper) Run(ctx context.Context) func() {
	return func() {
		p.Sweep(ctx, time.Now().UTC())
	}
}

package notification

import (
	"context"
	"errors"
	"log/slog"

	auditmodels "auditflow/internal/audit/models"
	dirmodels "auditflow/internal/directory/models"
	id "auditflow/pkg/domain"
	"auditflow/pkg/requestcontext"
)

var errMissingFinding = errors.New("finding not found on audit")

// Directory resolves recipients. Implemented by internal/directory.Service.
type Directory interface {
	ApproversFor(ctx context.Context, dept id.DepartmentID) ([]dirmodels.User, error)
	MembersOf(ctx context.Context, dept id.DepartmentID) ([]dirmodels.User, error)
}

// Event is one committed workflow or finding transition.
type Event struct {
	Type      Type
	Audit     *auditmodels.Audit
	FindingID *id.FindingID
	ActorID   id.UserID
}

// Dispatcher computes the recipient set for each committed transition and
// creates one notification per recipient through the outbox. It never
// blocks the triggering transition and never reports failure to it.
type Dispatcher struct {
	directory Directory
	outbox    *Outbox
	logger    *slog.Logger
}

// NewDispatcher creates a dispatcher over the directory and outbox.
func NewDispatcher(directory Directory, outbox *Outbox, logger *slog.Logger) *Dispatcher {
	return &Dispatcher{directory: directory, outbox: outbox, logger: logger}
}

// Dispatch fans the event out. Recipient resolution failures are logged
// and the event dropped; the transition has already committed and stays
// committed.
func (d *Dispatcher) Dispatch(ctx context.Context, event Event) {
	recipients, err := d.recipients(ctx, event)
	if err != nil {
		d.logger.WarnContext(ctx, "notification recipients could not be resolved",
			"type", string(event.Type),
			"audit_id", event.Audit.ID.String(),
			"error", err,
		)
		return
	}
	now := requestcontext.Now(ctx)
	for _, recipient := range recipients {
		d.outbox.Enqueue(Notification{
			ID:          id.NewNotificationID(),
			RecipientID: recipient,
			Type:        event.Type,
			AuditID:     event.Audit.ID,
			FindingID:   event.FindingID,
			ActorID:     event.ActorID,
			Read:        false,
			CreatedAt:   now,
		})
	}
}

// recipients maps event types to their audiences:
//   - submission → every user with approval authority over the audit's department
//   - any management decision → the lead auditor, plus the team for events
//     that change team-facing facts (schedule confirmation, postponement,
//     cancellation)
//   - finding recorded → the responsible department's members
//   - department response / finding closed → the audit's auditors / the
//     responsible department
func (d *Dispatcher) recipients(ctx context.Context, event Event) ([]id.UserID, error) {
	audit := event.Audit
	switch event.Type {
	case TypeAuditSubmitted:
		approvers, err := d.directory.ApproversFor(ctx, audit.DepartmentID)
		if err != nil {
			return nil, err
		}
		out := make([]id.UserID, 0, len(approvers))
		for _, user := range approvers {
			out = append(out, user.ID)
		}
		return dedupe(out), nil

	case TypeAuditApproved, TypeAuditRejected, TypeAuditModificationRequested:
		return dedupe([]id.UserID{audit.LeadAuditorID}), nil

	case TypeAuditScheduleConfirmed, TypeAuditPostponed, TypeAuditCancelled:
		return dedupe(append([]id.UserID{audit.LeadAuditorID}, audit.AuditorIDs...)), nil

	case TypeFindingRecorded, TypeFindingClosed:
		finding := d.finding(audit, event.FindingID)
		if finding == nil {
			return nil, errMissingFinding
		}
		members, err := d.directory.MembersOf(ctx, finding.DepartmentID)
		if err != nil {
			return nil, err
		}
		out := make([]id.UserID, 0, len(members))
		for _, user := range members {
			out = append(out, user.ID)
		}
		return dedupe(out), nil

	case TypeResponseSubmitted:
		return dedupe(append([]id.UserID{audit.LeadAuditorID, audit.CreatedBy}, audit.AuditorIDs...)), nil
	}
	return nil, nil
}

func (d *Dispatcher) finding(audit *auditmodels.Audit, findingID *id.FindingID) *auditmodels.Finding {
	if findingID == nil {
		return nil
	}
	return audit.Finding(*findingID)
}

func dedupe(ids []id.UserID) []id.UserID {
	seen := make(map[id.UserID]bool, len(ids))
	out := ids[:0]
	for _, userID := range ids {
		if userID.IsNil() || seen[userID] {
			continue
		}
		seen[userID] = true
		out = append(out, userID)
	}
	return out
}

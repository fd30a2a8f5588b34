package service

import (
	"context"
	"log/slog"
	"time"

	"auditflow/internal/audit/metrics"
	"auditflow/internal/audit/models"
	"auditflow/internal/notification"
	"auditflow/internal/permission"
	"auditflow/internal/syncstore"
	dErrors "auditflow/pkg/domain-errors"
	id "auditflow/pkg/domain"
	"auditflow/pkg/requestcontext"
)

// Findings is the per-finding engine: recording, remediation, the
// department's formal response, and auditor verification. Findings live
// inside their audit aggregate, so every mutation is still one audit write.
type Findings struct {
	sync      *syncstore.Layer
	directory Directory
	notifier  Notifier
	metrics   *metrics.Metrics
	logger    *slog.Logger
}

// NewFindings wires the finding engine.
func NewFindings(sync *syncstore.Layer, directory Directory, notifier Notifier, m *metrics.Metrics, logger *slog.Logger) *Findings {
	return &Findings{sync: sync, directory: directory, notifier: notifier, metrics: m, logger: logger}
}

// RecordFindingInput carries the fields required to open a finding.
type RecordFindingInput struct {
	Clause       string
	Severity     string
	DepartmentID id.DepartmentID
	Section      string
	DueDate      time.Time
}

// RecordFinding opens a finding on an audit in execution.
func (f *Findings) RecordFinding(ctx context.Context, auditID id.AuditID, input RecordFindingInput) (audit *models.Audit, err error) {
	defer func() { f.metrics.IncrementTransition(string(permission.TransitionRecordFinding), outcome(err)) }()

	user, err := actor(ctx, f.directory)
	if err != nil {
		return nil, err
	}
	audit, err = loadAudit(ctx, f.sync, auditID)
	if err != nil {
		return nil, err
	}
	if err = permission.CanTransition(user, permission.Subject{Audit: audit}, permission.TransitionRecordFinding); err != nil {
		return nil, err
	}
	if err = audit.CanRecordFinding(); err != nil {
		return nil, err
	}
	now := requestcontext.Now(ctx)
	finding, err := models.NewFinding(id.NewFindingID(), audit.ID, input.Clause, models.Severity(input.Severity), input.DepartmentID, input.Section, input.DueDate, user.ID, now)
	if err != nil {
		return nil, err
	}
	audit.AddFinding(*finding, now)
	if err = saveAudit(ctx, f.sync, audit); err != nil {
		return nil, err
	}
	f.logger.InfoContext(ctx, "finding recorded",
		"audit_id", audit.ID.String(), "finding_id", finding.ID.String(), "severity", string(finding.Severity))
	f.notifier.Dispatch(ctx, notification.Event{
		Type:      notification.TypeFindingRecorded,
		Audit:     audit,
		FindingID: &finding.ID,
		ActorID:   user.ID,
	})
	return audit, nil
}

// SubmitCorrectiveAction records the responsible department's remediation
// plan, advancing an open finding to in_progress.
func (f *Findings) SubmitCorrectiveAction(ctx context.Context, auditID id.AuditID, findingID id.FindingID, rootCause, correctiveAction string) (*models.Audit, error) {
	return f.transition(ctx, auditID, findingID, permission.TransitionSubmitCorrectiveAction, func(finding *models.Finding, _ id.UserID, _ time.Time) (notification.Type, error) {
		if err := finding.CanSubmitCorrectiveAction(rootCause, correctiveAction); err != nil {
			return "", err
		}
		finding.ApplySubmitCorrectiveAction(rootCause, correctiveAction)
		return "", nil
	})
}

// ResponseInput carries the department's formal response.
type ResponseInput struct {
	Comment             string
	ProposedClosingDate time.Time
	Attachments         []models.Attachment
}

// SubmitResponse stores the department's formal response on the finding.
// The response is evidence toward closure and never changes the finding's
// status on its own.
func (f *Findings) SubmitResponse(ctx context.Context, auditID id.AuditID, findingID id.FindingID, input ResponseInput) (*models.Audit, error) {
	return f.transition(ctx, auditID, findingID, permission.TransitionSubmitResponse, func(finding *models.Finding, actorID id.UserID, now time.Time) (notification.Type, error) {
		if err := finding.CanSubmitResponse(input.Comment); err != nil {
			return "", err
		}
		finding.ApplySubmitResponse(models.DepartmentResponse{
			Comment:             input.Comment,
			ProposedClosingDate: input.ProposedClosingDate,
			Attachments:         input.Attachments,
			SubmittedBy:         actorID,
			SubmittedAt:         now,
		})
		return notification.TypeResponseSubmitted, nil
	})
}

// RequestVerification flags the department's remediation as done, moving the
// finding to pending_verification for auditor review.
func (f *Findings) RequestVerification(ctx context.Context, auditID id.AuditID, findingID id.FindingID) (*models.Audit, error) {
	return f.transition(ctx, auditID, findingID, permission.TransitionRequestVerification, func(finding *models.Finding, _ id.UserID, _ time.Time) (notification.Type, error) {
		if err := finding.CanRequestVerification(); err != nil {
			return "", err
		}
		finding.ApplyRequestVerification()
		return "", nil
	})
}

// VerifyAndClose closes the finding after auditor review. Closure always
// requires a department response on record.
func (f *Findings) VerifyAndClose(ctx context.Context, auditID id.AuditID, findingID id.FindingID) (*models.Audit, error) {
	return f.transition(ctx, auditID, findingID, permission.TransitionVerifyAndClose, func(finding *models.Finding, _ id.UserID, now time.Time) (notification.Type, error) {
		if err := finding.CanClose(); err != nil {
			return "", err
		}
		finding.ApplyClose(now)
		return notification.TypeFindingClosed, nil
	})
}

// OverdueFinding pairs a finding with its parent audit for reporting.
type OverdueFinding struct {
	AuditID    id.AuditID       `json:"audit_id"`
	AuditTitle id.BilingualText `json:"audit_title"`
	Finding    models.Finding   `json:"finding"`
}

// Overdue lists every non-closed finding past its effective deadline: the
// department-proposed closing date when present, else the original due date.
func (f *Findings) Overdue(ctx context.Context) ([]OverdueFinding, error) {
	now := requestcontext.Now(ctx)
	docs := f.sync.List(syncstore.CollectionAudits)
	var out []OverdueFinding
	for _, doc := range docs {
		audit, err := syncstore.Decode[models.Audit](doc)
		if err != nil {
			return nil, dErrors.Wrap(err, dErrors.CodeInternal, "decode audit document")
		}
		for _, finding := range audit.Findings {
			if finding.Overdue(now) {
				out = append(out, OverdueFinding{AuditID: audit.ID, AuditTitle: audit.Title, Finding: finding})
			}
		}
	}
	return out, nil
}

// transition runs the shared finding operation shape. The mutation callback
// returns the notification type to dispatch after the write commits, or ""
// for silent transitions.
func (f *Findings) transition(ctx context.Context, auditID id.AuditID, findingID id.FindingID, name permission.Transition, mutate func(finding *models.Finding, actorID id.UserID, now time.Time) (notification.Type, error)) (audit *models.Audit, err error) {
	defer func() { f.metrics.IncrementTransition(string(name), outcome(err)) }()

	user, err := actor(ctx, f.directory)
	if err != nil {
		return nil, err
	}
	audit, err = loadAudit(ctx, f.sync, auditID)
	if err != nil {
		return nil, err
	}
	finding := audit.Finding(findingID)
	if finding == nil {
		return nil, dErrors.New(dErrors.CodeNotFound, "finding not found on audit")
	}
	if err = permission.CanTransition(user, permission.Subject{Audit: audit, Finding: finding}, name); err != nil {
		return nil, err
	}
	now := requestcontext.Now(ctx)
	eventType, err := mutate(finding, user.ID, now)
	if err != nil {
		return nil, err
	}
	audit.UpdatedAt = now
	if err = saveAudit(ctx, f.sync, audit); err != nil {
		return nil, err
	}
	f.logger.InfoContext(ctx, "finding transition committed",
		"audit_id", audit.ID.String(), "finding_id", finding.ID.String(),
		"transition", string(name), "status", string(finding.Status))
	if eventType != "" {
		f.notifier.Dispatch(ctx, notification.Event{
			Type:      eventType,
			Audit:     audit,
			FindingID: &findingID,
			ActorID:   user.ID,
		})
	}
	return audit, nil
}

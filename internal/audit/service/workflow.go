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

// Workflow is the audit-level engine: creation, planning, the approval
// round-trip with management, and cancellation. Every transition appends
// exactly one approval-history entry and lands as one aggregate write.
type Workflow struct {
	sync      *syncstore.Layer
	directory Directory
	notifier  Notifier
	metrics   *metrics.Metrics
	logger    *slog.Logger
}

// NewWorkflow wires the workflow engine.
func NewWorkflow(sync *syncstore.Layer, directory Directory, notifier Notifier, m *metrics.Metrics, logger *slog.Logger) *Workflow {
	return &Workflow{sync: sync, directory: directory, notifier: notifier, metrics: m, logger: logger}
}

// CreateAuditInput carries the fields required to open an audit in planning.
type CreateAuditInput struct {
	Title        id.BilingualText
	Type         string
	DepartmentID id.DepartmentID
}

// CreateAudit opens a new audit in planning, owned by the acting user.
func (w *Workflow) CreateAudit(ctx context.Context, input CreateAuditInput) (*models.Audit, error) {
	user, err := actor(ctx, w.directory)
	if err != nil {
		return nil, err
	}
	if err := permission.CanTransition(user, permission.Subject{}, permission.TransitionCreateAudit); err != nil {
		return nil, err
	}
	auditType, err := models.ParseAuditType(input.Type)
	if err != nil {
		return nil, err
	}
	audit, err := models.NewAudit(id.NewAuditID(), input.Title, auditType, input.DepartmentID, user.ID, requestcontext.Now(ctx))
	if err != nil {
		return nil, err
	}
	if err := saveAudit(ctx, w.sync, audit); err != nil {
		return nil, err
	}
	w.logger.InfoContext(ctx, "audit created",
		"audit_id", audit.ID.String(), "department_id", audit.DepartmentID.String())
	return audit, nil
}

// PlanningInput carries the team and schedule edits allowed during planning.
type PlanningInput struct {
	LeadAuditorID id.UserID
	AuditorIDs    []id.UserID
	Schedule      models.ScheduleWindow
}

// UpdatePlanning sets the audit team and schedule window while the audit is
// still in planning.
func (w *Workflow) UpdatePlanning(ctx context.Context, auditID id.AuditID, input PlanningInput) (*models.Audit, error) {
	return w.transition(ctx, auditID, permission.TransitionUpdatePlanning, func(audit *models.Audit, _ id.UserID, now time.Time) (*notification.Event, error) {
		if err := audit.CanUpdatePlanning(); err != nil {
			return nil, err
		}
		audit.ApplyPlanning(input.LeadAuditorID, input.AuditorIDs, input.Schedule, now)
		return nil, nil
	})
}

// ConfirmSchedule moves the audit from planning to execution once the team
// and window are set.
func (w *Workflow) ConfirmSchedule(ctx context.Context, auditID id.AuditID) (*models.Audit, error) {
	return w.transition(ctx, auditID, permission.TransitionConfirmSchedule, func(audit *models.Audit, actorID id.UserID, now time.Time) (*notification.Event, error) {
		if err := audit.CanConfirmSchedule(); err != nil {
			return nil, err
		}
		audit.ApplyConfirmSchedule(actorID, now)
		return &notification.Event{Type: notification.TypeAuditScheduleConfirmed, ActorID: actorID}, nil
	})
}

// SubmitForApproval hands the audit to management once every finding is
// complete and any modification request has been addressed.
func (w *Workflow) SubmitForApproval(ctx context.Context, auditID id.AuditID) (*models.Audit, error) {
	return w.transition(ctx, auditID, permission.TransitionSubmitForApproval, func(audit *models.Audit, actorID id.UserID, now time.Time) (*notification.Event, error) {
		if err := audit.CanSubmit(); err != nil {
			return nil, err
		}
		audit.ApplySubmit(actorID, now)
		return &notification.Event{Type: notification.TypeAuditSubmitted, ActorID: actorID}, nil
	})
}

// DecideInput carries one management decision. Schedule is consulted only
// for postpone, where a new window may be proposed; postponing without one
// leaves the audit awaiting a re-decision.
type DecideInput struct {
	Kind     string
	Comment  string
	Schedule *models.ScheduleWindow
}

// Decide applies a management decision to an audit awaiting management.
func (w *Workflow) Decide(ctx context.Context, auditID id.AuditID, input DecideInput) (*models.Audit, error) {
	kind, err := models.ParseDecisionKind(input.Kind)
	if err != nil {
		w.metrics.IncrementTransition(string(permission.TransitionDecide), outcome(err))
		return nil, err
	}
	audit, err := w.transition(ctx, auditID, permission.TransitionDecide, func(audit *models.Audit, actorID id.UserID, now time.Time) (*notification.Event, error) {
		if err := audit.CanDecide(kind, input.Comment); err != nil {
			return nil, err
		}
		audit.ApplyDecision(kind, actorID, input.Comment, input.Schedule, now)
		return &notification.Event{Type: decisionNotification(kind), ActorID: actorID}, nil
	})
	if err == nil {
		w.metrics.IncrementDecision(string(kind))
	}
	return audit, err
}

// AddressModification clears the resubmission gate set by a
// request_modification decision.
func (w *Workflow) AddressModification(ctx context.Context, auditID id.AuditID) (*models.Audit, error) {
	return w.transition(ctx, auditID, permission.TransitionAddressModification, func(audit *models.Audit, _ id.UserID, now time.Time) (*notification.Event, error) {
		if err := audit.CanAddressModification(); err != nil {
			return nil, err
		}
		audit.ApplyAddressModification(now)
		return nil, nil
	})
}

// Cancel terminates the audit from any non-terminal state with a mandatory
// justification.
func (w *Workflow) Cancel(ctx context.Context, auditID id.AuditID, justification string) (*models.Audit, error) {
	return w.transition(ctx, auditID, permission.TransitionCancel, func(audit *models.Audit, actorID id.UserID, now time.Time) (*notification.Event, error) {
		if err := audit.CanCancel(justification); err != nil {
			return nil, err
		}
		audit.ApplyCancel(actorID, justification, now)
		return &notification.Event{Type: notification.TypeAuditCancelled, ActorID: actorID}, nil
	})
}

// Get resolves one audit aggregate.
func (w *Workflow) Get(ctx context.Context, auditID id.AuditID) (*models.Audit, error) {
	return loadAudit(ctx, w.sync, auditID)
}

// List returns every audit from the mirror.
func (w *Workflow) List(ctx context.Context) ([]models.Audit, error) {
	docs := w.sync.List(syncstore.CollectionAudits)
	out := make([]models.Audit, 0, len(docs))
	for _, doc := range docs {
		audit, err := syncstore.Decode[models.Audit](doc)
		if err != nil {
			return nil, dErrors.Wrap(err, dErrors.CodeInternal, "decode audit document")
		}
		out = append(out, audit)
	}
	return out, nil
}

// transition runs the shared operation shape: actor, load, permission gate,
// mutate, single write, notify. The mutation callback returns the event to
// dispatch after the write commits, or nil for silent transitions.
func (w *Workflow) transition(ctx context.Context, auditID id.AuditID, name permission.Transition, mutate func(audit *models.Audit, actorID id.UserID, now time.Time) (*notification.Event, error)) (audit *models.Audit, err error) {
	defer func() { w.metrics.IncrementTransition(string(name), outcome(err)) }()

	user, err := actor(ctx, w.directory)
	if err != nil {
		return nil, err
	}
	audit, err = loadAudit(ctx, w.sync, auditID)
	if err != nil {
		return nil, err
	}
	if err = permission.CanTransition(user, permission.Subject{Audit: audit}, name); err != nil {
		return nil, err
	}
	event, err := mutate(audit, user.ID, requestcontext.Now(ctx))
	if err != nil {
		return nil, err
	}
	if err = saveAudit(ctx, w.sync, audit); err != nil {
		return nil, err
	}
	w.logger.InfoContext(ctx, "audit transition committed",
		"audit_id", audit.ID.String(), "transition", string(name), "status", string(audit.Status))
	if event != nil {
		event.Audit = audit
		w.notifier.Dispatch(ctx, *event)
	}
	return audit, nil
}

func decisionNotification(kind models.DecisionKind) notification.Type {
	switch kind {
	case models.DecisionApprove:
		return notification.TypeAuditApproved
	case models.DecisionReject:
		return notification.TypeAuditRejected
	case models.DecisionRequestModification:
		return notification.TypeAuditModificationRequested
	default:
		return notification.TypeAuditPostponed
	}
}

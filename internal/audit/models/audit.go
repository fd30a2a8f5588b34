// Package models holds the audit aggregate: the audit-level state machine,
// its append-only approval history, and its owned findings.
//
// Invariants:
//   - Status moves only through the transition table encoded in the Can*
//     methods; nothing outside this package assigns Status.
//   - History is append-only; entries are never mutated or removed.
//   - Re-entering execution after reject/request_modification is a loop,
//     not a reset: findings and history are preserved.
//   - A finding closes only when a department response exists.
package models

import (
	"time"

	dErrors "auditflow/pkg/domain-errors"
	id "auditflow/pkg/domain"
)

// Status is the audit-level workflow state.
type Status string

const (
	StatusPlanning           Status = "planning"
	StatusExecution          Status = "execution"
	StatusAwaitingManagement Status = "awaiting_management"
	StatusCompleted          Status = "completed"
	StatusCancelled          Status = "cancelled"
)

// Valid reports whether s is one of the five enumerated states.
func (s Status) Valid() bool {
	switch s {
	case StatusPlanning, StatusExecution, StatusAwaitingManagement, StatusCompleted, StatusCancelled:
		return true
	}
	return false
}

// Terminal reports whether no further transition can leave s.
func (s Status) Terminal() bool {
	return s == StatusCompleted || s == StatusCancelled
}

// AuditType distinguishes internal from external audits.
type AuditType string

const (
	TypeInternal AuditType = "internal"
	TypeExternal AuditType = "external"
)

// ParseAuditType validates an audit type string.
func ParseAuditType(s string) (AuditType, error) {
	t := AuditType(s)
	if t != TypeInternal && t != TypeExternal {
		return "", dErrors.Newf(dErrors.CodeValidation, "unknown audit type: %s", s)
	}
	return t, nil
}

// DecisionKind classifies one approval-history entry.
type DecisionKind string

const (
	DecisionScheduleConfirmed DecisionKind = "schedule_confirmed"
	DecisionSubmitted         DecisionKind = "submitted"
	DecisionApprove           DecisionKind = "approve"
	DecisionReject            DecisionKind = "reject"
	DecisionPostpone          DecisionKind = "postpone"
	DecisionRequestModification DecisionKind = "request_modification"
	DecisionCancelled         DecisionKind = "cancelled"
)

// ManagementKinds are the decision kinds management may issue while an
// audit awaits them.
var ManagementKinds = map[DecisionKind]bool{
	DecisionApprove:             true,
	DecisionReject:              true,
	DecisionPostpone:            true,
	DecisionRequestModification: true,
}

// ParseDecisionKind validates a management decision kind.
func ParseDecisionKind(s string) (DecisionKind, error) {
	k := DecisionKind(s)
	if !ManagementKinds[k] {
		return "", dErrors.Newf(dErrors.CodeValidation, "unknown decision kind: %s", s)
	}
	return k, nil
}

// ApprovalDecision is one immutable entry in an audit's approval history.
type ApprovalDecision struct {
	Kind    DecisionKind `json:"kind"`
	ActorID id.UserID    `json:"actor_id"`
	At      time.Time    `json:"at"`
	Comment string       `json:"comment,omitempty"`
}

// ScheduleWindow is the planned execution window.
type ScheduleWindow struct {
	Start time.Time `json:"start"`
	End   time.Time `json:"end"`
}

// Set reports whether both bounds are present and ordered.
func (w ScheduleWindow) Set() bool {
	return !w.Start.IsZero() && !w.End.IsZero() && !w.End.Before(w.Start)
}

// Audit is the aggregate root. It exclusively owns its findings and its
// approval history; neither is referenced from anywhere else.
type Audit struct {
	ID            id.AuditID         `json:"id"`
	Title         id.BilingualText   `json:"title"`
	Type          AuditType          `json:"type"`
	Status        Status             `json:"status"`
	Schedule      ScheduleWindow     `json:"schedule"`
	LeadAuditorID id.UserID          `json:"lead_auditor_id"`
	AuditorIDs    []id.UserID        `json:"auditor_ids,omitempty"`
	DepartmentID  id.DepartmentID    `json:"department_id"`
	History       []ApprovalDecision `json:"history,omitempty"`
	Findings      []Finding          `json:"findings,omitempty"`
	// ModificationRequested gates resubmission after a request_modification
	// decision until the lead auditor marks it addressed.
	ModificationRequested bool      `json:"modification_requested,omitempty"`
	CreatedBy             id.UserID `json:"created_by"`
	CreatedAt             time.Time `json:"created_at"`
	UpdatedAt             time.Time `json:"updated_at"`
}

// NewAudit creates an audit in planning.
func NewAudit(auditID id.AuditID, title id.BilingualText, auditType AuditType, dept id.DepartmentID, creator id.UserID, now time.Time) (*Audit, error) {
	if title.IsEmpty() {
		return nil, dErrors.New(dErrors.CodeValidation, "audit title is required")
	}
	if dept.IsNil() {
		return nil, dErrors.New(dErrors.CodeValidation, "owning department is required")
	}
	if creator.IsNil() {
		return nil, dErrors.New(dErrors.CodeValidation, "creator is required")
	}
	return &Audit{
		ID:           auditID,
		Title:        title,
		Type:         auditType,
		Status:       StatusPlanning,
		DepartmentID: dept,
		CreatedBy:    creator,
		CreatedAt:    now,
		UpdatedAt:    now,
	}, nil
}

// IsAuditor reports whether the user is the audit's lead, in its auditor
// set, or its creator.
func (a *Audit) IsAuditor(userID id.UserID) bool {
	if userID == a.LeadAuditorID || userID == a.CreatedBy {
		return true
	}
	for _, auditorID := range a.AuditorIDs {
		if auditorID == userID {
			return true
		}
	}
	return false
}

// Finding returns a pointer into the owned findings list, or nil.
func (a *Audit) Finding(findingID id.FindingID) *Finding {
	for i := range a.Findings {
		if a.Findings[i].ID == findingID {
			return &a.Findings[i]
		}
	}
	return nil
}

func (a *Audit) appendDecision(kind DecisionKind, actor id.UserID, comment string, now time.Time) {
	a.History = append(a.History, ApprovalDecision{
		Kind:    kind,
		ActorID: actor,
		At:      now,
		Comment: comment,
	})
	a.UpdatedAt = now
}

// CanUpdatePlanning restricts team and schedule edits to the planning stage.
func (a *Audit) CanUpdatePlanning() error {
	if a.Status != StatusPlanning {
		return dErrors.Newf(dErrors.CodeValidation, "cannot edit planning details from status %s", a.Status)
	}
	return nil
}

// ApplyPlanning sets the audit team and schedule window.
// Call CanUpdatePlanning first.
func (a *Audit) ApplyPlanning(lead id.UserID, team []id.UserID, schedule ScheduleWindow, now time.Time) {
	a.LeadAuditorID = lead
	a.AuditorIDs = team
	a.Schedule = schedule
	a.UpdatedAt = now
}

// CanRecordFinding restricts finding creation to the execution stage.
func (a *Audit) CanRecordFinding() error {
	if a.Status != StatusExecution {
		return dErrors.Newf(dErrors.CodeValidation, "cannot record a finding from status %s", a.Status)
	}
	return nil
}

// AddFinding appends an owned finding. Call CanRecordFinding first.
func (a *Audit) AddFinding(finding Finding, now time.Time) {
	a.Findings = append(a.Findings, finding)
	a.UpdatedAt = now
}

// CanConfirmSchedule checks the planning → execution transition: the team
// and the schedule window must be set.
func (a *Audit) CanConfirmSchedule() error {
	if a.Status != StatusPlanning {
		return dErrors.Newf(dErrors.CodeValidation, "cannot confirm schedule from status %s", a.Status)
	}
	if a.LeadAuditorID.IsNil() {
		return dErrors.New(dErrors.CodeValidation, "lead auditor must be assigned before confirming the schedule")
	}
	if !a.Schedule.Set() {
		return dErrors.New(dErrors.CodeValidation, "schedule window must be set before confirming")
	}
	return nil
}

// ApplyConfirmSchedule transitions the audit into execution.
// Call CanConfirmSchedule first.
func (a *Audit) ApplyConfirmSchedule(actor id.UserID, now time.Time) {
	a.Status = StatusExecution
	a.appendDecision(DecisionScheduleConfirmed, actor, "", now)
}

// CanSubmit checks the execution → awaiting_management transition: every
// recorded finding must have its required fields, and an outstanding
// modification request must have been addressed.
func (a *Audit) CanSubmit() error {
	if a.Status != StatusExecution {
		return dErrors.Newf(dErrors.CodeValidation, "cannot submit for approval from status %s", a.Status)
	}
	if a.ModificationRequested {
		return dErrors.New(dErrors.CodeValidation, "modification request must be addressed before resubmitting")
	}
	for i := range a.Findings {
		if err := a.Findings[i].Complete(); err != nil {
			return err
		}
	}
	return nil
}

// ApplySubmit transitions the audit to awaiting_management and records the
// submission. Call CanSubmit first.
func (a *Audit) ApplySubmit(actor id.UserID, now time.Time) {
	a.Status = StatusAwaitingManagement
	a.appendDecision(DecisionSubmitted, actor, "", now)
}

// CanDecide checks a management decision against the current state.
// Reject and request_modification demand a comment.
func (a *Audit) CanDecide(kind DecisionKind, comment string) error {
	if !ManagementKinds[kind] {
		return dErrors.Newf(dErrors.CodeValidation, "unknown decision kind: %s", kind)
	}
	if a.Status != StatusAwaitingManagement {
		return dErrors.Newf(dErrors.CodeValidation, "cannot decide %s from status %s", kind, a.Status)
	}
	if (kind == DecisionReject || kind == DecisionRequestModification) && comment == "" {
		return dErrors.Newf(dErrors.CodeValidation, "decision %s requires a comment", kind)
	}
	return nil
}

// ApplyDecision applies a management decision. Approve completes the audit;
// reject and request_modification loop it back to execution without
// clearing findings or history; postpone only touches the schedule.
// Call CanDecide first.
func (a *Audit) ApplyDecision(kind DecisionKind, actor id.UserID, comment string, schedule *ScheduleWindow, now time.Time) {
	switch kind {
	case DecisionApprove:
		a.Status = StatusCompleted
	case DecisionReject:
		a.Status = StatusExecution
	case DecisionRequestModification:
		a.Status = StatusExecution
		a.ModificationRequested = true
	case DecisionPostpone:
		if schedule != nil {
			a.Schedule = *schedule
		}
	}
	a.appendDecision(kind, actor, comment, now)
}

// CanAddressModification checks that there is an outstanding modification
// request to address.
func (a *Audit) CanAddressModification() error {
	if !a.ModificationRequested {
		return dErrors.New(dErrors.CodeValidation, "no outstanding modification request")
	}
	return nil
}

// ApplyAddressModification clears the resubmission gate.
func (a *Audit) ApplyAddressModification(now time.Time) {
	a.ModificationRequested = false
	a.UpdatedAt = now
}

// CanCancel checks the cancel transition: any non-terminal state, with a
// mandatory justification.
func (a *Audit) CanCancel(justification string) error {
	if a.Status.Terminal() {
		return dErrors.Newf(dErrors.CodeValidation, "cannot cancel from status %s", a.Status)
	}
	if justification == "" {
		return dErrors.New(dErrors.CodeValidation, "cancellation requires a justification")
	}
	return nil
}

// ApplyCancel transitions the audit to cancelled. Call CanCancel first.
func (a *Audit) ApplyCancel(actor id.UserID, justification string, now time.Time) {
	a.Status = StatusCancelled
	a.appendDecision(DecisionCancelled, actor, justification, now)
}

package models

import (
	"time"

	dErrors "auditflow/pkg/domain-errors"
	id "auditflow/pkg/domain"
)

// Severity classifies a finding.
type Severity string

const (
	SeverityObservation Severity = "observation"
	SeverityMinor       Severity = "minor"
	SeverityMajor       Severity = "major"
	SeverityCritical    Severity = "critical"
)

// ParseSeverity validates a severity string.
func ParseSeverity(s string) (Severity, error) {
	v := Severity(s)
	switch v {
	case SeverityObservation, SeverityMinor, SeverityMajor, SeverityCritical:
		return v, nil
	}
	return "", dErrors.Newf(dErrors.CodeValidation, "unknown severity: %s", s)
}

// FindingStatus is the per-finding lifecycle state.
type FindingStatus string

const (
	FindingOpen                FindingStatus = "open"
	FindingInProgress          FindingStatus = "in_progress"
	FindingPendingVerification FindingStatus = "pending_verification"
	FindingClosed              FindingStatus = "closed"
)

// Attachment is an opaque descriptor for a file stored elsewhere. The
// engine never reads or writes file contents.
type Attachment struct {
	ID   string `json:"id"`
	Name string `json:"name"`
	Size int64  `json:"size"`
	URL  string `json:"url"`
}

// DepartmentResponse is the auditee department's formal reply: evidence
// toward closure, not closure itself.
type DepartmentResponse struct {
	Comment             string       `json:"comment"`
	ProposedClosingDate time.Time    `json:"proposed_closing_date,omitempty"`
	Attachments         []Attachment `json:"attachments,omitempty"`
	SubmittedBy         id.UserID    `json:"submitted_by"`
	SubmittedAt         time.Time    `json:"submitted_at"`
}

// Finding is an owned sub-entity of an audit. AuditID is a back-reference
// only; the audit document is the single owner.
type Finding struct {
	ID               id.FindingID        `json:"id"`
	AuditID          id.AuditID          `json:"audit_id"`
	Clause           string              `json:"clause"`
	Severity         Severity            `json:"severity"`
	Status           FindingStatus       `json:"status"`
	DepartmentID     id.DepartmentID     `json:"department_id"`
	Section          string              `json:"section,omitempty"`
	RootCause        string              `json:"root_cause,omitempty"`
	CorrectiveAction string              `json:"corrective_action,omitempty"`
	Response         *DepartmentResponse `json:"response,omitempty"`
	DueDate          time.Time           `json:"due_date"`
	ClosedAt         *time.Time          `json:"closed_at,omitempty"`
	CreatedBy        id.UserID           `json:"created_by"`
	CreatedAt        time.Time           `json:"created_at"`
}

// NewFinding creates an open finding. The due date must fall strictly after
// the creation time.
func NewFinding(findingID id.FindingID, auditID id.AuditID, clause string, severity Severity, dept id.DepartmentID, section string, dueDate time.Time, creator id.UserID, now time.Time) (*Finding, error) {
	if clause == "" {
		return nil, dErrors.New(dErrors.CodeValidation, "clause reference is required")
	}
	if _, err := ParseSeverity(string(severity)); err != nil {
		return nil, err
	}
	if dept.IsNil() {
		return nil, dErrors.New(dErrors.CodeValidation, "responsible department is required")
	}
	if !dueDate.After(now) {
		return nil, dErrors.New(dErrors.CodeValidation, "due date must fall after the finding's creation time")
	}
	return &Finding{
		ID:           findingID,
		AuditID:      auditID,
		Clause:       clause,
		Severity:     severity,
		Status:       FindingOpen,
		DepartmentID: dept,
		Section:      section,
		DueDate:      dueDate,
		CreatedBy:    creator,
		CreatedAt:    now,
	}, nil
}

// Complete checks the fields an audit submission requires on every finding.
func (f *Finding) Complete() error {
	if f.Clause == "" {
		return dErrors.Newf(dErrors.CodeValidation, "finding %s is missing its clause reference", f.ID)
	}
	if f.DepartmentID.IsNil() {
		return dErrors.Newf(dErrors.CodeValidation, "finding %s is missing its responsible department", f.ID)
	}
	if f.RootCause == "" || f.CorrectiveAction == "" {
		return dErrors.Newf(dErrors.CodeValidation, "finding %s is missing root cause or corrective action", f.ID)
	}
	return nil
}

// CanSubmitCorrectiveAction rejects updates to closed findings.
func (f *Finding) CanSubmitCorrectiveAction(rootCause, correctiveAction string) error {
	if f.Status == FindingClosed {
		return dErrors.Newf(dErrors.CodeValidation, "finding %s is already closed", f.ID)
	}
	if rootCause == "" || correctiveAction == "" {
		return dErrors.New(dErrors.CodeValidation, "root cause and corrective action are required")
	}
	return nil
}

// ApplySubmitCorrectiveAction records the remediation plan. An open finding
// advances to in_progress; re-submission while in_progress is idempotent
// with respect to status.
func (f *Finding) ApplySubmitCorrectiveAction(rootCause, correctiveAction string) {
	f.RootCause = rootCause
	f.CorrectiveAction = correctiveAction
	if f.Status == FindingOpen {
		f.Status = FindingInProgress
	}
}

// CanSubmitResponse rejects responses on closed findings.
func (f *Finding) CanSubmitResponse(comment string) error {
	if f.Status == FindingClosed {
		return dErrors.Newf(dErrors.CodeValidation, "finding %s is already closed", f.ID)
	}
	if comment == "" {
		return dErrors.New(dErrors.CodeValidation, "response comment is required")
	}
	return nil
}

// ApplySubmitResponse stores the department response. It never changes
// status: the response is evidence, not closure. A proposed closing date
// later than the due date is accepted as-is.
func (f *Finding) ApplySubmitResponse(response DepartmentResponse) {
	f.Response = &response
}

// CanRequestVerification checks the in_progress → pending_verification
// transition: the department flags its work done once a response exists.
func (f *Finding) CanRequestVerification() error {
	if f.Status != FindingInProgress {
		return dErrors.Newf(dErrors.CodeValidation, "cannot request verification from status %s", f.Status)
	}
	if f.Response == nil {
		return dErrors.New(dErrors.CodeValidation, "a department response is required before requesting verification")
	}
	return nil
}

// ApplyRequestVerification marks the finding as awaiting auditor review.
func (f *Finding) ApplyRequestVerification() {
	f.Status = FindingPendingVerification
}

// CanClose enforces closed ⇒ department response exists.
func (f *Finding) CanClose() error {
	if f.Status == FindingClosed {
		return dErrors.Newf(dErrors.CodeValidation, "finding %s is already closed", f.ID)
	}
	if f.Response == nil {
		return dErrors.New(dErrors.CodeValidation, "a department response is required before closing")
	}
	return nil
}

// ApplyClose closes the finding. Call CanClose first.
func (f *Finding) ApplyClose(now time.Time) {
	f.Status = FindingClosed
	f.ClosedAt = &now
}

// Overdue is the pure overdue predicate: true iff the finding is not closed
// and now is past the department-proposed closing date when present, else
// past the original due date.
func (f *Finding) Overdue(now time.Time) bool {
	if f.Status == FindingClosed {
		return false
	}
	deadline := f.DueDate
	if f.Response != nil && !f.Response.ProposedClosingDate.IsZero() {
		deadline = f.Response.ProposedClosingDate
	}
	return now.After(deadline)
}

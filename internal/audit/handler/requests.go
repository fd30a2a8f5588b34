package handler

import (
	"errors"
	"time"

	"auditflow/internal/audit/models"
	"auditflow/internal/audit/service"
	id "auditflow/pkg/domain"
)

// errHandled signals that the response has already been written (malformed
// body answered by the decoder).
var errHandled = errors.New("response already written")

// CreateAuditRequest is the body for POST /audits.
type CreateAuditRequest struct {
	Title        id.BilingualText `json:"title"`
	Type         string           `json:"type"`
	DepartmentID id.DepartmentID  `json:"department_id"`
}

// ToInput converts the request to a service input.
func (r CreateAuditRequest) ToInput() service.CreateAuditInput {
	return service.CreateAuditInput{
		Title:        r.Title,
		Type:         r.Type,
		DepartmentID: r.DepartmentID,
	}
}

// PlanningRequest is the body for PUT /audits/{auditID}/planning.
type PlanningRequest struct {
	LeadAuditorID string    `json:"lead_auditor_id"`
	AuditorIDs    []string  `json:"auditor_ids"`
	ScheduleStart time.Time `json:"schedule_start"`
	ScheduleEnd   time.Time `json:"schedule_end"`
}

// ToInput parses the identifiers and converts to a service input.
func (r PlanningRequest) ToInput() (service.PlanningInput, error) {
	lead, err := id.ParseUserID(r.LeadAuditorID)
	if err != nil {
		return service.PlanningInput{}, err
	}
	team := make([]id.UserID, 0, len(r.AuditorIDs))
	for _, raw := range r.AuditorIDs {
		userID, err := id.ParseUserID(raw)
		if err != nil {
			return service.PlanningInput{}, err
		}
		team = append(team, userID)
	}
	return service.PlanningInput{
		LeadAuditorID: lead,
		AuditorIDs:    team,
		Schedule:      models.ScheduleWindow{Start: r.ScheduleStart, End: r.ScheduleEnd},
	}, nil
}

// DecideRequest is the body for POST /audits/{auditID}/decision.
type DecideRequest struct {
	Kind          string     `json:"kind"`
	Comment       string     `json:"comment,omitempty"`
	ScheduleStart *time.Time `json:"schedule_start,omitempty"`
	ScheduleEnd   *time.Time `json:"schedule_end,omitempty"`
}

// ToInput converts the request to a service input. A proposed window is
// passed only when both bounds are present.
func (r DecideRequest) ToInput() service.DecideInput {
	input := service.DecideInput{Kind: r.Kind, Comment: r.Comment}
	if r.ScheduleStart != nil && r.ScheduleEnd != nil {
		input.Schedule = &models.ScheduleWindow{Start: *r.ScheduleStart, End: *r.ScheduleEnd}
	}
	return input
}

// CancelRequest is the body for POST /audits/{auditID}/cancel.
type CancelRequest struct {
	Justification string `json:"justification"`
}

// RecordFindingRequest is the body for POST /audits/{auditID}/findings.
type RecordFindingRequest struct {
	Clause       string    `json:"clause"`
	Severity     string    `json:"severity"`
	DepartmentID string    `json:"department_id"`
	Section      string    `json:"section,omitempty"`
	DueDate      time.Time `json:"due_date"`
}

// ToInput parses the department ID and converts to a service input.
func (r RecordFindingRequest) ToInput() (service.RecordFindingInput, error) {
	dept, err := id.ParseDepartmentID(r.DepartmentID)
	if err != nil {
		return service.RecordFindingInput{}, err
	}
	return service.RecordFindingInput{
		Clause:       r.Clause,
		Severity:     r.Severity,
		DepartmentID: dept,
		Section:      r.Section,
		DueDate:      r.DueDate,
	}, nil
}

// CorrectiveActionRequest is the body for the corrective-action endpoint.
type CorrectiveActionRequest struct {
	RootCause        string `json:"root_cause"`
	CorrectiveAction string `json:"corrective_action"`
}

// ResponseRequest is the body for the department response endpoint.
type ResponseRequest struct {
	Comment             string              `json:"comment"`
	ProposedClosingDate time.Time           `json:"proposed_closing_date,omitempty"`
	Attachments         []models.Attachment `json:"attachments,omitempty"`
}

// ToInput converts the request to a service input.
func (r ResponseRequest) ToInput() service.ResponseInput {
	return service.ResponseInput{
		Comment:             r.Comment,
		ProposedClosingDate: r.ProposedClosingDate,
		Attachments:         r.Attachments,
	}
}

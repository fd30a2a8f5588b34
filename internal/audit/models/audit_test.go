package models

import (
	"testing"
	"time"

	"github.com/stretchr/testify/suite"

	dErrors "auditflow/pkg/domain-errors"
	id "auditflow/pkg/domain"
)

// =============================================================================
// Audit State Machine Test Suite
// =============================================================================
// The transition table lives entirely in this package; these tests pin it
// down state by state, including the reject/request-modification loop that
// must preserve findings and history.

type AuditModelSuite struct {
	suite.Suite
	now     time.Time
	creator id.UserID
	lead    id.UserID
	dept    id.DepartmentID
}

func TestAuditModelSuite(t *testing.T) {
	suite.Run(t, new(AuditModelSuite))
}

func (s *AuditModelSuite) SetupTest() {
	s.now = time.Date(2026, 3, 10, 9, 0, 0, 0, time.UTC)
	s.creator = id.NewUserID()
	s.lead = id.NewUserID()
	s.dept = id.NewDepartmentID()
}

func (s *AuditModelSuite) newAudit() *Audit {
	audit, err := NewAudit(id.NewAuditID(), id.BilingualText{En: "Supplier audit"}, TypeInternal, s.dept, s.creator, s.now)
	s.Require().NoError(err)
	return audit
}

// inExecution builds an audit that has confirmed its schedule.
func (s *AuditModelSuite) inExecution() *Audit {
	audit := s.newAudit()
	audit.ApplyPlanning(s.lead, nil, ScheduleWindow{Start: s.now, End: s.now.Add(48 * time.Hour)}, s.now)
	s.Require().NoError(audit.CanConfirmSchedule())
	audit.ApplyConfirmSchedule(s.creator, s.now)
	return audit
}

func (s *AuditModelSuite) completeFinding(audit *Audit) *Finding {
	finding, err := NewFinding(id.NewFindingID(), audit.ID, "9.2.1", SeverityMinor, s.dept, "", s.now.Add(14*24*time.Hour), s.creator, s.now)
	s.Require().NoError(err)
	finding.ApplySubmitCorrectiveAction("missing calibration records", "re-train lab staff")
	audit.AddFinding(*finding, s.now)
	return audit.Finding(finding.ID)
}

// =============================================================================
// Creation and Planning
// =============================================================================

func (s *AuditModelSuite) TestNewAudit() {
	s.Run("starts in planning with creation recorded", func() {
		audit := s.newAudit()
		s.Equal(StatusPlanning, audit.Status)
		s.Empty(audit.History)
		s.Equal(s.creator, audit.CreatedBy)
	})

	s.Run("rejects empty title", func() {
		_, err := NewAudit(id.NewAuditID(), id.BilingualText{}, TypeInternal, s.dept, s.creator, s.now)
		s.True(dErrors.HasCode(err, dErrors.CodeValidation))
	})

	s.Run("rejects missing department", func() {
		_, err := NewAudit(id.NewAuditID(), id.BilingualText{En: "x"}, TypeInternal, id.DepartmentID{}, s.creator, s.now)
		s.True(dErrors.HasCode(err, dErrors.CodeValidation))
	})
}

func (s *AuditModelSuite) TestUpdatePlanning() {
	s.Run("allowed only in planning", func() {
		audit := s.inExecution()
		s.True(dErrors.HasCode(audit.CanUpdatePlanning(), dErrors.CodeValidation))
	})
}

// =============================================================================
// Schedule Confirmation
// =============================================================================

func (s *AuditModelSuite) TestConfirmSchedule() {
	s.Run("requires a lead auditor", func() {
		audit := s.newAudit()
		audit.Schedule = ScheduleWindow{Start: s.now, End: s.now.Add(time.Hour)}
		s.True(dErrors.HasCode(audit.CanConfirmSchedule(), dErrors.CodeValidation))
	})

	s.Run("requires an ordered window", func() {
		audit := s.newAudit()
		audit.LeadAuditorID = s.lead
		audit.Schedule = ScheduleWindow{Start: s.now, End: s.now.Add(-time.Hour)}
		s.True(dErrors.HasCode(audit.CanConfirmSchedule(), dErrors.CodeValidation))
	})

	s.Run("moves to execution and appends exactly one history entry", func() {
		audit := s.inExecution()
		s.Equal(StatusExecution, audit.Status)
		s.Require().Len(audit.History, 1)
		s.Equal(DecisionScheduleConfirmed, audit.History[0].Kind)
	})

	s.Run("cannot confirm twice", func() {
		audit := s.inExecution()
		s.True(dErrors.HasCode(audit.CanConfirmSchedule(), dErrors.CodeValidation))
	})
}

// =============================================================================
// Submission
// =============================================================================

func (s *AuditModelSuite) TestSubmit() {
	s.Run("requires execution", func() {
		audit := s.newAudit()
		s.True(dErrors.HasCode(audit.CanSubmit(), dErrors.CodeValidation))
	})

	s.Run("rejects incomplete findings", func() {
		audit := s.inExecution()
		finding, err := NewFinding(id.NewFindingID(), audit.ID, "7.1", SeverityMajor, s.dept, "", s.now.Add(time.Hour), s.creator, s.now)
		s.Require().NoError(err)
		audit.AddFinding(*finding, s.now) // no root cause / corrective action yet
		s.True(dErrors.HasCode(audit.CanSubmit(), dErrors.CodeValidation))
	})

	s.Run("rejects while a modification request is outstanding", func() {
		audit := s.inExecution()
		audit.ModificationRequested = true
		err := audit.CanSubmit()
		s.True(dErrors.HasCode(err, dErrors.CodeValidation))
		s.Contains(err.Error(), "modification request")
	})

	s.Run("moves to awaiting management", func() {
		audit := s.inExecution()
		s.completeFinding(audit)
		s.Require().NoError(audit.CanSubmit())
		audit.ApplySubmit(s.lead, s.now)
		s.Equal(StatusAwaitingManagement, audit.Status)
		s.Equal(DecisionSubmitted, audit.History[len(audit.History)-1].Kind)
	})
}

// =============================================================================
// Management Decisions
// =============================================================================

func (s *AuditModelSuite) awaiting() *Audit {
	audit := s.inExecution()
	s.completeFinding(audit)
	audit.ApplySubmit(s.lead, s.now)
	return audit
}

func (s *AuditModelSuite) TestDecide() {
	manager := id.NewUserID()

	s.Run("only valid while awaiting management", func() {
		audit := s.inExecution()
		s.True(dErrors.HasCode(audit.CanDecide(DecisionApprove, ""), dErrors.CodeValidation))
	})

	s.Run("reject and request_modification demand a comment", func() {
		audit := s.awaiting()
		s.True(dErrors.HasCode(audit.CanDecide(DecisionReject, ""), dErrors.CodeValidation))
		s.True(dErrors.HasCode(audit.CanDecide(DecisionRequestModification, ""), dErrors.CodeValidation))
		s.NoError(audit.CanDecide(DecisionApprove, ""))
		s.NoError(audit.CanDecide(DecisionPostpone, ""))
	})

	s.Run("approve completes the audit", func() {
		audit := s.awaiting()
		audit.ApplyDecision(DecisionApprove, manager, "", nil, s.now)
		s.Equal(StatusCompleted, audit.Status)
		s.True(audit.Status.Terminal())
	})

	s.Run("reject loops back to execution preserving findings and history", func() {
		audit := s.awaiting()
		findingsBefore := len(audit.Findings)
		historyBefore := len(audit.History)

		audit.ApplyDecision(DecisionReject, manager, "evidence is insufficient", nil, s.now)

		s.Equal(StatusExecution, audit.Status)
		s.Len(audit.Findings, findingsBefore)
		s.Len(audit.History, historyBefore+1)
		s.Equal(DecisionReject, audit.History[len(audit.History)-1].Kind)
		s.Equal("evidence is insufficient", audit.History[len(audit.History)-1].Comment)
	})

	s.Run("request_modification loops back and gates resubmission", func() {
		audit := s.awaiting()
		audit.ApplyDecision(DecisionRequestModification, manager, "add scope detail", nil, s.now)
		s.Equal(StatusExecution, audit.Status)
		s.True(audit.ModificationRequested)
		s.True(dErrors.HasCode(audit.CanSubmit(), dErrors.CodeValidation))

		s.Require().NoError(audit.CanAddressModification())
		audit.ApplyAddressModification(s.now)
		s.False(audit.ModificationRequested)
		s.NoError(audit.CanSubmit())
	})

	s.Run("postpone with a window reschedules without leaving awaiting management", func() {
		audit := s.awaiting()
		window := ScheduleWindow{Start: s.now.Add(30 * 24 * time.Hour), End: s.now.Add(32 * 24 * time.Hour)}
		audit.ApplyDecision(DecisionPostpone, manager, "quarter close", &window, s.now)
		s.Equal(StatusAwaitingManagement, audit.Status)
		s.Equal(window, audit.Schedule)
	})

	s.Run("postpone without a window stays re-decidable", func() {
		audit := s.awaiting()
		before := audit.Schedule
		audit.ApplyDecision(DecisionPostpone, manager, "", nil, s.now)
		s.Equal(StatusAwaitingManagement, audit.Status)
		s.Equal(before, audit.Schedule)
		s.NoError(audit.CanDecide(DecisionApprove, ""))
	})
}

// =============================================================================
// Cancellation
// =============================================================================

func (s *AuditModelSuite) TestCancel() {
	s.Run("requires a justification", func() {
		audit := s.newAudit()
		s.True(dErrors.HasCode(audit.CanCancel(""), dErrors.CodeValidation))
	})

	s.Run("allowed from any non-terminal state", func() {
		for _, audit := range []*Audit{s.newAudit(), s.inExecution(), s.awaiting()} {
			s.NoError(audit.CanCancel("program restructured"))
		}
	})

	s.Run("terminal states cannot be cancelled", func() {
		audit := s.awaiting()
		audit.ApplyDecision(DecisionApprove, id.NewUserID(), "", nil, s.now)
		s.True(dErrors.HasCode(audit.CanCancel("too late"), dErrors.CodeValidation))
	})

	s.Run("records the justification in history", func() {
		audit := s.inExecution()
		audit.ApplyCancel(s.creator, "site closed", s.now)
		s.Equal(StatusCancelled, audit.Status)
		last := audit.History[len(audit.History)-1]
		s.Equal(DecisionCancelled, last.Kind)
		s.Equal("site closed", last.Comment)
	})
}

// =============================================================================
// History Invariant
// =============================================================================

func (s *AuditModelSuite) TestEveryTransitionAppendsExactlyOneEntry() {
	audit := s.newAudit()
	manager := id.NewUserID()

	audit.ApplyPlanning(s.lead, nil, ScheduleWindow{Start: s.now, End: s.now.Add(time.Hour)}, s.now)
	s.Len(audit.History, 0) // planning edits are not decisions

	audit.ApplyConfirmSchedule(s.creator, s.now)
	s.Len(audit.History, 1)

	s.completeFinding(audit)
	audit.ApplySubmit(s.lead, s.now)
	s.Len(audit.History, 2)

	audit.ApplyDecision(DecisionRequestModification, manager, "tighten scope", nil, s.now)
	s.Len(audit.History, 3)

	audit.ApplyAddressModification(s.now)
	s.Len(audit.History, 3) // addressing is a gate flip, not a decision

	audit.ApplySubmit(s.lead, s.now)
	audit.ApplyDecision(DecisionApprove, manager, "", nil, s.now)
	s.Len(audit.History, 5)
}

func (s *AuditModelSuite) TestIsAuditor() {
	audit := s.newAudit()
	team := id.NewUserID()
	audit.LeadAuditorID = s.lead
	audit.AuditorIDs = []id.UserID{team}

	s.True(audit.IsAuditor(s.lead))
	s.True(audit.IsAuditor(s.creator))
	s.True(audit.IsAuditor(team))
	s.False(audit.IsAuditor(id.NewUserID()))
}

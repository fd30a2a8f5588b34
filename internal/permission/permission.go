// Package permission is the single authorization chokepoint: pure,
// side-effect-free functions over (user, entity, context). Roles in a
// finding are derived from relationships on demand — they are never
// persisted, and no manager performs ad hoc role checks of its own.
package permission

import (
	auditmodels "auditflow/internal/audit/models"
	dirmodels "auditflow/internal/directory/models"
	dErrors "auditflow/pkg/domain-errors"
)

// Role is a user's derived role in the context of one finding.
type Role string

const (
	RoleAuditor Role = "auditor"
	RoleAuditee Role = "auditee"
	RoleBoth    Role = "both"
	RoleNone    Role = "none"
)

// IsAuditor reports whether the role carries auditor authority.
func (r Role) IsAuditor() bool { return r == RoleAuditor || r == RoleBoth }

// IsAuditee reports whether the role carries auditee standing.
func (r Role) IsAuditee() bool { return r == RoleAuditee || r == RoleBoth }

// RoleInFinding derives the user's role for one finding: auditor if the
// user is the audit's lead, in its auditor set, or its creator; auditee if
// the user's department is the finding's responsible department; both if
// both conditions hold independently.
func RoleInFinding(user dirmodels.User, finding auditmodels.Finding, audit auditmodels.Audit) Role {
	auditor := audit.IsAuditor(user.ID)
	auditee := user.DepartmentID == finding.DepartmentID
	switch {
	case auditor && auditee:
		return RoleBoth
	case auditor:
		return RoleAuditor
	case auditee:
		return RoleAuditee
	default:
		return RoleNone
	}
}

// Page names an application surface gated by the static capability table.
type Page string

const (
	PageAudits      Page = "audits"
	PageUsers       Page = "users"
	PageDepartments Page = "departments"
	PagePresence    Page = "presence"
	PageReports     Page = "reports"
)

// pageCapabilities is the static capability table. Pages absent from the
// table are open to every authenticated user.
var pageCapabilities = map[Page][]dirmodels.Role{
	PageUsers:       {dirmodels.RoleSystemAdmin, dirmodels.RoleQualityManager},
	PageDepartments: {dirmodels.RoleSystemAdmin, dirmodels.RoleQualityManager, dirmodels.RoleDepartmentManager},
	PagePresence:    {dirmodels.RoleSystemAdmin},
	PageReports:     {dirmodels.RoleSystemAdmin, dirmodels.RoleQualityManager, dirmodels.RoleAuditor},
}

// CanAccessPage consults the static capability table.
func CanAccessPage(user dirmodels.User, page Page) bool {
	required, gated := pageCapabilities[page]
	if !gated {
		return true
	}
	for _, role := range required {
		if user.HasRole(role) {
			return true
		}
	}
	return false
}

// Transition names every guarded operation of the workflow and finding
// engines.
type Transition string

const (
	TransitionCreateAudit             Transition = "create_audit"
	TransitionUpdatePlanning          Transition = "update_planning"
	TransitionConfirmSchedule         Transition = "confirm_schedule"
	TransitionSubmitForApproval       Transition = "submit_for_approval"
	TransitionDecide                  Transition = "decide"
	TransitionCancel                  Transition = "cancel"
	TransitionAddressModification     Transition = "address_modification"
	TransitionRecordFinding           Transition = "record_finding"
	TransitionSubmitCorrectiveAction  Transition = "submit_corrective_action"
	TransitionSubmitResponse          Transition = "submit_response"
	TransitionRequestVerification     Transition = "request_verification"
	TransitionVerifyAndClose          Transition = "verify_and_close"
)

// Subject carries the entities a transition is judged against. Finding is
// nil for audit-level transitions.
type Subject struct {
	Audit   *auditmodels.Audit
	Finding *auditmodels.Finding
}

// CanTransition combines the static role table with the dynamic
// relationship guards. It returns nil or a CodeForbidden error; state
// validity is the models' concern, not this package's.
func CanTransition(user dirmodels.User, subject Subject, transition Transition) error {
	audit := subject.Audit
	switch transition {
	case TransitionCreateAudit:
		if user.CanManage() || user.HasRole(dirmodels.RoleAuditor) {
			return nil
		}
		return forbidden("auditor or audit-management authority is required to create an audit")

	case TransitionUpdatePlanning:
		if audit.IsAuditor(user.ID) || user.CanManage() {
			return nil
		}
		return forbidden("only the audit team or audit management may edit planning details")

	case TransitionConfirmSchedule:
		if audit.IsAuditor(user.ID) || user.CanManage() {
			return nil
		}
		return forbidden("only the audit team or audit management may confirm the schedule")

	case TransitionSubmitForApproval:
		if user.ID == audit.LeadAuditorID || user.ID == audit.CreatedBy {
			return nil
		}
		return forbidden("only the lead auditor or creator may submit for approval")

	case TransitionDecide:
		if user.CanApprove(audit.DepartmentID) {
			return nil
		}
		return forbidden("approval authority over the audit's department is required")

	case TransitionCancel:
		if user.CanManage() {
			return nil
		}
		return forbidden("manage authority is required to cancel an audit")

	case TransitionAddressModification:
		if user.ID == audit.LeadAuditorID || user.ID == audit.CreatedBy {
			return nil
		}
		return forbidden("only the lead auditor or creator may address a modification request")

	case TransitionRecordFinding:
		if audit.IsAuditor(user.ID) {
			return nil
		}
		return forbidden("only the audit team may record findings")

	case TransitionSubmitCorrectiveAction, TransitionSubmitResponse, TransitionRequestVerification:
		if RoleInFinding(user, *subject.Finding, *audit).IsAuditee() {
			return nil
		}
		return forbidden("membership in the finding's responsible department is required")

	case TransitionVerifyAndClose:
		if RoleInFinding(user, *subject.Finding, *audit).IsAuditor() {
			return nil
		}
		return forbidden("the auditor role for the parent audit is required to verify and close")
	}
	return forbidden("unknown transition")
}

func forbidden(msg string) error {
	return dErrors.New(dErrors.CodeForbidden, msg)
}

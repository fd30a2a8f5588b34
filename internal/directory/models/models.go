// Package models holds the directory entities: users, departments, and
// presence sessions. Roles here are the static part of authorization; the
// dynamic, relationship-derived part lives in internal/permission.
package models

import (
	"time"

	id "auditflow/pkg/domain"
)

// Role is a statically assigned capability marker on a user account.
type Role string

const (
	RoleSystemAdmin       Role = "system_admin"
	RoleQualityManager    Role = "quality_manager"
	RoleAuditor           Role = "auditor"
	RoleDepartmentManager Role = "department_manager"
	RoleEmployee          Role = "employee"
)

// User is a directory account. ApprovesDepartments grants management
// approval authority over audits owned by those departments; quality
// managers hold that authority organization-wide.
type User struct {
	ID                  id.UserID         `json:"id"`
	Name                id.BilingualText  `json:"name"`
	Email               string            `json:"email"`
	DepartmentID        id.DepartmentID   `json:"department_id"`
	Roles               []Role            `json:"roles"`
	ApprovesDepartments []id.DepartmentID `json:"approves_departments,omitempty"`
	CreatedAt           time.Time         `json:"created_at"`
}

// HasRole reports whether the user holds the given static role.
func (u User) HasRole(role Role) bool {
	for _, r := range u.Roles {
		if r == role {
			return true
		}
	}
	return false
}

// CanApprove reports whether the user has management approval authority
// over audits of the given department.
func (u User) CanApprove(dept id.DepartmentID) bool {
	if u.HasRole(RoleQualityManager) {
		return true
	}
	for _, d := range u.ApprovesDepartments {
		if d == dept {
			return true
		}
	}
	return false
}

// CanManage reports whether the user holds manage authority over the audit
// program (required for cancellation).
func (u User) CanManage() bool {
	return u.HasRole(RoleSystemAdmin) || u.HasRole(RoleQualityManager)
}

// Department is an organizational unit findings are assigned to.
type Department struct {
	ID        id.DepartmentID  `json:"id"`
	Name      id.BilingualText `json:"name"`
	ManagerID id.UserID        `json:"manager_id"`
	CreatedAt time.Time        `json:"created_at"`
}

// Session records a login and its last-activity heartbeat. Sessions feed the
// admin presence view only; they are never consulted for authorization.
type Session struct {
	ID         id.SessionID `json:"id"`
	UserID     id.UserID    `json:"user_id"`
	LoginAt    time.Time    `json:"login_at"`
	LastSeenAt time.Time    `json:"last_seen_at"`
	Online     bool         `json:"online"`
}

// Stale reports whether the session has gone quiet for longer than ttl.
func (s Session) Stale(now time.Time, ttl time.Duration) bool {
	return now.Sub(s.LastSeenAt) > ttl
}

// Package domain holds typed identifiers and shared domain primitives.
//
// IDs are distinct UUID wrapper types so an AuditID can never be passed
// where a FindingID is expected. Parse functions enforce the invariant
// "IDs are valid, non-empty, non-nil UUIDs" at trust boundaries.
package domain

import (
	"github.com/google/uuid"

	dErrors "auditflow/pkg/domain-errors"
)

type (
	// UserID identifies a user account.
	UserID uuid.UUID
	// DepartmentID identifies an organizational department.
	DepartmentID uuid.UUID
	// AuditID identifies a quality audit.
	AuditID uuid.UUID
	// FindingID identifies a finding within an audit.
	FindingID uuid.UUID
	// NotificationID identifies a single-recipient notification.
	NotificationID uuid.UUID
	// SessionID identifies a login session (presence only).
	SessionID uuid.UUID
)

func (id UserID) String() string         { return uuid.UUID(id).String() }
func (id DepartmentID) String() string   { return uuid.UUID(id).String() }
func (id AuditID) String() string        { return uuid.UUID(id).String() }
func (id FindingID) String() string      { return uuid.UUID(id).String() }
func (id NotificationID) String() string { return uuid.UUID(id).String() }
func (id SessionID) String() string      { return uuid.UUID(id).String() }

func (id UserID) IsNil() bool         { return uuid.UUID(id) == uuid.Nil }
func (id DepartmentID) IsNil() bool   { return uuid.UUID(id) == uuid.Nil }
func (id AuditID) IsNil() bool        { return uuid.UUID(id) == uuid.Nil }
func (id FindingID) IsNil() bool      { return uuid.UUID(id) == uuid.Nil }
func (id NotificationID) IsNil() bool { return uuid.UUID(id) == uuid.Nil }
func (id SessionID) IsNil() bool      { return uuid.UUID(id) == uuid.Nil }

// The wrapper types marshal as canonical UUID strings in JSON and as text
// map keys, same as the underlying uuid.UUID.

func (id UserID) MarshalText() ([]byte, error)         { return uuid.UUID(id).MarshalText() }
func (id DepartmentID) MarshalText() ([]byte, error)   { return uuid.UUID(id).MarshalText() }
func (id AuditID) MarshalText() ([]byte, error)        { return uuid.UUID(id).MarshalText() }
func (id FindingID) MarshalText() ([]byte, error)      { return uuid.UUID(id).MarshalText() }
func (id NotificationID) MarshalText() ([]byte, error) { return uuid.UUID(id).MarshalText() }
func (id SessionID) MarshalText() ([]byte, error)      { return uuid.UUID(id).MarshalText() }

func (id *UserID) UnmarshalText(b []byte) error         { return (*uuid.UUID)(id).UnmarshalText(b) }
func (id *DepartmentID) UnmarshalText(b []byte) error   { return (*uuid.UUID)(id).UnmarshalText(b) }
func (id *AuditID) UnmarshalText(b []byte) error        { return (*uuid.UUID)(id).UnmarshalText(b) }
func (id *FindingID) UnmarshalText(b []byte) error      { return (*uuid.UUID)(id).UnmarshalText(b) }
func (id *NotificationID) UnmarshalText(b []byte) error { return (*uuid.UUID)(id).UnmarshalText(b) }
func (id *SessionID) UnmarshalText(b []byte) error      { return (*uuid.UUID)(id).UnmarshalText(b) }

// NewUserID returns a fresh random UserID.
func NewUserID() UserID { return UserID(uuid.New()) }

// NewDepartmentID returns a fresh random DepartmentID.
func NewDepartmentID() DepartmentID { return DepartmentID(uuid.New()) }

// NewAuditID returns a fresh random AuditID.
func NewAuditID() AuditID { return AuditID(uuid.New()) }

// NewFindingID returns a fresh random FindingID.
func NewFindingID() FindingID { return FindingID(uuid.New()) }

// NewNotificationID returns a fresh random NotificationID.
func NewNotificationID() NotificationID { return NotificationID(uuid.New()) }

// NewSessionID returns a fresh random SessionID.
func NewSessionID() SessionID { return SessionID(uuid.New()) }

func parse(s, kind string) (uuid.UUID, error) {
	if s == "" {
		return uuid.Nil, dErrors.Newf(dErrors.CodeInvalidInput, "%s id is required", kind)
	}
	u, err := uuid.Parse(s)
	if err != nil {
		return uuid.Nil, dErrors.Newf(dErrors.CodeInvalidInput, "%s id is not a valid uuid", kind)
	}
	if u == uuid.Nil {
		return uuid.Nil, dErrors.Newf(dErrors.CodeInvalidInput, "%s id must not be the nil uuid", kind)
	}
	return u, nil
}

// ParseUserID validates and returns a UserID.
func ParseUserID(s string) (UserID, error) {
	u, err := parse(s, "user")
	return UserID(u), err
}

// ParseDepartmentID validates and returns a DepartmentID.
func ParseDepartmentID(s string) (DepartmentID, error) {
	u, err := parse(s, "department")
	return DepartmentID(u), err
}

// ParseAuditID validates and returns an AuditID.
func ParseAuditID(s string) (AuditID, error) {
	u, err := parse(s, "audit")
	return AuditID(u), err
}

// ParseFindingID validates and returns a FindingID.
func ParseFindingID(s string) (FindingID, error) {
	u, err := parse(s, "finding")
	return FindingID(u), err
}

// ParseNotificationID validates and returns a NotificationID.
func ParseNotificationID(s string) (NotificationID, error) {
	u, err := parse(s, "notification")
	return NotificationID(u), err
}

// ParseSessionID validates and returns a SessionID.
func ParseSessionID(s string) (SessionID, error) {
	u, err := parse(s, "session")
	return SessionID(u), err
}

// BilingualText carries a primary (Arabic) and secondary (English) rendering
// of a user-facing label. The engine never localizes; it stores both.
type BilingualText struct {
	Ar string `json:"ar"`
	En string `json:"en"`
}

// IsEmpty reports whether neither rendering is set.
func (t BilingualText) IsEmpty() bool { return t.Ar == "" && t.En == "" }

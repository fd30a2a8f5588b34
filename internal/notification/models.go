// Package notification creates and serves per-recipient notifications.
// Creation rides an outbox side channel so a notification failure can never
// be conflated with the transition that triggered it.
package notification

import (
	"time"

	id "auditflow/pkg/domain"
)

// Type ties a notification to the workflow event that produced it.
type Type string

const (
	TypeAuditScheduleConfirmed     Type = "audit_schedule_confirmed"
	TypeAuditSubmitted             Type = "audit_submitted"
	TypeAuditApproved              Type = "audit_approved"
	TypeAuditRejected              Type = "audit_rejected"
	TypeAuditModificationRequested Type = "audit_modification_requested"
	TypeAuditPostponed             Type = "audit_postponed"
	TypeAuditCancelled             Type = "audit_cancelled"
	TypeFindingRecorded            Type = "finding_recorded"
	TypeResponseSubmitted          Type = "response_submitted"
	TypeFindingClosed              Type = "finding_closed"
)

// Notification is addressed to exactly one recipient. Once created it is
// immutable except for the Read flag, and one recipient's read state never
// affects another's.
type Notification struct {
	ID          id.NotificationID `json:"id"`
	RecipientID id.UserID         `json:"recipient_id"`
	Type        Type              `json:"type"`
	AuditID     id.AuditID        `json:"audit_id"`
	FindingID   *id.FindingID     `json:"finding_id,omitempty"`
	ActorID     id.UserID         `json:"actor_id"`
	Read        bool              `json:"read"`
	CreatedAt   time.Time         `json:"created_at"`
}

package notification

import (
	"context"
	"sort"

	"auditflow/internal/syncstore"
	dErrors "auditflow/pkg/domain-errors"
	id "auditflow/pkg/domain"
)

// Service serves a recipient's notifications and their read state. Every
// operation is scoped to a single recipient; nothing here can touch another
// recipient's notifications.
type Service struct {
	sync *syncstore.Layer
}

// NewService creates a notification read/state service.
func NewService(sync *syncstore.Layer) *Service {
	return &Service{sync: sync}
}

// List returns the recipient's notifications, newest first.
func (s *Service) List(ctx context.Context, recipient id.UserID) ([]Notification, error) {
	docs := s.sync.List(syncstore.CollectionNotifications)
	var out []Notification
	for _, doc := range docs {
		n, err := syncstore.Decode[Notification](doc)
		if err != nil {
			return nil, dErrors.Wrap(err, dErrors.CodeInternal, "decode notification document")
		}
		if n.RecipientID == recipient {
			out = append(out, n)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	return out, nil
}

// UnreadCount returns the recipient's number of unread notifications.
func (s *Service) UnreadCount(ctx context.Context, recipient id.UserID) (int, error) {
	all, err := s.List(ctx, recipient)
	if err != nil {
		return 0, err
	}
	count := 0
	for _, n := range all {
		if !n.Read {
			count++
		}
	}
	return count, nil
}

// MarkRead flips one of the recipient's notifications to read. A
// notification belonging to someone else is reported as not found rather
// than leaking its existence.
func (s *Service) MarkRead(ctx context.Context, recipient id.UserID, notificationID id.NotificationID) error {
	n, err := s.owned(ctx, recipient, notificationID)
	if err != nil {
		return err
	}
	if n.Read {
		return nil
	}
	n.Read = true
	_, err = s.sync.Put(ctx, syncstore.CollectionNotifications, n.ID.String(), n)
	return err
}

// MarkAllRead drives the recipient's unread count to zero. Other
// recipients' read state is untouched by construction: only documents
// addressed to this recipient are written.
func (s *Service) MarkAllRead(ctx context.Context, recipient id.UserID) error {
	all, err := s.List(ctx, recipient)
	if err != nil {
		return err
	}
	for _, n := range all {
		if n.Read {
			continue
		}
		n.Read = true
		if _, err := s.sync.Put(ctx, syncstore.CollectionNotifications, n.ID.String(), n); err != nil {
			return err
		}
	}
	return nil
}

// Delete removes one of the recipient's notifications.
func (s *Service) Delete(ctx context.Context, recipient id.UserID, notificationID id.NotificationID) error {
	if _, err := s.owned(ctx, recipient, notificationID); err != nil {
		return err
	}
	return s.sync.Delete(ctx, syncstore.CollectionNotifications, notificationID.String())
}

func (s *Service) owned(ctx context.Context, recipient id.UserID, notificationID id.NotificationID) (Notification, error) {
	doc, err := s.sync.Load(ctx, syncstore.CollectionNotifications, notificationID.String())
	if err != nil {
		return Notification{}, err
	}
	n, err := syncstore.Decode[Notification](doc)
	if err != nil {
		return Notification{}, dErrors.Wrap(err, dErrors.CodeInternal, "decode notification document")
	}
	if n.RecipientID != recipient {
		return Notification{}, dErrors.New(dErrors.CodeNotFound, "notifications document not found")
	}
	return n, nil
}

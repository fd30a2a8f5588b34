package notification

import (
	"context"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/suite"

	auditmodels "auditflow/internal/audit/models"
	dirmodels "auditflow/internal/directory/models"
	"auditflow/internal/syncstore"
	id "auditflow/pkg/domain"
	dErrors "auditflow/pkg/domain-errors"
	"auditflow/pkg/requestcontext"
)

// =============================================================================
// Notification Test Suite
// =============================================================================
// Covers recipient resolution per event type, the outbox's failure
// isolation, and the per-recipient read-state guarantees.

type stubDirectory struct {
	approvers []dirmodels.User
	members   map[id.DepartmentID][]dirmodels.User
	err       error
}

func (d *stubDirectory) ApproversFor(ctx context.Context, dept id.DepartmentID) ([]dirmodels.User, error) {
	return d.approvers, d.err
}

func (d *stubDirectory) MembersOf(ctx context.Context, dept id.DepartmentID) ([]dirmodels.User, error) {
	return d.members[dept], d.err
}

type NotificationSuite struct {
	suite.Suite
	now    time.Time
	logger *slog.Logger

	store  *syncstore.MemoryStore
	mirror *syncstore.Mirror
	layer  *syncstore.Layer
	cancel context.CancelFunc

	lead    id.UserID
	team    id.UserID
	creator id.UserID
	dept    id.DepartmentID
	audit   *auditmodels.Audit
}

func TestNotificationSuite(t *testing.T) {
	suite.Run(t, new(NotificationSuite))
}

func (s *NotificationSuite) SetupTest() {
	s.now = time.Date(2026, 3, 10, 9, 0, 0, 0, time.UTC)
	s.logger = slog.New(slog.NewTextHandler(io.Discard, nil))

	s.store = syncstore.NewMemoryStore()
	s.mirror = syncstore.NewMirror(s.store)
	ctx, cancel := context.WithCancel(context.Background())
	s.cancel = cancel
	s.Require().NoError(s.mirror.Start(ctx))
	s.Require().NoError(s.mirror.WaitReady(ctx))
	s.layer = syncstore.NewLayer(s.store, s.mirror, nil)

	s.lead = id.NewUserID()
	s.team = id.NewUserID()
	s.creator = id.NewUserID()
	s.dept = id.NewDepartmentID()

	audit, err := auditmodels.NewAudit(id.NewAuditID(), id.BilingualText{En: "audit"}, auditmodels.TypeInternal, s.dept, s.creator, s.now)
	s.Require().NoError(err)
	audit.LeadAuditorID = s.lead
	audit.AuditorIDs = []id.UserID{s.team}
	s.audit = audit
}

func (s *NotificationSuite) TearDownTest() {
	s.cancel()
	s.mirror.Stop()
}

func (s *NotificationSuite) ctx() context.Context {
	return requestcontext.WithTime(context.Background(), s.now)
}

// dispatchAndDrain dispatches one event against an empty notifications
// collection and synchronously drains the outbox.
func (s *NotificationSuite) dispatchAndDrain(directory Directory, event Event) []Notification {
	for _, doc := range s.layer.List(syncstore.CollectionNotifications) {
		s.Require().NoError(s.layer.Delete(s.ctx(), syncstore.CollectionNotifications, doc.ID))
	}

	outbox := NewOutbox(16, s.logger)
	worker := NewWorker(outbox, s.layer, nil, s.logger)
	dispatcher := NewDispatcher(directory, outbox, s.logger)

	dispatcher.Dispatch(s.ctx(), event)
	for worker.DrainOnce(s.ctx()) {
	}

	var all []Notification
	for _, doc := range s.layer.List(syncstore.CollectionNotifications) {
		n, err := syncstore.Decode[Notification](doc)
		s.Require().NoError(err)
		all = append(all, n)
	}
	return all
}

// =============================================================================
// Recipient Resolution
// =============================================================================

func (s *NotificationSuite) TestDispatchRecipients() {
	s.Run("submission goes to every approver of the owning department", func() {
		approverA := dirmodels.User{ID: id.NewUserID()}
		approverB := dirmodels.User{ID: id.NewUserID()}
		directory := &stubDirectory{approvers: []dirmodels.User{approverA, approverB}}

		all := s.dispatchAndDrain(directory, Event{Type: TypeAuditSubmitted, Audit: s.audit, ActorID: s.lead})

		s.Require().Len(all, 2)
		recipients := map[id.UserID]bool{all[0].RecipientID: true, all[1].RecipientID: true}
		s.True(recipients[approverA.ID])
		s.True(recipients[approverB.ID])
	})

	s.Run("decision outcomes go to the lead auditor", func() {
		all := s.dispatchAndDrain(&stubDirectory{}, Event{Type: TypeAuditApproved, Audit: s.audit, ActorID: id.NewUserID()})
		s.Require().Len(all, 1)
		s.Equal(s.lead, all[0].RecipientID)
		s.Equal(TypeAuditApproved, all[0].Type)
	})

	s.Run("schedule and cancellation events reach the whole team", func() {
		all := s.dispatchAndDrain(&stubDirectory{}, Event{Type: TypeAuditCancelled, Audit: s.audit, ActorID: id.NewUserID()})
		s.Require().Len(all, 2)
	})

	s.Run("finding events reach the responsible department members", func() {
		findingDept := id.NewDepartmentID()
		finding, err := auditmodels.NewFinding(id.NewFindingID(), s.audit.ID, "4.4", auditmodels.SeverityMinor, findingDept, "", s.now.Add(time.Hour), s.lead, s.now)
		s.Require().NoError(err)
		s.audit.AddFinding(*finding, s.now)

		member := dirmodels.User{ID: id.NewUserID(), DepartmentID: findingDept}
		directory := &stubDirectory{members: map[id.DepartmentID][]dirmodels.User{findingDept: {member}}}

		all := s.dispatchAndDrain(directory, Event{Type: TypeFindingRecorded, Audit: s.audit, FindingID: &finding.ID, ActorID: s.lead})
		s.Require().Len(all, 1)
		s.Equal(member.ID, all[0].RecipientID)
		s.Require().NotNil(all[0].FindingID)
		s.Equal(finding.ID, *all[0].FindingID)
	})

	s.Run("duplicate recipients collapse to one notification", func() {
		// Lead is also the creator: team events must not notify them twice.
		s.audit.LeadAuditorID = s.creator
		all := s.dispatchAndDrain(&stubDirectory{}, Event{Type: TypeResponseSubmitted, Audit: s.audit, ActorID: id.NewUserID()})
		s.Require().Len(all, 2) // creator (= lead) once, team member once
	})

	s.Run("directory failure drops the event without error", func() {
		directory := &stubDirectory{err: dErrors.New(dErrors.CodePersistence, "directory down")}
		all := s.dispatchAndDrain(directory, Event{Type: TypeAuditSubmitted, Audit: s.audit, ActorID: s.lead})
		s.Empty(all)
	})
}

// =============================================================================
// Outbox Isolation
// =============================================================================

func (s *NotificationSuite) TestOutbox() {
	s.Run("enqueue never blocks when full", func() {
		outbox := NewOutbox(1, s.logger)
		done := make(chan struct{})
		go func() {
			defer close(done)
			for i := 0; i < 10; i++ {
				outbox.Enqueue(Notification{ID: id.NewNotificationID(), RecipientID: s.lead})
			}
		}()
		select {
		case <-done:
		case <-time.After(time.Second):
			s.FailNow("enqueue blocked on a full outbox")
		}
	})

	s.Run("sink failure does not lose the persisted notification", func() {
		outbox := NewOutbox(4, s.logger)
		worker := NewWorker(outbox, s.layer, failingSink{}, s.logger)
		outbox.Enqueue(Notification{ID: id.NewNotificationID(), RecipientID: s.lead, Type: TypeAuditApproved, AuditID: s.audit.ID, CreatedAt: s.now})

		s.True(worker.DrainOnce(s.ctx()))
		s.Len(s.layer.List(syncstore.CollectionNotifications), 1)
	})
}

type failingSink struct{}

func (failingSink) Publish(ctx context.Context, n Notification) error {
	return dErrors.New(dErrors.CodeInternal, "broker unreachable")
}

// =============================================================================
// Per-Recipient Read State
// =============================================================================

func (s *NotificationSuite) TestService() {
	svc := NewService(s.layer)
	alice := id.NewUserID()
	bob := id.NewUserID()

	seed := func(recipient id.UserID, read bool) Notification {
		n := Notification{
			ID:          id.NewNotificationID(),
			RecipientID: recipient,
			Type:        TypeAuditSubmitted,
			AuditID:     s.audit.ID,
			Read:        read,
			CreatedAt:   s.now,
		}
		_, err := s.layer.Put(s.ctx(), syncstore.CollectionNotifications, n.ID.String(), n)
		s.Require().NoError(err)
		return n
	}

	aliceUnread1 := seed(alice, false)
	seed(alice, false)
	seed(bob, false)
	seed(bob, true)

	s.Run("list is scoped to the recipient", func() {
		list, err := svc.List(s.ctx(), alice)
		s.Require().NoError(err)
		s.Len(list, 2)
	})

	s.Run("mark read on another recipient's notification reports not found", func() {
		err := svc.MarkRead(s.ctx(), bob, aliceUnread1.ID)
		s.True(dErrors.HasCode(err, dErrors.CodeNotFound))
	})

	s.Run("mark all read zeroes the recipient and leaves others untouched", func() {
		before, err := svc.UnreadCount(s.ctx(), bob)
		s.Require().NoError(err)
		s.Equal(1, before)

		s.Require().NoError(svc.MarkAllRead(s.ctx(), alice))

		aliceUnread, err := svc.UnreadCount(s.ctx(), alice)
		s.Require().NoError(err)
		s.Equal(0, aliceUnread)

		bobUnread, err := svc.UnreadCount(s.ctx(), bob)
		s.Require().NoError(err)
		s.Equal(before, bobUnread)
	})

	s.Run("delete is scoped to the recipient", func() {
		err := svc.Delete(s.ctx(), bob, aliceUnread1.ID)
		s.True(dErrors.HasCode(err, dErrors.CodeNotFound))
		s.Require().NoError(svc.Delete(s.ctx(), alice, aliceUnread1.ID))
		list, err := svc.List(s.ctx(), alice)
		s.Require().NoError(err)
		s.Len(list, 1)
	})
}

// Package directory resolves users, departments, and presence sessions on
// top of the sync layer. The workflow engines use it to resolve actors and
// notification recipients; it holds no workflow logic of its own.
package directory

import (
	"context"

	"auditflow/internal/directory/models"
	"auditflow/internal/syncstore"
	dErrors "auditflow/pkg/domain-errors"
	id "auditflow/pkg/domain"
	"auditflow/pkg/requestcontext"
)

// Service reads and writes directory entities through the sync layer.
type Service struct {
	sync *syncstore.Layer
}

// NewService creates a directory service over the sync layer.
func NewService(sync *syncstore.Layer) *Service {
	return &Service{sync: sync}
}

// User resolves one user by ID.
func (s *Service) User(ctx context.Context, userID id.UserID) (models.User, error) {
	doc, err := s.sync.Load(ctx, syncstore.CollectionUsers, userID.String())
	if err != nil {
		return models.User{}, err
	}
	user, err := syncstore.Decode[models.User](doc)
	if err != nil {
		return models.User{}, dErrors.Wrap(err, dErrors.CodeInternal, "decode user document")
	}
	return user, nil
}

// Users lists every directory user from the mirror.
func (s *Service) Users(ctx context.Context) ([]models.User, error) {
	docs := s.sync.List(syncstore.CollectionUsers)
	out := make([]models.User, 0, len(docs))
	for _, doc := range docs {
		user, err := syncstore.Decode[models.User](doc)
		if err != nil {
			return nil, dErrors.Wrap(err, dErrors.CodeInternal, "decode user document")
		}
		out = append(out, user)
	}
	return out, nil
}

// Departments lists every department from the mirror.
func (s *Service) Departments(ctx context.Context) ([]models.Department, error) {
	docs := s.sync.List(syncstore.CollectionDepartments)
	out := make([]models.Department, 0, len(docs))
	for _, doc := range docs {
		dept, err := syncstore.Decode[models.Department](doc)
		if err != nil {
			return nil, dErrors.Wrap(err, dErrors.CodeInternal, "decode department document")
		}
		out = append(out, dept)
	}
	return out, nil
}

// Department resolves one department by ID.
func (s *Service) Department(ctx context.Context, deptID id.DepartmentID) (models.Department, error) {
	doc, err := s.sync.Load(ctx, syncstore.CollectionDepartments, deptID.String())
	if err != nil {
		return models.Department{}, err
	}
	dept, err := syncstore.Decode[models.Department](doc)
	if err != nil {
		return models.Department{}, dErrors.Wrap(err, dErrors.CodeInternal, "decode department document")
	}
	return dept, nil
}

// SaveUser persists a user record.
func (s *Service) SaveUser(ctx context.Context, user models.User) error {
	if user.ID.IsNil() {
		return dErrors.New(dErrors.CodeValidation, "user id is required")
	}
	_, err := s.sync.Put(ctx, syncstore.CollectionUsers, user.ID.String(), user)
	return err
}

// SaveDepartment persists a department record.
func (s *Service) SaveDepartment(ctx context.Context, dept models.Department) error {
	if dept.ID.IsNil() {
		return dErrors.New(dErrors.CodeValidation, "department id is required")
	}
	_, err := s.sync.Put(ctx, syncstore.CollectionDepartments, dept.ID.String(), dept)
	return err
}

// ApproversFor returns every user with management approval authority over
// the given department.
func (s *Service) ApproversFor(ctx context.Context, deptID id.DepartmentID) ([]models.User, error) {
	users, err := s.Users(ctx)
	if err != nil {
		return nil, err
	}
	var out []models.User
	for _, user := range users {
		if user.CanApprove(deptID) {
			out = append(out, user)
		}
	}
	return out, nil
}

// MembersOf returns every user belonging to the given department.
func (s *Service) MembersOf(ctx context.Context, deptID id.DepartmentID) ([]models.User, error) {
	users, err := s.Users(ctx)
	if err != nil {
		return nil, err
	}
	var out []models.User
	for _, user := range users {
		if user.DepartmentID == deptID {
			out = append(out, user)
		}
	}
	return out, nil
}

// Touch records a heartbeat for the user's session, creating the session on
// first contact. The heartbeat timer lives in the client; this is its sink.
func (s *Service) Touch(ctx context.Context, userID id.UserID, sessionID id.SessionID) error {
	now := requestcontext.Now(ctx)
	session := models.Session{
		ID:         sessionID,
		UserID:     userID,
		LoginAt:    now,
		LastSeenAt: now,
		Online:     true,
	}
	if doc, err := s.sync.Load(ctx, syncstore.CollectionSessions, sessionID.String()); err == nil {
		if existing, decErr := syncstore.Decode[models.Session](doc); decErr == nil {
			session.LoginAt = existing.LoginAt
		}
	}
	_, err := s.sync.Put(ctx, syncstore.CollectionSessions, sessionID.String(), session)
	return err
}

// Sessions lists every session for the admin presence view.
func (s *Service) Sessions(ctx context.Context) ([]models.Session, error) {
	docs := s.sync.List(syncstore.CollectionSessions)
	out := make([]models.Session, 0, len(docs))
	for _, doc := range docs {
		session, err := syncstore.Decode[models.Session](doc)
		if err != nil {
			return nil, dErrors.Wrap(err, dErrors.CodeInternal, "decode session document")
		}
		out = append(out, session)
	}
	return out, nil
}

// Package handler exposes the directory: users, departments, the admin
// presence view, and the session heartbeat. Page-level gating goes through
// the permission engine's capability table.
package handler

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"auditflow/internal/directory/models"
	"auditflow/internal/permission"
	dErrors "auditflow/pkg/domain-errors"
	id "auditflow/pkg/domain"
	"auditflow/pkg/platform/httputil"
	"auditflow/pkg/requestcontext"
)

// Service defines the directory operations the handler needs.
type Service interface {
	User(ctx context.Context, userID id.UserID) (models.User, error)
	Users(ctx context.Context) ([]models.User, error)
	Departments(ctx context.Context) ([]models.Department, error)
	SaveUser(ctx context.Context, user models.User) error
	SaveDepartment(ctx context.Context, dept models.Department) error
	Touch(ctx context.Context, userID id.UserID, sessionID id.SessionID) error
	Sessions(ctx context.Context) ([]models.Session, error)
}

// Handler handles directory endpoints.
type Handler struct {
	service Service
	logger  *slog.Logger
}

// New creates a directory Handler.
func New(service Service, logger *slog.Logger) *Handler {
	return &Handler{service: service, logger: logger}
}

// Register mounts the directory routes on the authenticated router group.
func (h *Handler) Register(r chi.Router) {
	r.Get("/me", h.handleMe)
	r.Post("/heartbeat", h.handleHeartbeat)
	r.Route("/users", func(r chi.Router) {
		r.Get("/", h.gated(permission.PageUsers, h.handleListUsers))
		r.Post("/", h.gated(permission.PageUsers, h.handleSaveUser))
	})
	r.Route("/departments", func(r chi.Router) {
		r.Get("/", h.handleListDepartments)
		r.Post("/", h.gated(permission.PageDepartments, h.handleSaveDepartment))
	})
	r.Get("/presence", h.gated(permission.PagePresence, h.handlePresence))
}

// gated wraps a handler with the capability table check for one page.
func (h *Handler) gated(page permission.Page, next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()
		user, err := h.service.User(ctx, requestcontext.UserID(ctx))
		if err != nil {
			httputil.WriteError(w, err)
			return
		}
		if !permission.CanAccessPage(user, page) {
			httputil.WriteError(w, dErrors.Newf(dErrors.CodeForbidden, "access to the %s page is restricted", page))
			return
		}
		next(w, r)
	}
}

func (h *Handler) handleMe(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	user, err := h.service.User(ctx, requestcontext.UserID(ctx))
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, user)
}

// HeartbeatRequest is the body for POST /heartbeat.
type HeartbeatRequest struct {
	SessionID string `json:"session_id"`
}

func (h *Handler) handleHeartbeat(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	req, ok := httputil.DecodeAndPrepare[HeartbeatRequest](w, r, h.logger, ctx, requestcontext.RequestID(ctx))
	if !ok {
		return
	}
	sessionID, err := id.ParseSessionID(req.SessionID)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	if err := h.service.Touch(ctx, requestcontext.UserID(ctx), sessionID); err != nil {
		httputil.WriteError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) handleListUsers(w http.ResponseWriter, r *http.Request) {
	users, err := h.service.Users(r.Context())
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, users)
}

func (h *Handler) handleSaveUser(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	user, ok := httputil.DecodeAndPrepare[models.User](w, r, h.logger, ctx, requestcontext.RequestID(ctx))
	if !ok {
		return
	}
	if user.ID.IsNil() {
		user.ID = id.NewUserID()
		user.CreatedAt = requestcontext.Now(ctx)
	}
	if err := h.service.SaveUser(ctx, user); err != nil {
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, user)
}

func (h *Handler) handleListDepartments(w http.ResponseWriter, r *http.Request) {
	departments, err := h.service.Departments(r.Context())
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, departments)
}

func (h *Handler) handleSaveDepartment(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	dept, ok := httputil.DecodeAndPrepare[models.Department](w, r, h.logger, ctx, requestcontext.RequestID(ctx))
	if !ok {
		return
	}
	if dept.ID.IsNil() {
		dept.ID = id.NewDepartmentID()
		dept.CreatedAt = requestcontext.Now(ctx)
	}
	if err := h.service.SaveDepartment(ctx, dept); err != nil {
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, dept)
}

func (h *Handler) handlePresence(w http.ResponseWriter, r *http.Request) {
	sessions, err := h.service.Sessions(r.Context())
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, sessions)
}

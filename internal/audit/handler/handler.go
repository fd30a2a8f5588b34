// Package handler wires the workflow and finding engines to HTTP. It stays
// thin: decode, delegate, translate the coded error. Authorization happens
// in the permission engine, never here.
package handler

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"auditflow/internal/audit/models"
	"auditflow/internal/audit/service"
	id "auditflow/pkg/domain"
	"auditflow/pkg/platform/httputil"
	"auditflow/pkg/requestcontext"
)

// WorkflowService defines the audit-level operations the handler needs.
type WorkflowService interface {
	CreateAudit(ctx context.Context, input service.CreateAuditInput) (*models.Audit, error)
	UpdatePlanning(ctx context.Context, auditID id.AuditID, input service.PlanningInput) (*models.Audit, error)
	ConfirmSchedule(ctx context.Context, auditID id.AuditID) (*models.Audit, error)
	SubmitForApproval(ctx context.Context, auditID id.AuditID) (*models.Audit, error)
	Decide(ctx context.Context, auditID id.AuditID, input service.DecideInput) (*models.Audit, error)
	AddressModification(ctx context.Context, auditID id.AuditID) (*models.Audit, error)
	Cancel(ctx context.Context, auditID id.AuditID, justification string) (*models.Audit, error)
	Get(ctx context.Context, auditID id.AuditID) (*models.Audit, error)
	List(ctx context.Context) ([]models.Audit, error)
}

// FindingsService defines the per-finding operations the handler needs.
type FindingsService interface {
	RecordFinding(ctx context.Context, auditID id.AuditID, input service.RecordFindingInput) (*models.Audit, error)
	SubmitCorrectiveAction(ctx context.Context, auditID id.AuditID, findingID id.FindingID, rootCause, correctiveAction string) (*models.Audit, error)
	SubmitResponse(ctx context.Context, auditID id.AuditID, findingID id.FindingID, input service.ResponseInput) (*models.Audit, error)
	RequestVerification(ctx context.Context, auditID id.AuditID, findingID id.FindingID) (*models.Audit, error)
	VerifyAndClose(ctx context.Context, auditID id.AuditID, findingID id.FindingID) (*models.Audit, error)
	Overdue(ctx context.Context) ([]service.OverdueFinding, error)
}

// Handler handles audit and finding endpoints.
type Handler struct {
	workflow WorkflowService
	findings FindingsService
	logger   *slog.Logger
}

// New creates an audit Handler.
func New(workflow WorkflowService, findings FindingsService, logger *slog.Logger) *Handler {
	return &Handler{workflow: workflow, findings: findings, logger: logger}
}

// Register mounts the audit routes. The caller supplies the authenticated
// router group.
func (h *Handler) Register(r chi.Router) {
	r.Route("/audits", func(r chi.Router) {
		r.Post("/", h.handleCreate)
		r.Get("/", h.handleList)
		r.Route("/{auditID}", func(r chi.Router) {
			r.Get("/", h.handleGet)
			r.Put("/planning", h.handleUpdatePlanning)
			r.Post("/confirm-schedule", h.handleConfirmSchedule)
			r.Post("/submit", h.handleSubmit)
			r.Post("/decision", h.handleDecide)
			r.Post("/address-modification", h.handleAddressModification)
			r.Post("/cancel", h.handleCancel)
			r.Route("/findings", func(r chi.Router) {
				r.Post("/", h.handleRecordFinding)
				r.Route("/{findingID}", func(r chi.Router) {
					r.Post("/corrective-action", h.handleCorrectiveAction)
					r.Post("/response", h.handleResponse)
					r.Post("/request-verification", h.handleRequestVerification)
					r.Post("/close", h.handleClose)
				})
			})
		})
	})
	r.Get("/findings/overdue", h.handleOverdue)
}

func (h *Handler) handleCreate(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	req, ok := httputil.DecodeAndPrepare[CreateAuditRequest](w, r, h.logger, ctx, requestcontext.RequestID(ctx))
	if !ok {
		return
	}
	audit, err := h.workflow.CreateAudit(ctx, req.ToInput())
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusCreated, audit)
}

func (h *Handler) handleList(w http.ResponseWriter, r *http.Request) {
	audits, err := h.workflow.List(r.Context())
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, audits)
}

func (h *Handler) handleGet(w http.ResponseWriter, r *http.Request) {
	auditID, err := id.ParseAuditID(chi.URLParam(r, "auditID"))
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	audit, err := h.workflow.Get(r.Context(), auditID)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, audit)
}

func (h *Handler) handleUpdatePlanning(w http.ResponseWriter, r *http.Request) {
	h.auditOp(w, r, func(ctx context.Context, auditID id.AuditID) (*models.Audit, error) {
		req, ok := httputil.DecodeAndPrepare[PlanningRequest](w, r, h.logger, ctx, requestcontext.RequestID(ctx))
		if !ok {
			return nil, errHandled
		}
		input, err := req.ToInput()
		if err != nil {
			return nil, err
		}
		return h.workflow.UpdatePlanning(ctx, auditID, input)
	})
}

func (h *Handler) handleConfirmSchedule(w http.ResponseWriter, r *http.Request) {
	h.auditOp(w, r, func(ctx context.Context, auditID id.AuditID) (*models.Audit, error) {
		return h.workflow.ConfirmSchedule(ctx, auditID)
	})
}

func (h *Handler) handleSubmit(w http.ResponseWriter, r *http.Request) {
	h.auditOp(w, r, func(ctx context.Context, auditID id.AuditID) (*models.Audit, error) {
		return h.workflow.SubmitForApproval(ctx, auditID)
	})
}

func (h *Handler) handleDecide(w http.ResponseWriter, r *http.Request) {
	h.auditOp(w, r, func(ctx context.Context, auditID id.AuditID) (*models.Audit, error) {
		req, ok := httputil.DecodeAndPrepare[DecideRequest](w, r, h.logger, ctx, requestcontext.RequestID(ctx))
		if !ok {
			return nil, errHandled
		}
		return h.workflow.Decide(ctx, auditID, req.ToInput())
	})
}

func (h *Handler) handleAddressModification(w http.ResponseWriter, r *http.Request) {
	h.auditOp(w, r, func(ctx context.Context, auditID id.AuditID) (*models.Audit, error) {
		return h.workflow.AddressModification(ctx, auditID)
	})
}

func (h *Handler) handleCancel(w http.ResponseWriter, r *http.Request) {
	h.auditOp(w, r, func(ctx context.Context, auditID id.AuditID) (*models.Audit, error) {
		req, ok := httputil.DecodeAndPrepare[CancelRequest](w, r, h.logger, ctx, requestcontext.RequestID(ctx))
		if !ok {
			return nil, errHandled
		}
		return h.workflow.Cancel(ctx, auditID, req.Justification)
	})
}

func (h *Handler) handleRecordFinding(w http.ResponseWriter, r *http.Request) {
	h.auditOp(w, r, func(ctx context.Context, auditID id.AuditID) (*models.Audit, error) {
		req, ok := httputil.DecodeAndPrepare[RecordFindingRequest](w, r, h.logger, ctx, requestcontext.RequestID(ctx))
		if !ok {
			return nil, errHandled
		}
		input, err := req.ToInput()
		if err != nil {
			return nil, err
		}
		return h.findings.RecordFinding(ctx, auditID, input)
	})
}

func (h *Handler) handleCorrectiveAction(w http.ResponseWriter, r *http.Request) {
	h.findingOp(w, r, func(ctx context.Context, auditID id.AuditID, findingID id.FindingID) (*models.Audit, error) {
		req, ok := httputil.DecodeAndPrepare[CorrectiveActionRequest](w, r, h.logger, ctx, requestcontext.RequestID(ctx))
		if !ok {
			return nil, errHandled
		}
		return h.findings.SubmitCorrectiveAction(ctx, auditID, findingID, req.RootCause, req.CorrectiveAction)
	})
}

func (h *Handler) handleResponse(w http.ResponseWriter, r *http.Request) {
	h.findingOp(w, r, func(ctx context.Context, auditID id.AuditID, findingID id.FindingID) (*models.Audit, error) {
		req, ok := httputil.DecodeAndPrepare[ResponseRequest](w, r, h.logger, ctx, requestcontext.RequestID(ctx))
		if !ok {
			return nil, errHandled
		}
		return h.findings.SubmitResponse(ctx, auditID, findingID, req.ToInput())
	})
}

func (h *Handler) handleRequestVerification(w http.ResponseWriter, r *http.Request) {
	h.findingOp(w, r, func(ctx context.Context, auditID id.AuditID, findingID id.FindingID) (*models.Audit, error) {
		return h.findings.RequestVerification(ctx, auditID, findingID)
	})
}

func (h *Handler) handleClose(w http.ResponseWriter, r *http.Request) {
	h.findingOp(w, r, func(ctx context.Context, auditID id.AuditID, findingID id.FindingID) (*models.Audit, error) {
		return h.findings.VerifyAndClose(ctx, auditID, findingID)
	})
}

func (h *Handler) handleOverdue(w http.ResponseWriter, r *http.Request) {
	overdue, err := h.findings.Overdue(r.Context())
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, overdue)
}

// auditOp runs one audit-level operation with the parsed path ID and writes
// the updated aggregate.
func (h *Handler) auditOp(w http.ResponseWriter, r *http.Request, op func(ctx context.Context, auditID id.AuditID) (*models.Audit, error)) {
	auditID, err := id.ParseAuditID(chi.URLParam(r, "auditID"))
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	audit, err := op(r.Context(), auditID)
	if err != nil {
		if err != errHandled {
			httputil.WriteError(w, err)
		}
		return
	}
	httputil.WriteJSON(w, http.StatusOK, audit)
}

func (h *Handler) findingOp(w http.ResponseWriter, r *http.Request, op func(ctx context.Context, auditID id.AuditID, findingID id.FindingID) (*models.Audit, error)) {
	auditID, err := id.ParseAuditID(chi.URLParam(r, "auditID"))
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	findingID, err := id.ParseFindingID(chi.URLParam(r, "findingID"))
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	audit, err := op(r.Context(), auditID, findingID)
	if err != nil {
		if err != errHandled {
			httputil.WriteError(w, err)
		}
		return
	}
	httputil.WriteJSON(w, http.StatusOK, audit)
}

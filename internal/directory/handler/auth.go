package handler

import (
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"auditflow/internal/directory/models"
	dErrors "auditflow/pkg/domain-errors"
	id "auditflow/pkg/domain"
	"auditflow/pkg/platform/httputil"
	"auditflow/pkg/requestcontext"
)

const accessTokenTTL = 12 * time.Hour

// TokenIssuer signs access tokens. Implemented by platform/jwttoken.Service.
type TokenIssuer interface {
	GenerateAccessToken(userID uuid.UUID, sessionID uuid.UUID, expiresIn time.Duration) (string, error)
}

// AuthHandler handles login. Identity is asserted by email against the
// directory; credential verification is delegated to the fronting identity
// provider and is out of scope here.
type AuthHandler struct {
	service Service
	tokens  TokenIssuer
	logger  *slog.Logger
}

// NewAuth creates an auth handler.
func NewAuth(service Service, tokens TokenIssuer, logger *slog.Logger) *AuthHandler {
	return &AuthHandler{service: service, tokens: tokens, logger: logger}
}

// Register mounts the auth routes on the unauthenticated router group.
func (h *AuthHandler) Register(r chi.Router) {
	r.Post("/auth/login", h.handleLogin)
}

// LoginRequest is the body for POST /auth/login.
type LoginRequest struct {
	Email string `json:"email"`
}

// LoginResponse carries the signed token and the session the heartbeat
// endpoint keeps alive.
type LoginResponse struct {
	AccessToken string      `json:"access_token"`
	SessionID   string      `json:"session_id"`
	User        models.User `json:"user"`
}

func (h *AuthHandler) handleLogin(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	requestID := requestcontext.RequestID(ctx)
	req, ok := httputil.DecodeAndPrepare[LoginRequest](w, r, h.logger, ctx, requestID)
	if !ok {
		return
	}
	if req.Email == "" {
		httputil.WriteError(w, dErrors.New(dErrors.CodeInvalidInput, "email is required"))
		return
	}

	users, err := h.service.Users(ctx)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	var user *models.User
	for i := range users {
		if strings.EqualFold(users[i].Email, req.Email) {
			user = &users[i]
			break
		}
	}
	if user == nil {
		h.logger.WarnContext(ctx, "login failed - unknown email", "request_id", requestID)
		httputil.WriteError(w, dErrors.New(dErrors.CodeUnauthorized, "unknown account"))
		return
	}

	sessionID := id.NewSessionID()
	if err := h.service.Touch(ctx, user.ID, sessionID); err != nil {
		httputil.WriteError(w, err)
		return
	}
	token, err := h.tokens.GenerateAccessToken(uuid.UUID(user.ID), uuid.UUID(sessionID), accessTokenTTL)
	if err != nil {
		httputil.WriteError(w, dErrors.Wrap(err, dErrors.CodeInternal, "sign access token"))
		return
	}

	h.logger.InfoContext(ctx, "login", "request_id", requestID, "user_id", user.ID.String())
	httputil.WriteJSON(w, http.StatusOK, LoginResponse{
		AccessToken: token,
		SessionID:   sessionID.String(),
		User:        *user,
	})
}

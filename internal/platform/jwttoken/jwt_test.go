package jwttoken

import (
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	dErrors "auditflow/pkg/domain-errors"
)

func TestAccessTokenRoundTrip(t *testing.T) {
	svc := NewService("test-signing-key", "auditflow")
	userID := uuid.New()
	sessionID := uuid.New()

	token, err := svc.GenerateAccessToken(userID, sessionID, time.Hour)
	require.NoError(t, err)

	claims, err := svc.ValidateToken(token)
	require.NoError(t, err)
	assert.Equal(t, userID.String(), claims.UserID)
	assert.Equal(t, sessionID.String(), claims.SessionID)
}

func TestValidateTokenRejectsExpired(t *testing.T) {
	svc := NewService("test-signing-key", "auditflow")

	token, err := svc.GenerateAccessToken(uuid.New(), uuid.New(), -time.Minute)
	require.NoError(t, err)

	_, err = svc.ValidateToken(token)
	require.Error(t, err)
	assert.True(t, dErrors.HasCode(err, dErrors.CodeUnauthorized))
	assert.Contains(t, err.Error(), "expired")
}

func TestValidateTokenRejectsWrongKey(t *testing.T) {
	issuer := NewService("key-one", "auditflow")
	verifier := NewService("key-two", "auditflow")

	token, err := issuer.GenerateAccessToken(uuid.New(), uuid.New(), time.Hour)
	require.NoError(t, err)

	_, err = verifier.ValidateToken(token)
	require.Error(t, err)
	assert.True(t, dErrors.HasCode(err, dErrors.CodeUnauthorized))
}

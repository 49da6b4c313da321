package services

import (
	"io"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/temcen/vocabimg/internal/config"
	"github.com/temcen/vocabimg/pkg/models"
)

func quietLogger() *logrus.Logger {
	logger := logrus.New()
	logger.SetOutput(io.Discard)
	return logger
}

func newTestAuth(secret string) *AuthService {
	return NewAuthService(config.AuthConfig{JWTSecret: secret, TokenTTL: time.Hour, Issuer: "vocabimg"}, quietLogger())
}

func TestAuthService_RoundTrip(t *testing.T) {
	auth := newTestAuth("s3cret")

	token, err := auth.GenerateToken("curator-1", RoleEditor)
	require.NoError(t, err)

	claims, err := auth.ValidateToken(token)
	require.NoError(t, err)
	assert.Equal(t, "curator-1", claims.Subject)
	assert.Equal(t, RoleEditor, claims.Role)
	assert.Equal(t, "vocabimg", claims.Issuer)
}

func TestAuthService_RejectsExpired(t *testing.T) {
	auth := newTestAuth("s3cret")
	issued := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	auth.now = func() time.Time { return issued }

	token, err := auth.GenerateToken("curator-1", RoleAdmin)
	require.NoError(t, err)

	auth.now = func() time.Time { return issued.Add(2 * time.Hour) }
	_, err = auth.ValidateToken(token)
	assert.Error(t, err)
}

func TestAuthService_RejectsForeignSignature(t *testing.T) {
	token, err := newTestAuth("other").GenerateToken("curator-1", RoleAdmin)
	require.NoError(t, err)

	_, err = newTestAuth("s3cret").ValidateToken(token)
	assert.Error(t, err)
}

func TestAuthService_RejectsUnknownRole(t *testing.T) {
	auth := newTestAuth("s3cret")
	claims := &models.JWTClaims{
		Subject: "x",
		Role:    "superuser",
		RegisteredClaims: jwt.RegisteredClaims{
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Hour)),
		},
	}
	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte("s3cret"))
	require.NoError(t, err)

	_, err = auth.ValidateToken(token)
	assert.ErrorContains(t, err, "unknown role")
}

func TestAuthService_RequiresSecret(t *testing.T) {
	auth := newTestAuth("")
	_, err := auth.GenerateToken("x", RoleAdmin)
	assert.Error(t, err)
	_, err = auth.ValidateToken("a.b.c")
	assert.Error(t, err)
}

package auth

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const secret = "test-secret"

func signed(t *testing.T, method jwt.SigningMethod, key any, claims jwt.RegisteredClaims) string {
	t.Helper()
	s, err := jwt.NewWithClaims(method, claims).SignedString(key)
	require.NoError(t, err)
	return s
}

func request(header, value string) *http.Request {
	r := httptest.NewRequest(http.MethodPost, "/events/x/register", nil)
	if header != "" {
		r.Header.Set(header, value)
	}
	return r
}

func TestUserID_HeaderMode(t *testing.T) {
	a := New("", "X-User-ID")

	id, err := a.UserID(request("X-User-ID", " alice "))
	require.NoError(t, err)
	assert.Equal(t, "alice", id)

	_, err = a.UserID(request("", ""))
	assert.ErrorIs(t, err, ErrNoCredentials)
}

func TestUserID_ValidToken(t *testing.T) {
	a := New(secret, "X-User-ID")
	tok := signed(t, jwt.SigningMethodHS256, []byte(secret), jwt.RegisteredClaims{
		Subject:   "alice",
		ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Hour)),
	})

	id, err := a.UserID(request("Authorization", "Bearer "+tok))
	require.NoError(t, err)
	assert.Equal(t, "alice", id)
}

func TestUserID_RejectsBadTokens(t *testing.T) {
	a := New(secret, "X-User-ID")
	future := jwt.NewNumericDate(time.Now().Add(time.Hour))

	tests := []struct {
		name  string
		token string
	}{
		{"wrong secret", signed(t, jwt.SigningMethodHS256, []byte("other"), jwt.RegisteredClaims{Subject: "alice", ExpiresAt: future})},
		{"expired", signed(t, jwt.SigningMethodHS256, []byte(secret), jwt.RegisteredClaims{Subject: "alice", ExpiresAt: jwt.NewNumericDate(time.Now().Add(-time.Minute))})},
		{"no expiry", signed(t, jwt.SigningMethodHS256, []byte(secret), jwt.RegisteredClaims{Subject: "alice"})},
		{"no subject", signed(t, jwt.SigningMethodHS256, []byte(secret), jwt.RegisteredClaims{ExpiresAt: future})},
		{"wrong algorithm", signed(t, jwt.SigningMethodHS512, []byte(secret), jwt.RegisteredClaims{Subject: "alice", ExpiresAt: future})},
		{"garbage", "not-a-jwt"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := a.UserID(request("Authorization", "Bearer "+tt.token))
			assert.ErrorIs(t, err, ErrInvalidToken)
		})
	}
}

func TestUserID_TokenModeIgnoresHeader(t *testing.T) {
	a := New(secret, "X-User-ID")
	_, err := a.UserID(request("X-User-ID", "mallory"))
	assert.ErrorIs(t, err, ErrNoCredentials)
}

func TestUserContext(t *testing.T) {
	_, ok := UserFromContext(context.Background())
	assert.False(t, ok)

	id, ok := UserFromContext(WithUser(context.Background(), "alice"))
	assert.True(t, ok)
	assert.Equal(t, "alice", id)
}

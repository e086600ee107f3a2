// Package auth resolves the verified user id of a request. Token issuance
// happens elsewhere; this package only checks what an upstream issued.
package auth

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/golang-jwt/jwt/v5"
)

var (
	// ErrNoCredentials means the request carries no user identity.
	ErrNoCredentials = errors.New("no credentials")
	// ErrInvalidToken means a bearer token was present but failed verification.
	ErrInvalidToken = errors.New("invalid token")
)

// Authenticator extracts the user id from a request.
//
// With a secret it accepts only HS256 bearer tokens and uses the "sub" claim.
// Without one it trusts a header set by the gateway in front of the service.
type Authenticator struct {
	secret []byte
	header string
}

// New constructs an Authenticator.
func New(secret, header string) *Authenticator {
	a := &Authenticator{header: header}
	if secret != "" {
		a.secret = []byte(secret)
	}
	return a
}

// UserID returns the caller's verified user id.
func (a *Authenticator) UserID(r *http.Request) (string, error) {
	if a.secret == nil {
		id := strings.TrimSpace(r.Header.Get(a.header))
		if id == "" {
			return "", ErrNoCredentials
		}
		return id, nil
	}

	raw, ok := strings.CutPrefix(r.Header.Get("Authorization"), "Bearer ")
	if !ok || strings.TrimSpace(raw) == "" {
		return "", ErrNoCredentials
	}

	var claims jwt.RegisteredClaims
	_, err := jwt.ParseWithClaims(strings.TrimSpace(raw), &claims,
		func(*jwt.Token) (any, error) { return a.secret, nil },
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithExpirationRequired(),
	)
	if err != nil {
		return "", fmt.Errorf("%w: %w", ErrInvalidToken, err)
	}
	if claims.Subject == "" {
		return "", fmt.Errorf("%w: missing subject", ErrInvalidToken)
	}
	return claims.Subject, nil
}

type ctxKey struct{}

// WithUser returns a context carrying userID.
func WithUser(ctx context.Context, userID string) context.Context {
	return context.WithValue(ctx, ctxKey{}, userID)
}

// UserFromContext returns the user id stored by WithUser.
func UserFromContext(ctx context.Context) (string, bool) {
	id, ok := ctx.Value(ctxKey{}).(string)
	return id, ok && id != ""
}

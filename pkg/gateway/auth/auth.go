// Package auth verifies caller credentials and carries the authenticated
// principal through request contexts.
package auth

import (
	"context"
	"fmt"
	"net/http"
	"strings"

	"github.com/golang-jwt/jwt/v5"
)

// Principal is an authenticated caller.
type Principal struct {
	// UserID is the subject identifier carried by the credential.
	UserID string
}

// Identity returns the namespaced participant identity for this caller.
func (p *Principal) Identity(prefix string) string {
	return prefix + p.UserID
}

type ctxKey struct{}

func WithPrincipal(ctx context.Context, p *Principal) context.Context {
	return context.WithValue(ctx, ctxKey{}, p)
}

func PrincipalFrom(ctx context.Context) (*Principal, bool) {
	p, ok := ctx.Value(ctxKey{}).(*Principal)
	return p, ok && p != nil
}

// ParseBearer extracts the bearer token from the Authorization header.
func ParseBearer(r *http.Request) (string, bool) {
	authz := strings.TrimSpace(r.Header.Get("Authorization"))
	if authz == "" {
		return "", false
	}
	const prefix = "Bearer "
	if !strings.HasPrefix(authz, prefix) {
		return "", false
	}
	token := strings.TrimSpace(strings.TrimPrefix(authz, prefix))
	if token == "" {
		return "", false
	}
	return token, true
}

// credentialClaims is the claim set of a web UI session credential. The
// subject travels in the "id" claim.
type credentialClaims struct {
	ID string `json:"id"`
	jwt.RegisteredClaims
}

// VerifyCredential decodes the bearer credential under the shared secret
// and returns the principal it names. Any parse, signature or shape
// problem fails verification; the caller maps that to 401.
func VerifyCredential(token, sharedSecret string) (*Principal, error) {
	parsed, err := jwt.ParseWithClaims(token, &credentialClaims{}, func(t *jwt.Token) (any, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method %q", t.Method.Alg())
		}
		return []byte(sharedSecret), nil
	}, jwt.WithValidMethods([]string{"HS256"}))
	if err != nil {
		return nil, fmt.Errorf("parse credential: %w", err)
	}

	claims, ok := parsed.Claims.(*credentialClaims)
	if !ok || strings.TrimSpace(claims.ID) == "" {
		return nil, fmt.Errorf("credential missing subject id")
	}
	return &Principal{UserID: strings.TrimSpace(claims.ID)}, nil
}

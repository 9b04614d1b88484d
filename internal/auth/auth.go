// Package auth guards the admin API with HS256 bearer tokens.
package auth

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// RoleAdmin is the only role allowed to manage news items.
const RoleAdmin = "admin"

type ctxKey string

const ctxSubject ctxKey = "subject"

// Claims carried by admin tokens.
type Claims struct {
	Role string `json:"role"`
	jwt.RegisteredClaims
}

// Verifier issues and validates admin tokens.
type Verifier struct {
	secret []byte
	now    func() time.Time
}

// NewVerifier returns a Verifier for the shared HMAC secret.
func NewVerifier(secret string) *Verifier {
	return &Verifier{secret: []byte(secret), now: time.Now}
}

// Issue signs a token for subject. Used by operators to mint console tokens.
func (v *Verifier) Issue(subject, role string, ttl time.Duration) (string, error) {
	now := v.now()
	claims := Claims{
		Role: role,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   subject,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
		},
	}
	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(v.secret)
}

// Verify parses and validates a raw token.
func (v *Verifier) Verify(raw string) (*Claims, error) {
	claims := &Claims{}
	tok, err := jwt.ParseWithClaims(raw, claims, func(t *jwt.Token) (interface{}, error) {
		return v.secret, nil
	},
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithExpirationRequired(),
		jwt.WithTimeFunc(v.now),
	)
	if err != nil || !tok.Valid {
		return nil, errors.New("invalid token")
	}
	if claims.Subject == "" {
		return nil, errors.New("invalid sub claim")
	}
	return claims, nil
}

// RequireAdmin rejects requests without a valid admin bearer token.
func (v *Verifier) RequireAdmin(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		const prefix = "Bearer "
		header := r.Header.Get("Authorization")
		if !strings.HasPrefix(header, prefix) {
			deny(w, http.StatusUnauthorized, "missing bearer token")
			return
		}

		claims, err := v.Verify(strings.TrimPrefix(header, prefix))
		if err != nil {
			deny(w, http.StatusUnauthorized, "unauthorized")
			return
		}
		if claims.Role != RoleAdmin {
			deny(w, http.StatusForbidden, "forbidden")
			return
		}

		ctx := context.WithValue(r.Context(), ctxSubject, claims.Subject)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// Subject returns the authenticated admin, if any.
func Subject(ctx context.Context) string {
	s, _ := ctx.Value(ctxSubject).(string)
	return s
}

func deny(w http.ResponseWriter, status int, msg string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(map[string]string{"error": msg})
}

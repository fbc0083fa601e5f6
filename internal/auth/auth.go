// Package auth issues and verifies the JWT bearer tokens that scope every
// API request to a merchant. The merchant_id claim is the tenancy boundary:
// handlers read it from the request context, never from the request body.
package auth

import (
	"context"
	"net/http"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"shipping-gateway/internal/common/errors"
)

type contextKey string

const merchantIDKey contextKey = "merchant_id"

// Claims is the gateway's JWT payload.
type Claims struct {
	MerchantID string `json:"merchant_id"`
	jwt.RegisteredClaims
}

// Auth signs and verifies merchant tokens.
type Auth struct {
	secret   []byte
	tokenTTL time.Duration
}

// New creates an Auth with the given HMAC signing secret. A zero tokenTTL
// defaults to 24 hours.
func New(secret string, tokenTTL time.Duration) *Auth {
	if tokenTTL <= 0 {
		tokenTTL = 24 * time.Hour
	}
	return &Auth{secret: []byte(secret), tokenTTL: tokenTTL}
}

// IssueToken creates a signed token for a merchant.
func (a *Auth) IssueToken(merchantID string) (string, error) {
	if merchantID == "" {
		return "", errors.ValidationError("merchant id cannot be empty")
	}
	now := time.Now()
	claims := Claims{
		MerchantID: merchantID,
		RegisteredClaims: jwt.RegisteredClaims{
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(a.tokenTTL)),
		},
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString(a.secret)
}

// VerifyToken parses and validates a token, returning its merchant id.
func (a *Auth) VerifyToken(tokenString string) (string, error) {
	claims := &Claims{}
	token, err := jwt.ParseWithClaims(tokenString, claims, func(t *jwt.Token) (interface{}, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, errors.AuthError("unexpected signing method")
		}
		return a.secret, nil
	})
	if err != nil || !token.Valid {
		return "", errors.AuthError("invalid token")
	}
	if claims.MerchantID == "" {
		return "", errors.AuthError("token has no merchant_id claim")
	}
	return claims.MerchantID, nil
}

// Middleware rejects requests without a valid bearer token and stores the
// merchant id on the request context.
func (a *Auth) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		header := r.Header.Get("Authorization")
		if !strings.HasPrefix(header, "Bearer ") {
			http.Error(w, `{"error":"missing bearer token"}`, http.StatusUnauthorized)
			return
		}
		merchantID, err := a.VerifyToken(strings.TrimPrefix(header, "Bearer "))
		if err != nil {
			http.Error(w, `{"error":"invalid token"}`, http.StatusUnauthorized)
			return
		}
		ctx := context.WithValue(r.Context(), merchantIDKey, merchantID)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// MerchantID returns the authenticated merchant id from a request context,
// or empty when the request did not pass through the middleware.
func MerchantID(ctx context.Context) string {
	if id, ok := ctx.Value(merchantIDKey).(string); ok {
		return id
	}
	return ""
}

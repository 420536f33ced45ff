package http

import (
	"context"
	"net/http"
	"strings"

	"github.com/fjod/go_storefront/internal/remote"
	"github.com/fjod/go_storefront/internal/session"
	"github.com/google/uuid"
)

type ctxKey int

const (
	claimsKey ctxKey = iota
	requestIDKey
)

// Authenticator validates a bearer token.
type Authenticator interface {
	Authenticate(ctx context.Context, token string) (*session.Claims, error)
}

// RequestIDMiddleware adds a unique request ID to each request
func RequestIDMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		requestID := r.Header.Get("X-Request-ID")
		if requestID == "" {
			requestID = uuid.NewString()
		}

		ctx := context.WithValue(r.Context(), requestIDKey, requestID)
		w.Header().Set("X-Request-ID", requestID)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// AuthMiddleware requires a valid session token. The token is forwarded to
// the remote collections with every call made for the request.
func AuthMiddleware(auth Authenticator) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			token, ok := strings.CutPrefix(r.Header.Get("Authorization"), "Bearer ")
			if !ok || token == "" {
				respondError(w, http.StatusUnauthorized, "unauthorized", "missing user authentication")
				return
			}

			claims, err := auth.Authenticate(r.Context(), token)
			if err != nil {
				handleError(w, err)
				return
			}

			ctx := context.WithValue(r.Context(), claimsKey, claims)
			ctx = remote.WithToken(ctx, token)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// RequireAdmin must run after AuthMiddleware.
func RequireAdmin(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		claims := getClaims(r.Context())
		if claims == nil {
			respondError(w, http.StatusUnauthorized, "unauthorized", "missing user authentication")
			return
		}
		if !claims.IsAdmin() {
			respondError(w, http.StatusForbidden, "permission_denied", "admin access required")
			return
		}
		next.ServeHTTP(w, r)
	})
}

func getClaims(ctx context.Context) *session.Claims {
	if claims, ok := ctx.Value(claimsKey).(*session.Claims); ok {
		return claims
	}
	return nil
}

func getUserID(ctx context.Context) string {
	if claims := getClaims(ctx); claims != nil {
		return claims.UserID()
	}
	return ""
}

func getRequestID(ctx context.Context) string {
	if requestID, ok := ctx.Value(requestIDKey).(string); ok {
		return requestID
	}
	return ""
}

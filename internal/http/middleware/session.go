package middleware

import (
	"context"
	"net/http"
	"strings"

	"github.com/stillpoint/massage-bookings/pkg/auth"
	"github.com/stillpoint/massage-bookings/pkg/logger"
)

type ctxKey string

const CtxClaims ctxKey = "claims"

func bearerToken(r *http.Request) string {
	if authz := r.Header.Get("Authorization"); strings.HasPrefix(authz, "Bearer ") {
		return strings.TrimPrefix(authz, "Bearer ")
	}
	return r.URL.Query().Get("session_token")
}

// RequireSession accepts either a guest session or a full client session.
func RequireSession(secret string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			tok := bearerToken(r)
			if tok == "" {
				http.Error(w, "session_token is required", http.StatusUnauthorized)
				return
			}

			claims, err := auth.Parse(tok, secret)
			if err != nil || (claims.Role != "guest" && claims.Role != "client") {
				http.Error(w, "invalid session_token", http.StatusUnauthorized)
				return
			}

			ctx := context.WithValue(r.Context(), CtxClaims, claims)
			if claims.Sub != 0 {
				ctx = context.WithValue(ctx, logger.ClientIDKey, claims.Sub)
			}
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// OptionalSession attaches claims when a valid token is present but lets
// anonymous requests through; the booking wizard starts before any
// identity exists.
func OptionalSession(secret string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if tok := bearerToken(r); tok != "" {
				if claims, err := auth.Parse(tok, secret); err == nil {
					ctx := context.WithValue(r.Context(), CtxClaims, claims)
					if claims.Sub != 0 {
						ctx = context.WithValue(ctx, logger.ClientIDKey, claims.Sub)
					}
					r = r.WithContext(ctx)
				}
			}
			next.ServeHTTP(w, r)
		})
	}
}

func Claims(r *http.Request) *auth.Claims {
	if v := r.Context().Value(CtxClaims); v != nil {
		if c, ok := v.(*auth.Claims); ok {
			return c
		}
	}
	return nil
}

package auth

import (
	"context"
	"errors"
	"net/http"
	"strings"

	"log/slog"

	"firmowy/internal/httpx"
)

type contextKey string

const userContextKey contextKey = "firmowy_user"

func WithUser(ctx context.Context, u *User) context.Context {
	return context.WithValue(ctx, userContextKey, u)
}

func UserFromContext(ctx context.Context) (*User, bool) {
	u, ok := ctx.Value(userContextKey).(*User)
	return u, ok && u != nil
}

func unauthorized(w http.ResponseWriter, msg string) {
	w.Header().Set("WWW-Authenticate", "Bearer")
	httpx.WriteError(w, http.StatusUnauthorized, msg)
}

// JWTMiddleware authenticates bearer tokens and stores the user, loaded
// fresh from the database, in the request context.
func JWTMiddleware(svc *Service, logger *slog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			h := r.Header.Get("Authorization")
			scheme, token, found := strings.Cut(h, " ")
			if !found || !strings.EqualFold(scheme, "Bearer") || token == "" {
				unauthorized(w, "not authenticated")
				return
			}
			user, err := svc.Resolve(r.Context(), strings.TrimSpace(token))
			if err != nil {
				if !errors.Is(err, ErrInvalidToken) {
					logger.Error("resolve token", "err", err)
					httpx.WriteError(w, http.StatusInternalServerError, "internal error")
					return
				}
				unauthorized(w, "could not validate credentials")
				return
			}
			next.ServeHTTP(w, r.WithContext(WithUser(r.Context(), user)))
		})
	}
}

// RequireManager rejects callers that are not managers with 403.
func RequireManager(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		user, ok := UserFromContext(r.Context())
		if !ok {
			unauthorized(w, "not authenticated")
			return
		}
		if !IsManager(user) {
			httpx.WriteError(w, http.StatusForbidden, "manager role required")
			return
		}
		next.ServeHTTP(w, r)
	})
}

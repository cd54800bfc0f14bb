package middleware

import (
	"context"
	"errors"
	"net/http"
	"strings"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"p9e.in/siteprogress/models"
	"p9e.in/siteprogress/utils"
)

// UserHeader carries the acting user's id. It is set by a trusted proxy;
// this service does no login of its own.
const UserHeader = "X-User-ID"

type contextKey string

const userKey contextKey = "user"

// UserLookup loads the acting user.
type UserLookup interface {
	GetUser(ctx context.Context, id uuid.UUID) (*models.User, error)
}

// WithUser stores u in ctx.
func WithUser(ctx context.Context, u *models.User) context.Context {
	return context.WithValue(ctx, userKey, u)
}

// GetUser returns the acting user, nil outside ActingUser.
func GetUser(r *http.Request) *models.User {
	u, _ := r.Context().Value(userKey).(*models.User)
	return u
}

// ActingUser resolves the X-User-ID header to a stored user.
func ActingUser(users UserLookup, log *zap.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			raw := strings.TrimSpace(r.Header.Get(UserHeader))
			if raw == "" {
				http.Error(w, "missing "+UserHeader+" header", http.StatusUnauthorized)
				return
			}
			id, err := uuid.Parse(raw)
			if err != nil {
				http.Error(w, "invalid "+UserHeader+" header", http.StatusUnauthorized)
				return
			}
			user, err := users.GetUser(r.Context(), id)
			if err != nil {
				if !errors.Is(err, models.ErrNotFound) {
					log.Error("acting user lookup failed", zap.String("user_id", raw), zap.Error(err))
					http.Error(w, "user lookup failed", http.StatusInternalServerError)
					return
				}
				http.Error(w, "user not found", http.StatusUnauthorized)
				return
			}
			next.ServeHTTP(w, r.WithContext(WithUser(r.Context(), user)))
		})
	}
}

// RequirePermission middleware checks if the acting user's role grants the
// required permission
func RequirePermission(permission string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			user := GetUser(r)
			if user == nil {
				http.Error(w, "unauthorized", http.StatusUnauthorized)
				return
			}
			if !utils.HasPermission(user.Role, permission) {
				http.Error(w, "insufficient permissions", http.StatusForbidden)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

// RequireAnyPermission checks if the user has any of the provided permissions
func RequireAnyPermission(permissions ...string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			user := GetUser(r)
			if user == nil {
				http.Error(w, "unauthorized", http.StatusUnauthorized)
				return
			}
			for _, p := range permissions {
				if utils.HasPermission(user.Role, p) {
					next.ServeHTTP(w, r)
					return
				}
			}
			http.Error(w, "insufficient permissions", http.StatusForbidden)
		})
	}
}

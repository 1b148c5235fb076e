package middleware

import (
	"context"
	"net/http"

	"go.uber.org/zap"

	"warbler/internal/core"
)

const currentUserKey ctxKey = "current_user"

type SessionReader interface {
	CurrentUserID(r *http.Request) uint
}

type UserLoader interface {
	GetUser(ctx context.Context, id uint) (core.User, error)
}

type currentUserMiddleware struct {
	logs     *zap.SugaredLogger
	sessions SessionReader
	users    UserLoader
}

func NewCurrentUserMiddleware(logger *zap.SugaredLogger, sessions SessionReader, users UserLoader) *currentUserMiddleware {
	return &currentUserMiddleware{
		logs:     logger,
		sessions: sessions,
		users:    users,
	}
}

// LoadUser resolves the session's user id into the request context. Requests
// whose user no longer exists are served as anonymous.
func (m *currentUserMiddleware) LoadUser(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		id := m.sessions.CurrentUserID(r)
		if id == 0 {
			next.ServeHTTP(w, r)
			return
		}

		user, err := m.users.GetUser(r.Context(), id)
		if err != nil {
			m.logs.Warnw("failed to load session user",
				"error", err,
				"user_id", id,
				"request_id", RequestIDFrom(r.Context()))
			next.ServeHTTP(w, r)
			return
		}

		next.ServeHTTP(w, r.WithContext(WithUser(r.Context(), user)))
	})
}

func WithUser(ctx context.Context, user core.User) context.Context {
	return context.WithValue(ctx, currentUserKey, user)
}

// CurrentUser returns the authenticated user of the request, if any.
func CurrentUser(ctx context.Context) (core.User, bool) {
	user, ok := ctx.Value(currentUserKey).(core.User)
	return user, ok
}

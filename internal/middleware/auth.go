package middleware

import (
	"context"
	"errors"
	"net/http"
	"strings"

	"github.com/ismail-jr/studymate-backend/internal/model/user"
	"github.com/ismail-jr/studymate-backend/internal/service/auth"
	"github.com/ismail-jr/studymate-backend/pkg/utils"
)

type ctxKey string

const userKey ctxKey = "user"

// RequireAuth resolves the bearer token and stores the user in the request
// context. Missing or bad identity stops here: no store or completion call
// ever runs without it.
func RequireAuth(authSvc *auth.Service) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			token := BearerToken(r)
			if token == "" {
				utils.RespondError(w, http.StatusUnauthorized, "missing bearer token")
				return
			}

			u, err := authSvc.Resolve(r.Context(), token)
			if err != nil {
				utils.RespondError(w, AuthStatus(err), err.Error())
				return
			}

			ctx := context.WithValue(r.Context(), userKey, u)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// UserFrom returns the authenticated user stored by RequireAuth.
func UserFrom(ctx context.Context) (user.User, bool) {
	u, ok := ctx.Value(userKey).(user.User)
	return u, ok
}

// BearerToken extracts the token from the Authorization header, falling back
// to the "token" query parameter for WebSocket and SSE clients that cannot
// set headers.
func BearerToken(r *http.Request) string {
	header := r.Header.Get("Authorization")
	if strings.HasPrefix(header, "Bearer ") {
		return strings.TrimSpace(strings.TrimPrefix(header, "Bearer "))
	}
	return strings.TrimSpace(r.URL.Query().Get("token"))
}

// AuthStatus maps the closed auth error enumeration to HTTP statuses.
func AuthStatus(err error) int {
	var authErr *auth.Error
	if !errors.As(err, &authErr) {
		return http.StatusInternalServerError
	}

	switch authErr.Kind {
	case auth.KindInvalidCredentials, auth.KindTokenInvalid, auth.KindTokenExpired:
		return http.StatusUnauthorized
	case auth.KindEmailTaken:
		return http.StatusConflict
	case auth.KindInvalidInput:
		return http.StatusBadRequest
	case auth.KindInternal:
		return http.StatusInternalServerError
	}
	return http.StatusInternalServerError
}

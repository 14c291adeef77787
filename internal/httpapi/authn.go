package httpapi

import (
	"net/http"
	"strings"

	"hrms.org/internal/audit"
	"hrms.org/internal/auth"
	"hrms.org/internal/obs"
)

const (
	authHeader = "Authorization"
	bearer     = "Bearer "
)

var errNotAuthenticated = &auth.Error{Kind: auth.KindInvalidToken, Msg: "Not authenticated"}

// authenticated resolves the bearer token and attaches the user and token to
// the request context.
func (a *API) authenticated(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		token, err := extractBearerToken(r.Header.Get(authHeader))
		if err != nil {
			handleError(w, r, err)
			return
		}
		user, err := a.auth.Gate().Authenticate(r.Context(), token)
		if err != nil {
			handleError(w, r, err)
			return
		}
		ctx := auth.ContextWithUser(r.Context(), user)
		ctx = auth.ContextWithToken(ctx, token)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// requirePermission admits the authenticated caller only when it holds
// (resource, action).
func (a *API) requirePermission(resource string, action auth.Action) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			user, ok := auth.UserFromContext(r.Context())
			if !ok {
				handleError(w, r, errNotAuthenticated)
				return
			}
			err := a.auth.Gate().Require(r.Context(), user, resource, action)
			if err != nil {
				if auth.KindOf(err) == auth.KindPermissionDenied {
					obs.RecordAuthz(resource, string(action), false)
					_ = audit.LogEvent(r.Context(), "authz.denied", map[string]any{
						"resource": resource,
						"action":   string(action),
						"path":     r.URL.Path,
					})
				}
				handleError(w, r, err)
				return
			}
			obs.RecordAuthz(resource, string(action), true)
			next.ServeHTTP(w, r)
		})
	}
}

func extractBearerToken(header string) (string, error) {
	header = strings.TrimSpace(header)
	if header == "" {
		return "", errNotAuthenticated
	}
	if len(header) < len(bearer) || !strings.EqualFold(header[:len(bearer)], bearer) {
		return "", errNotAuthenticated
	}
	token := strings.TrimSpace(header[len(bearer):])
	if token == "" {
		return "", errNotAuthenticated
	}
	return token, nil
}

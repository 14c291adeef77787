package httpapi

import (
	"net/http"
	"strings"

	"hrms.org/internal/audit"
	"hrms.org/internal/auth"
	"hrms.org/internal/obs"
)

type changePasswordRequest struct {
	Password string `json:"password"`
}

// handleLogin accepts the OAuth2 password form (username, password).
func (a *API) handleLogin(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseForm(); err != nil {
		writeError(w, r, http.StatusBadRequest, "invalid form body")
		return
	}
	username := strings.TrimSpace(r.PostForm.Get("username"))
	password := r.PostForm.Get("password")
	if username == "" || password == "" {
		writeError(w, r, http.StatusBadRequest, "username and password are required")
		return
	}

	token, user, err := a.auth.Login(r.Context(), username, password)
	if err != nil {
		kind := auth.KindOf(err)
		obs.RecordLogin(kind.String())
		_ = audit.LogEvent(r.Context(), "auth.login.failed", map[string]any{
			"username": username,
			"reason":   kind.String(),
		})
		handleError(w, r, err)
		return
	}
	obs.RecordLogin("success")
	_ = audit.LogEvent(auth.ContextWithUser(r.Context(), user), "auth.login", map[string]any{
		"expires_at": token.ExpiresAt,
	})
	writeJSON(w, http.StatusOK, token)
}

func (a *API) handleMe(w http.ResponseWriter, r *http.Request) {
	token, err := extractBearerToken(r.Header.Get(authHeader))
	if err != nil {
		handleError(w, r, err)
		return
	}
	profile, err := a.auth.Me(r.Context(), token)
	if err != nil {
		handleError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, profile)
}

func (a *API) handleChangePassword(w http.ResponseWriter, r *http.Request) {
	user, ok := auth.UserFromContext(r.Context())
	if !ok {
		handleError(w, r, errNotAuthenticated)
		return
	}
	var req changePasswordRequest
	if err := decodeJSON(w, r, &req); err != nil {
		handleError(w, r, err)
		return
	}
	if err := a.auth.ChangePassword(r.Context(), user, req.Password); err != nil {
		handleError(w, r, err)
		return
	}
	_ = audit.LogEvent(r.Context(), "auth.password.changed", nil)
	writeJSON(w, http.StatusOK, map[string]any{"msg": "Your password has been changed successfully"})
}

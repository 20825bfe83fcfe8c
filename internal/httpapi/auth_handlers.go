package httpapi

import (
	"net/http"
	"time"

	"finai.app/internal/audit"
	"finai.app/internal/auth"
)

type tokenResponse struct {
	Token     string    `json:"token"`
	ExpiresAt time.Time `json:"expires_at"`
}

// handleAuthToken issues a device token. The service is single-user, so the
// only credential is possession of the shared secret on the server side; the
// endpoint exists to bootstrap clients that talk over the network.
func (a *API) handleAuthToken(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		methodNotAllowed(w, r, http.MethodPost)
		return
	}
	if !auth.Enabled() {
		writeError(w, r, http.StatusServiceUnavailable, "token auth is not configured")
		return
	}

	token, err := auth.GenerateToken(a.tokenTTL)
	if err != nil {
		writeError(w, r, http.StatusInternalServerError, "token generation failed")
		return
	}

	expiresAt := time.Now().UTC().Add(a.tokenTTL)
	_ = audit.LogEvent(r.Context(), "auth.token.issued", map[string]string{
		"expires_at": expiresAt.Format(time.RFC3339),
	})

	writeJSON(w, http.StatusOK, tokenResponse{
		Token:     token,
		ExpiresAt: expiresAt,
	})
}

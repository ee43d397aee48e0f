package transport

import (
	"net/http"
	"strings"

	"github.com/lguibr/pongrt/internal/app"
)

// tokenFrom extracts the bearer token from the Authorization header, or
// from the `token` query parameter for browsers that cannot set headers on
// a WebSocket upgrade request.
func tokenFrom(r *http.Request) string {
	if auth := r.Header.Get("Authorization"); auth != "" {
		if strings.HasPrefix(auth, "Bearer ") {
			return strings.TrimPrefix(auth, "Bearer ")
		}
	}
	return r.URL.Query().Get("token")
}

// authenticate runs the session gate against the request's token.
func authenticate(r *http.Request, a *app.App) (string, error) {
	return a.Session.Authenticate(r.Context(), tokenFrom(r))
}

package v1

import (
	"net/http"
	"strings"
)

// TokenFromRequest extracts the raw token: query/form param first (the ws
// and sse clients cannot set headers), then Authorization: Bearer.
func TokenFromRequest(r *http.Request) string {
	if t := r.URL.Query().Get("token"); t != "" {
		return t
	}
	if t := r.FormValue("token"); t != "" {
		return t
	}
	h := r.Header.Get("Authorization")
	if len(h) > 7 && strings.EqualFold(h[:7], "Bearer ") {
		return strings.TrimSpace(h[7:])
	}
	return ""
}

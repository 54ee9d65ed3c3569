package middleware

import (
	"crypto/subtle"
	"encoding/json"
	"net/http"
	"strings"

	"github.com/dukerupert/menuboard/internal/auth"
)

// APIKeys are the keys accepted by RequireRole.
type APIKeys struct {
	Anon    string
	Service string
}

// role returns the role granted by key, or "" if the key is unknown.
func (k APIKeys) role(key string) auth.Role {
	switch {
	case key == "":
		return ""
	case k.Service != "" && subtle.ConstantTimeCompare([]byte(key), []byte(k.Service)) == 1:
		return auth.RoleService
	case k.Anon != "" && subtle.ConstantTimeCompare([]byte(key), []byte(k.Anon)) == 1:
		return auth.RoleAnon
	}
	return ""
}

// APIKey returns the key presented by r: the apikey header, a bearer token, or
// the apikey query parameter used by websocket clients.
func APIKey(r *http.Request) string {
	if key := r.Header.Get("apikey"); key != "" {
		return key
	}
	if h := r.Header.Get("Authorization"); h != "" {
		if token, ok := strings.CutPrefix(h, "Bearer "); ok {
			return strings.TrimSpace(token)
		}
	}
	return r.URL.Query().Get("apikey")
}

// RequireRole validates the API key and populates AuthContext. Requests without
// a known key get 401; keys without the required role get 403.
func RequireRole(keys APIKeys, want auth.Role) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			role := keys.role(APIKey(r))
			if role == "" {
				writeError(w, http.StatusUnauthorized, "invalid API key")
				return
			}
			if !role.Allows(want) {
				writeError(w, http.StatusForbidden, "insufficient privileges")
				return
			}

			ctx := auth.WithAuth(r.Context(), auth.AuthContext{
				Role:       role,
				ClientInfo: r.Header.Get("x-client-info"),
			})
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

func writeError(w http.ResponseWriter, status int, msg string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(map[string]string{"error": msg})
}

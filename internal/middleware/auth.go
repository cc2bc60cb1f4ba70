package middleware

import (
	"crypto/subtle"
	"encoding/json"
	"net/http"
	"strings"

	"golang.org/x/crypto/bcrypt"
)

// HostKeyAuth guards the host control API with a shared key. The player
// websocket and photo endpoints stay open: only the host UI speaks to
// /api/*. A configured key starting with "$2" is treated as a bcrypt hash
// (htpasswd style) so the plaintext key need not live in the config file.
// An empty configured key disables the guard for trusted-LAN setups.
func HostKeyAuth(hostKey, headerName string) func(http.Handler) http.Handler {
	hashed := strings.HasPrefix(hostKey, "$2")

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if hostKey == "" || !strings.HasPrefix(r.URL.Path, "/api") {
				next.ServeHTTP(w, r)
				return
			}

			providedKey := r.Header.Get(headerName)
			if providedKey == "" {
				unauthorized(w, "Host key is required.")
				return
			}

			if hashed {
				if bcrypt.CompareHashAndPassword([]byte(hostKey), []byte(providedKey)) != nil {
					unauthorized(w, "Invalid host key.")
					return
				}
			} else if !constantTimeEquals(hostKey, providedKey) {
				unauthorized(w, "Invalid host key.")
				return
			}

			next.ServeHTTP(w, r)
		})
	}
}

func unauthorized(w http.ResponseWriter, msg string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusUnauthorized)
	json.NewEncoder(w).Encode(map[string]string{"error": msg})
}

// constantTimeEquals performs a constant-time string comparison
func constantTimeEquals(a, b string) bool {
	return subtle.ConstantTimeCompare([]byte(a), []byte(b)) == 1
}

package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"
)

func protectedServer(hostKey string) http.Handler {
	inner := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	})
	return HostKeyAuth(hostKey, "X-Host-Key")(inner)
}

func get(handler http.Handler, path, key string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodGet, path, nil)
	if key != "" {
		req.Header.Set("X-Host-Key", key)
	}
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)
	return rec
}

func TestHostKeyAuth(t *testing.T) {
	t.Run("valid key passes", func(t *testing.T) {
		handler := protectedServer("secret")
		assert.Equal(t, http.StatusOK, get(handler, "/api/host/stats", "secret").Code)
	})

	t.Run("missing key is rejected", func(t *testing.T) {
		handler := protectedServer("secret")
		assert.Equal(t, http.StatusUnauthorized, get(handler, "/api/host/stats", "").Code)
	})

	t.Run("wrong key is rejected", func(t *testing.T) {
		handler := protectedServer("secret")
		assert.Equal(t, http.StatusUnauthorized, get(handler, "/api/host/stats", "nope").Code)
	})

	t.Run("non-api paths stay open", func(t *testing.T) {
		handler := protectedServer("secret")
		assert.Equal(t, http.StatusOK, get(handler, "/ws", "").Code)
		assert.Equal(t, http.StatusOK, get(handler, "/health", "").Code)
		assert.Equal(t, http.StatusOK, get(handler, "/photos/d1/1.jpg", "").Code)
	})

	t.Run("empty configured key disables the guard", func(t *testing.T) {
		handler := protectedServer("")
		assert.Equal(t, http.StatusOK, get(handler, "/api/host/stats", "").Code)
	})

	t.Run("bcrypt-hashed configured key", func(t *testing.T) {
		hash, err := bcrypt.GenerateFromPassword([]byte("secret"), bcrypt.MinCost)
		require.NoError(t, err)
		handler := protectedServer(string(hash))

		assert.Equal(t, http.StatusOK, get(handler, "/api/host/stats", "secret").Code)
		assert.Equal(t, http.StatusUnauthorized, get(handler, "/api/host/stats", "nope").Code)
	})
}

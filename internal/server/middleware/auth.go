package middleware

import (
	"crypto/sha256"
	"net/http"
	"strings"
	"sync"

	"golang.org/x/crypto/bcrypt"
)

// openPaths are served without credentials.
var openPaths = map[string]bool{
	"/api/health": true,
	"/metrics":    true,
}

// Auth returns middleware that validates API requests using either a Bearer
// token in the Authorization header or a key in the X-API-Key header. Keys
// are checked against bcrypt hashes. If hashes is empty, authentication is
// disabled.
func Auth(hashes []string) func(http.Handler) http.Handler {
	keys := newKeyRing(hashes)
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if keys == nil || openPaths[r.URL.Path] || r.Method == http.MethodOptions {
				next.ServeHTTP(w, r)
				return
			}

			token := extractToken(r)
			if token == "" {
				writeUnauthorized(w, "missing authentication token")
				return
			}
			if !keys.verify(token) {
				writeUnauthorized(w, "invalid authentication token")
				return
			}

			next.ServeHTTP(w, r)
		})
	}
}

// keyRing verifies tokens against bcrypt hashes and remembers the digests
// of tokens that already matched, so bcrypt runs once per key.
type keyRing struct {
	hashes [][]byte
	known  sync.Map // [32]byte -> struct{}
}

func newKeyRing(hashes []string) *keyRing {
	var out [][]byte
	for _, h := range hashes {
		if h = strings.TrimSpace(h); h != "" {
			out = append(out, []byte(h))
		}
	}
	if len(out) == 0 {
		return nil
	}
	return &keyRing{hashes: out}
}

func (k *keyRing) verify(token string) bool {
	digest := sha256.Sum256([]byte(token))
	if _, ok := k.known.Load(digest); ok {
		return true
	}
	for _, h := range k.hashes {
		if bcrypt.CompareHashAndPassword(h, []byte(token)) == nil {
			k.known.Store(digest, struct{}{})
			return true
		}
	}
	return false
}

// extractToken looks for a token in the Authorization header (Bearer scheme)
// or in the X-API-Key header.
func extractToken(r *http.Request) string {
	if auth := r.Header.Get("Authorization"); auth != "" {
		parts := strings.SplitN(auth, " ", 2)
		if len(parts) == 2 && strings.EqualFold(parts[0], "Bearer") {
			return strings.TrimSpace(parts[1])
		}
	}
	if key := r.Header.Get("X-API-Key"); key != "" {
		return strings.TrimSpace(key)
	}
	// Browsers cannot set headers on WebSocket upgrades.
	if r.URL.Path == "/ws" {
		return strings.TrimSpace(r.URL.Query().Get("api_key"))
	}
	return ""
}

func writeUnauthorized(w http.ResponseWriter, msg string) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(http.StatusUnauthorized)
	w.Write([]byte(`{"error":"` + msg + `"}`))
}

package middleware

import (
	"context"
	"encoding/json"
	"net/http"
	"strings"

	"kbservice/internal/auth"
)

type ctxKey struct{}

// RequireAPIKey rejects requests whose key does not match one of hashes. It is a no-op when disabled.
func RequireAPIKey(enabled bool, hashes []string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		if !enabled {
			return next
		}
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			token := APIKeyFromRequest(r)
			if !auth.VerifyAny(token, hashes) {
				writeErr(w, http.StatusUnauthorized, "UNAUTHORIZED", "missing or invalid API key")
				return
			}
			next.ServeHTTP(w, r.WithContext(context.WithValue(r.Context(), ctxKey{}, clientID(token))))
		})
	}
}

// ClientIDFromContext returns the short key fingerprint stored by RequireAPIKey.
func ClientIDFromContext(ctx context.Context) (string, bool) {
	v, ok := ctx.Value(ctxKey{}).(string)
	return v, ok && v != ""
}

// APIKeyFromRequest reads a bearer token, falling back to the api_key query parameter.
func APIKeyFromRequest(r *http.Request) string {
	token := ExtractBearer(r.Header.Get("Authorization"))
	if token == "" {
		token = strings.TrimSpace(r.URL.Query().Get("api_key"))
	}
	return token
}

func ExtractBearer(h string) string {
	h = strings.TrimSpace(h)
	if h == "" {
		return ""
	}
	const prefix = "Bearer "
	if strings.HasPrefix(strings.ToLower(h), strings.ToLower(prefix)) {
		return strings.TrimSpace(h[len(prefix):])
	}
	return h
}

func clientID(token string) string {
	return "key:" + auth.HashKey(token)[:12]
}

func writeErr(w http.ResponseWriter, status int, code, message string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(map[string]any{
		"ok":         false,
		"data":       nil,
		"error":      map[string]any{"code": code, "message": message},
		"pagination": nil,
	})
}

package middleware

import (
	"crypto/subtle"
	"log/slog"
	"net/http"

	"github.com/go-chi/render"

	"github.com/JonMunkholm/linemodel/internal/config"
)

// authError is the JSON body of a rejected request.
type authError struct {
	Error string `json:"error"`
	Code  string `json:"code"`
}

// APIKeyAuth returns middleware that validates the X-API-Key header against
// configured keys. With RequireAPIKey off every request passes.
func APIKeyAuth(cfg config.SecurityConfig) func(http.Handler) http.Handler {
	keys := make([][]byte, len(cfg.APIKeys))
	for i, k := range cfg.APIKeys {
		keys[i] = []byte(k)
	}

	return func(next http.Handler) http.Handler {
		if !cfg.RequireAPIKey {
			return next
		}

		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			apiKey := r.Header.Get("X-API-Key")

			var status int
			var body authError
			switch {
			case apiKey == "":
				status, body = http.StatusUnauthorized, authError{Error: "missing API key", Code: "AUTH_MISSING_KEY"}
			case !isValidAPIKey([]byte(apiKey), keys):
				status, body = http.StatusForbidden, authError{Error: "invalid API key", Code: "AUTH_INVALID_KEY"}
			default:
				next.ServeHTTP(w, r)
				return
			}

			slog.Warn("auth: "+body.Error,
				"path", r.URL.Path,
				"method", r.Method,
				"remote_addr", r.RemoteAddr,
			)
			render.Status(r, status)
			render.JSON(w, r, body)
		})
	}
}

// isValidAPIKey compares against every key in constant time so timing does
// not reveal which key, if any, matched.
func isValidAPIKey(key []byte, validKeys [][]byte) bool {
	valid := 0
	for _, k := range validKeys {
		valid |= subtle.ConstantTimeCompare(key, k)
	}
	return valid == 1
}

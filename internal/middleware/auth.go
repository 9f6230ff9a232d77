package middleware

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"strings"

	"github.com/lifesync/lifesync/internal/auth"
	"github.com/lifesync/lifesync/internal/model"
)

// KeyAuthenticator resolves an API key token; nil means the token is invalid.
type KeyAuthenticator interface {
	Authenticate(ctx context.Context, token string) (*model.APIKey, error)
}

// bearerToken reads the API key from the Authorization header. Browsers can't
// set headers on WebSocket upgrades, so the token query parameter is also
// accepted.
func bearerToken(r *http.Request) string {
	if h := r.Header.Get("Authorization"); h != "" {
		if token, ok := strings.CutPrefix(h, "Bearer "); ok {
			return strings.TrimSpace(token)
		}
		return ""
	}
	return r.URL.Query().Get("token")
}

// RequireAPIKey validates the bearer API key and populates AuthContext.
func RequireAPIKey(keys KeyAuthenticator, logger *slog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			token := bearerToken(r)
			if token == "" {
				unauthorized(w)
				return
			}

			key, err := keys.Authenticate(r.Context(), token)
			if err != nil {
				logger.Error("authenticate api key", "error", err)
				w.Header().Set("Content-Type", "application/json")
				w.WriteHeader(http.StatusInternalServerError)
				json.NewEncoder(w).Encode(map[string]string{"error": "internal error"})
				return
			}
			if key == nil {
				unauthorized(w)
				return
			}

			ctx := auth.WithAuth(r.Context(), auth.AuthContext{UserID: key.UserID, APIKeyID: key.ID})
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

func unauthorized(w http.ResponseWriter) {
	w.Header().Set("Content-Type", "application/json")
	w.Header().Set("WWW-Authenticate", `Bearer realm="lifesync"`)
	w.WriteHeader(http.StatusUnauthorized)
	json.NewEncoder(w).Encode(map[string]string{"error": "unauthorized"})
}

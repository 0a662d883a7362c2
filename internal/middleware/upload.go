package middleware

import (
	"log/slog"
	"net/http"
)

// TokenVerifier checks an upload token.
type TokenVerifier interface {
	VerifyToken(token string) error
}

// RequireUploadToken rejects requests without a valid upload token cookie.
func RequireUploadToken(cookieName string, verifier TokenVerifier) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			cookie, err := r.Cookie(cookieName)
			if err != nil {
				http.Error(w, "Unauthorized: missing upload token", http.StatusUnauthorized)
				return
			}

			err = verifier.VerifyToken(cookie.Value)
			if err != nil {
				slog.Warn("upload token rejected", "error", err, "remote_addr", r.RemoteAddr)
				http.Error(w, "Unauthorized: invalid upload token", http.StatusUnauthorized)
				return
			}

			next.ServeHTTP(w, r)
		})
	}
}

package auth

import (
	"net/http"
	"strings"

	"github.com/coachloop/coachloop/server/internal/api/respond"
)

// Middleware enforces bearer-token auth and injects the user id into the
// request context.
func Middleware(tokens *TokenManager) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			token, ok := extractBearerToken(r.Header.Get("Authorization"))
			if !ok {
				respond.WriteError(w, http.StatusUnauthorized, "missing authorization header")
				return
			}
			userID, err := tokens.VerifyAccess(token)
			if err != nil {
				respond.WriteError(w, http.StatusUnauthorized, "invalid token")
				return
			}
			next.ServeHTTP(w, r.WithContext(WithUserID(r.Context(), userID)))
		})
	}
}

func extractBearerToken(header string) (string, bool) {
	parts := strings.SplitN(header, " ", 2)
	if len(parts) != 2 || !strings.EqualFold(parts[0], "Bearer") {
		return "", false
	}
	token := strings.TrimSpace(parts[1])
	if token == "" {
		return "", false
	}
	return token, true
}

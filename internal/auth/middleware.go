package auth

import (
	"net/http"
	"strings"
	"time"
)

func tokenFromRequest(r *http.Request) string {
	if h := r.Header.Get("Authorization"); strings.HasPrefix(h, "Bearer ") {
		return strings.TrimSpace(strings.TrimPrefix(h, "Bearer "))
	}
	if c, err := r.Cookie(CookieName); err == nil {
		return c.Value
	}
	return ""
}

func (h *AuthHandler) setSessionCookie(w http.ResponseWriter, token string) {
	http.SetCookie(w, &http.Cookie{
		Name:     CookieName,
		Value:    token,
		Expires:  time.Now().Add(TokenDuration),
		HttpOnly: true,
		Path:     "/",
		SameSite: http.SameSiteLaxMode,
		Secure:   strings.HasPrefix(h.cfg.FrontendURL, "https://"),
	})
}

// SessionMiddleware attaches the session when the request carries a valid
// token. Requests without one pass through; handlers reject them through
// EnsureAuthenticated.
func (h *AuthHandler) SessionMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		raw := tokenFromRequest(r)
		if raw == "" {
			next.ServeHTTP(w, r)
			return
		}

		session, exp, err := h.ParseToken(raw)
		if err != nil {
			next.ServeHTTP(w, r)
			return
		}

		// Sliding session: refresh token if it's more than halfway through its duration
		if time.Until(exp) < TokenDuration/2 {
			if newToken, err := h.GenerateToken(session); err == nil {
				h.setSessionCookie(w, newToken)
			}
		}

		next.ServeHTTP(w, r.WithContext(WithSession(r.Context(), session)))
	})
}

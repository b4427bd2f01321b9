package auth

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/evorto/evorto-api/internal/config"
	"github.com/golang-jwt/jwt/v5"
)

func signWithExpiry(t *testing.T, secret string, exp time.Duration) string {
	t.Helper()
	claims := sessionClaims{
		TenantID:    1,
		UserID:      1,
		Permissions: []string{"templates:view"},
		RegisteredClaims: jwt.RegisteredClaims{
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(exp)),
		},
	}
	s, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(secret))
	if err != nil {
		t.Fatalf("sign: %v", err)
	}
	return s
}

func TestSessionMiddleware_SlidingSession(t *testing.T) {
	cfg := &config.Config{JWTSecret: "test-secret"}
	handler := NewAuthHandler(cfg, nil)

	var seen *Session
	next := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		seen, _ = FromContext(r.Context())
		w.WriteHeader(http.StatusOK)
	})

	t.Run("TokenRenewed", func(t *testing.T) {
		// 11 hours left is less than TokenDuration/2
		tokenString := signWithExpiry(t, cfg.JWTSecret, 11*time.Hour)
		req, _ := http.NewRequest("GET", "/", nil)
		req.AddCookie(&http.Cookie{Name: CookieName, Value: tokenString})
		rr := httptest.NewRecorder()

		handler.SessionMiddleware(next).ServeHTTP(rr, req)

		if rr.Code != http.StatusOK {
			t.Errorf("expected status OK, got %v", rr.Code)
		}
		found := false
		for _, c := range rr.Result().Cookies() {
			if c.Name == CookieName {
				found = true
				if c.Value == tokenString {
					t.Errorf("expected new token value, but got the old one")
				}
			}
		}
		if !found {
			t.Errorf("expected new %s cookie to be set", CookieName)
		}
		if seen == nil || !seen.Can(PermTemplatesView) {
			t.Errorf("expected session with permissions, got %+v", seen)
		}
	})

	t.Run("TokenNotRenewed", func(t *testing.T) {
		tokenString := signWithExpiry(t, cfg.JWTSecret, 13*time.Hour)
		req, _ := http.NewRequest("GET", "/", nil)
		req.Header.Set("Authorization", "Bearer "+tokenString)
		rr := httptest.NewRecorder()

		handler.SessionMiddleware(next).ServeHTTP(rr, req)

		for _, c := range rr.Result().Cookies() {
			if c.Name == CookieName {
				t.Errorf("did not expect a new %s cookie to be set", CookieName)
			}
		}
		if seen == nil || seen.UserID != 1 {
			t.Errorf("expected bearer session, got %+v", seen)
		}
	})

	t.Run("InvalidTokenIsAnonymous", func(t *testing.T) {
		tokenString := signWithExpiry(t, "other-secret", 13*time.Hour)
		req, _ := http.NewRequest("GET", "/", nil)
		req.Header.Set("Authorization", "Bearer "+tokenString)
		rr := httptest.NewRecorder()

		handler.SessionMiddleware(next).ServeHTTP(rr, req)

		if seen != nil {
			t.Errorf("expected no session for a foreign signature, got %+v", seen)
		}
	})

	t.Run("ExpiredToken", func(t *testing.T) {
		tokenString := signWithExpiry(t, cfg.JWTSecret, -time.Minute)
		req, _ := http.NewRequest("GET", "/", nil)
		req.AddCookie(&http.Cookie{Name: CookieName, Value: tokenString})
		rr := httptest.NewRecorder()

		handler.SessionMiddleware(next).ServeHTTP(rr, req)

		if seen != nil {
			t.Errorf("expected no session for an expired token")
		}
	})
}

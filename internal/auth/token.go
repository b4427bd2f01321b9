package auth

import (
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

const (
	TokenDuration = 24 * time.Hour
	CookieName    = "evorto_session"
	stateDuration = 10 * time.Minute
)

var ErrInvalidToken = errors.New("invalid session token")

type sessionClaims struct {
	TenantID    uint     `json:"tid"`
	UserID      uint     `json:"uid"`
	Permissions []string `json:"perms,omitempty"`
	jwt.RegisteredClaims
}

type stateClaims struct {
	TenantID uint `json:"tid"`
	jwt.RegisteredClaims
}

func (h *AuthHandler) keyFunc(token *jwt.Token) (interface{}, error) {
	if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
		return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
	}
	return []byte(h.cfg.JWTSecret), nil
}

func (h *AuthHandler) GenerateToken(s *Session) (string, error) {
	claims := sessionClaims{
		TenantID:    s.TenantID,
		UserID:      s.UserID,
		Permissions: s.Permissions.Strings(),
		RegisteredClaims: jwt.RegisteredClaims{
			IssuedAt:  jwt.NewNumericDate(time.Now()),
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(TokenDuration)),
		},
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString([]byte(h.cfg.JWTSecret))
}

// ParseToken returns the session and its expiry.
func (h *AuthHandler) ParseToken(raw string) (*Session, time.Time, error) {
	var claims sessionClaims
	token, err := jwt.ParseWithClaims(raw, &claims, h.keyFunc)
	if err != nil || !token.Valid {
		return nil, time.Time{}, ErrInvalidToken
	}
	if claims.UserID == 0 || claims.TenantID == 0 || claims.ExpiresAt == nil {
		return nil, time.Time{}, ErrInvalidToken
	}
	s := &Session{
		TenantID:    claims.TenantID,
		UserID:      claims.UserID,
		Permissions: NewPermissionSet(claims.Permissions...),
	}
	return s, claims.ExpiresAt.Time, nil
}

func (h *AuthHandler) signState(tenantID uint) (string, error) {
	claims := stateClaims{
		TenantID: tenantID,
		RegisteredClaims: jwt.RegisteredClaims{
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(stateDuration)),
		},
	}
	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(h.cfg.JWTSecret))
}

func (h *AuthHandler) parseState(raw string) (uint, error) {
	var claims stateClaims
	token, err := jwt.ParseWithClaims(raw, &claims, h.keyFunc)
	if err != nil || !token.Valid || claims.TenantID == 0 {
		return 0, ErrInvalidToken
	}
	return claims.TenantID, nil
}

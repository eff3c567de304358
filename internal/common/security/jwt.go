package security

import (
	"errors"
	"time"

	"github.com/go-chi/jwtauth/v5"
	"github.com/golang-jwt/jwt/v5"
)

// TokenManager issues and verifies JWTs. Constructed once at startup and
// passed where needed instead of living in a package global.
type TokenManager struct {
	auth *jwtauth.JWTAuth
	exp  time.Duration
}

func NewTokenManager(secret []byte, exp time.Duration) *TokenManager {
	return &TokenManager{
		auth: jwtauth.New("HS256", secret, nil),
		exp:  exp,
	}
}

// Auth exposes the underlying jwtauth instance for the chi Verifier middleware.
func (tm *TokenManager) Auth() *jwtauth.JWTAuth {
	return tm.auth
}

func (tm *TokenManager) GenerateToken(userID, role string) (string, error) {
	claims := jwt.MapClaims{
		"user_id": userID,
		"role":    role,
		"exp":     time.Now().Add(tm.exp).Unix(),
		"iat":     time.Now().Unix(),
	}
	_, tokenString, err := tm.auth.Encode(claims)
	return tokenString, err
}

// Helper functions to extract claims, can be used in middleware or services
func GetUserIDFromClaims(claims map[string]interface{}) (string, error) {
	id, ok := claims["user_id"].(string)
	if !ok {
		return "", errors.New("user_id claim is missing or not a string")
	}
	return id, nil
}

func GetUserRoleFromClaims(claims map[string]interface{}) (string, error) {
	role, ok := claims["role"].(string)
	if !ok {
		return "", errors.New("role claim is missing or not a string")
	}
	return role, nil
}

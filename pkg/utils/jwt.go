package utils

import (
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"knowledge-nest-backend/pkg/models"
)

// JWTService signs and parses the HS256 access tokens this service accepts.
// Tokens are minted by the surrounding platform with the same shared secret;
// the service only needs to validate them and read the username claim.
type JWTService struct {
	secretKey []byte
}

// NewJWTService creates a JWT service around the shared secret.
func NewJWTService(secretKey string) *JWTService {
	return &JWTService{
		secretKey: []byte(secretKey),
	}
}

// GenerateAccessToken mints a short-lived access token for a username.
// Used by tests and the operator token tool.
func (j *JWTService) GenerateAccessToken(username, email string) (string, int64, error) {
	now := time.Now()
	expiry := now.Add(15 * time.Minute)

	claims := &models.TokenClaims{
		Username: username,
		Email:    email,
		Type:     "access",
		Exp:      expiry.Unix(),
		Iat:      now.Unix(),
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	tokenString, err := token.SignedString(j.secretKey)
	if err != nil {
		return "", 0, fmt.Errorf("failed to generate access token: %w", err)
	}

	return tokenString, expiry.Unix(), nil
}

// ParseToken validates a token string and returns its claims.
func (j *JWTService) ParseToken(tokenString string) (*models.TokenClaims, error) {
	token, err := jwt.ParseWithClaims(tokenString, &models.TokenClaims{}, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
		}
		return j.secretKey, nil
	})
	if err != nil {
		return nil, fmt.Errorf("failed to parse token: %w", err)
	}
	if !token.Valid {
		return nil, fmt.Errorf("invalid token")
	}

	claims, ok := token.Claims.(*models.TokenClaims)
	if !ok {
		return nil, fmt.Errorf("invalid token claims")
	}
	return claims, nil
}

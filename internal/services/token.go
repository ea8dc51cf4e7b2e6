package services

import (
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

const tokenExpDays = 30

// MemberClaims is the identity a trip token carries.
type MemberClaims struct {
	TripID   string
	MemberID string
	IsAdmin  bool
}

// TokenService issues and validates the member tokens returned by trip
// creation and join, used on mutation routes and the push channel.
type TokenService struct {
	secret string
}

// NewTokenService creates a token service with the signing secret.
func NewTokenService(secret string) *TokenService {
	return &TokenService{secret: secret}
}

// Issue generates a signed member token.
func (s *TokenService) Issue(tripID, memberID string, isAdmin bool) (string, error) {
	claims := jwt.MapClaims{
		"trip_id":   tripID,
		"member_id": memberID,
		"is_admin":  isAdmin,
		"exp":       time.Now().AddDate(0, 0, tokenExpDays).Unix(),
		"iat":       time.Now().Unix(),
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	tokenString, err := token.SignedString([]byte(s.secret))
	if err != nil {
		return "", fmt.Errorf("failed to sign token: %w", err)
	}
	return tokenString, nil
}

// Validate parses a member token and returns its claims.
func (s *TokenService) Validate(tokenString string) (*MemberClaims, error) {
	token, err := jwt.Parse(tokenString, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
		}
		return []byte(s.secret), nil
	})
	if err != nil {
		return nil, fmt.Errorf("failed to parse token: %w", err)
	}
	if !token.Valid {
		return nil, fmt.Errorf("invalid token")
	}

	claims, ok := token.Claims.(jwt.MapClaims)
	if !ok {
		return nil, fmt.Errorf("invalid token claims")
	}
	tripID, ok := claims["trip_id"].(string)
	if !ok {
		return nil, fmt.Errorf("trip_id not found in token")
	}
	memberID, ok := claims["member_id"].(string)
	if !ok {
		return nil, fmt.Errorf("member_id not found in token")
	}
	isAdmin, _ := claims["is_admin"].(bool)

	return &MemberClaims{TripID: tripID, MemberID: memberID, IsAdmin: isAdmin}, nil
}

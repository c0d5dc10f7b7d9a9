package utils

import (
	"errors"
	"time"

	"github.com/golang-jwt/jwt"
)

// ActorClaims are the identity claims issued by the OTP login service.
type ActorClaims struct {
	Subject string
	Role    string
}

// GenerateToken creates a signed JWT for subject with the given role.
// Token issuance belongs to the auth service; this exists for tooling and tests.
func GenerateToken(secret, subject, role string, duration time.Duration) (string, error) {
	claims := jwt.MapClaims{
		"sub":  subject,
		"role": role,
		"iat":  time.Now().Unix(),
		"exp":  time.Now().Add(duration).Unix(),
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString([]byte(secret))
}

// ValidateToken parses and validates a token string and returns the token if valid.
func ValidateToken(secret, tokenString string) (*jwt.Token, error) {
	return jwt.Parse(tokenString, func(token *jwt.Token) (interface{}, error) {
		// Ensure that the token's signing method is HMAC.
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, errors.New("unexpected signing method")
		}
		return []byte(secret), nil
	})
}

// ExtractActorClaims returns the subject and role of a valid token.
func ExtractActorClaims(secret, tokenString string) (ActorClaims, error) {
	token, err := ValidateToken(secret, tokenString)
	if err != nil {
		return ActorClaims{}, err
	}

	claims, ok := token.Claims.(jwt.MapClaims)
	if !ok || !token.Valid {
		return ActorClaims{}, errors.New("invalid token")
	}

	sub, ok := claims["sub"].(string)
	if !ok || sub == "" {
		return ActorClaims{}, errors.New("token does not contain a valid 'sub' claim")
	}
	role, ok := claims["role"].(string)
	if !ok || role == "" {
		return ActorClaims{}, errors.New("token does not contain a valid 'role' claim")
	}

	return ActorClaims{Subject: sub, Role: role}, nil
}

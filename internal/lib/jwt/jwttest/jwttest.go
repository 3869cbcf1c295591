// Package jwttest выпускает подписанные токены в формате бэкенда для
// тестов и фейковых бэкендов.
package jwttest

import (
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"

	clientjwt "github.com/magabrotheeeer/capitalized/internal/lib/jwt"
)

// Maker выпускает подписанные HS256 токены.
type Maker struct {
	secretKey string
	tokenTTL  time.Duration
}

// NewMaker создаёт Maker с ключом и временем жизни токена.
func NewMaker(secretKey string, ttl time.Duration) *Maker {
	return &Maker{secretKey: secretKey, tokenTTL: ttl}
}

// Generate выпускает токен типа tokenType для userID.
func (m *Maker) Generate(userID, tokenType string, now time.Time) (string, error) {
	const op = "jwttest.Maker.Generate"
	claims := clientjwt.Claims{
		UserID:    userID,
		TokenType: tokenType,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   userID,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(m.tokenTTL)),
		},
	}
	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(m.secretKey))
	if err != nil {
		return "", fmt.Errorf("%s: %w", op, err)
	}
	return signed, nil
}

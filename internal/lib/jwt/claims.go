// Package jwt читает токены в формате бэкенда платформы.
//
// Клиент не знает ключа подписи, поэтому Peek разбирает токен без
// проверки подписи: результат годится только для отображения (срок
// действия, идентификатор пользователя). Проверку выполняет сервер.
package jwt

import (
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// Claims описывает данные access/refresh токена бэкенда.
type Claims struct {
	UserID    string `json:"user_id,omitempty"`
	TokenType string `json:"type,omitempty"` // access или refresh
	jwt.RegisteredClaims
}

// Peek разбирает токен без проверки подписи.
func Peek(token string) (*Claims, error) {
	const op = "jwt.Peek"
	claims := &Claims{}
	if _, _, err := jwt.NewParser().ParseUnverified(token, claims); err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	return claims, nil
}

// ExpiresAt возвращает срок действия токена. ok=false для непрозрачных
// токенов и токенов без exp.
func ExpiresAt(token string) (t time.Time, ok bool) {
	claims, err := Peek(token)
	if err != nil || claims.ExpiresAt == nil {
		return time.Time{}, false
	}
	return claims.ExpiresAt.Time, true
}

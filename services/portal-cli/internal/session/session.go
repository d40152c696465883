package session

import (
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// User профиль аутентифицированного пользователя
type User struct {
	ID    string `json:"id" yaml:"id"`
	Email string `json:"email" yaml:"email"`
	Name  string `json:"name" yaml:"name"`
	Role  Role   `json:"role" yaml:"role"`
}

// Tokens пара токенов сессии
type Tokens struct {
	AccessToken  string `json:"access_token"`
	RefreshToken string `json:"refresh_token"`
}

// Empty сообщает, что токенов нет
func (t Tokens) Empty() bool {
	return t.AccessToken == "" && t.RefreshToken == ""
}

// Complete сообщает, что оба токена присутствуют
func (t Tokens) Complete() bool {
	return t.AccessToken != "" && t.RefreshToken != ""
}

// Session аутентифицированный пользователь вместе с токенами
type Session struct {
	Tokens Tokens
	User   *User
}

// State состояние сессии, на основе которого принимается решение о доступе к маршруту
type State struct {
	// Loading сессия еще восстанавливается из хранилища
	Loading bool
	// User nil, если пользователь не аутентифицирован
	User *User
}

// Claims поля access токена, которые клиент читает без проверки подписи
type Claims struct {
	jwt.RegisteredClaims
	Email string `json:"email,omitempty"`
	Name  string `json:"name,omitempty"`
	Role  string `json:"role,omitempty"`
}

// PeekClaims декодирует JWT без проверки подписи. Подлинность токена
// проверяет только сервер, клиенту нужны лишь срок действия и профиль.
func PeekClaims(token string) (*Claims, bool) {
	if token == "" {
		return nil, false
	}
	claims := &Claims{}
	if _, _, err := jwt.NewParser().ParseUnverified(token, claims); err != nil {
		return nil, false
	}
	return claims, true
}

// AccessExpiry возвращает время истечения токена. Для непрозрачных токенов
// и токенов без exp возвращается false: сервер сообщит об истечении через 401.
func AccessExpiry(token string) (time.Time, bool) {
	claims, ok := PeekClaims(token)
	if !ok || claims.ExpiresAt == nil {
		return time.Time{}, false
	}
	return claims.ExpiresAt.Time, true
}

// UserFromClaims строит профиль из содержимого access токена
func UserFromClaims(token string) (*User, bool) {
	claims, ok := PeekClaims(token)
	if !ok || claims.Subject == "" {
		return nil, false
	}
	return claims.User(), true
}

// User строит профиль из claims
func (c *Claims) User() *User {
	return &User{
		ID:    c.Subject,
		Email: c.Email,
		Name:  c.Name,
		Role:  ParseRole(c.Role),
	}
}

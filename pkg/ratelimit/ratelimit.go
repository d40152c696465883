package ratelimit

import (
	"context"
	"fmt"

	"golang.org/x/time/rate"
)

// RateLimiter интерфейс для ограничения частоты исходящих запросов
type RateLimiter interface {
	// Wait блокируется, пока запрос не будет разрешен, или до отмены контекста
	Wait(ctx context.Context) error
	// Allow сообщает, можно ли выполнить запрос немедленно
	Allow() bool
}

// TokenBucket реализация RateLimiter на основе golang.org/x/time/rate
type TokenBucket struct {
	limiter *rate.Limiter
}

// NewTokenBucket создает ограничитель на rps запросов в секунду с допустимым всплеском burst.
// rps <= 0 отключает ограничение.
func NewTokenBucket(rps float64, burst int) RateLimiter {
	if rps <= 0 {
		return Unlimited{}
	}
	if burst < 1 {
		burst = 1
	}
	return &TokenBucket{limiter: rate.NewLimiter(rate.Limit(rps), burst)}
}

// Wait ожидает свободный токен
func (t *TokenBucket) Wait(ctx context.Context) error {
	if err := t.limiter.Wait(ctx); err != nil {
		return fmt.Errorf("rate limit wait: %w", err)
	}
	return nil
}

// Allow забирает токен, если он доступен
func (t *TokenBucket) Allow() bool {
	return t.limiter.Allow()
}

// Unlimited пропускает все запросы
type Unlimited struct{}

// Wait возвращает ошибку только для отмененного контекста
func (Unlimited) Wait(ctx context.Context) error {
	return ctx.Err()
}

// Allow всегда разрешает запрос
func (Unlimited) Allow() bool { return true }

package connection

import (
	"context"
	"fmt"
	"math"
	"math/rand/v2"
	"time"
)

// RetryConfig содержит конфигурацию повторных попыток
type RetryConfig struct {
	MaxAttempts  int
	InitialDelay time.Duration
	MaxDelay     time.Duration
	Multiplier   float64
	Jitter       bool
}

// DefaultRetryConfig возвращает конфигурацию по умолчанию
func DefaultRetryConfig() RetryConfig {
	return RetryConfig{
		MaxAttempts:  5,
		InitialDelay: 1 * time.Second,
		MaxDelay:     30 * time.Second,
		Multiplier:   2.0,
		Jitter:       true,
	}
}

// RetryFunc представляет функцию для повторной попытки
type RetryFunc func(ctx context.Context, attempt int) error

// WithRetry выполняет operation до MaxAttempts раз с экспоненциальной паузой.
// Отмена ctx прерывает ожидание между попытками.
func WithRetry(ctx context.Context, config RetryConfig, operation RetryFunc) error {
	if config.MaxAttempts < 1 {
		config.MaxAttempts = 1
	}

	var lastErr error
	for attempt := 1; attempt <= config.MaxAttempts; attempt++ {
		err := operation(ctx, attempt)
		if err == nil {
			return nil
		}
		lastErr = err

		if attempt == config.MaxAttempts {
			break
		}

		timer := time.NewTimer(Delay(attempt, config))
		select {
		case <-ctx.Done():
			timer.Stop()
			return fmt.Errorf("retry cancelled after %d attempts: %w", attempt, ctx.Err())
		case <-timer.C:
		}
	}

	return fmt.Errorf("operation failed after %d attempts: %w", config.MaxAttempts, lastErr)
}

// Delay вычисляет паузу после попытки attempt
func Delay(attempt int, config RetryConfig) time.Duration {
	multiplier := config.Multiplier
	if multiplier < 1 {
		multiplier = 1
	}
	delay := time.Duration(float64(config.InitialDelay) * math.Pow(multiplier, float64(attempt-1)))

	if config.MaxDelay > 0 && delay > config.MaxDelay {
		delay = config.MaxDelay
	}

	if config.Jitter && delay > 0 {
		// ±25%
		delta := float64(delay) * 0.25 * (2*rand.Float64() - 1)
		delay += time.Duration(delta)
	}
	return delay
}

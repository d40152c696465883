package redis

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"FieldOpsPortal/pkg/connection"
)

// Nil возвращается командами чтения, когда ключ отсутствует
const Nil = redis.Nil

// Client представляет подключение к Redis
type Client struct {
	Client *redis.Client
}

// Config представляет конфигурацию Redis
type Config struct {
	Addr     string
	Password string
	DB       int
	// Connection pool settings
	PoolSize    int
	MinIdleConn int
	// Retry settings
	MaxRetries    int
	RetryInterval time.Duration
	// Соединения, простаивающие дольше, закрываются пулом
	ConnMaxIdleTime time.Duration
}

// NewConfig создает конфигурацию по умолчанию
func NewConfig() *Config {
	return &Config{
		Addr:            "localhost:6379",
		Password:        "",
		DB:              0,
		PoolSize:        10,
		MinIdleConn:     2,
		MaxRetries:      3,
		RetryInterval:   1 * time.Second,
		ConnMaxIdleTime: 30 * time.Second,
	}
}

// Connect устанавливает подключение к Redis с retry логикой. Пауза между
// попытками растет от RetryInterval, но не больше 10 интервалов.
func Connect(ctx context.Context, config *Config) (*Client, error) {
	retry := connection.RetryConfig{
		MaxAttempts:  config.MaxRetries + 1,
		InitialDelay: config.RetryInterval,
		MaxDelay:     10 * config.RetryInterval,
		Multiplier:   2,
		Jitter:       true,
	}

	var client *redis.Client
	err := connection.WithRetry(ctx, retry, func(ctx context.Context, attempt int) error {
		c := redis.NewClient(&redis.Options{
			Addr:         config.Addr,
			Password:     config.Password,
			DB:           config.DB,
			PoolSize:     config.PoolSize,
			MinIdleConns: config.MinIdleConn,
			// Таймауты
			DialTimeout:     5 * time.Second,
			ReadTimeout:     3 * time.Second,
			WriteTimeout:    3 * time.Second,
			PoolTimeout:     4 * time.Second,
			ConnMaxIdleTime: config.ConnMaxIdleTime,
		})

		if err := c.Ping(ctx).Err(); err != nil {
			_ = c.Close()
			return fmt.Errorf("failed to ping redis (attempt %d): %w", attempt, err)
		}
		client = c
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("failed to connect to redis at %s: %w", config.Addr, err)
	}

	return &Client{Client: client}, nil
}

// Close закрывает подключение к Redis
func (r *Client) Close() error {
	if r.Client != nil {
		return r.Client.Close()
	}
	return nil
}

// HealthCheck проверяет состояние подключения к Redis
func (r *Client) HealthCheck(ctx context.Context) error {
	if r.Client == nil {
		return fmt.Errorf("redis client is not initialized")
	}
	return r.Client.Ping(ctx).Err()
}

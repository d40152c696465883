package session

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	goredis "github.com/redis/go-redis/v9"
)

// RedisStore хранит токены в одном ключе Redis
type RedisStore struct {
	client goredis.Cmdable
	key    string
}

// NewRedisStore создает хранилище токенов в Redis под ключом <prefix>current
func NewRedisStore(client goredis.Cmdable, prefix string) *RedisStore {
	return &RedisStore{
		client: client,
		key:    prefix + "current",
	}
}

// Key возвращает ключ, под которым лежат токены
func (s *RedisStore) Key() string {
	return s.key
}

// Load загружает токены из Redis
func (s *RedisStore) Load(ctx context.Context) (Tokens, error) {
	data, err := s.client.Get(ctx, s.key).Bytes()
	if err != nil {
		if err == goredis.Nil {
			return Tokens{}, nil
		}
		return Tokens{}, fmt.Errorf("ошибка загрузки токенов из Redis: %w", err)
	}

	var tokens Tokens
	if err := json.Unmarshal(data, &tokens); err != nil {
		return Tokens{}, fmt.Errorf("ошибка десериализации токенов: %w", err)
	}
	return tokens, nil
}

// Save сохраняет токены. TTL ключа равен оставшемуся сроку refresh токена,
// если это JWT с exp, иначе ключ хранится без срока.
func (s *RedisStore) Save(ctx context.Context, tokens Tokens) error {
	data, err := json.Marshal(tokens)
	if err != nil {
		return fmt.Errorf("ошибка сериализации токенов: %w", err)
	}

	var ttl time.Duration
	if exp, ok := AccessExpiry(tokens.RefreshToken); ok {
		ttl = time.Until(exp)
		if ttl <= 0 {
			return s.Clear(ctx)
		}
	}

	if err := s.client.Set(ctx, s.key, data, ttl).Err(); err != nil {
		return fmt.Errorf("ошибка сохранения токенов в Redis: %w", err)
	}
	return nil
}

// SaveAccess заменяет access токен, не трогая TTL ключа
func (s *RedisStore) SaveAccess(ctx context.Context, accessToken string) error {
	tokens, err := s.Load(ctx)
	if err != nil {
		return err
	}
	tokens.AccessToken = accessToken

	data, err := json.Marshal(tokens)
	if err != nil {
		return fmt.Errorf("ошибка сериализации токенов: %w", err)
	}

	if err := s.client.SetArgs(ctx, s.key, data, goredis.SetArgs{KeepTTL: true}).Err(); err != nil {
		return fmt.Errorf("ошибка сохранения токенов в Redis: %w", err)
	}
	return nil
}

// Clear удаляет токены из Redis
func (s *RedisStore) Clear(ctx context.Context) error {
	if err := s.client.Del(ctx, s.key).Err(); err != nil {
		return fmt.Errorf("ошибка удаления токенов из Redis: %w", err)
	}
	return nil
}

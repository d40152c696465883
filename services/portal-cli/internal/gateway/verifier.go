package gateway

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"FieldOpsPortal/services/portal-cli/internal/loader"
	"FieldOpsPortal/services/portal-cli/internal/session"
)

// TokenVerifier проверяет access токен и возвращает его владельца
type TokenVerifier func(ctx context.Context, token string) (*session.User, error)

// DefaultProfileTTL время, в течение которого подтвержденный бэкендом
// профиль используется без повторного запроса
const DefaultProfileTTL = 30 * time.Second

// HMACVerifier проверяет подпись HS256/HS384/HS512 общим секретом и срок
// действия токена. now задает текущее время, nil означает time.Now.
func HMACVerifier(secret []byte, now func() time.Time) TokenVerifier {
	if now == nil {
		now = time.Now
	}
	parser := jwt.NewParser(
		jwt.WithValidMethods([]string{"HS256", "HS384", "HS512"}),
		jwt.WithExpirationRequired(),
		jwt.WithTimeFunc(now),
	)
	keyFunc := func(*jwt.Token) (interface{}, error) {
		return secret, nil
	}

	return func(ctx context.Context, token string) (*session.User, error) {
		if len(secret) == 0 {
			return nil, fmt.Errorf("jwt secret is not configured")
		}
		claims := &session.Claims{}
		if _, err := parser.ParseWithClaims(token, claims, keyFunc); err != nil {
			return nil, err
		}
		if claims.Subject == "" {
			return nil, fmt.Errorf("token has no subject")
		}
		return claims.User(), nil
	}
}

// ProfileLookup запрашивает профиль владельца токена у бэкенда
type ProfileLookup func(ctx context.Context, token string) (*session.User, error)

// BackendVerifier подтверждает токен запросом профиля к бэкенду. Ответы
// кэшируются на ttl, одновременные проверки одного токена объединяются.
func BackendVerifier(lookup ProfileLookup, ttl time.Duration) TokenVerifier {
	if ttl <= 0 {
		ttl = DefaultProfileTTL
	}
	cache := &profileCache{
		lookup:  lookup,
		ttl:     ttl,
		now:     time.Now,
		entries: make(map[string]*loader.Resource[*session.User]),
	}
	return cache.verify
}

type profileCache struct {
	lookup ProfileLookup
	ttl    time.Duration
	now    func() time.Time

	mu      sync.Mutex
	entries map[string]*loader.Resource[*session.User]
}

func (c *profileCache) verify(ctx context.Context, token string) (*session.User, error) {
	res := c.entry(token)

	snap := res.Snapshot()
	if snap.HasData && snap.Err == nil && c.now().Sub(snap.LoadedAt) >= c.ttl {
		return res.Reload(ctx)
	}
	return res.Load(ctx)
}

// entry возвращает ресурс токена, попутно удаляя устаревшие и неудачные записи
func (c *profileCache) entry(token string) *loader.Resource[*session.User] {
	c.mu.Lock()
	defer c.mu.Unlock()

	if res, ok := c.entries[token]; ok {
		return res
	}

	for key, res := range c.entries {
		snap := res.Snapshot()
		if snap.Loading || (!snap.HasData && snap.Err == nil) {
			continue
		}
		if snap.Err != nil || c.now().Sub(snap.LoadedAt) >= c.ttl {
			delete(c.entries, key)
		}
	}

	res := loader.New(func(ctx context.Context) (*session.User, error) {
		return c.lookup(ctx, token)
	})
	c.entries[token] = res
	return res
}

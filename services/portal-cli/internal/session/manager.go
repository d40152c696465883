package session

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"FieldOpsPortal/pkg/errors"
	"FieldOpsPortal/pkg/logger"
)

// ProfileFetcher загружает профиль текущего пользователя с сервера
type ProfileFetcher func(ctx context.Context) (*User, error)

// Manager единственный писатель состояния сессии. Токены меняются только
// через SetSession (вход), ReplaceAccess (обновление) и Destroy (выход или истечение).
type Manager struct {
	store   TokenStore
	profile ProfileCache
	logger  logger.Logger

	// mu сериализует запись, чтение идет напрямую из хранилища
	mu      sync.Mutex
	loading atomic.Bool
	now     func() time.Time
}

// NewManager создает менеджер сессии поверх хранилища токенов
func NewManager(store TokenStore, log logger.Logger) *Manager {
	if log == nil {
		log = logger.NewNop()
	}
	return &Manager{
		store:  store,
		logger: log,
		now:    time.Now,
	}
}

// Tokens возвращает сохраненную пару токенов
func (m *Manager) Tokens(ctx context.Context) (Tokens, error) {
	tokens, err := m.store.Load(ctx)
	if err != nil {
		return Tokens{}, errors.Wrap(err, errors.ErrInternal, "не удалось прочитать токены")
	}
	return tokens, nil
}

// AccessToken возвращает access токен или пустую строку
func (m *Manager) AccessToken(ctx context.Context) string {
	tokens, err := m.Tokens(ctx)
	if err != nil {
		m.logger.Warn("ошибка чтения токенов", logger.Error(err))
		return ""
	}
	return tokens.AccessToken
}

// SetSession сохраняет токены и профиль после успешного входа
func (m *Manager) SetSession(ctx context.Context, tokens Tokens, user *User) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if err := m.store.Save(ctx, tokens); err != nil {
		return errors.Wrap(err, errors.ErrInternal, "не удалось сохранить токены")
	}
	if user == nil {
		user, _ = UserFromClaims(tokens.AccessToken)
	}
	m.profile.Set(user)

	m.logger.Info("сессия создана", userFields(user)...)
	return nil
}

// ReplaceAccess заменяет access токен после обновления
func (m *Manager) ReplaceAccess(ctx context.Context, accessToken string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if err := m.store.SaveAccess(ctx, accessToken); err != nil {
		return errors.Wrap(err, errors.ErrInternal, "не удалось сохранить access токен")
	}
	return nil
}

// Destroy удаляет токены и профиль. Профиль очищается, даже если хранилище вернуло ошибку.
func (m *Manager) Destroy(ctx context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.profile.Clear()
	if err := m.store.Clear(ctx); err != nil {
		return errors.Wrap(err, errors.ErrInternal, "не удалось удалить токены")
	}
	m.logger.Debug("сессия удалена")
	return nil
}

// SetUser обновляет кэш профиля
func (m *Manager) SetUser(user *User) {
	m.profile.Set(user)
}

// User возвращает закэшированный профиль
func (m *Manager) User() *User {
	return m.profile.Get()
}

// Authenticated сообщает, что оба токена есть и access токен не истек
func (m *Manager) Authenticated(ctx context.Context) bool {
	tokens, err := m.Tokens(ctx)
	if err != nil || !tokens.Complete() {
		return false
	}
	if exp, ok := AccessExpiry(tokens.AccessToken); ok && !m.now().Before(exp) {
		// Истекший access токен еще можно обновить, поэтому сессия жива,
		// пока есть действующий refresh токен
		if rexp, ok := AccessExpiry(tokens.RefreshToken); ok && !m.now().Before(rexp) {
			return false
		}
	}
	return true
}

// Hydrate восстанавливает профиль для сохраненной сессии. Пока загрузка идет,
// State сообщает Loading. Без токенов сервер не вызывается.
func (m *Manager) Hydrate(ctx context.Context, fetch ProfileFetcher) error {
	if m.profile.Get() != nil {
		return nil
	}

	tokens, err := m.Tokens(ctx)
	if err != nil {
		return err
	}
	if tokens.AccessToken == "" {
		return nil
	}

	m.loading.Store(true)
	defer m.loading.Store(false)

	if fetch == nil {
		if user, ok := UserFromClaims(tokens.AccessToken); ok {
			m.profile.Set(user)
		}
		return nil
	}

	user, err := fetch(ctx)
	if err != nil {
		return err
	}
	m.profile.Set(user)
	return nil
}

// State возвращает состояние сессии для принятия решения о доступе
func (m *Manager) State(ctx context.Context) State {
	if m.loading.Load() {
		return State{Loading: true}
	}
	if !m.Authenticated(ctx) {
		return State{}
	}
	return State{User: m.profile.Get()}
}

func userFields(user *User) []logger.Field {
	if user == nil {
		return nil
	}
	return []logger.Field{
		logger.String("user_id", user.ID),
		logger.String("role", user.Role.String()),
	}
}

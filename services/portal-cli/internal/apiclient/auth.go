package apiclient

import (
	"context"
	"encoding/json"
	"net/http"

	"FieldOpsPortal/pkg/errors"
	"FieldOpsPortal/pkg/logger"
	"FieldOpsPortal/services/portal-cli/internal/session"
)

// Credentials данные для входа
type Credentials struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

// Registration данные для регистрации
type Registration struct {
	Email    string `json:"email"`
	Password string `json:"password"`
	Name     string `json:"name,omitempty"`
	Role     string `json:"role,omitempty"`
}

// authPayload ответ входа: токены и, возможно, профиль
type authPayload struct {
	tokenPayload
	User *session.User `json:"user"`
}

// Login выполняет вход и сохраняет токены и профиль. Если ответ не содержит
// профиль, он берется из access токена или запрашивается отдельно с новым
// токеном. Пока профиль не получен, сессия не сохраняется.
func (c *Client) Login(ctx context.Context, creds Credentials) (*session.User, error) {
	body, err := encode(creds)
	if err != nil {
		return nil, err
	}

	resp, err := c.send(ctx, c.endpoints.Login, &RequestOptions{Method: http.MethodPost, Body: body}, "")
	if err != nil {
		return nil, err
	}
	raw, err := c.result(resp)
	if err != nil {
		return nil, err
	}

	var payload authPayload
	if err := json.Unmarshal(raw, &payload); err != nil || payload.access() == "" {
		return nil, errors.New(errors.ErrInternal, "ответ входа не содержит access токен")
	}

	// Сессия сохраняется только вместе с профилем
	tokens := session.Tokens{AccessToken: payload.access(), RefreshToken: payload.refresh()}
	user := payload.User
	if user == nil {
		user, _ = session.UserFromClaims(tokens.AccessToken)
	}
	if user == nil {
		if user, err = c.UserForToken(ctx, tokens.AccessToken); err != nil {
			return nil, err
		}
	}

	if err := c.sessions.SetSession(ctx, tokens, user); err != nil {
		return nil, err
	}

	c.logger.Info("вход выполнен", logger.String("user_id", user.ID), logger.String("role", user.Role.String()))
	return user, nil
}

// Register создает учетную запись. Токены не сохраняются: после регистрации нужен вход.
func (c *Client) Register(ctx context.Context, reg Registration) (*session.User, error) {
	body, err := encode(reg)
	if err != nil {
		return nil, err
	}

	resp, err := c.send(ctx, c.endpoints.Register, &RequestOptions{Method: http.MethodPost, Body: body}, "")
	if err != nil {
		return nil, err
	}
	raw, err := c.result(resp)
	if err != nil {
		return nil, err
	}
	return decodeUser(raw)
}

// Logout уведомляет сервер и удаляет локальную сессию. Ошибка сервера
// только логируется: локальные токены удаляются в любом случае.
func (c *Client) Logout(ctx context.Context) error {
	tokens, err := c.sessions.Tokens(ctx)
	if err != nil {
		c.logger.Warn("ошибка чтения токенов при выходе", logger.Error(err))
	}

	if tokens.AccessToken != "" || tokens.RefreshToken != "" {
		c.notifyLogout(ctx, tokens)
	}

	return c.sessions.Destroy(ctx)
}

func (c *Client) notifyLogout(ctx context.Context, tokens session.Tokens) {
	defer func() {
		if r := recover(); r != nil {
			c.logger.Warn("сбой запроса выхода", logger.Any("panic", r))
		}
	}()

	body, _ := json.Marshal(map[string]string{"refresh": tokens.RefreshToken})
	resp, err := c.send(ctx, c.endpoints.Logout, &RequestOptions{Method: http.MethodPost, Body: body}, tokens.AccessToken)
	if err != nil {
		c.logger.Warn("запрос выхода не выполнен", logger.Error(err))
		return
	}
	if _, err := c.result(resp); err != nil {
		c.logger.Warn("сервер отклонил выход", logger.Error(err))
	}
}

// Me запрашивает профиль текущего пользователя и обновляет кэш профиля
func (c *Client) Me(ctx context.Context) (*session.User, error) {
	raw, err := c.Request(ctx, c.endpoints.Me, &RequestOptions{Method: http.MethodGet})
	if err != nil {
		return nil, err
	}
	user, err := decodeUser(raw)
	if err != nil {
		return nil, err
	}
	c.sessions.SetUser(user)
	return user, nil
}

// UserForToken запрашивает профиль владельца token без обновления токена
// и без записи в сессию клиента
func (c *Client) UserForToken(ctx context.Context, token string) (*session.User, error) {
	if token == "" {
		return nil, errors.New(errors.ErrUnauthorized, "Требуется вход").WithStatus(http.StatusUnauthorized)
	}
	resp, err := c.send(ctx, c.endpoints.Me, &RequestOptions{Method: http.MethodGet}, token)
	if err != nil {
		return nil, err
	}
	raw, err := c.result(resp)
	if err != nil {
		return nil, err
	}
	user, err := decodeUser(raw)
	if err != nil {
		return nil, err
	}
	if user.ID == "" {
		return nil, errors.New(errors.ErrUnauthorized, "профиль не содержит идентификатор").WithStatus(http.StatusUnauthorized)
	}
	return user, nil
}

// decodeUser принимает профиль как объект верхнего уровня или в поле user
func decodeUser(raw json.RawMessage) (*session.User, error) {
	var wrapped struct {
		User *session.User `json:"user"`
	}
	if err := json.Unmarshal(raw, &wrapped); err == nil && wrapped.User != nil {
		return wrapped.User, nil
	}

	var user session.User
	if err := json.Unmarshal(raw, &user); err != nil {
		return nil, errors.Wrap(err, errors.ErrInternal, "некорректный профиль пользователя")
	}
	return &user, nil
}

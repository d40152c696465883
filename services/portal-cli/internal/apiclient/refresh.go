package apiclient

import (
	"context"
	"encoding/json"
	"net/http"

	"FieldOpsPortal/pkg/errors"
	"FieldOpsPortal/pkg/logger"
)

// RefreshToken обменивает сохраненный refresh токен на новый access токен и
// сохраняет его. При ошибке токены не меняются. Одновременные вызовы
// присоединяются к одному запросу обновления.
func (c *Client) RefreshToken(ctx context.Context) (string, error) {
	return c.refreshAfter(ctx, "")
}

// refreshAfter обновляет токен после того, как stale был отклонен сервером.
// Если в хранилище уже лежит другой access токен, обновление уже выполнено
// кем-то другим и он возвращается сразу.
func (c *Client) refreshAfter(ctx context.Context, stale string) (string, error) {
	c.refreshMu.Lock()
	tokens, err := c.sessions.Tokens(ctx)
	if err != nil {
		c.refreshMu.Unlock()
		return "", err
	}
	if stale != "" && tokens.AccessToken != "" && tokens.AccessToken != stale {
		c.refreshMu.Unlock()
		c.metrics.ObserveRefresh("skipped")
		return tokens.AccessToken, nil
	}
	if tokens.RefreshToken == "" {
		c.refreshMu.Unlock()
		return "", errors.New(errors.ErrUnauthorized, "нет refresh токена")
	}

	refreshToken := tokens.RefreshToken
	// Общее обновление не должно прерываться отменой контекста одного из ожидающих
	detached := context.WithoutCancel(ctx)
	ch := c.refreshGroup.DoChan(refreshToken, func() (interface{}, error) {
		return c.doRefresh(detached, refreshToken)
	})
	c.refreshMu.Unlock()

	select {
	case res := <-ch:
		if res.Err != nil {
			return "", res.Err
		}
		return res.Val.(string), nil
	case <-ctx.Done():
		return "", errors.Wrap(ctx.Err(), errors.ErrNetwork, "ожидание обновления токена прервано")
	}
}

// doRefresh выполняет единственный запрос обновления и сохраняет результат
func (c *Client) doRefresh(ctx context.Context, refreshToken string) (string, error) {
	body, err := json.Marshal(map[string]string{"refresh": refreshToken})
	if err != nil {
		return "", errors.Wrap(err, errors.ErrInternal, "ошибка кодирования запроса")
	}

	resp, err := c.send(ctx, c.endpoints.Refresh, &RequestOptions{Method: http.MethodPost, Body: body}, "")
	if err != nil {
		c.metrics.ObserveRefresh("failure")
		return "", err
	}
	raw, err := c.result(resp)
	if err != nil {
		c.metrics.ObserveRefresh("failure")
		return "", err
	}

	var payload tokenPayload
	if err := json.Unmarshal(raw, &payload); err != nil || payload.access() == "" {
		c.metrics.ObserveRefresh("failure")
		return "", errors.New(errors.ErrInternal, "ответ обновления не содержит access токен")
	}
	// Ротация не поддерживается: refresh токен из ответа не сохраняется
	access := payload.access()

	// Запись под refreshMu: тот, кто после этого проверит устаревший токен, увидит новый
	c.refreshMu.Lock()
	defer c.refreshMu.Unlock()
	if err := c.sessions.ReplaceAccess(ctx, access); err != nil {
		c.metrics.ObserveRefresh("failure")
		return "", err
	}

	c.metrics.ObserveRefresh("success")
	c.logger.Info("access токен обновлен")
	return access, nil
}

// expireSession удаляет сессию после неудачного обновления и отправляет на вход
func (c *Client) expireSession(ctx context.Context, cause error) error {
	c.refreshMu.Lock()
	tokens, _ := c.sessions.Tokens(ctx)
	alreadyExpired := tokens.Empty()
	if !alreadyExpired {
		if err := c.sessions.Destroy(ctx); err != nil {
			c.logger.Error("ошибка удаления сессии", logger.Error(err))
		}
	}
	c.refreshMu.Unlock()

	if !alreadyExpired {
		c.logger.Warn("сессия истекла", logger.Error(cause))
		c.navigator.RedirectToLogin(ReasonSessionExpired)
	}
	return errors.Wrap(cause, errors.ErrSessionExpired, "Сессия истекла, выполните вход заново").WithStatus(http.StatusUnauthorized)
}

// tokenPayload принимает распространенные варианты названий полей
type tokenPayload struct {
	Access       string `json:"access"`
	AccessToken  string `json:"access_token"`
	Token        string `json:"token"`
	Refresh      string `json:"refresh"`
	RefreshToken string `json:"refresh_token"`
}

func (p tokenPayload) access() string {
	switch {
	case p.Access != "":
		return p.Access
	case p.AccessToken != "":
		return p.AccessToken
	default:
		return p.Token
	}
}

func (p tokenPayload) refresh() string {
	if p.Refresh != "" {
		return p.Refresh
	}
	return p.RefreshToken
}

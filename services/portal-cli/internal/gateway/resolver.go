package gateway

import (
	"net/http"
	"strings"

	"FieldOpsPortal/services/portal-cli/internal/guard"
	"FieldOpsPortal/services/portal-cli/internal/session"
)

// AccessCookie имя cookie с access токеном
const AccessCookie = "access_token"

// TokenResolver определяет состояние сессии по access токену запроса:
// заголовок Authorization: Bearer или cookie access_token. Пользователь
// известен, только если verify подтвердил токен. Без verify любой запрос
// считается анонимным.
func TokenResolver(verify TokenVerifier) guard.StateResolver {
	return func(r *http.Request) session.State {
		token := bearerToken(r)
		if token == "" || verify == nil {
			return session.State{}
		}
		user, err := verify(r.Context(), token)
		if err != nil || user == nil {
			return session.State{}
		}
		return session.State{User: user}
	}
}

func bearerToken(r *http.Request) string {
	if h := r.Header.Get("Authorization"); len(h) > 7 && strings.EqualFold(h[:7], "Bearer ") {
		return strings.TrimSpace(h[7:])
	}
	if c, err := r.Cookie(AccessCookie); err == nil {
		return c.Value
	}
	return ""
}

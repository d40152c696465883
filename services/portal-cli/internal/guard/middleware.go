package guard

import (
	"context"
	"net/http"

	"FieldOpsPortal/pkg/logger"
	"FieldOpsPortal/pkg/metrics"
	"FieldOpsPortal/services/portal-cli/internal/session"
)

type userKey struct{}

// UserFromContext возвращает пользователя, допущенного middleware
func UserFromContext(ctx context.Context) (*session.User, bool) {
	user, ok := ctx.Value(userKey{}).(*session.User)
	return user, ok && user != nil
}

// StateResolver определяет состояние сессии для запроса
type StateResolver func(r *http.Request) session.State

// MiddlewareConfig зависимости middleware
type MiddlewareConfig struct {
	Resolve StateResolver
	Logger  logger.Logger
	Metrics *metrics.Metrics
}

// Middleware пропускает запрос только для ролей из allowed. Пока сессия
// восстанавливается, отвечает 503 с Retry-After. Отказ в доступе ведет на
// вход через 303, как и отсутствие сессии.
func Middleware(cfg MiddlewareConfig, allowed ...session.Role) func(http.Handler) http.Handler {
	cfg = cfg.withDefaults()
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			cfg.enforce(w, r, next, allowed)
		})
	}
}

// RouteMiddleware применяет правила таблицы маршрутов; пути вне таблицы публичны
func RouteMiddleware(cfg MiddlewareConfig, table *RouteTable) func(http.Handler) http.Handler {
	cfg = cfg.withDefaults()
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			route, ok := table.Match(r.URL.Path)
			if !ok {
				next.ServeHTTP(w, r)
				return
			}
			cfg.enforce(w, r, next, route.Roles)
		})
	}
}

func (cfg MiddlewareConfig) withDefaults() MiddlewareConfig {
	if cfg.Logger == nil {
		cfg.Logger = logger.NewNop()
	}
	if cfg.Resolve == nil {
		cfg.Resolve = func(*http.Request) session.State { return session.State{} }
	}
	return cfg
}

func (cfg MiddlewareConfig) enforce(w http.ResponseWriter, r *http.Request, next http.Handler, allowed []session.Role) {
	state := cfg.Resolve(r)
	decision := Authorize(state, allowed)
	cfg.Metrics.ObserveDecision(decision.String())

	switch decision {
	case DecisionLoading:
		w.Header().Set("Retry-After", "1")
		http.Error(w, "session is loading", http.StatusServiceUnavailable)
	case DecisionUnauthenticated, DecisionUnauthorized:
		cfg.Logger.Debug("доступ запрещен",
			logger.String("path", r.URL.Path),
			logger.String("decision", decision.String()))
		http.Redirect(w, r, decision.Redirect(), http.StatusSeeOther)
	default:
		ctx := context.WithValue(r.Context(), userKey{}, state.User)
		next.ServeHTTP(w, r.WithContext(ctx))
	}
}

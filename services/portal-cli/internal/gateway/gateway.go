package gateway

import (
	"encoding/json"
	"net/http"
	"time"

	"FieldOpsPortal/pkg/health"
	"FieldOpsPortal/pkg/logger"
	"FieldOpsPortal/pkg/metrics"
	"FieldOpsPortal/services/portal-cli/internal/guard"
)

// Config зависимости шлюза
type Config struct {
	Routes  *guard.RouteTable
	Resolve guard.StateResolver
	Health  health.HealthChecker
	Logger  logger.Logger
	Metrics *metrics.Metrics
}

// New собирает HTTP обработчик шлюза. Разделы ролей закрыты guard'ом по
// таблице маршрутов; /, /login, /healthz, /livez и /metrics публичны.
// Без cfg.Resolve все запросы анонимны.
func New(cfg Config) http.Handler {
	if cfg.Logger == nil {
		cfg.Logger = logger.NewNop()
	}
	if cfg.Routes == nil {
		cfg.Routes = guard.DefaultRoutes()
	}
	if cfg.Resolve == nil {
		cfg.Resolve = TokenResolver(nil)
	}

	mux := http.NewServeMux()
	if cfg.Health != nil {
		mux.Handle("/healthz", health.Handler(cfg.Health))
	}
	mux.Handle("/livez", health.LiveHandler())
	if cfg.Metrics != nil {
		mux.Handle("/metrics", cfg.Metrics.GetHandler())
	}
	mux.HandleFunc(guard.LoginRoute, loginHandler)
	mux.HandleFunc("/", rootHandler(cfg))

	var h http.Handler = mux
	h = guard.RouteMiddleware(guard.MiddlewareConfig{
		Resolve: cfg.Resolve,
		Logger:  cfg.Logger,
		Metrics: cfg.Metrics,
	}, cfg.Routes)(h)
	if cfg.Metrics != nil {
		h = cfg.Metrics.Middleware(h)
	}
	h = LoggingMiddleware(cfg.Logger)(h)
	h = RecoveryMiddleware(cfg.Logger)(h)
	return h
}

// rootHandler отправляет пользователя на стартовую страницу роли и отдает
// содержимое разделов, уже пропущенных guard'ом
func rootHandler(cfg Config) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/" {
			state := cfg.Resolve(r)
			target := guard.LoginRoute
			if state.User != nil {
				target = guard.DashboardRouteFor(state.User.Role)
			}
			http.Redirect(w, r, target, http.StatusSeeOther)
			return
		}

		route, ok := cfg.Routes.Match(r.URL.Path)
		if !ok {
			http.NotFound(w, r)
			return
		}

		user, _ := guard.UserFromContext(r.Context())
		section := map[string]interface{}{
			"section":   route.Prefix,
			"path":      r.URL.Path,
			"user":      user,
			"timestamp": time.Now().UTC().Format(time.RFC3339),
		}
		if user != nil {
			section["dashboard"] = guard.DashboardRouteFor(user.Role)
		}
		writeJSON(w, http.StatusOK, section)
	}
}

func loginHandler(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"message": "Требуется вход: portal auth login",
		"login":   guard.LoginRoute,
	})
}

func writeJSON(w http.ResponseWriter, status int, body interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}

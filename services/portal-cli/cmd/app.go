package cmd

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"sync"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"FieldOpsPortal/pkg/config"
	pkgerrors "FieldOpsPortal/pkg/errors"
	"FieldOpsPortal/pkg/logger"
	"FieldOpsPortal/pkg/metrics"
	pkgredis "FieldOpsPortal/pkg/redis"
	"FieldOpsPortal/services/portal-cli/internal/apiclient"
	"FieldOpsPortal/services/portal-cli/internal/output"
	"FieldOpsPortal/services/portal-cli/internal/portal"
	"FieldOpsPortal/services/portal-cli/internal/session"
)

const serviceName = "portal-cli"

// app зависимости, общие для команд
type app struct {
	viper *viper.Viper

	cfg        *config.Config
	configPath string
	log        logger.Logger
	metrics    *metrics.Metrics
	printer    *output.Printer

	store    session.TokenStore
	sessions *session.Manager
	client   *apiclient.Client
	services *portal.Services
	redis    *pkgredis.Client
}

// loadConfig загружает конфигурацию и поднимает логгер и вывод
func (a *app) loadConfig(cmd *cobra.Command) error {
	path := a.viper.GetString("config")
	if path == "" {
		if p, err := config.DefaultPath(); err == nil {
			path = p
		}
	}
	a.configPath = path

	cfg, err := config.LoadConfig(path)
	if err != nil {
		return err
	}
	if api := a.viper.GetString("api"); api != "" {
		cfg.API.BaseURL = api
		if err := cfg.Validate(); err != nil {
			return fmt.Errorf("invalid --api: %w", err)
		}
	}
	a.cfg = cfg

	level := cfg.Logger.Level
	if a.viper.GetBool("debug") {
		level = "debug"
	} else if level == "" {
		// CLI по умолчанию молчит, отладочный вывод только по --debug
		level = "warn"
	}
	log, err := logger.NewLogger(cfg.Environment, level, serviceName, cfg.Logger.Format == "json")
	if err != nil {
		return fmt.Errorf("failed to initialize logger: %w", err)
	}
	a.log = log

	format, err := formatFlag(a.viper, cfg.Output.Format)
	if err != nil {
		return err
	}
	a.printer = output.NewPrinter(cmd.OutOrStdout(), format)
	return nil
}

// init поднимает хранилище сессии, API клиент и доменные сервисы
func (a *app) init(cmd *cobra.Command) error {
	if err := a.loadConfig(cmd); err != nil {
		return err
	}
	ctx := cmd.Context()

	a.metrics = metrics.NewMetrics(serviceName)

	store, err := a.openStore(ctx)
	if err != nil {
		return err
	}
	a.store = store
	a.sessions = session.NewManager(store, a.log)

	timeout, err := a.cfg.APITimeout()
	if err != nil {
		return err
	}

	a.client = apiclient.New(a.cfg.API.BaseURL, a.sessions,
		apiclient.WithHTTPClient(&http.Client{Timeout: timeout}),
		apiclient.WithLogger(a.log),
		apiclient.WithMetrics(a.metrics),
		apiclient.WithRateLimit(a.cfg.API.RateLimit, a.cfg.API.RateBurst),
		apiclient.WithNavigator(newCLINavigator(cmd.ErrOrStderr())),
		apiclient.WithEndpoints(apiclient.Endpoints{
			Login:    a.cfg.Endpoints.Login,
			Register: a.cfg.Endpoints.Register,
			Logout:   a.cfg.Endpoints.Logout,
			Refresh:  a.cfg.Endpoints.Refresh,
			Me:       a.cfg.Endpoints.Me,
		}),
		apiclient.WithUserAgent("FieldOpsPortal-CLI/"+Version),
	)
	a.services = portal.NewServices(a.client)

	a.log.Debug("CLI инициализирован",
		logger.String("api", a.cfg.API.BaseURL),
		logger.String("store", a.cfg.Session.Store),
		logger.Duration("timeout", timeout))
	return nil
}

// openStore создает хранилище токенов согласно session.store
func (a *app) openStore(ctx context.Context) (session.TokenStore, error) {
	switch a.cfg.Session.Store {
	case "memory":
		return session.NewMemoryStore(), nil
	case "redis":
		client, err := pkgredis.Connect(ctx, &pkgredis.Config{
			Addr:            a.cfg.Redis.Addr,
			Password:        a.cfg.Redis.Password,
			DB:              a.cfg.Redis.DB,
			PoolSize:        a.cfg.Redis.PoolSize,
			MinIdleConn:     a.cfg.Redis.MinIdleConn,
			MaxRetries:      a.cfg.Redis.MaxRetries,
			RetryInterval:   a.cfg.RedisRetryInterval(),
			ConnMaxIdleTime: pkgredis.NewConfig().ConnMaxIdleTime,
		})
		if err != nil {
			return nil, pkgerrors.Wrap(err, pkgerrors.ErrNetwork, "Не удалось подключиться к Redis")
		}
		a.redis = client
		return session.NewRedisStore(client.Client, a.cfg.Redis.KeyPrefix), nil
	default:
		dir, err := a.cfg.SessionDir()
		if err != nil {
			return nil, err
		}
		return session.NewFileStore(dir)
	}
}

// restoreSession восстанавливает профиль сохраненной сессии: сначала из
// access токена, при нехватке данных запросом к серверу
func (a *app) restoreSession(ctx context.Context) error {
	if err := a.sessions.Hydrate(ctx, nil); err != nil {
		return err
	}
	if a.sessions.User() != nil || !a.sessions.Authenticated(ctx) {
		return nil
	}
	return a.sessions.Hydrate(ctx, a.client.Me)
}

// close освобождает ресурсы команды
func (a *app) close() {
	if a.redis != nil {
		if err := a.redis.Close(); err != nil && a.log != nil {
			a.log.Warn("ошибка закрытия Redis", logger.Error(err))
		}
		a.redis = nil
	}
	if a.log != nil {
		_ = a.log.Sync()
	}
}

// cliNavigator сообщает пользователю, что нужно войти заново
type cliNavigator struct {
	mu sync.Mutex
	w  io.Writer
}

func newCLINavigator(w io.Writer) *cliNavigator {
	return &cliNavigator{w: w}
}

// RedirectToLogin печатает подсказку о входе
func (n *cliNavigator) RedirectToLogin(reason string) {
	n.mu.Lock()
	defer n.mu.Unlock()

	switch reason {
	case apiclient.ReasonSessionExpired:
		fmt.Fprintln(n.w, "Сессия истекла. Выполните вход: portal auth login")
	default:
		fmt.Fprintln(n.w, "Требуется вход: portal auth login")
	}
}

package cmd

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"strconv"
	"time"

	"github.com/spf13/cobra"

	"FieldOpsPortal/pkg/health"
	"FieldOpsPortal/pkg/logger"
	"FieldOpsPortal/pkg/metrics"
	"FieldOpsPortal/services/portal-cli/internal/gateway"
	"FieldOpsPortal/services/portal-cli/internal/guard"
)

const shutdownTimeout = 10 * time.Second

func newServeCmd(a *app) *cobra.Command {
	serveCmd := &cobra.Command{
		Use:   "serve",
		Short: "Запустить шлюз с проверкой ролей",
		Long: `Поднимает HTTP шлюз, который пропускает запросы к разделам портала
только для допущенных ролей. Роль берется из access токена запроса
(Authorization: Bearer или cookie access_token). Токен проверяется по
подписи (server.jwt_secret) или запросом профиля к бэкенду.

Служебные эндпоинты: /healthz, /livez, /metrics.`,
		RunE: runE(a, a.handleServe),
	}
	serveCmd.Flags().String("host", "", "адрес для прослушивания (по умолчанию server.host)")
	serveCmd.Flags().Int("port", 0, "порт (по умолчанию server.port)")
	return serveCmd
}

func (a *app) handleServe(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()

	host, _ := cmd.Flags().GetString("host")
	if host == "" {
		host = a.cfg.Server.Host
	}
	port, _ := cmd.Flags().GetInt("port")
	if port == 0 {
		port = a.cfg.Server.Port
	}

	shutdownTracing, err := metrics.InitializeOpenTelemetry(serviceName, Version)
	if err != nil {
		a.log.Warn("не удалось инициализировать трассировку", logger.Error(err))
	} else {
		defer func() {
			sctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
			defer cancel()
			_ = shutdownTracing(sctx)
		}()
	}

	checker := health.NewChecker(Version)
	checker.AddCheck("api", a.apiHealthCheck)
	if a.redis != nil {
		checker.AddCheck("redis", a.redis.HealthCheck)
	}

	srv := &http.Server{
		Addr: net.JoinHostPort(host, strconv.Itoa(port)),
		Handler: gateway.New(gateway.Config{
			Routes:  guard.DefaultRoutes(),
			Resolve: gateway.TokenResolver(a.tokenVerifier()),
			Health:  checker,
			Logger:  a.log,
			Metrics: a.metrics,
		}),
		ReadHeaderTimeout: 5 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		a.log.Info("шлюз запущен", logger.String("addr", srv.Addr))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()
	fmt.Fprintf(cmd.ErrOrStderr(), "Шлюз слушает http://%s (Ctrl+C для остановки)\n", srv.Addr)

	select {
	case err, ok := <-errCh:
		if ok {
			return fmt.Errorf("HTTP server failed: %w", err)
		}
		return nil
	case <-ctx.Done():
	}

	a.log.Info("остановка шлюза")
	sctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(sctx); err != nil {
		return fmt.Errorf("server shutdown failed: %w", err)
	}
	return nil
}

// tokenVerifier проверяет подпись токена, если задан server.jwt_secret,
// иначе подтверждает токен запросом профиля к бэкенду
func (a *app) tokenVerifier() gateway.TokenVerifier {
	if secret := a.cfg.Server.JWTSecret; secret != "" {
		a.log.Info("токены шлюза проверяются по подписи")
		return gateway.HMACVerifier([]byte(secret), nil)
	}
	ttl := a.cfg.ServerProfileTTL()
	a.log.Info("токены шлюза проверяются через бэкенд", logger.Duration("profile_ttl", ttl))
	return gateway.BackendVerifier(a.client.UserForToken, ttl)
}

// apiHealthCheck проверяет, что REST бэкенд отвечает. Любой ответ ниже 500
// считается признаком жизни.
func (a *app) apiHealthCheck(ctx context.Context) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, a.cfg.API.BaseURL, nil)
	if err != nil {
		return err
	}
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode >= http.StatusInternalServerError {
		return fmt.Errorf("api responded with HTTP %d", resp.StatusCode)
	}
	return nil
}

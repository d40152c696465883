package apiclient

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"golang.org/x/sync/singleflight"

	"FieldOpsPortal/pkg/errors"
	"FieldOpsPortal/pkg/logger"
	"FieldOpsPortal/pkg/metrics"
	"FieldOpsPortal/pkg/ratelimit"
	"FieldOpsPortal/services/portal-cli/internal/session"
)

// maxBodySize ограничивает размер читаемого ответа
const maxBodySize = 10 << 20

// Endpoints пути эндпоинтов аутентификации относительно базового URL
type Endpoints struct {
	Login    string
	Register string
	Logout   string
	Refresh  string
	Me       string
}

// DefaultEndpoints возвращает стандартные пути бэкенда портала
func DefaultEndpoints() Endpoints {
	return Endpoints{
		Login:    "/auth/login/",
		Register: "/auth/register/",
		Logout:   "/auth/logout/",
		Refresh:  "/auth/token/refresh/",
		Me:       "/auth/me/",
	}
}

// RequestOptions параметры одного запроса. Body передается уже сериализованным.
type RequestOptions struct {
	Method  string
	Body    []byte
	Headers http.Header
}

// Client HTTP клиент бэкенда портала с прозрачным обновлением access токена
type Client struct {
	baseURL   string
	http      *http.Client
	sessions  *session.Manager
	endpoints Endpoints
	logger    logger.Logger
	metrics   *metrics.Metrics
	tracer    trace.Tracer
	limiter   ratelimit.RateLimiter
	navigator Navigator
	userAgent string

	// refreshMu делает проверку устаревшего токена и вход в refreshGroup атомарными
	// относительно записи нового токена
	refreshMu    sync.Mutex
	refreshGroup singleflight.Group
}

// Option настраивает Client
type Option func(*Client)

// WithHTTPClient задает HTTP клиент; его Timeout ограничивает каждый запрос
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) {
		if hc != nil {
			c.http = hc
		}
	}
}

// WithLogger задает логгер
func WithLogger(log logger.Logger) Option {
	return func(c *Client) {
		if log != nil {
			c.logger = log
		}
	}
}

// WithMetrics включает метрики и трассировку запросов
func WithMetrics(m *metrics.Metrics) Option {
	return func(c *Client) {
		c.metrics = m
		if m != nil && m.Tracer != nil {
			c.tracer = m.Tracer
		}
	}
}

// WithRateLimit ограничивает частоту исходящих запросов
func WithRateLimit(rps float64, burst int) Option {
	return func(c *Client) {
		c.limiter = ratelimit.NewTokenBucket(rps, burst)
	}
}

// WithLimiter задает собственный ограничитель частоты запросов
func WithLimiter(l ratelimit.RateLimiter) Option {
	return func(c *Client) {
		if l != nil {
			c.limiter = l
		}
	}
}

// WithNavigator задает обработчик перехода на страницу входа
func WithNavigator(n Navigator) Option {
	return func(c *Client) {
		if n != nil {
			c.navigator = n
		}
	}
}

// WithEndpoints переопределяет пути эндпоинтов аутентификации
func WithEndpoints(e Endpoints) Option {
	return func(c *Client) {
		defaults := DefaultEndpoints()
		if e.Login == "" {
			e.Login = defaults.Login
		}
		if e.Register == "" {
			e.Register = defaults.Register
		}
		if e.Logout == "" {
			e.Logout = defaults.Logout
		}
		if e.Refresh == "" {
			e.Refresh = defaults.Refresh
		}
		if e.Me == "" {
			e.Me = defaults.Me
		}
		c.endpoints = e
	}
}

// WithUserAgent задает заголовок User-Agent
func WithUserAgent(ua string) Option {
	return func(c *Client) {
		c.userAgent = ua
	}
}

// New создает клиент для baseURL, токены читаются и пишутся через sessions
func New(baseURL string, sessions *session.Manager, opts ...Option) *Client {
	c := &Client{
		baseURL:   strings.TrimRight(baseURL, "/"),
		http:      &http.Client{Timeout: 30 * time.Second},
		sessions:  sessions,
		endpoints: DefaultEndpoints(),
		logger:    logger.NewNop(),
		tracer:    otel.Tracer("portal-cli/apiclient"),
		limiter:   ratelimit.Unlimited{},
		navigator: NopNavigator{},
		userAgent: "FieldOpsPortal-CLI/1.0",
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Sessions возвращает менеджер сессии клиента
func (c *Client) Sessions() *session.Manager {
	return c.sessions
}

// Endpoints возвращает пути эндпоинтов аутентификации
func (c *Client) Endpoints() Endpoints {
	return c.endpoints
}

// Request выполняет запрос к endpoint. При ответе 401 на запрос с токеном
// клиент один раз обновляет access токен и повторяет запрос. Если обновление
// не удалось, сессия удаляется, выполняется переход на вход и возвращается
// SESSION_EXPIRED. Успешный ответ возвращается без изменений.
func (c *Client) Request(ctx context.Context, endpoint string, opts *RequestOptions) (json.RawMessage, error) {
	if opts == nil {
		opts = &RequestOptions{}
	}

	token := c.sessions.AccessToken(ctx)
	resp, err := c.send(ctx, endpoint, opts, token)
	if err != nil {
		return nil, err
	}

	if resp.status == http.StatusUnauthorized && token != "" && !c.isRefreshEndpoint(endpoint) {
		c.logger.Debug("access токен отклонен, обновляем", logger.String("endpoint", endpoint))

		fresh, err := c.refreshAfter(ctx, token)
		if err != nil {
			if ctx.Err() != nil {
				return nil, errors.Wrap(ctx.Err(), errors.ErrNetwork, "запрос отменен")
			}
			return nil, c.expireSession(ctx, err)
		}

		// Повтор только один: его результат возвращается как есть
		resp, err = c.send(ctx, endpoint, opts, fresh)
		if err != nil {
			return nil, err
		}
	}

	return c.result(resp)
}

// result превращает ответ в тело или ошибку
func (c *Client) result(resp *response) (json.RawMessage, error) {
	if resp.status < 200 || resp.status >= 300 {
		return nil, errorFromResponse(resp.status, resp.body)
	}

	body := bytes.TrimSpace(resp.body)
	if len(body) == 0 {
		return nil, nil
	}
	if !json.Valid(body) {
		return nil, errors.New(errors.ErrInternal, "сервер вернул некорректный JSON").WithStatus(resp.status)
	}
	return json.RawMessage(body), nil
}

func (c *Client) isRefreshEndpoint(endpoint string) bool {
	return trimQuery(endpoint) == trimQuery(c.endpoints.Refresh)
}

func trimQuery(endpoint string) string {
	if i := strings.IndexByte(endpoint, '?'); i >= 0 {
		endpoint = endpoint[:i]
	}
	return strings.TrimRight(endpoint, "/")
}

// url собирает абсолютный адрес; абсолютные endpoint используются как есть
func (c *Client) url(endpoint string) string {
	if strings.HasPrefix(endpoint, "http://") || strings.HasPrefix(endpoint, "https://") {
		return endpoint
	}
	if !strings.HasPrefix(endpoint, "/") {
		endpoint = "/" + endpoint
	}
	return c.baseURL + endpoint
}

type response struct {
	status int
	body   []byte
}

// send выполняет один HTTP обмен без логики обновления токена
func (c *Client) send(ctx context.Context, endpoint string, opts *RequestOptions, token string) (*response, error) {
	method := opts.Method
	if method == "" {
		method = http.MethodGet
	}

	if err := c.limiter.Wait(ctx); err != nil {
		return nil, errors.Wrap(err, errors.ErrRateLimited, "превышен лимит запросов клиента")
	}

	requestID := uuid.NewString()
	ctx, span := c.tracer.Start(ctx, "HTTP "+method, trace.WithSpanKind(trace.SpanKindClient))
	defer span.End()
	span.SetAttributes(
		attribute.String("http.method", method),
		attribute.String("http.route", metrics.NormalizeEndpoint(endpoint)),
		attribute.String("http.request_id", requestID),
	)

	var body io.Reader
	if opts.Body != nil {
		body = bytes.NewReader(opts.Body)
	}
	req, err := http.NewRequestWithContext(ctx, method, c.url(endpoint), body)
	if err != nil {
		return nil, errors.Wrap(err, errors.ErrValidation, "некорректный запрос")
	}

	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")
	req.Header.Set("User-Agent", c.userAgent)
	req.Header.Set("X-Request-ID", requestID)
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	for key, values := range opts.Headers {
		req.Header.Del(key)
		for _, v := range values {
			req.Header.Add(key, v)
		}
	}

	start := time.Now()
	resp, err := c.http.Do(req)
	if err != nil {
		c.metrics.ObserveRequest(method, endpoint, 0, time.Since(start), "network")
		span.RecordError(err)
		span.SetStatus(codes.Error, "network error")
		c.logger.Debug("сетевая ошибка",
			logger.String("method", method),
			logger.String("endpoint", endpoint),
			logger.String("request_id", requestID),
			logger.Error(err))
		return nil, networkError(ctx, err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(io.LimitReader(resp.Body, maxBodySize))
	if err != nil {
		c.metrics.ObserveRequest(method, endpoint, resp.StatusCode, time.Since(start), "network")
		span.RecordError(err)
		return nil, networkError(ctx, err)
	}

	duration := time.Since(start)
	c.metrics.ObserveRequest(method, endpoint, resp.StatusCode, duration, errorType(resp.StatusCode))
	span.SetAttributes(attribute.Int("http.status_code", resp.StatusCode))
	if resp.StatusCode >= 400 {
		span.SetStatus(codes.Error, http.StatusText(resp.StatusCode))
	}

	c.logger.Debug("запрос выполнен",
		logger.String("method", method),
		logger.String("endpoint", endpoint),
		logger.Int("status", resp.StatusCode),
		logger.Duration("duration", duration),
		logger.String("request_id", requestID))

	return &response{status: resp.StatusCode, body: data}, nil
}

func networkError(ctx context.Context, err error) error {
	if ctx.Err() != nil {
		return errors.Wrap(err, errors.ErrNetwork, "запрос отменен")
	}
	return errors.Wrap(err, errors.ErrNetwork, "Сетевая ошибка: сервер недоступен")
}

func errorType(status int) string {
	switch {
	case status >= 500:
		return "server_error"
	case status >= 400:
		return "client_error"
	default:
		return ""
	}
}

// encode сериализует тело запроса
func encode(payload interface{}) ([]byte, error) {
	if payload == nil {
		return nil, nil
	}
	if raw, ok := payload.([]byte); ok {
		return raw, nil
	}
	data, err := json.Marshal(payload)
	if err != nil {
		return nil, errors.Wrap(err, errors.ErrValidation, fmt.Sprintf("ошибка кодирования запроса: %T", payload))
	}
	return data, nil
}

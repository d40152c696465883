package metrics

import (
	"context"
	"errors"
	"net/http"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/sdk/resource"
	tracesdk "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/trace"
)

// Metrics представляет систему метрик клиента портала
type Metrics struct {
	// Исходящие запросы к REST бэкенду
	RequestCount    *prometheus.CounterVec
	RequestDuration *prometheus.HistogramVec
	ErrorsCount     *prometheus.CounterVec

	// Обновления access токена: success, failure, shared
	RefreshCount *prometheus.CounterVec

	// Решения guard'а по маршрутам: loading, unauthenticated, unauthorized, authorized
	GuardDecisions *prometheus.CounterVec

	// Входящие запросы к шлюзу serve
	GatewayRequests *prometheus.CounterVec

	// OpenTelemetry Tracer
	Tracer trace.Tracer `json:"-"`
}

// NewMetrics создает систему метрик. Повторный вызов с тем же serviceName
// переиспользует уже зарегистрированные коллекторы.
func NewMetrics(serviceName string) *Metrics {
	namespace := sanitizeName(serviceName)

	requestCount := register(prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "api",
			Name:      "requests_total",
			Help:      "Total number of outbound API requests",
		},
		[]string{"method", "endpoint", "status"},
	))

	requestDuration := register(prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "api",
			Name:      "request_duration_seconds",
			Help:      "Duration of outbound API requests in seconds",
			Buckets:   prometheus.DefBuckets,
		},
		[]string{"method", "endpoint"},
	))

	errorsCount := register(prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "api",
			Name:      "errors_total",
			Help:      "Total number of failed outbound API requests",
		},
		[]string{"method", "endpoint", "error_type"},
	))

	refreshCount := register(prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "auth",
			Name:      "refresh_total",
			Help:      "Access token refresh attempts by result",
		},
		[]string{"result"},
	))

	guardDecisions := register(prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "guard",
			Name:      "decisions_total",
			Help:      "Route authorization decisions",
		},
		[]string{"decision"},
	))

	gatewayRequests := register(prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "gateway",
			Name:      "requests_total",
			Help:      "Total number of HTTP requests served by the gateway",
		},
		[]string{"method", "path", "status"},
	))

	return &Metrics{
		RequestCount:    requestCount,
		RequestDuration: requestDuration,
		ErrorsCount:     errorsCount,
		RefreshCount:    refreshCount,
		GuardDecisions:  guardDecisions,
		GatewayRequests: gatewayRequests,
		Tracer:          otel.Tracer(serviceName),
	}
}

// register регистрирует коллектор или возвращает ранее зарегистрированный
func register[C prometheus.Collector](c C) C {
	if err := prometheus.Register(c); err != nil {
		var are prometheus.AlreadyRegisteredError
		if errors.As(err, &are) {
			if existing, ok := are.ExistingCollector.(C); ok {
				return existing
			}
		}
		panic(err)
	}
	return c
}

// ObserveRequest фиксирует результат исходящего запроса
func (m *Metrics) ObserveRequest(method, endpoint string, status int, duration time.Duration, errorType string) {
	if m == nil {
		return
	}
	endpoint = NormalizeEndpoint(endpoint)
	statusLabel := "none"
	if status > 0 {
		statusLabel = strconv.Itoa(status)
	}

	m.RequestCount.WithLabelValues(method, endpoint, statusLabel).Inc()
	m.RequestDuration.WithLabelValues(method, endpoint).Observe(duration.Seconds())
	if errorType != "" {
		m.ErrorsCount.WithLabelValues(method, endpoint, errorType).Inc()
	}
}

// ObserveRefresh фиксирует результат обновления токена
func (m *Metrics) ObserveRefresh(result string) {
	if m == nil {
		return
	}
	m.RefreshCount.WithLabelValues(result).Inc()
}

// ObserveDecision фиксирует решение guard'а
func (m *Metrics) ObserveDecision(decision string) {
	if m == nil {
		return
	}
	m.GuardDecisions.WithLabelValues(decision).Inc()
}

// GetHandler возвращает HTTP обработчик для эндпоинта /metrics
func (m *Metrics) GetHandler() http.Handler {
	return promhttp.Handler()
}

// Middleware создает middleware для сбора метрик шлюза
func (m *Metrics) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ctx, span := m.Tracer.Start(r.Context(), "gateway "+r.URL.Path)
		defer span.End()

		wrapped := &responseWriter{ResponseWriter: w, statusCode: http.StatusOK}
		next.ServeHTTP(wrapped, r.WithContext(ctx))

		path := NormalizeEndpoint(r.URL.Path)
		m.GatewayRequests.WithLabelValues(r.Method, path, strconv.Itoa(wrapped.statusCode)).Inc()

		span.SetAttributes(
			attribute.String("http.method", r.Method),
			attribute.String("http.route", path),
			attribute.Int("http.status_code", wrapped.statusCode),
		)
	})
}

// responseWriter обертка для перехвата статуса ответа
type responseWriter struct {
	http.ResponseWriter
	statusCode int
}

// WriteHeader перехватывает установку статуса
func (rw *responseWriter) WriteHeader(code int) {
	rw.statusCode = code
	rw.ResponseWriter.WriteHeader(code)
}

var idSegment = regexp.MustCompile(`^([0-9]+|[0-9a-fA-F-]{32,36})$`)

// NormalizeEndpoint заменяет идентификаторы в пути на ":id", чтобы не раздувать кардинальность меток
func NormalizeEndpoint(path string) string {
	if i := strings.IndexByte(path, '?'); i >= 0 {
		path = path[:i]
	}
	segments := strings.Split(path, "/")
	for i, s := range segments {
		if idSegment.MatchString(s) {
			segments[i] = ":id"
		}
	}
	return strings.Join(segments, "/")
}

func sanitizeName(name string) string {
	return strings.NewReplacer("-", "_", ".", "_", " ", "_").Replace(name)
}

// InitializeOpenTelemetry устанавливает глобальный провайдер трассировки.
// Возвращает функцию завершения, которую нужно вызвать при остановке.
func InitializeOpenTelemetry(serviceName, version string) (func(context.Context) error, error) {
	res, err := resource.Merge(
		resource.Default(),
		resource.NewSchemaless(
			attribute.String("service.name", serviceName),
			attribute.String("service.version", version),
		),
	)
	if err != nil {
		return nil, err
	}

	tp := tracesdk.NewTracerProvider(
		tracesdk.WithSampler(tracesdk.ParentBased(tracesdk.AlwaysSample())),
		tracesdk.WithResource(res),
	)
	otel.SetTracerProvider(tp)

	return tp.Shutdown, nil
}

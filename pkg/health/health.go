package health

import (
	"context"
	"encoding/json"
	"net/http"
	"sort"
	"sync"
	"time"
)

const (
	StatusHealthy   = "healthy"
	StatusUnhealthy = "unhealthy"
)

// CheckFunc проверяет одну зависимость сервиса
type CheckFunc func(ctx context.Context) error

// HealthChecker интерфейс для проверки здоровья сервиса
type HealthChecker interface {
	Check(ctx context.Context) *HealthStatus
}

// HealthStatus представляет статус здоровья сервиса
type HealthStatus struct {
	Status    string            `json:"status"`
	Timestamp time.Time         `json:"timestamp"`
	Services  map[string]Status `json:"services,omitempty"`
	Version   string            `json:"version,omitempty"`
}

// Status представляет статус зависимости
type Status struct {
	Status  string `json:"status"`
	Details string `json:"details,omitempty"`
}

// Checker выполняет именованные проверки зависимостей
type Checker struct {
	version string
	timeout time.Duration

	mu     sync.RWMutex
	checks map[string]CheckFunc
}

// NewChecker создает Checker без зависимостей
func NewChecker(version string) *Checker {
	return &Checker{
		version: version,
		timeout: 3 * time.Second,
		checks:  make(map[string]CheckFunc),
	}
}

// AddCheck регистрирует проверку зависимости
func (c *Checker) AddCheck(name string, check CheckFunc) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.checks[name] = check
}

// Check выполняет все проверки параллельно
func (c *Checker) Check(ctx context.Context) *HealthStatus {
	c.mu.RLock()
	names := make([]string, 0, len(c.checks))
	for name := range c.checks {
		names = append(names, name)
	}
	c.mu.RUnlock()
	sort.Strings(names)

	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	results := make([]Status, len(names))
	var wg sync.WaitGroup
	for i, name := range names {
		c.mu.RLock()
		check := c.checks[name]
		c.mu.RUnlock()

		wg.Add(1)
		go func(i int, check CheckFunc) {
			defer wg.Done()
			if err := check(ctx); err != nil {
				results[i] = Status{Status: StatusUnhealthy, Details: err.Error()}
				return
			}
			results[i] = Status{Status: StatusHealthy}
		}(i, check)
	}
	wg.Wait()

	status := &HealthStatus{
		Status:    StatusHealthy,
		Timestamp: time.Now(),
		Version:   c.version,
	}
	if len(names) > 0 {
		status.Services = make(map[string]Status, len(names))
	}
	for i, name := range names {
		status.Services[name] = results[i]
		if results[i].Status != StatusHealthy {
			status.Status = StatusUnhealthy
		}
	}
	return status
}

// Handler создает HTTP обработчик для health check эндпоинта.
// Отвечает 503, если хотя бы одна зависимость нездорова.
func Handler(checker HealthChecker) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		status := checker.Check(r.Context())

		code := http.StatusOK
		if status.Status != StatusHealthy {
			code = http.StatusServiceUnavailable
		}

		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(code)
		_ = json.NewEncoder(w).Encode(status)
	}
}

// LiveHandler создает HTTP обработчик для live check эндпоинта
func LiveHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		_ = json.NewEncoder(w).Encode(map[string]string{"status": "alive"})
	}
}

package health

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
)

// TestChecker_NoChecks проверяет статус сервиса без зависимостей
func TestChecker_NoChecks(t *testing.T) {
	status := NewChecker("v1.0.0").Check(context.Background())

	if status.Status != StatusHealthy {
		t.Errorf("Expected status 'healthy', got %s", status.Status)
	}
	if status.Timestamp.IsZero() {
		t.Error("Expected timestamp, got zero")
	}
	if status.Version != "v1.0.0" {
		t.Errorf("Expected version 'v1.0.0', got %s", status.Version)
	}
	if status.Services != nil {
		t.Errorf("Expected no services, got %v", status.Services)
	}
}

// TestChecker_FailingDependency проверяет, что одна упавшая проверка делает сервис нездоровым
func TestChecker_FailingDependency(t *testing.T) {
	checker := NewChecker("v1.0.0")
	checker.AddCheck("backend", func(ctx context.Context) error { return nil })
	checker.AddCheck("redis", func(ctx context.Context) error { return errors.New("connection refused") })

	status := checker.Check(context.Background())

	if status.Status != StatusUnhealthy {
		t.Errorf("Expected status 'unhealthy', got %s", status.Status)
	}
	if status.Services["backend"].Status != StatusHealthy {
		t.Errorf("Expected backend healthy, got %+v", status.Services["backend"])
	}
	if status.Services["redis"].Details != "connection refused" {
		t.Errorf("Expected redis details, got %+v", status.Services["redis"])
	}
}

// TestHandler проверяет HTTP обработчик
func TestHandler(t *testing.T) {
	checker := NewChecker("v1.0.0")
	w := httptest.NewRecorder()
	Handler(checker)(w, httptest.NewRequest("GET", "/healthz", nil))

	if w.Code != http.StatusOK {
		t.Errorf("Expected status code %d, got %d", http.StatusOK, w.Code)
	}
	if w.Header().Get("Content-Type") != "application/json" {
		t.Errorf("Expected Content-Type 'application/json', got %s", w.Header().Get("Content-Type"))
	}

	var response HealthStatus
	if err := json.NewDecoder(w.Body).Decode(&response); err != nil {
		t.Fatalf("Failed to decode response: %v", err)
	}
	if response.Status != StatusHealthy {
		t.Errorf("Expected status 'healthy', got %s", response.Status)
	}
}

// TestHandler_Unhealthy проверяет код 503 для нездорового сервиса
func TestHandler_Unhealthy(t *testing.T) {
	checker := NewChecker("v1.0.0")
	checker.AddCheck("redis", func(ctx context.Context) error { return errors.New("down") })

	w := httptest.NewRecorder()
	Handler(checker)(w, httptest.NewRequest("GET", "/healthz", nil))

	if w.Code != http.StatusServiceUnavailable {
		t.Errorf("Expected status code %d, got %d", http.StatusServiceUnavailable, w.Code)
	}
}

// TestLiveHandler проверяет live check
func TestLiveHandler(t *testing.T) {
	w := httptest.NewRecorder()
	LiveHandler()(w, httptest.NewRequest("GET", "/livez", nil))

	if w.Code != http.StatusOK {
		t.Errorf("Expected status code %d, got %d", http.StatusOK, w.Code)
	}
}

package mocks

import (
	"context"

	"github.com/stretchr/testify/mock"

	"FieldOpsPortal/pkg/health"
	"FieldOpsPortal/pkg/logger"
)

// MockRateLimiter имитирует pkg/ratelimit.RateLimiter
type MockRateLimiter struct {
	mock.Mock
}

func (m *MockRateLimiter) Wait(ctx context.Context) error {
	args := m.Called(ctx)
	return args.Error(0)
}

func (m *MockRateLimiter) Allow() bool {
	args := m.Called()
	return args.Bool(0)
}

// MockNavigator имитирует переход на страницу входа
type MockNavigator struct {
	mock.Mock
}

func (m *MockNavigator) RedirectToLogin(reason string) {
	m.Called(reason)
}

// MockLogger имитирует pkg/logger.Logger
type MockLogger struct {
	mock.Mock
}

// NewMockLogger создает MockLogger, который принимает любые вызовы
// Debug и Info; ожидания для Warn и Error задает тест
func NewMockLogger() *MockLogger {
	m := &MockLogger{}
	m.On("Debug", mock.Anything, mock.Anything).Maybe()
	m.On("Info", mock.Anything, mock.Anything).Maybe()
	m.On("Sync").Return(nil).Maybe()
	m.On("With", mock.Anything).Return(m).Maybe()
	return m
}

func (m *MockLogger) Debug(msg string, fields ...logger.Field) {
	m.Called(msg, fields)
}

func (m *MockLogger) Info(msg string, fields ...logger.Field) {
	m.Called(msg, fields)
}

func (m *MockLogger) Warn(msg string, fields ...logger.Field) {
	m.Called(msg, fields)
}

func (m *MockLogger) Error(msg string, fields ...logger.Field) {
	m.Called(msg, fields)
}

func (m *MockLogger) With(fields ...logger.Field) logger.Logger {
	args := m.Called(fields)
	return args.Get(0).(logger.Logger)
}

func (m *MockLogger) Sync() error {
	args := m.Called()
	return args.Error(0)
}

// MockHealthChecker имитирует pkg/health.HealthChecker
type MockHealthChecker struct {
	mock.Mock
}

func (m *MockHealthChecker) Check(ctx context.Context) *health.HealthStatus {
	args := m.Called(ctx)
	return args.Get(0).(*health.HealthStatus)
}

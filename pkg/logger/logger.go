package logger

import (
	"context"
	"os"
	"strings"
	"time"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// Logger представляет интерфейс для логирования
type Logger interface {
	Debug(msg string, fields ...Field)
	Info(msg string, fields ...Field)
	Warn(msg string, fields ...Field)
	Error(msg string, fields ...Field)
	With(fields ...Field) Logger
	Sync() error
}

// Field представляет поле лога
type Field struct {
	zap.Field
}

// LoggerImpl реализация логгера на основе zap
type LoggerImpl struct {
	zapLogger *zap.Logger
}

// NewLogger создает новый логгер портала
//
// Параметры:
// - environment: окружение (dev, staging, prod); dev включает консольный формат
// - level: уровень логирования; пустой уровень в dev означает debug
// - serviceName: имя сервиса для контекста
// - jsonOutput: принудительный JSON формат даже в dev
func NewLogger(environment, level, serviceName string, jsonOutput bool) (Logger, error) {
	zapLevel := parseLevel(environment, level)

	var encoder zapcore.Encoder
	if environment == "dev" && !jsonOutput {
		encoder = zapcore.NewConsoleEncoder(zap.NewDevelopmentEncoderConfig())
	} else {
		encoderConfig := zap.NewProductionEncoderConfig()
		encoderConfig.TimeKey = "time"
		encoderConfig.MessageKey = "msg"
		encoderConfig.EncodeLevel = zapcore.LowercaseLevelEncoder
		encoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder
		encoderConfig.EncodeDuration = zapcore.MillisDurationEncoder
		encoderConfig.EncodeCaller = zapcore.ShortCallerEncoder
		encoder = zapcore.NewJSONEncoder(encoderConfig)
	}

	// CLI пишет логи в stderr, чтобы не смешивать их с выводом команд
	core := zapcore.NewCore(encoder, zapcore.AddSync(os.Stderr), zap.NewAtomicLevelAt(zapLevel))

	zapLogger := zap.New(core, zap.AddCaller(), zap.AddCallerSkip(1), zap.AddStacktrace(zap.ErrorLevel)).With(
		zap.String("service", serviceName),
		zap.String("environment", environment),
	)

	return &LoggerImpl{zapLogger: zapLogger}, nil
}

// NewNop возвращает логгер, который ничего не пишет
func NewNop() Logger {
	return &LoggerImpl{zapLogger: zap.NewNop()}
}

// parseLevel определяет уровень логирования с учетом окружения
func parseLevel(environment, level string) zapcore.Level {
	switch strings.ToLower(strings.TrimSpace(level)) {
	case "debug":
		return zap.DebugLevel
	case "info":
		return zap.InfoLevel
	case "warn":
		return zap.WarnLevel
	case "error":
		return zap.ErrorLevel
	case "":
		if environment == "dev" {
			return zap.DebugLevel
		}
	}
	return zap.InfoLevel
}

// Debug записывает отладочное сообщение
func (l *LoggerImpl) Debug(msg string, fields ...Field) {
	l.zapLogger.Debug(msg, toZap(fields)...)
}

// Info записывает информационное сообщение
func (l *LoggerImpl) Info(msg string, fields ...Field) {
	l.zapLogger.Info(msg, toZap(fields)...)
}

// Warn записывает предупреждение
func (l *LoggerImpl) Warn(msg string, fields ...Field) {
	l.zapLogger.Warn(msg, toZap(fields)...)
}

// Error записывает ошибку
func (l *LoggerImpl) Error(msg string, fields ...Field) {
	l.zapLogger.Error(msg, toZap(fields)...)
}

// With добавляет поля к логгеру и возвращает новый логгер
func (l *LoggerImpl) With(fields ...Field) Logger {
	return &LoggerImpl{zapLogger: l.zapLogger.With(toZap(fields)...)}
}

// Sync сбрасывает буферы логгера
func (l *LoggerImpl) Sync() error {
	return l.zapLogger.Sync()
}

func toZap(fields []Field) []zap.Field {
	zapFields := make([]zap.Field, len(fields))
	for i, field := range fields {
		zapFields[i] = field.Field
	}
	return zapFields
}

type requestIDKey struct{}

// ContextWithRequestID сохраняет идентификатор запроса в контексте
func ContextWithRequestID(ctx context.Context, requestID string) context.Context {
	return context.WithValue(ctx, requestIDKey{}, requestID)
}

// CtxField возвращает поле с request_id из контекста
func CtxField(ctx context.Context) Field {
	if ctx != nil {
		if requestID, ok := ctx.Value(requestIDKey{}).(string); ok && requestID != "" {
			return String("request_id", requestID)
		}
	}
	return String("request_id", "unknown")
}

// String создает поле со строковым значением
func String(key, val string) Field {
	return Field{zap.String(key, val)}
}

// Strings создает поле со списком строк
func Strings(key string, val []string) Field {
	return Field{zap.Strings(key, val)}
}

// Int создает поле с целочисленным значением
func Int(key string, val int) Field {
	return Field{zap.Int(key, val)}
}

// Int64 создает поле с целочисленным значением типа int64
func Int64(key string, val int64) Field {
	return Field{zap.Int64(key, val)}
}

// Bool создает поле с булевым значением
func Bool(key string, val bool) Field {
	return Field{zap.Bool(key, val)}
}

// Duration создает поле с длительностью
func Duration(key string, val time.Duration) Field {
	return Field{zap.Duration(key, val)}
}

// Error создает поле с ошибкой
func Error(err error) Field {
	if err == nil {
		return Field{zap.String("error", "nil")}
	}
	return Field{zap.String("error", err.Error())}
}

// Any создает поле с любым значением
func Any(key string, val interface{}) Field {
	return Field{zap.Any(key, val)}
}

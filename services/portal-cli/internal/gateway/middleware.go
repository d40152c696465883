package gateway

import (
	"encoding/json"
	"net/http"
	"runtime"
	"time"

	"github.com/google/uuid"

	"FieldOpsPortal/pkg/logger"
)

// RecoveryMiddleware обрабатывает паники в обработчиках HTTP
func RecoveryMiddleware(log logger.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			defer func() {
				if err := recover(); err != nil {
					log.Error("паника в обработчике HTTP",
						logger.Any("panic", err),
						logger.String("stack_trace", string(debugStack())),
						logger.String("method", r.Method),
						logger.String("path", r.URL.Path),
						logger.CtxField(r.Context()))

					w.Header().Set("Content-Type", "application/json")
					w.WriteHeader(http.StatusInternalServerError)
					_ = json.NewEncoder(w).Encode(map[string]interface{}{
						"error": map[string]interface{}{
							"code":    "INTERNAL_ERROR",
							"message": "Internal server error",
						},
						"timestamp": time.Now().UTC().Format(time.RFC3339),
					})
				}
			}()

			next.ServeHTTP(w, r)
		})
	}
}

func debugStack() []byte {
	buf := make([]byte, 1024)
	for {
		n := runtime.Stack(buf, false)
		if n < len(buf) {
			return buf[:n]
		}
		buf = make([]byte, 2*len(buf))
	}
}

// LoggingMiddleware присваивает запросу X-Request-ID и логирует его завершение
func LoggingMiddleware(log logger.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			requestID := r.Header.Get("X-Request-ID")
			if requestID == "" {
				requestID = uuid.NewString()
			}
			w.Header().Set("X-Request-ID", requestID)
			r = r.WithContext(logger.ContextWithRequestID(r.Context(), requestID))

			start := time.Now()
			wrapped := &statusWriter{ResponseWriter: w, statusCode: http.StatusOK}
			next.ServeHTTP(wrapped, r)

			log.Info("запрос обработан",
				logger.String("method", r.Method),
				logger.String("path", r.URL.Path),
				logger.Int("status_code", wrapped.statusCode),
				logger.Duration("duration", time.Since(start)),
				logger.CtxField(r.Context()))
		})
	}
}

// statusWriter обертка для перехвата статуса ответа
type statusWriter struct {
	http.ResponseWriter
	statusCode int
}

func (rw *statusWriter) WriteHeader(code int) {
	rw.statusCode = code
	rw.ResponseWriter.WriteHeader(code)
}

package errors

import (
	"encoding/json"
	stderrors "errors"
	"fmt"
	"net/http"
)

// Error представляет ошибку портала с кодом и человекочитаемым сообщением
type Error struct {
	Code    ErrorCode `json:"code"`
	Message string    `json:"message"`
	Details string    `json:"details,omitempty"`
	// Status HTTP статус ответа бэкенда, 0 если ответа не было
	Status int   `json:"-"`
	Cause  error `json:"-"`
}

// ErrorCode представляет код ошибки
type ErrorCode string

// Определение кодов ошибок
const (
	ErrNotFound       ErrorCode = "NOT_FOUND"
	ErrValidation     ErrorCode = "VALIDATION_ERROR"
	ErrUnauthorized   ErrorCode = "UNAUTHORIZED"
	ErrForbidden      ErrorCode = "FORBIDDEN"
	ErrInternal       ErrorCode = "INTERNAL_ERROR"
	ErrConflict       ErrorCode = "CONFLICT"
	ErrNetwork        ErrorCode = "NETWORK_ERROR"
	ErrSessionExpired ErrorCode = "SESSION_EXPIRED"
	ErrRateLimited    ErrorCode = "RATE_LIMITED"
)

// Error возвращает сообщение об ошибке
func (e *Error) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Cause)
	}
	return e.Message
}

// Unwrap возвращает причину ошибки
func (e *Error) Unwrap() error {
	return e.Cause
}

// Is сравнивает ошибки по коду, что позволяет использовать errors.Is(err, errors.New(code, ""))
func (e *Error) Is(target error) bool {
	if targetError, ok := target.(*Error); ok {
		return e.Code == targetError.Code
	}
	return false
}

// New создает новую ошибку
func New(code ErrorCode, message string) *Error {
	return &Error{
		Code:    code,
		Message: message,
	}
}

// Wrap оборачивает существующую ошибку
func Wrap(err error, code ErrorCode, message string) *Error {
	if err == nil {
		return nil
	}
	return &Error{
		Code:    code,
		Message: message,
		Cause:   err,
	}
}

// WithDetails возвращает копию ошибки с деталями
func (e *Error) WithDetails(details string) *Error {
	if e == nil {
		return nil
	}
	cp := *e
	cp.Details = details
	return &cp
}

// WithStatus возвращает копию ошибки с HTTP статусом ответа
func (e *Error) WithStatus(status int) *Error {
	if e == nil {
		return nil
	}
	cp := *e
	cp.Status = status
	return &cp
}

// FromHTTPStatus создает ошибку по статусу неуспешного HTTP ответа
func FromHTTPStatus(status int, message string) *Error {
	var code ErrorCode
	switch {
	case status == http.StatusUnauthorized:
		code = ErrUnauthorized
	case status == http.StatusForbidden:
		code = ErrForbidden
	case status == http.StatusNotFound:
		code = ErrNotFound
	case status == http.StatusConflict:
		code = ErrConflict
	case status == http.StatusTooManyRequests:
		code = ErrRateLimited
	case status >= 400 && status < 500:
		code = ErrValidation
	default:
		code = ErrInternal
	}
	return &Error{Code: code, Message: message, Status: status}
}

// CodeOf возвращает код ошибки портала или ErrInternal для прочих ошибок
func CodeOf(err error) ErrorCode {
	var e *Error
	if stderrors.As(err, &e) {
		return e.Code
	}
	return ErrInternal
}

// HasCode проверяет, что в цепочке есть ошибка портала с указанным кодом
func HasCode(err error, code ErrorCode) bool {
	return err != nil && stderrors.Is(err, New(code, ""))
}

// HTTPStatus возвращает соответствующий HTTP статус для ошибки
func (e *Error) HTTPStatus() int {
	if e == nil {
		return http.StatusOK
	}
	if e.Status != 0 {
		return e.Status
	}

	switch e.Code {
	case ErrNotFound:
		return http.StatusNotFound
	case ErrValidation:
		return http.StatusBadRequest
	case ErrUnauthorized, ErrSessionExpired:
		return http.StatusUnauthorized
	case ErrForbidden:
		return http.StatusForbidden
	case ErrConflict:
		return http.StatusConflict
	case ErrRateLimited:
		return http.StatusTooManyRequests
	case ErrNetwork:
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}

// GetUserMessage возвращает сообщение для пользователя.
// Сообщение бэкенда показывается как есть, иначе используется текст по коду.
func (e *Error) GetUserMessage() string {
	if e == nil {
		return ""
	}
	if e.Message != "" {
		return e.Message
	}

	switch e.Code {
	case ErrNotFound:
		return "Ресурс не найден"
	case ErrValidation:
		return "Ошибка валидации данных"
	case ErrUnauthorized:
		return "Не авторизован"
	case ErrForbidden:
		return "Доступ запрещен"
	case ErrConflict:
		return "Конфликт данных"
	case ErrNetwork:
		return "Сервер недоступен, проверьте подключение"
	case ErrSessionExpired:
		return "Сессия истекла, выполните вход заново"
	case ErrRateLimited:
		return "Слишком много запросов"
	default:
		return "Произошла ошибка"
	}
}

// WriteHTTP отправляет ошибку клиенту в формате {"error": {...}}
func WriteHTTP(w http.ResponseWriter, err error) {
	var e *Error
	if !stderrors.As(err, &e) {
		e = Wrap(err, ErrInternal, "")
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(e.HTTPStatus())

	response := map[string]interface{}{
		"error": map[string]interface{}{
			"code":    e.Code,
			"message": e.GetUserMessage(),
			"details": e.Details,
		},
	}
	if encErr := json.NewEncoder(w).Encode(response); encErr != nil {
		_, _ = w.Write([]byte(`{"error":{"code":"INTERNAL_ERROR","message":"Internal server error"}}`))
	}
}

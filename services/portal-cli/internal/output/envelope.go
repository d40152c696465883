package output

import (
	"errors"
	"time"

	pkgerrors "FieldOpsPortal/pkg/errors"
)

// Envelope представляет вывод команды с метаданными для JSON и YAML
type Envelope struct {
	Success   bool        `json:"success" yaml:"success"`
	Command   string      `json:"command" yaml:"command"`
	Data      interface{} `json:"data,omitempty" yaml:"data,omitempty"`
	Error     *ErrorInfo  `json:"error,omitempty" yaml:"error,omitempty"`
	Timestamp time.Time   `json:"timestamp" yaml:"timestamp"`
}

// ErrorInfo описание ошибки в выводе
type ErrorInfo struct {
	Code    string `json:"code" yaml:"code"`
	Message string `json:"message" yaml:"message"`
	Status  int    `json:"status,omitempty" yaml:"status,omitempty"`
}

// NewEnvelope создает вывод команды
func NewEnvelope(command string, data interface{}, err error) *Envelope {
	return &Envelope{
		Success:   err == nil,
		Command:   command,
		Data:      data,
		Error:     errorInfo(err),
		Timestamp: time.Now().UTC(),
	}
}

func errorInfo(err error) *ErrorInfo {
	if err == nil {
		return nil
	}
	info := &ErrorInfo{
		Code:    string(pkgerrors.CodeOf(err)),
		Message: err.Error(),
	}
	var e *pkgerrors.Error
	if errors.As(err, &e) {
		info.Message = e.GetUserMessage()
		info.Status = e.Status
	}
	return info
}

package validation

import (
	"fmt"
	"net/mail"
	"net/url"
	"strings"

	"FieldOpsPortal/pkg/errors"
)

// Validator предоставляет общие функции валидации пользовательского ввода.
// Все методы возвращают *errors.Error с кодом VALIDATION_ERROR.
type Validator struct{}

// NewValidator создает новый Validator
func NewValidator() *Validator {
	return &Validator{}
}

func invalid(format string, args ...interface{}) error {
	return errors.New(errors.ErrValidation, fmt.Sprintf(format, args...))
}

// ValidateRequired проверяет, что значение не пустое
func (v *Validator) ValidateRequired(value, fieldName string) error {
	if strings.TrimSpace(value) == "" {
		return invalid("%s is required", fieldName)
	}
	return nil
}

// ValidateEmail проверяет адрес электронной почты
func (v *Validator) ValidateEmail(email string) error {
	if err := v.ValidateRequired(email, "email"); err != nil {
		return err
	}
	addr, err := mail.ParseAddress(email)
	if err != nil || addr.Address != email {
		return invalid("invalid email: %s", email)
	}
	return nil
}

// ValidateStringLength проверяет длину строки
func (v *Validator) ValidateStringLength(value, fieldName string, min, max int) error {
	length := len([]rune(value))
	if length < min {
		return invalid("%s must be at least %d characters, got: %d", fieldName, min, length)
	}
	if max > 0 && length > max {
		return invalid("%s must not exceed %d characters, got: %d", fieldName, max, length)
	}
	return nil
}

// ValidateEnum проверяет значение на соответствие enum
func (v *Validator) ValidateEnum(value string, allowedValues []string, fieldName string) error {
	if value == "" {
		return invalid("%s is required", fieldName)
	}
	for _, allowed := range allowedValues {
		if value == allowed {
			return nil
		}
	}
	return invalid("invalid %s: %s, allowed values: %v", fieldName, value, allowedValues)
}

// ValidateResourceID проверяет идентификатор, подставляемый в путь эндпоинта
func (v *Validator) ValidateResourceID(id, fieldName string) error {
	if err := v.ValidateRequired(id, fieldName); err != nil {
		return err
	}
	if strings.ContainsAny(id, "/?#% \t\n\r") {
		return invalid("invalid %s: %q", fieldName, id)
	}
	return nil
}

// ValidateURL проверяет корректность URL
func (v *Validator) ValidateURL(target string, allowedSchemes []string) error {
	if target == "" {
		return invalid("url is required")
	}
	if strings.ContainsAny(target, " \t\n\r") {
		return invalid("URL contains invalid whitespace characters")
	}

	parsedURL, err := url.Parse(target)
	if err != nil {
		return invalid("invalid URL format: %v", err)
	}

	if len(allowedSchemes) > 0 {
		schemeValid := false
		for _, scheme := range allowedSchemes {
			if parsedURL.Scheme == scheme {
				schemeValid = true
				break
			}
		}
		if !schemeValid {
			return invalid("URL must use one of allowed schemes %v, got: %s", allowedSchemes, parsedURL.Scheme)
		}
	}

	if parsedURL.Host == "" {
		return invalid("URL must have a valid host")
	}
	return nil
}

package apiclient

import (
	"encoding/json"
	"fmt"
	"sort"
	"strings"

	"FieldOpsPortal/pkg/errors"
)

// errorFromResponse строит ошибку из неуспешного ответа
func errorFromResponse(status int, body []byte) error {
	return errors.FromHTTPStatus(status, ExtractMessage(status, body))
}

// ExtractMessage извлекает одно сообщение из тела ошибки. Порядок: error,
// message, detail, затем все значения details через запятую. Если ничего не
// подошло, возвращается общее сообщение со статусом.
func ExtractMessage(status int, body []byte) string {
	var fields map[string]json.RawMessage
	if err := json.Unmarshal(body, &fields); err == nil {
		for _, key := range []string{"error", "message", "detail"} {
			if msg := messageFrom(fields[key]); msg != "" {
				return msg
			}
		}
		if msg := strings.Join(flatten(fields["details"]), ", "); msg != "" {
			return msg
		}
	}
	return fmt.Sprintf("Запрос завершился с ошибкой (HTTP %d)", status)
}

// messageFrom принимает строку или объект вида {"message": "..."}
func messageFrom(raw json.RawMessage) string {
	if len(raw) == 0 {
		return ""
	}

	var s string
	if err := json.Unmarshal(raw, &s); err == nil {
		return strings.TrimSpace(s)
	}

	var nested struct {
		Message string `json:"message"`
	}
	if err := json.Unmarshal(raw, &nested); err == nil {
		return strings.TrimSpace(nested.Message)
	}
	return ""
}

// flatten собирает строки из details: строка, список или объект поле -> сообщения.
// Ключи объекта обходятся в алфавитном порядке.
func flatten(raw json.RawMessage) []string {
	if len(raw) == 0 {
		return nil
	}

	var s string
	if err := json.Unmarshal(raw, &s); err == nil {
		if s = strings.TrimSpace(s); s != "" {
			return []string{s}
		}
		return nil
	}

	var list []json.RawMessage
	if err := json.Unmarshal(raw, &list); err == nil {
		var out []string
		for _, item := range list {
			out = append(out, flatten(item)...)
		}
		return out
	}

	var obj map[string]json.RawMessage
	if err := json.Unmarshal(raw, &obj); err == nil {
		keys := make([]string, 0, len(obj))
		for k := range obj {
			keys = append(keys, k)
		}
		sort.Strings(keys)

		var out []string
		for _, k := range keys {
			out = append(out, flatten(obj[k])...)
		}
		return out
	}
	return nil
}

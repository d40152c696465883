package apiclient

import (
	"context"
	"encoding/json"
	"net/http"
	"net/url"

	"FieldOpsPortal/pkg/errors"
)

// Get выполняет GET с параметрами запроса
func (c *Client) Get(ctx context.Context, endpoint string, query url.Values) (json.RawMessage, error) {
	if len(query) > 0 {
		endpoint += "?" + query.Encode()
	}
	return c.Request(ctx, endpoint, &RequestOptions{Method: http.MethodGet})
}

// Post выполняет POST, payload сериализуется в JSON
func (c *Client) Post(ctx context.Context, endpoint string, payload interface{}) (json.RawMessage, error) {
	return c.withBody(ctx, http.MethodPost, endpoint, payload)
}

// Patch выполняет PATCH, payload сериализуется в JSON
func (c *Client) Patch(ctx context.Context, endpoint string, payload interface{}) (json.RawMessage, error) {
	return c.withBody(ctx, http.MethodPatch, endpoint, payload)
}

func (c *Client) withBody(ctx context.Context, method, endpoint string, payload interface{}) (json.RawMessage, error) {
	body, err := encode(payload)
	if err != nil {
		return nil, err
	}
	return c.Request(ctx, endpoint, &RequestOptions{Method: method, Body: body})
}

// DecodeInto декодирует тело ответа в out. Пустое тело оставляет out без изменений.
func DecodeInto(raw json.RawMessage, out interface{}) error {
	if len(raw) == 0 {
		return nil
	}
	if err := json.Unmarshal(raw, out); err != nil {
		return errors.Wrap(err, errors.ErrInternal, "некорректный ответ сервера")
	}
	return nil
}

// DecodeList принимает как массив, так и страницу вида {"results": [...], "count": N}.
// Для массива count равен его длине.
func DecodeList[T any](raw json.RawMessage) ([]T, int, error) {
	if len(raw) == 0 || string(raw) == "null" {
		return []T{}, 0, nil
	}

	if raw[0] == '[' {
		var items []T
		if err := json.Unmarshal(raw, &items); err != nil {
			return nil, 0, errors.Wrap(err, errors.ErrInternal, "некорректный список в ответе")
		}
		return items, len(items), nil
	}

	var page struct {
		Results []T  `json:"results"`
		Count   *int `json:"count"`
	}
	if err := json.Unmarshal(raw, &page); err != nil {
		return nil, 0, errors.Wrap(err, errors.ErrInternal, "некорректная страница в ответе")
	}
	if page.Results == nil {
		page.Results = []T{}
	}
	count := len(page.Results)
	if page.Count != nil {
		count = *page.Count
	}
	return page.Results, count, nil
}

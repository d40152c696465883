package output

import (
	"fmt"
	"strings"
	"text/tabwriter"
	"time"
)

// TableData представляет данные для табличного вывода
type TableData struct {
	Headers []string
	Rows    []*TableRow
	// Empty текст для таблицы без строк
	Empty string
}

// TableRow представляет строку таблицы
type TableRow struct {
	Cells []string
}

// NewTableData создает новые табличные данные
func NewTableData(headers ...string) *TableData {
	return &TableData{
		Headers: headers,
		Rows:    make([]*TableRow, 0),
	}
}

// AddRow добавляет строку
func (td *TableData) AddRow(cells ...string) {
	td.Rows = append(td.Rows, &TableRow{Cells: cells})
}

// AddField добавляет строку вида "ключ значение" для карточки объекта
func (td *TableData) AddField(name string, value string) {
	if value == "" {
		value = "-"
	}
	td.AddRow(name, value)
}

// String возвращает строковое представление таблицы
func (td *TableData) String() string {
	if len(td.Rows) == 0 {
		if td.Empty != "" {
			return td.Empty
		}
		return "No data found"
	}

	var builder strings.Builder
	w := tabwriter.NewWriter(&builder, 0, 0, 2, ' ', 0)

	if len(td.Headers) > 0 {
		fmt.Fprintln(w, strings.Join(td.Headers, "\t"))
		separators := make([]string, len(td.Headers))
		for i := range separators {
			separators[i] = strings.Repeat("-", len(td.Headers[i]))
		}
		fmt.Fprintln(w, strings.Join(separators, "\t"))
	}

	for _, row := range td.Rows {
		fmt.Fprintln(w, strings.Join(row.Cells, "\t"))
	}

	w.Flush()
	return builder.String()
}

// statusIcon возвращает иконку для статуса
func statusIcon(status string) string {
	switch strings.ToLower(status) {
	case "completed", "approved", "resolved", "paid", "valid", "authorized":
		return "✓"
	case "cancelled", "rejected", "failed", "expired", "unauthorized", "unauthenticated":
		return "✗"
	case "open", "pending", "scheduled", "in_progress", "loading":
		return "⚠"
	default:
		return "?"
	}
}

// withIcon добавляет иконку к статусу
func withIcon(status string) string {
	if status == "" {
		return "-"
	}
	return statusIcon(status) + " " + status
}

func formatTime(t time.Time) string {
	if t.IsZero() {
		return "-"
	}
	return t.Local().Format("2006-01-02 15:04:05")
}

func formatTimePtr(t *time.Time) string {
	if t == nil {
		return "-"
	}
	return formatTime(*t)
}

func formatMoney(amount float64, currency string) string {
	if currency == "" {
		return fmt.Sprintf("%.2f", amount)
	}
	return fmt.Sprintf("%.2f %s", amount, strings.ToUpper(currency))
}

func orDash(s string) string {
	if s == "" {
		return "-"
	}
	return s
}

package output

import (
	"encoding/json"
	"fmt"
	"io"
	"strings"

	"gopkg.in/yaml.v2"
)

// FormatType представляет тип форматирования вывода
type FormatType string

const (
	FormatTable FormatType = "table"
	FormatJSON  FormatType = "json"
	FormatYAML  FormatType = "yaml"
)

// ParseFormat разбирает формат вывода. Пустая строка означает таблицу.
func ParseFormat(s string) (FormatType, error) {
	switch FormatType(strings.ToLower(strings.TrimSpace(s))) {
	case "", FormatTable:
		return FormatTable, nil
	case FormatJSON:
		return FormatJSON, nil
	case FormatYAML:
		return FormatYAML, nil
	}
	return "", fmt.Errorf("unknown output format %q, must be one of: table, json, yaml", s)
}

// Formatter интерфейс для форматирования вывода
type Formatter interface {
	Format(data interface{}) (string, error)
}

// Tabular данные, которые умеют представить себя таблицей
type Tabular interface {
	Table() *TableData
}

// TableFormatter форматирует данные в виде таблицы
type TableFormatter struct{}

func NewTableFormatter() *TableFormatter {
	return &TableFormatter{}
}

func (f *TableFormatter) Format(data interface{}) (string, error) {
	switch v := data.(type) {
	case *TableData:
		return v.String(), nil
	case Tabular:
		return v.Table().String(), nil
	case fmt.Stringer:
		return v.String(), nil
	default:
		return fmt.Sprintf("%v", v), nil
	}
}

// JSONFormatter форматирует данные в JSON
type JSONFormatter struct {
	Pretty bool
}

func NewJSONFormatter(pretty bool) *JSONFormatter {
	return &JSONFormatter{Pretty: pretty}
}

func (f *JSONFormatter) Format(data interface{}) (string, error) {
	var out []byte
	var err error

	if f.Pretty {
		out, err = json.MarshalIndent(data, "", "  ")
	} else {
		out, err = json.Marshal(data)
	}
	if err != nil {
		return "", fmt.Errorf("failed to marshal JSON: %w", err)
	}

	return string(out), nil
}

// YAMLFormatter форматирует данные в YAML
type YAMLFormatter struct{}

func NewYAMLFormatter() *YAMLFormatter {
	return &YAMLFormatter{}
}

func (f *YAMLFormatter) Format(data interface{}) (string, error) {
	out, err := yaml.Marshal(data)
	if err != nil {
		return "", fmt.Errorf("failed to marshal YAML: %w", err)
	}
	return string(out), nil
}

// GetFormatter возвращает подходящий форматировщик
func GetFormatter(format FormatType) Formatter {
	switch format {
	case FormatJSON:
		return NewJSONFormatter(true)
	case FormatYAML:
		return NewYAMLFormatter()
	default:
		return NewTableFormatter()
	}
}

// Printer печатает результаты команд в выбранном формате
type Printer struct {
	w      io.Writer
	format FormatType
}

// NewPrinter создает Printer
func NewPrinter(w io.Writer, format FormatType) *Printer {
	return &Printer{w: w, format: format}
}

// Format возвращает формат вывода
func (p *Printer) Format() FormatType {
	return p.format
}

// Print выводит результат команды. В JSON и YAML данные оборачиваются в
// Envelope, таблица печатается как есть.
func (p *Printer) Print(command string, data interface{}) error {
	var payload interface{} = data
	if p.format != FormatTable {
		payload = NewEnvelope(command, data, nil)
	}
	return p.write(payload)
}

// PrintError выводит ошибку команды. Для таблицы возвращает false, чтобы
// ошибку напечатал вызывающий.
func (p *Printer) PrintError(command string, err error) (bool, error) {
	if p.format == FormatTable {
		return false, nil
	}
	return true, p.write(NewEnvelope(command, nil, err))
}

func (p *Printer) write(payload interface{}) error {
	text, err := GetFormatter(p.format).Format(payload)
	if err != nil {
		return err
	}
	if !strings.HasSuffix(text, "\n") {
		text += "\n"
	}
	_, err = io.WriteString(p.w, text)
	return err
}

package output

import (
	"encoding/json"
	"fmt"
	"strings"

	"FieldOpsPortal/services/portal-cli/internal/guard"
	"FieldOpsPortal/services/portal-cli/internal/portal"
	"FieldOpsPortal/services/portal-cli/internal/session"
)

// View связывает данные команды с их табличным представлением. В JSON и
// YAML сериализуются сами данные.
type View struct {
	data  interface{}
	table func() *TableData
}

// Table реализует Tabular
func (v *View) Table() *TableData {
	return v.table()
}

// Data возвращает исходные данные
func (v *View) Data() interface{} {
	return v.data
}

func (v *View) MarshalJSON() ([]byte, error) {
	return json.Marshal(v.data)
}

func (v *View) MarshalYAML() (interface{}, error) {
	return v.data, nil
}

// Jobs список заявок
func Jobs(page portal.Page[portal.Job]) *View {
	return &View{data: page, table: func() *TableData {
		td := NewTableData("ID", "TITLE", "STATUS", "SCHEDULED", "CONTRACTOR", "ADDRESS")
		td.Empty = "Заявок не найдено"
		for _, j := range page.Items {
			td.AddRow(j.ID, j.Title, withIcon(j.Status), formatTimePtr(j.ScheduledAt), orDash(j.Contractor), orDash(j.Address))
		}
		if len(page.Items) > 0 && page.Count > len(page.Items) {
			td.AddRow(fmt.Sprintf("... показано %d из %d", len(page.Items), page.Count))
		}
		return td
	}}
}

// Job карточка заявки
func Job(j *portal.Job) *View {
	return &View{data: j, table: func() *TableData {
		td := NewTableData("FIELD", "VALUE")
		td.AddField("ID", j.ID)
		td.AddField("Title", j.Title)
		td.AddField("Status", withIcon(j.Status))
		td.AddField("Customer", j.CustomerName)
		td.AddField("Contractor", j.Contractor)
		td.AddField("Address", j.Address)
		td.AddField("Scheduled", formatTimePtr(j.ScheduledAt))
		td.AddField("Amount", formatMoney(j.Amount, ""))
		return td
	}}
}

// Disputes список споров
func Disputes(page portal.Page[portal.Dispute]) *View {
	return &View{data: page, table: func() *TableData {
		td := NewTableData("ID", "JOB", "STATUS", "REASON", "CREATED")
		td.Empty = "Споров не найдено"
		for _, d := range page.Items {
			td.AddRow(d.ID, d.JobID, withIcon(d.Status), d.Reason, formatTime(d.CreatedAt))
		}
		return td
	}}
}

// Payouts список выплат
func Payouts(page portal.Page[portal.Payout]) *View {
	return &View{data: page, table: func() *TableData {
		td := NewTableData("ID", "CONTRACTOR", "AMOUNT", "STATUS", "JOB", "CREATED")
		td.Empty = "Выплат не найдено"
		for _, p := range page.Items {
			td.AddRow(p.ID, p.Contractor, formatMoney(p.Amount, p.Currency), withIcon(p.Status), orDash(p.JobID), formatTime(p.CreatedAt))
		}
		return td
	}}
}

// Location одна точка геолокации
func Location(l *portal.Location) *View {
	return &View{data: l, table: func() *TableData {
		td := NewTableData("JOB", "LAT", "LON", "ACCURACY", "STATUS", "RECORDED")
		td.AddRow(l.JobID,
			fmt.Sprintf("%.6f", l.Latitude),
			fmt.Sprintf("%.6f", l.Longitude),
			fmt.Sprintf("%.0fm", l.Accuracy),
			orDash(l.Status),
			formatTime(l.RecordedAt))
		return td
	}}
}

// LocationLine однострочное представление позиции для потокового вывода
func LocationLine(l *portal.Location) string {
	return fmt.Sprintf("%s  job=%s  lat=%.6f lon=%.6f  ±%.0fm  %s",
		formatTime(l.RecordedAt), l.JobID, l.Latitude, l.Longitude, l.Accuracy, orDash(l.Status))
}

// Status состояние аутентификации
type Status struct {
	Authenticated bool          `json:"authenticated" yaml:"authenticated"`
	User          *session.User `json:"user,omitempty" yaml:"user,omitempty"`
	AccessExpires string        `json:"access_expires,omitempty" yaml:"access_expires,omitempty"`
	Dashboard     string        `json:"dashboard,omitempty" yaml:"dashboard,omitempty"`
	Store         string        `json:"store" yaml:"store"`
}

// AuthStatus карточка состояния аутентификации
func AuthStatus(s Status) *View {
	return &View{data: s, table: func() *TableData {
		td := NewTableData("FIELD", "VALUE")
		if !s.Authenticated {
			td.AddField("Status", "✗ не выполнен вход")
			td.AddField("Store", s.Store)
			return td
		}
		td.AddField("Status", "✓ выполнен вход")
		if s.User != nil {
			td.AddField("ID", s.User.ID)
			td.AddField("Email", s.User.Email)
			td.AddField("Name", s.User.Name)
			td.AddField("Role", s.User.Role.String())
		}
		td.AddField("Access expires", s.AccessExpires)
		td.AddField("Dashboard", s.Dashboard)
		td.AddField("Store", s.Store)
		return td
	}}
}

// User карточка пользователя
func User(u *session.User) *View {
	return &View{data: u, table: func() *TableData {
		td := NewTableData("FIELD", "VALUE")
		td.AddField("ID", u.ID)
		td.AddField("Email", u.Email)
		td.AddField("Name", u.Name)
		td.AddField("Role", u.Role.String())
		return td
	}}
}

type routeRow struct {
	Prefix string   `json:"prefix" yaml:"prefix"`
	Roles  []string `json:"roles" yaml:"roles"`
}

// Routes таблица защищенных разделов
func Routes(routes []guard.Route) *View {
	rows := make([]routeRow, 0, len(routes))
	for _, r := range routes {
		roles := make([]string, 0, len(r.Roles))
		for _, role := range r.Roles {
			roles = append(roles, role.String())
		}
		rows = append(rows, routeRow{Prefix: r.Prefix, Roles: roles})
	}
	return &View{data: rows, table: func() *TableData {
		td := NewTableData("PREFIX", "ROLES")
		for _, r := range rows {
			roles := strings.Join(r.Roles, ",")
			if roles == "" {
				roles = "any authenticated"
			}
			td.AddRow(r.Prefix, roles)
		}
		return td
	}}
}

// RouteCheck результат проверки доступа к пути
type RouteCheck struct {
	Path     string   `json:"path" yaml:"path"`
	Public   bool     `json:"public" yaml:"public"`
	Allowed  []string `json:"allowed,omitempty" yaml:"allowed,omitempty"`
	Decision string   `json:"decision" yaml:"decision"`
	Redirect string   `json:"redirect,omitempty" yaml:"redirect,omitempty"`
}

// Decision карточка решения guard
func Decision(c RouteCheck) *View {
	return &View{data: c, table: func() *TableData {
		td := NewTableData("FIELD", "VALUE")
		td.AddField("Path", c.Path)
		if c.Public {
			td.AddField("Allowed", "public")
		} else if len(c.Allowed) == 0 {
			td.AddField("Allowed", "any authenticated")
		} else {
			td.AddField("Allowed", strings.Join(c.Allowed, ","))
		}
		td.AddField("Decision", withIcon(c.Decision))
		td.AddField("Redirect", c.Redirect)
		return td
	}}
}

// Dashboard маршрут стартовой страницы роли
type Dashboard struct {
	Role  string `json:"role" yaml:"role"`
	Route string `json:"route" yaml:"route"`
}

// DashboardRoute карточка стартовой страницы
func DashboardRoute(d Dashboard) *View {
	return &View{data: d, table: func() *TableData {
		td := NewTableData("ROLE", "ROUTE")
		td.AddRow(orDash(d.Role), d.Route)
		return td
	}}
}

// Message простое текстовое сообщение
type Message struct {
	Message string `json:"message" yaml:"message"`
}

// Text сообщение об успешной операции
func Text(format string, args ...interface{}) *View {
	m := Message{Message: fmt.Sprintf(format, args...)}
	return &View{data: m, table: func() *TableData {
		td := NewTableData()
		td.AddRow(m.Message)
		return td
	}}
}

// ComplianceDocuments список документов на проверке
func ComplianceDocuments(page portal.Page[portal.ComplianceDocument]) *View {
	return &View{data: page, table: func() *TableData {
		td := NewTableData("ID", "CONTRACTOR", "KIND", "STATUS", "EXPIRES")
		td.Empty = "Документов не найдено"
		for _, d := range page.Items {
			td.AddRow(d.ID, d.Contractor, d.Kind, withIcon(d.Status), formatTimePtr(d.ExpiresAt))
		}
		return td
	}}
}

// Estimates список смет
func Estimates(page portal.Page[portal.Estimate]) *View {
	return &View{data: page, table: func() *TableData {
		td := NewTableData("ID", "JOB", "TOTAL", "STATUS")
		td.Empty = "Смет не найдено"
		for _, e := range page.Items {
			td.AddRow(e.ID, e.JobID, formatMoney(e.Total, ""), withIcon(e.Status))
		}
		return td
	}}
}

// Materials список материалов
func Materials(page portal.Page[portal.Material]) *View {
	return &View{data: page, table: func() *TableData {
		td := NewTableData("ID", "JOB", "NAME", "QTY", "STATUS")
		td.Empty = "Материалов не найдено"
		for _, m := range page.Items {
			qty := fmt.Sprintf("%g", m.Quantity)
			if m.Unit != "" {
				qty += " " + m.Unit
			}
			td.AddRow(m.ID, m.JobID, m.Name, qty, withIcon(m.Status))
		}
		return td
	}}
}

// Record карточка одного объекта с его статусом
func Record(kind, id, status string, data interface{}) *View {
	return &View{data: data, table: func() *TableData {
		td := NewTableData("FIELD", "VALUE")
		td.AddField("Type", kind)
		td.AddField("ID", id)
		td.AddField("Status", withIcon(status))
		return td
	}}
}

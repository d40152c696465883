package guard

import (
	"sort"
	"strings"

	"FieldOpsPortal/services/portal-cli/internal/session"
)

// Route защищенный раздел портала. Пустой Roles допускает любую аутентифицированную роль.
type Route struct {
	Prefix string
	Roles  []session.Role
}

// RouteTable сопоставляет путь с самым длинным подходящим префиксом
type RouteTable struct {
	routes []Route
}

// NewRouteTable создает таблицу маршрутов
func NewRouteTable(routes ...Route) *RouteTable {
	t := &RouteTable{routes: append([]Route(nil), routes...)}
	sort.SliceStable(t.routes, func(i, j int) bool {
		return len(t.routes[i].Prefix) > len(t.routes[j].Prefix)
	})
	return t
}

// DefaultRoutes разделы ролей портала и общий профиль
func DefaultRoutes() *RouteTable {
	return NewRouteTable(
		Route{Prefix: "/admin", Roles: []session.Role{session.RoleAdmin}},
		Route{Prefix: "/field-manager", Roles: []session.Role{session.RoleFieldManager}},
		Route{Prefix: "/contractor", Roles: []session.Role{session.RoleContractor}},
		Route{Prefix: "/investor", Roles: []session.Role{session.RoleInvestor}},
		Route{Prefix: "/customer", Roles: []session.Role{session.RoleCustomer}},
		Route{Prefix: "/profile"},
	)
}

// Match находит раздел для пути. false означает публичный путь.
func (t *RouteTable) Match(path string) (Route, bool) {
	for _, r := range t.routes {
		if path == r.Prefix || strings.HasPrefix(path, strings.TrimRight(r.Prefix, "/")+"/") {
			return r, true
		}
	}
	return Route{}, false
}

// Routes возвращает копию таблицы
func (t *RouteTable) Routes() []Route {
	return append([]Route(nil), t.routes...)
}

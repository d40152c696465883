package session

import "strings"

// Role категория пользователя портала, определяющая доступные разделы
type Role string

const (
	RoleAdmin        Role = "admin"
	RoleFieldManager Role = "field_manager"
	RoleContractor   Role = "contractor"
	RoleInvestor     Role = "investor"
	RoleCustomer     Role = "customer"

	// RoleUnknown никогда не проходит проверку доступа к защищенным разделам
	RoleUnknown Role = ""
)

// Roles возвращает все известные роли в фиксированном порядке
func Roles() []Role {
	return []Role{RoleAdmin, RoleFieldManager, RoleContractor, RoleInvestor, RoleCustomer}
}

// ParseRole нормализует написание роли: "field-manager", "FIELD_MANAGER" и
// "Field Manager" означают одно и то же. Неизвестные значения дают RoleUnknown.
func ParseRole(s string) Role {
	normalized := strings.ToLower(strings.TrimSpace(s))
	normalized = strings.NewReplacer("-", "_", " ", "_").Replace(normalized)

	role := Role(normalized)
	if role.Valid() {
		return role
	}
	return RoleUnknown
}

// Valid сообщает, входит ли роль в перечисление
func (r Role) Valid() bool {
	switch r {
	case RoleAdmin, RoleFieldManager, RoleContractor, RoleInvestor, RoleCustomer:
		return true
	}
	return false
}

func (r Role) String() string {
	if r == RoleUnknown {
		return "unknown"
	}
	return string(r)
}

// UnmarshalText позволяет декодировать роль из JSON в любом написании
func (r *Role) UnmarshalText(text []byte) error {
	*r = ParseRole(string(text))
	return nil
}

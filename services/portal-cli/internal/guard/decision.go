package guard

import "FieldOpsPortal/services/portal-cli/internal/session"

// Decision результат проверки доступа к маршруту
type Decision string

const (
	// DecisionLoading сессия еще восстанавливается, перенаправлять рано
	DecisionLoading Decision = "loading"
	// DecisionUnauthenticated пользователя нет, нужен вход
	DecisionUnauthenticated Decision = "unauthenticated"
	// DecisionUnauthorized роль пользователя не допущена к маршруту
	DecisionUnauthorized Decision = "unauthorized"
	// DecisionAuthorized содержимое можно показать
	DecisionAuthorized Decision = "authorized"
)

// LoginRoute маршрут входа, куда ведут оба отрицательных решения
const LoginRoute = "/login"

// Authorize принимает решение о доступе. Порядок проверок: loading,
// отсутствие пользователя, роль вне allowed. Пустой allowed означает
// любую аутентифицированную роль.
func Authorize(state session.State, allowed []session.Role) Decision {
	if state.Loading {
		return DecisionLoading
	}
	if state.User == nil {
		return DecisionUnauthenticated
	}
	if len(allowed) == 0 {
		return DecisionAuthorized
	}
	for _, role := range allowed {
		if role.Valid() && state.User.Role == role {
			return DecisionAuthorized
		}
	}
	return DecisionUnauthorized
}

// Redirect возвращает маршрут перенаправления для решения или пустую строку.
// Перенаправление заменяет текущую запись истории.
func (d Decision) Redirect() string {
	switch d {
	case DecisionUnauthenticated, DecisionUnauthorized:
		return LoginRoute
	}
	return ""
}

func (d Decision) String() string {
	return string(d)
}

// DashboardRouteFor возвращает стартовую страницу роли. Для неизвестной роли
// возвращается маршрут входа.
func DashboardRouteFor(role session.Role) string {
	switch role {
	case session.RoleAdmin:
		return "/admin/dashboard"
	case session.RoleFieldManager:
		return "/field-manager/dashboard"
	case session.RoleContractor:
		return "/contractor/dashboard"
	case session.RoleInvestor:
		return "/investor/dashboard"
	case session.RoleCustomer:
		return "/customer/dashboard"
	default:
		return LoginRoute
	}
}

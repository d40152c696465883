package apiclient

// ReasonSessionExpired причина перехода на вход после неудачного обновления токена
const ReasonSessionExpired = "session_expired"

// Navigator выполняет переход на страницу входа
type Navigator interface {
	RedirectToLogin(reason string)
}

// NavigatorFunc адаптер функции к Navigator
type NavigatorFunc func(reason string)

// RedirectToLogin вызывает f
func (f NavigatorFunc) RedirectToLogin(reason string) { f(reason) }

// NopNavigator ничего не делает
type NopNavigator struct{}

// RedirectToLogin ничего не делает
func (NopNavigator) RedirectToLogin(string) {}

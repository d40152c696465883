package cmd

import (
	"bufio"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/spf13/cobra"

	pkgerrors "FieldOpsPortal/pkg/errors"
	"FieldOpsPortal/pkg/validation"
	"FieldOpsPortal/services/portal-cli/internal/apiclient"
	"FieldOpsPortal/services/portal-cli/internal/guard"
	"FieldOpsPortal/services/portal-cli/internal/output"
	"FieldOpsPortal/services/portal-cli/internal/session"
)

func newAuthCmd(a *app) *cobra.Command {
	authCmd := &cobra.Command{
		Use:   "auth",
		Short: "Управление аутентификацией",
		Long: `Команды для управления сессией пользователя:
вход, регистрация, выход, проверка статуса и обновление токена.`,
	}

	loginCmd := &cobra.Command{
		Use:   "login [email]",
		Short: "Войти в систему",
		Long: `Выполняет вход по email и паролю и сохраняет токены
в хранилище сессии для последующих команд.`,
		Args: cobra.MaximumNArgs(1),
		RunE: runE(a, a.handleLogin),
	}
	loginCmd.Flags().StringP("email", "e", "", "email адрес")
	loginCmd.Flags().StringP("password", "p", "", "пароль (если не указан, читается из stdin)")

	registerCmd := &cobra.Command{
		Use:   "register",
		Short: "Зарегистрировать нового пользователя",
		Long: `Создает учетную запись. Регистрация не выполняет вход,
после нее нужно выполнить portal auth login.`,
		RunE: runE(a, a.handleRegister),
	}
	registerCmd.Flags().StringP("email", "e", "", "email адрес")
	registerCmd.Flags().StringP("password", "p", "", "пароль")
	registerCmd.Flags().StringP("name", "n", "", "имя пользователя")
	registerCmd.Flags().StringP("role", "r", "", "роль: "+strings.Join(roleNames(), ", "))

	logoutCmd := &cobra.Command{
		Use:   "logout",
		Short: "Выйти из системы",
		Long:  `Уведомляет сервер о выходе и удаляет сохраненные токены.`,
		RunE:  runE(a, a.handleLogout),
	}

	statusCmd := &cobra.Command{
		Use:   "status",
		Short: "Проверить статус аутентификации",
		RunE:  runE(a, a.handleAuthStatus),
	}

	refreshCmd := &cobra.Command{
		Use:   "refresh",
		Short: "Обновить access токен",
		RunE:  runE(a, a.handleRefresh),
	}

	whoamiCmd := &cobra.Command{
		Use:   "whoami",
		Short: "Показать профиль с сервера",
		RunE:  runE(a, a.handleWhoami),
	}

	authCmd.AddCommand(loginCmd, registerCmd, logoutCmd, statusCmd, refreshCmd, whoamiCmd)
	return authCmd
}

func (a *app) handleLogin(cmd *cobra.Command, args []string) error {
	email, _ := cmd.Flags().GetString("email")
	if len(args) > 0 {
		email = args[0]
	}
	password, _ := cmd.Flags().GetString("password")

	v := validation.NewValidator()
	if err := v.ValidateEmail(email); err != nil {
		return err
	}
	if password == "" {
		p, err := prompt(cmd, "Пароль: ")
		if err != nil {
			return err
		}
		password = p
	}
	if err := v.ValidateRequired(password, "password"); err != nil {
		return err
	}

	user, err := a.client.Login(cmd.Context(), apiclient.Credentials{Email: email, Password: password})
	if err != nil {
		return err
	}

	name := email
	dashboard := guard.LoginRoute
	if user != nil {
		if user.Name != "" {
			name = user.Name
		}
		dashboard = guard.DashboardRouteFor(user.Role)
	}
	return a.printer.Print(cmd.CommandPath(), output.Text("✓ Выполнен вход: %s, стартовая страница %s", name, dashboard))
}

func (a *app) handleRegister(cmd *cobra.Command, args []string) error {
	email, _ := cmd.Flags().GetString("email")
	password, _ := cmd.Flags().GetString("password")
	name, _ := cmd.Flags().GetString("name")
	roleFlag, _ := cmd.Flags().GetString("role")

	v := validation.NewValidator()
	if err := v.ValidateEmail(email); err != nil {
		return err
	}
	if password == "" {
		p, err := prompt(cmd, "Пароль: ")
		if err != nil {
			return err
		}
		password = p
	}
	if err := v.ValidateStringLength(password, "password", 8, 128); err != nil {
		return err
	}
	if err := v.ValidateStringLength(name, "name", 0, 150); err != nil {
		return err
	}

	var role string
	if roleFlag != "" {
		r := session.ParseRole(roleFlag)
		if !r.Valid() {
			return pkgerrors.New(pkgerrors.ErrValidation,
				fmt.Sprintf("role must be one of: %s", strings.Join(roleNames(), ", ")))
		}
		role = r.String()
	}

	if _, err := a.client.Register(cmd.Context(), apiclient.Registration{
		Email:    email,
		Password: password,
		Name:     name,
		Role:     role,
	}); err != nil {
		return err
	}
	return a.printer.Print(cmd.CommandPath(), output.Text("✓ Учетная запись %s создана, выполните portal auth login", email))
}

func (a *app) handleLogout(cmd *cobra.Command, args []string) error {
	if err := a.client.Logout(cmd.Context()); err != nil {
		return err
	}
	return a.printer.Print(cmd.CommandPath(), output.Text("✓ Выполнен выход"))
}

func (a *app) handleAuthStatus(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
	status := output.Status{Store: a.cfg.Session.Store}

	if err := a.restoreSession(ctx); err != nil && !pkgerrors.HasCode(err, pkgerrors.ErrSessionExpired) {
		return err
	}

	state := a.sessions.State(ctx)
	if state.User != nil {
		status.Authenticated = true
		status.User = state.User
		status.Dashboard = guard.DashboardRouteFor(state.User.Role)
		if exp, ok := session.AccessExpiry(a.sessions.AccessToken(ctx)); ok {
			status.AccessExpires = exp.Local().Format(time.RFC3339)
		}
	}
	return a.printer.Print(cmd.CommandPath(), output.AuthStatus(status))
}

func (a *app) handleRefresh(cmd *cobra.Command, args []string) error {
	token, err := a.client.RefreshToken(cmd.Context())
	if err != nil {
		return err
	}
	msg := "✓ Access токен обновлен"
	if exp, ok := session.AccessExpiry(token); ok {
		msg += ", действует до " + exp.Local().Format(time.RFC3339)
	}
	return a.printer.Print(cmd.CommandPath(), output.Text("%s", msg))
}

func (a *app) handleWhoami(cmd *cobra.Command, args []string) error {
	user, err := a.client.Me(cmd.Context())
	if err != nil {
		return err
	}
	return a.printer.Print(cmd.CommandPath(), output.User(user))
}

// prompt читает строку из stdin команды
func prompt(cmd *cobra.Command, label string) (string, error) {
	fmt.Fprint(cmd.ErrOrStderr(), label)
	line, err := bufio.NewReader(cmd.InOrStdin()).ReadString('\n')
	if err != nil && err != io.EOF {
		return "", fmt.Errorf("failed to read input: %w", err)
	}
	return strings.TrimSpace(line), nil
}

func roleNames() []string {
	roles := session.Roles()
	names := make([]string, 0, len(roles))
	for _, r := range roles {
		names = append(names, r.String())
	}
	return names
}

package cmd

import (
	"github.com/spf13/cobra"

	pkgerrors "FieldOpsPortal/pkg/errors"
	"FieldOpsPortal/services/portal-cli/internal/guard"
	"FieldOpsPortal/services/portal-cli/internal/output"
	"FieldOpsPortal/services/portal-cli/internal/session"
)

func newRouteCmd(a *app) *cobra.Command {
	routeCmd := &cobra.Command{
		Use:   "route",
		Short: "Стартовая страница и проверка доступа к разделам",
		Long: `Без подкоманды печатает стартовую страницу для роли текущего
пользователя или роли из --role. Неизвестная роль ведет на вход.`,
		Args: cobra.NoArgs,
		RunE: runE(a, a.handleDashboardRoute),
	}
	routeCmd.PersistentFlags().StringP("role", "r", "", "роль вместо роли текущего пользователя")

	listCmd := &cobra.Command{
		Use:   "list",
		Short: "Показать защищенные разделы",
		RunE: runE(a, func(cmd *cobra.Command, args []string) error {
			return a.printer.Print(cmd.CommandPath(), output.Routes(guard.DefaultRoutes().Routes()))
		}),
	}

	checkCmd := &cobra.Command{
		Use:   "check <path>",
		Short: "Показать решение guard для пути",
		Args:  cobra.ExactArgs(1),
		RunE:  runE(a, a.handleRouteCheck),
	}

	routeCmd.AddCommand(listCmd, checkCmd)
	return routeCmd
}

func (a *app) handleDashboardRoute(cmd *cobra.Command, args []string) error {
	state, err := a.routeState(cmd)
	if err != nil {
		return err
	}

	var role session.Role
	if state.User != nil {
		role = state.User.Role
	}
	return a.printer.Print(cmd.CommandPath(), output.DashboardRoute(output.Dashboard{
		Role:  role.String(),
		Route: guard.DashboardRouteFor(role),
	}))
}

func (a *app) handleRouteCheck(cmd *cobra.Command, args []string) error {
	path := args[0]
	if path == "" || path[0] != '/' {
		return pkgerrors.New(pkgerrors.ErrValidation, "path must start with /")
	}

	state, err := a.routeState(cmd)
	if err != nil {
		return err
	}

	check := output.RouteCheck{Path: path}
	route, ok := guard.DefaultRoutes().Match(path)
	if !ok {
		check.Public = true
		check.Decision = guard.DecisionAuthorized.String()
		return a.printer.Print(cmd.CommandPath(), output.Decision(check))
	}

	for _, r := range route.Roles {
		check.Allowed = append(check.Allowed, r.String())
	}
	decision, _ := guard.New(a.log, a.metrics).Decide(state, route.Roles)
	check.Decision = decision.String()
	check.Redirect = decision.Redirect()
	return a.printer.Print(cmd.CommandPath(), output.Decision(check))
}

// routeState возвращает состояние сессии или состояние пользователя с ролью из --role
func (a *app) routeState(cmd *cobra.Command) (session.State, error) {
	if roleFlag, _ := cmd.Flags().GetString("role"); roleFlag != "" {
		return session.State{User: &session.User{Role: session.ParseRole(roleFlag)}}, nil
	}

	ctx := cmd.Context()
	if err := a.restoreSession(ctx); err != nil && !pkgerrors.HasCode(err, pkgerrors.ErrSessionExpired) {
		return session.State{}, err
	}
	return a.sessions.State(ctx), nil
}

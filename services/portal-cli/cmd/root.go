package cmd

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	pkgerrors "FieldOpsPortal/pkg/errors"
	"FieldOpsPortal/pkg/logger"
	"FieldOpsPortal/services/portal-cli/internal/output"
)

// Version версия CLI, задается при сборке через -ldflags
var Version = "dev"

// Execute собирает дерево команд и выполняет его
func Execute(ctx context.Context, args []string) error {
	root := NewRootCmd()
	root.SetArgs(args)
	return root.ExecuteContext(ctx)
}

// NewRootCmd создает корневую команду portal со всеми подкомандами
func NewRootCmd() *cobra.Command {
	v := viper.New()
	a := &app{viper: v}

	root := &cobra.Command{
		Use:   "portal",
		Short: "FieldOps portal CLI",
		Long: `portal - клиент портала FieldOps для администраторов, менеджеров,
подрядчиков, инвесторов и заказчиков.

Управляет сессией, показывает заявки, споры и выплаты, отслеживает
бригаду на выезде и поднимает шлюз с проверкой ролей.`,
		Version:       Version,
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	flags := root.PersistentFlags()
	flags.StringP("config", "c", "", "файл конфигурации (по умолчанию $HOME/.fieldops/config.yaml)")
	flags.String("api", "", "базовый URL REST API")
	flags.StringP("output", "o", "", "формат вывода (table, json, yaml)")
	flags.Bool("debug", false, "отладочный режим")

	_ = v.BindPFlag("config", flags.Lookup("config"))
	_ = v.BindPFlag("api", flags.Lookup("api"))
	_ = v.BindPFlag("output", flags.Lookup("output"))
	_ = v.BindPFlag("debug", flags.Lookup("debug"))
	v.SetEnvPrefix("PORTAL")
	v.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	v.AutomaticEnv()

	root.AddCommand(
		newAuthCmd(a),
		newJobsCmd(a),
		newDisputesCmd(a),
		newPayoutsCmd(a),
		newComplianceCmd(a),
		newEstimatesCmd(a),
		newMaterialsCmd(a),
		newTrackCmd(a),
		newRouteCmd(a),
		newServeCmd(a),
		newConfigCmd(a),
		newVersionCmd(),
	)

	return root
}

// runE оборачивает обработчик команды: поднимает зависимости, выполняет
// команду и приводит ошибку к сообщению для пользователя
func runE(a *app, fn func(cmd *cobra.Command, args []string) error) func(*cobra.Command, []string) error {
	return func(cmd *cobra.Command, args []string) error {
		if err := a.init(cmd); err != nil {
			return err
		}
		defer a.close()
		return a.handleError(cmd, fn(cmd, args))
	}
}

// handleError единообразно обрабатывает ошибки команд
func (a *app) handleError(cmd *cobra.Command, err error) error {
	if err == nil {
		return nil
	}

	var appErr *pkgerrors.Error
	if !errors.As(err, &appErr) {
		appErr = pkgerrors.Wrap(err, pkgerrors.ErrInternal, "")
	}

	if a.log != nil {
		a.log.Debug("команда завершилась с ошибкой",
			logger.String("command", cmd.CommandPath()),
			logger.String("code", string(appErr.Code)),
			logger.Error(err))
	}

	reported := false
	if a.printer != nil {
		if handled, printErr := a.printer.PrintError(cmd.CommandPath(), appErr); handled && printErr == nil {
			reported = true
		}
	}

	msg := appErr.GetUserMessage()
	if appErr.Code == pkgerrors.ErrInternal && appErr.Message == "" && appErr.Cause != nil {
		msg = appErr.Cause.Error()
	}
	return &commandError{msg: fmt.Sprintf("%s: %s", cmd.Name(), msg), err: appErr, reported: reported}
}

// commandError ошибка команды с сообщением для пользователя
type commandError struct {
	msg      string
	err      error
	reported bool
}

func (e *commandError) Error() string { return e.msg }
func (e *commandError) Unwrap() error { return e.err }

// IsReported сообщает, что ошибка уже выведена в структурированном формате
func IsReported(err error) bool {
	var ce *commandError
	return errors.As(err, &ce) && ce.reported
}

// ExitCode возвращает код завершения для ошибки
func ExitCode(err error) int {
	switch pkgerrors.CodeOf(err) {
	case pkgerrors.ErrUnauthorized, pkgerrors.ErrSessionExpired:
		return 3
	case pkgerrors.ErrForbidden:
		return 4
	case pkgerrors.ErrNetwork:
		return 5
	}
	return 1
}

func newVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Показать версию",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Fprintf(cmd.OutOrStdout(), "FieldOps portal CLI %s\n", Version)
		},
	}
}

// formatFlag читает формат вывода из флага или конфигурации
func formatFlag(v *viper.Viper, fallback string) (output.FormatType, error) {
	if f := v.GetString("output"); f != "" {
		return output.ParseFormat(f)
	}
	return output.ParseFormat(fallback)
}

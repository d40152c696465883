package cmd

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"FieldOpsPortal/pkg/config"
	"FieldOpsPortal/services/portal-cli/internal/output"
)

func newConfigCmd(a *app) *cobra.Command {
	configCmd := &cobra.Command{
		Use:   "config",
		Short: "Управление конфигурацией",
	}

	initCmd := &cobra.Command{
		Use:   "init",
		Short: "Создать файл конфигурации с настройками по умолчанию",
		RunE:  a.handleConfigInit,
	}
	initCmd.Flags().StringP("path", "p", "", "путь к файлу (по умолчанию $HOME/.fieldops/config.yaml)")
	initCmd.Flags().BoolP("force", "f", false, "перезаписать существующий файл")

	showCmd := &cobra.Command{
		Use:   "show",
		Short: "Показать действующую конфигурацию",
		RunE:  a.handleConfigShow,
	}
	showCmd.Flags().BoolP("show-secrets", "x", false, "показать секретные данные")

	configCmd.AddCommand(initCmd, showCmd)
	return configCmd
}

func (a *app) handleConfigInit(cmd *cobra.Command, args []string) error {
	force, _ := cmd.Flags().GetBool("force")
	path, _ := cmd.Flags().GetString("path")
	if path == "" {
		path = a.viper.GetString("config")
	}
	if path == "" {
		p, err := config.DefaultPath()
		if err != nil {
			return err
		}
		path = p
	}

	if !force {
		if _, err := os.Stat(path); err == nil {
			return fmt.Errorf("файл конфигурации %s уже существует, используйте --force для перезаписи", path)
		}
	}

	if err := config.Default().Save(path); err != nil {
		return fmt.Errorf("ошибка сохранения конфигурации: %w", err)
	}
	fmt.Fprintf(cmd.OutOrStdout(), "✓ Конфигурация создана: %s\n", path)
	return nil
}

func (a *app) handleConfigShow(cmd *cobra.Command, args []string) error {
	if err := a.loadConfig(cmd); err != nil {
		return err
	}
	defer a.close()

	showSecrets, _ := cmd.Flags().GetBool("show-secrets")
	cfg := *a.cfg
	if !showSecrets {
		if cfg.Redis.Password != "" {
			cfg.Redis.Password = "********"
		}
		if cfg.Server.JWTSecret != "" {
			cfg.Server.JWTSecret = "********"
		}
	}

	if a.printer.Format() == output.FormatTable {
		// вложенная конфигурация в табличном формате печатается как YAML
		text, err := output.NewYAMLFormatter().Format(cfg)
		if err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "# %s\n%s", a.configPath, text)
		return nil
	}
	return a.printer.Print(cmd.CommandPath(), cfg)
}

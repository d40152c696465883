package cmd

import (
	"strings"

	"github.com/spf13/cobra"

	"FieldOpsPortal/services/portal-cli/internal/output"
	"FieldOpsPortal/services/portal-cli/internal/portal"
)

func newJobsCmd(a *app) *cobra.Command {
	jobsCmd := &cobra.Command{
		Use:   "jobs",
		Short: "Заявки на выполнение работ",
	}

	listCmd := &cobra.Command{
		Use:   "list",
		Short: "Показать список заявок",
		RunE: runE(a, func(cmd *cobra.Command, args []string) error {
			status, _ := cmd.Flags().GetString("status")
			page, err := a.services.Jobs.List(cmd.Context(), status)
			if err != nil {
				return err
			}
			return a.printer.Print(cmd.CommandPath(), output.Jobs(*page))
		}),
	}
	listCmd.Flags().StringP("status", "s", "", "фильтр по статусу: "+strings.Join(portal.JobStatuses, ", "))

	showCmd := &cobra.Command{
		Use:   "show <id>",
		Short: "Показать заявку",
		Args:  cobra.ExactArgs(1),
		RunE: runE(a, func(cmd *cobra.Command, args []string) error {
			job, err := a.services.Jobs.Get(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			return a.printer.Print(cmd.CommandPath(), output.Job(job))
		}),
	}

	statusCmd := &cobra.Command{
		Use:   "set-status <id> <status>",
		Short: "Изменить статус заявки",
		Args:  cobra.ExactArgs(2),
		RunE: runE(a, func(cmd *cobra.Command, args []string) error {
			job, err := a.services.Jobs.UpdateStatus(cmd.Context(), args[0], args[1])
			if err != nil {
				return err
			}
			return a.printer.Print(cmd.CommandPath(), output.Job(job))
		}),
	}

	jobsCmd.AddCommand(listCmd, showCmd, statusCmd)
	return jobsCmd
}

func newDisputesCmd(a *app) *cobra.Command {
	disputesCmd := &cobra.Command{
		Use:   "disputes",
		Short: "Споры по заявкам",
	}

	listCmd := &cobra.Command{
		Use:   "list",
		Short: "Показать список споров",
		RunE: runE(a, func(cmd *cobra.Command, args []string) error {
			page, err := a.services.Disputes.List(cmd.Context())
			if err != nil {
				return err
			}
			return a.printer.Print(cmd.CommandPath(), output.Disputes(*page))
		}),
	}

	resolveCmd := &cobra.Command{
		Use:   "resolve <id>",
		Short: "Закрыть спор с решением",
		Args:  cobra.ExactArgs(1),
		RunE: runE(a, func(cmd *cobra.Command, args []string) error {
			resolution, _ := cmd.Flags().GetString("resolution")
			d, err := a.services.Disputes.Resolve(cmd.Context(), args[0], resolution)
			if err != nil {
				return err
			}
			return a.printer.Print(cmd.CommandPath(), output.Record("dispute", d.ID, d.Status, d))
		}),
	}
	resolveCmd.Flags().StringP("resolution", "r", "", "текст решения")

	disputesCmd.AddCommand(listCmd, resolveCmd)
	return disputesCmd
}

func newPayoutsCmd(a *app) *cobra.Command {
	payoutsCmd := &cobra.Command{
		Use:   "payouts",
		Short: "Выплаты подрядчикам",
	}

	listCmd := &cobra.Command{
		Use:   "list",
		Short: "Показать список выплат",
		RunE: runE(a, func(cmd *cobra.Command, args []string) error {
			page, err := a.services.Payouts.List(cmd.Context())
			if err != nil {
				return err
			}
			return a.printer.Print(cmd.CommandPath(), output.Payouts(*page))
		}),
	}

	approveCmd := &cobra.Command{
		Use:   "approve <id>",
		Short: "Утвердить выплату",
		Args:  cobra.ExactArgs(1),
		RunE: runE(a, func(cmd *cobra.Command, args []string) error {
			p, err := a.services.Payouts.Approve(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			return a.printer.Print(cmd.CommandPath(), output.Record("payout", p.ID, p.Status, p))
		}),
	}

	payoutsCmd.AddCommand(listCmd, approveCmd)
	return payoutsCmd
}

func newComplianceCmd(a *app) *cobra.Command {
	complianceCmd := &cobra.Command{
		Use:   "compliance",
		Short: "Документы подрядчиков на проверке",
	}

	listCmd := &cobra.Command{
		Use:   "list",
		Short: "Показать документы",
		RunE: runE(a, func(cmd *cobra.Command, args []string) error {
			page, err := a.services.Compliance.List(cmd.Context())
			if err != nil {
				return err
			}
			return a.printer.Print(cmd.CommandPath(), output.ComplianceDocuments(*page))
		}),
	}

	reviewCmd := &cobra.Command{
		Use:   "review <id>",
		Short: "Принять или отклонить документ",
		Args:  cobra.ExactArgs(1),
		RunE: runE(a, func(cmd *cobra.Command, args []string) error {
			reject, _ := cmd.Flags().GetBool("reject")
			notes, _ := cmd.Flags().GetString("notes")
			d, err := a.services.Compliance.Review(cmd.Context(), args[0], !reject, notes)
			if err != nil {
				return err
			}
			return a.printer.Print(cmd.CommandPath(), output.Record("compliance document", d.ID, d.Status, d))
		}),
	}
	reviewCmd.Flags().Bool("reject", false, "отклонить документ")
	reviewCmd.Flags().String("notes", "", "комментарий проверяющего")

	complianceCmd.AddCommand(listCmd, reviewCmd)
	return complianceCmd
}

func newEstimatesCmd(a *app) *cobra.Command {
	estimatesCmd := &cobra.Command{
		Use:   "estimates",
		Short: "Сметы по заявкам",
	}

	listCmd := &cobra.Command{
		Use:   "list",
		Short: "Показать сметы",
		RunE: runE(a, func(cmd *cobra.Command, args []string) error {
			page, err := a.services.Estimates.List(cmd.Context())
			if err != nil {
				return err
			}
			return a.printer.Print(cmd.CommandPath(), output.Estimates(*page))
		}),
	}

	approveCmd := &cobra.Command{
		Use:   "approve <id>",
		Short: "Утвердить смету",
		Args:  cobra.ExactArgs(1),
		RunE: runE(a, func(cmd *cobra.Command, args []string) error {
			e, err := a.services.Estimates.Approve(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			return a.printer.Print(cmd.CommandPath(), output.Record("estimate", e.ID, e.Status, e))
		}),
	}

	estimatesCmd.AddCommand(listCmd, approveCmd)
	return estimatesCmd
}

func newMaterialsCmd(a *app) *cobra.Command {
	materialsCmd := &cobra.Command{
		Use:   "materials",
		Short: "Материалы по заявкам",
	}

	listCmd := &cobra.Command{
		Use:   "list",
		Short: "Показать материалы",
		RunE: runE(a, func(cmd *cobra.Command, args []string) error {
			jobID, _ := cmd.Flags().GetString("job")
			page, err := a.services.Materials.List(cmd.Context(), jobID)
			if err != nil {
				return err
			}
			return a.printer.Print(cmd.CommandPath(), output.Materials(*page))
		}),
	}
	listCmd.Flags().StringP("job", "j", "", "ID заявки")

	materialsCmd.AddCommand(listCmd)
	return materialsCmd
}

package cmd

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/spf13/cobra"

	pkgerrors "FieldOpsPortal/pkg/errors"
	"FieldOpsPortal/pkg/logger"
	"FieldOpsPortal/services/portal-cli/internal/guard"
	"FieldOpsPortal/services/portal-cli/internal/output"
	"FieldOpsPortal/services/portal-cli/internal/portal"
	"FieldOpsPortal/services/portal-cli/internal/session"
	"FieldOpsPortal/services/portal-cli/internal/tracking"
)

// trackingRoles роли, которым доступно отслеживание бригады
var trackingRoles = []session.Role{session.RoleAdmin, session.RoleFieldManager, session.RoleCustomer}

func newTrackCmd(a *app) *cobra.Command {
	trackCmd := &cobra.Command{
		Use:   "track <job-id>",
		Short: "Отслеживать геопозицию бригады по заявке",
		Long: `Опрашивает геопозицию бригады сразу и далее с фиксированным
интервалом, пока команда не будет прервана (Ctrl+C).
Доступ проверяется перед каждым выводом.`,
		Args: cobra.ExactArgs(1),
		RunE: runE(a, a.handleTrack),
	}
	trackCmd.Flags().Duration("interval", 0, "интервал опроса (по умолчанию tracking.interval)")
	trackCmd.Flags().Int("count", 0, "остановиться после N позиций, 0 без ограничения")
	return trackCmd
}

func (a *app) handleTrack(cmd *cobra.Command, args []string) error {
	jobID := args[0]
	interval, _ := cmd.Flags().GetDuration("interval")
	if interval <= 0 {
		d, err := a.cfg.TrackingInterval()
		if err != nil {
			return err
		}
		interval = d
	}
	count, _ := cmd.Flags().GetInt("count")

	ctx, cancel := context.WithCancel(cmd.Context())
	defer cancel()

	if err := a.restoreSession(ctx); err != nil {
		return err
	}

	g := guard.New(a.log, a.metrics)
	if decision, _ := g.Decide(a.sessions.State(ctx), trackingRoles); decision != guard.DecisionAuthorized {
		return deniedError(decision)
	}

	var (
		mu       sync.Mutex
		received int
		stopErr  error
	)
	stop := func(err error) {
		mu.Lock()
		if stopErr == nil {
			stopErr = err
		}
		mu.Unlock()
		cancel()
	}

	handler := func(u tracking.Update) {
		// Истекшая сессия уже удалена, guard увидел бы просто отсутствие входа
		if u.Err != nil && pkgerrors.HasCode(u.Err, pkgerrors.ErrSessionExpired) {
			stop(u.Err)
			return
		}

		if decision, changed := g.Decide(a.sessions.State(ctx), trackingRoles); changed && decision != guard.DecisionAuthorized {
			stop(deniedError(decision))
			return
		}

		if u.Err != nil {
			fmt.Fprintf(cmd.ErrOrStderr(), "✗ %s: %s\n", u.At.Local().Format(time.TimeOnly), userMessage(u.Err))
			return
		}

		if err := a.printLocation(cmd, u.Location); err != nil {
			a.log.Warn("не удалось вывести позицию", logger.Error(err))
		}

		mu.Lock()
		received++
		done := count > 0 && received >= count
		mu.Unlock()
		if done {
			cancel()
		}
	}

	fetch := func(ctx context.Context) (*portal.Location, error) {
		return a.services.Tracking.Location(ctx, jobID)
	}

	poller := tracking.NewPoller(fetch, interval, handler, a.log.With(logger.String("job_id", jobID)))
	if err := poller.Start(ctx); err != nil {
		return err
	}

	select {
	case <-ctx.Done():
	case <-poller.Done():
	}
	poller.Stop()

	mu.Lock()
	defer mu.Unlock()
	return stopErr
}

func (a *app) printLocation(cmd *cobra.Command, loc *portal.Location) error {
	if a.printer.Format() == output.FormatTable {
		_, err := fmt.Fprintln(cmd.OutOrStdout(), output.LocationLine(loc))
		return err
	}
	return a.printer.Print(cmd.CommandPath(), output.Location(loc))
}

// deniedError превращает отрицательное решение guard в ошибку команды
func deniedError(decision guard.Decision) error {
	switch decision {
	case guard.DecisionLoading:
		return pkgerrors.New(pkgerrors.ErrConflict, "Сессия еще восстанавливается, повторите попытку")
	case guard.DecisionUnauthenticated:
		return pkgerrors.New(pkgerrors.ErrUnauthorized, "Требуется вход: portal auth login")
	default:
		return pkgerrors.New(pkgerrors.ErrForbidden, "Раздел недоступен для вашей роли")
	}
}

func userMessage(err error) string {
	var e *pkgerrors.Error
	if errors.As(err, &e) {
		return e.GetUserMessage()
	}
	return err.Error()
}

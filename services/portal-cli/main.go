package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"FieldOpsPortal/services/portal-cli/cmd"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := cmd.Execute(ctx, os.Args[1:]); err != nil {
		if !cmd.IsReported(err) {
			fmt.Fprintf(os.Stderr, "Ошибка: %v\n", err)
		}
		stop()
		os.Exit(cmd.ExitCode(err))
	}
}

package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"declutter/internal/engine"
	"declutter/internal/services"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	cmd := newRootCommand()
	if err := cmd.ExecuteContext(ctx); err != nil {
		switch {
		case errors.Is(err, context.Canceled):
		case errors.Is(err, engine.ErrDeclined):
			fmt.Fprintln(os.Stderr, "Aborted; nothing was changed.")
		case services.IsRetryable(err):
			fmt.Fprintln(os.Stderr, err)
			fmt.Fprintln(os.Stderr, "The categorization service looks temporarily unavailable; try again, or use --offline.")
		default:
			fmt.Fprintln(os.Stderr, err)
		}
		os.Exit(1)
	}
}

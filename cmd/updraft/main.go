package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/updraft-io/updraft/internal/app/runtime"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	application, err := runtime.NewApplication(ctx)
	if err != nil {
		fmt.Fprintf(os.Stderr, "updraft: %v\n", err)
		os.Exit(1)
	}

	if err := application.Run(ctx); err != nil {
		application.Log.WithError(err).Error("startup failed")
		os.Exit(1)
	}
	application.Log.Info("updraft is running")

	<-ctx.Done()
	stop()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	if err := application.Shutdown(shutdownCtx); err != nil {
		application.Log.WithError(err).Error("shutdown failed")
		os.Exit(1)
	}
}

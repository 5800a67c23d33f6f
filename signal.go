package main

import (
	"context"
	"log/slog"
	"os/signal"
	"syscall"
)

// shutdownContext returns a context that cancels on SIGINT or SIGTERM so
// the gateway can drain in-flight proxy requests. Signal handling is
// restored after the first signal, so a second one kills the process
// outright if the drain hangs.
func shutdownContext(parent context.Context, logger *slog.Logger) context.Context {
	ctx, stop := signal.NotifyContext(parent, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		<-ctx.Done()
		stop()

		if parent.Err() == nil {
			logger.Info("shutdown signal received, draining in-flight requests (repeat signal forces exit)")
		}
	}()

	return ctx
}

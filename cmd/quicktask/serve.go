package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	gfshutdown "github.com/gelmium/graceful-shutdown"
	"github.com/spf13/cobra"
)

func runServe(cmd *cobra.Command, args []string) error {
	cfg, logger, err := loadConfig()
	if err != nil {
		return err
	}

	startCtx, cancel := context.WithTimeout(cmd.Context(), cfg.Server.ShutdownTimeout)
	a, err := buildApp(startCtx, cfg, logger)
	cancel()
	if err != nil {
		return err
	}

	server := &http.Server{
		Addr:              cfg.Server.Addr(),
		Handler:           a.router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	serverErr := make(chan error, 1)
	go func() {
		logger.Info("starting server", "addr", server.Addr, "store", cfg.Store.Driver)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serverErr <- err
		}
	}()

	// server first so in-flight requests finish before the store goes away
	wait := gfshutdown.GracefulShutdown(context.Background(), cfg.Server.ShutdownTimeout,
		map[string]gfshutdown.Operation{
			"quicktask": func(ctx context.Context) error {
				logger.Info("shutting down server")
				if err := server.Shutdown(ctx); err != nil {
					logger.Error("server shutdown failed", "error", err)
				}
				return a.Close(ctx)
			},
		},
	)

	select {
	case err := <-serverErr:
		_ = a.Close(context.Background())
		return fmt.Errorf("server failed: %w", err)
	case code := <-wait:
		logger.Info("server stopped", "exit_code", code)
		if code != 0 {
			return fmt.Errorf("shutdown finished with exit code %d", code)
		}
		return nil
	}
}

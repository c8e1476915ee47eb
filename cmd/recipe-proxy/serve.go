package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/Sternrassler/recipe-cache/pkg/logging"
	"github.com/spf13/cobra"
)

func newServeCmd(a *app) *cobra.Command {
	var addr string

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Start the HTTP proxy",
		Long: `Start the HTTP proxy.

Routes:
  GET /recipes/popular
  GET /recipes/healthy
  GET /recipes/category/{category}
  GET /recipes/{id}
  GET /recipes/search?q=
  GET /recipes/random
  GET /health, /ready, /metrics`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if addr != "" {
				a.cfg.Server.Address = addr
			}
			return a.serve(cmd.Context())
		},
	}

	cmd.Flags().StringVar(&addr, "addr", "", "listen address (overrides server.address)")

	return cmd
}

func (a *app) serve(ctx context.Context) error {
	logger := logging.NewLogger("server")

	ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	d, err := a.build(ctx)
	if err != nil {
		return err
	}
	defer d.Close()

	srv := &server{
		service:        d.service,
		store:          d.store,
		requestTimeout: a.cfg.Server.RequestTimeout,
		logger:         logger,
	}

	httpServer := &http.Server{
		Addr:         a.cfg.Server.Address,
		Handler:      srv.routes(),
		ReadTimeout:  a.cfg.Server.ReadTimeout,
		WriteTimeout: a.cfg.Server.WriteTimeout,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info().
			Str("addr", httpServer.Addr).
			Str("store", a.cfg.Store.Backend).
			Msg("Starting recipe proxy")
		errCh <- httpServer.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return fmt.Errorf("server failed: %w", err)
	case <-ctx.Done():
	}

	logger.Info().Msg("Shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), a.cfg.Server.ShutdownTimeout)
	defer cancel()

	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("shutdown: %w", err)
	}
	return nil
}

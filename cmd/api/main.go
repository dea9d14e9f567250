package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/cassiomorais/wallet/internal/bootstrap"
	"github.com/cassiomorais/wallet/internal/controller"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	app, err := bootstrap.New(ctx, controller.ServiceName, "wallet", false)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to bootstrap: %v\n", err)
		os.Exit(1)
	}
	defer app.Close()

	services, err := app.Services()
	if err != nil {
		app.Logger.Fatal().Err(err).Msg("Failed to build services")
	}

	checks := make([]controller.HealthCheck, 0, len(app.Probes))
	for _, p := range app.Probes {
		checks = append(checks, controller.HealthCheck{Name: p.Name, Check: p.Ping})
	}

	var metricsHandler http.Handler
	if app.Metrics != nil {
		metricsHandler = promhttp.HandlerFor(app.Registry, promhttp.HandlerOpts{Registry: app.Registry})
	}

	router := controller.NewRouter(controller.RouterDeps{
		AccountService: services.Accounts,
		AuthService:    services.Auth,
		LedgerService:  services.Ledger,
		HistoryService: services.History,
		HealthChecks:   checks,
		Metrics:        app.Metrics,
		MetricsHandler: metricsHandler,
		Server:         app.Config.Server,
	})

	addr := fmt.Sprintf(":%d", app.Config.Server.Port)
	srv := &http.Server{
		Addr:         addr,
		Handler:      router,
		ReadTimeout:  app.Config.Server.ReadTimeout,
		WriteTimeout: app.Config.Server.WriteTimeout,
		IdleTimeout:  app.Config.Server.IdleTimeout,
	}

	go func() {
		app.Logger.Info().Str("addr", addr).Msg("Starting HTTP server")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			app.Logger.Error().Err(err).Msg("HTTP server failed")
			stop()
		}
	}()

	<-ctx.Done()

	app.Logger.Info().Msg("Shutting down server...")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), app.Config.Server.ShutdownTimeout)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		app.Logger.Error().Err(err).Msg("Server forced to shutdown")
	}
	app.Logger.Info().Msg("Server exited")
}

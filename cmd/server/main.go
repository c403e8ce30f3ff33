// Package main is the entry point for the medcore API server.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"medcore/internal/app"
	"medcore/internal/domain/auth"
	"medcore/internal/infrastructure/config"
	v1 "medcore/internal/infrastructure/http/v1"
	"medcore/pkg/logger"
)

func main() {
	configPath := flag.String("config", "", "path to config.toml")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Printf("failed to load config: %v\n", err)
		os.Exit(1)
	}

	log, err := logger.New(cfg.LoggerConfig())
	if err != nil {
		fmt.Printf("failed to initialize logger: %v\n", err)
		os.Exit(1)
	}
	logger.SetDefault(log)

	ctx := context.Background()
	log.Infow("starting medcore server", "env", cfg.App.Env, "store", cfg.App.Store)

	backend, err := app.NewBackend(ctx, cfg)
	if err != nil {
		log.Fatalw("failed to initialize storage", "error", err)
	}
	defer backend.Close()

	services, err := app.NewServices(backend, cfg, nil)
	if err != nil {
		log.Fatalw("failed to initialize services", "error", err)
	}
	defer services.Close()

	routerCfg := v1.RouterConfig{
		AppName:  cfg.App.Name,
		Store:    cfg.App.Store,
		Logger:   log,
		Services: services,
		Checks:   backend.HealthChecks(),
		Debug:    cfg.Log.Development,
	}
	if cfg.Auth.TokenRequired {
		routerCfg.Tokens = auth.NewJWTService(cfg.JWTConfig())
	}
	if cfg.Auth.VerifyTenants && backend.Tenants != nil {
		routerCfg.Registry = backend.Tenants
	}
	if cfg.Idempotency.Enabled && backend.Idempotency != nil {
		routerCfg.Idempotency = backend.Idempotency
	}
	log.Infow("request pipeline configured",
		"tokens", cfg.Auth.TokenRequired,
		"verify_tenants", routerCfg.Registry != nil,
		"idempotency", routerCfg.Idempotency != nil,
	)

	server := &http.Server{
		Addr:         ":" + cfg.HTTP.Port,
		Handler:      v1.NewRouter(routerCfg),
		ReadTimeout:  cfg.HTTP.ReadTimeout,
		WriteTimeout: cfg.HTTP.WriteTimeout,
		IdleTimeout:  cfg.HTTP.IdleTimeout,
	}

	go func() {
		log.Infow("server starting", "port", cfg.HTTP.Port)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatalw("server failed", "error", err)
		}
	}()

	// --- Graceful shutdown ---
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info("shutting down server...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.HTTP.ShutdownTimeout)
	defer cancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Errorw("server forced to shutdown", "error", err)
	}

	log.Info("server stopped")
}

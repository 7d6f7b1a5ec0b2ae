package main

import (
	"context"
	"flag"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/dvloznov/finance-insights/internal/api/handlers"
	"github.com/dvloznov/finance-insights/internal/app"
	"github.com/dvloznov/finance-insights/internal/auth"
	"github.com/dvloznov/finance-insights/internal/config"
	"github.com/dvloznov/finance-insights/internal/logger"
)

func main() {
	// Parse command-line flags
	var (
		envFile = flag.String("env-file", ".env", "Optional .env file to load before reading the environment")
		port    = flag.String("port", "", "HTTP server port (overrides PORT)")
		backend = flag.String("store", "", "Transaction store: memory, bigquery or firestore (overrides STORE_BACKEND)")
		seed    = flag.String("seed", "", "JSON file or gs:// URI to seed the memory store (overrides SEED_TRANSACTIONS)")
	)
	flag.Parse()

	bootLog := logger.New()

	cfg, err := config.Load(*envFile)
	if err != nil {
		bootLog.Fatal().Err(err).Msg("Failed to load configuration")
	}
	if *port != "" {
		cfg.Port = *port
	}
	if *backend != "" {
		cfg.StoreBackend = *backend
	}
	if *seed != "" {
		cfg.SeedTransactions = *seed
	}
	if err := cfg.Validate(); err != nil {
		bootLog.Fatal().Err(err).Msg("Invalid configuration")
	}

	// Initialize logger
	log := logger.NewWithLevel(cfg.LogLevel)

	ctx := context.Background()

	txStore, closeStore, err := app.OpenStore(ctx, cfg, log)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to open transaction store")
	}
	defer closeStore()

	svc, err := app.NewService(ctx, cfg, txStore, log)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to create insights service")
	}

	var authn auth.Authenticator
	switch cfg.AuthMode {
	case config.AuthFirebase:
		authn, err = auth.NewFirebaseAuthenticator(ctx, cfg.ProjectID, cfg.FirebaseCredentials)
		if err != nil {
			log.Fatal().Err(err).Msg("Failed to initialize Firebase Auth")
		}
	default:
		log.Warn().Str("header", auth.DefaultUserHeader).Msg("Trusting user ID header - local development only")
		authn = auth.HeaderAuthenticator{Header: auth.DefaultUserHeader}
	}

	// Create HTTP server
	server := &http.Server{
		Addr:         ":" + cfg.Port,
		Handler:      handlers.NewRouter(svc, authn, cfg.CORSOrigins, log),
		ReadTimeout:  15 * time.Second,
		WriteTimeout: cfg.ProviderTimeout + 15*time.Second,
		IdleTimeout:  60 * time.Second,
	}

	// Start server in a goroutine
	go func() {
		log.Info().Str("port", cfg.Port).Str("store", cfg.StoreBackend).Str("auth", cfg.AuthMode).Msg("Starting API server")
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatal().Err(err).Msg("Failed to start server")
		}
	}()

	// Wait for interrupt signal
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info().Msg("Shutting down server...")

	// Graceful shutdown
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Fatal().Err(err).Msg("Server forced to shutdown")
	}

	log.Info().Msg("Server exited")
}

package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"github.com/optiohire/optiohire-api/internal/account"
	"github.com/optiohire/optiohire-api/internal/activity"
	"github.com/optiohire/optiohire-api/internal/auth"
	"github.com/optiohire/optiohire-api/internal/config"
	"github.com/optiohire/optiohire-api/internal/logging"
	"github.com/optiohire/optiohire-api/internal/mail"
	"github.com/optiohire/optiohire-api/internal/server"
	"github.com/optiohire/optiohire-api/internal/storage/sqldb"
	"github.com/optiohire/optiohire-api/internal/telemetry"
)

func main() {
	// Load .env file if it exists
	_ = godotenv.Load()

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	logger := logging.New(os.Stdout, cfg.Runtime)
	slog.SetDefault(logger)

	shutdownTracer, err := telemetry.InitTracer("optiohire-api", logger)
	if err != nil {
		log.Fatalf("Failed to initialize tracer: %v", err)
	}
	defer func() {
		if err := shutdownTracer(context.Background()); err != nil {
			logger.Error("failed to shutdown tracer", slog.String("error", err.Error()))
		}
	}()

	store, err := sqldb.New(sqldb.Config{
		Driver: cfg.Storage.Driver,
		DSN:    cfg.Storage.DSN,
	})
	if err != nil {
		log.Fatalf("Failed to open storage: %v", err)
	}
	defer store.Close()

	// Bootstrap the admin account; safe to run on every start.
	if cfg.Admin.Email != "" {
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		err := account.EnsureAdmin(ctx, store, cfg.Admin.Email, cfg.Admin.Password)
		cancel()
		if err != nil {
			log.Fatalf("Failed to ensure admin account: %v", err)
		}
		logger.Info("admin account ensured", slog.String("email", cfg.Admin.Email))
	}

	verifier := auth.NewVerifier(cfg.Auth.JWTSecret)

	var mailClient *mail.Client
	var sender mail.Sender
	if cfg.Resend.APIKey != "" {
		mailClient = mail.NewClient(cfg.Resend.APIKey, "OptioHire <no-reply@optiohire.com>")
		sender = mailClient
	} else {
		logger.Warn("resend api key not configured, email delivery disabled")
	}

	accounts := account.NewService(store, verifier, sender, logger, cfg.Auth.TokenTTL)
	recorder := activity.NewRecorder(store, logger, 0)

	validate := server.NewValidator()
	handlers := server.NewHandlers(accounts, mailClient, logger, validate)

	srv := server.New(server.Options{
		Config:   cfg,
		Logger:   logger,
		Verifier: verifier,
		Recorder: recorder,
		Handlers: handlers,
		Validate: validate,
	})

	httpServer := &http.Server{
		Addr:    fmt.Sprintf(":%d", srv.Port),
		Handler: srv.Router,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info("starting server", slog.Int("port", srv.Port))
		errCh <- httpServer.ListenAndServe()
	}()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)

	select {
	case err := <-errCh:
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatalf("Server failed: %v", err)
		}
	case sig := <-sigCh:
		logger.Info("shutdown signal received", slog.String("signal", sig.String()))
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		logger.Error("http shutdown error", slog.String("error", err.Error()))
	}

	// Drain queued activity writes before the store closes.
	if err := recorder.Close(shutdownCtx); err != nil {
		logger.Error("activity recorder drain error", slog.String("error", err.Error()))
	}

	logger.Info("shutdown complete")
}

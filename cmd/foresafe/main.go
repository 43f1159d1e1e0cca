package main

import (
	"context"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/foresafe/foresafe/internal/auth"
	"github.com/foresafe/foresafe/internal/config"
	"github.com/foresafe/foresafe/internal/database"
	"github.com/foresafe/foresafe/internal/logging"
	"github.com/foresafe/foresafe/internal/metrics"
	"github.com/foresafe/foresafe/internal/server"
)

func main() {
	if err := config.LoadDotEnv(); err != nil {
		slog.Error("load .env", "error", err)
		os.Exit(1)
	}

	cfg, err := config.Load()
	if err != nil {
		slog.Error("load config", "error", err)
		os.Exit(1)
	}

	logger := logging.Setup(cfg.LogLevel, cfg.LogFormat)

	if err := cfg.Validate(); err != nil {
		logger.Error("invalid config", "error", err)
		os.Exit(1)
	}

	db, err := database.Open(cfg.DBPath)
	if err != nil {
		logger.Error("failed to open database", "error", err)
		os.Exit(1)
	}
	defer db.Close()

	metrics.Init()

	srv, err := server.New(db, cfg, logger)
	if err != nil {
		logger.Error("init server", "error", err)
		os.Exit(1)
	}

	if cfg.AdminEmail != "" {
		created, err := auth.EnsureAdmin(srv.AdminStore(), cfg.AdminEmail, cfg.AdminPassword)
		if err != nil {
			logger.Error("bootstrap admin", "error", err)
			os.Exit(1)
		}
		if created {
			logger.Info("created admin account", "email", cfg.AdminEmail)
		}
	}

	httpServer := &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           srv.Router(),
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       15 * time.Second,
		// QR archives stream for a while on large inventories.
		WriteTimeout: 5 * time.Minute,
		IdleTimeout:  120 * time.Second,
	}

	// Background cleanup goroutine
	cleanupCtx, cleanupCancel := context.WithCancel(context.Background())
	defer cleanupCancel()
	go func() {
		ticker := time.NewTicker(1 * time.Hour)
		defer ticker.Stop()
		for {
			select {
			case <-ticker.C:
				if n, err := srv.SessionStore().DeleteExpired(); err != nil {
					logger.Error("cleanup expired sessions", "error", err)
				} else if n > 0 {
					logger.Info("cleaned up expired sessions", "count", n)
				}
			case <-cleanupCtx.Done():
				return
			}
		}
	}()

	go func() {
		logger.Info("foresafe starting", "addr", ":"+cfg.Port, "env", cfg.Environment, "public_url", cfg.PublicURL)
		if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Error("server error", "error", err)
			os.Exit(1)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info("shutting down")
	cleanupCancel()
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := httpServer.Shutdown(ctx); err != nil {
		logger.Error("shutdown error", "error", err)
		os.Exit(1)
	}
}

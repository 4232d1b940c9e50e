package main

import (
	"context"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"finance-tracker/internal/auth"
	"finance-tracker/internal/config"
	"finance-tracker/internal/handlers"
	"finance-tracker/internal/storage"

	"github.com/joho/godotenv"
)

func main() {
	logger := slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{
		Level: slog.LevelInfo,
	}))
	slog.SetDefault(logger)

	// .env is optional; deployments set the environment directly.
	_ = godotenv.Load()

	cfg := config.Load()
	if err := cfg.Validate(); err != nil {
		slog.Error("Invalid configuration", "error", err)
		os.Exit(1)
	}

	db, err := storage.NewDB(cfg.DBPath)
	if err != nil {
		slog.Error("Failed to open database", "error", err, "path", cfg.DBPath)
		os.Exit(1)
	}
	defer db.Close()

	if err := seedAdminUser(context.Background(), db, cfg); err != nil {
		slog.Error("Failed to seed admin user", "error", err, "username", cfg.AdminUser)
		os.Exit(1)
	}

	tokens := auth.NewTokenManager(cfg.SessionSecret, cfg.SessionDuration)
	h := handlers.NewHandlers(db, tokens, cfg.TemplateDir, cfg.SecureCookie, cfg.SessionDuration)

	srv := &http.Server{
		Addr:           ":" + cfg.Port,
		Handler:        handlers.LogRequests(h.Router(cfg.StaticDir)),
		ReadTimeout:    10 * time.Second,
		WriteTimeout:   10 * time.Second,
		IdleTimeout:    60 * time.Second,
		MaxHeaderBytes: 1 << 16,
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	go func() {
		sigChan := make(chan os.Signal, 1)
		signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
		sig := <-sigChan
		slog.Info("Shutdown signal received", "signal", sig.String())

		shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer shutdownCancel()

		if err := srv.Shutdown(shutdownCtx); err != nil {
			slog.Error("Server shutdown error", "error", err)
		}
		cancel()
	}()

	slog.Info("Starting finance-tracker server", "port", cfg.Port, "db", cfg.DBPath)
	if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		slog.Error("Server error", "error", err, "port", cfg.Port)
		os.Exit(1)
	}

	<-ctx.Done()
	slog.Info("Server stopped gracefully")
}

// seedAdminUser provisions the configured admin account when it does not
// exist yet. Without ADMIN_USER/ADMIN_PASSWORD nothing happens; adduser is
// the normal provisioning path.
func seedAdminUser(ctx context.Context, db *storage.DB, cfg *config.Config) error {
	if cfg.AdminUser == "" || cfg.AdminPassword == "" {
		return nil
	}

	if _, err := db.GetUserByUsername(ctx, cfg.AdminUser); err == nil {
		return nil
	}

	hash, err := auth.HashPassword(cfg.AdminPassword)
	if err != nil {
		return err
	}

	user, err := db.CreateUser(ctx, cfg.AdminUser, hash)
	if err != nil {
		return err
	}

	slog.Info("Seeded admin user", "username", user.Username, "id", user.ID)
	return nil
}

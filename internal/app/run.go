package app

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"shipping-gateway/internal/common/logging"
	"shipping-gateway/internal/config"
)

// Run loads configuration, assembles the application, serves until a
// termination signal arrives, then shuts down gracefully.
func Run() error {
	_ = godotenv.Load()

	logging.InitGlobalLogger()
	defer logging.MustSync()

	cfg := config.Load()
	if err := cfg.Validate(); err != nil {
		logging.Error("Configuration validation failed", err)
		return err
	}

	ctx := context.Background()
	application, err := New(ctx, cfg)
	if err != nil {
		logging.Error("Failed to initialize application", err)
		return err
	}
	defer application.Close()

	if err := application.Start(); err != nil {
		logging.Error("Failed to start server", err)
		return err
	}
	logging.Info("Shipping gateway started", logging.String("port", cfg.Port))

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logging.Info("Shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	if err := application.Server.Shutdown(shutdownCtx); err != nil {
		logging.Error("Server shutdown failed", err)
		return err
	}
	return nil
}

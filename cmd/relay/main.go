package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/goalnest/goalnest/internal/config"
	"github.com/goalnest/goalnest/internal/logger"
	"github.com/goalnest/goalnest/internal/middleware"
	"github.com/goalnest/goalnest/internal/relay"
)

func main() {
	cfg := config.LoadRelay()
	logger.Init("goalnest-relay", cfg.IsDevelopment(), cfg.SentryDSN)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	limiter := middleware.NewRateLimiter(120, time.Minute)
	defer limiter.Close()

	server := relay.NewServer(relay.NewStore(cfg.RelayMessageTTL), relay.NewTokens(cfg.RelaySecret, cfg.InviteExpiry), limiter)
	srv := &http.Server{
		Addr:              ":" + cfg.RelayPort,
		Handler:           server.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		err := srv.Shutdown(shutdownCtx)
		if err != nil {
			slog.Error("relay shutdown failed", "error", err)
		}
	}()

	slog.Info("relay starting", "port", cfg.RelayPort, "env", cfg.AppEnv)
	err := srv.ListenAndServe()
	if err != nil && !errors.Is(err, http.ErrServerClosed) {
		slog.Error("relay failed", "error", err)
		os.Exit(1)
	}
}

/*
Package main is the entry point for the Group Navigation server.

It loads configuration, initializes logging, opens the profile store, wires the live
presence service and its location writer, and runs everything under a supervisor tree
until SIGINT or SIGTERM.
*/
package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"golang.org/x/time/rate"

	"groupnav/internal/app/presence"
	"groupnav/internal/app/profile"
	"groupnav/internal/app/storage"
	"groupnav/internal/app/user"
	"groupnav/internal/configs"
	"groupnav/internal/handler"
	"groupnav/internal/pkg/auth/jwt"
	"groupnav/internal/pkg/limiter"
	"groupnav/internal/pkg/logx"
	"groupnav/internal/supervisor"
)

func main() {
	cfg, err := configs.LoadConfig()
	if err != nil {
		fmt.Fprintf(os.Stderr, "FATAL: Failed to load configuration: %v\n", err)
		os.Exit(1)
	}

	logx.InitGlobalLogger(logx.Options{Development: cfg.IsDevelopment(), Level: cfg.LogLevel})
	logx.Logger().Info().
		Str("environment", cfg.Environment).
		Int("port", cfg.Port).
		Strs("allowed_origins", cfg.AllowedOrigins).
		Int("send_buffer", cfg.Presence.SendBuffer).
		Dur("persist_timeout", cfg.Presence.PersistTimeout).
		Bool("storage_enabled", cfg.StorageEnabled()).
		Msg("Configuration loaded successfully")

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	store, err := profile.Open(ctx, cfg.DatabaseDSN)
	if err != nil {
		logx.Fatal(err, "Failed to open profile store")
	}
	defer func() {
		if err := store.Close(); err != nil {
			logx.Error(err, "Failed to close profile store")
		}
	}()

	var objects storage.StorageService
	if cfg.StorageEnabled() {
		if objects, err = storage.NewStorageService(ctx, storage.ServiceConfig{
			S3BucketName:      cfg.S3BucketName,
			S3Endpoint:        cfg.S3Endpoint,
			S3AccessKeyID:     cfg.S3AccessKeyID,
			S3SecretAccessKey: cfg.S3SecretAccessKey,
		}); err != nil {
			logx.Fatal(err, "Failed to initialize object storage")
		}
	}

	writer := presence.NewLocationWriter(store, presence.WriterOptions{
		Timeout:         cfg.Presence.PersistTimeout,
		BreakerFailures: cfg.Presence.BreakerFailures,
		BreakerCooldown: cfg.Presence.BreakerCooldown,
	})
	presenceService := presence.NewService(presence.Options{
		SendBuffer: cfg.Presence.SendBuffer,
		Sink:       writer,
	})
	socketLimiter := limiter.NewIPRateLimiter("socket", rate.Limit(cfg.RateLimit.SocketRate), cfg.RateLimit.SocketBurst)

	router := handler.Router(&handler.AppDeps{
		Config:        cfg,
		Store:         store,
		Gate:          user.NewGate(store),
		Tokens:        jwt.NewIssuer(cfg.JWTSecret, jwt.UserIdentityExpiration),
		Presence:      presenceService,
		Storage:       objects,
		SocketLimiter: socketLimiter,
	})

	serverAddr := fmt.Sprintf(":%d", cfg.Port)
	server := &http.Server{
		Addr:         serverAddr,
		Handler:      router,
		ReadTimeout:  5 * time.Second,
		WriteTimeout: 10 * time.Second,
		IdleTimeout:  120 * time.Second,
	}

	tree := supervisor.NewTree(supervisor.DefaultTreeConfig())
	tree.AddPresenceService(writer)
	tree.AddPresenceService(presenceService)
	tree.AddAPIService(socketLimiter)
	tree.AddAPIService(supervisor.NewHTTPServerService(server, 5*time.Second))

	logx.Info(fmt.Sprintf("Group Navigation server starting on http://localhost%s", serverAddr))

	if err := tree.Serve(ctx); err != nil && ctx.Err() == nil {
		logx.Error(err, "Supervisor tree stopped unexpectedly")
	}

	if report, err := tree.UnstoppedServiceReport(); err == nil && len(report) > 0 {
		logx.Warn("Services did not stop within the shutdown timeout.", "count", len(report))
	}

	logx.Info("Server gracefully stopped.")
}

package main

import (
	"context"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/voxhome/assist-service/internal/catalog"
	"github.com/voxhome/assist-service/internal/config"
	"github.com/voxhome/assist-service/internal/conversation"
	"github.com/voxhome/assist-service/internal/devices"
	"github.com/voxhome/assist-service/internal/dispatch"
	"github.com/voxhome/assist-service/internal/events"
	"github.com/voxhome/assist-service/internal/httpapi"
	"github.com/voxhome/assist-service/internal/llm"
	"github.com/voxhome/assist-service/internal/registry"
	"github.com/voxhome/assist-service/internal/repository"
	"github.com/voxhome/assist-service/internal/resolve"
	"github.com/voxhome/assist-service/internal/session"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		slog.Error("failed to load config", "error", err)
		os.Exit(1)
	}
	setupLogging(cfg.LogLevel)

	// Database
	db, err := repository.NewPostgresDB(cfg.DatabaseURL())
	if err != nil {
		slog.Error("failed to connect to database", "error", err)
		os.Exit(1)
	}
	defer db.Close()

	if err := db.Migrate(); err != nil {
		slog.Error("failed to run migrations", "error", err)
		os.Exit(1)
	}
	store := repository.NewStore(db)

	// Model collaborator
	llmClient := llm.NewClient(cfg.WorkersBaseURL, cfg.WorkersAccountID, cfg.WorkersAPIToken, cfg.WorkersModel, cfg.MaxTokens)

	// Tool catalog and dispatch pipeline
	cat := catalog.New(enabledTools(cfg.EnabledTools))
	registryClient := registry.NewClient(cfg.RegistryURL)
	deviceClient := devices.NewClient(cfg.DeviceControlURL)
	resolver := resolve.New(registryClient)
	dispatcher := dispatch.New(cat, resolver, deviceClient, registryClient)

	// Turn event publishing; optional.
	var publisher *events.Publisher
	if cfg.MQTTBroker != "" {
		publisher, err = events.Connect(cfg.MQTTBroker)
		if err != nil {
			slog.Warn("mqtt unavailable, turn events disabled", "error", err)
			publisher = nil
		}
	}
	defer publisher.Close()

	loop := conversation.NewController(llmClient, dispatcher, cat, cfg.MaxToolRounds, cfg.RoundTimeout, publisher)

	// Session memory; optional.
	sessions := session.New(cfg.RedisAddr, cfg.RedisPassword)
	defer sessions.Close()

	handler := httpapi.NewHandler(cfg, llmClient, cat, loop, store, sessions)
	router := httpapi.NewRouter(handler, cfg)

	server := &http.Server{
		Addr:         ":" + cfg.Port,
		Handler:      router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 120 * time.Second, // turns can span several model rounds
		IdleTimeout:  120 * time.Second,
	}

	go func() {
		slog.Info("assist service starting", "port", cfg.Port, "model", cfg.WorkersModel, "tools", len(cat.List()), "max_rounds", cfg.MaxToolRounds)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			slog.Error("server error", "error", err)
			os.Exit(1)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	slog.Info("shutting down server")

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := server.Shutdown(ctx); err != nil {
		slog.Error("server forced to shutdown", "error", err)
		os.Exit(1)
	}

	slog.Info("server exited")
}

func setupLogging(level string) {
	var lvl slog.Level
	switch strings.ToLower(level) {
	case "debug":
		lvl = slog.LevelDebug
	case "warn":
		lvl = slog.LevelWarn
	case "error":
		lvl = slog.LevelError
	default:
		lvl = slog.LevelInfo
	}
	slog.SetDefault(slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: lvl})))
}

// enabledTools parses the comma-separated tool allowlist; empty means the
// full catalog.
func enabledTools(v string) []string {
	v = strings.TrimSpace(v)
	if v == "" {
		return nil
	}
	parts := strings.Split(v, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}

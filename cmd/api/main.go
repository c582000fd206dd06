package main

import (
	"context"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/dvloznov/finance-alerts/internal/api/handlers"
	"github.com/dvloznov/finance-alerts/internal/api/middleware"
	"github.com/dvloznov/finance-alerts/internal/clock"
	"github.com/dvloznov/finance-alerts/internal/config"
	infraBQ "github.com/dvloznov/finance-alerts/internal/infra/bigquery"
	"github.com/dvloznov/finance-alerts/internal/infra/sqlitestore"
	"github.com/dvloznov/finance-alerts/internal/job"
	"github.com/dvloznov/finance-alerts/internal/logger"
	"github.com/dvloznov/finance-alerts/internal/repository"
)

func main() {
	// Parse command-line flags
	var (
		port       = flag.String("port", "", "HTTP server port (overrides config)")
		configPath = flag.String("config", "", "Path to TOML config file (or set ALERTS_CONFIG env)")
	)
	flag.Parse()

	// Initialize logger
	log := logger.New()

	cfg, err := config.Load(*configPath)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to load configuration")
	}
	if *port != "" {
		cfg.Server.Port = *port
	}

	ctx := context.Background()
	clk := clock.System{}

	store, err := openStore(ctx, cfg.Store)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to open store")
	}
	defer store.Close()

	// Build the alert job orchestrator
	orchestrator := job.New(store, cfg.Engine, clk, log)
	if cfg.Archive.Bucket != "" {
		orchestrator = orchestrator.WithArchiver(job.NewGCSArchiver(cfg.Archive.Bucket))
		log.Info().Str("bucket", cfg.Archive.Bucket).Msg("Run report archival enabled")
	}

	if cfg.Server.TriggerSecret == "" {
		log.Warn().Msg("No trigger secret configured - job trigger endpoint is unauthenticated")
	}

	// Initialize handlers
	alertJobHandler := handlers.NewAlertJobHandler(orchestrator, cfg.Server.TriggerSecret, clk, log)
	notificationsHandler := handlers.NewNotificationsHandler(store, clk, log)

	// Create router
	mux := http.NewServeMux()

	// Job trigger endpoint
	mux.HandleFunc("/api/jobs/alerts", func(w http.ResponseWriter, r *http.Request) {
		switch r.Method {
		case http.MethodGet:
			alertJobHandler.Usage(w, r)
		case http.MethodPost:
			alertJobHandler.Trigger(w, r)
		default:
			middleware.WriteError(w, http.StatusMethodNotAllowed, "Method not allowed")
		}
	})

	// Notification endpoints require a resolved user identity
	mux.Handle("/api/notifications", middleware.Identity(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.Method {
		case http.MethodGet:
			notificationsHandler.List(w, r)
		case http.MethodDelete:
			notificationsHandler.DeleteAll(w, r)
		default:
			middleware.WriteError(w, http.StatusMethodNotAllowed, "Method not allowed")
		}
	})))

	mux.Handle("/api/notifications/mark-all-read", middleware.Identity(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			middleware.WriteError(w, http.StatusMethodNotAllowed, "Method not allowed")
			return
		}
		notificationsHandler.MarkAllRead(w, r)
	})))

	mux.Handle("/api/notifications/", middleware.Identity(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		// Extract notification ID from path
		notificationID := strings.TrimPrefix(r.URL.Path, "/api/notifications/")
		if notificationID == "" {
			middleware.WriteError(w, http.StatusBadRequest, "Notification ID is required")
			return
		}
		switch r.Method {
		case http.MethodPatch:
			notificationsHandler.Update(w, r, notificationID)
		case http.MethodDelete:
			notificationsHandler.Delete(w, r, notificationID)
		default:
			middleware.WriteError(w, http.StatusMethodNotAllowed, "Method not allowed")
		}
	})))

	// Health check endpoint
	mux.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
		middleware.WriteJSON(w, http.StatusOK, map[string]string{
			"status": "healthy",
			"time":   clk.Now().Format(time.RFC3339),
		})
	})

	// Apply middleware
	handler := middleware.Recovery(log)(
		middleware.Logger(log)(
			middleware.RequestID(
				middleware.CORS(mux),
			),
		),
	)

	// Create HTTP server
	server := &http.Server{
		Addr:         ":" + cfg.Server.Port,
		Handler:      handler,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	// Start server in a goroutine
	go func() {
		log.Info().Str("port", cfg.Server.Port).Msg("Starting alerts API server")
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

func openStore(ctx context.Context, cfg config.StoreConfig) (repository.Store, error) {
	switch cfg.Backend {
	case config.BackendBigQuery:
		return infraBQ.NewRepository(ctx, cfg.ProjectID, cfg.DatasetID)
	case config.BackendSQLite:
		return sqlitestore.Open(cfg.SQLitePath)
	default:
		return nil, fmt.Errorf("openStore: unknown backend %q", cfg.Backend)
	}
}

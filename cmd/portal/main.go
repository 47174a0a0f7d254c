package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/toxitrace/toxitrace/internal/apiclient"
	"github.com/toxitrace/toxitrace/internal/config"
	"github.com/toxitrace/toxitrace/internal/logger"
	"github.com/toxitrace/toxitrace/internal/navigation"
	"github.com/toxitrace/toxitrace/internal/portal"
	"github.com/toxitrace/toxitrace/internal/session"
	"github.com/toxitrace/toxitrace/internal/storage"
)

var version = "dev" // Will be set during build with -ldflags

func main() {
	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load configuration: %v\n", err)
		os.Exit(1)
	}

	// Initialize logger
	log := logger.Init(os.Stdout, cfg.Logging.LevelOr("info"), cfg.Logging.FormatOr("json"))

	st, err := storage.Open(cfg.StorageOptions())
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to open session storage")
	}

	client := apiclient.New(cfg.API.URL,
		apiclient.WithHTTPClient(&http.Client{Timeout: cfg.API.Timeout}),
		apiclient.WithLogger(log),
	)

	history := navigation.NewHistory()
	store := session.New(st, client,
		session.WithNavigator(history),
		session.WithLogger(log),
	)
	client.SetTokenSource(store)
	client.OnUnauthorized(store.Expire)

	srv, err := portal.New(cfg.Portal, store, history, client, log, version)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to create portal server")
	}

	// Guarded routes answer 503 until the stored session is restored
	store.Hydrate()

	log.Info().
		Str("version", version).
		Str("api_url", cfg.API.URL).
		Str("storage", cfg.Storage.Backend).
		Msg("Starting ToxiTrace portal...")

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// Start HTTP server (this blocks)
	if err := srv.Start(ctx); err != nil {
		log.Fatal().Err(err).Msg("Portal failed to start")
	}
}

package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog"

	"github.com/mkarlis/folio/internal/clients/finnhub"
	"github.com/mkarlis/folio/internal/clients/yahoo"
	"github.com/mkarlis/folio/internal/config"
	"github.com/mkarlis/folio/internal/database"
	"github.com/mkarlis/folio/internal/modules/holdings"
	"github.com/mkarlis/folio/internal/modules/ledger"
	"github.com/mkarlis/folio/internal/modules/marketdata"
	"github.com/mkarlis/folio/internal/modules/marketdata/jobs"
	"github.com/mkarlis/folio/internal/modules/stats"
	"github.com/mkarlis/folio/internal/modules/valuation"
	"github.com/mkarlis/folio/internal/scheduler"
	"github.com/mkarlis/folio/internal/server"
	"github.com/mkarlis/folio/pkg/logger"
)

func main() {
	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		boot := logger.New(logger.Config{Level: "info"})
		boot.Fatal().Err(err).Msg("Failed to load configuration")
	}

	// Initialize logger
	log := logger.New(logger.Config{
		Level:  cfg.LogLevel,
		Pretty: cfg.DevMode,
	})

	log.Info().Msg("Starting folio")

	// Initialize database
	db, err := database.New(cfg.DatabasePath)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to initialize database")
	}
	defer db.Close()

	// Run migrations
	if err := db.Migrate(); err != nil {
		log.Fatal().Err(err).Msg("Failed to run migrations")
	}

	// Stats thresholds: a malformed file is fatal at startup
	thresholds, err := stats.LoadThresholds(cfg.ThresholdsPath, log)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to load stats thresholds")
	}

	// Repositories
	ledgerRepo := ledger.NewRepository(db.Conn(), log)
	priceRepo := marketdata.NewRepository(db.Conn(), log)

	// Price providers, tried in configured order
	providers := buildProviders(cfg, log)
	resolver := marketdata.NewResolver(priceRepo, providers, cfg.ProviderRatePerMin, cfg.ProviderTimeout, log)

	// Services
	holdingsSvc := holdings.NewService(ledgerRepo, log)
	valuationSvc := valuation.NewService(holdingsSvc, resolver, log)
	statsSvc := stats.NewService(valuationSvc, thresholds, log)

	// Background jobs
	refreshJob := jobs.NewRefreshJob(ledgerRepo, priceRepo, resolver, cfg.RefreshConcurrency, log)

	sched := scheduler.New(log)
	if err := sched.AddJob(cfg.RefreshSchedule, refreshJob); err != nil {
		log.Fatal().Err(err).Msg("Failed to register price refresh job")
	}
	sched.Start()
	defer sched.Stop()

	// HTTP server
	srv := server.New(server.Config{
		Port:       cfg.Port,
		Log:        log,
		DevMode:    cfg.DevMode,
		Ledger:     ledger.NewHandler(ledgerRepo, log),
		Holdings:   holdings.NewHandler(holdingsSvc, log),
		MarketData: marketdata.NewHandler(priceRepo, resolver, refreshJob, log),
		Valuation:  valuation.NewHandler(valuationSvc, log),
		Stats:      stats.NewHandler(statsSvc, log),
		System:     server.NewSystemHandlers(log, db),
	})

	go func() {
		if err := srv.Start(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatal().Err(err).Msg("Failed to start server")
		}
	}()

	log.Info().Int("port", cfg.Port).Msg("Server started successfully")

	// Wait for interrupt signal
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info().Msg("Shutting down server...")

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := srv.Shutdown(ctx); err != nil {
		log.Error().Err(err).Msg("Server forced to shutdown")
	}

	log.Info().Msg("Server exited")
}

// buildProviders assembles the live provider chain from configuration.
func buildProviders(cfg *config.Config, log zerolog.Logger) []marketdata.Provider {
	var providers []marketdata.Provider
	for _, name := range cfg.ProviderOrder {
		switch name {
		case "yahoo":
			providers = append(providers, yahoo.NewClient(log))
		case "finnhub":
			if cfg.FinnhubAPIKey == "" {
				log.Warn().Msg("FINNHUB_API_KEY not set, skipping finnhub provider")
				continue
			}
			providers = append(providers, finnhub.NewClient(cfg.FinnhubAPIKey, log))
		}
	}
	return providers
}

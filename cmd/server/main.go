// Package main is the entry point for the MFL sync service. It keeps a wallet's
// clubs, players, matches, opponents and market values in a local store and
// exposes the sync sessions over HTTP.
package main

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/sirupsen/logrus"
	"github.com/yourorg/mfl-sync/internal/config"
	"github.com/yourorg/mfl-sync/internal/fetch"
	"github.com/yourorg/mfl-sync/internal/lock"
	"github.com/yourorg/mfl-sync/internal/logging"
	"github.com/yourorg/mfl-sync/internal/metrics"
	"github.com/yourorg/mfl-sync/internal/notify"
	"github.com/yourorg/mfl-sync/internal/otel"
	"github.com/yourorg/mfl-sync/internal/ratelimit"
	"github.com/yourorg/mfl-sync/internal/rating"
	"github.com/yourorg/mfl-sync/internal/store"
	"github.com/yourorg/mfl-sync/internal/syncer"
	"github.com/yourorg/mfl-sync/internal/valuation"
)

// main is the entry point for the application
func main() {
	cfg := config.Load()

	closeLog, err := logging.Setup(logging.Options{
		Format:     cfg.LogFormat,
		Level:      cfg.LogLevel,
		File:       cfg.LogFile,
		MaxSizeMB:  100,
		MaxAgeDays: 14,
	})
	if err != nil {
		logrus.Fatalf("Failed to configure logging: %v", err)
	}
	defer closeLog()

	shutdownTracer := otel.InitTracer(cfg)
	defer shutdownTracer()

	recorder := metrics.New(prometheus.DefaultRegisterer)

	st, locker, err := openStore(cfg)
	if err != nil {
		logrus.Fatalf("Failed to open store: %v", err)
	}

	webhook := notify.NewWebhook(notify.Config{
		URL:       cfg.WebhookURL,
		APIKey:    cfg.WebhookAPIKey,
		BatchSize: cfg.WebhookBatchSize,
		Interval:  cfg.WebhookInterval,
	})

	deps := syncer.Deps{
		Store: st,
		API: fetch.NewClient(fetch.Config{
			BaseURL:       cfg.APIURL,
			Timeout:       cfg.RequestTimeout,
			RetryMax:      cfg.APIRetryMax,
			RatePerSecond: cfg.APIRateRPS,
			Burst:         cfg.APIRateBurst,
		}, fetch.WithErrorObserver(recorder)),
		Calculator: rating.NewCalculator(rating.WithSecondaryStep(cfg.SecondaryPenaltyStep)),
		Estimator:  newEstimator(cfg),
		Limiter:    ratelimit.New(cfg.MarketDataMaxCalls, cfg.MarketDataWindow),
		Cache:      valuation.NewCache(0),
		Locker:     locker,
		Metrics:    recorder,
	}

	server := NewServer(cfg, deps, webhook)
	server.Start()
}

// openStore selects Postgres when a DSN is configured and the in-memory store
// otherwise. The wallet lock lives next to the data.
func openStore(cfg config.Config) (store.Store, lock.Locker, error) {
	if cfg.DatabaseURL == "" {
		logrus.Warn("DATABASE_URL not set, using in-memory store")
		return store.NewMemory(), lock.NewMemory(cfg.LockTTL), nil
	}

	st, err := store.OpenPostgres(cfg.DatabaseURL)
	if err != nil {
		return nil, nil, err
	}
	locker, err := lock.NewGorm(st.DB(), cfg.LockTTL)
	if err != nil {
		return nil, nil, err
	}
	logrus.Info("Connected to Postgres")
	return st, locker, nil
}

func newEstimator(cfg config.Config) *valuation.Estimator {
	switch {
	case !cfg.ValuationJitter:
		return valuation.NewEstimator(valuation.WithoutJitter())
	case cfg.ValuationSeed != 0:
		return valuation.NewEstimator(valuation.WithSeed(cfg.ValuationSeed))
	}
	return valuation.NewEstimator()
}

package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"lightchurch_backend/internal/churches/geocheck"
	churchrepo "lightchurch_backend/internal/churches/repository"
	"lightchurch_backend/internal/geocoding"
	"lightchurch_backend/platform/config"
	"lightchurch_backend/platform/db"
	"lightchurch_backend/platform/logger"
)

const (
	batchSize   = 25
	lookupPause = time.Second
)

func main() {
	cfg := config.LoadGeocoding()
	if cfg.DatabaseURL == "" {
		panic("DATABASE_URL is required")
	}

	log := logger.New(cfg.Env)
	log.Info("starting church geocode backfill")

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	pool, err := db.NewPool(ctx, cfg)
	if err != nil {
		log.Error("failed to connect to database", "error", err)
		panic("failed to connect to database: " + err.Error())
	}
	defer pool.Close()

	repo := churchrepo.New(pool)
	chain := geocoding.NewChainFromConfig(cfg, geocoding.NewThrottle(nil, cfg), log)
	verifier := geocheck.NewVerifier(repo, chain, log)

	checked := 0
	for {
		churches, err := repo.ListUnchecked(ctx, batchSize)
		if err != nil {
			log.Error("failed to list churches", "error", err)
			return
		}
		if len(churches) == 0 {
			log.Info("no churches left to check", "checked", checked)
			return
		}

		progress := false

		for _, church := range churches {
			if church.Address.FullAddress == "" {
				log.Info("skipping church without address", "church_id", church.ID)
				continue
			}

			result, err := verifier.Check(ctx, church)
			if err != nil {
				log.Error("geocode check failed", "church_id", church.ID, "error", err)
			} else {
				checked++
				progress = true
				if result.DriftMeters != nil {
					log.Info("church checked", "church_id", church.ID, "drift_m", *result.DriftMeters)
				}
			}

			select {
			case <-ctx.Done():
				log.Info("backfill interrupted", "checked", checked)
				return
			case <-time.After(lookupPause):
			}
		}

		if !progress {
			log.Info("no geocode progress in batch, stopping", "checked", checked)
			return
		}
	}
}

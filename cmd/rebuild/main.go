// Command rebuild discards and repopulates every read-model table (C4)
// from the ledger entries, payouts, and events tables of record. Intended
// for recovering from a read-model bug or schema change; the write-model
// tables are never touched.
package main

import (
	"context"
	"log"
	"time"

	"payout-ledger/internal/config"
	"payout-ledger/internal/logging"
	"payout-ledger/internal/projector"
	"payout-ledger/internal/store/postgres"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}
	logging.Init(cfg.Logging.Level, cfg.Logging.Format)

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Minute)
	defer cancel()

	pool, err := postgres.NewPool(ctx, cfg.Database)
	if err != nil {
		log.Fatalf("failed to connect to database: %v", err)
	}
	defer pool.Close()

	store := postgres.New(pool)
	proj := projector.New(store)

	if err := proj.Rebuild(ctx); err != nil {
		log.Fatalf("rebuild failed: %v", err)
	}
	logging.Info("read models rebuilt", nil)
}

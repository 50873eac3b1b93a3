// Command bootstrap is a one-shot administrative action (spec.md §8 C8):
// it idempotently creates the two accounts every payout moves funds
// between, CASH_001 (Asset/Debit-normal) and PAYOUT_LIABILITY_001
// (Liability/Credit-normal), then exits. Safe to run repeatedly.
package main

import (
	"context"
	"log"
	"time"

	"github.com/google/uuid"

	"payout-ledger/internal/config"
	"payout-ledger/internal/container"
	domledger "payout-ledger/internal/domain/ledger"
	"payout-ledger/internal/logging"
	"payout-ledger/internal/store/postgres"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}
	logging.Init(cfg.Logging.Level, cfg.Logging.Format)

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	pool, err := postgres.NewPool(ctx, cfg.Database)
	if err != nil {
		log.Fatalf("failed to connect to database: %v", err)
	}
	defer pool.Close()

	store := postgres.New(pool)

	now := time.Now()
	accounts := []domledger.Account{
		{ID: uuid.NewString(), Code: container.CashAccountCode, Type: domledger.Asset, NormalSide: domledger.NormalSideFor(domledger.Asset), CreatedAt: now},
		{ID: uuid.NewString(), Code: container.PayoutLiabilityAccountCode, Type: domledger.Liability, NormalSide: domledger.NormalSideFor(domledger.Liability), CreatedAt: now},
	}

	for _, acc := range accounts {
		if err := store.CreateAccount(ctx, acc); err != nil {
			log.Fatalf("failed to bootstrap account %s: %v", acc.Code, err)
		}
		logging.Info("account bootstrapped", map[string]interface{}{"code": acc.Code, "type": string(acc.Type)})
	}

	logging.Info("bootstrap complete", nil)
}

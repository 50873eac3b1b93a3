// Package projector is the C4 service: maintains the denormalized read
// models (account balances, payout summaries, transaction summaries) in
// the same atomic unit as the writes that produce them — no outbox, no
// eventual consistency, per spec.md §4.3.
package projector

import (
	"context"

	"payout-ledger/internal/domain/ledger"
	"payout-ledger/internal/domain/payout"
)

// Store is the persistence seam internal/store/postgres.Store satisfies.
type Store interface {
	ApplyLedgerEntries(ctx context.Context, txn ledger.Transaction, entries []ledger.LedgerEntry, sequence int64) error
	ApplyPayoutChange(ctx context.Context, p payout.Payout) error
	Rebuild(ctx context.Context) error
}

type Service struct {
	store Store
}

func New(store Store) *Service {
	return &Service{store: store}
}

// ApplyLedgerEntries updates the account-balance and transaction-summary
// projections. Must be called within the same database transaction as the
// write it projects.
func (s *Service) ApplyLedgerEntries(ctx context.Context, txn ledger.Transaction, entries []ledger.LedgerEntry, sequence int64) error {
	return s.store.ApplyLedgerEntries(ctx, txn, entries, sequence)
}

// ApplyPayoutChange updates the payout-summary projection.
func (s *Service) ApplyPayoutChange(ctx context.Context, p payout.Payout) error {
	return s.store.ApplyPayoutChange(ctx, p)
}

// Rebuild recomputes every read model from source-of-truth tables.
func (s *Service) Rebuild(ctx context.Context) error {
	return s.store.Rebuild(ctx)
}

// Package ledger is the C2 service: validates and commits balanced
// double-entry transactions and serves balance/history reads. Grounded on
// spec.md §4.1's contract; the SQL itself lives in internal/store/postgres,
// reached through the Store interface below so this package stays
// testable without a database.
package ledger

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"payout-ledger/internal/domain/ledger"
	"payout-ledger/internal/errs"
	"payout-ledger/internal/money"
)

// Store is the persistence seam internal/store/postgres.Store satisfies.
type Store interface {
	CreateBalancedTransaction(ctx context.Context, txn ledger.Transaction, entries []ledger.LedgerEntry) error
	GetAccount(ctx context.Context, id string) (ledger.Account, error)
	GetAccountByCode(ctx context.Context, code string) (ledger.Account, error)
	GetAccountBalance(ctx context.Context, accountID string) (decimal.Decimal, error)
	RecomputeAccountBalance(ctx context.Context, accountID string) (decimal.Decimal, error)
	StreamEntries(ctx context.Context, accountID string, sinceID string, limit int) ([]ledger.LedgerEntry, error)
}

// Leg is one side of a balanced transaction the caller wants committed.
type Leg struct {
	AccountID string
	Side      ledger.Side
	Amount    money.Amount
}

type Service struct {
	store Store
}

func New(store Store) *Service {
	return &Service{store: store}
}

// CreateBalancedTransaction validates legs (exactly two, every amount
// positive and same currency, debits sum equal to credits sum) and commits
// the transaction and its entries as one atomic unit. txnID is supplied by
// the caller — the payout state machine derives it deterministically
// ("payout_<idempotency_key>") so a retried write is caught as a duplicate
// rather than double-posted (spec.md I1).
func (s *Service) CreateBalancedTransaction(ctx context.Context, txnID, description string, legs []Leg) (ledger.Transaction, []ledger.LedgerEntry, error) {
	if len(legs) != 2 {
		return ledger.Transaction{}, nil, errs.New(errs.KindValidation, "a transaction must have exactly two legs")
	}

	currency := legs[0].Amount.Currency
	debitTotal := decimal.Zero
	creditTotal := decimal.Zero
	for _, leg := range legs {
		if !leg.Amount.IsPositive() {
			return ledger.Transaction{}, nil, errs.New(errs.KindNonPositiveAmount, "ledger entry amount must be positive: "+leg.Amount.String())
		}
		if leg.Amount.Currency != currency {
			return ledger.Transaction{}, nil, errs.New(errs.KindValidation, "all legs of a transaction must share one currency")
		}
		switch leg.Side {
		case ledger.Debit:
			debitTotal = debitTotal.Add(leg.Amount.Value)
		case ledger.Credit:
			creditTotal = creditTotal.Add(leg.Amount.Value)
		default:
			return ledger.Transaction{}, nil, errs.New(errs.KindValidation, "ledger entry side must be DEBIT or CREDIT")
		}
	}
	if !debitTotal.Equal(creditTotal) {
		return ledger.Transaction{}, nil, errs.New(errs.KindUnbalanced, fmt.Sprintf("transaction does not balance: debits=%s credits=%s", debitTotal, creditTotal))
	}

	txn := ledger.Transaction{ID: txnID, Description: description}
	entries := make([]ledger.LedgerEntry, 0, len(legs))
	for _, leg := range legs {
		entries = append(entries, ledger.LedgerEntry{
			ID:            uuid.NewString(),
			TransactionID: txnID,
			AccountID:     leg.AccountID,
			Side:          leg.Side,
			AmountNumeric: leg.Amount.Numeric(),
		})
	}

	if err := s.store.CreateBalancedTransaction(ctx, txn, entries); err != nil {
		return ledger.Transaction{}, nil, err
	}
	return txn, entries, nil
}

// GetAccountBalance returns an account's current balance from the
// projected read model.
func (s *Service) GetAccountBalance(ctx context.Context, accountID string) (decimal.Decimal, error) {
	return s.store.GetAccountBalance(ctx, accountID)
}

// RecomputeAccountBalance forces a balance recompute straight from ledger
// entries, bypassing the projection. Used when a caller doesn't trust the
// read model (or wants to cross-check it), never as the default path.
func (s *Service) RecomputeAccountBalance(ctx context.Context, accountID string) (decimal.Decimal, error) {
	return s.store.RecomputeAccountBalance(ctx, accountID)
}

// StreamEntries lists an account's entries in creation order, cursor-paged
// after sinceID.
func (s *Service) StreamEntries(ctx context.Context, accountID, sinceID string, limit int) ([]ledger.LedgerEntry, error) {
	return s.store.StreamEntries(ctx, accountID, sinceID, limit)
}

// ResolveAccount looks an account up by its human-readable code, used by
// cmd/bootstrap and by the payout state machine to resolve the fixed cash
// and payout-liability accounts at startup.
func (s *Service) ResolveAccount(ctx context.Context, code string) (ledger.Account, error) {
	return s.store.GetAccountByCode(ctx, code)
}

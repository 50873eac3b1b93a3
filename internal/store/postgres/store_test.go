package postgres_test

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	domevents "payout-ledger/internal/domain/events"
	domledger "payout-ledger/internal/domain/ledger"
	payoutdom "payout-ledger/internal/domain/payout"
	"payout-ledger/internal/errs"
	"payout-ledger/internal/store/postgres/postgrestest"
)

func mustCreateAccount(t *testing.T, ctx context.Context, store interface {
	CreateAccount(ctx context.Context, acc domledger.Account) error
}, code string, accType domledger.AccountType) domledger.Account {
	t.Helper()
	acc := domledger.Account{
		ID:         uuid.NewString(),
		Code:       code,
		Type:       accType,
		NormalSide: domledger.NormalSideFor(accType),
		CreatedAt:  time.Now(),
	}
	require.NoError(t, store.CreateAccount(ctx, acc))
	return acc
}

func TestCreateBalancedTransactionAndBalances(t *testing.T) {
	postgrestest.SkipUnlessDocker(t)
	store := postgrestest.StartStore(t)
	ctx := context.Background()

	cash := mustCreateAccount(t, ctx, store, "CASH_TEST", domledger.Asset)
	liability := mustCreateAccount(t, ctx, store, "LIABILITY_TEST", domledger.Liability)

	txn := domledger.Transaction{ID: "txn-test-1", Description: "test payout"}
	entries := []domledger.LedgerEntry{
		{ID: uuid.NewString(), TransactionID: txn.ID, AccountID: liability.ID, Side: domledger.Debit, AmountNumeric: "100.00"},
		{ID: uuid.NewString(), TransactionID: txn.ID, AccountID: cash.ID, Side: domledger.Credit, AmountNumeric: "100.00"},
	}

	require.NoError(t, store.CreateBalancedTransaction(ctx, txn, entries))

	// CreateBalancedTransaction alone does not update the account_balances
	// projection (only ApplyLedgerEntries/Rebuild does), so the read-model
	// path still reports the zero balance seeded at account creation.
	cashBalance, err := store.GetAccountBalance(ctx, cash.ID)
	require.NoError(t, err)
	assert.True(t, cashBalance.IsZero(), "read model is untouched until the projector runs")

	// RecomputeAccountBalance goes straight to ledger_entries and reflects
	// the posted transaction immediately.
	cashRecomputed, err := store.RecomputeAccountBalance(ctx, cash.ID)
	require.NoError(t, err)
	assert.True(t, cashRecomputed.IsNegative(), "cash is normal-debit, a credit should decrease it")

	liabilityRecomputed, err := store.RecomputeAccountBalance(ctx, liability.ID)
	require.NoError(t, err)
	assert.True(t, liabilityRecomputed.IsNegative(), "liability is normal-credit, a debit should decrease it")
}

func TestCreateBalancedTransactionRejectsDuplicateID(t *testing.T) {
	postgrestest.SkipUnlessDocker(t)
	store := postgrestest.StartStore(t)
	ctx := context.Background()

	cash := mustCreateAccount(t, ctx, store, "CASH_DUP", domledger.Asset)
	liability := mustCreateAccount(t, ctx, store, "LIABILITY_DUP", domledger.Liability)

	txn := domledger.Transaction{ID: "txn-dup-1", Description: "first"}
	entries := []domledger.LedgerEntry{
		{ID: uuid.NewString(), TransactionID: txn.ID, AccountID: liability.ID, Side: domledger.Debit, AmountNumeric: "50.00"},
		{ID: uuid.NewString(), TransactionID: txn.ID, AccountID: cash.ID, Side: domledger.Credit, AmountNumeric: "50.00"},
	}
	require.NoError(t, store.CreateBalancedTransaction(ctx, txn, entries))

	dupEntries := []domledger.LedgerEntry{
		{ID: uuid.NewString(), TransactionID: txn.ID, AccountID: liability.ID, Side: domledger.Debit, AmountNumeric: "50.00"},
		{ID: uuid.NewString(), TransactionID: txn.ID, AccountID: cash.ID, Side: domledger.Credit, AmountNumeric: "50.00"},
	}
	err := store.CreateBalancedTransaction(ctx, txn, dupEntries)
	require.Error(t, err)
	assert.Equal(t, errs.KindDuplicateTransaction, errs.KindOf(err))
}

func TestAppendEventAssignsGaplessSequence(t *testing.T) {
	postgrestest.SkipUnlessDocker(t)
	store := postgrestest.StartStore(t)
	ctx := context.Background()

	first, err := store.AppendEvent(ctx, domevents.Event{
		ID:            uuid.NewString(),
		AggregateType: domevents.AggregatePayout,
		AggregateID:   "payout-seq-1",
		EventType:     domevents.TypePayoutCreated,
	})
	require.NoError(t, err)

	second, err := store.AppendEvent(ctx, domevents.Event{
		ID:            uuid.NewString(),
		AggregateType: domevents.AggregatePayout,
		AggregateID:   "payout-seq-1",
		EventType:     domevents.TypePayoutProcessingStarted,
	})
	require.NoError(t, err)

	assert.Equal(t, first.SequenceNumber+1, second.SequenceNumber)
}

func TestAppendEventRejectsDuplicateEventID(t *testing.T) {
	postgrestest.SkipUnlessDocker(t)
	store := postgrestest.StartStore(t)
	ctx := context.Background()

	ev := domevents.Event{
		ID:            "dup-event-1",
		AggregateType: domevents.AggregatePayout,
		AggregateID:   "payout-dup-1",
		EventType:     domevents.TypePayoutCreated,
	}
	_, err := store.AppendEvent(ctx, ev)
	require.NoError(t, err)

	_, err = store.AppendEvent(ctx, ev)
	require.Error(t, err)
	assert.Equal(t, errs.KindDuplicateEventID, errs.KindOf(err))
}

func TestPayoutInsertLockAndUpdateLifecycle(t *testing.T) {
	postgrestest.SkipUnlessDocker(t)
	store := postgrestest.StartStore(t)
	ctx := context.Background()

	p := payoutdom.Payout{
		ID:               "payout_lifecycle-1",
		IdempotencyKey:   "lifecycle-1",
		AmountNumeric:    "25.00",
		Currency:         "USD",
		RecipientAccount: "acc-recipient",
		RecipientName:    "Jane Doe",
		Status:           payoutdom.StatusPending,
		CreatedAt:        time.Now(),
		UpdatedAt:        time.Now(),
	}
	require.NoError(t, store.InsertPayout(ctx, p))

	byKey, err := store.GetPayoutByIdempotencyKey(ctx, "lifecycle-1")
	require.NoError(t, err)
	assert.Equal(t, p.ID, byKey.ID)

	locked, err := store.LockPayoutForProcessing(ctx, p.ID)
	require.NoError(t, err)
	locked.Status = payoutdom.StatusProcessing
	locked.UpdatedAt = time.Now()
	require.NoError(t, store.UpdatePayoutStatus(ctx, locked))

	reloaded, err := store.GetPayout(ctx, p.ID)
	require.NoError(t, err)
	assert.Equal(t, payoutdom.StatusProcessing, reloaded.Status)
}

func TestInsertPayoutRejectsDuplicateIdempotencyKey(t *testing.T) {
	postgrestest.SkipUnlessDocker(t)
	store := postgrestest.StartStore(t)
	ctx := context.Background()

	p := payoutdom.Payout{
		ID:               "payout_replay-1",
		IdempotencyKey:   "replay-1",
		AmountNumeric:    "10.00",
		Currency:         "USD",
		RecipientAccount: "acc-recipient",
		Status:           payoutdom.StatusPending,
		CreatedAt:        time.Now(),
		UpdatedAt:        time.Now(),
	}
	require.NoError(t, store.InsertPayout(ctx, p))

	replay := p
	replay.ID = "payout_replay-1-again"
	err := store.InsertPayout(ctx, replay)
	require.Error(t, err)
	assert.Equal(t, errs.KindIdempotencyConflict, errs.KindOf(err))
}

func TestRebuildRecomputesReadModels(t *testing.T) {
	postgrestest.SkipUnlessDocker(t)
	store := postgrestest.StartStore(t)
	ctx := context.Background()

	cash := mustCreateAccount(t, ctx, store, "CASH_REBUILD", domledger.Asset)
	liability := mustCreateAccount(t, ctx, store, "LIABILITY_REBUILD", domledger.Liability)

	txn := domledger.Transaction{ID: "txn-rebuild-1", Description: "rebuild test"}
	entries := []domledger.LedgerEntry{
		{ID: uuid.NewString(), TransactionID: txn.ID, AccountID: liability.ID, Side: domledger.Debit, AmountNumeric: "30.00"},
		{ID: uuid.NewString(), TransactionID: txn.ID, AccountID: cash.ID, Side: domledger.Credit, AmountNumeric: "30.00"},
	}
	require.NoError(t, store.CreateBalancedTransaction(ctx, txn, entries))

	// Before rebuild, the projection was never updated by
	// CreateBalancedTransaction alone.
	preBalance, err := store.GetAccountBalance(ctx, cash.ID)
	require.NoError(t, err)
	assert.True(t, preBalance.IsZero())

	require.NoError(t, store.Rebuild(ctx))

	postBalance, err := store.GetAccountBalance(ctx, cash.ID)
	require.NoError(t, err)
	assert.True(t, postBalance.IsNegative(), "rebuild should recompute cash's balance from ledger_entries")
}

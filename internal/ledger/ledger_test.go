package ledger_test

import (
	"context"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	domledger "payout-ledger/internal/domain/ledger"
	"payout-ledger/internal/errs"
	"payout-ledger/internal/ledger"
	"payout-ledger/internal/money"
)

type fakeStore struct {
	committedTxn     domledger.Transaction
	committedEntries []domledger.LedgerEntry
	createErr        error
	account          domledger.Account
	balance          decimal.Decimal
}

func (f *fakeStore) CreateBalancedTransaction(_ context.Context, txn domledger.Transaction, entries []domledger.LedgerEntry) error {
	if f.createErr != nil {
		return f.createErr
	}
	f.committedTxn = txn
	f.committedEntries = entries
	return nil
}

func (f *fakeStore) GetAccount(_ context.Context, id string) (domledger.Account, error) {
	return f.account, nil
}

func (f *fakeStore) GetAccountByCode(_ context.Context, code string) (domledger.Account, error) {
	return f.account, nil
}

func (f *fakeStore) GetAccountBalance(_ context.Context, accountID string) (decimal.Decimal, error) {
	return f.balance, nil
}

func (f *fakeStore) RecomputeAccountBalance(_ context.Context, accountID string) (decimal.Decimal, error) {
	return f.balance, nil
}

func (f *fakeStore) StreamEntries(_ context.Context, accountID, sinceID string, limit int) ([]domledger.LedgerEntry, error) {
	return nil, nil
}

func usd(t *testing.T, s string) money.Amount {
	t.Helper()
	a, err := money.NewFromString(s, "USD")
	require.NoError(t, err)
	return a
}

func TestCreateBalancedTransactionCommitsMatchingLegs(t *testing.T) {
	store := &fakeStore{}
	svc := ledger.New(store)

	txn, entries, err := svc.CreateBalancedTransaction(context.Background(), "txn-1", "test payout", []ledger.Leg{
		{AccountID: "liability", Side: domledger.Debit, Amount: usd(t, "100.00")},
		{AccountID: "cash", Side: domledger.Credit, Amount: usd(t, "100.00")},
	})

	require.NoError(t, err)
	assert.Equal(t, "txn-1", txn.ID)
	require.Len(t, entries, 2)
	assert.Equal(t, store.committedTxn.ID, txn.ID)
	assert.Len(t, store.committedEntries, 2)
}

func TestCreateBalancedTransactionRejectsUnbalanced(t *testing.T) {
	store := &fakeStore{}
	svc := ledger.New(store)

	_, _, err := svc.CreateBalancedTransaction(context.Background(), "txn-2", "bad", []ledger.Leg{
		{AccountID: "liability", Side: domledger.Debit, Amount: usd(t, "100.00")},
		{AccountID: "cash", Side: domledger.Credit, Amount: usd(t, "50.00")},
	})

	require.Error(t, err)
	assert.Equal(t, errs.KindUnbalanced, errs.KindOf(err))
}

func TestCreateBalancedTransactionRejectsTooFewLegs(t *testing.T) {
	store := &fakeStore{}
	svc := ledger.New(store)

	_, _, err := svc.CreateBalancedTransaction(context.Background(), "txn-3", "bad", []ledger.Leg{
		{AccountID: "cash", Side: domledger.Debit, Amount: usd(t, "10.00")},
	})

	require.Error(t, err)
	assert.Equal(t, errs.KindValidation, errs.KindOf(err))
}

func TestCreateBalancedTransactionRejectsTooManyLegs(t *testing.T) {
	store := &fakeStore{}
	svc := ledger.New(store)

	_, _, err := svc.CreateBalancedTransaction(context.Background(), "txn-3b", "bad", []ledger.Leg{
		{AccountID: "cash", Side: domledger.Debit, Amount: usd(t, "5.00")},
		{AccountID: "liability", Side: domledger.Credit, Amount: usd(t, "3.00")},
		{AccountID: "equity", Side: domledger.Credit, Amount: usd(t, "2.00")},
	})

	require.Error(t, err)
	assert.Equal(t, errs.KindValidation, errs.KindOf(err))
}

func TestCreateBalancedTransactionRejectsNonPositiveAmount(t *testing.T) {
	store := &fakeStore{}
	svc := ledger.New(store)

	zero := money.Zero("USD")
	_, _, err := svc.CreateBalancedTransaction(context.Background(), "txn-4", "bad", []ledger.Leg{
		{AccountID: "cash", Side: domledger.Debit, Amount: zero},
		{AccountID: "liability", Side: domledger.Credit, Amount: zero},
	})

	require.Error(t, err)
	assert.Equal(t, errs.KindNonPositiveAmount, errs.KindOf(err))
}

func TestCreateBalancedTransactionRejectsMixedCurrency(t *testing.T) {
	store := &fakeStore{}
	svc := ledger.New(store)

	eur, err := money.NewFromString("50.00", "EUR")
	require.NoError(t, err)

	_, _, err = svc.CreateBalancedTransaction(context.Background(), "txn-5", "bad", []ledger.Leg{
		{AccountID: "cash", Side: domledger.Debit, Amount: usd(t, "50.00")},
		{AccountID: "liability", Side: domledger.Credit, Amount: eur},
	})

	require.Error(t, err)
	assert.Equal(t, errs.KindValidation, errs.KindOf(err))
}

func TestCreateBalancedTransactionPropagatesStoreError(t *testing.T) {
	store := &fakeStore{createErr: errs.New(errs.KindDuplicateTransaction, "already posted")}
	svc := ledger.New(store)

	_, _, err := svc.CreateBalancedTransaction(context.Background(), "txn-6", "replay", []ledger.Leg{
		{AccountID: "cash", Side: domledger.Debit, Amount: usd(t, "10.00")},
		{AccountID: "liability", Side: domledger.Credit, Amount: usd(t, "10.00")},
	})

	require.Error(t, err)
	assert.Equal(t, errs.KindDuplicateTransaction, errs.KindOf(err))
}

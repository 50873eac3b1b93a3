package postgres

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/shopspring/decimal"

	"payout-ledger/internal/domain/ledger"
	"payout-ledger/internal/errs"
)

// CreateBalancedTransaction inserts the transaction header and its two
// entries as one atomic unit. Callers (internal/ledger) have already
// validated that the entries balance and that the amount is positive;
// this method additionally guards against a duplicate transaction id via
// the primary key, translating the constraint violation into
// KindDuplicateTransaction (spec.md I1, I2).
// Must run inside WithTx when the caller needs the insert to share a
// transaction with event emission/projection (the payout processing
// path); a standalone call still runs atomically on its own.
func (s *Store) CreateBalancedTransaction(ctx context.Context, txn ledger.Transaction, entries []ledger.LedgerEntry) error {
	return WithTx(ctx, s.pool, func(ctx context.Context) error {
		tx := dbtx(ctx, s.pool)

		const insertTxn = `
			INSERT INTO transactions (id, description, created_at)
			VALUES ($1, $2, now())`
		if _, err := tx.Exec(ctx, insertTxn, txn.ID, txn.Description); err != nil {
			var pgErr *pgconn.PgError
			if errors.As(err, &pgErr) && pgErr.Code == "23505" {
				return errs.New(errs.KindDuplicateTransaction, "transaction id already exists: "+txn.ID)
			}
			return errs.Wrap(errs.KindStorageUnavailable, "insert transaction", err)
		}

		const insertEntry = `
			INSERT INTO ledger_entries (id, transaction_id, account_id, side, amount, created_at)
			VALUES ($1, $2, $3, $4, $5, now())`
		for _, e := range entries {
			if _, err := tx.Exec(ctx, insertEntry, e.ID, e.TransactionID, e.AccountID, string(e.Side), e.AmountNumeric); err != nil {
				var pgErr *pgconn.PgError
				if errors.As(err, &pgErr) && pgErr.Code == "23503" {
					return errs.New(errs.KindUnknownAccount, "unknown account: "+e.AccountID)
				}
				return errs.Wrap(errs.KindStorageUnavailable, "insert ledger entry", err)
			}
		}
		return nil
	})
}

// GetAccountBalance reads the projected, normal-side-signed balance from
// account_balances (spec.md §4.1: "reads from the read model"). Every
// account has a row from the moment it is created (CreateAccount seeds
// one at zero), so a missing row means an unknown account.
func (s *Store) GetAccountBalance(ctx context.Context, accountID string) (decimal.Decimal, error) {
	const q = `SELECT balance FROM account_balances WHERE account_id = $1`
	var balance decimal.Decimal
	if err := dbtx(ctx, s.pool).QueryRow(ctx, q, accountID).Scan(&balance); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return decimal.Zero, notFound("account", accountID)
		}
		return decimal.Zero, errs.Wrap(errs.KindStorageUnavailable, "query account balance", err)
	}
	return balance, nil
}

// RecomputeAccountBalance computes an account's current balance directly
// from ledger_entries via a single aggregation query, bypassing the
// projection entirely — the forced-refresh path spec.md §4.1 requires
// ("computes the signed sum from entries via a single aggregation
// query"). Never loads entries into application memory: the signing by
// normal side happens inside the query itself.
func (s *Store) RecomputeAccountBalance(ctx context.Context, accountID string) (decimal.Decimal, error) {
	const q = `
		SELECT COALESCE(SUM(CASE WHEN le.side = a.normal_side THEN le.amount ELSE -le.amount END), 0)
		FROM accounts a
		LEFT JOIN ledger_entries le ON le.account_id = a.id
		WHERE a.id = $1
		GROUP BY a.id`
	var balance decimal.Decimal
	if err := dbtx(ctx, s.pool).QueryRow(ctx, q, accountID).Scan(&balance); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return decimal.Zero, notFound("account", accountID)
		}
		return decimal.Zero, errs.Wrap(errs.KindStorageUnavailable, "recompute account balance", err)
	}
	return balance, nil
}

// StreamEntries lists entries for an account in creation order,
// cursor-paginated on (created_at, id) — never OFFSET-based, per spec.md
// §6.
func (s *Store) StreamEntries(ctx context.Context, accountID string, sinceID string, limit int) ([]ledger.LedgerEntry, error) {
	const q = `
		SELECT e.id, e.transaction_id, e.account_id, e.side, e.amount, e.created_at
		FROM ledger_entries e
		WHERE e.account_id = $1
		  AND ($2 = '' OR (e.created_at, e.id) > (
			SELECT created_at, id FROM ledger_entries WHERE id = $2
		  ))
		ORDER BY e.created_at ASC, e.id ASC
		LIMIT $3`
	rows, err := dbtx(ctx, s.pool).Query(ctx, q, accountID, sinceID, limit)
	if err != nil {
		return nil, errs.Wrap(errs.KindStorageUnavailable, "query ledger entries", err)
	}
	defer rows.Close()

	var out []ledger.LedgerEntry
	for rows.Next() {
		var e ledger.LedgerEntry
		var side string
		if err := rows.Scan(&e.ID, &e.TransactionID, &e.AccountID, &side, &e.AmountNumeric, &e.CreatedAt); err != nil {
			return nil, errs.Wrap(errs.KindStorageUnavailable, "scan ledger entry", err)
		}
		e.Side = ledger.Side(side)
		out = append(out, e)
	}
	if err := rows.Err(); err != nil {
		return nil, errs.Wrap(errs.KindStorageUnavailable, "iterate ledger entries", err)
	}
	return out, nil
}

// transactionExists reports whether a transaction id has already been
// committed. Nothing calls it: a replayed insert is detected by the
// primary-key violation in CreateBalancedTransaction instead.
func (s *Store) transactionExists(ctx context.Context, id string) (bool, error) {
	const q = `SELECT 1 FROM transactions WHERE id = $1`
	var one int
	err := dbtx(ctx, s.pool).QueryRow(ctx, q, id).Scan(&one)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return false, nil
		}
		return false, errs.Wrap(errs.KindStorageUnavailable, "check transaction existence", err)
	}
	return true, nil
}

package postgres

import (
	"context"

	"payout-ledger/internal/domain/ledger"
	payoutdom "payout-ledger/internal/domain/payout"
	"payout-ledger/internal/errs"
)

// ApplyLedgerEntries updates account_balances for every account touched by
// entries, and upserts the denormalized transaction summary. Must be
// called from within the same WithTx block as CreateBalancedTransaction
// and AppendEvent (C4's "no outbox, same atomic unit" requirement).
func (s *Store) ApplyLedgerEntries(ctx context.Context, txn ledger.Transaction, entries []ledger.LedgerEntry, sequence int64) error {
	tx := dbtx(ctx, s.pool)

	var debitAccount, creditAccount, amount string
	for _, e := range entries {
		acc, err := s.GetAccount(ctx, e.AccountID)
		if err != nil {
			return err
		}
		delta := e.AmountNumeric
		sign := e.SignOf(acc.NormalSide)
		rawSign := 1
		if e.Side == ledger.Credit {
			rawSign = -1
		}

		const upsert = `
			INSERT INTO account_balances (account_id, balance, raw_debit_minus_credit, as_of_sequence)
			VALUES ($1, $2::numeric * $3, $2::numeric * $4, $5)
			ON CONFLICT (account_id) DO UPDATE SET
				balance = account_balances.balance + $2::numeric * $3,
				raw_debit_minus_credit = account_balances.raw_debit_minus_credit + $2::numeric * $4,
				as_of_sequence = $5`
		if _, err := tx.Exec(ctx, upsert, e.AccountID, delta, sign, rawSign, sequence); err != nil {
			return errs.Wrap(errs.KindStorageUnavailable, "project account balance", err)
		}

		if e.Side == ledger.Debit {
			debitAccount = e.AccountID
		} else {
			creditAccount = e.AccountID
		}
		amount = e.AmountNumeric
	}

	const upsertTxn = `
		INSERT INTO ledger_transaction_summaries (transaction_id, debit_account, credit_account, amount, created_at)
		VALUES ($1, $2, $3, $4, now())
		ON CONFLICT (transaction_id) DO NOTHING`
	if _, err := tx.Exec(ctx, upsertTxn, txn.ID, debitAccount, creditAccount, amount); err != nil {
		return errs.Wrap(errs.KindStorageUnavailable, "project transaction summary", err)
	}
	return nil
}

// ApplyPayoutChange upserts the payout_summaries projection row. Called in
// the same transaction as every payout status transition.
func (s *Store) ApplyPayoutChange(ctx context.Context, p payoutdom.Payout) error {
	const q = `
		INSERT INTO payout_summaries (payout_id, idempotency_key, amount, currency, recipient_account, status, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		ON CONFLICT (payout_id) DO UPDATE SET
			status = $6,
			updated_at = $7`
	_, err := dbtx(ctx, s.pool).Exec(ctx, q, p.ID, p.IdempotencyKey, p.AmountNumeric, p.Currency, p.RecipientAccount, string(p.Status), p.UpdatedAt)
	if err != nil {
		return errs.Wrap(errs.KindStorageUnavailable, "project payout summary", err)
	}
	return nil
}

// Rebuild recomputes every read model from the source-of-truth tables,
// used by cmd/rebuild when a projection needs to be regenerated from
// scratch (e.g. after a schema change to the read model itself).
func (s *Store) Rebuild(ctx context.Context) error {
	return WithTx(ctx, s.pool, func(ctx context.Context) error {
		tx := dbtx(ctx, s.pool)

		if _, err := tx.Exec(ctx, `TRUNCATE account_balances, payout_summaries, ledger_transaction_summaries`); err != nil {
			return errs.Wrap(errs.KindStorageUnavailable, "truncate read models", err)
		}

		const rebuildBalances = `
			INSERT INTO account_balances (account_id, balance, raw_debit_minus_credit, as_of_sequence)
			SELECT
				a.id,
				COALESCE(SUM(CASE WHEN le.side = a.normal_side THEN le.amount ELSE -le.amount END), 0),
				COALESCE(SUM(CASE WHEN le.side = 'DEBIT' THEN le.amount ELSE -le.amount END), 0),
				(SELECT COALESCE(MAX(sequence_number), 0) FROM events)
			FROM accounts a
			LEFT JOIN ledger_entries le ON le.account_id = a.id
			GROUP BY a.id`
		if _, err := tx.Exec(ctx, rebuildBalances); err != nil {
			return errs.Wrap(errs.KindStorageUnavailable, "rebuild account balances", err)
		}

		const rebuildPayouts = `
			INSERT INTO payout_summaries (payout_id, idempotency_key, amount, currency, recipient_account, status, updated_at)
			SELECT id, idempotency_key, amount, currency, recipient_account, status, updated_at
			FROM payouts`
		if _, err := tx.Exec(ctx, rebuildPayouts); err != nil {
			return errs.Wrap(errs.KindStorageUnavailable, "rebuild payout summaries", err)
		}

		const rebuildTxnSummaries = `
			INSERT INTO ledger_transaction_summaries (transaction_id, debit_account, credit_account, amount, created_at)
			SELECT
				t.id,
				MAX(CASE WHEN le.side = 'DEBIT' THEN le.account_id END),
				MAX(CASE WHEN le.side = 'CREDIT' THEN le.account_id END),
				MAX(le.amount),
				t.created_at
			FROM transactions t
			JOIN ledger_entries le ON le.transaction_id = t.id
			GROUP BY t.id, t.created_at`
		if _, err := tx.Exec(ctx, rebuildTxnSummaries); err != nil {
			return errs.Wrap(errs.KindStorageUnavailable, "rebuild transaction summaries", err)
		}

		return nil
	})
}

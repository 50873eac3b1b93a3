package postgres

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"

	"payout-ledger/internal/domain/ledger"
	"payout-ledger/internal/errs"
)

// CreateAccount inserts a new account and seeds its zero-balance
// account_balances row, so GetAccountBalance's read-model path always has
// a row to read even before the account's first entry is projected.
// Called only from cmd/bootstrap; idempotent on code via ON CONFLICT DO
// NOTHING so re-running bootstrap is safe.
func (s *Store) CreateAccount(ctx context.Context, acc ledger.Account) error {
	return WithTx(ctx, s.pool, func(ctx context.Context) error {
		tx := dbtx(ctx, s.pool)

		const insertAccount = `
			INSERT INTO accounts (id, code, type, normal_side, created_at)
			VALUES ($1, $2, $3, $4, $5)
			ON CONFLICT (code) DO NOTHING`
		if _, err := tx.Exec(ctx, insertAccount, acc.ID, acc.Code, string(acc.Type), string(acc.NormalSide), acc.CreatedAt); err != nil {
			return errs.Wrap(errs.KindStorageUnavailable, "insert account", err)
		}

		const insertBalance = `
			INSERT INTO account_balances (account_id, balance, raw_debit_minus_credit, as_of_sequence)
			SELECT id, 0, 0, 0 FROM accounts WHERE code = $1
			ON CONFLICT (account_id) DO NOTHING`
		if _, err := tx.Exec(ctx, insertBalance, acc.Code); err != nil {
			return errs.Wrap(errs.KindStorageUnavailable, "seed account balance", err)
		}
		return nil
	})
}

// GetAccountByCode resolves an account by its human-readable code (e.g.
// "CASH_001"), the form the payout state machine and bootstrap deal in.
func (s *Store) GetAccountByCode(ctx context.Context, code string) (ledger.Account, error) {
	const q = `
		SELECT id, code, type, normal_side, created_at
		FROM accounts WHERE code = $1`
	row := dbtx(ctx, s.pool).QueryRow(ctx, q, code)

	var acc ledger.Account
	var accType, side string
	if err := row.Scan(&acc.ID, &acc.Code, &accType, &side, &acc.CreatedAt); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return ledger.Account{}, notFound("account", code)
		}
		return ledger.Account{}, errs.Wrap(errs.KindStorageUnavailable, "query account", err)
	}
	acc.Type = ledger.AccountType(accType)
	acc.NormalSide = ledger.Side(side)
	return acc, nil
}

// GetAccount resolves an account by surrogate id.
func (s *Store) GetAccount(ctx context.Context, id string) (ledger.Account, error) {
	const q = `
		SELECT id, code, type, normal_side, created_at
		FROM accounts WHERE id = $1`
	row := dbtx(ctx, s.pool).QueryRow(ctx, q, id)

	var acc ledger.Account
	var accType, side string
	if err := row.Scan(&acc.ID, &acc.Code, &accType, &side, &acc.CreatedAt); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return ledger.Account{}, notFound("account", id)
		}
		return ledger.Account{}, errs.Wrap(errs.KindStorageUnavailable, "query account", err)
	}
	acc.Type = ledger.AccountType(accType)
	acc.NormalSide = ledger.Side(side)
	return acc, nil
}

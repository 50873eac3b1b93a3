package postgres

import (
	"context"
	"encoding/json"
	"errors"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"

	payoutdom "payout-ledger/internal/domain/payout"
	"payout-ledger/internal/errs"
)

// InsertPayout creates a new payout row in StatusPending. A duplicate
// idempotency_key is reported as KindIdempotencyConflict so Intake
// (internal/payout) can decide whether it is a benign replay or a genuine
// conflict by comparing immutable fields against the existing row.
func (s *Store) InsertPayout(ctx context.Context, p payoutdom.Payout) error {
	metadata, err := json.Marshal(p.Metadata)
	if err != nil {
		return errs.Wrap(errs.KindValidation, "marshal payout metadata", err)
	}

	const q = `
		INSERT INTO payouts (
			id, idempotency_key, amount, currency, recipient_account, recipient_name,
			description, metadata, status, retry_count, created_at, updated_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)`
	_, err = dbtx(ctx, s.pool).Exec(ctx, q,
		p.ID, p.IdempotencyKey, p.AmountNumeric, p.Currency, p.RecipientAccount, p.RecipientName,
		p.Description, metadata, string(p.Status), p.RetryCount, p.CreatedAt, p.UpdatedAt)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == "23505" && pgErr.ConstraintName == "payouts_idempotency_key_key" {
			return errs.New(errs.KindIdempotencyConflict, "idempotency key already used: "+p.IdempotencyKey)
		}
		return errs.Wrap(errs.KindStorageUnavailable, "insert payout", err)
	}
	return nil
}

// GetPayoutByIdempotencyKey resolves a payout by its caller-supplied key,
// used by Intake to detect replays.
func (s *Store) GetPayoutByIdempotencyKey(ctx context.Context, key string) (payoutdom.Payout, error) {
	const q = payoutSelectColumns + ` WHERE idempotency_key = $1`
	return scanOnePayout(dbtx(ctx, s.pool).QueryRow(ctx, q, key), key)
}

// GetPayout resolves a payout by surrogate id.
func (s *Store) GetPayout(ctx context.Context, id string) (payoutdom.Payout, error) {
	const q = payoutSelectColumns + ` WHERE id = $1`
	return scanOnePayout(dbtx(ctx, s.pool).QueryRow(ctx, q, id), id)
}

// LockPayoutForProcessing selects a payout FOR UPDATE by id, blocking any
// concurrent claim of the same payout (spec.md I4 / P6 — two workers never
// both process the same payout). Must run inside WithTx.
func (s *Store) LockPayoutForProcessing(ctx context.Context, id string) (payoutdom.Payout, error) {
	const q = payoutSelectColumns + ` WHERE id = $1 FOR UPDATE`
	return scanOnePayout(dbtx(ctx, s.pool).QueryRow(ctx, q, id), id)
}

// UpdatePayoutStatus persists a state machine transition's mutable fields.
// Must run inside the same WithTx block as the accompanying event append
// and projection update.
func (s *Store) UpdatePayoutStatus(ctx context.Context, p payoutdom.Payout) error {
	const q = `
		UPDATE payouts SET
			status = $2,
			linked_transaction_id = $3,
			external_payout_id = $4,
			error_message = $5,
			retry_count = $6,
			updated_at = $7,
			processed_at = $8
		WHERE id = $1`
	_, err := dbtx(ctx, s.pool).Exec(ctx, q,
		p.ID, string(p.Status), nullable(p.LinkedTransactionID), nullable(p.ExternalPayoutID),
		p.ErrorMessage, p.RetryCount, p.UpdatedAt, p.ProcessedAt)
	if err != nil {
		return errs.Wrap(errs.KindStorageUnavailable, "update payout status", err)
	}
	return nil
}

const payoutSelectColumns = `
	SELECT id, idempotency_key, amount, currency, recipient_account, recipient_name,
		description, metadata, status, linked_transaction_id, external_payout_id,
		error_message, retry_count, created_at, updated_at, processed_at
	FROM payouts`

func scanOnePayout(row pgx.Row, lookupKey string) (payoutdom.Payout, error) {
	var p payoutdom.Payout
	var status string
	var metadata []byte
	var linkedTxnID, externalID *string
	if err := row.Scan(
		&p.ID, &p.IdempotencyKey, &p.AmountNumeric, &p.Currency, &p.RecipientAccount, &p.RecipientName,
		&p.Description, &metadata, &status, &linkedTxnID, &externalID,
		&p.ErrorMessage, &p.RetryCount, &p.CreatedAt, &p.UpdatedAt, &p.ProcessedAt,
	); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return payoutdom.Payout{}, notFound("payout", lookupKey)
		}
		return payoutdom.Payout{}, errs.Wrap(errs.KindStorageUnavailable, "scan payout", err)
	}
	p.Status = payoutdom.Status(status)
	if linkedTxnID != nil {
		p.LinkedTransactionID = *linkedTxnID
	}
	if externalID != nil {
		p.ExternalPayoutID = *externalID
	}
	if len(metadata) > 0 {
		if err := json.Unmarshal(metadata, &p.Metadata); err != nil {
			return payoutdom.Payout{}, errs.Wrap(errs.KindStorageUnavailable, "unmarshal payout metadata", err)
		}
	}
	return p, nil
}

func nullable(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}

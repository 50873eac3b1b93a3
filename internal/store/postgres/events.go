package postgres

import (
	"context"
	"encoding/json"
	"errors"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"

	domevents "payout-ledger/internal/domain/events"
	"payout-ledger/internal/errs"
)

// nextSequence locks the single counter row and returns the next value.
// Must be called from within a WithTx block: the row-level lock is only
// meaningful held for the duration of the writing transaction (spec.md
// §4.2's gapless sequence requirement).
func (s *Store) nextSequence(ctx context.Context, tx DBTX) (int64, error) {
	const q = `UPDATE event_sequence SET value = value + 1 WHERE id = 1 RETURNING value`
	var next int64
	if err := tx.QueryRow(ctx, q).Scan(&next); err != nil {
		return 0, errs.Wrap(errs.KindStorageUnavailable, "allocate event sequence", err)
	}
	return next, nil
}

// AppendEvent assigns the next sequence number and inserts the event.
// Duplicate event ids (the caller's idempotent-retry guard) are reported
// as KindDuplicateEventID rather than a raw constraint violation.
// Must run inside WithTx so the sequence allocation and the projection it
// accompanies commit or roll back together.
func (s *Store) AppendEvent(ctx context.Context, ev domevents.Event) (domevents.Event, error) {
	tx := dbtx(ctx, s.pool)

	seq, err := s.nextSequence(ctx, tx)
	if err != nil {
		return domevents.Event{}, err
	}
	ev.SequenceNumber = seq

	payload, err := json.Marshal(ev.Payload)
	if err != nil {
		return domevents.Event{}, errs.Wrap(errs.KindValidation, "marshal event payload", err)
	}

	const q = `
		INSERT INTO events (event_id, sequence_number, aggregate_type, aggregate_id, event_type, payload, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, now())
		RETURNING created_at`
	if err := tx.QueryRow(ctx, q, ev.ID, ev.SequenceNumber, ev.AggregateType, ev.AggregateID, ev.EventType, payload).Scan(&ev.CreatedAt); err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == "23505" && pgErr.ConstraintName == "events_pkey" {
			return domevents.Event{}, errs.New(errs.KindDuplicateEventID, "event id already appended: "+ev.ID)
		}
		return domevents.Event{}, errs.Wrap(errs.KindStorageUnavailable, "insert event", err)
	}
	return ev, nil
}

// ReadEvents returns events in sequence order after since (exclusive),
// cursor-paginated per spec.md §6 — never OFFSET-based.
func (s *Store) ReadEvents(ctx context.Context, since int64, limit int) ([]domevents.Event, error) {
	const q = `
		SELECT event_id, sequence_number, aggregate_type, aggregate_id, event_type, payload, created_at
		FROM events
		WHERE sequence_number > $1
		ORDER BY sequence_number ASC
		LIMIT $2`
	rows, err := dbtx(ctx, s.pool).Query(ctx, q, since, limit)
	if err != nil {
		return nil, errs.Wrap(errs.KindStorageUnavailable, "query events", err)
	}
	defer rows.Close()
	return scanEvents(rows)
}

// ReadAggregateHistory returns the full, sequence-ordered event history for
// one aggregate (a payout or a transaction).
func (s *Store) ReadAggregateHistory(ctx context.Context, aggregateType, aggregateID string) ([]domevents.Event, error) {
	const q = `
		SELECT event_id, sequence_number, aggregate_type, aggregate_id, event_type, payload, created_at
		FROM events
		WHERE aggregate_type = $1 AND aggregate_id = $2
		ORDER BY sequence_number ASC`
	rows, err := dbtx(ctx, s.pool).Query(ctx, q, aggregateType, aggregateID)
	if err != nil {
		return nil, errs.Wrap(errs.KindStorageUnavailable, "query aggregate history", err)
	}
	defer rows.Close()
	return scanEvents(rows)
}

func scanEvents(rows pgx.Rows) ([]domevents.Event, error) {
	var out []domevents.Event
	for rows.Next() {
		var ev domevents.Event
		var payload []byte
		if err := rows.Scan(&ev.ID, &ev.SequenceNumber, &ev.AggregateType, &ev.AggregateID, &ev.EventType, &payload, &ev.CreatedAt); err != nil {
			return nil, errs.Wrap(errs.KindStorageUnavailable, "scan event", err)
		}
		if len(payload) > 0 {
			if err := json.Unmarshal(payload, &ev.Payload); err != nil {
				return nil, errs.Wrap(errs.KindStorageUnavailable, "unmarshal event payload", err)
			}
		}
		out = append(out, ev)
	}
	if err := rows.Err(); err != nil {
		return nil, errs.Wrap(errs.KindStorageUnavailable, "iterate events", err)
	}
	return out, nil
}

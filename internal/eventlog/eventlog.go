// Package eventlog is the C3 service: appends immutable, strictly
// sequenced domain events and serves ordered reads. Grounded on spec.md
// §4.2's gapless-sequence requirement; the locked counter row lives in
// internal/store/postgres.
package eventlog

import (
	"context"

	"github.com/google/uuid"

	"payout-ledger/internal/domain/events"
	"payout-ledger/internal/metrics"
)

// Store is the persistence seam internal/store/postgres.Store satisfies.
type Store interface {
	AppendEvent(ctx context.Context, ev events.Event) (events.Event, error)
	ReadEvents(ctx context.Context, since int64, limit int) ([]events.Event, error)
	ReadAggregateHistory(ctx context.Context, aggregateType, aggregateID string) ([]events.Event, error)
}

type Service struct {
	store Store
}

func New(store Store) *Service {
	return &Service{store: store}
}

// AppendEvent assigns the event a random id if the caller hasn't
// supplied one (random ids skip the idempotent-retry dedup path
// deliberately — callers that care about dedup, like the payout state
// machine, always pass their own deterministic id).
func (s *Service) AppendEvent(ctx context.Context, ev events.Event) (events.Event, error) {
	if ev.ID == "" {
		ev.ID = uuid.NewString()
	}
	committed, err := s.store.AppendEvent(ctx, ev)
	if err != nil {
		return events.Event{}, err
	}
	metrics.RecordEventAppended(committed.EventType)
	return committed, nil
}

// ReadEvents returns events after the given sequence number, cursor-paged.
func (s *Service) ReadEvents(ctx context.Context, since int64, limit int) ([]events.Event, error) {
	if limit <= 0 || limit > 500 {
		limit = 100
	}
	return s.store.ReadEvents(ctx, since, limit)
}

// ReadAggregateHistory returns the full event history for one aggregate.
func (s *Service) ReadAggregateHistory(ctx context.Context, aggregateType, aggregateID string) ([]events.Event, error) {
	return s.store.ReadAggregateHistory(ctx, aggregateType, aggregateID)
}

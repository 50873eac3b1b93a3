// Package events holds the durable Event record (C3 of SPEC_FULL.md). This
// is distinct from internal/realtime, which only carries live,
// non-authoritative broadcast copies of the same data.
package events

import "time"

// Event is immutable once committed; sequence numbers are assigned inside
// the writing transaction by the locked counter row in
// internal/store/postgres.
type Event struct {
	ID             string // producer-chosen, unique, used for dedup
	SequenceNumber int64
	AggregateType  string
	AggregateID    string
	EventType      string
	Payload        map[string]interface{}
	CreatedAt      time.Time
}

// Aggregate type tags used across the payout/ledger domain.
const (
	AggregatePayout      = "payout"
	AggregateTransaction = "transaction"
)

// Event type tags for the payout state machine (spec.md §4.5).
const (
	TypePayoutCreated           = "PayoutCreated"
	TypePayoutProcessingStarted = "PayoutProcessingStarted"
	TypePayoutCompleted         = "PayoutCompleted"
	TypePayoutRetryScheduled    = "PayoutRetryScheduled"
	TypePayoutFailed            = "PayoutFailed"
	TypePayoutCancelled         = "PayoutCancelled"
)

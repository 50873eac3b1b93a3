// Package payout holds the Payout record and its state machine's transition
// table (C5 of SPEC_FULL.md). The actual transition logic — locking,
// persistence, event emission — lives in internal/payout; this package only
// owns the data shape and the pure, side-effect-free parts of the state
// machine so they can be unit tested without a database.
package payout

import "time"

type Status string

const (
	StatusPending    Status = "PENDING"
	StatusProcessing Status = "PROCESSING"
	StatusCompleted  Status = "COMPLETED"
	StatusFailed     Status = "FAILED"
	StatusCancelled  Status = "CANCELLED"
)

// Terminal reports whether a Status accepts no further transitions.
func (s Status) Terminal() bool {
	switch s {
	case StatusCompleted, StatusFailed, StatusCancelled:
		return true
	default:
		return false
	}
}

// Payout is the record driven exclusively by the state machine in
// internal/payout. Immutable fields (everything set at Intake) are never
// rewritten; mutable fields are only ever written by a locked transition.
type Payout struct {
	ID                   string
	IdempotencyKey       string
	AmountNumeric        string // immutable
	Currency             string // immutable
	RecipientAccount     string // immutable
	RecipientName        string // immutable
	Description          string // immutable
	Metadata             map[string]interface{} // immutable

	Status               Status
	LinkedTransactionID  string
	ExternalPayoutID     string
	ErrorMessage         string
	RetryCount           int

	CreatedAt  time.Time
	UpdatedAt  time.Time
	ProcessedAt *time.Time
}

// LedgerTransactionID is the deterministic transaction id spec.md §3
// mandates: "payout_<key>".
func (p Payout) LedgerTransactionID() string {
	return "payout_" + p.IdempotencyKey
}

// ImmutableFieldsEqual reports whether the request-supplied fields of other
// match p — used by Intake to distinguish an idempotent replay from an
// IdempotencyConflict (spec.md §4.5 step 2).
func (p Payout) ImmutableFieldsEqual(other Payout) bool {
	if p.AmountNumeric != other.AmountNumeric ||
		p.Currency != other.Currency ||
		p.RecipientAccount != other.RecipientAccount ||
		p.RecipientName != other.RecipientName ||
		p.Description != other.Description {
		return false
	}
	if len(p.Metadata) != len(other.Metadata) {
		return false
	}
	for k, v := range p.Metadata {
		if other.Metadata[k] != v {
			return false
		}
	}
	return true
}

// Transition is one edge of the state machine's transition table.
type Transition struct {
	From Status
	To   Status
	Name string
}

// table is the exhaustive set of legal transitions from spec.md §4.5's
// diagram. IsAllowed below is a compile-time-checkable exhaustive switch in
// spirit — Go has no sum types, so the table is the closest equivalent and
// is unit tested against every legal edge and a set of illegal ones.
var table = []Transition{
	{From: StatusPending, To: StatusProcessing, Name: "claim"},
	{From: StatusProcessing, To: StatusCompleted, Name: "finalize_success"},
	{From: StatusProcessing, To: StatusProcessing, Name: "finalize_failure_retry"},
	{From: StatusProcessing, To: StatusFailed, Name: "finalize_failure_terminal"},
	{From: StatusPending, To: StatusCancelled, Name: "cancel"},
	// idempotent no-op: re-finalizing a Completed payout is a legal call that
	// returns the existing state rather than erroring. Re-claims are not in
	// the table; ClaimForProcessing handles them before consulting it.
	{From: StatusCompleted, To: StatusCompleted, Name: "finalize_success"},
}

// IsAllowed reports whether the named transition may fire from the given
// status.
func IsAllowed(from Status, name string) bool {
	for _, t := range table {
		if t.From == from && t.Name == name {
			return true
		}
	}
	return false
}

// Package payout is the C5 service: the payout state machine. Every
// transition — intake, claim, finalize, cancel — runs inside one database
// transaction together with its ledger posting (when it has one), its
// event, and its read-model projection, per spec.md §4.5. Grounded on the
// teacher's AtomicDepositWithIdempotency (idempotency-check-inside-the-
// transaction shape), generalized from a single UPDATE to the full
// row-locked transition table in internal/domain/payout.
package payout

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"payout-ledger/internal/domain/events"
	domledger "payout-ledger/internal/domain/ledger"
	payoutdom "payout-ledger/internal/domain/payout"
	"payout-ledger/internal/errs"
	"payout-ledger/internal/ledger"
	"payout-ledger/internal/logging"
	"payout-ledger/internal/metrics"
	"payout-ledger/internal/money"
	"payout-ledger/internal/provider"
)

// Store is the payout-specific persistence seam internal/store/postgres.Store
// satisfies, plus Atomic for composing with the ledger/event/projector
// writes of the same transition.
type Store interface {
	InsertPayout(ctx context.Context, p payoutdom.Payout) error
	GetPayoutByIdempotencyKey(ctx context.Context, key string) (payoutdom.Payout, error)
	GetPayout(ctx context.Context, id string) (payoutdom.Payout, error)
	LockPayoutForProcessing(ctx context.Context, id string) (payoutdom.Payout, error)
	UpdatePayoutStatus(ctx context.Context, p payoutdom.Payout) error
	Atomic(ctx context.Context, fn func(ctx context.Context) error) error
}

// EventLog is the subset of internal/eventlog.Service the state machine
// needs.
type EventLog interface {
	AppendEvent(ctx context.Context, ev events.Event) (events.Event, error)
}

// Projector is the subset of internal/projector.Service the state machine
// needs.
type Projector interface {
	ApplyLedgerEntries(ctx context.Context, txn domledger.Transaction, entries []domledger.LedgerEntry, sequence int64) error
	ApplyPayoutChange(ctx context.Context, p payoutdom.Payout) error
}

// Ledger is the subset of internal/ledger.Service the state machine needs.
type Ledger interface {
	CreateBalancedTransaction(ctx context.Context, txnID, description string, legs []ledger.Leg) (domledger.Transaction, []domledger.LedgerEntry, error)
}

// Realtime fans a committed event out to live SSE subscribers
// (internal/realtime.Broker). Publish is called after the owning
// transaction commits, never inside it — the broadcast is best-effort and
// not part of the durable write (SPEC_FULL.md §6).
type Realtime interface {
	Publish(ev events.Event)
}

// Dispatcher publishes a work unit for the worker consumer group to pick
// up (internal/worker.Producer). Dispatch happens after the intake
// transaction commits, never inside it: a publish is not transactional
// with the Postgres write, so a dispatch that is lost on crash leaves the
// payout Pending; nothing in this package re-dispatches a Pending payout.
type Dispatcher interface {
	DispatchPayout(payoutID string) error
}

// Accounts names the two fixed bootstrap accounts a payout moves funds
// between (spec.md §6, SPEC_FULL.md Open Question decision: wired once at
// construction rather than made configurable per payout).
type Accounts struct {
	CashAccountID             string
	PayoutLiabilityAccountID string
}

type Service struct {
	store      Store
	ledgerSvc  Ledger
	eventLog   EventLog
	projector  Projector
	provider   provider.PayoutProvider
	dispatcher Dispatcher
	realtime   Realtime
	accounts   Accounts
	maxRetries int
}

func New(store Store, ledgerSvc Ledger, eventLog EventLog, projector Projector, providerClient provider.PayoutProvider, accounts Accounts, maxRetries int) *Service {
	return &Service{
		store:      store,
		ledgerSvc:  ledgerSvc,
		eventLog:   eventLog,
		projector:  projector,
		provider:   providerClient,
		accounts:   accounts,
		maxRetries: maxRetries,
	}
}

// WithDispatcher attaches a Dispatcher after construction. Kafka wiring is
// optional (spec.md's dev/test paths run with KAFKA_ENABLED=false), so
// Intake tolerates a nil dispatcher by skipping the publish.
func (s *Service) WithDispatcher(d Dispatcher) *Service {
	s.dispatcher = d
	return s
}

// WithRealtime attaches a Realtime broadcaster after construction. A nil
// broadcaster (the zero value) makes publish a no-op, so tests that don't
// care about SSE can skip wiring one.
func (s *Service) WithRealtime(r Realtime) *Service {
	s.realtime = r
	return s
}

// publish best-effort-broadcasts a committed event. Must only be called
// after its owning transaction has committed. A zero-value ev means the
// transition was a no-op that never appended an event, so there is
// nothing to broadcast.
func (s *Service) publish(ev events.Event) {
	if s.realtime == nil || ev.ID == "" {
		return
	}
	s.realtime.Publish(ev)
}

// IntakeRequest carries the caller-supplied, immutable fields of a new
// payout (the POST /api/payouts/ request body, spec.md §6).
type IntakeRequest struct {
	IdempotencyKey   string
	Amount           money.Amount
	RecipientAccount string
	RecipientName    string
	Description      string
	Metadata         map[string]interface{}
}

// Intake creates a new payout in StatusPending, or returns the existing
// payout unchanged if idempotencyKey has already been used with identical
// request fields (spec.md §4.5 step 1 — exactly-once intake). The bool
// result reports whether this call created the payout (true) or returned
// an existing one from a replay (false), so the HTTP layer can answer 201
// vs 200 (spec.md §6/§8 S2). A reused key with different fields is
// KindIdempotencyConflict.
func (s *Service) Intake(ctx context.Context, req IntakeRequest) (payoutdom.Payout, bool, error) {
	if !req.Amount.IsPositive() {
		return payoutdom.Payout{}, false, errs.New(errs.KindNonPositiveAmount, "payout amount must be positive")
	}
	if req.IdempotencyKey == "" {
		return payoutdom.Payout{}, false, errs.New(errs.KindValidation, "idempotency key is required")
	}
	if req.RecipientAccount == "" {
		return payoutdom.Payout{}, false, errs.New(errs.KindValidation, "recipient account is required")
	}

	candidate := payoutdom.Payout{
		AmountNumeric:    req.Amount.Numeric(),
		Currency:         req.Amount.Currency,
		RecipientAccount: req.RecipientAccount,
		RecipientName:    req.RecipientName,
		Description:      req.Description,
		Metadata:         req.Metadata,
	}

	if existing, err := s.store.GetPayoutByIdempotencyKey(ctx, req.IdempotencyKey); err == nil {
		if !existing.ImmutableFieldsEqual(candidate) {
			return payoutdom.Payout{}, false, errs.New(errs.KindIdempotencyConflict, "idempotency key reused with different payout fields")
		}
		return existing, false, nil
	} else if errs.KindOf(err) != errs.KindNotFound {
		return payoutdom.Payout{}, false, err
	}

	now := timeNow()
	p := payoutdom.Payout{
		ID:               uuid.NewString(),
		IdempotencyKey:   req.IdempotencyKey,
		AmountNumeric:    req.Amount.Numeric(),
		Currency:         req.Amount.Currency,
		RecipientAccount: req.RecipientAccount,
		RecipientName:    req.RecipientName,
		Description:      req.Description,
		Metadata:         req.Metadata,
		Status:           payoutdom.StatusPending,
		CreatedAt:        now,
		UpdatedAt:        now,
	}

	var committedEvent events.Event
	err := s.store.Atomic(ctx, func(ctx context.Context) error {
		if err := s.store.InsertPayout(ctx, p); err != nil {
			return err
		}
		ev := events.Event{
			ID:            "payout.created:" + p.IdempotencyKey,
			AggregateType: events.AggregatePayout,
			AggregateID:   p.ID,
			EventType:     events.TypePayoutCreated,
			Payload:       payoutPayload(p),
		}
		committed, err := s.eventLog.AppendEvent(ctx, ev)
		if err != nil {
			return err
		}
		committedEvent = committed
		return s.projector.ApplyPayoutChange(ctx, p)
	})
	if err != nil {
		if errs.KindOf(err) == errs.KindIdempotencyConflict {
			// Lost a concurrent race: another request with the same key
			// committed between our initial lookup and our insert. Re-fetch
			// and treat it exactly like any other replay rather than
			// surfacing the raw conflict to the caller.
			existing, fetchErr := s.store.GetPayoutByIdempotencyKey(ctx, req.IdempotencyKey)
			if fetchErr != nil {
				return payoutdom.Payout{}, false, err
			}
			if !existing.ImmutableFieldsEqual(candidate) {
				return payoutdom.Payout{}, false, errs.New(errs.KindIdempotencyConflict, "idempotency key reused with different payout fields")
			}
			return existing, false, nil
		}
		return payoutdom.Payout{}, false, err
	}

	metrics.PayoutsIntakeTotal.Inc()
	logging.Info("payout intake accepted", map[string]interface{}{"payout_id": p.ID, "idempotency_key": p.IdempotencyKey})
	s.publish(committedEvent)

	if s.dispatcher != nil {
		if err := s.dispatcher.DispatchPayout(p.ID); err != nil {
			logging.Error("failed to dispatch payout for processing", err, map[string]interface{}{"payout_id": p.ID})
		}
	}
	return p, true, nil
}

// ClaimForProcessing locks the payout row and transitions Pending ->
// Processing. Re-claiming an already-Processing or terminal payout is a
// no-op that returns the current row (spec.md P6: at most one worker owns
// a payout's processing at a time; the row lock is what enforces it, not
// this check alone).
func (s *Service) ClaimForProcessing(ctx context.Context, payoutID string) (payoutdom.Payout, error) {
	var result payoutdom.Payout
	var committedEvent events.Event
	err := s.store.Atomic(ctx, func(ctx context.Context) error {
		p, err := s.store.LockPayoutForProcessing(ctx, payoutID)
		if err != nil {
			return err
		}
		if p.Status != payoutdom.StatusPending {
			result = p
			return nil
		}
		if !payoutdom.IsAllowed(p.Status, "claim") {
			return errs.New(errs.KindIllegalTransition, "cannot claim payout in status "+string(p.Status))
		}

		p.Status = payoutdom.StatusProcessing
		p.UpdatedAt = timeNow()
		if err := s.store.UpdatePayoutStatus(ctx, p); err != nil {
			return err
		}

		ev := events.Event{
			ID:            "payout.processing:" + p.IdempotencyKey,
			AggregateType: events.AggregatePayout,
			AggregateID:   p.ID,
			EventType:     events.TypePayoutProcessingStarted,
			Payload:       payoutPayload(p),
		}
		committed, err := s.eventLog.AppendEvent(ctx, ev)
		if err != nil {
			return err
		}
		committedEvent = committed
		if err := s.projector.ApplyPayoutChange(ctx, p); err != nil {
			return err
		}
		metrics.RecordTransition(string(payoutdom.StatusPending), string(payoutdom.StatusProcessing))
		result = p
		return nil
	})
	if err != nil {
		return payoutdom.Payout{}, err
	}
	s.publish(committedEvent)
	return result, nil
}

// FinalizeSuccess posts the balanced ledger transaction moving funds from
// the cash account to the payout-liability account, marks the payout
// Completed, and records the provider's external payout id. Re-finalizing
// an already-Completed payout with the same external id is a no-op; with a
// different external id it fails with KindConflict
// (spec.md §4.5: the provider call and the finalize write are not atomic
// with each other, so the worker may retry finalize after a crash).
func (s *Service) FinalizeSuccess(ctx context.Context, payoutID, externalPayoutID string) (payoutdom.Payout, error) {
	var result payoutdom.Payout
	var committedEvent events.Event
	err := s.store.Atomic(ctx, func(ctx context.Context) error {
		p, err := s.store.LockPayoutForProcessing(ctx, payoutID)
		if err != nil {
			return err
		}
		if p.Status == payoutdom.StatusCompleted {
			if p.ExternalPayoutID != externalPayoutID {
				return errs.New(errs.KindConflict, "payout already completed with a different external payout id")
			}
			result = p
			return nil
		}
		if !payoutdom.IsAllowed(p.Status, "finalize_success") {
			return errs.New(errs.KindIllegalTransition, "cannot finalize_success payout in status "+string(p.Status))
		}

		amount, err := money.NewFromString(p.AmountNumeric, p.Currency)
		if err != nil {
			return errs.Wrap(errs.KindValidation, "parse payout amount", err)
		}

		txn, entries, ledgerErr := s.ledgerSvc.CreateBalancedTransaction(ctx, p.LedgerTransactionID(), "payout "+p.ID, []ledger.Leg{
			{AccountID: s.accounts.PayoutLiabilityAccountID, Side: domledger.Debit, Amount: amount},
			{AccountID: s.accounts.CashAccountID, Side: domledger.Credit, Amount: amount},
		})
		if ledgerErr != nil && errs.KindOf(ledgerErr) != errs.KindDuplicateTransaction {
			return ledgerErr
		}
		posted := ledgerErr == nil

		now := timeNow()
		p.Status = payoutdom.StatusCompleted
		p.ExternalPayoutID = externalPayoutID
		p.LinkedTransactionID = p.LedgerTransactionID()
		p.ErrorMessage = ""
		p.UpdatedAt = now
		p.ProcessedAt = &now
		if err := s.store.UpdatePayoutStatus(ctx, p); err != nil {
			return err
		}

		ev := events.Event{
			ID:            "payout.completed:" + p.IdempotencyKey,
			AggregateType: events.AggregatePayout,
			AggregateID:   p.ID,
			EventType:     events.TypePayoutCompleted,
			Payload:       payoutPayload(p),
		}
		committed, err := s.eventLog.AppendEvent(ctx, ev)
		if err != nil {
			return err
		}
		committedEvent = committed
		if posted {
			if err := s.projector.ApplyLedgerEntries(ctx, txn, entries, committed.SequenceNumber); err != nil {
				return err
			}
		}
		if err := s.projector.ApplyPayoutChange(ctx, p); err != nil {
			return err
		}
		metrics.RecordTransition(string(payoutdom.StatusProcessing), string(payoutdom.StatusCompleted))
		result = p
		return nil
	})
	if err != nil {
		return payoutdom.Payout{}, err
	}
	s.publish(committedEvent)
	return result, nil
}

// FinalizeFailure records a failed provider attempt and bumps RetryCount.
// A retryable failure schedules another attempt (stays Processing so the
// worker retries it) up to maxRetries; beyond that, or for a
// non-retryable failure, the payout moves to the terminal Failed state.
func (s *Service) FinalizeFailure(ctx context.Context, payoutID string, failureMessage string, retryable bool) (payoutdom.Payout, error) {
	var result payoutdom.Payout
	var committedEvent events.Event
	err := s.store.Atomic(ctx, func(ctx context.Context) error {
		p, err := s.store.LockPayoutForProcessing(ctx, payoutID)
		if err != nil {
			return err
		}
		if p.Status.Terminal() {
			result = p
			return nil
		}

		now := timeNow()
		p.ErrorMessage = failureMessage
		p.UpdatedAt = now

		if retryable && p.RetryCount < s.maxRetries {
			if !payoutdom.IsAllowed(p.Status, "finalize_failure_retry") {
				return errs.New(errs.KindIllegalTransition, "cannot retry payout in status "+string(p.Status))
			}
			p.RetryCount++
			p.Status = payoutdom.StatusProcessing
			if err := s.store.UpdatePayoutStatus(ctx, p); err != nil {
				return err
			}
			ev := events.Event{
				ID:            fmt.Sprintf("payout.failed:%s:%d", p.IdempotencyKey, p.RetryCount),
				AggregateType: events.AggregatePayout,
				AggregateID:   p.ID,
				EventType:     events.TypePayoutRetryScheduled,
				Payload:       payoutPayload(p),
			}
			committed, err := s.eventLog.AppendEvent(ctx, ev)
			if err != nil {
				return err
			}
			committedEvent = committed
			if err := s.projector.ApplyPayoutChange(ctx, p); err != nil {
				return err
			}
			metrics.PayoutRetriesTotal.Inc()
			result = p
			return nil
		}

		if !payoutdom.IsAllowed(p.Status, "finalize_failure_terminal") {
			return errs.New(errs.KindIllegalTransition, "cannot terminally fail payout in status "+string(p.Status))
		}
		p.RetryCount++
		p.Status = payoutdom.StatusFailed
		p.ProcessedAt = &now
		if err := s.store.UpdatePayoutStatus(ctx, p); err != nil {
			return err
		}
		ev := events.Event{
			ID:            fmt.Sprintf("payout.failed:%s:%d", p.IdempotencyKey, p.RetryCount),
			AggregateType: events.AggregatePayout,
			AggregateID:   p.ID,
			EventType:     events.TypePayoutFailed,
			Payload:       payoutPayload(p),
		}
		committed, err := s.eventLog.AppendEvent(ctx, ev)
		if err != nil {
			return err
		}
		committedEvent = committed
		if err := s.projector.ApplyPayoutChange(ctx, p); err != nil {
			return err
		}
		metrics.RecordTransition(string(payoutdom.StatusProcessing), string(payoutdom.StatusFailed))
		result = p
		return nil
	})
	if err != nil {
		return payoutdom.Payout{}, err
	}
	s.publish(committedEvent)
	return result, nil
}

// Cancel transitions a Pending payout to Cancelled. Only legal before a
// worker has claimed it (spec.md §4.5: a Processing payout must run to a
// terminal state, never be cancelled out from under an in-flight provider
// call).
func (s *Service) Cancel(ctx context.Context, payoutID string) (payoutdom.Payout, error) {
	var result payoutdom.Payout
	var committedEvent events.Event
	err := s.store.Atomic(ctx, func(ctx context.Context) error {
		p, err := s.store.LockPayoutForProcessing(ctx, payoutID)
		if err != nil {
			return err
		}
		if p.Status == payoutdom.StatusCancelled {
			result = p
			return nil
		}
		if !payoutdom.IsAllowed(p.Status, "cancel") {
			return errs.New(errs.KindIllegalTransition, "cannot cancel payout in status "+string(p.Status))
		}

		p.Status = payoutdom.StatusCancelled
		p.UpdatedAt = timeNow()
		if err := s.store.UpdatePayoutStatus(ctx, p); err != nil {
			return err
		}
		ev := events.Event{
			ID:            "payout.cancelled:" + p.IdempotencyKey,
			AggregateType: events.AggregatePayout,
			AggregateID:   p.ID,
			EventType:     events.TypePayoutCancelled,
			Payload:       payoutPayload(p),
		}
		committed, err := s.eventLog.AppendEvent(ctx, ev)
		if err != nil {
			return err
		}
		committedEvent = committed
		if err := s.projector.ApplyPayoutChange(ctx, p); err != nil {
			return err
		}
		metrics.RecordTransition(string(payoutdom.StatusPending), string(payoutdom.StatusCancelled))
		result = p
		return nil
	})
	if err != nil {
		return payoutdom.Payout{}, err
	}
	s.publish(committedEvent)
	return result, nil
}

// Get resolves a payout by id for read endpoints.
func (s *Service) Get(ctx context.Context, id string) (payoutdom.Payout, error) {
	return s.store.GetPayout(ctx, id)
}

// ProcessPayout is the work unit internal/worker dispatches one message
// at a time: claim the payout, call out to the provider, and finalize
// according to the outcome. It deliberately does not run the provider
// call inside a database transaction — an external HTTP call has no
// place inside a Postgres transaction — so claim and finalize are two
// separate atomic units, which is why FinalizeSuccess tolerates an
// already-Completed payout and FinalizeFailure any terminal one (a crash
// between the provider call and the finalize write is recovered by the
// next dispatch of the same payout id).
func (s *Service) ProcessPayout(ctx context.Context, payoutID string) error {
	p, err := s.ClaimForProcessing(ctx, payoutID)
	if err != nil {
		return err
	}
	if p.Status != payoutdom.StatusProcessing {
		// already terminal (completed/failed/cancelled); nothing left for
		// this call to do.
		return nil
	}

	amount, err := money.NewFromString(p.AmountNumeric, p.Currency)
	if err != nil {
		return errs.Wrap(errs.KindValidation, "parse payout amount", err)
	}

	result, sendErr := s.provider.Send(ctx, p.ID, amount, p.RecipientAccount, p.RecipientName)
	if sendErr != nil {
		retryable := errs.KindOf(sendErr) == errs.KindProviderTransient
		_, finalizeErr := s.FinalizeFailure(ctx, p.ID, sendErr.Error(), retryable)
		if finalizeErr != nil {
			return finalizeErr
		}
		if !retryable {
			return nil
		}
		return sendErr
	}

	_, err = s.FinalizeSuccess(ctx, p.ID, result.ExternalPayoutID)
	return err
}

func payoutPayload(p payoutdom.Payout) map[string]interface{} {
	return map[string]interface{}{
		"payout_id":         p.ID,
		"idempotency_key":   p.IdempotencyKey,
		"amount":            p.AmountNumeric,
		"currency":          p.Currency,
		"recipient_account": p.RecipientAccount,
		"status":            string(p.Status),
		"retry_count":       p.RetryCount,
	}
}

var timeNow = time.Now

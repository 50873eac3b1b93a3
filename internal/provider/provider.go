// Package provider models the external payout rail the worker calls out
// to (C6's "external provider" in spec.md §4.4). Grounded on the teacher's
// EventPublisher interface-plus-NoOp pattern
// (internal/infrastructure/messaging/publisher.go): a narrow interface with
// a single fake implementation, so the state machine and worker never
// depend on a real network client in tests.
package provider

import (
	"context"
	"fmt"
	"sync"

	"payout-ledger/internal/errs"
	"payout-ledger/internal/money"
)

// Result is what a successful provider call returns: the rail's own
// identifier for the payout, used as Payout.ExternalPayoutID.
type Result struct {
	ExternalPayoutID string
}

// PayoutProvider sends one payout to the external rail. Implementations
// classify their own failures: a transient error (network blip, rail
// temporarily unavailable) is retryable; a permanent error (invalid
// recipient account, rail-side rejection) is not — the caller tells them
// apart via errs.KindOf.
type PayoutProvider interface {
	Send(ctx context.Context, payoutID string, amount money.Amount, recipientAccount, recipientName string) (Result, error)
}

// FakeProvider is an in-memory provider for tests and local development,
// driven by an injectable sequence of outcomes per payout id so tests can
// script "fail twice, then succeed" scenarios (spec.md S3/S4).
type FakeProvider struct {
	mu        sync.Mutex
	sequences map[string][]Outcome
}

// Outcome is one scripted response to a Send call.
type Outcome struct {
	Err              error // nil means succeed
	Transient        bool  // only meaningful when Err != nil
	ExternalPayoutID string
}

func NewFakeProvider() *FakeProvider {
	return &FakeProvider{sequences: make(map[string][]Outcome)}
}

// ScriptFailThenSucceed queues n transient failures followed by a success,
// a convenience for the common retry-then-succeed test scenario.
func (f *FakeProvider) ScriptFailThenSucceed(payoutID string, failures int) {
	f.mu.Lock()
	defer f.mu.Unlock()
	outcomes := make([]Outcome, 0, failures+1)
	for i := 0; i < failures; i++ {
		outcomes = append(outcomes, Outcome{Err: fmt.Errorf("simulated transient provider error"), Transient: true})
	}
	f.sequences[payoutID] = outcomes
}

// ScriptPermanentFailure queues a single non-retryable failure.
func (f *FakeProvider) ScriptPermanentFailure(payoutID string, reason string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.sequences[payoutID] = []Outcome{{Err: fmt.Errorf("%s", reason), Transient: false}}
}

func (f *FakeProvider) Send(ctx context.Context, payoutID string, amount money.Amount, recipientAccount, recipientName string) (Result, error) {
	f.mu.Lock()
	outcomes := f.sequences[payoutID]
	var next *Outcome
	if len(outcomes) > 0 {
		next = &outcomes[0]
		f.sequences[payoutID] = outcomes[1:]
	}
	f.mu.Unlock()

	if next != nil && next.Err != nil {
		if next.Transient {
			return Result{}, errs.Wrap(errs.KindProviderTransient, "provider call failed", next.Err)
		}
		return Result{}, errs.Wrap(errs.KindProviderPermanent, "provider call failed", next.Err)
	}

	externalID := fmt.Sprintf("fake-%s", payoutID)
	if next != nil && next.ExternalPayoutID != "" {
		externalID = next.ExternalPayoutID
	}
	return Result{ExternalPayoutID: externalID}, nil
}

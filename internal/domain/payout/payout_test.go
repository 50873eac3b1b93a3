package payout_test

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"payout-ledger/internal/domain/payout"
)

func TestIsAllowedTransitionTable(t *testing.T) {
	tests := []struct {
		name string
		from payout.Status
		op   string
		want bool
	}{
		{"claim from pending", payout.StatusPending, "claim", true},
		{"claim from processing", payout.StatusProcessing, "claim", false},
		{"claim from completed", payout.StatusCompleted, "claim", false},
		{"finalize success from processing", payout.StatusProcessing, "finalize_success", true},
		{"finalize success replay from completed", payout.StatusCompleted, "finalize_success", true},
		{"finalize success from pending", payout.StatusPending, "finalize_success", false},
		{"retry from processing", payout.StatusProcessing, "finalize_failure_retry", true},
		{"retry from pending", payout.StatusPending, "finalize_failure_retry", false},
		{"terminal failure from processing", payout.StatusProcessing, "finalize_failure_terminal", true},
		{"cancel from pending", payout.StatusPending, "cancel", true},
		{"cancel from processing", payout.StatusProcessing, "cancel", false},
		{"cancel from completed", payout.StatusCompleted, "cancel", false},
		{"unknown transition name", payout.StatusPending, "teleport", false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, payout.IsAllowed(tt.from, tt.op))
		})
	}
}

func TestTerminal(t *testing.T) {
	assert.False(t, payout.StatusPending.Terminal())
	assert.False(t, payout.StatusProcessing.Terminal())
	assert.True(t, payout.StatusCompleted.Terminal())
	assert.True(t, payout.StatusFailed.Terminal())
	assert.True(t, payout.StatusCancelled.Terminal())
}

func TestImmutableFieldsEqual(t *testing.T) {
	base := payout.Payout{
		AmountNumeric:    "100.00",
		Currency:         "USD",
		RecipientAccount: "acc-1",
		RecipientName:    "Jane",
		Description:      "payout",
		Metadata:         map[string]interface{}{"order_id": "o-1"},
	}

	same := base
	same.ID = "different-id"
	same.Status = payout.StatusCompleted
	assert.True(t, base.ImmutableFieldsEqual(same))

	differentAmount := base
	differentAmount.AmountNumeric = "200.00"
	assert.False(t, base.ImmutableFieldsEqual(differentAmount))

	differentMetadata := base
	differentMetadata.Metadata = map[string]interface{}{"order_id": "o-2"}
	assert.False(t, base.ImmutableFieldsEqual(differentMetadata))
}

func TestLedgerTransactionID(t *testing.T) {
	p := payout.Payout{IdempotencyKey: "abc-123"}
	assert.Equal(t, "payout_abc-123", p.LedgerTransactionID())
}

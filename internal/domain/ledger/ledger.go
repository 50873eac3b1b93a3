// Package ledger holds the double-entry domain types (C1 catalog + C2
// records): Account, Transaction, LedgerEntry. Field shape is grounded on
// the teacher's internal/domain/models.Account, generalized from a single
// mutable balance field to the immutable append-only records spec.md §3
// requires — the ledger never mutates a row after commit, so there is no
// account-level mutex here; the authority is always internal/store/postgres.
package ledger

import "time"

// AccountType classifies an account for the normal-side convention.
type AccountType string

const (
	Asset     AccountType = "ASSET"
	Liability AccountType = "LIABILITY"
	Equity    AccountType = "EQUITY"
	Revenue   AccountType = "REVENUE"
	Expense   AccountType = "EXPENSE"
)

// Side is which column of an entry a leg falls on.
type Side string

const (
	Debit  Side = "DEBIT"
	Credit Side = "CREDIT"
)

// NormalSideFor returns the side on which balances of this account type
// increase, per spec.md §4.1's normal-side convention.
func NormalSideFor(t AccountType) Side {
	switch t {
	case Asset, Expense:
		return Debit
	case Liability, Equity, Revenue:
		return Credit
	default:
		return Debit
	}
}

// Account is immutable once created (spec.md §3).
type Account struct {
	ID         string
	Code       string
	Type       AccountType
	NormalSide Side
	CreatedAt  time.Time
}

// Transaction is the header row of a balanced two-entry unit. It exists
// only together with its entries (inserted in one atomic unit) and is
// immutable thereafter.
type Transaction struct {
	ID          string
	Description string
	CreatedAt   time.Time
}

// LedgerEntry is one immutable leg of a Transaction.
type LedgerEntry struct {
	ID            string
	TransactionID string
	AccountID     string
	Side          Side
	AmountNumeric string // NUMERIC(18,2) string, non-negative (spec.md I2)
	CreatedAt     time.Time
}

// SignOf returns the sign (+1 or -1) of this entry's contribution to an
// account's balance under the normal-side convention: a Debit on a
// normal-debit account (or a Credit on a normal-credit account) increases
// the balance; the opposite side decreases it. The caller multiplies the
// entry's amount by this sign (internal/store/postgres does so in SQL).
func (e LedgerEntry) SignOf(normalSide Side) int {
	if e.Side == normalSide {
		return 1
	}
	return -1
}

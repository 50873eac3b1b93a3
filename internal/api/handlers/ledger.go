package handlers

import (
	"context"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/shopspring/decimal"

	"payout-ledger/internal/domain/ledger"
)

// LedgerService is the subset of internal/ledger.Service the HTTP layer
// needs for read-only balance/history endpoints.
type LedgerService interface {
	GetAccountBalance(ctx context.Context, accountID string) (decimal.Decimal, error)
	RecomputeAccountBalance(ctx context.Context, accountID string) (decimal.Decimal, error)
	StreamEntries(ctx context.Context, accountID, sinceID string, limit int) ([]ledger.LedgerEntry, error)
}

// MakeGetAccountBalanceHandler builds the GET /api/accounts/:id/balance
// handler. Reads the projected read model by default; ?refresh=true forces
// a recompute straight from ledger entries.
func MakeGetAccountBalanceHandler(svc LedgerService) gin.HandlerFunc {
	return func(c *gin.Context) {
		var (
			balance decimal.Decimal
			err     error
		)
		if c.Query("refresh") == "true" {
			balance, err = svc.RecomputeAccountBalance(c.Request.Context(), c.Param("id"))
		} else {
			balance, err = svc.GetAccountBalance(c.Request.Context(), c.Param("id"))
		}
		if err != nil {
			respondError(c, err)
			return
		}
		c.JSON(http.StatusOK, gin.H{"account_id": c.Param("id"), "balance": balance.StringFixed(2)})
	}
}

// MakeListAccountEntriesHandler builds the GET /api/accounts/:id/entries
// handler, cursor-paginated via ?since=<entry_id>&limit=<n>.
func MakeListAccountEntriesHandler(svc LedgerService) gin.HandlerFunc {
	return func(c *gin.Context) {
		since := c.DefaultQuery("since", "")
		limit := 100
		if raw := c.Query("limit"); raw != "" {
			if n, err := strconv.Atoi(raw); err == nil {
				limit = n
			}
		}
		entries, err := svc.StreamEntries(c.Request.Context(), c.Param("id"), since, limit)
		if err != nil {
			respondError(c, err)
			return
		}
		c.JSON(http.StatusOK, gin.H{"entries": entries})
	}
}

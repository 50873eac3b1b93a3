package handlers_test

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"

	"payout-ledger/internal/api/handlers"
	"payout-ledger/internal/domain/ledger"
	"payout-ledger/internal/errs"
)

type fakeLedgerService struct {
	balance         decimal.Decimal
	balanceErr      error
	recomputeCalled bool
	entries         []ledger.LedgerEntry
	entriesErr      error
	gotSince        string
	gotLimit        int
}

func (f *fakeLedgerService) GetAccountBalance(ctx context.Context, accountID string) (decimal.Decimal, error) {
	return f.balance, f.balanceErr
}

func (f *fakeLedgerService) RecomputeAccountBalance(ctx context.Context, accountID string) (decimal.Decimal, error) {
	f.recomputeCalled = true
	return f.balance, f.balanceErr
}

func (f *fakeLedgerService) StreamEntries(ctx context.Context, accountID, sinceID string, limit int) ([]ledger.LedgerEntry, error) {
	f.gotSince = sinceID
	f.gotLimit = limit
	return f.entries, f.entriesErr
}

func TestGetAccountBalanceHandlerReturnsFormattedBalance(t *testing.T) {
	svc := &fakeLedgerService{balance: decimal.RequireFromString("150.50")}
	r := gin.New()
	r.GET("/api/accounts/:id/balance", handlers.MakeGetAccountBalanceHandler(svc))

	req := httptest.NewRequest(http.MethodGet, "/api/accounts/acc-1/balance", nil)
	rec := httptest.NewRecorder()

	r.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "150.50")
}

func TestGetAccountBalanceHandlerPropagatesNotFound(t *testing.T) {
	svc := &fakeLedgerService{balanceErr: errs.New(errs.KindNotFound, "no such account")}
	r := gin.New()
	r.GET("/api/accounts/:id/balance", handlers.MakeGetAccountBalanceHandler(svc))

	req := httptest.NewRequest(http.MethodGet, "/api/accounts/missing/balance", nil)
	rec := httptest.NewRecorder()

	r.ServeHTTP(rec, req)

	want := errs.New(errs.KindNotFound, "").HTTPStatus()
	assert.Equal(t, want, rec.Code)
}

func TestGetAccountBalanceHandlerRefreshQueryRecomputes(t *testing.T) {
	svc := &fakeLedgerService{balance: decimal.RequireFromString("75.00")}
	r := gin.New()
	r.GET("/api/accounts/:id/balance", handlers.MakeGetAccountBalanceHandler(svc))

	req := httptest.NewRequest(http.MethodGet, "/api/accounts/acc-1/balance?refresh=true", nil)
	rec := httptest.NewRecorder()

	r.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.True(t, svc.recomputeCalled)
	assert.Contains(t, rec.Body.String(), "75.00")
}

func TestListAccountEntriesHandlerForwardsCursorAndLimit(t *testing.T) {
	svc := &fakeLedgerService{entries: []ledger.LedgerEntry{{ID: "e1", AccountID: "acc-1"}}}
	r := gin.New()
	r.GET("/api/accounts/:id/entries", handlers.MakeListAccountEntriesHandler(svc))

	req := httptest.NewRequest(http.MethodGet, "/api/accounts/acc-1/entries?since=e0&limit=25", nil)
	rec := httptest.NewRecorder()

	r.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "e0", svc.gotSince)
	assert.Equal(t, 25, svc.gotLimit)
	assert.Contains(t, rec.Body.String(), "\"e1\"")
}

func TestListAccountEntriesHandlerDefaultsLimitWhenOmitted(t *testing.T) {
	svc := &fakeLedgerService{}
	r := gin.New()
	r.GET("/api/accounts/:id/entries", handlers.MakeListAccountEntriesHandler(svc))

	req := httptest.NewRequest(http.MethodGet, "/api/accounts/acc-1/entries", nil)
	rec := httptest.NewRecorder()

	r.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, 100, svc.gotLimit)
}

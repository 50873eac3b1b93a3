package handlers_test

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"payout-ledger/internal/api/handlers"
	payoutdom "payout-ledger/internal/domain/payout"
	"payout-ledger/internal/errs"
	"payout-ledger/internal/payout"
)

func init() {
	gin.SetMode(gin.TestMode)
}

type fakePayoutService struct {
	intakeFn func(ctx context.Context, req payout.IntakeRequest) (payoutdom.Payout, bool, error)
	getFn    func(ctx context.Context, id string) (payoutdom.Payout, error)
	cancelFn func(ctx context.Context, id string) (payoutdom.Payout, error)
}

func (f *fakePayoutService) Intake(ctx context.Context, req payout.IntakeRequest) (payoutdom.Payout, bool, error) {
	return f.intakeFn(ctx, req)
}

func (f *fakePayoutService) Get(ctx context.Context, id string) (payoutdom.Payout, error) {
	return f.getFn(ctx, id)
}

func (f *fakePayoutService) Cancel(ctx context.Context, id string) (payoutdom.Payout, error) {
	return f.cancelFn(ctx, id)
}

func samplePayout() payoutdom.Payout {
	now := time.Now()
	return payoutdom.Payout{
		ID:               "payout_key-1",
		IdempotencyKey:   "key-1",
		AmountNumeric:    "100.00",
		Currency:         "USD",
		RecipientAccount: "acc-1",
		RecipientName:    "Jane Doe",
		Status:           payoutdom.StatusPending,
		CreatedAt:        now,
		UpdatedAt:        now,
	}
}

func TestCreatePayoutHandlerReturns201OnSuccess(t *testing.T) {
	svc := &fakePayoutService{
		intakeFn: func(ctx context.Context, req payout.IntakeRequest) (payoutdom.Payout, bool, error) {
			assert.Equal(t, "key-1", req.IdempotencyKey)
			return samplePayout(), true, nil
		},
	}

	r := gin.New()
	r.POST("/api/payouts/", handlers.MakeCreatePayoutHandler(svc))

	body := `{"idempotency_key":"key-1","amount":"100.00","currency":"USD","recipient_account":"acc-1","recipient_name":"Jane Doe"}`
	req := httptest.NewRequest(http.MethodPost, "/api/payouts/", strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()

	r.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusCreated, rec.Code)
	assert.Contains(t, rec.Body.String(), "payout_key-1")
}

func TestCreatePayoutHandlerReturns200OnIdempotentReplay(t *testing.T) {
	svc := &fakePayoutService{
		intakeFn: func(ctx context.Context, req payout.IntakeRequest) (payoutdom.Payout, bool, error) {
			return samplePayout(), false, nil
		},
	}

	r := gin.New()
	r.POST("/api/payouts/", handlers.MakeCreatePayoutHandler(svc))

	body := `{"idempotency_key":"key-1","amount":"100.00","currency":"USD","recipient_account":"acc-1","recipient_name":"Jane Doe"}`
	req := httptest.NewRequest(http.MethodPost, "/api/payouts/", strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()

	r.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusOK, rec.Code, "a replayed idempotency key must not be reported as newly created")
	assert.Contains(t, rec.Body.String(), "payout_key-1")
}

func TestCreatePayoutHandlerRejectsMissingFields(t *testing.T) {
	svc := &fakePayoutService{}
	r := gin.New()
	r.POST("/api/payouts/", handlers.MakeCreatePayoutHandler(svc))

	req := httptest.NewRequest(http.MethodPost, "/api/payouts/", strings.NewReader(`{}`))
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()

	r.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestCreatePayoutHandlerRejectsInvalidAmount(t *testing.T) {
	svc := &fakePayoutService{}
	r := gin.New()
	r.POST("/api/payouts/", handlers.MakeCreatePayoutHandler(svc))

	body := `{"idempotency_key":"key-1","amount":"not-a-number","currency":"USD","recipient_account":"acc-1"}`
	req := httptest.NewRequest(http.MethodPost, "/api/payouts/", strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()

	r.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestCreatePayoutHandlerMapsServiceErrorToHTTPStatus(t *testing.T) {
	svc := &fakePayoutService{
		intakeFn: func(ctx context.Context, req payout.IntakeRequest) (payoutdom.Payout, bool, error) {
			return payoutdom.Payout{}, false, errs.New(errs.KindConflict, "idempotency key reused with different fields")
		},
	}
	r := gin.New()
	r.POST("/api/payouts/", handlers.MakeCreatePayoutHandler(svc))

	body := `{"idempotency_key":"key-1","amount":"100.00","currency":"USD","recipient_account":"acc-1"}`
	req := httptest.NewRequest(http.MethodPost, "/api/payouts/", strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()

	r.ServeHTTP(rec, req)

	want := errs.New(errs.KindConflict, "").HTTPStatus()
	assert.Equal(t, want, rec.Code)
}

func TestGetPayoutHandlerReturns404WhenNotFound(t *testing.T) {
	svc := &fakePayoutService{
		getFn: func(ctx context.Context, id string) (payoutdom.Payout, error) {
			return payoutdom.Payout{}, errs.New(errs.KindNotFound, "payout not found")
		},
	}
	r := gin.New()
	r.GET("/api/payouts/:id", handlers.MakeGetPayoutHandler(svc))

	req := httptest.NewRequest(http.MethodGet, "/api/payouts/missing", nil)
	rec := httptest.NewRecorder()

	r.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestCancelPayoutHandlerReturnsUpdatedPayout(t *testing.T) {
	cancelled := samplePayout()
	cancelled.Status = payoutdom.StatusCancelled
	svc := &fakePayoutService{
		cancelFn: func(ctx context.Context, id string) (payoutdom.Payout, error) {
			require.Equal(t, "payout_key-1", id)
			return cancelled, nil
		},
	}
	r := gin.New()
	r.POST("/api/payouts/:id/cancel", handlers.MakeCancelPayoutHandler(svc))

	req := httptest.NewRequest(http.MethodPost, "/api/payouts/payout_key-1/cancel", nil)
	rec := httptest.NewRecorder()

	r.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), string(payoutdom.StatusCancelled))
}

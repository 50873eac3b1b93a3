// Package handlers holds the gin handler functions for C7's HTTP API.
// Grounded on the teacher's internal/api/handlers: closure-over-
// dependencies handler factories rather than package-level state, so
// tests can build a handler against a fake payout service.
package handlers

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"

	payoutdom "payout-ledger/internal/domain/payout"
	"payout-ledger/internal/errs"
	"payout-ledger/internal/money"
	"payout-ledger/internal/payout"
)

// PayoutService is the subset of internal/payout.Service the HTTP layer
// needs.
type PayoutService interface {
	Intake(ctx context.Context, req payout.IntakeRequest) (payoutdom.Payout, bool, error)
	Get(ctx context.Context, id string) (payoutdom.Payout, error)
	Cancel(ctx context.Context, id string) (payoutdom.Payout, error)
}

type createPayoutRequest struct {
	IdempotencyKey   string                 `json:"idempotency_key" binding:"required"`
	Amount           string                 `json:"amount" binding:"required"`
	Currency         string                 `json:"currency" binding:"required"`
	RecipientAccount string                 `json:"recipient_account" binding:"required"`
	RecipientName    string                 `json:"recipient_name"`
	Description      string                 `json:"description"`
	Metadata         map[string]interface{} `json:"metadata"`
}

type payoutResponse struct {
	ID                  string `json:"id"`
	IdempotencyKey      string `json:"idempotency_key"`
	Amount              string `json:"amount"`
	Currency            string `json:"currency"`
	RecipientAccount    string `json:"recipient_account"`
	RecipientName       string `json:"recipient_name"`
	Status              string `json:"status"`
	LinkedTransactionID string `json:"linked_transaction_id,omitempty"`
	ExternalPayoutID    string `json:"external_payout_id,omitempty"`
	ErrorMessage        string `json:"error_message,omitempty"`
	RetryCount          int    `json:"retry_count"`
	CreatedAt           string `json:"created_at"`
	UpdatedAt           string `json:"updated_at"`
}

func toPayoutResponse(p payoutdom.Payout) payoutResponse {
	return payoutResponse{
		ID:                  p.ID,
		IdempotencyKey:      p.IdempotencyKey,
		Amount:              p.AmountNumeric,
		Currency:            p.Currency,
		RecipientAccount:    p.RecipientAccount,
		RecipientName:       p.RecipientName,
		Status:              string(p.Status),
		LinkedTransactionID: p.LinkedTransactionID,
		ExternalPayoutID:    p.ExternalPayoutID,
		ErrorMessage:        p.ErrorMessage,
		RetryCount:          p.RetryCount,
		CreatedAt:           p.CreatedAt.Format(http.TimeFormat),
		UpdatedAt:           p.UpdatedAt.Format(http.TimeFormat),
	}
}

// MakeCreatePayoutHandler builds the POST /api/payouts/ handler. A fresh
// intake responds 201; a replay of an already-used idempotency key
// responds 200 with the original payout (spec.md §6/§8 S2).
func MakeCreatePayoutHandler(svc PayoutService) gin.HandlerFunc {
	return func(c *gin.Context) {
		var req createPayoutRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body: " + err.Error()})
			return
		}

		amount, err := money.NewFromString(req.Amount, req.Currency)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid amount: " + err.Error()})
			return
		}

		p, created, err := svc.Intake(c.Request.Context(), payout.IntakeRequest{
			IdempotencyKey:   req.IdempotencyKey,
			Amount:           amount,
			RecipientAccount: req.RecipientAccount,
			RecipientName:    req.RecipientName,
			Description:      req.Description,
			Metadata:         req.Metadata,
		})
		if err != nil {
			respondError(c, err)
			return
		}
		status := http.StatusOK
		if created {
			status = http.StatusCreated
		}
		c.JSON(status, toPayoutResponse(p))
	}
}

// MakeGetPayoutHandler builds the GET /api/payouts/:id handler.
func MakeGetPayoutHandler(svc PayoutService) gin.HandlerFunc {
	return func(c *gin.Context) {
		p, err := svc.Get(c.Request.Context(), c.Param("id"))
		if err != nil {
			respondError(c, err)
			return
		}
		c.JSON(http.StatusOK, toPayoutResponse(p))
	}
}

// MakeCancelPayoutHandler builds the POST /api/payouts/:id/cancel handler.
func MakeCancelPayoutHandler(svc PayoutService) gin.HandlerFunc {
	return func(c *gin.Context) {
		p, err := svc.Cancel(c.Request.Context(), c.Param("id"))
		if err != nil {
			respondError(c, err)
			return
		}
		c.JSON(http.StatusOK, toPayoutResponse(p))
	}
}

func respondError(c *gin.Context, err error) {
	if e, ok := err.(*errs.Error); ok {
		c.JSON(e.HTTPStatus(), gin.H{"error": e.Message, "kind": string(e.Kind)})
		return
	}
	c.JSON(http.StatusInternalServerError, gin.H{"error": "internal error"})
}

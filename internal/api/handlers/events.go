package handlers

import (
	"context"
	"io"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"payout-ledger/internal/domain/events"
	"payout-ledger/internal/realtime"
)

// EventLogService is the subset of internal/eventlog.Service the HTTP
// layer needs.
type EventLogService interface {
	ReadEvents(ctx context.Context, since int64, limit int) ([]events.Event, error)
}

// MakeListEventsHandler builds the GET /api/events handler: cursor
// pagination via ?since=<sequence_number>&limit=<n>, never OFFSET-based.
func MakeListEventsHandler(svc EventLogService) gin.HandlerFunc {
	return func(c *gin.Context) {
		since, _ := strconv.ParseInt(c.DefaultQuery("since", "0"), 10, 64)
		limit, _ := strconv.Atoi(c.DefaultQuery("limit", "100"))

		evs, err := svc.ReadEvents(c.Request.Context(), since, limit)
		if err != nil {
			respondError(c, err)
			return
		}
		c.JSON(http.StatusOK, gin.H{"events": evs})
	}
}

// MakeEventStreamHandler builds the GET /api/events/stream SSE handler.
// This is the best-effort, non-authoritative live tail — clients that
// need a guaranteed-complete history should poll ListEvents instead.
// Grounded on the teacher's handlers.Events (broker.Subscribe/
// Unsubscribe over c.Stream).
func MakeEventStreamHandler(broker *realtime.Broker) gin.HandlerFunc {
	return func(c *gin.Context) {
		ch := broker.Subscribe()
		defer broker.Unsubscribe(ch)

		c.Stream(func(w io.Writer) bool {
			if ev, ok := <-ch; ok {
				c.SSEvent(ev.EventType, ev)
				return true
			}
			return false
		})
	}
}

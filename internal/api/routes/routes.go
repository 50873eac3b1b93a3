// Package routes wires the gin engine for C7's HTTP API. Grounded on the
// teacher's internal/api/routes.RegisterRoutes: one function taking the
// engine plus the handler dependencies, middleware chain first, then
// route groups.
package routes

import (
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"payout-ledger/internal/api/handlers"
	"payout-ledger/internal/api/middleware"
	"payout-ledger/internal/config"
	"payout-ledger/internal/realtime"
)

// Dependencies bundles everything the route handlers close over. Built by
// the container and passed in at startup.
type Dependencies struct {
	Payouts  handlers.PayoutService
	Ledger   handlers.LedgerService
	Events   handlers.EventLogService
	Broker   *realtime.Broker
	DB       handlers.Pinger
	CORS     config.CORSConfig
}

// Register builds the full route table on the given engine.
func Register(r *gin.Engine, deps Dependencies) {
	r.Use(middleware.RequestID())
	r.Use(middleware.Prometheus())
	r.Use(middleware.AccessLog())
	r.Use(middleware.CORS(deps.CORS))

	r.GET("/healthz", handlers.MakeHealthHandler(deps.DB))
	r.GET("/metrics", gin.WrapH(promhttp.Handler()))

	api := r.Group("/api")
	{
		payouts := api.Group("/payouts")
		{
			payouts.POST("/", handlers.MakeCreatePayoutHandler(deps.Payouts))
			payouts.GET("/:id", handlers.MakeGetPayoutHandler(deps.Payouts))
			payouts.POST("/:id/cancel", handlers.MakeCancelPayoutHandler(deps.Payouts))
		}

		events := api.Group("/events")
		{
			events.GET("", handlers.MakeListEventsHandler(deps.Events))
			events.GET("/stream", handlers.MakeEventStreamHandler(deps.Broker))
		}

		accounts := api.Group("/accounts")
		{
			accounts.GET("/:id/balance", handlers.MakeGetAccountBalanceHandler(deps.Ledger))
			accounts.GET("/:id/entries", handlers.MakeListAccountEntriesHandler(deps.Ledger))
		}
	}
}

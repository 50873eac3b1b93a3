// Package container wires every component of the service together.
// Grounded on the teacher's internal/pkg/components.Container: a struct
// holding every live component plus phased init* methods and a single
// graceful Shutdown, generalized to the payout-ledger's C1-C8 component
// map (store, ledger, eventlog, projector, payout, provider, realtime
// broker, Kafka producer/consumer) instead of the teacher's single-account
// wiring.
package container

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"

	"payout-ledger/internal/api/routes"
	"payout-ledger/internal/config"
	"payout-ledger/internal/eventlog"
	"payout-ledger/internal/ledger"
	"payout-ledger/internal/logging"
	"payout-ledger/internal/payout"
	"payout-ledger/internal/projector"
	"payout-ledger/internal/provider"
	"payout-ledger/internal/realtime"
	"payout-ledger/internal/store/postgres"
	"payout-ledger/internal/worker"
)

// Fixed account codes bootstrapped once (spec.md §3, §8 C8).
const (
	CashAccountCode             = "CASH_001"
	PayoutLiabilityAccountCode  = "PAYOUT_LIABILITY_001"
)

// Container holds every live component and their dependency order.
type Container struct {
	Config *config.Config

	Store      *postgres.Store
	Ledger     *ledger.Service
	EventLog   *eventlog.Service
	Projector  *projector.Service
	Payout     *payout.Service
	Provider   provider.PayoutProvider
	Broker     *realtime.Broker
	Producer   *worker.Producer
	Consumer   *worker.Consumer

	Router *gin.Engine
	Server *http.Server
}

var (
	instance     *Container
	instanceOnce sync.Once
	instanceErr  error
)

// GetInstance returns the process-wide singleton, building it on first call.
func GetInstance() (*Container, error) {
	instanceOnce.Do(func() {
		instance, instanceErr = newContainer()
	})
	return instance, instanceErr
}

func newContainer() (*Container, error) {
	c := &Container{}

	if err := c.initConfig(); err != nil {
		return nil, fmt.Errorf("init config: %w", err)
	}
	if err := c.initLogger(); err != nil {
		return nil, fmt.Errorf("init logger: %w", err)
	}
	if err := c.initStore(); err != nil {
		return nil, fmt.Errorf("init store: %w", err)
	}
	if err := c.initServices(); err != nil {
		return nil, fmt.Errorf("init services: %w", err)
	}
	if err := c.initProvider(); err != nil {
		return nil, fmt.Errorf("init provider: %w", err)
	}
	if err := c.initPayout(); err != nil {
		return nil, fmt.Errorf("init payout service: %w", err)
	}
	if err := c.initBroker(); err != nil {
		return nil, fmt.Errorf("init realtime broker: %w", err)
	}
	if err := c.initKafka(); err != nil {
		return nil, fmt.Errorf("init kafka: %w", err)
	}

	logging.Info("all components initialized", nil)
	return c, nil
}

func (c *Container) initConfig() error {
	cfg, err := config.Load()
	if err != nil {
		return err
	}
	c.Config = cfg
	return nil
}

func (c *Container) initLogger() error {
	logging.Init(c.Config.Logging.Level, c.Config.Logging.Format)
	logging.Info("logger initialized", map[string]interface{}{"level": c.Config.Logging.Level})
	return nil
}

func (c *Container) initStore() error {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	pool, err := postgres.NewPool(ctx, c.Config.Database)
	if err != nil {
		return err
	}
	c.Store = postgres.New(pool)
	logging.Info("database pool initialized", map[string]interface{}{
		"host": c.Config.Database.Host,
		"db":   c.Config.Database.Database,
	})
	return nil
}

func (c *Container) initServices() error {
	c.Ledger = ledger.New(c.Store)
	c.EventLog = eventlog.New(c.Store)
	c.Projector = projector.New(c.Store)
	return nil
}

func (c *Container) initProvider() error {
	// FakeProvider stands in for a real disbursement rail; spec.md's
	// Non-goals exclude an actual banking-network integration. A
	// production deployment would swap this for a real provider.PayoutProvider
	// implementation behind the same interface.
	c.Provider = provider.NewFakeProvider()
	return nil
}

func (c *Container) initPayout() error {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	cashAcct, err := c.Ledger.ResolveAccount(ctx, CashAccountCode)
	if err != nil {
		return fmt.Errorf("resolve %s (run cmd/bootstrap first): %w", CashAccountCode, err)
	}
	liabilityAcct, err := c.Ledger.ResolveAccount(ctx, PayoutLiabilityAccountCode)
	if err != nil {
		return fmt.Errorf("resolve %s (run cmd/bootstrap first): %w", PayoutLiabilityAccountCode, err)
	}

	c.Payout = payout.New(
		c.Store,
		c.Ledger,
		c.EventLog,
		c.Projector,
		c.Provider,
		payout.Accounts{
			CashAccountID:            cashAcct.ID,
			PayoutLiabilityAccountID: liabilityAcct.ID,
		},
		c.Config.Worker.MaxRetries,
	)
	return nil
}

func (c *Container) initBroker() error {
	c.Broker = realtime.Default()
	c.Payout.WithRealtime(c.Broker)
	return nil
}

func (c *Container) initKafka() error {
	if !c.Config.Kafka.Enabled {
		logging.Info("kafka disabled", nil)
		return nil
	}

	producer, err := worker.NewProducer(c.Config.Kafka)
	if err != nil {
		logging.Warn("failed to initialize kafka producer, dispatch disabled", map[string]interface{}{"error": err.Error()})
		return nil
	}
	c.Producer = producer

	consumer, err := worker.NewConsumer(c.Config.Kafka, c.Config.Worker, c.Payout)
	if err != nil {
		logging.Warn("failed to initialize kafka consumer", map[string]interface{}{"error": err.Error()})
		return nil
	}
	c.Consumer = consumer
	c.Payout.WithDispatcher(c.Producer)
	return nil
}

// InitServer builds the gin engine and HTTP server. Separated from
// newContainer so cmd/worker can build a container without ever touching
// net/http.
func (c *Container) InitServer() error {
	if os.Getenv("ENVIRONMENT") == "production" {
		gin.SetMode(gin.ReleaseMode)
	}

	c.Router = gin.New()
	routes.Register(c.Router, routes.Dependencies{
		Payouts: c.Payout,
		Ledger:  c.Ledger,
		Events:  c.EventLog,
		Broker:  c.Broker,
		DB:      c.Store,
		CORS:    c.Config.CORS,
	})

	c.Server = &http.Server{
		Addr:           c.Config.Server.Host + ":" + c.Config.Server.Port,
		Handler:        c.Router,
		ReadTimeout:    15 * time.Second,
		WriteTimeout:   15 * time.Second,
		IdleTimeout:    60 * time.Second,
		MaxHeaderBytes: 1 << 20,
	}
	return nil
}

// StartServer serves HTTP until interrupted, then shuts everything down.
func (c *Container) StartServer() error {
	go func() {
		if err := c.Server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logging.Error("server failed to start", err, nil)
			os.Exit(1)
		}
	}()
	logging.Info("http server listening", map[string]interface{}{"address": c.Server.Addr})

	c.waitForSignal()

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	return c.Shutdown(ctx)
}

// StartWorker runs the Kafka consumer loop until interrupted.
func (c *Container) StartWorker() error {
	if c.Consumer == nil {
		return fmt.Errorf("kafka consumer not initialized")
	}
	c.Consumer.Start()
	logging.Info("worker consumer started", nil)

	c.waitForSignal()

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	return c.Shutdown(ctx)
}

func (c *Container) waitForSignal() {
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	logging.Info("shutdown signal received", nil)
}

// Shutdown tears down every component in reverse dependency order.
func (c *Container) Shutdown(ctx context.Context) error {
	if c.Server != nil {
		if err := c.Server.Shutdown(ctx); err != nil {
			logging.Error("http server shutdown failed", err, nil)
		}
	}
	if c.Consumer != nil {
		if err := c.Consumer.Stop(); err != nil {
			logging.Error("kafka consumer shutdown failed", err, nil)
		}
	}
	if c.Producer != nil {
		if err := c.Producer.Close(); err != nil {
			logging.Error("kafka producer close failed", err, nil)
		}
	}
	if c.Store != nil {
		c.Store.Close()
	}
	logging.Info("shutdown complete", nil)
	return nil
}

package worker

import (
	"context"
	"encoding/json"
	"log"
	"sync"
	"time"

	"github.com/IBM/sarama"
	"github.com/cenkalti/backoff/v4"

	"payout-ledger/internal/config"
	"payout-ledger/internal/errs"
	"payout-ledger/internal/logging"
)

// Dispatcher is the subset of internal/payout.Service the consumer drives.
type Dispatcher interface {
	ProcessPayout(ctx context.Context, payoutID string) error
}

// Consumer is the C6 worker process's Kafka consumer group: at-least-once,
// manual offset commit, grounded on the teacher's DepositConsumer.
type Consumer struct {
	group      sarama.ConsumerGroup
	dispatcher Dispatcher
	worker     config.WorkerConfig
	wg         sync.WaitGroup
	ctx        context.Context
	cancel     context.CancelFunc
}

func NewConsumer(kafkaCfg config.KafkaConfig, workerCfg config.WorkerConfig, dispatcher Dispatcher) (*Consumer, error) {
	sc, err := toSaramaConfig(kafkaCfg)
	if err != nil {
		return nil, err
	}
	sc.Consumer.Group.Rebalance.Strategy = sarama.NewBalanceStrategyRoundRobin()
	sc.Consumer.Offsets.Initial = sarama.OffsetOldest
	sc.Consumer.Return.Errors = true
	sc.Consumer.Offsets.AutoCommit.Enable = false

	group, err := sarama.NewConsumerGroup(kafkaCfg.Brokers, kafkaCfg.ConsumerGroup, sc)
	if err != nil {
		return nil, errs.Wrap(errs.KindStorageUnavailable, "open kafka consumer group", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	return &Consumer{
		group:      group,
		dispatcher: dispatcher,
		worker:     workerCfg,
		ctx:        ctx,
		cancel:     cancel,
	}, nil
}

// Start begins consuming TopicPayoutsProcess. Consume must be called in a
// loop because a rebalance ends the current session and requires a fresh
// call to pick up new claims, matching sarama's documented consumer-group
// usage.
func (c *Consumer) Start() {
	c.wg.Add(1)
	go func() {
		defer c.wg.Done()
		handler := &claimHandler{dispatcher: c.dispatcher, worker: c.worker}
		for {
			if err := c.group.Consume(c.ctx, []string{TopicPayoutsProcess}, handler); err != nil {
				log.Printf("payout consumer error: %v", err)
			}
			if c.ctx.Err() != nil {
				return
			}
		}
	}()

	c.wg.Add(1)
	go func() {
		defer c.wg.Done()
		for {
			select {
			case err, ok := <-c.group.Errors():
				if !ok {
					return
				}
				log.Printf("payout consumer group error: %v", err)
			case <-c.ctx.Done():
				return
			}
		}
	}()
}

// Stop cancels the consume loop and waits for both goroutines to exit
// before closing the underlying consumer group.
func (c *Consumer) Stop() error {
	c.cancel()
	c.wg.Wait()
	return c.group.Close()
}

type claimHandler struct {
	dispatcher Dispatcher
	worker     config.WorkerConfig
}

func (h *claimHandler) Setup(sarama.ConsumerGroupSession) error   { return nil }
func (h *claimHandler) Cleanup(sarama.ConsumerGroupSession) error { return nil }

func (h *claimHandler) ConsumeClaim(session sarama.ConsumerGroupSession, claim sarama.ConsumerGroupClaim) error {
	for {
		select {
		case message, ok := <-claim.Messages():
			if !ok {
				return nil
			}

			var msg DispatchMessage
			if err := json.Unmarshal(message.Value, &msg); err != nil {
				logging.Error("failed to unmarshal dispatch message", err, map[string]interface{}{"offset": message.Offset})
				session.MarkMessage(message, "")
				session.Commit()
				continue
			}

			if err := h.processWithBackoff(session.Context(), msg.PayoutID); err != nil {
				logging.Error("payout processing exhausted retries", err, map[string]interface{}{
					"payout_id": msg.PayoutID,
					"offset":    message.Offset,
				})
				// at-least-once: don't mark/commit, a future redispatch
				// (or the next rebalance) will retry this payout.
				continue
			}

			session.MarkMessage(message, "")
			session.Commit()

		case <-session.Context().Done():
			return nil
		}
	}
}

// processWithBackoff drives ProcessPayout through a bounded exponential
// backoff (base/factor/cap from config.WorkerConfig, per spec.md §4.4),
// capped at worker.MaxRetries in-process retries (MaxRetries+1 attempts in
// all) before giving up on this delivery and leaving the message
// uncommitted for at-least-once redelivery.
func (h *claimHandler) processWithBackoff(ctx context.Context, payoutID string) error {
	b := &backoff.ExponentialBackOff{
		InitialInterval:     durationOrDefault(h.worker.BackoffBase, time.Second),
		RandomizationFactor: 0.1,
		Multiplier:          factorOrDefault(h.worker.BackoffFactor, 2),
		MaxInterval:         durationOrDefault(h.worker.BackoffCap, 60*time.Second),
		MaxElapsedTime:      0,
		Clock:               backoff.SystemClock,
	}
	b.Reset()

	bounded := backoff.WithMaxRetries(b, uint64(maxRetriesOrDefault(h.worker.MaxRetries, 5)))
	return backoff.Retry(func() error {
		return h.dispatcher.ProcessPayout(ctx, payoutID)
	}, backoff.WithContext(bounded, ctx))
}

func durationOrDefault(d time.Duration, fallback time.Duration) time.Duration {
	if d <= 0 {
		return fallback
	}
	return d
}

func factorOrDefault(factor float64, fallback float64) float64 {
	if factor <= 1 {
		return fallback
	}
	return factor
}

func maxRetriesOrDefault(n int, fallback int) int {
	if n <= 0 {
		return fallback
	}
	return n
}

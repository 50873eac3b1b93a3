// Package worker is the C6 dispatcher: a Kafka producer the API process
// uses to hand a newly intaken payout off for processing, and a
// consumer-group handler the worker process runs to actually drive it
// through the provider and the state machine. Grounded on the teacher's
// internal/infrastructure/messaging/kafka (producer/config) and
// deposit_consumer.go (manual-commit at-least-once consumer group shape).
package worker

import (
	"encoding/json"
	"fmt"
	"sync"

	"github.com/IBM/sarama"

	"payout-ledger/internal/config"
	"payout-ledger/internal/errs"
	"payout-ledger/internal/logging"
)

// TopicPayoutsProcess is the single topic the dispatcher uses, keyed by
// payout id so all dispatches of one payout land on the same partition and
// are processed in order by the same consumer.
const TopicPayoutsProcess = "payouts.process"

// DispatchMessage is the wire payload placed on TopicPayoutsProcess.
type DispatchMessage struct {
	PayoutID string `json:"payout_id"`
}

func toSaramaConfig(cfg config.KafkaConfig) (*sarama.Config, error) {
	sc := sarama.NewConfig()
	sc.Producer.Return.Successes = true
	sc.Producer.Return.Errors = true
	sc.Producer.Idempotent = cfg.EnableIdempotence
	sc.Producer.Retry.Max = cfg.MaxRetries
	sc.Producer.Retry.Backoff = cfg.RetryBackoff
	if cfg.EnableIdempotence {
		sc.Net.MaxOpenRequests = 1
	} else {
		sc.Net.MaxOpenRequests = 5
	}
	sc.ClientID = cfg.ClientID
	sc.Version = sarama.V3_0_0_0

	switch cfg.RequiredAcks {
	case "all", "-1", "":
		sc.Producer.RequiredAcks = sarama.WaitForAll
	case "1":
		sc.Producer.RequiredAcks = sarama.WaitForLocal
	case "0":
		sc.Producer.RequiredAcks = sarama.NoResponse
	default:
		return nil, fmt.Errorf("invalid kafka required acks value: %s", cfg.RequiredAcks)
	}
	return sc, nil
}

// Producer wraps a sarama.SyncProducer for dispatching payout-process
// messages.
type Producer struct {
	producer sarama.SyncProducer
	mu       sync.RWMutex
	closed   bool
}

func NewProducer(cfg config.KafkaConfig) (*Producer, error) {
	sc, err := toSaramaConfig(cfg)
	if err != nil {
		return nil, errs.Wrap(errs.KindValidation, "build kafka producer config", err)
	}
	sp, err := sarama.NewSyncProducer(cfg.Brokers, sc)
	if err != nil {
		return nil, errs.Wrap(errs.KindStorageUnavailable, "open kafka producer", err)
	}
	return &Producer{producer: sp}, nil
}

// DispatchPayout publishes a message asking the worker fleet to process
// payoutID. Publishing is at-least-once: the consumer's idempotent
// ClaimForProcessing makes a duplicate dispatch harmless.
func (p *Producer) DispatchPayout(payoutID string) error {
	p.mu.RLock()
	if p.closed {
		p.mu.RUnlock()
		return errs.New(errs.KindStorageUnavailable, "kafka producer is closed")
	}
	p.mu.RUnlock()

	payload, err := json.Marshal(DispatchMessage{PayoutID: payoutID})
	if err != nil {
		return errs.Wrap(errs.KindValidation, "marshal dispatch message", err)
	}

	msg := &sarama.ProducerMessage{
		Topic: TopicPayoutsProcess,
		Key:   sarama.StringEncoder(payoutID),
		Value: sarama.ByteEncoder(payload),
	}
	if _, _, err := p.producer.SendMessage(msg); err != nil {
		return errs.Wrap(errs.KindStorageUnavailable, "publish dispatch message", err)
	}
	logging.Debug("payout dispatched", map[string]interface{}{"payout_id": payoutID})
	return nil
}

func (p *Producer) Close() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.closed {
		return nil
	}
	p.closed = true
	return p.producer.Close()
}

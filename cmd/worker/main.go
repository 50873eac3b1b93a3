package main

import (
	"log"

	"payout-ledger/internal/container"
	"payout-ledger/internal/logging"
)

func main() {
	c, err := container.GetInstance()
	if err != nil {
		log.Fatalf("failed to initialize application: %v", err)
	}

	logging.Info("payout-ledger worker starting", map[string]interface{}{
		"consumer_group": c.Config.Kafka.ConsumerGroup,
	})

	if err := c.StartWorker(); err != nil {
		log.Fatalf("worker error: %v", err)
	}
}

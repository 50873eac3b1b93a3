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

	if err := c.InitServer(); err != nil {
		log.Fatalf("failed to initialize server: %v", err)
	}

	logging.Info("payout-ledger API starting", map[string]interface{}{
		"port": c.Config.Server.Port,
	})

	if err := c.StartServer(); err != nil {
		log.Fatalf("server error: %v", err)
	}
}

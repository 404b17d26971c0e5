// cmd/notifier/main.go
package main

import (
	"log"

	"github.com/openbid/auction-backend/internal/config"
	"github.com/openbid/auction-backend/internal/database"
	"github.com/openbid/auction-backend/internal/notifier"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatal("Failed to load configuration:", err)
	}

	if cfg.AMQP.URL == "" {
		log.Fatal("AMQP_URL is required for the notifier")
	}

	db, err := database.Initialize(cfg.Database)
	if err != nil {
		log.Fatal("Failed to initialize database:", err)
	}
	defer database.Close(db)

	consumer, err := notifier.NewConsumer(db, cfg)
	if err != nil {
		log.Fatal("Failed to initialize consumer:", err)
	}

	if err := consumer.Run(); err != nil {
		log.Fatal("Consumer stopped:", err)
	}
}

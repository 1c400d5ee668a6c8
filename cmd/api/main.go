package main

import (
	"log"

	"github.com/taxmitra/taxmitra/internal/config"
	"github.com/taxmitra/taxmitra/internal/db"
	"github.com/taxmitra/taxmitra/internal/httpapi"
	"github.com/taxmitra/taxmitra/internal/store/rabbitmq"
	"github.com/taxmitra/taxmitra/internal/store/redisstore"
)

func main() {
	cfg := config.Load()

	gdb := db.Connect(cfg.DBDSN)
	if err := db.Migrate(gdb); err != nil {
		log.Fatalf("migrate: %v", err)
	}

	rds := redisstore.New(cfg.RedisAddr, cfg.RedisPassword, cfg.RedisDB)
	defer rds.Close()

	pub, err := rabbitmq.NewPublisher(cfg.RabbitURL, cfg.RabbitQueue)
	if err != nil {
		log.Fatalf("rabbit publisher: %v", err)
	}
	defer pub.Close()

	r := httpapi.NewRouter(gdb, cfg, rds, pub)

	log.Printf("api listening on %s", cfg.HTTPAddr)
	if err := r.Run(cfg.HTTPAddr); err != nil {
		log.Fatalf("http server: %v", err)
	}
}

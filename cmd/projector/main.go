package main

import (
	"context"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/example/chefmarket/internal/config"
	"github.com/example/chefmarket/internal/infrastructure/kafka"
	"github.com/example/chefmarket/internal/infrastructure/store"
	"github.com/example/chefmarket/internal/metrics"
	"github.com/example/chefmarket/internal/projection"
)

func main() {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	cfg, err := config.Load("projector")
	if err != nil {
		log.Fatalf("[Projector] Failed to load config: %v", err)
	}

	log.Println("[Projector] ========================================")
	log.Println("[Projector] ChefMarket - CQRS Projector")
	log.Println("[Projector] ========================================")
	log.Printf("[Projector] Kafka: %v", cfg.Brokers())
	log.Printf("[Projector] Topic: %s", cfg.KafkaTopic)
	log.Printf("[Projector] Group: %s", cfg.ConsumerGroup)

	// Initialize PostgreSQL connection
	db, err := store.ConnectPostgres(cfg.DatabaseURL)
	if err != nil {
		log.Fatalf("[Projector] Failed to connect to PostgreSQL: %v", err)
	}
	defer db.Close()
	log.Println("[Projector] Connected to PostgreSQL (Read DB)")

	// Initialize read store with PostgreSQL
	readStore := store.NewPostgresReadStore(db)

	// Initialize projector
	projector := projection.NewProjector(readStore)

	// Initialize Kafka consumer
	consumer := kafka.NewConsumer(cfg.Brokers(), cfg.KafkaTopic, cfg.ConsumerGroup)
	defer consumer.Close()

	// Start consuming
	go func() {
		log.Println("[Projector] Starting event consumer...")
		log.Printf("[Projector] Listening to topic: %s", cfg.KafkaTopic)
		if err := consumer.Consume(ctx, projector.HandleEvent); err != nil {
			log.Printf("[Projector] Consumer error: %v", err)
		}
	}()

	go func() {
		metricsMux := http.NewServeMux()
		metricsMux.Handle("/metrics", metrics.Handler())
		log.Printf("[Projector] Metrics on %s/metrics", cfg.MetricsAddr)
		if err := http.ListenAndServe(cfg.MetricsAddr, metricsMux); err != nil {
			log.Printf("[Projector] Metrics server error: %v", err)
		}
	}()

	// Wait for shutdown signal
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	<-sigCh

	log.Println("[Projector] Shutting down...")
	cancel()
}

package main

import (
	"context"
	"log"
	"net/http"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/example/chefmarket/internal/analytics"
	"github.com/example/chefmarket/internal/api"
	"github.com/example/chefmarket/internal/auth"
	"github.com/example/chefmarket/internal/command"
	"github.com/example/chefmarket/internal/config"
	"github.com/example/chefmarket/internal/domain/actor"
	"github.com/example/chefmarket/internal/domain/grouporder"
	"github.com/example/chefmarket/internal/domain/order"
	"github.com/example/chefmarket/internal/infrastructure/kafka"
	"github.com/example/chefmarket/internal/infrastructure/store"
	"github.com/example/chefmarket/internal/metrics"
	"github.com/example/chefmarket/internal/notification"
	"github.com/example/chefmarket/internal/progress"
	"github.com/example/chefmarket/internal/projection"
	"github.com/example/chefmarket/internal/query"
)

func main() {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	cfg, err := config.Load("api-projector")
	if err != nil {
		log.Fatalf("[API] Failed to load config: %v", err)
	}
	if err := cfg.RequireJWTSecret(); err != nil {
		log.Fatalf("[API] %v", err)
	}

	log.Println("[API] ========================================")
	log.Println("[API] ChefMarket - CQRS Mode")
	log.Println("[API] ========================================")
	log.Printf("[API] Kafka: %v", cfg.Brokers())
	log.Printf("[API] Topic: %s", cfg.KafkaTopic)
	log.Println("[API] Write DB: PostgreSQL (events table)")
	log.Println("[API] Read DB:  PostgreSQL (read_models table)")

	// Initialize Kafka producer
	producer := kafka.NewProducer(cfg.Brokers(), cfg.KafkaTopic)
	defer producer.Close()

	// Initialize PostgreSQL connection
	db, err := store.ConnectPostgres(cfg.DatabaseURL)
	if err != nil {
		log.Fatalf("[API] Failed to connect to PostgreSQL: %v", err)
	}
	defer db.Close()
	log.Println("[API] Connected to PostgreSQL")

	// Initialize stores
	eventStore := store.NewPostgresEventStore(db, producer)
	readStore := store.NewPostgresReadStore(db)

	// Initialize domain services
	orderSvc := order.NewService(eventStore)
	groupSvc := grouporder.NewService(eventStore)
	actorSvc := actor.NewService(eventStore)
	tracker := progress.NewTracker(readStore, producer)
	earnings := analytics.NewAggregator(readStore).WithLocation(cfg.Location())

	// Initialize JWT service
	jwtService := auth.NewJWTService(cfg.JWTSecret, cfg.AccessTokenExpiry, cfg.RefreshTokenExpiry)

	// Initialize handlers
	cmdHandler := command.NewHandler(orderSvc, groupSvc, tracker, readStore)
	queryHandler := query.NewHandler(readStore)

	// Initialize projector and in-process notification hub
	projector := projection.NewProjector(readStore)
	hub := notification.NewHub()
	notifyHandler := notification.NewHandler(hub, nil, readStore)

	// Replay existing events from PostgreSQL to build read models
	log.Println("[API] Replaying events from PostgreSQL...")
	replayEvents(eventStore, projector)

	// Start Kafka consumer for new events (async projection + live pushes)
	consumer := kafka.NewConsumer(cfg.Brokers(), cfg.KafkaTopic, cfg.ConsumerGroup)
	defer consumer.Close()

	var wg sync.WaitGroup
	consumerReady := make(chan struct{})

	wg.Add(1)
	go func() {
		defer wg.Done()
		log.Println("[API] Starting Kafka consumer (async projection)...")
		close(consumerReady)
		handle := func(ctx context.Context, key, value []byte) error {
			if err := projector.HandleEvent(ctx, key, value); err != nil {
				return err
			}
			// Live pushes are best-effort; projection already succeeded
			_ = notifyHandler.HandleEvent(ctx, key, value)
			return nil
		}
		if err := consumer.Consume(ctx, handle); err != nil {
			if ctx.Err() == nil {
				log.Printf("[API] Projector error: %v", err)
			}
		}
	}()

	<-consumerReady
	// Give Kafka consumer a moment to establish connection
	time.Sleep(500 * time.Millisecond)
	log.Println("[API] Kafka consumer ready")

	// Initialize API
	handlers := api.NewHandlers(cmdHandler, queryHandler, earnings)
	authHandlers := api.NewAuthHandlers(actorSvc, jwtService, queryHandler, readStore)
	courseHandlers := api.NewCourseHandlers(cmdHandler, queryHandler, tracker)
	streamHandlers := api.NewStreamHandlers(hub)
	router := api.NewRouter(api.RouterConfig{
		Handlers:       handlers,
		AuthHandlers:   authHandlers,
		CourseHandlers: courseHandlers,
		StreamHandlers: streamHandlers,
		JWTService:     jwtService,
	})

	// Start HTTP server
	server := &http.Server{
		Addr:    cfg.HTTPAddr,
		Handler: router,
	}

	go func() {
		log.Println("[API] ========================================")
		log.Printf("[API] Server started on %s", cfg.HTTPAddr)
		log.Println("[API] ========================================")
		log.Println("[API] Note: Using ASYNC projection")
		log.Println("[API] Read model updates may have slight delay")
		log.Println("[API] ========================================")
		if err := server.ListenAndServe(); err != http.ErrServerClosed {
			log.Fatalf("[API] Server error: %v", err)
		}
	}()

	// Prometheus metrics on a separate listener
	go func() {
		metricsMux := http.NewServeMux()
		metricsMux.Handle("/metrics", metrics.Handler())
		log.Printf("[API] Metrics on %s/metrics", cfg.MetricsAddr)
		if err := http.ListenAndServe(cfg.MetricsAddr, metricsMux); err != nil {
			log.Printf("[API] Metrics server error: %v", err)
		}
	}()

	// Wait for shutdown signal
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	<-sigCh

	log.Println("[API] Shutting down...")
	cancel()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer shutdownCancel()
	server.Shutdown(shutdownCtx)

	// Drain buffered progress positions before exit
	tracker.Flush(shutdownCtx)

	wg.Wait()
}

// replayEvents replays all events from PostgreSQL to rebuild read models
func replayEvents(eventStore *store.PostgresEventStore, projector *projection.Projector) {
	events := eventStore.GetAllEvents()
	log.Printf("[API] Replaying %d events from event store...", len(events))

	ctx := context.Background()
	for _, event := range events {
		data, _ := event.MarshalJSON()
		if err := projector.HandleEvent(ctx, []byte(event.AggregateID), data); err != nil {
			log.Printf("[API] Error replaying event %s: %v", event.ID, err)
		}
	}
	log.Println("[API] Event replay completed - read models rebuilt")
}

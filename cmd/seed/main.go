package main

import (
	"context"
	"flag"
	"fmt"
	"log"

	"github.com/example/chefmarket/internal/config"
	"github.com/example/chefmarket/internal/domain/actor"
	"github.com/example/chefmarket/internal/domain/grouporder"
	"github.com/example/chefmarket/internal/domain/order"
	"github.com/example/chefmarket/internal/infrastructure/kafka"
	"github.com/example/chefmarket/internal/infrastructure/store"
	"github.com/example/chefmarket/internal/readmodel"
	"github.com/jaswdr/faker"
)

var fake = faker.New()

// Seeds demo data through the regular event-sourced services so the
// projector builds matching read models.
func main() {
	sellers := flag.Int("sellers", 3, "number of seller accounts")
	buyers := flag.Int("buyers", 8, "number of buyer accounts")
	orders := flag.Int("orders", 20, "number of orders")
	flag.Parse()

	cfg, err := config.Load("seed")
	if err != nil {
		log.Fatalf("[Seed] Failed to load config: %v", err)
	}

	db, err := store.ConnectPostgres(cfg.DatabaseURL)
	if err != nil {
		log.Fatalf("[Seed] Failed to connect to PostgreSQL: %v", err)
	}
	defer db.Close()

	producer := kafka.NewProducer(cfg.Brokers(), cfg.KafkaTopic)
	defer producer.Close()

	eventStore := store.NewPostgresEventStore(db, producer)
	readStore := store.NewPostgresReadStore(db)

	actorSvc := actor.NewService(eventStore)
	orderSvc := order.NewService(eventStore)
	groupSvc := grouporder.NewService(eventStore)

	ctx := context.Background()

	sellerIDs := make([]string, 0, *sellers)
	for i := 0; i < *sellers; i++ {
		email := fmt.Sprintf("seller%d@%s", i+1, fake.Internet().Domain())
		a, err := actorSvc.Register(ctx, email, "password123", fake.Person().Name(), actor.RoleSeller)
		if err != nil {
			log.Fatalf("[Seed] Failed to register seller: %v", err)
		}
		sellerIDs = append(sellerIDs, a.ID)
	}
	log.Printf("[Seed] Registered %d sellers", len(sellerIDs))

	buyerIDs := make([]string, 0, *buyers)
	for i := 0; i < *buyers; i++ {
		email := fmt.Sprintf("buyer%d@%s", i+1, fake.Internet().Domain())
		a, err := actorSvc.Register(ctx, email, "password123", fake.Person().Name(), actor.RoleBuyer)
		if err != nil {
			log.Fatalf("[Seed] Failed to register buyer: %v", err)
		}
		buyerIDs = append(buyerIDs, a.ID)
	}
	log.Printf("[Seed] Registered %d buyers", len(buyerIDs))

	seedCourses(readStore)

	dishes := []string{
		"Katsu Curry", "Shoyu Ramen", "Gyoza", "Chirashi Bowl",
		"Okonomiyaki", "Karaage", "Tonkotsu Ramen", "Tempura Udon",
	}

	created := 0
	for i := 0; i < *orders; i++ {
		buyerID := buyerIDs[fake.IntBetween(0, len(buyerIDs)-1)]
		sellerID := sellerIDs[fake.IntBetween(0, len(sellerIDs)-1)]

		itemCount := fake.IntBetween(1, 3)
		items := make([]order.LineItem, itemCount)
		for j := range items {
			items[j] = order.LineItem{
				DishID:   fmt.Sprintf("dish-%d", fake.IntBetween(1, len(dishes))),
				Name:     dishes[fake.IntBetween(0, len(dishes)-1)],
				Quantity: fake.IntBetween(1, 3),
				Price:    fake.IntBetween(6, 24) * 100,
			}
		}

		o, err := orderSvc.Create(ctx, order.CreateParams{
			BuyerID:  buyerID,
			SellerID: sellerID,
			Items:    items,
		})
		if err != nil {
			log.Fatalf("[Seed] Failed to create order: %v", err)
		}
		created++

		// Walk some orders through the full lifecycle so earnings and
		// history have data to show
		if i%2 == 0 {
			seller := order.Actor{ID: sellerID, Role: actor.RoleSeller}
			path := []order.Status{
				order.StatusConfirmed, order.StatusPreparing,
				order.StatusReady, order.StatusOnTheWay, order.StatusCompleted,
			}
			for _, status := range path {
				if _, err := orderSvc.Transition(ctx, o.ID, status, seller, ""); err != nil {
					log.Fatalf("[Seed] Failed to transition order: %v", err)
				}
			}
		}
	}
	log.Printf("[Seed] Created %d orders", created)

	g, err := groupSvc.Create(ctx, buyerIDs[0], sellerIDs[0], "Team lunch", 8000, 0)
	if err != nil {
		log.Fatalf("[Seed] Failed to create group order: %v", err)
	}
	log.Printf("[Seed] Created group order %s (share token %s)", g.ID, g.ShareToken)

	log.Println("[Seed] Done")
}

// seedCourses writes the course catalog straight to the read store; the
// catalog is reference data, not an event-sourced aggregate.
func seedCourses(readStore store.ReadStoreInterface) {
	courses := []*readmodel.CourseReadModel{
		{
			ID:    "course-knife-skills",
			Title: "Knife Skills for Home Chefs",
			Modules: []readmodel.CourseModule{
				{ModuleID: "ks-1", Number: 1, Name: "Holding the knife", VideoCount: 3},
				{ModuleID: "ks-2", Number: 2, Name: "Basic cuts", VideoCount: 5},
				{ModuleID: "ks-3", Number: 3, Name: "Sharpening", VideoCount: 2, QuizPassingScore: 90},
			},
		},
		{
			ID:    "course-ramen",
			Title: "Ramen from Scratch",
			Modules: []readmodel.CourseModule{
				{ModuleID: "rm-1", Number: 1, Name: "Broth fundamentals", VideoCount: 4},
				{ModuleID: "rm-2", Number: 2, Name: "Noodles", VideoCount: 6},
				{ModuleID: "rm-3", Number: 3, Name: "Tare and toppings", VideoCount: 4},
				{ModuleID: "rm-4", Number: 4, Name: "Assembly", VideoCount: 2},
			},
		},
	}

	for _, course := range courses {
		if err := readStore.Set(readmodel.CollectionCourses, course.ID, course); err != nil {
			log.Fatalf("[Seed] Failed to seed course %s: %v", course.ID, err)
		}
	}
	log.Printf("[Seed] Seeded %d courses", len(courses))
}

package command

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/example/chefmarket/internal/domain/grouporder"
	"github.com/example/chefmarket/internal/domain/order"
	"github.com/example/chefmarket/internal/infrastructure/store"
	"github.com/example/chefmarket/internal/infrastructure/store/mocks"
	"github.com/example/chefmarket/internal/progress"
	"github.com/example/chefmarket/internal/readmodel"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestHandler() (*Handler, *mocks.MockEventStore, *mocks.MockReadStore) {
	eventStore := mocks.NewMockEventStore()
	readStore := mocks.NewMockReadStore()
	handler := NewHandler(
		order.NewService(eventStore),
		grouporder.NewService(eventStore),
		progress.NewTracker(readStore, nil),
		readStore,
	)
	return handler, eventStore, readStore
}

func addSeller(rs *mocks.MockReadStore, id string, accepting bool) {
	_ = rs.Set(readmodel.CollectionActors, id, &readmodel.ActorReadModel{
		ID:              id,
		Role:            "seller",
		IsActive:        true,
		AcceptingOrders: accepting,
	})
}

func seedPendingOrder(es *mocks.MockEventStore, orderID string) {
	_ = es.AddEvent(orderID, order.AggregateType, order.EventOrderCreated, order.OrderCreated{
		OrderID:   orderID,
		BuyerID:   "buyer-1",
		SellerID:  "seller-1",
		Items:     []order.LineItem{{DishID: "dish-1", Quantity: 1, Price: 1000}},
		Total:     1000,
		CreatedAt: time.Now(),
	})
}

// ============================================
// Create Order Tests
// ============================================

func TestHandler_CreateOrder_Success(t *testing.T) {
	handler, eventStore, readStore := newTestHandler()
	addSeller(readStore, "seller-1", true)

	o, err := handler.CreateOrder(context.Background(), CreateOrder{
		BuyerID:  "buyer-1",
		SellerID: "seller-1",
		Items:    []LineItemInput{{DishID: "dish-1", Name: "Katsu Curry", Quantity: 2, Price: 1100}},
	})

	require.NoError(t, err)
	assert.Equal(t, 2200, o.Total)
	assert.Len(t, eventStore.AppendCalls, 1)
}

func TestHandler_CreateOrder_SellerNotAccepting(t *testing.T) {
	handler, eventStore, readStore := newTestHandler()
	addSeller(readStore, "seller-1", false)

	o, err := handler.CreateOrder(context.Background(), CreateOrder{
		BuyerID:  "buyer-1",
		SellerID: "seller-1",
		Items:    []LineItemInput{{DishID: "dish-1", Quantity: 1, Price: 500}},
	})

	assert.ErrorIs(t, err, order.ErrSellerNotAccepting)
	assert.Nil(t, o)
	assert.Empty(t, eventStore.AppendCalls)
}

func TestHandler_CreateOrder_DeactivatedSeller(t *testing.T) {
	handler, _, readStore := newTestHandler()
	_ = readStore.Set(readmodel.CollectionActors, "seller-1", &readmodel.ActorReadModel{
		ID:              "seller-1",
		Role:            "seller",
		IsActive:        false,
		AcceptingOrders: true,
	})

	_, err := handler.CreateOrder(context.Background(), CreateOrder{
		BuyerID:  "buyer-1",
		SellerID: "seller-1",
		Items:    []LineItemInput{{DishID: "dish-1", Quantity: 1, Price: 500}},
	})

	assert.ErrorIs(t, err, order.ErrSellerNotAccepting)
}

// ============================================
// Transition Tests
// ============================================

func TestHandler_TransitionOrder_Success(t *testing.T) {
	handler, eventStore, _ := newTestHandler()
	seedPendingOrder(eventStore, "order-1")

	o, err := handler.TransitionOrder(context.Background(), TransitionOrder{
		OrderID:      "order-1",
		TargetStatus: "confirmed",
		ActorID:      "seller-1",
		ActorRole:    "seller",
	})

	require.NoError(t, err)
	assert.Equal(t, order.StatusConfirmed, o.Status)
}

func TestHandler_TransitionOrder_UnknownStatus(t *testing.T) {
	handler, eventStore, _ := newTestHandler()
	seedPendingOrder(eventStore, "order-1")

	_, err := handler.TransitionOrder(context.Background(), TransitionOrder{
		OrderID:      "order-1",
		TargetStatus: "shipped",
		ActorID:      "seller-1",
		ActorRole:    "seller",
	})

	assert.ErrorIs(t, err, order.ErrUnknownStatus)
	assert.Empty(t, eventStore.AppendCalls)
}

func TestHandler_TransitionOrder_RetriesConflictThenSucceeds(t *testing.T) {
	handler, eventStore, _ := newTestHandler()
	seedPendingOrder(eventStore, "order-1")

	attempts := 0
	eventStore.AppendCallback = func(ctx context.Context, aggregateID, aggregateType, eventType string, data any, expectedVersion int) (*store.Event, error) {
		attempts++
		if attempts == 1 {
			return nil, store.ErrVersionConflict
		}
		jsonData, _ := json.Marshal(data)
		return &store.Event{
			AggregateID: aggregateID,
			EventType:   eventType,
			Data:        jsonData,
			Version:     expectedVersion + 1,
		}, nil
	}

	o, err := handler.TransitionOrder(context.Background(), TransitionOrder{
		OrderID:      "order-1",
		TargetStatus: "confirmed",
		ActorID:      "seller-1",
		ActorRole:    "seller",
	})

	require.NoError(t, err)
	assert.Equal(t, order.StatusConfirmed, o.Status)
	assert.Equal(t, 2, attempts)
}

func TestHandler_TransitionOrder_GivesUpAfterRetries(t *testing.T) {
	handler, eventStore, _ := newTestHandler()
	seedPendingOrder(eventStore, "order-1")

	attempts := 0
	eventStore.AppendCallback = func(ctx context.Context, aggregateID, aggregateType, eventType string, data any, expectedVersion int) (*store.Event, error) {
		attempts++
		return nil, store.ErrVersionConflict
	}

	_, err := handler.TransitionOrder(context.Background(), TransitionOrder{
		OrderID:      "order-1",
		TargetStatus: "confirmed",
		ActorID:      "seller-1",
		ActorRole:    "seller",
	})

	assert.ErrorIs(t, err, store.ErrVersionConflict)
	assert.Equal(t, conflictRetries, attempts)
}

func TestHandler_TransitionOrder_IllegalNotRetried(t *testing.T) {
	handler, eventStore, _ := newTestHandler()
	seedPendingOrder(eventStore, "order-1")

	_, err := handler.TransitionOrder(context.Background(), TransitionOrder{
		OrderID:      "order-1",
		TargetStatus: "completed", // pending -> completed is never legal
		ActorID:      "seller-1",
		ActorRole:    "seller",
	})

	assert.ErrorIs(t, err, order.ErrIllegalTransition)
	assert.Empty(t, eventStore.AppendCalls)
}

func TestHandler_CancelOrder(t *testing.T) {
	handler, eventStore, _ := newTestHandler()
	seedPendingOrder(eventStore, "order-1")

	o, err := handler.CancelOrder(context.Background(), CancelOrder{
		OrderID:   "order-1",
		ActorID:   "buyer-1",
		ActorRole: "buyer",
		Reason:    "changed my mind",
	})

	require.NoError(t, err)
	assert.Equal(t, order.StatusCancelled, o.Status)
}

// ============================================
// Group Order Tests
// ============================================

func TestHandler_GroupOrderFlow(t *testing.T) {
	handler, _, _ := newTestHandler()
	ctx := context.Background()

	g, err := handler.CreateGroupOrder(ctx, CreateGroupOrder{
		CreatorID:      "creator-1",
		SellerID:       "seller-1",
		Title:          "Office dinner",
		InitialBudget:  4000,
		ExpiresInHours: 2,
	})
	require.NoError(t, err)

	g, err = handler.ContributeBudget(ctx, ContributeBudget{
		GroupOrderID: g.ID,
		ActorID:      "actor-2",
		Amount:       1000,
	})
	require.NoError(t, err)
	assert.Equal(t, 5000, g.TotalBudget())

	g, err = handler.JoinGroupOrder(ctx, JoinGroupOrder{
		GroupOrderID: g.ID,
		ActorID:      "actor-3",
		Items:        []LineItemInput{{DishID: "dish-1", Quantity: 2, Price: 900}},
	})
	require.NoError(t, err)
	assert.Equal(t, 1800, g.TotalSpent())

	g, err = handler.CloseGroupOrder(ctx, CloseGroupOrder{
		GroupOrderID: g.ID,
		ActorID:      "creator-1",
		ActorRole:    "buyer",
	})
	require.NoError(t, err)
	assert.Equal(t, grouporder.StatusClosed, g.Status)
}

// ============================================
// Progress Tests
// ============================================

func TestHandler_MarkModuleCompleted(t *testing.T) {
	handler, _, readStore := newTestHandler()
	_ = readStore.Set(readmodel.CollectionCourses, "course-1", &readmodel.CourseReadModel{
		ID: "course-1",
		Modules: []readmodel.CourseModule{
			{ModuleID: "mod-1", Number: 1, VideoCount: 3},
		},
	})

	record, err := handler.MarkModuleCompleted(context.Background(), MarkModuleCompleted{
		ActorID:  "actor-1",
		CourseID: "course-1",
		ModuleID: "mod-1",
	})

	require.NoError(t, err)
	assert.True(t, record.Completed)
}

func TestHandler_RecordPosition_UnknownCourse(t *testing.T) {
	handler, _, _ := newTestHandler()

	err := handler.RecordPosition(context.Background(), RecordPosition{
		ActorID:  "actor-1",
		CourseID: "missing",
		ModuleID: "mod-1",
	})

	assert.ErrorIs(t, err, progress.ErrCourseNotFound)
}
